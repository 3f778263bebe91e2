package monitor

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Suraj-B12/HLS-Monitor/internal/monitor/playlist"
)

func mediaPlaylist(seq int64, segmentCount int) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:7\n")
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", seq)
	for i := 0; i < segmentCount; i++ {
		b.WriteString("#EXTINF:6.000,\n")
		fmt.Fprintf(&b, "seg%d.ts\n", int64(i)+seq)
	}
	return b.String()
}

func newPlaylistServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEvaluator(clock Clock) (*Evaluator, *InMemoryStreamStore) {
	streams := NewInMemoryStreamStore()
	return &Evaluator{
		Fetcher:        playlist.NewFetcher(5 * time.Second),
		PollCache:      NewPollCache(),
		Streams:        streams,
		Historian:      nil,
		Events:         NewInMemoryEventBus(),
		Analysis:       nil,
		Log:            nil,
		Clock:          clock,
		ErrorRetention: DefaultErrorRetention,
	}, streams
}

func TestEvaluator_scenario1_freshOnline(t *testing.T) {
	srv := newPlaylistServer(t, mediaPlaylist(100, 5))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	eval, streams := newTestEvaluator(fixedClock{now: now})

	rec := &StreamRecord{ID: "s1", URL: srv.URL, StaleThresholdMS: DefaultStaleThresholdMS}
	streams.Seed(rec)
	rec, _ = streams.GetStream("s1")

	eval.Poll(rec)

	if rec.Status != StatusOnline {
		t.Errorf("Status = %v, want online", rec.Status)
	}
	if rec.Health.MediaSequence != 100 {
		t.Errorf("MediaSequence = %d, want 100", rec.Health.MediaSequence)
	}
	if rec.Health.PreviousMediaSequence != -1 {
		t.Errorf("PreviousMediaSequence = %d, want -1", rec.Health.PreviousMediaSequence)
	}
	if len(rec.StreamErrors) != 0 {
		t.Errorf("expected no ledger entries, got %+v", rec.StreamErrors)
	}
	recent := RecentIssuesFor(rec, now)
	if recent.Errors != 0 {
		t.Errorf("recent.Errors = %d, want 0", recent.Errors)
	}
	if got := HealthScoreRounded(rec, &recent, DecayFactor(rec.Health.LastErrorTime, now)); got != 100 {
		t.Errorf("health score = %d, want 100", got)
	}
}

// scenario2through6 shares the "cached at mediaSequence=100" starting point,
// directly priming the poll cache rather than re-running poll1 over HTTP.
func primedEvaluator(t *testing.T, body string, now time.Time) (*Evaluator, *StreamRecord) {
	t.Helper()
	srv := newPlaylistServer(t, body)
	eval, streams := newTestEvaluator(fixedClock{now: now})

	rec := &StreamRecord{ID: "s1", URL: srv.URL, StaleThresholdMS: DefaultStaleThresholdMS}
	streams.Seed(rec)
	rec, _ = streams.GetStream("s1")

	eval.PollCache.Set("s1", PollState{
		LastMediaSequence: 100,
		LastPollTime:      now,
		ConsecutiveStales: 0,
	})
	return eval, rec
}

func TestEvaluator_scenario2_normalAdvance(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 7, 0, time.UTC)
	eval, rec := primedEvaluator(t, mediaPlaylist(101, 5), now)

	eval.Poll(rec)

	if len(rec.StreamErrors) != 0 {
		t.Errorf("expected no ledger entries, got %+v", rec.StreamErrors)
	}
	if rec.Health.SequenceJumps != 0 {
		t.Errorf("SequenceJumps = %d, want 0", rec.Health.SequenceJumps)
	}
	if rec.Status != StatusOnline {
		t.Errorf("Status = %v, want online", rec.Status)
	}
}

func TestEvaluator_scenario3_silentGap(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 7, 0, time.UTC)
	eval, rec := primedEvaluator(t, mediaPlaylist(102, 5), now)

	eval.Poll(rec)

	if len(rec.StreamErrors) != 0 {
		t.Errorf("expected no ledger entries for a gap below threshold, got %+v", rec.StreamErrors)
	}
	if rec.Health.SequenceJumps != 0 {
		t.Errorf("SequenceJumps = %d, want 0", rec.Health.SequenceJumps)
	}
}

func TestEvaluator_scenario4_significantJump(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 7, 0, time.UTC)
	eval, rec := primedEvaluator(t, mediaPlaylist(105, 5), now)

	eval.Poll(rec)

	if rec.Health.SequenceJumps != 1 {
		t.Fatalf("SequenceJumps = %d, want 1", rec.Health.SequenceJumps)
	}
	if len(rec.StreamErrors) != 1 {
		t.Fatalf("expected 1 ledger entry, got %+v", rec.StreamErrors)
	}
	entry := rec.StreamErrors[0]
	if entry.ErrorType != ErrorMediaSequence {
		t.Errorf("ErrorType = %v, want %v", entry.ErrorType, ErrorMediaSequence)
	}
	wantDetails := "Sequence jumped from 100 to 105 (gap: 4)"
	if entry.Details != wantDetails {
		t.Errorf("Details = %q, want %q", entry.Details, wantDetails)
	}
	recent := RecentIssuesFor(rec, now)
	if recent.Jumps != 1 {
		t.Errorf("recent.Jumps = %d, want 1", recent.Jumps)
	}
}

func TestEvaluator_scenario5_reset(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 7, 0, time.UTC)
	eval, rec := primedEvaluator(t, mediaPlaylist(50, 5), now)

	eval.Poll(rec)

	if rec.Health.SequenceResets != 1 {
		t.Fatalf("SequenceResets = %d, want 1", rec.Health.SequenceResets)
	}
	if len(rec.StreamErrors) != 1 {
		t.Fatalf("expected 1 ledger entry, got %+v", rec.StreamErrors)
	}
	wantDetails := "Sequence reset from 100 to 50"
	if rec.StreamErrors[0].Details != wantDetails {
		t.Errorf("Details = %q, want %q", rec.StreamErrors[0].Details, wantDetails)
	}
}

func TestEvaluator_scenario6_stale(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := t0.Add(7100 * time.Millisecond)

	srv := newPlaylistServer(t, mediaPlaylist(100, 5))
	eval, streams := newTestEvaluator(fixedClock{now: now})

	rec := &StreamRecord{ID: "s1", URL: srv.URL, StaleThresholdMS: DefaultStaleThresholdMS}
	streams.Seed(rec)
	rec, _ = streams.GetStream("s1")
	eval.PollCache.Set("s1", PollState{LastMediaSequence: 100, LastPollTime: t0})

	eval.Poll(rec)

	if !rec.Health.IsStale {
		t.Fatal("expected IsStale = true")
	}
	if rec.Status != StatusStale {
		t.Errorf("Status = %v, want stale", rec.Status)
	}
	found := false
	for _, e := range rec.StreamErrors {
		if e.ErrorType == ErrorStaleManifest && strings.Contains(e.Details, "7100") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a Stale Manifest entry mentioning ~7100ms, got %+v", rec.StreamErrors)
	}
}

func TestEvaluator_fail_onEmptyMediaPlaylist(t *testing.T) {
	srv := newPlaylistServer(t, "#EXTM3U\n#EXT-X-TARGETDURATION:7\n#EXT-X-MEDIA-SEQUENCE:1\n")
	now := time.Now()
	eval, streams := newTestEvaluator(fixedClock{now: now})

	rec := &StreamRecord{ID: "s1", URL: srv.URL, StaleThresholdMS: DefaultStaleThresholdMS}
	streams.Seed(rec)
	rec, _ = streams.GetStream("s1")

	eval.Poll(rec)

	if rec.Status != StatusError {
		t.Errorf("Status = %v, want error", rec.Status)
	}
	if len(rec.StreamErrors) != 1 || rec.StreamErrors[0].ErrorType != ErrorPlaylistContent {
		t.Errorf("expected one Playlist Content entry, got %+v", rec.StreamErrors)
	}
}

func TestEvaluator_fail_onUnreachableManifest(t *testing.T) {
	now := time.Now()
	eval, streams := newTestEvaluator(fixedClock{now: now})

	rec := &StreamRecord{ID: "s1", URL: "http://127.0.0.1:1", StaleThresholdMS: DefaultStaleThresholdMS}
	streams.Seed(rec)
	rec, _ = streams.GetStream("s1")

	eval.Poll(rec)

	if rec.Status != StatusError {
		t.Errorf("Status = %v, want error", rec.Status)
	}
	if len(rec.StreamErrors) != 1 || rec.StreamErrors[0].ErrorType != ErrorManifestRetrieval {
		t.Errorf("expected one Manifest Retrieval entry, got %+v", rec.StreamErrors)
	}
}

func TestEvaluator_OnErrorAppended_firesOncePerLedgerEntry(t *testing.T) {
	now := time.Now()
	eval, streams := newTestEvaluator(fixedClock{now: now})

	calls := 0
	eval.OnErrorAppended = func() { calls++ }

	rec := &StreamRecord{ID: "s1", URL: "http://127.0.0.1:1", StaleThresholdMS: DefaultStaleThresholdMS}
	streams.Seed(rec)
	rec, _ = streams.GetStream("s1")

	eval.Poll(rec)

	if calls != 1 {
		t.Fatalf("OnErrorAppended called %d times, want 1 (one ledger entry appended)", calls)
	}
}

func TestHealthScoreRounded_decayScenario(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lastErr := now.Add(-48 * time.Hour)
	rec := &StreamRecord{Status: StatusOnline}
	rec.Health.LastErrorTime = &lastErr

	recent := &RecentIssues{Jumps: 2, Resets: 1, Errors: 3}
	decay := DecayFactor(rec.Health.LastErrorTime, now)
	if decay != 0.75 {
		t.Fatalf("decay = %v, want 0.75", decay)
	}

	raw := HealthScore(rec, recent, decay)
	if raw != 93.5 {
		t.Fatalf("raw score = %v, want 93.5", raw)
	}
	if got := HealthScoreRounded(rec, recent, decay); got != 94 {
		t.Errorf("rounded score = %d, want 94", got)
	}
}
