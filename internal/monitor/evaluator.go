package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Suraj-B12/HLS-Monitor/internal/monitor/playlist"
)

// AnalysisDispatcher hands a segment URL off to the bounded-concurrency
// media analysis pipeline (Component F). Dispatch is non-blocking
// relative to the evaluator (§4.E step 7, §5).
type AnalysisDispatcher interface {
	Submit(streamID StreamID, segmentURL string)
}

// Evaluator is the playlist evaluator state machine (Component E). It
// is the point where components A, B, C, D, F meet per poll.
type Evaluator struct {
	Fetcher   *playlist.Fetcher
	PollCache *PollCache
	Streams   StreamStore
	Historian *Historian
	Events    EventBus
	Analysis  AnalysisDispatcher
	Log       *slog.Logger
	Clock     Clock

	ErrorRetention time.Duration

	// OnErrorAppended, if set, is called once for every ledger entry
	// this evaluator appends (§2.1 "errors appended counter").
	OnErrorAppended func()
}

func (e *Evaluator) appendError(rec *StreamRecord, now time.Time, errType ErrorType, details, mediaType string, code *string) {
	AppendError(rec, now, errType, details, mediaType, code)
	if e.OnErrorAppended != nil {
		e.OnErrorAppended()
	}
}

// significantJumpGap is the minimum forward gap (in sequence numbers)
// that is treated as a significant jump rather than silently tolerated
// (§4.E step 4 — poll period 7s vs typical segment ~6s).
const significantJumpGap = 3

// Poll runs one full evaluation cycle for rec against its freshly
// fetched manifest, mutating rec in place and persisting/publishing as
// specified by §4.E.
func (e *Evaluator) Poll(rec *StreamRecord) {
	now := e.Clock.Now()
	cached := e.PollCache.Get(rec.ID)

	manifest, err := e.Fetcher.Fetch(rec.URL)
	if err != nil {
		e.fail(rec, now, ErrorManifestRetrieval, err.Error())
		return
	}

	// Step 1: master vs. media.
	if len(manifest.Playlists) > 0 {
		variant := manifest.Playlists[0]
		variantURL := playlist.ResolveURI(rec.URL, variant.URI)
		rec.Stats.Bandwidth = variant.Bandwidth
		if variant.Resolution.Width > 0 && variant.Resolution.Height > 0 {
			rec.Stats.Resolution = fmt.Sprintf("%dx%d", variant.Resolution.Width, variant.Resolution.Height)
		}

		media, err := e.Fetcher.Fetch(variantURL)
		if err != nil {
			e.fail(rec, now, ErrorManifestRetrieval, err.Error())
			return
		}
		manifest = media
	}

	// Step 2: content check.
	if len(manifest.Segments) == 0 {
		e.fail(rec, now, ErrorPlaylistContent, "media playlist has no segments")
		return
	}

	seq := manifest.MediaSequence
	segCount := len(manifest.Segments)
	td := manifest.TargetDuration

	// Step 3: freshness.
	if seq == cached.LastMediaSequence {
		cached.ConsecutiveStales++
		elapsed := now.Sub(cached.LastPollTime).Milliseconds()
		rec.Health.TimeSinceLastUpdate = elapsed
		if elapsed > rec.StaleThresholdMS {
			rec.Health.IsStale = true
			rec.Status = StatusStale
			e.appendError(rec, now, ErrorStaleManifest,
				fmt.Sprintf("Manifest has not advanced for %dms", elapsed), "VIDEO", nil)
		}
	} else {
		rec.Health.IsStale = false
		rec.Health.LastManifestUpdate = now
		rec.Health.TimeSinceLastUpdate = 0
		cached.ConsecutiveStales = 0
		rec.Status = StatusOnline
	}

	// Step 4: sequence semantics (only once a prior sequence is known).
	if cached.LastMediaSequence != -1 {
		expected := cached.LastMediaSequence + 1
		if seq > expected && seq-expected >= significantJumpGap {
			gap := seq - expected
			rec.Health.SequenceJumps++
			e.appendError(rec, now, ErrorMediaSequence,
				fmt.Sprintf("Sequence jumped from %d to %d (gap: %d)", cached.LastMediaSequence, seq, gap),
				"VIDEO", nil)
		} else if seq < cached.LastMediaSequence {
			rec.Health.SequenceResets++
			e.appendError(rec, now, ErrorMediaSequence,
				fmt.Sprintf("Sequence reset from %d to %d", cached.LastMediaSequence, seq),
				"VIDEO", nil)
		}
	}

	// Step 5: discontinuity accounting.
	discontinuityCount := 0
	for _, seg := range manifest.Segments {
		if seg.Discontinuity {
			discontinuityCount++
		}
	}
	rec.Health.DiscontinuityCount = discontinuityCount
	if manifest.DiscontinuitySequence != rec.Health.DiscontinuitySequence {
		rec.Health.DiscontinuitySequence = manifest.DiscontinuitySequence
	}

	// Step 6: commit.
	rec.Health.PreviousMediaSequence = cached.LastMediaSequence
	rec.Health.MediaSequence = seq
	rec.Health.SegmentCount = segCount
	rec.Health.TargetDuration = td
	playlistType := manifest.PlaylistType
	if playlistType == "" {
		playlistType = DefaultPlaylistType
	}
	rec.Health.PlaylistType = playlistType

	e.PollCache.Set(rec.ID, PollState{
		LastMediaSequence: seq,
		LastPollTime:      now,
		ConsecutiveStales: cached.ConsecutiveStales,
	})

	// Step 7: dispatch analysis (non-blocking relative to this poll).
	if e.Analysis != nil {
		lastSeg := manifest.Segments[len(manifest.Segments)-1]
		segURL := playlist.ResolveURI(rec.URL, lastSeg.URI)
		e.Analysis.Submit(rec.ID, segURL)
	}

	// Step 8: persist, score, publish.
	t := now
	rec.LastChecked = &t
	if err := e.save(rec); err != nil {
		e.logf(slog.LevelError, "persist stream failed", rec.ID, err)
	}

	recent := RecentIssuesFor(rec, now)
	decay := DecayFactor(rec.Health.LastErrorTime, now)
	rec.Health.RecentErrors = recent.Errors
	rec.Health.RecentSequenceJumps = recent.Jumps
	rec.Health.RecentSequenceResets = recent.Resets

	sample := MetricsSample{
		StreamID:      rec.ID,
		HealthScore:   HealthScoreRounded(rec, &recent, decay),
		VideoScore:    VideoScore(rec.Stats),
		AudioScore:    AudioScore(rec.Stats),
		Status:        rec.Status,
		MediaSequence: rec.Health.MediaSequence,
		SegmentCount:  rec.Health.SegmentCount,
		ErrorCount:    rec.Health.TotalErrors,
		Timestamp:     now,
	}
	if rec.Stats.Video != nil {
		sample.VideoBitrate = rec.Stats.Video.BitRate
		sample.VideoLevel = SignalLevel(sample.VideoBitrate, videoBitrateReference)
	}
	if rec.Stats.Audio != nil {
		sample.AudioBitrate = rec.Stats.Audio.BitRate
		sample.AudioLevel = SignalLevel(sample.AudioBitrate, audioBitrateReference)
	}
	sample.FPS = rec.Stats.FPS

	if e.Historian != nil {
		e.Historian.Record(sample)
	}

	if err := e.save(rec); err != nil {
		e.logf(slog.LevelError, "persist stream failed", rec.ID, err)
	}

	if e.Events != nil {
		e.Events.Publish(TopicStreamUpdate, *rec)
	}
}

// fail records a retrieval/content error, marks the stream errored,
// persists, and publishes — the common early-return path of §4.E
// steps 1–2.
func (e *Evaluator) fail(rec *StreamRecord, now time.Time, errType ErrorType, details string) {
	rec.Status = StatusError
	e.appendError(rec, now, errType, details, "VIDEO", nil)

	if err := e.save(rec); err != nil {
		e.logf(slog.LevelError, "persist stream failed", rec.ID, err)
	}
	if e.Events != nil {
		e.Events.Publish(TopicStreamUpdate, *rec)
	}
}

// save ages out the ledger then persists rec, applying the
// drop-don't-retry optimistic concurrency policy (§5): a version
// conflict is logged at info level and swallowed; any other error is
// returned for the caller to log, and the sweep continues regardless.
func (e *Evaluator) save(rec *StreamRecord) error {
	now := e.Clock.Now()
	retention := e.ErrorRetention
	if retention <= 0 {
		retention = DefaultErrorRetention
	}
	AgeOutErrors(e.Log, rec, now, retention)

	if e.Streams == nil {
		return nil
	}
	if err := e.Streams.SaveStream(rec); err != nil {
		if err == ErrVersionConflict {
			e.logf(slog.LevelInfo, "save skipped: version conflict", rec.ID, err)
			return nil
		}
		return err
	}
	return nil
}

func (e *Evaluator) logf(level slog.Level, msg string, id StreamID, err error) {
	if e.Log == nil {
		return
	}
	e.Log.Log(context.Background(), level, msg, slog.String("stream_id", string(id)), slog.String("error", err.Error()))
}
