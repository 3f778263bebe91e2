package monitor

import (
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"
)

var eidFormat = regexp.MustCompile(`^eid-[0-9]+-[0-9a-z]{9}$`)

func TestAppendError_setsFieldsAndBookkeeping(t *testing.T) {
	rec := &StreamRecord{Stats: Stats{Bandwidth: 5000000}}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	AppendError(rec, now, ErrorPlaylistContent, "media playlist has no segments", "", nil)

	if len(rec.StreamErrors) != 1 {
		t.Fatalf("expected 1 error entry, got %d", len(rec.StreamErrors))
	}
	entry := rec.StreamErrors[0]
	if entry.MediaType != "VIDEO" {
		t.Errorf("MediaType defaulted to %q, want VIDEO", entry.MediaType)
	}
	if entry.Variant != "5000000" {
		t.Errorf("Variant = %q, want 5000000", entry.Variant)
	}
	if !strings.HasPrefix(entry.EID, "eid-") {
		t.Errorf("EID = %q, want eid- prefix", entry.EID)
	}
	if !eidFormat.MatchString(entry.EID) {
		t.Errorf("EID = %q, want format eid-<unix-ms>-<9-char-base36>", entry.EID)
	}
	if rec.Health.TotalErrors != 1 {
		t.Errorf("TotalErrors = %d, want 1", rec.Health.TotalErrors)
	}
	if rec.Health.TimeSinceLastError != 0 {
		t.Errorf("TimeSinceLastError = %d, want 0", rec.Health.TimeSinceLastError)
	}
	if rec.Health.LastErrorTime == nil || !rec.Health.LastErrorTime.Equal(now) {
		t.Errorf("LastErrorTime = %v, want %v", rec.Health.LastErrorTime, now)
	}
}

func TestAppendError_unknownVariantWhenNoBandwidth(t *testing.T) {
	rec := &StreamRecord{}
	AppendError(rec, time.Now(), ErrorManifestRetrieval, "boom", "VIDEO", nil)
	if rec.StreamErrors[0].Variant != "unknown" {
		t.Errorf("Variant = %q, want unknown", rec.StreamErrors[0].Variant)
	}
}

func TestAppendError_distinctEIDsAcrossCalls(t *testing.T) {
	rec := &StreamRecord{}
	now := time.Now()
	AppendError(rec, now, ErrorManifestRetrieval, "a", "VIDEO", nil)
	AppendError(rec, now, ErrorManifestRetrieval, "b", "VIDEO", nil)
	if rec.StreamErrors[0].EID == rec.StreamErrors[1].EID {
		t.Error("expected distinct EIDs for successive appends")
	}
}

func TestAgeOutErrors_dropsExpiredAndMalformed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	retention := 7 * 24 * time.Hour

	rec := &StreamRecord{
		StreamErrors: []ErrorEntry{
			{EID: "recent", Date: now.Add(-1 * time.Hour)},
			{EID: "expired", Date: now.Add(-8 * 24 * time.Hour)},
			{EID: "malformed", Date: time.Time{}},
			{EID: "boundary", Date: now.Add(-retention)},
		},
	}

	AgeOutErrors(slog.Default(), rec, now, retention)

	if len(rec.StreamErrors) != 2 {
		t.Fatalf("expected 2 surviving entries, got %d: %+v", len(rec.StreamErrors), rec.StreamErrors)
	}
	kept := map[string]bool{}
	for _, e := range rec.StreamErrors {
		kept[e.EID] = true
	}
	if !kept["recent"] || !kept["boundary"] {
		t.Errorf("expected recent and boundary entries kept, got %v", rec.StreamErrors)
	}
	if kept["expired"] || kept["malformed"] {
		t.Errorf("expected expired and malformed entries dropped, got %v", rec.StreamErrors)
	}
}

func TestAgeOutErrors_emptyLedger(t *testing.T) {
	rec := &StreamRecord{}
	AgeOutErrors(slog.Default(), rec, time.Now(), 24*time.Hour)
	if len(rec.StreamErrors) != 0 {
		t.Errorf("expected empty ledger to stay empty, got %d entries", len(rec.StreamErrors))
	}
}
