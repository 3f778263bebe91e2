package monitor

import (
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// eidSuffixLen is the number of base36 characters appended after the
// timestamp in a ledger entry ID (spec.md §3: "eid-<unix-ms>-<9-char-base36>").
const eidSuffixLen = 9

// newEID returns an identifier of the form "eid-<unix-ms>-<9-char-base36>".
// Grounded on whisper-darkly-sticky-dvr's use of google/uuid for
// externally-visible record identifiers, re-encoded to base36 to match
// the documented ID format instead of surfacing a raw UUID string.
func newEID(now time.Time) string {
	id := uuid.New()
	n := new(big.Int).SetBytes(id[:])
	s := n.Text(36)
	if len(s) < eidSuffixLen {
		s = strings.Repeat("0", eidSuffixLen-len(s)) + s
	}
	return fmt.Sprintf("eid-%d-%s", now.UnixMilli(), s[len(s)-eidSuffixLen:])
}

// AppendError builds a new ledger entry and pushes it onto rec's
// StreamErrors (Component C). mediaType defaults to "VIDEO" when
// empty; code is optional.
func AppendError(rec *StreamRecord, now time.Time, errType ErrorType, details, mediaType string, code *string) {
	if mediaType == "" {
		mediaType = "VIDEO"
	}

	variant := "unknown"
	if rec.Stats.Bandwidth > 0 {
		variant = fmt.Sprintf("%d", rec.Stats.Bandwidth)
	}

	entry := ErrorEntry{
		EID:       newEID(now),
		Date:      now,
		ErrorType: errType,
		MediaType: mediaType,
		Variant:   variant,
		Details:   details,
		Code:      code,
	}

	rec.StreamErrors = append(rec.StreamErrors, entry)
	rec.Health.TotalErrors++
	rec.Health.TimeSinceLastError = 0
	t := now
	rec.Health.LastErrorTime = &t
}

// AgeOutErrors filters rec.StreamErrors down to entries with
// Date >= now-retention, dropping malformed entries (zero Date, which
// Go's JSON/struct decode would leave as such when a source cannot
// parse a date). This must never block or fail the caller: on any
// internal problem it logs and falls back to the original list.
//
// Grounded on internal/orchestrator/service.go's filter-over-a-slice
// shape (contiguousVisibleSegments), generalized to filter-by-age.
func AgeOutErrors(log *slog.Logger, rec *StreamRecord, now time.Time, retention time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			if log != nil {
				log.Error("age-out errors panicked, keeping original ledger", slog.Any("recover", r))
			}
		}
	}()

	cutoff := now.Add(-retention)
	kept := make([]ErrorEntry, 0, len(rec.StreamErrors))
	for _, e := range rec.StreamErrors {
		if e.Date.IsZero() {
			continue
		}
		if !e.Date.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	rec.StreamErrors = kept
}
