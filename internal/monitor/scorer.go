package monitor

import (
	"math"
	"strings"
	"time"
)

// RecentIssuesWindow is the sliding window span used by RecentIssuesFor
// (§6 configuration; default 12 minutes).
var RecentIssuesWindow = DefaultSlidingWindow

// RecentIssuesFor computes the sliding-window snapshot over rec's
// StreamErrors (Component D, "Window read"). On any failure (none
// expected given the in-process data shape, but the rule is specified
// defensively) it returns the zero RecentIssues.
func RecentIssuesFor(rec *StreamRecord, now time.Time) RecentIssues {
	if rec == nil {
		return RecentIssues{}
	}

	cutoff := now.Add(-RecentIssuesWindow)
	var out RecentIssues
	for _, e := range rec.StreamErrors {
		if e.Date.Before(cutoff) {
			continue
		}
		out.Errors++
		if e.ErrorType == "SEQUENCE_RESET" || strings.Contains(e.Details, "reset") {
			out.Resets++
		}
		if e.ErrorType == "SEQUENCE_JUMP" || strings.Contains(e.Details, "Sequence jumped") {
			out.Jumps++
		}
	}
	return out
}

// DecayFactor returns the forgiveness weight in [0,1] for elapsed time
// since lastErrorTime. A nil lastErrorTime (no error ever recorded)
// returns full forgiveness (1.0). A negative or non-finite elapsed
// duration returns 0.0.
func DecayFactor(lastErrorTime *time.Time, now time.Time) float64 {
	if lastErrorTime == nil {
		return 1.0
	}

	hours := now.Sub(*lastErrorTime).Hours()
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 {
		return 0.0
	}

	switch {
	case hours < 1:
		return 0.0
	case hours < 6:
		return 0.25
	case hours < 24:
		return 0.5
	case hours < 72:
		return 0.75
	default:
		return 0.9
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// HealthScore computes the overall health score (Component D). recent
// may be nil, in which case the all-time counters on rec.Health are
// used with the same caps and no decay (decay is ignored in the
// fallback path — see the Fallback scoring law in spec.md §8).
func HealthScore(rec *StreamRecord, recent *RecentIssues, decay float64) float64 {
	score := 100.0

	if rec.Health.IsStale {
		score -= 30
	}
	if rec.Status == StatusError {
		score -= 40
	}
	if rec.Status == StatusOffline {
		score -= 50
	}

	var jumps, resets, errs float64
	pen := 1 - decay

	if recent != nil {
		jumps = float64(recent.Jumps)
		resets = float64(recent.Resets)
		errs = float64(recent.Errors)
	} else {
		jumps = float64(rec.Health.SequenceJumps)
		resets = float64(rec.Health.SequenceResets)
		errs = float64(rec.Health.TotalErrors)
		pen = 1
	}

	score -= math.Min(jumps*5, 20) * pen
	score -= math.Min(resets*10, 30) * pen
	score -= math.Min(errs*2, 20) * pen

	return clamp(score, 0, 100)
}

// HealthScoreRounded rounds HealthScore to the nearest int, half away
// from zero, per the rounding convention documented once in DESIGN.md.
func HealthScoreRounded(rec *StreamRecord, recent *RecentIssues, decay float64) int {
	return int(math.Round(HealthScore(rec, recent, decay)))
}

// VideoScore computes the video-characterization score (Component D).
func VideoScore(stats Stats) int {
	if stats.Video == nil {
		return 50
	}
	score := 100.0
	if stats.Video.Codec == "" {
		score -= 20
	}
	if stats.Video.Width < 720 {
		score -= 10
	}
	return int(clamp(score, 0, 100))
}

// AudioScore computes the audio-characterization score (Component D).
func AudioScore(stats Stats) int {
	if stats.Audio == nil {
		return 50
	}
	score := 100.0
	if stats.Audio.Codec == "" {
		score -= 20
	}
	if stats.Audio.SampleRate < 44100 {
		score -= 10
	}
	if stats.Audio.IsSilent {
		score -= 15
	}
	return int(clamp(score, 0, 100))
}
