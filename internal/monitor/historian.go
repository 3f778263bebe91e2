package monitor

import "log/slog"

// Historian is the Metrics Historian (Component H): it writes one
// score sample per poll per stream. Failures are logged and never
// affect the stream update path (§4.H, §7).
type Historian struct {
	Store MetricsStore
	Log   *slog.Logger
}

// Record appends sample, logging (not propagating) any store error.
func (h *Historian) Record(sample MetricsSample) {
	if h == nil || h.Store == nil {
		return
	}
	if err := h.Store.AppendSample(sample); err != nil && h.Log != nil {
		h.Log.Error("metrics sample write failed",
			"stream_id", string(sample.StreamID),
			"error", err.Error())
	}
}
