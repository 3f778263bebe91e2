// Package api exposes the monitor's read-only operational HTTP handlers:
// health, the stream list, and per-stream snapshots. The Prometheus
// /metrics route is served by platform/metrics and mounted in
// cmd/monitor. The monitor
// itself never accepts writes over HTTP — stream definitions are
// created and deleted externally (spec.md §1 Non-goals).
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Suraj-B12/HLS-Monitor/internal/monitor"

	"github.com/go-chi/chi/v5"
)

// Handler serves the monitor's operational endpoints using go-chi.
// Grounded on internal/orchestrator/handler.go's shape (chi URL params,
// status-code-first error handling, slog logging), rewired from
// write-style segment/playlist endpoints to read-only stream snapshots.
type Handler struct {
	streams monitor.StreamStore
	log     *slog.Logger
}

// NewHandler returns a Handler backed by the given StreamStore.
func NewHandler(streams monitor.StreamStore, log *slog.Logger) *Handler {
	return &Handler{streams: streams, log: log}
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ListStreams handles GET /streams. It returns every known stream
// record as JSON, most recently polled information included.
func (h *Handler) ListStreams(w http.ResponseWriter, r *http.Request) {
	recs, err := h.streams.ListStreams()
	if err != nil {
		h.log.Error("list streams failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(recs)
}

// GetStream handles GET /streams/{stream_id}.
func (h *Handler) GetStream(w http.ResponseWriter, r *http.Request) {
	streamID := monitor.StreamID(chi.URLParam(r, "stream_id"))
	if streamID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	rec, err := h.streams.GetStream(streamID)
	if err != nil {
		if err == monitor.ErrNotFound {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.log.Error("get stream failed",
			slog.String("stream_id", string(streamID)),
			slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(rec)
}
