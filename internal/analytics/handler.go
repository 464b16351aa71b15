package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	recorder *Recorder
	logger   *slog.Logger
}

func NewHandler(recorder *Recorder) *Handler {
	return &Handler{
		recorder: recorder,
		logger:   slog.Default().With("component", "analytics-handler"),
	}
}

// Stats serves the aggregated query statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.recorder.Stats()); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
