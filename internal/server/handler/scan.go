package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sevigo/codewarden/internal/scheduler"
)

// ScanHandler exposes manual scan control over the Scheduler.
type ScanHandler struct {
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

func NewScanHandler(sched *scheduler.Scheduler, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{scheduler: sched, logger: logger}
}

// ForceScan clears the repository's last_scan_check so the next scheduler
// tick picks it up immediately.
func (h *ScanHandler) ForceScan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid repository id")
		return
	}
	if err := h.scheduler.ForceScan(r.Context(), id); err != nil {
		h.logger.Error("failed to force scan", "error", err, "repository_id", id)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
