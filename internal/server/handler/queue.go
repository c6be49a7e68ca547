package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sevigo/codewarden/internal/queue"
	"github.com/sevigo/codewarden/internal/storage"
)

// QueueHandler exposes the persistent work-queue's CRUD operations.
type QueueHandler struct {
	queue  *queue.Queue
	logger *slog.Logger
}

func NewQueueHandler(q *queue.Queue, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{queue: q, logger: logger}
}

func (h *QueueHandler) Add(w http.ResponseWriter, r *http.Request) {
	var item storage.QueueItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.queue.Add(r.Context(), &item); err != nil {
		h.logger.Error("failed to add queue item", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := storage.QueueFilter{
		Stage:    r.URL.Query().Get("stage"),
		RepoPath: r.URL.Query().Get("repo_path"),
	}
	items, err := h.queue.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list queue items", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type advanceRequest struct {
	Stage string `json:"stage"`
}

func (h *QueueHandler) Advance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid queue item id")
		return
	}
	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Stage == "" {
		writeError(w, http.StatusBadRequest, "stage is required")
		return
	}
	if err := h.queue.Advance(r.Context(), id, req.Stage); err != nil {
		h.logger.Error("failed to advance queue item", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QueueHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid queue item id")
		return
	}
	if err := h.queue.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete queue item", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
