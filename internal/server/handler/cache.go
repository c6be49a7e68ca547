package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sevigo/codewarden/internal/storage"
)

// CacheHandler exposes CacheStore's stats/clear/prune operations.
type CacheHandler struct {
	store  storage.Store
	logger *slog.Logger
}

func NewCacheHandler(store storage.Store, logger *slog.Logger) *CacheHandler {
	return &CacheHandler{store: store, logger: logger}
}

func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.CacheStats(r.Context())
	if err != nil {
		h.logger.Error("failed to read cache stats", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	cacheType := r.URL.Query().Get("cache_type")
	removed, err := h.store.ClearCache(r.Context(), cacheType)
	if err != nil {
		h.logger.Error("failed to clear cache", "error", err, "cache_type", cacheType)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

type pruneRequest struct {
	Strategy    string `json:"strategy"`
	TargetBytes int64  `json:"target_bytes"`
}

func (h *CacheHandler) Prune(w http.ResponseWriter, r *http.Request) {
	var req pruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Strategy == "" {
		req.Strategy = storage.StrategyLRU
	}

	removed, err := h.store.PruneCache(r.Context(), storage.PrunePolicy{
		Strategy:    req.Strategy,
		TargetBytes: req.TargetBytes,
	})
	if err != nil {
		h.logger.Error("failed to prune cache", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}
