// Package handler provides HTTP handlers for Code Warden's JSON API.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sevigo/codewarden/internal/analysis"
	"github.com/sevigo/codewarden/internal/core"
	"github.com/sevigo/codewarden/internal/llm"
)

// AnalysisHandler exposes the read-through cache path over HTTP.
type AnalysisHandler struct {
	service *analysis.Service
	logger  *slog.Logger
}

func NewAnalysisHandler(service *analysis.Service, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{service: service, logger: logger}
}

type analyzeRequest struct {
	CacheType string `json:"cache_type"`
	RepoPath  string `json:"repo_path"`
	FilePath  string `json:"file_path"`
}

// Analyze runs (or serves from cache) one cache-type analysis of one file.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CacheType == "" || req.RepoPath == "" || req.FilePath == "" {
		writeError(w, http.StatusBadRequest, "cache_type, repo_path, and file_path are required")
		return
	}

	payload, err := h.service.Analyze(r.Context(), llm.CacheType(req.CacheType), req.RepoPath, req.FilePath)
	if err != nil {
		h.logger.Error("analysis failed", "error", err, "repo", req.RepoPath, "file", req.FilePath)
		if core.IsBudgetExceeded(err) {
			writeError(w, http.StatusPaymentRequired, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}
