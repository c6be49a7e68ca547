package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sevigo/codewarden/internal/analysis"
	"github.com/sevigo/codewarden/internal/queue"
	"github.com/sevigo/codewarden/internal/scheduler"
	"github.com/sevigo/codewarden/internal/server/handler"
	"github.com/sevigo/codewarden/internal/storage"
)

// NewRouter creates and configures a new HTTP router with middleware and API routes.
func NewRouter(analysisSvc *analysis.Service, store storage.Store, q *queue.Queue, sched *scheduler.Scheduler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		analysisHandler := handler.NewAnalysisHandler(analysisSvc, logger)
		r.Post("/analyze", analysisHandler.Analyze)

		cacheHandler := handler.NewCacheHandler(store, logger)
		r.Get("/cache/stats", cacheHandler.Stats)
		r.Delete("/cache", cacheHandler.Clear)
		r.Post("/cache/prune", cacheHandler.Prune)

		queueHandler := handler.NewQueueHandler(q, logger)
		r.Post("/queue", queueHandler.Add)
		r.Get("/queue", queueHandler.List)
		r.Post("/queue/{id}/advance", queueHandler.Advance)
		r.Delete("/queue/{id}", queueHandler.Delete)

		scanHandler := handler.NewScanHandler(sched, logger)
		r.Post("/repositories/{id}/force-scan", scanHandler.ForceScan)
	})

	return r
}
