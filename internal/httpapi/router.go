// Package httpapi exposes runs over HTTP: create, inspect, list job
// outcomes, upload corpora, health and Prometheus metrics.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tessgen/internal/config"
	"tessgen/internal/httpapi/handlers"
	"tessgen/internal/httpkit"
	"tessgen/internal/pkg/logger"
	"tessgen/internal/pkg/middleware"
)

func NewRouter(d handlers.Deps) http.Handler {
	if d.Log == nil {
		d.Log = logger.NewDefault()
	}
	log := d.Log
	h := handlers.New(d)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: config.CSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:8081",
			"http://localhost:5173",
		}),
		ExposedHeaders: []string{middleware.RequestIDHeader},
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/corpora", middleware.WrapHandler(log, h.UploadCorpus))

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", middleware.WrapHandler(log, h.CreateRun))
		r.Get("/", middleware.WrapHandler(log, h.ListRuns))
		r.Get("/{runId}", middleware.WrapHandler(log, h.GetRun))
		r.Get("/{runId}/jobs", middleware.WrapHandler(log, h.ListJobs))
	})

	return r
}
