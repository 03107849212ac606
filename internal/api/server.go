// Package api exposes the estimators and model management over HTTP.
package api

import (
	"net/http"
	"time"

	"delivery-estimator/internal/common/logger"
	"delivery-estimator/internal/inference"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	MetricsPath    string
	// Seed fixes the simulated distribution; zero derives it from the query.
	Seed int64
}

// Server holds the HTTP handlers.
type Server struct {
	estimator *inference.Estimator
	log       logger.Logger
	opts      Options
}

func NewServer(estimator *inference.Estimator, log logger.Logger, opts Options) *Server {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Server{estimator: estimator, log: log, opts: opts}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	if s.opts.MetricsPath != "" {
		r.Handle(s.opts.MetricsPath, promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/estimates", s.estimateAll)
		r.Post("/estimates/delivery-time", s.estimateDeliveryTime)
		r.Post("/estimates/courier-demand", s.estimateCourierDemand)

		r.Get("/models", s.listModels)
		r.Post("/models/{name}/reload", s.reloadModel)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug("request served", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  middleware.GetReqID(r.Context()),
		})
	})
}
