package api

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"time"

	"delivery-estimator/internal/features"
	"delivery-estimator/internal/models"
	"delivery-estimator/internal/report"

	"github.com/go-chi/chi/v5"
)

// EstimateResponse wraps one prediction with its display data.
type EstimateResponse struct {
	Estimate     *models.PredictionResult `json:"estimate"`
	Display      string                   `json:"display"`
	Metrics      []report.Metric          `json:"metrics"`
	Distribution *report.Distribution     `json:"distribution,omitempty"`
}

// CombinedResponse is returned by POST /v1/estimates.
type CombinedResponse struct {
	DeliveryTime  *EstimateResponse `json:"deliveryTime"`
	CourierDemand *EstimateResponse `json:"courierDemand"`
}

type estimateFunc func(ctx context.Context, q models.OrderQuery) (*models.PredictionResult, error)

// estimateDeliveryTime handles POST /v1/estimates/delivery-time
func (s *Server) estimateDeliveryTime(w http.ResponseWriter, r *http.Request) {
	s.estimateOne(w, r, s.estimator.DeliveryTime)
}

// estimateCourierDemand handles POST /v1/estimates/courier-demand
func (s *Server) estimateCourierDemand(w http.ResponseWriter, r *http.Request) {
	s.estimateOne(w, r, s.estimator.CourierDemand)
}

func (s *Server) estimateOne(w http.ResponseWriter, r *http.Request, fn estimateFunc) {
	q, err := decodeOrderQuery(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := fn(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.present(r, q, res))
}

// estimateAll handles POST /v1/estimates. Both estimates must succeed.
func (s *Server) estimateAll(w http.ResponseWriter, r *http.Request) {
	q, err := decodeOrderQuery(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	eta, err := s.estimator.DeliveryTime(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	couriers, err := s.estimator.CourierDemand(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CombinedResponse{
		DeliveryTime:  s.present(r, q, eta),
		CourierDemand: s.present(r, q, couriers),
	})
}

func (s *Server) present(r *http.Request, q models.OrderQuery, res *models.PredictionResult) *EstimateResponse {
	lang := requestLanguage(r, q)

	out := &EstimateResponse{
		Estimate: res,
		Metrics:  report.Metrics(res, lang),
	}
	switch res.Kind {
	case models.KindDeliveryTime:
		out.Display = report.FormatMinutes(res.Value)
	default:
		out.Display = strconv.Itoa(res.Value)
	}

	if res.Kind == models.KindDeliveryTime && wantsDistribution(r) {
		d := report.SimulateDistribution(float64(res.Value), report.DefaultStdDev, report.DefaultSamples, s.seedFor(res))
		out.Distribution = &d
	}
	return out
}

// requestLanguage prefers ?lang over the body's language field.
func requestLanguage(r *http.Request, q models.OrderQuery) features.Language {
	if l := r.URL.Query().Get("lang"); l != "" {
		return features.ParseLanguage(l)
	}
	return features.ParseLanguage(q.Language)
}

func wantsDistribution(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("distribution"))
	return err == nil && v
}

// seedFor derives a stable seed from the canonical query so the same order
// always charts the same distribution.
func (s *Server) seedFor(res *models.PredictionResult) int64 {
	if s.opts.Seed != 0 {
		return s.opts.Seed
	}
	q := res.Query
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%d|%d|%d|%d|%d", res.Model, q.StoreCategory, q.OrderDay, q.OrderHour,
		q.TotalOnshiftCouriers, q.TotalBusyCouriers, q.TotalOutstandingOrders, res.Value)
	return int64(h.Sum64() >> 1)
}

// listModels handles GET /v1/models
func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	statuses := s.estimator.Catalog.Statuses()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": statuses,
		"count":  len(statuses),
	})
}

// reloadModel handles POST /v1/models/{name}/reload
func (s *Server) reloadModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h, err := s.estimator.Catalog.Get(name)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Reload(r.Context()); err != nil {
		s.log.Warn("model reload failed", map[string]interface{}{"model": name, "error": err})
		writeError(w, err)
		return
	}

	s.log.Info("model reloaded", map[string]interface{}{"model": name})
	writeJSON(w, http.StatusOK, h.Status())
}

// health handles GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// ready handles GET /ready. It is 503 until every preload model is loaded.
func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if !s.estimator.Catalog.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"models": s.estimator.Catalog.Statuses(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
}
