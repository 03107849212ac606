// Package inference loads trained model artifacts and runs single-row
// predictions against normalized feature records.
package inference

import (
	"context"
	"fmt"
	"math"
	"time"

	apperrors "delivery-estimator/internal/common/errors"
	"delivery-estimator/internal/common/logger"
	"delivery-estimator/internal/common/metrics"
	"delivery-estimator/internal/features"
	"delivery-estimator/internal/models"

	"github.com/google/uuid"
)

// Invoker turns an order query into a canonical prediction using a handle's model.
type Invoker struct {
	normalizer *features.Normalizer
	log        logger.Logger
	now        func() time.Time
}

func NewInvoker(log logger.Logger) *Invoker {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Invoker{
		normalizer: features.NewNormalizer(),
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Predict loads the handle's model if needed, normalizes q against the model's
// schema, runs one prediction and converts the result to canonical units.
func (inv *Invoker) Predict(ctx context.Context, q models.OrderQuery, h *Handle) (*models.PredictionResult, error) {
	start := time.Now()
	result, err := inv.predict(ctx, q, h)
	if err != nil {
		code := apperrors.Normalize(err).Code
		metrics.PredictionErrors.WithLabelValues(h.Name(), string(code)).Inc()
		inv.log.Warn("prediction failed", map[string]interface{}{
			"model":     h.Name(),
			"errorCode": code,
			"error":     err,
		})
		return nil, err
	}

	metrics.PredictionsTotal.WithLabelValues(h.Name(), string(result.Kind)).Inc()
	metrics.PredictionDuration.WithLabelValues(h.Name()).Observe(time.Since(start).Seconds())
	inv.log.Debug("prediction completed", map[string]interface{}{
		"model":     h.Name(),
		"requestId": result.RequestID,
		"value":     result.Value,
		"unit":      result.Unit,
	})
	return result, nil
}

func (inv *Invoker) predict(ctx context.Context, q models.OrderQuery, h *Handle) (*models.PredictionResult, error) {
	loaded, err := h.Load(ctx)
	if err != nil {
		return nil, err
	}

	canonical, err := features.Canonicalize(q)
	if err != nil {
		return nil, err
	}
	rec, err := inv.normalizer.Encode(canonical, loaded.Schema)
	if err != nil {
		return nil, err
	}
	if !rec.Matches(loaded.Schema.Columns()) {
		return nil, apperrors.NewSchemaMismatchError("record columns differ from schema columns")
	}

	raw, err := safePredict(loaded.Model, rec)
	if err != nil {
		if apperrors.Normalize(err).Code == apperrors.ErrCodeSchemaMismatch {
			return nil, err
		}
		return nil, apperrors.NewInferenceFailedError(h.Name(), err.Error())
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return nil, apperrors.NewInferenceFailedError(h.Name(), fmt.Sprintf("model returned non-finite value %v", raw))
	}

	value, unit, err := NormalizeUnit(raw, loaded.Schema.Unit)
	if err != nil {
		return nil, apperrors.NewSchemaMismatchError(err.Error())
	}

	echo := canonical.Query()
	echo.Language = q.Language

	return &models.PredictionResult{
		Model:        h.Name(),
		ModelVersion: loaded.Schema.Version,
		Kind:         models.PredictionKind(loaded.Schema.Kind),
		Value:        value,
		Unit:         unit,
		Raw:          raw,
		RawUnit:      string(loaded.Schema.Unit),
		Query:        echo,
		Features:     rec.Map(),
		RequestID:    uuid.NewString(),
		PredictedAt:  inv.now(),
	}, nil
}

// safePredict converts a panic inside the model into an error.
func safePredict(m Model, rec features.Record) (raw float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	return m.Predict(rec)
}
