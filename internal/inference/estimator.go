package inference

import (
	"context"

	"delivery-estimator/internal/models"
)

// Estimator binds the two default estimates to registered model names.
// It is shared by the HTTP API and the job workers.
type Estimator struct {
	Catalog            *Catalog
	Invoker            *Invoker
	DeliveryTimeModel  string
	CourierDemandModel string
}

func NewEstimator(catalog *Catalog, invoker *Invoker, deliveryTimeModel, courierDemandModel string) *Estimator {
	return &Estimator{
		Catalog:            catalog,
		Invoker:            invoker,
		DeliveryTimeModel:  deliveryTimeModel,
		CourierDemandModel: courierDemandModel,
	}
}

// Estimate runs the named model against q.
func (e *Estimator) Estimate(ctx context.Context, model string, q models.OrderQuery) (*models.PredictionResult, error) {
	h, err := e.Catalog.Get(model)
	if err != nil {
		return nil, err
	}
	return e.Invoker.Predict(ctx, q, h)
}

func (e *Estimator) DeliveryTime(ctx context.Context, q models.OrderQuery) (*models.PredictionResult, error) {
	return e.Estimate(ctx, e.DeliveryTimeModel, q)
}

func (e *Estimator) CourierDemand(ctx context.Context, q models.OrderQuery) (*models.PredictionResult, error) {
	return e.Estimate(ctx, e.CourierDemandModel, q)
}
