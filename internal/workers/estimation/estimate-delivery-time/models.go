// internal/workers/estimation/estimate-delivery-time/models.go
package estimatedeliverytime

import "delivery-estimator/internal/models"

// Input is the process variables of the job: an order query.
type Input = models.OrderQuery

type Output struct {
	Estimate         *models.PredictionResult `json:"estimate"`
	EstimatedMinutes int                      `json:"estimatedMinutes"`
	Display          string                   `json:"display"`
}
