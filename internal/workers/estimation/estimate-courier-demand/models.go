// internal/workers/estimation/estimate-courier-demand/models.go
package estimatecourierdemand

import "delivery-estimator/internal/models"

// Input is the process variables of the job: an order query.
type Input = models.OrderQuery

type Output struct {
	Estimate          *models.PredictionResult `json:"estimate"`
	CouriersNeeded    int                      `json:"couriersNeeded"`
	CouriersAvailable int                      `json:"couriersAvailable"`
	// Shortfall is how many more couriers are needed than are currently free.
	Shortfall int `json:"shortfall"`
}
