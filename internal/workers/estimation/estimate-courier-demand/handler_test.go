// internal/workers/estimation/estimate-courier-demand/handler_test.go
package estimatecourierdemand

import (
	"context"
	"errors"
	"testing"
	"time"

	"delivery-estimator/internal/artifact"
	apperrors "delivery-estimator/internal/common/errors"
	"delivery-estimator/internal/common/logger"
	"delivery-estimator/internal/inference"
	"delivery-estimator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestInput() *Input {
	return &Input{
		StoreCategory:          "Fast Food",
		OrderDay:               "Monday",
		OrderHour:              19,
		TotalOnshiftCouriers:   10,
		TotalBusyCouriers:      4,
		TotalOutstandingOrders: 20,
	}
}

func fixtureEstimator(t *testing.T) *inference.Estimator {
	t.Helper()
	log := logger.NewTestLogger(t)
	h := inference.NewHandle("courier-demand",
		&artifact.FileSource{Path: "../../../inference/testdata/courier-demand.json"}, inference.WithLogger(log))
	return inference.NewEstimator(inference.NewCatalogFromHandles(log, h), inference.NewInvoker(log), "delivery-time", "courier-demand")
}

type stubEstimator struct {
	result *models.PredictionResult
	err    error
}

func (s *stubEstimator) CourierDemand(ctx context.Context, q models.OrderQuery) (*models.PredictionResult, error) {
	return s.result, s.err
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	handler := NewHandler(createTestConfig(), fixtureEstimator(t), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.Equal(t, 10, output.CouriersNeeded)
	assert.Equal(t, 6, output.CouriersAvailable)
	assert.Equal(t, 4, output.Shortfall)
	assert.Equal(t, models.UnitCouriers, output.Estimate.Unit)
}

func TestHandler_Execute_Shortfall(t *testing.T) {
	tests := []struct {
		name          string
		needed        int
		busy          int
		wantShortfall int
	}{
		{name: "enough couriers free", needed: 3, busy: 4, wantShortfall: 0},
		{name: "exactly enough", needed: 6, busy: 4, wantShortfall: 0},
		{name: "short", needed: 9, busy: 8, wantShortfall: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubEstimator{result: &models.PredictionResult{Kind: models.KindCourierDemand, Value: tt.needed}}
			handler := NewHandler(createTestConfig(), stub, logger.NewNoOpLogger())

			input := createTestInput()
			input.TotalBusyCouriers = tt.busy

			output, err := handler.Execute(context.Background(), input)

			require.NoError(t, err)
			assert.Equal(t, tt.wantShortfall, output.Shortfall)
		})
	}
}

func TestHandler_Execute_Errors(t *testing.T) {
	handler := NewHandler(createTestConfig(), fixtureEstimator(t), logger.NewTestLogger(t))

	input := createTestInput()
	input.OrderDay = "Someday"
	_, err := handler.Execute(context.Background(), input)
	assert.True(t, errors.Is(err, apperrors.ErrUnknownDay))

	input = createTestInput()
	input.OrderHour = -1
	_, err = handler.Execute(context.Background(), input)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidNumericDomain))

	stub := &stubEstimator{err: apperrors.NewInferenceFailedError("courier-demand", "boom")}
	_, err = NewHandler(createTestConfig(), stub, logger.NewNoOpLogger()).Execute(context.Background(), createTestInput())
	assert.True(t, errors.Is(err, apperrors.ErrInferenceFailed))
}
