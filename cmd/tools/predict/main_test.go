package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"delivery-estimator/internal/common/config"
	apperrors "delivery-estimator/internal/common/errors"
	"delivery-estimator/internal/common/logger"
	"delivery-estimator/internal/features"
	"delivery-estimator/internal/models"
	"delivery-estimator/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	fixture := func(name string) string {
		p, err := filepath.Abs(filepath.Join("..", "..", "..", "internal", "inference", "testdata", name))
		require.NoError(t, err)
		return p
	}
	path := filepath.Join(t.TempDir(), "registry.json")
	reg := &registry.ModelRegistry{Version: "1", Models: []registry.Model{
		{Name: "delivery-time", Kind: "delivery_time", URI: fixture("delivery-time.json")},
		{Name: "courier-demand", Kind: "courier_demand", URI: fixture("courier-demand.json")},
	}}
	require.NoError(t, reg.Save(path))

	return &config.Config{Models: config.ModelsConfig{
		RegistrySource:     "file",
		RegistryPath:       path,
		FetchTimeout:       2000,
		DeliveryTimeModel:  "delivery-time",
		CourierDemandModel: "courier-demand",
	}}
}

func testQuery() models.OrderQuery {
	return models.OrderQuery{
		StoreCategory:          "Fast Food",
		OrderDay:               "Monday",
		OrderHour:              19,
		TotalOnshiftCouriers:   10,
		TotalBusyCouriers:      4,
		TotalOutstandingOrders: 20,
	}
}

// ==========================
// runPredict Tests
// ==========================

func TestRunPredict(t *testing.T) {
	tests := []struct {
		name           string
		opts           predictOptions
		validateOutput func(t *testing.T, out string)
	}{
		{
			name: "both models in english",
			opts: predictOptions{Query: testQuery(), Language: features.English},
			validateOutput: func(t *testing.T, out string) {
				assert.Contains(t, out, "# delivery-time")
				assert.Contains(t, out, "# courier-demand")
				assert.Contains(t, out, "Estimated Duration")
				assert.Contains(t, out, "44 min")
				assert.Contains(t, out, "Couriers Needed")
			},
		},
		{
			name: "spanish labels",
			opts: predictOptions{Query: testQuery(), Model: "courier-demand", Language: features.Spanish},
			validateOutput: func(t *testing.T, out string) {
				assert.Contains(t, out, "Repartidores Necesarios")
				assert.Contains(t, out, "Lunes")
				assert.NotContains(t, out, "# delivery-time")
			},
		},
		{
			name: "distribution",
			opts: predictOptions{Query: testQuery(), Model: "delivery-time", Distribution: true, Seed: 7},
			validateOutput: func(t *testing.T, out string) {
				assert.Contains(t, out, "44 min")
				assert.Regexp(t, `\d+\.\d{2}-\d+\.\d{2}`, out)
			},
		},
		{
			name: "json",
			opts: predictOptions{Query: testQuery(), JSON: true},
			validateOutput: func(t *testing.T, out string) {
				var results []models.PredictionResult
				require.NoError(t, json.Unmarshal([]byte(out), &results))
				require.Len(t, results, 2)
				assert.Equal(t, 44, results[0].Value)
				assert.Equal(t, 10, results[1].Value)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := runPredict(context.Background(), testConfig(t), logger.NewTestLogger(t), tt.opts, &buf)
			require.NoError(t, err)
			tt.validateOutput(t, buf.String())
		})
	}
}

func TestRunPredict_Errors(t *testing.T) {
	q := testQuery()
	q.StoreCategory = "Bakery"
	err := runPredict(context.Background(), testConfig(t), logger.NewNoOpLogger(), predictOptions{Query: q}, &bytes.Buffer{})
	assert.True(t, errors.Is(err, apperrors.ErrUnknownCategory), "got %v", err)

	err = runPredict(context.Background(), testConfig(t), logger.NewNoOpLogger(), predictOptions{Query: testQuery(), Model: "nope"}, &bytes.Buffer{})
	assert.True(t, errors.Is(err, apperrors.ErrModelNotFound), "got %v", err)
}
