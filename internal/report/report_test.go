package report

import (
	"testing"

	"delivery-estimator/internal/features"
	"delivery-estimator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMinutes(t *testing.T) {
	tests := map[int]string{
		1:   "1 min",
		45:  "45 min",
		60:  "1 h 00 min",
		65:  "1 h 05 min",
		134: "2 h 14 min",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatMinutes(in))
	}
}

func TestFormatDecimal(t *testing.T) {
	assert.Equal(t, "0.48", FormatDecimal(10.0/21))
	assert.Equal(t, "12.00", FormatDecimal(12))
}

func sampleResult(kind models.PredictionKind, value int) *models.PredictionResult {
	return &models.PredictionResult{
		Kind:  kind,
		Value: value,
		Query: models.OrderQuery{
			StoreCategory:          "Fast Food",
			OrderDay:               "Monday",
			OrderHour:              19,
			TotalOnshiftCouriers:   10,
			TotalBusyCouriers:      4,
			TotalOutstandingOrders: 20,
		},
	}
}

func TestMetrics(t *testing.T) {
	tests := []struct {
		name           string
		result         *models.PredictionResult
		lang           features.Language
		validateOutput func(t *testing.T, metrics []Metric)
	}{
		{
			name:   "delivery time in spanish",
			result: sampleResult(models.KindDeliveryTime, 65),
			lang:   features.Spanish,
			validateOutput: func(t *testing.T, metrics []Metric) {
				require.NotEmpty(t, metrics)
				assert.Equal(t, "Duración Estimada", metrics[0].Label)
				assert.Equal(t, "1 h 05 min", metrics[0].Value)
				assert.Equal(t, "couriersOnshift", metrics[1].Key)
				assert.Equal(t, "Repartidores Disponibles", metrics[1].Label)
				assert.Equal(t, "10", metrics[1].Value)
				assert.Equal(t, 10, metrics[1].Numeric)
				last := metrics[len(metrics)-1]
				assert.Equal(t, "Lunes", last.Value)
				assert.Equal(t, "Comida Rápida", metrics[len(metrics)-2].Value)
				assert.Equal(t, "Categoría de Tienda", metrics[len(metrics)-2].Label)
			},
		},
		{
			name:   "courier demand in english",
			result: sampleResult(models.KindCourierDemand, 12),
			lang:   features.English,
			validateOutput: func(t *testing.T, metrics []Metric) {
				assert.Equal(t, "couriersNeeded", metrics[0].Key)
				assert.Equal(t, "Couriers Needed", metrics[0].Label)
				assert.Equal(t, "12", metrics[0].Value)
				assert.Equal(t, "Outstanding Orders", metrics[3].Label)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validateOutput(t, Metrics(tt.result, tt.lang))
		})
	}
}

func TestLabel_UnknownKey(t *testing.T) {
	assert.Equal(t, "mystery", Label("mystery", features.Spanish))
}

func TestSimulateDistribution(t *testing.T) {
	d := SimulateDistribution(44, 0, 0, 7)

	assert.Equal(t, DefaultStdDev, d.StdDev)
	assert.Len(t, d.Samples, DefaultSamples)

	total := 0
	for _, b := range d.Buckets {
		total += b.Count
	}
	assert.Equal(t, DefaultSamples, total)
	assert.InDelta(t, d.Min, d.Buckets[0].From, 1e-9)
	assert.InDelta(t, d.Max, d.Buckets[len(d.Buckets)-1].To, 1e-9)

	var sum float64
	for _, s := range d.Samples {
		sum += s
	}
	assert.InDelta(t, 44, sum/float64(len(d.Samples)), 2.5)

	again := SimulateDistribution(44, 5, 100, 7)
	assert.Equal(t, d.Samples, again.Samples)
}
