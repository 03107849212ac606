// Package report formats predictions for display: hour/minute breakdowns,
// bilingual metric labels and a simulated delivery-time distribution.
package report

import (
	"fmt"
	"math"
	"math/rand"

	"delivery-estimator/internal/features"
	"delivery-estimator/internal/models"
)

// FormatMinutes renders minutes as "45 min" or "1 h 05 min".
func FormatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%d h %02d min", minutes/60, minutes%60)
}

// FormatDecimal renders v with two decimals.
func FormatDecimal(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

type Metric struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Value   string `json:"value"`
	Numeric int    `json:"numeric"`
}

var labels = map[string][2]string{
	"estimatedDuration": {"Estimated Duration", "Duración Estimada"},
	"couriersNeeded":    {"Couriers Needed", "Repartidores Necesarios"},
	"couriersOnshift":   {"On-Shift Couriers", "Repartidores Disponibles"},
	"couriersBusy":      {"Busy Couriers", "Repartidores Ocupados"},
	"outstandingOrders": {"Outstanding Orders", "Pedidos Pendientes"},
	"storeCategory":     {"Store Category", "Categoría de Tienda"},
	"orderDay":          {"Order Day", "Día del Pedido"},
}

// Label returns the display label for a metric key.
func Label(key string, lang features.Language) string {
	l, ok := labels[key]
	if !ok {
		return key
	}
	if lang == features.Spanish {
		return l[1]
	}
	return l[0]
}

// Metrics builds the labelled metric list shown next to a prediction.
func Metrics(res *models.PredictionResult, lang features.Language) []Metric {
	q := res.Query
	var out []Metric

	switch res.Kind {
	case models.KindDeliveryTime:
		out = append(out, Metric{Key: "estimatedDuration", Value: FormatMinutes(res.Value), Numeric: res.Value})
	case models.KindCourierDemand:
		out = append(out, Metric{Key: "couriersNeeded", Value: fmt.Sprintf("%d", res.Value), Numeric: res.Value})
	}

	out = append(out,
		Metric{Key: "couriersOnshift", Value: fmt.Sprintf("%d", q.TotalOnshiftCouriers), Numeric: q.TotalOnshiftCouriers},
		Metric{Key: "couriersBusy", Value: fmt.Sprintf("%d", q.TotalBusyCouriers), Numeric: q.TotalBusyCouriers},
		Metric{Key: "outstandingOrders", Value: fmt.Sprintf("%d", q.TotalOutstandingOrders), Numeric: q.TotalOutstandingOrders},
	)

	if c, err := features.CanonicalCategory(q.StoreCategory); err == nil {
		out = append(out, Metric{Key: "storeCategory", Value: c.Label(lang), Numeric: int(c)})
	}
	if d, err := features.CanonicalDay(q.OrderDay); err == nil {
		out = append(out, Metric{Key: "orderDay", Value: d.Label(lang), Numeric: d.Index()})
	}

	for i := range out {
		out[i].Label = Label(out[i].Key, lang)
	}
	return out
}

// ==========================
// Simulated distribution
// ==========================

const (
	DefaultStdDev  = 5.0
	DefaultSamples = 100
	defaultBuckets = 10
)

type Bucket struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int     `json:"count"`
}

type Distribution struct {
	Mean    float64   `json:"mean"`
	StdDev  float64   `json:"stdDev"`
	Samples []float64 `json:"-"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Buckets []Bucket  `json:"buckets"`
}

// SimulateDistribution draws n normal samples around mean and buckets them.
// The same seed always yields the same distribution.
func SimulateDistribution(mean, stddev float64, n int, seed int64) Distribution {
	if stddev <= 0 {
		stddev = DefaultStdDev
	}
	if n <= 0 {
		n = DefaultSamples
	}

	rng := rand.New(rand.NewSource(seed))
	samples := make([]float64, n)
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range samples {
		s := rng.NormFloat64()*stddev + mean
		samples[i] = s
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}

	width := (hi - lo) / defaultBuckets
	buckets := make([]Bucket, defaultBuckets)
	for i := range buckets {
		buckets[i] = Bucket{From: lo + float64(i)*width, To: lo + float64(i+1)*width}
	}
	for _, s := range samples {
		idx := defaultBuckets - 1
		if width > 0 {
			idx = int((s - lo) / width)
			if idx >= defaultBuckets {
				idx = defaultBuckets - 1
			}
		}
		buckets[idx].Count++
	}

	return Distribution{
		Mean:    mean,
		StdDev:  stddev,
		Samples: samples,
		Min:     lo,
		Max:     hi,
		Buckets: buckets,
	}
}
