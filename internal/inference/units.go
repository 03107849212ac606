package inference

import (
	"fmt"
	"math"

	"delivery-estimator/internal/modelschema"
	"delivery-estimator/internal/models"
)

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// NormalizeUnit converts a raw prediction to its canonical integer and unit.
// Durations become whole minutes with a floor of 1; courier counts are never negative.
func NormalizeUnit(raw float64, unit modelschema.Unit) (int, string, error) {
	switch unit {
	case modelschema.UnitSeconds:
		return atLeast(roundHalfUp(raw/60), 1), models.UnitMinutes, nil
	case modelschema.UnitMinutes:
		return atLeast(roundHalfUp(raw), 1), models.UnitMinutes, nil
	case modelschema.UnitCouriers:
		return atLeast(roundHalfUp(raw), 0), models.UnitCouriers, nil
	default:
		return 0, "", fmt.Errorf("unknown unit %q", unit)
	}
}

func atLeast(v, floor int) int {
	if v < floor {
		return floor
	}
	return v
}
