// Package features turns raw bilingual order context into the exact feature
// record a trained model expects.
package features

import (
	"fmt"
	"strings"

	apperrors "delivery-estimator/internal/common/errors"
	"delivery-estimator/internal/modelschema"
	"delivery-estimator/internal/models"
)

// PartnerDensity is onshift couriers per outstanding order, with +1 in the
// denominator so an empty queue stays finite. The +1 is applied in float64 so
// outstanding == math.MaxInt cannot wrap.
func PartnerDensity(onshift, outstanding int) float64 {
	return float64(onshift) / (float64(outstanding) + 1)
}

// AdjustedPartnerDensity scales PartnerDensity by the category factor.
func AdjustedPartnerDensity(onshift, outstanding int, c Category) float64 {
	return PartnerDensity(onshift, outstanding) * AdjustmentFactor(c)
}

// Validate checks the numeric domains of a query.
func Validate(q models.OrderQuery) error {
	switch {
	case q.OrderHour < 0 || q.OrderHour > 23:
		return apperrors.NewInvalidNumericDomainError("orderHour", q.OrderHour, "0 <= orderHour <= 23")
	case q.TotalOnshiftCouriers < 1:
		return apperrors.NewInvalidNumericDomainError("totalOnshiftCouriers", q.TotalOnshiftCouriers, ">= 1")
	case q.TotalBusyCouriers < 0:
		return apperrors.NewInvalidNumericDomainError("totalBusyCouriers", q.TotalBusyCouriers, ">= 0")
	case q.TotalOutstandingOrders < 0:
		return apperrors.NewInvalidNumericDomainError("totalOutstandingOrders", q.TotalOutstandingOrders, ">= 0")
	case q.TotalBusyCouriers > q.TotalOnshiftCouriers:
		return apperrors.NewInvalidNumericDomainError("totalBusyCouriers", q.TotalBusyCouriers,
			fmt.Sprintf("<= totalOnshiftCouriers (%d)", q.TotalOnshiftCouriers))
	}
	return nil
}

// Canonical is a validated query with resolved labels.
type Canonical struct {
	Category    Category
	Day         Day
	Hour        int
	Onshift     int
	Busy        int
	Outstanding int
}

// Canonicalize validates q and resolves its labels.
func Canonicalize(q models.OrderQuery) (Canonical, error) {
	if err := Validate(q); err != nil {
		return Canonical{}, err
	}
	cat, err := CanonicalCategory(q.StoreCategory)
	if err != nil {
		return Canonical{}, err
	}
	day, err := CanonicalDay(q.OrderDay)
	if err != nil {
		return Canonical{}, err
	}
	return Canonical{
		Category:    cat,
		Day:         day,
		Hour:        q.OrderHour,
		Onshift:     q.TotalOnshiftCouriers,
		Busy:        q.TotalBusyCouriers,
		Outstanding: q.TotalOutstandingOrders,
	}, nil
}

// Query returns the query echoed with canonical English labels.
func (c Canonical) Query() models.OrderQuery {
	return models.OrderQuery{
		StoreCategory:          c.Category.String(),
		OrderDay:               c.Day.String(),
		OrderHour:              c.Hour,
		TotalOnshiftCouriers:   c.Onshift,
		TotalBusyCouriers:      c.Busy,
		TotalOutstandingOrders: c.Outstanding,
	}
}

// numeric returns the value of a numeric source.
func (c Canonical) numeric(src modelschema.Source, adjust bool) (float64, bool) {
	switch src {
	case modelschema.SourceOrderHour:
		return float64(c.Hour), true
	case modelschema.SourceTotalOnshiftCouriers:
		return float64(c.Onshift), true
	case modelschema.SourceTotalBusyCouriers:
		return float64(c.Busy), true
	case modelschema.SourceTotalOutstandingOrders:
		return float64(c.Outstanding), true
	case modelschema.SourcePartnerDensity:
		if adjust {
			return AdjustedPartnerDensity(c.Onshift, c.Outstanding, c.Category), true
		}
		return PartnerDensity(c.Onshift, c.Outstanding), true
	case modelschema.SourceAvailableCouriers:
		return float64(c.Onshift - c.Busy), true
	case modelschema.SourceBusyRatio:
		return float64(c.Busy) / float64(c.Onshift), true
	}
	return 0, false
}

func (c Canonical) label(src modelschema.Source) string {
	switch src {
	case modelschema.SourceStoreCategory:
		return c.Category.String()
	case modelschema.SourceOrderDay:
		return c.Day.String()
	}
	return ""
}

// Normalizer builds feature records. It holds no state; the zero value is ready to use.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize validates q and produces the record described by s. Encoders are
// never fitted here: categorical values must already be in the schema's vocabulary.
func (n *Normalizer) Normalize(q models.OrderQuery, s *modelschema.Schema) (Record, error) {
	c, err := Canonicalize(q)
	if err != nil {
		return Record{}, err
	}
	return n.Encode(c, s)
}

// Encode builds the record for an already canonicalized query.
func (n *Normalizer) Encode(c Canonical, s *modelschema.Schema) (Record, error) {
	if s == nil {
		return Record{}, apperrors.NewSchemaMismatchError("no schema")
	}

	rec := Record{}
	for _, f := range s.Fields {
		if !f.Source.Categorical() {
			v, ok := c.numeric(f.Source, s.CategoryAdjustment)
			if !ok {
				return Record{}, apperrors.NewSchemaMismatchError(fmt.Sprintf("field %q has unsupported source %q", f.Name, f.Source))
			}
			rec.add(f.Name, v)
			continue
		}

		label := c.label(f.Source)
		switch s.Encoding {
		case modelschema.EncodingPassthrough:
			rec.add(f.Name, label)
		case modelschema.EncodingLabel:
			idx, ok := s.LabelIndex(f.Source, label)
			if !ok {
				return Record{}, vocabularyMiss(f, label, s)
			}
			rec.add(f.Name, float64(idx))
		case modelschema.EncodingOneHot:
			vocab := s.Vocabulary(f.Source)
			if _, ok := s.LabelIndex(f.Source, label); !ok {
				return Record{}, vocabularyMiss(f, label, s)
			}
			for _, l := range vocab {
				v := 0.0
				if l == label {
					v = 1.0
				}
				rec.add(modelschema.OneHotColumn(f.Name, l), v)
			}
		default:
			return Record{}, apperrors.NewSchemaMismatchError(fmt.Sprintf("unsupported encoding %q", s.Encoding))
		}
	}
	return rec, nil
}

func vocabularyMiss(f modelschema.Field, label string, s *modelschema.Schema) error {
	return apperrors.NewSchemaMismatchError(fmt.Sprintf("value %q of field %q is not in the fitted vocabulary [%s]",
		label, f.Name, strings.Join(s.Vocabulary(f.Source), ", ")))
}
