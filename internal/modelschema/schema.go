// Package modelschema describes the input contract a trained model expects:
// field order, sources, dtypes, the categorical encoding strategy with its
// fitted vocabularies, and the unit of the raw prediction.
package modelschema

import (
	"encoding/json"
	"fmt"

	apperrors "delivery-estimator/internal/common/errors"
	"delivery-estimator/internal/common/validation"
)

type Kind string

const (
	KindDeliveryTime  Kind = "delivery_time"
	KindCourierDemand Kind = "courier_demand"
)

type Unit string

const (
	UnitSeconds  Unit = "seconds"
	UnitMinutes  Unit = "minutes"
	UnitCouriers Unit = "couriers"
)

type Encoding string

const (
	// EncodingPassthrough hands categorical values to the model as canonical English labels.
	EncodingPassthrough Encoding = "passthrough"
	// EncodingLabel replaces a categorical value with its vocabulary index.
	EncodingLabel Encoding = "label"
	// EncodingOneHot expands a categorical field into one column per vocabulary entry.
	EncodingOneHot Encoding = "onehot"
)

// Source names the order-context value (raw or derived) a field is computed from.
type Source string

const (
	SourceStoreCategory          Source = "storeCategory"
	SourceOrderDay               Source = "orderDay"
	SourceOrderHour              Source = "orderHour"
	SourceTotalOnshiftCouriers   Source = "totalOnshiftCouriers"
	SourceTotalBusyCouriers      Source = "totalBusyCouriers"
	SourceTotalOutstandingOrders Source = "totalOutstandingOrders"
	SourcePartnerDensity         Source = "partnerDensity"
	SourceAvailableCouriers      Source = "availableCouriers"
	SourceBusyRatio              Source = "busyRatio"
)

var knownSources = map[Source]bool{
	SourceStoreCategory:          true,
	SourceOrderDay:               true,
	SourceOrderHour:              true,
	SourceTotalOnshiftCouriers:   true,
	SourceTotalBusyCouriers:      true,
	SourceTotalOutstandingOrders: true,
	SourcePartnerDensity:         true,
	SourceAvailableCouriers:      true,
	SourceBusyRatio:              true,
}

// CanonicalLabels are the English labels a fitted vocabulary may contain.
var CanonicalLabels = map[Source][]string{
	SourceStoreCategory: {
		"American", "Asian", "Beverages", "Desserts", "European", "Fast Food", "Healthy",
		"Indian", "Italian", "Latin", "Mediterranean", "Mexican", "Other",
	},
	SourceOrderDay: {"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
}

func isCanonical(src Source, label string) bool {
	for _, l := range CanonicalLabels[src] {
		if l == label {
			return true
		}
	}
	return false
}

// Categorical reports whether the source yields a label rather than a number.
func (s Source) Categorical() bool {
	return s == SourceStoreCategory || s == SourceOrderDay
}

type Field struct {
	Name   string `json:"name"`
	Source Source `json:"source"`
	DType  string `json:"dtype"`
}

type Schema struct {
	Name               string              `json:"name"`
	Version            string              `json:"version"`
	Kind               Kind                `json:"kind"`
	Unit               Unit                `json:"unit"`
	Encoding           Encoding            `json:"encoding"`
	CategoryAdjustment bool                `json:"categoryAdjustment"`
	Fields             []Field             `json:"fields"`
	Vocabularies       map[Source][]string `json:"vocabularies,omitempty"`
}

const documentSchema = `{
  "type": "object",
  "required": ["name", "version", "kind", "unit", "encoding", "fields"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "version": {"type": "string", "minLength": 1},
    "kind": {"enum": ["delivery_time", "courier_demand"]},
    "unit": {"enum": ["seconds", "minutes", "couriers"]},
    "encoding": {"enum": ["passthrough", "label", "onehot"]},
    "categoryAdjustment": {"type": "boolean"},
    "fields": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "source"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "source": {"type": "string"},
          "dtype": {"enum": ["float64", "int64", "string"]}
        }
      }
    },
    "vocabularies": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "minItems": 1,
        "items": {"type": "string"}
      }
    }
  }
}`

var documentValidator = validation.MustValidator(documentSchema)

// Parse validates and decodes a schema document. Every failure is a SchemaMismatch.
func Parse(data []byte) (*Schema, error) {
	res, err := documentValidator.Validate(data)
	if err != nil {
		return nil, apperrors.NewSchemaMismatchError(fmt.Sprintf("schema document is not valid JSON: %v", err))
	}
	if !res.Valid {
		return nil, apperrors.NewSchemaMismatchError(res.Summary())
	}

	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, apperrors.NewSchemaMismatchError(err.Error())
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Check enforces the rules a JSON Schema cannot express.
func (s *Schema) Check() error {
	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		if seen[f.Name] {
			return apperrors.NewSchemaMismatchError(fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true

		if !knownSources[f.Source] {
			return apperrors.NewSchemaMismatchError(fmt.Sprintf("field %q has unknown source %q", f.Name, f.Source))
		}

		if f.DType == "" {
			if f.Source.Categorical() && s.Encoding == EncodingPassthrough {
				s.Fields[i].DType = "string"
			} else {
				s.Fields[i].DType = "float64"
			}
			f = s.Fields[i]
		}

		if f.Source.Categorical() && s.Encoding == EncodingPassthrough {
			if f.DType != "string" {
				return apperrors.NewSchemaMismatchError(fmt.Sprintf("passthrough field %q must be a string", f.Name))
			}
			continue
		}
		if f.DType == "string" {
			return apperrors.NewSchemaMismatchError(fmt.Sprintf("field %q is numeric but declared as string", f.Name))
		}
		if f.Source.Categorical() && len(s.Vocabularies[f.Source]) == 0 {
			return apperrors.NewSchemaMismatchError(fmt.Sprintf("%s encoding of %q requires a %s vocabulary", s.Encoding, f.Name, f.Source))
		}
	}

	for src, vocab := range s.Vocabularies {
		if !src.Categorical() {
			return apperrors.NewSchemaMismatchError(fmt.Sprintf("vocabulary given for non-categorical source %q", src))
		}
		labels := make(map[string]bool, len(vocab))
		for _, l := range vocab {
			if labels[l] {
				return apperrors.NewSchemaMismatchError(fmt.Sprintf("vocabulary %s repeats %q", src, l))
			}
			if !isCanonical(src, l) {
				return apperrors.NewSchemaMismatchError(fmt.Sprintf("vocabulary %s has non-canonical label %q", src, l))
			}
			labels[l] = true
		}
	}

	cols := make(map[string]bool)
	for _, c := range s.Columns() {
		if cols[c] {
			return apperrors.NewSchemaMismatchError(fmt.Sprintf("column %q appears twice after encoding", c))
		}
		cols[c] = true
	}
	return nil
}

// Columns returns the model's input columns in order, with one-hot fields expanded.
func (s *Schema) Columns() []string {
	cols := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if s.Encoding == EncodingOneHot && f.Source.Categorical() {
			for _, label := range s.Vocabularies[f.Source] {
				cols = append(cols, OneHotColumn(f.Name, label))
			}
			continue
		}
		cols = append(cols, f.Name)
	}
	return cols
}

// Vocabulary returns the fitted labels for a categorical source.
func (s *Schema) Vocabulary(src Source) []string {
	return s.Vocabularies[src]
}

// LabelIndex returns the position of label in the source's vocabulary.
func (s *Schema) LabelIndex(src Source, label string) (int, bool) {
	for i, l := range s.Vocabularies[src] {
		if l == label {
			return i, true
		}
	}
	return -1, false
}

func OneHotColumn(field, label string) string {
	return field + "_" + label
}
