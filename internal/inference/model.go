package inference

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "delivery-estimator/internal/common/errors"
	"delivery-estimator/internal/features"
	"delivery-estimator/internal/modelschema"

	"github.com/asafschers/goscore"
)

// Bundle formats.
const (
	FormatPMMLForest = "pmml-random-forest"
	FormatLinear     = "linear"
)

// Model is a trained regressor. Implementations are immutable after decode
// and safe for concurrent use.
type Model interface {
	Predict(rec features.Record) (float64, error)
}

// Loaded is a decoded artifact: its input contract plus the model.
type Loaded struct {
	Schema *modelschema.Schema
	Model  Model
	Format string
	Size   int
	Digest string
}

type bundle struct {
	Format string          `json:"format"`
	Schema json.RawMessage `json:"schema"`
	PMML   string          `json:"pmml,omitempty"`
	Linear *linearSpec     `json:"linear,omitempty"`
}

type linearSpec struct {
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
	Link         string             `json:"link,omitempty"`
}

// Decode parses an artifact bundle and checks the model against its schema.
func Decode(data []byte) (*Loaded, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("artifact is empty")
	}

	var b bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if len(b.Schema) == 0 {
		return nil, apperrors.NewSchemaMismatchError("bundle has no schema")
	}
	schema, err := modelschema.Parse(b.Schema)
	if err != nil {
		return nil, err
	}

	var m Model
	switch b.Format {
	case FormatPMMLForest:
		m, err = decodeForest(b.PMML, schema)
	case FormatLinear:
		m, err = decodeLinear(b.Linear, schema)
	default:
		return nil, fmt.Errorf("unsupported bundle format %q", b.Format)
	}
	if err != nil {
		return nil, err
	}

	return &Loaded{Schema: schema, Model: m, Format: b.Format, Size: len(data)}, nil
}

// ==========================
// PMML random forest
// ==========================

type forestModel struct {
	forest goscore.RandomForest
}

// pmmlFields extracts the declared inputs, which goscore itself ignores.
type pmmlFields struct {
	Fields []struct {
		Name      string `xml:"name,attr"`
		UsageType string `xml:"usageType,attr"`
	} `xml:"MiningModel>MiningSchema>MiningField"`
}

func decodeForest(doc string, schema *modelschema.Schema) (Model, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, errors.New("pmml document is empty")
	}

	var forest goscore.RandomForest
	if err := xml.Unmarshal([]byte(doc), &forest); err != nil {
		return nil, fmt.Errorf("decode pmml: %w", err)
	}
	if len(forest.Trees) == 0 {
		return nil, errors.New("pmml forest has no trees")
	}

	var declared pmmlFields
	if err := xml.Unmarshal([]byte(doc), &declared); err != nil {
		return nil, fmt.Errorf("decode pmml mining schema: %w", err)
	}
	cols := make(map[string]bool)
	for _, c := range schema.Columns() {
		cols[c] = true
	}
	for _, f := range declared.Fields {
		if f.UsageType == "target" || f.UsageType == "predicted" {
			continue
		}
		if !cols[f.Name] {
			return nil, apperrors.NewSchemaMismatchError(fmt.Sprintf("pmml input %q is not a schema column", f.Name))
		}
	}

	return &forestModel{forest: forest}, nil
}

// Predict averages the tree scores.
func (m *forestModel) Predict(rec features.Record) (float64, error) {
	row := rec.Map()
	var sum float64
	for i, tree := range m.forest.Trees {
		score, err := tree.TraverseTree(row)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += score
	}
	return sum / float64(len(m.forest.Trees)), nil
}

// ==========================
// Linear
// ==========================

type linearModel struct {
	intercept float64
	coef      []float64
	logLink   bool
}

func decodeLinear(spec *linearSpec, schema *modelschema.Schema) (Model, error) {
	if spec == nil {
		return nil, errors.New("linear bundle has no linear section")
	}
	if schema.Encoding == modelschema.EncodingPassthrough {
		for _, f := range schema.Fields {
			if f.Source.Categorical() {
				return nil, apperrors.NewSchemaMismatchError("linear models need numeric inputs; passthrough categorical fields are not supported")
			}
		}
	}

	cols := schema.Columns()
	coef := make([]float64, len(cols))
	for i, c := range cols {
		v, ok := spec.Coefficients[c]
		if !ok {
			return nil, apperrors.NewSchemaMismatchError(fmt.Sprintf("no coefficient for column %q", c))
		}
		coef[i] = v
	}
	if len(spec.Coefficients) != len(cols) {
		var extra []string
		want := make(map[string]bool, len(cols))
		for _, c := range cols {
			want[c] = true
		}
		for c := range spec.Coefficients {
			if !want[c] {
				extra = append(extra, c)
			}
		}
		sort.Strings(extra)
		return nil, apperrors.NewSchemaMismatchError(fmt.Sprintf("coefficients for unknown columns: %s", strings.Join(extra, ", ")))
	}

	var logLink bool
	switch spec.Link {
	case "", "identity":
	case "log":
		logLink = true
	default:
		return nil, fmt.Errorf("unsupported link %q", spec.Link)
	}

	return &linearModel{intercept: spec.Intercept, coef: coef, logLink: logLink}, nil
}

func (m *linearModel) Predict(rec features.Record) (float64, error) {
	x, err := rec.Vector()
	if err != nil {
		return 0, err
	}
	if len(x) != len(m.coef) {
		return 0, apperrors.NewSchemaMismatchError(fmt.Sprintf("row has %d values, model expects %d", len(x), len(m.coef)))
	}
	y := m.intercept
	for i := range x {
		y += m.coef[i] * x[i]
	}
	if m.logLink {
		y = math.Exp(y)
	}
	return y, nil
}
