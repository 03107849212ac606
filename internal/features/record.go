package features

import (
	"fmt"

	apperrors "delivery-estimator/internal/common/errors"
)

// Value is a single feature value: a float64, or a canonical label under passthrough encoding.
type Value interface{}

// Record is an ordered feature row.
type Record struct {
	columns []string
	values  []Value
}

func (r *Record) add(col string, v Value) {
	r.columns = append(r.columns, col)
	r.values = append(r.values, v)
}

// NewRecord builds a record from parallel slices. Mostly useful in tests.
func NewRecord(columns []string, values []Value) (Record, error) {
	if len(columns) != len(values) {
		return Record{}, fmt.Errorf("columns and values differ in length: %d != %d", len(columns), len(values))
	}
	r := Record{}
	for i := range columns {
		r.add(columns[i], values[i])
	}
	return r, nil
}

func (r Record) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

func (r Record) Len() int {
	return len(r.columns)
}

// Get returns the value of a column.
func (r Record) Get(col string) (Value, bool) {
	for i, c := range r.columns {
		if c == col {
			return r.values[i], true
		}
	}
	return nil, false
}

// Map returns column name to value.
func (r Record) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r.columns))
	for i, c := range r.columns {
		out[c] = r.values[i]
	}
	return out
}

// Vector returns the numeric row in column order. It fails if any value is a label.
func (r Record) Vector() ([]float64, error) {
	out := make([]float64, len(r.values))
	for i, v := range r.values {
		f, ok := v.(float64)
		if !ok {
			return nil, apperrors.NewSchemaMismatchError(fmt.Sprintf("column %q is %T, want float64", r.columns[i], v))
		}
		out[i] = f
	}
	return out, nil
}

// Matches reports whether the record's columns are exactly cols, in order.
func (r Record) Matches(cols []string) bool {
	if len(cols) != len(r.columns) {
		return false
	}
	for i := range cols {
		if cols[i] != r.columns[i] {
			return false
		}
	}
	return true
}
