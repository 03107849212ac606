package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "type": "object",
  "required": ["orderHour"],
  "properties": {
    "orderHour": {"type": "integer", "minimum": 0, "maximum": 23}
  }
}`

func TestValidator_Validate(t *testing.T) {
	v := MustValidator(testSchema)

	tests := []struct {
		name      string
		doc       string
		wantValid bool
		wantField string
	}{
		{name: "valid", doc: `{"orderHour": 12}`, wantValid: true},
		{name: "missing field", doc: `{}`, wantValid: false, wantField: "(root)"},
		{name: "out of range", doc: `{"orderHour": 30}`, wantValid: false, wantField: "orderHour"},
		{name: "wrong type", doc: `{"orderHour": "noon"}`, wantValid: false, wantField: "orderHour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.Validate([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, res.Valid)
			if !tt.wantValid {
				require.NotEmpty(t, res.Errors)
				assert.Equal(t, tt.wantField, res.Errors[0].Field)
				assert.NotEmpty(t, res.Summary())
			}
		})
	}
}

func TestValidator_NotJSON(t *testing.T) {
	v := MustValidator(testSchema)
	_, err := v.Validate([]byte(`{not json`))
	assert.Error(t, err)
}

func TestNewValidator_BadSchema(t *testing.T) {
	_, err := NewValidator(`{"type": 12}`)
	assert.Error(t, err)
}
