package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "delivery-estimator/internal/common/errors"
	"delivery-estimator/internal/common/validation"
	"delivery-estimator/internal/models"
)

const maxBodyBytes = 64 << 10

// orderQuerySchema checks shape and types only. Numeric domains and labels are
// checked by the normalizer so they surface with their own error codes.
const orderQuerySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["storeCategory", "orderDay", "orderHour", "totalOnshiftCouriers", "totalBusyCouriers", "totalOutstandingOrders"],
  "additionalProperties": false,
  "properties": {
    "storeCategory":          {"type": "string", "minLength": 1},
    "orderDay":               {"type": "string", "minLength": 1},
    "orderHour":              {"type": "integer"},
    "totalOnshiftCouriers":   {"type": "integer"},
    "totalBusyCouriers":      {"type": "integer"},
    "totalOutstandingOrders": {"type": "integer"},
    "language":               {"type": "string", "enum": ["en", "es"]}
  }
}`

var orderQueryValidator = validation.MustValidator(orderQuerySchema)

// decodeOrderQuery reads, validates and decodes the request body.
func decodeOrderQuery(w http.ResponseWriter, r *http.Request) (models.OrderQuery, error) {
	var q models.OrderQuery

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return q, apperrors.NewParseError(fmt.Errorf("body exceeds %d bytes", maxBodyBytes))
		}
		return q, apperrors.NewParseError(err)
	}
	if len(body) == 0 {
		return q, apperrors.NewParseError(errors.New("empty request body"))
	}

	result, err := orderQueryValidator.Validate(body)
	if err != nil {
		return q, apperrors.NewParseError(err)
	}
	if !result.Valid {
		return q, apperrors.NewParseError(errors.New(result.Summary()))
	}

	if err := json.Unmarshal(body, &q); err != nil {
		return q, apperrors.NewParseError(err)
	}
	return q, nil
}
