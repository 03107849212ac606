// internal/models/prediction.go
package models

import "time"

// PredictionKind identifies which estimate a model produces.
type PredictionKind string

const (
	KindDeliveryTime  PredictionKind = "delivery_time"
	KindCourierDemand PredictionKind = "courier_demand"
)

// Canonical output units.
const (
	UnitMinutes  = "minutes"
	UnitCouriers = "couriers"
)

// PredictionResult is the canonical, presentable outcome of one inference.
type PredictionResult struct {
	Model        string                 `json:"model"`
	ModelVersion string                 `json:"modelVersion"`
	Kind         PredictionKind         `json:"kind"`
	Value        int                    `json:"value"`
	Unit         string                 `json:"unit"`
	Raw          float64                `json:"raw"`
	RawUnit      string                 `json:"rawUnit"`
	Query        OrderQuery             `json:"query"`
	Features     map[string]interface{} `json:"features"`
	RequestID    string                 `json:"requestId"`
	PredictedAt  time.Time              `json:"predictedAt"`
}

// ModelStatus describes the load state of one registered model.
type ModelStatus struct {
	Name        string     `json:"name"`
	DisplayName string     `json:"displayName,omitempty"`
	Kind        string     `json:"kind"`
	Version     string     `json:"version,omitempty"`
	State       string     `json:"state"`
	Source      string     `json:"source"`
	LoadedAt    *time.Time `json:"loadedAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}
