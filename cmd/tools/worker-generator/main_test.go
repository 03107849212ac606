package main

import (
	"os"
	"path/filepath"
	"testing"

	"delivery-estimator/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerData(t *testing.T) {
	tests := []struct {
		name      string
		model     registry.Model
		taskType  string
		wantErr   bool
		wantPkg   string
		wantTask  string
		wantField string
	}{
		{
			name:      "delivery time defaults",
			model:     registry.Model{Name: "delivery-time-v2", Kind: "delivery_time"},
			wantPkg:   "estimatedeliverytimev2",
			wantTask:  "estimate-delivery-time-v2",
			wantField: "EstimatedMinutes",
		},
		{
			name:      "explicit task type",
			model:     registry.Model{Name: "cd-peak", Kind: "courier_demand", DisplayName: "Peak couriers"},
			taskType:  "estimate-peak-couriers",
			wantPkg:   "estimatepeakcouriers",
			wantTask:  "estimate-peak-couriers",
			wantField: "CouriersNeeded",
		},
		{
			name:    "unknown kind",
			model:   registry.Model{Name: "x", Kind: "eta"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := workerData(&tt.model, tt.taskType)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPkg, data.PackageName)
			assert.Equal(t, tt.wantTask, data.TaskType)
			assert.Equal(t, tt.wantField, data.ValueField)
			assert.Equal(t, tt.model.Name, data.Model)
		})
	}
}

func TestGenerate(t *testing.T) {
	data, err := workerData(&registry.Model{Name: "cd-peak", Kind: "courier_demand"}, "")
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), data.TaskType)
	written, err := generate(data, dir, false)
	require.NoError(t, err)
	assert.Len(t, written, 4)

	handler, err := os.ReadFile(filepath.Join(dir, "handler.go"))
	require.NoError(t, err)
	assert.Contains(t, string(handler), "package estimatecdpeak")
	assert.Contains(t, string(handler), `TaskType = "estimate-cd-peak"`)
	assert.Contains(t, string(handler), `Model    = "cd-peak"`)

	models, err := os.ReadFile(filepath.Join(dir, "models.go"))
	require.NoError(t, err)
	assert.Contains(t, string(models), "`json:\"couriersNeeded\"`")

	_, err = generate(data, dir, false)
	assert.ErrorContains(t, err, "already exists")

	_, err = generate(data, dir, true)
	assert.NoError(t, err)
}
