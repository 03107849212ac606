// cmd/tools/worker-generator/main.go
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"delivery-estimator/pkg/registry"
)

// WorkerData holds data for templates
type WorkerData struct {
	Name        string
	PackageName string
	TaskType    string
	Model       string
	Kind        string
	Unit        string
	ValueField  string
}

const configTemplate = `// internal/workers/estimation/{{ .TaskType }}/config.go
package {{ .PackageName }}

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
`

const modelsTemplate = `// internal/workers/estimation/{{ .TaskType }}/models.go
package {{ .PackageName }}

import "delivery-estimator/internal/models"

type Input = models.OrderQuery

type Output struct {
	Estimate *models.PredictionResult ` + "`json:\"estimate\"`" + `
	{{ .ValueField }} int ` + "`json:\"{{ lowerFirst .ValueField }}\"`" + `
}
`

const handlerTemplate = `// internal/workers/estimation/{{ .TaskType }}/handler.go
package {{ .PackageName }}

import (
	"context"
	"encoding/json"

	apperrors "delivery-estimator/internal/common/errors"
	"delivery-estimator/internal/common/logger"
	"delivery-estimator/internal/common/metrics"
	"delivery-estimator/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "{{ .TaskType }}"
	Model    = "{{ .Model }}"
)

// Estimator runs a registered model by name.
type Estimator interface {
	Estimate(ctx context.Context, model string, q models.OrderQuery) (*models.PredictionResult, error)
}

// Handler runs the {{ .Name }} model ({{ .Kind }}) for each job.
type Handler struct {
	config     *Config
	estimator  Estimator
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, estimator Estimator, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		estimator:  estimator,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, apperrors.NewParseError(err))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.estimator.Estimate(ctx, Model, *input)
	if err != nil {
		return nil, err
	}
	return &Output{Estimate: result, {{ .ValueField }}: result.Value}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err = cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	out := h.errHandler.HandleJobError(ctx, client, job, err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(out.Source.Code)).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
`

const testTemplate = `// internal/workers/estimation/{{ .TaskType }}/handler_test.go
package {{ .PackageName }}

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "delivery-estimator/internal/common/errors"
	"delivery-estimator/internal/common/logger"
	"delivery-estimator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEstimator struct {
	model  string
	result *models.PredictionResult
	err    error
}

func (s *stubEstimator) Estimate(ctx context.Context, model string, q models.OrderQuery) (*models.PredictionResult, error) {
	s.model = model
	return s.result, s.err
}

func TestHandler_Execute(t *testing.T) {
	stub := &stubEstimator{result: &models.PredictionResult{Kind: "{{ .Kind }}", Value: 7, Unit: "{{ .Unit }}"}}
	handler := NewHandler(&Config{Timeout: 5 * time.Second}, stub, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{StoreCategory: "Fast Food", OrderDay: "Monday", OrderHour: 12})

	require.NoError(t, err)
	assert.Equal(t, Model, stub.model)
	assert.Equal(t, 7, output.{{ .ValueField }})
}

func TestHandler_Execute_Error(t *testing.T) {
	stub := &stubEstimator{err: apperrors.NewModelNotFoundError(Model)}
	handler := NewHandler(&Config{Timeout: 5 * time.Second}, stub, logger.NewNoOpLogger())

	_, err := handler.Execute(context.Background(), &Input{})

	assert.True(t, errors.Is(err, apperrors.ErrModelNotFound))
}
`

// kindDefaults maps a registry kind to the unit and output field of the generated worker.
var kindDefaults = map[string]struct{ unit, field string }{
	"delivery_time":  {"minutes", "EstimatedMinutes"},
	"courier_demand": {"couriers", "CouriersNeeded"},
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// workerData derives template data for one registry entry.
func workerData(m *registry.Model, taskType string) (WorkerData, error) {
	d, ok := kindDefaults[m.Kind]
	if !ok {
		return WorkerData{}, fmt.Errorf("model %s has unsupported kind %q", m.Name, m.Kind)
	}
	if taskType == "" {
		taskType = "estimate-" + m.Name
	}
	name := m.DisplayName
	if name == "" {
		name = m.Name
	}
	return WorkerData{
		Name:        name,
		PackageName: strings.ReplaceAll(taskType, "-", ""),
		TaskType:    taskType,
		Model:       m.Name,
		Kind:        m.Kind,
		Unit:        d.unit,
		ValueField:  d.field,
	}, nil
}

// generate renders every template into workerDir and gofmts the result.
// Existing files are left alone unless force is set.
func generate(data WorkerData, workerDir string, force bool) ([]string, error) {
	if err := os.MkdirAll(workerDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating directory: %w", err)
	}

	funcMap := template.FuncMap{"lowerFirst": lowerFirst}
	templates := map[string]string{
		"config.go":       configTemplate,
		"models.go":       modelsTemplate,
		"handler.go":      handlerTemplate,
		"handler_test.go": testTemplate,
	}

	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	var written []string
	for _, filename := range names {
		filePath := filepath.Join(workerDir, filename)
		if _, err := os.Stat(filePath); err == nil && !force {
			return written, fmt.Errorf("%s already exists (use -force to overwrite)", filePath)
		}

		tmpl, err := template.New(filename).Funcs(funcMap).Parse(templates[filename])
		if err != nil {
			return written, fmt.Errorf("error parsing template %s: %w", filename, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return written, fmt.Errorf("error executing template for %s: %w", filename, err)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return written, fmt.Errorf("generated %s does not parse: %w", filename, err)
		}
		if err := os.WriteFile(filePath, src, 0644); err != nil {
			return written, fmt.Errorf("error writing %s: %w", filePath, err)
		}
		written = append(written, filePath)
	}
	return written, nil
}

func main() {
	model := flag.String("model", "", "Model name from the registry (e.g., delivery-time)")
	taskType := flag.String("taskType", "", "Zeebe task type (default estimate-<model>)")
	outputDir := flag.String("output", "./internal/workers/estimation/", "Output directory for the generated worker")
	registryPath := flag.String("registry", "configs/model-registry.json", "Path to the model registry JSON file")
	force := flag.Bool("force", false, "Overwrite existing files")
	flag.Parse()

	if *model == "" {
		fmt.Println("Usage: worker-generator -model <name> [-taskType <type>] [-output <dir>] [-registry <path>]")
		fmt.Println("\nExample:")
		fmt.Println("  go run cmd/tools/worker-generator/main.go -model courier-demand-peak")
		os.Exit(1)
	}

	reg, err := registry.LoadRegistry(*registryPath)
	if err != nil {
		fmt.Printf("Error loading registry from %s: %v\n", *registryPath, err)
		os.Exit(1)
	}

	found, ok := reg.Find(*model)
	if !ok {
		fmt.Printf("Model '%s' not found in registry %s\n", *model, *registryPath)
		os.Exit(1)
	}

	data, err := workerData(found, *taskType)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	workerDir := filepath.Join(*outputDir, data.TaskType)
	written, err := generate(data, workerDir, *force)
	for _, f := range written {
		fmt.Printf("Generated %s\n", f)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nWorker scaffold generated at: %s\n", workerDir)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Register the worker in cmd/estimator/main.go\n")
	fmt.Printf("  2. Add a workers.%s entry to configs/config.yaml\n", data.TaskType)
}
