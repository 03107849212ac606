// internal/workers/estimation/estimate-courier-demand/handler.go
package estimatecourierdemand

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
	TaskType = "estimate-courier-demand"
)

// Estimator produces the courier demand estimate.
type Estimator interface {
	CourierDemand(ctx context.Context, q models.OrderQuery) (*models.PredictionResult, error)
}

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
	result, err := h.estimator.CourierDemand(ctx, *input)
	if err != nil {
		return nil, err
	}

	available := input.TotalOnshiftCouriers - input.TotalBusyCouriers
	shortfall := result.Value - available
	if shortfall < 0 {
		shortfall = 0
	}

	h.logger.Info("courier demand estimated", map[string]interface{}{
		"model":     result.Model,
		"couriers":  result.Value,
		"available": available,
		"shortfall": shortfall,
		"requestId": result.RequestID,
	})

	return &Output{
		Estimate:          result,
		CouriersNeeded:    result.Value,
		CouriersAvailable: available,
		Shortfall:         shortfall,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
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
