package errors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Logger is the subset of the service logger the handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler reports failed estimation jobs back to Zeebe.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Action is what the handler does with a failed job.
type Action string

const (
	ActionFail  Action = "fail"
	ActionThrow Action = "throw"
)

// Outcome is the resolved reaction to a job error.
type Outcome struct {
	Action  Action
	Retries int32
	Backoff time.Duration
	Error   *BPMNError
	Source  *StandardError
}

// Decide picks between failing the job with retries left (transient artifact
// problems) and throwing a BPMN error the process can route on. An error
// marked not retryable, such as a model whose load already failed and awaits
// a reload, is thrown straight away.
func Decide(job entities.Job, err error) Outcome {
	stdErr := Normalize(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	if !stdErr.Retryable || !IsRetryableErrorCode(stdErr.Code) || job.Retries <= 1 {
		return Outcome{Action: ActionThrow, Error: bpmnErr, Source: stdErr}
	}

	retries := GetRetryCount(stdErr.Code)
	remaining := job.Retries - 1
	if remaining > int32(retries) {
		remaining = int32(retries)
	}
	attempt := retries - int(remaining) + 1
	return Outcome{
		Action:  ActionFail,
		Retries: remaining,
		Backoff: 100 * time.Millisecond * time.Duration(1<<(attempt-1)),
		Error:   bpmnErr,
		Source:  stdErr,
	}
}

// HandleJobError fails or throws on the job according to Decide.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) Outcome {
	out := Decide(job, err)
	h.logError(job, out)

	var sendErr error
	switch out.Action {
	case ActionFail:
		sendErr = h.failJob(ctx, client, job, out)
	default:
		sendErr = h.throwBPMNError(ctx, client, job, out.Error)
	}
	if sendErr != nil {
		h.logger.Error("failed to report job error", map[string]interface{}{
			"jobKey": job.Key,
			"error":  sendErr.Error(),
		})
	}
	return out
}

func (h *ErrorHandler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, out Outcome) error {
	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(out.Retries).
		RetryBackoff(out.Backoff).
		ErrorMessage(out.Error.Message + ": " + out.Error.Details)

	withVars, err := cmd.VariablesFromString(variablesJSON(out.Error))
	if err != nil {
		_, err = cmd.Send(ctx)
		return err
	}
	_, err = withVars.Send(ctx)
	return err
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) error {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	withVars, err := cmd.VariablesFromString(variablesJSON(bpmnErr))
	if err != nil {
		_, err = cmd.Send(ctx)
		return err
	}
	_, err = withVars.Send(ctx)
	return err
}

func (h *ErrorHandler) logError(job entities.Job, out Outcome) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(out.Source.Code),
		"action":           string(out.Action),
		"retries":          out.Retries,
		"message":          out.Error.Message,
		"details":          out.Source.Details,
		"errorCategory":    GetErrorCategory(out.Source.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})
}

func variablesJSON(bpmnErr *BPMNError) string {
	data, err := json.Marshal(bpmnErr.ToErrorVariables())
	if err != nil {
		return "{}"
	}
	return string(data)
}
