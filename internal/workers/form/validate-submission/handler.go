// internal/workers/form/validate-submission/handler.go
package validatesubmission

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "formflow/internal/common/errors"
	"formflow/internal/common/logger"
	"formflow/internal/common/metrics"
	"formflow/internal/common/observability"
	"formflow/internal/models"
)

const (
	TaskType = "validate-submission"
)

// Validator is satisfied by *submission.Pipeline.
type Validator interface {
	Validate(ctx context.Context, formID string, raw models.RawResponse, files map[string][]models.FileUpload) error
}

type Handler struct {
	config       *Config
	validator    Validator
	errorHandler *apperrors.ErrorHandler
	obs          *observability.Observability
	logger       logger.Logger
}

func NewHandler(config *Config, validator Validator, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		validator:    validator,
		errorHandler: apperrors.NewErrorHandler(l),
		obs:          obs,
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, apperrors.NewBadRequestError("Invalid job variables", err), start)
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJob(ctx, TaskType, "completed", time.Since(start))
}

// execute treats a validation failure as a result, not a job error.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.FormID == "" {
		return nil, apperrors.NewBadRequestError("formId is required", nil)
	}

	raw := input.Responses
	if raw == nil {
		raw = models.RawResponse{}
	}

	err := h.validator.Validate(ctx, input.FormID, raw, input.Files)
	if err == nil {
		return &Output{IsValid: true, ValidationErrors: []apperrors.FieldViolation{}}, nil
	}

	if stdErr, ok := apperrors.AsStandardError(err); ok && stdErr.Code == apperrors.ErrCodeValidationFailed {
		h.logger.Debug("submission invalid", map[string]interface{}{
			"formId": input.FormID,
			"fields": len(stdErr.Fields),
		})
		return &Output{IsValid: false, ValidationErrors: stdErr.Fields}, nil
	}
	return nil, err
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	stdErr := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJob(ctx, TaskType, "failed", time.Since(start))
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
