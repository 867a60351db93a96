// Package submission accepts form responses: it validates them against the published schema,
// uploads attached files and persists the result.
package submission

import (
	"context"
	stderrors "errors"
	"time"

	apperrors "formflow/internal/common/errors"
	"formflow/internal/common/logger"
	"formflow/internal/common/metrics"
	"formflow/internal/common/storage"
	"formflow/internal/common/validation"
	"formflow/internal/models"
)

// SchemaSource returns models.ErrFormNotFound for an unknown form.
type SchemaSource interface {
	GetSchema(ctx context.Context, formID string) (*models.FormSchema, error)
}

// OwnershipSource returns models.ErrFormNotFound when the form is missing or owned by someone else.
type OwnershipSource interface {
	GetOwnedSchema(ctx context.Context, formID, userID string) (*models.FormSchema, error)
}

// Repository assigns ID and CreatedAt on Create. ListByForm returns newest first.
type Repository interface {
	Create(ctx context.Context, sub *models.Submission) error
	ListByForm(ctx context.Context, formID string) ([]models.Submission, error)
}

// Indexer receives persisted submissions for search. Failures never affect the submit result.
type Indexer interface {
	IndexSubmission(ctx context.Context, sub *models.Submission) error
}

// Notifier is told about persisted submissions. Failures never affect the submit result.
type Notifier interface {
	SubmissionCreated(ctx context.Context, sub *models.Submission) error
}

type Config struct {
	// CompensateOrphans deletes already-uploaded files when a later step fails.
	CompensateOrphans bool
}

type Dependencies struct {
	Schemas     SchemaSource
	Owners      OwnershipSource
	Repository  Repository
	Attachments *Coordinator
	Storage     storage.Storage
	Indexer     Indexer
	Notifier    Notifier
}

type Pipeline struct {
	config Config
	deps   Dependencies
	logger logger.Logger
}

func NewPipeline(config Config, deps Dependencies, log logger.Logger) *Pipeline {
	return &Pipeline{
		config: config,
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "submission-pipeline"}),
	}
}

// Submit runs LoadSchema, Validate, Upload, Merge and Persist, returning only the receipt.
func (p *Pipeline) Submit(ctx context.Context, formID string, raw models.RawResponse, files map[string][]models.FileUpload) (*models.Receipt, error) {
	log := p.logger.WithFields(map[string]interface{}{"formId": formID})

	receipt, err := p.submit(ctx, log, formID, raw, files)
	if err != nil {
		stdErr := apperrors.Normalize(err)
		metrics.SubmissionsTotal.WithLabelValues(string(stdErr.Code)).Inc()
		log.Warn("submission rejected", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		return nil, stdErr
	}

	metrics.SubmissionsTotal.WithLabelValues("ACCEPTED").Inc()
	log.Info("submission accepted", map[string]interface{}{"submissionId": receipt.ID})
	return receipt, nil
}

func (p *Pipeline) submit(ctx context.Context, log logger.Logger, formID string, raw models.RawResponse, files map[string][]models.FileUpload) (*models.Receipt, error) {
	schema, err := p.loadSchema(ctx, formID)
	if err != nil {
		return nil, err
	}

	validated, err := p.validate(schema, raw, files)
	if err != nil {
		return nil, err
	}

	// Uploads and persistence run to completion even if the caller goes away.
	workCtx := context.WithoutCancel(ctx)

	pending := pendingUploads(schema, validated)
	refs := map[string][]models.StorageReference{}
	if len(pending) > 0 {
		stop := stageTimer("upload")
		refs, err = p.deps.Attachments.Upload(workCtx, formID, schema.FileFields(), pending)
		stop()
		if err != nil {
			var attErr *AttachmentError
			if stderrors.As(err, &attErr) {
				p.compensate(workCtx, log, attErr.Uploaded)
				return nil, apperrors.NewAttachmentFailedError(attErr.FieldName, attErr.Cause)
			}
			return nil, apperrors.NewAttachmentFailedError("", err)
		}
	}

	data, flat := merge(schema, validated, refs)
	sub := &models.Submission{
		FormID: formID,
		Data:   data,
		Files:  flat,
	}

	stop := stageTimer("persist")
	err = p.deps.Repository.Create(workCtx, sub)
	stop()
	if err != nil {
		p.compensate(workCtx, log, flat)
		return nil, apperrors.NewPersistenceFailedError(err)
	}

	p.afterPersist(workCtx, log, sub)

	return &models.Receipt{ID: sub.ID, FormID: sub.FormID, CreatedAt: sub.CreatedAt}, nil
}

// Validate runs schema lookup and validation only. Nothing is uploaded or stored.
func (p *Pipeline) Validate(ctx context.Context, formID string, raw models.RawResponse, files map[string][]models.FileUpload) error {
	schema, err := p.loadSchema(ctx, formID)
	if err != nil {
		return err
	}
	_, err = p.validate(schema, raw, files)
	return err
}

// ListSubmissions returns a form's submissions, newest first, to the form's owner only.
func (p *Pipeline) ListSubmissions(ctx context.Context, formID, requestingUserID string) ([]models.Submission, error) {
	if requestingUserID == "" {
		return nil, apperrors.NewUnauthenticatedError()
	}

	if _, err := p.deps.Owners.GetOwnedSchema(ctx, formID, requestingUserID); err != nil {
		if stderrors.Is(err, models.ErrFormNotFound) {
			return nil, apperrors.NewNotFoundError(formID)
		}
		return nil, apperrors.NewInternalError(err)
	}

	stop := stageTimer("list")
	subs, err := p.deps.Repository.ListByForm(ctx, formID)
	stop()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return subs, nil
}

func (p *Pipeline) loadSchema(ctx context.Context, formID string) (*models.FormSchema, error) {
	stop := stageTimer("load_schema")
	defer stop()

	schema, err := p.deps.Schemas.GetSchema(ctx, formID)
	if err != nil {
		if stderrors.Is(err, models.ErrFormNotFound) {
			return nil, apperrors.NewNotFoundError(formID)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return schema, nil
}

func (p *Pipeline) validate(schema *models.FormSchema, raw models.RawResponse, files map[string][]models.FileUpload) (models.ValidatedResponse, error) {
	stop := stageTimer("validate")
	defer stop()

	validated, aggErr := validation.ValidateResponse(*schema, raw, files)
	if aggErr != nil {
		return nil, apperrors.NewValidationFailedError(aggErr.Violations())
	}
	return validated, nil
}

// compensate deletes orphaned uploads when enabled. Delete failures are only logged.
func (p *Pipeline) compensate(ctx context.Context, log logger.Logger, refs []models.StorageReference) {
	if !p.config.CompensateOrphans || p.deps.Storage == nil || len(refs) == 0 {
		return
	}
	for _, ref := range refs {
		if err := p.deps.Storage.Delete(ctx, ref.StorageID); err != nil {
			log.Warn("failed to delete orphaned upload", map[string]interface{}{
				"storageId": ref.StorageID,
				"error":     err.Error(),
			})
		}
	}
}

func (p *Pipeline) afterPersist(ctx context.Context, log logger.Logger, sub *models.Submission) {
	if p.deps.Indexer != nil {
		if err := p.deps.Indexer.IndexSubmission(ctx, sub); err != nil {
			log.Warn("failed to index submission", map[string]interface{}{
				"submissionId": sub.ID,
				"error":        err.Error(),
			})
		}
	}
	if p.deps.Notifier != nil {
		if err := p.deps.Notifier.SubmissionCreated(ctx, sub); err != nil {
			log.Warn("failed to send submission notification", map[string]interface{}{
				"submissionId": sub.ID,
				"error":        err.Error(),
			})
		}
	}
}

// pendingUploads collects the validated file buffers per file field.
func pendingUploads(schema *models.FormSchema, validated models.ValidatedResponse) map[string][]models.FileUpload {
	pending := make(map[string][]models.FileUpload)
	for _, field := range schema.FileFields() {
		if uploads, ok := validated[field.Name].([]models.FileUpload); ok && len(uploads) > 0 {
			pending[field.Name] = uploads
		}
	}
	return pending
}

// merge replaces file buffers with their references and flattens them in field then upload order.
func merge(schema *models.FormSchema, validated models.ValidatedResponse, refs map[string][]models.StorageReference) (models.ValidatedResponse, []models.StorageReference) {
	data := make(models.ValidatedResponse, len(validated))
	flat := []models.StorageReference{}

	for _, field := range schema.Fields {
		value, ok := validated[field.Name]
		if !ok {
			continue
		}
		if field.Type.Normalize() != models.FieldTypeFile {
			data[field.Name] = value
			continue
		}
		fieldRefs := refs[field.Name]
		data[field.Name] = fieldRefs
		flat = append(flat, fieldRefs...)
	}
	return data, flat
}

func stageTimer(stage string) func() {
	start := time.Now()
	return func() {
		metrics.SubmissionStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
