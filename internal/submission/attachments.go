package submission

import (
	"context"
	"fmt"
	"path"

	"github.com/sourcegraph/conc/pool"

	"formflow/internal/common/logger"
	"formflow/internal/common/metrics"
	"formflow/internal/common/storage"
	"formflow/internal/models"
)

// AttachmentError names the first field, in schema order, whose upload failed.
// Uploaded lists the references that did succeed before the invocation gave up.
type AttachmentError struct {
	FieldName string
	Cause     error
	Uploaded  []models.StorageReference
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("upload for field %q failed: %v", e.FieldName, e.Cause)
}

func (e *AttachmentError) Unwrap() error {
	return e.Cause
}

// Coordinator uploads every buffer of every file field and keeps per-field order.
type Coordinator struct {
	store       storage.Storage
	folder      string
	concurrency int
	logger      logger.Logger
}

func NewCoordinator(store storage.Storage, folder string, concurrency int, log logger.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Coordinator{
		store:       store,
		folder:      folder,
		concurrency: concurrency,
		logger:      log.WithFields(map[string]interface{}{"component": "attachments"}),
	}
}

type uploadSlot struct {
	ref models.StorageReference
	err error
}

// Upload puts each buffer independently. Results per field follow input order regardless of completion order.
// Caller cancellation is not honoured once uploads start. Any failure fails the whole call.
func (c *Coordinator) Upload(ctx context.Context, formID string, fields []models.FieldDefinition, uploads map[string][]models.FileUpload) (map[string][]models.StorageReference, error) {
	if len(uploads) == 0 {
		return map[string][]models.StorageReference{}, nil
	}

	uploadCtx := context.WithoutCancel(ctx)
	folder := path.Join(c.folder, formID)

	slots := make([][]uploadSlot, len(fields))
	p := pool.New().WithMaxGoroutines(c.concurrency)
	for fi, field := range fields {
		buffers := uploads[field.Name]
		if len(buffers) == 0 {
			continue
		}
		slots[fi] = make([]uploadSlot, len(buffers))
		for bi := range buffers {
			fi, bi := fi, bi
			file := buffers[bi]
			p.Go(func() {
				ref, err := c.store.Put(uploadCtx, file, folder)
				slots[fi][bi] = uploadSlot{ref: ref, err: err}
			})
		}
	}
	p.Wait()

	out := make(map[string][]models.StorageReference)
	var firstErr *AttachmentError
	var uploaded []models.StorageReference

	for fi, field := range fields {
		if slots[fi] == nil {
			continue
		}
		refs := make([]models.StorageReference, 0, len(slots[fi]))
		for bi, slot := range slots[fi] {
			if slot.err != nil {
				metrics.AttachmentUploads.WithLabelValues("failed").Inc()
				if firstErr == nil {
					firstErr = &AttachmentError{FieldName: field.Name, Cause: slot.err}
				}
				c.logger.Warn("attachment upload failed", map[string]interface{}{
					"formId": formID,
					"field":  field.Name,
					"index":  bi,
					"error":  slot.err.Error(),
				})
				continue
			}
			metrics.AttachmentUploads.WithLabelValues("succeeded").Inc()
			metrics.AttachmentBytes.Add(float64(uploads[field.Name][bi].Size()))
			refs = append(refs, slot.ref)
			uploaded = append(uploaded, slot.ref)
		}
		out[field.Name] = refs
	}

	if firstErr != nil {
		firstErr.Uploaded = uploaded
		return nil, firstErr
	}
	return out, nil
}
