package validation

import (
	"fmt"
	"strings"

	apperrors "formflow/internal/common/errors"
	"formflow/internal/models"
)

// AggregateError lists every failed field in schema order.
type AggregateError struct {
	FieldErrors []FieldError
}

func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.FieldErrors))
	for i := range e.FieldErrors {
		parts = append(parts, e.FieldErrors[i].Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// Violations converts the field errors to their transport form.
func (e *AggregateError) Violations() []apperrors.FieldViolation {
	out := make([]apperrors.FieldViolation, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		out = append(out, fe.Violation())
	}
	return out
}

// ValidateResponse validates every declared field without stopping at the first failure.
// Scalar values come from raw, file buffers from files. Keys the schema does not declare are ignored.
// On success, file fields hold their []models.FileUpload awaiting upload.
func ValidateResponse(schema models.FormSchema, raw models.RawResponse, files map[string][]models.FileUpload) (models.ValidatedResponse, *AggregateError) {
	validated := make(models.ValidatedResponse, len(schema.Fields))
	var fieldErrors []FieldError

	for _, field := range schema.Fields {
		var value interface{}
		if field.Type.Normalize() == models.FieldTypeFile {
			if uploads, ok := files[field.Name]; ok {
				value = uploads
			}
		} else {
			value = raw[field.Name]
		}

		result, fieldErr := ValidateField(field, value)
		if fieldErr != nil {
			fieldErrors = append(fieldErrors, *fieldErr)
			continue
		}
		if !result.Omitted {
			validated[field.Name] = result.Value
		}
	}

	if len(fieldErrors) > 0 {
		return nil, &AggregateError{FieldErrors: fieldErrors}
	}
	return validated, nil
}
