// internal/workers/form/validate-submission/models.go
package validatesubmission

import (
	apperrors "formflow/internal/common/errors"
	"formflow/internal/models"
)

type Input struct {
	FormID    string                         `json:"formId"`
	Responses models.RawResponse             `json:"responses"`
	Files     map[string][]models.FileUpload `json:"files,omitempty"`
}

// Output reports the verdict. ValidationErrors is empty, never null, when IsValid is true.
type Output struct {
	IsValid          bool                       `json:"isValid"`
	ValidationErrors []apperrors.FieldViolation `json:"validationErrors"`
}
