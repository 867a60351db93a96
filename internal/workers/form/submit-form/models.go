// internal/workers/form/submit-form/models.go
package submitform

import "formflow/internal/models"

// Input carries file bodies base64-encoded in each upload's "data" field.
type Input struct {
	FormID    string                         `json:"formId"`
	Responses models.RawResponse             `json:"responses"`
	Files     map[string][]models.FileUpload `json:"files,omitempty"`
}

type Output struct {
	SubmissionID string `json:"submissionId"`
	FormID       string `json:"formId"`
	CreatedAt    string `json:"createdAt"`
}
