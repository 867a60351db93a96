// internal/models/submission.go
package models

import "time"

// RawResponse maps field names to submitted scalar values. Unknown keys are ignored.
type RawResponse map[string]interface{}

// ValidatedResponse holds coerced values for present fields only.
// File fields hold []FileUpload before upload and []StorageReference after.
type ValidatedResponse map[string]interface{}

// FileUpload is one submitted file buffer.
type FileUpload struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Data        []byte `json:"data"`
}

// Size returns the buffer length in bytes.
func (f FileUpload) Size() int64 {
	return int64(len(f.Data))
}

// StorageReference locates an uploaded file.
type StorageReference struct {
	URL       string `json:"url"`
	StorageID string `json:"storageId"`
}

// Submission is immutable after creation.
type Submission struct {
	ID        string             `json:"id"`
	FormID    string             `json:"formId"`
	Data      ValidatedResponse  `json:"data"`
	Files     []StorageReference `json:"files"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Receipt is what a successful submit returns to the caller.
type Receipt struct {
	ID        string    `json:"id"`
	FormID    string    `json:"formId"`
	CreatedAt time.Time `json:"createdAt"`
}
