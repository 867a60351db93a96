// internal/workers/form/list-submissions/models.go
package listsubmissions

import "formflow/internal/models"

type Input struct {
	FormID string `json:"formId"`
	UserID string `json:"userId"`
}

type Output struct {
	Submissions []models.Submission `json:"submissions"`
	Count       int                 `json:"count"`
}
