package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"formflow/internal/models"
)

// SubmissionRepo is an append-only store of accepted submissions.
type SubmissionRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewSubmissionRepo(db *sql.DB) *SubmissionRepo {
	return &SubmissionRepo{db: db, now: time.Now}
}

// Create assigns ID and CreatedAt and writes the submission in one statement.
func (r *SubmissionRepo) Create(ctx context.Context, sub *models.Submission) error {
	dataJSON, err := json.Marshal(sub.Data)
	if err != nil {
		return fmt.Errorf("encode submission data: %w", err)
	}
	files := sub.Files
	if files == nil {
		files = []models.StorageReference{}
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("encode submission files: %w", err)
	}

	id := uuid.New().String()
	createdAt := r.now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO submissions (id, form_id, data, files, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, sub.FormID, dataJSON, filesJSON, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	sub.ID = id
	sub.CreatedAt = createdAt
	return nil
}

// ListByForm returns a form's submissions, newest first.
func (r *SubmissionRepo) ListByForm(ctx context.Context, formID string) ([]models.Submission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, form_id, data, files, created_at FROM submissions WHERE form_id = $1 ORDER BY created_at DESC`,
		formID,
	)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	subs := []models.Submission{}
	for rows.Next() {
		var (
			sub       models.Submission
			dataJSON  []byte
			filesJSON []byte
		)
		if err := rows.Scan(&sub.ID, &sub.FormID, &dataJSON, &filesJSON, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if err := json.Unmarshal(dataJSON, &sub.Data); err != nil {
			return nil, fmt.Errorf("decode submission data: %w", err)
		}
		if err := json.Unmarshal(filesJSON, &sub.Files); err != nil {
			return nil, fmt.Errorf("decode submission files: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return subs, nil
}
