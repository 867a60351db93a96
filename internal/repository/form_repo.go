// Package repository persists forms and submissions in Postgres, caches schemas in Redis
// and indexes submissions in Elasticsearch.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"formflow/internal/models"
)

// FormRepo stores published form schemas.
type FormRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewFormRepo(db *sql.DB) *FormRepo {
	return &FormRepo{db: db, now: time.Now}
}

// GetSchema returns models.ErrFormNotFound for unknown or malformed ids.
func (r *FormRepo) GetSchema(ctx context.Context, formID string) (*models.FormSchema, error) {
	if _, err := uuid.Parse(formID); err != nil {
		return nil, models.ErrFormNotFound
	}

	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT schema FROM forms WHERE id = $1`, formID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrFormNotFound
		}
		return nil, fmt.Errorf("query form schema: %w", err)
	}
	return decodeSchema(raw)
}

// GetOwnedSchema answers models.ErrFormNotFound both for a missing form and for one owned by another user.
func (r *FormRepo) GetOwnedSchema(ctx context.Context, formID, userID string) (*models.FormSchema, error) {
	if _, err := uuid.Parse(formID); err != nil {
		return nil, models.ErrFormNotFound
	}

	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT schema FROM forms WHERE id = $1 AND user_id = $2`, formID, userID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrFormNotFound
		}
		return nil, fmt.Errorf("query owned form: %w", err)
	}
	return decodeSchema(raw)
}

// Create assigns ID and CreatedAt and inserts the form.
func (r *FormRepo) Create(ctx context.Context, form *models.Form) error {
	schemaJSON, err := json.Marshal(form.Schema)
	if err != nil {
		return fmt.Errorf("encode form schema: %w", err)
	}

	form.ID = uuid.New().String()
	form.CreatedAt = r.now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO forms (id, user_id, prompt, schema, created_at) VALUES ($1, $2, $3, $4, $5)`,
		form.ID, form.UserID, form.Prompt, schemaJSON, form.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert form: %w", err)
	}
	return nil
}

// GetForm returns the full form record.
func (r *FormRepo) GetForm(ctx context.Context, formID string) (*models.Form, error) {
	if _, err := uuid.Parse(formID); err != nil {
		return nil, models.ErrFormNotFound
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, prompt, schema, created_at FROM forms WHERE id = $1`, formID)
	form, err := scanForm(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrFormNotFound
		}
		return nil, fmt.Errorf("query form: %w", err)
	}
	return form, nil
}

// ListByOwner returns a user's forms, newest first.
func (r *FormRepo) ListByOwner(ctx context.Context, userID string) ([]models.Form, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, prompt, schema, created_at FROM forms WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query forms: %w", err)
	}
	defer rows.Close()

	forms := []models.Form{}
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		forms = append(forms, *form)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forms: %w", err)
	}
	return forms, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanForm(row rowScanner) (*models.Form, error) {
	var (
		form models.Form
		raw  []byte
	)
	if err := row.Scan(&form.ID, &form.UserID, &form.Prompt, &raw, &form.CreatedAt); err != nil {
		return nil, err
	}
	schema, err := decodeSchema(raw)
	if err != nil {
		return nil, err
	}
	form.Schema = *schema
	return &form, nil
}

func decodeSchema(raw []byte) (*models.FormSchema, error) {
	var schema models.FormSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decode form schema: %w", err)
	}
	return &schema, nil
}
