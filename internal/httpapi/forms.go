package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "formflow/internal/common/errors"
	"formflow/internal/common/validation"
	"formflow/internal/models"
)

// FormStore is satisfied by *repository.FormRepo.
type FormStore interface {
	Create(ctx context.Context, form *models.Form) error
	GetForm(ctx context.Context, formID string) (*models.Form, error)
	ListByOwner(ctx context.Context, userID string) ([]models.Form, error)
}

type FormHandler struct {
	forms FormStore
}

func NewFormHandler(forms FormStore) *FormHandler {
	return &FormHandler{forms: forms}
}

type createFormRequest struct {
	Prompt string            `json:"prompt"`
	Schema models.FormSchema `json:"schema"`
}

// publicForm is what a submitter sees; the owner id is not exposed.
type publicForm struct {
	ID        string            `json:"id"`
	Schema    models.FormSchema `json:"schema"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Create publishes a schema produced upstream. The schema is immutable afterwards.
func (h *FormHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetUser(r.Context())
	if claims == nil {
		writeError(w, r, apperrors.NewUnauthenticatedError())
		return
	}

	var req createFormRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, apperrors.NewBadRequestError("Invalid request body", err))
		return
	}
	if err := validation.CheckSchema(req.Schema); err != nil {
		writeError(w, r, apperrors.NewBadRequestError("Invalid form schema: "+err.Error(), err))
		return
	}

	form := &models.Form{
		UserID: claims.UserID,
		Prompt: req.Prompt,
		Schema: req.Schema,
	}
	if err := h.forms.Create(r.Context(), form); err != nil {
		writeError(w, r, apperrors.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"form": form})
}

// Get is public so the form can be rendered for submitters.
func (h *FormHandler) Get(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")

	form, err := h.forms.GetForm(r.Context(), formID)
	if err != nil {
		if errors.Is(err, models.ErrFormNotFound) {
			writeError(w, r, apperrors.NewNotFoundError(formID))
			return
		}
		writeError(w, r, apperrors.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"form": publicForm{ID: form.ID, Schema: form.Schema, CreatedAt: form.CreatedAt},
	})
}

func (h *FormHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetUser(r.Context())
	if claims == nil {
		writeError(w, r, apperrors.NewUnauthenticatedError())
		return
	}

	forms, err := h.forms.ListByOwner(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, apperrors.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"forms": forms})
}
