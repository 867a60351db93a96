package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "formflow/internal/common/errors"
	"formflow/internal/models"
)

// SubmissionService is satisfied by *submission.Pipeline.
type SubmissionService interface {
	Submit(ctx context.Context, formID string, raw models.RawResponse, files map[string][]models.FileUpload) (*models.Receipt, error)
	ListSubmissions(ctx context.Context, formID, requestingUserID string) ([]models.Submission, error)
}

type SubmissionHandler struct {
	svc            SubmissionService
	maxUploadBytes int64
}

func NewSubmissionHandler(svc SubmissionService, maxUploadBytes int64) *SubmissionHandler {
	return &SubmissionHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

type submitRequest struct {
	Responses models.RawResponse             `json:"responses"`
	Files     map[string][]models.FileUpload `json:"files,omitempty"`
}

type submissionItem struct {
	ID        string                    `json:"id"`
	Data      models.ValidatedResponse  `json:"data"`
	Files     []models.StorageReference `json:"files"`
	CreatedAt time.Time                 `json:"createdAt"`
}

// Create accepts multipart/form-data or a JSON body.
func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var (
		raw   models.RawResponse
		files map[string][]models.FileUpload
		err   error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		raw, files, err = h.parseMultipart(r)
	} else {
		raw, files, err = parseJSONSubmission(r)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	receipt, err := h.svc.Submit(r.Context(), formID, raw, files)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Form submitted successfully",
		"submission": receipt,
	})
}

// List returns the caller's form submissions, newest first.
func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")

	userID := ""
	if claims := GetUser(r.Context()); claims != nil {
		userID = claims.UserID
	}

	subs, err := h.svc.ListSubmissions(r.Context(), formID, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]submissionItem, 0, len(subs))
	for _, s := range subs {
		items = append(items, submissionItem{ID: s.ID, Data: s.Data, Files: s.Files, CreatedAt: s.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": items})
}

func parseJSONSubmission(r *http.Request) (models.RawResponse, map[string][]models.FileUpload, error) {
	var req submitRequest
	if err := readJSON(r, &req); err != nil {
		return nil, nil, bodyError(err)
	}
	if req.Responses == nil {
		return nil, nil, apperrors.NewBadRequestError("Form responses are required", nil)
	}
	return req.Responses, req.Files, nil
}

// parseMultipart treats scalar parts as responses and file parts as uploads keyed by field name.
// A "responses" part holding a JSON object is merged in first; explicit scalar parts win.
func (h *SubmissionHandler) parseMultipart(r *http.Request) (models.RawResponse, map[string][]models.FileUpload, error) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return nil, nil, bodyError(err)
	}
	form := r.MultipartForm
	defer form.RemoveAll()

	raw := models.RawResponse{}
	if parts := form.Value["responses"]; len(parts) > 0 {
		if err := json.Unmarshal([]byte(parts[0]), &raw); err != nil {
			return nil, nil, apperrors.NewBadRequestError("responses must be a JSON object", err)
		}
	}
	for key, values := range form.Value {
		if key == "responses" || len(values) == 0 {
			continue
		}
		raw[key] = values[0]
	}

	files := make(map[string][]models.FileUpload, len(form.File))
	for field, headers := range form.File {
		for _, fh := range headers {
			upload, err := readPart(fh)
			if err != nil {
				return nil, nil, apperrors.NewBadRequestError("Could not read uploaded file", err)
			}
			files[field] = append(files[field], upload)
		}
	}
	return raw, files, nil
}

func readPart(fh *multipart.FileHeader) (models.FileUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return models.FileUpload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return models.FileUpload{}, err
	}
	return models.FileUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.NewBadRequestError("Request body too large", err)
	}
	return apperrors.NewBadRequestError("Invalid request body", err)
}
