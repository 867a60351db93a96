package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "formflow/internal/common/errors"
	"formflow/internal/common/logger"
	"formflow/internal/models"
)

const testSecret = "test-secret"

type apiFixture struct {
	subs   *fakeSubmissions
	forms  *fakeForms
	router http.Handler
}

func newAPI(t *testing.T, maxUpload int64) *apiFixture {
	t.Helper()
	f := &apiFixture{
		subs: &fakeSubmissions{receipt: &models.Receipt{
			ID:        "sub-1",
			FormID:    "form-1",
			CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		}},
		forms: newFakeForms(),
	}
	f.router = NewRouter(RouterOptions{
		JWTSecret:   testSecret,
		Logger:      logger.NewTestLogger(t),
		Submissions: NewSubmissionHandler(f.subs, maxUpload),
		Forms:       NewFormHandler(f.forms),
		HealthChecks: map[string]HealthCheck{
			"postgres": func(ctx context.Context) error { return nil },
		},
	})
	return f
}

func (f *apiFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := GenerateToken(testSecret, userID, userID+"@example.com", "owner", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

type errorEnvelope struct {
	Error struct {
		Code        string                     `json:"code"`
		Message     string                     `json:"message"`
		FieldErrors []apperrors.FieldViolation `json:"fieldErrors"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

// ==========================
// Submit
// ==========================

func TestSubmit_JSON(t *testing.T) {
	api := newAPI(t, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/form-1",
		strings.NewReader(`{"responses":{"email":"a@b.co","age":"30"}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := api.do(req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{
		"message": "Form submitted successfully",
		"submission": {"id": "sub-1", "formId": "form-1", "createdAt": "2024-05-01T10:00:00Z"}
	}`, rec.Body.String())
	assert.Equal(t, "form-1", api.subs.gotForm)
	assert.Equal(t, "a@b.co", api.subs.gotRaw["email"])
}

func TestSubmit_JSONWithoutResponses(t *testing.T) {
	api := newAPI(t, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/form-1", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := api.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
	assert.Equal(t, "Form responses are required", env.Error.Message)
	assert.Empty(t, api.subs.gotForm)
}

func TestSubmit_MalformedJSON(t *testing.T) {
	api := newAPI(t, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/form-1", strings.NewReader(`{"responses":`))
	req.Header.Set("Content-Type", "application/json")

	assert.Equal(t, http.StatusBadRequest, api.do(req).Code)
}

func TestSubmit_Multipart(t *testing.T) {
	api := newAPI(t, 1<<20)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("responses", `{"name":"Ada","age":36}`))
	require.NoError(t, mw.WriteField("email", "ada@example.com"))
	part, err := mw.CreateFormFile("resume", "cv.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4"))
	part, err = mw.CreateFormFile("resume", "cover.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/form-1", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := api.do(req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Ada", api.subs.gotRaw["name"])
	assert.Equal(t, float64(36), api.subs.gotRaw["age"])
	assert.Equal(t, "ada@example.com", api.subs.gotRaw["email"])
	require.Len(t, api.subs.gotFiles["resume"], 2)
	assert.Equal(t, "cv.pdf", api.subs.gotFiles["resume"][0].Filename)
	assert.Equal(t, []byte("hello"), api.subs.gotFiles["resume"][1].Data)
}

func TestSubmit_BodyTooLarge(t *testing.T) {
	api := newAPI(t, 64)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/form-1",
		strings.NewReader(`{"responses":{"essay":"`+strings.Repeat("x", 256)+`"}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := api.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body too large", decodeError(t, rec).Error.Message)
}

func TestSubmit_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", apperrors.NewNotFoundError("form-1"), http.StatusNotFound, "NOT_FOUND"},
		{"validation", apperrors.NewValidationFailedError([]apperrors.FieldViolation{
			{Field: "email", Kind: "MISSING_REQUIRED", Message: "Email is required"},
		}), http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"attachment", apperrors.NewAttachmentFailedError("resume", errors.New("s3: AccessDenied")), http.StatusBadGateway, "ATTACHMENT_FAILED"},
		{"persistence", apperrors.NewPersistenceFailedError(errors.New("pq: connection refused")), http.StatusInternalServerError, "PERSISTENCE_FAILED"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newAPI(t, 1<<20)
			api.subs.err = tt.err

			req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/form-1", strings.NewReader(`{"responses":{}}`))
			req.Header.Set("Content-Type", "application/json")
			rec := api.do(req)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error.Code)
			assert.NotContains(t, rec.Body.String(), "AccessDenied")
			assert.NotContains(t, rec.Body.String(), "pq:")
		})
	}
}

func TestSubmit_ValidationFieldErrorsRendered(t *testing.T) {
	api := newAPI(t, 1<<20)
	api.subs.err = apperrors.NewValidationFailedError([]apperrors.FieldViolation{
		{Field: "email", Kind: "CONSTRAINT_VIOLATION", Constraint: "pattern", Message: "Please enter a valid email address"},
		{Field: "age", Kind: "TYPE_MISMATCH", Message: "Age must be a number"},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/form-1", strings.NewReader(`{"responses":{}}`))
	req.Header.Set("Content-Type", "application/json")
	env := decodeError(t, api.do(req))

	require.Len(t, env.Error.FieldErrors, 2)
	assert.Equal(t, "email", env.Error.FieldErrors[0].Field)
	assert.Equal(t, "age", env.Error.FieldErrors[1].Field)
}

// ==========================
// List submissions
// ==========================

func TestListSubmissions_RequiresToken(t *testing.T) {
	api := newAPI(t, 1<<20)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/form-1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := api.do(req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHENTICATED", decodeError(t, rec).Error.Code)
		})
	}
}

func TestListSubmissions_RejectsForeignSignature(t *testing.T) {
	api := newAPI(t, 1<<20)
	token, err := GenerateToken("other-secret", "user-1", "", "", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/form-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, api.do(req).Code)
}

func TestListSubmissions_RejectsExpiredToken(t *testing.T) {
	api := newAPI(t, 1<<20)
	token, err := GenerateToken(testSecret, "user-1", "", "", -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/form-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, api.do(req).Code)
}

func TestListSubmissions_RejectsNoneAlgorithm(t *testing.T) {
	api := newAPI(t, 1<<20)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/form-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, api.do(req).Code)
}

func TestListSubmissions_Owner(t *testing.T) {
	api := newAPI(t, 1<<20)
	created := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	api.subs.subs = []models.Submission{{
		ID:        "sub-2",
		FormID:    "form-1",
		Data:      models.ValidatedResponse{"email": "a@b.co"},
		Files:     []models.StorageReference{},
		CreatedAt: created,
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/form-1", nil)
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rec := api.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"submissions":[{"id":"sub-2","data":{"email":"a@b.co"},"files":[],"createdAt":"2024-05-02T00:00:00Z"}]}`, rec.Body.String())
	assert.Equal(t, "user-1", api.subs.gotUserID)
}

func TestListSubmissions_NotOwner(t *testing.T) {
	api := newAPI(t, 1<<20)
	api.subs.err = apperrors.NewNotFoundError("form-1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/form-1", nil)
	req.Header.Set("Authorization", bearer(t, "user-2"))
	rec := api.do(req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Form not found", decodeError(t, rec).Error.Message)
}

// ==========================
// Forms
// ==========================

func TestForms_CreateGetList(t *testing.T) {
	api := newAPI(t, 1<<20)

	body := `{"prompt":"contact form","schema":{"title":"Contact","fields":[{"name":"email","type":"email","label":"Email","required":true}]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/forms", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rec := api.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "user-1", api.forms.forms["form-new"].UserID)

	rec = api.do(httptest.NewRequest(http.MethodGet, "/api/v1/forms/form-new", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Contact"`)
	assert.NotContains(t, rec.Body.String(), "user-1")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/forms", nil)
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rec = api.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Forms []models.Form `json:"forms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed.Forms, 1)
}

func TestForms_CreateRejectsInvalidSchema(t *testing.T) {
	api := newAPI(t, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/forms",
		strings.NewReader(`{"schema":{"title":"","fields":[]}}`))
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rec := api.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, api.forms.forms)
}

func TestForms_CreateRequiresAuth(t *testing.T) {
	api := newAPI(t, 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/forms", strings.NewReader(`{}`))

	assert.Equal(t, http.StatusUnauthorized, api.do(req).Code)
}

func TestForms_GetUnknown(t *testing.T) {
	api := newAPI(t, 1<<20)
	rec := api.do(httptest.NewRequest(http.MethodGet, "/api/v1/forms/missing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Error.Code)
}

// ==========================
// Operational endpoints
// ==========================

func TestHealthz(t *testing.T) {
	api := newAPI(t, 1<<20)
	rec := api.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	router := NewRouter(RouterOptions{
		JWTSecret:   testSecret,
		Logger:      logger.NewNoOpLogger(),
		Submissions: NewSubmissionHandler(&fakeSubmissions{}, 1<<20),
		Forms:       NewFormHandler(newFakeForms()),
		HealthChecks: map[string]HealthCheck{
			"redis": func(ctx context.Context) error { return errors.New("dial tcp: refused") },
		},
	})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}

func TestMetricsEndpoint(t *testing.T) {
	api := newAPI(t, 1<<20)
	rec := api.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
