package httpapi

import (
	"context"
	"sync"
	"time"

	"formflow/internal/models"
)

// ==========================
// Test Doubles
// ==========================

type fakeSubmissions struct {
	mu        sync.Mutex
	gotForm   string
	gotRaw    models.RawResponse
	gotFiles  map[string][]models.FileUpload
	gotUserID string
	receipt   *models.Receipt
	subs      []models.Submission
	err       error
}

func (f *fakeSubmissions) Submit(ctx context.Context, formID string, raw models.RawResponse, files map[string][]models.FileUpload) (*models.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotForm, f.gotRaw, f.gotFiles = formID, raw, files
	if f.err != nil {
		return nil, f.err
	}
	return f.receipt, nil
}

func (f *fakeSubmissions) ListSubmissions(ctx context.Context, formID, requestingUserID string) ([]models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotForm, f.gotUserID = formID, requestingUserID
	if f.err != nil {
		return nil, f.err
	}
	return f.subs, nil
}

type fakeForms struct {
	mu    sync.Mutex
	forms map[string]*models.Form
	err   error
}

func newFakeForms() *fakeForms {
	return &fakeForms{forms: map[string]*models.Form{}}
}

func (f *fakeForms) Create(ctx context.Context, form *models.Form) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	form.ID = "form-new"
	form.CreatedAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	f.forms[form.ID] = form
	return nil
}

func (f *fakeForms) GetForm(ctx context.Context, formID string) (*models.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	form, ok := f.forms[formID]
	if !ok {
		return nil, models.ErrFormNotFound
	}
	return form, nil
}

func (f *fakeForms) ListByOwner(ctx context.Context, userID string) ([]models.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Form{}
	for _, form := range f.forms {
		if form.UserID == userID {
			out = append(out, *form)
		}
	}
	return out, nil
}
