package submission

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"formflow/internal/models"
)

// ==========================
// Test Doubles
// ==========================

type fakeSchemas struct {
	forms map[string]*models.FormSchema
	owner map[string]string
	err   error
}

func (f *fakeSchemas) GetSchema(ctx context.Context, formID string) (*models.FormSchema, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.forms[formID]
	if !ok {
		return nil, models.ErrFormNotFound
	}
	return s, nil
}

func (f *fakeSchemas) GetOwnedSchema(ctx context.Context, formID, userID string) (*models.FormSchema, error) {
	s, ok := f.forms[formID]
	if !ok || f.owner[formID] != userID {
		return nil, models.ErrFormNotFound
	}
	return s, nil
}

type fakeRepo struct {
	mu          sync.Mutex
	created     []*models.Submission
	createCalls int
	createErr   error
	clock       time.Time
}

func (r *fakeRepo) Create(ctx context.Context, sub *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.createErr != nil {
		return r.createErr
	}
	if r.clock.IsZero() {
		r.clock = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	r.clock = r.clock.Add(time.Minute)
	sub.ID = uuid.New().String()
	sub.CreatedAt = r.clock
	r.created = append(r.created, sub)
	return nil
}

func (r *fakeRepo) ListByForm(ctx context.Context, formID string) ([]models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Submission
	for _, s := range r.created {
		if s.FormID == formID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// fakeStorage delays each Put by the duration encoded for its filename and fails filenames in failOn.
type fakeStorage struct {
	mu      sync.Mutex
	puts    []string
	deleted []string
	delays  map[string]time.Duration
	failOn  map[string]error
	ctxErrs []error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{delays: map[string]time.Duration{}, failOn: map[string]error{}}
}

func (s *fakeStorage) Put(ctx context.Context, file models.FileUpload, folder string) (models.StorageReference, error) {
	if d := s.delays[file.Filename]; d > 0 {
		time.Sleep(d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, file.Filename)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	if err := s.failOn[file.Filename]; err != nil {
		return models.StorageReference{}, err
	}
	id := folder + "/" + file.Filename
	return models.StorageReference{URL: "https://files.test/" + id, StorageID: id}, nil
}

func (s *fakeStorage) Delete(ctx context.Context, storageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, storageID)
	return nil
}

func (s *fakeStorage) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

type recordingSink struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (r *recordingSink) IndexSubmission(ctx context.Context, sub *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, "index:"+sub.ID)
	return r.err
}

func (r *recordingSink) SubmissionCreated(ctx context.Context, sub *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, "notify:"+sub.ID)
	return r.err
}

func upload(name string) models.FileUpload {
	return models.FileUpload{Filename: name, Data: []byte(fmt.Sprintf("content of %s", name))}
}
