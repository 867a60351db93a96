package submission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formflow/internal/common/logger"
	"formflow/internal/models"
)

func fileFields(names ...string) []models.FieldDefinition {
	out := make([]models.FieldDefinition, 0, len(names))
	for _, n := range names {
		out = append(out, models.FieldDefinition{Name: n, Type: models.FieldTypeFile, Label: n})
	}
	return out
}

func TestCoordinator_PreservesOrderRegardlessOfCompletion(t *testing.T) {
	store := newFakeStorage()
	store.delays["A.jpg"] = 40 * time.Millisecond
	store.delays["B.jpg"] = 1 * time.Millisecond
	c := NewCoordinator(store, "form-submissions", 4, logger.NewTestLogger(t))

	refs, err := c.Upload(context.Background(), "f-1", fileFields("photos"), map[string][]models.FileUpload{
		"photos": {upload("A.jpg"), upload("B.jpg")},
	})
	require.NoError(t, err)

	require.Len(t, refs["photos"], 2)
	assert.Equal(t, "form-submissions/f-1/A.jpg", refs["photos"][0].StorageID)
	assert.Equal(t, "form-submissions/f-1/B.jpg", refs["photos"][1].StorageID)
	assert.Equal(t, []string{"B.jpg", "A.jpg"}, store.puts, "B should finish first")
}

func TestCoordinator_EmptyInput(t *testing.T) {
	store := newFakeStorage()
	c := NewCoordinator(store, "form-submissions", 2, logger.NewNoOpLogger())

	refs, err := c.Upload(context.Background(), "f-1", fileFields("photos"), nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
	assert.Equal(t, 0, store.putCount())
}

func TestCoordinator_FirstFailingFieldInSchemaOrder(t *testing.T) {
	store := newFakeStorage()
	store.failOn["late.pdf"] = errors.New("quota exceeded")
	store.failOn["early.pdf"] = errors.New("bucket gone")
	// The second field's failure completes first.
	store.delays["late.pdf"] = 30 * time.Millisecond
	c := NewCoordinator(store, "root", 4, logger.NewTestLogger(t))

	refs, err := c.Upload(context.Background(), "f-9", fileFields("resume", "cover"), map[string][]models.FileUpload{
		"resume": {upload("ok.pdf"), upload("late.pdf")},
		"cover":  {upload("early.pdf")},
	})
	require.Error(t, err)
	assert.Nil(t, refs)

	var attErr *AttachmentError
	require.ErrorAs(t, err, &attErr)
	assert.Equal(t, "resume", attErr.FieldName)
	assert.EqualError(t, attErr.Cause, "quota exceeded")
	require.Len(t, attErr.Uploaded, 1)
	assert.Equal(t, "root/f-9/ok.pdf", attErr.Uploaded[0].StorageID)
}

func TestCoordinator_IgnoresCallerCancellation(t *testing.T) {
	store := newFakeStorage()
	c := NewCoordinator(store, "root", 1, logger.NewNoOpLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	refs, err := c.Upload(ctx, "f-1", fileFields("doc"), map[string][]models.FileUpload{
		"doc": {upload("a.txt"), upload("b.txt")},
	})
	require.NoError(t, err)
	assert.Len(t, refs["doc"], 2)
	for _, e := range store.ctxErrs {
		assert.NoError(t, e)
	}
}

func TestCoordinator_SkipsFieldsWithoutBuffers(t *testing.T) {
	store := newFakeStorage()
	c := NewCoordinator(store, "root", 0, logger.NewNoOpLogger())

	refs, err := c.Upload(context.Background(), "f-1", fileFields("a", "b"), map[string][]models.FileUpload{
		"b": {upload("x.png")},
	})
	require.NoError(t, err)
	assert.NotContains(t, refs, "a")
	assert.Len(t, refs["b"], 1)
}
