package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formflow/internal/common/logger"
	"formflow/internal/models"
)

type countingSchemaGetter struct {
	schema *models.FormSchema
	err    error
	calls  int
}

func (g *countingSchemaGetter) GetSchema(_ context.Context, _ string) (*models.FormSchema, error) {
	g.calls++
	return g.schema, g.err
}

func contactSchema() *models.FormSchema {
	return &models.FormSchema{
		Title: "Contact",
		Fields: []models.FieldDefinition{
			{Name: "email", Type: models.FieldTypeEmail, Label: "Email", Required: true},
		},
	}
}

// ==========================
// Against miniredis
// ==========================

func TestCachedSchemaSource_MissThenHit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backing := &countingSchemaGetter{schema: contactSchema()}

	cache := NewCachedSchemaSource(backing, rdb, 5*time.Minute, logger.NewTestLogger(t))

	first, err := cache.GetSchema(context.Background(), formID)
	require.NoError(t, err)
	assert.Equal(t, "Contact", first.Title)
	assert.Equal(t, 1, backing.calls)
	assert.True(t, mr.Exists("form:schema:"+formID))
	assert.Equal(t, 5*time.Minute, mr.TTL("form:schema:"+formID))

	second, err := cache.GetSchema(context.Background(), formID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, backing.calls)
}

func TestCachedSchemaSource_NotFoundIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backing := &countingSchemaGetter{err: models.ErrFormNotFound}

	cache := NewCachedSchemaSource(backing, rdb, time.Minute, logger.NewTestLogger(t))

	_, err := cache.GetSchema(context.Background(), formID)
	assert.ErrorIs(t, err, models.ErrFormNotFound)
	assert.False(t, mr.Exists("form:schema:"+formID))
}

func TestCachedSchemaSource_CorruptEntryFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("form:schema:"+formID, "{not json"))
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backing := &countingSchemaGetter{schema: contactSchema()}

	cache := NewCachedSchemaSource(backing, rdb, time.Minute, logger.NewTestLogger(t))

	schema, err := cache.GetSchema(context.Background(), formID)
	require.NoError(t, err)
	assert.Equal(t, "Contact", schema.Title)
	assert.Equal(t, 1, backing.calls)

	cached, err := mr.Get("form:schema:" + formID)
	require.NoError(t, err)
	assert.Contains(t, cached, `"Contact"`)
}

func TestCachedSchemaSource_RedisDownFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()
	backing := &countingSchemaGetter{schema: contactSchema()}

	cache := NewCachedSchemaSource(backing, rdb, time.Minute, logger.NewTestLogger(t))

	schema, err := cache.GetSchema(context.Background(), formID)
	require.NoError(t, err)
	assert.Equal(t, "Contact", schema.Title)
	assert.Equal(t, 1, backing.calls)
}

// ==========================
// Against redismock
// ==========================

func TestCachedSchemaSource_CommandSequence(t *testing.T) {
	rdb, redisMock := redismock.NewClientMock()
	schema := contactSchema()
	data, err := json.Marshal(schema)
	require.NoError(t, err)

	key := "form:schema:" + formID
	redisMock.ExpectGet(key).RedisNil()
	redisMock.ExpectSet(key, data, 2*time.Minute).SetVal("OK")

	cache := NewCachedSchemaSource(&countingSchemaGetter{schema: schema}, rdb, 2*time.Minute, logger.NewTestLogger(t))

	_, err = cache.GetSchema(context.Background(), formID)
	require.NoError(t, err)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCachedSchemaSource_WriteFailureStillReturnsSchema(t *testing.T) {
	rdb, redisMock := redismock.NewClientMock()
	schema := contactSchema()
	data, err := json.Marshal(schema)
	require.NoError(t, err)

	key := "form:schema:" + formID
	redisMock.ExpectGet(key).RedisNil()
	redisMock.ExpectSet(key, data, time.Minute).SetErr(errors.New("READONLY"))

	cache := NewCachedSchemaSource(&countingSchemaGetter{schema: schema}, rdb, time.Minute, logger.NewTestLogger(t))

	got, err := cache.GetSchema(context.Background(), formID)
	require.NoError(t, err)
	assert.Equal(t, schema, got)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}
