package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"formflow/internal/common/logger"
	"formflow/internal/common/metrics"
	"formflow/internal/models"
)

// SchemaGetter is the lookup CachedSchemaSource sits in front of.
type SchemaGetter interface {
	GetSchema(ctx context.Context, formID string) (*models.FormSchema, error)
}

// CachedSchemaSource is a read-through Redis cache for published schemas.
// Schemas never change after publish, so entries only expire.
type CachedSchemaSource struct {
	next   SchemaGetter
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedSchemaSource(next SchemaGetter, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedSchemaSource {
	return &CachedSchemaSource{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "schema-cache"}),
	}
}

func schemaCacheKey(formID string) string {
	return "form:schema:" + formID
}

// GetSchema serves from Redis when possible. Cache errors fall through to the backing source.
func (c *CachedSchemaSource) GetSchema(ctx context.Context, formID string) (*models.FormSchema, error) {
	key := schemaCacheKey(formID)

	val, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var schema models.FormSchema
		if jsonErr := json.Unmarshal([]byte(val), &schema); jsonErr == nil {
			metrics.SchemaCacheLookups.WithLabelValues("hit").Inc()
			return &schema, nil
		}
		c.logger.Warn("discarding undecodable cached schema", map[string]interface{}{"formId": formID})
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("schema cache read failed", map[string]interface{}{"formId": formID, "error": err.Error()})
	}
	metrics.SchemaCacheLookups.WithLabelValues("miss").Inc()

	schema, err := c.next.GetSchema(ctx, formID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(schema)
	if err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("schema cache write failed", map[string]interface{}{"formId": formID, "error": err.Error()})
		}
	}
	return schema, nil
}
