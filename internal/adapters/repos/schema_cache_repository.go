package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/infrastructure"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	schemaCacheVersion = "v1"
	schemaKeyPrefix    = "schema:" + schemaCacheVersion + ":"
)

// cachedColumn mirrors model.ColumnSchema with stable JSON names, so a change
// to the domain type does not silently corrupt entries written before it.
type cachedColumn struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	NotNull    bool    `json:"not_null"`
	Default    *string `json:"default,omitempty"`
	PrimaryKey bool    `json:"pk"`
}

// SchemaCacheRepository caches introspected table schemas in KeyDB.
type SchemaCacheRepository struct {
	client *infrastructure.KeydbClient
	logger logger.Logger
}

func NewSchemaCacheRepository(client *infrastructure.KeydbClient, log logger.Logger) *SchemaCacheRepository {
	return &SchemaCacheRepository{
		client: client,
		logger: log,
	}
}

func (r *SchemaCacheRepository) GetSchema(ctx context.Context, tableID int64) (*ports.CacheResult[model.Schema], error) {
	key := schemaKey(tableID)

	data, err := r.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &ports.CacheResult[model.Schema]{Hit: false, Key: key}, nil
		}

		return nil, fmt.Errorf("getting cached schema: %w", err)
	}

	var cached []cachedColumn
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("unmarshalling cached schema: %w", err)
	}

	schema := make(model.Schema, 0, len(cached))
	for _, c := range cached {
		schema = append(schema, model.ColumnSchema{
			Name:       c.Name,
			Type:       c.Type,
			NotNull:    c.NotNull,
			Default:    c.Default,
			PrimaryKey: c.PrimaryKey,
		})
	}

	return &ports.CacheResult[model.Schema]{Data: schema, Hit: true, Key: key}, nil
}

func (r *SchemaCacheRepository) SetSchema(ctx context.Context, tableID int64, schema model.Schema, ttl time.Duration) error {
	cached := make([]cachedColumn, 0, len(schema))
	for _, c := range schema {
		cached = append(cached, cachedColumn{
			Name:       c.Name,
			Type:       c.Type,
			NotNull:    c.NotNull,
			Default:    c.Default,
			PrimaryKey: c.PrimaryKey,
		})
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshalling schema: %w", err)
	}

	if err := r.client.Set(ctx, schemaKey(tableID), data, ttl); err != nil {
		return fmt.Errorf("setting cached schema: %w", err)
	}

	return nil
}

func (r *SchemaCacheRepository) InvalidateSchema(ctx context.Context, tableID int64) error {
	if err := r.client.Delete(ctx, schemaKey(tableID)); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("invalidating cached schema: %w", err)
	}

	return nil
}

func schemaKey(tableID int64) string {
	return schemaKeyPrefix + strconv.FormatInt(tableID, 10)
}
