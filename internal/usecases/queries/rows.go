package queries

import (
	"context"
	"time"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/decorator"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/architeacher/nocoflo/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	ReadRowsQuery struct {
		Actor   model.Actor
		TableID int64
		Spec    model.QuerySpec
	}

	GetTableSchemaQuery struct {
		Actor   model.Actor
		TableID int64
	}

	// describeTableQuery is the cacheable part of GetTableSchemaQuery. It
	// carries no actor, so cached schemas are shared between users.
	describeTableQuery struct {
		TableID int64
	}

	ReadRowsQueryHandler       = decorator.QueryHandler[ReadRowsQuery, *model.Table]
	GetTableSchemaQueryHandler = decorator.QueryHandler[GetTableSchemaQuery, model.Schema]

	readRowsQueryHandler struct {
		rowsService ports.RowsService
	}

	getTableSchemaQueryHandler struct {
		accessService ports.AccessService
		describe      decorator.QueryHandler[describeTableQuery, model.Schema]
	}

	describeTableQueryHandler struct {
		rowsService ports.RowsService
	}

	schemaCache struct {
		cache ports.SchemaCache
	}
)

func NewReadRowsQueryHandler(
	svc ports.RowsService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) ReadRowsQueryHandler {
	return decorator.ApplyQueryDecorators[ReadRowsQuery, *model.Table](
		readRowsQueryHandler{rowsService: svc},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h readRowsQueryHandler) Execute(ctx context.Context, query ReadRowsQuery) (*model.Table, error) {
	return h.rowsService.ReadRows(ctx, query.Actor, query.TableID, query.Spec)
}

// NewGetTableSchemaQueryHandler checks read access, then serves the schema
// through cache when one is given.
func NewGetTableSchemaQueryHandler(
	rowsSvc ports.RowsService,
	accessSvc ports.AccessService,
	cache ports.SchemaCache,
	cacheCfg decorator.CacheConfig,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) GetTableSchemaQueryHandler {
	var c decorator.Cache[describeTableQuery, model.Schema]
	if cache != nil {
		c = schemaCache{cache: cache}
	}

	return decorator.ApplyQueryDecorators[GetTableSchemaQuery, model.Schema](
		getTableSchemaQueryHandler{
			accessService: accessSvc,
			describe: decorator.NewQueryCachingDecorator[describeTableQuery, model.Schema](
				describeTableQueryHandler{rowsService: rowsSvc},
				c,
				cacheCfg,
				metricsClient,
			),
		},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h getTableSchemaQueryHandler) Execute(ctx context.Context, query GetTableSchemaQuery) (model.Schema, error) {
	if err := h.accessService.RequirePermission(ctx, query.Actor, query.TableID, model.PermRead); err != nil {
		return nil, err
	}

	return h.describe.Execute(ctx, describeTableQuery{TableID: query.TableID})
}

func (h describeTableQueryHandler) Execute(ctx context.Context, query describeTableQuery) (model.Schema, error) {
	return h.rowsService.DescribeTable(ctx, query.TableID)
}

func (c schemaCache) Get(ctx context.Context, query describeTableQuery) (model.Schema, bool, error) {
	result, err := c.cache.GetSchema(ctx, query.TableID)
	if err != nil {
		return nil, false, err
	}

	return result.Data, result.Hit, nil
}

func (c schemaCache) Set(ctx context.Context, query describeTableQuery, schema model.Schema, ttl time.Duration) error {
	return c.cache.SetSchema(ctx, query.TableID, schema, ttl)
}
