package queries

import (
	"context"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/decorator"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/architeacher/nocoflo/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	ListTablesQuery struct {
		Actor model.Actor
	}

	ListDatabasesQuery struct {
		Actor model.Actor
	}

	ListColumnsQuery struct {
		Actor   model.Actor
		TableID int64
	}

	ListTablesQueryHandler    = decorator.QueryHandler[ListTablesQuery, []model.TableRef]
	ListDatabasesQueryHandler = decorator.QueryHandler[ListDatabasesQuery, []model.DBConfig]
	ListColumnsQueryHandler   = decorator.QueryHandler[ListColumnsQuery, []model.ColumnMeta]

	catalogQueryHandler struct {
		catalogService ports.CatalogService
	}

	listTablesQueryHandler    struct{ catalogQueryHandler }
	listDatabasesQueryHandler struct{ catalogQueryHandler }
	listColumnsQueryHandler   struct{ catalogQueryHandler }
)

func NewListTablesQueryHandler(
	svc ports.CatalogService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) ListTablesQueryHandler {
	return decorator.ApplyQueryDecorators[ListTablesQuery, []model.TableRef](
		listTablesQueryHandler{catalogQueryHandler{catalogService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewListDatabasesQueryHandler(
	svc ports.CatalogService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) ListDatabasesQueryHandler {
	return decorator.ApplyQueryDecorators[ListDatabasesQuery, []model.DBConfig](
		listDatabasesQueryHandler{catalogQueryHandler{catalogService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewListColumnsQueryHandler(
	svc ports.CatalogService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) ListColumnsQueryHandler {
	return decorator.ApplyQueryDecorators[ListColumnsQuery, []model.ColumnMeta](
		listColumnsQueryHandler{catalogQueryHandler{catalogService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h listTablesQueryHandler) Execute(ctx context.Context, query ListTablesQuery) ([]model.TableRef, error) {
	return h.catalogService.ListAccessibleTables(ctx, query.Actor)
}

func (h listDatabasesQueryHandler) Execute(ctx context.Context, query ListDatabasesQuery) ([]model.DBConfig, error) {
	return h.catalogService.ListDatabases(ctx, query.Actor)
}

func (h listColumnsQueryHandler) Execute(ctx context.Context, query ListColumnsQuery) ([]model.ColumnMeta, error) {
	return h.catalogService.ListColumns(ctx, query.Actor, query.TableID)
}
