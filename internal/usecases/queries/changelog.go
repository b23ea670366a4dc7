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
	GetChangelogQuery struct {
		Actor   model.Actor
		TableID int64
		Page    model.Page
	}

	GetRowChangelogQuery struct {
		Actor   model.Actor
		TableID int64
		RowPK   string
	}

	GetUserChangelogQuery struct {
		Actor  model.Actor
		UserID int64
		Page   model.Page
	}

	GetChangelogQueryHandler     = decorator.QueryHandler[GetChangelogQuery, []model.ChangelogView]
	GetRowChangelogQueryHandler  = decorator.QueryHandler[GetRowChangelogQuery, []model.ChangelogView]
	GetUserChangelogQueryHandler = decorator.QueryHandler[GetUserChangelogQuery, []model.ChangelogView]

	changelogQueryHandler struct {
		auditService ports.AuditService
	}

	getChangelogQueryHandler     struct{ changelogQueryHandler }
	getRowChangelogQueryHandler  struct{ changelogQueryHandler }
	getUserChangelogQueryHandler struct{ changelogQueryHandler }
)

func NewGetChangelogQueryHandler(
	svc ports.AuditService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) GetChangelogQueryHandler {
	return decorator.ApplyQueryDecorators[GetChangelogQuery, []model.ChangelogView](
		getChangelogQueryHandler{changelogQueryHandler{auditService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewGetRowChangelogQueryHandler(
	svc ports.AuditService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) GetRowChangelogQueryHandler {
	return decorator.ApplyQueryDecorators[GetRowChangelogQuery, []model.ChangelogView](
		getRowChangelogQueryHandler{changelogQueryHandler{auditService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewGetUserChangelogQueryHandler(
	svc ports.AuditService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) GetUserChangelogQueryHandler {
	return decorator.ApplyQueryDecorators[GetUserChangelogQuery, []model.ChangelogView](
		getUserChangelogQueryHandler{changelogQueryHandler{auditService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h getChangelogQueryHandler) Execute(ctx context.Context, query GetChangelogQuery) ([]model.ChangelogView, error) {
	return h.auditService.GetChangelog(ctx, query.Actor, query.TableID, query.Page)
}

func (h getRowChangelogQueryHandler) Execute(ctx context.Context, query GetRowChangelogQuery) ([]model.ChangelogView, error) {
	return h.auditService.GetRowChangelog(ctx, query.Actor, query.TableID, query.RowPK)
}

func (h getUserChangelogQueryHandler) Execute(ctx context.Context, query GetUserChangelogQuery) ([]model.ChangelogView, error) {
	return h.auditService.GetUserChangelog(ctx, query.Actor, query.UserID, query.Page)
}
