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
	ListTableUsersQuery struct {
		Actor   model.Actor
		TableID int64
	}

	GetUserPermissionsQuery struct {
		Actor   model.Actor
		TableID int64
		UserID  int64
	}

	ListTableUsersQueryHandler     = decorator.QueryHandler[ListTableUsersQuery, []model.TableUser]
	GetUserPermissionsQueryHandler = decorator.QueryHandler[GetUserPermissionsQuery, model.Permission]

	listTableUsersQueryHandler struct {
		accessService ports.AccessService
	}

	getUserPermissionsQueryHandler struct {
		accessService ports.AccessService
	}
)

func NewListTableUsersQueryHandler(
	svc ports.AccessService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) ListTableUsersQueryHandler {
	return decorator.ApplyQueryDecorators[ListTableUsersQuery, []model.TableUser](
		listTableUsersQueryHandler{accessService: svc},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h listTableUsersQueryHandler) Execute(ctx context.Context, query ListTableUsersQuery) ([]model.TableUser, error) {
	return h.accessService.ListTableUsers(ctx, query.Actor, query.TableID)
}

func NewGetUserPermissionsQueryHandler(
	svc ports.AccessService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) GetUserPermissionsQueryHandler {
	return decorator.ApplyQueryDecorators[GetUserPermissionsQuery, model.Permission](
		getUserPermissionsQueryHandler{accessService: svc},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h getUserPermissionsQueryHandler) Execute(ctx context.Context, query GetUserPermissionsQuery) (model.Permission, error) {
	return h.accessService.GetUserPermissions(ctx, query.Actor, query.TableID, query.UserID)
}
