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
	ListUsersQuery struct {
		Actor model.Actor
	}

	ResolveActorQuery struct {
		UserID int64
	}

	AuthenticateQuery struct {
		Email    string
		Password string
	}

	ListUsersQueryHandler    = decorator.QueryHandler[ListUsersQuery, []model.User]
	ResolveActorQueryHandler = decorator.QueryHandler[ResolveActorQuery, model.Actor]
	AuthenticateQueryHandler = decorator.QueryHandler[AuthenticateQuery, model.User]

	usersQueryHandler struct {
		usersService ports.UsersService
	}

	listUsersQueryHandler    struct{ usersQueryHandler }
	resolveActorQueryHandler struct{ usersQueryHandler }
	authenticateQueryHandler struct{ usersQueryHandler }
)

func NewListUsersQueryHandler(
	svc ports.UsersService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) ListUsersQueryHandler {
	return decorator.ApplyQueryDecorators[ListUsersQuery, []model.User](
		listUsersQueryHandler{usersQueryHandler{usersService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewResolveActorQueryHandler(
	svc ports.UsersService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) ResolveActorQueryHandler {
	return decorator.ApplyQueryDecorators[ResolveActorQuery, model.Actor](
		resolveActorQueryHandler{usersQueryHandler{usersService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewAuthenticateQueryHandler(
	svc ports.UsersService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) AuthenticateQueryHandler {
	return decorator.ApplyQueryDecorators[AuthenticateQuery, model.User](
		authenticateQueryHandler{usersQueryHandler{usersService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h listUsersQueryHandler) Execute(ctx context.Context, query ListUsersQuery) ([]model.User, error) {
	return h.usersService.ListUsers(ctx, query.Actor)
}

func (h resolveActorQueryHandler) Execute(ctx context.Context, query ResolveActorQuery) (model.Actor, error) {
	return h.usersService.ResolveActor(ctx, query.UserID)
}

func (h authenticateQueryHandler) Execute(ctx context.Context, query AuthenticateQuery) (model.User, error) {
	return h.usersService.Authenticate(ctx, query.Email, query.Password)
}
