package commands

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
	CreateUserCommand struct {
		Actor    model.Actor
		Name     string
		Email    string
		Password string
		Role     model.Role
	}

	UpdateUserRoleCommand struct {
		Actor  model.Actor
		UserID int64
		Role   model.Role
	}

	DeleteUserCommand struct {
		Actor  model.Actor
		UserID int64
	}

	CreateInviteCommand struct {
		Actor model.Actor
		Email string
	}

	// RegisterUserCommand redeems an invite; it carries no actor.
	RegisterUserCommand struct {
		Token    string
		Name     string
		Password string
	}

	CreateUserCommandHandler     = decorator.CommandHandler[CreateUserCommand, model.User]
	UpdateUserRoleCommandHandler = decorator.CommandHandler[UpdateUserRoleCommand, struct{}]
	DeleteUserCommandHandler     = decorator.CommandHandler[DeleteUserCommand, struct{}]
	CreateInviteCommandHandler   = decorator.CommandHandler[CreateInviteCommand, model.Invite]
	RegisterUserCommandHandler   = decorator.CommandHandler[RegisterUserCommand, model.User]

	usersCommandHandler struct {
		usersService ports.UsersService
	}

	createUserCommandHandler     struct{ usersCommandHandler }
	updateUserRoleCommandHandler struct{ usersCommandHandler }
	deleteUserCommandHandler     struct{ usersCommandHandler }
	createInviteCommandHandler   struct{ usersCommandHandler }
	registerUserCommandHandler   struct{ usersCommandHandler }
)

func NewCreateUserCommandHandler(
	svc ports.UsersService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) CreateUserCommandHandler {
	return decorator.ApplyCommandDecorators[CreateUserCommand, model.User](
		createUserCommandHandler{usersCommandHandler{usersService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewUpdateUserRoleCommandHandler(
	svc ports.UsersService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) UpdateUserRoleCommandHandler {
	return decorator.ApplyCommandDecorators[UpdateUserRoleCommand, struct{}](
		updateUserRoleCommandHandler{usersCommandHandler{usersService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewDeleteUserCommandHandler(
	svc ports.UsersService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) DeleteUserCommandHandler {
	return decorator.ApplyCommandDecorators[DeleteUserCommand, struct{}](
		deleteUserCommandHandler{usersCommandHandler{usersService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewCreateInviteCommandHandler(
	svc ports.UsersService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) CreateInviteCommandHandler {
	return decorator.ApplyCommandDecorators[CreateInviteCommand, model.Invite](
		createInviteCommandHandler{usersCommandHandler{usersService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewRegisterUserCommandHandler(
	svc ports.UsersService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) RegisterUserCommandHandler {
	return decorator.ApplyCommandDecorators[RegisterUserCommand, model.User](
		registerUserCommandHandler{usersCommandHandler{usersService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h createUserCommandHandler) Handle(ctx context.Context, cmd CreateUserCommand) (model.User, error) {
	return h.usersService.CreateUser(ctx, cmd.Actor, cmd.Name, cmd.Email, cmd.Password, cmd.Role)
}

func (h updateUserRoleCommandHandler) Handle(ctx context.Context, cmd UpdateUserRoleCommand) (struct{}, error) {
	return struct{}{}, h.usersService.UpdateRole(ctx, cmd.Actor, cmd.UserID, cmd.Role)
}

func (h deleteUserCommandHandler) Handle(ctx context.Context, cmd DeleteUserCommand) (struct{}, error) {
	return struct{}{}, h.usersService.DeleteUser(ctx, cmd.Actor, cmd.UserID)
}

func (h createInviteCommandHandler) Handle(ctx context.Context, cmd CreateInviteCommand) (model.Invite, error) {
	return h.usersService.CreateInvite(ctx, cmd.Actor, cmd.Email)
}

func (h registerUserCommandHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (model.User, error) {
	return h.usersService.Register(ctx, cmd.Token, cmd.Name, cmd.Password)
}
