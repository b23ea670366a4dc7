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
	GrantPermissionCommand struct {
		Actor   model.Actor
		TableID int64
		UserID  int64
		Level   model.Level
	}

	RevokePermissionCommand struct {
		Actor   model.Actor
		TableID int64
		UserID  int64
	}

	GrantPermissionCommandHandler  = decorator.CommandHandler[GrantPermissionCommand, struct{}]
	RevokePermissionCommandHandler = decorator.CommandHandler[RevokePermissionCommand, struct{}]

	grantPermissionCommandHandler struct {
		accessService ports.AccessService
	}

	revokePermissionCommandHandler struct {
		accessService ports.AccessService
	}
)

func NewGrantPermissionCommandHandler(
	svc ports.AccessService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) GrantPermissionCommandHandler {
	return decorator.ApplyCommandDecorators[GrantPermissionCommand, struct{}](
		grantPermissionCommandHandler{accessService: svc},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h grantPermissionCommandHandler) Handle(ctx context.Context, cmd GrantPermissionCommand) (struct{}, error) {
	if err := h.accessService.GrantPermission(ctx, cmd.Actor, cmd.TableID, cmd.UserID, cmd.Level); err != nil {
		return struct{}{}, err
	}

	return struct{}{}, nil
}

func NewRevokePermissionCommandHandler(
	svc ports.AccessService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) RevokePermissionCommandHandler {
	return decorator.ApplyCommandDecorators[RevokePermissionCommand, struct{}](
		revokePermissionCommandHandler{accessService: svc},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h revokePermissionCommandHandler) Handle(ctx context.Context, cmd RevokePermissionCommand) (struct{}, error) {
	if err := h.accessService.RevokePermission(ctx, cmd.Actor, cmd.TableID, cmd.UserID); err != nil {
		return struct{}{}, err
	}

	return struct{}{}, nil
}
