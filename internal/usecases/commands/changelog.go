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
	ClearChangelogCommand struct {
		Actor   model.Actor
		TableID int64
	}

	// PurgeExpiredLocksCommand is issued by the lock sweeper, not by users.
	PurgeExpiredLocksCommand struct{}

	ClearChangelogCommandHandler    = decorator.CommandHandler[ClearChangelogCommand, int64]
	PurgeExpiredLocksCommandHandler = decorator.CommandHandler[PurgeExpiredLocksCommand, int64]

	clearChangelogCommandHandler struct {
		auditService ports.AuditService
	}

	purgeExpiredLocksCommandHandler struct {
		lockService ports.LockService
	}
)

func NewClearChangelogCommandHandler(
	svc ports.AuditService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) ClearChangelogCommandHandler {
	return decorator.ApplyCommandDecorators[ClearChangelogCommand, int64](
		clearChangelogCommandHandler{auditService: svc},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h clearChangelogCommandHandler) Handle(ctx context.Context, cmd ClearChangelogCommand) (int64, error) {
	return h.auditService.ClearChangelog(ctx, cmd.Actor, cmd.TableID)
}

func NewPurgeExpiredLocksCommandHandler(
	svc ports.LockService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) PurgeExpiredLocksCommandHandler {
	return decorator.ApplyCommandDecorators[PurgeExpiredLocksCommand, int64](
		purgeExpiredLocksCommandHandler{lockService: svc},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h purgeExpiredLocksCommandHandler) Handle(ctx context.Context, _ PurgeExpiredLocksCommand) (int64, error) {
	return h.lockService.PurgeExpired(ctx)
}
