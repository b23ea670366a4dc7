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
	InsertRowCommand struct {
		Actor   model.Actor
		TableID int64
		Payload map[string]any
	}

	UpdateRowsCommand struct {
		Actor   model.Actor
		TableID int64
		Filter  model.Filter
		Payload map[string]any
	}

	EditCellCommand struct {
		Actor   model.Actor
		TableID int64
		RowPK   string
		Column  string
		Value   any
	}

	DeleteRowsCommand struct {
		Actor   model.Actor
		TableID int64
		Filter  model.Filter
	}

	LockRowCommand struct {
		Actor   model.Actor
		TableID int64
		RowPK   string
	}

	UnlockRowCommand struct {
		Actor   model.Actor
		TableID int64
		RowPK   string
	}

	// Mutations report the number of rows they touched.
	InsertRowCommandHandler  = decorator.CommandHandler[InsertRowCommand, int64]
	UpdateRowsCommandHandler = decorator.CommandHandler[UpdateRowsCommand, int64]
	EditCellCommandHandler   = decorator.CommandHandler[EditCellCommand, int64]
	DeleteRowsCommandHandler = decorator.CommandHandler[DeleteRowsCommand, int64]
	LockRowCommandHandler    = decorator.CommandHandler[LockRowCommand, struct{}]
	UnlockRowCommandHandler  = decorator.CommandHandler[UnlockRowCommand, struct{}]

	rowsCommandHandler struct {
		rowsService ports.RowsService
	}
)

func NewInsertRowCommandHandler(
	svc ports.RowsService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) InsertRowCommandHandler {
	return decorator.ApplyCommandDecorators[InsertRowCommand, int64](
		insertRowCommandHandler{rowsCommandHandler{rowsService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewUpdateRowsCommandHandler(
	svc ports.RowsService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) UpdateRowsCommandHandler {
	return decorator.ApplyCommandDecorators[UpdateRowsCommand, int64](
		updateRowsCommandHandler{rowsCommandHandler{rowsService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewEditCellCommandHandler(
	svc ports.RowsService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) EditCellCommandHandler {
	return decorator.ApplyCommandDecorators[EditCellCommand, int64](
		editCellCommandHandler{rowsCommandHandler{rowsService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewDeleteRowsCommandHandler(
	svc ports.RowsService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) DeleteRowsCommandHandler {
	return decorator.ApplyCommandDecorators[DeleteRowsCommand, int64](
		deleteRowsCommandHandler{rowsCommandHandler{rowsService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewLockRowCommandHandler(
	svc ports.RowsService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) LockRowCommandHandler {
	return decorator.ApplyCommandDecorators[LockRowCommand, struct{}](
		lockRowCommandHandler{rowsCommandHandler{rowsService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

func NewUnlockRowCommandHandler(
	svc ports.RowsService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) UnlockRowCommandHandler {
	return decorator.ApplyCommandDecorators[UnlockRowCommand, struct{}](
		unlockRowCommandHandler{rowsCommandHandler{rowsService: svc}},
		log,
		tracerProvider,
		metricsClient,
	)
}

type (
	insertRowCommandHandler  struct{ rowsCommandHandler }
	updateRowsCommandHandler struct{ rowsCommandHandler }
	editCellCommandHandler   struct{ rowsCommandHandler }
	deleteRowsCommandHandler struct{ rowsCommandHandler }
	lockRowCommandHandler    struct{ rowsCommandHandler }
	unlockRowCommandHandler  struct{ rowsCommandHandler }
)

func (h insertRowCommandHandler) Handle(ctx context.Context, cmd InsertRowCommand) (int64, error) {
	return h.rowsService.InsertRow(ctx, cmd.Actor, cmd.TableID, cmd.Payload)
}

func (h updateRowsCommandHandler) Handle(ctx context.Context, cmd UpdateRowsCommand) (int64, error) {
	return h.rowsService.UpdateRows(ctx, cmd.Actor, cmd.TableID, cmd.Filter, cmd.Payload)
}

func (h editCellCommandHandler) Handle(ctx context.Context, cmd EditCellCommand) (int64, error) {
	return h.rowsService.EditCell(ctx, cmd.Actor, cmd.TableID, cmd.RowPK, cmd.Column, cmd.Value)
}

func (h deleteRowsCommandHandler) Handle(ctx context.Context, cmd DeleteRowsCommand) (int64, error) {
	return h.rowsService.DeleteRows(ctx, cmd.Actor, cmd.TableID, cmd.Filter)
}

func (h lockRowCommandHandler) Handle(ctx context.Context, cmd LockRowCommand) (struct{}, error) {
	return struct{}{}, h.rowsService.LockRow(ctx, cmd.Actor, cmd.TableID, cmd.RowPK)
}

func (h unlockRowCommandHandler) Handle(ctx context.Context, cmd UnlockRowCommand) (struct{}, error) {
	return struct{}{}, h.rowsService.UnlockRow(ctx, cmd.Actor, cmd.TableID, cmd.RowPK)
}
