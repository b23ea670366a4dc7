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
	RegisterDatabaseCommand struct {
		Actor            model.Actor
		Name             string
		ConnectionString string
	}

	RegisterTableCommand struct {
		Actor       model.Actor
		DBID        int64
		TableName   string
		DisplayName string
	}

	RegisterDatabaseCommandHandler = decorator.CommandHandler[RegisterDatabaseCommand, model.DBConfig]
	RegisterTableCommandHandler    = decorator.CommandHandler[RegisterTableCommand, model.TableMeta]

	registerDatabaseCommandHandler struct {
		catalogService ports.CatalogService
	}

	registerTableCommandHandler struct {
		catalogService ports.CatalogService
	}
)

func NewRegisterDatabaseCommandHandler(
	svc ports.CatalogService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) RegisterDatabaseCommandHandler {
	return decorator.ApplyCommandDecorators[RegisterDatabaseCommand, model.DBConfig](
		registerDatabaseCommandHandler{catalogService: svc},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h registerDatabaseCommandHandler) Handle(ctx context.Context, cmd RegisterDatabaseCommand) (model.DBConfig, error) {
	return h.catalogService.RegisterDatabase(ctx, cmd.Actor, cmd.Name, cmd.ConnectionString)
}

func NewRegisterTableCommandHandler(
	svc ports.CatalogService,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) RegisterTableCommandHandler {
	return decorator.ApplyCommandDecorators[RegisterTableCommand, model.TableMeta](
		registerTableCommandHandler{catalogService: svc},
		log,
		tracerProvider,
		metricsClient,
	)
}

func (h registerTableCommandHandler) Handle(ctx context.Context, cmd RegisterTableCommand) (model.TableMeta, error) {
	return h.catalogService.RegisterTable(ctx, cmd.Actor, cmd.DBID, cmd.TableName, cmd.DisplayName)
}
