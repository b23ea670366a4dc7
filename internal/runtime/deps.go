package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/architeacher/nocoflo/internal/adapters/repos"
	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/internal/infrastructure"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/internal/services"
	"github.com/architeacher/nocoflo/internal/usecases"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/architeacher/nocoflo/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	infrastructureDep struct {
		httpServer     *http.Server
		metadataDB     *sql.DB
		cacheClient    *infrastructure.KeydbClient
		logger         logger.Logger
		metricsClient  metrics.Client
		metricsHandler http.Handler
		tracerProvider otelTrace.TracerProvider
		sweeper        *LockSweeper
	}

	repositories struct {
		store       *repos.Store
		secretsRepo ports.SecretsRepository
		users       ports.UsersRepository
		permissions ports.PermissionsRepository
		catalog     ports.CatalogRepository
		changelog   ports.ChangelogRepository
		locks       ports.LocksRepository
		schemaCache ports.SchemaCache
		replays     ports.ReplayCache
		rateLimits  *repos.RateLimitRepository
	}

	servicesDep struct {
		connections *services.ConnectionManager
		domain      usecases.Services
	}

	dependencies struct {
		config       *config.ServiceConfig
		configLoader *config.Loader

		infra infrastructureDep

		repos repositories

		services servicesDep

		app *usecases.Application

		// probes are reported by /health, keyed by dependency name.
		probes map[string]ports.Pinger

		cleanupFuncs map[string]func(ctx context.Context) error
	}

	DependencyOption func(*dependencies) error
)

// initializeDependencies wires everything in defaultOptions order, then opts.
// A nil cfg is read from the environment.
func initializeDependencies(ctx context.Context, cfg *config.ServiceConfig, opts ...DependencyOption) (*dependencies, error) {
	deps := &dependencies{
		config:       cfg,
		probes:       make(map[string]ports.Pinger),
		cleanupFuncs: make(map[string]func(ctx context.Context) error),
	}

	allOpts := append(defaultOptions(ctx), opts...)

	for _, opt := range allOpts {
		if err := opt(deps); err != nil {
			deps.release(ctx)

			return nil, fmt.Errorf("failed to apply dependency option: %w", err)
		}
	}

	return deps, nil
}

// release closes resources in stopOrder, then whatever else was opened.
func (d *dependencies) release(ctx context.Context) {
	closeOne := func(name string) {
		fn, ok := d.cleanupFuncs[name]
		if !ok {
			return
		}

		delete(d.cleanupFuncs, name)

		if err := fn(ctx); err != nil {
			d.infra.logger.Error().Err(err).Str("resource", name).Msg("closing resource failed")
		}
	}

	for _, name := range stopOrder {
		closeOne(name)
	}

	for name := range d.cleanupFuncs {
		closeOne(name)
	}
}
