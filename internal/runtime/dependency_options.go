package runtime

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/architeacher/nocoflo/internal/adapters/datasources"
	inboundhttp "github.com/architeacher/nocoflo/internal/adapters/inbound/http"
	"github.com/architeacher/nocoflo/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/nocoflo/internal/adapters/repos"
	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/internal/infrastructure"
	"github.com/architeacher/nocoflo/internal/services"
	"github.com/architeacher/nocoflo/internal/usecases"
	"github.com/architeacher/nocoflo/pkg/decorator"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/architeacher/nocoflo/pkg/metrics"
	"github.com/architeacher/nocoflo/pkg/metrics/noop"
)

func defaultOptions(ctx context.Context) []DependencyOption {
	return []DependencyOption{
		WithConfig(),
		WithSecretsRepository(),
		WithConfigLoader(ctx),
		WithLogger(),
		WithTracing(ctx),
		WithMetrics(),
		WithMetadataStore(ctx),
		WithCache(ctx),
		WithRepositories(),
		WithServices(),
		WithAdminBootstrap(ctx),
		WithApplication(),
		WithHTTPServer(),
		WithLockSweeper(),
	}
}

// WithConfig reads the environment unless a config was preset.
func WithConfig() DependencyOption {
	return func(d *dependencies) error {
		if d.config != nil {
			return nil
		}

		cfg, err := config.Init()
		if err != nil {
			return fmt.Errorf("initializing configuration: %w", err)
		}

		d.config = cfg

		return nil
	}
}

func WithSecretsRepository() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.SecretsStorage.Enabled {
			return nil
		}

		client, err := repos.NewVaultClient(d.config.SecretsStorage)
		if err != nil {
			return fmt.Errorf("creating Vault client: %w", err)
		}

		d.repos.secretsRepo = repos.NewVaultRepository(client)

		return nil
	}
}

// WithConfigLoader overlays Vault secrets before anything connects with them.
func WithConfigLoader(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		if !d.config.SecretsStorage.Enabled || d.repos.secretsRepo == nil {
			return nil
		}

		loader := config.NewLoader(d.config, d.repos.secretsRepo)
		if err := loader.Load(ctx); err != nil {
			return fmt.Errorf("loading secrets from Vault: %w", err)
		}

		d.configLoader = loader

		return nil
	}
}

func WithLogger() DependencyOption {
	return func(d *dependencies) error {
		d.infra.logger = logger.New(d.config.Logging.Level, d.config.Logging.Format).
			Component(d.config.App.ServiceName)

		return nil
	}
}

func WithTracing(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Telemetry.Enabled || d.config.Telemetry.OTLPEndpoint == "" {
			d.infra.tracerProvider = infrastructure.NewNoopTracerProvider()

			return nil
		}

		tp, shutdown, err := infrastructure.NewTracerProvider(ctx, d.config.Telemetry, d.config.App.Env.Name)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}

		d.infra.tracerProvider = tp
		d.cleanupFuncs["tracer"] = shutdown

		return nil
	}
}

func WithMetrics() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Telemetry.Metrics.Enabled {
			d.infra.metricsClient = noop.NewMetricsClient()

			return nil
		}

		client := metrics.NewPrometheusClient(strings.ReplaceAll(d.config.App.ServiceName, "-", "_"))

		d.infra.metricsClient = client
		d.infra.metricsHandler = client.Handler()

		return nil
	}
}

// WithMetadataStore opens the metadata database and creates its tables.
func WithMetadataStore(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		dsCfg, err := d.config.Metadata.Datasource()
		if err != nil {
			return fmt.Errorf("resolving metadata datasource: %w", err)
		}

		db, closeDB, err := infrastructure.OpenMetadataDB(ctx, dsCfg, d.config.Metadata.Pool)
		if err != nil {
			return fmt.Errorf("opening metadata store %s: %w", dsCfg.Redacted(), err)
		}

		d.cleanupFuncs["metadata"] = func(context.Context) error { return closeDB() }

		store, err := repos.NewStore(db, dsCfg.Type, repos.NewSQLScanner(), d.infra.logger)
		if err != nil {
			return err
		}

		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating metadata store: %w", err)
		}

		d.infra.metadataDB = db
		d.repos.store = store
		d.probes["metadata"] = store

		d.infra.logger.Info().
			Str("backend", dsCfg.Type.String()).
			Msg("metadata store ready")

		return nil
	}
}

// WithCache connects KeyDB when it is enabled or when locks live there.
func WithCache(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Cache.Enabled && d.config.Locks.Backend != config.LockBackendRedis {
			return nil
		}

		client := infrastructure.NewKeyDBClient(d.config.Cache, d.infra.logger)
		d.cleanupFuncs["keydb"] = func(context.Context) error { return client.Close() }

		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("connecting to KeyDB at %s: %w", d.config.Cache.Address, err)
		}

		d.infra.cacheClient = client
		d.probes["keydb"] = client

		return nil
	}
}

func WithRepositories() DependencyOption {
	return func(d *dependencies) error {
		d.repos.users = repos.NewUsersRepository(d.repos.store)
		d.repos.permissions = repos.NewPermissionsRepository(d.repos.store)
		d.repos.catalog = repos.NewCatalogRepository(d.repos.store)
		d.repos.changelog = repos.NewChangelogRepository(d.repos.store)

		switch d.config.Locks.Backend {
		case config.LockBackendMetadata, "":
			d.repos.locks = repos.NewLocksRepository(d.repos.store)
		case config.LockBackendRedis:
			d.repos.locks = repos.NewLocksCacheRepository(d.infra.cacheClient, d.infra.logger)
		default:
			return fmt.Errorf("unknown lock backend %q", d.config.Locks.Backend)
		}

		if d.config.Cache.Enabled && d.infra.cacheClient != nil {
			d.repos.schemaCache = repos.NewSchemaCacheRepository(d.infra.cacheClient, d.infra.logger)
		}

		rl := d.config.RateLimiting
		if rl.Enabled && rl.RequestsPerSecond > 0 && d.infra.cacheClient != nil {
			d.repos.rateLimits = repos.NewRateLimitRepository(d.infra.cacheClient)
		}

		if d.config.Idempotency.Enabled && d.infra.cacheClient != nil {
			d.repos.replays = repos.NewReplayCacheRepository(d.infra.cacheClient)
		}

		return nil
	}
}

func WithServices() DependencyOption {
	return func(d *dependencies) error {
		log := d.infra.logger

		registry := datasources.NewDefaultRegistry(d.config.Datasources.Pool, log)

		conns, err := services.NewConnectionManager(registry, d.config.Datasources, d.config.CircuitBreaker, log)
		if err != nil {
			return fmt.Errorf("creating connection manager: %w", err)
		}

		d.cleanupFuncs["datasources"] = func(context.Context) error {
			conns.Close()

			return nil
		}

		access := services.NewAccessService(d.repos.permissions, d.repos.users, d.repos.catalog, log)
		locks := services.NewLockService(d.repos.locks, d.config.Locks.TTL, log)
		audit := services.NewAuditService(d.repos.changelog, access, log)
		catalog := services.NewCatalogService(d.repos.catalog, d.repos.permissions, access, conns, log)
		rows := services.NewRowsService(catalog, access, locks, audit, conns, d.repos.schemaCache, d.config.Cache.SchemaTTL, log)
		users := services.NewUsersService(d.repos.users, d.repos.permissions, log)

		d.services.connections = conns
		d.services.domain = usecases.Services{
			Access:  access,
			Locks:   locks,
			Audit:   audit,
			Catalog: catalog,
			Rows:    rows,
			Users:   users,
		}

		return nil
	}
}

// WithAdminBootstrap creates the configured admin when no admin exists yet.
func WithAdminBootstrap(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		admin := d.config.Admin

		if err := d.services.domain.Users.EnsureAdmin(ctx, admin.Name, admin.Email, admin.Password); err != nil {
			return fmt.Errorf("bootstrapping admin user: %w", err)
		}

		return nil
	}
}

func WithApplication() DependencyOption {
	return func(d *dependencies) error {
		d.app = usecases.NewApplication(
			d.services.domain,
			d.repos.schemaCache,
			decorator.CacheConfig{
				Name:       "schema",
				Enabled:    d.config.Cache.Enabled,
				TTL:        d.config.Cache.SchemaTTL,
				SetTimeout: d.config.Cache.WriteTimeout,
			},
			d.probes,
			d.infra.logger,
			d.infra.tracerProvider,
			d.infra.metricsClient,
		)

		return nil
	}
}

func WithHTTPServer() DependencyOption {
	return func(d *dependencies) error {
		var rateLimiter func(http.Handler) http.Handler

		if d.repos.rateLimits != nil {
			limiter, err := middleware.RateLimit(d.config.RateLimiting, d.repos.rateLimits, d.infra.logger)
			if err != nil {
				return err
			}

			rateLimiter = limiter
		}

		router := inboundhttp.NewRouter(inboundhttp.RouterConfig{
			App:            d.app,
			Logger:         d.infra.logger,
			MetricsClient:  d.infra.metricsClient,
			MetricsHandler: d.infra.metricsHandler,
			TracerProvider: d.infra.tracerProvider,
			ReplayCache:    d.repos.replays,
			RateLimiter:    rateLimiter,
			Config:         d.config,
		})

		d.infra.httpServer = &http.Server{
			Handler:      router,
			ReadTimeout:  d.config.HTTPServer.ReadTimeout,
			WriteTimeout: d.config.HTTPServer.WriteTimeout,
			IdleTimeout:  d.config.HTTPServer.IdleTimeout,
		}

		d.cleanupFuncs["http"] = d.infra.httpServer.Shutdown

		return nil
	}
}

// WithLockSweeper schedules purging of expired row locks. A zero sweep
// interval or lock TTL leaves it off.
func WithLockSweeper() DependencyOption {
	return func(d *dependencies) error {
		if d.config.Locks.SweepInterval <= 0 || d.config.Locks.TTL <= 0 {
			return nil
		}

		sweeper, err := NewLockSweeper(d.app.Commands.PurgeExpiredLocks, d.config.Locks.SweepInterval, d.infra.logger)
		if err != nil {
			return fmt.Errorf("scheduling lock sweeper: %w", err)
		}

		d.infra.sweeper = sweeper
		d.cleanupFuncs["sweeper"] = func(context.Context) error {
			sweeper.Stop()

			return nil
		}

		return nil
	}
}
