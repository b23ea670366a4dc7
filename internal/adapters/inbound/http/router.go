package http

import (
	"context"
	"net/http"

	"github.com/architeacher/nocoflo/internal/adapters/inbound/http/handlers"
	"github.com/architeacher/nocoflo/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/nocoflo/internal/config"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/internal/usecases"
	"github.com/architeacher/nocoflo/internal/usecases/queries"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/architeacher/nocoflo/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	baseURL = "/v1"
)

type RouterConfig struct {
	App            *usecases.Application
	Logger         logger.Logger
	MetricsClient  metrics.Client
	MetricsHandler http.Handler
	TracerProvider otelTrace.TracerProvider
	ReplayCache    ports.ReplayCache
	// RateLimiter runs before the public routes and after Identity on the
	// rest. Nil disables rate limiting.
	RateLimiter func(http.Handler) http.Handler
	Config      *config.ServiceConfig
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID())
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(cfg.Logger))
	if cfg.Config.HTTPServer.WriteTimeout > 0 {
		router.Use(chimiddleware.Timeout(cfg.Config.HTTPServer.WriteTimeout))
	}

	router.Use(middleware.SecurityHeaders(cfg.Config.App.APIVersion))
	if cfg.Config.Compression.Enabled {
		router.Use(newCompressor(cfg.Config.Compression.Level).Handler)
	}

	router.Use(middleware.CORS([]string{"*"}, cfg.Config.Idempotency.HeaderName, cfg.Config.Idempotency.ReplayedHeader))

	if cfg.Config.Telemetry.Traces.Enabled && cfg.TracerProvider != nil {
		router.Use(middleware.Tracer(cfg.TracerProvider))
		cfg.Logger.Info().Msg("distributed tracing enabled")
	}

	if cfg.Config.Telemetry.Metrics.Enabled && cfg.MetricsClient != nil {
		router.Use(middleware.Metrics(cfg.MetricsClient))
		cfg.Logger.Info().Msg("HTTP metrics collection enabled")
	}

	if cfg.Config.Logging.AccessLog.Enabled {
		router.Use(middleware.AccessLog(cfg.Logger, middleware.AccessLogOptions{
			LogProbes: cfg.Config.Logging.AccessLog.LogHealthChecks,
		}))
	}

	handler := handlers.NewHandler(cfg.App, cfg.Logger)

	router.Get("/health", handler.Health)
	router.Get("/liveness", handler.Liveness)

	if cfg.MetricsHandler != nil {
		router.Handle("/metrics", cfg.MetricsHandler)
	}

	router.Route(baseURL, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter)
			}

			r.Post("/login", handler.Login)
			r.Post("/register", handler.Register)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Identity(resolveActor(cfg.App), cfg.Logger))

			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter)
			}

			if cfg.Config.Idempotency.Enabled && cfg.ReplayCache != nil {
				r.Use(middleware.Idempotency(cfg.ReplayCache, cfg.Config.Idempotency, cfg.Logger))
			}

			r.Get("/databases", handler.ListDatabases)
			r.Post("/databases", handler.RegisterDatabase)

			r.Get("/tables", handler.ListTables)
			r.Post("/tables", handler.RegisterTable)

			r.Route("/tables/{tableID}", func(r chi.Router) {
				r.Get("/schema", handler.GetTableSchema)
				r.Get("/columns", handler.ListColumns)

				r.Post("/rows/query", handler.QueryRows)
				r.Post("/rows", handler.InsertRow)
				r.Patch("/rows", handler.UpdateRows)
				r.Post("/rows/delete", handler.DeleteRows)
				r.Put("/rows/{rowPK}/cells/{column}", handler.EditCell)
				r.Put("/rows/{rowPK}/lock", handler.LockRow)
				r.Delete("/rows/{rowPK}/lock", handler.UnlockRow)
				r.Get("/rows/{rowPK}/changelog", handler.GetRowChangelog)

				r.Get("/permissions", handler.ListTableUsers)
				r.Get("/permissions/{userID}", handler.GetUserPermissions)
				r.Put("/permissions/{userID}", handler.GrantPermission)
				r.Delete("/permissions/{userID}", handler.RevokePermission)

				r.Get("/changelog", handler.GetChangelog)
				r.Delete("/changelog", handler.ClearChangelog)
			})

			r.Get("/users", handler.ListUsers)
			r.Post("/users", handler.CreateUser)
			r.Patch("/users/{userID}", handler.UpdateUser)
			r.Delete("/users/{userID}", handler.DeleteUser)
			r.Get("/users/{userID}/changelog", handler.GetUserChangelog)

			r.Post("/invites", handler.CreateInvite)
		})
	})

	return router
}

func resolveActor(app *usecases.Application) middleware.ActorResolver {
	return func(ctx context.Context, userID int64) (model.Actor, error) {
		return app.Queries.ResolveActor.Execute(ctx, queries.ResolveActorQuery{UserID: userID})
	}
}
