package usecases

import (
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/internal/usecases/commands"
	"github.com/architeacher/nocoflo/internal/usecases/queries"
	"github.com/architeacher/nocoflo/pkg/decorator"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/architeacher/nocoflo/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	Commands struct {
		RegisterDatabase  commands.RegisterDatabaseCommandHandler
		RegisterTable     commands.RegisterTableCommandHandler
		InsertRow         commands.InsertRowCommandHandler
		UpdateRows        commands.UpdateRowsCommandHandler
		EditCell          commands.EditCellCommandHandler
		DeleteRows        commands.DeleteRowsCommandHandler
		LockRow           commands.LockRowCommandHandler
		UnlockRow         commands.UnlockRowCommandHandler
		GrantPermission   commands.GrantPermissionCommandHandler
		RevokePermission  commands.RevokePermissionCommandHandler
		ClearChangelog    commands.ClearChangelogCommandHandler
		PurgeExpiredLocks commands.PurgeExpiredLocksCommandHandler
		CreateUser        commands.CreateUserCommandHandler
		UpdateUserRole    commands.UpdateUserRoleCommandHandler
		DeleteUser        commands.DeleteUserCommandHandler
		CreateInvite      commands.CreateInviteCommandHandler
		RegisterUser      commands.RegisterUserCommandHandler
	}

	Queries struct {
		ListTables         queries.ListTablesQueryHandler
		ListDatabases      queries.ListDatabasesQueryHandler
		ListColumns        queries.ListColumnsQueryHandler
		GetTableSchema     queries.GetTableSchemaQueryHandler
		ReadRows           queries.ReadRowsQueryHandler
		ListTableUsers     queries.ListTableUsersQueryHandler
		GetUserPermissions queries.GetUserPermissionsQueryHandler
		GetChangelog       queries.GetChangelogQueryHandler
		GetRowChangelog    queries.GetRowChangelogQueryHandler
		GetUserChangelog   queries.GetUserChangelogQueryHandler
		ListUsers          queries.ListUsersQueryHandler
		ResolveActor       queries.ResolveActorQueryHandler
		Authenticate       queries.AuthenticateQueryHandler
		FetchLiveness      queries.FetchLivenessQueryHandler
		FetchHealthReport  queries.FetchHealthReportQueryHandler
	}

	Application struct {
		Commands Commands
		Queries  Queries
	}

	// Services are the domain services the application dispatches to.
	Services struct {
		Access  ports.AccessService
		Locks   ports.LockService
		Audit   ports.AuditService
		Catalog ports.CatalogService
		Rows    ports.RowsService
		Users   ports.UsersService
	}
)

func NewApplication(
	svcs Services,
	schemaCache ports.SchemaCache,
	schemaCacheCfg decorator.CacheConfig,
	dependencies map[string]ports.Pinger,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) *Application {
	return &Application{
		Commands: Commands{
			RegisterDatabase:  commands.NewRegisterDatabaseCommandHandler(svcs.Catalog, log, tracerProvider, metricsClient),
			RegisterTable:     commands.NewRegisterTableCommandHandler(svcs.Catalog, log, tracerProvider, metricsClient),
			InsertRow:         commands.NewInsertRowCommandHandler(svcs.Rows, log, tracerProvider, metricsClient),
			UpdateRows:        commands.NewUpdateRowsCommandHandler(svcs.Rows, log, tracerProvider, metricsClient),
			EditCell:          commands.NewEditCellCommandHandler(svcs.Rows, log, tracerProvider, metricsClient),
			DeleteRows:        commands.NewDeleteRowsCommandHandler(svcs.Rows, log, tracerProvider, metricsClient),
			LockRow:           commands.NewLockRowCommandHandler(svcs.Rows, log, tracerProvider, metricsClient),
			UnlockRow:         commands.NewUnlockRowCommandHandler(svcs.Rows, log, tracerProvider, metricsClient),
			GrantPermission:   commands.NewGrantPermissionCommandHandler(svcs.Access, log, tracerProvider, metricsClient),
			RevokePermission:  commands.NewRevokePermissionCommandHandler(svcs.Access, log, tracerProvider, metricsClient),
			ClearChangelog:    commands.NewClearChangelogCommandHandler(svcs.Audit, log, tracerProvider, metricsClient),
			PurgeExpiredLocks: commands.NewPurgeExpiredLocksCommandHandler(svcs.Locks, log, tracerProvider, metricsClient),
			CreateUser:        commands.NewCreateUserCommandHandler(svcs.Users, log, tracerProvider, metricsClient),
			UpdateUserRole:    commands.NewUpdateUserRoleCommandHandler(svcs.Users, log, tracerProvider, metricsClient),
			DeleteUser:        commands.NewDeleteUserCommandHandler(svcs.Users, log, tracerProvider, metricsClient),
			CreateInvite:      commands.NewCreateInviteCommandHandler(svcs.Users, log, tracerProvider, metricsClient),
			RegisterUser:      commands.NewRegisterUserCommandHandler(svcs.Users, log, tracerProvider, metricsClient),
		},
		Queries: Queries{
			ListTables:    queries.NewListTablesQueryHandler(svcs.Catalog, log, tracerProvider, metricsClient),
			ListDatabases: queries.NewListDatabasesQueryHandler(svcs.Catalog, log, tracerProvider, metricsClient),
			ListColumns:   queries.NewListColumnsQueryHandler(svcs.Catalog, log, tracerProvider, metricsClient),
			GetTableSchema: queries.NewGetTableSchemaQueryHandler(
				svcs.Rows, svcs.Access, schemaCache, schemaCacheCfg, log, tracerProvider, metricsClient,
			),
			ReadRows:           queries.NewReadRowsQueryHandler(svcs.Rows, log, tracerProvider, metricsClient),
			ListTableUsers:     queries.NewListTableUsersQueryHandler(svcs.Access, log, tracerProvider, metricsClient),
			GetUserPermissions: queries.NewGetUserPermissionsQueryHandler(svcs.Access, log, tracerProvider, metricsClient),
			GetChangelog:       queries.NewGetChangelogQueryHandler(svcs.Audit, log, tracerProvider, metricsClient),
			GetRowChangelog:    queries.NewGetRowChangelogQueryHandler(svcs.Audit, log, tracerProvider, metricsClient),
			GetUserChangelog:   queries.NewGetUserChangelogQueryHandler(svcs.Audit, log, tracerProvider, metricsClient),
			ListUsers:          queries.NewListUsersQueryHandler(svcs.Users, log, tracerProvider, metricsClient),
			ResolveActor:       queries.NewResolveActorQueryHandler(svcs.Users, log, tracerProvider, metricsClient),
			Authenticate:       queries.NewAuthenticateQueryHandler(svcs.Users, log, tracerProvider, metricsClient),
			FetchLiveness:      queries.NewFetchLivenessQueryHandler(log, tracerProvider, metricsClient),
			FetchHealthReport:  queries.NewFetchHealthReportQueryHandler(dependencies, log, tracerProvider, metricsClient),
		},
	}
}
