package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/logger"
)

// CatalogService registers external databases and the tables exposed from
// them.
type CatalogService struct {
	catalog     ports.CatalogRepository
	permissions ports.PermissionsRepository
	access      ports.AccessService
	conns       *ConnectionManager
	logger      logger.Logger
}

var _ ports.CatalogService = (*CatalogService)(nil)

func NewCatalogService(
	catalog ports.CatalogRepository,
	permissions ports.PermissionsRepository,
	access ports.AccessService,
	conns *ConnectionManager,
	log logger.Logger,
) *CatalogService {
	return &CatalogService{
		catalog:     catalog,
		permissions: permissions,
		access:      access,
		conns:       conns,
		logger:      log,
	}
}

// RegisterDatabase stores a connection string after checking it can be
// reached. Only admins register databases; the registering admin owns it.
func (s *CatalogService) RegisterDatabase(ctx context.Context, actor model.Actor, name, conStr string) (model.DBConfig, error) {
	if !actor.IsAdmin() {
		return model.DBConfig{}, fmt.Errorf("%w: registering databases", model.ErrAccessDenied)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		errs := model.NewValidationErrors()
		errs.Add("db_name", "database name is required", "REQUIRED")

		return model.DBConfig{}, errs
	}

	cfg, err := model.ParseConnectionString(conStr)
	if err != nil {
		return model.DBConfig{}, err
	}

	if err := s.conns.Test(ctx, cfg); err != nil {
		return model.DBConfig{}, err
	}

	db := model.DBConfig{Name: name, ConStr: conStr, OwnerID: actor.UserID}

	id, err := s.catalog.CreateDatabase(ctx, db)
	if err != nil {
		return model.DBConfig{}, err
	}

	db.ID = id

	s.logger.Info().Int64("db_id", id).Str("datasource", cfg.Redacted()).Int64("user_id", actor.UserID).Msg("database registered")

	return db, nil
}

// RegisterTable exposes one table of a registered database. The table must
// exist in the backend; its columns are recorded and the actor becomes its
// owner.
func (s *CatalogService) RegisterTable(ctx context.Context, actor model.Actor, dbID int64, tableName, displayName string) (model.TableMeta, error) {
	if err := model.ValidateIdentifier("table_name", tableName); err != nil {
		return model.TableMeta{}, err
	}

	db, err := s.catalog.GetDatabase(ctx, dbID)
	if err != nil {
		return model.TableMeta{}, err
	}

	if !actor.IsAdmin() && db.OwnerID != actor.UserID {
		return model.TableMeta{}, fmt.Errorf("%w: registering tables in database %d", model.ErrAccessDenied, dbID)
	}

	cfg, err := model.ParseConnectionString(db.ConStr)
	if err != nil {
		return model.TableMeta{}, err
	}

	cfg = cfg.WithTable(tableName)

	plugin, conn, release, err := s.conns.Acquire(ctx, dbID, cfg)
	if err != nil {
		return model.TableMeta{}, err
	}
	defer release()

	schema, err := plugin.GetSchema(ctx, conn, tableName)
	if err != nil {
		return model.TableMeta{}, err
	}

	table := model.TableMeta{
		TableName:   tableName,
		DBID:        dbID,
		DisplayName: strings.TrimSpace(displayName),
	}

	if table.ID, err = s.catalog.CreateTable(ctx, table); err != nil {
		return model.TableMeta{}, err
	}

	if err := s.catalog.ReplaceColumns(ctx, table.ID, columnsFromSchema(table.ID, schema)); err != nil {
		return model.TableMeta{}, err
	}

	if err := s.permissions.Upsert(ctx, model.PermissionForLevel(actor.UserID, table.ID, model.LevelOwner)); err != nil {
		return model.TableMeta{}, fmt.Errorf("granting ownership of table %d: %w", table.ID, err)
	}

	s.logger.Info().
		Int64("table_id", table.ID).
		Int64("db_id", dbID).
		Str("table", tableName).
		Int("columns", len(schema)).
		Msg("table registered")

	return table, nil
}

// ResolveTable returns the registered table and the datasource config bound
// to it.
func (s *CatalogService) ResolveTable(ctx context.Context, tableID int64) (model.TableRef, model.DatasourceConfig, error) {
	ref, err := s.catalog.GetTable(ctx, tableID)
	if err != nil {
		return model.TableRef{}, model.DatasourceConfig{}, err
	}

	cfg, err := ref.Datasource()
	if err != nil {
		return model.TableRef{}, model.DatasourceConfig{}, err
	}

	return ref, cfg, nil
}

func (s *CatalogService) ListAccessibleTables(ctx context.Context, actor model.Actor) ([]model.TableRef, error) {
	if actor.IsAdmin() {
		return s.catalog.ListTables(ctx)
	}

	return s.catalog.ListReadableTables(ctx, actor.UserID)
}

func (s *CatalogService) ListDatabases(ctx context.Context, actor model.Actor) ([]model.DBConfig, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: listing databases", model.ErrAccessDenied)
	}

	return s.catalog.ListDatabases(ctx)
}

func (s *CatalogService) ListColumns(ctx context.Context, actor model.Actor, tableID int64) ([]model.ColumnMeta, error) {
	if err := s.access.RequirePermission(ctx, actor, tableID, model.PermRead); err != nil {
		return nil, err
	}

	return s.catalog.ListColumns(ctx, tableID)
}

func columnsFromSchema(tableID int64, schema model.Schema) []model.ColumnMeta {
	columns := make([]model.ColumnMeta, 0, len(schema))
	for _, c := range schema {
		columns = append(columns, model.ColumnMeta{
			TableID:     tableID,
			ColumnName:  c.Name,
			DisplayName: c.Name,
			ColumnType:  c.Type,
			IsVisible:   true,
		})
	}

	return columns
}
