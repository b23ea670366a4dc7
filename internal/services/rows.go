package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/architeacher/nocoflo/pkg/logger"
)

type (
	// RowsService runs data operations against registered tables. Every
	// mutation is permission checked and audited; updates and deletes lock
	// the rows they touch for the duration of the statement.
	RowsService struct {
		catalog   *CatalogService
		access    ports.AccessService
		locks     ports.LockService
		audit     ports.AuditService
		conns     *ConnectionManager
		schemas   ports.SchemaCache
		schemaTTL time.Duration
		logger    logger.Logger
	}

	// tableSession is one registered table with an open connection to it.
	tableSession struct {
		ref     model.TableRef
		plugin  ports.Datasource
		conn    ports.Connection
		release func()
	}

	// lockedRow is a matched row whose lock is held for the operation.
	lockedRow struct {
		pk      string
		pkValue any
		values  model.Row
		// preheld locks belonged to the actor before the operation and are
		// left in place afterwards.
		preheld bool
	}
)

var _ ports.RowsService = (*RowsService)(nil)

// NewRowsService builds the rows service. schemas may be nil, in which case
// every primary key lookup introspects the backend.
func NewRowsService(
	catalog *CatalogService,
	access ports.AccessService,
	locks ports.LockService,
	audit ports.AuditService,
	conns *ConnectionManager,
	schemas ports.SchemaCache,
	schemaTTL time.Duration,
	log logger.Logger,
) *RowsService {
	return &RowsService{
		catalog:   catalog,
		access:    access,
		locks:     locks,
		audit:     audit,
		conns:     conns,
		schemas:   schemas,
		schemaTTL: schemaTTL,
		logger:    log,
	}
}

// ReadRows runs query against the table. The table named in query is
// replaced by the registered one.
func (s *RowsService) ReadRows(ctx context.Context, actor model.Actor, tableID int64, query model.QuerySpec) (*model.Table, error) {
	if err := s.access.RequirePermission(ctx, actor, tableID, model.PermRead); err != nil {
		return nil, err
	}

	session, err := s.open(ctx, tableID)
	if err != nil {
		return nil, err
	}
	defer session.release()

	spec, err := rebindQuery(session.ref.TableName, query)
	if err != nil {
		return nil, err
	}

	return session.plugin.Read(ctx, session.conn, spec)
}

// InsertRow writes one row and records every column it set. The audit
// entries are keyed by the payload's primary key value when it has one.
func (s *RowsService) InsertRow(ctx context.Context, actor model.Actor, tableID int64, payload map[string]any) (int64, error) {
	if err := s.access.RequirePermission(ctx, actor, tableID, model.PermWrite); err != nil {
		return 0, err
	}

	session, err := s.open(ctx, tableID)
	if err != nil {
		return 0, err
	}
	defer session.release()

	spec, err := model.NewInsertSpec(session.ref.TableName, payload)
	if err != nil {
		return 0, err
	}

	schema, err := s.schema(ctx, session)
	if err != nil {
		return 0, err
	}

	if err := checkColumns(schema, spec.Columns()); err != nil {
		return 0, err
	}

	affected, err := session.plugin.Insert(ctx, session.conn, spec)
	if err != nil {
		return 0, err
	}

	rowPK := ""
	if text := model.CellText(spec.Payload[schema.PrimaryKey()]); text != nil {
		rowPK = *text
	}

	entries := make([]model.ChangelogEntry, 0, len(spec.Payload))
	for _, column := range spec.Columns() {
		entries = append(entries, model.NewChange(actor, tableID, rowPK, column, nil, spec.Payload[column]))
	}

	if err := s.audit.LogChange(ctx, entries...); err != nil {
		return affected, err
	}

	return affected, nil
}

// UpdateRows changes every row matching filter. The matching rows are
// locked first; if any is held by someone else nothing is changed.
func (s *RowsService) UpdateRows(ctx context.Context, actor model.Actor, tableID int64, filter model.Filter, payload map[string]any) (int64, error) {
	if err := s.access.RequirePermission(ctx, actor, tableID, model.PermWrite); err != nil {
		return 0, err
	}

	session, err := s.open(ctx, tableID)
	if err != nil {
		return 0, err
	}
	defer session.release()

	if _, err := model.NewUpdateSpec(session.ref.TableName, filter, payload); err != nil {
		return 0, err
	}

	return s.update(ctx, actor, session, filter, payload)
}

// EditCell sets one column of the row identified by rowPK.
func (s *RowsService) EditCell(ctx context.Context, actor model.Actor, tableID int64, rowPK, column string, value any) (int64, error) {
	if err := s.access.RequirePermission(ctx, actor, tableID, model.PermWrite); err != nil {
		return 0, err
	}

	if err := model.ValidateIdentifier("column", column); err != nil {
		return 0, err
	}

	session, err := s.open(ctx, tableID)
	if err != nil {
		return 0, err
	}
	defer session.release()

	schema, err := s.schema(ctx, session)
	if err != nil {
		return 0, err
	}

	filter, err := model.Eq(schema.PrimaryKey(), pkArgument(schema, rowPK))
	if err != nil {
		return 0, err
	}

	return s.update(ctx, actor, session, filter, map[string]any{column: value})
}

// DeleteRows removes every row matching filter under the same locking as
// UpdateRows. Each deleted cell is audited with an empty new value.
func (s *RowsService) DeleteRows(ctx context.Context, actor model.Actor, tableID int64, filter model.Filter) (int64, error) {
	if err := s.access.RequirePermission(ctx, actor, tableID, model.PermDelete); err != nil {
		return 0, err
	}

	session, err := s.open(ctx, tableID)
	if err != nil {
		return 0, err
	}
	defer session.release()

	if _, err := model.NewDeleteSpec(session.ref.TableName, filter); err != nil {
		return 0, err
	}

	schema, err := s.schema(ctx, session)
	if err != nil {
		return 0, err
	}

	rows, err := s.lockMatching(ctx, actor, session, schema, filter)
	if err != nil {
		return 0, err
	}
	defer s.unlockAll(actor, tableID, rows)

	if len(rows) == 0 {
		return 0, nil
	}

	restricted, err := restrictToRows(filter, schema.PrimaryKey(), rows)
	if err != nil {
		return 0, err
	}

	spec, err := model.NewDeleteSpec(session.ref.TableName, restricted)
	if err != nil {
		return 0, err
	}

	affected, err := session.plugin.Delete(ctx, session.conn, spec)
	if err != nil {
		return 0, err
	}

	var entries []model.ChangelogEntry

	for _, row := range rows {
		for _, column := range sortedColumns(map[string]any(row.values)) {
			entries = append(entries, model.NewChange(actor, tableID, row.pk, column, row.values[column], nil))
		}
	}

	if err := s.audit.LogChange(ctx, entries...); err != nil {
		return affected, err
	}

	return affected, nil
}

// DescribeTable introspects the columns of a registered table straight from
// the backend. It does not check access.
func (s *RowsService) DescribeTable(ctx context.Context, tableID int64) (model.Schema, error) {
	session, err := s.open(ctx, tableID)
	if err != nil {
		return nil, err
	}
	defer session.release()

	return session.plugin.GetSchema(ctx, session.conn, session.ref.TableName)
}

// LockRow takes the lock on one row for an interactive edit. Locking needs
// write access to the table.
func (s *RowsService) LockRow(ctx context.Context, actor model.Actor, tableID int64, rowPK string) error {
	if err := s.access.RequirePermission(ctx, actor, tableID, model.PermWrite); err != nil {
		return err
	}

	acquired, err := s.locks.LockRow(ctx, actor, tableID, rowPK)
	if err != nil {
		return err
	}

	if !acquired {
		return fmt.Errorf("%w: row %s of table %d", model.ErrLockConflict, rowPK, tableID)
	}

	return nil
}

func (s *RowsService) UnlockRow(ctx context.Context, actor model.Actor, tableID int64, rowPK string) error {
	return s.locks.UnlockRow(ctx, actor, tableID, rowPK)
}

func (s *RowsService) update(ctx context.Context, actor model.Actor, session *tableSession, filter model.Filter, payload map[string]any) (int64, error) {
	tableID := session.ref.ID

	schema, err := s.schema(ctx, session)
	if err != nil {
		return 0, err
	}

	columns := sortedColumns(payload)
	if err := checkColumns(schema, columns); err != nil {
		return 0, err
	}

	rows, err := s.lockMatching(ctx, actor, session, schema, filter)
	if err != nil {
		return 0, err
	}
	defer s.unlockAll(actor, tableID, rows)

	if len(rows) == 0 {
		return 0, nil
	}

	restricted, err := restrictToRows(filter, schema.PrimaryKey(), rows)
	if err != nil {
		return 0, err
	}

	spec, err := model.NewUpdateSpec(session.ref.TableName, restricted, payload)
	if err != nil {
		return 0, err
	}

	affected, err := session.plugin.Update(ctx, session.conn, spec)
	if err != nil {
		return 0, err
	}

	var entries []model.ChangelogEntry

	for _, row := range rows {
		for _, column := range columns {
			before, after := row.values[column], payload[column]
			if sameCell(before, after) {
				continue
			}

			entries = append(entries, model.NewChange(actor, tableID, row.pk, column, before, after))
		}
	}

	if err := s.audit.LogChange(ctx, entries...); err != nil {
		return affected, err
	}

	return affected, nil
}

// lockMatching reads the rows matching filter and locks each one. Either
// every row ends up locked by actor or none does, in which case the result
// is ErrLockConflict.
func (s *RowsService) lockMatching(
	ctx context.Context,
	actor model.Actor,
	session *tableSession,
	schema model.Schema,
	filter model.Filter,
) ([]lockedRow, error) {
	pk := schema.PrimaryKey()
	tableID := session.ref.ID

	query, err := model.NewQuery(session.ref.TableName).Where(filter).Build()
	if err != nil {
		return nil, err
	}

	matched, err := session.plugin.Read(ctx, session.conn, query)
	if err != nil {
		return nil, err
	}

	if matched.Len() == 0 {
		return nil, nil
	}

	if !containsColumn(matched.Columns, pk) {
		return nil, fmt.Errorf("%w: table %s has no primary key column %q", model.ErrInvalidSpec, session.ref.TableName, pk)
	}

	rows := make([]lockedRow, 0, matched.Len())

	for _, values := range matched.Rows {
		text := model.CellText(values[pk])
		if text == nil {
			return nil, fmt.Errorf("%w: row without a primary key value in %s", model.ErrInvalidSpec, session.ref.TableName)
		}

		row := lockedRow{pk: *text, pkValue: values[pk], values: values}

		held, err := s.locks.GetLock(ctx, tableID, row.pk)
		if err != nil {
			s.unlockAll(actor, tableID, rows)

			return nil, err
		}

		row.preheld = held != nil && held.LockedBy == actor.UserID

		acquired, err := s.locks.LockRow(ctx, actor, tableID, row.pk)
		if err != nil {
			s.unlockAll(actor, tableID, rows)

			return nil, err
		}

		if !acquired {
			s.unlockAll(actor, tableID, rows)

			return nil, fmt.Errorf("%w: row %s of table %d", model.ErrLockConflict, row.pk, tableID)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// unlockAll releases the locks taken by lockMatching. It runs after the
// request may have been cancelled, so it does not inherit its context.
func (s *RowsService) unlockAll(actor model.Actor, tableID int64, rows []lockedRow) {
	if len(rows) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, row := range rows {
		if row.preheld {
			continue
		}

		if err := s.locks.UnlockRow(ctx, actor, tableID, row.pk); err != nil {
			s.logger.Error().Err(err).Int64("table_id", tableID).Str("row_pk", row.pk).Msg("releasing row lock")
		}
	}
}

func (s *RowsService) open(ctx context.Context, tableID int64) (*tableSession, error) {
	ref, cfg, err := s.catalog.ResolveTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	plugin, conn, release, err := s.conns.Acquire(ctx, ref.DBID, cfg)
	if err != nil {
		return nil, err
	}

	return &tableSession{ref: ref, plugin: plugin, conn: conn, release: release}, nil
}

// schema introspects the table, going through the schema cache when one is
// configured. Cache failures fall back to the backend.
func (s *RowsService) schema(ctx context.Context, session *tableSession) (model.Schema, error) {
	tableID := session.ref.ID

	if s.schemas != nil {
		cached, err := s.schemas.GetSchema(ctx, tableID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("table_id", tableID).Msg("schema cache read failed")
		} else if cached.Hit {
			return cached.Data, nil
		}
	}

	schema, err := session.plugin.GetSchema(ctx, session.conn, session.ref.TableName)
	if err != nil {
		return nil, err
	}

	if s.schemas != nil {
		if err := s.schemas.SetSchema(ctx, tableID, schema, s.schemaTTL); err != nil {
			s.logger.Warn().Err(err).Int64("table_id", tableID).Msg("schema cache write failed")
		}
	}

	return schema, nil
}

// rebindQuery points query at table and runs it back through the builder so
// hand-assembled specs get the same validation as built ones.
func rebindQuery(table string, query model.QuerySpec) (model.QuerySpec, error) {
	builder := model.NewQuery(table).Where(query.Filter).Offset(query.Offset)

	if query.Limit != nil {
		builder.Limit(*query.Limit)
	}

	for _, order := range query.OrderBy {
		builder.OrderBy(order.Field, order.Ascending)
	}

	return builder.Build()
}

func restrictToRows(filter model.Filter, pk string, rows []lockedRow) (model.Filter, error) {
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.pkValue)
	}

	locked, err := model.In(pk, values...)
	if err != nil {
		return nil, err
	}

	return model.And(filter, locked)
}

func checkColumns(schema model.Schema, columns []string) error {
	errs := model.NewValidationErrors()

	for _, column := range columns {
		if !schema.Has(column) {
			errs.Add("payload", fmt.Sprintf("unknown column %q", column), "INVALID_FIELD")
		}
	}

	return errs.Err()
}

// pkArgument converts a textual row key to an integer when the key column
// is an integer column, so server backends bind it with the right type.
func pkArgument(schema model.Schema, rowPK string) any {
	pk := schema.PrimaryKey()

	for _, c := range schema {
		if c.Name != pk {
			continue
		}

		if strings.Contains(strings.ToLower(c.Type), "int") {
			if n, err := strconv.ParseInt(rowPK, 10, 64); err == nil {
				return n
			}
		}
	}

	return rowPK
}

func sameCell(before, after any) bool {
	a, b := model.CellText(before), model.CellText(after)
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}

func sortedColumns[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func containsColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}

	return false
}
