package datasources

import (
	"fmt"
	"math"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/nocoflo/internal/domain/model"
)

// dialect holds the only things that differ between backends at the SQL
// text level.
type dialect struct {
	builder sq.StatementBuilderType
	// offsetNeedsLimit is set for engines whose grammar rejects OFFSET
	// without LIMIT.
	offsetNeedsLimit bool
}

var (
	sqliteDialect = dialect{
		builder:          sq.StatementBuilder.PlaceholderFormat(sq.Question),
		offsetNeedsLimit: true,
	}

	mysqlDialect = dialect{
		builder:          sq.StatementBuilder.PlaceholderFormat(sq.Question),
		offsetNeedsLimit: true,
	}

	postgresDialect = dialect{
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
)

func (d dialect) selectQuery(spec model.QuerySpec) (string, []any, error) {
	builder := d.builder.Select("*").From(spec.Table)

	where, err := BuildWhere(spec.Filter)
	if err != nil {
		return "", nil, err
	}

	if where != nil {
		builder = builder.Where(where)
	}

	for _, order := range spec.OrderBy {
		direction := "ASC"
		if !order.Ascending {
			direction = "DESC"
		}

		builder = builder.OrderBy(fmt.Sprintf("%s %s", order.Field, direction))
	}

	switch {
	case spec.Limit != nil:
		builder = builder.Limit(uint64(*spec.Limit))
	case spec.Offset > 0 && d.offsetNeedsLimit:
		builder = builder.Limit(math.MaxInt64)
	}

	if spec.Offset > 0 {
		builder = builder.Offset(uint64(spec.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build select query: %w", err)
	}

	return query, args, nil
}

func (d dialect) insertQuery(spec model.InsertSpec) (string, []any, error) {
	columns := spec.Columns()

	values := make([]any, 0, len(columns))
	for _, column := range columns {
		values = append(values, spec.Payload[column])
	}

	query, args, err := d.builder.Insert(spec.Table).
		Columns(columns...).
		Values(values...).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	return query, args, nil
}

func (d dialect) updateQuery(spec model.UpdateSpec) (string, []any, error) {
	where, err := BuildWhere(spec.Filters)
	if err != nil {
		return "", nil, err
	}

	builder := d.builder.Update(spec.Table)
	for _, column := range spec.Columns() {
		builder = builder.Set(column, spec.Payload[column])
	}

	query, args, err := builder.Where(where).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build update query: %w", err)
	}

	return query, args, nil
}

func (d dialect) deleteQuery(spec model.DeleteSpec) (string, []any, error) {
	where, err := BuildWhere(spec.Filters)
	if err != nil {
		return "", nil, err
	}

	query, args, err := d.builder.Delete(spec.Table).Where(where).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build delete query: %w", err)
	}

	return query, args, nil
}
