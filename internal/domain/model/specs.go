package model

import (
	"fmt"
	"sort"
)

type (
	OrderBy struct {
		Field     string
		Ascending bool
	}

	// QuerySpec describes a read. A nil Limit means no limit.
	QuerySpec struct {
		Table   string
		Limit   *int
		Offset  int
		OrderBy []OrderBy
		Filter  Filter
	}

	InsertSpec struct {
		Table   string
		Payload map[string]any
	}

	UpdateSpec struct {
		Table   string
		Filters Filter
		Payload map[string]any
	}

	DeleteSpec struct {
		Table   string
		Filters Filter
	}
)

// Columns returns the payload keys in a stable order.
func (s InsertSpec) Columns() []string { return sortedKeys(s.Payload) }

// Columns returns the payload keys in a stable order.
func (s UpdateSpec) Columns() []string { return sortedKeys(s.Payload) }

type QueryBuilder struct {
	table   string
	limit   *int
	offset  int
	orderBy []OrderBy
	filter  Filter
}

func NewQuery(table string) *QueryBuilder {
	return &QueryBuilder{table: table}
}

func (b *QueryBuilder) Where(filter Filter) *QueryBuilder {
	b.filter = filter

	return b
}

func (b *QueryBuilder) Limit(limit int) *QueryBuilder {
	b.limit = &limit

	return b
}

func (b *QueryBuilder) Offset(offset int) *QueryBuilder {
	b.offset = offset

	return b
}

func (b *QueryBuilder) OrderBy(field string, ascending bool) *QueryBuilder {
	b.orderBy = append(b.orderBy, OrderBy{Field: field, Ascending: ascending})

	return b
}

func (b *QueryBuilder) Build() (QuerySpec, error) {
	errs := NewValidationErrors()

	validateTable(errs, b.table)

	if b.limit != nil && *b.limit < 1 {
		errs.Add("limit", "limit must be at least 1", codeOutOfRange)
	}

	if b.offset < 0 {
		errs.Add("offset", "offset must not be negative", codeOutOfRange)
	}

	for index, o := range b.orderBy {
		if !identifierPattern.MatchString(o.Field) {
			errs.Add(fmt.Sprintf("order_by[%d]", index), fmt.Sprintf("invalid identifier %q", o.Field), codeInvalidField)
		}
	}

	if b.filter != nil && isNilFilter(b.filter) {
		errs.Add("filter", "filter is required", codeRequired)
	}

	if err := errs.Err(); err != nil {
		return QuerySpec{}, err
	}

	return QuerySpec{
		Table:   b.table,
		Limit:   b.limit,
		Offset:  b.offset,
		OrderBy: append([]OrderBy(nil), b.orderBy...),
		Filter:  b.filter,
	}, nil
}

func NewInsertSpec(table string, payload map[string]any) (InsertSpec, error) {
	errs := NewValidationErrors()

	validateTable(errs, table)
	validatePayload(errs, payload)

	if err := errs.Err(); err != nil {
		return InsertSpec{}, err
	}

	return InsertSpec{Table: table, Payload: copyPayload(payload)}, nil
}

func NewUpdateSpec(table string, filters Filter, payload map[string]any) (UpdateSpec, error) {
	errs := NewValidationErrors()

	validateTable(errs, table)
	validateRequiredFilter(errs, filters)
	validatePayload(errs, payload)

	if err := errs.Err(); err != nil {
		return UpdateSpec{}, err
	}

	return UpdateSpec{Table: table, Filters: filters, Payload: copyPayload(payload)}, nil
}

func NewDeleteSpec(table string, filters Filter) (DeleteSpec, error) {
	errs := NewValidationErrors()

	validateTable(errs, table)
	validateRequiredFilter(errs, filters)

	if err := errs.Err(); err != nil {
		return DeleteSpec{}, err
	}

	return DeleteSpec{Table: table, Filters: filters}, nil
}

func validateTable(errs *ValidationErrors, table string) {
	if table == "" {
		errs.Add("table", "table is required", codeRequired)

		return
	}

	if !identifierPattern.MatchString(table) {
		errs.Add("table", fmt.Sprintf("invalid table name %q", table), codeInvalidTable)
	}
}

func validateRequiredFilter(errs *ValidationErrors, filters Filter) {
	if isNilFilter(filters) {
		errs.Add("filters", "filters are required", codeRequired)
	}
}

func validatePayload(errs *ValidationErrors, payload map[string]any) {
	if len(payload) == 0 {
		errs.Add("payload", "payload must not be empty", codeEmptyPayload)

		return
	}

	for _, column := range sortedKeys(payload) {
		if !identifierPattern.MatchString(column) {
			errs.Add("payload", fmt.Sprintf("invalid column name %q", column), codeInvalidField)
		}
	}
}

func copyPayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}

	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
