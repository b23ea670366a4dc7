// Package datasourcetest holds the behaviour every datasource plugin must
// share, runnable against any backend.
package datasourcetest

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/stretchr/testify/require"
)

// Harness binds the contract to one backend. Exec runs raw DDL.
type Harness struct {
	Plugin ports.Datasource
	Conn   ports.Connection
	Exec   func(ctx context.Context, statement string) error
}

type person struct {
	id   int64
	age  int64
	city string
}

// Run executes the shared plugin contract. Each case works on its own table
// so backends with a shared database stay isolated.
func Run(t *testing.T, h Harness) {
	t.Helper()

	cases := []struct {
		name string
		run  func(t *testing.T, h Harness, table string)
	}{
		{name: "filtered read scenario", run: filteredReadScenario},
		{name: "update scenario", run: updateScenario},
		{name: "crud round trip", run: crudRoundTrip},
		{name: "zero rows keep column labels", run: zeroRowsKeepColumns},
		{name: "order limit offset", run: orderLimitOffset},
		{name: "schema introspection", run: schemaIntrospection},
		{name: "decimals read as float64", run: decimalsReadAsFloat},
		{name: "execution errors are wrapped", run: executionErrors},
	}

	for index, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			table := fmt.Sprintf("people_%d_%d", time.Now().UnixNano()%1_000_000, index)
			createPeople(t, h, table)

			tc.run(t, h, table)
		})
	}
}

func createPeople(t *testing.T, h Harness, table string) {
	t.Helper()

	statement := fmt.Sprintf(
		"CREATE TABLE %s (id INTEGER NOT NULL PRIMARY KEY, age INTEGER, city VARCHAR(32), name VARCHAR(64))",
		table,
	)
	require.NoError(t, h.Exec(context.Background(), statement))
}

func seed(t *testing.T, h Harness, table string, people ...person) {
	t.Helper()

	for _, p := range people {
		spec, err := model.NewInsertSpec(table, map[string]any{"id": p.id, "age": p.age, "city": p.city})
		require.NoError(t, err)

		affected, err := h.Plugin.Insert(context.Background(), h.Conn, spec)
		require.NoError(t, err)
		require.Equal(t, int64(1), affected)
	}
}

func read(t *testing.T, h Harness, builder *model.QueryBuilder) *model.Table {
	t.Helper()

	spec, err := builder.Build()
	require.NoError(t, err)

	result, err := h.Plugin.Read(context.Background(), h.Conn, spec)
	require.NoError(t, err)

	return result
}

func ids(table *model.Table) []int64 {
	out := make([]int64, 0, table.Len())
	for _, row := range table.Rows {
		out = append(out, toInt64(row["id"]))
	}

	return out
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return -1
	}
}

// filters returns a helper that unwraps a filter constructor result.
func filters(t *testing.T) func(model.Filter, error) model.Filter {
	return func(f model.Filter, err error) model.Filter {
		t.Helper()
		require.NoError(t, err)

		return f
	}
}

func filteredReadScenario(t *testing.T, h Harness, table string) {
	must := filters(t)

	seed(t, h, table,
		person{id: 1, age: 25, city: "NYC"},
		person{id: 2, age: 30, city: "LA"},
		person{id: 3, age: 35, city: "CHI"},
	)

	olderThan25 := must(model.Gt("age", 25))
	coastal := must(model.In("city", "NYC", "LA"))
	filter := must(model.And(olderThan25, coastal))

	result := read(t, h, model.NewQuery(table).Where(filter))

	require.Equal(t, []int64{2}, ids(result))
	require.Equal(t, "LA", result.Rows[0]["city"])
}

func updateScenario(t *testing.T, h Harness, table string) {
	must := filters(t)

	seed(t, h, table,
		person{id: 1, age: 20, city: "Old"},
		person{id: 2, age: 22, city: "Old"},
		person{id: 3, age: 30, city: "Old"},
	)

	spec, err := model.NewUpdateSpec(table, must(model.Lt("age", 25)), map[string]any{"city": "Young"})
	require.NoError(t, err)

	affected, err := h.Plugin.Update(context.Background(), h.Conn, spec)
	require.NoError(t, err)
	require.Equal(t, int64(2), affected)

	result := read(t, h, model.NewQuery(table).Where(must(model.Eq("id", 3))))
	require.Equal(t, "Old", result.Rows[0]["city"])

	result = read(t, h, model.NewQuery(table).Where(must(model.Eq("city", "Young"))))
	require.ElementsMatch(t, []int64{1, 2}, ids(result))
}

func crudRoundTrip(t *testing.T, h Harness, table string) {
	must := filters(t)

	ctx := context.Background()

	seed(t, h, table, person{id: 7, age: 41, city: "Oslo"})

	result := read(t, h, model.NewQuery(table))
	require.Equal(t, 1, result.Len())
	require.Equal(t, int64(41), toInt64(result.Rows[0]["age"]))
	require.Nil(t, result.Rows[0]["name"])

	update, err := model.NewUpdateSpec(table, must(model.Eq("id", 7)), map[string]any{"name": "Ada"})
	require.NoError(t, err)

	affected, err := h.Plugin.Update(ctx, h.Conn, update)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	result = read(t, h, model.NewQuery(table).Where(must(model.NewCondition("name", model.OpNotEq, nil))))
	require.Equal(t, "Ada", result.Rows[0]["name"])

	none, err := model.NewUpdateSpec(table, must(model.Eq("id", 99)), map[string]any{"name": "Nobody"})
	require.NoError(t, err)

	affected, err = h.Plugin.Update(ctx, h.Conn, none)
	require.NoError(t, err)
	require.Zero(t, affected)

	del, err := model.NewDeleteSpec(table, must(model.Eq("id", 7)))
	require.NoError(t, err)

	affected, err = h.Plugin.Delete(ctx, h.Conn, del)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	require.Zero(t, read(t, h, model.NewQuery(table)).Len())
}

func zeroRowsKeepColumns(t *testing.T, h Harness, table string) {
	result := read(t, h, model.NewQuery(table))

	require.Zero(t, result.Len())
	require.NotNil(t, result.Rows)
	require.Equal(t, []string{"id", "age", "city", "name"}, result.Columns)
}

func orderLimitOffset(t *testing.T, h Harness, table string) {
	seed(t, h, table,
		person{id: 1, age: 50, city: "A"},
		person{id: 2, age: 40, city: "B"},
		person{id: 3, age: 30, city: "C"},
		person{id: 4, age: 20, city: "D"},
	)

	result := read(t, h, model.NewQuery(table).OrderBy("age", true).Limit(2).Offset(1))
	require.Equal(t, []int64{3, 2}, ids(result))

	result = read(t, h, model.NewQuery(table).OrderBy("id", false).Offset(3))
	require.Equal(t, []int64{1}, ids(result))
}

func decimalsReadAsFloat(t *testing.T, h Harness, table string) {
	prices := table + "_prices"
	require.NoError(t, h.Exec(context.Background(),
		fmt.Sprintf("CREATE TABLE %s (id INTEGER NOT NULL PRIMARY KEY, amount DECIMAL(10,2))", prices)))

	for id, amount := range []float64{12.5, 0.25} {
		spec, err := model.NewInsertSpec(prices, map[string]any{"id": int64(id + 1), "amount": amount})
		require.NoError(t, err)

		_, err = h.Plugin.Insert(context.Background(), h.Conn, spec)
		require.NoError(t, err)
	}

	result := read(t, h, model.NewQuery(prices).OrderBy("id", true))
	require.Equal(t, 2, result.Len())
	require.Equal(t, 12.5, result.Rows[0]["amount"])
	require.Equal(t, 0.25, result.Rows[1]["amount"])
}

func schemaIntrospection(t *testing.T, h Harness, table string) {
	schema, err := h.Plugin.GetSchema(context.Background(), h.Conn, table)
	require.NoError(t, err)

	names := schema.Names()
	require.Equal(t, []string{"id", "age", "city", "name"}, names)
	require.Equal(t, "id", schema.PrimaryKey())
	require.True(t, schema[0].NotNull)

	var keys []string
	for _, column := range schema {
		if column.PrimaryKey {
			keys = append(keys, column.Name)
		}
	}

	sort.Strings(keys)
	require.Equal(t, []string{"id"}, keys)

	_, err = h.Plugin.GetSchema(context.Background(), h.Conn, table+"_missing")
	require.ErrorIs(t, err, model.ErrTableNotFound)
}

func executionErrors(t *testing.T, h Harness, table string) {
	must := filters(t)

	spec, err := model.NewQuery(table).Where(must(model.Eq("no_such_column", 1))).Build()
	require.NoError(t, err)

	_, err = h.Plugin.Read(context.Background(), h.Conn, spec)
	require.ErrorIs(t, err, model.ErrExecution)

	seed(t, h, table, person{id: 1, age: 1, city: "X"})

	duplicate, err := model.NewInsertSpec(table, map[string]any{"id": 1})
	require.NoError(t, err)

	_, err = h.Plugin.Insert(context.Background(), h.Conn, duplicate)
	require.ErrorIs(t, err, model.ErrExecution)
}
