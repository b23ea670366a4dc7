package datasources

import (
	"testing"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestDialect_SelectQuery(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		dialect      dialect
		build        func(t *testing.T) *model.QueryBuilder
		expectedSQL  string
		expectedArgs []any
	}{
		{
			name:        "bare select",
			dialect:     sqliteDialect,
			build:       func(*testing.T) *model.QueryBuilder { return model.NewQuery("users") },
			expectedSQL: "SELECT * FROM users",
		},
		{
			name:    "filter order limit offset",
			dialect: postgresDialect,
			build: func(t *testing.T) *model.QueryBuilder {
				return model.NewQuery("users").
					Where(cond(t, "age", model.OpGt, 20)).
					OrderBy("name", true).
					OrderBy("age", false).
					Limit(10).
					Offset(5)
			},
			expectedSQL:  "SELECT * FROM users WHERE age > $1 ORDER BY name ASC, age DESC LIMIT 10 OFFSET 5",
			expectedArgs: []any{20},
		},
		{
			name:    "offset without limit gets an unbounded limit on sqlite",
			dialect: sqliteDialect,
			build: func(*testing.T) *model.QueryBuilder {
				return model.NewQuery("users").Offset(2)
			},
			expectedSQL: "SELECT * FROM users LIMIT 9223372036854775807 OFFSET 2",
		},
		{
			name:    "offset without limit stays bare on postgres",
			dialect: postgresDialect,
			build: func(*testing.T) *model.QueryBuilder {
				return model.NewQuery("users").Offset(2)
			},
			expectedSQL: "SELECT * FROM users OFFSET 2",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			spec, err := tc.build(t).Build()
			require.NoError(t, err)

			query, args, err := tc.dialect.selectQuery(spec)
			require.NoError(t, err)
			require.Equal(t, tc.expectedSQL, query)

			if tc.expectedArgs == nil {
				require.Empty(t, args)
			} else {
				require.Equal(t, tc.expectedArgs, args)
			}
		})
	}
}

func TestDialect_MutationQueries(t *testing.T) {
	t.Parallel()

	filter := cond(t, "id", model.OpEq, 3)

	t.Run("insert sorts columns", func(t *testing.T) {
		t.Parallel()

		spec, err := model.NewInsertSpec("users", map[string]any{"name": "Bob", "age": 30})
		require.NoError(t, err)

		query, args, err := mysqlDialect.insertQuery(spec)
		require.NoError(t, err)
		require.Equal(t, "INSERT INTO users (age,name) VALUES (?,?)", query)
		require.Equal(t, []any{30, "Bob"}, args)
	})

	t.Run("update numbers set before where", func(t *testing.T) {
		t.Parallel()

		spec, err := model.NewUpdateSpec("users", filter, map[string]any{"name": "Bob", "age": 31})
		require.NoError(t, err)

		query, args, err := postgresDialect.updateQuery(spec)
		require.NoError(t, err)
		require.Equal(t, "UPDATE users SET age = $1, name = $2 WHERE id = $3", query)
		require.Equal(t, []any{31, "Bob", 3}, args)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()

		spec, err := model.NewDeleteSpec("users", filter)
		require.NoError(t, err)

		query, args, err := sqliteDialect.deleteQuery(spec)
		require.NoError(t, err)
		require.Equal(t, "DELETE FROM users WHERE id = ?", query)
		require.Equal(t, []any{3}, args)
	})
}
