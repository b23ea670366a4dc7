package datasources

import (
	"strings"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func cond(t *testing.T, field string, op model.Operator, value any) *model.Condition {
	t.Helper()

	c, err := model.NewCondition(field, op, value)
	require.NoError(t, err)

	return c
}

func group(t *testing.T, mode model.Mode, filters ...model.Filter) *model.ConditionGroup {
	t.Helper()

	g, err := model.NewConditionGroup(mode, filters...)
	require.NoError(t, err)

	return g
}

func TestRenderWhere(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		filter       func(t *testing.T) model.Filter
		format       sq.PlaceholderFormat
		expectedSQL  string
		expectedArgs []any
	}{
		{
			name:         "single comparison",
			filter:       func(t *testing.T) model.Filter { return cond(t, "age", model.OpGte, 18) },
			format:       sq.Question,
			expectedSQL:  "age >= ?",
			expectedArgs: []any{18},
		},
		{
			name: "in expands one placeholder per value",
			filter: func(t *testing.T) model.Filter {
				return cond(t, "city", model.OpIn, []string{"NYC", "LA", "CHI"})
			},
			format:       sq.Question,
			expectedSQL:  "city IN (?,?,?)",
			expectedArgs: []any{"NYC", "LA", "CHI"},
		},
		{
			name: "in with dollar placeholders",
			filter: func(t *testing.T) model.Filter {
				return cond(t, "id", model.OpIn, []int{4, 5})
			},
			format:       sq.Dollar,
			expectedSQL:  "id IN ($1,$2)",
			expectedArgs: []any{4, 5},
		},
		{
			name:         "nil equality renders IS NULL",
			filter:       func(t *testing.T) model.Filter { return cond(t, "deleted_at", model.OpEq, nil) },
			format:       sq.Question,
			expectedSQL:  "deleted_at IS NULL",
			expectedArgs: nil,
		},
		{
			name:         "nil inequality renders IS NOT NULL",
			filter:       func(t *testing.T) model.Filter { return cond(t, "deleted_at", model.OpNotEq, nil) },
			format:       sq.Question,
			expectedSQL:  "deleted_at IS NOT NULL",
			expectedArgs: nil,
		},
		{
			name: "singleton group is parenthesized",
			filter: func(t *testing.T) model.Filter {
				return group(t, model.ModeAnd, cond(t, "age", model.OpLt, 25))
			},
			format:       sq.Question,
			expectedSQL:  "(age < ?)",
			expectedArgs: []any{25},
		},
		{
			name: "nested groups number dollar placeholders once",
			filter: func(t *testing.T) model.Filter {
				return group(t, model.ModeOr,
					group(t, model.ModeAnd,
						cond(t, "age", model.OpGt, 20),
						cond(t, "city", model.OpIn, []string{"NYC", "LA"}),
					),
					cond(t, "name", model.OpEq, "Alice"),
				)
			},
			format:       sq.Dollar,
			expectedSQL:  "((age > $1) AND (city IN ($2,$3))) OR (name = $4)",
			expectedArgs: []any{20, "NYC", "LA", "Alice"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			query, args, err := RenderWhere(tc.filter(t), tc.format)
			require.NoError(t, err)
			require.Equal(t, tc.expectedSQL, query)
			require.Equal(t, tc.expectedArgs, args)
		})
	}
}

func TestRenderWhere_InPlaceholderCount(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 7, 50} {
		values := make([]any, n)
		for i := range values {
			values[i] = i
		}

		query, args, err := RenderWhere(cond(t, "id", model.OpIn, values), sq.Question)
		require.NoError(t, err)
		require.Equal(t, n, strings.Count(query, "?"))
		require.Len(t, args, n)
	}
}

func TestRenderWhere_NilFilter(t *testing.T) {
	t.Parallel()

	query, args, err := RenderWhere(nil, sq.Question)
	require.NoError(t, err)
	require.Empty(t, query)
	require.Nil(t, args)
}
