package model_test

import (
	"errors"
	"testing"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func validationCode(t *testing.T, err error) string {
	t.Helper()

	var validation *model.ValidationErrors
	require.True(t, errors.As(err, &validation), "expected validation errors, got %v", err)
	require.NotEmpty(t, validation.Errors)

	return validation.Errors[0].Code
}

func TestNewCondition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		field          string
		op             model.Operator
		value          any
		expectedValues []any
		expectedCode   string
	}{
		{name: "scalar equality", field: "city", op: model.OpEq, value: "NYC", expectedValues: []any{"NYC"}},
		{name: "every comparison operator", field: "age", op: model.OpGte, value: int64(25), expectedValues: []any{int64(25)}},
		{name: "in with values", field: "city", op: model.OpIn, value: []string{"NYC", "LA"}, expectedValues: []any{"NYC", "LA"}},
		{name: "bytes are a scalar", field: "blob", op: model.OpEq, value: []byte("x"), expectedValues: []any{[]byte("x")}},
		{name: "unknown operator", field: "age", op: model.Operator("~"), value: 1, expectedCode: "INVALID_OPERATOR"},
		{name: "like is not supported", field: "name", op: model.Operator("like"), value: "A%", expectedCode: "INVALID_OPERATOR"},
		{name: "in without a list", field: "city", op: model.OpIn, value: "NYC", expectedCode: "INVALID_VALUE"},
		{name: "in with an empty list", field: "city", op: model.OpIn, value: []any{}, expectedCode: "INVALID_VALUE"},
		{name: "list for a scalar operator", field: "age", op: model.OpLt, value: []int{1, 2}, expectedCode: "INVALID_VALUE"},
		{name: "field is not an identifier", field: "age; DROP TABLE t", op: model.OpEq, value: 1, expectedCode: "INVALID_FIELD"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			condition, err := model.NewCondition(tc.field, tc.op, tc.value)
			if tc.expectedCode != "" {
				require.ErrorIs(t, err, model.ErrInvalidSpec)
				require.Equal(t, tc.expectedCode, validationCode(t, err))
				require.Nil(t, condition)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.field, condition.Field())
			require.Equal(t, tc.op, condition.Operator())
			require.Equal(t, tc.expectedValues, condition.Values())
			require.False(t, condition.IsComposite())
			require.Nil(t, condition.Children())
		})
	}
}

func TestInKeepsOnePlaceholderPerValue(t *testing.T) {
	t.Parallel()

	condition, err := model.In("id", int64(1), int64(2), int64(3))
	require.NoError(t, err)
	require.Len(t, condition.Values(), 3)
}

func TestNewConditionGroup(t *testing.T) {
	t.Parallel()

	leaf, err := model.Gt("age", 25)
	require.NoError(t, err)

	var missing *model.Condition

	cases := []struct {
		name         string
		mode         model.Mode
		filters      []model.Filter
		expectedCode string
	}{
		{name: "singleton", mode: model.ModeAnd, filters: []model.Filter{leaf}},
		{name: "or of two", mode: model.ModeOr, filters: []model.Filter{leaf, leaf}},
		{name: "empty group", mode: model.ModeAnd, expectedCode: "EMPTY_FILTERS"},
		{name: "empty or group", mode: model.ModeOr, filters: []model.Filter{}, expectedCode: "EMPTY_FILTERS"},
		{name: "unknown mode", mode: model.Mode("XOR"), filters: []model.Filter{leaf}, expectedCode: "INVALID_MODE"},
		{name: "nil member", mode: model.ModeAnd, filters: []model.Filter{leaf, missing}, expectedCode: "REQUIRED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			group, err := model.NewConditionGroup(tc.mode, tc.filters...)
			if tc.expectedCode != "" {
				require.ErrorIs(t, err, model.ErrInvalidSpec)
				require.Equal(t, tc.expectedCode, validationCode(t, err))

				return
			}

			require.NoError(t, err)
			require.True(t, group.IsComposite())
			require.Equal(t, tc.mode, group.Mode())
			require.Len(t, group.Children(), len(tc.filters))
		})
	}
}

func TestNestedGroups(t *testing.T) {
	t.Parallel()

	age, err := model.Gt("age", 25)
	require.NoError(t, err)

	cities, err := model.In("city", "NYC", "LA")
	require.NoError(t, err)

	inner, err := model.Or(age, cities)
	require.NoError(t, err)

	root, err := model.And(inner, age)
	require.NoError(t, err)

	require.Equal(t, model.ModeAnd, root.Mode())
	require.Equal(t, model.ModeOr, root.Children()[0].Mode())
	require.Equal(t, "city", root.Children()[0].Children()[1].Field())
}

func TestParseOperatorAndMode(t *testing.T) {
	t.Parallel()

	for input, expected := range map[string]model.Operator{
		"=": model.OpEq, "==": model.OpEq, "<>": model.OpNotEq, "!=": model.OpNotEq,
		"<": model.OpLt, "<=": model.OpLte, ">": model.OpGt, ">=": model.OpGte, " IN ": model.OpIn,
	} {
		op, err := model.ParseOperator(input)
		require.NoError(t, err, input)
		require.Equal(t, expected, op, input)
	}

	_, err := model.ParseOperator("between")
	require.ErrorIs(t, err, model.ErrInvalidSpec)

	mode, err := model.ParseMode("or")
	require.NoError(t, err)
	require.Equal(t, model.ModeOr, mode)

	_, err = model.ParseMode("nand")
	require.ErrorIs(t, err, model.ErrInvalidSpec)
}
