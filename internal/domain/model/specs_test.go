package model_test

import (
	"testing"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestQueryBuilderBounds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		limit        *int
		offset       int
		expectedCode string
	}{
		{name: "no limit", offset: 0},
		{name: "limit one", limit: ptr(1), offset: 0},
		{name: "limit zero", limit: ptr(0), offset: 0, expectedCode: "OUT_OF_RANGE"},
		{name: "negative limit", limit: ptr(-5), expectedCode: "OUT_OF_RANGE"},
		{name: "negative offset", limit: ptr(10), offset: -1, expectedCode: "OUT_OF_RANGE"},
		{name: "offset without limit", offset: 20},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			builder := model.NewQuery("people").Offset(tc.offset)
			if tc.limit != nil {
				builder = builder.Limit(*tc.limit)
			}

			spec, err := builder.Build()
			if tc.expectedCode != "" {
				require.ErrorIs(t, err, model.ErrInvalidSpec)
				require.Equal(t, tc.expectedCode, validationCode(t, err))

				return
			}

			require.NoError(t, err)
			require.Equal(t, "people", spec.Table)
			require.Equal(t, tc.limit, spec.Limit)
			require.Equal(t, tc.offset, spec.Offset)
		})
	}
}

func TestQueryBuilderRejectsBadIdentifiers(t *testing.T) {
	t.Parallel()

	_, err := model.NewQuery("people; --").Build()
	require.Equal(t, "INVALID_TABLE", validationCode(t, err))

	_, err = model.NewQuery("").Build()
	require.Equal(t, "REQUIRED", validationCode(t, err))

	_, err = model.NewQuery("people").OrderBy("age desc", true).Build()
	require.Equal(t, "INVALID_FIELD", validationCode(t, err))

	spec, err := model.NewQuery("people").OrderBy("age", false).OrderBy("id", true).Build()
	require.NoError(t, err)
	require.Equal(t, []model.OrderBy{{Field: "age"}, {Field: "id", Ascending: true}}, spec.OrderBy)
}

func TestMutationSpecs(t *testing.T) {
	t.Parallel()

	young, err := model.Lt("age", 25)
	require.NoError(t, err)

	payload := map[string]any{"name": "Eve", "city": "SEA"}

	insert, err := model.NewInsertSpec("people", payload)
	require.NoError(t, err)
	require.Equal(t, []string{"city", "name"}, insert.Columns())

	payload["name"] = "changed"
	require.Equal(t, "Eve", insert.Payload["name"], "specs keep their own copy of the payload")

	_, err = model.NewInsertSpec("people", nil)
	require.Equal(t, "EMPTY_PAYLOAD", validationCode(t, err))

	_, err = model.NewInsertSpec("people", map[string]any{"bad column": 1})
	require.Equal(t, "INVALID_FIELD", validationCode(t, err))

	update, err := model.NewUpdateSpec("people", young, map[string]any{"city": "Young"})
	require.NoError(t, err)
	require.Equal(t, "age", update.Filters.Field())

	_, err = model.NewUpdateSpec("people", nil, map[string]any{"city": "Young"})
	require.Equal(t, "REQUIRED", validationCode(t, err))

	_, err = model.NewDeleteSpec("people", young)
	require.NoError(t, err)

	var missing *model.ConditionGroup

	_, err = model.NewDeleteSpec("people", missing)
	require.ErrorIs(t, err, model.ErrInvalidSpec)
}

func ptr(v int) *int {
	return &v
}
