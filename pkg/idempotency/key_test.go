package idempotency

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		key         string
		expectedErr error
	}{
		{name: "uuid", key: "550e8400-e29b-41d4-a716-446655440000"},
		{name: "underscores", key: "insert_row_0000001"},
		{name: "exactly minimum length", key: strings.Repeat("k", MinKeyLength)},
		{name: "exactly maximum length", key: strings.Repeat("k", MaxKeyLength)},
		{name: "too short", key: "retry-1", expectedErr: ErrKeyTooShort},
		{name: "too long", key: strings.Repeat("k", MaxKeyLength+1), expectedErr: ErrKeyTooLong},
		{name: "spaces", key: "insert row 0000001", expectedErr: ErrKeyInvalid},
		{name: "path separators", key: "tables/1/rows/0001", expectedErr: ErrKeyInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.ErrorIs(t, Validate(tc.key), tc.expectedErr)
		})
	}
}

func TestReplayKey(t *testing.T) {
	t.Parallel()

	base := ReplayKey(1, "POST", "/v1/tables/3/rows", "550e8400-e29b-41d4")

	require.True(t, strings.HasPrefix(base, KeyPrefix+":"))
	require.Equal(t, base, ReplayKey(1, "POST", "/v1/tables/3/rows", "550e8400-e29b-41d4"), "deterministic")

	require.NotEqual(t, base, ReplayKey(2, "POST", "/v1/tables/3/rows", "550e8400-e29b-41d4"), "scoped per user")
	require.NotEqual(t, base, ReplayKey(1, "POST", "/v1/tables/4/rows", "550e8400-e29b-41d4"), "scoped per path")
	require.NotEqual(t, base, ReplayKey(1, "PATCH", "/v1/tables/3/rows", "550e8400-e29b-41d4"), "scoped per method")

	require.NotEqual(t,
		ReplayKey(1, "POST", "/v1/a", "b-0000000000000000"),
		ReplayKey(1, "POST", "/v1/ab", "-0000000000000000"),
		"parts are delimited",
	)

	require.Equal(t, base+":claim", ClaimKey(base))
}
