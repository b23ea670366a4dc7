package idempotency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContext(t *testing.T) {
	t.Parallel()

	_, ok := FromContext(context.Background())
	require.False(t, ok)

	_, ok = FromContext(WithKey(context.Background(), ""))
	require.False(t, ok, "an empty key counts as absent")

	key, ok := FromContext(WithKey(context.Background(), "550e8400-e29b-41d4"))
	require.True(t, ok)
	require.Equal(t, "550e8400-e29b-41d4", key)
}
