package model_test

import (
	"testing"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestPermissionForLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		level    model.Level
		expected model.Permission
		name     string
	}{
		{level: model.LevelRead, name: "Read", expected: model.Permission{UserID: 3, TableID: 7, CanRead: true}},
		{level: model.LevelWrite, name: "Write", expected: model.Permission{UserID: 3, TableID: 7, CanRead: true, CanWrite: true}},
		{level: model.LevelDelete, name: "Delete", expected: model.Permission{UserID: 3, TableID: 7, CanRead: true, CanWrite: true, CanDelete: true}},
		{level: model.LevelOwner, name: "Owner", expected: model.Permission{UserID: 3, TableID: 7, CanRead: true, CanWrite: true, CanDelete: true, IsOwner: true}},
	}

	for _, tc := range cases {
		t.Run(string(tc.level), func(t *testing.T) {
			t.Parallel()

			permission := model.PermissionForLevel(3, 7, tc.level)
			require.Equal(t, tc.expected, permission)
			require.Equal(t, tc.name, permission.LevelName())
		})
	}
}

func TestLevelsAreMonotonic(t *testing.T) {
	t.Parallel()

	levels := []model.Level{model.LevelRead, model.LevelWrite, model.LevelDelete, model.LevelOwner}
	kinds := []model.PermissionKind{model.PermRead, model.PermWrite, model.PermDelete, model.PermOwner}

	for i := 1; i < len(levels); i++ {
		weaker := model.PermissionForLevel(1, 1, levels[i-1])
		stronger := model.PermissionForLevel(1, 1, levels[i])

		for _, kind := range kinds {
			if weaker.Allows(kind) {
				require.True(t, stronger.Allows(kind), "%s grants %s but %s does not", levels[i-1], kind, levels[i])
			}
		}
	}
}

func TestPermissionAllows(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		permission model.Permission
		allowed    []model.PermissionKind
		denied     []model.PermissionKind
	}{
		{
			name:   "no flags denies everything",
			denied: []model.PermissionKind{model.PermRead, model.PermWrite, model.PermDelete, model.PermOwner},
		},
		{
			name:       "delete does not imply write",
			permission: model.Permission{CanRead: true, CanDelete: true},
			allowed:    []model.PermissionKind{model.PermRead, model.PermDelete},
			denied:     []model.PermissionKind{model.PermWrite, model.PermOwner},
		},
		{
			name:       "owner flag alone grants everything",
			permission: model.Permission{IsOwner: true},
			allowed:    []model.PermissionKind{model.PermRead, model.PermWrite, model.PermDelete, model.PermOwner},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			for _, kind := range tc.allowed {
				require.True(t, tc.permission.Allows(kind), kind)
			}

			for _, kind := range tc.denied {
				require.False(t, tc.permission.Allows(kind), kind)
			}
		})
	}
}

func TestParseLevelAndKind(t *testing.T) {
	t.Parallel()

	level, err := model.ParseLevel(" Owner ")
	require.NoError(t, err)
	require.Equal(t, model.LevelOwner, level)

	_, err = model.ParseLevel("god")
	require.ErrorIs(t, err, model.ErrInvalidSpec)

	kind, err := model.ParsePermissionKind("WRITE")
	require.NoError(t, err)
	require.Equal(t, model.PermWrite, kind)

	_, err = model.ParsePermissionKind("admin")
	require.ErrorIs(t, err, model.ErrInvalidPermission)
}
