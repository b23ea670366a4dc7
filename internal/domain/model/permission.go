package model

import (
	"fmt"
	"strings"
)

type (
	// PermissionKind is what a caller asks for when checking access.
	PermissionKind string

	// Level is what gets granted. Levels are cumulative.
	Level string

	Permission struct {
		UserID    int64 `json:"user_id" db:"user_id"`
		TableID   int64 `json:"table_id" db:"table_id"`
		CanRead   bool  `json:"can_read" db:"can_read"`
		CanWrite  bool  `json:"can_write" db:"can_write"`
		CanDelete bool  `json:"can_delete" db:"can_delete"`
		IsOwner   bool  `json:"is_owner" db:"is_owner"`
	}

	// TableUser is a user listed against one table with whatever flags they
	// hold on it, all false when they hold none.
	TableUser struct {
		User
		Permission
		Level string `json:"level" db:"-"`
	}
)

const (
	PermRead   PermissionKind = "read"
	PermWrite  PermissionKind = "write"
	PermDelete PermissionKind = "delete"
	PermOwner  PermissionKind = "owner"

	LevelRead   Level = "read"
	LevelWrite  Level = "write"
	LevelDelete Level = "delete"
	LevelOwner  Level = "owner"
)

func ParsePermissionKind(s string) (PermissionKind, error) {
	switch kind := PermissionKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case PermRead, PermWrite, PermDelete, PermOwner:
		return kind, nil
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidPermission, s)
}

func ParseLevel(s string) (Level, error) {
	switch level := Level(strings.ToLower(strings.TrimSpace(s))); level {
	case LevelRead, LevelWrite, LevelDelete, LevelOwner:
		return level, nil
	}

	return "", newValidationError("level", fmt.Sprintf("unknown permission level %q", s), codeInvalidLevel)
}

// PermissionForLevel expands a level into its flag set:
// read ⊆ write ⊆ delete ⊆ owner.
func PermissionForLevel(userID, tableID int64, level Level) Permission {
	return Permission{
		UserID:    userID,
		TableID:   tableID,
		CanRead:   true,
		CanWrite:  level == LevelWrite || level == LevelDelete || level == LevelOwner,
		CanDelete: level == LevelDelete || level == LevelOwner,
		IsOwner:   level == LevelOwner,
	}
}

// Allows evaluates one permission row. Owners get everything; the other flags
// are independent of each other.
func (p Permission) Allows(kind PermissionKind) bool {
	if p.IsOwner {
		return true
	}

	switch kind {
	case PermRead:
		return p.CanRead
	case PermWrite:
		return p.CanWrite
	case PermDelete:
		return p.CanDelete
	}

	return false
}

// LevelName is the display name of the strongest flag held.
func (p Permission) LevelName() string {
	switch {
	case p.IsOwner:
		return "Owner"
	case p.CanDelete:
		return "Delete"
	case p.CanWrite:
		return "Write"
	case p.CanRead:
		return "Read"
	default:
		return "None"
	}
}
