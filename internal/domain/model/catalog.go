package model

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func ParseRole(s string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(s))); role {
	case RoleAdmin, RoleUser:
		return role, nil
	case "":
		return RoleUser, nil
	}

	return "", newValidationError("role", fmt.Sprintf("unknown role %q", s), codeInvalidValue)
}

// Actor is the identity a call runs as. It is passed explicitly to every
// operation that checks access or records who did something.
type Actor struct {
	UserID int64
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type (
	User struct {
		ID           int64  `json:"id" db:"id"`
		Name         string `json:"name" db:"name"`
		Email        string `json:"email" db:"email"`
		PasswordHash string `json:"-" db:"password_hash"`
		Role         Role   `json:"role" db:"role"`
	}

	DBConfig struct {
		ID      int64  `json:"id" db:"id"`
		Name    string `json:"db_name" db:"db_name"`
		ConStr  string `json:"-" db:"con_str"`
		OwnerID int64  `json:"owner_id" db:"owner_id"`
	}

	TableMeta struct {
		ID          int64  `json:"id" db:"id"`
		TableName   string `json:"table_name" db:"table_name"`
		DBID        int64  `json:"db_id" db:"db_id"`
		DisplayName string `json:"display_name" db:"display_name"`
	}

	ColumnMeta struct {
		ID          int64  `json:"id" db:"id"`
		TableID     int64  `json:"table_id" db:"table_id"`
		ColumnName  string `json:"column_name" db:"column_name"`
		DisplayName string `json:"display_name" db:"display_name"`
		ColumnType  string `json:"column_type" db:"column_type"`
		IsVisible   bool   `json:"is_visible" db:"is_visible"`
	}

	// TableRef is a registered table resolved against its database.
	TableRef struct {
		TableMeta
		DBName string `json:"db_name" db:"db_name"`
		ConStr string `json:"-" db:"con_str"`
	}

	Invite struct {
		ID        int64     `json:"id" db:"id"`
		Email     string    `json:"email" db:"email"`
		Token     string    `json:"token" db:"token"`
		Used      bool      `json:"used" db:"used"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
	}
)

// Label is the display name, or the table name when none was set.
func (t TableMeta) Label() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}

	return t.TableName
}

// Datasource resolves the stored connection string into a plugin config bound
// to this table.
func (t TableRef) Datasource() (DatasourceConfig, error) {
	cfg, err := ParseConnectionString(t.ConStr)
	if err != nil {
		return DatasourceConfig{}, fmt.Errorf("table %d: %w", t.ID, err)
	}

	return cfg.WithTable(t.TableName), nil
}
