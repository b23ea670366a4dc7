package model

import (
	"fmt"
	"time"
)

type (
	// ChangelogEntry records one column of one row changing. Entries are
	// append-only.
	ChangelogEntry struct {
		ID         int64     `json:"id" db:"id"`
		TableID    int64     `json:"table_id" db:"table_id"`
		RowPK      string    `json:"row_pk" db:"row_pk"`
		ColumnName string    `json:"column_name" db:"column_name"`
		OldValue   *string   `json:"old_value" db:"old_value"`
		NewValue   *string   `json:"new_value" db:"new_value"`
		ModifiedBy int64     `json:"modified_by" db:"modified_by"`
		ModifiedAt time.Time `json:"modified_at" db:"modified_at"`
	}

	// ChangelogView is an entry joined with the name of the user who made it.
	ChangelogView struct {
		ChangelogEntry
		UserName string `json:"user_name" db:"user_name"`
	}

	Page struct {
		Limit  int
		Offset int
	}
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}

	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}

	if p.Offset < 0 {
		p.Offset = 0
	}

	return p
}

// NewChange builds an entry from raw cell values. A nil value is stored as
// NULL, everything else in its textual form.
func NewChange(actor Actor, tableID int64, rowPK, column string, oldValue, newValue any) ChangelogEntry {
	return ChangelogEntry{
		TableID:    tableID,
		RowPK:      rowPK,
		ColumnName: column,
		OldValue:   CellText(oldValue),
		NewValue:   CellText(newValue),
		ModifiedBy: actor.UserID,
	}
}

// CellText renders a cell value the way it is stored in the audit log.
func CellText(v any) *string {
	if v == nil {
		return nil
	}

	var s string

	switch value := v.(type) {
	case string:
		s = value
	case []byte:
		s = string(value)
	case time.Time:
		s = value.UTC().Format(time.RFC3339Nano)
	default:
		s = fmt.Sprint(value)
	}

	return &s
}
