package model

import "time"

// RowLock is an exclusive advisory claim on one row of a registered table.
type RowLock struct {
	TableID  int64     `json:"table_id" db:"table_id"`
	RowPK    string    `json:"row_pk" db:"row_pk"`
	LockedBy int64     `json:"locked_by" db:"locked_by"`
	LockedAt time.Time `json:"locked_at" db:"locked_at"`
}

// Expired reports whether the lock is older than ttl at now. A zero ttl
// never expires.
func (l RowLock) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}

	return !l.LockedAt.Add(ttl).After(now)
}
