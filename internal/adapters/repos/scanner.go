package repos

import (
	"database/sql"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type (
	// Scanner abstracts row scanning so every repository maps rows the same
	// way regardless of the metadata engine.
	Scanner interface {
		ScanAll(dst any, rows *sql.Rows) error
		ScanOne(dst any, rows *sql.Rows) error
		IsNotFound(err error) bool
	}

	// SQLScanner implements Scanner using sqlscan.
	SQLScanner struct{}
)

func NewSQLScanner() *SQLScanner {
	return &SQLScanner{}
}

func (s *SQLScanner) ScanAll(dst any, rows *sql.Rows) error {
	return sqlscan.ScanAll(dst, rows)
}

func (s *SQLScanner) ScanOne(dst any, rows *sql.Rows) error {
	return sqlscan.ScanOne(dst, rows)
}

func (s *SQLScanner) IsNotFound(err error) bool {
	return sqlscan.NotFound(err)
}
