package datasources

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type (
	// Scanner abstracts row scanning for both driver families.
	Scanner interface {
		ScanAllSQL(dst any, rows *sql.Rows) error
		ScanAllPgx(dst any, rows pgx.Rows) error
	}

	// ScanyScanner implements Scanner with scany.
	ScanyScanner struct{}

	columnRow struct {
		Name       string  `db:"name"`
		Type       string  `db:"type"`
		NotNull    bool    `db:"notnull"`
		Default    *string `db:"dflt"`
		PrimaryKey bool    `db:"pk"`
	}
)

func NewScanyScanner() *ScanyScanner {
	return &ScanyScanner{}
}

func (s *ScanyScanner) ScanAllSQL(dst any, rows *sql.Rows) error {
	return sqlscan.ScanAll(dst, rows)
}

func (s *ScanyScanner) ScanAllPgx(dst any, rows pgx.Rows) error {
	return pgxscan.ScanAll(dst, rows)
}

// numericColumns names the result columns the driver hands back as decimal
// text. MySQL returns DECIMAL cells as []byte.
func numericColumns(rows *sql.Rows) map[string]bool {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil
	}

	var numeric map[string]bool
	for _, ct := range types {
		switch strings.TrimPrefix(strings.ToUpper(ct.DatabaseTypeName()), "UNSIGNED ") {
		case "DECIMAL", "NUMERIC":
			if numeric == nil {
				numeric = make(map[string]bool, len(types))
			}
			numeric[ct.Name()] = true
		}
	}

	return numeric
}

// normalizeRow maps driver specific cell types onto one set so every backend
// yields the same Go values: string for text, int64 for integers, float64
// for reals and numerics, UTC times. Text cells of numeric columns are parsed.
func normalizeRow(row map[string]any, numeric map[string]bool) map[string]any {
	for key, value := range row {
		switch v := value.(type) {
		case []byte:
			row[key] = decimalOrText(string(v), numeric[key])
		case string:
			row[key] = decimalOrText(v, numeric[key])
		case time.Time:
			row[key] = v.UTC()
		case int:
			row[key] = int64(v)
		case int8:
			row[key] = int64(v)
		case int16:
			row[key] = int64(v)
		case int32:
			row[key] = int64(v)
		case uint8:
			row[key] = int64(v)
		case uint16:
			row[key] = int64(v)
		case uint32:
			row[key] = int64(v)
		case float32:
			row[key] = float64(v)
		case pgtype.Numeric:
			if f, err := v.Float64Value(); err == nil && f.Valid {
				row[key] = f.Float64
			} else {
				row[key] = nil
			}
		}
	}

	return row
}

func decimalOrText(value string, numeric bool) any {
	if !numeric {
		return value
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}

	return f
}
