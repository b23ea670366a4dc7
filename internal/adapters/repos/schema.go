package repos

import (
	"fmt"
	"strings"

	"github.com/architeacher/nocoflo/internal/domain/model"
)

const (
	usersTable       = "users"
	dbconfigTable    = "dbconfig"
	tableMetaTable   = "table_meta"
	columnMetaTable  = "column_meta"
	permissionTable  = "permission"
	inviteTable      = "invite"
	rowLockTable     = "row_lock"
	changelogTable   = "changelog"
	changelogColumns = "c.id, c.table_id, c.row_pk, c.column_name, c.old_value, c.new_value, c.modified_by, c.modified_at"
)

// ddlTypes holds the column types that differ between engines.
type ddlTypes struct {
	id        string
	text      string
	key       string
	boolean   string
	falseLit  string
	trueLit   string
	timestamp string
	// inlineIndexes is set for engines without CREATE INDEX IF NOT EXISTS.
	inlineIndexes bool
}

func typesFor(kind model.DatasourceType) ddlTypes {
	switch kind {
	case model.DatasourcePostgreSQL:
		return ddlTypes{
			id:        "BIGSERIAL PRIMARY KEY",
			text:      "TEXT",
			key:       "TEXT",
			boolean:   "BOOLEAN",
			falseLit:  "FALSE",
			trueLit:   "TRUE",
			timestamp: "TIMESTAMPTZ",
		}
	case model.DatasourceMySQL:
		return ddlTypes{
			id:            "BIGINT AUTO_INCREMENT PRIMARY KEY",
			text:          "TEXT",
			key:           "VARCHAR(255)",
			boolean:       "BOOLEAN",
			falseLit:      "FALSE",
			trueLit:       "TRUE",
			timestamp:     "DATETIME(6)",
			inlineIndexes: true,
		}
	default:
		return ddlTypes{
			id:        "INTEGER PRIMARY KEY AUTOINCREMENT",
			text:      "TEXT",
			key:       "TEXT",
			boolean:   "BOOLEAN",
			falseLit:  "0",
			trueLit:   "1",
			timestamp: "TIMESTAMP",
		}
	}
}

type index struct {
	name    string
	table   string
	columns string
}

var changelogIndexes = []index{
	{name: "idx_changelog_table", table: changelogTable, columns: "table_id, modified_at"},
	{name: "idx_changelog_row", table: changelogTable, columns: "table_id, row_pk"},
	{name: "idx_changelog_user", table: changelogTable, columns: "modified_by"},
}

// schemaStatements renders the metadata DDL for one engine. Every statement
// is safe to re-run.
func schemaStatements(kind model.DatasourceType) []string {
	t := typesFor(kind)

	changelogExtra := ""
	if t.inlineIndexes {
		parts := make([]string, 0, len(changelogIndexes))
		for _, idx := range changelogIndexes {
			parts = append(parts, fmt.Sprintf("INDEX %s (%s)", idx.name, idx.columns))
		}

		changelogExtra = ",\n\t" + strings.Join(parts, ",\n\t")
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	name %s NOT NULL,
	email %s NOT NULL UNIQUE,
	password_hash %s NOT NULL,
	role %s NOT NULL
)`, usersTable, t.id, t.text, t.key, t.text, t.key),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	db_name %s NOT NULL,
	con_str %s NOT NULL,
	owner_id BIGINT NOT NULL
)`, dbconfigTable, t.id, t.text, t.text),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	table_name %s NOT NULL,
	db_id BIGINT NOT NULL,
	display_name %s NOT NULL
)`, tableMetaTable, t.id, t.text, t.text),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	table_id BIGINT NOT NULL,
	column_name %s NOT NULL,
	display_name %s NOT NULL,
	column_type %s NOT NULL,
	is_visible %s NOT NULL DEFAULT %s
)`, columnMetaTable, t.id, t.text, t.text, t.text, t.boolean, t.trueLit),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	user_id BIGINT NOT NULL,
	table_id BIGINT NOT NULL,
	can_read %s NOT NULL DEFAULT %s,
	can_write %s NOT NULL DEFAULT %s,
	can_delete %s NOT NULL DEFAULT %s,
	is_owner %s NOT NULL DEFAULT %s,
	UNIQUE (user_id, table_id)
)`, permissionTable, t.id,
			t.boolean, t.falseLit, t.boolean, t.falseLit, t.boolean, t.falseLit, t.boolean, t.falseLit),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	email %s NOT NULL,
	token %s NOT NULL UNIQUE,
	used %s NOT NULL DEFAULT %s,
	created_at %s NOT NULL
)`, inviteTable, t.id, t.key, t.key, t.boolean, t.falseLit, t.timestamp),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	table_id BIGINT NOT NULL,
	row_pk %s NOT NULL,
	locked_by BIGINT NOT NULL,
	locked_at %s NOT NULL,
	UNIQUE (table_id, row_pk)
)`, rowLockTable, t.id, t.key, t.timestamp),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	table_id BIGINT NOT NULL,
	row_pk %s NOT NULL,
	column_name %s NOT NULL,
	old_value %s,
	new_value %s,
	modified_by BIGINT NOT NULL,
	modified_at %s NOT NULL%s
)`, changelogTable, t.id, t.key, t.text, t.text, t.text, t.timestamp, changelogExtra),
	}

	if !t.inlineIndexes {
		for _, idx := range changelogIndexes {
			statements = append(statements,
				fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idx.name, idx.table, idx.columns))
		}
	}

	return statements
}
