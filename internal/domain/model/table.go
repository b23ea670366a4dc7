package model

type (
	Row map[string]any

	// Table is a column-labelled read result. Columns is populated even when
	// Rows is empty.
	Table struct {
		Columns []string `json:"columns"`
		Rows    []Row    `json:"rows"`
	}

	ColumnSchema struct {
		Name       string  `json:"name"`
		Type       string  `json:"type"`
		NotNull    bool    `json:"notnull"`
		Default    *string `json:"default"`
		PrimaryKey bool    `json:"pk"`
	}

	Schema []ColumnSchema
)

const defaultPrimaryKey = "id"

func NewTable(columns []string) *Table {
	return &Table{Columns: columns, Rows: make([]Row, 0)}
}

func (t *Table) Len() int { return len(t.Rows) }

// Names returns the column names in table order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for _, c := range s {
		names = append(names, c.Name)
	}

	return names
}

// PrimaryKey returns the first primary key column, falling back to "id".
func (s Schema) PrimaryKey() string {
	for _, c := range s {
		if c.PrimaryKey {
			return c.Name
		}
	}

	return defaultPrimaryKey
}

func (s Schema) Has(column string) bool {
	for _, c := range s {
		if c.Name == column {
			return true
		}
	}

	return false
}
