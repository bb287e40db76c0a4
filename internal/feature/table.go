// Package feature derives validation schemas, tenant-scoped CRUD queries and
// service operations from one declarative table definition per entity.
package feature

// Column types understood by the dialects.
const (
	TypeString    = "string"
	TypeText      = "text"
	TypeInt       = "int"
	TypeBigint    = "bigint"
	TypeDecimal   = "decimal"
	TypeBoolean   = "boolean"
	TypeUUID      = "uuid"
	TypeTimestamp = "timestamp"
	TypeDate      = "date"
	TypeJSON      = "json"
)

type Column struct {
	Name       string
	Type       string
	Required   bool
	Unique     bool
	Nullable   bool
	Enum       []string
	Precision  int
	Default    any
	Auto       string // "create" or "update" for engine-managed timestamps
	References string // referenced "table(column)", optionally with an ON DELETE action
}

// IsAuto returns true if the column is managed by the engine.
func (c Column) IsAuto() bool {
	return c.Auto == "create" || c.Auto == "update"
}

// Table describes one persisted entity's shape.
type Table struct {
	Name    string
	Columns []Column
}

// Column returns a pointer to the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumn returns true if the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	return t.Column(name) != nil
}

// ColumnNames returns all column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// BoolColumns returns the names of boolean columns, used for SQLite
// integer-to-bool fix-ups.
func (t *Table) BoolColumns() []string {
	var names []string
	for _, c := range t.Columns {
		if c.Type == TypeBoolean {
			names = append(names, c.Name)
		}
	}
	return names
}
