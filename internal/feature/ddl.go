package feature

import (
	"context"
	"fmt"
	"strings"

	"ledger-backend/internal/store"
)

// CreateTableSQL renders the CREATE TABLE statement for a config. Unique
// columns on tenant-scoped entities are unique per owner, not globally.
// Column references become foreign keys, so tables must be created in
// dependency order.
func CreateTableSQL(cfg *Config, dialect store.Dialect) string {
	var defs []string
	for _, c := range cfg.Table.Columns {
		def := fmt.Sprintf("%s %s", c.Name, dialect.ColumnType(c.Type, c.Precision))
		if !c.Nullable {
			def += " NOT NULL"
		}
		if c.References != "" {
			def += " REFERENCES " + c.References
		}
		defs = append(defs, def)
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(cfg.IDs, ", ")))

	idSet := toSet(cfg.IDs)
	for _, c := range cfg.Table.Columns {
		if !c.Unique || idSet[c.Name] {
			continue
		}
		if cfg.TenantScoped() {
			defs = append(defs, fmt.Sprintf("UNIQUE (%s, %s)", cfg.UserID, c.Name))
		} else {
			defs = append(defs, fmt.Sprintf("UNIQUE (%s)", c.Name))
		}
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		cfg.Table.Name, strings.Join(defs, ",\n  "))
}

// EnsureTable creates the entity's table when missing.
func EnsureTable(ctx context.Context, cfg *Config, st *store.Store) error {
	if _, err := st.DB.ExecContext(ctx, CreateTableSQL(cfg, st.Dialect)); err != nil {
		return fmt.Errorf("create table %s: %w", cfg.Table.Name, err)
	}
	return nil
}
