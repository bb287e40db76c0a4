package feature

import (
	"fmt"
	"sort"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// FilterSpec declares one named dynamic filter for getMany.
type FilterSpec struct {
	Column string
	Op     string // eq, neq, gt, gte, lt, lte, like, in
}

// DefaultFilter is a predicate applied to every generated query.
type DefaultFilter struct {
	Column string
	Value  any
}

// TransformFunc adjusts the derived base column specs after field
// restriction. It must preserve the set of column names.
type TransformFunc func(cols map[string]Column) map[string]Column

// Config is the immutable descriptor of one entity's persistence shape.
// Built once at process start via Configure(...).Build(); never mutated
// afterwards.
type Config struct {
	Table          *Table
	IDs            []string
	UserID         string // "" means the entity is not tenant-scoped
	InsertFields   []string
	UpdateFields   []string
	BaseFields     []string
	Filters        map[string]FilterSpec
	DefaultFilters []DefaultFilter
	Orderable      []string
	Pagination     bool
	PageSize       int
	MaxPage        int
	ActiveFlag     string // soft-delete column; "" means hard delete

	baseCols map[string]Column // post-transform column specs for BaseFields
}

// BaseColumn returns the (possibly transformed) column spec for a base field.
func (c *Config) BaseColumn(name string) (Column, bool) {
	col, ok := c.baseCols[name]
	return col, ok
}

// TenantScoped reports whether every query is filtered by an owner id.
func (c *Config) TenantScoped() bool { return c.UserID != "" }

// SoftDelete reports whether removeById flips the active flag instead of
// deleting the row.
func (c *Config) SoftDelete() bool { return c.ActiveFlag != "" }

// Builder accumulates entity configuration through a fluent chain. Each call
// returns a new builder value; configuration errors are collected and
// reported at Build so that a misconfigured entity fails at process start,
// never at request time.
type Builder struct {
	table      *Table
	ids        []string
	userID     string
	insert     []string
	update     []string
	base       []string
	pickUsed   bool
	omitUsed   bool
	transforms []TransformFunc
	filters    map[string]FilterSpec
	defaults   []DefaultFilter
	orderable  []string
	pagination bool
	pageSize   int
	maxPage    int
	activeFlag string
	errs       []error
}

// Configure starts a builder for the given table. The identifier defaults to
// the "id" column; insert/update/base fields default to every non-auto,
// non-identifier column.
func Configure(table *Table) Builder {
	b := Builder{
		table:    table,
		pageSize: DefaultPageSize,
		maxPage:  MaxPageSize,
		filters:  map[string]FilterSpec{},
	}
	if table == nil || table.Name == "" || len(table.Columns) == 0 {
		b.errs = append(b.errs, fmt.Errorf("configure: table must have a name and columns"))
		return b
	}
	if table.HasColumn("id") {
		b.ids = []string{"id"}
	}
	return b
}

func (b Builder) fail(format string, args ...any) Builder {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
	return b
}

// SetIDs declares the identifier columns.
func (b Builder) SetIDs(fields ...string) Builder {
	if len(fields) == 0 {
		return b.fail("setIds: at least one field required")
	}
	for _, f := range fields {
		if !b.table.HasColumn(f) {
			return b.fail("setIds: unknown column %q on table %s", f, b.table.Name)
		}
	}
	b.ids = append([]string(nil), fields...)
	return b
}

// SetUserID declares the owner column used for tenant scoping.
func (b Builder) SetUserID(field string) Builder {
	if !b.table.HasColumn(field) {
		return b.fail("setUserId: unknown column %q on table %s", field, b.table.Name)
	}
	b.userID = field
	return b
}

// narrow keeps only fields present in both the current set and the requested
// set; a requested field outside the current set is a widening attempt.
func (b Builder) narrow(kind string, current []string, fields []string) ([]string, Builder) {
	currentSet := toSet(current)
	for _, f := range fields {
		if !b.table.HasColumn(f) {
			return current, b.fail("%s: unknown column %q on table %s", kind, f, b.table.Name)
		}
		if len(current) > 0 && !currentSet[f] {
			return current, b.fail("%s: column %q widens the previously restricted set", kind, f)
		}
	}
	return append([]string(nil), fields...), b
}

// RestrictInsertFields narrows which columns may be set on create.
func (b Builder) RestrictInsertFields(fields ...string) Builder {
	b.insert, b = b.narrow("restrictInsertFields", b.insert, fields)
	return b
}

// RestrictUpdateFields narrows which columns may be set on update.
func (b Builder) RestrictUpdateFields(fields ...string) Builder {
	b.update, b = b.narrow("restrictUpdateFields", b.update, fields)
	return b
}

// PickBaseFields keeps only the listed columns in the base validation schema.
// Mutually exclusive with OmitBaseFields.
func (b Builder) PickBaseFields(fields ...string) Builder {
	if b.omitUsed {
		return b.fail("pickBaseFields: cannot mix pick and omit on table %s", b.table.Name)
	}
	b.pickUsed = true
	b.base, b = b.narrow("pickBaseFields", b.base, fields)
	return b
}

// OmitBaseFields removes the listed columns from the base validation schema.
// Mutually exclusive with PickBaseFields.
func (b Builder) OmitBaseFields(fields ...string) Builder {
	if b.pickUsed {
		return b.fail("omitBaseFields: cannot mix pick and omit on table %s", b.table.Name)
	}
	b.omitUsed = true
	for _, f := range fields {
		if !b.table.HasColumn(f) {
			return b.fail("omitBaseFields: unknown column %q on table %s", f, b.table.Name)
		}
	}
	omit := toSet(fields)
	current := b.base
	if len(current) == 0 {
		current = b.defaultFieldSet()
	}
	var kept []string
	for _, f := range current {
		if !omit[f] {
			kept = append(kept, f)
		}
	}
	b.base = kept
	return b
}

// TransformBase registers a column-spec transform applied after field
// restriction. The transform must preserve the set of field names.
func (b Builder) TransformBase(fn TransformFunc) Builder {
	if fn == nil {
		return b.fail("transformBase: nil transform on table %s", b.table.Name)
	}
	b.transforms = append(b.transforms, fn)
	return b
}

// EnableFiltering declares the named dynamic filters accepted by getMany.
func (b Builder) EnableFiltering(spec map[string]FilterSpec) Builder {
	for name, f := range spec {
		if !b.table.HasColumn(f.Column) {
			return b.fail("enableFiltering: filter %q references unknown column %q", name, f.Column)
		}
		switch f.Op {
		case "", "eq", "neq", "gt", "gte", "lt", "lte", "like", "in":
		default:
			return b.fail("enableFiltering: filter %q has unknown operator %q", name, f.Op)
		}
		if f.Op == "" {
			f.Op = "eq"
		}
		b.filters[name] = f
	}
	return b
}

// EnableOrdering declares the whitelist of sortable columns. The first column
// is the default sort; the identifier is always the tie-break.
func (b Builder) EnableOrdering(fields ...string) Builder {
	for _, f := range fields {
		if !b.table.HasColumn(f) {
			return b.fail("enableOrdering: unknown column %q on table %s", f, b.table.Name)
		}
	}
	b.orderable = append([]string(nil), fields...)
	return b
}

// EnablePagination marks getMany as paginated with the default bounds.
func (b Builder) EnablePagination() Builder {
	b.pagination = true
	return b
}

// WithPageSize overrides the default and maximum page sizes.
func (b Builder) WithPageSize(def, max int) Builder {
	if def <= 0 || max <= 0 || def > max {
		return b.fail("withPageSize: invalid bounds default=%d max=%d", def, max)
	}
	b.pageSize = def
	b.maxPage = max
	return b
}

// DefaultFilterEq adds a predicate applied to every generated query.
func (b Builder) DefaultFilterEq(column string, value any) Builder {
	if !b.table.HasColumn(column) {
		return b.fail("defaultFilter: unknown column %q on table %s", column, b.table.Name)
	}
	b.defaults = append(b.defaults, DefaultFilter{Column: column, Value: value})
	return b
}

// SoftDelete declares the boolean active flag. removeById flips it to false,
// and flag=true becomes an implicit default filter on every query.
func (b Builder) SoftDelete(column string) Builder {
	col := b.table.Column(column)
	if col == nil {
		return b.fail("softDelete: unknown column %q on table %s", column, b.table.Name)
	}
	if col.Type != TypeBoolean {
		return b.fail("softDelete: column %q must be boolean, got %s", column, col.Type)
	}
	b.activeFlag = column
	return b
}

// defaultFieldSet is every column except identifiers, the owner column, the
// active flag and engine-managed timestamps.
func (b Builder) defaultFieldSet() []string {
	skip := toSet(b.ids)
	if b.userID != "" {
		skip[b.userID] = true
	}
	if b.activeFlag != "" {
		skip[b.activeFlag] = true
	}
	var fields []string
	for _, c := range b.table.Columns {
		if skip[c.Name] || c.IsAuto() {
			continue
		}
		fields = append(fields, c.Name)
	}
	return fields
}

// Build validates the accumulated configuration and freezes it.
func (b Builder) Build() (*Config, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("feature config for table %s: %w", tableName(b.table), b.errs[0])
	}
	if len(b.ids) == 0 {
		return nil, fmt.Errorf("feature config for table %s: no identifier fields (no 'id' column and setIds not called)", tableName(b.table))
	}

	base := b.base
	if len(base) == 0 && !b.omitUsed {
		base = b.defaultFieldSet()
	}
	insert := b.insert
	if len(insert) == 0 {
		insert = intersect(base, b.defaultFieldSet())
	}
	update := b.update
	if len(update) == 0 {
		update = insert
	}
	// insert/update must stay inside the base schema
	baseSet := toSet(base)
	for _, f := range insert {
		if !baseSet[f] {
			return nil, fmt.Errorf("feature config for table %s: insert field %q is outside the base schema", b.table.Name, f)
		}
	}
	for _, f := range update {
		if !baseSet[f] {
			return nil, fmt.Errorf("feature config for table %s: update field %q is outside the base schema", b.table.Name, f)
		}
	}

	// derive the base column specs and run transforms
	cols := make(map[string]Column, len(base))
	for _, f := range base {
		cols[f] = *b.table.Column(f)
	}
	for i, fn := range b.transforms {
		next := fn(copyCols(cols))
		if !sameKeys(cols, next) {
			return nil, fmt.Errorf("feature config for table %s: transform %d changed the field set", b.table.Name, i)
		}
		cols = next
	}

	defaults := append([]DefaultFilter(nil), b.defaults...)
	if b.activeFlag != "" {
		defaults = append(defaults, DefaultFilter{Column: b.activeFlag, Value: true})
	}

	cfg := &Config{
		Table:          b.table,
		IDs:            append([]string(nil), b.ids...),
		UserID:         b.userID,
		InsertFields:   append([]string(nil), insert...),
		UpdateFields:   append([]string(nil), update...),
		BaseFields:     append([]string(nil), base...),
		Filters:        copyFilters(b.filters),
		DefaultFilters: defaults,
		Orderable:      append([]string(nil), b.orderable...),
		Pagination:     b.pagination,
		PageSize:       b.pageSize,
		MaxPage:        b.maxPage,
		ActiveFlag:     b.activeFlag,
		baseCols:       cols,
	}
	return cfg, nil
}

// MustBuild is Build for process-start wiring; it panics on misconfiguration.
func (b Builder) MustBuild() *Config {
	cfg, err := b.Build()
	if err != nil {
		panic(err)
	}
	return cfg
}

func tableName(t *Table) string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}

func toSet(fields []string) map[string]bool {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func intersect(a, b []string) []string {
	bSet := toSet(b)
	var out []string
	for _, f := range a {
		if bSet[f] {
			out = append(out, f)
		}
	}
	return out
}

func copyCols(cols map[string]Column) map[string]Column {
	out := make(map[string]Column, len(cols))
	for k, v := range cols {
		out[k] = v
	}
	return out
}

func copyFilters(filters map[string]FilterSpec) map[string]FilterSpec {
	out := make(map[string]FilterSpec, len(filters))
	for k, v := range filters {
		out[k] = v
	}
	return out
}

func sameKeys(a, b map[string]Column) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// sortedKeys gives deterministic iteration for SQL and error output.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
