package feature

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledger-backend/internal/store"
)

// Queries executes the generated CRUD statements for one entity. Every read
// and write is scoped by the owner column and the config's default filters;
// a row outside the caller's scope behaves exactly like a missing row.
type Queries struct {
	cfg *Config
	st  *store.Store
}

// NewQueries binds a config to a store.
func NewQueries(cfg *Config, st *store.Store) *Queries {
	return &Queries{cfg: cfg, st: st}
}

// Config returns the bound entity config.
func (q *Queries) Config() *Config { return q.cfg }

// Page is the getMany result shape.
type Page struct {
	Items []map[string]any
	Total int64
}

// GetManyInput carries the validated list parameters. Filters must already be
// coerced via Config.ParseFilters.
type GetManyInput struct {
	Filters  map[string]any
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	UserID   string
}

var filterOps = map[string]string{
	"eq":  "=",
	"neq": "!=",
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
}

// GetByID fetches one row by its identifier fields.
func (q *Queries) GetByID(ctx context.Context, ids map[string]any, userID string) (map[string]any, error) {
	return q.getByID(ctx, q.st.DB, ids, userID)
}

func (q *Queries) getByID(ctx context.Context, qr store.Querier, ids map[string]any, userID string) (map[string]any, error) {
	pb := q.st.Dialect.NewParamBuilder()
	conds, err := q.idConds(pb, ids)
	if err != nil {
		return nil, err
	}
	conds = append(conds, q.scopeConds(pb, userID)...)

	sqlStr := fmt.Sprintf("SELECT * FROM %s WHERE %s", q.cfg.Table.Name, strings.Join(conds, " AND "))
	row, err := store.QueryRow(ctx, qr, sqlStr, pb.Params()...)
	if err != nil {
		return nil, err
	}
	q.fixBools(row)
	return row, nil
}

// GetMany lists rows matching the dynamic filters, ordered deterministically
// and paginated when the config enables it.
func (q *Queries) GetMany(ctx context.Context, in GetManyInput) (*Page, error) {
	pb := q.st.Dialect.NewParamBuilder()
	conds := q.scopeConds(pb, in.UserID)

	for _, name := range sortedKeysAny(in.Filters) {
		spec, ok := q.cfg.Filters[name]
		if !ok {
			return nil, fmt.Errorf("getMany on %s: unknown filter %q", q.cfg.Table.Name, name)
		}
		val := in.Filters[name]
		switch spec.Op {
		case "like":
			s, _ := val.(string)
			conds = append(conds, q.st.Dialect.LikeExpr(spec.Column, pb, s))
		case "in":
			items, _ := val.([]any)
			if len(items) == 0 {
				// empty IN matches nothing
				conds = append(conds, "1 = 0")
				continue
			}
			conds = append(conds, q.st.Dialect.InExpr(spec.Column, pb, items))
		default:
			conds = append(conds, fmt.Sprintf("%s %s %s", spec.Column, filterOps[spec.Op], pb.Add(val)))
		}
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	countSQL := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s%s", q.cfg.Table.Name, where)
	countRow, err := store.QueryRow(ctx, q.st.DB, countSQL, pb.Params()...)
	if err != nil {
		return nil, err
	}
	total := toInt64(countRow["count"])

	orderClause, err := q.orderClause(in.OrderBy, in.OrderDir)
	if err != nil {
		return nil, err
	}

	sqlStr := fmt.Sprintf("SELECT * FROM %s%s%s", q.cfg.Table.Name, where, orderClause)
	if q.cfg.Pagination {
		size := q.clampPageSize(in.PageSize)
		page := in.Page
		if page < 0 {
			page = 0
		}
		sqlStr += fmt.Sprintf(" LIMIT %d OFFSET %d", size, page*size)
	}

	rows, err := store.QueryRows(ctx, q.st.DB, sqlStr, pb.Params()...)
	if err != nil {
		return nil, err
	}
	if q.st.Dialect.NeedsBoolFix() {
		store.NormalizeBooleans(rows, q.cfg.Table.BoolColumns())
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return &Page{Items: rows, Total: total}, nil
}

// Create inserts one validated record and returns the stored row.
func (q *Queries) Create(ctx context.Context, record map[string]any, userID string) (map[string]any, error) {
	return q.create(ctx, q.st.DB, record, userID)
}

func (q *Queries) create(ctx context.Context, qr store.Querier, record map[string]any, userID string) (map[string]any, error) {
	row := q.insertRow(record, userID)

	pb := q.st.Dialect.NewParamBuilder()
	cols := sortedKeysAny(row)
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		placeholders[i] = pb.Add(row[c])
	}
	sqlStr := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		q.cfg.Table.Name, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if _, err := store.Exec(ctx, qr, sqlStr, pb.Params()...); err != nil {
		return nil, q.st.Dialect.MapError(err)
	}

	ids := make(map[string]any, len(q.cfg.IDs))
	for _, f := range q.cfg.IDs {
		ids[f] = row[f]
	}
	return q.getByID(ctx, qr, ids, userID)
}

// CreateMany inserts all records in one transaction; any failure rolls the
// whole batch back.
func (q *Queries) CreateMany(ctx context.Context, records []map[string]any, userID string) ([]map[string]any, error) {
	tx, err := q.st.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	out := make([]map[string]any, 0, len(records))
	for i, record := range records {
		row, err := q.create(ctx, tx, record, userID)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, row)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// UpdateByID applies the validated patch to one row and returns it. The
// identifier and owner columns are never updatable.
func (q *Queries) UpdateByID(ctx context.Context, ids map[string]any, record map[string]any, userID string) (map[string]any, error) {
	updatable := toSet(q.cfg.UpdateFields)
	pb := q.st.Dialect.NewParamBuilder()

	var sets []string
	for _, name := range sortedKeysAny(record) {
		if !updatable[name] {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", name, pb.Add(record[name])))
	}
	for _, c := range q.cfg.Table.Columns {
		if c.Auto == "update" {
			sets = append(sets, fmt.Sprintf("%s = %s", c.Name, pb.Add(nowString())))
		}
	}
	if len(sets) == 0 {
		return q.GetByID(ctx, ids, userID)
	}

	conds, err := q.idConds(pb, ids)
	if err != nil {
		return nil, err
	}
	conds = append(conds, q.scopeConds(pb, userID)...)

	sqlStr := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		q.cfg.Table.Name, strings.Join(sets, ", "), strings.Join(conds, " AND "))
	n, err := store.Exec(ctx, q.st.DB, sqlStr, pb.Params()...)
	if err != nil {
		return nil, q.st.Dialect.MapError(err)
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}
	return q.GetByID(ctx, ids, userID)
}

// RemoveByID removes one row and returns it as it was before removal. With an
// active flag configured the row is flipped inactive; otherwise it is deleted.
// Removing an already-removed row reports not found.
func (q *Queries) RemoveByID(ctx context.Context, ids map[string]any, userID string) (map[string]any, error) {
	row, err := q.GetByID(ctx, ids, userID)
	if err != nil {
		return nil, err
	}

	pb := q.st.Dialect.NewParamBuilder()
	var sqlStr string
	if q.cfg.SoftDelete() {
		sets := []string{fmt.Sprintf("%s = %s", q.cfg.ActiveFlag, pb.Add(false))}
		for _, c := range q.cfg.Table.Columns {
			if c.Auto == "update" {
				sets = append(sets, fmt.Sprintf("%s = %s", c.Name, pb.Add(nowString())))
			}
		}
		conds, err := q.idConds(pb, ids)
		if err != nil {
			return nil, err
		}
		conds = append(conds, q.scopeConds(pb, userID)...)
		sqlStr = fmt.Sprintf("UPDATE %s SET %s WHERE %s",
			q.cfg.Table.Name, strings.Join(sets, ", "), strings.Join(conds, " AND "))
	} else {
		conds, err := q.idConds(pb, ids)
		if err != nil {
			return nil, err
		}
		conds = append(conds, q.scopeConds(pb, userID)...)
		sqlStr = fmt.Sprintf("DELETE FROM %s WHERE %s",
			q.cfg.Table.Name, strings.Join(conds, " AND "))
	}

	n, err := store.Exec(ctx, q.st.DB, sqlStr, pb.Params()...)
	if err != nil {
		return nil, q.st.Dialect.MapError(err)
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}
	return row, nil
}

// insertRow assembles the full column map for an INSERT: restricted caller
// fields, generated identifiers, owner, active flag, declared defaults and
// engine-managed timestamps.
func (q *Queries) insertRow(record map[string]any, userID string) map[string]any {
	insertable := toSet(q.cfg.InsertFields)
	row := make(map[string]any, len(record)+4)
	for k, v := range record {
		if insertable[k] {
			row[k] = v
		}
	}

	for _, f := range q.cfg.IDs {
		if _, ok := row[f]; ok {
			continue
		}
		if insertable[f] {
			continue // caller-provided identifier missing; surface as constraint error
		}
		row[f] = uuid.New().String()
	}
	if q.cfg.TenantScoped() {
		row[q.cfg.UserID] = userID
	}
	if q.cfg.SoftDelete() {
		row[q.cfg.ActiveFlag] = true
	}
	for _, f := range q.cfg.BaseFields {
		col, _ := q.cfg.BaseColumn(f)
		if col.Default == nil {
			continue
		}
		if _, ok := row[f]; !ok {
			row[f] = col.Default
		}
	}
	now := nowString()
	for _, c := range q.cfg.Table.Columns {
		if c.IsAuto() {
			row[c.Name] = now
		}
	}
	return row
}

// idConds builds the identifier predicates; every configured id field must be
// present.
func (q *Queries) idConds(pb store.ParamBuilder, ids map[string]any) ([]string, error) {
	conds := make([]string, 0, len(q.cfg.IDs))
	for _, f := range q.cfg.IDs {
		v, ok := ids[f]
		if !ok || v == nil {
			return nil, fmt.Errorf("%s: missing identifier %q", q.cfg.Table.Name, f)
		}
		conds = append(conds, fmt.Sprintf("%s = %s", f, pb.Add(v)))
	}
	return conds, nil
}

// scopeConds builds the owner predicate and the config's default filters.
func (q *Queries) scopeConds(pb store.ParamBuilder, userID string) []string {
	var conds []string
	if q.cfg.TenantScoped() {
		conds = append(conds, fmt.Sprintf("%s = %s", q.cfg.UserID, pb.Add(userID)))
	}
	for _, df := range q.cfg.DefaultFilters {
		conds = append(conds, fmt.Sprintf("%s = %s", df.Column, pb.Add(df.Value)))
	}
	return conds
}

// orderClause resolves the sort column against the whitelist and always
// appends the identifier tie-break so pagination is stable.
func (q *Queries) orderClause(orderBy, orderDir string) (string, error) {
	if len(q.cfg.Orderable) == 0 && orderBy != "" {
		return "", fmt.Errorf("getMany on %s: ordering is not enabled", q.cfg.Table.Name)
	}

	col := orderBy
	if col == "" && len(q.cfg.Orderable) > 0 {
		col = q.cfg.Orderable[0]
	}
	if col != "" && !containsString(q.cfg.Orderable, col) {
		return "", fmt.Errorf("getMany on %s: column %q is not orderable", q.cfg.Table.Name, col)
	}

	dir := strings.ToUpper(orderDir)
	switch dir {
	case "", "ASC":
		dir = "ASC"
	case "DESC":
	default:
		return "", fmt.Errorf("getMany on %s: invalid sort direction %q", q.cfg.Table.Name, orderDir)
	}

	var parts []string
	if col != "" {
		parts = append(parts, fmt.Sprintf("%s %s", col, dir))
	}
	for _, f := range q.cfg.IDs {
		if f != col {
			parts = append(parts, f+" ASC")
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func (q *Queries) clampPageSize(size int) int {
	if size <= 0 {
		return q.cfg.PageSize
	}
	if size > q.cfg.MaxPage {
		return q.cfg.MaxPage
	}
	return size
}

func (q *Queries) fixBools(row map[string]any) {
	if q.st.Dialect.NeedsBoolFix() {
		store.NormalizeBooleans([]map[string]any{row}, q.cfg.Table.BoolColumns())
	}
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	}
	return 0
}
