package feature

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ledger-backend/internal/apperr"

	"ledger-backend/internal/store"
)

// OperationFunc is a custom service operation.
type OperationFunc func(ctx context.Context, input map[string]any, userID string) (any, error)

// Service validates input against the operation schemas, delegates to the
// query layer and translates storage errors into the application taxonomy.
// Handlers above it never see raw driver errors.
type Service struct {
	name    string
	cfg     *Config
	schemas *Schemas
	queries *Queries
	enabled map[string]bool
	custom  map[string]OperationFunc
}

// Name returns the entity name the service was registered under.
func (s *Service) Name() string { return s.name }

// Config returns the entity config.
func (s *Service) Config() *Config { return s.cfg }

// Enabled reports whether a standard operation is exposed.
func (s *Service) Enabled(op string) bool { return s.enabled[op] }

// ServiceBuilder wires schemas and queries into a Service.
type ServiceBuilder struct {
	name    string
	cfg     *Config
	schemas *Schemas
	queries *Queries
	ops     []string
	custom  map[string]OperationFunc
	errs    []error
}

// NewService starts a service builder for one entity.
func NewService(name string, cfg *Config) *ServiceBuilder {
	return &ServiceBuilder{name: name, cfg: cfg, custom: map[string]OperationFunc{}}
}

// WithSchemas attaches the operation schemas.
func (b *ServiceBuilder) WithSchemas(s *Schemas) *ServiceBuilder {
	b.schemas = s
	return b
}

// WithQueries attaches the query layer.
func (b *ServiceBuilder) WithQueries(q *Queries) *ServiceBuilder {
	b.queries = q
	return b
}

// WithStandard enables the listed standard operations; with no arguments the
// full set is enabled.
func (b *ServiceBuilder) WithStandard(ops ...string) *ServiceBuilder {
	if len(ops) == 0 {
		ops = StandardOps
	}
	for _, op := range ops {
		if !containsString(StandardOps, op) {
			b.errs = append(b.errs, fmt.Errorf("withStandard: unknown operation %q", op))
		}
	}
	b.ops = append(b.ops, ops...)
	return b
}

// AddOperation registers a custom operation. The name must have a schema
// registered via the schema builder and must not collide with a standard
// operation.
func (b *ServiceBuilder) AddOperation(name string, fn OperationFunc) *ServiceBuilder {
	if containsString(StandardOps, name) {
		b.errs = append(b.errs, fmt.Errorf("addOperation: %q collides with a standard operation", name))
		return b
	}
	if _, exists := b.custom[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("addOperation: %q already registered", name))
		return b
	}
	if fn == nil {
		b.errs = append(b.errs, fmt.Errorf("addOperation: nil handler for %q", name))
		return b
	}
	b.custom[name] = fn
	return b
}

// Build validates the wiring and freezes the service.
func (b *ServiceBuilder) Build() (*Service, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("service %s: %w", b.name, b.errs[0])
	}
	if b.cfg == nil || b.schemas == nil || b.queries == nil {
		return nil, fmt.Errorf("service %s: config, schemas and queries are all required", b.name)
	}
	enabled := make(map[string]bool, len(b.ops))
	for _, op := range b.ops {
		if !b.schemas.Has(op) {
			return nil, fmt.Errorf("service %s: operation %q has no schema", b.name, op)
		}
		enabled[op] = true
	}
	for name := range b.custom {
		if !b.schemas.Has(name) {
			return nil, fmt.Errorf("service %s: custom operation %q has no schema", b.name, name)
		}
	}
	return &Service{
		name:    b.name,
		cfg:     b.cfg,
		schemas: b.schemas,
		queries: b.queries,
		enabled: enabled,
		custom:  b.custom,
	}, nil
}

// MustBuild panics on wiring errors; used at process start.
func (b *ServiceBuilder) MustBuild() *Service {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

// Create validates and inserts one record.
func (s *Service) Create(ctx context.Context, input map[string]any, userID string) (map[string]any, error) {
	if err := s.require(OpCreate); err != nil {
		return nil, err
	}
	record, err := s.validate(OpCreate, input, true)
	if err != nil {
		return nil, err
	}
	row, err := s.queries.Create(ctx, record, userID)
	if err != nil {
		return nil, s.translate(err, "")
	}
	return row, nil
}

// CreateMany validates every record up front, then inserts them atomically.
// Validation problems carry a row index so callers can pinpoint the bad line.
func (s *Service) CreateMany(ctx context.Context, inputs []map[string]any, userID string) ([]map[string]any, error) {
	if err := s.require(OpCreateMany); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return []map[string]any{}, nil
	}

	var details []apperr.Detail
	records := make([]map[string]any, 0, len(inputs))
	for i, input := range inputs {
		record, err := s.validate(OpCreateMany, input, true)
		if err != nil {
			var ae *apperr.Error
			if errors.As(err, &ae) {
				for _, d := range ae.Details {
					d.Field = fmt.Sprintf("rows[%d].%s", i, d.Field)
					details = append(details, d)
				}
				continue
			}
			return nil, err
		}
		records = append(records, record)
	}
	if len(details) > 0 {
		return nil, apperr.Validation(details)
	}

	rows, err := s.queries.CreateMany(ctx, records, userID)
	if err != nil {
		return nil, s.translate(err, "")
	}
	return rows, nil
}

// GetByID fetches one record.
func (s *Service) GetByID(ctx context.Context, ids map[string]any, userID string) (map[string]any, error) {
	if err := s.require(OpGetByID); err != nil {
		return nil, err
	}
	parsed, err := s.validate(OpGetByID, ids, false)
	if err != nil {
		return nil, err
	}
	row, err := s.queries.GetByID(ctx, parsed, userID)
	if err != nil {
		return nil, s.translate(err, idString(s.cfg, parsed))
	}
	return row, nil
}

// GetManyRequest carries raw list parameters from the endpoint layer.
type GetManyRequest struct {
	Filters  map[string]any
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// GetMany lists records.
func (s *Service) GetMany(ctx context.Context, req GetManyRequest, userID string) (*Page, error) {
	if err := s.require(OpGetMany); err != nil {
		return nil, err
	}

	filters, details := s.cfg.ParseFilters(req.Filters)
	details = append(details, s.checkOrdering(req.OrderBy, req.OrderDir)...)
	if len(details) > 0 {
		return nil, apperr.Validation(details)
	}

	page, err := s.queries.GetMany(ctx, GetManyInput{
		Filters:  filters,
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		UserID:   userID,
	})
	if err != nil {
		return nil, s.translate(err, "")
	}
	return page, nil
}

// UpdateByID validates the patch and applies it.
func (s *Service) UpdateByID(ctx context.Context, ids map[string]any, input map[string]any, userID string) (map[string]any, error) {
	if err := s.require(OpUpdateByID); err != nil {
		return nil, err
	}
	parsedIDs, details := s.parseIDs(ids)
	record, err := s.validateWithDetails(OpUpdateByID, input, false, details)
	if err != nil {
		return nil, err
	}
	row, err := s.queries.UpdateByID(ctx, parsedIDs, record, userID)
	if err != nil {
		return nil, s.translate(err, idString(s.cfg, parsedIDs))
	}
	return row, nil
}

// RemoveByID removes one record and returns it as it was.
func (s *Service) RemoveByID(ctx context.Context, ids map[string]any, userID string) (map[string]any, error) {
	if err := s.require(OpRemoveByID); err != nil {
		return nil, err
	}
	parsed, err := s.validate(OpRemoveByID, ids, false)
	if err != nil {
		return nil, err
	}
	row, err := s.queries.RemoveByID(ctx, parsed, userID)
	if err != nil {
		return nil, s.translate(err, idString(s.cfg, parsed))
	}
	return row, nil
}

// Custom runs a registered custom operation after validating its input.
func (s *Service) Custom(ctx context.Context, name string, input map[string]any, userID string) (any, error) {
	fn, ok := s.custom[name]
	if !ok {
		return nil, apperr.Newf(apperr.LayerService, apperr.TypeResource, apperr.CodeNotFound,
			"Operation %s is not available on %s", name, s.name)
	}
	record, err := s.validate(name, input, false)
	if err != nil {
		return nil, err
	}
	out, err := fn(ctx, record, userID)
	if err != nil {
		return nil, s.translate(err, "")
	}
	return out, nil
}

// CustomNames lists the registered custom operations.
func (s *Service) CustomNames() []string {
	return sortedKeys(s.custom)
}

func (s *Service) require(op string) error {
	if !s.enabled[op] {
		return apperr.Newf(apperr.LayerService, apperr.TypeResource, apperr.CodeNotFound,
			"Operation %s is not available on %s", op, s.name)
	}
	return nil
}

// validate parses input against the operation's service schema and then runs
// its expression and computed rules.
func (s *Service) validate(op string, input map[string]any, isCreate bool) (map[string]any, error) {
	return s.validateWithDetails(op, input, isCreate, nil)
}

func (s *Service) validateWithDetails(op string, input map[string]any, isCreate bool, pre []apperr.Detail) (map[string]any, error) {
	bundle, ok := s.schemas.Operation(op)
	if !ok {
		return nil, apperr.Internal(fmt.Errorf("service %s: no schema for operation %s", s.name, op))
	}
	if input == nil {
		input = map[string]any{}
	}
	record, details := bundle.Service.Parse(input)
	details = append(pre, details...)
	if len(details) == 0 {
		details = EvaluateRules(bundle.Rules, record, nil, isCreate)
	}
	if len(details) > 0 {
		return nil, apperr.Validation(details)
	}
	return record, nil
}

func (s *Service) parseIDs(ids map[string]any) (map[string]any, []apperr.Detail) {
	return s.schemas.Derived().IDs.Parse(ids)
}

func (s *Service) checkOrdering(orderBy, orderDir string) []apperr.Detail {
	var details []apperr.Detail
	if orderBy != "" && !containsString(s.cfg.Orderable, orderBy) {
		details = append(details, apperr.Detail{
			Field:   "sort",
			Rule:    "enum",
			Message: fmt.Sprintf("Cannot sort by %s", orderBy),
		})
	}
	switch strings.ToUpper(orderDir) {
	case "", "ASC", "DESC":
	default:
		details = append(details, apperr.Detail{
			Field:   "dir",
			Rule:    "enum",
			Message: fmt.Sprintf("Invalid sort direction: %s", orderDir),
		})
	}
	return details
}

// translate maps storage sentinels into the application taxonomy. Application
// errors pass through untouched; anything unrecognized becomes internal.
func (s *Service) translate(err error, id string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(s.name, id)
	case errors.Is(err, store.ErrUniqueViolation):
		return apperr.Newf(apperr.LayerService, apperr.TypeConflict, apperr.CodeDuplicate,
			"A %s with the same unique value already exists", s.name)
	case errors.Is(err, store.ErrForeignKeyViolation):
		return apperr.Newf(apperr.LayerService, apperr.TypeConflict, apperr.CodeReference,
			"The %s references a record that does not exist", s.name)
	}
	return apperr.Internal(err)
}

func idString(cfg *Config, ids map[string]any) string {
	parts := make([]string, 0, len(cfg.IDs))
	for _, f := range cfg.IDs {
		parts = append(parts, fmt.Sprint(ids[f]))
	}
	return strings.Join(parts, "/")
}
