package feature

import (
	"fmt"

	"ledger-backend/internal/apperr"
)

// Standard operation names derivable from a Config.
const (
	OpCreate     = "create"
	OpCreateMany = "createMany"
	OpGetByID    = "getById"
	OpGetMany    = "getMany"
	OpUpdateByID = "updateById"
	OpRemoveByID = "removeById"
)

// StandardOps is the conventional CRUD operation set.
var StandardOps = []string{OpCreate, OpCreateMany, OpGetByID, OpGetMany, OpUpdateByID, OpRemoveByID}

// EndpointSchema splits endpoint-layer validation by HTTP target.
type EndpointSchema struct {
	Body   *Schema
	Query  *Schema
	Params *Schema
}

// OperationSchema bundles the validation layers for one operation. Service is
// mandatory; Endpoint is optional and falls back to Service.
type OperationSchema struct {
	Service  *Schema
	Endpoint *EndpointSchema
	Rules    []Rule // expression/computed rules, run after Parse
}

// EndpointBody returns the endpoint body schema, falling back to the service
// schema when no endpoint layer was registered.
func (o OperationSchema) EndpointBody() *Schema {
	if o.Endpoint != nil && o.Endpoint.Body != nil {
		return o.Endpoint.Body
	}
	return o.Service
}

// Derived carries the base schemas handed to custom operation factories.
type Derived struct {
	Base   *Schema // insert-field schema, required flags honored
	Update *Schema // update-field schema, everything optional
	IDs    *Schema // identifier schema, all fields required
}

// Schemas is the frozen mapping from operation name to schema bundle.
type Schemas struct {
	cfg     *Config
	derived Derived
	ops     map[string]OperationSchema
}

// Operation returns the schema bundle for an operation.
func (s *Schemas) Operation(name string) (OperationSchema, bool) {
	op, ok := s.ops[name]
	return op, ok
}

// Has reports whether an operation is registered.
func (s *Schemas) Has(name string) bool {
	_, ok := s.ops[name]
	return ok
}

// Derived exposes the base schemas, mainly for tests and custom services.
func (s *Schemas) Derived() Derived { return s.derived }

// SchemasBuilder registers operation schemas for one entity.
type SchemasBuilder struct {
	cfg     *Config
	derived Derived
	ops     map[string]OperationSchema
	errs    []error
}

// NewSchemas starts a schema builder and derives the base schemas from the
// table config.
func NewSchemas(cfg *Config) *SchemasBuilder {
	b := &SchemasBuilder{
		cfg: cfg,
		ops: map[string]OperationSchema{},
	}

	baseFields := make(map[string]FieldSchema, len(cfg.InsertFields))
	for _, f := range cfg.InsertFields {
		col, _ := cfg.BaseColumn(f)
		baseFields[f] = FieldSchema{Column: col, Required: col.Required}
	}
	updateFields := make(map[string]FieldSchema, len(cfg.UpdateFields))
	for _, f := range cfg.UpdateFields {
		col, _ := cfg.BaseColumn(f)
		updateFields[f] = FieldSchema{Column: col, Required: false}
	}
	idFields := make(map[string]FieldSchema, len(cfg.IDs))
	for _, f := range cfg.IDs {
		idFields[f] = FieldSchema{Column: *cfg.Table.Column(f), Required: true}
	}

	b.derived = Derived{
		Base:   &Schema{Name: cfg.Table.Name + ".base", Fields: baseFields},
		Update: &Schema{Name: cfg.Table.Name + ".update", Fields: updateFields},
		IDs:    &Schema{Name: cfg.Table.Name + ".ids", Fields: idFields},
	}
	return b
}

// Standard registers schema bundles for the conventional operation set.
func (b *SchemasBuilder) Standard() *SchemasBuilder {
	b.register(OpCreate, OperationSchema{Service: b.derived.Base})
	b.register(OpCreateMany, OperationSchema{Service: b.derived.Base})
	b.register(OpGetByID, OperationSchema{Service: b.derived.IDs})
	b.register(OpGetMany, OperationSchema{Service: filterSchema(b.cfg)})
	b.register(OpUpdateByID, OperationSchema{Service: b.derived.Update})
	b.register(OpRemoveByID, OperationSchema{Service: b.derived.IDs})
	return b
}

// WithRules attaches expression/computed rules to an already registered
// operation.
func (b *SchemasBuilder) WithRules(op string, rules ...Rule) *SchemasBuilder {
	bundle, ok := b.ops[op]
	if !ok {
		b.errs = append(b.errs, fmt.Errorf("withRules: operation %q is not registered", op))
		return b
	}
	bundle.Rules = append(bundle.Rules, rules...)
	b.ops[op] = bundle
	return b
}

// WithFieldRules attaches field rules to an operation's service schema.
func (b *SchemasBuilder) WithFieldRules(op string, rules ...Rule) *SchemasBuilder {
	bundle, ok := b.ops[op]
	if !ok {
		b.errs = append(b.errs, fmt.Errorf("withFieldRules: operation %q is not registered", op))
		return b
	}
	// copy the schema so shared derived schemas stay untouched
	schema := &Schema{Name: bundle.Service.Name, Fields: bundle.Service.Fields}
	schema.Rules = append(append([]Rule(nil), bundle.Service.Rules...), rules...)
	bundle.Service = schema
	b.ops[op] = bundle
	return b
}

// Add registers a custom operation. The factory receives the derived base
// schemas; re-registering a name is a build error.
func (b *SchemasBuilder) Add(name string, fn func(d Derived) OperationSchema) *SchemasBuilder {
	if _, exists := b.ops[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("addSchema: operation %q already registered", name))
		return b
	}
	bundle := fn(b.derived)
	if bundle.Service == nil {
		b.errs = append(b.errs, fmt.Errorf("addSchema: operation %q has no service-layer schema", name))
		return b
	}
	b.ops[name] = bundle
	return b
}

func (b *SchemasBuilder) register(name string, bundle OperationSchema) {
	if _, exists := b.ops[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("registerSchema: operation %q already registered", name))
		return
	}
	b.ops[name] = bundle
}

// Build compiles every attached rule and freezes the mapping. Expression
// errors surface here, at process start, not on the first request.
func (b *SchemasBuilder) Build() (*Schemas, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("feature schemas for table %s: %w", b.cfg.Table.Name, b.errs[0])
	}
	ops := make(map[string]OperationSchema, len(b.ops))
	for name, bundle := range b.ops {
		for i := range bundle.Rules {
			if err := bundle.Rules[i].Compile(); err != nil {
				return nil, fmt.Errorf("feature schemas for table %s: operation %s: %w",
					b.cfg.Table.Name, name, err)
			}
		}
		ops[name] = bundle
	}
	return &Schemas{cfg: b.cfg, derived: b.derived, ops: ops}, nil
}

// MustBuild panics on misconfiguration; used for process-start wiring.
func (b *SchemasBuilder) MustBuild() *Schemas {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

// filterSchema derives the getMany filter schema: every declared filter as an
// optional field typed by its target column.
func filterSchema(cfg *Config) *Schema {
	fields := make(map[string]FieldSchema, len(cfg.Filters))
	for name, spec := range cfg.Filters {
		col := *cfg.Table.Column(spec.Column)
		col.Name = name
		col.Required = false
		col.Enum = nil // filters match raw values, enum checked on write
		fields[name] = FieldSchema{Column: col, Required: false}
	}
	return &Schema{Name: cfg.Table.Name + ".filters", Fields: fields}
}

// ParseFilters validates and coerces a getMany filter map. An absent filter
// means no constraint. Values for "in" filters may be slices; each element is
// coerced against the target column.
func (c *Config) ParseFilters(filters map[string]any) (map[string]any, []apperr.Detail) {
	if len(filters) == 0 {
		return map[string]any{}, nil
	}
	var details []apperr.Detail
	out := make(map[string]any, len(filters))
	for _, name := range sortedKeysAny(filters) {
		raw := filters[name]
		spec, ok := c.Filters[name]
		if !ok {
			details = append(details, apperr.Detail{
				Field:   name,
				Rule:    "unknown",
				Message: fmt.Sprintf("Unknown filter field: %s", name),
			})
			continue
		}
		if raw == nil {
			continue
		}
		col := *c.Table.Column(spec.Column)
		if spec.Op == "in" {
			items, ok := raw.([]any)
			if !ok {
				details = append(details, apperr.Detail{
					Field:   name,
					Rule:    "type",
					Message: fmt.Sprintf("%s must be a list", name),
				})
				continue
			}
			coerced := make([]any, 0, len(items))
			for _, item := range items {
				v, err := coerceValue(col, item)
				if err != nil {
					details = append(details, apperr.Detail{Field: name, Rule: "type", Message: err.Error()})
					continue
				}
				coerced = append(coerced, v)
			}
			out[name] = coerced
			continue
		}
		if spec.Op == "like" {
			s, ok := raw.(string)
			if !ok {
				details = append(details, apperr.Detail{
					Field:   name,
					Rule:    "type",
					Message: fmt.Sprintf("%s must be a string", name),
				})
				continue
			}
			out[name] = s
			continue
		}
		v, err := coerceValue(col, raw)
		if err != nil {
			details = append(details, apperr.Detail{Field: name, Rule: "type", Message: err.Error()})
			continue
		}
		out[name] = v
	}
	if len(details) > 0 {
		return nil, details
	}
	return out, nil
}
