// Package features declares every persisted entity and wires it through the
// builder framework into a process-wide registry.
package features

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ledger-backend/internal/feature"
	"ledger-backend/internal/store"
)

// Feature bundles everything built for one entity.
type Feature struct {
	Name    string
	Config  *feature.Config
	Schemas *feature.Schemas
	Queries *feature.Queries
	Service *feature.Service
}

// Registry holds the built features, keyed by their route name. It is
// populated once at startup and read-only afterwards.
type Registry struct {
	mu    sync.RWMutex
	feats map[string]*Feature
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{feats: map[string]*Feature{}}
}

// Add registers a feature; duplicate names fail.
func (r *Registry) Add(f *Feature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.feats[f.Name]; exists {
		return fmt.Errorf("feature %q already registered", f.Name)
	}
	r.feats[f.Name] = f
	return nil
}

// Get looks up a feature by name.
func (r *Registry) Get(name string) (*Feature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.feats[name]
	return f, ok
}

// Names lists registered features sorted by name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.feats))
	for name := range r.feats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears the registry. Test helper.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feats = map[string]*Feature{}
}

type constructor func(st *store.Store) (*Feature, error)

// Build constructs every entity, creates its table and freezes the registry.
// Any misconfiguration fails here, before the server accepts traffic.
func Build(ctx context.Context, st *store.Store) (*Registry, error) {
	// ordered so referenced tables exist before the tables pointing at them
	constructors := []constructor{
		newUsers,
		newBanks,
		newAccounts,
		newImportJobs,
		newTransactions,
		newTags,
		newLabels,
		newBuckets,
		newParticipants,
		newBucketParticipants,
		newBudgets,
	}

	reg := NewRegistry()
	for _, build := range constructors {
		f, err := build(st)
		if err != nil {
			return nil, err
		}
		if err := feature.EnsureTable(ctx, f.Config, st); err != nil {
			return nil, err
		}
		if err := reg.Add(f); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// assemble finishes the common wiring once an entity's config and schema
// builder are ready. With no ops listed the full standard set is exposed.
func assemble(name string, st *store.Store, cfg *feature.Config, sb *feature.SchemasBuilder,
	customize func(*feature.ServiceBuilder), ops ...string) (*Feature, error) {

	schemas, err := sb.Build()
	if err != nil {
		return nil, err
	}
	queries := feature.NewQueries(cfg, st)

	svcBuilder := feature.NewService(name, cfg).
		WithSchemas(schemas).
		WithQueries(queries).
		WithStandard(ops...)
	if customize != nil {
		customize(svcBuilder)
	}
	svc, err := svcBuilder.Build()
	if err != nil {
		return nil, err
	}

	return &Feature{
		Name:    name,
		Config:  cfg,
		Schemas: schemas,
		Queries: queries,
		Service: svc,
	}, nil
}
