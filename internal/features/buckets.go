package features

import (
	"ledger-backend/internal/feature"
	"ledger-backend/internal/store"
)

var bucketsTable = &feature.Table{
	Name: "buckets",
	Columns: []feature.Column{
		{Name: "id", Type: feature.TypeUUID, Required: true},
		{Name: "user_id", Type: feature.TypeUUID, Required: true, References: "users(id)"},
		{Name: "name", Type: feature.TypeString, Required: true},
		{Name: "target_amount", Type: feature.TypeDecimal, Precision: 2, Nullable: true},
		{Name: "is_active", Type: feature.TypeBoolean},
		{Name: "created_at", Type: feature.TypeTimestamp, Auto: "create"},
		{Name: "updated_at", Type: feature.TypeTimestamp, Auto: "update"},
	},
}

func newBuckets(st *store.Store) (*Feature, error) {
	cfg, err := feature.Configure(bucketsTable).
		SetUserID("user_id").
		EnableFiltering(map[string]feature.FilterSpec{
			"name": {Column: "name", Op: "like"},
		}).
		EnableOrdering("name", "created_at").
		EnablePagination().
		SoftDelete("is_active").
		Build()
	if err != nil {
		return nil, err
	}

	sb := feature.NewSchemas(cfg).
		Standard().
		WithFieldRules(feature.OpCreate,
			feature.FieldRule("name", "min_length", 1, "name must not be empty"),
		)

	return assemble("buckets", st, cfg, sb, nil)
}
