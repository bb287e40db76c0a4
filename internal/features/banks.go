package features

import (
	"ledger-backend/internal/feature"
	"ledger-backend/internal/store"
)

var banksTable = &feature.Table{
	Name: "banks",
	Columns: []feature.Column{
		{Name: "id", Type: feature.TypeUUID, Required: true},
		{Name: "user_id", Type: feature.TypeUUID, Required: true, References: "users(id)"},
		{Name: "name", Type: feature.TypeString, Required: true, Unique: true},
		{Name: "notes", Type: feature.TypeText, Nullable: true},
		{Name: "is_active", Type: feature.TypeBoolean},
		{Name: "created_at", Type: feature.TypeTimestamp, Auto: "create"},
		{Name: "updated_at", Type: feature.TypeTimestamp, Auto: "update"},
	},
}

func newBanks(st *store.Store) (*Feature, error) {
	cfg, err := feature.Configure(banksTable).
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
			feature.FieldRule("name", "max_length", 120, "name is too long"),
		)

	return assemble("banks", st, cfg, sb, nil)
}
