package features

import (
	"ledger-backend/internal/feature"
	"ledger-backend/internal/store"
)

var tagsTable = &feature.Table{
	Name: "tags",
	Columns: []feature.Column{
		{Name: "id", Type: feature.TypeUUID, Required: true},
		{Name: "user_id", Type: feature.TypeUUID, Required: true, References: "users(id)"},
		{Name: "name", Type: feature.TypeString, Required: true, Unique: true},
		{Name: "color", Type: feature.TypeString, Nullable: true},
		{Name: "is_active", Type: feature.TypeBoolean},
		{Name: "created_at", Type: feature.TypeTimestamp, Auto: "create"},
		{Name: "updated_at", Type: feature.TypeTimestamp, Auto: "update"},
	},
}

func newTags(st *store.Store) (*Feature, error) {
	cfg, err := feature.Configure(tagsTable).
		SetUserID("user_id").
		EnableFiltering(map[string]feature.FilterSpec{
			"name": {Column: "name", Op: "like"},
		}).
		EnableOrdering("name").
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
			feature.FieldRule("color", "pattern", `^#[0-9a-fA-F]{6}$`, "color must be a hex value like #aabbcc"),
		)

	return assemble("tags", st, cfg, sb, nil)
}
