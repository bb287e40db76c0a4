package features

import (
	"ledger-backend/internal/feature"
	"ledger-backend/internal/store"
)

// participants are hard-deleted: they carry no history of their own, and the
// bucket membership rows referencing them go away with them.
var participantsTable = &feature.Table{
	Name: "participants",
	Columns: []feature.Column{
		{Name: "id", Type: feature.TypeUUID, Required: true},
		{Name: "user_id", Type: feature.TypeUUID, Required: true, References: "users(id)"},
		{Name: "name", Type: feature.TypeString, Required: true},
		{Name: "email", Type: feature.TypeString, Nullable: true},
		{Name: "created_at", Type: feature.TypeTimestamp, Auto: "create"},
		{Name: "updated_at", Type: feature.TypeTimestamp, Auto: "update"},
	},
}

func newParticipants(st *store.Store) (*Feature, error) {
	cfg, err := feature.Configure(participantsTable).
		SetUserID("user_id").
		EnableFiltering(map[string]feature.FilterSpec{
			"name": {Column: "name", Op: "like"},
		}).
		EnableOrdering("name").
		EnablePagination().
		Build()
	if err != nil {
		return nil, err
	}

	sb := feature.NewSchemas(cfg).
		Standard().
		WithFieldRules(feature.OpCreate,
			feature.FieldRule("name", "min_length", 1, "name must not be empty"),
		)

	return assemble("participants", st, cfg, sb, nil)
}
