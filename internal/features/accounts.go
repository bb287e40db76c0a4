package features

import (
	"ledger-backend/internal/feature"
	"ledger-backend/internal/store"
)

var accountsTable = &feature.Table{
	Name: "accounts",
	Columns: []feature.Column{
		{Name: "id", Type: feature.TypeUUID, Required: true},
		{Name: "user_id", Type: feature.TypeUUID, Required: true, References: "users(id)"},
		{Name: "bank_id", Type: feature.TypeUUID, Required: true, References: "banks(id)"},
		{Name: "name", Type: feature.TypeString, Required: true},
		{Name: "account_type", Type: feature.TypeString, Required: true,
			Enum: []string{"checking", "savings", "credit", "investment", "cash"}},
		{Name: "currency", Type: feature.TypeString, Default: "USD"},
		{Name: "opening_balance", Type: feature.TypeDecimal, Precision: 2, Default: "0"},
		{Name: "is_active", Type: feature.TypeBoolean},
		{Name: "created_at", Type: feature.TypeTimestamp, Auto: "create"},
		{Name: "updated_at", Type: feature.TypeTimestamp, Auto: "update"},
	},
}

func newAccounts(st *store.Store) (*Feature, error) {
	cfg, err := feature.Configure(accountsTable).
		SetUserID("user_id").
		// the owning bank is fixed at creation
		RestrictUpdateFields("name", "account_type", "currency", "opening_balance").
		EnableFiltering(map[string]feature.FilterSpec{
			"bank":         {Column: "bank_id", Op: "eq"},
			"account_type": {Column: "account_type", Op: "eq"},
			"name":         {Column: "name", Op: "like"},
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
			feature.FieldRule("currency", "pattern", `^[A-Z]{3}$`, "currency must be a 3-letter code"),
		)

	return assemble("accounts", st, cfg, sb, nil)
}
