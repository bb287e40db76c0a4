package features

import (
	"ledger-backend/internal/feature"
	"ledger-backend/internal/store"
)

var transactionsTable = &feature.Table{
	Name: "transactions",
	Columns: []feature.Column{
		{Name: "id", Type: feature.TypeUUID, Required: true},
		{Name: "user_id", Type: feature.TypeUUID, Required: true, References: "users(id)"},
		{Name: "account_id", Type: feature.TypeUUID, Required: true, References: "accounts(id)"},
		{Name: "date", Type: feature.TypeDate, Required: true},
		{Name: "amount", Type: feature.TypeDecimal, Required: true, Precision: 2},
		{Name: "description", Type: feature.TypeText, Required: true},
		{Name: "counterparty", Type: feature.TypeString, Nullable: true},
		{Name: "notes", Type: feature.TypeText, Nullable: true},
		{Name: "import_id", Type: feature.TypeUUID, Nullable: true,
			References: "import_jobs(id) ON DELETE SET NULL"},
		{Name: "is_active", Type: feature.TypeBoolean},
		{Name: "created_at", Type: feature.TypeTimestamp, Auto: "create"},
		{Name: "updated_at", Type: feature.TypeTimestamp, Auto: "update"},
	},
}

func newTransactions(st *store.Store) (*Feature, error) {
	cfg, err := feature.Configure(transactionsTable).
		SetUserID("user_id").
		// a transaction never moves to another account, and its import
		// provenance is fixed once written
		RestrictUpdateFields("date", "amount", "description", "counterparty", "notes").
		EnableFiltering(map[string]feature.FilterSpec{
			"account":    {Column: "account_id", Op: "eq"},
			"import":     {Column: "import_id", Op: "eq"},
			"date_from":  {Column: "date", Op: "gte"},
			"date_to":    {Column: "date", Op: "lte"},
			"amount_min": {Column: "amount", Op: "gte"},
			"amount_max": {Column: "amount", Op: "lte"},
			"search":     {Column: "description", Op: "like"},
		}).
		EnableOrdering("date", "amount", "created_at").
		EnablePagination().
		WithPageSize(50, 200).
		SoftDelete("is_active").
		Build()
	if err != nil {
		return nil, err
	}

	sb := feature.NewSchemas(cfg).
		Standard().
		WithFieldRules(feature.OpCreate,
			feature.FieldRule("description", "min_length", 1, "description must not be empty"),
		).
		WithFieldRules(feature.OpCreateMany,
			feature.FieldRule("description", "min_length", 1, "description must not be empty"),
		)

	return assemble("transactions", st, cfg, sb, nil)
}
