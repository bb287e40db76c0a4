package features

import (
	"ledger-backend/internal/feature"
	"ledger-backend/internal/store"
)

var budgetsTable = &feature.Table{
	Name: "budgets",
	Columns: []feature.Column{
		{Name: "id", Type: feature.TypeUUID, Required: true},
		{Name: "user_id", Type: feature.TypeUUID, Required: true, References: "users(id)"},
		{Name: "name", Type: feature.TypeString, Required: true},
		{Name: "period", Type: feature.TypeString, Required: true,
			Enum: []string{"monthly", "quarterly", "yearly"}},
		{Name: "amount", Type: feature.TypeDecimal, Required: true, Precision: 2},
		{Name: "start_date", Type: feature.TypeDate, Required: true},
		{Name: "end_date", Type: feature.TypeDate, Nullable: true},
		{Name: "is_active", Type: feature.TypeBoolean},
		{Name: "created_at", Type: feature.TypeTimestamp, Auto: "create"},
		{Name: "updated_at", Type: feature.TypeTimestamp, Auto: "update"},
	},
}

func newBudgets(st *store.Store) (*Feature, error) {
	cfg, err := feature.Configure(budgetsTable).
		SetUserID("user_id").
		EnableFiltering(map[string]feature.FilterSpec{
			"name":   {Column: "name", Op: "like"},
			"period": {Column: "period", Op: "eq"},
		}).
		EnableOrdering("start_date", "name").
		EnablePagination().
		SoftDelete("is_active").
		Build()
	if err != nil {
		return nil, err
	}

	// ISO dates compare correctly as strings
	endBeforeStart := feature.ExpressionRule(
		`"end_date" in record && record.end_date != nil && "start_date" in record && record.end_date < record.start_date`,
		"end_date must not be before start_date")

	sb := feature.NewSchemas(cfg).
		Standard().
		WithFieldRules(feature.OpCreate,
			feature.FieldRule("name", "min_length", 1, "name must not be empty"),
		).
		WithRules(feature.OpCreate, endBeforeStart).
		WithRules(feature.OpUpdateByID, endBeforeStart)

	return assemble("budgets", st, cfg, sb, nil)
}
