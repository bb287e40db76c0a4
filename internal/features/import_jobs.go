package features

import (
	"ledger-backend/internal/feature"
	"ledger-backend/internal/store"
)

// import_jobs tracks CSV imports. Status and counters are written by the
// import pipeline, never by clients, and finished jobs are hard-deleted.
var importJobsTable = &feature.Table{
	Name: "import_jobs",
	Columns: []feature.Column{
		{Name: "id", Type: feature.TypeUUID, Required: true},
		{Name: "user_id", Type: feature.TypeUUID, Required: true, References: "users(id)"},
		{Name: "account_id", Type: feature.TypeUUID, Required: true, References: "accounts(id)"},
		{Name: "filename", Type: feature.TypeString, Required: true},
		{Name: "status", Type: feature.TypeString, Default: "pending",
			Enum: []string{"pending", "completed", "failed"}},
		{Name: "row_count", Type: feature.TypeInt, Default: int64(0)},
		{Name: "imported_count", Type: feature.TypeInt, Default: int64(0)},
		{Name: "error", Type: feature.TypeText, Nullable: true},
		{Name: "created_at", Type: feature.TypeTimestamp, Auto: "create"},
		{Name: "updated_at", Type: feature.TypeTimestamp, Auto: "update"},
	},
}

func newImportJobs(st *store.Store) (*Feature, error) {
	cfg, err := feature.Configure(importJobsTable).
		SetUserID("user_id").
		RestrictInsertFields("account_id", "filename").
		RestrictUpdateFields("status", "row_count", "imported_count", "error").
		EnableFiltering(map[string]feature.FilterSpec{
			"account": {Column: "account_id", Op: "eq"},
			"status":  {Column: "status", Op: "eq"},
		}).
		EnableOrdering("created_at").
		EnablePagination().
		Build()
	if err != nil {
		return nil, err
	}

	sb := feature.NewSchemas(cfg).
		Standard().
		WithFieldRules(feature.OpCreate,
			feature.FieldRule("filename", "min_length", 1, "filename must not be empty"),
		)

	// no updateById: status and counters belong to the import pipeline,
	// which writes them through the query layer directly
	return assemble("import_jobs", st, cfg, sb, nil,
		feature.OpCreate, feature.OpGetByID, feature.OpGetMany, feature.OpRemoveByID)
}
