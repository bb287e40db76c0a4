package features

import (
	"context"
	"fmt"

	"ledger-backend/internal/feature"
	"ledger-backend/internal/store"
)

// usersTable holds the account-holder records themselves, so it is the one
// entity without tenant scoping.
var usersTable = &feature.Table{
	Name: "users",
	Columns: []feature.Column{
		{Name: "id", Type: feature.TypeUUID, Required: true},
		{Name: "email", Type: feature.TypeString, Required: true, Unique: true},
		{Name: "password_hash", Type: feature.TypeString, Required: true},
		{Name: "name", Type: feature.TypeString, Required: true},
		{Name: "is_active", Type: feature.TypeBoolean},
		{Name: "created_at", Type: feature.TypeTimestamp, Auto: "create"},
		{Name: "updated_at", Type: feature.TypeTimestamp, Auto: "update"},
	},
}

func newUsers(st *store.Store) (*Feature, error) {
	cfg, err := feature.Configure(usersTable).
		RestrictUpdateFields("email", "name").
		EnableFiltering(map[string]feature.FilterSpec{
			"email": {Column: "email", Op: "eq"},
		}).
		EnableOrdering("email", "created_at").
		EnablePagination().
		SoftDelete("is_active").
		Build()
	if err != nil {
		return nil, err
	}

	sb := feature.NewSchemas(cfg).
		Standard().
		WithFieldRules(feature.OpCreate,
			feature.FieldRule("email", "pattern", `^[^@\s]+@[^@\s]+\.[^@\s]+$`, "email must be a valid address"),
			feature.FieldRule("name", "min_length", 1, "name must not be empty"),
		).
		Add("getByEmail", func(d feature.Derived) feature.OperationSchema {
			return feature.OperationSchema{Service: &feature.Schema{
				Name: "users.getByEmail",
				Fields: map[string]feature.FieldSchema{
					"email": {Column: *usersTable.Column("email"), Required: true},
				},
			}}
		})

	// users are reachable only through auth and /api/me, never the generic
	// entity routes, so the service exposes just the operations those use
	return assemble("users", st, cfg, sb, func(svc *feature.ServiceBuilder) {
		svc.AddOperation("getByEmail", func(ctx context.Context, input map[string]any, userID string) (any, error) {
			pb := st.Dialect.NewParamBuilder()
			sqlStr := fmt.Sprintf("SELECT * FROM users WHERE email = %s AND is_active = %s",
				pb.Add(input["email"]), pb.Add(true))
			row, err := store.QueryRow(ctx, st.DB, sqlStr, pb.Params()...)
			if err != nil {
				return nil, err
			}
			if st.Dialect.NeedsBoolFix() {
				store.NormalizeBooleans([]map[string]any{row}, usersTable.BoolColumns())
			}
			return row, nil
		})
	}, feature.OpCreate, feature.OpGetByID, feature.OpUpdateByID)
}
