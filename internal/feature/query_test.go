package feature

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ledger-backend/internal/store"
)

const (
	alice = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	bob   = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
)

func queryFixture(t *testing.T) (*Queries, *store.Store) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)

	table := &Table{
		Name: "things",
		Columns: []Column{
			{Name: "id", Type: TypeUUID, Required: true},
			{Name: "user_id", Type: TypeUUID, Required: true},
			{Name: "name", Type: TypeString, Required: true, Unique: true},
			{Name: "kind", Type: TypeString, Enum: []string{"a", "b"}, Nullable: true},
			{Name: "amount", Type: TypeDecimal, Precision: 2, Default: "0"},
			{Name: "is_active", Type: TypeBoolean},
			{Name: "created_at", Type: TypeTimestamp, Auto: "create"},
			{Name: "updated_at", Type: TypeTimestamp, Auto: "update"},
		},
	}
	cfg, err := Configure(table).
		SetUserID("user_id").
		SoftDelete("is_active").
		EnableFiltering(map[string]FilterSpec{
			"kind":       {Column: "kind", Op: "eq"},
			"search":     {Column: "name", Op: "like"},
			"amount_min": {Column: "amount", Op: "gte"},
		}).
		EnableOrdering("name", "created_at").
		EnablePagination().
		WithPageSize(2, 5).
		Build()
	if err != nil {
		t.Fatalf("build config: %v", err)
	}
	if err := EnsureTable(ctx, cfg, st); err != nil {
		t.Fatalf("ensure table: %v", err)
	}
	return NewQueries(cfg, st), st
}

func TestCreateRoundTrip(t *testing.T) {
	q, _ := queryFixture(t)
	ctx := context.Background()

	row, err := q.Create(ctx, map[string]any{"name": "rent", "kind": "a", "amount": "100.50"}, alice)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if row["id"] == nil || row["id"] == "" {
		t.Fatalf("expected generated id, got %v", row["id"])
	}
	if row["user_id"] != alice {
		t.Fatalf("expected owner %s, got %v", alice, row["user_id"])
	}
	if row["is_active"] != true {
		t.Fatalf("expected active flag, got %v (%T)", row["is_active"], row["is_active"])
	}
	if fmt.Sprint(row["amount"]) != "100.50" && fmt.Sprint(row["amount"]) != "100.5" {
		t.Fatalf("amount round trip: %v", row["amount"])
	}
	if row["created_at"] == nil || row["updated_at"] == nil {
		t.Fatalf("expected managed timestamps, got %v / %v", row["created_at"], row["updated_at"])
	}

	fetched, err := q.GetByID(ctx, map[string]any{"id": row["id"]}, alice)
	if err != nil {
		t.Fatalf("getById: %v", err)
	}
	if fetched["name"] != "rent" {
		t.Fatalf("round trip name: %v", fetched["name"])
	}
}

func TestCreateIgnoresOwnerAndFlagFromCaller(t *testing.T) {
	q, _ := queryFixture(t)
	ctx := context.Background()

	row, err := q.Create(ctx, map[string]any{
		"name":      "sneaky",
		"user_id":   bob,
		"is_active": false,
		"id":        "cccccccc-cccc-cccc-cccc-cccccccccccc",
	}, alice)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if row["user_id"] != alice {
		t.Fatalf("caller must not set the owner, got %v", row["user_id"])
	}
	if row["is_active"] != true {
		t.Fatalf("caller must not set the active flag, got %v", row["is_active"])
	}
	if row["id"] == "cccccccc-cccc-cccc-cccc-cccccccccccc" {
		t.Fatalf("caller must not set the identifier")
	}
}

func TestTenantIsolation(t *testing.T) {
	q, _ := queryFixture(t)
	ctx := context.Background()

	row, err := q.Create(ctx, map[string]any{"name": "private"}, alice)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := q.GetByID(ctx, map[string]any{"id": row["id"]}, bob); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for other tenant, got %v", err)
	}

	page, err := q.GetMany(ctx, GetManyInput{UserID: bob})
	if err != nil {
		t.Fatalf("getMany: %v", err)
	}
	if page.Total != 0 || len(page.Items) != 0 {
		t.Fatalf("other tenant sees %d rows", page.Total)
	}

	if _, err := q.UpdateByID(ctx, map[string]any{"id": row["id"]}, map[string]any{"name": "stolen"}, bob); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on cross-tenant update, got %v", err)
	}
	if _, err := q.RemoveByID(ctx, map[string]any{"id": row["id"]}, bob); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on cross-tenant remove, got %v", err)
	}
}

func TestSoftDeleteIdempotence(t *testing.T) {
	q, st := queryFixture(t)
	ctx := context.Background()

	row, err := q.Create(ctx, map[string]any{"name": "gone"}, alice)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	removed, err := q.RemoveByID(ctx, map[string]any{"id": row["id"]}, alice)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed["id"] != row["id"] {
		t.Fatalf("expected the removed row back")
	}

	// second remove behaves like a missing row
	if _, err := q.RemoveByID(ctx, map[string]any{"id": row["id"]}, alice); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
	if _, err := q.GetByID(ctx, map[string]any{"id": row["id"]}, alice); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("soft-deleted row must not be readable, got %v", err)
	}

	// but the row physically remains
	pb := st.Dialect.NewParamBuilder()
	raw, err := store.QueryRow(ctx, st.DB,
		fmt.Sprintf("SELECT is_active FROM things WHERE id = %s", pb.Add(row["id"])), pb.Params()...)
	if err != nil {
		t.Fatalf("raw fetch: %v", err)
	}
	store.NormalizeBooleans([]map[string]any{raw}, []string{"is_active"})
	if raw["is_active"] != false {
		t.Fatalf("expected flag flipped, got %v", raw["is_active"])
	}
}

func TestGetManyFiltersAndPagination(t *testing.T) {
	q, _ := queryFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("item-%d", i)
		kind := "a"
		if i%2 == 1 {
			kind = "b"
		}
		if _, err := q.Create(ctx, map[string]any{
			"name":   name,
			"kind":   kind,
			"amount": fmt.Sprintf("%d", i*10),
		}, alice); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	page, err := q.GetMany(ctx, GetManyInput{
		Filters: map[string]any{"kind": "a"},
		UserID:  alice,
	})
	if err != nil {
		t.Fatalf("getMany: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("expected 3 kind=a rows, got %d", page.Total)
	}

	// page size clamps to the configured maximum of 5
	page, err = q.GetMany(ctx, GetManyInput{PageSize: 50, UserID: alice})
	if err != nil {
		t.Fatalf("getMany: %v", err)
	}
	if len(page.Items) != 5 {
		t.Fatalf("expected clamp to 5, got %d", len(page.Items))
	}

	// deterministic walk: two pages of two, then one
	var seen []string
	for p := 0; p < 3; p++ {
		page, err = q.GetMany(ctx, GetManyInput{Page: p, PageSize: 2, OrderBy: "name", UserID: alice})
		if err != nil {
			t.Fatalf("page %d: %v", p, err)
		}
		for _, item := range page.Items {
			seen = append(seen, item["name"].(string))
		}
	}
	if len(seen) != 5 {
		t.Fatalf("expected 5 rows across pages, got %v", seen)
	}
	for i, name := range seen {
		if name != fmt.Sprintf("item-%d", i) {
			t.Fatalf("unstable pagination order: %v", seen)
		}
	}

	// like filter
	page, err = q.GetMany(ctx, GetManyInput{
		Filters: map[string]any{"search": "item-3"},
		UserID:  alice,
	})
	if err != nil {
		t.Fatalf("getMany like: %v", err)
	}
	if page.Total != 1 || page.Items[0]["name"] != "item-3" {
		t.Fatalf("like filter: %v", page.Items)
	}

	// descending sort
	page, err = q.GetMany(ctx, GetManyInput{OrderBy: "name", OrderDir: "DESC", PageSize: 1, UserID: alice})
	if err != nil {
		t.Fatalf("getMany desc: %v", err)
	}
	if page.Items[0]["name"] != "item-4" {
		t.Fatalf("desc sort: %v", page.Items[0]["name"])
	}
}

func TestGetManyRejectsUnlistedOrder(t *testing.T) {
	q, _ := queryFixture(t)
	_, err := q.GetMany(context.Background(), GetManyInput{OrderBy: "amount", UserID: alice})
	if err == nil {
		t.Fatalf("expected error for non-whitelisted order column")
	}
}

func TestUpdateByIDRestrictions(t *testing.T) {
	q, _ := queryFixture(t)
	ctx := context.Background()

	row, err := q.Create(ctx, map[string]any{"name": "before"}, alice)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := q.UpdateByID(ctx, map[string]any{"id": row["id"]},
		map[string]any{"name": "after", "user_id": bob, "id": "ffffffff-ffff-ffff-ffff-ffffffffffff"}, alice)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated["name"] != "after" {
		t.Fatalf("expected updated name, got %v", updated["name"])
	}
	if updated["user_id"] != alice || updated["id"] != row["id"] {
		t.Fatalf("identifier or owner changed: %v", updated)
	}
}

func TestCreateManyAtomic(t *testing.T) {
	q, _ := queryFixture(t)
	ctx := context.Background()

	// duplicate names violate the per-user unique constraint
	_, err := q.CreateMany(ctx, []map[string]any{
		{"name": "one"},
		{"name": "two"},
		{"name": "one"},
	}, alice)
	if !errors.Is(err, store.ErrUniqueViolation) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	page, err := q.GetMany(ctx, GetManyInput{UserID: alice})
	if err != nil {
		t.Fatalf("getMany: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("batch must roll back entirely, found %d rows", page.Total)
	}

	rows, err := q.CreateMany(ctx, []map[string]any{
		{"name": "one"},
		{"name": "two"},
	}, alice)
	if err != nil {
		t.Fatalf("createMany: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 created rows, got %d", len(rows))
	}
}

func TestUniqueViolationMapped(t *testing.T) {
	q, _ := queryFixture(t)
	ctx := context.Background()

	if _, err := q.Create(ctx, map[string]any{"name": "dup"}, alice); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := q.Create(ctx, map[string]any{"name": "dup"}, alice)
	if !errors.Is(err, store.ErrUniqueViolation) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	// a different tenant may reuse the name
	if _, err := q.Create(ctx, map[string]any{"name": "dup"}, bob); err != nil {
		t.Fatalf("per-tenant unique: %v", err)
	}
}
