package feature

import (
	"testing"
)

func buildTestConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Configure(testTable()).
		SetUserID("user_id").
		SoftDelete("is_active").
		EnableFiltering(map[string]FilterSpec{
			"kind":       {Column: "kind", Op: "eq"},
			"search":     {Column: "name", Op: "like"},
			"amount_min": {Column: "amount", Op: "gte"},
			"kinds":      {Column: "kind", Op: "in"},
		}).
		EnableOrdering("name").
		EnablePagination().
		Build()
	if err != nil {
		t.Fatalf("build config: %v", err)
	}
	return cfg
}

func TestSchemaRejectsUnknownFields(t *testing.T) {
	cfg := buildTestConfig(t)
	schemas := NewSchemas(cfg).Standard().MustBuild()
	op, _ := schemas.Operation(OpCreate)

	_, details := op.Service.Parse(map[string]any{
		"name":    "a",
		"user_id": "11111111-1111-1111-1111-111111111111",
	})
	if len(details) != 1 || details[0].Field != "user_id" || details[0].Rule != "unknown" {
		t.Fatalf("expected unknown-field detail for user_id, got %v", details)
	}
}

func TestSchemaRequiredAndCoercion(t *testing.T) {
	cfg := buildTestConfig(t)
	schemas := NewSchemas(cfg).Standard().MustBuild()
	op, _ := schemas.Operation(OpCreate)

	_, details := op.Service.Parse(map[string]any{"kind": "a"})
	if len(details) != 1 || details[0].Field != "name" || details[0].Rule != "required" {
		t.Fatalf("expected required detail for name, got %v", details)
	}

	out, details := op.Service.Parse(map[string]any{
		"name":   "thing",
		"kind":   "b",
		"amount": 12.5,
	})
	if len(details) != 0 {
		t.Fatalf("unexpected details: %v", details)
	}
	if out["amount"] != "12.5" {
		t.Fatalf("expected canonical decimal string, got %v", out["amount"])
	}
}

func TestSchemaEnum(t *testing.T) {
	cfg := buildTestConfig(t)
	schemas := NewSchemas(cfg).Standard().MustBuild()
	op, _ := schemas.Operation(OpCreate)

	_, details := op.Service.Parse(map[string]any{"name": "x", "kind": "z"})
	if len(details) != 1 || details[0].Rule != "enum" {
		t.Fatalf("expected enum detail, got %v", details)
	}
}

func TestSchemaUpdateAllOptional(t *testing.T) {
	cfg := buildTestConfig(t)
	schemas := NewSchemas(cfg).Standard().MustBuild()
	op, _ := schemas.Operation(OpUpdateByID)

	out, details := op.Service.Parse(map[string]any{})
	if len(details) != 0 || len(out) != 0 {
		t.Fatalf("empty update should validate, got %v / %v", out, details)
	}
}

func TestSchemaIDsValidateUUIDs(t *testing.T) {
	cfg := buildTestConfig(t)
	schemas := NewSchemas(cfg).Standard().MustBuild()
	op, _ := schemas.Operation(OpGetByID)

	_, details := op.Service.Parse(map[string]any{"id": "not-a-uuid"})
	if len(details) != 1 || details[0].Rule != "type" {
		t.Fatalf("expected uuid type detail, got %v", details)
	}
}

func TestCoerceValueWireForms(t *testing.T) {
	intCol := Column{Name: "n", Type: TypeInt}
	if v, err := coerceValue(intCol, "42"); err != nil || v != int64(42) {
		t.Fatalf("int from string: %v %v", v, err)
	}
	if v, err := coerceValue(intCol, 42.0); err != nil || v != int64(42) {
		t.Fatalf("int from whole float: %v %v", v, err)
	}
	if _, err := coerceValue(intCol, 4.5); err == nil {
		t.Fatalf("fractional float must not coerce to int")
	}

	boolCol := Column{Name: "b", Type: TypeBoolean}
	if v, err := coerceValue(boolCol, "true"); err != nil || v != true {
		t.Fatalf("bool from string: %v %v", v, err)
	}

	decCol := Column{Name: "d", Type: TypeDecimal}
	if v, err := coerceValue(decCol, "0010.50"); err != nil || v != "10.5" {
		t.Fatalf("decimal canonical form: %v %v", v, err)
	}

	dateCol := Column{Name: "dt", Type: TypeDate}
	if _, err := coerceValue(dateCol, "02/01/2025"); err == nil {
		t.Fatalf("non-ISO date must not coerce")
	}
}

func TestAddSchemaDuplicateName(t *testing.T) {
	cfg := buildTestConfig(t)
	custom := func(d Derived) OperationSchema {
		return OperationSchema{Service: d.Base}
	}
	_, err := NewSchemas(cfg).Standard().Add("getMany", custom).Build()
	if err == nil {
		t.Fatalf("expected duplicate-name build error")
	}

	_, err = NewSchemas(cfg).Standard().Add("special", custom).Add("special", custom).Build()
	if err == nil {
		t.Fatalf("expected duplicate custom name build error")
	}
}

func TestParseFilters(t *testing.T) {
	cfg := buildTestConfig(t)

	out, details := cfg.ParseFilters(map[string]any{
		"kind":       "a",
		"amount_min": "5",
		"kinds":      []any{"a", "b"},
	})
	if len(details) != 0 {
		t.Fatalf("unexpected details: %v", details)
	}
	if out["amount_min"] != "5" {
		t.Fatalf("expected coerced decimal filter, got %v", out["amount_min"])
	}

	_, details = cfg.ParseFilters(map[string]any{"bogus": "x"})
	if len(details) != 1 || details[0].Rule != "unknown" {
		t.Fatalf("expected unknown filter detail, got %v", details)
	}
}
