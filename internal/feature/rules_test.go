package feature

import "testing"

func TestFieldRules(t *testing.T) {
	schema := &Schema{
		Name: "t",
		Fields: map[string]FieldSchema{
			"name": {Column: Column{Name: "name", Type: TypeString}},
			"age":  {Column: Column{Name: "age", Type: TypeInt}},
		},
		Rules: []Rule{
			FieldRule("name", "min_length", 3, "name too short"),
			FieldRule("name", "pattern", `^[a-z]+$`, "lowercase only"),
			FieldRule("age", "min", 18, "must be adult"),
		},
	}

	_, details := schema.Parse(map[string]any{"name": "ab"})
	if len(details) != 1 || details[0].Message != "name too short" {
		t.Fatalf("expected min_length failure, got %v", details)
	}

	_, details = schema.Parse(map[string]any{"name": "Abcd"})
	if len(details) != 1 || details[0].Rule != "pattern" {
		t.Fatalf("expected pattern failure, got %v", details)
	}

	_, details = schema.Parse(map[string]any{"name": "abcd", "age": 17})
	if len(details) != 1 || details[0].Message != "must be adult" {
		t.Fatalf("expected min failure, got %v", details)
	}

	// absent fields pass field rules
	_, details = schema.Parse(map[string]any{"name": "abcd"})
	if len(details) != 0 {
		t.Fatalf("absent optional field should pass, got %v", details)
	}
}

func TestExpressionRule(t *testing.T) {
	rules := []Rule{
		ExpressionRule(`action == "create" && record.amount == "0"`, "amount must not be zero"),
	}

	record := map[string]any{"amount": "0"}
	details := EvaluateRules(rules, record, nil, true)
	if len(details) != 1 || details[0].Message != "amount must not be zero" {
		t.Fatalf("expected violation, got %v", details)
	}

	// same record on update passes: the rule keys off the action
	details = EvaluateRules(rules, record, nil, false)
	if len(details) != 0 {
		t.Fatalf("expected pass on update, got %v", details)
	}
}

func TestComputedRule(t *testing.T) {
	rules := []Rule{
		ComputedRule("slug", `lower(record.name)`),
	}
	record := map[string]any{"name": "Groceries"}
	details := EvaluateRules(rules, record, nil, true)
	if len(details) != 0 {
		t.Fatalf("unexpected details: %v", details)
	}
	if record["slug"] != "groceries" {
		t.Fatalf("expected computed slug, got %v", record["slug"])
	}
}

func TestExpressionRuleSeesOldRecord(t *testing.T) {
	rules := []Rule{
		ExpressionRule(`action == "update" && record.status == "pending" && old.status == "completed"`,
			"cannot reopen a completed job"),
	}
	record := map[string]any{"status": "pending"}
	old := map[string]any{"status": "completed"}

	details := EvaluateRules(rules, record, old, false)
	if len(details) != 1 {
		t.Fatalf("expected violation, got %v", details)
	}
}

func TestMalformedExpressionFailsSchemaBuild(t *testing.T) {
	cfg := buildTestConfig(t)
	_, err := NewSchemas(cfg).
		Standard().
		WithRules(OpCreate, ExpressionRule("record.amount <", "broken")).
		Build()
	if err == nil {
		t.Fatalf("expected build error for malformed expression")
	}
}

func TestRulesCompiledAtSchemaBuild(t *testing.T) {
	cfg := buildTestConfig(t)
	schemas, err := NewSchemas(cfg).
		Standard().
		WithRules(OpCreate, ExpressionRule(`"name" in record && record.name == ""`, "name must not be empty")).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	bundle, _ := schemas.Operation(OpCreate)
	if len(bundle.Rules) != 1 || bundle.Rules[0].compiled == nil {
		t.Fatalf("expected the rule program to be compiled at build time")
	}
}
