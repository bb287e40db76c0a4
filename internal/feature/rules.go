package feature

import (
	"fmt"
	"regexp"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"ledger-backend/internal/apperr"
)

// Rule kinds.
const (
	RuleField      = "field"
	RuleExpression = "expression"
	RuleComputed   = "computed"
)

// Rule is a declarative validation or computation attached to an operation
// schema. Field rules check one value; expression rules evaluate an
// expr-lang program against {record, old, action} and fail when it returns
// true; computed rules assign the program's result to a field.
type Rule struct {
	Type       string
	Field      string
	Operator   string // min, max, min_length, max_length, pattern (field rules)
	Value      any
	Expression string
	Message    string

	compiled *vm.Program
}

// FieldRule builds a field rule.
func FieldRule(field, operator string, value any, message string) Rule {
	return Rule{Type: RuleField, Field: field, Operator: operator, Value: value, Message: message}
}

// ExpressionRule builds an expression rule; the rule fails when the
// expression evaluates to true.
func ExpressionRule(expression, message string) Rule {
	return Rule{Type: RuleExpression, Expression: expression, Message: message}
}

// ComputedRule builds a computed-field rule.
func ComputedRule(field, expression string) Rule {
	return Rule{Type: RuleComputed, Field: field, Expression: expression}
}

// Compile caches the rule's expression program. The schema builder compiles
// every rule at build time, so a bad expression fails process start and the
// cached program is read-only once requests run.
func (r *Rule) Compile() error {
	if r.Type == RuleField || r.compiled != nil {
		return nil
	}
	prog, err := compileRule(r)
	if err != nil {
		return err
	}
	r.compiled = prog
	return nil
}

func compileRule(r *Rule) (*vm.Program, error) {
	if r.Type == RuleExpression {
		return expr.Compile(r.Expression, expr.AsBool())
	}
	return expr.Compile(r.Expression)
}

// EvaluateRules runs expression and computed rules for an operation against
// the validated record. Field rules run earlier, inside Schema.Parse. The
// record map is mutated by computed rules.
func EvaluateRules(rules []Rule, record, old map[string]any, isCreate bool) []apperr.Detail {
	if len(rules) == 0 {
		return nil
	}
	if old == nil {
		old = map[string]any{}
	}
	action := "update"
	if isCreate {
		action = "create"
	}
	env := map[string]any{
		"record": record,
		"old":    old,
		"action": action,
	}

	var details []apperr.Detail
	for i := range rules {
		if rules[i].Type != RuleExpression {
			continue
		}
		if detail := evaluateExpressionRule(&rules[i], env); detail != nil {
			details = append(details, *detail)
		}
	}
	if len(details) > 0 {
		return details
	}

	for i := range rules {
		if rules[i].Type != RuleComputed {
			continue
		}
		val, err := evaluateComputedRule(&rules[i], env)
		if err != nil {
			details = append(details, apperr.Detail{
				Field:   rules[i].Field,
				Rule:    "computed",
				Message: err.Error(),
			})
			continue
		}
		record[rules[i].Field] = val
	}
	return details
}

// evaluateFieldRule checks a single field rule against a record. Absent
// fields pass; use Required on the column for presence checks.
func evaluateFieldRule(rule Rule, record map[string]any) *apperr.Detail {
	val, exists := record[rule.Field]
	if !exists || val == nil {
		return nil
	}

	msg := rule.Message
	if msg == "" {
		msg = fmt.Sprintf("field %s failed %s validation", rule.Field, rule.Operator)
	}

	switch rule.Operator {
	case "min":
		num, ok := toFloat64(val)
		if !ok {
			return nil
		}
		threshold, ok := toFloat64(rule.Value)
		if ok && num < threshold {
			return &apperr.Detail{Field: rule.Field, Rule: "min", Message: msg}
		}

	case "max":
		num, ok := toFloat64(val)
		if !ok {
			return nil
		}
		threshold, ok := toFloat64(rule.Value)
		if ok && num > threshold {
			return &apperr.Detail{Field: rule.Field, Rule: "max", Message: msg}
		}

	case "min_length":
		s, ok := val.(string)
		if !ok {
			return nil
		}
		threshold, ok := toFloat64(rule.Value)
		if ok && len(s) < int(threshold) {
			return &apperr.Detail{Field: rule.Field, Rule: "min_length", Message: msg}
		}

	case "max_length":
		s, ok := val.(string)
		if !ok {
			return nil
		}
		threshold, ok := toFloat64(rule.Value)
		if ok && len(s) > int(threshold) {
			return &apperr.Detail{Field: rule.Field, Rule: "max_length", Message: msg}
		}

	case "pattern":
		s, ok := val.(string)
		if !ok {
			return nil
		}
		pattern, ok := rule.Value.(string)
		if !ok {
			return nil
		}
		matched, err := regexp.MatchString(pattern, s)
		if err != nil || !matched {
			return &apperr.Detail{Field: rule.Field, Rule: "pattern", Message: msg}
		}
	}

	return nil
}

func evaluateExpressionRule(rule *Rule, env map[string]any) *apperr.Detail {
	prog := rule.compiled
	if prog == nil {
		// not built through the schema builder; compile without caching
		var err error
		prog, err = compileRule(rule)
		if err != nil {
			return &apperr.Detail{Rule: "expression", Message: fmt.Sprintf("compile error: %v", err)}
		}
	}

	result, err := expr.Run(prog, env)
	if err != nil {
		return &apperr.Detail{Rule: "expression", Message: fmt.Sprintf("rule evaluation error: %v", err)}
	}

	if violated, ok := result.(bool); ok && violated {
		msg := rule.Message
		if msg == "" {
			msg = "Expression rule violated"
		}
		return &apperr.Detail{Rule: "expression", Message: msg}
	}
	return nil
}

func evaluateComputedRule(rule *Rule, env map[string]any) (any, error) {
	prog := rule.compiled
	if prog == nil {
		var err error
		prog, err = compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("compile computed expression: %w", err)
		}
	}

	result, err := expr.Run(prog, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate computed field %s: %w", rule.Field, err)
	}
	return result, nil
}

// toFloat64 converts numeric types to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
