package feature

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger-backend/internal/apperr"
)

// FieldSchema is the validation spec for one input field.
type FieldSchema struct {
	Column   Column
	Required bool
}

// Schema validates one flat input object. All schemas are strict: an
// undeclared field is a validation error, and primitive wire values (numeric
// strings, bool strings, RFC3339 dates) coerce identically at every layer.
type Schema struct {
	Name   string
	Fields map[string]FieldSchema
	Rules  []Rule
}

// Parse validates and coerces input. It returns the coerced copy and any
// field-level problems; input is never mutated.
func (s *Schema) Parse(input map[string]any) (map[string]any, []apperr.Detail) {
	var details []apperr.Detail

	for _, key := range sortedKeysAny(input) {
		if _, ok := s.Fields[key]; !ok {
			details = append(details, apperr.Detail{
				Field:   key,
				Rule:    "unknown",
				Message: fmt.Sprintf("Unknown field: %s", key),
			})
		}
	}
	if len(details) > 0 {
		return nil, details
	}

	out := make(map[string]any, len(input))
	for _, name := range sortedKeys(s.Fields) {
		fs := s.Fields[name]
		raw, present := input[name]
		if !present || raw == nil {
			if fs.Required {
				details = append(details, apperr.Detail{
					Field:   name,
					Rule:    "required",
					Message: fmt.Sprintf("%s is required", name),
				})
			} else if present {
				// explicit null for a nullable field
				out[name] = nil
			}
			continue
		}
		val, err := coerceValue(fs.Column, raw)
		if err != nil {
			details = append(details, apperr.Detail{
				Field:   name,
				Rule:    "type",
				Message: err.Error(),
			})
			continue
		}
		if len(fs.Column.Enum) > 0 {
			if sv, ok := val.(string); !ok || !containsString(fs.Column.Enum, sv) {
				details = append(details, apperr.Detail{
					Field:   name,
					Rule:    "enum",
					Message: fmt.Sprintf("%s must be one of %s", name, strings.Join(fs.Column.Enum, ", ")),
				})
				continue
			}
		}
		out[name] = val
	}
	if len(details) > 0 {
		return nil, details
	}

	for _, r := range s.Rules {
		if r.Type != RuleField {
			continue
		}
		if detail := evaluateFieldRule(r, out); detail != nil {
			details = append(details, *detail)
		}
	}
	if len(details) > 0 {
		return nil, details
	}
	return out, nil
}

// coerceValue converts a wire value to the canonical Go type for a column.
func coerceValue(col Column, raw any) (any, error) {
	switch col.Type {
	case TypeString, TypeText:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string", col.Name)
		}
		return s, nil

	case TypeInt, TypeBigint:
		switch v := raw.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("%s must be an integer", col.Name)
			}
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s must be an integer", col.Name)
			}
			return n, nil
		}
		return nil, fmt.Errorf("%s must be an integer", col.Name)

	case TypeDecimal:
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			s = strconv.Itoa(v)
		case int64:
			s = strconv.FormatInt(v, 10)
		default:
			return nil, fmt.Errorf("%s must be a decimal number", col.Name)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("%s must be a decimal number", col.Name)
		}
		return d.String(), nil

	case TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("%s must be a boolean", col.Name)
			}
			return b, nil
		}
		return nil, fmt.Errorf("%s must be a boolean", col.Name)

	case TypeUUID:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a uuid string", col.Name)
		}
		if _, err := uuid.Parse(s); err != nil {
			return nil, fmt.Errorf("%s must be a valid uuid", col.Name)
		}
		return s, nil

	case TypeTimestamp:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC().Format(time.RFC3339Nano), nil
		case string:
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				t, err = time.Parse(time.RFC3339, v)
			}
			if err != nil {
				return nil, fmt.Errorf("%s must be an RFC3339 timestamp", col.Name)
			}
			return t.UTC().Format(time.RFC3339Nano), nil
		}
		return nil, fmt.Errorf("%s must be an RFC3339 timestamp", col.Name)

	case TypeDate:
		switch v := raw.(type) {
		case time.Time:
			return v.Format("2006-01-02"), nil
		case string:
			if _, err := time.Parse("2006-01-02", v); err != nil {
				return nil, fmt.Errorf("%s must be a date in YYYY-MM-DD form", col.Name)
			}
			return v, nil
		}
		return nil, fmt.Errorf("%s must be a date in YYYY-MM-DD form", col.Name)

	case TypeJSON:
		return raw, nil
	}
	return raw, nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func sortedKeysAny(m map[string]any) []string {
	return sortedKeys(m)
}
