package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestLookupExactMatch(t *testing.T) {
	entry := Lookup(NotFound("account", "123"))
	if entry.Public != "RESOURCE.NOT_FOUND" || entry.Status != 404 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestLookupTypeFallback(t *testing.T) {
	// QUERY/CONFLICT/DUPLICATE has no exact entry; the type-level one applies
	e := New(LayerQuery, TypeConflict, CodeDuplicate, "dup")
	entry := Lookup(e)
	if entry.Public != "RESOURCE.DUPLICATE" || entry.Status != 409 {
		t.Fatalf("expected type fallback, got %+v", entry)
	}
}

func TestLookupGenericFallback(t *testing.T) {
	e := New(LayerQuery, TypeInternal, "SOMETHING_ODD", "odd")
	entry := Lookup(e)
	if entry.Public != "INTERNAL_SERVER_ERROR" || entry.Status != 500 || !entry.Redact {
		t.Fatalf("expected generic entry, got %+v", entry)
	}
}

func TestToResponseEnvelope(t *testing.T) {
	err := Validation([]Detail{{Field: "name", Rule: "required", Message: "name is required"}})
	status, env := ToResponse(err, "req-1")

	if status != 422 {
		t.Fatalf("status = %d", status)
	}
	if env.Success {
		t.Fatalf("success must be false")
	}
	if env.RequestID != "req-1" {
		t.Fatalf("request id = %q", env.RequestID)
	}
	if env.Error.Code != "VALIDATION.FAILED" {
		t.Fatalf("code = %q", env.Error.Code)
	}
	if len(env.Error.Details) != 1 || env.Error.Details[0].Field != "name" {
		t.Fatalf("details = %v", env.Error.Details)
	}
}

func TestToResponseRedactsInternal(t *testing.T) {
	cause := errors.New("pq: connection refused at 10.0.0.5")
	status, env := ToResponse(Internal(cause), "req-2")

	if status != 500 {
		t.Fatalf("status = %d", status)
	}
	if env.Error.Message != "Internal server error" {
		t.Fatalf("internal message leaked: %q", env.Error.Message)
	}
}

func TestToResponseUnknownError(t *testing.T) {
	status, env := ToResponse(fmt.Errorf("driver exploded"), "req-3")
	if status != 500 || env.Error.Code != "INTERNAL_SERVER_ERROR" {
		t.Fatalf("unexpected mapping: %d %+v", status, env.Error)
	}
	if env.Error.Message == "driver exploded" {
		t.Fatalf("raw error message leaked")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Internal(cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain")
	}

	wrapped := fmt.Errorf("handler: %w", err)
	ae, ok := As(wrapped)
	if !ok || ae.Code != CodeInternal {
		t.Fatalf("As through wrapping failed: %v", wrapped)
	}
}

func TestValidateRegistry(t *testing.T) {
	if err := Validate(); err != nil {
		t.Fatalf("registry must validate: %v", err)
	}
}
