package apperr

import "fmt"

// Entry maps an internal error to its public representation.
type Entry struct {
	Public  string // stable public error code
	Status  int    // HTTP status
	Message string // public fallback message used when the internal one is redacted
	Redact  bool   // replace the internal message with Message in responses
}

// registry keys are "LAYER/TYPE/CODE" with fallback to "TYPE/CODE" and
// finally to the generic internal entry.
var registry = map[string]Entry{
	"SERVICE/RESOURCE/NOT_FOUND": {
		Public: "RESOURCE.NOT_FOUND", Status: 404,
		Message: "The requested resource was not found",
	},
	"QUERY/RESOURCE/NOT_FOUND": {
		Public: "RESOURCE.NOT_FOUND", Status: 404,
		Message: "The requested resource was not found",
	},
	"SERVICE/CONFLICT/DUPLICATE": {
		Public: "RESOURCE.DUPLICATE", Status: 409,
		Message: "A record with this value already exists",
	},
	"SERVICE/CONFLICT/REFERENCE": {
		Public: "RESOURCE.CONFLICT", Status: 409,
		Message: "The record is referenced by other records",
	},
	"ENDPOINT/VALIDATION/INVALID_INPUT": {
		Public: "VALIDATION.FAILED", Status: 422,
		Message: "Validation failed",
	},
	"SERVICE/VALIDATION/INVALID_INPUT": {
		Public: "VALIDATION.FAILED", Status: 422,
		Message: "Validation failed",
	},
	"ENDPOINT/RESOURCE/UNKNOWN_FEATURE": {
		Public: "RESOURCE.NOT_FOUND", Status: 404,
		Message: "The requested resource was not found",
	},
	"ENDPOINT/AUTH/UNAUTHORIZED": {
		Public: "AUTH.UNAUTHORIZED", Status: 401,
		Message: "Authentication required",
	},
	"ENDPOINT/AUTH/FORBIDDEN": {
		Public: "AUTH.FORBIDDEN", Status: 403,
		Message: "Permission denied",
	},
	"SERVICE/AUTH/INVALID_CREDENTIALS": {
		Public: "AUTH.LOGIN_FAILED", Status: 401,
		Message: "Invalid email or password", Redact: true,
	},

	// Type-level fallbacks
	"RESOURCE/NOT_FOUND": {
		Public: "RESOURCE.NOT_FOUND", Status: 404,
		Message: "The requested resource was not found",
	},
	"VALIDATION/INVALID_INPUT": {
		Public: "VALIDATION.FAILED", Status: 422,
		Message: "Validation failed",
	},
	"CONFLICT/DUPLICATE": {
		Public: "RESOURCE.DUPLICATE", Status: 409,
		Message: "A record with this value already exists",
	},
	"CONFLICT/REFERENCE": {
		Public: "RESOURCE.CONFLICT", Status: 409,
		Message: "The record is referenced by other records",
	},
	"AUTH/UNAUTHORIZED": {
		Public: "AUTH.UNAUTHORIZED", Status: 401,
		Message: "Authentication required",
	},
	"AUTH/FORBIDDEN": {
		Public: "AUTH.FORBIDDEN", Status: 403,
		Message: "Permission denied",
	},
	"AUTH/INVALID_CREDENTIALS": {
		Public: "AUTH.LOGIN_FAILED", Status: 401,
		Message: "Invalid email or password", Redact: true,
	},
}

// genericEntry is the last-resort mapping for unknown or internal errors.
// Its message is always used verbatim; internal details never leak.
var genericEntry = Entry{
	Public:  "INTERNAL_SERVER_ERROR",
	Status:  500,
	Message: "Internal server error",
	Redact:  true,
}

// Lookup resolves the registry entry for a tagged error, falling back
// layer/type/code -> type/code -> generic.
func Lookup(e *Error) Entry {
	if entry, ok := registry[string(e.Layer)+"/"+string(e.Type)+"/"+e.Code]; ok {
		return entry
	}
	if entry, ok := registry[string(e.Type)+"/"+e.Code]; ok {
		return entry
	}
	return genericEntry
}

// Validate checks every registry entry at startup. A bad entry is a
// programming error and must fail process start.
func Validate() error {
	for key, entry := range registry {
		if entry.Status < 100 || entry.Status > 599 {
			return fmt.Errorf("error registry entry %s has invalid HTTP status %d", key, entry.Status)
		}
		if entry.Public == "" {
			return fmt.Errorf("error registry entry %s has no public code", key)
		}
	}
	return nil
}
