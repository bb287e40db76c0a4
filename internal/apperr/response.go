package apperr

// PublicError is the error object rendered in responses. Only public codes
// appear here, never the internal layer/type vocabulary.
type PublicError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []Detail `json:"details,omitempty"`
}

// Envelope is the fixed error response shape.
type Envelope struct {
	Success   bool         `json:"success"`
	Error     *PublicError `json:"error"`
	RequestID string       `json:"request_id"`
}

// ToResponse renders any error into an HTTP status and response envelope.
// Unmapped or internal errors are redacted to the generic entry.
func ToResponse(err error, requestID string) (int, Envelope) {
	entry := genericEntry
	message := genericEntry.Message
	var details []Detail

	if appErr, ok := As(err); ok {
		entry = Lookup(appErr)
		message = appErr.Message
		if entry.Redact || appErr.Type == TypeInternal {
			message = entry.Message
		}
		details = appErr.Details
	}

	return entry.Status, Envelope{
		Success: false,
		Error: &PublicError{
			Code:    entry.Public,
			Message: message,
			Details: details,
		},
		RequestID: requestID,
	}
}
