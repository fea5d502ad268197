package dispatch

// ErrorKind labels the structured error taxonomy surfaced to callers.
type ErrorKind string

const (
	// KindValidation: a required argument is missing or invalid. Raised
	// before any backend call.
	KindValidation ErrorKind = "validation"

	// KindUnknownOperation: the toolId matches no registered descriptor.
	KindUnknownOperation ErrorKind = "unknown_operation"

	// KindBackend: a downstream log or database call failed.
	KindBackend ErrorKind = "backend"

	// KindShaping: result truncation failed. Reserved — the shaping
	// algorithm cannot fail on backend-produced results, but the taxonomy
	// covers it.
	KindShaping ErrorKind = "shaping"
)

// StructuredError is the error value every failure converts to at the
// dispatcher boundary. Nothing escapes Invoke as an unhandled fault.
type StructuredError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *StructuredError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func newError(kind ErrorKind, message string) *StructuredError {
	return &StructuredError{Kind: kind, Message: message}
}
