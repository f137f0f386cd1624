package apperror

import "net/http"

// AppError is a custom error type that includes an HTTP status code and optional details.
type AppError struct {
	Code    int            // HTTP Status Code (e.g., 400, 404)
	Message string         // User-facing error message
	Details map[string]any // Extra context for clients (retry hints, the contested slot, ...)
	Err     error          // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is lets sentinel AppErrors match copies produced by WithDetails and Wrap.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithDetails returns a copy of e carrying the given details.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// New creates a new AppError with a status code and message.
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error.
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation reports malformed input (bad time windows, bad dates).
func Validation(message string) *AppError {
	return New(http.StatusBadRequest, message)
}

// Conflict reports a resource already claimed by a concurrent actor.
func Conflict(message string) *AppError {
	return New(http.StatusConflict, message)
}

// NotFound reports an absent rule, slot or reservation.
func NotFound(message string) *AppError {
	return New(http.StatusNotFound, message)
}

// Internal reports a server-side fault such as a conditional update that
// matched nothing. The message is shown to clients, so keep it generic.
func Internal(message string) *AppError {
	return New(http.StatusInternalServerError, message)
}
