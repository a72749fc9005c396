package orchestrator

import (
	"errors"
)

// Error kinds. Every error leaving this package or the service layer is an
// *APIError whose Kind is one of these; match with errors.Is.
var (
	ErrTransport         = errors.New("transport failure")
	ErrMalformedResponse = errors.New("malformed response")
	ErrNotFound          = errors.New("not found")
	ErrJobFaulted        = errors.New("job faulted")
	ErrJobTimedOut       = errors.New("job timed out")
	ErrInvalidReference  = errors.New("invalid reference")
	ErrInvalidArguments  = errors.New("invalid arguments")
)

// APIError is the single error type surfaced to callers. Message names the
// failing stage, Kind classifies it and Err keeps the cause for diagnostics.
type APIError struct {
	Message string
	Kind    error
	Err     error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewError builds an APIError of the given kind.
func NewError(message string, kind, cause error) *APIError {
	return &APIError{Message: message, Kind: kind, Err: cause}
}

// Wrap re-raises err under message, keeping the kind of the innermost
// APIError. Errors that carry no kind are treated as transport failures.
func Wrap(message string, err error) *APIError {
	return &APIError{Message: message, Kind: KindOf(err), Err: err}
}

// KindOf returns the kind of err, or ErrTransport if it has none.
func KindOf(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Kind != nil {
		return apiErr.Kind
	}
	return ErrTransport
}
