package preview

import (
	"github.com/cockroachdb/errors"
)

// Kind classifies why a preview could not be produced.
type Kind int

const (
	KindInvalidRequest Kind = iota
	KindMissingParameter
	KindInvalidURL
	KindFetchFailed
)

func (k Kind) String() string {
	switch k {
	case KindMissingParameter:
		return "missing_parameter"
	case KindInvalidURL:
		return "invalid_url"
	case KindFetchFailed:
		return "fetch_failed"
	default:
		return "invalid_request"
	}
}

var (
	ErrMissingParameter = errors.New("URL parameter is required")
	ErrInvalidURL       = errors.New("invalid URL")
	ErrFetchFailed      = errors.New("failed to fetch metadata")
	ErrInvalidRequest   = errors.New("invalid request")
)

// Error carries the Kind of a preview failure and its cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.sentinel().Error()
	}
	return e.sentinel().Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFetchFailed) and friends match on Kind.
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindMissingParameter:
		return ErrMissingParameter
	case KindInvalidURL:
		return ErrInvalidURL
	case KindFetchFailed:
		return ErrFetchFailed
	default:
		return ErrInvalidRequest
	}
}

func newError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// KindOf returns the Kind of err. Errors not produced by this package are
// KindInvalidRequest.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInvalidRequest
}
