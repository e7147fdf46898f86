package core

import "fmt"

// Stable error codes shared across the engine. Handlers map these to transport
// status codes; they are part of the public contract and must not change.
const (
	CodeUnsupportedFormat   = "UNSUPPORTED_FORMAT"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeProviderTimeout     = "PROVIDER_TIMEOUT"
	CodeIndexCorruption     = "INDEX_CORRUPTION"
	CodeAuthFailure         = "AUTH_FAILURE"
	CodeInsufficientRole    = "INSUFFICIENT_ROLE"
	CodePersistenceFailure  = "PERSISTENCE_FAILURE"
	CodeAlreadyBootstrapped = "ALREADY_BOOTSTRAPPED"
	CodeNotFound            = "NOT_FOUND"
)

// Error wraps an underlying error with a stable code and optional details.
type Error struct {
	Err     error
	Code    string
	Details map[string]any
}

// NewError constructs a coded error. A nil err is allowed when the code alone
// carries the meaning.
func NewError(err error, code string, details map[string]any) *Error {
	return &Error{Err: err, Code: code, Details: details}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasCode reports whether err carries the given engine error code.
func HasCode(err error, code string) bool {
	for err != nil {
		if coded, ok := err.(*Error); ok && coded.Code == code {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
