package apiclient

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the backend answers 401. The credential
// has already been cleared when callers see it.
var ErrUnauthorized = errors.New("unauthorized")

// BusinessError is an envelope with a non-zero code. Its text is exactly the
// envelope message.
type BusinessError struct {
	Code    int
	Message string
}

func (e *BusinessError) Error() string {
	return e.Message
}

// TransportError covers network failures, unreadable bodies and unexpected
// statuses on streamed responses.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err stems from a 401.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// ErrorMessage returns a message fit for the user: the envelope message for
// business errors, a generic text otherwise.
func ErrorMessage(err error) string {
	var be *BusinessError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &be):
		return be.Message
	case errors.Is(err, ErrUnauthorized):
		return "session expired, please log in again"
	default:
		return "network error, please try again"
	}
}
