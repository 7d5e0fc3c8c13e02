package service

import (
	"errors"
	"fmt"
)

// Operation names used in errors.
const (
	OpPreview = "preview"
	OpSend    = "send"
)

// StatusError is returned when a service answers with a non-2xx status.
// Detail holds the "detail" string of the response body when present.
type StatusError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s failed (%d): %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s failed (%d)", e.Op, e.StatusCode)
}

// AsStatusError returns the StatusError in err's chain, if any.
func AsStatusError(err error) (*StatusError, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}

// ErrMalformedResponse wraps success responses whose body cannot be
// decoded into the expected shape.
var ErrMalformedResponse = errors.New("malformed service response")
