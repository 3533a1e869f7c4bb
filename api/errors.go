package api

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError reports that a request never produced a response: DNS
// failure, refused connection, timeout, or a broken body read.
type TransportError struct {
	Op  string // "GET /books", "POST /auth/login", ...
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response from the service. Message is the server's
// human-readable "message" field when present, empty otherwise; callers
// surface it via Message with a per-operation fallback.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// IsAuthInvalid reports whether err is a 401 rejection. Callers normally do
// not need this: the gateway already converted the 401 into a session reset
// before returning.
func IsAuthInvalid(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Message extracts the server-supplied message from err, falling back to the
// given default when the server omitted one or the failure was transport-level.
// It never returns an empty string for a non-nil err.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
