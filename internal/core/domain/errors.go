package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	// On destination resource lookups this is expected and drives the
	// create-new-resource path; it is not worth logging there.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the provider rejected our credentials
	// (HTTP 401 or a provider-specific equivalent). It triggers the OAuth
	// refresh path.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnsupported indicates a capability the connector does not
	// implement (e.g. folder listing on a flat provider). Fatal for that
	// call only, never for a whole sync pass.
	ErrUnsupported = errors.New("operation not supported by this connector")

	// ErrUnknownConnector indicates a connector id with no registered
	// factory. This is a configuration error, not a runtime fault to
	// recover from.
	ErrUnknownConnector = errors.New("unknown connector")

	// ErrTokenRefreshFailed indicates the token refresh operation failed
	// and the source needs a fresh interactive grant.
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")
)

// ProviderError is any non-2xx provider response other than 401/404.
// It carries the response body when one was available.
type ProviderError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *ProviderError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("provider error %d at %s: %s", e.StatusCode, e.Endpoint, e.Body)
	}
	return fmt.Sprintf("provider error %d at %s", e.StatusCode, e.Endpoint)
}

// IsUnauthorized reports whether err is an auth failure in any of its forms.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode == 401
}
