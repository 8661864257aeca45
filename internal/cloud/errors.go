package cloud

import "errors"

// Domain-specific errors for cloud REST operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrHTTP is returned for non-2xx responses. The wrapping error carries
	// the status.
	ErrHTTP = errors.New("cloud: unexpected http status")

	// ErrAPI is returned when a response body carries an "error" field.
	ErrAPI = errors.New("cloud: api error")

	// ErrTokenExpired is returned by the credential source when the access
	// token's exp claim is in the past.
	ErrTokenExpired = errors.New("cloud: access token expired")

	// ErrMissingToken is returned when no access token is configured.
	ErrMissingToken = errors.New("cloud: access token is required")
)
