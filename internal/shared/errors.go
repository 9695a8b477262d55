package shared

import "errors"

var (
	// ErrInvalidCredentials is returned for a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrCSRFTokenMissing is returned when a form post carries no token.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch is returned when the posted token is wrong.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
