package shared

import "errors"

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotVerified is returned when an unverified account signs in.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrTokenInvalid covers unknown, consumed and expired one-time tokens.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrTooManyAttempts is returned when sign-in is throttled.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
