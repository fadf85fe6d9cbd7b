package security

import "errors"

var (
	// ErrInvalidInput is returned by Hash for empty or oversized passwords.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTokenInvalid is the only error Verify returns. Signature, expiry,
	// issuer, audience and structural failures are not distinguished.
	ErrTokenInvalid = errors.New("token invalid")
)
