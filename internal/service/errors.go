package service

import "errors"

// Sentinel errors surfaced by the auth service. Duplicate-account and
// token-not-found failures reuse the repository sentinels; invalid
// token reuses the codec sentinel. All are stable kinds the transport
// layer can map to status codes with errors.Is.
var (
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password. The two cases are deliberately indistinguishable so
	// the API cannot be used as an account-existence oracle.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountNotActive is returned when credentials check out but
	// the account has not been approved (or was suspended/rejected).
	ErrAccountNotActive = errors.New("account not approved yet")

	// ErrTokenExpired is returned when a refresh token's stored record
	// is past its expiry. The stale record is deleted on detection, so
	// a retry with the same token reports it as not found.
	ErrTokenExpired = errors.New("refresh token expired")

	// ErrInvalidRole is returned by Register when the requested role is
	// not one of the known role enum values.
	ErrInvalidRole = errors.New("invalid role")
)
