// Package repository defines the store contracts for users and refresh
// tokens plus the sentinel errors shared by their implementations.
// Higher layers branch on these sentinels with errors.Is rather than
// inspecting driver errors directly.
package repository

import "errors"

// ErrEmailExists is returned when an insert violates the unique
// (tenant_id, email) key. Uniqueness is enforced by the store at
// insert time, so a race between two registrations surfaces here
// rather than producing duplicate rows.
var ErrEmailExists = errors.New("email already exists in this tenant")

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// ErrTokenNotFound is returned when no refresh token record matches
// the given token string. A well-signed token whose record was
// revoked or never stored lands here.
var ErrTokenNotFound = errors.New("refresh token not found")

// ErrDuplicateToken is returned when an insert violates the unique
// token column. The codec salts every refresh token with a random id,
// so this only fires if the same string is stored twice.
var ErrDuplicateToken = errors.New("refresh token already exists")
