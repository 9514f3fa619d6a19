package repository

import (
	"context"

	"github.com/iliyamo/academy-auth/internal/model"
)

// UserStore is the credential store contract. Implementations must
// enforce the (tenant_id, email) uniqueness atomically inside Create;
// callers never pre-check existence.
type UserStore interface {
	// Create inserts the user and fills in its assigned ID. A
	// duplicate (tenant, email) pair returns ErrEmailExists.
	Create(ctx context.Context, u *model.User) error
	// GetByEmail fetches a user by tenant-scoped email, or
	// ErrUserNotFound.
	GetByEmail(ctx context.Context, tenantID, email string) (model.User, error)
	// GetByID fetches a user by id, or ErrUserNotFound.
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore is the refresh token store contract. The token string is
// unique across the store; implementations must be safe for concurrent
// use.
type TokenStore interface {
	// Store inserts a refresh token record.
	Store(ctx context.Context, t *model.RefreshToken) error
	// FindByToken returns the record for the exact token string, or
	// ErrTokenNotFound.
	FindByToken(ctx context.Context, token string) (model.RefreshToken, error)
	// Delete removes a single record by token string. Deleting an
	// absent token is not an error.
	Delete(ctx context.Context, token string) error
	// DeleteByUser removes every record owned by the user.
	DeleteByUser(ctx context.Context, userID uint64) error
}
