package auth

import (
	"context"

	"github.com/FACorreiaa/go-users-api/internal/types"
)

// CredentialStore is the read side of the user store the login flow needs.
// GetUserByEmail matches the stored email exactly and returns
// types.ErrNotFound when nobody has it.
type CredentialStore interface {
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
}
