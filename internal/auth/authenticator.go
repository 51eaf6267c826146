package auth

import (
	"context"
	"errors"

	"sxbin-backend/internal/models"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator verifies a login and says who the caller is. Mapping the
// identity to a users row is left to the caller.
type Authenticator interface {
	Authenticate(ctx context.Context, usernameOrEmail, password string) (*models.Identity, error)
	GetName() string
}

// UserLookup is the part of the user repository the local authenticator reads.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*models.UserRecord, error)
	GetByEmail(ctx context.Context, email string) (*models.UserRecord, error)
}
