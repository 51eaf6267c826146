package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"sxbin-backend/internal/models"
	"sxbin-backend/internal/repository"
)

const BcryptCost = 10

// LocalAuth checks bcrypt hashes stored in the users table.
type LocalAuth struct {
	users UserLookup
}

func NewLocalAuth(users UserLookup) *LocalAuth {
	return &LocalAuth{users: users}
}

func (a *LocalAuth) GetName() string {
	return "local"
}

// Authenticate looks the user up by email when the input contains '@', by
// username otherwise.
func (a *LocalAuth) Authenticate(ctx context.Context, usernameOrEmail, password string) (*models.Identity, error) {
	var (
		user *models.UserRecord
		err  error
	)
	if strings.Contains(usernameOrEmail, "@") {
		user, err = a.users.GetByEmail(ctx, usernameOrEmail)
	} else {
		user, err = a.users.GetByUsername(ctx, usernameOrEmail)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &models.Identity{
		Username: user.Username,
		Email:    user.Email,
		Source:   a.GetName(),
	}, nil
}

func HashAccountPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
