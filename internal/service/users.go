package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sxbin-backend/internal/auth"
	"sxbin-backend/internal/models"
	"sxbin-backend/internal/repository"
)

type UserService struct {
	users         UserStore
	authenticator auth.Authenticator
	logger        *zap.Logger
}

func NewUserService(users UserStore, authenticator auth.Authenticator, logger *zap.Logger) *UserService {
	return &UserService{
		users:         users,
		authenticator: authenticator,
		logger:        logger.Named("users"),
	}
}

// Register creates a local account.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.UserRecord, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if username == "" || email == "" || req.Password == "" {
		return nil, ErrMissingFields
	}
	if len(req.Password) < MinAccountPasswordLength {
		return nil, ErrPasswordTooShort
	}

	if err := s.ensureFree(ctx, username, email); err != nil {
		return nil, err
	}

	hash, err := auth.HashAccountPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.UserRecord{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

func (s *UserService) ensureFree(ctx context.Context, username, email string) error {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to look up username: %w", err)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to look up email: %w", err)
	}
	return nil
}

// create inserts the user and maps a lost race on a unique column to the
// same errors the pre-checks return.
func (s *UserService) create(ctx context.Context, user *models.UserRecord) error {
	err := s.users.Create(ctx, user)
	if err == nil {
		return nil
	}

	var conflict *repository.ConflictError
	if errors.As(err, &conflict) {
		switch conflict.Constraint {
		case repository.ConstraintUsername:
			return ErrUsernameTaken
		case repository.ConstraintEmail:
			return ErrEmailTaken
		}
	}
	return fmt.Errorf("failed to create user: %w", err)
}

// Login verifies the credentials with the configured authenticator and
// returns the matching users row. Directory logins get a row on first use.
func (s *UserService) Login(ctx context.Context, usernameOrEmail, password string) (*models.UserRecord, error) {
	if usernameOrEmail == "" || password == "" {
		return nil, auth.ErrInvalidCredentials
	}

	identity, err := s.authenticator.Authenticate(ctx, usernameOrEmail, password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Error("authentication backend failed", zap.String("backend", s.authenticator.GetName()), zap.Error(err))
		}
		return nil, err
	}

	if identity.Source == "local" {
		user, err := s.users.GetByUsername(ctx, identity.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		return user, nil
	}

	return s.ProvisionExternal(ctx, identity)
}

// ProvisionExternal finds the users row of a directory or OAuth2 identity by
// email, creating it when missing. The row gets no usable local password.
func (s *UserService) ProvisionExternal(ctx context.Context, identity *models.Identity) (*models.UserRecord, error) {
	if identity.Email == "" {
		return nil, fmt.Errorf("%s identity for %q has no email", identity.Source, identity.Username)
	}

	user, err := s.users.GetByEmail(ctx, identity.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	username := identity.Username
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		username = username + "-" + uuid.NewString()[:6]
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up username: %w", err)
	}

	user = &models.UserRecord{
		ID:       uuid.NewString(),
		Username: username,
		Email:    identity.Email,
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("provisioned external user",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("source", identity.Source),
	)
	return user, nil
}

func (s *UserService) Me(ctx context.Context, userID string) (*models.UserRecord, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

// APIKey returns the user's key, issuing one on first request.
func (s *UserService) APIKey(ctx context.Context, userID string) (string, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.APIKey != nil && *user.APIKey != "" {
		return *user.APIKey, nil
	}
	return s.issueAPIKey(ctx, user)
}

// RotateAPIKey replaces the user's key. The old key stops working at once.
func (s *UserService) RotateAPIKey(ctx context.Context, userID string) (string, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.issueAPIKey(ctx, user)
}

func (s *UserService) issueAPIKey(ctx context.Context, user *models.UserRecord) (string, error) {
	key, err := auth.NewAPIKey()
	if err != nil {
		return "", err
	}
	if err := s.users.SetAPIKey(ctx, user.ID, key); err != nil {
		return "", fmt.Errorf("failed to store api key: %w", err)
	}

	s.logger.Info("api key issued", zap.String("user_id", user.ID))
	return key, nil
}

// UserByAPIKey resolves the owner of an API key.
func (s *UserService) UserByAPIKey(ctx context.Context, key string) (*models.UserRecord, error) {
	user, err := s.users.GetByAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, err
	}
	return user, nil
}
