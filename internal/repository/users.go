package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sxbin-backend/internal/models"
)

const userColumns = `id, username, email, password_hash, api_key, created_at`

const (
	ConstraintUsername = "users_username_key"
	ConstraintEmail    = "users_email_key"
	ConstraintAPIKey   = "users_api_key_key"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.UserRecord, error) {
	u := &models.UserRecord{}
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.APIKey, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts the user and fills CreatedAt. A duplicate username or email
// surfaces as a ConflictError naming the constraint.
func (r *UserRepository) Create(ctx context.Context, u *models.UserRecord) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, api_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, u.ID, u.Username, u.Email, u.PasswordHash, u.APIKey).Scan(&u.CreatedAt)
	if err != nil {
		if conflict, ok := uniqueViolation(err); ok {
			return conflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*models.UserRecord, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` = $1`, arg))
	if err != nil {
		if noRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.UserRecord, error) {
	return r.getOne(ctx, "id", id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.UserRecord, error) {
	return r.getOne(ctx, "username", username)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.UserRecord, error) {
	return r.getOne(ctx, "email", email)
}

func (r *UserRepository) GetByAPIKey(ctx context.Context, apiKey string) (*models.UserRecord, error) {
	return r.getOne(ctx, "api_key", apiKey)
}

func (r *UserRepository) SetAPIKey(ctx context.Context, id, apiKey string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET api_key = $2 WHERE id = $1`, id, apiKey)
	if err != nil {
		if conflict, ok := uniqueViolation(err); ok {
			return conflict
		}
		return fmt.Errorf("failed to set api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
