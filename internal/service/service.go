// Package service composes the record store, object storage, the access gate
// and the archive reader into the operations the HTTP layer exposes.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sxbin-backend/internal/models"
)

var (
	ErrUpstream         = errors.New("storage unavailable")
	ErrForbidden        = errors.New("not the owner of this file")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidAPIKey    = errors.New("invalid api key")
	ErrInvalidExpiry    = errors.New("invalid expiration")
	ErrEmptyFile        = errors.New("no file provided")
	ErrPathRequired     = errors.New("path parameter is required")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrEmailTaken       = errors.New("email already registered")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrMissingFields    = errors.New("username, email and password are required")
	ErrShortIDExhausted = errors.New("could not allocate a short id")
)

const MinAccountPasswordLength = 6

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sxbin_uploads_total",
			Help: "Uploads accepted, by kind of uploader.",
		},
		[]string{"uploader"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sxbin_upload_bytes_total",
			Help: "Bytes written to object storage by uploads.",
		},
	)
)

// FileStore is the part of the files repository the services use.
type FileStore interface {
	GetByShortID(ctx context.Context, shortID string) (*models.FileRecord, error)
	ShortIDExists(ctx context.Context, shortID string) (bool, error)
	Insert(ctx context.Context, f *models.FileRecord) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]models.FileRecord, error)
	UpdatePasswordHash(ctx context.Context, id string, hash *string) error
}

// UserStore is the part of the users repository the services use.
type UserStore interface {
	Create(ctx context.Context, u *models.UserRecord) error
	GetByID(ctx context.Context, id string) (*models.UserRecord, error)
	GetByUsername(ctx context.Context, username string) (*models.UserRecord, error)
	GetByEmail(ctx context.Context, email string) (*models.UserRecord, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*models.UserRecord, error)
	SetAPIKey(ctx context.Context, id, apiKey string) error
}

type clock func() time.Time
