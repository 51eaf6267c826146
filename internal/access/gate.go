// Package access decides whether a short id may be served: it resolves the
// record, then checks expiry and the file password, in that order.
package access

import (
	"context"
	"errors"
	"time"

	"sxbin-backend/internal/models"
	"sxbin-backend/internal/repository"
	"sxbin-backend/internal/shortid"
)

var (
	ErrNotFound         = errors.New("file not found")
	ErrExpired          = errors.New("file has expired")
	ErrPasswordRequired = errors.New("password required")
	ErrInvalidPassword  = errors.New("invalid password")
)

type FileLookup interface {
	GetByShortID(ctx context.Context, shortID string) (*models.FileRecord, error)
}

type Gate struct {
	files FileLookup
	now   func() time.Time
}

func NewGate(files FileLookup) *Gate {
	return &Gate{files: files, now: time.Now}
}

// Lookup resolves a short id without any access checks. The exact id is tried
// first, then the id with its extension suffix removed.
func (g *Gate) Lookup(ctx context.Context, id string) (*models.FileRecord, error) {
	f, err := g.files.GetByShortID(ctx, id)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	base := shortid.Base(id)
	if base == id || base == "" {
		return nil, ErrNotFound
	}

	f, err = g.files.GetByShortID(ctx, base)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Resolve returns the record only if it exists, has not expired and, when
// protected, password matches. An empty password counts as not supplied.
func (g *Gate) Resolve(ctx context.Context, id, password string) (*models.FileRecord, error) {
	f, err := g.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	if f.IsExpired(g.now()) {
		return nil, ErrExpired
	}

	if f.IsProtected() {
		if password == "" {
			return nil, ErrPasswordRequired
		}
		if !VerifyPassword(*f.PasswordHash, password) {
			return nil, ErrInvalidPassword
		}
	}

	return f, nil
}
