// Package repository holds the SQL access to the files and users tables.
// Queries are plain SQL over pgx.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ConflictError names the unique constraint that rejected a write.
type ConflictError struct {
	Constraint string
}

func (e *ConflictError) Error() string {
	return "unique constraint violated: " + e.Constraint
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

func uniqueViolation(err error) (*ConflictError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &ConflictError{Constraint: pgErr.ConstraintName}, true
	}
	return nil, false
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
