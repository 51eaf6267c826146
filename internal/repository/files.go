package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sxbin-backend/internal/models"
)

const fileColumns = `files.id, files.short_id, files.file_name, files.file_size, files.content_type,
	files.s3_key, files.password_hash, files.uploaded_at, files.expires_at, files.public_url, files.user_id`

type FileRepository struct {
	db DBTX
}

func NewFileRepository(db DBTX) *FileRepository {
	return &FileRepository{db: db}
}

func scanFile(row pgx.Row, extra ...any) (*models.FileRecord, error) {
	f := &models.FileRecord{}
	dest := []any{
		&f.ID, &f.ShortID, &f.FileName, &f.FileSize, &f.ContentType,
		&f.S3Key, &f.PasswordHash, &f.UploadedAt, &f.ExpiresAt, &f.PublicURL, &f.UserID,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return f, nil
}

func collectFiles(rows pgx.Rows) ([]models.FileRecord, error) {
	defer rows.Close()

	files := []models.FileRecord{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

// Insert stores a new record. A taken short id surfaces as a ConflictError.
func (r *FileRepository) Insert(ctx context.Context, f *models.FileRecord) error {
	query := `
		INSERT INTO files (id, short_id, file_name, file_size, content_type, s3_key,
			password_hash, uploaded_at, expires_at, public_url, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		f.ID, f.ShortID, f.FileName, f.FileSize, f.ContentType, f.S3Key,
		f.PasswordHash, f.UploadedAt, f.ExpiresAt, f.PublicURL, f.UserID,
	)
	if err != nil {
		if conflict, ok := uniqueViolation(err); ok {
			return conflict
		}
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE files.id = $1`

	f, err := scanFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if noRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// GetByShortID also resolves the uploader's username.
func (r *FileRepository) GetByShortID(ctx context.Context, shortID string) (*models.FileRecord, error) {
	query := `
		SELECT ` + fileColumns + `, users.username
		FROM files
		LEFT JOIN users ON files.user_id = users.id
		WHERE files.short_id = $1`

	var uploader *string
	f, err := scanFile(r.db.QueryRow(ctx, query, shortID), &uploader)
	if err != nil {
		if noRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get file by short id: %w", err)
	}
	f.UploaderUsername = uploader
	return f, nil
}

func (r *FileRepository) ShortIDExists(ctx context.Context, shortID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM files WHERE short_id = $1)`, shortID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check short id: %w", err)
	}
	return exists, nil
}

// ListByUser returns the user's files, newest first.
func (r *FileRepository) ListByUser(ctx context.Context, userID string) ([]models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE files.user_id = $1 ORDER BY files.uploaded_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	files, err := collectFiles(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan files: %w", err)
	}
	return files, nil
}

// ExpiredCursor is the position after the last record of a ListExpired page.
// The zero value starts at the oldest record.
type ExpiredCursor struct {
	ExpiresAt time.Time
	ID        string
}

// CursorAfter returns the cursor positioned after f.
func CursorAfter(f *models.FileRecord) ExpiredCursor {
	return ExpiredCursor{ExpiresAt: f.ExpiresAt, ID: f.ID}
}

// ListExpired returns up to limit records whose expiry is before now and that
// sort after the cursor, oldest first.
func (r *FileRepository) ListExpired(ctx context.Context, now time.Time, after ExpiredCursor, limit int) ([]models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE files.expires_at < $1 AND (files.expires_at, files.id) > ($2, $3)
		ORDER BY files.expires_at, files.id LIMIT $4`

	rows, err := r.db.Query(ctx, query, now, after.ExpiresAt, after.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired files: %w", err)
	}
	files, err := collectFiles(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired files: %w", err)
	}
	return files, nil
}

// UpdatePasswordHash sets or, with nil, clears the password.
func (r *FileRepository) UpdatePasswordHash(ctx context.Context, id string, hash *string) error {
	tag, err := r.db.Exec(ctx, `UPDATE files SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
