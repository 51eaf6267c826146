package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sxbin-backend/internal/access"
	"sxbin-backend/internal/archive"
	"sxbin-backend/internal/config"
	"sxbin-backend/internal/models"
	"sxbin-backend/internal/repository"
	"sxbin-backend/internal/shortid"
	"sxbin-backend/internal/storage"
)

const defaultContentType = "application/octet-stream"

type FileService struct {
	files     FileStore
	store     storage.ObjectStore
	gate      *access.Gate
	ids       *shortid.Generator
	upload    config.UploadConfig
	publicURL string
	logger    *zap.Logger
	now       clock
}

func NewFileService(files FileStore, store storage.ObjectStore, upload config.UploadConfig, publicURL string, logger *zap.Logger) *FileService {
	return &FileService{
		files:     files,
		store:     store,
		gate:      access.NewGate(files),
		ids:       shortid.NewGenerator(upload.ShortIDLength, upload.ShortIDMaxAttempts, files.ShortIDExists),
		upload:    upload,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		logger:    logger.Named("files"),
		now:       time.Now,
	}
}

type UploadInput struct {
	FileName      string
	ContentType   string
	Data          []byte
	Password      string
	ExpiresInDays int
	UserID        *string
}

// Upload reserves a short id by inserting the record, then writes the object.
// If the object write fails the record is removed again.
func (s *FileService) Upload(ctx context.Context, in UploadInput) (*models.FileRecord, error) {
	if len(in.Data) == 0 || in.FileName == "" {
		return nil, ErrEmptyFile
	}

	days := in.ExpiresInDays
	if days == 0 {
		days = s.upload.DefaultExpiryDays
	}
	if !s.upload.AllowsExpiry(days) {
		return nil, fmt.Errorf("%w: %d days", ErrInvalidExpiry, days)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	var passwordHash *string
	if in.Password != "" {
		h, err := access.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		passwordHash = &h
	}

	id := uuid.NewString()
	key := id + shortid.Extension(in.FileName)
	now := s.now().UTC()

	rec := &models.FileRecord{
		ID:           id,
		FileName:     in.FileName,
		FileSize:     int64(len(in.Data)),
		ContentType:  contentType,
		S3Key:        key,
		PasswordHash: passwordHash,
		UploadedAt:   now,
		ExpiresAt:    now.AddDate(0, 0, days),
		UserID:       in.UserID,
	}

	if err := s.reserve(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, key, in.Data, contentType, models.MetadataFor(rec).ToMap()); err != nil {
		s.logger.Error("object upload failed, releasing short id",
			zap.String("short_id", rec.ShortID), zap.String("key", key), zap.Error(err))
		if delErr := s.files.Delete(ctx, rec.ID); delErr != nil {
			s.logger.Error("failed to release short id", zap.String("short_id", rec.ShortID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	uploader := "anonymous"
	if in.UserID != nil {
		uploader = "user"
	}
	uploadsTotal.WithLabelValues(uploader).Inc()
	uploadBytesTotal.Add(float64(rec.FileSize))

	s.logger.Info("file uploaded",
		zap.String("short_id", rec.ShortID),
		zap.Int64("size", rec.FileSize),
		zap.Bool("protected", rec.IsProtected()),
		zap.Time("expires_at", rec.ExpiresAt),
	)
	return rec, nil
}

// reserve picks a short id and inserts the record under the unique
// constraint, picking again when a concurrent upload took the same id.
func (s *FileService) reserve(ctx context.Context, rec *models.FileRecord) error {
	for attempt := 0; attempt < s.upload.ShortIDMaxAttempts; attempt++ {
		candidate, err := s.ids.Next(ctx, rec.FileName)
		if err != nil {
			if errors.Is(err, shortid.ErrExhausted) {
				return ErrShortIDExhausted
			}
			return fmt.Errorf("failed to generate short id: %w", err)
		}

		rec.ShortID = candidate
		rec.PublicURL = s.objectURL(rec)

		err = s.files.Insert(ctx, rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("failed to store file record: %w", err)
		}
		s.logger.Warn("short id collision on insert", zap.String("short_id", candidate))
	}
	return ErrShortIDExhausted
}

func (s *FileService) objectURL(rec *models.FileRecord) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + rec.S3Key
	}
	return "/" + rec.ShortID + "/raw"
}

// Info returns the record behind a short id after the access checks.
func (s *FileService) Info(ctx context.Context, id, password string) (*models.FileRecord, error) {
	return s.gate.Resolve(ctx, id, password)
}

// Open returns the record and the stored bytes.
func (s *FileService) Open(ctx context.Context, id, password string) (*models.FileRecord, *storage.Object, error) {
	rec, err := s.gate.Resolve(ctx, id, password)
	if err != nil {
		return nil, nil, err
	}

	obj, err := s.fetch(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	return rec, obj, nil
}

func (s *FileService) fetch(ctx context.Context, rec *models.FileRecord) (*storage.Object, error) {
	obj, err := s.store.Get(ctx, rec.S3Key)
	if err != nil {
		s.logger.Error("failed to fetch object", zap.String("short_id", rec.ShortID), zap.String("key", rec.S3Key), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return obj, nil
}

func (s *FileService) openArchive(ctx context.Context, id, password string) (*models.FileRecord, []byte, error) {
	rec, err := s.gate.Resolve(ctx, id, password)
	if err != nil {
		return nil, nil, err
	}
	if !archive.IsZip(rec.ContentType, rec.FileName) {
		return nil, nil, archive.ErrNotAZipFile
	}

	obj, err := s.fetch(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	return rec, obj.Data, nil
}

type Contents struct {
	File    *models.FileRecord
	Entries []models.ArchiveEntry
	Tree    []*models.TreeNode
}

// Contents lists a ZIP upload. A listing failure is logged and reported as a
// malformed archive.
func (s *FileService) Contents(ctx context.Context, id, password string) (*Contents, error) {
	rec, data, err := s.openArchive(ctx, id, password)
	if err != nil {
		return nil, err
	}

	entries, err := archive.List(data)
	if err != nil {
		s.logger.Warn("failed to list archive", zap.String("short_id", rec.ShortID), zap.Error(err))
		return nil, err
	}

	return &Contents{
		File:    rec,
		Entries: entries,
		Tree:    archive.BuildTree(entries),
	}, nil
}

type Extracted struct {
	Name        string
	ContentType string
	Data        []byte
}

// Extract returns one entry of a ZIP upload by its exact path.
func (s *FileService) Extract(ctx context.Context, id, password, entryPath string) (*Extracted, error) {
	if entryPath == "" {
		return nil, ErrPathRequired
	}

	rec, data, err := s.openArchive(ctx, id, password)
	if err != nil {
		return nil, err
	}

	out, err := archive.Extract(data, entryPath)
	if err != nil {
		if !errors.Is(err, archive.ErrEntryNotFound) {
			s.logger.Warn("failed to extract archive entry",
				zap.String("short_id", rec.ShortID), zap.String("path", entryPath), zap.Error(err))
		}
		return nil, err
	}

	name := entryPath
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	return &Extracted{
		Name:        name,
		ContentType: archive.MimeType(entryPath),
		Data:        out,
	}, nil
}

// owned resolves a short id for its owner. Expired files can still be
// managed by their owner until the sweep removes them.
func (s *FileService) owned(ctx context.Context, id, userID string) (*models.FileRecord, error) {
	rec, err := s.gate.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.OwnedBy(userID) {
		return nil, ErrForbidden
	}
	return rec, nil
}

// SetPassword sets, or with an empty password clears, the file password. The
// object metadata is rewritten before the record.
func (s *FileService) SetPassword(ctx context.Context, id, userID, password string) (*models.FileRecord, error) {
	rec, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	var hash *string
	if password != "" {
		h, err := access.HashPassword(password)
		if err != nil {
			return nil, err
		}
		hash = &h
	}

	updated := *rec
	updated.PasswordHash = hash

	if err := s.store.ReplaceMetadata(ctx, rec.S3Key, models.MetadataFor(&updated).ToMap()); err != nil {
		s.logger.Error("failed to rewrite object metadata", zap.String("short_id", rec.ShortID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if err := s.files.UpdatePasswordHash(ctx, rec.ID, hash); err != nil {
		return nil, fmt.Errorf("failed to update file password: %w", err)
	}

	s.logger.Info("file password changed", zap.String("short_id", rec.ShortID), zap.Bool("protected", hash != nil))
	return &updated, nil
}

// Delete removes the object and then the record. A missing object does not
// block removing the record.
func (s *FileService) Delete(ctx context.Context, id, userID string) error {
	rec, err := s.owned(ctx, id, userID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, rec.S3Key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Error("failed to delete object", zap.String("short_id", rec.ShortID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if err := s.files.Delete(ctx, rec.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	s.logger.Info("file deleted", zap.String("short_id", rec.ShortID))
	return nil
}

// ListForUser returns the user's uploads, newest first.
func (s *FileService) ListForUser(ctx context.Context, userID string) ([]models.FileInfo, error) {
	records, err := s.files.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.FileInfo, 0, len(records))
	for i := range records {
		out = append(out, records[i].Info())
	}
	return out, nil
}
