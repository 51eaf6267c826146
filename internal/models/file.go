package models

import (
	"mime"
	"time"
)

// FileRecord is one row of the files table. PasswordHash is nil for public files
// and UserID is nil for anonymous uploads.
type FileRecord struct {
	ID               string
	ShortID          string
	FileName         string
	FileSize         int64
	ContentType      string
	S3Key            string
	PasswordHash     *string
	UploadedAt       time.Time
	ExpiresAt        time.Time
	PublicURL        string
	UserID           *string
	UploaderUsername *string
}

func (f *FileRecord) IsProtected() bool {
	return f.PasswordHash != nil && *f.PasswordHash != ""
}

func (f *FileRecord) IsExpired(now time.Time) bool {
	return f.ExpiresAt.Before(now)
}

func (f *FileRecord) OwnedBy(userID string) bool {
	return f.UserID != nil && *f.UserID == userID
}

// Info strips the password hash from the record.
func (f *FileRecord) Info() FileInfo {
	return FileInfo{
		ID:                f.ID,
		ShortID:           f.ShortID,
		FileName:          f.FileName,
		FileSize:          f.FileSize,
		ContentType:       f.ContentType,
		UploadedAt:        f.UploadedAt,
		ExpiresAt:         f.ExpiresAt,
		PublicURL:         f.PublicURL,
		UserID:            f.UserID,
		UploaderUsername:  f.UploaderUsername,
		PasswordProtected: f.IsProtected(),
	}
}

type FileInfo struct {
	ID                string    `json:"id"`
	ShortID           string    `json:"shortId"`
	FileName          string    `json:"fileName"`
	FileSize          int64     `json:"fileSize"`
	ContentType       string    `json:"contentType"`
	UploadedAt        time.Time `json:"uploadedAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
	PublicURL         string    `json:"publicUrl"`
	UserID            *string   `json:"userId"`
	UploaderUsername  *string   `json:"uploaderUsername,omitempty"`
	PasswordProtected bool      `json:"passwordProtected"`
}

// ObjectMetadata is the metadata blob stored alongside each object.
type ObjectMetadata struct {
	OriginalName      string
	ContentType       string
	ExpiresAt         time.Time
	ShortID           string
	PasswordProtected bool
	PasswordHash      string
}

// ToMap renders the metadata as object user metadata. S3 sends it as HTTP
// headers, which must be ASCII, so free-text values are RFC 2047 encoded.
func (m ObjectMetadata) ToMap() map[string]string {
	out := map[string]string{
		"originalName": mime.QEncoding.Encode("utf-8", m.OriginalName),
		"contentType":  mime.QEncoding.Encode("utf-8", m.ContentType),
		"expiresAt":    m.ExpiresAt.UTC().Format(time.RFC3339),
		"shortId":      m.ShortID,
	}
	if m.PasswordProtected {
		out["passwordProtected"] = "true"
		out["passwordHash"] = m.PasswordHash
	}
	return out
}

// MetadataFor builds the object metadata for a record.
func MetadataFor(f *FileRecord) ObjectMetadata {
	m := ObjectMetadata{
		OriginalName: f.FileName,
		ContentType:  f.ContentType,
		ExpiresAt:    f.ExpiresAt,
		ShortID:      f.ShortID,
	}
	if f.IsProtected() {
		m.PasswordProtected = true
		m.PasswordHash = *f.PasswordHash
	}
	return m
}
