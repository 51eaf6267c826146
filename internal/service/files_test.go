package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sxbin-backend/internal/access"
	"sxbin-backend/internal/archive"
	"sxbin-backend/internal/config"
	"sxbin-backend/internal/models"
	"sxbin-backend/internal/storage"
)

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		MaxSizeMB:          10,
		DefaultExpiryDays:  7,
		AllowedExpiryDays:  []int{1, 7, 30},
		ShortIDLength:      4,
		ShortIDMaxAttempts: 5,
	}
}

func newTestFileService(files FileStore, store storage.ObjectStore) *FileService {
	return NewFileService(files, store, testUploadConfig(), "https://cdn.example.com/", zap.NewNop())
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func strPtr(s string) *string { return &s }

func TestUpload(t *testing.T) {
	files := newFakeFiles()
	store := storage.NewMemoryStore()
	svc := newTestFileService(files, store)
	fixed := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	before := testutil.ToFloat64(uploadsTotal.WithLabelValues("anonymous"))

	rec, err := svc.Upload(ctx, UploadInput{
		FileName:    "Report.PDF",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4"),
	})
	require.NoError(t, err)

	assert.Len(t, rec.ShortID, 8)
	assert.True(t, strings.HasSuffix(rec.ShortID, ".pdf"))
	assert.Equal(t, rec.ID+".pdf", rec.S3Key)
	assert.Equal(t, "https://cdn.example.com/"+rec.S3Key, rec.PublicURL)
	assert.Equal(t, fixed.AddDate(0, 0, 7), rec.ExpiresAt)
	assert.Equal(t, int64(8), rec.FileSize)
	assert.Nil(t, rec.UserID)
	assert.False(t, rec.IsProtected())
	assert.Equal(t, before+1, testutil.ToFloat64(uploadsTotal.WithLabelValues("anonymous")))

	obj, err := store.Get(ctx, rec.S3Key)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.Equal(t, "Report.PDF", obj.Metadata["originalName"])
	assert.Equal(t, rec.ShortID, obj.Metadata["shortId"])
	assert.NotContains(t, obj.Metadata, "passwordHash")

	stored, err := files.GetByShortID(ctx, rec.ShortID)
	require.NoError(t, err)
	assert.Equal(t, rec.PublicURL, stored.PublicURL)
}

func TestUpload_Options(t *testing.T) {
	files := newFakeFiles()
	svc := newTestFileService(files, storage.NewMemoryStore())
	ctx := context.Background()

	rec, err := svc.Upload(ctx, UploadInput{
		FileName:      "notes",
		Data:          []byte("hello"),
		Password:      "hunter2",
		ExpiresInDays: 30,
		UserID:        strPtr("user-1"),
	})
	require.NoError(t, err)
	assert.Len(t, rec.ShortID, 4)
	assert.Equal(t, defaultContentType, rec.ContentType)
	assert.True(t, rec.IsProtected())
	assert.True(t, access.VerifyPassword(*rec.PasswordHash, "hunter2"))
	assert.True(t, rec.OwnedBy("user-1"))

	_, err = svc.Upload(ctx, UploadInput{FileName: "a.txt", Data: []byte("x"), ExpiresInDays: 3})
	assert.ErrorIs(t, err, ErrInvalidExpiry)

	_, err = svc.Upload(ctx, UploadInput{FileName: "a.txt"})
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestUpload_RetriesOnInsertConflict(t *testing.T) {
	files := newFakeFiles()
	files.conflicts = 2
	svc := newTestFileService(files, storage.NewMemoryStore())

	rec, err := svc.Upload(context.Background(), UploadInput{FileName: "a.txt", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, 3, files.insertCalls)
	assert.Equal(t, 1, files.Len())
	assert.NotEmpty(t, rec.ShortID)
}

func TestUpload_ExhaustedShortIDs(t *testing.T) {
	files := newFakeFiles()
	files.conflicts = 100
	svc := newTestFileService(files, storage.NewMemoryStore())

	_, err := svc.Upload(context.Background(), UploadInput{FileName: "a.txt", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrShortIDExhausted)
}

func TestUpload_StorageFailureReleasesRecord(t *testing.T) {
	files := newFakeFiles()
	svc := newTestFileService(files, &failingStore{MemoryStore: storage.NewMemoryStore(), err: errBackend})

	_, err := svc.Upload(context.Background(), UploadInput{FileName: "a.txt", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, 0, files.Len())
}

func TestUpload_WithoutPublicURL(t *testing.T) {
	svc := NewFileService(newFakeFiles(), storage.NewMemoryStore(), testUploadConfig(), "", zap.NewNop())

	rec, err := svc.Upload(context.Background(), UploadInput{FileName: "a.txt", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "/"+rec.ShortID+"/raw", rec.PublicURL)
}

func TestInfoAndOpen(t *testing.T) {
	files := newFakeFiles()
	store := storage.NewMemoryStore()
	svc := newTestFileService(files, store)
	ctx := context.Background()

	public, err := svc.Upload(ctx, UploadInput{FileName: "a.txt", ContentType: "text/plain", Data: []byte("public")})
	require.NoError(t, err)
	locked, err := svc.Upload(ctx, UploadInput{FileName: "b.txt", ContentType: "text/plain", Data: []byte("secret"), Password: "pw"})
	require.NoError(t, err)

	t.Run("public", func(t *testing.T) {
		rec, obj, err := svc.Open(ctx, public.ShortID, "")
		require.NoError(t, err)
		assert.Equal(t, public.ID, rec.ID)
		assert.Equal(t, "public", string(obj.Data))
	})

	t.Run("extensionless id", func(t *testing.T) {
		files.byShortID["zz99"] = &models.FileRecord{ID: "legacy", ShortID: "zz99", S3Key: "legacy", ExpiresAt: time.Now().Add(time.Hour)}
		rec, err := svc.Info(ctx, "zz99.png", "")
		require.NoError(t, err)
		assert.Equal(t, "legacy", rec.ID)
	})

	t.Run("password", func(t *testing.T) {
		_, err := svc.Info(ctx, locked.ShortID, "")
		assert.ErrorIs(t, err, access.ErrPasswordRequired)

		_, err = svc.Info(ctx, locked.ShortID, "wrong")
		assert.ErrorIs(t, err, access.ErrInvalidPassword)

		_, obj, err := svc.Open(ctx, locked.ShortID, "pw")
		require.NoError(t, err)
		assert.Equal(t, "secret", string(obj.Data))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := svc.Info(ctx, "nope", "")
		assert.ErrorIs(t, err, access.ErrNotFound)
	})

	t.Run("object missing from storage", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, public.S3Key))
		_, _, err := svc.Open(ctx, public.ShortID, "")
		assert.ErrorIs(t, err, ErrUpstream)
	})
}

func TestExpiredFileIsGone(t *testing.T) {
	files := newFakeFiles()
	svc := newTestFileService(files, storage.NewMemoryStore())
	ctx := context.Background()

	svc.now = func() time.Time { return time.Now().AddDate(0, 0, -8) }
	rec, err := svc.Upload(ctx, UploadInput{FileName: "old.txt", Data: []byte("x"), Password: "pw"})
	require.NoError(t, err)

	_, err = svc.Info(ctx, rec.ShortID, "")
	assert.ErrorIs(t, err, access.ErrExpired, "expiry is checked before the password")

	_, _, err = svc.Open(ctx, rec.ShortID, "pw")
	assert.ErrorIs(t, err, access.ErrExpired)
}

func TestContentsAndExtract(t *testing.T) {
	files := newFakeFiles()
	svc := newTestFileService(files, storage.NewMemoryStore())
	ctx := context.Background()

	data := buildZip(t, map[string]string{
		"readme.md":        "# hi",
		"src/main.go":      "package main",
		"src/util/util.go": "package util",
	})
	zipRec, err := svc.Upload(ctx, UploadInput{FileName: "bundle.zip", ContentType: "application/zip", Data: data})
	require.NoError(t, err)

	contents, err := svc.Contents(ctx, zipRec.ShortID, "")
	require.NoError(t, err)
	assert.Equal(t, zipRec.ID, contents.File.ID)
	require.Len(t, contents.Entries, 3)
	require.Len(t, contents.Tree, 2)
	assert.Equal(t, "src", contents.Tree[0].Name)
	assert.True(t, contents.Tree[0].IsDir())
	assert.Equal(t, "readme.md", contents.Tree[1].Name)

	out, err := svc.Extract(ctx, zipRec.ShortID, "", "src/util/util.go")
	require.NoError(t, err)
	assert.Equal(t, "util.go", out.Name)
	assert.Equal(t, "package util", string(out.Data))
	assert.Equal(t, archive.MimeType("util.go"), out.ContentType)

	_, err = svc.Extract(ctx, zipRec.ShortID, "", "util.go")
	assert.ErrorIs(t, err, archive.ErrEntryNotFound)

	_, err = svc.Extract(ctx, zipRec.ShortID, "", "")
	assert.ErrorIs(t, err, ErrPathRequired)

	plain, err := svc.Upload(ctx, UploadInput{FileName: "a.txt", ContentType: "text/plain", Data: []byte("x")})
	require.NoError(t, err)
	_, err = svc.Contents(ctx, plain.ShortID, "")
	assert.ErrorIs(t, err, archive.ErrNotAZipFile)

	broken, err := svc.Upload(ctx, UploadInput{FileName: "broken.zip", ContentType: "application/zip", Data: []byte("not a zip")})
	require.NoError(t, err)
	_, err = svc.Contents(ctx, broken.ShortID, "")
	assert.ErrorIs(t, err, archive.ErrMalformedArchive)
}

func TestSetPassword(t *testing.T) {
	files := newFakeFiles()
	store := storage.NewMemoryStore()
	svc := newTestFileService(files, store)
	ctx := context.Background()

	rec, err := svc.Upload(ctx, UploadInput{FileName: "a.txt", Data: []byte("x"), UserID: strPtr("owner")})
	require.NoError(t, err)

	_, err = svc.SetPassword(ctx, rec.ShortID, "intruder", "pw")
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.SetPassword(ctx, rec.ShortID, "owner", "pw")
	require.NoError(t, err)
	assert.True(t, updated.IsProtected())

	obj, err := store.Get(ctx, rec.S3Key)
	require.NoError(t, err)
	assert.Equal(t, "true", obj.Metadata["passwordProtected"])
	assert.Equal(t, *updated.PasswordHash, obj.Metadata["passwordHash"])

	_, err = svc.Info(ctx, rec.ShortID, "")
	assert.ErrorIs(t, err, access.ErrPasswordRequired)

	cleared, err := svc.SetPassword(ctx, rec.ShortID, "owner", "")
	require.NoError(t, err)
	assert.False(t, cleared.IsProtected())

	obj, err = store.Get(ctx, rec.S3Key)
	require.NoError(t, err)
	assert.NotContains(t, obj.Metadata, "passwordHash")

	_, err = svc.Info(ctx, rec.ShortID, "")
	assert.NoError(t, err)
}

func TestSetPassword_AnonymousFileHasNoOwner(t *testing.T) {
	svc := newTestFileService(newFakeFiles(), storage.NewMemoryStore())
	ctx := context.Background()

	rec, err := svc.Upload(ctx, UploadInput{FileName: "a.txt", Data: []byte("x")})
	require.NoError(t, err)

	_, err = svc.SetPassword(ctx, rec.ShortID, "", "pw")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDelete(t *testing.T) {
	files := newFakeFiles()
	store := storage.NewMemoryStore()
	svc := newTestFileService(files, store)
	ctx := context.Background()

	rec, err := svc.Upload(ctx, UploadInput{FileName: "a.txt", Data: []byte("x"), UserID: strPtr("owner")})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, rec.ShortID, "intruder"), ErrForbidden)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, svc.Delete(ctx, rec.ShortID, "owner"))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, files.Len())

	assert.ErrorIs(t, svc.Delete(ctx, rec.ShortID, "owner"), access.ErrNotFound)
}

func TestDelete_MissingObjectStillRemovesRecord(t *testing.T) {
	files := newFakeFiles()
	store := storage.NewMemoryStore()
	svc := newTestFileService(files, store)
	ctx := context.Background()

	rec, err := svc.Upload(ctx, UploadInput{FileName: "a.txt", Data: []byte("x"), UserID: strPtr("owner")})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, rec.S3Key))

	require.NoError(t, svc.Delete(ctx, rec.ShortID, "owner"))
	assert.Equal(t, 0, files.Len())
}

func TestListForUser(t *testing.T) {
	files := newFakeFiles()
	svc := newTestFileService(files, storage.NewMemoryStore())
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"first.txt", "second.txt"} {
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		_, err := svc.Upload(ctx, UploadInput{FileName: name, Data: []byte("x"), UserID: strPtr("u1"), Password: "pw"})
		require.NoError(t, err)
	}
	_, err := svc.Upload(ctx, UploadInput{FileName: "other.txt", Data: []byte("x"), UserID: strPtr("u2")})
	require.NoError(t, err)

	list, err := svc.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second.txt", list[0].FileName)
	assert.Equal(t, "first.txt", list[1].FileName)
	assert.True(t, list[0].PasswordProtected)

	empty, err := svc.ListForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
