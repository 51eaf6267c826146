package api

import (
	"context"
	"errors"
	"sort"
	"sync"

	"sxbin-backend/internal/models"
	"sxbin-backend/internal/repository"
	"sxbin-backend/internal/storage"
)

type memFiles struct {
	mu    sync.Mutex
	files map[string]*models.FileRecord
}

func newMemFiles() *memFiles {
	return &memFiles{files: map[string]*models.FileRecord{}}
}

func (m *memFiles) GetByShortID(_ context.Context, shortID string) (*models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[shortID]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memFiles) ShortIDExists(_ context.Context, shortID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[shortID]
	return ok, nil
}

func (m *memFiles) Insert(_ context.Context, f *models.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[f.ShortID]; ok {
		return &repository.ConflictError{Constraint: "files_short_id_key"}
	}
	cp := *f
	m.files[f.ShortID] = &cp
	return nil
}

func (m *memFiles) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, f := range m.files {
		if f.ID == id {
			delete(m.files, k)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memFiles) ListByUser(_ context.Context, userID string) ([]models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.FileRecord
	for _, f := range m.files {
		if f.OwnedBy(userID) {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (m *memFiles) UpdatePasswordHash(_ context.Context, id string, hash *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files {
		if f.ID == id {
			f.PasswordHash = hash
			return nil
		}
	}
	return repository.ErrNotFound
}

// expire moves a record's expiry into the past.
func (m *memFiles) expire(shortID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.files[shortID]
	f.ExpiresAt = f.UploadedAt.AddDate(0, 0, -1)
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.UserRecord
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]*models.UserRecord{}}
}

func (m *memUsers) find(match func(*models.UserRecord) bool) (*models.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, u *models.UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.UserRecord, error) {
	return m.find(func(u *models.UserRecord) bool { return u.ID == id })
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*models.UserRecord, error) {
	return m.find(func(u *models.UserRecord) bool { return u.Username == username })
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.UserRecord, error) {
	return m.find(func(u *models.UserRecord) bool { return u.Email == email })
}

func (m *memUsers) GetByAPIKey(_ context.Context, key string) (*models.UserRecord, error) {
	return m.find(func(u *models.UserRecord) bool { return u.APIKey != nil && *u.APIKey == key })
}

func (m *memUsers) SetAPIKey(_ context.Context, id, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.APIKey = &key
	return nil
}

type brokenStore struct {
	*storage.MemoryStore
}

func (s *brokenStore) Get(context.Context, string) (*storage.Object, error) {
	return nil, errors.New("bucket unreachable")
}

type readiness struct {
	err error
}

func (r readiness) CheckReady(context.Context) error {
	return r.err
}
