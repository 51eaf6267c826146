package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"sxbin-backend/internal/models"
	"sxbin-backend/internal/repository"
	"sxbin-backend/internal/storage"
)

type fakeFiles struct {
	mu          sync.Mutex
	byShortID   map[string]*models.FileRecord
	conflicts   int
	insertCalls int
}

func newFakeFiles(records ...*models.FileRecord) *fakeFiles {
	f := &fakeFiles{byShortID: map[string]*models.FileRecord{}}
	for _, r := range records {
		f.byShortID[r.ShortID] = r
	}
	return f
}

func (f *fakeFiles) GetByShortID(_ context.Context, shortID string) (*models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.byShortID[shortID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeFiles) ShortIDExists(_ context.Context, shortID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byShortID[shortID]
	return ok, nil
}

func (f *fakeFiles) Insert(_ context.Context, rec *models.FileRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.conflicts > 0 {
		f.conflicts--
		return &repository.ConflictError{Constraint: "files_short_id_key"}
	}
	if _, ok := f.byShortID[rec.ShortID]; ok {
		return &repository.ConflictError{Constraint: "files_short_id_key"}
	}
	cp := *rec
	f.byShortID[rec.ShortID] = &cp
	return nil
}

func (f *fakeFiles) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, r := range f.byShortID {
		if r.ID == id {
			delete(f.byShortID, k)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeFiles) ListByUser(_ context.Context, userID string) ([]models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FileRecord
	for _, r := range f.byShortID {
		if r.OwnedBy(userID) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (f *fakeFiles) UpdatePasswordHash(_ context.Context, id string, hash *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.byShortID {
		if r.ID == id {
			r.PasswordHash = hash
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeFiles) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byShortID)
}

type failingStore struct {
	*storage.MemoryStore
	err error
}

func (s *failingStore) Put(context.Context, string, []byte, string, map[string]string) error {
	return s.err
}

func (s *failingStore) Get(context.Context, string) (*storage.Object, error) {
	return nil, s.err
}

var errBackend = errors.New("connection refused")

type fakeUserStore struct {
	mu      sync.Mutex
	users   map[string]*models.UserRecord
	raceErr error
}

func newFakeUserStore(users ...*models.UserRecord) *fakeUserStore {
	f := &fakeUserStore{users: map[string]*models.UserRecord{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserStore) find(match func(*models.UserRecord) bool) (*models.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserStore) Create(_ context.Context, u *models.UserRecord) error {
	if f.raceErr != nil {
		return f.raceErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*models.UserRecord, error) {
	return f.find(func(u *models.UserRecord) bool { return u.ID == id })
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (*models.UserRecord, error) {
	return f.find(func(u *models.UserRecord) bool { return u.Username == username })
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.UserRecord, error) {
	return f.find(func(u *models.UserRecord) bool { return u.Email == email })
}

func (f *fakeUserStore) GetByAPIKey(_ context.Context, key string) (*models.UserRecord, error) {
	return f.find(func(u *models.UserRecord) bool { return u.APIKey != nil && *u.APIKey == key })
}

func (f *fakeUserStore) SetAPIKey(_ context.Context, id, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.APIKey = &key
	return nil
}

type fakeAuthenticator struct {
	name     string
	identity *models.Identity
	err      error
}

func (a *fakeAuthenticator) Authenticate(context.Context, string, string) (*models.Identity, error) {
	return a.identity, a.err
}

func (a *fakeAuthenticator) GetName() string {
	return a.name
}
