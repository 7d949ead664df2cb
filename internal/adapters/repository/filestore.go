package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// envelope is the on-disk format. State is base64 encoded by encoding/json.
type envelope struct {
	ID      uuid.UUID `json:"id"`
	SavedAt time.Time `json:"saved_at"`
	State   []byte    `json:"state"`
}

// FileStore keeps the blob in a single JSON file, replaced atomically on save.
type FileStore struct {
	mu   sync.Mutex
	path string
	mode os.FileMode
	now  func() time.Time

	lastID uuid.UUID
}

// NewFileStore creates a store writing to path.
func NewFileStore(path string, opts ...Option) *FileStore {
	s := &FileStore{
		path: path,
		mode: 0o600,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file the store writes to.
func (s *FileStore) Path() string { return s.path }

// LastID returns the envelope id of the most recent save or load.
func (s *FileStore) LastID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	env := envelope{ID: uuid.New(), SavedAt: s.now().UTC(), State: blob}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := os.Chmod(tmpName, s.mode); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	s.lastID = env.ID
	return nil
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if env.ID == uuid.Nil || env.State == nil {
		return nil, fmt.Errorf("%w: missing id or state", ErrCorruptState)
	}

	s.lastID = env.ID
	return env.State, nil
}

// MemoryStore keeps the blob in memory. It is used when no state path is
// configured and by tests.
type MemoryStore struct {
	mu    sync.Mutex
	blob  []byte
	saves int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = append([]byte(nil), blob...)
	m.saves++
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blob == nil {
		return nil, ErrNoState
	}
	return append([]byte(nil), m.blob...), nil
}

// Saves reports how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
