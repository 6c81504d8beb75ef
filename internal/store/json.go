package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/menta2k/image-assistant/internal/utils"
)

// JSONStore keeps every account in one JSON document, rewritten in full on
// each mutation. Writes go to a temp file that is renamed over the original.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONStore opens (or lazily creates) the document at path
func NewJSONStore(path string) (*JSONStore, error) {
	if path == "" {
		path = "users.json"
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &JSONStore{path: path}, nil
}

// Get returns the record for username
func (s *JSONStore) Get(_ context.Context, username string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return User{}, err
	}
	u, ok := users[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// Create inserts a new record
func (s *JSONStore) Create(_ context.Context, username string, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := users[username]; ok {
		return ErrExists
	}
	users[username] = user
	return s.save(users)
}

// Update applies fn under the store lock and persists the result
func (s *JSONStore) Update(_ context.Context, username string, fn func(*User) error) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return User{}, err
	}
	u, ok := users[username]
	if !ok {
		return User{}, ErrNotFound
	}
	if err := fn(&u); err != nil {
		return User{}, err
	}
	users[username] = u
	if err := s.save(users); err != nil {
		return User{}, err
	}
	return u, nil
}

// All returns a copy of every record
func (s *JSONStore) All(_ context.Context) (map[string]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Close is a no-op; the document is not held open
func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) load() (map[string]User, error) {
	users := map[string]User{}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return users, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user store: %w", err)
	}
	if len(data) == 0 {
		return users, nil
	}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse user store: %w", err)
	}
	return users, nil
}

func (s *JSONStore) save(users map[string]User) error {
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("failed to marshal user store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write user store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write user store: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("failed to set user store permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace user store: %w", err)
	}
	return nil
}
