package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/livia-app/livia/internal/auth"
)

// TokenStore persists the current session between console runs.
type TokenStore interface {
	Load() (*auth.Session, error)
	Save(s *auth.Session) error
	Clear() error
	AccessToken() string
}

// FileTokenStore keeps the session in a YAML file readable only by the owner.
type FileTokenStore struct {
	path string

	mu      sync.Mutex
	loaded  bool
	current *auth.Session
}

// NewFileTokenStore returns a store backed by path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// DefaultTokenPath returns ~/.config/livia/session.yaml.
func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return filepath.Join(dir, "livia", "session.yaml"), nil
}

// Load returns the stored session, or nil when none is stored.
func (f *FileTokenStore) Load() (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadLocked()
}

func (f *FileTokenStore) loadLocked() (*auth.Session, error) {
	if f.loaded {
		return f.current, nil
	}
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.loaded = true
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var s auth.Session
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding session file: %w", err)
	}
	f.loaded = true
	if s.AccessToken == "" {
		return nil, nil
	}
	f.current = &s
	return f.current, nil
}

// Save writes s to disk.
func (f *FileTokenStore) Save(s *auth.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	if err := os.WriteFile(f.path, raw, 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	cp := *s
	f.current = &cp
	f.loaded = true
	return nil
}

// Clear removes the stored session.
func (f *FileTokenStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = nil
	f.loaded = true
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

// AccessToken returns the stored token or "".
func (f *FileTokenStore) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.loadLocked()
	if err != nil || s == nil {
		return ""
	}
	return s.AccessToken
}

// MemoryTokenStore keeps the session in memory only.
type MemoryTokenStore struct {
	mu      sync.Mutex
	current *auth.Session
}

func (m *MemoryTokenStore) Load() (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

func (m *MemoryTokenStore) Save(s *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.current = &cp
	return nil
}

func (m *MemoryTokenStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	return nil
}

func (m *MemoryTokenStore) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.AccessToken
}
