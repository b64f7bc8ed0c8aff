// Package session stores the authenticated crawl cookie. The system keychain
// is the primary backend with a file fallback for headless hosts.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "wbscraper"
	keyringKey     = "weibo_session"
)

// Errors
var (
	ErrNotFound       = errors.New("session not found")
	ErrInvalidSession = errors.New("invalid session")
)

// Session holds the cookie used for authenticated requests.
type Session struct {
	Cookie       string    `json:"cookie"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// SessionStore is the interface for persisting the crawl session.
type SessionStore interface {
	// Save persists the session
	Save(s *Session) error

	// Load retrieves the stored session
	Load() (*Session, error)

	// Clear removes the stored session
	Clear() error
}

// Manager tries each backend in order, keychain first.
type Manager struct {
	stores []SessionStore
}

// NewManager creates a session manager with the available backends.
func NewManager(configDir string) (*Manager, error) {
	var stores []SessionStore

	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	stores = append(stores, NewFileStore(filepath.Join(configDir, "session.json")))

	return &Manager{stores: stores}, nil
}

// Save writes the session to the first backend that accepts it.
func (m *Manager) Save(s *Session) error {
	if s == nil || s.Cookie == "" {
		return ErrInvalidSession
	}
	s.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Save(s); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("failed to save session: %w", lastErr)
}

// Load returns the session from the first backend that has one.
func (m *Manager) Load() (*Session, error) {
	for _, store := range m.stores {
		if s, err := store.Load(); err == nil && s != nil {
			return s, nil
		}
	}
	return nil, ErrNotFound
}

// Clear removes the session from every backend.
func (m *Manager) Clear() error {
	cleared := false
	for _, store := range m.stores {
		if err := store.Clear(); err == nil {
			cleared = true
		}
	}
	if !cleared {
		return ErrNotFound
	}
	return nil
}

// KeyringStore keeps the session in the system keychain.
type KeyringStore struct{}

// NewKeyringStore probes keychain availability before returning a store.
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Save stores the session in the keychain.
func (k *KeyringStore) Save(s *Session) error {
	if s == nil || s.Cookie == "" {
		return ErrInvalidSession
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := keyring.Set(keyringService, keyringKey, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Load retrieves the session from the keychain.
func (k *KeyringStore) Load() (*Session, error) {
	data, err := keyring.Get(keyringService, keyringKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// Clear deletes the session from the keychain.
func (k *KeyringStore) Clear() error {
	err := keyring.Delete(keyringService, keyringKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// FileStore keeps the session in a mode-0600 JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save writes the session file.
func (f *FileStore) Save(s *Session) error {
	if s == nil || s.Cookie == "" {
		return ErrInvalidSession
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load reads the session file.
func (f *FileStore) Load() (*Session, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if s.Cookie == "" {
		return nil, ErrNotFound
	}
	return &s, nil
}

// Clear removes the session file.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Sanitize masks the cookie for log output.
func Sanitize(s *Session) string {
	if s == nil {
		return ""
	}
	return maskString(s.Cookie)
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
