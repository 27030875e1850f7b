package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"iprescribe-console/internal/model"
)

// Persisted keys. They keep the names the browser build used in localStorage
// so a state file can be inspected next to the web app's storage.
const (
	KeyAuthToken = "authToken"
	KeyUserData  = "userData"
	KeyThemeMode = "theme-mode"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

var ErrInvalidTheme = errors.New("invalid theme mode")

// Store is the durable key/value backing of the console session. The
// credential and the serialized identity are always written and removed
// together.
type Store struct {
	mu      sync.RWMutex
	entries map[string]string

	stateFile string
	persistMu sync.Mutex
	logger    *slog.Logger
}

type Options struct {
	// StateFile is where entries are persisted. Empty keeps them in memory.
	StateFile string
	Logger    *slog.Logger
}

func New() *Store {
	return NewWithOptions(Options{})
}

func NewWithOptions(opts Options) *Store {
	s := &Store{
		entries:   make(map[string]string),
		stateFile: opts.StateFile,
		logger:    opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if s.stateFile != "" {
		if err := s.loadFromFile(s.stateFile); err != nil {
			s.logger.Warn("state persistence: load failed", "path", s.stateFile, "error", err)
		}
	}
	return s
}

type persistedStateFile struct {
	Version int               `json:"version"`
	Entries map[string]string `json:"entries"`
	SavedAt int64             `json:"savedAt"`
}

func (s *Store) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file persistedStateFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != 1 {
		return errors.New("unsupported state file version")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range file.Entries {
		s.entries[k] = v
	}
	return nil
}

func (s *Store) snapshotLocked() map[string]string {
	out := make(map[string]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// persist replaces the state file with entries in a single rename, so a
// reader never observes a half-written file.
func (s *Store) persist(entries map[string]string) error {
	path := s.stateFile
	if path == "" {
		return nil
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	file := persistedStateFile{Version: 1, Entries: entries, SavedAt: time.Now().UnixMilli()}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// mutate applies fn to a copy of the entries, persists the copy and only
// then publishes it. A failed write leaves the previous entries in place.
func (s *Store) mutate(fn func(entries map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snapshotLocked()
	fn(next)
	if err := s.persist(next); err != nil {
		return err
	}
	s.entries = next
	return nil
}

func (s *Store) Save(credential string, identity model.Identity) error {
	if credential == "" {
		return errors.New("empty credential")
	}
	userData, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return s.mutate(func(entries map[string]string) {
		entries[KeyAuthToken] = credential
		entries[KeyUserData] = string(userData)
	})
}

// Load returns the stored credential and identity, or ("", nil). A stored
// identity that does not parse, or an entry stored without its partner,
// clears both entries.
func (s *Store) Load() (string, *model.Identity) {
	s.mu.RLock()
	token, hasToken := s.entries[KeyAuthToken]
	userData, hasUser := s.entries[KeyUserData]
	s.mu.RUnlock()

	if !hasToken && !hasUser {
		return "", nil
	}

	if token == "" || userData == "" {
		s.logger.Warn("stored session incomplete, clearing")
		s.clearQuietly()
		return "", nil
	}

	var identity model.Identity
	if err := json.Unmarshal([]byte(userData), &identity); err != nil {
		s.logger.Warn("stored identity is malformed, clearing", "error", err)
		s.clearQuietly()
		return "", nil
	}
	return token, &identity
}

func (s *Store) clearQuietly() {
	if err := s.Clear(); err != nil {
		s.logger.Error("state persistence: clear failed", "error", err)
	}
}

func (s *Store) Clear() error {
	s.mu.RLock()
	_, hasToken := s.entries[KeyAuthToken]
	_, hasUser := s.entries[KeyUserData]
	s.mu.RUnlock()
	if !hasToken && !hasUser {
		return nil
	}

	return s.mutate(func(entries map[string]string) {
		delete(entries, KeyAuthToken)
		delete(entries, KeyUserData)
	})
}

// Credential returns the stored bearer token without validating it.
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[KeyAuthToken]
}

func (s *Store) ThemeMode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.entries[KeyThemeMode] == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}

func (s *Store) SetThemeMode(mode string) error {
	if mode != ThemeLight && mode != ThemeDark {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, mode)
	}
	return s.mutate(func(entries map[string]string) {
		entries[KeyThemeMode] = mode
	})
}

// Raw exposes a copy of the persisted entries for diagnostics.
func (s *Store) Raw() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) StateFile() string {
	return s.stateFile
}

// setRaw writes a single entry as-is. Tests use it to plant corrupt data.
func (s *Store) setRaw(key, value string) error {
	return s.mutate(func(entries map[string]string) {
		entries[key] = value
	})
}
