// Package token persists the single bearer credential a siteadmin profile
// holds. Reads and writes never fail from the caller's point of view: a
// broken backend reads as "no credential".
package token

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// StorageKey is the key under which the credential is kept in both backends.
const StorageKey = "token"

// Credential is an opaque bearer string with an optional expiry in Unix
// seconds. Zero ExpiresAt means no expiry is known.
type Credential struct {
	Token     string
	ExpiresAt int64
}

// Store is the credential contract shared by the HTTP client and the CLI.
// Get returns "" when no credential is present.
type Store interface {
	Get() string
	Set(token string, expiresAt int64)
	Clear()
}

// LocalStorage is a string key/value store.
type LocalStorage interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// DualStore keeps the credential in a key/value store and mirrors it into a
// cookie file. The key/value store is authoritative when it holds a value.
type DualStore struct {
	local  LocalStorage
	cookie *CookieFile
	logger zerolog.Logger
}

// NewDualStore composes a DualStore from its backends.
func NewDualStore(local LocalStorage, cookie *CookieFile, logger zerolog.Logger) *DualStore {
	return &DualStore{
		local:  local,
		cookie: cookie,
		logger: logger.With().Str("component", "token_store").Logger(),
	}
}

// Open creates the default DualStore under dir: state.db for local storage
// and a cookies file. The returned close func releases the database.
func Open(dir string, logger zerolog.Logger) (*DualStore, func() error, error) {
	local, err := OpenSQLiteStorage(filepath.Join(dir, "state.db"), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open local storage: %w", err)
	}
	cookie := NewCookieFile(filepath.Join(dir, "cookies"))
	return NewDualStore(local, cookie, logger), local.Close, nil
}

// Get returns the local-storage value if set, else the cookie value, else "".
func (s *DualStore) Get() string {
	ctx := context.Background()
	if s.local != nil {
		val, err := s.local.GetItem(ctx, StorageKey)
		if err != nil {
			s.logger.Debug().Err(err).Msg("read local storage")
		} else if v := strings.TrimSpace(val); v != "" {
			return v
		}
	}
	if s.cookie != nil {
		val, err := s.cookie.Read()
		if err != nil {
			s.logger.Debug().Err(err).Msg("read cookie")
			return ""
		}
		return strings.TrimSpace(val)
	}
	return ""
}

// Set writes the credential to both backends.
func (s *DualStore) Set(token string, expiresAt int64) {
	if s.local != nil {
		if err := s.local.SetItem(context.Background(), StorageKey, token); err != nil {
			s.logger.Debug().Err(err).Msg("write local storage")
		}
	}
	if s.cookie != nil {
		if err := s.cookie.Write(token, expiresAt); err != nil {
			s.logger.Debug().Err(err).Msg("write cookie")
		}
	}
}

// Clear removes the local-storage entry and expires the cookie.
func (s *DualStore) Clear() {
	if s.local != nil {
		if err := s.local.RemoveItem(context.Background(), StorageKey); err != nil {
			s.logger.Debug().Err(err).Msg("remove local storage")
		}
	}
	if s.cookie != nil {
		if err := s.cookie.Expire(); err != nil {
			s.logger.Debug().Err(err).Msg("expire cookie")
		}
	}
}

// MemoryStore is an in-process Store. Last write wins.
type MemoryStore struct {
	mu   sync.RWMutex
	cred Credential
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the trimmed token or "".
func (m *MemoryStore) Get() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return strings.TrimSpace(m.cred.Token)
}

// Set replaces the credential.
func (m *MemoryStore) Set(token string, expiresAt int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = Credential{Token: token, ExpiresAt: expiresAt}
}

// Clear drops the credential.
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = Credential{}
}

// Credential returns a copy of the stored credential.
func (m *MemoryStore) Credential() Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred
}
