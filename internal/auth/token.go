// Package auth holds the session token and the login and registration flows.
package auth

import (
	"fmt"
	"sync/atomic"
)

// DefaultTokenKey is the key-value slot holding the bearer token.
const DefaultTokenKey = "okr_auth_token"

// KV is the persistent key-value table behind a TokenStore.
type KV interface {
	GetKV(key string) (string, error)
	SetKV(key, value string) error
	DeleteKV(key string) error
}

// TokenStore is a single-slot token cache backed by KV. Reads never touch the
// database after Load.
type TokenStore struct {
	kv    KV
	key   string
	token atomic.Pointer[string]
}

// NewTokenStore returns a store for key (DefaultTokenKey when empty) and loads
// the persisted value.
func NewTokenStore(kv KV, key string) (*TokenStore, error) {
	if key == "" {
		key = DefaultTokenKey
	}
	s := &TokenStore{kv: kv, key: key}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load refreshes the cached token from KV.
func (s *TokenStore) Load() error {
	value, err := s.kv.GetKV(s.key)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if value == "" {
		s.token.Store(nil)
		return nil
	}
	s.token.Store(&value)
	return nil
}

// Token returns the current token, or "".
func (s *TokenStore) Token() string {
	if s == nil {
		return ""
	}
	if p := s.token.Load(); p != nil {
		return *p
	}
	return ""
}

// Set persists token and makes it current.
func (s *TokenStore) Set(token string) error {
	if token == "" {
		return s.Clear()
	}
	if err := s.kv.SetKV(s.key, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	s.token.Store(&token)
	return nil
}

// Clear removes the token.
func (s *TokenStore) Clear() error {
	if err := s.kv.DeleteKV(s.key); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	s.token.Store(nil)
	return nil
}

// Present reports whether a token is held.
func (s *TokenStore) Present() bool {
	return s.Token() != ""
}
