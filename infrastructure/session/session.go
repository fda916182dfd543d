// Package session issues and validates scoped admin credentials.
//
// The credential replaces a global "admin mode" flag: operations requiring
// elevation take it explicitly, and it stops working on expiry or revocation.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"lagerapp/infrastructure/pin"
	"lagerapp/infrastructure/sqlite"
	"lagerapp/settings"
)

const DefaultTTL = 12 * time.Hour

var (
	// ErrNoPINConfigured means no admin PIN digest has been stored yet.
	ErrNoPINConfigured = errors.New("no admin pin configured")
	// ErrWrongPIN means the presented PIN did not match the stored digest.
	ErrWrongPIN = errors.New("wrong pin")
	// ErrNotElevated means the credential is missing, expired or revoked.
	ErrNotElevated = errors.New("admin elevation required")
)

// Credential grants elevated access until ExpiresAt or revocation.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Manager verifies PINs and tracks live admin credentials.
type Manager struct {
	ttl  time.Duration
	mu   sync.Mutex
	live map[string]time.Time
}

// NewManager creates a manager; ttl <= 0 selects DefaultTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		ttl:  ttl,
		live: make(map[string]time.Time),
	}
}

// Login verifies the PIN against the digest stored in settings and issues a
// fresh credential.
func (m *Manager) Login(ctx context.Context, db *sqlite.DB, code string) (Credential, error) {
	digest, err := settings.AdminPINDigest(ctx, db)
	if err != nil {
		return Credential{}, err
	}
	if digest == "" {
		return Credential{}, ErrNoPINConfigured
	}

	ok, err := pin.Verify(code, digest)
	if err != nil {
		return Credential{}, err
	}
	if !ok {
		return Credential{}, ErrWrongPIN
	}

	cred := Credential{Token: newToken(), ExpiresAt: time.Now().Add(m.ttl)}
	m.mu.Lock()
	m.live[cred.Token] = cred.ExpiresAt
	m.mu.Unlock()
	return cred, nil
}

// Validate returns nil when the credential is live and unexpired.
func (m *Manager) Validate(cred Credential) error {
	if cred.Token == "" {
		return ErrNotElevated
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.live[cred.Token]
	if !ok {
		return ErrNotElevated
	}
	if time.Now().After(expiry) {
		delete(m.live, cred.Token)
		return ErrNotElevated
	}
	return nil
}

// Revoke invalidates the credential immediately.
func (m *Manager) Revoke(cred Credential) {
	m.mu.Lock()
	delete(m.live, cred.Token)
	m.mu.Unlock()
}

func newToken() string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
