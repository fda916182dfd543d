package session

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"lagerapp/infrastructure/sqlite"
	"lagerapp/settings"
)

func openSessionTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "session-test.db")
	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	migrationsDir := filepath.Join(filepath.Dir(file), "..", "sqlite", "migrations")
	if err := sqlite.ApplyMigrations(context.Background(), db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestLoginWithoutPINConfigured(t *testing.T) {
	db := openSessionTestDB(t)
	m := NewManager(0)

	if _, err := m.Login(context.Background(), db, "4711"); !errors.Is(err, ErrNoPINConfigured) {
		t.Fatalf("expected ErrNoPINConfigured, got: %v", err)
	}
}

func TestLoginIssuesValidCredential(t *testing.T) {
	db := openSessionTestDB(t)
	if err := settings.SetAdminPIN(context.Background(), db, "4711"); err != nil {
		t.Fatalf("set admin pin: %v", err)
	}
	m := NewManager(0)

	cred, err := m.Login(context.Background(), db, "4711")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if cred.Token == "" {
		t.Fatalf("expected non-empty token")
	}
	if err := m.Validate(cred); err != nil {
		t.Fatalf("validate fresh credential: %v", err)
	}
}

func TestLoginRejectsWrongPIN(t *testing.T) {
	db := openSessionTestDB(t)
	if err := settings.SetAdminPIN(context.Background(), db, "4711"); err != nil {
		t.Fatalf("set admin pin: %v", err)
	}
	m := NewManager(0)

	if _, err := m.Login(context.Background(), db, "0000"); !errors.Is(err, ErrWrongPIN) {
		t.Fatalf("expected ErrWrongPIN, got: %v", err)
	}
}

func TestValidateRejectsUnknownAndEmpty(t *testing.T) {
	m := NewManager(0)

	if err := m.Validate(Credential{}); !errors.Is(err, ErrNotElevated) {
		t.Fatalf("expected empty credential to fail, got: %v", err)
	}
	if err := m.Validate(Credential{Token: "forged", ExpiresAt: time.Now().Add(time.Hour)}); !errors.Is(err, ErrNotElevated) {
		t.Fatalf("expected unknown token to fail, got: %v", err)
	}
}

func TestRevokeInvalidatesCredential(t *testing.T) {
	db := openSessionTestDB(t)
	if err := settings.SetAdminPIN(context.Background(), db, "4711"); err != nil {
		t.Fatalf("set admin pin: %v", err)
	}
	m := NewManager(0)

	cred, err := m.Login(context.Background(), db, "4711")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	m.Revoke(cred)
	if err := m.Validate(cred); !errors.Is(err, ErrNotElevated) {
		t.Fatalf("expected revoked credential to fail, got: %v", err)
	}
}

func TestExpiredCredentialFailsValidation(t *testing.T) {
	db := openSessionTestDB(t)
	if err := settings.SetAdminPIN(context.Background(), db, "4711"); err != nil {
		t.Fatalf("set admin pin: %v", err)
	}
	m := NewManager(time.Nanosecond)

	cred, err := m.Login(context.Background(), db, "4711")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := m.Validate(cred); !errors.Is(err, ErrNotElevated) {
		t.Fatalf("expected expired credential to fail, got: %v", err)
	}
}
