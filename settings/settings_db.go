package settings

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"lagerapp/infrastructure/pin"
	"lagerapp/infrastructure/sqlite"
	"lagerapp/models"
)

// Setting names used by the engine.
const (
	KeyRelayURL       = "relay_url"
	KeyAdminPINDigest = "admin_pin_digest"
)

// Get returns the stored value for name, or "" when the setting is absent.
func Get(ctx context.Context, db *sqlite.DB, name string) (string, error) {
	var setting models.Setting
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&setting).Where("name = ?", name).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// Set upserts a setting value.
func Set(ctx context.Context, db *sqlite.DB, name, value string) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO settings (name, value) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, value)
		return err
	})
}

// RelayURL returns the configured update relay address; "" means no relay.
func RelayURL(ctx context.Context, db *sqlite.DB) (string, error) {
	return Get(ctx, db, KeyRelayURL)
}

// SetRelayURL stores the update relay address. An empty value disables the relay.
func SetRelayURL(ctx context.Context, db *sqlite.DB, url string) error {
	return Set(ctx, db, KeyRelayURL, url)
}

// AdminPINDigest returns the stored argon2id digest of the admin PIN, or ""
// when no PIN has been configured.
func AdminPINDigest(ctx context.Context, db *sqlite.DB) (string, error) {
	return Get(ctx, db, KeyAdminPINDigest)
}

// SetAdminPIN validates the PIN against the digit policy, digests it and
// stores the digest. The plain PIN is never persisted.
func SetAdminPIN(ctx context.Context, db *sqlite.DB, code string) error {
	digest, err := pin.CreateDigest(code)
	if err != nil {
		return err
	}
	return Set(ctx, db, KeyAdminPINDigest, digest)
}
