package audit

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/uptrace/bun"

	"lagerapp/infrastructure/sqlite"
	"lagerapp/models"
)

func openAuditTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "audit-test.db")
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

func TestWriteRecordsBeforeAndAfter(t *testing.T) {
	db := openAuditTestDB(t)
	ctx := context.Background()
	svc := NewService()

	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return svc.Write(ctx, tx, "tester", "location.create", "locations", "loc-1",
			nil, map[string]string{"name": "R1-01-A"})
	})
	if err != nil {
		t.Fatalf("write audit log: %v", err)
	}

	logs := make([]models.AuditLog, 0)
	err = db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&logs).Scan(ctx)
	})
	if err != nil {
		t.Fatalf("read audit logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(logs))
	}

	log := logs[0]
	if log.Actor != "tester" || log.Action != "location.create" || log.EntityType != "locations" || log.EntityID != "loc-1" {
		t.Fatalf("unexpected audit row: %+v", log)
	}
	if log.BeforeJSON != "" {
		t.Fatalf("expected empty before for a create, got %q", log.BeforeJSON)
	}
	if log.AfterJSON != `{"name":"R1-01-A"}` {
		t.Fatalf("unexpected after json %q", log.AfterJSON)
	}
	if log.CreatedAt.IsZero() {
		t.Fatalf("expected the row to carry a creation timestamp")
	}
}

func TestWriteRollsBackWithTransaction(t *testing.T) {
	db := openAuditTestDB(t)
	ctx := context.Background()
	svc := NewService()

	boom := context.Canceled
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := svc.Write(ctx, tx, "tester", "x", "y", "z", nil, nil); err != nil {
			return err
		}
		return boom
	})
	if err == nil {
		t.Fatalf("expected the transaction to fail")
	}

	var count int
	err = db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT COUNT(*) FROM audit_logs`).Scan(ctx, &count)
	})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to drop the audit row, got %d", count)
	}
}
