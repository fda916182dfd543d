package movements

import (
	"context"
	"strings"

	"github.com/uptrace/bun"

	"lagerapp/infrastructure/audit"
	"lagerapp/infrastructure/session"
	"lagerapp/infrastructure/sqlite"
	"lagerapp/models"
)

// List returns the full ledger, newest first.
func List(ctx context.Context, db *sqlite.DB) ([]models.Movement, error) {
	moves := make([]models.Movement, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&moves).OrderExpr("m.ts DESC, m.id DESC").Scan(ctx)
	})
	return moves, err
}

// Filter returns ledger entries whose article number, locations or actor
// contain q, case-insensitive, newest first. An empty q lists everything.
func Filter(ctx context.Context, db *sqlite.DB, q string) ([]models.Movement, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return List(ctx, db)
	}
	moves := make([]models.Movement, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		pattern := "%" + strings.ToLower(q) + "%"
		return tx.NewSelect().Model(&moves).
			Where("lower(m.article_no || ' ' || m.from_location || ' ' || m.to_location || ' ' || m.actor) LIKE ?", pattern).
			OrderExpr("m.ts DESC, m.id DESC").
			Scan(ctx)
	})
	return moves, err
}

// Clear wipes the whole ledger. This bulk clear is the only permitted
// mutation of movement rows and requires elevation.
func Clear(ctx context.Context, db *sqlite.DB, sessions *session.Manager, cred session.Credential, auditSvc *audit.Service, actor string) error {
	if err := sessions.Validate(cred); err != nil {
		return err
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*models.Movement)(nil)).Where("1 = 1").Exec(ctx)
		if err != nil {
			return err
		}
		if auditSvc != nil {
			cleared, _ := res.RowsAffected()
			return auditSvc.Write(ctx, tx, actor, "movements.clear", "movements", "*", map[string]int64{"cleared": cleared}, nil)
		}
		return nil
	})
}
