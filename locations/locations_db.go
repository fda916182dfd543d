package locations

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/uptrace/bun"

	"lagerapp/infrastructure/audit"
	"lagerapp/infrastructure/session"
	"lagerapp/infrastructure/sqlite"
	"lagerapp/models"
)

var (
	ErrLocationNotFound = errors.New("location not found")
	ErrNameRequired     = errors.New("location name is required")
	ErrNameTaken        = errors.New("location name already exists")
)

// Create adds a new named storage bin. Names are unique.
func Create(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actor, name string) (models.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Location{}, ErrNameRequired
	}

	loc := models.Location{ID: models.NewID(), Name: name}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var count int
		if err := tx.NewRaw(`SELECT COUNT(*) FROM locations WHERE name = ?`, name).Scan(ctx, &count); err != nil {
			return err
		}
		if count > 0 {
			return ErrNameTaken
		}
		if _, err := tx.NewInsert().Model(&loc).Exec(ctx); err != nil {
			return err
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, actor, "location.create", "locations", loc.ID, nil, loc)
		}
		return nil
	})
	if err != nil {
		return models.Location{}, err
	}
	return loc, nil
}

// Get loads one location by id.
func Get(ctx context.Context, db *sqlite.DB, id string) (models.Location, error) {
	var loc models.Location
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&loc).Where("l.id = ?", id).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Location{}, ErrLocationNotFound
	}
	return loc, err
}

// List returns all storage bins ordered by name.
func List(ctx context.Context, db *sqlite.DB) ([]models.Location, error) {
	locs := make([]models.Location, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&locs).OrderExpr("l.name ASC").Scan(ctx)
	})
	return locs, err
}

// Delete removes a storage bin. Past movements keep the bin's name and are
// not touched. Requires elevation.
func Delete(ctx context.Context, db *sqlite.DB, sessions *session.Manager, cred session.Credential, auditSvc *audit.Service, actor, id string) error {
	if err := sessions.Validate(cred); err != nil {
		return err
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var loc models.Location
		err := tx.NewSelect().Model(&loc).Where("l.id = ?", id).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLocationNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model(&loc).WherePK().Exec(ctx); err != nil {
			return err
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, actor, "location.delete", "locations", id, loc, nil)
		}
		return nil
	})
}
