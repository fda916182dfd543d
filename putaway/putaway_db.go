// Package putaway is the allocation engine: it decrements a shipment item's
// open quantity and appends the matching ledger entry, atomically.
package putaway

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"lagerapp/infrastructure/audit"
	"lagerapp/infrastructure/sqlite"
	"lagerapp/models"
)

// Apply moves input.Qty units of the given article from the document's
// temporary location into the target bin.
//
// The whole read-check-write runs in one immediate write transaction on the
// single-connection write handle, so concurrent movers cannot double-allocate
// an item. Any precondition failure rolls back without touching documents or
// the ledger.
//
// When several items of the document share the article number, the first
// item in authoring order with open quantity is decremented. That tie-break
// is deliberate and fixed; callers presenting aggregated quantities across
// documents must pass the document they mean.
func Apply(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actor string, input MoveInput) (models.Movement, error) {
	if strings.TrimSpace(input.DocumentID) == "" ||
		strings.TrimSpace(input.ArticleNo) == "" ||
		strings.TrimSpace(input.ToLocationID) == "" ||
		input.Qty <= 0 {
		return models.Movement{}, ErrInvalidInput
	}

	var move models.Movement
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var doc models.Document
		err := tx.NewSelect().Model(&doc).Where("d.id = ?", input.DocumentID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDocumentNotFound
		}
		if err != nil {
			return err
		}
		if doc.Booked {
			return ErrDocumentBooked
		}

		itemIdx := -1
		for i, item := range doc.Items {
			if item.ArticleNo == input.ArticleNo && item.LeftQty > 0 {
				itemIdx = i
				break
			}
		}
		if itemIdx < 0 {
			return ErrNoOpenItem
		}
		if input.Qty > doc.Items[itemIdx].LeftQty {
			return ErrQuantityExceedsOpen
		}

		var loc models.Location
		err = tx.NewSelect().Model(&loc).Where("l.id = ?", input.ToLocationID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLocationNotFound
		}
		if err != nil {
			return err
		}

		before := doc.Items[itemIdx]
		doc.Items[itemIdx].LeftQty -= input.Qty
		if _, err := tx.NewUpdate().Model(&doc).Column("items").WherePK().Exec(ctx); err != nil {
			return err
		}

		from := doc.TempLocation
		if from == "" {
			from = GoodsReceiving
		}
		move = models.Movement{
			ID:           models.NewID(),
			TS:           time.Now().UTC(),
			ArticleNo:    input.ArticleNo,
			Qty:          input.Qty,
			FromLocation: from,
			ToLocation:   loc.Name,
			Actor:        actor,
		}
		if _, err := tx.NewInsert().Model(&move).Exec(ctx); err != nil {
			return err
		}

		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, actor, "movement.apply", "movements", move.ID, before, doc.Items[itemIdx])
		}
		return nil
	})
	if err != nil {
		return models.Movement{}, err
	}
	return move, nil
}

// OpenItems derives the "available to place" set: every item line with open
// quantity on a non-booked document, in document creation order and item
// authoring order. The set is recomputed from the store on every call and
// never cached.
func OpenItems(ctx context.Context, db *sqlite.DB) ([]OpenItem, error) {
	docs := make([]models.Document, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&docs).
			Where("d.booked = ?", false).
			OrderExpr("d.created_at ASC, d.id ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}

	open := make([]OpenItem, 0)
	for _, doc := range docs {
		for _, item := range doc.Items {
			if item.LeftQty <= 0 {
				continue
			}
			open = append(open, OpenItem{
				DocumentID:   doc.ID,
				Supplier:     doc.Supplier,
				DocNo:        doc.DocNo,
				TempLocation: doc.TempLocation,
				ArticleNo:    item.ArticleNo,
				LeftQty:      item.LeftQty,
			})
		}
	}
	return open, nil
}
