package inbound

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"lagerapp/infrastructure/audit"
	"lagerapp/infrastructure/session"
	"lagerapp/infrastructure/sqlite"
	"lagerapp/models"
)

// CreateDocument validates and persists a new shipment document together
// with any captured photos, all in one write transaction. Item lines start
// with leftQty equal to qty in authoring order.
func CreateDocument(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actor string, input DocumentInput) (models.Document, error) {
	supplier := strings.TrimSpace(input.Supplier)
	docNo := strings.TrimSpace(input.DocNo)
	if supplier == "" || docNo == "" {
		return models.Document{}, ErrMissingFields
	}

	items := make(models.ItemList, 0, len(input.Items))
	for _, line := range input.Items {
		articleNo := strings.TrimSpace(line.ArticleNo)
		if articleNo == "" || line.Qty <= 0 {
			return models.Document{}, ErrBadItemLine
		}
		items = append(items, models.Item{
			ID:        models.NewID(),
			ArticleNo: articleNo,
			Qty:       line.Qty,
			LeftQty:   line.Qty,
		})
	}
	if len(items) == 0 {
		return models.Document{}, ErrNoItems
	}

	doc := models.Document{
		ID:           models.NewID(),
		CreatedAt:    time.Now().UTC(),
		Supplier:     supplier,
		DocNo:        docNo,
		HasDrawing:   input.HasDrawing,
		Booked:       false,
		TempLocation: strings.TrimSpace(input.TempLocation),
		Items:        items,
	}

	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&doc).Exec(ctx); err != nil {
			return err
		}

		var pageSeq int64
		for _, img := range input.Images {
			mime := img.MIME
			if mime == "" {
				mime = "image/jpeg"
			}
			image := models.DocumentImage{
				DocumentID: doc.ID,
				Blob:       img.Blob,
				MIME:       mime,
				Kind:       img.Kind,
			}
			// Only the first temp-location photo is kept; additional ones
			// are stored as shipment pages.
			if img.Kind == models.ImageKindTempLocation && doc.TempLocationPhoto == "" {
				image.Key = models.TempImageKey(doc.ID)
				image.Seq = -1
				doc.TempLocationPhoto = image.Key
			} else {
				image.Kind = models.ImageKindShipmentPage
				image.Key = models.ImageKey(doc.ID, pageSeq)
				image.Seq = pageSeq
				pageSeq++
			}
			if _, err := tx.NewInsert().Model(&image).Exec(ctx); err != nil {
				return err
			}
		}
		if doc.TempLocationPhoto != "" {
			if _, err := tx.NewUpdate().Model(&doc).Column("temp_location_photo").WherePK().Exec(ctx); err != nil {
				return err
			}
		}

		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, actor, "document.create", "documents", doc.ID, nil, doc)
		}
		return nil
	})
	if err != nil {
		return models.Document{}, err
	}
	return doc, nil
}

// GetDocument loads one document by id.
func GetDocument(ctx context.Context, db *sqlite.DB, id string) (models.Document, error) {
	var doc models.Document
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&doc).Where("d.id = ?", id).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Document{}, ErrDocumentNotFound
	}
	return doc, err
}

// ListDocuments returns all documents in creation order.
func ListDocuments(ctx context.Context, db *sqlite.DB) ([]models.Document, error) {
	docs := make([]models.Document, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&docs).OrderExpr("d.created_at ASC, d.id ASC").Scan(ctx)
	})
	return docs, err
}

// ListByBooked is the equality lookup on the booked secondary index.
func ListByBooked(ctx context.Context, db *sqlite.DB, booked bool) ([]models.Document, error) {
	docs := make([]models.Document, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&docs).Where("d.booked = ?", booked).OrderExpr("d.created_at ASC, d.id ASC").Scan(ctx)
	})
	return docs, err
}

// ListByDrawing is the equality lookup on the has_drawing secondary index.
func ListByDrawing(ctx context.Context, db *sqlite.DB, hasDrawing bool) ([]models.Document, error) {
	docs := make([]models.Document, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&docs).Where("d.has_drawing = ?", hasDrawing).OrderExpr("d.created_at ASC, d.id ASC").Scan(ctx)
	})
	return docs, err
}

// AwaitingBooking partitions the intake views: unbooked documents with or
// without a technical drawing.
func AwaitingBooking(ctx context.Context, db *sqlite.DB, withDrawing bool) ([]models.Document, error) {
	docs := make([]models.Document, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&docs).
			Where("d.booked = ?", false).
			Where("d.has_drawing = ?", withDrawing).
			OrderExpr("d.created_at ASC, d.id ASC").
			Scan(ctx)
	})
	return docs, err
}

// BookDocument marks the document as booked. Booked documents are terminal
// for allocation: their open items are no longer offered for movement.
func BookDocument(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actor, id string) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var doc models.Document
		err := tx.NewSelect().Model(&doc).Where("d.id = ?", id).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDocumentNotFound
		}
		if err != nil {
			return err
		}
		before := doc
		doc.Booked = true
		if _, err := tx.NewUpdate().Model(&doc).Column("booked").WherePK().Exec(ctx); err != nil {
			return err
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, actor, "document.book", "documents", doc.ID, before, doc)
		}
		return nil
	})
}

// DeleteDocument removes the document and every image it owns in one write
// transaction, so the cascade cannot complete partially. Requires elevation.
func DeleteDocument(ctx context.Context, db *sqlite.DB, sessions *session.Manager, cred session.Credential, auditSvc *audit.Service, actor, id string) error {
	if err := sessions.Validate(cred); err != nil {
		return err
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var doc models.Document
		err := tx.NewSelect().Model(&doc).Where("d.id = ?", id).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDocumentNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.NewDelete().Model((*models.DocumentImage)(nil)).Where("document_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model(&doc).WherePK().Exec(ctx); err != nil {
			return err
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, actor, "document.delete", "documents", id, doc, nil)
		}
		return nil
	})
}

// PutImage upserts a photo for an existing document.
func PutImage(ctx context.Context, db *sqlite.DB, image models.DocumentImage) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var count int
		if err := tx.NewRaw(`SELECT COUNT(*) FROM documents WHERE id = ?`, image.DocumentID).Scan(ctx, &count); err != nil {
			return err
		}
		if count == 0 {
			return ErrDocumentNotFound
		}
		if image.MIME == "" {
			image.MIME = "image/jpeg"
		}
		_, err := tx.NewInsert().Model(&image).On("CONFLICT (key) DO UPDATE").
			Set("blob = excluded.blob").
			Set("mime = excluded.mime").
			Set("seq = excluded.seq").
			Set("kind = excluded.kind").
			Exec(ctx)
		return err
	})
}

// GetImage loads one photo by its composite key.
func GetImage(ctx context.Context, db *sqlite.DB, key string) (models.DocumentImage, error) {
	var image models.DocumentImage
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&image).Where("di.key = ?", key).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.DocumentImage{}, ErrImageNotFound
	}
	return image, err
}

// ListImages returns a document's photos, temp-location photo first, then
// shipment pages in capture order.
func ListImages(ctx context.Context, db *sqlite.DB, documentID string) ([]models.DocumentImage, error) {
	images := make([]models.DocumentImage, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&images).
			Where("di.document_id = ?", documentID).
			OrderExpr("di.seq ASC, di.key ASC").
			Scan(ctx)
	})
	return images, err
}
