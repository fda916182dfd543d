package exports

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/uptrace/bun"

	"lagerapp/infrastructure/sqlite"
	"lagerapp/models"
)

// WriteInboundCSV writes one semicolon-separated row per document item.
func WriteInboundCSV(ctx context.Context, db *sqlite.DB, w io.Writer) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'
	defer writer.Flush()

	header := []string{"createdAt", "supplier", "docNo", "hasDrawing", "booked", "tempLocation", "articleNo", "qty", "leftQty"}
	if err := writer.Write(header); err != nil {
		return err
	}

	docs, err := allDocuments(ctx, db)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		for _, item := range doc.Items {
			record := []string{
				doc.CreatedAt.Format("2006-01-02 15:04:05"),
				doc.Supplier,
				doc.DocNo,
				yesNo(doc.HasDrawing),
				bookedLabel(doc.Booked),
				doc.TempLocation,
				item.ArticleNo,
				strconv.FormatInt(item.Qty, 10),
				strconv.FormatInt(item.LeftQty, 10),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}
	return writer.Error()
}

func allDocuments(ctx context.Context, db *sqlite.DB) ([]models.Document, error) {
	docs := make([]models.Document, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&docs).OrderExpr("d.created_at ASC, d.id ASC").Scan(ctx)
	})
	return docs, err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func bookedLabel(b bool) string {
	if b {
		return "booked"
	}
	return "open"
}
