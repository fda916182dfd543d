package exports

import (
	"bytes"
	"context"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/uptrace/bun"

	"lagerapp/infrastructure/sqlite"
	"lagerapp/models"
)

// InboundReportPDF renders all shipments with their item lines.
func InboundReportPDF(ctx context.Context, db *sqlite.DB) ([]byte, error) {
	docs, err := allDocuments(ctx, db)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0)
	for _, doc := range docs {
		for _, item := range doc.Items {
			rows = append(rows, []string{
				doc.CreatedAt.Format("02/01/2006 15:04"),
				doc.Supplier,
				doc.DocNo,
				yesNo(doc.HasDrawing),
				bookedLabel(doc.Booked),
				doc.TempLocation,
				item.ArticleNo,
				strconv.FormatInt(item.Qty, 10),
				strconv.FormatInt(item.LeftQty, 10),
			})
		}
	}
	header := []string{"Created", "Supplier", "Doc No", "Drawing", "Status", "Temp Location", "Article", "Qty", "Open"}
	return renderTablePDF("Inbound Shipments", header, rows)
}

// OpenStockPDF renders the open quantities still awaiting put-away.
func OpenStockPDF(ctx context.Context, db *sqlite.DB) ([]byte, error) {
	docs, err := allDocuments(ctx, db)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0)
	for _, doc := range docs {
		if doc.Booked {
			continue
		}
		for _, item := range doc.Items {
			if item.LeftQty <= 0 {
				continue
			}
			rows = append(rows, []string{
				item.ArticleNo,
				strconv.FormatInt(item.LeftQty, 10),
				doc.Supplier + " / " + doc.DocNo,
				doc.TempLocation,
			})
		}
	}
	header := []string{"Article", "Available", "Origin", "Temp Location"}
	return renderTablePDF("Open Stock", header, rows)
}

// MovementsPDF renders the movement ledger, newest first.
func MovementsPDF(ctx context.Context, db *sqlite.DB) ([]byte, error) {
	moves := make([]models.Movement, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&moves).OrderExpr("m.ts DESC, m.id DESC").Scan(ctx)
	})
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(moves))
	for _, m := range moves {
		rows = append(rows, []string{
			m.TS.Format("02/01/2006 15:04"),
			m.ArticleNo,
			strconv.FormatInt(m.Qty, 10),
			m.FromLocation,
			m.ToLocation,
			m.Actor,
		})
	}
	header := []string{"Time", "Article", "Qty", "From", "To", "Actor"}
	return renderTablePDF("Movements", header, rows)
}

func renderTablePDF(title string, header []string, rows [][]string) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colW := (pageW - left - right) / float64(len(header))

	pdf.SetFont("Helvetica", "B", 10)
	for _, h := range header {
		pdf.CellFormat(colW, 8, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	if len(rows) == 0 {
		pdf.CellFormat(colW*float64(len(header)), 8, "No data", "1", 1, "L", false, 0, "")
	}
	for _, row := range rows {
		for _, cell := range row {
			pdf.CellFormat(colW, 7, cell, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
