package exports

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"
	"github.com/uptrace/bun"

	"lagerapp/infrastructure/sqlite"
	"lagerapp/models"
)

// LocationLabelsPDF renders one printable label page per storage bin with a
// Code128 barcode of the bin name.
func LocationLabelsPDF(ctx context.Context, db *sqlite.DB) ([]byte, error) {
	locs := make([]models.Location, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&locs).OrderExpr("l.name ASC").Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("no locations to label")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Location Labels", false)

	for _, loc := range locs {
		barcodePNG, err := renderCode128PNG(loc.Name, 1200, 260)
		if err != nil {
			return nil, err
		}

		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 52)
		pdf.CellFormat(0, 30, loc.Name, "", 1, "C", false, 0, "")

		opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		imageName := "location-barcode-" + loc.ID
		pdf.RegisterImageOptionsReader(imageName, opt, bytes.NewReader(barcodePNG))
		pageW, _ := pdf.GetPageSize()
		imgW := 240.0
		imgH := 56.0
		x := (pageW - imgW) / 2
		y := 80.0
		pdf.ImageOptions(imageName, x, y, imgW, imgH, false, opt, 0, "")

		pdf.SetY(y + imgH + 6)
		pdf.SetFont("Helvetica", "B", 24)
		pdf.CellFormat(0, 12, loc.Name, "", 1, "C", false, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func renderCode128PNG(value string, width, height int) ([]byte, error) {
	code, err := code128.Encode(value)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return nil, err
	}
	normalized := image.NewNRGBA(scaled.Bounds())
	draw.Draw(normalized, scaled.Bounds(), scaled, scaled.Bounds().Min, draw.Src)

	var barcodePNG bytes.Buffer
	if err := png.Encode(&barcodePNG, normalized); err != nil {
		return nil, err
	}
	return barcodePNG.Bytes(), nil
}
