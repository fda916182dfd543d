package exports

import (
	"context"
	"net/http"
	"time"

	"lagerapp/infrastructure/sqlite"
)

func InboundCSVHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=inbound-"+time.Now().Format("2006-01-02")+".csv")
		if err := WriteInboundCSV(r.Context(), db, w); err != nil {
			http.Error(w, "failed to export csv", http.StatusInternalServerError)
		}
	}
}

func InboundPDFHandler(db *sqlite.DB) http.HandlerFunc {
	return pdfHandler(db, "inbound.pdf", InboundReportPDF)
}

func OpenStockPDFHandler(db *sqlite.DB) http.HandlerFunc {
	return pdfHandler(db, "stock.pdf", OpenStockPDF)
}

func MovementsPDFHandler(db *sqlite.DB) http.HandlerFunc {
	return pdfHandler(db, "movements.pdf", MovementsPDF)
}

func LocationLabelsPDFHandler(db *sqlite.DB) http.HandlerFunc {
	return pdfHandler(db, "location-labels.pdf", LocationLabelsPDF)
}

func pdfHandler(db *sqlite.DB, filename string, render func(context.Context, *sqlite.DB) ([]byte, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pdfBytes, err := render(r.Context(), db)
		if err != nil {
			http.Error(w, "failed to render pdf", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename="+filename)
		_, _ = w.Write(pdfBytes)
	}
}
