package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/tubetes/internal/export"
	"github.com/erazemk/tubetes/internal/flatfile"
	"github.com/erazemk/tubetes/internal/ledger"
	"github.com/erazemk/tubetes/internal/report"
)

// ReportsHandler serves the summary report and ledger downloads.
type ReportsHandler struct {
	Ledger *ledger.Ledger
	// Location is used for timestamps in downloaded files.
	Location *time.Location
}

// Report handles GET /api/report.
func (h *ReportsHandler) Report(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, report.Summarize(h.Ledger.Types(), h.Ledger.Batches(), h.Ledger.Now()))
}

// ExportXLSX handles GET /api/export.xlsx.
func (h *ReportsHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	batches := h.Ledger.Batches()
	rep := report.Summarize(h.Ledger.Types(), batches, h.Ledger.Now())

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, batches, rep, h.Location); err != nil {
		slog.Error("failed to export workbook", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to export")
		return
	}
	h.attach(w, export.ContentType, "xlsx", buf.Bytes())
}

// ExportCSV handles GET /api/export.csv. The file has the same layout as the
// ledger table on disk.
func (h *ReportsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := flatfile.EncodeBatches(&buf, h.Ledger.Batches(), h.Location); err != nil {
		slog.Error("failed to export csv", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to export")
		return
	}
	h.attach(w, "text/csv; charset=utf-8", "csv", buf.Bytes())
}

func (h *ReportsHandler) attach(w http.ResponseWriter, contentType, ext string, data []byte) {
	name := fmt.Sprintf("inventario-%s.%s", h.Ledger.Now().In(h.Location).Format("20060102-1504"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}
