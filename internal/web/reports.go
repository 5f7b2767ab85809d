package web

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/tubetes/internal/export"
	"github.com/erazemk/tubetes/internal/flatfile"
	"github.com/erazemk/tubetes/internal/model"
	"github.com/erazemk/tubetes/internal/report"
)

// ReportsPage handles GET /reports: the per-type summary and the full ledger.
func (s *Server) ReportsPage(w http.ResponseWriter, r *http.Request) {
	batches := s.Ledger.Batches()
	s.Templates.Render(w, "reports.html", &struct {
		PageData
		Report  report.Report
		Batches []model.BatchRecord
	}{
		PageData: s.page(r, "Relatórios"),
		Report:   report.Summarize(s.Ledger.Types(), batches, s.Ledger.Now()),
		Batches:  batches,
	})
}

// ExportXLSX handles GET /reports/inventario.xlsx.
func (s *Server) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	batches := s.Ledger.Batches()
	rep := report.Summarize(s.Ledger.Types(), batches, s.Ledger.Now())

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, batches, rep, s.Location); err != nil {
		slog.Error("failed to export workbook", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.download(w, export.ContentType, "xlsx", buf.Bytes())
}

// ExportCSV handles GET /reports/inventario.csv.
func (s *Server) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := flatfile.EncodeBatches(&buf, s.Ledger.Batches(), s.Location); err != nil {
		slog.Error("failed to export csv", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.download(w, "text/csv; charset=utf-8", "csv", buf.Bytes())
}

func (s *Server) download(w http.ResponseWriter, contentType, ext string, data []byte) {
	name := fmt.Sprintf("inventario-%s.%s", s.Ledger.Now().In(s.Location).Format("20060102-1504"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write download", "error", err)
	}
}
