package web

import (
	"net/http"

	"github.com/erazemk/tubetes/internal/model"
	"github.com/erazemk/tubetes/internal/report"
)

// Dashboard handles GET /.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	now := s.Ledger.Now()
	rep := report.Summarize(s.Ledger.Types(), s.Ledger.Batches(), now)

	var ready, curing []model.BatchRecord
	for _, b := range s.Ledger.AvailableBatches() {
		if b.ReleasedAt(now) {
			ready = append(ready, b)
		} else {
			curing = append(curing, b)
		}
	}

	s.Templates.Render(w, "dashboard.html", &struct {
		PageData
		Totals report.Totals
		Ready  []model.BatchRecord
		Curing []model.BatchRecord
	}{
		PageData: s.page(r, "Painel"),
		Totals:   rep.Totals,
		Ready:    ready,
		Curing:   curing,
	})
}
