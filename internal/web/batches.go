package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/tubetes/internal/ledger"
	"github.com/erazemk/tubetes/internal/model"
)

type intakePage struct {
	PageData
	Types []model.TypeDefinition
	Now   time.Time
}

// IntakePage handles GET /intake.
func (s *Server) IntakePage(w http.ResponseWriter, r *http.Request) {
	s.renderIntake(w, r, "", "")
}

func (s *Server) renderIntake(w http.ResponseWriter, r *http.Request, errMsg, success string) {
	data := &intakePage{
		PageData: s.page(r, "Entrada na estufa"),
		Types:    s.Ledger.Types(),
		Now:      s.Ledger.Now(),
	}
	data.Error, data.Success = errMsg, success
	s.Templates.Render(w, "intake.html", data)
}

// IntakeSubmit handles POST /intake.
func (s *Server) IntakeSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	qty, err := strconv.Atoi(r.FormValue("quantity"))
	if err != nil {
		s.renderIntake(w, r, "Quantidade deve ser um número inteiro.", "")
		return
	}
	at, err := s.parseInputTime(r.FormValue("intake_at"))
	if err != nil {
		s.renderIntake(w, r, "Data de entrada inválida.", "")
		return
	}
	if at.IsZero() {
		at = s.Ledger.Now()
	}

	rec, err := s.Ledger.IntakeBatch(r.Context(), r.FormValue("type_name"), qty, at)
	if err != nil {
		s.logLedgerError("batch intake", claims.Username, err)
		s.renderIntake(w, r, ledgerMessage(err), "")
		return
	}

	slog.Info("batch intake", "user", claims.Username, "index", rec.Index, "type", rec.TypeName,
		"quantity", rec.Quantity, "release_at", rec.ReleaseAt.Format(time.DateTime))
	s.renderIntake(w, r, "", "Entrada registrada. Retirada prevista: "+
		rec.ReleaseAt.In(s.Location).Format(displayLayout)+".")
}

type withdrawRow struct {
	model.BatchRecord
	Ready bool
}

type withdrawPage struct {
	PageData
	Batches []withdrawRow
}

// WithdrawPage handles GET /withdraw. Only open batches are offered.
func (s *Server) WithdrawPage(w http.ResponseWriter, r *http.Request) {
	s.renderWithdraw(w, r, "", "")
}

func (s *Server) renderWithdraw(w http.ResponseWriter, r *http.Request, errMsg, success string) {
	now := s.Ledger.Now()
	var rows []withdrawRow
	for _, b := range s.Ledger.AvailableBatches() {
		rows = append(rows, withdrawRow{BatchRecord: b, Ready: b.ReleasedAt(now)})
	}

	data := &withdrawPage{
		PageData: s.page(r, "Retirada da estufa"),
		Batches:  rows,
	}
	data.Error, data.Success = errMsg, success
	s.Templates.Render(w, "withdraw.html", data)
}

// WithdrawSubmit handles POST /withdraw/{index}.
func (s *Server) WithdrawSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.renderWithdraw(w, r, "Lote inválido.", "")
		return
	}
	qty, err := strconv.Atoi(r.FormValue("quantity"))
	if err != nil {
		s.renderWithdraw(w, r, "Quantidade deve ser um número inteiro.", "")
		return
	}
	humidity, err := strconv.Atoi(r.FormValue("humidity"))
	if err != nil {
		s.renderWithdraw(w, r, "Umidade deve ser um número inteiro entre 0 e 100.", "")
		return
	}
	at, err := s.parseInputTime(r.FormValue("withdrawn_at"))
	if err != nil {
		s.renderWithdraw(w, r, "Data de retirada inválida.", "")
		return
	}

	rec, err := s.Ledger.WithdrawBatch(r.Context(), index, at, qty, humidity)
	if err != nil {
		s.logLedgerError("batch withdrawal", claims.Username, err)
		msg := ledgerMessage(err)
		if errors.Is(err, ledger.ErrNotReleasedYet) {
			if b, berr := s.Ledger.Batch(index); berr == nil {
				msg = "Lote ainda não liberado. Retirada prevista: " +
					b.ReleaseAt.In(s.Location).Format(displayLayout) + "."
			}
		}
		s.renderWithdraw(w, r, msg, "")
		return
	}

	slog.Info("batch withdrawn", "user", claims.Username, "index", index, "record", rec.Index,
		"type", rec.TypeName, "quantity", qty, "humidity", humidity, "remaining", rec.Quantity)
	s.renderWithdraw(w, r, "", "Retirada registrada: "+strconv.Itoa(qty)+" x "+rec.TypeName+".")
}

// parseInputTime parses a datetime-local form value in the server's zone.
// An empty value is the zero time, which the ledger treats as now.
func (s *Server) parseInputTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(inputLayout, v, s.Location)
}
