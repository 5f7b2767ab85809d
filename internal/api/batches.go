package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/tubetes/internal/ledger"
	"github.com/erazemk/tubetes/internal/model"
)

// BatchesHandler handles oven intake and withdrawal endpoints.
type BatchesHandler struct {
	Ledger *ledger.Ledger
}

type intakeRequest struct {
	TypeName string     `json:"type_name"`
	Quantity int        `json:"quantity"`
	IntakeAt *time.Time `json:"intake_at"`
}

type withdrawRequest struct {
	Quantity    int        `json:"quantity"`
	Humidity    *int       `json:"humidity"`
	WithdrawnAt *time.Time `json:"withdrawn_at"`
}

type batchView struct {
	model.BatchRecord
	State string `json:"state"`
	Ready bool   `json:"ready"`
}

func (h *BatchesHandler) views(batches []model.BatchRecord) []batchView {
	now := h.Ledger.Now()
	out := make([]batchView, 0, len(batches))
	for _, b := range batches {
		out = append(out, batchView{
			BatchRecord: b,
			State:       b.State(),
			Ready:       b.Open() && b.ReleasedAt(now),
		})
	}
	return out
}

// List handles GET /api/batches. The optional state query filters by
// "open" or "closed".
func (h *BatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state != "" && state != model.BatchStateOpen && state != model.BatchStateClosed {
		jsonError(w, http.StatusBadRequest, "state must be open or closed")
		return
	}

	var batches []model.BatchRecord
	for _, b := range h.Ledger.Batches() {
		if state == "" || b.State() == state {
			batches = append(batches, b)
		}
	}
	jsonResponse(w, http.StatusOK, h.views(batches))
}

// Available handles GET /api/batches/available.
func (h *BatchesHandler) Available(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.views(h.Ledger.AvailableBatches()))
}

// Create handles POST /api/batches. The intake time defaults to now.
func (h *BatchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	intakeAt := h.Ledger.Now()
	if req.IntakeAt != nil {
		intakeAt = *req.IntakeAt
	}

	rec, err := h.Ledger.IntakeBatch(r.Context(), req.TypeName, req.Quantity, intakeAt)
	if err != nil {
		ledgerError(w, r, "batch intake", err)
		return
	}

	slog.Info("batch intake", "user", actor(r.Context()), "index", rec.Index, "type", rec.TypeName,
		"quantity", rec.Quantity, "release_at", rec.ReleaseAt.Format(time.DateTime))
	jsonResponse(w, http.StatusCreated, h.views([]model.BatchRecord{rec})[0])
}

// Withdraw handles POST /api/batches/{index}/withdraw.
func (h *BatchesHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid batch index")
		return
	}

	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Humidity == nil {
		jsonError(w, http.StatusBadRequest, "humidity required")
		return
	}

	var at time.Time
	if req.WithdrawnAt != nil {
		at = *req.WithdrawnAt
	}

	rec, err := h.Ledger.WithdrawBatch(r.Context(), index, at, req.Quantity, *req.Humidity)
	if err != nil {
		ledgerError(w, r, "batch withdrawal", err)
		return
	}

	slog.Info("batch withdrawn", "user", actor(r.Context()), "index", index, "record", rec.Index,
		"type", rec.TypeName, "quantity", req.Quantity, "humidity", *req.Humidity, "remaining", rec.Quantity)
	jsonResponse(w, http.StatusOK, h.views([]model.BatchRecord{rec})[0])
}
