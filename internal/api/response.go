package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/tubetes/internal/ledger"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// ledgerStatus maps a ledger error to an HTTP status.
func ledgerStatus(err error) int {
	switch {
	case ledger.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateType),
		errors.Is(err, ledger.ErrAlreadyWithdrawn),
		errors.Is(err, ledger.ErrNotReleasedYet):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// ledgerError writes the response for a failed ledger operation. Rejections
// are logged as warnings, anything else as an error.
func ledgerError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := ledgerStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", "user", actor(r.Context()), "error", err, "request_id", RequestID(r.Context()))
		jsonError(w, status, "internal error")
		return
	}
	slog.Warn(op+" rejected", "user", actor(r.Context()), "reason", err.Error())
	jsonError(w, status, err.Error())
}
