package web

import (
	"errors"
	"log/slog"

	"github.com/erazemk/tubetes/internal/ledger"
)

var fieldNames = map[string]string{
	"type_name":    "tipo",
	"cure_hours":   "tempo de estufa",
	"quantity":     "quantidade",
	"humidity":     "umidade",
	"intake_at":    "data de entrada",
	"withdrawn_at": "data de retirada",
}

// ledgerMessage turns a ledger error into a message for the operator.
func ledgerMessage(err error) string {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		name := fieldNames[verr.Field]
		if name == "" {
			name = verr.Field
		}
		return "Valor inválido para " + name + ": " + verr.Message
	case errors.Is(err, ledger.ErrDuplicateType):
		return "Já existe um tipo com esse nome."
	case errors.Is(err, ledger.ErrNotReleasedYet):
		return "Lote ainda não liberado: o tempo de estufa não terminou."
	case errors.Is(err, ledger.ErrAlreadyWithdrawn):
		return "Esse lote já foi retirado."
	case errors.Is(err, ledger.ErrNotFound):
		return "Tipo ou lote não encontrado."
	}
	return "Erro ao salvar os dados. Tente novamente."
}

func (s *Server) logLedgerError(op, user string, err error) {
	if errors.Is(err, ledger.ErrPersistence) || !isRejection(err) {
		slog.Error(op+" failed", "user", user, "error", err)
		return
	}
	slog.Warn(op+" rejected", "user", user, "reason", err.Error())
}

func isRejection(err error) bool {
	return ledger.IsValidation(err) ||
		errors.Is(err, ledger.ErrNotFound) ||
		errors.Is(err, ledger.ErrDuplicateType) ||
		errors.Is(err, ledger.ErrNotReleasedYet) ||
		errors.Is(err, ledger.ErrAlreadyWithdrawn)
}
