package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/tubetes/internal/imaging"
	"github.com/erazemk/tubetes/internal/model"
	"github.com/erazemk/tubetes/internal/store"
)

type typesPage struct {
	PageData
	Types  []model.TypeDefinition
	Photos map[string]bool
}

// TypesPage handles GET /types.
func (s *Server) TypesPage(w http.ResponseWriter, r *http.Request) {
	s.renderTypes(w, r, "", "")
}

func (s *Server) renderTypes(w http.ResponseWriter, r *http.Request, errMsg, success string) {
	photos, err := store.TypesWithPhoto(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list type photos", "error", err)
	}

	data := &typesPage{
		PageData: s.page(r, "Tipos de tubete"),
		Types:    s.Ledger.Types(),
		Photos:   photos,
	}
	data.Error, data.Success = errMsg, success
	s.Templates.Render(w, "types.html", data)
}

// TypeCreateSubmit handles POST /types (manager+).
func (s *Server) TypeCreateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	hours, err := strconv.Atoi(r.FormValue("cure_hours"))
	if err != nil {
		s.renderTypes(w, r, "Tempo de estufa deve ser um número inteiro de horas.", "")
		return
	}

	td, err := s.Ledger.RegisterType(r.Context(), r.FormValue("name"), r.FormValue("description"), hours)
	if err != nil {
		s.logLedgerError("type registration", claims.Username, err)
		s.renderTypes(w, r, ledgerMessage(err), "")
		return
	}

	slog.Info("type registered", "user", claims.Username, "type", td.Name, "cure_hours", td.CureHours)
	s.renderTypes(w, r, "", "Tipo "+td.Name+" cadastrado.")
}

// TypePhotoSubmit handles POST /types/{name}/photo (manager+).
func (s *Server) TypePhotoSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	td, err := s.Ledger.LookupType(r.PathValue("name"))
	if err != nil {
		s.renderTypes(w, r, ledgerMessage(err), "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<10)
	file, _, err := r.FormFile("image")
	if err != nil {
		s.renderTypes(w, r, "Selecione uma imagem de até 5 MB.", "")
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file, imaging.MaxDimension)
	if errors.Is(err, imaging.ErrUnsupported) {
		s.renderTypes(w, r, "Formato de imagem não suportado (use JPEG, PNG ou WebP).", "")
		return
	}
	if err != nil {
		slog.Warn("type photo rejected", "user", claims.Username, "type", td.Name, "error", err)
		s.renderTypes(w, r, "Não foi possível ler a imagem.", "")
		return
	}

	if err := store.SetTypePhoto(r.Context(), s.DB, td.Name, photo.Data, photo.MIME); err != nil {
		slog.Error("failed to save type photo", "error", err)
		s.renderTypes(w, r, "Erro ao salvar a imagem.", "")
		return
	}

	slog.Info("type photo uploaded", "user", claims.Username, "type", td.Name)
	http.Redirect(w, r, "/types", http.StatusSeeOther)
}

// TypePhotoGet handles GET /types/{name}/photo.
func (s *Server) TypePhotoGet(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetTypePhoto(r.Context(), s.DB, r.PathValue("name"))
	if err != nil {
		slog.Error("failed to get type photo", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write image response", "error", err)
	}
}
