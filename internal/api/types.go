package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/tubetes/internal/imaging"
	"github.com/erazemk/tubetes/internal/ledger"
	"github.com/erazemk/tubetes/internal/model"
	"github.com/erazemk/tubetes/internal/store"
)

// TypesHandler handles the tube type catalog endpoints.
type TypesHandler struct {
	DB     *sql.DB
	Ledger *ledger.Ledger
}

type createTypeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CureHours   int    `json:"cure_hours"`
}

type typeView struct {
	model.TypeDefinition
	HasPhoto bool `json:"has_photo"`
}

// List handles GET /api/types.
func (h *TypesHandler) List(w http.ResponseWriter, r *http.Request) {
	photos, err := store.TypesWithPhoto(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list type photos", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list types")
		return
	}

	types := h.Ledger.Types()
	views := make([]typeView, 0, len(types))
	for _, t := range types {
		views = append(views, typeView{TypeDefinition: t, HasPhoto: photos[t.Name]})
	}
	jsonResponse(w, http.StatusOK, views)
}

// Create handles POST /api/types.
func (h *TypesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	td, err := h.Ledger.RegisterType(r.Context(), req.Name, req.Description, req.CureHours)
	if err != nil {
		ledgerError(w, r, "type registration", err)
		return
	}

	slog.Info("type registered", "user", actor(r.Context()), "type", td.Name, "cure_hours", td.CureHours)
	jsonResponse(w, http.StatusCreated, td)
}

// Get handles GET /api/types/{name}.
func (h *TypesHandler) Get(w http.ResponseWriter, r *http.Request) {
	td, err := h.Ledger.LookupType(r.PathValue("name"))
	if err != nil {
		ledgerError(w, r, "type lookup", err)
		return
	}
	jsonResponse(w, http.StatusOK, td)
}

// UploadImage handles PUT /api/types/{name}/image with a multipart "image" field.
func (h *TypesHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	td, err := h.Ledger.LookupType(r.PathValue("name"))
	if err != nil {
		ledgerError(w, r, "photo upload", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<10)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file, imaging.MaxDimension)
	if errors.Is(err, imaging.ErrUnsupported) {
		jsonError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetTypePhoto(r.Context(), h.DB, td.Name, photo.Data, photo.MIME); err != nil {
		slog.Error("failed to save type photo", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	slog.Info("type photo uploaded", "user", actor(r.Context()), "type", td.Name,
		"width", photo.Width, "height", photo.Height)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/types/{name}/image.
func (h *TypesHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	servePhoto(w, r, h.DB, r.PathValue("name"))
}

// servePhoto writes a type's stored photo, or 404 when it has none.
func servePhoto(w http.ResponseWriter, r *http.Request, db *sql.DB, typeName string) {
	data, mime, err := store.GetTypePhoto(r.Context(), db, typeName)
	if err != nil {
		slog.Error("failed to get type photo", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.Error(w, "no image", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(data)
}
