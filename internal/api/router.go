package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/tubetes/internal/ledger"
	"github.com/erazemk/tubetes/internal/model"
)

// NewRouter creates the API router with all endpoints registered. loc is the
// zone used for timestamps in downloaded files.
func NewRouter(db *sql.DB, led *ledger.Ledger, jwtSecret string, loc *time.Location) http.Handler {
	if loc == nil {
		loc = time.Local
	}
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	typesHandler := &TypesHandler{DB: db, Ledger: led}
	batchesHandler := &BatchesHandler{Ledger: led}
	reportsHandler := &ReportsHandler{Ledger: led, Location: loc}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Types: read (all roles), register and photos (manager+).
	mux.Handle("GET /api/types", authMW(http.HandlerFunc(typesHandler.List)))
	mux.Handle("POST /api/types", authMW(requireManager(http.HandlerFunc(typesHandler.Create))))
	mux.Handle("GET /api/types/{name}", authMW(http.HandlerFunc(typesHandler.Get)))
	mux.Handle("PUT /api/types/{name}/image", authMW(requireManager(http.HandlerFunc(typesHandler.UploadImage))))
	mux.Handle("GET /api/types/{name}/image", authMW(http.HandlerFunc(typesHandler.GetImage)))

	// Batches (all roles).
	mux.Handle("GET /api/batches", authMW(http.HandlerFunc(batchesHandler.List)))
	mux.Handle("POST /api/batches", authMW(http.HandlerFunc(batchesHandler.Create)))
	mux.Handle("GET /api/batches/available", authMW(http.HandlerFunc(batchesHandler.Available)))
	mux.Handle("POST /api/batches/{index}/withdraw", authMW(http.HandlerFunc(batchesHandler.Withdraw)))

	// Reports (all roles).
	mux.Handle("GET /api/report", authMW(http.HandlerFunc(reportsHandler.Report)))
	mux.Handle("GET /api/export.xlsx", authMW(http.HandlerFunc(reportsHandler.ExportXLSX)))
	mux.Handle("GET /api/export.csv", authMW(http.HandlerFunc(reportsHandler.ExportCSV)))

	return mux
}
