package web

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/tubetes/internal/ledger"
	"github.com/erazemk/tubetes/internal/model"
	webembed "github.com/erazemk/tubetes/web"
)

// NewRouter creates the web page router with all page routes registered.
// Pages show and accept times in loc.
func NewRouter(db *sql.DB, led *ledger.Ledger, jwtSecret string, loc *time.Location) (http.Handler, error) {
	if loc == nil {
		loc = time.Local
	}
	templates, err := LoadTemplates(loc)
	if err != nil {
		return nil, err
	}

	s := &Server{
		DB:        db,
		Ledger:    led,
		Templates: templates,
		JWTSecret: jwtSecret,
		Location:  loc,
	}

	mux := http.NewServeMux()
	cookieAuth := CookieAuthMiddleware(jwtSecret, db)
	manager := func(h http.HandlerFunc) http.Handler { return cookieAuth(RequireRole(model.RoleManager)(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return cookieAuth(RequireRole(model.RoleAdmin)(h)) }

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	// Public routes.
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("POST /logout", s.Logout)

	// Authenticated routes.
	mux.Handle("GET /{$}", cookieAuth(http.HandlerFunc(s.Dashboard)))

	mux.Handle("GET /types", cookieAuth(http.HandlerFunc(s.TypesPage)))
	mux.Handle("POST /types", manager(s.TypeCreateSubmit))
	mux.Handle("GET /types/{name}/photo", cookieAuth(http.HandlerFunc(s.TypePhotoGet)))
	mux.Handle("POST /types/{name}/photo", manager(s.TypePhotoSubmit))

	mux.Handle("GET /intake", cookieAuth(http.HandlerFunc(s.IntakePage)))
	mux.Handle("POST /intake", cookieAuth(http.HandlerFunc(s.IntakeSubmit)))
	mux.Handle("GET /withdraw", cookieAuth(http.HandlerFunc(s.WithdrawPage)))
	mux.Handle("POST /withdraw/{index}", cookieAuth(http.HandlerFunc(s.WithdrawSubmit)))

	mux.Handle("GET /reports", cookieAuth(http.HandlerFunc(s.ReportsPage)))
	mux.Handle("GET /reports/inventario.xlsx", cookieAuth(http.HandlerFunc(s.ExportXLSX)))
	mux.Handle("GET /reports/inventario.csv", cookieAuth(http.HandlerFunc(s.ExportCSV)))

	mux.Handle("GET /users", admin(s.UsersPage))
	mux.Handle("POST /users", admin(s.UserCreateSubmit))
	mux.Handle("POST /users/{id}/password", admin(s.UserResetPasswordSubmit))
	mux.Handle("POST /users/{id}/role", admin(s.UserUpdateRoleSubmit))
	mux.Handle("POST /users/{id}/delete", admin(s.UserDeleteSubmit))

	mux.Handle("GET /settings", cookieAuth(http.HandlerFunc(s.SettingsPage)))
	mux.Handle("POST /settings", cookieAuth(http.HandlerFunc(s.SettingsSubmit)))

	return mux, nil
}
