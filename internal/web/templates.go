package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/tubetes/internal/auth"
	"github.com/erazemk/tubetes/internal/ledger"
	"github.com/erazemk/tubetes/internal/model"
	webembed "github.com/erazemk/tubetes/web"
)

// Layouts for dates in pages and in datetime-local inputs.
const (
	displayLayout = "02/01/2006 15:04"
	inputLayout   = "2006-01-02T15:04"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map. Times are shown in loc.
func FuncMap(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"roleAtLeast": model.RoleAtLeast,
		"roleName": func(role string) string {
			switch role {
			case model.RoleAdmin:
				return "Administrador"
			case model.RoleManager:
				return "Supervisor"
			case model.RoleUser:
				return "Operador"
			default:
				return role
			}
		},
		"stateName": func(state string) string {
			switch state {
			case model.BatchStateOpen:
				return "Na estufa"
			case model.BatchStateClosed:
				return "Retirado"
			default:
				return state
			}
		},
		"datetime": func(v any) string {
			switch t := v.(type) {
			case time.Time:
				return t.In(loc).Format(displayLayout)
			case *time.Time:
				if t == nil {
					return ""
				}
				return t.In(loc).Format(displayLayout)
			}
			return ""
		},
		"inputTime": func(t time.Time) string {
			return t.In(loc).Format(inputLayout)
		},
		"optInt": func(n *int) string {
			if n == nil {
				return ""
			}
			return fmt.Sprint(*n)
		},
	}
}

var pages = []string{
	"login.html",
	"dashboard.html",
	"types.html",
	"intake.html",
	"withdraw.html",
	"reports.html",
	"users.html",
	"settings.html",
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates(loc *time.Location) (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	ts := &Templates{templates: make(map[string]*template.Template)}
	funcs := FuncMap(loc)

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl, err := template.New(page).Funcs(funcs).Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		if tmpl, err = tmpl.Parse(string(pageBytes)); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	User    *auth.Claims
	Error   string
	Success string
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB        *sql.DB
	Ledger    *ledger.Ledger
	Templates *Templates
	JWTSecret string
	Location  *time.Location
}

func (s *Server) page(r *http.Request, title string) PageData {
	return PageData{Title: title, User: GetWebClaims(r.Context())}
}
