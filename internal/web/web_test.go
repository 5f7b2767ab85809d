package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/erazemk/tubetes/internal/auth"
	"github.com/erazemk/tubetes/internal/db"
	"github.com/erazemk/tubetes/internal/flatfile"
	"github.com/erazemk/tubetes/internal/ledger"
	"github.com/erazemk/tubetes/internal/model"
	"github.com/erazemk/tubetes/internal/store"
)

const testSecret = "web-test-secret"

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	handler http.Handler
	ledger  *ledger.Ledger
	now     *time.Time
	tokens  map[string]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	files, err := flatfile.New(t.TempDir(), time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	now := t0
	led, err := ledger.Open(ctx, files, ledger.Options{Now: func() time.Time { return now }})
	if err != nil {
		t.Fatal(err)
	}

	handler, err := NewRouter(database, led, testSecret, time.UTC)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	f := &fixture{handler: handler, ledger: led, now: &now, tokens: map[string]string{}}
	for _, role := range []string{model.RoleAdmin, model.RoleManager, model.RoleUser} {
		hash, _ := auth.HashPassword("password")
		u, err := store.CreateUser(ctx, database, role+"1", hash, role)
		if err != nil {
			t.Fatal(err)
		}
		f.tokens[role], _ = auth.GenerateToken(testSecret, u.ID, u.Username, role)
	}
	return f
}

func (f *fixture) do(t *testing.T, role, method, target string, form url.Values) (*http.Response, string) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if role != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: f.tokens[role]})
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec.Result(), rec.Body.String()
}

func TestLoadTemplates(t *testing.T) {
	ts, err := LoadTemplates(time.UTC)
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	for _, p := range pages {
		if _, ok := ts.templates[p]; !ok {
			t.Errorf("template %s not loaded", p)
		}
	}
}

func TestPagesRequireLogin(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/", "/types", "/intake", "/withdraw", "/reports", "/settings"} {
		resp, _ := f.do(t, "", "GET", path, nil)
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
			t.Errorf("GET %s: expected redirect to /login, got %d %q", path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}
}

func TestAllPagesRender(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "", "GET", "/login", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Entrar") {
		t.Errorf("login page: %d", resp.StatusCode)
	}

	for _, path := range []string{"/", "/types", "/intake", "/withdraw", "/reports", "/users", "/settings"} {
		resp, body := f.do(t, model.RoleAdmin, "GET", path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
		if !strings.Contains(body, "</html>") {
			t.Errorf("GET %s: incomplete page", path)
		}
	}
}

func TestRolesOnPages(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, model.RoleUser, "GET", "/users", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for user on /users, got %d", resp.StatusCode)
	}
	resp, _ = f.do(t, model.RoleUser, "POST", "/types", url.Values{"name": {"X"}, "cure_hours": {"2"}})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for user registering a type, got %d", resp.StatusCode)
	}
	if len(f.ledger.Types()) != 0 {
		t.Error("type must not be registered")
	}
}

func TestIntakeBlockedWithEmptyCatalog(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, model.RoleUser, "GET", "/intake", nil)
	if !strings.Contains(body, "Cadastre um tipo") {
		t.Error("expected the empty catalog notice")
	}
	if strings.Contains(body, `action="/intake"`) {
		t.Error("intake form must not render without types")
	}
}

func TestIntakeAndWithdrawPages(t *testing.T) {
	f := newFixture(t)

	_, body := f.do(t, model.RoleManager, "POST", "/types", url.Values{
		"name": {"X"}, "description": {"tubete 40mm"}, "cure_hours": {"2"},
	})
	if !strings.Contains(body, "Tipo X cadastrado") {
		t.Fatalf("expected success message, got body without it")
	}

	_, body = f.do(t, model.RoleManager, "POST", "/types", url.Values{"name": {"X"}, "cure_hours": {"3"}})
	if !strings.Contains(body, "Já existe um tipo") {
		t.Error("expected duplicate type message")
	}

	_, body = f.do(t, model.RoleUser, "POST", "/intake", url.Values{
		"type_name": {"X"}, "quantity": {"10"}, "intake_at": {"2026-03-02T08:00"},
	})
	if !strings.Contains(body, "Entrada registrada") || !strings.Contains(body, "02/03/2026 10:00") {
		t.Fatalf("expected intake confirmation with release time")
	}

	_, body = f.do(t, model.RoleUser, "GET", "/withdraw", nil)
	if !strings.Contains(body, `action="/withdraw/0"`) || !strings.Contains(body, `max="10"`) {
		t.Error("expected a withdrawal form for batch 0 capped at 10")
	}

	form := url.Values{"quantity": {"10"}, "humidity": {"55"}}
	_, body = f.do(t, model.RoleUser, "POST", "/withdraw/0", form)
	if !strings.Contains(body, "Lote ainda não liberado") || !strings.Contains(body, "02/03/2026 10:00") {
		t.Error("expected the release gate message with the release time")
	}

	*f.now = t0.Add(2 * time.Hour)
	_, body = f.do(t, model.RoleUser, "POST", "/withdraw/0", form)
	if !strings.Contains(body, "Retirada registrada") {
		t.Fatal("expected withdrawal confirmation")
	}
	if len(f.ledger.AvailableBatches()) != 0 {
		t.Error("batch should be closed")
	}

	_, body = f.do(t, model.RoleUser, "GET", "/withdraw", nil)
	if strings.Contains(body, `action="/withdraw/0"`) {
		t.Error("closed batch must not be offered again")
	}

	_, body = f.do(t, model.RoleUser, "GET", "/reports", nil)
	if !strings.Contains(body, "Retirado") || !strings.Contains(body, ">55<") {
		t.Error("expected the closed batch in the report")
	}
}

func TestWithdrawValidationMessages(t *testing.T) {
	f := newFixture(t)
	f.ledger.RegisterType(context.Background(), "X", "", 1)
	f.ledger.IntakeBatch(context.Background(), "X", 5, t0.Add(-2*time.Hour))

	_, body := f.do(t, model.RoleUser, "POST", "/withdraw/0", url.Values{"quantity": {"5"}, "humidity": {"101"}})
	if !strings.Contains(body, "umidade") {
		t.Error("expected humidity validation message")
	}
	_, body = f.do(t, model.RoleUser, "POST", "/withdraw/0", url.Values{"quantity": {"6"}, "humidity": {"50"}})
	if !strings.Contains(body, "quantidade") {
		t.Error("expected quantity validation message")
	}
	_, body = f.do(t, model.RoleUser, "POST", "/withdraw/0", url.Values{"quantity": {"5"}, "humidity": {"x"}})
	if !strings.Contains(body, "Umidade deve ser") {
		t.Error("expected parse message")
	}
}

func TestDownloads(t *testing.T) {
	f := newFixture(t)
	f.ledger.RegisterType(context.Background(), "X", "", 1)
	f.ledger.IntakeBatch(context.Background(), "X", 5, t0)

	resp, body := f.do(t, model.RoleUser, "GET", "/reports/inventario.csv", nil)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(body, strings.Join(flatfile.BatchColumns, ",")) {
		t.Errorf("unexpected csv download %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "inventario-20260302-0800.csv") {
		t.Errorf("unexpected disposition %q", resp.Header.Get("Content-Disposition"))
	}

	resp, _ = f.do(t, model.RoleUser, "GET", "/reports/inventario.xlsx", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for xlsx download, got %d", resp.StatusCode)
	}
}

func TestLoginAndLogout(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "", "POST", "/login", url.Values{"username": {"user1"}, "password": {"wrong"}})
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "incorretos") {
		t.Error("expected the login page with an error")
	}

	resp, _ = f.do(t, "", "POST", "/login", url.Values{"username": {"user1"}, "password": {"password"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected redirect after login, got %d", resp.StatusCode)
	}
	var token string
	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			token = c.Value
		}
	}
	if token == "" {
		t.Fatal("expected a session cookie")
	}
	f.tokens["session"] = token

	resp, _ = f.do(t, "session", "POST", "/logout", nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected redirect after logout, got %d", resp.StatusCode)
	}

	resp, _ = f.do(t, "session", "GET", "/", nil)
	if resp.Header.Get("Location") != "/login" {
		t.Error("revoked session must be sent back to login")
	}
}

var valueAttr = regexp.MustCompile(`value="([^"]*)"`)

// inputValue returns what a browser would submit for the named input as rendered.
func inputValue(t *testing.T, body, name string) string {
	t.Helper()
	tag := regexp.MustCompile(`<input name="` + regexp.QuoteMeta(name) + `"[^>]*>`).FindString(body)
	if tag == "" {
		t.Fatalf("input %s not found", name)
	}
	if m := valueAttr.FindStringSubmatch(tag); m != nil {
		return m[1]
	}
	return ""
}

func TestWithdrawSubmitsRenderedForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ledger.RegisterType(ctx, "X", "", 2)
	// Release at 10:00:30, so the release instant is not on a minute boundary.
	if _, err := f.ledger.IntakeBatch(ctx, "X", 10, t0.Add(30*time.Second)); err != nil {
		t.Fatal(err)
	}

	*f.now = t0.Add(2*time.Hour + 45*time.Second)
	_, body := f.do(t, model.RoleUser, "GET", "/withdraw", nil)
	if !strings.Contains(body, "Liberado") {
		t.Fatal("batch should be shown as released")
	}

	form := url.Values{
		"quantity":     {"10"},
		"humidity":     {"50"},
		"withdrawn_at": {inputValue(t, body, "withdrawn_at")},
	}
	_, body = f.do(t, model.RoleUser, "POST", "/withdraw/0", form)
	if !strings.Contains(body, "Retirada registrada") {
		t.Errorf("released batch rejected with the page's own form values")
	}
	if n := len(f.ledger.AvailableBatches()); n != 0 {
		t.Errorf("expected no open batches, got %d", n)
	}
}

func TestWithdrawFormOpenedBeforeRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ledger.RegisterType(ctx, "X", "", 2)
	f.ledger.IntakeBatch(ctx, "X", 10, t0)

	*f.now = t0.Add(2*time.Hour - 5*time.Minute)
	_, body := f.do(t, model.RoleUser, "GET", "/withdraw", nil)
	at := inputValue(t, body, "withdrawn_at")

	*f.now = t0.Add(2*time.Hour + time.Minute)
	_, body = f.do(t, model.RoleUser, "POST", "/withdraw/0", url.Values{
		"quantity": {"10"}, "humidity": {"50"}, "withdrawn_at": {at},
	})
	if !strings.Contains(body, "Retirada registrada") {
		t.Error("submitting after release must succeed even if the page was opened before it")
	}
}

func TestWithdrawExplicitEarlierTimeIsGated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ledger.RegisterType(ctx, "X", "", 2)
	f.ledger.IntakeBatch(ctx, "X", 10, t0)
	*f.now = t0.Add(3 * time.Hour)

	_, body := f.do(t, model.RoleUser, "POST", "/withdraw/0", url.Values{
		"quantity": {"10"}, "humidity": {"50"}, "withdrawn_at": {"2026-03-02T09:59"},
	})
	if !strings.Contains(body, "Lote ainda não liberado") {
		t.Error("a typed withdrawal time before release must still be gated")
	}
}
