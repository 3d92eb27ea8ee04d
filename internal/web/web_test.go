package web

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/erazemk/evidenca/internal/api"
	"github.com/erazemk/evidenca/internal/mail"
	"github.com/erazemk/evidenca/internal/mock"
	"github.com/erazemk/evidenca/internal/model"
)

const testPassword = "fixture-pass"

// apiLog records the API requests made by the UI.
type apiLog struct {
	next http.Handler
	mu   sync.Mutex
	reqs []string
}

func (l *apiLog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	l.reqs = append(l.reqs, r.Method+" "+r.URL.Path)
	l.mu.Unlock()
	l.next.ServeHTTP(w, r)
}

func (l *apiLog) count(req string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.reqs {
		if r == req {
			n++
		}
	}
	return n
}

type testEnv struct {
	store  *mock.Store
	ui     *Server
	api    *apiLog
	mail   *mail.Log
	server *httptest.Server
	client *http.Client
}

func setupTestServer(t *testing.T, seed mock.Seed) *testEnv {
	t.Helper()
	seed.Password = testPassword
	s := mock.New(seed)
	outbox := &mail.Log{}
	log := &apiLog{next: mock.NewServer(s, api.Options{Mailer: outbox})}

	ui, err := NewServer(Options{API: log})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	server := httptest.NewServer(ui.Handler())
	t.Cleanup(server.Close)

	jar, _ := cookiejar.New(nil)
	return &testEnv{store: s, ui: ui, api: log, mail: outbox, server: server, client: &http.Client{Jar: jar}}
}

func (env *testEnv) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := env.client.Get(env.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return readBody(t, resp)
}

func (env *testEnv) post(t *testing.T, path string, form url.Values) (int, string) {
	t.Helper()
	resp, err := env.client.PostForm(env.server.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) (int, string) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func (env *testEnv) login(t *testing.T, role string) model.User {
	t.Helper()
	u, ok := env.store.FirstUser(role)
	if !ok {
		t.Fatalf("seed has no %s", role)
	}
	status, body := env.post(t, "/login", url.Values{"email": {u.Email}, "password": {testPassword}, "next": {"/"}})
	if status != http.StatusOK || !strings.Contains(body, "Dashboard") {
		t.Fatalf("login failed: %d %s", status, body)
	}
	return u
}

func TestLoginRequired(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 4})

	resp, err := env.client.Get(env.server.URL + "/companies")
	if err != nil {
		t.Fatal(err)
	}
	status, body := readBody(t, resp)
	if status != http.StatusOK || !strings.Contains(body, "Sign in") {
		t.Fatalf("expected login page, got %d", status)
	}
	if resp.Request.URL.Path != "/login" || resp.Request.URL.Query().Get("next") != "/companies" {
		t.Errorf("unexpected redirect target %s", resp.Request.URL)
	}
}

func TestTemplatesParsedLazily(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 4})
	if n := env.ui.Templates.Loaded(); n != 0 {
		t.Fatalf("expected no parsed pages, got %d", n)
	}
	env.get(t, "/login")
	if n := env.ui.Templates.Loaded(); n != 1 {
		t.Fatalf("expected 1 parsed page, got %d", n)
	}
}

func TestLoginFailure(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 4})
	admin, _ := env.store.FirstUser(model.RoleAdmin)

	_, body := env.post(t, "/login", url.Values{"email": {admin.Email}, "password": {"wrong-password"}})
	if !strings.Contains(body, "Invalid email or password.") {
		t.Errorf("expected credentials error, got %s", body)
	}
	_, body = env.post(t, "/login", url.Values{"email": {"nope"}, "password": {"x"}})
	if !strings.Contains(body, "must be a valid email address") {
		t.Errorf("expected email error, got %s", body)
	}
	if env.ui.Sessions.Len() != 0 {
		t.Errorf("expected no sessions, got %d", env.ui.Sessions.Len())
	}
}

func TestListPageRoundTripsParams(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 100})
	env.login(t, model.RoleAdmin)

	status, body := env.get(t, "/users?page=3&pageSize=10")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	users := env.store.Users.All()
	for _, u := range users[20:30] {
		if !strings.Contains(body, u.Email) {
			t.Errorf("expected %s on page 3", u.Email)
		}
	}
	if strings.Contains(body, users[30].Email) {
		t.Errorf("did not expect %s on page 3", users[30].Email)
	}
	if !strings.Contains(body, "Page 3 of 10") {
		t.Error("expected pager to show page 3 of 10")
	}
	if !strings.Contains(body, `href="/users?page=4&amp;pageSize=10"`) {
		t.Error("expected next link to keep the page size")
	}

	_, body = env.get(t, "/users?sort=email&order=desc&search=example")
	if !strings.Contains(body, `href="/users?order=asc&amp;search=example&amp;sort=email"`) {
		t.Errorf("expected header link to flip the order, got %s", body)
	}
}

func TestCreateCompany(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 4})
	env.login(t, model.RoleManager)

	status, body := env.post(t, "/companies/new", url.Values{
		"legalName":          {"Acme"},
		"brandName":          {"A"},
		"registrationNumber": {"R1"},
		"taxId":              {"T1"},
		"vatNumber":          {"V1"},
		"currency":           {"USD"},
		"timezone":           {"UTC"},
	})
	if status != http.StatusOK || !strings.Contains(body, "Company created.") || !strings.Contains(body, "<h1>Acme</h1>") {
		t.Fatalf("expected detail page with toast, got %d %s", status, body)
	}
	if len(env.store.Companies.All()) != 1 {
		t.Fatalf("expected 1 company, got %d", len(env.store.Companies.All()))
	}

	// The toast is shown once.
	_, body = env.get(t, "/companies")
	if strings.Contains(body, "Company created.") {
		t.Error("expected toast to be consumed")
	}
}

func TestReferenceChoicesCoverEveryRecord(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 4, Products: 150})
	env.login(t, model.RoleManager)
	before := env.api.count("GET /api/products")

	status, body := env.get(t, "/lots/new")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	for _, p := range env.store.Products.All() {
		if !strings.Contains(body, `value="`+p.ID+`"`) {
			t.Fatalf("product %s (%s) missing from choices", p.ID, p.Name)
		}
	}
	if n := env.api.count("GET /api/products") - before; n != 2 {
		t.Errorf("expected 2 product pages, got %d requests", n)
	}
}

func TestInvalidInvitationSendsNoRequest(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 4, Organizations: 1})
	env.login(t, model.RoleAdmin)

	_, body := env.post(t, "/invitations/new", url.Values{"email": {"not-an-email"}, "role": {model.RoleUser}})
	if !strings.Contains(body, "must be a valid email address") {
		t.Fatalf("expected inline email error, got %s", body)
	}
	if !strings.Contains(body, `value="not-an-email"`) {
		t.Error("expected the input to be kept")
	}
	if n := env.api.count("POST /api/invitations"); n != 0 {
		t.Fatalf("expected no API request, got %d", n)
	}
}

func TestDetailNotFound(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 4})
	env.login(t, model.RoleUser)

	status, body := env.get(t, "/products/missing")
	if status != http.StatusNotFound || !strings.Contains(body, "Product not found.") {
		t.Fatalf("expected inline not found, got %d %s", status, body)
	}
}

func TestDeleteFlow(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 4, UOMs: 3})
	env.login(t, model.RoleManager)
	unit := env.store.UOMs.All()[1]

	_, body := env.get(t, "/uom/"+unit.ID+"/delete")
	if !strings.Contains(body, "This cannot be undone.") {
		t.Fatalf("expected confirmation page, got %s", body)
	}
	_, body = env.post(t, "/uom/"+unit.ID+"/delete", nil)
	if !strings.Contains(body, "Unit deleted.") {
		t.Fatalf("expected delete toast, got %s", body)
	}
	if status, _ := env.get(t, "/uom/"+unit.ID); status != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", status)
	}
}

func TestGuardedInvitation(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 4, Invitations: 5})
	env.login(t, model.RoleAdmin)

	var accepted, pending model.Invitation
	for _, inv := range env.store.Invitations.All() {
		switch inv.Status {
		case model.InvitationAccepted:
			accepted = inv
		case model.InvitationPending:
			pending = inv
		}
	}

	_, body := env.get(t, "/invitations/"+accepted.ID+"/edit")
	if !strings.Contains(body, "This invitation can no longer be edited.") {
		t.Errorf("expected guard toast, got %s", body)
	}
	if strings.Contains(body, "/invitations/"+accepted.ID+"/revoke") {
		t.Error("did not expect a revoke button on an accepted invitation")
	}

	// A server-side rule failure is a toast.
	_, body = env.post(t, "/invitations/"+accepted.ID+"/edit", url.Values{"email": {accepted.Email}, "role": {model.RoleUser}})
	if !strings.Contains(body, "Only pending invitations can be modified.") {
		t.Errorf("expected business rule toast, got %s", body)
	}

	_, body = env.post(t, "/invitations/"+pending.ID+"/revoke", nil)
	if !strings.Contains(body, "Invitation revoked.") {
		t.Fatalf("expected revoke toast, got %s", body)
	}
	got, _ := env.store.Invitations.Get(t.Context(), pending.ID)
	if got.Status != model.InvitationRevoked {
		t.Errorf("expected revoked, got %s", got.Status)
	}
}

func TestMountedListRefetchesAfterMutation(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 4, Organizations: 2})
	env.login(t, model.RoleAdmin)

	env.get(t, "/organizations")
	before := env.api.count("GET /api/organizations")
	env.post(t, "/organizations/new", url.Values{"name": {"Nova"}, "plan": {model.PlanFree}})
	if after := env.api.count("GET /api/organizations"); after <= before {
		t.Fatal("expected the mounted list to be re-fetched after the create")
	}
}

func TestRolesLimitWrites(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 4})
	env.login(t, model.RoleUser)

	_, body := env.get(t, "/products")
	if strings.Contains(body, "New Product") {
		t.Error("did not expect a create button for a user")
	}
	if status, _ := env.get(t, "/products/new"); status != http.StatusForbidden {
		t.Errorf("expected 403, got %d", status)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 4})
	env.login(t, model.RoleAdmin)
	if env.ui.Sessions.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", env.ui.Sessions.Len())
	}

	_, body := env.post(t, "/logout", nil)
	if !strings.Contains(body, "Sign in") {
		t.Fatal("expected login page after logout")
	}
	if env.ui.Sessions.Len() != 0 {
		t.Errorf("expected session to be torn down, got %d", env.ui.Sessions.Len())
	}
	if _, body := env.get(t, "/"); !strings.Contains(body, "Sign in") {
		t.Error("expected dashboard to require login again")
	}
}

func TestRevokedCredentialsEndSession(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 4})
	env.login(t, model.RoleAdmin)

	// Simulate the API rejecting the session's tokens.
	for _, sess := range env.sessions() {
		sess.Client.Tokens.SetTokens("garbage", "")
	}
	_, body := env.get(t, "/companies")
	if !strings.Contains(body, "Sign in") {
		t.Fatal("expected login page")
	}
	if env.ui.Sessions.Len() != 0 {
		t.Errorf("expected session to be torn down, got %d", env.ui.Sessions.Len())
	}
}

func (env *testEnv) sessions() []*Session {
	env.ui.Sessions.mu.Lock()
	defer env.ui.Sessions.mu.Unlock()
	out := make([]*Session, 0, len(env.ui.Sessions.byID))
	for _, s := range env.ui.Sessions.byID {
		out = append(out, s)
	}
	return out
}

func TestPasswordRecovery(t *testing.T) {
	env := setupTestServer(t, mock.Seed{Users: 4})
	u, _ := env.store.FirstUser(model.RoleUser)

	_, body := env.post(t, "/forgot-password", url.Values{"email": {u.Email}})
	if !strings.Contains(body, "a reset link is on its way") {
		t.Fatalf("expected confirmation, got %s", body)
	}
	msg, ok := env.mail.Last(u.Email)
	if !ok {
		t.Fatal("expected a reset email")
	}
	i := strings.Index(msg.HTML, "token=")
	if i < 0 {
		t.Fatalf("no token in %s", msg.HTML)
	}
	token := msg.HTML[i+len("token="):]
	token = token[:strings.IndexAny(token, `"<&`)]

	_, body = env.post(t, "/reset-password", url.Values{"token": {token}, "password": {"new-password-1"}, "confirm": {"other"}})
	if !strings.Contains(body, "does not match the password") {
		t.Fatalf("expected mismatch error, got %s", body)
	}
	_, body = env.post(t, "/reset-password", url.Values{"token": {token}, "password": {"new-password-1"}, "confirm": {"new-password-1"}})
	if !strings.Contains(body, "Your password was changed.") {
		t.Fatalf("expected success, got %s", body)
	}

	_, body = env.post(t, "/login", url.Values{"email": {u.Email}, "password": {"new-password-1"}})
	if !strings.Contains(body, "Dashboard") {
		t.Fatal("expected login with the new password")
	}
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/companies?page=2":    "/companies?page=2",
		"//evil.example.com":   "/",
		"https://evil.example": "/",
		"/\\evil.example.com":  "/",
	}
	for in, want := range tests {
		if got := safeNext(in); got != want {
			t.Errorf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}
