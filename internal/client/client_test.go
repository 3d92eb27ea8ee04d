package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/erazemk/evidenca/internal/api"
	"github.com/erazemk/evidenca/internal/mock"
	"github.com/erazemk/evidenca/internal/model"
)

const testPassword = "fixture-pass"

// countingTransport counts requests that reach the network.
type countingTransport struct {
	next http.RoundTripper
	n    atomic.Int32
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.n.Add(1)
	return t.next.RoundTrip(req)
}

type testEnv struct {
	store     *mock.Store
	server    *httptest.Server
	transport *countingTransport
	client    *Client
	entities  *Entities
	cache     *Cache
}

func setup(t *testing.T, seed mock.Seed) *testEnv {
	t.Helper()
	seed.Password = testPassword
	s := mock.New(seed)
	server := httptest.NewServer(mock.NewServer(s, api.Options{}))
	t.Cleanup(server.Close)

	tr := &countingTransport{next: http.DefaultTransport}
	c := New(server.URL, &http.Client{Transport: tr}, nil)
	cache := NewCache()
	env := &testEnv{store: s, server: server, transport: tr, client: c, entities: NewEntities(c, cache), cache: cache}

	admin, ok := s.FirstUser(model.RoleAdmin)
	if !ok {
		t.Fatal("seed has no admin")
	}
	if _, err := c.Login(context.Background(), admin.Email, testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	return env
}

func TestListThirdPage(t *testing.T) {
	env := setup(t, mock.Seed{Users: 100})

	page, err := env.entities.Users.List(context.Background(), model.ListParams{Page: 3, PageSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 100 {
		t.Fatalf("expected totalCount 100, got %d", page.TotalCount)
	}
	if !reflect.DeepEqual(page.Data, env.store.Users.All()[20:30]) {
		t.Fatalf("expected users 20..29, got %+v", page.Data)
	}
}

func TestCreateCompany(t *testing.T) {
	env := setup(t, mock.Seed{Users: 4})
	ctx := context.Background()

	in := model.Company{LegalName: "Acme", BrandName: "A", RegistrationNumber: "R1", TaxID: "T1", VATNumber: "V1", Currency: "USD", Timezone: "UTC"}
	created, err := env.entities.Companies.Create(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" {
		t.Fatal("expected an id")
	}
	got, err := env.entities.Companies.Get(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	in.ID = created.ID
	if *got != in {
		t.Fatalf("got %+v, want %+v", *got, in)
	}
}

func TestInvalidEmailSendsNoRequest(t *testing.T) {
	env := setup(t, mock.Seed{Users: 4})
	before := env.transport.n.Load()

	_, st, err := env.entities.Invitations.SubmitValues(context.Background(), "", url.Values{
		"email": {"not-an-email"},
		"role":  {model.RoleUser},
	})
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if st.Errors["email"] == "" {
		t.Errorf("expected email error, got %+v", st.Errors)
	}
	if n := env.transport.n.Load(); n != before {
		t.Fatalf("expected no request, %d were sent", n-before)
	}
}

func TestErrorKinds(t *testing.T) {
	env := setup(t, mock.Seed{Users: 4, Invitations: 5})
	ctx := context.Background()

	_, err := env.entities.Products.Get(ctx, "missing")
	if KindOf(err) != KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}

	var accepted model.Invitation
	for _, inv := range env.store.Invitations.All() {
		if inv.Status == model.InvitationAccepted {
			accepted = inv
		}
	}
	_, err = env.entities.Invitations.Update(ctx, accepted.ID, map[string]string{"role": model.RoleAdmin})
	if KindOf(err) != KindBusinessRule {
		t.Errorf("expected business rule, got %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Message == "" {
		t.Errorf("expected server message, got %v", err)
	}

	_, err = env.entities.Invitations.Create(ctx, map[string]string{"email": "bad", "role": model.RoleUser})
	if KindOf(err) != KindValidation {
		t.Errorf("expected server-side validation error, got %v", err)
	}
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	c := New(server.URL, nil, nil)
	_, err := NewResource[model.User](c, nil, "users").List(context.Background(), model.ListParams{})
	if KindOf(err) != KindNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestUnauthorizedClearsTokens(t *testing.T) {
	env := setup(t, mock.Seed{Users: 4})
	env.client.Tokens.SetTokens("garbage", "")

	_, err := env.entities.Users.List(context.Background(), model.ListParams{})
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if env.client.Authenticated() {
		t.Fatal("expected tokens to be cleared")
	}
}

func TestExpiredAccessIsRefreshed(t *testing.T) {
	env := setup(t, mock.Seed{Users: 4})
	_, refresh := env.client.Tokens.Tokens()
	env.client.Tokens.SetTokens("expired", refresh)

	if _, err := env.entities.Users.List(context.Background(), model.ListParams{}); err != nil {
		t.Fatalf("expected refresh and retry, got %v", err)
	}
	access, newRefresh := env.client.Tokens.Tokens()
	if access == "expired" || newRefresh == refresh {
		t.Fatal("expected rotated credentials")
	}
}

func TestLogout(t *testing.T) {
	env := setup(t, mock.Seed{Users: 4})
	ctx := context.Background()
	access, _ := env.client.Tokens.Tokens()

	if err := env.client.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if env.client.Authenticated() {
		t.Fatal("expected tokens to be cleared")
	}

	// The old access token is revoked on the server.
	other := New(env.server.URL, nil, nil)
	other.Tokens.SetTokens(access, "")
	if _, err := other.Me(ctx); KindOf(err) != KindUnauthorized {
		t.Fatalf("expected revoked token to fail, got %v", err)
	}
}

func TestMe(t *testing.T) {
	env := setup(t, mock.Seed{Users: 4})
	me, err := env.client.Me(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if me.Role != model.RoleAdmin || !me.EmailVerified {
		t.Fatalf("unexpected identity %+v", me)
	}
}

func TestInProcessTransport(t *testing.T) {
	s := mock.New(mock.Seed{Users: 4, Password: testPassword})
	c := NewInProcess(mock.NewServer(s, api.Options{}), nil)
	ctx := context.Background()

	admin, _ := s.FirstUser(model.RoleAdmin)
	if _, err := c.Login(ctx, admin.Email, testPassword); err != nil {
		t.Fatal(err)
	}
	page, err := NewResource[model.User](c, nil, "users").List(ctx, model.ListParams{})
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 4 {
		t.Fatalf("expected 4 users, got %d", page.TotalCount)
	}
}
