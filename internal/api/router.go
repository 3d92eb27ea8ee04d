package api

import (
	"net/http"
	"time"

	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/form"
	"github.com/erazemk/evidenca/internal/mail"
	"github.com/erazemk/evidenca/internal/model"
)

// Options configures the API router.
type Options struct {
	JWTSecret string
	// Mailer delivers account and invitation emails. Defaults to a mail.Log.
	Mailer mail.Mailer
	// BaseURL prefixes links in emails, e.g. https://admin.example.com.
	BaseURL string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(b *backend.Backend, opts Options) http.Handler {
	if opts.Mailer == nil {
		opts.Mailer = &mail.Log{}
	}
	mux := http.NewServeMux()

	authMW := AuthMiddleware(opts.JWTSecret, b.Accounts)
	authHandler := &AuthHandler{Backend: b, JWTSecret: opts.JWTSecret, Mailer: opts.Mailer, BaseURL: opts.BaseURL}
	invitations := &InvitationsHandler{Backend: b, Mailer: opts.Mailer, BaseURL: opts.BaseURL}
	products := &ProductsHandler{Backend: b}

	// Public: session lifecycle and account recovery.
	mux.HandleFunc("GET /api/health", Health)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/refresh-token", authHandler.Refresh)
	mux.HandleFunc("GET /api/auth/verify-email", authHandler.VerifyEmail)
	mux.HandleFunc("POST /api/auth/verify-email", authHandler.VerifyEmail)
	mux.HandleFunc("POST /api/auth/forgot-password", authHandler.ForgotPassword)
	mux.HandleFunc("POST /api/auth/reset-password", authHandler.ResetPassword)

	// Authenticated account routes.
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Entities: read (all roles), write (manager+ or admin).
	(&Resource[model.User]{
		Coll: b.Users, Meta: &backend.UserMeta, Schema: mustForm("users"),
		Write: model.RoleAdmin,
	}).mount(mux, authMW)
	(&Resource[model.Organization]{
		Coll: b.Organizations, Meta: &backend.OrganizationMeta, Schema: mustForm("organizations"),
		Write: model.RoleAdmin,
	}).mount(mux, authMW)
	(&Resource[model.Company]{
		Coll: b.Companies, Meta: &backend.CompanyMeta, Schema: mustForm("companies"),
		Write: model.RoleManager,
	}).mount(mux, authMW)
	(&Resource[model.Warehouse]{
		Coll: b.Warehouses, Meta: &backend.WarehouseMeta, Schema: mustForm("warehouses"),
		Write: model.RoleManager,
	}).mount(mux, authMW)
	(&Resource[model.Product]{
		Coll: b.Products, Meta: &backend.ProductMeta, Schema: mustForm("products"),
		Write:    model.RoleManager,
		ReadOnly: []string{"hasImage"},
	}).mount(mux, authMW)
	(&Resource[model.Lot]{
		Coll: b.Lots, Meta: &backend.LotMeta, Schema: mustForm("lots"),
		Write:   model.RoleManager,
		Prepare: prepareLot,
	}).mount(mux, authMW)
	(&Resource[model.UOM]{
		Coll: b.UOMs, Meta: &backend.UOMMeta, Schema: mustForm("uom"),
		Write: model.RoleManager,
	}).mount(mux, authMW)
	(&Resource[model.Invitation]{
		Coll: b.Invitations, Meta: &backend.InvitationMeta, Schema: mustForm("invitations"),
		Write:    model.RoleAdmin,
		ReadOnly: []string{"senderId", "usedAt"},
		Prepare:  prepareInvitation,
		Created:  invitations.Send,
	}).mount(mux, authMW)

	requireManager := RequireRole(model.RoleManager)
	requireAdmin := RequireRole(model.RoleAdmin)
	mux.Handle("PUT /api/products/{id}/image", authMW(requireManager(http.HandlerFunc(products.UploadImage))))
	mux.Handle("GET /api/products/{id}/image", authMW(http.HandlerFunc(products.GetImage)))
	mux.Handle("POST /api/invitations/{id}/revoke", authMW(requireAdmin(http.HandlerFunc(invitations.Revoke))))

	// Descriptions of entities and forms.
	mux.Handle("GET /api/schema/{entity}", authMW(http.HandlerFunc(Schema)))
	mux.Handle("GET /api/forms/{entity}", authMW(http.HandlerFunc(Forms)))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusNotFound, "no such endpoint")
	})

	return mux
}

func mustForm(entity string) *form.Schema {
	s, ok := form.For(entity)
	if !ok {
		panic("no form schema for " + entity)
	}
	return s
}

// Health handles GET /api/health.
func Health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func prepareLot(_ *http.Request, l *model.Lot) {
	if l.Status == "" {
		l.Status = model.LotStatusPending
	}
	if l.QCState == "" {
		l.QCState = model.QCPending
	}
}

// prepareInvitation makes every new invitation pending, sent by the caller
// and valid for model.InvitationTTL unless an expiry is given.
func prepareInvitation(r *http.Request, inv *model.Invitation) {
	inv.Status = model.InvitationPending
	inv.UsedAt = nil
	if c := GetClaims(r.Context()); c != nil {
		inv.SenderID = c.UserID
	}
	if inv.ExpiresAt == nil {
		exp := time.Now().Add(model.InvitationTTL).UTC().Truncate(time.Second)
		inv.ExpiresAt = &exp
	}
}
