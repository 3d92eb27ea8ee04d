package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/evidenca/internal/auth"
	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/form"
	"github.com/erazemk/evidenca/internal/mail"
	"github.com/erazemk/evidenca/internal/model"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	Backend   *backend.Backend
	JWTSecret string
	Mailer    mail.Mailer
	BaseURL   string
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Locale       string `json:"locale"`
	InvitationID string `json:"invitationId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Session is the body returned by login, register and refresh.
type Session struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	User         model.User `json:"user"`
}

// Me is the body of GET /api/auth/me.
type Me struct {
	model.User
	EmailVerified bool `json:"emailVerified"`
}

// issueSession creates an access token and a stored refresh token.
func (h *AuthHandler) issueSession(ctx context.Context, user *model.User) (*Session, error) {
	access, err := auth.GenerateToken(h.JWTSecret, user)
	if err != nil {
		return nil, err
	}
	plain, rec, err := auth.NewOpaqueToken(user.ID, model.PurposeRefresh)
	if err != nil {
		return nil, err
	}
	if err := h.Backend.Accounts.SaveToken(ctx, rec); err != nil {
		return nil, err
	}
	return &Session{AccessToken: access.Token, RefreshToken: plain, ExpiresAt: access.ExpiresAt, User: *user}, nil
}

// sendToken creates a single-use token and mails it using build.
func (h *AuthHandler) sendToken(ctx context.Context, user *model.User, purpose string,
	build func(baseURL, to, token string) (mail.Message, error)) error {
	plain, rec, err := auth.NewOpaqueToken(user.ID, purpose)
	if err != nil {
		return err
	}
	if err := h.Backend.Accounts.SaveToken(ctx, rec); err != nil {
		return err
	}
	msg, err := build(h.BaseURL, user.Email, plain)
	if err != nil {
		return err
	}
	return h.Mailer.Send(ctx, msg)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := form.Login.Validate(form.Values{"email": req.Email, "password": req.Password}); len(errs) > 0 {
		validationError(w, errs)
		return
	}

	acc, err := h.Backend.Accounts.AccountByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		writeError(w, r, "account", err)
		return
	}
	if acc == nil || acc.PasswordHash == "" || !auth.CheckPassword(acc.PasswordHash, req.Password) {
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	session, err := h.issueSession(r.Context(), &acc.User)
	if err != nil {
		writeError(w, r, "session", err)
		return
	}
	slog.Info("user logged in", "user", acc.Email, "role", acc.Role)
	jsonResponse(w, http.StatusOK, session)
}

// Register handles POST /api/auth/register. A pending invitation addressed
// to the same email sets the new user's role and organization.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	errs := form.Register.Validate(form.Values{
		"name":     strings.TrimSpace(req.Name),
		"email":    req.Email,
		"password": req.Password,
		"confirm":  req.Password,
		"locale":   req.Locale,
	})
	if len(errs) > 0 {
		validationError(w, errs)
		return
	}

	user := &model.User{Name: strings.TrimSpace(req.Name), Email: req.Email, Role: model.RoleUser, Locale: req.Locale}
	var inv *model.Invitation
	if req.InvitationID != "" {
		var err error
		inv, err = h.Backend.Invitations.Get(r.Context(), req.InvitationID)
		if errors.Is(err, backend.ErrNotFound) || (err == nil && (!inv.Redeemable(time.Now()) || !strings.EqualFold(inv.Email, req.Email))) {
			jsonError(w, http.StatusBadRequest, "invitation is not valid for this address")
			return
		}
		if err != nil {
			writeError(w, r, "invitation", err)
			return
		}
		user.Role = inv.Role
		user.OrganizationID = inv.OrganizationID
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, "account", err)
		return
	}
	created, err := h.Backend.Accounts.Register(r.Context(), user, hash)
	if errors.Is(err, backend.ErrConflict) {
		jsonError(w, http.StatusConflict, "an account with this email already exists")
		return
	}
	if err != nil {
		writeError(w, r, "account", err)
		return
	}

	if inv != nil {
		now := time.Now().UTC().Truncate(time.Second)
		usedAt, _ := json.Marshal(now)
		if _, err := h.Backend.Invitations.Update(r.Context(), inv.ID, backend.Patch{
			"status": json.RawMessage(`"` + model.InvitationAccepted + `"`),
			"usedAt": usedAt,
		}); err != nil {
			slog.Error("accepting invitation", "id", inv.ID, "error", err)
		}
	}
	if err := h.sendToken(r.Context(), created, model.PurposeVerifyEmail, mail.Verification); err != nil {
		slog.Error("sending verification email", "user", created.Email, "error", err)
	}

	session, err := h.issueSession(r.Context(), created)
	if err != nil {
		writeError(w, r, "session", err)
		return
	}
	slog.Info("user registered", "user", created.Email, "role", created.Role)
	jsonResponse(w, http.StatusCreated, session)
}

// Refresh handles POST /api/auth/refresh-token. The presented refresh token
// is consumed and replaced.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		jsonError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	tok, err := h.Backend.Accounts.ConsumeToken(r.Context(), auth.HashToken(req.RefreshToken), model.PurposeRefresh)
	if errors.Is(err, backend.ErrNotFound) {
		jsonError(w, http.StatusUnauthorized, "refresh token is invalid or expired")
		return
	}
	if err != nil {
		writeError(w, r, "session", err)
		return
	}
	acc, err := h.Backend.Accounts.Account(r.Context(), tok.UserID)
	if errors.Is(err, backend.ErrNotFound) {
		jsonError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		writeError(w, r, "account", err)
		return
	}

	session, err := h.issueSession(r.Context(), &acc.User)
	if err != nil {
		writeError(w, r, "session", err)
		return
	}
	jsonResponse(w, http.StatusOK, session)
}

// Logout handles POST /api/auth/logout. It revokes the current access token
// and, when given, the refresh token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := h.Backend.Accounts.RevokeAccess(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		writeError(w, r, "session", err)
		return
	}
	if req.RefreshToken != "" {
		_, err := h.Backend.Accounts.ConsumeToken(r.Context(), auth.HashToken(req.RefreshToken), model.PurposeRefresh)
		if err != nil && !errors.Is(err, backend.ErrNotFound) {
			writeError(w, r, "session", err)
			return
		}
	}

	slog.Info("user logged out", "user", claims.Email)
	jsonResponse(w, http.StatusOK, struct{}{})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	acc, err := h.Backend.Accounts.Account(r.Context(), claims.UserID)
	if errors.Is(err, backend.ErrNotFound) {
		jsonError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		writeError(w, r, "account", err)
		return
	}
	jsonResponse(w, http.StatusOK, Me{User: acc.User, EmailVerified: acc.EmailVerified})
}

// ChangePassword handles PUT /api/auth/password. Other sessions of the user
// lose their refresh tokens.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	acc, err := h.Backend.Accounts.Account(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, "account", err)
		return
	}
	if !auth.CheckPassword(acc.PasswordHash, req.CurrentPassword) {
		jsonError(w, http.StatusBadRequest, "current password is incorrect")
		return
	}
	if err := h.setPassword(r.Context(), acc.ID, req.NewPassword); err != nil {
		writeError(w, r, "account", err)
		return
	}

	slog.Info("user changed own password", "user", claims.Email)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *AuthHandler) setPassword(ctx context.Context, userID, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := h.Backend.Accounts.SetPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("setting password: %w", err)
	}
	return h.Backend.Accounts.RevokeTokens(ctx, userID, model.PurposeRefresh)
}

// VerifyEmail handles GET and POST /api/auth/verify-email. GET takes the
// token from the query string, POST from the body.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	req := tokenRequest{Token: r.URL.Query().Get("token")}
	if r.Method == http.MethodPost {
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Token == "" {
		jsonError(w, http.StatusBadRequest, "token is required")
		return
	}

	tok, err := h.Backend.Accounts.ConsumeToken(r.Context(), auth.HashToken(req.Token), model.PurposeVerifyEmail)
	if errors.Is(err, backend.ErrNotFound) {
		jsonError(w, http.StatusBadRequest, "verification link is invalid or expired")
		return
	}
	if err != nil {
		writeError(w, r, "account", err)
		return
	}
	if err := h.Backend.Accounts.MarkEmailVerified(r.Context(), tok.UserID); err != nil {
		writeError(w, r, "account", err)
		return
	}
	slog.Info("email verified", "user_id", tok.UserID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "email verified"})
}

// ForgotPassword handles POST /api/auth/forgot-password. The answer does not
// reveal whether the address has an account.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := form.ForgotPassword.Validate(form.Values{"email": req.Email}); len(errs) > 0 {
		validationError(w, errs)
		return
	}

	acc, err := h.Backend.Accounts.AccountByEmail(r.Context(), req.Email)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		slog.Warn("password reset for unknown address", "email", req.Email)
	case err != nil:
		slog.Error("looking up account for reset", "error", err)
	default:
		if err := h.sendToken(r.Context(), &acc.User, model.PurposeReset, mail.PasswordReset); err != nil {
			slog.Error("sending reset email", "user", acc.Email, "error", err)
		}
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "if the address has an account, a reset link has been sent"})
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		jsonError(w, http.StatusBadRequest, "token is required")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	tok, err := h.Backend.Accounts.ConsumeToken(r.Context(), auth.HashToken(req.Token), model.PurposeReset)
	if errors.Is(err, backend.ErrNotFound) {
		jsonError(w, http.StatusBadRequest, "reset link is invalid or expired")
		return
	}
	if err != nil {
		writeError(w, r, "account", err)
		return
	}
	if err := h.setPassword(r.Context(), tok.UserID, req.Password); err != nil {
		writeError(w, r, "account", err)
		return
	}
	// Following the emailed link proves ownership of the address.
	if err := h.Backend.Accounts.MarkEmailVerified(r.Context(), tok.UserID); err != nil {
		slog.Error("marking email verified", "user_id", tok.UserID, "error", err)
	}
	slog.Info("password reset", "user_id", tok.UserID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
