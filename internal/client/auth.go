package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/erazemk/evidenca/internal/api"
)

// RegisterInput is the body of a registration.
type RegisterInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Locale       string `json:"locale,omitempty"`
	InvitationID string `json:"invitationId,omitempty"`
}

// Login signs in and stores the session's credentials.
func (c *Client) Login(ctx context.Context, email, password string) (*api.Session, error) {
	var s api.Session
	body := map[string]string{"email": email, "password": password}
	if err := c.Do(ctx, http.MethodPost, "/api/auth/login", nil, body, &s); err != nil {
		return nil, err
	}
	c.Tokens.SetTokens(s.AccessToken, s.RefreshToken)
	return &s, nil
}

// Register creates an account and signs in.
func (c *Client) Register(ctx context.Context, in RegisterInput) (*api.Session, error) {
	var s api.Session
	if err := c.Do(ctx, http.MethodPost, "/api/auth/register", nil, in, &s); err != nil {
		return nil, err
	}
	c.Tokens.SetTokens(s.AccessToken, s.RefreshToken)
	return &s, nil
}

// Logout revokes the session on the server. Local credentials are cleared
// even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.Tokens.Clear()
	access, refresh := c.Tokens.Tokens()
	if access == "" {
		return nil
	}
	return c.Do(ctx, http.MethodPost, "/api/auth/logout", nil, map[string]string{"refreshToken": refresh}, nil)
}

// Refresh exchanges the stored refresh token for new credentials.
func (c *Client) Refresh(ctx context.Context) (*api.Session, error) {
	_, refresh := c.Tokens.Tokens()
	var s api.Session
	if err := c.Do(ctx, http.MethodPost, "/api/auth/refresh-token", nil, map[string]string{"refreshToken": refresh}, &s); err != nil {
		return nil, err
	}
	c.Tokens.SetTokens(s.AccessToken, s.RefreshToken)
	return &s, nil
}

// refresh rotates credentials after stale was rejected. A concurrent caller
// that already rotated them wins.
func (c *Client) refresh(ctx context.Context, stale string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	access, refresh := c.Tokens.Tokens()
	if access != stale && access != "" {
		return nil
	}
	if refresh == "" {
		return &Error{Status: http.StatusUnauthorized, Message: "session expired"}
	}
	_, err := c.Refresh(ctx)
	return err
}

// Me returns the signed-in identity.
func (c *Client) Me(ctx context.Context) (*api.Me, error) {
	var me api.Me
	if err := c.Do(ctx, http.MethodGet, "/api/auth/me", nil, nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// ChangePassword replaces the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.Do(ctx, http.MethodPut, "/api/auth/password", nil,
		map[string]string{"currentPassword": current, "newPassword": next}, nil)
}

// ForgotPassword asks for a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.Do(ctx, http.MethodPost, "/api/auth/forgot-password", nil, map[string]string{"email": email}, nil)
}

// ResetPassword sets a new password with a mailed token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	return c.Do(ctx, http.MethodPost, "/api/auth/reset-password", nil,
		map[string]string{"token": token, "password": password}, nil)
}

// VerifyEmail confirms an address with a mailed token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	return c.Do(ctx, http.MethodGet, "/api/auth/verify-email", url.Values{"token": {token}}, nil, nil)
}
