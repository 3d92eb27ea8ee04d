package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/evidenca/internal/client"
	"github.com/erazemk/evidenca/internal/form"
)

type accountPage struct {
	PageData
	Fields []form.FieldView
	// Hidden carries the next URL, invitation or reset token.
	Hidden map[string]string
	Done   bool
}

func (s *Server) renderAccount(w http.ResponseWriter, sess *Session, name, title string, st *form.State, data *accountPage) {
	if data == nil {
		data = &accountPage{}
	}
	base := s.page(sess, title, "")
	base.Error, base.Success = data.Error, data.Success
	data.PageData = base
	if st != nil {
		data.Fields = st.Fields()
	}
	s.Templates.Render(w, name, data)
}

// safeNext returns a local redirect target, or "/".
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// startSession creates the browser session of a client that just signed in.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, c *client.Client) (*Session, error) {
	me, err := c.Me(r.Context())
	if err != nil {
		return nil, err
	}
	cache := client.NewCache()
	sess := &Session{
		User:     me,
		Client:   c,
		Cache:    cache,
		Entities: client.NewEntities(c, cache),
		sets:     map[string]recordSet{},
	}
	for _, sc := range s.Screens {
		sess.sets[sc.Entity] = sc.bind(sess.Entities)
	}
	s.Sessions.Add(sess)
	setSessionCookie(w, sess, s.Sessions, s.Secure)
	slog.Info("user signed in", "user", me.Email, "role", me.Role)
	return sess, nil
}

// LoginPage handles GET /login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.renderAccount(w, nil, "login.html", "Sign in", form.Login.NewState(), &accountPage{
		Hidden: map[string]string{"next": safeNext(r.URL.Query().Get("next"))},
	})
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	next := safeNext(r.PostForm.Get("next"))
	data := &accountPage{Hidden: map[string]string{"next": next}}

	st := form.Login.Bind(r.PostForm)
	if !st.Valid() {
		s.renderAccount(w, nil, "login.html", "Sign in", st, data)
		return
	}

	c := s.NewClient()
	if _, err := c.Login(r.Context(), st.Values["email"], r.PostForm.Get("password")); err != nil {
		if client.KindOf(err) == client.KindUnauthorized {
			data.Error = "Invalid email or password."
		} else {
			slog.Warn("login failed", "email", st.Values["email"], "error", err)
			data.Error = errorMessage(err)
		}
		s.renderAccount(w, nil, "login.html", "Sign in", st, data)
		return
	}
	if _, err := s.startSession(w, r, c); err != nil {
		slog.Error("failed to start session", "error", err)
		data.Error = errorMessage(err)
		s.renderAccount(w, nil, "login.html", "Sign in", st, data)
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// Logout handles POST /logout.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if sess := s.Sessions.Get(cookie.Value); sess != nil {
			if err := sess.Client.Logout(r.Context()); err != nil {
				slog.Warn("failed to revoke session", "user", sess.User.Email, "error", err)
			}
			slog.Info("user signed out", "user", sess.User.Email)
			s.Sessions.Delete(sess.ID)
		}
	}
	clearSessionCookie(w, s.Secure)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// RegisterPage handles GET /register. An invitation ID in the query is
// redeemed on submit.
func (s *Server) RegisterPage(w http.ResponseWriter, r *http.Request) {
	s.renderAccount(w, nil, "register.html", "Create account", form.Register.NewState(), &accountPage{
		Hidden: map[string]string{"invitation": r.URL.Query().Get("invitation")},
	})
}

// RegisterSubmit handles POST /register.
func (s *Server) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	invitation := r.PostForm.Get("invitation")
	data := &accountPage{Hidden: map[string]string{"invitation": invitation}}

	st := form.Register.Bind(r.PostForm)
	if !st.Valid() {
		s.renderAccount(w, nil, "register.html", "Create account", st, data)
		return
	}

	c := s.NewClient()
	_, err := c.Register(r.Context(), client.RegisterInput{
		Name:         st.Values["name"],
		Email:        st.Values["email"],
		Password:     r.PostForm.Get("password"),
		Locale:       st.Values["locale"],
		InvitationID: invitation,
	})
	if err != nil {
		var apiErr *client.Error
		if errors.As(err, &apiErr) {
			for field, msg := range apiErr.Fields {
				st.Errors[field] = msg
			}
		}
		data.Error = errorMessage(err)
		s.renderAccount(w, nil, "register.html", "Create account", st, data)
		return
	}

	sess, err := s.startSession(w, r, c)
	if err != nil {
		slog.Error("failed to start session", "error", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	sess.Flash(ToastSuccess, "Welcome! We sent a verification link to "+st.Values["email"]+".")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ForgotPage handles GET /forgot-password.
func (s *Server) ForgotPage(w http.ResponseWriter, r *http.Request) {
	s.renderAccount(w, nil, "forgot_password.html", "Forgot password", form.ForgotPassword.NewState(), nil)
}

// ForgotSubmit handles POST /forgot-password.
func (s *Server) ForgotSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	st := form.ForgotPassword.Bind(r.PostForm)
	if !st.Valid() {
		s.renderAccount(w, nil, "forgot_password.html", "Forgot password", st, nil)
		return
	}
	data := &accountPage{}
	if err := s.NewClient().ForgotPassword(r.Context(), st.Values["email"]); err != nil {
		slog.Warn("forgot password failed", "error", err)
		data.Error = errorMessage(err)
	} else {
		data.Done = true
		data.Success = "If the address is registered, a reset link is on its way."
	}
	s.renderAccount(w, nil, "forgot_password.html", "Forgot password", st, data)
}

// ResetPage handles GET /reset-password.
func (s *Server) ResetPage(w http.ResponseWriter, r *http.Request) {
	s.renderAccount(w, nil, "reset_password.html", "Reset password", form.ResetPassword.NewState(), &accountPage{
		Hidden: map[string]string{"token": r.URL.Query().Get("token")},
	})
}

// ResetSubmit handles POST /reset-password.
func (s *Server) ResetSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	token := r.PostForm.Get("token")
	data := &accountPage{Hidden: map[string]string{"token": token}}
	st := form.ResetPassword.Bind(r.PostForm)
	if !st.Valid() {
		s.renderAccount(w, nil, "reset_password.html", "Reset password", st, data)
		return
	}
	if err := s.NewClient().ResetPassword(r.Context(), token, r.PostForm.Get("password")); err != nil {
		data.Error = errorMessage(err)
		s.renderAccount(w, nil, "reset_password.html", "Reset password", st, data)
		return
	}
	s.renderAccount(w, nil, "login.html", "Sign in", form.Login.NewState(), &accountPage{
		PageData: PageData{Success: "Your password was changed. Sign in with the new one."},
		Hidden:   map[string]string{"next": "/"},
	})
}

// VerifyPage handles GET /verify-email.
func (s *Server) VerifyPage(w http.ResponseWriter, r *http.Request) {
	data := &accountPage{}
	if err := s.NewClient().VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		data.Error = errorMessage(err)
	} else {
		data.Done = true
		data.Success = "Your email address is verified."
	}
	s.renderAccount(w, nil, "verify_email.html", "Verify email", nil, data)
}

// SettingsPage handles GET /settings.
func (s *Server) SettingsPage(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	s.renderAccount(w, sess, "settings.html", "Settings", form.ChangePassword.NewState(), nil)
}

// SettingsSubmit handles POST /settings (change own password).
func (s *Server) SettingsSubmit(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	st := form.ChangePassword.Bind(r.PostForm)
	if !st.Valid() {
		s.renderAccount(w, sess, "settings.html", "Settings", st, nil)
		return
	}

	err := sess.Client.ChangePassword(r.Context(), r.PostForm.Get("currentPassword"), r.PostForm.Get("password"))
	if err != nil {
		if s.authFailed(w, r, sess, err) {
			return
		}
		sess.Flash(ToastError, errorMessage(err))
		s.renderAccount(w, sess, "settings.html", "Settings", st, nil)
		return
	}
	slog.Info("password changed", "user", sess.User.Email)
	sess.Flash(ToastSuccess, "Password changed.")
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}
