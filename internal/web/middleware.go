package web

import (
	"context"
	"net/http"
	"net/url"
)

type webContextKey string

const webSessionKey webContextKey = "websession"

const sessionCookie = "evidenca_session"

// SessionMiddleware loads the session named by the cookie and redirects to
// the login page when there is none or its credentials are gone.
func SessionMiddleware(sessions *Sessions, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookie)
			if err != nil || cookie.Value == "" {
				redirectToLogin(w, r)
				return
			}

			sess := sessions.Get(cookie.Value)
			if sess == nil || !sess.Client.Authenticated() {
				if sess != nil {
					sessions.Delete(sess.ID)
				}
				clearSessionCookie(w, secure)
				redirectToLogin(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), webSessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := "/login"
	if r.Method == http.MethodGet && r.URL.Path != "/" {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func setSessionCookie(w http.ResponseWriter, sess *Session, sessions *Sessions, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(sessions.TTL.Seconds()),
	})
}

// clearSessionCookie clears the session cookie with consistent attributes.
func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// GetSession retrieves the session from the request context.
func GetSession(ctx context.Context) *Session {
	sess, _ := ctx.Value(webSessionKey).(*Session)
	return sess
}
