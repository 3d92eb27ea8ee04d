package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/erazemk/evidenca/internal/client"
	webembed "github.com/erazemk/evidenca/web"
)

// Options configures the admin UI.
type Options struct {
	// API serves the REST API in process. When nil, APIURL is used.
	API    http.Handler
	APIURL string
	// Secure marks the session cookie HTTPS-only.
	Secure     bool
	SessionTTL time.Duration
}

// DefaultSessionTTL is how long a browser session lives without sign-out.
const DefaultSessionTTL = 12 * time.Hour

// NewServer returns the UI server. Pages are parsed on first use.
func NewServer(opts Options) (*Server, error) {
	newClient := func() *client.Client { return client.NewInProcess(opts.API, nil) }
	if opts.API == nil {
		if opts.APIURL == "" {
			return nil, errors.New("web: no API handler or URL")
		}
		newClient = func() *client.Client { return client.New(opts.APIURL, nil, nil) }
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Server{
		Templates: NewTemplates(webembed.TemplatesFS()),
		Sessions:  NewSessions(ttl),
		Screens:   Screens(),
		NewClient: newClient,
		Secure:    opts.Secure,
	}, nil
}

// Handler returns the page router. Entity routes are generated from the
// screen descriptors.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	sessionAuth := SessionMiddleware(s.Sessions, s.Secure)
	page := func(h http.HandlerFunc) http.Handler { return sessionAuth(h) }

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	// Public routes.
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("POST /logout", s.Logout)
	mux.HandleFunc("GET /register", s.RegisterPage)
	mux.HandleFunc("POST /register", s.RegisterSubmit)
	mux.HandleFunc("GET /forgot-password", s.ForgotPage)
	mux.HandleFunc("POST /forgot-password", s.ForgotSubmit)
	mux.HandleFunc("GET /reset-password", s.ResetPage)
	mux.HandleFunc("POST /reset-password", s.ResetSubmit)
	mux.HandleFunc("GET /verify-email", s.VerifyPage)

	// Authenticated routes.
	mux.Handle("GET /{$}", page(s.Dashboard))
	mux.Handle("GET /settings", page(s.SettingsPage))
	mux.Handle("POST /settings", page(s.SettingsSubmit))

	for _, sc := range s.Screens {
		base := "/" + sc.Entity
		mux.Handle("GET "+base, page(s.ListPage(sc)))
		mux.Handle("GET "+base+"/new", page(s.NewPage(sc)))
		mux.Handle("POST "+base+"/new", page(s.SaveSubmit(sc)))
		mux.Handle("GET "+base+"/{id}", page(s.DetailPage(sc)))
		mux.Handle("GET "+base+"/{id}/edit", page(s.EditPage(sc)))
		mux.Handle("POST "+base+"/{id}/edit", page(s.SaveSubmit(sc)))
		mux.Handle("GET "+base+"/{id}/delete", page(s.DeletePage(sc)))
		mux.Handle("POST "+base+"/{id}/delete", page(s.DeleteSubmit(sc)))
		for _, a := range sc.Actions {
			mux.Handle("POST "+base+"/{id}/"+a.Name, page(s.ActionSubmit(sc, a)))
		}
		if sc.Image {
			mux.Handle("GET "+base+"/{id}/image", page(s.ImageGet))
			mux.Handle("POST "+base+"/{id}/image", page(s.ImageSubmit))
		}
	}

	return mux
}
