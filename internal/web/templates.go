package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	"github.com/erazemk/evidenca/internal/api"
	"github.com/erazemk/evidenca/internal/client"
	"github.com/erazemk/evidenca/internal/model"
)

// Templates parses page templates on first use and keeps them.
type Templates struct {
	fsys fs.FS

	mu     sync.Mutex
	parsed map[string]*template.Template
}

// NewTemplates returns templates read from fsys. Every page is parsed
// together with layout.html.
func NewTemplates(fsys fs.FS) *Templates {
	return &Templates{fsys: fsys, parsed: map[string]*template.Template{}}
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"roleAtLeast": model.RoleAtLeast,
		"roleName": func(role string) string {
			switch role {
			case model.RoleAdmin:
				return "Administrator"
			case model.RoleManager:
				return "Manager"
			case model.RoleUser:
				return "User"
			default:
				return role
			}
		},
	}
}

func (ts *Templates) lookup(name string) (*template.Template, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if t, ok := ts.parsed[name]; ok {
		return t, nil
	}

	layout, err := fs.ReadFile(ts.fsys, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}
	page, err := fs.ReadFile(ts.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", name, err)
	}
	t, err := template.New(name).Funcs(FuncMap()).Parse(string(layout))
	if err != nil {
		return nil, fmt.Errorf("parsing layout for %s: %w", name, err)
	}
	if t, err = t.Parse(string(page)); err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	ts.parsed[name] = t
	return t, nil
}

// Loaded returns the number of parsed pages.
func (ts *Templates) Loaded() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.parsed)
}

// Render renders a page with status 200.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a page with the given status.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, err := ts.lookup(name)
	if err != nil {
		slog.Error("failed to load template", "template", name, "error", err)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("failed to write page", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	User    *api.Me
	Nav     []*Screen
	Active  string
	Toasts  []Toast
	Error   string
	Success string
}

// Server holds all dependencies for page handlers.
type Server struct {
	Templates *Templates
	Sessions  *Sessions
	Screens   []*Screen
	// NewClient returns an unauthenticated API client.
	NewClient func() *client.Client
	Secure    bool
}

// page returns the base data for a page and takes the session's toasts.
func (s *Server) page(sess *Session, title, active string) PageData {
	pd := PageData{Title: title, Active: active}
	if sess != nil {
		pd.User = sess.User
		pd.Toasts = sess.TakeToasts()
		pd.Nav = s.Screens
	}
	return pd
}

func (s *Server) screen(entity string) *Screen {
	for _, sc := range s.Screens {
		if sc.Entity == entity {
			return sc
		}
	}
	return nil
}
