package web

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/erazemk/evidenca/internal/client"
	"github.com/erazemk/evidenca/internal/form"
	"github.com/erazemk/evidenca/internal/imaging"
	"github.com/erazemk/evidenca/internal/model"
)

// PageSizes are the page sizes offered by the grid.
var PageSizes = []int{10, model.DefaultPageSize, 50, model.MaxPageSize}

// Header is one grid column heading.
type Header struct {
	Label string
	// Href is empty for columns that cannot be sorted.
	Href  string
	Order string
}

// Cell is one rendered value. Href links references to their record.
type Cell struct {
	Text string
	Href string
}

// Row is one grid row.
type Row struct {
	Href  string
	Cells []Cell
}

type listPage struct {
	PageData
	Screen    *Screen
	Params    model.ListParams
	Headers   []Header
	Rows      []Row
	Total     int
	Pages     int
	PrevHref  string
	NextHref  string
	PageSizes []int
	CanWrite  bool
	Retry     string
}

type formPage struct {
	PageData
	Screen *Screen
	ID     string
	Action string
	Cancel string
	Fields []form.FieldView
}

// DetailField is one read-only value on the detail screen.
type DetailField struct {
	Label string
	Cell
}

type detailPage struct {
	PageData
	Screen    *Screen
	ID        string
	Heading   string
	Fields    []DetailField
	NotFound  bool
	Retry     string
	CanEdit   bool
	Actions   []Action
	HasImage  bool
	CanUpload bool
}

type deletePage struct {
	PageData
	Screen  *Screen
	ID      string
	Heading string
}

// parseListParams reads the grid state from the URL. Invalid values fall
// back to their defaults.
func parseListParams(q url.Values, sc *Screen) model.ListParams {
	var p model.ListParams
	p.Page, _ = strconv.Atoi(q.Get("page"))
	p.PageSize, _ = strconv.Atoi(q.Get("pageSize"))
	p.Search = strings.TrimSpace(q.Get("search"))
	if sort := q.Get("sort"); sc.Sortable(sort) {
		p.Sort = sort
		p.Order = q.Get("order")
	}
	p = p.Normalize()
	if p.Sort == "" {
		p.Order = ""
	}
	return p
}

// listHref returns the grid URL for p.
func listHref(sc *Screen, p model.ListParams) string {
	q := client.ListValues(p)
	if len(q) == 0 {
		return sc.path()
	}
	return sc.path() + "?" + q.Encode()
}

// authFailed tears down the session and sends the browser to the login page
// when err means the API no longer accepts its credentials.
func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, sess *Session, err error) bool {
	if client.KindOf(err) != client.KindUnauthorized {
		return false
	}
	slog.Info("session ended by api", "user", sess.User.Email)
	s.Sessions.Delete(sess.ID)
	clearSessionCookie(w, s.Secure)
	redirectToLogin(w, r)
	return true
}

func errorMessage(err error) string {
	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind() {
		case client.KindNetwork:
			return "The server could not be reached."
		case client.KindForbidden:
			return "You do not have permission to do that."
		}
		if msg := apiErr.Message; msg != "" {
			return strings.ToUpper(msg[:1]) + msg[1:] + "."
		}
	}
	return "Something went wrong."
}

func (s *Server) canWrite(sess *Session, sc *Screen) bool {
	return model.RoleAtLeast(sess.User.Role, sc.WriteRole)
}

// references returns id → label maps for the reference fields among names.
// Failures leave the raw IDs in place.
func (s *Server) references(r *http.Request, sess *Session, sc *Screen, names []string) map[string]map[string]string {
	refs := map[string]map[string]string{}
	for _, name := range names {
		entity, labelField := referenceOf(sc, name)
		if entity == "" {
			continue
		}
		opts, err := s.options(r, sess, entity, labelField)
		if err != nil {
			slog.Warn("failed to load reference labels", "entity", entity, "error", err)
			continue
		}
		labels := make(map[string]string, len(opts))
		for _, o := range opts {
			labels[o.Value] = o.Label
		}
		refs[name] = labels
	}
	return refs
}

func referenceOf(sc *Screen, name string) (entity, labelField string) {
	if f, ok := sc.Schema.Field(name); ok {
		if ref, ok := f.Widget.(form.Reference); ok {
			return ref.Entity, ref.LabelField
		}
		return "", ""
	}
	for _, e := range sc.Extra {
		if e.Name == name && e.Ref != "" {
			if target := labelFields[e.Ref]; target != "" {
				return e.Ref, target
			}
		}
	}
	return "", ""
}

var labelFields = map[string]string{}

func init() {
	for _, sc := range Screens() {
		labelFields[sc.Entity] = sc.LabelField
	}
}

// options lists every record of entity as choices, one page at a time.
func (s *Server) options(r *http.Request, sess *Session, entity, labelField string) ([]form.Option, error) {
	set, ok := sess.sets[entity]
	if !ok {
		return nil, nil
	}
	var opts []form.Option
	for page := 1; ; page++ {
		rows, total, err := set.list(r.Context(), model.ListParams{Page: page, PageSize: model.MaxPageSize, Sort: labelField})
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			opts = append(opts, form.Option{Value: row["id"], Label: row[labelField]})
		}
		if len(rows) == 0 || len(opts) >= total {
			return opts, nil
		}
	}
}

// cell renders one value the way its form field presents it.
func cell(sc *Screen, name string, v form.Values, refs map[string]map[string]string) Cell {
	raw := v[name]
	if entity, _ := referenceOf(sc, name); entity != "" && raw != "" {
		c := Cell{Text: raw, Href: "/" + entity + "/" + url.PathEscape(raw)}
		if label, ok := refs[name][raw]; ok && label != "" {
			c.Text = label
		}
		return c
	}
	f, ok := sc.Schema.Field(name)
	if !ok {
		return Cell{Text: raw}
	}
	switch w := f.Widget.(type) {
	case form.Select:
		for _, o := range w.Options {
			if o.Value == raw {
				return Cell{Text: o.Label}
			}
		}
	case form.Checkbox:
		if raw == "true" {
			return Cell{Text: "Yes"}
		}
		return Cell{Text: "No"}
	case form.Toggle:
		if raw == "true" {
			return Cell{Text: w.On}
		}
		return Cell{Text: w.Off}
	}
	return Cell{Text: raw}
}

// ListPage handles GET /{entity}.
func (s *Server) ListPage(sc *Screen) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r.Context())
		p := parseListParams(r.URL.Query(), sc)
		data := &listPage{
			PageData:  s.page(sess, sc.Title, sc.Entity),
			Screen:    sc,
			Params:    p,
			PageSizes: PageSizes,
			CanWrite:  s.canWrite(sess, sc),
		}

		rows, total, unmount, err := sess.sets[sc.Entity].mount(r.Context(), p)
		if err != nil {
			if s.authFailed(w, r, sess, err) {
				return
			}
			slog.Warn("failed to list records", "entity", sc.Entity, "error", err)
			data.Error = errorMessage(err)
			data.Retry = r.URL.RequestURI()
			s.Templates.Render(w, "list.html", data)
			return
		}
		// Keep the grid following mutations until another grid is shown.
		sess.watch(unmount)

		for _, col := range sc.Columns {
			h := Header{Label: sc.Label(col)}
			if sc.Sortable(col) {
				next := p
				next.Page, next.Sort, next.Order = 1, col, model.OrderAsc
				if p.Sort == col {
					h.Order = p.Order
					if p.Order == model.OrderAsc {
						next.Order = model.OrderDesc
					}
				}
				h.Href = listHref(sc, next)
			}
			data.Headers = append(data.Headers, h)
		}

		refs := s.references(r, sess, sc, sc.Columns)
		for _, v := range rows {
			row := Row{Href: sc.path(v["id"])}
			for _, col := range sc.Columns {
				row.Cells = append(row.Cells, cell(sc, col, v, refs))
			}
			data.Rows = append(data.Rows, row)
		}

		data.Total = total
		data.Pages = max(1, int(math.Ceil(float64(total)/float64(p.PageSize))))
		if p.Page > 1 {
			prev := p
			prev.Page = min(p.Page-1, data.Pages)
			data.PrevHref = listHref(sc, prev)
		}
		if p.Page < data.Pages {
			next := p
			next.Page++
			data.NextHref = listHref(sc, next)
		}
		s.Templates.Render(w, "list.html", data)
	}
}

// DetailPage handles GET /{entity}/{id}.
func (s *Server) DetailPage(sc *Screen) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r.Context())
		id := r.PathValue("id")
		data := &detailPage{
			PageData: s.page(sess, sc.Singular, sc.Entity),
			Screen:   sc,
			ID:       id,
		}

		v, err := sess.sets[sc.Entity].get(r.Context(), id)
		if err != nil {
			if s.authFailed(w, r, sess, err) {
				return
			}
			if client.KindOf(err) == client.KindNotFound {
				data.NotFound = true
				s.Templates.RenderStatus(w, http.StatusNotFound, "detail.html", data)
				return
			}
			slog.Warn("failed to get record", "entity", sc.Entity, "id", id, "error", err)
			data.Error = errorMessage(err)
			data.Retry = r.URL.RequestURI()
			s.Templates.Render(w, "detail.html", data)
			return
		}

		names := make([]string, 0, len(sc.Schema.Fields)+len(sc.Extra))
		for _, f := range sc.Schema.Fields {
			names = append(names, f.Name)
		}
		for _, e := range sc.Extra {
			names = append(names, e.Name)
		}
		refs := s.references(r, sess, sc, names)
		for _, name := range names {
			data.Fields = append(data.Fields, DetailField{Label: sc.Label(name), Cell: cell(sc, name, v, refs)})
		}

		data.Heading = v[sc.LabelField]
		data.Title = sc.Singular + " " + data.Heading
		writable := s.canWrite(sess, sc)
		data.CanEdit = writable && sc.editable(v)
		for _, a := range sc.Actions {
			if model.RoleAtLeast(sess.User.Role, a.Role) && (a.When == nil || a.When(v)) {
				data.Actions = append(data.Actions, a)
			}
		}
		if sc.Image {
			data.HasImage = v["hasImage"] == "true"
			data.CanUpload = writable
		}
		s.Templates.Render(w, "detail.html", data)
	}
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, sess *Session, sc *Screen, id string, st *form.State) {
	for _, f := range sc.Schema.Fields {
		ref, ok := f.Widget.(form.Reference)
		if !ok {
			continue
		}
		opts, err := s.options(r, sess, ref.Entity, ref.LabelField)
		if err != nil {
			slog.Warn("failed to load options", "entity", ref.Entity, "error", err)
			sess.Flash(ToastError, "Choices for "+strings.ToLower(f.Label)+" could not be loaded.")
		}
		st.SetOptions(f.Name, opts)
	}

	data := &formPage{Screen: sc, ID: id}
	if id == "" {
		data.PageData = s.page(sess, "New "+strings.ToLower(sc.Singular), sc.Entity)
		data.Action = sc.path("new")
		data.Cancel = sc.path()
	} else {
		data.PageData = s.page(sess, "Edit "+strings.ToLower(sc.Singular), sc.Entity)
		data.Action = sc.path(id, "edit")
		data.Cancel = sc.path(id)
	}
	data.Fields = st.Fields()
	s.Templates.Render(w, "form.html", data)
}

// NewPage handles GET /{entity}/new.
func (s *Server) NewPage(sc *Screen) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r.Context())
		if !s.canWrite(sess, sc) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		s.renderForm(w, r, sess, sc, "", sc.Schema.NewState())
	}
}

// EditPage handles GET /{entity}/{id}/edit.
func (s *Server) EditPage(sc *Screen) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r.Context())
		if !s.canWrite(sess, sc) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		id := r.PathValue("id")
		v, ok := s.editableRecord(w, r, sess, sc, id, "edited")
		if !ok {
			return
		}
		st := sc.Schema.NewState()
		for _, f := range sc.Schema.Fields {
			st.Values[f.Name] = v[f.Name]
		}
		s.renderForm(w, r, sess, sc, id, st)
	}
}

// editableRecord loads a record that is about to be changed. On failure it
// has already answered the request.
func (s *Server) editableRecord(w http.ResponseWriter, r *http.Request, sess *Session, sc *Screen, id, verb string) (form.Values, bool) {
	v, err := sess.sets[sc.Entity].get(r.Context(), id)
	if err != nil {
		if s.authFailed(w, r, sess, err) {
			return nil, false
		}
		sess.Flash(ToastError, errorMessage(err))
		target := sc.path(id)
		if client.KindOf(err) == client.KindNotFound {
			target = sc.path()
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return nil, false
	}
	if !sc.editable(v) {
		sess.Flash(ToastError, "This "+strings.ToLower(sc.Singular)+" can no longer be "+verb+".")
		http.Redirect(w, r, sc.path(id), http.StatusSeeOther)
		return nil, false
	}
	return v, true
}

// SaveSubmit handles POST /{entity}/new and POST /{entity}/{id}/edit.
// Invalid input is redisplayed without calling the API.
func (s *Server) SaveSubmit(sc *Screen) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r.Context())
		if !s.canWrite(sess, sc) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		id := r.PathValue("id")

		savedID, st, err := sess.sets[sc.Entity].save(r.Context(), id, r.PostForm)
		if err == nil {
			verb := "updated"
			if id == "" {
				verb = "created"
			}
			slog.Info("record saved", "user", sess.User.Email, "entity", sc.Entity, "id", savedID, "action", verb)
			sess.Flash(ToastSuccess, sc.Singular+" "+verb+".")
			http.Redirect(w, r, sc.path(savedID), http.StatusSeeOther)
			return
		}
		if s.authFailed(w, r, sess, err) {
			return
		}

		var apiErr *client.Error
		if errors.As(err, &apiErr) {
			for field, msg := range apiErr.Fields {
				st.Errors[field] = msg
			}
		}
		if client.KindOf(err) == client.KindValidation {
			sess.Flash(ToastError, "Please correct the highlighted fields.")
		} else {
			slog.Warn("failed to save record", "entity", sc.Entity, "id", id, "error", err)
			sess.Flash(ToastError, errorMessage(err))
		}
		s.renderForm(w, r, sess, sc, id, st)
	}
}

// DeletePage handles GET /{entity}/{id}/delete.
func (s *Server) DeletePage(sc *Screen) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r.Context())
		if !s.canWrite(sess, sc) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		id := r.PathValue("id")
		v, ok := s.editableRecord(w, r, sess, sc, id, "deleted")
		if !ok {
			return
		}
		s.Templates.Render(w, "delete.html", &deletePage{
			PageData: s.page(sess, "Delete "+strings.ToLower(sc.Singular), sc.Entity),
			Screen:   sc,
			ID:       id,
			Heading:  v[sc.LabelField],
		})
	}
}

// DeleteSubmit handles POST /{entity}/{id}/delete.
func (s *Server) DeleteSubmit(sc *Screen) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r.Context())
		if !s.canWrite(sess, sc) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		id := r.PathValue("id")
		if err := sess.sets[sc.Entity].remove(r.Context(), id); err != nil {
			if s.authFailed(w, r, sess, err) {
				return
			}
			slog.Warn("failed to delete record", "entity", sc.Entity, "id", id, "error", err)
			sess.Flash(ToastError, errorMessage(err))
			target := sc.path(id)
			if client.KindOf(err) == client.KindNotFound {
				target = sc.path()
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		slog.Info("record deleted", "user", sess.User.Email, "entity", sc.Entity, "id", id)
		sess.Flash(ToastSuccess, sc.Singular+" deleted.")
		http.Redirect(w, r, sc.path(), http.StatusSeeOther)
	}
}

// ActionSubmit handles POST /{entity}/{id}/{action}.
func (s *Server) ActionSubmit(sc *Screen, a Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r.Context())
		if !model.RoleAtLeast(sess.User.Role, a.Role) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		id := r.PathValue("id")
		if err := a.Run(r.Context(), sess.Entities, id); err != nil {
			if s.authFailed(w, r, sess, err) {
				return
			}
			sess.Flash(ToastError, errorMessage(err))
		} else {
			slog.Info("record action", "user", sess.User.Email, "entity", sc.Entity, "id", id, "action", a.Name)
			sess.Flash(ToastSuccess, a.Done)
		}
		http.Redirect(w, r, sc.path(id), http.StatusSeeOther)
	}
}

// ImageSubmit handles POST /products/{id}/image.
func (s *Server) ImageSubmit(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	sc := s.screen("products")
	id := r.PathValue("id")
	if !s.canWrite(sess, sc) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		sess.Flash(ToastError, "The image is too large.")
		http.Redirect(w, r, sc.path(id), http.StatusSeeOther)
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		sess.Flash(ToastError, "Choose an image to upload.")
		http.Redirect(w, r, sc.path(id), http.StatusSeeOther)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read upload", http.StatusBadRequest)
		return
	}
	if err := sess.Entities.UploadProductImage(r.Context(), id, data, http.DetectContentType(data)); err != nil {
		if s.authFailed(w, r, sess, err) {
			return
		}
		sess.Flash(ToastError, errorMessage(err))
	} else {
		slog.Info("product image uploaded", "user", sess.User.Email, "id", id)
		sess.Flash(ToastSuccess, "Image uploaded.")
	}
	http.Redirect(w, r, sc.path(id), http.StatusSeeOther)
}

// ImageGet handles GET /products/{id}/image.
func (s *Server) ImageGet(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	data, mime, err := sess.Entities.ProductImage(r.Context(), r.PathValue("id"))
	if err != nil {
		if client.KindOf(err) == client.KindNotFound {
			http.NotFound(w, r)
			return
		}
		slog.Error("failed to get image", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=60")
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write image response", "error", err)
	}
}
