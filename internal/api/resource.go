package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/form"
	"github.com/erazemk/evidenca/internal/model"
)

// Resource serves CRUD endpoints for one entity.
type Resource[T any] struct {
	Coll   backend.Collection[T]
	Meta   *backend.Meta[T]
	Schema *form.Schema
	// Write is the minimum role for create, update and delete.
	Write string
	// Prepare fills server-side defaults into a record before creation.
	Prepare func(r *http.Request, rec *T)
	// Created runs after a successful create.
	Created func(r *http.Request, rec *T)
	// ReadOnly lists JSON keys clients may not set.
	ReadOnly []string
}

// mount registers the entity's routes on mux.
func (res *Resource[T]) mount(mux *http.ServeMux, authMW func(http.Handler) http.Handler) {
	base := "/api/" + res.Meta.Entity
	write := RequireRole(res.Write)

	mux.Handle("GET "+base, authMW(http.HandlerFunc(res.List)))
	mux.Handle("POST "+base, authMW(write(http.HandlerFunc(res.Create))))
	mux.Handle("GET "+base+"/{id}", authMW(http.HandlerFunc(res.Get)))
	mux.Handle("PUT "+base+"/{id}", authMW(write(http.HandlerFunc(res.Update))))
	mux.Handle("DELETE "+base+"/{id}", authMW(write(http.HandlerFunc(res.Delete))))
}

// parseListParams reads page, pageSize, search, sort and order from the
// query string.
func parseListParams(r *http.Request, sortable func(string) bool) (model.ListParams, error) {
	q := r.URL.Query()
	var p model.ListParams
	for _, f := range []struct {
		key string
		dst *int
	}{{"page", &p.Page}, {"pageSize", &p.PageSize}} {
		raw := q.Get(f.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, fmt.Errorf("invalid %s %q", f.key, raw)
		}
		*f.dst = n
	}
	p.Search = q.Get("search")
	p.Sort = q.Get("sort")
	if p.Sort != "" && !sortable(p.Sort) {
		return p, fmt.Errorf("cannot sort by %q", p.Sort)
	}
	p.Order = q.Get("order")
	if p.Order != "" && p.Order != model.OrderAsc && p.Order != model.OrderDesc {
		return p, fmt.Errorf("invalid order %q", p.Order)
	}
	return p.Normalize(), nil
}

// List handles GET /api/{entity}.
func (res *Resource[T]) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r, res.Meta.Sortable)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := res.Coll.List(r.Context(), params)
	if err != nil {
		writeError(w, r, res.Meta.Entity, err)
		return
	}
	jsonResponse(w, http.StatusOK, page)
}

// Get handles GET /api/{entity}/{id}.
func (res *Resource[T]) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := res.Coll.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, res.Meta.Entity, err)
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

// Create handles POST /api/{entity}.
func (res *Resource[T]) Create(w http.ResponseWriter, r *http.Request) {
	patch, ok := res.readPatch(w, r)
	if !ok {
		return
	}
	rec := new(T)
	if len(patch) > 0 {
		raw, _ := json.Marshal(patch)
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(rec); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	*res.Meta.ID(rec) = ""
	if res.Prepare != nil {
		res.Prepare(r, rec)
	}
	if !res.validate(w, rec) {
		return
	}

	created, err := res.Coll.Create(r.Context(), rec)
	if err != nil {
		writeError(w, r, res.Meta.Entity, err)
		return
	}
	slog.Info("record created", "entity", res.Meta.Entity, "id", *res.Meta.ID(created), "user", userOf(r))
	if res.Created != nil {
		res.Created(r, created)
	}
	jsonResponse(w, http.StatusCreated, created)
}

// Update handles PUT /api/{entity}/{id}. The body is shallow-merged onto
// the stored record.
func (res *Resource[T]) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	patch, ok := res.readPatch(w, r)
	if !ok {
		return
	}

	current, err := res.Coll.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, res.Meta.Entity, err)
		return
	}
	if res.Meta.Guard != nil {
		if err := res.Meta.Guard(current); err != nil {
			writeError(w, r, res.Meta.Entity, err)
			return
		}
	}
	preview, err := backend.Merge(current, patch)
	if err != nil {
		writeError(w, r, res.Meta.Entity, err)
		return
	}
	if !res.validate(w, preview) {
		return
	}

	updated, err := res.Coll.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, res.Meta.Entity, err)
		return
	}
	slog.Info("record updated", "entity", res.Meta.Entity, "id", id, "user", userOf(r))
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/{entity}/{id}.
func (res *Resource[T]) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := res.Coll.Delete(r.Context(), id); err != nil {
		writeError(w, r, res.Meta.Entity, err)
		return
	}
	slog.Info("record deleted", "entity", res.Meta.Entity, "id", id, "user", userOf(r))
	jsonResponse(w, http.StatusOK, struct{}{})
}

// readPatch decodes the body as a JSON object without read-only keys.
func (res *Resource[T]) readPatch(w http.ResponseWriter, r *http.Request) (backend.Patch, bool) {
	var patch backend.Patch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	delete(patch, "id")
	for _, k := range res.ReadOnly {
		delete(patch, k)
	}
	return patch, true
}

// validate checks rec against the entity's form schema.
func (res *Resource[T]) validate(w http.ResponseWriter, rec *T) bool {
	if res.Schema == nil {
		return true
	}
	values, err := form.ValuesOf(rec)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid record")
		return false
	}
	if errs := res.Schema.Validate(values); len(errs) > 0 {
		validationError(w, errs)
		return false
	}
	return true
}

func userOf(r *http.Request) string {
	if c := GetClaims(r.Context()); c != nil {
		return c.Email
	}
	return ""
}
