package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/erazemk/evidenca/internal/form"
	"github.com/erazemk/evidenca/internal/model"
)

// Resource is the API client of one entity. Reads go through Cache when it
// is set; successful writes invalidate the entity's tag.
type Resource[T any] struct {
	Client *Client
	Cache  *Cache
	Entity string
	// Schema validates form input before any request is sent.
	Schema *form.Schema
}

// NewResource returns the client of entity.
func NewResource[T any](c *Client, cache *Cache, entity string) *Resource[T] {
	schema, _ := form.For(entity)
	return &Resource[T]{Client: c, Cache: cache, Entity: entity, Schema: schema}
}

func (r *Resource[T]) path(id string) string {
	if id == "" {
		return "/api/" + r.Entity
	}
	return "/api/" + r.Entity + "/" + url.PathEscape(id)
}

// ListValues encodes params as query string values. Defaults are omitted.
func ListValues(p model.ListParams) url.Values {
	q := url.Values{}
	if p.Page > 1 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 && p.PageSize != model.DefaultPageSize {
		q.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
		if p.Order != "" {
			q.Set("order", p.Order)
		}
	}
	return q
}

func (r *Resource[T]) fetchList(ctx context.Context, p model.ListParams) (model.Page[T], error) {
	var page model.Page[T]
	err := r.Client.Do(ctx, http.MethodGet, r.path(""), ListValues(p), nil, &page)
	return page, err
}

func (r *Resource[T]) fetchOne(ctx context.Context, id string) (*T, error) {
	rec := new(T)
	if err := r.Client.Do(ctx, http.MethodGet, r.path(id), nil, nil, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns one page of records.
func (r *Resource[T]) List(ctx context.Context, p model.ListParams) (model.Page[T], error) {
	if r.Cache == nil {
		return r.fetchList(ctx, p)
	}
	v, err := r.Cache.Fetch(ctx, r.listKey(p), func(ctx context.Context) (any, error) {
		return r.fetchList(ctx, p)
	})
	if err != nil {
		return model.Page[T]{}, err
	}
	return v.(model.Page[T]), nil
}

// Get returns one record.
func (r *Resource[T]) Get(ctx context.Context, id string) (*T, error) {
	if r.Cache == nil {
		return r.fetchOne(ctx, id)
	}
	v, err := r.Cache.Fetch(ctx, r.getKey(id), func(ctx context.Context) (any, error) {
		return r.fetchOne(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

func (r *Resource[T]) listKey(p model.ListParams) Key {
	return Key{Entity: r.Entity, Op: "list", Params: ListValues(p.Normalize()).Encode()}
}

func (r *Resource[T]) getKey(id string) Key {
	return Key{Entity: r.Entity, Op: "get", Params: id}
}

// ListQuery returns a query over one page of records.
func (r *Resource[T]) ListQuery(p model.ListParams) *Query[model.Page[T]] {
	return NewQuery(r.cache(), r.listKey(p), func(ctx context.Context) (model.Page[T], error) {
		return r.fetchList(ctx, p)
	})
}

// GetQuery returns a query over one record.
func (r *Resource[T]) GetQuery(id string) *Query[*T] {
	return NewQuery(r.cache(), r.getKey(id), func(ctx context.Context) (*T, error) {
		return r.fetchOne(ctx, id)
	})
}

func (r *Resource[T]) cache() *Cache {
	if r.Cache == nil {
		r.Cache = NewCache()
	}
	return r.Cache
}

// Create sends a new record. body is a *T or a JSON object.
func (r *Resource[T]) Create(ctx context.Context, body any) (*T, error) {
	rec := new(T)
	if err := r.Client.Do(ctx, http.MethodPost, r.path(""), nil, body, rec); err != nil {
		return nil, err
	}
	r.invalidate()
	return rec, nil
}

// Update sends a partial record that the server merges onto the stored one.
func (r *Resource[T]) Update(ctx context.Context, id string, patch any) (*T, error) {
	rec := new(T)
	if err := r.Client.Do(ctx, http.MethodPut, r.path(id), nil, patch, rec); err != nil {
		return nil, err
	}
	r.invalidate()
	return rec, nil
}

// Delete removes a record.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	if err := r.Client.Do(ctx, http.MethodDelete, r.path(id), nil, nil, nil); err != nil {
		return err
	}
	r.invalidate()
	return nil
}

// Post calls an action endpoint below a record, e.g. "revoke".
func (r *Resource[T]) Post(ctx context.Context, id, action string) (*T, error) {
	rec := new(T)
	if err := r.Client.Do(ctx, http.MethodPost, r.path(id)+"/"+action, nil, nil, rec); err != nil {
		return nil, err
	}
	r.invalidate()
	return rec, nil
}

func (r *Resource[T]) invalidate() {
	if r.Cache != nil {
		r.Cache.Invalidate(r.Entity)
	}
}

// Submit validates form input and, when valid, creates the record (empty
// id) or updates it. Invalid input fails with a validation *Error without
// any request being sent.
func (r *Resource[T]) Submit(ctx context.Context, id string, st *form.State) (*T, error) {
	if !st.Valid() {
		return nil, &Error{Message: "validation failed: " + st.Errors.Error(), Fields: st.Errors}
	}
	if id == "" {
		return r.Create(ctx, st.Payload())
	}
	return r.Update(ctx, id, st.Payload())
}

// SubmitValues binds raw input values to the entity's schema and submits
// them.
func (r *Resource[T]) SubmitValues(ctx context.Context, id string, values url.Values) (*T, *form.State, error) {
	st := r.Schema.Bind(values)
	rec, err := r.Submit(ctx, id, st)
	return rec, st, err
}
