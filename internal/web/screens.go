package web

import (
	"context"
	"fmt"
	"net/url"

	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/client"
	"github.com/erazemk/evidenca/internal/form"
	"github.com/erazemk/evidenca/internal/model"
)

// Screen describes the list, form, detail and delete screens of one entity.
// Routes are generated from it.
type Screen struct {
	Entity   string
	Title    string
	Singular string
	// LabelField names the field used as the record's heading.
	LabelField string
	// Columns are the grid columns in order; Sort lists the sortable ones.
	Columns []string
	Sort    []string
	// Extra are read-only fields shown on the detail screen only.
	Extra     []Extra
	WriteRole string
	Schema    *form.Schema
	// Editable reports whether a record may still be edited or deleted.
	// Nil means always.
	Editable func(form.Values) bool
	Actions  []Action
	// Image enables the product image panel.
	Image bool

	bind func(*client.Entities) recordSet
}

// Extra is a read-only detail field.
type Extra struct {
	Name  string
	Label string
	// Ref names the entity the value refers to, if any.
	Ref string
}

// Action is a POST button on the detail screen.
type Action struct {
	Name  string
	Label string
	Role  string
	When  func(form.Values) bool
	Run   func(ctx context.Context, e *client.Entities, id string) error
	Done  string
}

// Sortable reports whether the grid can be sorted by column.
func (sc *Screen) Sortable(column string) bool {
	for _, c := range sc.Sort {
		if c == column {
			return true
		}
	}
	return false
}

// Label returns the form label of a field, or its name.
func (sc *Screen) Label(name string) string {
	if f, ok := sc.Schema.Field(name); ok {
		return f.Label
	}
	for _, e := range sc.Extra {
		if e.Name == name {
			return e.Label
		}
	}
	return name
}

func (sc *Screen) action(name string) (*Action, bool) {
	for i := range sc.Actions {
		if sc.Actions[i].Name == name {
			return &sc.Actions[i], true
		}
	}
	return nil, false
}

func (sc *Screen) editable(v form.Values) bool {
	return sc.Editable == nil || sc.Editable(v)
}

func (sc *Screen) path(parts ...string) string {
	p := "/" + sc.Entity
	for _, s := range parts {
		p += "/" + url.PathEscape(s)
	}
	return p
}

func statusIs(field, want string) func(form.Values) bool {
	return func(v form.Values) bool { return v[field] == want }
}

func mustSchema(entity string) *form.Schema {
	s, ok := form.For(entity)
	if !ok {
		panic(fmt.Sprintf("web: no form schema for %s", entity))
	}
	return s
}

// Screens returns the screen descriptors of every entity, in navigation
// order.
func Screens() []*Screen {
	return []*Screen{
		{
			Entity: "organizations", Title: "Organizations", Singular: "Organization", LabelField: "name",
			Columns: []string{"name", "plan", "isActive"}, Sort: backend.OrganizationMeta.Sort,
			WriteRole: model.RoleAdmin, Schema: mustSchema("organizations"),
			bind: func(e *client.Entities) recordSet { return resourceSet[model.Organization]{e.Organizations} },
		},
		{
			Entity: "users", Title: "Users", Singular: "User", LabelField: "name",
			Columns: []string{"name", "email", "role", "locale"}, Sort: backend.UserMeta.Sort,
			WriteRole: model.RoleAdmin, Schema: mustSchema("users"),
			bind: func(e *client.Entities) recordSet { return resourceSet[model.User]{e.Users} },
		},
		{
			Entity: "invitations", Title: "Invitations", Singular: "Invitation", LabelField: "email",
			Columns: []string{"email", "role", "status", "expiresAt"}, Sort: backend.InvitationMeta.Sort,
			Extra: []Extra{
				{Name: "senderId", Label: "Sent by", Ref: "users"},
				{Name: "expiresAt", Label: "Expires"},
				{Name: "usedAt", Label: "Accepted"},
			},
			WriteRole: model.RoleAdmin, Schema: mustSchema("invitations"),
			Editable: statusIs("status", model.InvitationPending),
			Actions: []Action{{
				Name: "revoke", Label: "Revoke", Role: model.RoleAdmin, Done: "Invitation revoked.",
				When: statusIs("status", model.InvitationPending),
				Run: func(ctx context.Context, e *client.Entities, id string) error {
					_, err := e.RevokeInvitation(ctx, id)
					return err
				},
			}},
			bind: func(e *client.Entities) recordSet { return resourceSet[model.Invitation]{e.Invitations} },
		},
		{
			Entity: "companies", Title: "Companies", Singular: "Company", LabelField: "legalName",
			Columns: []string{"legalName", "brandName", "currency", "timezone"}, Sort: backend.CompanyMeta.Sort,
			WriteRole: model.RoleManager, Schema: mustSchema("companies"),
			bind: func(e *client.Entities) recordSet { return resourceSet[model.Company]{e.Companies} },
		},
		{
			Entity: "warehouses", Title: "Warehouses", Singular: "Warehouse", LabelField: "name",
			Columns: []string{"code", "name", "companyId", "isActive"}, Sort: backend.WarehouseMeta.Sort,
			WriteRole: model.RoleManager, Schema: mustSchema("warehouses"),
			bind: func(e *client.Entities) recordSet { return resourceSet[model.Warehouse]{e.Warehouses} },
		},
		{
			Entity: "products", Title: "Products", Singular: "Product", LabelField: "name",
			Columns: []string{"sku", "name", "tracking", "standardCost", "active"}, Sort: backend.ProductMeta.Sort,
			WriteRole: model.RoleManager, Schema: mustSchema("products"), Image: true,
			bind: func(e *client.Entities) recordSet { return resourceSet[model.Product]{e.Products} },
		},
		{
			Entity: "lots", Title: "Lots", Singular: "Lot", LabelField: "lotNumber",
			Columns: []string{"lotNumber", "productId", "expirationDate", "status", "qcState"}, Sort: backend.LotMeta.Sort,
			WriteRole: model.RoleManager, Schema: mustSchema("lots"),
			Editable: statusIs("status", model.LotStatusPending),
			bind:     func(e *client.Entities) recordSet { return resourceSet[model.Lot]{e.Lots} },
		},
		{
			Entity: "uom", Title: "Units of measure", Singular: "Unit", LabelField: "name",
			Columns: []string{"name", "category", "isBase", "ratioToBase"}, Sort: backend.UOMMeta.Sort,
			WriteRole: model.RoleManager, Schema: mustSchema("uom"),
			bind: func(e *client.Entities) recordSet { return resourceSet[model.UOM]{e.UOMs} },
		},
	}
}

// recordSet is a Resource with its record type erased to form values, so
// one set of handlers serves every screen.
type recordSet interface {
	list(ctx context.Context, p model.ListParams) ([]form.Values, int, error)
	// mount lists through a mounted query; unmount stops it following
	// invalidations.
	mount(ctx context.Context, p model.ListParams) (rows []form.Values, total int, unmount func(), err error)
	get(ctx context.Context, id string) (form.Values, error)
	save(ctx context.Context, id string, input url.Values) (string, *form.State, error)
	remove(ctx context.Context, id string) error
}

type resourceSet[T any] struct {
	res *client.Resource[T]
}

func (s resourceSet[T]) list(ctx context.Context, p model.ListParams) ([]form.Values, int, error) {
	page, err := s.res.List(ctx, p)
	if err != nil {
		return nil, 0, err
	}
	rows, err := valuesOf(page.Data)
	return rows, page.TotalCount, err
}

func (s resourceSet[T]) mount(ctx context.Context, p model.ListParams) ([]form.Values, int, func(), error) {
	q := s.res.ListQuery(p)
	st := q.Mount(ctx)
	if st.Status != client.StatusSuccess {
		q.Unmount()
		return nil, 0, nil, st.Err
	}
	rows, err := valuesOf(st.Data.Data)
	if err != nil {
		q.Unmount()
		return nil, 0, nil, err
	}
	return rows, st.Data.TotalCount, q.Unmount, nil
}

func (s resourceSet[T]) get(ctx context.Context, id string) (form.Values, error) {
	rec, err := s.res.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return form.ValuesOf(rec)
}

func (s resourceSet[T]) save(ctx context.Context, id string, input url.Values) (string, *form.State, error) {
	rec, st, err := s.res.SubmitValues(ctx, id, input)
	if err != nil {
		return "", st, err
	}
	v, err := form.ValuesOf(rec)
	if err != nil {
		return "", st, err
	}
	return v["id"], st, nil
}

func (s resourceSet[T]) remove(ctx context.Context, id string) error {
	return s.res.Delete(ctx, id)
}

func valuesOf[T any](records []T) ([]form.Values, error) {
	rows := make([]form.Values, 0, len(records))
	for i := range records {
		v, err := form.ValuesOf(&records[i])
		if err != nil {
			return nil, err
		}
		rows = append(rows, v)
	}
	return rows, nil
}
