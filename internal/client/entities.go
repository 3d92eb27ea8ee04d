package client

import (
	"bytes"
	"context"
	"net/http"

	"github.com/erazemk/evidenca/internal/model"
)

// Entities bundles the resource clients of every entity over one client
// and one cache.
type Entities struct {
	Users         *Resource[model.User]
	Organizations *Resource[model.Organization]
	Companies     *Resource[model.Company]
	Warehouses    *Resource[model.Warehouse]
	Products      *Resource[model.Product]
	Lots          *Resource[model.Lot]
	UOMs          *Resource[model.UOM]
	Invitations   *Resource[model.Invitation]
}

// NewEntities returns resource clients sharing c and cache.
func NewEntities(c *Client, cache *Cache) *Entities {
	return &Entities{
		Users:         NewResource[model.User](c, cache, "users"),
		Organizations: NewResource[model.Organization](c, cache, "organizations"),
		Companies:     NewResource[model.Company](c, cache, "companies"),
		Warehouses:    NewResource[model.Warehouse](c, cache, "warehouses"),
		Products:      NewResource[model.Product](c, cache, "products"),
		Lots:          NewResource[model.Lot](c, cache, "lots"),
		UOMs:          NewResource[model.UOM](c, cache, "uom"),
		Invitations:   NewResource[model.Invitation](c, cache, "invitations"),
	}
}

// RevokeInvitation marks a pending invitation revoked.
func (e *Entities) RevokeInvitation(ctx context.Context, id string) (*model.Invitation, error) {
	return e.Invitations.Post(ctx, id, "revoke")
}

// UploadProductImage replaces a product's picture.
func (e *Entities) UploadProductImage(ctx context.Context, id string, data []byte, contentType string) error {
	r := e.Products
	if err := r.Client.SendRaw(ctx, http.MethodPut, r.path(id)+"/image", contentType, bytes.NewReader(data), nil); err != nil {
		return err
	}
	r.invalidate()
	return nil
}

// ProductImage returns a product's picture and its content type.
func (e *Entities) ProductImage(ctx context.Context, id string) ([]byte, string, error) {
	return e.Products.Client.Fetch(ctx, e.Products.path(id)+"/image")
}
