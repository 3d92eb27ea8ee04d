package mock

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/erazemk/evidenca/internal/api"
	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/model"
)

// Store holds one in-memory collection per entity.
type Store struct {
	Users         *Collection[model.User]
	Organizations *Collection[model.Organization]
	Companies     *Collection[model.Company]
	Warehouses    *Collection[model.Warehouse]
	Products      *Collection[model.Product]
	Lots          *Collection[model.Lot]
	UOMs          *Collection[model.UOM]
	Invitations   *Collection[model.Invitation]

	Accounts *Accounts
	Images   *Images
}

// New returns a store filled with fixtures according to seed.
func New(seed Seed) *Store {
	s := &Store{
		Users:         NewCollection(&backend.UserMeta),
		Organizations: NewCollection(&backend.OrganizationMeta),
		Companies:     NewCollection(&backend.CompanyMeta),
		Warehouses:    NewCollection(&backend.WarehouseMeta),
		Products:      NewCollection(&backend.ProductMeta),
		Lots:          NewCollection(&backend.LotMeta),
		UOMs:          NewCollection(&backend.UOMMeta),
		Invitations:   NewCollection(&backend.InvitationMeta),
	}
	s.Accounts = NewAccounts(s.Users)
	s.Images = NewImages(s.Products)
	s.load(seed)
	return s
}

// Backend exposes the store through the shared backend contract.
func (s *Store) Backend() *backend.Backend {
	return &backend.Backend{
		Users:         s.Users,
		Organizations: s.Organizations,
		Companies:     s.Companies,
		Warehouses:    s.Warehouses,
		Products:      s.Products,
		Lots:          s.Lots,
		UOMs:          s.UOMs,
		Invitations:   s.Invitations,
		Accounts:      s.Accounts,
		Images:        s.Images,
	}
}

// FirstUser returns the first fixture user with the given role.
func (s *Store) FirstUser(role string) (model.User, bool) {
	for _, u := range s.Users.All() {
		if u.Role == role {
			return u, true
		}
	}
	return model.User{}, false
}

// NewServer serves the REST surface on top of the store. A random signing
// secret is used when opts has none.
func NewServer(s *Store, opts api.Options) http.Handler {
	if opts.JWTSecret == "" {
		buf := make([]byte, 32)
		rand.Read(buf)
		opts.JWTSecret = hex.EncodeToString(buf)
	}
	return api.NewRouter(s.Backend(), opts)
}
