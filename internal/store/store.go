package store

import (
	"github.com/jmoiron/sqlx"

	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/model"
)

// Store holds one table per entity.
type Store struct {
	DB *sqlx.DB

	Users         *Table[model.User]
	Organizations *Table[model.Organization]
	Companies     *Table[model.Company]
	Warehouses    *Table[model.Warehouse]
	Products      *Table[model.Product]
	Lots          *Table[model.Lot]
	UOMs          *Table[model.UOM]
	Invitations   *Table[model.Invitation]

	Accounts *Accounts
	Images   *Images
}

// New returns a store on db. The schema must already exist.
func New(db *sqlx.DB) *Store {
	s := &Store{
		DB:            db,
		Users:         NewTable(db, &backend.UserMeta),
		Organizations: NewTable(db, &backend.OrganizationMeta),
		Companies:     NewTable(db, &backend.CompanyMeta),
		Warehouses:    NewTable(db, &backend.WarehouseMeta),
		Products:      NewTable(db, &backend.ProductMeta),
		Lots:          NewTable(db, &backend.LotMeta),
		UOMs:          NewTable(db, &backend.UOMMeta),
		Invitations:   NewTable(db, &backend.InvitationMeta),
		Images:        &Images{db: db},
	}
	s.Accounts = NewAccounts(db, s.Users)
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
