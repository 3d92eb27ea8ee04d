package backend

import "github.com/erazemk/evidenca/internal/model"

// Per-entity metadata shared by every Collection implementation.
var (
	UserMeta = Meta[model.User]{
		Entity: "users",
		ID:     func(u *model.User) *string { return &u.ID },
		Search: []string{"name", "email"},
		Sort:   []string{"name", "email", "role", "locale"},
		Unique: []string{"email"},
	}

	OrganizationMeta = Meta[model.Organization]{
		Entity: "organizations",
		ID:     func(o *model.Organization) *string { return &o.ID },
		Search: []string{"name"},
		Sort:   []string{"name", "plan", "isActive"},
	}

	CompanyMeta = Meta[model.Company]{
		Entity: "companies",
		ID:     func(c *model.Company) *string { return &c.ID },
		Search: []string{"legalName", "brandName", "registrationNumber", "taxId"},
		Sort:   []string{"legalName", "brandName", "currency", "timezone"},
	}

	WarehouseMeta = Meta[model.Warehouse]{
		Entity: "warehouses",
		ID:     func(w *model.Warehouse) *string { return &w.ID },
		Search: []string{"name", "code", "address"},
		Sort:   []string{"name", "code", "isActive"},
		Unique: []string{"code"},
	}

	ProductMeta = Meta[model.Product]{
		Entity: "products",
		ID:     func(p *model.Product) *string { return &p.ID },
		Search: []string{"sku", "name"},
		Sort:   []string{"sku", "name", "tracking", "active"},
		Unique: []string{"sku"},
	}

	LotMeta = Meta[model.Lot]{
		Entity: "lots",
		ID:     func(l *model.Lot) *string { return &l.ID },
		Search: []string{"lotNumber"},
		Sort:   []string{"lotNumber", "manufactureDate", "expirationDate", "status", "qcState"},
		Guard: func(l *model.Lot) error {
			if !l.Editable() {
				return &RuleError{Message: "only pending lots can be modified"}
			}
			return nil
		},
	}

	UOMMeta = Meta[model.UOM]{
		Entity: "uom",
		ID:     func(u *model.UOM) *string { return &u.ID },
		Search: []string{"name", "category"},
		Sort:   []string{"name", "category", "isBase"},
	}

	InvitationMeta = Meta[model.Invitation]{
		Entity: "invitations",
		ID:     func(i *model.Invitation) *string { return &i.ID },
		Search: []string{"email"},
		Sort:   []string{"email", "role", "status", "expiresAt"},
		Guard: func(i *model.Invitation) error {
			if !i.Editable() {
				return &RuleError{Message: "only pending invitations can be modified"}
			}
			return nil
		},
	}
)
