package model

// Warehouse is a physical stock location owned by a company.
type Warehouse struct {
	ID             string `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	Code           string `json:"code" db:"code"`
	IsActive       bool   `json:"isActive" db:"is_active"`
	CompanyID      string `json:"companyId" db:"company_id"`
	OrganizationID string `json:"organizationId" db:"organization_id"`
	Address        string `json:"address" db:"address"`
}
