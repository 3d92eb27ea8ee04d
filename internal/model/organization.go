package model

// Organization is the tenant that users, companies and warehouses belong to.
type Organization struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Plan     string `json:"plan" db:"plan"`
	IsActive bool   `json:"isActive" db:"is_active"`
}

// Organization plans.
const (
	PlanFree       = "free"
	PlanTeam       = "team"
	PlanEnterprise = "enterprise"
)
