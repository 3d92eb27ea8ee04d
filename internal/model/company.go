package model

// Company is a legal entity inside an organization.
type Company struct {
	ID                 string `json:"id" db:"id"`
	LegalName          string `json:"legalName" db:"legal_name"`
	BrandName          string `json:"brandName" db:"brand_name"`
	RegistrationNumber string `json:"registrationNumber" db:"registration_number"`
	TaxID              string `json:"taxId" db:"tax_id"`
	VATNumber          string `json:"vatNumber" db:"vat_number"`
	Currency           string `json:"currency" db:"currency"`
	Timezone           string `json:"timezone" db:"timezone"`
	OrganizationID     string `json:"organizationId" db:"organization_id"`
}
