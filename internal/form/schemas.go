package form

import (
	"errors"
	"regexp"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"github.com/erazemk/evidenca/internal/model"
)

var (
	zero = decimal.Zero

	skuPattern = Pattern{
		Expr:    regexp.MustCompile(`^[A-Za-z0-9._-]{1,32}$`),
		Message: "may only contain letters, digits, dots, dashes and underscores",
	}
	codePattern = Pattern{
		Expr:    regexp.MustCompile(`^[A-Z0-9-]{2,16}$`),
		Message: "must be 2-16 uppercase letters, digits or dashes",
	}

	localeRule = Custom{Name: "locale", Func: func(v string) error {
		if _, err := language.Parse(v); err != nil {
			return errors.New("must be a language tag such as en-US")
		}
		return nil
	}}
	currencyRule = Custom{Name: "currency", Func: func(v string) error {
		if _, err := currency.ParseISO(v); err != nil {
			return errors.New("must be an ISO 4217 currency code")
		}
		return nil
	}}
	timezoneRule = Custom{Name: "timezone", Func: func(v string) error {
		if _, err := time.LoadLocation(v); err != nil {
			return errors.New("must be an IANA time zone such as Europe/Ljubljana")
		}
		return nil
	}}
)

func options(pairs ...string) []Option {
	opts := make([]Option, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		opts = append(opts, Option{Value: pairs[i], Label: pairs[i+1]})
	}
	return opts
}

var roleOptions = options(
	model.RoleAdmin, "Administrator",
	model.RoleManager, "Manager",
	model.RoleUser, "User",
)

var schemas = map[string]*Schema{
	"users": {
		Entity: "users",
		Fields: []Field{
			{Name: "name", Label: "Name", Widget: Text{}, Rules: []Rule{Required{}, Length{Max: 120}}},
			{Name: "email", Label: "Email", Widget: Email{Placeholder: "name@example.com"}, Rules: []Rule{Required{}}},
			{Name: "role", Label: "Role", Widget: Select{Options: roleOptions}, Rules: []Rule{Required{}}},
			{Name: "locale", Label: "Locale", Help: "Language tag, e.g. sl-SI", Widget: Text{Placeholder: "en-US"}, Rules: []Rule{localeRule}},
			{Name: "organizationId", Label: "Organization", Widget: Reference{Entity: "organizations", LabelField: "name"}},
		},
	},
	"organizations": {
		Entity: "organizations",
		Fields: []Field{
			{Name: "name", Label: "Name", Widget: Text{}, Rules: []Rule{Required{}, Length{Max: 120}}},
			{Name: "plan", Label: "Plan", Widget: Select{Options: options(
				model.PlanFree, "Free",
				model.PlanTeam, "Team",
				model.PlanEnterprise, "Enterprise",
			)}, Rules: []Rule{Required{}}},
			{Name: "isActive", Label: "Active", Widget: Toggle{On: "Active", Off: "Suspended"}},
		},
	},
	"companies": {
		Entity: "companies",
		Fields: []Field{
			{Name: "legalName", Label: "Legal name", Widget: Text{}, Rules: []Rule{Required{}, Length{Max: 200}}},
			{Name: "brandName", Label: "Brand name", Widget: Text{}, Rules: []Rule{Length{Max: 120}}},
			{Name: "registrationNumber", Label: "Registration number", Widget: Text{}, Rules: []Rule{Required{}, Length{Max: 40}}},
			{Name: "taxId", Label: "Tax ID", Widget: Text{}, Rules: []Rule{Required{}, Length{Max: 40}}},
			{Name: "vatNumber", Label: "VAT number", Widget: Text{Placeholder: "SI12345678"}, Rules: []Rule{Length{Max: 20}}},
			{Name: "currency", Label: "Currency", Widget: Text{Placeholder: "EUR"}, Rules: []Rule{Required{}, currencyRule}},
			{Name: "timezone", Label: "Time zone", Widget: Text{Placeholder: "Europe/Ljubljana"}, Rules: []Rule{Required{}, timezoneRule}},
			{Name: "organizationId", Label: "Organization", Widget: Reference{Entity: "organizations", LabelField: "name"}},
		},
	},
	"warehouses": {
		Entity: "warehouses",
		Fields: []Field{
			{Name: "name", Label: "Name", Widget: Text{}, Rules: []Rule{Required{}, Length{Max: 120}}},
			{Name: "code", Label: "Code", Widget: Text{Placeholder: "WH-001"}, Rules: []Rule{Required{}, codePattern}},
			{Name: "isActive", Label: "Active", Widget: Toggle{On: "Active", Off: "Closed"}},
			{Name: "companyId", Label: "Company", Widget: Reference{Entity: "companies", LabelField: "legalName"}, Rules: []Rule{Required{}}},
			{Name: "organizationId", Label: "Organization", Widget: Reference{Entity: "organizations", LabelField: "name"}},
			{Name: "address", Label: "Address", Widget: Text{Multiline: true}, Rules: []Rule{Length{Max: 500}}},
		},
	},
	"products": {
		Entity: "products",
		Fields: []Field{
			{Name: "sku", Label: "SKU", Widget: Text{}, Rules: []Rule{Required{}, skuPattern}},
			{Name: "name", Label: "Name", Widget: Text{}, Rules: []Rule{Required{}, Length{Max: 200}}},
			{Name: "tracking", Label: "Tracking", Widget: Select{Options: options(
				model.TrackingNone, "None",
				model.TrackingLot, "By lot",
				model.TrackingSerial, "By serial number",
			)}, Rules: []Rule{Required{}}},
			{Name: "baseUomId", Label: "Base unit", Widget: Reference{Entity: "uom", LabelField: "name"}, Rules: []Rule{Required{}}},
			{Name: "packUomId", Label: "Pack unit", Widget: Reference{Entity: "uom", LabelField: "name"}},
			{Name: "standardCost", Label: "Standard cost", Widget: Number{Step: "0.01"}, Rules: []Rule{Range{Min: &zero}}},
			{Name: "active", Label: "Active", Widget: Checkbox{}},
		},
	},
	"lots": {
		Entity: "lots",
		Fields: []Field{
			{Name: "productId", Label: "Product", Widget: Reference{Entity: "products", LabelField: "name"}, Rules: []Rule{Required{}}},
			{Name: "lotNumber", Label: "Lot number", Widget: Text{}, Rules: []Rule{Required{}, Length{Max: 64}}},
			{Name: "manufactureDate", Label: "Manufactured", Widget: Date{}},
			{Name: "expirationDate", Label: "Expires", Widget: Date{}},
			{Name: "status", Label: "Status", Widget: Select{Options: options(
				model.LotStatusPending, "Pending",
				model.LotStatusReleased, "Released",
				model.LotStatusQuarantined, "Quarantined",
				model.LotStatusExpired, "Expired",
			)}, Rules: []Rule{Required{}}},
			{Name: "qcState", Label: "QC state", Widget: Select{Options: options(
				model.QCPending, "Pending",
				model.QCPassed, "Passed",
				model.QCFailed, "Failed",
			)}, Rules: []Rule{Required{}}},
		},
		Cross: []CrossRule{{
			Field: "expirationDate",
			Check: func(v Values) string {
				made, exp := v["manufactureDate"], v["expirationDate"]
				if made != "" && exp != "" && exp < made {
					return "must not be before the manufacture date"
				}
				return ""
			},
		}},
	},
	"uom": {
		Entity: "uom",
		Fields: []Field{
			{Name: "name", Label: "Name", Widget: Text{}, Rules: []Rule{Required{}, Length{Max: 60}}},
			{Name: "category", Label: "Category", Widget: Select{Options: options(
				model.UOMUnit, "Unit",
				model.UOMWeight, "Weight",
				model.UOMVolume, "Volume",
				model.UOMLength, "Length",
				model.UOMTime, "Time",
			)}, Rules: []Rule{Required{}}},
			{Name: "isBase", Label: "Base unit", Widget: Checkbox{}},
			{Name: "ratioToBase", Label: "Ratio to base", Widget: Number{Step: "any"}, Rules: []Rule{Required{}, Range{Min: &zero, Exclusive: true}}},
		},
		Cross: []CrossRule{{
			Field: "ratioToBase",
			Check: func(v Values) string {
				if v["isBase"] != "true" {
					return ""
				}
				if d, err := decimal.NewFromString(v["ratioToBase"]); err == nil && !d.Equal(decimal.NewFromInt(1)) {
					return "must be 1 for a base unit"
				}
				return ""
			},
		}},
	},
	"invitations": {
		Entity: "invitations",
		Fields: []Field{
			{Name: "email", Label: "Email", Widget: Email{Placeholder: "name@example.com"}, Rules: []Rule{Required{}}},
			{Name: "role", Label: "Role", Widget: Select{Options: roleOptions}, Rules: []Rule{Required{}}},
			{Name: "organizationId", Label: "Organization", Widget: Reference{Entity: "organizations", LabelField: "name"}},
			{Name: "status", Label: "Status", Widget: Select{Options: options(
				model.InvitationPending, "Pending",
				model.InvitationAccepted, "Accepted",
				model.InvitationRevoked, "Revoked",
				model.InvitationExpired, "Expired",
			)}},
		},
	},
}

// For returns the schema of an entity or account form.
func For(entity string) (*Schema, bool) {
	if s, ok := schemas[entity]; ok {
		return s, true
	}
	for _, s := range []*Schema{Login, Register, ForgotPassword, ResetPassword, ChangePassword} {
		if s.Entity == entity {
			return s, true
		}
	}
	return nil, false
}
