package form

import (
	"encoding/json"
	"net/url"
	"regexp"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/evidenca/internal/model"
)

func TestFieldValidate(t *testing.T) {
	one := decimal.NewFromInt(1)
	ten := decimal.NewFromInt(10)

	tests := []struct {
		name  string
		field Field
		value string
		ok    bool
	}{
		{"required empty", Field{Widget: Text{}, Rules: []Rule{Required{}}}, "", false},
		{"required blank", Field{Widget: Text{}, Rules: []Rule{Required{}}}, "   ", false},
		{"required set", Field{Widget: Text{}, Rules: []Rule{Required{}}}, "x", true},
		{"optional empty skips rules", Field{Widget: Email{}, Rules: []Rule{Length{Min: 5}}}, "", true},
		{"email invalid", Field{Widget: Email{}}, "not-an-email", false},
		{"email no dot", Field{Widget: Email{}}, "a@b", false},
		{"email valid", Field{Widget: Email{}}, "ana@example.com", true},
		{"number invalid", Field{Widget: Number{}}, "abc", false},
		{"number integer", Field{Widget: Number{Integer: true}}, "1.5", false},
		{"number ok", Field{Widget: Number{}}, "1.5", true},
		{"range below", Field{Widget: Number{}, Rules: []Rule{Range{Min: &one, Max: &ten}}}, "0.5", false},
		{"range above", Field{Widget: Number{}, Rules: []Rule{Range{Min: &one, Max: &ten}}}, "11", false},
		{"range inside", Field{Widget: Number{}, Rules: []Rule{Range{Min: &one, Max: &ten}}}, "10", true},
		{"range exclusive edge", Field{Widget: Number{}, Rules: []Rule{Range{Min: &one, Exclusive: true}}}, "1", false},
		{"select unknown", Field{Widget: Select{Options: []Option{{Value: "a"}}}}, "b", false},
		{"select known", Field{Widget: Select{Options: []Option{{Value: "a"}}}}, "a", true},
		{"date invalid", Field{Widget: Date{}}, "2025-13-01", false},
		{"date valid", Field{Widget: Date{}}, "2025-02-28", true},
		{"pattern", Field{Widget: Text{}, Rules: []Rule{Pattern{Expr: regexp.MustCompile(`^\d+$`)}}}, "12a", false},
		{"length max", Field{Widget: Text{}, Rules: []Rule{Length{Max: 3}}}, "abcd", false},
		{"length counts runes", Field{Widget: Text{}, Rules: []Rule{Length{Max: 3}}}, "čšž", true},
		{"checkbox bad", Field{Widget: Checkbox{}}, "maybe", false},
	}

	for _, tt := range tests {
		msg := tt.field.Validate(tt.value)
		if (msg == "") != tt.ok {
			t.Errorf("%s: Validate(%q) = %q, want ok=%v", tt.name, tt.value, msg, tt.ok)
		}
	}
}

func TestInvitationFormRejectsInvalidEmail(t *testing.T) {
	schema, ok := For("invitations")
	if !ok {
		t.Fatal("expected invitation schema")
	}

	st := schema.Bind(url.Values{"email": {"not-an-email"}, "role": {model.RoleUser}})
	if st.Valid() {
		t.Fatal("expected invalid state")
	}
	if st.Errors["email"] == "" {
		t.Errorf("expected email error, got %v", st.Errors)
	}
}

func TestCompanySchemaAcceptsMinimalCompany(t *testing.T) {
	schema, _ := For("companies")
	errs := schema.Validate(Values{
		"legalName":          "Acme",
		"brandName":          "A",
		"registrationNumber": "R1",
		"taxId":              "T1",
		"vatNumber":          "V1",
		"currency":           "USD",
		"timezone":           "UTC",
	})
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}

	errs = schema.Validate(Values{
		"legalName":          "Acme",
		"registrationNumber": "R1",
		"taxId":              "T1",
		"currency":           "DOLLARS",
		"timezone":           "Mars/Olympus",
	})
	if errs["currency"] == "" || errs["timezone"] == "" {
		t.Errorf("expected currency and timezone errors, got %v", errs)
	}
}

func TestCrossRules(t *testing.T) {
	lots, _ := For("lots")
	errs := lots.Validate(Values{
		"productId":       "p1",
		"lotNumber":       "L1",
		"manufactureDate": "2025-05-01",
		"expirationDate":  "2025-04-01",
		"status":          model.LotStatusPending,
		"qcState":         model.QCPending,
	})
	if errs["expirationDate"] == "" {
		t.Errorf("expected expiration error, got %v", errs)
	}

	uom, _ := For("uom")
	errs = uom.Validate(Values{"name": "kg", "category": model.UOMWeight, "isBase": "true", "ratioToBase": "2"})
	if errs["ratioToBase"] == "" {
		t.Errorf("expected ratio error for base unit, got %v", errs)
	}
	errs = uom.Validate(Values{"name": "g", "category": model.UOMWeight, "isBase": "false", "ratioToBase": "0.001"})
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestUserLocaleRule(t *testing.T) {
	users, _ := For("users")
	base := Values{"name": "Ana", "email": "ana@example.com", "role": model.RoleUser}

	base["locale"] = "sl-SI"
	if errs := users.Validate(base); len(errs) != 0 {
		t.Errorf("expected sl-SI to be accepted, got %v", errs)
	}
	base["locale"] = "not a locale!"
	if errs := users.Validate(base); errs["locale"] == "" {
		t.Error("expected locale error")
	}
}

func TestBindAndPayload(t *testing.T) {
	products, _ := For("products")
	st := products.Bind(url.Values{
		"sku":          {" SKU-1 "},
		"name":         {"Bolt"},
		"tracking":     {model.TrackingLot},
		"baseUomId":    {"u1"},
		"standardCost": {"12.50"},
		"active":       {"on"},
	})
	if !st.Valid() {
		t.Fatalf("expected valid state, got %v", st.Errors)
	}

	p := st.Payload()
	if p["sku"] != "SKU-1" {
		t.Errorf("expected trimmed sku, got %q", p["sku"])
	}
	if p["active"] != true {
		t.Errorf("expected active=true, got %v", p["active"])
	}
	if p["standardCost"] != json.Number("12.50") {
		t.Errorf("expected standardCost number, got %#v", p["standardCost"])
	}

	body, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var prod model.Product
	if err := json.Unmarshal(body, &prod); err != nil {
		t.Fatalf("unmarshal into product: %v", err)
	}
	if !prod.StandardCost.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("expected cost 12.5, got %s", prod.StandardCost)
	}
}

func TestPrefillAndFields(t *testing.T) {
	warehouses, _ := For("warehouses")
	st, err := warehouses.Prefill(model.Warehouse{ID: "w1", Name: "Main", Code: "WH-1", IsActive: true, CompanyID: "c1"})
	if err != nil {
		t.Fatalf("Prefill: %v", err)
	}
	st.SetOptions("companyId", []Option{{Value: "c0", Label: "Other"}, {Value: "c1", Label: "Acme"}})

	views := st.Fields()
	if len(views) != len(warehouses.Fields) {
		t.Fatalf("expected %d views, got %d", len(warehouses.Fields), len(views))
	}
	byName := map[string]FieldView{}
	for _, v := range views {
		byName[v.Name] = v
	}
	if !byName["isActive"].Checked {
		t.Error("expected isActive toggle to be checked")
	}
	if byName["code"].Value != "WH-1" {
		t.Errorf("expected code WH-1, got %q", byName["code"].Value)
	}
	opts := byName["companyId"].Options
	if len(opts) != 2 || !opts[1].Selected || opts[0].Selected {
		t.Errorf("expected c1 selected, got %+v", opts)
	}
}

func TestSchemaDescriptor(t *testing.T) {
	lots, _ := For("lots")
	raw, err := json.Marshal(lots)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var desc struct {
		Entity string `json:"entity"`
		Fields []struct {
			Name   string `json:"name"`
			Widget struct {
				Kind Kind `json:"kind"`
			} `json:"widget"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(raw, &desc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if desc.Entity != "lots" || len(desc.Fields) != len(lots.Fields) {
		t.Fatalf("unexpected descriptor: %s", raw)
	}
	if desc.Fields[0].Widget.Kind != KindReference {
		t.Errorf("expected first widget to be a reference, got %q", desc.Fields[0].Widget.Kind)
	}
}

func TestEveryEntityHasSchema(t *testing.T) {
	for _, e := range []string{"users", "organizations", "companies", "warehouses", "products", "lots", "uom", "invitations"} {
		if _, ok := For(e); !ok {
			t.Errorf("missing schema for %s", e)
		}
	}
}

func TestAccountForms(t *testing.T) {
	st := Register.Bind(url.Values{
		"name":     {"Ana"},
		"email":    {"ana@example.com"},
		"password": {"correct horse"},
		"confirm":  {"correct horse!"},
	})
	if st.Errors["confirm"] == "" {
		t.Errorf("expected confirm mismatch, got %v", st.Errors)
	}

	st = ResetPassword.Bind(url.Values{"password": {"short"}, "confirm": {"short"}})
	if st.Errors["password"] == "" {
		t.Errorf("expected short password error, got %v", st.Errors)
	}

	for _, v := range st.Fields() {
		if v.Kind != KindPassword || v.Value != "" || v.Autocomplete != "new-password" {
			t.Errorf("password field %s rendered as %+v", v.Name, v)
		}
	}

	if s, ok := For("login"); !ok || s != Login {
		t.Error("expected login schema to be found")
	}
}
