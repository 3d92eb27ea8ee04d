package mock

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/erazemk/evidenca/internal/auth"
	"github.com/erazemk/evidenca/internal/model"
)

// Seed sets how many fixture records of each entity to generate.
type Seed struct {
	Organizations int
	Users         int
	Companies     int
	Warehouses    int
	UOMs          int
	Products      int
	Lots          int
	Invitations   int

	// Password, if set, lets every fixture user sign in with it.
	Password string
}

// DefaultSeed is a small but realistic data set for local development.
var DefaultSeed = Seed{
	Organizations: 3,
	Users:         40,
	Companies:     8,
	Warehouses:    12,
	UOMs:          len(unitFixtures),
	Products:      60,
	Lots:          80,
	Invitations:   15,
	Password:      "evidenca",
}

var (
	firstNames = []string{"Ana", "Luka", "Maja", "Nik", "Eva", "Jan", "Sara", "Tim", "Nina", "Matej", "Zala", "Gal"}
	lastNames  = []string{"Novak", "Horvat", "Kovač", "Krajnc", "Zupan", "Potočnik", "Mlakar", "Vidmar", "Kos", "Golob"}
	locales    = []string{"sl-SI", "en-US", "de-DE", "hr-HR", "it-IT"}
	orgNames   = []string{"Severna Logistika", "Alpina Trade", "Jadran Foods", "Kras Pharma", "Pohorje Tools"}
	goods      = []string{"Bolt", "Valve", "Bracket", "Cable", "Sensor", "Filter", "Gasket", "Pump", "Relay", "Hinge"}
	materials  = []string{"Steel", "Brass", "Nylon", "Copper", "Aluminium", "Rubber"}
	cities     = []string{"Ljubljana", "Maribor", "Celje", "Koper", "Kranj", "Novo mesto"}
	currencies = []string{"EUR", "USD", "CHF", "GBP"}
	timezones  = []string{"Europe/Ljubljana", "Europe/Berlin", "UTC", "America/New_York"}
)

type unitFixture struct {
	name     string
	category string
	base     bool
	ratio    string
}

var unitFixtures = []unitFixture{
	{"piece", model.UOMUnit, true, "1"},
	{"dozen", model.UOMUnit, false, "12"},
	{"box of 50", model.UOMUnit, false, "50"},
	{"kilogram", model.UOMWeight, true, "1"},
	{"gram", model.UOMWeight, false, "0.001"},
	{"tonne", model.UOMWeight, false, "1000"},
	{"litre", model.UOMVolume, true, "1"},
	{"millilitre", model.UOMVolume, false, "0.001"},
	{"metre", model.UOMLength, true, "1"},
	{"centimetre", model.UOMLength, false, "0.01"},
	{"hour", model.UOMTime, true, "1"},
	{"minute", model.UOMTime, false, "0.0166666667"},
}

// fixtureID returns a stable UUID derived from entity name and index.
func fixtureID(entity string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "evidenca/%s/%d", entity, i)).String()
}

// load fills s with deterministic fixtures.
func (s *Store) load(seed Seed) {
	r := rand.New(rand.NewPCG(1, 2))
	pick := func(list []string) string { return list[r.IntN(len(list))] }
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	orgIDs := make([]string, 0, seed.Organizations)
	for i := range seed.Organizations {
		o := model.Organization{
			ID:       fixtureID("organizations", i),
			Name:     orgNames[i%len(orgNames)],
			Plan:     []string{model.PlanFree, model.PlanTeam, model.PlanEnterprise}[i%3],
			IsActive: i%5 != 4,
		}
		if i >= len(orgNames) {
			o.Name = fmt.Sprintf("%s %d", o.Name, i/len(orgNames)+1)
		}
		s.Organizations.Put(o)
		orgIDs = append(orgIDs, o.ID)
	}
	orgOf := func(i int) string {
		if len(orgIDs) == 0 {
			return ""
		}
		return orgIDs[i%len(orgIDs)]
	}

	var hash string
	if seed.Password != "" {
		h, err := auth.HashPassword(seed.Password)
		if err != nil {
			panic(err)
		}
		hash = h
	}
	for i := range seed.Users {
		first, last := pick(firstNames), pick(lastNames)
		id := fixtureID("users", i)
		if hash != "" {
			s.Accounts.setCredential(id, hash)
		}
		s.Users.Put(model.User{
			ID:             id,
			Name:           first + " " + last,
			Email:          fmt.Sprintf("%s.%s%d@example.com", asciiFold(first), asciiFold(last), i+1),
			Role:           []string{model.RoleUser, model.RoleUser, model.RoleManager, model.RoleAdmin}[i%4],
			Locale:         pick(locales),
			OrganizationID: orgOf(i),
		})
	}

	companyIDs := make([]string, 0, seed.Companies)
	for i := range seed.Companies {
		brand := pick(materials) + " " + pick(goods)
		c := model.Company{
			ID:                 fixtureID("companies", i),
			LegalName:          fmt.Sprintf("%s d.o.o.", brand),
			BrandName:          brand,
			RegistrationNumber: fmt.Sprintf("%07d", 1000000+r.IntN(8999999)),
			TaxID:              fmt.Sprintf("%08d", 10000000+r.IntN(89999999)),
			VATNumber:          fmt.Sprintf("SI%08d", 10000000+r.IntN(89999999)),
			Currency:           pick(currencies),
			Timezone:           pick(timezones),
			OrganizationID:     orgOf(i),
		}
		s.Companies.Put(c)
		companyIDs = append(companyIDs, c.ID)
	}

	for i := range seed.Warehouses {
		city := pick(cities)
		w := model.Warehouse{
			ID:             fixtureID("warehouses", i),
			Name:           fmt.Sprintf("%s %d", city, i+1),
			Code:           fmt.Sprintf("WH-%03d", i+1),
			IsActive:       i%6 != 5,
			OrganizationID: orgOf(i),
			Address:        fmt.Sprintf("Industrijska cesta %d, %s", r.IntN(120)+1, city),
		}
		if len(companyIDs) > 0 {
			w.CompanyID = companyIDs[i%len(companyIDs)]
		}
		s.Warehouses.Put(w)
	}

	unitIDs := make([]string, 0, seed.UOMs)
	for i := range seed.UOMs {
		f := unitFixtures[i%len(unitFixtures)]
		u := model.UOM{
			ID:          fixtureID("uom", i),
			Name:        f.name,
			Category:    f.category,
			IsBase:      f.base,
			RatioToBase: decimal.RequireFromString(f.ratio),
		}
		if i >= len(unitFixtures) {
			u.Name = fmt.Sprintf("%s %d", u.Name, i/len(unitFixtures)+1)
			u.IsBase = false
		}
		s.UOMs.Put(u)
		unitIDs = append(unitIDs, u.ID)
	}

	productIDs := make([]string, 0, seed.Products)
	for i := range seed.Products {
		p := model.Product{
			ID:           fixtureID("products", i),
			SKU:          fmt.Sprintf("SKU-%05d", i+1),
			Name:         pick(materials) + " " + pick(goods),
			Tracking:     []string{model.TrackingNone, model.TrackingLot, model.TrackingLot, model.TrackingSerial}[i%4],
			StandardCost: decimal.New(int64(r.IntN(100000)), -2),
			Active:       i%7 != 6,
		}
		if len(unitIDs) > 0 {
			p.BaseUOMID = unitIDs[0]
			p.PackUOMID = unitIDs[(i%2+1)%len(unitIDs)]
		}
		s.Products.Put(p)
		productIDs = append(productIDs, p.ID)
	}

	lotStatuses := []string{model.LotStatusPending, model.LotStatusReleased, model.LotStatusPending, model.LotStatusQuarantined, model.LotStatusExpired}
	for i := range seed.Lots {
		made := base.AddDate(0, 0, r.IntN(300))
		status := lotStatuses[i%len(lotStatuses)]
		qc := model.QCPending
		switch status {
		case model.LotStatusReleased, model.LotStatusExpired:
			qc = model.QCPassed
		case model.LotStatusQuarantined:
			qc = model.QCFailed
		}
		l := model.Lot{
			ID:              fixtureID("lots", i),
			LotNumber:       fmt.Sprintf("L%s-%04d", made.Format("0601"), i+1),
			ManufactureDate: made.Format(time.DateOnly),
			ExpirationDate:  made.AddDate(1, 0, 0).Format(time.DateOnly),
			Status:          status,
			QCState:         qc,
		}
		if len(productIDs) > 0 {
			l.ProductID = productIDs[i%len(productIDs)]
		}
		s.Lots.Put(l)
	}

	invStatuses := []string{model.InvitationPending, model.InvitationPending, model.InvitationAccepted, model.InvitationRevoked, model.InvitationExpired}
	for i := range seed.Invitations {
		expires := base.AddDate(0, 0, 7+i)
		inv := model.Invitation{
			ID:             fixtureID("invitations", i),
			Email:          fmt.Sprintf("invitee%d@example.org", i+1),
			Role:           []string{model.RoleUser, model.RoleManager}[i%2],
			Status:         invStatuses[i%len(invStatuses)],
			OrganizationID: orgOf(i),
			ExpiresAt:      &expires,
		}
		if inv.Status == model.InvitationPending {
			far := time.Now().Add(model.InvitationTTL).Truncate(time.Second).UTC()
			inv.ExpiresAt = &far
		}
		if inv.Status == model.InvitationAccepted {
			used := expires.AddDate(0, 0, -3)
			inv.UsedAt = &used
		}
		if seed.Users > 0 {
			inv.SenderID = fixtureID("users", (i*4+3)%seed.Users)
		}
		s.Invitations.Put(inv)
	}
}

// asciiFold lowercases s and strips its diacritics for email local parts.
func asciiFold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}
