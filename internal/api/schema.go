package api

import (
	"net/http"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"

	"github.com/erazemk/evidenca/internal/form"
	"github.com/erazemk/evidenca/internal/model"
)

var entityTypes = map[string]any{
	"users":         model.User{},
	"organizations": model.Organization{},
	"companies":     model.Company{},
	"warehouses":    model.Warehouse{},
	"products":      model.Product{},
	"lots":          model.Lot{},
	"uom":           model.UOM{},
	"invitations":   model.Invitation{},
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*jsonschema.Schema{}
)

var decimalType = reflect.TypeFor[decimal.Decimal]()

// EntitySchema returns the JSON Schema of an entity's wire form.
func EntitySchema(entity string) (*jsonschema.Schema, bool) {
	v, ok := entityTypes[entity]
	if !ok {
		return nil, false
	}
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[entity]; ok {
		return s, true
	}
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == decimalType {
				return &jsonschema.Schema{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`}
			}
			return nil
		},
	}
	s := reflector.Reflect(v)
	s.Title = entity
	schemaCache[entity] = s
	return s, true
}

// Schema handles GET /api/schema/{entity}.
func Schema(w http.ResponseWriter, r *http.Request) {
	s, ok := EntitySchema(r.PathValue("entity"))
	if !ok {
		jsonError(w, http.StatusNotFound, "unknown entity")
		return
	}
	jsonResponse(w, http.StatusOK, s)
}

// Forms handles GET /api/forms/{entity}.
func Forms(w http.ResponseWriter, r *http.Request) {
	s, ok := form.For(r.PathValue("entity"))
	if !ok {
		jsonError(w, http.StatusNotFound, "unknown entity")
		return
	}
	jsonResponse(w, http.StatusOK, s)
}
