package model

import "github.com/shopspring/decimal"

// Product is a stock-keeping unit measured in a base unit of measure.
type Product struct {
	ID           string          `json:"id" db:"id"`
	SKU          string          `json:"sku" db:"sku"`
	Name         string          `json:"name" db:"name"`
	Tracking     string          `json:"tracking" db:"tracking"`
	BaseUOMID    string          `json:"baseUomId" db:"base_uom_id"`
	PackUOMID    string          `json:"packUomId" db:"pack_uom_id"`
	StandardCost decimal.Decimal `json:"standardCost" db:"standard_cost"`
	Active       bool            `json:"active" db:"active"`
	HasImage     bool            `json:"hasImage" db:"has_image" jsonschema:"readonly"`
}

// Product tracking modes.
const (
	TrackingNone   = "none"
	TrackingLot    = "lot"
	TrackingSerial = "serial"
)
