package model

import "github.com/shopspring/decimal"

// UOM is a unit of measure. RatioToBase converts one unit into the base unit
// of its category (the base unit itself has ratio 1).
type UOM struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Category    string          `json:"category" db:"category"`
	IsBase      bool            `json:"isBase" db:"is_base"`
	RatioToBase decimal.Decimal `json:"ratioToBase" db:"ratio_to_base"`
}

// UOM categories.
const (
	UOMUnit   = "unit"
	UOMWeight = "weight"
	UOMVolume = "volume"
	UOMLength = "length"
	UOMTime   = "time"
)
