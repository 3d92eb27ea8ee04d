package model

// Lot is a production batch of a lot-tracked product. Dates are calendar
// dates in YYYY-MM-DD form.
type Lot struct {
	ID              string `json:"id" db:"id"`
	ProductID       string `json:"productId" db:"product_id"`
	LotNumber       string `json:"lotNumber" db:"lot_number"`
	ManufactureDate string `json:"manufactureDate" db:"manufacture_date"`
	ExpirationDate  string `json:"expirationDate" db:"expiration_date"`
	Status          string `json:"status" db:"status"`
	QCState         string `json:"qcState" db:"qc_state"`
}

// Lot statuses. Only pending lots can be edited or deleted.
const (
	LotStatusPending     = "pending"
	LotStatusReleased    = "released"
	LotStatusQuarantined = "quarantined"
	LotStatusExpired     = "expired"
)

// Quality control states.
const (
	QCPending = "pending"
	QCPassed  = "passed"
	QCFailed  = "failed"
)

// Editable reports whether the lot may still be changed or removed.
func (l *Lot) Editable() bool {
	return l.Status == LotStatusPending
}
