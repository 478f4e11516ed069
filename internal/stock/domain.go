package stock

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aegle-his/aegle/internal/masterdata"
	"github.com/aegle-his/aegle/internal/medicals"
)

// MaxLotCodeLen bounds user-supplied lot codes. Auto-generated codes stay
// under this as well.
const MaxLotCodeLen = 49

// MovementType classifies a stock movement. Operation contains "+" for
// charging types; anything else discharges.
type MovementType struct {
	Code        string
	Description string
	Operation   string
}

// IsCharge reports whether the type increases stock.
func (t MovementType) IsCharge() bool {
	return strings.Contains(t.Operation, "+")
}

// Lot is a batch of one medical with its own expiry and cost, tracked
// independently so discharges can deplete soonest-expiring stock first.
type Lot struct {
	Code            string
	MedicalCode     int
	PreparationDate time.Time
	DueDate         time.Time
	Cost            *decimal.Decimal
	Quantity        int
}

// Movement is one stock transaction. It is created transiently, validated and
// then persisted as an immutable historical record; corrections happen via
// compensating movements, never by mutation.
type Movement struct {
	ID       int64
	Type     *MovementType
	Medical  *medicals.Medical
	Lot      *Lot
	Date     time.Time
	Quantity int
	Supplier *masterdata.Supplier
	Ward     *masterdata.Ward
	RefNo    string
}

// Config carries the facility-wide stock policies. Immutable; passed into the
// service at construction instead of read from global state.
type Config struct {
	AutomaticLotIn  bool
	AutomaticLotOut bool
	LotWithCost     bool
}

// Allocation pairs a lot with the quantity consumed from it by one discharge.
type Allocation struct {
	Lot      Lot
	Quantity int
}

var (
	// ErrInsufficientStock means automatic allocation cannot satisfy the
	// requested quantity across all lots of the medical.
	ErrInsufficientStock = errors.New("stock: insufficient stock to satisfy requested quantity")
	// ErrLotNotFound indicates an unknown lot code.
	ErrLotNotFound = errors.New("stock: lot not found")
	// ErrLotInUse blocks deletion of a lot still referenced by movements.
	ErrLotInUse = errors.New("stock: lot is referenced by movements")
	// ErrDuplicateRefNo indicates a reference number already used by a
	// committed movement.
	ErrDuplicateRefNo = errors.New("stock: reference number already exists")
)
