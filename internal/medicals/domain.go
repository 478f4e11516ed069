package medicals

import "errors"

// Medical is a pharmaceutical item tracked by the stock module. TotalQuantity
// is derived from the quantities of its lots, never stored directly.
type Medical struct {
	Code          int
	Description   string
	MinQty        float64
	TotalQuantity float64
}

// ErrMedicalNotFound indicates an unknown medical code.
var ErrMedicalNotFound = errors.New("medicals: medical not found")
