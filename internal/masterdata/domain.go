package masterdata

import "errors"

// Supplier delivers charged stock. Every charging movement names one.
type Supplier struct {
	ID    int64
	Name  string
	Phone string
	Email string
}

// Ward consumes discharged stock. Every discharging movement names one.
type Ward struct {
	Code string
	Name string
}

// ErrSupplierNotFound indicates an unknown supplier ID.
var ErrSupplierNotFound = errors.New("masterdata: supplier not found")

// ErrWardNotFound indicates an unknown ward code.
var ErrWardNotFound = errors.New("masterdata: ward not found")
