package stock

import (
	"context"
	"strings"
	"time"
)

// ValidationCode identifies one validation rule.
type ValidationCode string

const (
	CodeDateInFuture    ValidationCode = "movement.date_in_future"
	CodeDateBeforeLast  ValidationCode = "movement.date_before_last_movement"
	CodeMissingRefNo    ValidationCode = "movement.missing_refno"
	CodeDuplicateRefNo  ValidationCode = "movement.duplicate_refno"
	CodeMissingType     ValidationCode = "movement.missing_type"
	CodeMissingSupplier ValidationCode = "movement.missing_supplier"
	CodeMissingWard     ValidationCode = "movement.missing_ward"
	CodeZeroQuantity    ValidationCode = "movement.zero_quantity"
	CodeMissingMedical  ValidationCode = "movement.missing_medical"
	CodeMissingLot      ValidationCode = "movement.missing_lot"
	CodeLotCodeTooLong  ValidationCode = "lot.code_too_long"
	CodeMissingPrepDate ValidationCode = "lot.missing_preparation_date"
	CodeMissingDueDate  ValidationCode = "lot.missing_due_date"
	CodePrepAfterDue    ValidationCode = "lot.preparation_after_due_date"
	CodeLotOtherMedical ValidationCode = "lot.belongs_to_other_medical"
	CodeInvalidCost     ValidationCode = "lot.missing_or_zero_cost"
	CodeQuantityOverLot ValidationCode = "movement.quantity_exceeds_lot_stock"
	CodeMedicalContext  ValidationCode = "movement.medical_description"
)

// ValidationError is one failed business rule.
type ValidationError struct {
	Code    ValidationCode `json:"code"`
	Message string         `json:"message"`
}

// Error implements error.
func (e ValidationError) Error() string { return e.Message }

// ValidationErrors aggregates every failed rule for one movement. Rules are
// accumulated, never short-circuited, so callers can report all problems in
// one pass.
type ValidationErrors []ValidationError

// Error implements error.
func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Message
	}
	return "stock: validation failed: " + strings.Join(msgs, "; ")
}

// Messages returns the individual rule messages.
func (e ValidationErrors) Messages() []string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Message
	}
	return msgs
}

// ValidationQueries are the storage reads the validation rules depend on.
// Inside a batch they are served by the batch transaction so the watermark
// and reference checks see a consistent snapshot.
type ValidationQueries interface {
	LastMovementDate(ctx context.Context) (time.Time, error)
	RefNoExists(ctx context.Context, refNo string) (bool, error)
	MedicalCodesForLot(ctx context.Context, lotCode string) ([]int, error)
}

// Validator evaluates the movement business rules under the facility policies.
type Validator struct {
	cfg Config
	now func() time.Time
}

// NewValidator builds a Validator.
func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg, now: time.Now}
}

// ValidateMovement checks the candidate movement against every rule and
// returns the accumulated failures. The second return value reports storage
// errors only; an empty slice with a nil error means the movement is valid.
func (v *Validator) ValidateMovement(ctx context.Context, q ValidationQueries, mov Movement, checkReference bool) (ValidationErrors, error) {
	var errs ValidationErrors

	// Chronological ordering: never in the future, never before the watermark.
	today := v.now()
	if mov.Date.After(today) {
		errs = append(errs, ValidationError{CodeDateInFuture, "a date in the future is not allowed"})
	}
	lastDate, err := q.LastMovementDate(ctx)
	if err != nil {
		return nil, err
	}
	if !lastDate.IsZero() && mov.Date.Before(lastDate) {
		errs = append(errs, ValidationError{CodeDateBeforeLast, "date cannot be before the last movement date"})
	}

	if checkReference {
		refErrs, err := v.CheckReferenceNumber(ctx, q, mov.RefNo)
		if err != nil {
			return nil, err
		}
		errs = append(errs, refErrs...)
	}

	isCharge := false
	if mov.Type == nil {
		errs = append(errs, ValidationError{CodeMissingType, "please choose a movement type"})
	} else {
		isCharge = mov.Type.IsCharge()
		if isCharge {
			if mov.Supplier == nil {
				errs = append(errs, ValidationError{CodeMissingSupplier, "please select a supplier"})
			}
		} else if mov.Ward == nil {
			errs = append(errs, ValidationError{CodeMissingWard, "please select a ward"})
		}
	}

	if mov.Quantity == 0 {
		errs = append(errs, ValidationError{CodeZeroQuantity, "the quantity must not be zero"})
	}

	if mov.Medical == nil {
		errs = append(errs, ValidationError{CodeMissingMedical, "please choose a medical"})
	}

	lot := mov.Lot
	if lot == nil {
		errs = append(errs, ValidationError{CodeMissingLot, "please choose a lot"})
		return errs, nil
	}

	// Which lot fields get checked depends on the movement direction and the
	// automatic-lot policies:
	//
	//   charge,    AutomaticLotIn=off  -> code and dates
	//   charge,    AutomaticLotIn=on   -> dates only, the code is generated
	//   discharge, AutomaticLotOut=off -> code and dates
	//   discharge, AutomaticLotOut=on  -> nothing, the lots are selected automatically
	if (isCharge && !v.cfg.AutomaticLotIn) || (!isCharge && !v.cfg.AutomaticLotOut) {
		errs = append(errs, checkLotFields(*lot, true)...)
	} else if isCharge && v.cfg.AutomaticLotIn {
		errs = append(errs, checkLotFields(*lot, false)...)
	}

	// A lot code belongs to at most one medical, ever.
	medicalCodes, err := q.MedicalCodesForLot(ctx, lot.Code)
	if err != nil {
		return nil, err
	}
	if mov.Medical != nil && !(len(medicalCodes) == 0 || (len(medicalCodes) == 1 && medicalCodes[0] == mov.Medical.Code)) {
		errs = append(errs, ValidationError{CodeLotOtherMedical, "this lot refers to another medical"})
	}

	if isCharge && v.cfg.LotWithCost {
		if lot.Cost == nil || !lot.Cost.IsPositive() {
			errs = append(errs, ValidationError{CodeInvalidCost, "zero or missing costs are not allowed"})
		}
	}

	// Manual discharges may not take more than the lot holds. Automatic
	// discharges split across lots instead, checked at allocation time.
	if !v.cfg.AutomaticLotOut && mov.Type != nil && !isCharge && mov.Quantity > lot.Quantity {
		errs = append(errs, ValidationError{CodeQuantityOverLot, "movement quantity is greater than the quantity of the lot"})
	}

	if len(errs) > 0 {
		return errs, nil
	}
	return nil, nil
}

// CheckReferenceNumber validates presence and uniqueness of a reference
// number. Used per movement, or exactly once up front when a batch shares one.
func (v *Validator) CheckReferenceNumber(ctx context.Context, q ValidationQueries, refNo string) (ValidationErrors, error) {
	if refNo == "" {
		return ValidationErrors{{CodeMissingRefNo, "please insert a reference number"}}, nil
	}
	exists, err := q.RefNoExists(ctx, refNo)
	if err != nil {
		return nil, err
	}
	if exists {
		return ValidationErrors{{CodeDuplicateRefNo, "the inserted reference number already exists"}}, nil
	}
	return nil, nil
}

// checkLotFields validates the caller-supplied lot fields. The code check is
// skipped when the code will be generated.
func checkLotFields(lot Lot, checkCode bool) ValidationErrors {
	var errs ValidationErrors
	if checkCode && len(lot.Code) > MaxLotCodeLen {
		errs = append(errs, ValidationError{CodeLotCodeTooLong, "the lot code is too long, maximum 49 characters"})
	}
	if lot.PreparationDate.IsZero() {
		errs = append(errs, ValidationError{CodeMissingPrepDate, "insert a valid preparation date"})
	}
	if lot.DueDate.IsZero() {
		errs = append(errs, ValidationError{CodeMissingDueDate, "insert a valid due date"})
	}
	if !lot.PreparationDate.IsZero() && !lot.DueDate.IsZero() && lot.PreparationDate.After(lot.DueDate) {
		errs = append(errs, ValidationError{CodePrepAfterDue, "the preparation date cannot be after the due date"})
	}
	return errs
}
