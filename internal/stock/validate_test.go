package stock

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aegle-his/aegle/internal/masterdata"
	"github.com/aegle-his/aegle/internal/medicals"
)

type fakeQueries struct {
	lastDate  time.Time
	refNos    map[string]bool
	lotOwners map[string][]int
}

func (f *fakeQueries) LastMovementDate(context.Context) (time.Time, error) {
	return f.lastDate, nil
}

func (f *fakeQueries) RefNoExists(_ context.Context, refNo string) (bool, error) {
	return f.refNos[refNo], nil
}

func (f *fakeQueries) MedicalCodesForLot(_ context.Context, lotCode string) ([]int, error) {
	return f.lotOwners[lotCode], nil
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestValidator(cfg Config) *Validator {
	v := NewValidator(cfg)
	v.now = func() time.Time { return testNow }
	return v
}

func chargeType() *MovementType {
	return &MovementType{Code: "charge", Description: "Charge", Operation: "+"}
}

func dischargeType() *MovementType {
	return &MovementType{Code: "discharge", Description: "Discharge", Operation: "-"}
}

func validChargeMovement() Movement {
	cost := decimal.NewFromFloat(1.5)
	return Movement{
		Type:    chargeType(),
		Medical: &medicals.Medical{Code: 1, Description: "Paracetamol"},
		Lot: &Lot{
			Code:            "LOT-1",
			PreparationDate: testNow.AddDate(0, -2, 0),
			DueDate:         testNow.AddDate(1, 0, 0),
			Cost:            &cost,
		},
		Date:     testNow.Add(-time.Hour),
		Quantity: 10,
		Supplier: &masterdata.Supplier{ID: 1, Name: "ACME Pharma"},
		RefNo:    "REF-1",
	}
}

func validDischargeMovement() Movement {
	mov := validChargeMovement()
	mov.Type = dischargeType()
	mov.Supplier = nil
	mov.Ward = &masterdata.Ward{Code: "ICU", Name: "Intensive Care"}
	mov.Lot.Quantity = 50
	return mov
}

func codesOf(errs ValidationErrors) []ValidationCode {
	codes := make([]ValidationCode, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	return codes
}

func TestValidateMovementValidCharge(t *testing.T) {
	v := newTestValidator(Config{LotWithCost: true})
	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, validChargeMovement(), true)
	require.NoError(t, err)
	require.Empty(t, errs)
}

func TestValidateMovementDateInFuture(t *testing.T) {
	v := newTestValidator(Config{})
	mov := validChargeMovement()
	mov.Date = testNow.Add(time.Hour)

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeDateInFuture)
}

func TestValidateMovementDateBeforeLastMovement(t *testing.T) {
	v := newTestValidator(Config{})
	q := &fakeQueries{lastDate: testNow.Add(-time.Hour)}
	mov := validChargeMovement()
	mov.Date = testNow.Add(-2 * time.Hour)

	errs, err := v.ValidateMovement(context.Background(), q, mov, false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeDateBeforeLast)
}

func TestValidateMovementNoWatermarkYet(t *testing.T) {
	v := newTestValidator(Config{})
	mov := validChargeMovement()
	mov.Date = testNow.AddDate(-10, 0, 0)

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Empty(t, errs)
}

func TestValidateMovementMissingType(t *testing.T) {
	v := newTestValidator(Config{})
	mov := validChargeMovement()
	mov.Type = nil

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeMissingType)
}

func TestValidateMovementChargeRequiresSupplier(t *testing.T) {
	v := newTestValidator(Config{})
	mov := validChargeMovement()
	mov.Supplier = nil

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeMissingSupplier)
}

func TestValidateMovementDischargeRequiresWard(t *testing.T) {
	v := newTestValidator(Config{})
	mov := validDischargeMovement()
	mov.Ward = nil

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeMissingWard)
}

func TestValidateMovementZeroQuantity(t *testing.T) {
	v := newTestValidator(Config{})
	mov := validChargeMovement()
	mov.Quantity = 0

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeZeroQuantity)
}

func TestValidateMovementMissingMedicalAndLot(t *testing.T) {
	v := newTestValidator(Config{})
	mov := validChargeMovement()
	mov.Medical = nil
	mov.Lot = nil

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeMissingMedical)
	require.Contains(t, codesOf(errs), CodeMissingLot)
}

func TestValidateMovementLotCodeTooLong(t *testing.T) {
	v := newTestValidator(Config{})
	mov := validChargeMovement()
	mov.Lot.Code = strings.Repeat("X", MaxLotCodeLen+1)

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeLotCodeTooLong)
}

func TestValidateMovementLotDates(t *testing.T) {
	v := newTestValidator(Config{})

	mov := validChargeMovement()
	mov.Lot.PreparationDate = time.Time{}
	mov.Lot.DueDate = time.Time{}
	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeMissingPrepDate)
	require.Contains(t, codesOf(errs), CodeMissingDueDate)

	mov = validChargeMovement()
	mov.Lot.PreparationDate = mov.Lot.DueDate.AddDate(0, 1, 0)
	errs, err = v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodePrepAfterDue)
}

func TestValidateMovementAutomaticLotInSkipsCodeCheck(t *testing.T) {
	v := newTestValidator(Config{AutomaticLotIn: true})
	mov := validChargeMovement()
	mov.Lot.Code = strings.Repeat("X", MaxLotCodeLen+1)

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.NotContains(t, codesOf(errs), CodeLotCodeTooLong)
}

func TestValidateMovementAutomaticLotInStillChecksDates(t *testing.T) {
	v := newTestValidator(Config{AutomaticLotIn: true})
	mov := validChargeMovement()
	mov.Lot.DueDate = time.Time{}

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeMissingDueDate)
}

func TestValidateMovementAutomaticLotOutSkipsLotFields(t *testing.T) {
	v := newTestValidator(Config{AutomaticLotOut: true})
	mov := validDischargeMovement()
	mov.Lot = &Lot{}

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Empty(t, errs)
}

func TestValidateMovementLotBelongsToOtherMedical(t *testing.T) {
	v := newTestValidator(Config{})
	q := &fakeQueries{lotOwners: map[string][]int{"LOT-1": {99}}}

	errs, err := v.ValidateMovement(context.Background(), q, validChargeMovement(), false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeLotOtherMedical)
}

func TestValidateMovementLotShared(t *testing.T) {
	v := newTestValidator(Config{})
	q := &fakeQueries{lotOwners: map[string][]int{"LOT-1": {1, 99}}}

	errs, err := v.ValidateMovement(context.Background(), q, validChargeMovement(), false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeLotOtherMedical)
}

func TestValidateMovementLotOwnedBySameMedical(t *testing.T) {
	v := newTestValidator(Config{})
	q := &fakeQueries{lotOwners: map[string][]int{"LOT-1": {1}}}

	errs, err := v.ValidateMovement(context.Background(), q, validChargeMovement(), false)
	require.NoError(t, err)
	require.Empty(t, errs)
}

func TestValidateMovementCostRule(t *testing.T) {
	v := newTestValidator(Config{LotWithCost: true})

	mov := validChargeMovement()
	mov.Lot.Cost = nil
	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeInvalidCost)

	zero := decimal.Zero
	mov = validChargeMovement()
	mov.Lot.Cost = &zero
	errs, err = v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeInvalidCost)
}

func TestValidateMovementCostIgnoredWhenPolicyOff(t *testing.T) {
	v := newTestValidator(Config{})
	mov := validChargeMovement()
	mov.Lot.Cost = nil

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Empty(t, errs)
}

func TestValidateMovementCostIgnoredOnDischarge(t *testing.T) {
	v := newTestValidator(Config{LotWithCost: true})
	mov := validDischargeMovement()
	mov.Lot.Cost = nil

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Empty(t, errs)
}

func TestValidateMovementManualDischargeQuantityOverLot(t *testing.T) {
	v := newTestValidator(Config{})
	mov := validDischargeMovement()
	mov.Lot.Quantity = 5
	mov.Quantity = 10

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, false)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeQuantityOverLot)
}

func TestValidateMovementReferenceChecks(t *testing.T) {
	v := newTestValidator(Config{LotWithCost: true})

	mov := validChargeMovement()
	mov.RefNo = ""
	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, true)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeMissingRefNo)

	q := &fakeQueries{refNos: map[string]bool{"REF-1": true}}
	errs, err = v.ValidateMovement(context.Background(), q, validChargeMovement(), true)
	require.NoError(t, err)
	require.Contains(t, codesOf(errs), CodeDuplicateRefNo)
}

func TestValidateMovementSkipsReferenceWhenShared(t *testing.T) {
	v := newTestValidator(Config{LotWithCost: true})
	q := &fakeQueries{refNos: map[string]bool{"REF-1": true}}

	errs, err := v.ValidateMovement(context.Background(), q, validChargeMovement(), false)
	require.NoError(t, err)
	require.Empty(t, errs)
}

func TestValidateMovementAccumulatesAllFailures(t *testing.T) {
	v := newTestValidator(Config{})
	mov := Movement{Date: testNow.Add(time.Hour)}

	errs, err := v.ValidateMovement(context.Background(), &fakeQueries{}, mov, true)
	require.NoError(t, err)
	codes := codesOf(errs)
	require.Contains(t, codes, CodeDateInFuture)
	require.Contains(t, codes, CodeMissingRefNo)
	require.Contains(t, codes, CodeMissingType)
	require.Contains(t, codes, CodeZeroQuantity)
	require.Contains(t, codes, CodeMissingMedical)
	require.Contains(t, codes, CodeMissingLot)
}

func TestCheckReferenceNumber(t *testing.T) {
	v := newTestValidator(Config{})
	q := &fakeQueries{refNos: map[string]bool{"TAKEN": true}}

	errs, err := v.CheckReferenceNumber(context.Background(), q, "")
	require.NoError(t, err)
	require.Equal(t, []ValidationCode{CodeMissingRefNo}, codesOf(errs))

	errs, err = v.CheckReferenceNumber(context.Background(), q, "TAKEN")
	require.NoError(t, err)
	require.Equal(t, []ValidationCode{CodeDuplicateRefNo}, codesOf(errs))

	errs, err = v.CheckReferenceNumber(context.Background(), q, "FRESH")
	require.NoError(t, err)
	require.Empty(t, errs)
}
