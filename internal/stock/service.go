package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aegle-his/aegle/internal/medicals"
	"github.com/aegle-his/aegle/internal/shared"
)

// Queries are read operations available both inside and outside a batch
// transaction.
type Queries interface {
	ValidationQueries
	GetLot(ctx context.Context, code string) (Lot, error)
	LotsByMedical(ctx context.Context, medicalCode int, excludeEmpty bool) ([]Lot, error)
	LotExists(ctx context.Context, code string) (bool, error)
}

// TxRepository exposes the operations available inside one batch transaction.
type TxRepository interface {
	Queries
	InsertMovement(ctx context.Context, mov Movement) (Movement, error)
	ReserveRefNo(ctx context.Context, refNo string) error
	GetLotForUpdate(ctx context.Context, code string) (Lot, error)
	LotsByMedicalForUpdate(ctx context.Context, medicalCode int) ([]Lot, error)
	SaveLot(ctx context.Context, lot Lot) (Lot, error)
	AdjustLotQuantity(ctx context.Context, code string, delta int) (Lot, error)
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Queries
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	SaveLot(ctx context.Context, lot Lot) (Lot, error)
	DeleteLot(ctx context.Context, code string) error
	MovementsExistForLot(ctx context.Context, code string) (bool, error)
}

// MedicalPort resolves medicals from the catalog.
type MedicalPort interface {
	GetByCode(ctx context.Context, code int) (medicals.Medical, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service prepares charging and discharging movements: it validates each
// movement, resolves or allocates lots and persists the whole batch as one
// all-or-nothing unit.
type Service struct {
	repo        RepositoryPort
	medicals    MedicalPort
	audit       AuditPort
	integration IntegrationHandler
	validator   *Validator
	cfg         Config
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, medicalCatalog MedicalPort, audit AuditPort, cfg Config, integration IntegrationHandler) *Service {
	return &Service{
		repo:        repo,
		medicals:    medicalCatalog,
		audit:       audit,
		integration: integration,
		validator:   NewValidator(cfg),
		cfg:         cfg,
		now:         time.Now,
	}
}

// InsertChargingMovements stores a batch of charging movements and their lots.
// When refNo is empty each movement must carry its own reference number;
// otherwise the shared number is checked once and stamped on every movement.
// The batch commits or aborts as a whole.
func (s *Service) InsertChargingMovements(ctx context.Context, movements []Movement, refNo string) ([]Movement, error) {
	checkReference := refNo == ""
	var inserted []Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if !checkReference {
			if err := s.checkSharedReference(ctx, tx, refNo); err != nil {
				return err
			}
		}
		for _, mov := range movements {
			if refNo != "" {
				mov.RefNo = refNo
			}
			prepared, err := s.prepareCharging(ctx, tx, mov, checkReference)
			if err != nil {
				return decorateMovementError(err, mov)
			}
			inserted = append(inserted, prepared)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordBatch(ctx, "stock:charge", refNo, inserted)
	return inserted, nil
}

// InsertDischargingMovements stores a batch of discharging movements. Under
// the automatic lot policy one input movement may expand into several output
// movements, one per consumed lot.
func (s *Service) InsertDischargingMovements(ctx context.Context, movements []Movement, refNo string) ([]Movement, error) {
	checkReference := refNo == ""
	var inserted []Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if !checkReference {
			if err := s.checkSharedReference(ctx, tx, refNo); err != nil {
				return err
			}
		}
		for _, mov := range movements {
			if refNo != "" {
				mov.RefNo = refNo
			}
			prepared, err := s.prepareDischarging(ctx, tx, mov, checkReference)
			if err != nil {
				return decorateMovementError(err, mov)
			}
			inserted = append(inserted, prepared...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordBatch(ctx, "stock:discharge", refNo, inserted)
	s.notifyLowStock(ctx, movements)
	return inserted, nil
}

func (s *Service) checkSharedReference(ctx context.Context, tx TxRepository, refNo string) error {
	errs, err := s.validator.CheckReferenceNumber(ctx, tx, refNo)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return errs
	}
	// Reserving inside the transaction closes the race between two batches
	// submitting the same reference number concurrently.
	return tx.ReserveRefNo(ctx, refNo)
}

func (s *Service) prepareCharging(ctx context.Context, tx TxRepository, mov Movement, checkReference bool) (Movement, error) {
	errs, err := s.validator.ValidateMovement(ctx, tx, mov, checkReference)
	if err != nil {
		return Movement{}, err
	}
	if len(errs) > 0 {
		return Movement{}, errs
	}
	if checkReference {
		if err := tx.ReserveRefNo(ctx, mov.RefNo); err != nil {
			return Movement{}, err
		}
	}

	lot := *mov.Lot
	if s.cfg.AutomaticLotIn && lot.Code == "" {
		lot.Code = uuid.NewString()
	}
	if !s.cfg.LotWithCost {
		lot.Cost = nil
	}
	lot.MedicalCode = mov.Medical.Code

	stored, err := tx.GetLotForUpdate(ctx, lot.Code)
	switch {
	case err == nil:
		updated, adjErr := tx.AdjustLotQuantity(ctx, stored.Code, mov.Quantity)
		if adjErr != nil {
			return Movement{}, adjErr
		}
		lot = updated
	case errors.Is(err, ErrLotNotFound):
		lot.Quantity = mov.Quantity
		lot, err = tx.SaveLot(ctx, lot)
		if err != nil {
			return Movement{}, err
		}
	default:
		return Movement{}, err
	}

	mov.Lot = &lot
	return tx.InsertMovement(ctx, mov)
}

func (s *Service) prepareDischarging(ctx context.Context, tx TxRepository, mov Movement, checkReference bool) ([]Movement, error) {
	// Under manual lot selection the caller names a lot; the rules run against
	// the stored lot, locked for the rest of the batch, never against the
	// caller's snapshot of it.
	if !s.cfg.AutomaticLotOut && mov.Lot != nil && mov.Lot.Code != "" {
		stored, err := tx.GetLotForUpdate(ctx, mov.Lot.Code)
		if err != nil {
			return nil, err
		}
		mov.Lot = &stored
	}

	errs, err := s.validator.ValidateMovement(ctx, tx, mov, checkReference)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, errs
	}
	if checkReference {
		if err := tx.ReserveRefNo(ctx, mov.RefNo); err != nil {
			return nil, err
		}
	}

	if !s.cfg.AutomaticLotOut {
		updated, err := tx.AdjustLotQuantity(ctx, mov.Lot.Code, -mov.Quantity)
		if err != nil {
			return nil, err
		}
		mov.Lot = &updated
		inserted, err := tx.InsertMovement(ctx, mov)
		if err != nil {
			return nil, err
		}
		return []Movement{inserted}, nil
	}

	// Automatic mode: plan first against the locked lots, apply second, so an
	// unsatisfiable request aborts before any lot is touched.
	lots, err := tx.LotsByMedicalForUpdate(ctx, mov.Medical.Code)
	if err != nil {
		return nil, err
	}
	plan, err := PlanAllocation(lots, mov.Quantity)
	if err != nil {
		return nil, err
	}
	var out []Movement
	for _, alloc := range plan {
		updated, err := tx.AdjustLotQuantity(ctx, alloc.Lot.Code, -alloc.Quantity)
		if err != nil {
			return nil, err
		}
		part := mov
		part.Quantity = alloc.Quantity
		part.Lot = &updated
		inserted, err := tx.InsertMovement(ctx, part)
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}
	return out, nil
}

// decorateMovementError enriches a failed movement's error list with the
// medical description so batch callers can point at the offending item.
func decorateMovementError(err error, mov Movement) error {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		desc := "no description"
		if mov.Medical != nil {
			desc = mov.Medical.Description
		}
		return append(verrs, ValidationError{CodeMedicalContext, desc})
	}
	return err
}

func (s *Service) recordBatch(ctx context.Context, action, refNo string, inserted []Movement) {
	if s.audit == nil || len(inserted) == 0 {
		return
	}
	entityID := refNo
	if entityID == "" {
		entityID = inserted[0].RefNo
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "stock_batch",
		EntityID: entityID,
		Meta: map[string]any{
			"movements": len(inserted),
		},
	})
}

// notifyLowStock emits one event per medical left under its minimum quantity
// by a committed discharge batch. Delivery failures are dropped: alerting is
// advisory and must not undo a committed batch.
func (s *Service) notifyLowStock(ctx context.Context, movements []Movement) {
	if s.integration == nil || s.medicals == nil {
		return
	}
	seen := map[int]bool{}
	for _, mov := range movements {
		if mov.Medical == nil || seen[mov.Medical.Code] {
			continue
		}
		seen[mov.Medical.Code] = true
		med, err := s.medicals.GetByCode(ctx, mov.Medical.Code)
		if err != nil {
			continue
		}
		if med.TotalQuantity < med.MinQty {
			_ = s.integration.HandleLowStock(ctx, LowStockEvent{
				MedicalCode:   med.Code,
				Description:   med.Description,
				TotalQuantity: med.TotalQuantity,
				MinQty:        med.MinQty,
				OccurredAt:    s.now(),
			})
		}
	}
}

// LotsByMedical lists the lots of one medical, soonest-expiring first. Zero
// quantities are stripped when removeEmpty is set.
func (s *Service) LotsByMedical(ctx context.Context, medicalCode int, removeEmpty bool) ([]Lot, error) {
	if medicalCode <= 0 {
		return []Lot{}, nil
	}
	return s.repo.LotsByMedical(ctx, medicalCode, removeEmpty)
}

// GetLot fetches one lot by code.
func (s *Service) GetLot(ctx context.Context, code string) (Lot, error) {
	return s.repo.GetLot(ctx, code)
}

// UpdateLot stores the given lot.
func (s *Service) UpdateLot(ctx context.Context, lot Lot) (Lot, error) {
	return s.repo.SaveLot(ctx, lot)
}

// UpdateLots stores every given lot.
func (s *Service) UpdateLots(ctx context.Context, lots []Lot) ([]Lot, error) {
	updated := make([]Lot, 0, len(lots))
	for _, lot := range lots {
		saved, err := s.UpdateLot(ctx, lot)
		if err != nil {
			return nil, err
		}
		updated = append(updated, saved)
	}
	return updated, nil
}

// DeleteLot removes an unused lot. Lots referenced by movements stay: history
// is corrected with compensating movements, never by deleting lots.
func (s *Service) DeleteLot(ctx context.Context, code string) error {
	inUse, err := s.repo.MovementsExistForLot(ctx, code)
	if err != nil {
		return err
	}
	if inUse {
		return ErrLotInUse
	}
	return s.repo.DeleteLot(ctx, code)
}

// LotExists reports whether the lot code is known.
func (s *Service) LotExists(ctx context.Context, code string) (bool, error) {
	return s.repo.LotExists(ctx, code)
}

// RefNoExists reports whether the reference number is already used.
func (s *Service) RefNoExists(ctx context.Context, refNo string) (bool, error) {
	return s.repo.RefNoExists(ctx, refNo)
}

// LastMovementDate returns the watermark used for chronological ordering. The
// zero time means no movement exists yet.
func (s *Service) LastMovementDate(ctx context.Context) (time.Time, error) {
	return s.repo.LastMovementDate(ctx)
}

// MedicalCodesForLot lists the medicals historically referencing a lot code.
func (s *Service) MedicalCodesForLot(ctx context.Context, code string) ([]int, error) {
	return s.repo.MedicalCodesForLot(ctx, code)
}

// AlertCriticalQuantity reports whether consuming the given quantity would
// leave the medical under its minimum threshold.
func (s *Service) AlertCriticalQuantity(ctx context.Context, medicalCode, quantity int) (bool, error) {
	med, err := s.medicals.GetByCode(ctx, medicalCode)
	if err != nil {
		return false, err
	}
	residual := med.TotalQuantity - float64(quantity)
	return residual < med.MinQty, nil
}
