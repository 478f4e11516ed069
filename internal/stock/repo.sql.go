package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegle-his/aegle/internal/platform/db"
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	queries
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, queries: queries{db: pool}}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries implements the reads and writes shared between pool and transaction.
type queries struct {
	db querier
}

type txRepository struct {
	queries
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction. Every
// lot mutation happens in the same transaction as the movement insert that
// caused it.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{queries: queries{db: tx}, tx: tx})
	})
}

const lotColumns = `code, medical_code, preparation_date, due_date, cost, quantity`

func scanLot(row pgx.Row) (Lot, error) {
	var lot Lot
	err := row.Scan(&lot.Code, &lot.MedicalCode, &lot.PreparationDate, &lot.DueDate, &lot.Cost, &lot.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lot{}, ErrLotNotFound
		}
		return Lot{}, err
	}
	return lot, nil
}

func (q queries) GetLot(ctx context.Context, code string) (Lot, error) {
	return scanLot(q.db.QueryRow(ctx, `SELECT `+lotColumns+` FROM medical_lots WHERE code = $1`, code))
}

func (q queries) LotsByMedical(ctx context.Context, medicalCode int, excludeEmpty bool) ([]Lot, error) {
	sql := `SELECT ` + lotColumns + ` FROM medical_lots WHERE medical_code = $1`
	if excludeEmpty {
		sql += ` AND quantity > 0`
	}
	sql += ` ORDER BY due_date ASC, code ASC`
	rows, err := q.db.Query(ctx, sql, medicalCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lots := []Lot{}
	for rows.Next() {
		var lot Lot
		if err := rows.Scan(&lot.Code, &lot.MedicalCode, &lot.PreparationDate, &lot.DueDate, &lot.Cost, &lot.Quantity); err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (q queries) LotExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM medical_lots WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

func (q queries) RefNoExists(ctx context.Context, refNo string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_refnos WHERE refno = $1)`, refNo).Scan(&exists)
	return exists, err
}

func (q queries) LastMovementDate(ctx context.Context) (time.Time, error) {
	var last *time.Time
	if err := q.db.QueryRow(ctx, `SELECT MAX(mov_date) FROM medical_stock_movements`).Scan(&last); err != nil {
		return time.Time{}, err
	}
	if last == nil {
		return time.Time{}, nil
	}
	return *last, nil
}

func (q queries) MedicalCodesForLot(ctx context.Context, lotCode string) ([]int, error) {
	rows, err := q.db.Query(ctx, `SELECT DISTINCT medical_code FROM medical_stock_movements WHERE lot_code = $1 ORDER BY medical_code`, lotCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	codes := []int{}
	for rows.Next() {
		var code int
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (q queries) SaveLot(ctx context.Context, lot Lot) (Lot, error) {
	_, err := q.db.Exec(ctx, `INSERT INTO medical_lots (code, medical_code, preparation_date, due_date, cost, quantity)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (code) DO UPDATE SET preparation_date = EXCLUDED.preparation_date, due_date = EXCLUDED.due_date, cost = EXCLUDED.cost, quantity = EXCLUDED.quantity`,
		lot.Code, lot.MedicalCode, lot.PreparationDate, lot.DueDate, lot.Cost, lot.Quantity)
	if err != nil {
		return Lot{}, err
	}
	return lot, nil
}

func (r *Repository) DeleteLot(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM medical_lots WHERE code = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLotNotFound
	}
	return nil
}

func (r *Repository) MovementsExistForLot(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM medical_stock_movements WHERE lot_code = $1)`, code).Scan(&exists)
	return exists, err
}

func (t *txRepository) GetLotForUpdate(ctx context.Context, code string) (Lot, error) {
	return scanLot(t.tx.QueryRow(ctx, `SELECT `+lotColumns+` FROM medical_lots WHERE code = $1 FOR UPDATE`, code))
}

func (t *txRepository) LotsByMedicalForUpdate(ctx context.Context, medicalCode int) ([]Lot, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+lotColumns+` FROM medical_lots
WHERE medical_code = $1 AND quantity > 0
ORDER BY due_date ASC, code ASC
FOR UPDATE`, medicalCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lots := []Lot{}
	for rows.Next() {
		var lot Lot
		if err := rows.Scan(&lot.Code, &lot.MedicalCode, &lot.PreparationDate, &lot.DueDate, &lot.Cost, &lot.Quantity); err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// AdjustLotQuantity applies a delta to a lot already locked by the caller.
// The predicate keeps stored quantities non-negative even if a rule upstream
// let an overdraw through.
func (t *txRepository) AdjustLotQuantity(ctx context.Context, code string, delta int) (Lot, error) {
	lot, err := scanLot(t.tx.QueryRow(ctx, `UPDATE medical_lots SET quantity = quantity + $2 WHERE code = $1 AND quantity + $2 >= 0 RETURNING `+lotColumns, code, delta))
	if err != nil {
		if errors.Is(err, ErrLotNotFound) && delta < 0 {
			return Lot{}, ErrInsufficientStock
		}
		return Lot{}, err
	}
	return lot, nil
}

func (t *txRepository) ReserveRefNo(ctx context.Context, refNo string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO stock_refnos (refno, reserved_at) VALUES ($1, NOW())`, refNo)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateRefNo
		}
		return err
	}
	return nil
}

func (t *txRepository) InsertMovement(ctx context.Context, mov Movement) (Movement, error) {
	var supplierID any
	if mov.Supplier != nil {
		supplierID = mov.Supplier.ID
	}
	var wardCode any
	if mov.Ward != nil {
		wardCode = mov.Ward.Code
	}
	var typeCode, typeOp any
	if mov.Type != nil {
		typeCode = mov.Type.Code
		typeOp = mov.Type.Operation
	}
	var lotCode any
	var medicalCode any
	if mov.Lot != nil {
		lotCode = mov.Lot.Code
	}
	if mov.Medical != nil {
		medicalCode = mov.Medical.Code
	}
	err := t.tx.QueryRow(ctx, `INSERT INTO medical_stock_movements (type_code, type_operation, medical_code, lot_code, mov_date, quantity, supplier_id, ward_code, refno)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`, typeCode, typeOp, medicalCode, lotCode, mov.Date, mov.Quantity, supplierID, wardCode, mov.RefNo).Scan(&mov.ID)
	if err != nil {
		return Movement{}, err
	}
	return mov, nil
}
