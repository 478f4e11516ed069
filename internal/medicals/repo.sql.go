package medicals

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the medicals catalog from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByCode fetches one medical with its derived total quantity.
func (r *Repository) GetByCode(ctx context.Context, code int) (Medical, error) {
	if r == nil {
		return Medical{}, errors.New("medicals repository not initialised")
	}
	var m Medical
	err := r.pool.QueryRow(ctx, `SELECT m.code, m.description, m.min_qty, COALESCE(SUM(l.quantity), 0)
FROM medicals m
LEFT JOIN medical_lots l ON l.medical_code = m.code
WHERE m.code = $1
GROUP BY m.code, m.description, m.min_qty`, code).Scan(&m.Code, &m.Description, &m.MinQty, &m.TotalQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Medical{}, ErrMedicalNotFound
		}
		return Medical{}, err
	}
	return m, nil
}

// List returns the catalog ordered by description.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Medical, error) {
	if r == nil {
		return nil, errors.New("medicals repository not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT m.code, m.description, m.min_qty, COALESCE(SUM(l.quantity), 0)
FROM medicals m
LEFT JOIN medical_lots l ON l.medical_code = m.code
GROUP BY m.code, m.description, m.min_qty
ORDER BY m.description ASC
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Medical{}
	for rows.Next() {
		var m Medical
		if err := rows.Scan(&m.Code, &m.Description, &m.MinQty, &m.TotalQuantity); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
