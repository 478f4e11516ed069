package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists reference data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, phone, email FROM suppliers ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	suppliers := []Supplier{}
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Phone, &s.Email); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.pool.QueryRow(ctx, `SELECT id, name, phone, email FROM suppliers WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Phone, &s.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, ErrSupplierNotFound
		}
		return Supplier{}, err
	}
	return s, nil
}

func (r *Repository) CreateSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO suppliers (name, phone, email) VALUES ($1, $2, $3) RETURNING id`,
		s.Name, s.Phone, s.Email).Scan(&s.ID)
	return s, err
}

func (r *Repository) ListWards(ctx context.Context) ([]Ward, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, name FROM wards ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	wards := []Ward{}
	for rows.Next() {
		var w Ward
		if err := rows.Scan(&w.Code, &w.Name); err != nil {
			return nil, err
		}
		wards = append(wards, w)
	}
	return wards, rows.Err()
}

func (r *Repository) GetWard(ctx context.Context, code string) (Ward, error) {
	var w Ward
	err := r.pool.QueryRow(ctx, `SELECT code, name FROM wards WHERE code = $1`, code).Scan(&w.Code, &w.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ward{}, ErrWardNotFound
		}
		return Ward{}, err
	}
	return w, nil
}

func (r *Repository) CreateWard(ctx context.Context, w Ward) (Ward, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO wards (code, name) VALUES ($1, $2)`, w.Code, w.Name)
	return w, err
}
