package masterdata

import (
	"context"
	"errors"
	"strings"
)

// RepositoryPort abstracts persistence for reference data.
type RepositoryPort interface {
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	CreateSupplier(ctx context.Context, s Supplier) (Supplier, error)
	ListWards(ctx context.Context) ([]Ward, error)
	GetWard(ctx context.Context, code string) (Ward, error)
	CreateWard(ctx context.Context, w Ward) (Ward, error)
}

// Service exposes reference data operations.
type Service struct {
	repo RepositoryPort
}

// NewService creates a new reference data service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Supplier operations
func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, errors.New("invalid supplier ID")
	}
	return s.repo.GetSupplier(ctx, id)
}

func (s *Service) CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return Supplier{}, errors.New("supplier name is required")
	}
	return s.repo.CreateSupplier(ctx, supplier)
}

// Ward operations
func (s *Service) ListWards(ctx context.Context) ([]Ward, error) {
	return s.repo.ListWards(ctx)
}

func (s *Service) GetWard(ctx context.Context, code string) (Ward, error) {
	if strings.TrimSpace(code) == "" {
		return Ward{}, errors.New("invalid ward code")
	}
	return s.repo.GetWard(ctx, code)
}

func (s *Service) CreateWard(ctx context.Context, ward Ward) (Ward, error) {
	if strings.TrimSpace(ward.Code) == "" || strings.TrimSpace(ward.Name) == "" {
		return Ward{}, errors.New("ward code and name are required")
	}
	return s.repo.CreateWard(ctx, ward)
}
