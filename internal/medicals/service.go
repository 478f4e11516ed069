package medicals

import (
	"context"
	"errors"
)

// RepositoryPort abstracts catalog reads for the service and for the stock module.
type RepositoryPort interface {
	GetByCode(ctx context.Context, code int) (Medical, error)
	List(ctx context.Context, limit, offset int) ([]Medical, error)
}

// Service exposes catalog reads.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GetByCode fetches one medical.
func (s *Service) GetByCode(ctx context.Context, code int) (Medical, error) {
	if code <= 0 {
		return Medical{}, errors.New("medicals: invalid medical code")
	}
	return s.repo.GetByCode(ctx, code)
}

// List returns catalog entries.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Medical, error) {
	return s.repo.List(ctx, limit, offset)
}
