package bom

import "context"

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	GetDetails(ctx context.Context, id int64) (Details, error)
}

// Service exposes read-only BOM lookups.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GetDetails loads one BOM with components and operations.
func (s *Service) GetDetails(ctx context.Context, id int64) (Details, error) {
	return s.repo.GetDetails(ctx, id)
}
