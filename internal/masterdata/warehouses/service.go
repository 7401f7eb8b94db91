package warehouses

import "context"

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Warehouse, error)
	GetByCode(ctx context.Context, code string) (Warehouse, error)
	GetDefaultByType(ctx context.Context, t Type) (Warehouse, error)
	List(ctx context.Context) ([]Warehouse, error)
}

// Service exposes warehouse lookups.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns one warehouse by id.
func (s *Service) Get(ctx context.Context, id int64) (Warehouse, error) {
	return s.repo.Get(ctx, id)
}

// Resolve maps a warehouse code to its record.
func (s *Service) Resolve(ctx context.Context, code string) (Warehouse, error) {
	return s.repo.GetByCode(ctx, code)
}

// DefaultFor returns the default warehouse for a role (WIP, FG, scrap).
func (s *Service) DefaultFor(ctx context.Context, t Type) (Warehouse, error) {
	return s.repo.GetDefaultByType(ctx, t)
}

// List returns active warehouses.
func (s *Service) List(ctx context.Context) ([]Warehouse, error) {
	return s.repo.List(ctx)
}
