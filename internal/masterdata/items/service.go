package items

import (
	"context"
	"log/slog"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, code string) (Item, error)
	UpdateValuationRate(ctx context.Context, code string, rate float64) error
	List(ctx context.Context, limit int) ([]Item, error)
}

// Service exposes item master operations to the rest of the system.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Get returns one item.
func (s *Service) Get(ctx context.Context, code string) (Item, error) {
	return s.repo.Get(ctx, code)
}

// List returns active items.
func (s *Service) List(ctx context.Context, limit int) ([]Item, error) {
	return s.repo.List(ctx, limit)
}

// UpdateValuationRate stores a new master rate. Used by the valuation sync
// after balance changes and by cost roll-up on work order completion.
func (s *Service) UpdateValuationRate(ctx context.Context, code string, rate float64) error {
	if rate < 0 {
		rate = 0
	}
	if err := s.repo.UpdateValuationRate(ctx, code, rate); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Debug("item valuation rate updated", slog.String("item", code), slog.Float64("rate", rate))
	}
	return nil
}
