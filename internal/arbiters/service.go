package arbiters

import (
	"context"
	"strings"
	"time"

	"github.com/mbd888/wagervault/internal/metrics"
)

// Service records rulings and serves the leaderboard.
type Service struct {
	store Store
}

// NewService creates a new arbiter stats service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// RecordDecision folds one ruling into the arbiter's running stats.
func (s *Service) RecordDecision(ctx context.Context, arbiter string, volume int64, decisionTime time.Duration) error {
	arbiter = strings.ToLower(arbiter)
	if err := s.store.RecordDecision(ctx, arbiter, volume, decisionTime); err != nil {
		return err
	}
	metrics.ArbiterDecisionsTotal.Inc()
	return nil
}

// Get returns the stats for one arbiter.
func (s *Service) Get(ctx context.Context, arbiter string) (*Stats, error) {
	return s.store.Get(ctx, strings.ToLower(arbiter))
}

// Leaderboard returns the top arbiters by reputation score.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]*Stats, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.Leaderboard(ctx, limit)
}
