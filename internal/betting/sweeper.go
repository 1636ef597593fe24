package betting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Sweeper periodically cancels bets that never activated and refunds
// any deposits already made.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewSweeper creates a new expiry sweeper.
func NewSweeper(service *Service, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the sweeper loop is actively running.
func (s *Sweeper) Running() bool {
	return s.running.Load()
}

// Start begins the sweep loop. Call in a goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	s.running.Store(true)
	defer s.running.Store(false)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.safeSweep(ctx)
		}
	}
}

// Stop signals the sweeper to stop.
func (s *Sweeper) Stop() {
	select {
	case s.stop <- struct{}{}:
	default:
	}
}

func (s *Sweeper) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in bet sweeper", "panic", fmt.Sprint(r))
		}
	}()
	s.sweep(ctx)
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.service.ListExpired(ctx, 100)
	if err != nil {
		s.logger.Warn("failed to list expired bets", "error", err)
		return
	}

	for _, bet := range expired {
		if _, err := s.service.CancelExpired(ctx, bet.ID); err != nil {
			// The bet may have activated between the list and the
			// cancel; that is not a fault.
			if errors.Is(err, ErrInvalidBetStatus) || errors.Is(err, ErrNotExpired) {
				continue
			}
			s.logger.Warn("failed to cancel expired bet",
				"betId", bet.ID,
				"error", err,
			)
			continue
		}
		s.logger.Info("cancelled expired bet",
			"betId", bet.ID,
			"participants", len(bet.Participants),
			"refunded", bet.TotalPool,
		)
	}
}
