// Package arbiters tracks per-arbiter settlement statistics.
//
// Every ruling feeds a running record: how many bets an address has
// arbitrated, the total volume it has settled, and how quickly it
// decides. The leaderboard surfaces the busiest and fastest arbiters
// so parties can pick one with a track record.
package arbiters

import (
	"context"
	"errors"
	"time"
)

var ErrArbiterNotFound = errors.New("arbiter not found")

// Stats is the running record for one arbiter address.
type Stats struct {
	Address         string     `json:"address"`
	TotalArbitrated int        `json:"totalArbitrated"`
	TotalVolume     int64      `json:"totalVolume"`
	AvgDecisionTime float64    `json:"avgDecisionTimeSeconds"`
	FastestDecision float64    `json:"fastestDecisionSeconds"`
	ReputationScore float64    `json:"reputationScore"`
	LastDecisionAt  *time.Time `json:"lastDecisionAt,omitempty"`
	FirstDecisionAt *time.Time `json:"firstDecisionAt,omitempty"`
}

// Score computes the reputation score from the current counters.
// Volume of settled disputes dominates; slow average decisions
// discount it.
func (s *Stats) Score() float64 {
	if s.TotalArbitrated == 0 {
		return 0
	}
	base := float64(s.TotalArbitrated)
	discount := 1 + s.AvgDecisionTime/(24*time.Hour).Seconds()
	return base / discount * 100
}

// Store persists arbiter statistics.
type Store interface {
	RecordDecision(ctx context.Context, arbiter string, volume int64, decisionTime time.Duration) error
	Get(ctx context.Context, arbiter string) (*Stats, error)
	Leaderboard(ctx context.Context, limit int) ([]*Stats, error)
}
