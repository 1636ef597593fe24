package arbiters

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for testing.
type MemoryStore struct {
	mu    sync.RWMutex
	stats map[string]*Stats
}

// NewMemoryStore creates a new in-memory arbiter stats store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stats: make(map[string]*Stats)}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) RecordDecision(ctx context.Context, arbiter string, volume int64, decisionTime time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[arbiter]
	if !ok {
		s = &Stats{Address: arbiter}
		m.stats[arbiter] = s
	}

	now := time.Now()
	seconds := decisionTime.Seconds()

	// Running average over all rulings so far
	s.AvgDecisionTime = (s.AvgDecisionTime*float64(s.TotalArbitrated) + seconds) / float64(s.TotalArbitrated+1)
	s.TotalArbitrated++
	s.TotalVolume += volume
	if s.FastestDecision == 0 || seconds < s.FastestDecision {
		s.FastestDecision = seconds
	}
	if s.FirstDecisionAt == nil {
		first := now
		s.FirstDecisionAt = &first
	}
	s.LastDecisionAt = &now
	s.ReputationScore = s.Score()

	return nil
}

func (m *MemoryStore) Get(ctx context.Context, arbiter string) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stats[arbiter]
	if !ok {
		return nil, ErrArbiterNotFound
	}
	copy := *s
	return &copy, nil
}

func (m *MemoryStore) Leaderboard(ctx context.Context, limit int) ([]*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Stats, 0, len(m.stats))
	for _, s := range m.stats {
		copy := *s
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ReputationScore > result[j].ReputationScore
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
