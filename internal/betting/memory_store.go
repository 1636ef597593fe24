package betting

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory bet store for demo/development mode.
type MemoryStore struct {
	bets      map[uint64]*Bet
	groupBets map[string]*GroupBet
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory bet store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bets:      make(map[uint64]*Bet),
		groupBets: make(map[string]*GroupBet),
	}
}

func (m *MemoryStore) Create(ctx context.Context, bet *Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bets[bet.ID]; ok {
		return ErrBetExists
	}
	m.bets[bet.ID] = copyBet(bet)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id uint64) (*Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bet, ok := m.bets[id]
	if !ok {
		return nil, ErrBetNotFound
	}
	return copyBet(bet), nil
}

func (m *MemoryStore) Update(ctx context.Context, bet *Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bets[bet.ID]; !ok {
		return ErrBetNotFound
	}
	m.bets[bet.ID] = copyBet(bet)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, status Status, limit int) ([]*Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Bet
	for _, b := range m.bets {
		if status != "" && b.Status != status {
			continue
		}
		result = append(result, copyBet(b))
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) ListByParticipant(ctx context.Context, addr string, limit int) ([]*Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Bet
	for _, b := range m.bets {
		if b.ParticipantIndex(addr) < 0 && b.Arbiter != addr {
			continue
		}
		result = append(result, copyBet(b))
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) ListExpired(ctx context.Context, before time.Time, limit int) ([]*Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Bet
	for _, b := range m.bets {
		if b.Status == StatusWaiting && b.CreatedAt.Before(before) {
			result = append(result, copyBet(b))
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MemoryStore) CreateGroupBet(ctx context.Context, gb *GroupBet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *gb
	m.groupBets[gb.ID] = &cp
	return nil
}

func (m *MemoryStore) GetGroupBet(ctx context.Context, id string) (*GroupBet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	gb, ok := m.groupBets[id]
	if !ok {
		return nil, ErrGroupBetNotFound
	}
	cp := *gb
	return &cp, nil
}

func (m *MemoryStore) UpdateGroupBet(ctx context.Context, gb *GroupBet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groupBets[gb.ID]; !ok {
		return ErrGroupBetNotFound
	}
	cp := *gb
	m.groupBets[gb.ID] = &cp
	return nil
}

func (m *MemoryStore) ListGroupBets(ctx context.Context, betID uint64, limit int) ([]*GroupBet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*GroupBet
	for _, gb := range m.groupBets {
		if gb.BetID != betID {
			continue
		}
		cp := *gb
		result = append(result, &cp)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) SumGroupBetsByChoice(ctx context.Context, betID uint64, choice string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, gb := range m.groupBets {
		if gb.BetID == betID && gb.Choice == choice {
			total += gb.Amount
		}
	}
	return total, nil
}

// copyBet deep-copies a bet so callers never share slice backing arrays
// with the stored record.
func copyBet(b *Bet) *Bet {
	cp := *b
	cp.Participants = make([]string, len(b.Participants))
	copy(cp.Participants, b.Participants)
	cp.Deposits = make([]bool, len(b.Deposits))
	copy(cp.Deposits, b.Deposits)
	return &cp
}
