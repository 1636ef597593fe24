package dicegame

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory game store for demo/development mode.
type MemoryStore struct {
	games map[uint64]*Game
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory game store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[uint64]*Game),
	}
}

func (m *MemoryStore) Create(ctx context.Context, game *Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.games[game.ID]; ok {
		return ErrGameExists
	}
	m.games[game.ID] = copyGame(game)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id uint64) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	game, ok := m.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return copyGame(game), nil
}

func (m *MemoryStore) Update(ctx context.Context, game *Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.games[game.ID]; !ok {
		return ErrGameNotFound
	}
	m.games[game.ID] = copyGame(game)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, status Status, limit int) ([]*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Game
	for _, g := range m.games {
		if status != "" && g.Status != status {
			continue
		}
		result = append(result, copyGame(g))
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) ListExpired(ctx context.Context, before time.Time, limit int) ([]*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Game
	for _, g := range m.games {
		if g.Status == StatusWaiting && g.CreatedAt.Before(before) {
			result = append(result, copyGame(g))
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// copyGame deep-copies a game so callers never share slice backing arrays
// with the stored record.
func copyGame(g *Game) *Game {
	cp := *g
	cp.Players = make([]string, len(g.Players))
	copy(cp.Players, g.Players)
	cp.Rolls = make([]*Roll, len(g.Rolls))
	for i, r := range g.Rolls {
		if r != nil {
			rc := *r
			cp.Rolls[i] = &rc
		}
	}
	return &cp
}
