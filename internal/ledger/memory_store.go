package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/mbd888/wagervault/internal/idgen"
)

// MemoryStore is an in-memory ledger store for demo/development mode.
type MemoryStore struct {
	balances map[string]*Balance
	escrows  map[string]int64
	entries  []*Entry
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]*Balance),
		escrows:  make(map[string]int64),
	}
}

func (m *MemoryStore) GetBalance(ctx context.Context, addr string) (*Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if bal, ok := m.balances[addr]; ok {
		cp := *bal
		return &cp, nil
	}
	return &Balance{Address: addr}, nil
}

func (m *MemoryStore) Credit(ctx context.Context, addr string, amount int64, reference, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balance(addr)
	bal.Available += amount
	bal.TotalIn += amount
	m.record(addr, "deposit", amount, reference, description)
	return nil
}

func (m *MemoryStore) Debit(ctx context.Context, addr string, amount int64, reference, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balance(addr)
	if bal.Available < amount {
		return ErrInsufficientBalance
	}
	bal.Available -= amount
	bal.TotalOut += amount
	m.record(addr, "withdrawal", amount, reference, description)
	return nil
}

func (m *MemoryStore) EscrowBalance(ctx context.Context, reference string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.escrows[reference], nil
}

func (m *MemoryStore) EscrowDeposit(ctx context.Context, addr string, amount int64, reference, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balance(addr)
	if bal.Available < amount {
		return ErrInsufficientBalance
	}
	bal.Available -= amount
	bal.TotalOut += amount
	m.escrows[reference] += amount
	m.record(addr, "escrow_lock", amount, reference, description)
	return nil
}

func (m *MemoryStore) EscrowRelease(ctx context.Context, addr string, amount int64, reference, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.escrows[reference] < amount {
		return ErrInsufficientEscrow
	}
	m.escrows[reference] -= amount
	bal := m.balance(addr)
	bal.Available += amount
	bal.TotalIn += amount
	m.record(addr, "escrow_release", amount, reference, description)
	return nil
}

func (m *MemoryStore) History(ctx context.Context, addr string, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Entry
	// Newest first
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if m.entries[i].Address == addr {
			cp := *m.entries[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}

// balance returns the mutable balance record for addr, creating it if needed.
// Caller must hold the write lock.
func (m *MemoryStore) balance(addr string) *Balance {
	bal, ok := m.balances[addr]
	if !ok {
		bal = &Balance{Address: addr}
		m.balances[addr] = bal
	}
	return bal
}

func (m *MemoryStore) record(addr, typ string, amount int64, reference, description string) {
	m.entries = append(m.entries, &Entry{
		ID:          idgen.WithPrefix("entry_"),
		Address:     addr,
		Type:        typ,
		Amount:      amount,
		Reference:   reference,
		Description: description,
		CreatedAt:   time.Now().Unix(),
	})
}
