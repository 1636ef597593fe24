// Package ledger tracks participant balances and session escrow accounts.
//
// Flow:
//  1. Participant deposits credits to the platform
//  2. Wager operations move credits: available -> session escrow
//  3. Settlement moves credits: session escrow -> winner's available
//  4. Participant withdraws remaining credits
//
// All amounts are int64 credits (the platform base unit). Every transfer is
// atomic at the store layer: either both sides of the movement happen or
// neither does.
package ledger

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientEscrow  = errors.New("insufficient escrow balance")
)

// Entry represents a ledger entry.
type Entry struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	Type        string `json:"type"` // deposit, withdrawal, escrow_lock, escrow_release
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference,omitempty"` // escrow account reference, e.g. "dice:42"
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"createdAt"` // unix seconds
}

// Balance represents a participant's balance.
type Balance struct {
	Address   string `json:"address"`
	Available int64  `json:"available"` // can be spent
	TotalIn   int64  `json:"totalIn"`   // lifetime deposits + winnings
	TotalOut  int64  `json:"totalOut"`  // lifetime withdrawals + stakes
}

// Store persists balances, escrow accounts, and ledger entries.
// Multi-account movements (EscrowDeposit, EscrowRelease) must be atomic.
type Store interface {
	GetBalance(ctx context.Context, addr string) (*Balance, error)
	Credit(ctx context.Context, addr string, amount int64, reference, description string) error
	Debit(ctx context.Context, addr string, amount int64, reference, description string) error
	EscrowBalance(ctx context.Context, reference string) (int64, error)
	EscrowDeposit(ctx context.Context, addr string, amount int64, reference, description string) error
	EscrowRelease(ctx context.Context, addr string, amount int64, reference, description string) error
	History(ctx context.Context, addr string, limit int) ([]*Entry, error)
}

// Ledger manages participant balances and escrow movements.
type Ledger struct {
	store Store
}

// New creates a new ledger.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// GetBalance returns a participant's current balance.
func (l *Ledger) GetBalance(ctx context.Context, addr string) (*Balance, error) {
	return l.store.GetBalance(ctx, normalize(addr))
}

// Deposit credits a participant's balance.
func (l *Ledger) Deposit(ctx context.Context, addr string, amount int64, reference string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return l.store.Credit(ctx, normalize(addr), amount, reference, "deposit")
}

// Withdraw debits a participant's balance.
func (l *Ledger) Withdraw(ctx context.Context, addr string, amount int64, reference string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return l.store.Debit(ctx, normalize(addr), amount, reference, "withdrawal")
}

// EscrowDeposit atomically moves credits from a participant into a session's
// escrow account. Fails with ErrInsufficientBalance without any movement if
// the participant cannot cover the amount.
func (l *Ledger) EscrowDeposit(ctx context.Context, addr string, amount int64, reference string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return l.store.EscrowDeposit(ctx, normalize(addr), amount, reference, "escrow_lock")
}

// EscrowRelease atomically moves credits out of a session's escrow account
// into a participant's balance. Fails with ErrInsufficientEscrow without any
// movement if the escrow account cannot cover the amount.
func (l *Ledger) EscrowRelease(ctx context.Context, addr string, amount int64, reference string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return l.store.EscrowRelease(ctx, normalize(addr), amount, reference, "escrow_release")
}

// EscrowBalance returns the credits currently held by an escrow account.
func (l *Ledger) EscrowBalance(ctx context.Context, reference string) (int64, error) {
	return l.store.EscrowBalance(ctx, reference)
}

// CanSpend checks if a participant has sufficient available balance.
func (l *Ledger) CanSpend(ctx context.Context, addr string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	bal, err := l.store.GetBalance(ctx, normalize(addr))
	if err != nil {
		return false, err
	}
	return bal.Available >= amount, nil
}

// History returns ledger entries for a participant, newest first.
func (l *Ledger) History(ctx context.Context, addr string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.store.History(ctx, normalize(addr), limit)
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
