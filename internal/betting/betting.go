// Package betting implements arbitrated wagers.
//
// Flow:
//  1. Creator opens a bet naming the other party (or a participant cap for
//     multi-party bets) and a designated arbiter
//  2. Each party deposits the stake; the last deposit activates the bet
//  3. While the bet is active, third parties may place group side bets on
//     either party
//  4. After a minimum decision window the arbiter declares the winner
//  5. The winner withdraws the pool minus fees; the arbiter collects a
//     separate fee; winning side bettors claim parimutuel shares of the
//     group pool
//
// Bets that never activate are cancelled after the expiry window and any
// recorded deposits are refunded.
package betting

import (
	"context"
	"errors"
	"time"
)

var (
	ErrBetNotFound           = errors.New("bet not found")
	ErrBetExists             = errors.New("bet already exists")
	ErrInvalidBetType        = errors.New("invalid bet type")
	ErrInvalidAmount         = errors.New("invalid bet amount")
	ErrInvalidBetStatus      = errors.New("invalid bet status for this operation")
	ErrBetFull               = errors.New("bet is full")
	ErrAlreadyJoined         = errors.New("participant already joined")
	ErrAlreadyDeposited      = errors.New("participant already deposited")
	ErrUnauthorizedDepositor = errors.New("depositor is not a participant")
	ErrUnauthorizedArbiter   = errors.New("caller is not the designated arbiter")
	ErrArbiterIsParticipant  = errors.New("arbiter cannot be a participant")
	ErrMinimumTimeNotMet     = errors.New("minimum decision time has not elapsed")
	ErrInvalidWinner         = errors.New("winner must be a registered participant")
	ErrNotWinner             = errors.New("caller is not the winner")
	ErrWinningsClaimed       = errors.New("winnings already claimed")
	ErrArbiterFeePaid        = errors.New("arbiter fee already paid")
	ErrNotExpired            = errors.New("bet has not expired yet")
	ErrGroupBetNotFound      = errors.New("group bet not found")
	ErrInvalidChoice         = errors.New("choice must be one of the bet's participants")
	ErrGroupBetLost          = errors.New("group bet did not pick the winner")
	ErrGroupBetClaimed       = errors.New("group bet already claimed")
	ErrNoWinningSideBets     = errors.New("no group bets picked the winner")
)

// Type discriminates the two bet shapes.
type Type string

const (
	TypeTwoParty   Type = "two_party"
	TypeMultiParty Type = "multi_party"
)

// Status represents the state of a bet.
type Status string

const (
	StatusWaiting   Status = "waiting"   // Created, collecting deposits
	StatusActive    Status = "active"    // All deposits in, awaiting ruling
	StatusCompleted Status = "completed" // Winner declared
	StatusCancelled Status = "cancelled" // Expired before activation
)

// MaxParticipants caps multi-party bets.
const MaxParticipants = 6

// Bet represents one arbitrated wager from creation to terminal state.
//
// Deposits is a parallel slice: Deposits[i] reports whether
// Participants[i] has locked their stake. For two-party bets the
// participants are [creator, counterparty] in that order.
type Bet struct {
	ID              uint64     `json:"id"`
	Type            Type       `json:"type"`
	Creator         string     `json:"creator"`
	Participants    []string   `json:"participants"`
	Deposits        []bool     `json:"deposits"`
	MaxParticipants int        `json:"maxParticipants"`
	Arbiter         string     `json:"arbiter"`
	Amount          int64      `json:"amount"` // stake per participant
	Description     string     `json:"description,omitempty"`
	TotalPool       int64      `json:"totalPool"`
	GroupPool       int64      `json:"groupPool"`
	Status          Status     `json:"status"`
	Winner          string     `json:"winner,omitempty"`
	Payout          int64      `json:"payout,omitempty"`
	PlatformFee     int64      `json:"platformFee,omitempty"`
	ArbiterFee      int64      `json:"arbiterFee,omitempty"`
	WinningsClaimed bool       `json:"winningsClaimed"`
	ArbiterFeePaid  bool       `json:"arbiterFeePaid"`
	GroupFeeTaken   bool       `json:"-"`
	CreatedAt       time.Time  `json:"createdAt"`
	ActivatedAt     *time.Time `json:"activatedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// IsTerminal returns true if the bet is in a final state.
func (b *Bet) IsTerminal() bool {
	return b.Status == StatusCompleted || b.Status == StatusCancelled
}

// ParticipantIndex returns the index of a participant, or -1.
func (b *Bet) ParticipantIndex(addr string) int {
	for i, p := range b.Participants {
		if p == addr {
			return i
		}
	}
	return -1
}

// AllDeposited reports whether every required deposit is present. For
// multi-party bets the bet must also be at capacity, since joining and
// depositing happen in the same call.
func (b *Bet) AllDeposited() bool {
	if b.Type == TypeMultiParty && len(b.Participants) < b.MaxParticipants {
		return false
	}
	for _, d := range b.Deposits {
		if !d {
			return false
		}
	}
	return len(b.Deposits) > 0
}

// GroupBet is an independent side wager on a bet's outcome, placed by a
// third party while the bet is active. Immutable once placed except for
// the claim fields.
type GroupBet struct {
	ID        string    `json:"id"`
	BetID     uint64    `json:"betId"`
	Bettor    string    `json:"bettor"`
	Choice    string    `json:"choice"` // participant the bettor backs
	Amount    int64     `json:"amount"`
	Claimed   bool      `json:"claimed"`
	Payout    int64     `json:"payout,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists bets and group bets.
type Store interface {
	Create(ctx context.Context, bet *Bet) error
	Get(ctx context.Context, id uint64) (*Bet, error)
	Update(ctx context.Context, bet *Bet) error
	List(ctx context.Context, status Status, limit int) ([]*Bet, error)
	ListByParticipant(ctx context.Context, addr string, limit int) ([]*Bet, error)
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*Bet, error)

	CreateGroupBet(ctx context.Context, gb *GroupBet) error
	GetGroupBet(ctx context.Context, id string) (*GroupBet, error)
	UpdateGroupBet(ctx context.Context, gb *GroupBet) error
	ListGroupBets(ctx context.Context, betID uint64, limit int) ([]*GroupBet, error)
	SumGroupBetsByChoice(ctx context.Context, betID uint64, choice string) (int64, error)
}

// LedgerService abstracts fund movements so betting doesn't import ledger.
type LedgerService interface {
	EscrowDeposit(ctx context.Context, addr string, amount int64, reference string) error
	EscrowRelease(ctx context.Context, addr string, amount int64, reference string) error
}

// ArbiterRecorder feeds completed rulings into the arbiter stats
// side-channel. Failures are informational only and never fail the ruling.
type ArbiterRecorder interface {
	RecordDecision(ctx context.Context, arbiter string, volume int64, decisionTime time.Duration) error
}
