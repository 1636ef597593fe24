package betting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mbd888/wagervault/internal/feesplit"
	"github.com/mbd888/wagervault/internal/idgen"
	"github.com/mbd888/wagervault/internal/metrics"
	"github.com/mbd888/wagervault/internal/syncutil"
	"github.com/mbd888/wagervault/internal/traces"
	"github.com/mbd888/wagervault/internal/webhooks"
)

// PlatformAccount receives platform fees at claim time.
const PlatformAccount = "platform"

// Config holds the fee schedule and timing rules for bets.
type Config struct {
	PlatformFeeBps int64
	ArbiterFeeBps  int64
	MinDecision    time.Duration // arbiter must wait this long after activation
	ExpiryWindow   time.Duration // waiting bets older than this can be cancelled
}

// CreateRequest contains the parameters for creating a bet.
type CreateRequest struct {
	BetID           uint64 `json:"betId" binding:"required"`
	Type            Type   `json:"type" binding:"required"`
	Counterparty    string `json:"counterparty"`    // two-party only
	MaxParticipants int    `json:"maxParticipants"` // multi-party only
	Arbiter         string `json:"arbiter" binding:"required"`
	Amount          int64  `json:"amount" binding:"required"`
	Description     string `json:"description"`
}

// Service implements arbitrated bet business logic.
//
// Every mutator serializes on a per-bet lock and re-reads the bet from
// the store under that lock, so status checks are never made against a
// stale snapshot.
type Service struct {
	store    Store
	ledger   LedgerService
	arbiters ArbiterRecorder
	events   *webhooks.Emitter
	locks    syncutil.ShardedMutex
	cfg      Config
}

// NewService creates a new betting service.
func NewService(store Store, ledger LedgerService, cfg Config) *Service {
	return &Service{
		store:  store,
		ledger: ledger,
		cfg:    cfg,
	}
}

// WithEvents attaches a lifecycle event emitter.
func (s *Service) WithEvents(e *webhooks.Emitter) *Service {
	s.events = e
	return s
}

// WithArbiterRecorder attaches the arbiter stats side-channel.
func (s *Service) WithArbiterRecorder(r ArbiterRecorder) *Service {
	s.arbiters = r
	return s
}

// escrowRef is the escrow account for participant stakes.
func escrowRef(id uint64) string {
	return fmt.Sprintf("bet:%d", id)
}

// groupEscrowRef is the escrow account for the side-bet pool. Kept apart
// from the stake pool so primary settlement never touches side-bet funds.
func groupEscrowRef(id uint64) string {
	return fmt.Sprintf("betgroup:%d", id)
}

// Create opens a new bet. No funds move at creation; parties lock their
// stakes through Deposit (or Join for multi-party bets).
func (s *Service) Create(ctx context.Context, creator string, req CreateRequest) (*Bet, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	creator = strings.ToLower(creator)
	arbiter := strings.ToLower(req.Arbiter)

	bet := &Bet{
		ID:          req.BetID,
		Type:        req.Type,
		Creator:     creator,
		Arbiter:     arbiter,
		Amount:      req.Amount,
		Description: req.Description,
		Status:      StatusWaiting,
		CreatedAt:   time.Now(),
	}

	switch req.Type {
	case TypeTwoParty:
		counterparty := strings.ToLower(req.Counterparty)
		if counterparty == "" || counterparty == creator {
			return nil, ErrInvalidBetType
		}
		bet.Participants = []string{creator, counterparty}
		bet.Deposits = []bool{false, false}
		bet.MaxParticipants = 2
	case TypeMultiParty:
		if req.MaxParticipants < 2 || req.MaxParticipants > MaxParticipants {
			return nil, ErrInvalidBetType
		}
		bet.Participants = []string{}
		bet.Deposits = []bool{}
		bet.MaxParticipants = req.MaxParticipants
	default:
		return nil, ErrInvalidBetType
	}

	if bet.ParticipantIndex(arbiter) >= 0 || arbiter == creator {
		return nil, ErrArbiterIsParticipant
	}

	if err := s.store.Create(ctx, bet); err != nil {
		return nil, err
	}

	metrics.BetsTotal.WithLabelValues("created").Inc()
	s.events.EmitBetCreated(bet.ID, creator, arbiter, req.Amount)

	return bet, nil
}

// Deposit locks a two-party participant's stake. The second deposit
// activates the bet in the same call.
func (s *Service) Deposit(ctx context.Context, id uint64, caller string) (*Bet, error) {
	unlock := s.locks.Lock(escrowRef(id))
	defer unlock()

	bet, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	caller = strings.ToLower(caller)
	if bet.Status != StatusWaiting {
		return nil, ErrInvalidBetStatus
	}
	if bet.Type != TypeTwoParty {
		return nil, ErrInvalidBetType
	}
	idx := bet.ParticipantIndex(caller)
	if idx < 0 {
		return nil, ErrUnauthorizedDepositor
	}
	if bet.Deposits[idx] {
		return nil, ErrAlreadyDeposited
	}

	if err := s.ledger.EscrowDeposit(ctx, caller, bet.Amount, escrowRef(bet.ID)); err != nil {
		return nil, fmt.Errorf("failed to lock stake: %w", err)
	}

	bet.Deposits[idx] = true
	bet.TotalPool += bet.Amount

	activated := false
	if bet.AllDeposited() {
		now := time.Now()
		bet.Status = StatusActive
		bet.ActivatedAt = &now
		activated = true
	}

	if err := s.store.Update(ctx, bet); err != nil {
		// Compensate: the stake was locked but the deposit didn't persist
		_ = s.ledger.EscrowRelease(ctx, caller, bet.Amount, escrowRef(bet.ID))
		return nil, err
	}

	metrics.EscrowVolume.WithLabelValues(string(bet.Type)).Add(float64(bet.Amount))
	s.events.EmitBetDeposited(bet.ID, caller, bet.Amount)
	if activated {
		metrics.BetsTotal.WithLabelValues("activated").Inc()
		s.events.EmitBetActivated(bet.ID, bet.TotalPool)
	}

	return bet, nil
}

// Join adds a participant to a multi-party bet and locks their stake in
// the same call. Reaching capacity activates the bet.
func (s *Service) Join(ctx context.Context, id uint64, caller string) (*Bet, error) {
	unlock := s.locks.Lock(escrowRef(id))
	defer unlock()

	bet, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	caller = strings.ToLower(caller)
	if bet.Status != StatusWaiting {
		return nil, ErrInvalidBetStatus
	}
	if bet.Type != TypeMultiParty {
		return nil, ErrInvalidBetType
	}
	if len(bet.Participants) >= bet.MaxParticipants {
		return nil, ErrBetFull
	}
	if bet.ParticipantIndex(caller) >= 0 {
		return nil, ErrAlreadyJoined
	}
	if caller == bet.Arbiter {
		return nil, ErrArbiterIsParticipant
	}

	if err := s.ledger.EscrowDeposit(ctx, caller, bet.Amount, escrowRef(bet.ID)); err != nil {
		return nil, fmt.Errorf("failed to lock stake: %w", err)
	}

	bet.Participants = append(bet.Participants, caller)
	bet.Deposits = append(bet.Deposits, true)
	bet.TotalPool += bet.Amount

	activated := false
	if bet.AllDeposited() {
		now := time.Now()
		bet.Status = StatusActive
		bet.ActivatedAt = &now
		activated = true
	}

	if err := s.store.Update(ctx, bet); err != nil {
		_ = s.ledger.EscrowRelease(ctx, caller, bet.Amount, escrowRef(bet.ID))
		return nil, err
	}

	metrics.EscrowVolume.WithLabelValues(string(bet.Type)).Add(float64(bet.Amount))
	s.events.EmitBetJoined(bet.ID, caller)
	s.events.EmitBetDeposited(bet.ID, caller, bet.Amount)
	if activated {
		metrics.BetsTotal.WithLabelValues("activated").Inc()
		s.events.EmitBetActivated(bet.ID, bet.TotalPool)
	}

	return bet, nil
}

// DeclareWinner records the arbiter's ruling and computes the fee split.
// No funds move here; the winner collects through WithdrawWinnings and
// the arbiter through PayArbiterFee.
func (s *Service) DeclareWinner(ctx context.Context, id uint64, caller, winner string) (*Bet, error) {
	unlock := s.locks.Lock(escrowRef(id))
	defer unlock()

	bet, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	caller = strings.ToLower(caller)
	winner = strings.ToLower(winner)

	if caller != bet.Arbiter {
		return nil, ErrUnauthorizedArbiter
	}
	if bet.Status != StatusActive {
		return nil, ErrInvalidBetStatus
	}
	if bet.ActivatedAt == nil || time.Since(*bet.ActivatedAt) < s.cfg.MinDecision {
		return nil, ErrMinimumTimeNotMet
	}
	if bet.ParticipantIndex(winner) < 0 {
		return nil, ErrInvalidWinner
	}

	_, span := traces.StartSpan(ctx, "betting.declare_winner",
		traces.BetID(bet.ID), traces.PlayerAddr(winner), traces.Amount(bet.TotalPool))
	defer span.End()

	split, err := feesplit.Compute(bet.TotalPool, s.cfg.PlatformFeeBps, s.cfg.ArbiterFeeBps)
	if err != nil {
		return nil, fmt.Errorf("fee split failed: %w", err)
	}
	payout, err := feesplit.PerWinnerShare(split.Distributable, 1)
	if err != nil {
		return nil, fmt.Errorf("fee split failed: %w", err)
	}

	now := time.Now()
	bet.Winner = winner
	bet.Payout = payout
	bet.PlatformFee = split.PlatformFee
	bet.ArbiterFee = split.ArbiterFee
	bet.Status = StatusCompleted
	bet.CompletedAt = &now

	if err := s.store.Update(ctx, bet); err != nil {
		return nil, err
	}

	decisionTime := now.Sub(*bet.ActivatedAt)
	metrics.BetsTotal.WithLabelValues("decided").Inc()
	metrics.SettlementsTotal.WithLabelValues(string(bet.Type)).Inc()
	metrics.SettlementDuration.Observe(decisionTime.Seconds())

	if s.arbiters != nil {
		_ = s.arbiters.RecordDecision(ctx, bet.Arbiter, bet.TotalPool, decisionTime)
	}
	s.events.EmitBetWinnerDeclared(bet.ID, bet.Arbiter, winner)

	return bet, nil
}

// WithdrawWinnings pays out the pool minus fees to the declared winner.
// One-shot: the winnings_claimed flag is checked and set in the same
// serialized section as the transfer.
func (s *Service) WithdrawWinnings(ctx context.Context, id uint64, caller string) (*Bet, error) {
	unlock := s.locks.Lock(escrowRef(id))
	defer unlock()

	bet, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if bet.Status != StatusCompleted {
		return nil, ErrInvalidBetStatus
	}
	if strings.ToLower(caller) != bet.Winner {
		return nil, ErrNotWinner
	}
	if bet.WinningsClaimed {
		return nil, ErrWinningsClaimed
	}

	ctx, span := traces.StartSpan(ctx, "betting.withdraw_winnings",
		traces.BetID(bet.ID), traces.PlayerAddr(bet.Winner), traces.Amount(bet.Payout))
	defer span.End()

	if err := s.ledger.EscrowRelease(ctx, bet.Winner, bet.Payout, escrowRef(bet.ID)); err != nil {
		return nil, fmt.Errorf("failed to release winnings: %w", err)
	}
	if bet.PlatformFee > 0 {
		if err := s.ledger.EscrowRelease(ctx, PlatformAccount, bet.PlatformFee, escrowRef(bet.ID)); err != nil {
			// Compensate: take the payout back so the claim stays retryable
			_ = s.ledger.EscrowDeposit(ctx, bet.Winner, bet.Payout, escrowRef(bet.ID))
			return nil, fmt.Errorf("failed to collect platform fee: %w", err)
		}
	}

	bet.WinningsClaimed = true
	if err := s.store.Update(ctx, bet); err != nil {
		// Funds already moved; the flag must persist. Retry once.
		if retryErr := s.store.Update(ctx, bet); retryErr != nil {
			return nil, fmt.Errorf("winnings paid but claim flag not persisted (requires manual resolution): %w", retryErr)
		}
	}

	metrics.PlatformFeesTotal.Add(float64(bet.PlatformFee))
	s.events.EmitBetWinningsClaimed(bet.ID, bet.Winner, bet.Payout)

	return bet, nil
}

// PayArbiterFee transfers the arbiter's fee out of escrow. One-shot via
// the arbiter_fee_paid flag.
func (s *Service) PayArbiterFee(ctx context.Context, id uint64, caller string) (*Bet, error) {
	unlock := s.locks.Lock(escrowRef(id))
	defer unlock()

	bet, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if strings.ToLower(caller) != bet.Arbiter {
		return nil, ErrUnauthorizedArbiter
	}
	if bet.Status != StatusCompleted {
		return nil, ErrInvalidBetStatus
	}
	if bet.ArbiterFeePaid {
		return nil, ErrArbiterFeePaid
	}

	if bet.ArbiterFee > 0 {
		if err := s.ledger.EscrowRelease(ctx, bet.Arbiter, bet.ArbiterFee, escrowRef(bet.ID)); err != nil {
			return nil, fmt.Errorf("failed to release arbiter fee: %w", err)
		}
	}

	bet.ArbiterFeePaid = true
	if err := s.store.Update(ctx, bet); err != nil {
		if retryErr := s.store.Update(ctx, bet); retryErr != nil {
			return nil, fmt.Errorf("arbiter fee paid but flag not persisted (requires manual resolution): %w", retryErr)
		}
	}

	s.events.EmitBetArbiterFeePaid(bet.ID, bet.Arbiter, bet.ArbiterFee)

	return bet, nil
}

// CancelExpired cancels a waiting bet past its expiry window and refunds
// every recorded deposit.
func (s *Service) CancelExpired(ctx context.Context, id uint64) (*Bet, error) {
	unlock := s.locks.Lock(escrowRef(id))
	defer unlock()

	bet, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if bet.Status != StatusWaiting {
		return nil, ErrInvalidBetStatus
	}
	if time.Since(bet.CreatedAt) <= s.cfg.ExpiryWindow {
		return nil, ErrNotExpired
	}

	// Refund recorded deposits one at a time, unwinding on failure.
	refunded := make([]string, 0, len(bet.Participants))
	for i, p := range bet.Participants {
		if !bet.Deposits[i] {
			continue
		}
		if err := s.ledger.EscrowRelease(ctx, p, bet.Amount, escrowRef(bet.ID)); err != nil {
			for _, r := range refunded {
				_ = s.ledger.EscrowDeposit(ctx, r, bet.Amount, escrowRef(bet.ID))
			}
			return nil, fmt.Errorf("failed to refund %s: %w", p, err)
		}
		refunded = append(refunded, p)
		bet.Deposits[i] = false
	}

	bet.TotalPool = 0
	bet.Status = StatusCancelled

	if err := s.store.Update(ctx, bet); err != nil {
		for _, r := range refunded {
			_ = s.ledger.EscrowDeposit(ctx, r, bet.Amount, escrowRef(bet.ID))
		}
		return nil, err
	}

	metrics.BetsTotal.WithLabelValues("cancelled").Inc()
	s.events.EmitBetCancelled(bet.ID, "expired")

	return bet, nil
}

// PlaceGroupBet locks a third-party side wager on one of the bet's
// participants. Valid only while the parent bet is active.
func (s *Service) PlaceGroupBet(ctx context.Context, betID uint64, bettor, choice string, amount int64) (*GroupBet, error) {
	unlock := s.locks.Lock(escrowRef(betID))
	defer unlock()

	bet, err := s.store.Get(ctx, betID)
	if err != nil {
		return nil, err
	}

	bettor = strings.ToLower(bettor)
	choice = strings.ToLower(choice)

	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if bet.Status != StatusActive {
		return nil, ErrInvalidBetStatus
	}
	if bet.ParticipantIndex(choice) < 0 {
		return nil, ErrInvalidChoice
	}

	if err := s.ledger.EscrowDeposit(ctx, bettor, amount, groupEscrowRef(bet.ID)); err != nil {
		return nil, fmt.Errorf("failed to lock side bet: %w", err)
	}

	gb := &GroupBet{
		ID:        idgen.WithPrefix("gb_"),
		BetID:     bet.ID,
		Bettor:    bettor,
		Choice:    choice,
		Amount:    amount,
		CreatedAt: time.Now(),
	}

	if err := s.store.CreateGroupBet(ctx, gb); err != nil {
		_ = s.ledger.EscrowRelease(ctx, bettor, amount, groupEscrowRef(bet.ID))
		return nil, err
	}

	bet.GroupPool += amount
	if err := s.store.Update(ctx, bet); err != nil {
		// The entry exists but the pool counter is stale; unwind both.
		_ = s.ledger.EscrowRelease(ctx, bettor, amount, groupEscrowRef(bet.ID))
		gb.Claimed = true
		_ = s.store.UpdateGroupBet(ctx, gb)
		return nil, err
	}

	metrics.EscrowVolume.WithLabelValues("group").Add(float64(amount))
	s.events.EmitBetGroupPlaced(bet.ID, bettor, choice, amount)

	return gb, nil
}

// ClaimGroupBet pays out a winning side bet. The group pool is split
// parimutuel style: after the platform fee, each winning bettor receives
// floor(amount * pool / winning_side_total). Division remainders stay in
// escrow.
func (s *Service) ClaimGroupBet(ctx context.Context, groupBetID, caller string) (*GroupBet, error) {
	gb, err := s.store.GetGroupBet(ctx, groupBetID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(escrowRef(gb.BetID))
	defer unlock()

	// Re-read both records under the lock.
	gb, err = s.store.GetGroupBet(ctx, groupBetID)
	if err != nil {
		return nil, err
	}
	bet, err := s.store.Get(ctx, gb.BetID)
	if err != nil {
		return nil, err
	}

	if strings.ToLower(caller) != gb.Bettor {
		return nil, ErrNotWinner
	}
	if bet.Status != StatusCompleted {
		return nil, ErrInvalidBetStatus
	}
	if gb.Claimed {
		return nil, ErrGroupBetClaimed
	}
	if gb.Choice != bet.Winner {
		return nil, ErrGroupBetLost
	}

	winningTotal, err := s.store.SumGroupBetsByChoice(ctx, bet.ID, bet.Winner)
	if err != nil {
		return nil, err
	}
	if winningTotal <= 0 {
		return nil, ErrNoWinningSideBets
	}

	split, err := feesplit.Compute(bet.GroupPool, s.cfg.PlatformFeeBps, 0)
	if err != nil {
		return nil, fmt.Errorf("fee split failed: %w", err)
	}

	// The platform's cut of the group pool moves once, with the first claim.
	if !bet.GroupFeeTaken && split.PlatformFee > 0 {
		if err := s.ledger.EscrowRelease(ctx, PlatformAccount, split.PlatformFee, groupEscrowRef(bet.ID)); err != nil {
			return nil, fmt.Errorf("failed to collect group pool fee: %w", err)
		}
		bet.GroupFeeTaken = true
		if err := s.store.Update(ctx, bet); err != nil {
			_ = s.ledger.EscrowDeposit(ctx, PlatformAccount, split.PlatformFee, groupEscrowRef(bet.ID))
			return nil, err
		}
		metrics.PlatformFeesTotal.Add(float64(split.PlatformFee))
	}

	payout, err := feesplit.ProRataShare(gb.Amount, split.Distributable, winningTotal)
	if err != nil {
		return nil, fmt.Errorf("side bet share failed: %w", err)
	}
	if err := s.ledger.EscrowRelease(ctx, gb.Bettor, payout, groupEscrowRef(bet.ID)); err != nil {
		return nil, fmt.Errorf("failed to release side bet payout: %w", err)
	}

	gb.Claimed = true
	gb.Payout = payout
	if err := s.store.UpdateGroupBet(ctx, gb); err != nil {
		if retryErr := s.store.UpdateGroupBet(ctx, gb); retryErr != nil {
			return nil, fmt.Errorf("side bet paid but claim flag not persisted (requires manual resolution): %w", retryErr)
		}
	}

	s.events.EmitBetGroupClaimed(bet.ID, gb.Bettor, payout)

	return gb, nil
}

// Get returns a bet by id.
func (s *Service) Get(ctx context.Context, id uint64) (*Bet, error) {
	return s.store.Get(ctx, id)
}

// List returns bets, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status, limit int) ([]*Bet, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.List(ctx, status, limit)
}

// ListByParticipant returns bets an address takes part in.
func (s *Service) ListByParticipant(ctx context.Context, addr string, limit int) ([]*Bet, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByParticipant(ctx, strings.ToLower(addr), limit)
}

// ListGroupBets returns the side bets on a bet.
func (s *Service) ListGroupBets(ctx context.Context, betID uint64, limit int) ([]*GroupBet, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.ListGroupBets(ctx, betID, limit)
}

// ListExpired returns waiting bets created before the cutoff.
func (s *Service) ListExpired(ctx context.Context, limit int) ([]*Bet, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.ListExpired(ctx, time.Now().Add(-s.cfg.ExpiryWindow), limit)
}
