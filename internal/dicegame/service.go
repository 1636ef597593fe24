package dicegame

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mbd888/wagervault/internal/feesplit"
	"github.com/mbd888/wagervault/internal/metrics"
	"github.com/mbd888/wagervault/internal/syncutil"
	"github.com/mbd888/wagervault/internal/traces"
	"github.com/mbd888/wagervault/internal/webhooks"
)

// PlatformAccount receives platform fees at claim time.
const PlatformAccount = "platform"

// CreateRequest contains the parameters for creating a game.
type CreateRequest struct {
	GameID     uint64 `json:"gameId" binding:"required"`
	EntryFee   int64  `json:"entryFee" binding:"required"`
	MaxPlayers int    `json:"maxPlayers" binding:"required"`
}

// Service implements dice game business logic.
//
// Every mutator serializes on a per-game lock and re-reads the game from
// the store under that lock, so status checks are never made against a
// stale snapshot.
type Service struct {
	store        Store
	ledger       LedgerService
	events       *webhooks.Emitter
	locks        syncutil.ShardedMutex
	platformBps  int64
	expiryWindow time.Duration
}

// NewService creates a new dice game service.
func NewService(store Store, ledger LedgerService, platformBps int64, expiry time.Duration) *Service {
	return &Service{
		store:        store,
		ledger:       ledger,
		platformBps:  platformBps,
		expiryWindow: expiry,
	}
}

// WithEvents attaches a lifecycle event emitter.
func (s *Service) WithEvents(e *webhooks.Emitter) *Service {
	s.events = e
	return s
}

func escrowRef(id uint64) string {
	return fmt.Sprintf("dice:%d", id)
}

// Create opens a new game and locks the creator's entry fee. The creator
// is the first participant.
func (s *Service) Create(ctx context.Context, creator string, req CreateRequest) (*Game, error) {
	if req.EntryFee <= 0 {
		return nil, ErrInvalidEntryFee
	}
	if req.MaxPlayers < MinPlayers || req.MaxPlayers > MaxPlayers {
		return nil, ErrInvalidCapacity
	}

	creator = strings.ToLower(creator)
	game := &Game{
		ID:         req.GameID,
		Creator:    creator,
		EntryFee:   req.EntryFee,
		MaxPlayers: req.MaxPlayers,
		Players:    []string{creator},
		Rolls:      []*Roll{nil},
		TotalPool:  req.EntryFee,
		Status:     StatusWaiting,
		CreatedAt:  time.Now(),
	}

	if err := s.ledger.EscrowDeposit(ctx, creator, req.EntryFee, escrowRef(game.ID)); err != nil {
		return nil, fmt.Errorf("failed to lock entry fee: %w", err)
	}

	if err := s.store.Create(ctx, game); err != nil {
		// Best-effort refund if store fails
		_ = s.ledger.EscrowRelease(ctx, creator, req.EntryFee, escrowRef(game.ID))
		return nil, err
	}

	metrics.DiceGamesTotal.WithLabelValues("created").Inc()
	metrics.EscrowVolume.WithLabelValues("dice").Add(float64(req.EntryFee))
	s.events.EmitGameCreated(game.ID, creator, req.EntryFee, req.MaxPlayers)

	return game, nil
}

// Join adds a player and locks their entry fee. Reaching capacity starts
// the game in the same call.
func (s *Service) Join(ctx context.Context, id uint64, player string) (*Game, error) {
	unlock := s.locks.Lock(escrowRef(id))
	defer unlock()

	game, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	player = strings.ToLower(player)
	if game.Status != StatusWaiting {
		return nil, ErrGameNotWaiting
	}
	if len(game.Players) >= game.MaxPlayers {
		return nil, ErrGameFull
	}
	if game.PlayerIndex(player) >= 0 {
		return nil, ErrAlreadyJoined
	}

	if err := s.ledger.EscrowDeposit(ctx, player, game.EntryFee, escrowRef(game.ID)); err != nil {
		return nil, fmt.Errorf("failed to lock entry fee: %w", err)
	}

	game.Players = append(game.Players, player)
	game.Rolls = append(game.Rolls, nil)
	game.TotalPool += game.EntryFee

	started := false
	if len(game.Players) == game.MaxPlayers {
		now := time.Now()
		game.Status = StatusPlaying
		game.StartedAt = &now
		started = true
	}

	if err := s.store.Update(ctx, game); err != nil {
		// Compensate: the stake was locked but the join didn't persist
		_ = s.ledger.EscrowRelease(ctx, player, game.EntryFee, escrowRef(game.ID))
		return nil, err
	}

	metrics.EscrowVolume.WithLabelValues("dice").Add(float64(game.EntryFee))
	s.events.EmitGamePlayerJoined(game.ID, player, len(game.Players))
	if started {
		metrics.DiceGamesTotal.WithLabelValues("started").Inc()
		s.events.EmitGameStarted(game.ID, len(game.Players), game.TotalPool)
	}

	return game, nil
}

// Start begins the game before it fills up. Only the creator may start,
// and at least two players must have joined.
func (s *Service) Start(ctx context.Context, id uint64, caller string) (*Game, error) {
	unlock := s.locks.Lock(escrowRef(id))
	defer unlock()

	game, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if strings.ToLower(caller) != game.Creator {
		return nil, ErrNotCreator
	}
	if game.Status != StatusWaiting {
		return nil, ErrGameNotWaiting
	}
	if len(game.Players) < MinPlayers {
		return nil, ErrNotEnoughPlayers
	}

	now := time.Now()
	game.Status = StatusPlaying
	game.StartedAt = &now

	if err := s.store.Update(ctx, game); err != nil {
		return nil, err
	}

	metrics.DiceGamesTotal.WithLabelValues("started").Inc()
	s.events.EmitGameStarted(game.ID, len(game.Players), game.TotalPool)

	return game, nil
}

// Roll records the caller's dice outcome. The last roll settles the game
// as a side effect of the same call.
func (s *Service) Roll(ctx context.Context, id uint64, player string) (*Game, error) {
	unlock := s.locks.Lock(escrowRef(id))
	defer unlock()

	game, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	player = strings.ToLower(player)
	if game.Status != StatusPlaying {
		return nil, ErrGameNotPlaying
	}
	idx := game.PlayerIndex(player)
	if idx < 0 {
		return nil, ErrPlayerNotInGame
	}
	if game.Rolls[idx] != nil {
		return nil, ErrAlreadyRolled
	}

	now := time.Now()
	d1, d2 := rollDice(now.Unix(), player, game.ID)
	game.Rolls[idx] = &Roll{
		Die1:     d1,
		Die2:     d2,
		Total:    d1 + d2,
		RolledAt: now,
	}

	if game.AllRolled() {
		if err := s.settle(ctx, game); err != nil {
			return nil, err
		}
	}

	if err := s.store.Update(ctx, game); err != nil {
		return nil, err
	}

	s.events.EmitGameDiceRolled(game.ID, player, d1, d2)
	if game.Status == StatusCompleted {
		metrics.DiceGamesTotal.WithLabelValues("completed").Inc()
		metrics.SettlementsTotal.WithLabelValues("dice").Inc()
		s.events.EmitGameCompleted(game.ID, game.Winner, game.Prize, game.PlatformFee)
	}

	return game, nil
}

// Finalize settles a playing game once every player has rolled. Rolling
// normally settles automatically; this is the recovery path if the final
// roll's settlement could not persist.
func (s *Service) Finalize(ctx context.Context, id uint64) (*Game, error) {
	unlock := s.locks.Lock(escrowRef(id))
	defer unlock()

	game, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if game.Status != StatusPlaying {
		return nil, ErrGameNotPlaying
	}
	if !game.AllRolled() {
		return nil, ErrRollsIncomplete
	}

	if err := s.settle(ctx, game); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, game); err != nil {
		return nil, err
	}

	metrics.DiceGamesTotal.WithLabelValues("completed").Inc()
	metrics.SettlementsTotal.WithLabelValues("dice").Inc()
	s.events.EmitGameCompleted(game.ID, game.Winner, game.Prize, game.PlatformFee)

	return game, nil
}

// settle decides the winner and records the fee split. No funds move here;
// the winner collects through Claim. Caller holds the game lock and is
// responsible for persisting the mutation.
func (s *Service) settle(ctx context.Context, game *Game) error {
	_, span := traces.StartSpan(ctx, "dicegame.settle",
		traces.GameID(game.ID), traces.Amount(game.TotalPool))
	defer span.End()

	idx := game.WinnerIndex()
	if idx < 0 {
		return ErrRollsIncomplete
	}

	split, err := feesplit.Compute(game.TotalPool, s.platformBps, 0)
	if err != nil {
		return fmt.Errorf("fee split failed: %w", err)
	}
	share, err := feesplit.PerWinnerShare(split.Distributable, 1)
	if err != nil {
		return fmt.Errorf("fee split failed: %w", err)
	}

	now := time.Now()
	game.Winner = game.Players[idx]
	game.Prize = share
	game.PlatformFee = split.PlatformFee
	game.Status = StatusCompleted
	game.CompletedAt = &now

	if game.StartedAt != nil {
		metrics.SettlementDuration.Observe(now.Sub(*game.StartedAt).Seconds())
	}
	return nil
}

// Claim pays out the prize to the winner. One-shot: the prize_claimed
// flag is checked and set in the same serialized section as the transfer.
func (s *Service) Claim(ctx context.Context, id uint64, caller string) (*Game, error) {
	unlock := s.locks.Lock(escrowRef(id))
	defer unlock()

	game, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if game.Status != StatusCompleted {
		return nil, ErrGameNotCompleted
	}
	if strings.ToLower(caller) != game.Winner {
		return nil, ErrNotWinner
	}
	if game.PrizeClaimed {
		return nil, ErrPrizeClaimed
	}

	ctx, span := traces.StartSpan(ctx, "dicegame.claim",
		traces.GameID(game.ID), traces.PlayerAddr(game.Winner), traces.Amount(game.Prize))
	defer span.End()

	if err := s.ledger.EscrowRelease(ctx, game.Winner, game.Prize, escrowRef(game.ID)); err != nil {
		return nil, fmt.Errorf("failed to release prize: %w", err)
	}
	if game.PlatformFee > 0 {
		if err := s.ledger.EscrowRelease(ctx, PlatformAccount, game.PlatformFee, escrowRef(game.ID)); err != nil {
			// Compensate: take the prize back so the claim stays retryable
			_ = s.ledger.EscrowDeposit(ctx, game.Winner, game.Prize, escrowRef(game.ID))
			return nil, fmt.Errorf("failed to collect platform fee: %w", err)
		}
	}

	game.PrizeClaimed = true
	if err := s.store.Update(ctx, game); err != nil {
		// Funds already moved; the flag must persist. Retry once.
		if retryErr := s.store.Update(ctx, game); retryErr != nil {
			return nil, fmt.Errorf("prize paid but claim flag not persisted (requires manual resolution): %w", retryErr)
		}
	}

	metrics.PlatformFeesTotal.Add(float64(game.PlatformFee))
	s.events.EmitGamePrizeClaimed(game.ID, game.Winner, game.Prize)

	return game, nil
}

// EmergencyWithdraw refunds the caller's own stake from a game that
// expired before starting. The game cancels when the last player leaves.
func (s *Service) EmergencyWithdraw(ctx context.Context, id uint64, caller string) (*Game, error) {
	unlock := s.locks.Lock(escrowRef(id))
	defer unlock()

	game, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	caller = strings.ToLower(caller)
	if game.Status != StatusWaiting {
		return nil, ErrGameNotWaiting
	}
	if time.Since(game.CreatedAt) <= s.expiryWindow {
		return nil, ErrNotExpired
	}
	idx := game.PlayerIndex(caller)
	if idx < 0 {
		return nil, ErrPlayerNotInGame
	}

	if err := s.ledger.EscrowRelease(ctx, caller, game.EntryFee, escrowRef(game.ID)); err != nil {
		return nil, fmt.Errorf("failed to refund stake: %w", err)
	}

	game.Players = append(game.Players[:idx], game.Players[idx+1:]...)
	game.Rolls = append(game.Rolls[:idx], game.Rolls[idx+1:]...)
	game.TotalPool -= game.EntryFee

	cancelled := false
	if len(game.Players) == 0 {
		game.Status = StatusCancelled
		cancelled = true
	}

	if err := s.store.Update(ctx, game); err != nil {
		// Compensate: re-lock the refunded stake
		_ = s.ledger.EscrowDeposit(ctx, caller, game.EntryFee, escrowRef(game.ID))
		return nil, err
	}

	s.events.EmitGamePlayerWithdrew(game.ID, caller, game.EntryFee)
	if cancelled {
		metrics.DiceGamesTotal.WithLabelValues("cancelled").Inc()
		s.events.EmitGameCancelled(game.ID, "expired")
	}

	return game, nil
}

// CancelExpired cancels an expired waiting game and refunds every locked
// stake. Used by the background sweeper; players can also unwind
// themselves one at a time through EmergencyWithdraw.
func (s *Service) CancelExpired(ctx context.Context, id uint64) (*Game, error) {
	unlock := s.locks.Lock(escrowRef(id))
	defer unlock()

	game, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if game.Status != StatusWaiting {
		return nil, ErrGameNotWaiting
	}
	if time.Since(game.CreatedAt) <= s.expiryWindow {
		return nil, ErrNotExpired
	}

	// Refund players one at a time so a single failed release doesn't
	// leave earlier refunds unaccounted for.
	refunded := make([]string, 0, len(game.Players))
	for _, p := range game.Players {
		if err := s.ledger.EscrowRelease(ctx, p, game.EntryFee, escrowRef(game.ID)); err != nil {
			for _, r := range refunded {
				_ = s.ledger.EscrowDeposit(ctx, r, game.EntryFee, escrowRef(game.ID))
			}
			return nil, fmt.Errorf("failed to refund %s: %w", p, err)
		}
		refunded = append(refunded, p)
	}

	game.TotalPool = 0
	game.Status = StatusCancelled

	if err := s.store.Update(ctx, game); err != nil {
		for _, r := range refunded {
			_ = s.ledger.EscrowDeposit(ctx, r, game.EntryFee, escrowRef(game.ID))
		}
		return nil, err
	}

	metrics.DiceGamesTotal.WithLabelValues("cancelled").Inc()
	s.events.EmitGameCancelled(game.ID, "expired")

	return game, nil
}

// Get returns a game by id.
func (s *Service) Get(ctx context.Context, id uint64) (*Game, error) {
	return s.store.Get(ctx, id)
}

// List returns games, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status, limit int) ([]*Game, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.List(ctx, status, limit)
}

// ListExpired returns waiting games created before the cutoff.
func (s *Service) ListExpired(ctx context.Context, limit int) ([]*Game, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.ListExpired(ctx, time.Now().Add(-s.expiryWindow), limit)
}
