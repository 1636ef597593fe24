// Package dicegame implements the pooled-stake dice competition.
//
// Flow:
//  1. Creator opens a game with a fixed entry fee, their stake is locked
//  2. Players join (2-6), each locking the same entry fee into escrow
//  3. Game starts when full, or when the creator starts it with 2+ players
//  4. Each player rolls two dice; when everyone has rolled the game settles
//  5. Highest two-die total wins the pool minus the platform fee; ties go
//     to whoever joined first
//  6. The winner claims the prize in a separate, one-shot call
//
// Games that never start can be unwound: after the expiry window each
// player may withdraw their own stake, and the game cancels when the last
// one leaves.
package dicegame

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"time"
)

var (
	ErrGameNotFound     = errors.New("game not found")
	ErrGameExists       = errors.New("game already exists")
	ErrGameFull         = errors.New("game is full")
	ErrAlreadyJoined    = errors.New("player already joined")
	ErrGameNotWaiting   = errors.New("game is not waiting for players")
	ErrGameNotPlaying   = errors.New("game is not in progress")
	ErrGameNotCompleted = errors.New("game is not completed")
	ErrPlayerNotInGame  = errors.New("player is not in this game")
	ErrAlreadyRolled    = errors.New("player already rolled")
	ErrRollsIncomplete  = errors.New("not all players have rolled")
	ErrNotCreator       = errors.New("only the creator can do this")
	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrNotWinner        = errors.New("caller is not the winner")
	ErrPrizeClaimed     = errors.New("prize already claimed")
	ErrNotExpired       = errors.New("game has not expired yet")
	ErrInvalidEntryFee  = errors.New("invalid entry fee")
	ErrInvalidCapacity  = errors.New("max players must be between 2 and 6")
)

// Status represents the state of a game.
type Status string

const (
	StatusWaiting   Status = "waiting"   // Accepting players
	StatusPlaying   Status = "playing"   // Started, players rolling
	StatusCompleted Status = "completed" // Winner decided
	StatusCancelled Status = "cancelled" // Expired before starting
)

// Capacity bounds for a game's player list.
const (
	MinPlayers = 2
	MaxPlayers = 6
)

// Roll is one player's recorded dice outcome.
type Roll struct {
	Die1     uint8     `json:"die1"`
	Die2     uint8     `json:"die2"`
	Total    uint8     `json:"total"`
	RolledAt time.Time `json:"rolledAt"`
}

// Game represents one dice competition from creation to terminal state.
//
// Rolls is a parallel slice: Rolls[i] belongs to Players[i] and is nil
// until that player rolls.
type Game struct {
	ID           uint64     `json:"id"`
	Creator      string     `json:"creator"`
	EntryFee     int64      `json:"entryFee"`
	MaxPlayers   int        `json:"maxPlayers"`
	Players      []string   `json:"players"`
	Rolls        []*Roll    `json:"rolls"`
	TotalPool    int64      `json:"totalPool"`
	Status       Status     `json:"status"`
	Winner       string     `json:"winner,omitempty"`
	Prize        int64      `json:"prize,omitempty"`
	PlatformFee  int64      `json:"platformFee,omitempty"`
	PrizeClaimed bool       `json:"prizeClaimed"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// IsTerminal returns true if the game is in a final state.
func (g *Game) IsTerminal() bool {
	return g.Status == StatusCompleted || g.Status == StatusCancelled
}

// PlayerIndex returns the join-order index of a player, or -1.
func (g *Game) PlayerIndex(addr string) int {
	for i, p := range g.Players {
		if p == addr {
			return i
		}
	}
	return -1
}

// AllRolled reports whether every current player has a recorded roll.
func (g *Game) AllRolled() bool {
	if len(g.Players) == 0 {
		return false
	}
	for i := range g.Players {
		if g.Rolls[i] == nil {
			return false
		}
	}
	return true
}

// WinnerIndex scans recorded rolls and returns the index of the winner:
// the first player to reach the maximum total. A later player with an
// equal total does not displace an earlier one.
func (g *Game) WinnerIndex() int {
	winner := -1
	var best uint8
	for i := range g.Players {
		r := g.Rolls[i]
		if r == nil {
			continue
		}
		if winner == -1 || r.Total > best {
			winner = i
			best = r.Total
		}
	}
	return winner
}

// Store persists games.
type Store interface {
	Create(ctx context.Context, game *Game) error
	Get(ctx context.Context, id uint64) (*Game, error)
	Update(ctx context.Context, game *Game) error
	List(ctx context.Context, status Status, limit int) ([]*Game, error)
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*Game, error)
}

// LedgerService abstracts fund movements so dicegame doesn't import ledger.
type LedgerService interface {
	EscrowDeposit(ctx context.Context, addr string, amount int64, reference string) error
	EscrowRelease(ctx context.Context, addr string, amount int64, reference string) error
}

// rollDice derives a two-die outcome from a hash of the roll instant, the
// player identity, and the game id. Anyone who can guess the timestamp can
// precompute the result, so this is only suitable for friendly stakes;
// adversarial deployments should inject a committed random value instead.
func rollDice(now int64, player string, gameID uint64) (die1, die2 uint8) {
	h := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(now))
	h.Write(buf[:])
	h.Write([]byte(player))
	binary.LittleEndian.PutUint64(buf[:], gameID)
	h.Write(buf[:])
	sum := h.Sum(nil)
	return sum[0]%6 + 1, sum[1]%6 + 1
}
