package webhooks

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbd888/wagervault/internal/idgen"
)

var (
	eventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wagervault",
			Name:      "webhook_events_emitted_total",
			Help:      "Total webhook events emitted by type",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(eventsEmitted)
}

// Broadcaster mirrors emitted events to connected realtime clients.
// The websocket hub implements this.
type Broadcaster interface {
	BroadcastEvent(eventType string, data map[string]interface{})
}

// Emitter provides typed helpers for emitting wager lifecycle events.
// A nil Emitter is valid and does nothing, so services can take an
// optional emitter without nil checks at every call site.
type Emitter struct {
	dispatcher  *Dispatcher
	broadcaster Broadcaster
}

// NewEmitter creates an emitter backed by a dispatcher. The broadcaster
// may be nil.
func NewEmitter(d *Dispatcher, b Broadcaster) *Emitter {
	return &Emitter{dispatcher: d, broadcaster: b}
}

func (e *Emitter) emit(eventType EventType, data map[string]interface{}) {
	if e == nil {
		return
	}
	eventsEmitted.WithLabelValues(string(eventType)).Inc()

	if e.broadcaster != nil {
		e.broadcaster.BroadcastEvent(string(eventType), data)
	}
	if e.dispatcher == nil {
		return
	}

	event := &Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	// Fire and forget with a bounded deadline; a slow webhook endpoint
	// must not stall settlement. Dispatch delivers synchronously, so the
	// context stays alive for the full delivery including retries.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = e.dispatcher.Dispatch(ctx, event)
	}()
}

func (e *Emitter) EmitGameCreated(gameID uint64, creator string, entryFee int64, maxPlayers int) {
	e.emit(EventGameCreated, map[string]interface{}{
		"gameId":     gameID,
		"creator":    creator,
		"entryFee":   entryFee,
		"maxPlayers": maxPlayers,
	})
}

func (e *Emitter) EmitGamePlayerJoined(gameID uint64, player string, playerCount int) {
	e.emit(EventGamePlayerJoined, map[string]interface{}{
		"gameId":      gameID,
		"player":      player,
		"playerCount": playerCount,
	})
}

func (e *Emitter) EmitGameStarted(gameID uint64, playerCount int, pool int64) {
	e.emit(EventGameStarted, map[string]interface{}{
		"gameId":      gameID,
		"playerCount": playerCount,
		"pool":        pool,
	})
}

func (e *Emitter) EmitGameDiceRolled(gameID uint64, player string, die1, die2 uint8) {
	e.emit(EventGameDiceRolled, map[string]interface{}{
		"gameId": gameID,
		"player": player,
		"die1":   die1,
		"die2":   die2,
		"total":  die1 + die2,
	})
}

func (e *Emitter) EmitGameCompleted(gameID uint64, winner string, prize, platformFee int64) {
	e.emit(EventGameCompleted, map[string]interface{}{
		"gameId":      gameID,
		"winner":      winner,
		"prize":       prize,
		"platformFee": platformFee,
	})
}

func (e *Emitter) EmitGamePrizeClaimed(gameID uint64, winner string, prize int64) {
	e.emit(EventGamePrizeClaimed, map[string]interface{}{
		"gameId": gameID,
		"winner": winner,
		"prize":  prize,
	})
}

func (e *Emitter) EmitGamePlayerWithdrew(gameID uint64, player string, refund int64) {
	e.emit(EventGamePlayerWithdrew, map[string]interface{}{
		"gameId": gameID,
		"player": player,
		"refund": refund,
	})
}

func (e *Emitter) EmitGameCancelled(gameID uint64, reason string) {
	e.emit(EventGameCancelled, map[string]interface{}{
		"gameId": gameID,
		"reason": reason,
	})
}

func (e *Emitter) EmitBetCreated(betID uint64, creator, arbiter string, amount int64) {
	e.emit(EventBetCreated, map[string]interface{}{
		"betId":   betID,
		"creator": creator,
		"arbiter": arbiter,
		"amount":  amount,
	})
}

func (e *Emitter) EmitBetJoined(betID uint64, participant string) {
	e.emit(EventBetJoined, map[string]interface{}{
		"betId":       betID,
		"participant": participant,
	})
}

func (e *Emitter) EmitBetDeposited(betID uint64, participant string, amount int64) {
	e.emit(EventBetDeposited, map[string]interface{}{
		"betId":       betID,
		"participant": participant,
		"amount":      amount,
	})
}

func (e *Emitter) EmitBetActivated(betID uint64, pool int64) {
	e.emit(EventBetActivated, map[string]interface{}{
		"betId": betID,
		"pool":  pool,
	})
}

func (e *Emitter) EmitBetWinnerDeclared(betID uint64, arbiter, winner string) {
	e.emit(EventBetWinnerDeclared, map[string]interface{}{
		"betId":   betID,
		"arbiter": arbiter,
		"winner":  winner,
	})
}

func (e *Emitter) EmitBetWinningsClaimed(betID uint64, winner string, payout int64) {
	e.emit(EventBetWinningsClaimed, map[string]interface{}{
		"betId":  betID,
		"winner": winner,
		"payout": payout,
	})
}

func (e *Emitter) EmitBetArbiterFeePaid(betID uint64, arbiter string, fee int64) {
	e.emit(EventBetArbiterFeePaid, map[string]interface{}{
		"betId":   betID,
		"arbiter": arbiter,
		"fee":     fee,
	})
}

func (e *Emitter) EmitBetGroupPlaced(betID uint64, bettor, side string, amount int64) {
	e.emit(EventBetGroupPlaced, map[string]interface{}{
		"betId":  betID,
		"bettor": bettor,
		"side":   side,
		"amount": amount,
	})
}

func (e *Emitter) EmitBetGroupClaimed(betID uint64, bettor string, payout int64) {
	e.emit(EventBetGroupClaimed, map[string]interface{}{
		"betId":  betID,
		"bettor": bettor,
		"payout": payout,
	})
}

func (e *Emitter) EmitBetCancelled(betID uint64, reason string) {
	e.emit(EventBetCancelled, map[string]interface{}{
		"betId":  betID,
		"reason": reason,
	})
}
