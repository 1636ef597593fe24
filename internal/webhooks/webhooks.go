// Package webhooks provides event notifications to external services.
//
// Indexers and UIs can register webhook URLs to receive notifications about
// wager lifecycle transitions: creation, joins, deposits, rolls, rulings,
// settlements, claims, and cancellations.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mbd888/wagervault/internal/retry"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

// EventType represents the type of webhook event.
type EventType string

const (
	EventGameCreated        EventType = "game.created"
	EventGamePlayerJoined   EventType = "game.player_joined"
	EventGameStarted        EventType = "game.started"
	EventGameDiceRolled     EventType = "game.dice_rolled"
	EventGameCompleted      EventType = "game.completed"
	EventGamePrizeClaimed   EventType = "game.prize_claimed"
	EventGamePlayerWithdrew EventType = "game.player_withdrew"
	EventGameCancelled      EventType = "game.cancelled"

	EventBetCreated         EventType = "bet.created"
	EventBetJoined          EventType = "bet.joined"
	EventBetDeposited       EventType = "bet.deposited"
	EventBetActivated       EventType = "bet.activated"
	EventBetWinnerDeclared  EventType = "bet.winner_declared"
	EventBetWinningsClaimed EventType = "bet.winnings_claimed"
	EventBetArbiterFeePaid  EventType = "bet.arbiter_fee_paid"
	EventBetGroupPlaced     EventType = "bet.group_placed"
	EventBetGroupClaimed    EventType = "bet.group_claimed"
	EventBetCancelled       EventType = "bet.cancelled"
)

// Event represents a webhook event.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscription represents a webhook subscription.
type Subscription struct {
	ID          string      `json:"id"`
	OwnerAddr   string      `json:"ownerAddr"`
	URL         string      `json:"url"`
	Secret      string      `json:"-"` // used for HMAC signing
	Events      []EventType `json:"events"`
	Active      bool        `json:"active"`
	CreatedAt   time.Time   `json:"createdAt"`
	LastSuccess *time.Time  `json:"lastSuccess,omitempty"`
	LastError   string      `json:"lastError,omitempty"`
}

// Store persists webhook subscriptions.
type Store interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	GetByOwner(ctx context.Context, ownerAddr string) ([]*Subscription, error)
	GetByEvent(ctx context.Context, eventType EventType) ([]*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id string) error
}

// Dispatcher sends webhook events.
type Dispatcher struct {
	store  Store
	client *http.Client
}

// NewDispatcher creates a new webhook dispatcher.
func NewDispatcher(store Store) *Dispatcher {
	return &Dispatcher{
		store: store,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Dispatch sends an event to all active subscribers of its type.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	subs, err := d.store.GetByEvent(ctx, event.Type)
	if err != nil {
		return fmt.Errorf("failed to get subscribers: %w", err)
	}

	// Delivery is synchronous: callers that must not block (the emitter)
	// already dispatch from their own goroutine, and spawning here would
	// detach delivery from the context that bounds it.
	for _, sub := range subs {
		if !sub.Active {
			continue
		}
		d.send(ctx, sub, event)
	}

	return nil
}

func (d *Dispatcher) send(ctx context.Context, sub *Subscription, event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		d.updateError(ctx, sub, "failed to marshal event")
		return
	}

	// Retry transient delivery failures; 4xx responses are not retried.
	err = retry.Do(ctx, 3, 500*time.Millisecond, func() error {
		return d.deliver(ctx, sub, event, payload)
	})
	if err != nil {
		d.updateError(ctx, sub, err.Error())
		return
	}
	d.updateSuccess(ctx, sub)
}

func (d *Dispatcher) deliver(ctx context.Context, sub *Subscription, event *Event, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", sub.URL, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Wagervault-Event", string(event.Type))
	req.Header.Set("X-Wagervault-Timestamp", fmt.Sprintf("%d", event.Timestamp.Unix()))

	if sub.Secret != "" {
		req.Header.Set("X-Wagervault-Signature", d.sign(payload, sub.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return retry.Permanent(fmt.Errorf("status %d", resp.StatusCode))
	default:
		return fmt.Errorf("status %d", resp.StatusCode)
	}
}

func (d *Dispatcher) sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func (d *Dispatcher) updateSuccess(ctx context.Context, sub *Subscription) {
	now := time.Now()
	sub.LastSuccess = &now
	sub.LastError = ""
	_ = d.store.Update(ctx, sub)
}

func (d *Dispatcher) updateError(ctx context.Context, sub *Subscription, errMsg string) {
	sub.LastError = errMsg
	_ = d.store.Update(ctx, sub)
}

// MemoryStore is an in-memory subscription store for demo/development mode.
type MemoryStore struct {
	subs map[string]*Subscription
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]*Subscription)}
}

func (m *MemoryStore) Create(ctx context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = sub
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *MemoryStore) GetByOwner(ctx context.Context, ownerAddr string) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	addr := strings.ToLower(ownerAddr)
	var result []*Subscription
	for _, sub := range m.subs {
		if sub.OwnerAddr == addr {
			cp := *sub
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MemoryStore) GetByEvent(ctx context.Context, eventType EventType) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Subscription
	for _, sub := range m.subs {
		for _, et := range sub.Events {
			if et == eventType {
				cp := *sub
				result = append(result, &cp)
				break
			}
		}
	}
	return result, nil
}

func (m *MemoryStore) Update(ctx context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	m.subs[sub.ID] = sub
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return ErrSubscriptionNotFound
	}
	delete(m.subs, id)
	return nil
}
