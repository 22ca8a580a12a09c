// Package choice implements the interactive decision broker: a durable
// pending-decision record in the game state plus an out-of-band waiter
// keyed by choice ID, resolved exactly once by a separate call.
package choice

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/buildboard/engine-server-go/internal/game/state"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout is how long an unresolved choice waits before its
// awaiter is rejected.
const DefaultTimeout = 5 * time.Minute

// ErrTimeout rejects an awaiter whose choice expired unresolved.
var ErrTimeout = errors.New("choice timed out")

// ErrCancelled rejects an awaiter whose choice was force-cancelled.
var ErrCancelled = errors.New("choice cancelled")

// Result is delivered to the awaiter when a choice resolves.
type Result struct {
	SelectionID string
	Err         error
}

// Pending is the handle returned by Create: the choice ID (also visible
// in state) and the channel the caller awaits on.
type Pending struct {
	ID     string
	Result <-chan Result
}

type waiter struct {
	ch    chan Result
	timer *time.Timer
}

// Broker creates and resolves interactive choices. Only one choice may
// be pending at a time; creating a second while one is outstanding is a
// caller error.
type Broker struct {
	store   *state.Container
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	waiters map[string]*waiter
}

// NewBroker creates a broker bound to the given state container.
func NewBroker(store *state.Container, timeout time.Duration, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Broker{
		store:   store,
		logger:  logger,
		timeout: timeout,
		waiters: make(map[string]*waiter),
	}
}

// Create validates and publishes a new pending choice into state and
// returns the handle to await on. Fails if the player ID is empty, the
// option list is empty or contains duplicate or blank IDs or labels, or
// another choice is already pending.
func (b *Broker) Create(playerID string, choiceType state.ChoiceType, prompt string, options []state.ChoiceOption, metadata map[string]string) (*Pending, error) {
	if playerID == "" {
		return nil, fmt.Errorf("create choice: player ID is required")
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("create choice: at least one option is required")
	}
	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		if opt.ID == "" || opt.Label == "" {
			return nil, fmt.Errorf("create choice: option ID and label are required")
		}
		if seen[opt.ID] {
			return nil, fmt.Errorf("create choice: duplicate option ID %q", opt.ID)
		}
		seen[opt.ID] = true
	}

	b.mu.Lock()
	if len(b.waiters) > 0 {
		b.mu.Unlock()
		return nil, fmt.Errorf("create choice: another choice is already pending")
	}

	id := uuid.NewString()
	w := &waiter{ch: make(chan Result, 1)}
	w.timer = time.AfterFunc(b.timeout, func() {
		b.expire(id)
	})
	b.waiters[id] = w
	b.mu.Unlock()

	c := &state.Choice{
		ID:        id,
		PlayerID:  playerID,
		Type:      choiceType,
		Prompt:    prompt,
		Options:   append([]state.ChoiceOption(nil), options...),
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	b.store.Update(func(gs *state.GameState) {
		gs.AwaitingChoice = c
	})

	b.logger.Debug("choice created",
		zap.String("choice_id", id),
		zap.String("player_id", playerID),
		zap.String("type", string(choiceType)),
		zap.Int("options", len(options)),
	)

	return &Pending{ID: id, Result: w.ch}, nil
}

// Resolve fulfills the pending choice if choiceID matches it,
// selectionID matches one of its options, and the awaiter is still
// outstanding. Returns false otherwise; a second resolution attempt for
// the same choice is a no-op returning false.
func (b *Broker) Resolve(choiceID, selectionID string) bool {
	gs := b.store.Get()
	if gs.AwaitingChoice == nil || gs.AwaitingChoice.ID != choiceID {
		return false
	}
	valid := false
	for _, opt := range gs.AwaitingChoice.Options {
		if opt.ID == selectionID {
			valid = true
			break
		}
	}
	if !valid {
		b.logger.Warn("choice resolution with unknown option",
			zap.String("choice_id", choiceID),
			zap.String("selection_id", selectionID),
		)
		return false
	}
	return b.finish(choiceID, Result{SelectionID: selectionID})
}

// HasActive reports whether a choice is currently pending.
func (b *Broker) HasActive() bool {
	return b.store.Get().AwaitingChoice != nil
}

// Active returns the pending choice, or nil.
func (b *Broker) Active() *state.Choice {
	return b.store.Get().AwaitingChoice
}

// CancelAll force-rejects every pending choice with ErrCancelled and
// clears the state entry. Used for teardown and player rotation.
func (b *Broker) CancelAll(reason string) {
	b.mu.Lock()
	ids := make([]string, 0, len(b.waiters))
	for id := range b.waiters {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		if b.finish(id, Result{Err: fmt.Errorf("%w: %s", ErrCancelled, reason)}) {
			b.logger.Info("choice cancelled",
				zap.String("choice_id", id),
				zap.String("reason", reason),
			)
		}
	}
}

func (b *Broker) expire(choiceID string) {
	if b.finish(choiceID, Result{Err: ErrTimeout}) {
		b.logger.Warn("choice timed out", zap.String("choice_id", choiceID))
	}
}

// finish removes the waiter and state entry and delivers the result
// exactly once. Returns false if the choice was already finished.
func (b *Broker) finish(choiceID string, result Result) bool {
	b.mu.Lock()
	w, ok := b.waiters[choiceID]
	if !ok {
		b.mu.Unlock()
		return false
	}
	delete(b.waiters, choiceID)
	b.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}

	b.store.Update(func(gs *state.GameState) {
		if gs.AwaitingChoice != nil && gs.AwaitingChoice.ID == choiceID {
			gs.AwaitingChoice = nil
		}
	})

	w.ch <- result
	close(w.ch)
	return true
}
