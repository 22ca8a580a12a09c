package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/buildboard/engine-server-go/internal/game/content"
	"go.uber.org/zap"
)

// Change is delivered to every subscriber after a state replacement.
type Change struct {
	State   GameState
	Version uint64
	// External marks replacements that came from an outside source
	// (persistence/sync). The sync forwarder skips these to avoid
	// feedback loops.
	External bool
}

// Listener receives state change notifications.
type Listener func(Change)

// Container owns the GameState root. All mutation goes through Update,
// which fully completes (merge plus listener notification) before the
// next caller-visible operation begins.
type Container struct {
	mu        sync.Mutex
	state     GameState
	version   uint64
	listeners map[int]Listener
	order     []int
	nextID    int
	logger    *zap.Logger
}

// NewContainer creates a container holding the given initial state.
func NewContainer(initial GameState, logger *zap.Logger) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Container{
		state:     initial.Clone(),
		listeners: make(map[int]Listener),
		logger:    logger,
	}
}

// Get returns a defensively-copied view of the current state.
func (c *Container) Get() GameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Version returns the monotonic change counter.
func (c *Container) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Update applies fn to a working copy of the state, replaces the root
// atomically, and synchronously notifies subscribers in subscription
// order. A panicking subscriber is isolated so it cannot block the rest.
func (c *Container) Update(fn func(*GameState)) {
	c.apply(fn, false)
}

// UpdateExternal is Update for state arriving from an external source:
// subscribers see External=true and the sync path must not re-emit it.
func (c *Container) UpdateExternal(fn func(*GameState)) {
	c.apply(fn, true)
}

func (c *Container) apply(fn func(*GameState), external bool) {
	c.mu.Lock()
	working := c.state.Clone()
	fn(&working)
	c.state = working
	c.version++
	change := Change{State: working.Clone(), Version: c.version, External: external}
	order := append([]int(nil), c.order...)
	listeners := make(map[int]Listener, len(c.listeners))
	for id, l := range c.listeners {
		listeners[id] = l
	}
	c.mu.Unlock()

	for _, id := range order {
		listener, ok := listeners[id]
		if !ok {
			continue
		}
		c.safeNotify(id, listener, change)
	}
}

func (c *Container) safeNotify(id int, listener Listener, change Change) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("state listener panicked",
				zap.Int("listener", id),
				zap.Uint64("version", change.Version),
				zap.Any("panic", r),
			)
		}
	}()
	listener(change)
}

// Subscribe registers a listener and returns its unsubscribe function.
func (c *Container) Subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	c.order = append(c.order, id)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
		for i, v := range c.order {
			if v == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

// Reset replaces the state wholesale and drops all snapshots. Used for
// teardown and for starting a fresh game in tests.
func (c *Container) Reset(next GameState) {
	c.apply(func(gs *GameState) {
		*gs = next.Clone()
	}, false)
}

// CaptureSnapshot stores a rollback snapshot for the player, tagged with
// the space it was taken on. Any previous snapshot for the player is
// replaced.
func (c *Container) CaptureSnapshot(playerID, spaceName string) error {
	var captureErr error
	c.Update(func(gs *GameState) {
		p := gs.FindPlayer(playerID)
		if p == nil {
			captureErr = fmt.Errorf("capture snapshot: player %s not found", playerID)
			return
		}
		if gs.PlayerSnapshots == nil {
			gs.PlayerSnapshots = make(map[string]*PlayerSnapshot)
		}
		gs.PlayerSnapshots[playerID] = &PlayerSnapshot{
			SpaceName:    spaceName,
			TakenAt:      time.Now(),
			CurrentSpace: p.CurrentSpace,
			VisitType:    p.VisitType,
			Money:        p.Money,
			TimeSpent:    p.TimeSpent,
			ProjectScope: p.ProjectScope,
			LoanAmount:   p.LoanAmount,
			Hand:         append([]string(nil), p.Hand...),
			ActiveCards:  append([]ActiveCard(nil), p.ActiveCards...),
			Decks:        cloneCardMap(gs.Decks),
			DiscardPiles: cloneCardMap(gs.DiscardPiles),
		}
	})
	return captureErr
}

// Snapshot returns the stored snapshot for a player, if any.
func (c *Container) Snapshot(playerID string) (*PlayerSnapshot, bool) {
	gs := c.Get()
	snap, ok := gs.PlayerSnapshots[playerID]
	return snap, ok && snap != nil
}

// ClearSnapshot discards the stored snapshot for a player.
func (c *Container) ClearSnapshot(playerID string) {
	c.Update(func(gs *GameState) {
		delete(gs.PlayerSnapshots, playerID)
	})
}

// Revert restores the player's rollback-eligible fields from their
// snapshot and applies timePenalty to their time spent. The player's
// CURRENT visited-set is kept (merged over the snapshot's value): visit
// history never shrinks. Turn-progress flags are reset and the action
// bookkeeping is recomputed via recompute, which runs inside the same
// atomic update with the restored state.
func (c *Container) Revert(playerID string, timePenalty int, recompute func(*GameState)) error {
	var revertErr error
	c.Update(func(gs *GameState) {
		snap := gs.PlayerSnapshots[playerID]
		if snap == nil {
			revertErr = fmt.Errorf("revert: no snapshot for player %s", playerID)
			return
		}
		p := gs.FindPlayer(playerID)
		if p == nil {
			revertErr = fmt.Errorf("revert: player %s not found", playerID)
			return
		}

		visited := append([]string(nil), p.VisitedSpaces...)

		p.CurrentSpace = snap.CurrentSpace
		p.VisitType = snap.VisitType
		p.Money = snap.Money
		p.TimeSpent = snap.TimeSpent + timePenalty
		p.ProjectScope = snap.ProjectScope
		p.LoanAmount = snap.LoanAmount
		p.Hand = append([]string(nil), snap.Hand...)
		p.ActiveCards = append([]ActiveCard(nil), snap.ActiveCards...)
		p.VisitedSpaces = visited

		gs.Decks = cloneCardMap(snap.Decks)
		gs.DiscardPiles = cloneCardMap(snap.DiscardPiles)

		gs.HasRolledDice = false
		gs.HasMoved = false
		gs.SelectedDestination = ""
		gs.CompletedActionCount = 0
		gs.AwaitingChoice = nil

		if recompute != nil {
			recompute(gs)
		}
	})
	return revertErr
}

// NewGameState builds the initial state for a roster of players placed
// on the starting space, with all five decks present (shuffling is the
// deck manager's job).
func NewGameState(gameID string, players []Player, decks map[content.CardType][]string) GameState {
	discard := make(map[content.CardType][]string, len(content.AllCardTypes))
	if decks == nil {
		decks = make(map[content.CardType][]string, len(content.AllCardTypes))
	}
	for _, t := range content.AllCardTypes {
		if decks[t] == nil {
			decks[t] = []string{}
		}
		discard[t] = []string{}
	}
	gs := GameState{
		GameID:          gameID,
		Players:         players,
		Phase:           PhaseSetup,
		Turn:            1,
		GameRound:       1,
		Decks:           decks,
		DiscardPiles:    discard,
		PlayerSnapshots: make(map[string]*PlayerSnapshot),
		ActionLog:       []ActionLogEntry{},
	}
	if len(players) > 0 {
		gs.CurrentPlayerID = players[0].ID
	}
	return gs
}
