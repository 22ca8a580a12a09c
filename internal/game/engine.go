// Package game ties the state container, choice broker, deck manager,
// movement resolver, and targeting resolver together into the turn
// orchestration protocol.
package game

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/buildboard/engine-server-go/internal/game/choice"
	"github.com/buildboard/engine-server-go/internal/game/content"
	"github.com/buildboard/engine-server-go/internal/game/deck"
	"github.com/buildboard/engine-server-go/internal/game/effects"
	"github.com/buildboard/engine-server-go/internal/game/movement"
	"github.com/buildboard/engine-server-go/internal/game/rules"
	"github.com/buildboard/engine-server-go/internal/game/state"
	"github.com/buildboard/engine-server-go/internal/game/targeting"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var playerColors = []string{"#ff5733", "#33a1ff", "#2ecc71", "#f1c40f", "#9b59b6", "#e67e22"}

// Options configures an Engine.
type Options struct {
	// ChoiceTimeout bounds how long an unresolved choice waits.
	ChoiceTimeout time.Duration
	// PacingDelay spaces out movement events for external observers.
	// Zero collapses pacing for headless runs.
	PacingDelay time.Duration
	// StartingMoney is each player's initial bankroll.
	StartingMoney int
	// Seed drives dice and shuffles; zero seeds from the clock.
	Seed int64
	// RollbackEnabled gates the Try Again protocol.
	RollbackEnabled bool
}

// Notification is pushed to the registered handler on every state
// change and engine event, for UI/websocket consumers.
type Notification struct {
	Type      string
	GameID    string
	PlayerID  string
	Timestamp time.Time
	Data      map[string]any
}

// NotificationHandler receives engine notifications.
type NotificationHandler func(Notification)

// TryAgainResult is the user-facing outcome of a Try Again request.
// Failures are reported, never thrown.
type TryAgainResult struct {
	Success     bool
	Reason      string
	TimePenalty int
}

// Engine orchestrates one game. Construction is two-phase: NewEngine
// builds every component with its acyclic dependencies, then
// CompleteWiring connects the remaining back-references.
type Engine struct {
	gameID   string
	provider content.Provider
	logger   *zap.Logger
	opts     Options

	store     *state.Container
	broker    *choice.Broker
	decks     *deck.Manager
	movement  *movement.Resolver
	targets   *targeting.Resolver
	processor *effects.Processor
	bus       *rules.EventBus
	tracker   *rules.TurnTracker
	replay    *Replay
	rng       *rand.Rand

	wired       bool
	initialized bool

	notificationHandler NotificationHandler
}

// NewEngine builds the engine and its components.
func NewEngine(provider content.Provider, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	bus := rules.NewEventBus()
	store := state.NewContainer(state.GameState{}, logger)
	broker := choice.NewBroker(store, opts.ChoiceTimeout, logger)
	decks := deck.NewManager(store, provider, bus, rng, logger)
	mover := movement.NewResolver(store, provider, bus, opts.PacingDelay, logger)
	targets := targeting.NewResolver(store, logger)
	processor := effects.NewProcessor(store, decks, targets, provider, logger)

	return &Engine{
		provider:  provider,
		logger:    logger,
		opts:      opts,
		store:     store,
		broker:    broker,
		decks:     decks,
		movement:  mover,
		targets:   targets,
		processor: processor,
		bus:       bus,
		rng:       rng,
	}
}

// CompleteWiring connects the back-references that would otherwise form
// construction cycles: the movement and targeting resolvers each need
// the broker, which needs the store they already share.
func (e *Engine) CompleteWiring() {
	e.movement.SetBroker(e.broker)
	e.targets.SetBroker(e.broker)
	e.wired = true
}

// Component accessors for the composition root and tests.

func (e *Engine) Store() *state.Container       { return e.store }
func (e *Engine) Broker() *choice.Broker        { return e.broker }
func (e *Engine) Decks() *deck.Manager          { return e.decks }
func (e *Engine) Movement() *movement.Resolver  { return e.movement }
func (e *Engine) Targets() *targeting.Resolver  { return e.targets }
func (e *Engine) Processor() *effects.Processor { return e.processor }
func (e *Engine) Bus() *rules.EventBus          { return e.bus }
func (e *Engine) GameID() string                { return e.gameID }

// SetNotificationHandler registers the handler receiving state change
// and event notifications. Must be set before StartGame to observe the
// initial state.
func (e *Engine) SetNotificationHandler(handler NotificationHandler) {
	e.notificationHandler = handler
	e.store.Subscribe(func(change state.Change) {
		e.emit(Notification{
			Type:     "STATE_CHANGE",
			PlayerID: "",
			Data: map[string]any{
				"version":  change.Version,
				"external": change.External,
			},
		})
	})
	e.bus.Subscribe(func(event rules.Event) {
		e.emit(Notification{
			Type:     string(event.Type),
			PlayerID: event.PlayerID,
			Data: map[string]any{
				"space":   event.Space,
				"card_id": event.CardID,
				"amount":  event.Amount,
			},
		})
	})
}

func (e *Engine) emit(n Notification) {
	handler := e.notificationHandler
	if handler == nil {
		return
	}
	n.GameID = e.gameID
	n.Timestamp = time.Now()
	// Handler runs in its own goroutine so it can call back into the
	// engine without blocking game logic.
	go handler(n)
}

// StartGame initializes the game: decks shuffled, discard piles empty,
// players placed on the starting space, SETUP transitions to PLAY, and
// the first player's space entry runs.
func (e *Engine) StartGame(ctx context.Context, gameID string, playerNames []string) error {
	if !e.wired {
		return fmt.Errorf("start game: engine wiring incomplete")
	}
	if gameID == "" {
		return fmt.Errorf("start game: gameID is required")
	}
	if len(playerNames) == 0 {
		return fmt.Errorf("start game: at least 1 player required")
	}
	if e.initialized {
		return fmt.Errorf("start game: game %s already in progress", e.gameID)
	}

	start := e.provider.StartingSpace()
	if start == "" {
		return fmt.Errorf("start game: content has no starting space")
	}

	players := make([]state.Player, len(playerNames))
	for i, name := range playerNames {
		players[i] = state.Player{
			ID:            uuid.NewString(),
			Name:          name,
			Color:         playerColors[i%len(playerColors)],
			CurrentSpace:  start,
			VisitType:     content.VisitFirst,
			VisitedSpaces: []string{start},
			Money:         e.opts.StartingMoney,
			Hand:          []string{},
			ActiveCards:   []state.ActiveCard{},
			PathMemory:    make(map[string]string),
		}
	}

	e.gameID = gameID
	initial := state.NewGameState(gameID, players, e.decks.BuildDecks())
	e.store.Reset(initial)
	e.tracker = rules.NewTurnTracker(players[0].ID)
	e.replay = NewReplay(gameID)

	e.store.Update(func(gs *state.GameState) {
		gs.Phase = state.PhasePlay
		gs.AppendLog(state.ActionLogEntry{
			ID:          uuid.NewString(),
			Type:        "game_start",
			Description: fmt.Sprintf("game started with %d players", len(playerNames)),
			Visibility:  state.LogVisibilityPublic,
		})
	})
	e.initialized = true

	e.bus.Publish(rules.Event{Type: rules.EventGameStarted, Space: start})
	e.logger.Info("game started",
		zap.String("game_id", gameID),
		zap.Strings("players", playerNames),
		zap.String("starting_space", start),
	)

	return e.EnterSpace(ctx, players[0].ID)
}

// EnterSpace runs the space-entry step for the current player: a
// rollback snapshot is captured first, then the space's automatic
// effects are applied and the required-action bookkeeping is recomputed.
func (e *Engine) EnterSpace(ctx context.Context, playerID string) error {
	gs := e.store.Get()
	p := gs.FindPlayer(playerID)
	if p == nil {
		return fmt.Errorf("enter space: player %s not found", playerID)
	}
	space := p.CurrentSpace

	// Snapshot precedes effects so Try Again rewinds the whole visit.
	if err := e.store.CaptureSnapshot(playerID, space); err != nil {
		return fmt.Errorf("enter space: %w", err)
	}
	e.bus.Publish(rules.Event{Type: rules.EventSnapshotCaptured, PlayerID: playerID, Space: space})

	e.recomputeActions(playerID)

	var descriptors []effects.Effect
	for _, se := range e.provider.GetSpaceEffects(space, p.VisitType) {
		if se.TriggerType != "" && se.TriggerType != "auto" {
			continue
		}
		if d, ok := effects.FromSpaceEffect(se, playerID); ok {
			descriptors = append(descriptors, d)
		}
	}
	if err := e.processor.Apply(ctx, descriptors); err != nil {
		return fmt.Errorf("enter space %s: %w", space, err)
	}

	e.bus.Publish(rules.Event{Type: rules.EventSpaceEntry, PlayerID: playerID, Space: space})
	return nil
}

// recomputeActions rederives the required/completed action counts for
// the player's current position. Derived bookkeeping only.
func (e *Engine) recomputeActions(playerID string) {
	e.store.Update(func(gs *state.GameState) {
		p := gs.FindPlayer(playerID)
		if p == nil {
			return
		}
		required := 0
		if cfg, ok := e.provider.GetSpaceConfig(p.CurrentSpace); ok && cfg.RequiresDiceRoll {
			required++
		}
		for _, se := range e.provider.GetSpaceEffects(p.CurrentSpace, p.VisitType) {
			if se.TriggerType == "manual" {
				required++
			}
		}
		gs.RequiredActions = required

		completed := 0
		if gs.HasRolledDice {
			completed++
		}
		if completed > required {
			completed = required
		}
		gs.CompletedActionCount = completed
	})
}

// RollDice rolls for the current player and applies the dice outcome
// row for their space: a numeric outcome adds time, a "Draw N" outcome
// draws cards, and a space-name outcome records the move intent.
func (e *Engine) RollDice(playerID string) (int, error) {
	gs := e.store.Get()
	if err := e.requireTurn(&gs, playerID); err != nil {
		return 0, fmt.Errorf("roll dice: %w", err)
	}
	if gs.AwaitingChoice != nil {
		return 0, fmt.Errorf("roll dice: a choice is pending")
	}
	if gs.HasRolledDice {
		return 0, fmt.Errorf("roll dice: already rolled this turn")
	}
	p := gs.FindPlayer(playerID)
	cfg, ok := e.provider.GetSpaceConfig(p.CurrentSpace)
	if !ok || !cfg.RequiresDiceRoll {
		return 0, fmt.Errorf("roll dice: space %s does not use dice", p.CurrentSpace)
	}

	roll := e.rng.Intn(6) + 1

	var outcome string
	if row, ok := e.provider.GetDiceOutcome(p.CurrentSpace, p.VisitType); ok {
		outcome = strings.TrimSpace(row.Rolls[roll-1])
	}

	e.store.Update(func(gs *state.GameState) {
		gs.HasRolledDice = true
		gs.LastDiceRoll = roll
		gs.CompletedActionCount++
		p := gs.FindPlayer(playerID)
		gs.AppendLog(state.ActionLogEntry{
			ID:          uuid.NewString(),
			Type:        "dice_roll",
			PlayerID:    playerID,
			PlayerName:  p.Name,
			Description: fmt.Sprintf("rolled a %d on %s", roll, p.CurrentSpace),
			Visibility:  state.LogVisibilityPublic,
		})
	})
	e.bus.Publish(rules.Event{Type: rules.EventDiceRolled, PlayerID: playerID, Amount: roll})

	if outcome != "" {
		if err := e.applyDiceOutcome(playerID, outcome); err != nil {
			return roll, fmt.Errorf("roll dice: %w", err)
		}
	}
	return roll, nil
}

// applyDiceOutcome interprets one dice outcome cell. The source tables
// mix destinations, card draws, and time values in the same column.
func (e *Engine) applyDiceOutcome(playerID, outcome string) error {
	// "Draw 2" or "Draw 2 E" style outcomes.
	if rest, ok := strings.CutPrefix(outcome, "Draw "); ok {
		fields := strings.Fields(rest)
		if len(fields) >= 1 {
			count, err := strconv.Atoi(fields[0])
			if err == nil {
				cardType := content.CardTypeExpeditor
				if len(fields) >= 2 && content.IsValidCardType(content.CardType(fields[1])) {
					cardType = content.CardType(fields[1])
				}
				_, err := e.decks.Draw(playerID, cardType, count, "dice", "dice outcome")
				return err
			}
		}
	}

	// "5 days" or bare numeric outcomes add time.
	numeric := strings.TrimSuffix(strings.TrimSuffix(outcome, " days"), " day")
	if days, err := strconv.Atoi(strings.TrimSpace(numeric)); err == nil {
		e.store.Update(func(gs *state.GameState) {
			if p := gs.FindPlayer(playerID); p != nil {
				p.TimeSpent += days
				gs.AppendLog(state.ActionLogEntry{
					ID:          uuid.NewString(),
					Type:        "effect",
					PlayerID:    playerID,
					PlayerName:  p.Name,
					Description: fmt.Sprintf("dice outcome added %d day(s)", days),
					Visibility:  state.LogVisibilityPublic,
				})
			}
		})
		return nil
	}

	// Anything else is a destination: record the move intent to be
	// confirmed at end of turn.
	e.store.Update(func(gs *state.GameState) {
		gs.SelectedDestination = outcome
	})
	return nil
}

// PerformManualEffect applies the space's manual-trigger effects for
// the player and counts the action as completed.
func (e *Engine) PerformManualEffect(ctx context.Context, playerID string) error {
	gs := e.store.Get()
	if err := e.requireTurn(&gs, playerID); err != nil {
		return fmt.Errorf("manual effect: %w", err)
	}
	p := gs.FindPlayer(playerID)

	var descriptors []effects.Effect
	for _, se := range e.provider.GetSpaceEffects(p.CurrentSpace, p.VisitType) {
		if se.TriggerType != "manual" {
			continue
		}
		if d, ok := effects.FromSpaceEffect(se, playerID); ok {
			descriptors = append(descriptors, d)
		}
	}
	if len(descriptors) == 0 {
		return fmt.Errorf("manual effect: space %s has no manual effects", p.CurrentSpace)
	}
	if err := e.processor.Apply(ctx, descriptors); err != nil {
		return err
	}

	e.store.Update(func(gs *state.GameState) {
		if gs.CompletedActionCount < gs.RequiredActions {
			gs.CompletedActionCount++
		}
	})
	return nil
}

// PlayCard plays a card from the player's hand: phase restriction
// check, deck lifecycle, then standardized effect application.
func (e *Engine) PlayCard(ctx context.Context, playerID, cardID string) error {
	gs := e.store.Get()
	if err := e.requireTurn(&gs, playerID); err != nil {
		return fmt.Errorf("play card: %w", err)
	}
	card, ok := e.provider.GetCardByID(cardID)
	if !ok {
		return fmt.Errorf("play card: card %s not found", cardID)
	}
	if card.Phase != "" && card.Phase != "Any" {
		p := gs.FindPlayer(playerID)
		if cfg, ok := e.provider.GetSpaceConfig(p.CurrentSpace); ok && cfg.Phase != card.Phase {
			return fmt.Errorf("play card: %s is restricted to the %s phase", card.Name, card.Phase)
		}
	}

	played, err := e.decks.Play(playerID, cardID)
	if err != nil {
		return err
	}
	return e.processor.Apply(ctx, effects.FromCard(played, playerID))
}

// SelectDestination records the player's move intent for a choice-type
// space without executing the move yet.
func (e *Engine) SelectDestination(playerID, destination string) error {
	gs := e.store.Get()
	if err := e.requireTurn(&gs, playerID); err != nil {
		return fmt.Errorf("select destination: %w", err)
	}
	moves, err := e.movement.ValidMoves(playerID)
	if err != nil {
		return fmt.Errorf("select destination: %w", err)
	}
	for _, d := range moves {
		if d == destination {
			e.store.Update(func(gs *state.GameState) {
				gs.SelectedDestination = destination
			})
			return nil
		}
	}
	return fmt.Errorf("select destination: %s is not a valid destination", destination)
}

// EndTurn completes the current player's turn: refused while a choice
// is pending or required actions remain, then movement is confirmed,
// expired cards are swept, a replay snapshot is recorded, and play
// advances to the next player.
func (e *Engine) EndTurn(ctx context.Context, playerID string) error {
	gs := e.store.Get()
	if err := e.requireTurn(&gs, playerID); err != nil {
		return fmt.Errorf("end turn: %w", err)
	}
	if gs.AwaitingChoice != nil {
		return fmt.Errorf("end turn: a choice is pending")
	}
	if gs.CompletedActionCount < gs.RequiredActions {
		return fmt.Errorf("end turn: %d of %d required actions completed",
			gs.CompletedActionCount, gs.RequiredActions)
	}

	// Movement confirmation: a recorded intent executes directly,
	// otherwise the movement resolver handles auto-move or prompting.
	if !gs.HasMoved {
		moves, err := e.movement.ValidMoves(playerID)
		if err != nil {
			return fmt.Errorf("end turn: %w", err)
		}
		if len(moves) > 0 {
			if gs.SelectedDestination != "" {
				err = e.movement.Move(playerID, gs.SelectedDestination)
			} else {
				err = e.movement.ResolveMovementChoice(ctx, playerID)
			}
			if err != nil {
				return fmt.Errorf("end turn: %w", err)
			}
		}
	}

	e.decks.EndOfTurnSweep()

	if e.replay != nil {
		e.replay.RecordState(e.store.Get())
	}
	e.bus.Publish(rules.Event{Type: rules.EventTurnEnded, PlayerID: playerID})

	// Game end: the mover finished on an ending space.
	after := e.store.Get()
	if p := after.FindPlayer(playerID); p != nil {
		if cfg, ok := e.provider.GetSpaceConfig(p.CurrentSpace); ok && cfg.IsEndingSpace {
			e.store.Update(func(gs *state.GameState) {
				gs.Phase = state.PhaseEnd
				gs.AppendLog(state.ActionLogEntry{
					ID:          uuid.NewString(),
					Type:        "game_end",
					PlayerID:    playerID,
					PlayerName:  p.Name,
					Description: fmt.Sprintf("%s reached %s, game over", p.Name, p.CurrentSpace),
					Visibility:  state.LogVisibilityPublic,
				})
			})
			e.bus.Publish(rules.Event{Type: rules.EventGameEnded, PlayerID: playerID})
			return nil
		}
	}

	return e.NextPlayer(ctx)
}

// NextPlayer advances the current-player pointer, clears per-turn flags
// and any pending choice, and runs the next player's space entry.
func (e *Engine) NextPlayer(ctx context.Context) error {
	e.broker.CancelAll("turn ended")

	var nextID string
	e.store.Update(func(gs *state.GameState) {
		idx := 0
		for i, p := range gs.Players {
			if p.ID == gs.CurrentPlayerID {
				idx = i
				break
			}
		}
		next := (idx + 1) % len(gs.Players)
		nextID = gs.Players[next].ID
		gs.CurrentPlayerID = nextID
		gs.Turn++
		if next == 0 {
			gs.GameRound++
		}
		gs.HasRolledDice = false
		gs.LastDiceRoll = 0
		gs.HasMoved = false
		gs.SelectedDestination = ""
		gs.CompletedActionCount = 0
		gs.RequiredActions = 0
		gs.AwaitingChoice = nil
	})

	if e.tracker != nil {
		for e.tracker.CurrentStep() != rules.StepEndTurn {
			e.tracker.AdvanceStep(nextID)
		}
		e.tracker.AdvanceStep(nextID)
	}

	// Effect keys are scoped to a single turn: the new turn's space entry
	// must re-apply its effects even on a repeat visit.
	e.processor.Reset()

	e.bus.Publish(rules.Event{Type: rules.EventTurnStarted, PlayerID: nextID})
	return e.EnterSpace(ctx, nextID)
}

// TryAgain reverts the player's turn to the snapshot captured at space
// entry, at a time cost derived from the space's time effect. Failure
// modes are reported in the result, never raised.
func (e *Engine) TryAgain(playerID string) TryAgainResult {
	if !e.initialized {
		return TryAgainResult{Success: false, Reason: "game is still initializing"}
	}
	if !e.opts.RollbackEnabled {
		return TryAgainResult{Success: false, Reason: "rollback is disabled"}
	}

	gs := e.store.Get()
	p := gs.FindPlayer(playerID)
	if p == nil {
		return TryAgainResult{Success: false, Reason: fmt.Sprintf("player %s not found", playerID)}
	}
	cfg, ok := e.provider.GetSpaceConfig(p.CurrentSpace)
	if !ok {
		return TryAgainResult{Success: false, Reason: fmt.Sprintf("unknown space %s", p.CurrentSpace)}
	}
	if !cfg.CanNegotiate {
		return TryAgainResult{Success: false, Reason: fmt.Sprintf("%s does not allow negotiation", p.CurrentSpace)}
	}
	snap, ok := e.store.Snapshot(playerID)
	if !ok {
		return TryAgainResult{Success: false, Reason: "no snapshot available"}
	}
	if snap.SpaceName != p.CurrentSpace {
		return TryAgainResult{Success: false, Reason: "snapshot does not match current space"}
	}

	penalty := e.tryAgainPenalty(p.CurrentSpace, p.VisitType)
	if err := e.store.Revert(playerID, penalty, func(gs *state.GameState) {
		e.recomputeActionsLocked(gs, playerID)
	}); err != nil {
		return TryAgainResult{Success: false, Reason: err.Error()}
	}

	// The retaken turn re-derives its effects from scratch.
	e.processor.Reset()
	if e.tracker != nil {
		e.tracker.BeginTurn(playerID)
	}

	e.store.Update(func(gs *state.GameState) {
		p := gs.FindPlayer(playerID)
		gs.AppendLog(state.ActionLogEntry{
			ID:          uuid.NewString(),
			Type:        "try_again",
			PlayerID:    playerID,
			PlayerName:  p.Name,
			Description: fmt.Sprintf("retried %s at a cost of %d day(s)", p.CurrentSpace, penalty),
			Visibility:  state.LogVisibilityPublic,
		})
	})
	e.bus.Publish(rules.Event{Type: rules.EventTurnReverted, PlayerID: playerID, Amount: penalty})
	e.logger.Info("turn reverted",
		zap.String("player_id", playerID),
		zap.Int("time_penalty", penalty),
	)

	return TryAgainResult{Success: true, TimePenalty: penalty}
}

// tryAgainPenalty derives the deterministic time cost from the space's
// declared time-add effect, defaulting to one day.
func (e *Engine) tryAgainPenalty(space string, visit content.VisitType) int {
	for _, se := range e.provider.GetSpaceEffects(space, visit) {
		if se.EffectType == "time" && se.Value > 0 {
			return se.Value
		}
	}
	return 1
}

// recomputeActionsLocked is recomputeActions for use inside an Update
// callback.
func (e *Engine) recomputeActionsLocked(gs *state.GameState, playerID string) {
	p := gs.FindPlayer(playerID)
	if p == nil {
		return
	}
	required := 0
	if cfg, ok := e.provider.GetSpaceConfig(p.CurrentSpace); ok && cfg.RequiresDiceRoll {
		required++
	}
	for _, se := range e.provider.GetSpaceEffects(p.CurrentSpace, p.VisitType) {
		if se.TriggerType == "manual" {
			required++
		}
	}
	gs.RequiredActions = required
	gs.CompletedActionCount = 0
}

// requireTurn validates that the game is running and it is playerID's
// turn.
func (e *Engine) requireTurn(gs *state.GameState, playerID string) error {
	if gs.Phase != state.PhasePlay {
		return fmt.Errorf("game is not in play (phase %s)", gs.Phase)
	}
	if playerID == "" {
		return fmt.Errorf("player ID is required")
	}
	if gs.CurrentPlayerID != playerID {
		return fmt.Errorf("it is not player %s's turn", playerID)
	}
	if gs.FindPlayer(playerID) == nil {
		return fmt.Errorf("player %s not found", playerID)
	}
	return nil
}

// ResolveChoice forwards a selection to the broker. Exposed for the
// transport layer.
func (e *Engine) ResolveChoice(choiceID, selectionID string) bool {
	ok := e.broker.Resolve(choiceID, selectionID)
	if ok {
		e.bus.Publish(rules.Event{Type: rules.EventChoiceResolved, Data: map[string]any{"choice_id": choiceID, "selection_id": selectionID}})
	}
	return ok
}

// ReplayJournal returns the turn-by-turn replay, or nil before start.
func (e *Engine) ReplayJournal() *Replay {
	return e.replay
}
