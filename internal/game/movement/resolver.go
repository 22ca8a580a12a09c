// Package movement computes legal destinations from a space's movement
// topology and executes validated moves as a three-phase transaction.
package movement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/buildboard/engine-server-go/internal/game/choice"
	"github.com/buildboard/engine-server-go/internal/game/content"
	"github.com/buildboard/engine-server-go/internal/game/rules"
	"github.com/buildboard/engine-server-go/internal/game/state"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolver computes and executes player movement.
type Resolver struct {
	store    *state.Container
	provider content.Provider
	bus      *rules.EventBus
	logger   *zap.Logger

	// broker is wired after construction (CompleteWiring) because the
	// orchestrator owns both components.
	broker *choice.Broker

	// pacingDelay spaces out the pre-move/move/post-move events for
	// external observers. Zero collapses the pacing entirely.
	pacingDelay time.Duration
}

// NewResolver creates a movement resolver. The choice broker is
// attached later via SetBroker.
func NewResolver(store *state.Container, provider content.Provider, bus *rules.EventBus, pacingDelay time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:       store,
		provider:    provider,
		bus:         bus,
		pacingDelay: pacingDelay,
		logger:      logger,
	}
}

// SetBroker wires the choice broker used for interactive movement.
func (r *Resolver) SetBroker(b *choice.Broker) {
	r.broker = b
}

// ValidMoves returns the legal destinations for the player's current
// space and visit type. A none-topology space yields an empty slice.
func (r *Resolver) ValidMoves(playerID string) ([]string, error) {
	gs := r.store.Get()
	p := gs.FindPlayer(playerID)
	if p == nil {
		return nil, fmt.Errorf("valid moves: player %s not found", playerID)
	}

	rule, ok := r.provider.GetMovement(p.CurrentSpace, p.VisitType)
	if !ok {
		return nil, fmt.Errorf("valid moves: no movement rule for space %s (%s visit)", p.CurrentSpace, p.VisitType)
	}

	var moves []string
	switch rule.Kind {
	case content.MovementNone:
		moves = []string{}
	case content.MovementFixed, content.MovementChoice:
		for _, dest := range rule.Destinations {
			if dest != "" {
				moves = append(moves, dest)
			}
		}
	case content.MovementDice:
		moves = splitDiceDestinations(rule.DiceDestinations)
	case content.MovementLogic:
		for i, dest := range rule.Destinations {
			if dest == "" {
				continue
			}
			if evalCondition(rule.Conditions[i], p) {
				moves = append(moves, dest)
			}
		}
	default:
		return nil, fmt.Errorf("valid moves: unknown movement kind %q on space %s", rule.Kind, p.CurrentSpace)
	}

	// A locked-path space enforces the branch the player committed to
	// on a previous visit.
	if cfg, ok := r.provider.GetSpaceConfig(p.CurrentSpace); ok && cfg.IsLockedPath {
		if chosen, ok := p.PathMemory[p.CurrentSpace]; ok {
			for _, dest := range moves {
				if dest == chosen {
					return []string{chosen}, nil
				}
			}
			// Recorded choice no longer among the computed moves means
			// corrupted path memory; fall through with the full set.
			r.logger.Warn("locked path memory does not match movement table",
				zap.String("player_id", playerID),
				zap.String("space", p.CurrentSpace),
				zap.String("remembered", chosen),
			)
		}
	}

	return moves, nil
}

// splitDiceDestinations collects the six die-face destination slots,
// splitting any "X or Y" disjunction into independent options and
// de-duplicating while preserving order.
func splitDiceDestinations(slots [6]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, slot := range slots {
		if slot == "" {
			continue
		}
		for _, dest := range strings.Split(slot, " or ") {
			dest = strings.TrimSpace(dest)
			if dest == "" || seen[dest] {
				continue
			}
			seen[dest] = true
			out = append(out, dest)
		}
	}
	return out
}

// evalCondition evaluates a logic-movement condition against the
// player's current resources. The vocabulary is a closed set.
func evalCondition(cond content.LogicCondition, p *state.Player) bool {
	switch cond.Kind {
	case content.ConditionAlways, "":
		return true
	case content.ConditionScopeLE:
		return p.ProjectScope <= cond.Threshold
	case content.ConditionScopeGT:
		return p.ProjectScope > cond.Threshold
	case content.ConditionMoneyLE:
		return p.Money <= cond.Threshold
	case content.ConditionMoneyGT:
		return p.Money > cond.Threshold
	case content.ConditionTimeLE:
		return p.TimeSpent <= cond.Threshold
	case content.ConditionTimeGT:
		return p.TimeSpent > cond.Threshold
	case content.ConditionCardCountGE:
		return len(p.Hand) >= cond.Threshold
	}
	return false
}

// Move executes a validated move in three phases: validate the
// destination against ValidMoves, compute the visit transition, then
// write the player update atomically. No partial state is observable
// when validation fails.
func (r *Resolver) Move(playerID, destination string) error {
	// Phase 1: validate.
	if playerID == "" {
		return fmt.Errorf("move: player ID is required")
	}
	if destination == "" {
		return fmt.Errorf("move: destination is required")
	}
	gs := r.store.Get()
	p := gs.FindPlayer(playerID)
	if p == nil {
		return fmt.Errorf("move: player %s not found", playerID)
	}
	valid, err := r.ValidMoves(playerID)
	if err != nil {
		return fmt.Errorf("move: %w", err)
	}
	found := false
	for _, d := range valid {
		if d == destination {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("move: %s is not a valid destination from %s", destination, p.CurrentSpace)
	}

	// Phase 2: execute — compute the transition without writing.
	fromSpace := p.CurrentSpace
	visitType := content.VisitSubsequent
	if !p.HasVisited(destination) {
		visitType = content.VisitFirst
	}

	lockPath := false
	if cfg, ok := r.provider.GetSpaceConfig(fromSpace); ok && cfg.IsLockedPath {
		if _, recorded := p.PathMemory[fromSpace]; !recorded && len(valid) > 1 {
			lockPath = true
		}
	}

	r.pace(rules.Event{Type: rules.EventPreMove, PlayerID: playerID, Space: fromSpace})

	// Phase 3: finalize — single atomic write.
	var moveErr error
	r.store.Update(func(gs *state.GameState) {
		p := gs.FindPlayer(playerID)
		if p == nil {
			moveErr = fmt.Errorf("move: player %s disappeared during move", playerID)
			return
		}
		p.CurrentSpace = destination
		p.VisitType = visitType
		if !p.HasVisited(destination) {
			p.VisitedSpaces = append(p.VisitedSpaces, destination)
		}
		if lockPath {
			if p.PathMemory == nil {
				p.PathMemory = make(map[string]string)
			}
			p.PathMemory[fromSpace] = destination
		}
		gs.HasMoved = true
		gs.SelectedDestination = ""
		// A snapshot captured on the previous space is stale once the
		// player has moved on.
		delete(gs.PlayerSnapshots, playerID)

		gs.AppendLog(state.ActionLogEntry{
			ID:          uuid.NewString(),
			Type:        "movement",
			PlayerID:    p.ID,
			PlayerName:  p.Name,
			Description: fmt.Sprintf("moved from %s to %s (%s visit)", fromSpace, destination, visitType),
			Visibility:  state.LogVisibilityPublic,
		})
	})
	if moveErr != nil {
		return moveErr
	}

	r.logger.Info("player moved",
		zap.String("player_id", playerID),
		zap.String("from", fromSpace),
		zap.String("to", destination),
		zap.String("visit_type", string(visitType)),
	)
	r.publish(rules.Event{Type: rules.EventPlayerMoved, PlayerID: playerID, Space: destination,
		Data: map[string]any{"from": fromSpace, "visit_type": string(visitType)}})
	r.pace(rules.Event{Type: rules.EventPostMove, PlayerID: playerID, Space: destination})

	return nil
}

// ResolveMovementChoice drives the player off their current space. Zero
// destinations is an error; exactly one auto-moves without prompting;
// more than one creates a movement choice and performs the validated
// move once the selection arrives.
func (r *Resolver) ResolveMovementChoice(ctx context.Context, playerID string) error {
	moves, err := r.ValidMoves(playerID)
	if err != nil {
		return err
	}
	switch len(moves) {
	case 0:
		return fmt.Errorf("movement choice: no valid destinations for player %s", playerID)
	case 1:
		return r.Move(playerID, moves[0])
	}

	if r.broker == nil {
		return fmt.Errorf("movement choice: broker not wired")
	}

	options := make([]state.ChoiceOption, len(moves))
	for i, dest := range moves {
		options[i] = state.ChoiceOption{ID: dest, Label: dest}
	}
	pending, err := r.broker.Create(playerID, state.ChoiceMovement, "Choose your next space", options, nil)
	if err != nil {
		return fmt.Errorf("movement choice: %w", err)
	}

	select {
	case result := <-pending.Result:
		if result.Err != nil {
			return fmt.Errorf("movement choice: %w", result.Err)
		}
		return r.Move(playerID, result.SelectionID)
	case <-ctx.Done():
		r.broker.CancelAll("context cancelled")
		return ctx.Err()
	}
}

// pace publishes a pacing marker and sleeps the configured delay. The
// markers give subscribers ordered pre/post visibility; the delay may
// be zero in headless runs.
func (r *Resolver) pace(event rules.Event) {
	r.publish(event)
	if r.pacingDelay > 0 {
		time.Sleep(r.pacingDelay)
	}
}

func (r *Resolver) publish(event rules.Event) {
	if r.bus != nil {
		r.bus.Publish(event)
	}
}
