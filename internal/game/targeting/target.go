// Package targeting expands abstract target rules into concrete player
// identifiers, delegating to the choice broker when a rule requires an
// interactive selection.
package targeting

import (
	"context"
	"fmt"

	"github.com/buildboard/engine-server-go/internal/game/choice"
	"github.com/buildboard/engine-server-go/internal/game/content"
	"github.com/buildboard/engine-server-go/internal/game/state"
	"go.uber.org/zap"
)

// Resolver expands target rules against the current roster.
type Resolver struct {
	store  *state.Container
	broker *choice.Broker
	logger *zap.Logger
}

// NewResolver creates a targeting resolver. The broker is attached
// later via SetBroker.
func NewResolver(store *state.Container, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger}
}

// SetBroker wires the choice broker used for interactive rules.
func (r *Resolver) SetBroker(b *choice.Broker) {
	r.broker = b
}

// IsInteractive reports whether a rule requires a player selection.
// Callers use it to decide whether resolving targets may suspend.
func IsInteractive(rule content.TargetRule) bool {
	switch rule {
	case content.TargetChooseOpponent, content.TargetChooseOnePlayer:
		return true
	}
	return false
}

// ResolveTargets expands rule into concrete player IDs. The two
// "choose" rules prompt interactively unless exactly one candidate is
// eligible, in which case selection is automatic.
func (r *Resolver) ResolveTargets(ctx context.Context, sourcePlayerID string, rule content.TargetRule) ([]string, error) {
	gs := r.store.Get()
	source := gs.FindPlayer(sourcePlayerID)
	if source == nil {
		return nil, fmt.Errorf("resolve targets: player %s not found", sourcePlayerID)
	}

	switch rule {
	case content.TargetSelf:
		return []string{sourcePlayerID}, nil
	case content.TargetAllPlayers:
		ids := make([]string, len(gs.Players))
		for i, p := range gs.Players {
			ids[i] = p.ID
		}
		return ids, nil
	case content.TargetAllPlayersExceptSelf:
		ids := make([]string, 0, len(gs.Players))
		for _, p := range gs.Players {
			if p.ID != sourcePlayerID {
				ids = append(ids, p.ID)
			}
		}
		return ids, nil
	case content.TargetChooseOpponent:
		candidates := make([]state.Player, 0, len(gs.Players))
		for _, p := range gs.Players {
			if p.ID != sourcePlayerID {
				candidates = append(candidates, p)
			}
		}
		return r.choose(ctx, sourcePlayerID, "Choose an opponent", candidates)
	case content.TargetChooseOnePlayer:
		return r.choose(ctx, sourcePlayerID, "Choose a player", gs.Players)
	}
	return nil, fmt.Errorf("resolve targets: unknown target rule %q", rule)
}

func (r *Resolver) choose(ctx context.Context, sourcePlayerID, prompt string, candidates []state.Player) ([]string, error) {
	switch len(candidates) {
	case 0:
		return []string{}, nil
	case 1:
		// A single eligible candidate is selected automatically,
		// no prompt.
		return []string{candidates[0].ID}, nil
	}

	if r.broker == nil {
		return nil, fmt.Errorf("resolve targets: broker not wired")
	}

	options := make([]state.ChoiceOption, len(candidates))
	for i, p := range candidates {
		options[i] = state.ChoiceOption{ID: p.ID, Label: p.Name}
	}
	pending, err := r.broker.Create(sourcePlayerID, state.ChoiceTargetSelection, prompt, options, nil)
	if err != nil {
		return nil, fmt.Errorf("resolve targets: %w", err)
	}

	r.logger.Debug("awaiting target selection",
		zap.String("player_id", sourcePlayerID),
		zap.String("choice_id", pending.ID),
		zap.Int("candidates", len(candidates)),
	)

	select {
	case result := <-pending.Result:
		if result.Err != nil {
			return nil, fmt.Errorf("resolve targets: %w", result.Err)
		}
		return []string{result.SelectionID}, nil
	case <-ctx.Done():
		r.broker.CancelAll("context cancelled")
		return nil, ctx.Err()
	}
}
