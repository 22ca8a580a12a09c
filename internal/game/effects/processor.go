package effects

import (
	"context"
	"fmt"
	"sync"

	"github.com/buildboard/engine-server-go/internal/game/content"
	"github.com/buildboard/engine-server-go/internal/game/deck"
	"github.com/buildboard/engine-server-go/internal/game/state"
	"github.com/buildboard/engine-server-go/internal/game/targeting"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Processor applies standardized effects through the state container,
// deck manager, and targeting resolver. Each effect key is applied at
// most once between Resets, so a retried Apply is a no-op for
// already-processed effects. The engine resets the ledger at every turn
// boundary.
type Processor struct {
	store    *state.Container
	decks    *deck.Manager
	targets  *targeting.Resolver
	provider content.Provider
	logger   *zap.Logger

	mu      sync.Mutex
	applied map[string]bool
}

// NewProcessor creates an effect processor.
func NewProcessor(store *state.Container, decks *deck.Manager, targets *targeting.Resolver, provider content.Provider, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		store:    store,
		decks:    decks,
		targets:  targets,
		provider: provider,
		logger:   logger,
		applied:  make(map[string]bool),
	}
}

// Apply resolves each effect's targets and applies it to every target
// player. Effects whose key has already been applied are skipped.
func (pr *Processor) Apply(ctx context.Context, effects []Effect) error {
	for _, effect := range effects {
		pr.mu.Lock()
		if pr.applied[effect.Key] {
			pr.mu.Unlock()
			pr.logger.Debug("effect already applied, skipping", zap.String("key", effect.Key))
			continue
		}
		pr.applied[effect.Key] = true
		pr.mu.Unlock()

		targets, err := pr.targets.ResolveTargets(ctx, effect.PlayerID, effect.TargetRule)
		if err != nil {
			return fmt.Errorf("apply effect %s: %w", effect.Key, err)
		}
		for _, targetID := range targets {
			if err := pr.applyToPlayer(effect, targetID); err != nil {
				return fmt.Errorf("apply effect %s to %s: %w", effect.Key, targetID, err)
			}
		}
	}
	return nil
}

func (pr *Processor) applyToPlayer(effect Effect, targetID string) error {
	switch effect.Kind {
	case KindResourceChange:
		return pr.adjust(targetID, effect, func(p *state.Player) string {
			p.Money += effect.Amount
			return fmt.Sprintf("money changed by %d (%s)", effect.Amount, effect.Source)
		})
	case KindTimeChange:
		return pr.adjust(targetID, effect, func(p *state.Player) string {
			p.TimeSpent += effect.Amount
			return fmt.Sprintf("time changed by %d (%s)", effect.Amount, effect.Source)
		})
	case KindLoanChange:
		return pr.adjust(targetID, effect, func(p *state.Player) string {
			p.LoanAmount += effect.Amount
			p.Money += effect.Amount
			return fmt.Sprintf("loan changed by %d (%s)", effect.Amount, effect.Source)
		})
	case KindCardDraw:
		_, err := pr.decks.Draw(targetID, effect.CardType, effect.Amount, effect.Source, "effect")
		return err
	case KindCardDiscard:
		return pr.discardMatching(targetID, effect)
	case KindMovementHook:
		return pr.relocate(targetID, effect)
	}
	return fmt.Errorf("unknown effect kind %q", effect.Kind)
}

func (pr *Processor) adjust(targetID string, effect Effect, mutate func(*state.Player) string) error {
	var applyErr error
	pr.store.Update(func(gs *state.GameState) {
		p := gs.FindPlayer(targetID)
		if p == nil {
			applyErr = fmt.Errorf("player %s not found", targetID)
			return
		}
		desc := mutate(p)
		gs.AppendLog(state.ActionLogEntry{
			ID:          uuid.NewString(),
			Type:        "effect",
			PlayerID:    p.ID,
			PlayerName:  p.Name,
			Description: desc,
			Visibility:  state.LogVisibilityPublic,
		})
	})
	return applyErr
}

// discardMatching discards up to Amount cards of the effect's card type
// from the target's hand. A target with no matching cards is skipped
// without error.
func (pr *Processor) discardMatching(targetID string, effect Effect) error {
	gs := pr.store.Get()
	p := gs.FindPlayer(targetID)
	if p == nil {
		return fmt.Errorf("player %s not found", targetID)
	}

	var matching []string
	for _, id := range p.Hand {
		card, ok := pr.provider.GetCardByID(id)
		if !ok {
			continue
		}
		if effect.CardType == "" || card.Type == effect.CardType {
			matching = append(matching, id)
			if len(matching) == effect.Amount {
				break
			}
		}
	}
	if len(matching) == 0 {
		pr.logger.Debug("discard effect skipped, no matching cards",
			zap.String("player_id", targetID),
			zap.String("card_type", string(effect.CardType)),
		)
		return nil
	}

	for _, id := range matching {
		if err := pr.decks.Discard(targetID, id, effect.Source); err != nil {
			return err
		}
	}
	return nil
}

// relocate applies a card-granted movement hook: the target is placed
// directly on the destination space, recording the visit. Hooks bypass
// topology validation because the card, not the board, grants the move.
func (pr *Processor) relocate(targetID string, effect Effect) error {
	var applyErr error
	pr.store.Update(func(gs *state.GameState) {
		p := gs.FindPlayer(targetID)
		if p == nil {
			applyErr = fmt.Errorf("player %s not found", targetID)
			return
		}
		from := p.CurrentSpace
		if p.HasVisited(effect.Destination) {
			p.VisitType = content.VisitSubsequent
		} else {
			p.VisitType = content.VisitFirst
			p.VisitedSpaces = append(p.VisitedSpaces, effect.Destination)
		}
		p.CurrentSpace = effect.Destination
		gs.AppendLog(state.ActionLogEntry{
			ID:          uuid.NewString(),
			Type:        "movement",
			PlayerID:    p.ID,
			PlayerName:  p.Name,
			Description: fmt.Sprintf("relocated from %s to %s (%s)", from, effect.Destination, effect.Source),
			Visibility:  state.LogVisibilityPublic,
		})
	})
	return applyErr
}

// Reset clears the applied-key memory. Used when a turn is reverted so
// the retaken turn can re-apply its effects.
func (pr *Processor) Reset() {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.applied = make(map[string]bool)
}
