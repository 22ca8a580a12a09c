// Package deck owns the five typed card decks and global discard piles:
// drawing with automatic reshuffle, playing, duration-based activation
// and expiration, discarding, and transfers between players.
package deck

import (
	"fmt"
	"math/rand"

	"github.com/buildboard/engine-server-go/internal/game/content"
	"github.com/buildboard/engine-server-go/internal/game/rules"
	"github.com/buildboard/engine-server-go/internal/game/state"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CardLocation describes where a card currently lives.
type CardLocation string

const (
	LocationDeck    CardLocation = "deck"
	LocationDiscard CardLocation = "discard"
	LocationHand    CardLocation = "hand"
	LocationActive  CardLocation = "active"
	LocationUnknown CardLocation = "unknown"
)

// Manager performs all deck, discard, and hand mutations. Every public
// operation applies its changes as a single atomic state update so no
// interleaved partial state is observable.
type Manager struct {
	store    *state.Container
	provider content.Provider
	bus      *rules.EventBus
	rng      *rand.Rand
	logger   *zap.Logger
}

// NewManager creates a deck manager. rng drives shuffles; pass a seeded
// source for deterministic games.
func NewManager(store *state.Container, provider content.Provider, bus *rules.EventBus, rng *rand.Rand, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		provider: provider,
		bus:      bus,
		rng:      rng,
		logger:   logger,
	}
}

// shuffle permutes ids in place (Fisher-Yates).
func (m *Manager) shuffle(ids []string) {
	for i := len(ids) - 1; i > 0; i-- {
		j := m.rng.Intn(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
}

// BuildDecks produces freshly shuffled decks for all five card types
// from the content tables. Called once at game start.
func (m *Manager) BuildDecks() map[content.CardType][]string {
	decks := make(map[content.CardType][]string, len(content.AllCardTypes))
	for _, t := range content.AllCardTypes {
		cards := m.provider.GetCardsByType(t)
		ids := make([]string, len(cards))
		for i, c := range cards {
			ids[i] = c.ID
		}
		m.shuffle(ids)
		decks[t] = ids
	}
	return decks
}

// Draw removes up to count cards from the tail of the type's deck and
// appends them to the player's hand. An empty deck triggers an atomic
// reshuffle of the matching discard pile; if both are empty the draw
// stops early with a partial result and a warning, never an error.
func (m *Manager) Draw(playerID string, cardType content.CardType, count int, source, reason string) ([]string, error) {
	if playerID == "" {
		return nil, fmt.Errorf("draw: player ID is required")
	}
	if !content.IsValidCardType(cardType) {
		return nil, fmt.Errorf("draw: invalid card type %q", cardType)
	}
	if count <= 0 {
		return []string{}, nil
	}

	var (
		drawn      []string
		reshuffled bool
		drawErr    error
	)
	m.store.Update(func(gs *state.GameState) {
		p := gs.FindPlayer(playerID)
		if p == nil {
			drawErr = fmt.Errorf("draw: player %s not found", playerID)
			return
		}
		deck := gs.Decks[cardType]
		discard := gs.DiscardPiles[cardType]

		for i := 0; i < count; i++ {
			if len(deck) == 0 {
				if len(discard) == 0 {
					break
				}
				deck = append(deck, discard...)
				discard = discard[:0]
				m.shuffle(deck)
				reshuffled = true
			}
			cardID := deck[len(deck)-1]
			deck = deck[:len(deck)-1]
			drawn = append(drawn, cardID)
			p.Hand = append(p.Hand, cardID)
		}

		gs.Decks[cardType] = deck
		gs.DiscardPiles[cardType] = append([]string(nil), discard...)
		m.recomputeScope(p)

		if len(drawn) > 0 {
			gs.AppendLog(state.ActionLogEntry{
				ID:          uuid.NewString(),
				Type:        "card_draw",
				PlayerID:    p.ID,
				PlayerName:  p.Name,
				Description: fmt.Sprintf("drew %d %s card(s) (%s)", len(drawn), cardType, reason),
				Visibility:  state.LogVisibilityPublic,
			})
		}
	})
	if drawErr != nil {
		return nil, drawErr
	}

	if reshuffled {
		m.logger.Info("discard pile reshuffled into deck",
			zap.String("card_type", string(cardType)),
		)
		m.publish(rules.Event{Type: rules.EventDeckReshuffled, Data: map[string]any{"card_type": string(cardType)}})
	}
	if len(drawn) < count {
		m.logger.Warn("deck and discard exhausted, partial draw",
			zap.String("player_id", playerID),
			zap.String("card_type", string(cardType)),
			zap.Int("requested", count),
			zap.Int("drawn", len(drawn)),
			zap.String("source", source),
		)
	}
	if len(drawn) > 0 {
		m.publish(rules.Event{
			Type:     rules.EventCardsDrawn,
			PlayerID: playerID,
			Amount:   len(drawn),
			Data:     map[string]any{"card_type": string(cardType), "source": source},
		})
	}
	return drawn, nil
}

// Play applies a card's immediate category behavior and routes it to
// activation or the discard pile. The card's declarative effect fields
// are the engine's job (effect derivation and processing); Play covers
// the direct per-category mutations, each idempotent on retry because
// the card leaves the hand in the same atomic update.
func (m *Manager) Play(playerID, cardID string) (content.Card, error) {
	card, ok := m.provider.GetCardByID(cardID)
	if !ok {
		return content.Card{}, fmt.Errorf("play: card %s not found in content tables", cardID)
	}

	var playErr error
	m.store.Update(func(gs *state.GameState) {
		p := gs.FindPlayer(playerID)
		if p == nil {
			playErr = fmt.Errorf("play: player %s not found", playerID)
			return
		}
		if !removeFromHand(p, cardID) {
			playErr = fmt.Errorf("play: card %s is not in player %s's hand", cardID, playerID)
			return
		}

		m.applyCategory(p, card)

		if card.Duration > 0 {
			p.ActiveCards = append(p.ActiveCards, state.ActiveCard{
				CardID:         cardID,
				ExpirationTurn: gs.Turn + card.Duration,
			})
		} else {
			gs.DiscardPiles[card.Type] = append(gs.DiscardPiles[card.Type], cardID)
		}
		m.recomputeScope(p)

		gs.AppendLog(state.ActionLogEntry{
			ID:          uuid.NewString(),
			Type:        "card_play",
			PlayerID:    p.ID,
			PlayerName:  p.Name,
			Description: fmt.Sprintf("played %s (%s)", card.Name, card.Type),
			Visibility:  state.LogVisibilityPublic,
		})
	})
	if playErr != nil {
		return content.Card{}, playErr
	}

	eventType := rules.EventCardPlayed
	if card.Duration > 0 {
		eventType = rules.EventCardActivated
	}
	m.publish(rules.Event{Type: eventType, PlayerID: playerID, CardID: cardID})
	return card, nil
}

// applyCategory applies the legacy per-type direct mutations that
// predate the standardized effect descriptors.
func (m *Manager) applyCategory(p *state.Player, card content.Card) {
	switch card.Type {
	case content.CardTypeWork:
		// Work cards define project scope; the scope recompute picks
		// them up from the hand, so the play itself charges the cost.
		p.Money -= card.WorkCost
	case content.CardTypeBankLoan:
		p.Money += card.LoanAmount
		p.LoanAmount += card.LoanAmount
	case content.CardTypeInvestor:
		p.Money += card.InvestmentAmount
		p.LoanAmount += card.InvestmentAmount
	case content.CardTypeExpeditor, content.CardTypeLifeEvent:
		// Discretionary cards act only through their effect fields.
	}
}

// Discard moves a card from the player's hand to its type's discard
// pile. Discard piles are global, not per player.
func (m *Manager) Discard(playerID, cardID, reason string) error {
	card, ok := m.provider.GetCardByID(cardID)
	if !ok {
		return fmt.Errorf("discard: card %s not found in content tables", cardID)
	}

	var discardErr error
	m.store.Update(func(gs *state.GameState) {
		p := gs.FindPlayer(playerID)
		if p == nil {
			discardErr = fmt.Errorf("discard: player %s not found", playerID)
			return
		}
		if !removeFromHand(p, cardID) {
			discardErr = fmt.Errorf("discard: card %s is not in player %s's hand", cardID, playerID)
			return
		}
		gs.DiscardPiles[card.Type] = append(gs.DiscardPiles[card.Type], cardID)
		m.recomputeScope(p)

		gs.AppendLog(state.ActionLogEntry{
			ID:          uuid.NewString(),
			Type:        "card_discard",
			PlayerID:    p.ID,
			PlayerName:  p.Name,
			Description: fmt.Sprintf("discarded %s (%s)", card.Name, reason),
			Visibility:  state.LogVisibilityPublic,
		})
	})
	if discardErr != nil {
		return discardErr
	}
	m.publish(rules.Event{Type: rules.EventCardDiscarded, PlayerID: playerID, CardID: cardID})
	return nil
}

// Transfer moves a card from one player's hand to another's.
func (m *Manager) Transfer(fromPlayerID, toPlayerID, cardID string) error {
	var transferErr error
	m.store.Update(func(gs *state.GameState) {
		from := gs.FindPlayer(fromPlayerID)
		to := gs.FindPlayer(toPlayerID)
		if from == nil || to == nil {
			transferErr = fmt.Errorf("transfer: player not found (%s -> %s)", fromPlayerID, toPlayerID)
			return
		}
		if !removeFromHand(from, cardID) {
			transferErr = fmt.Errorf("transfer: card %s is not in player %s's hand", cardID, fromPlayerID)
			return
		}
		to.Hand = append(to.Hand, cardID)
		m.recomputeScope(from)
		m.recomputeScope(to)

		gs.AppendLog(state.ActionLogEntry{
			ID:          uuid.NewString(),
			Type:        "card_transfer",
			PlayerID:    from.ID,
			PlayerName:  from.Name,
			Description: fmt.Sprintf("gave card %s to %s", cardID, to.Name),
			Visibility:  state.LogVisibilityPublic,
		})
	})
	if transferErr != nil {
		return transferErr
	}
	m.publish(rules.Event{Type: rules.EventCardTransferred, PlayerID: fromPlayerID, CardID: cardID})
	return nil
}

// EndOfTurnSweep moves every active card whose expiration turn has been
// reached into its discard pile, logging each expiration individually.
func (m *Manager) EndOfTurnSweep() {
	type expired struct {
		playerID string
		cardID   string
	}
	var swept []expired

	m.store.Update(func(gs *state.GameState) {
		for i := range gs.Players {
			p := &gs.Players[i]
			kept := p.ActiveCards[:0]
			for _, ac := range p.ActiveCards {
				if ac.ExpirationTurn > gs.Turn {
					kept = append(kept, ac)
					continue
				}
				card, ok := m.provider.GetCardByID(ac.CardID)
				if !ok {
					// Card missing from content tables is an invariant
					// violation; keep it rather than lose it.
					kept = append(kept, ac)
					continue
				}
				gs.DiscardPiles[card.Type] = append(gs.DiscardPiles[card.Type], ac.CardID)
				swept = append(swept, expired{playerID: p.ID, cardID: ac.CardID})
				gs.AppendLog(state.ActionLogEntry{
					ID:          uuid.NewString(),
					Type:        "card_expired",
					PlayerID:    p.ID,
					PlayerName:  p.Name,
					Description: fmt.Sprintf("%s expired", card.Name),
					Visibility:  state.LogVisibilityPublic,
				})
			}
			p.ActiveCards = kept
		}
	})

	for _, e := range swept {
		m.logger.Info("active card expired",
			zap.String("player_id", e.playerID),
			zap.String("card_id", e.cardID),
		)
		m.publish(rules.Event{Type: rules.EventCardExpired, PlayerID: e.playerID, CardID: e.cardID})
	}
}

// OwnsCard reports whether the player holds the card in hand or in
// their active-card list.
func (m *Manager) OwnsCard(playerID, cardID string) bool {
	gs := m.store.Get()
	p := gs.FindPlayer(playerID)
	if p == nil {
		return false
	}
	for _, id := range p.Hand {
		if id == cardID {
			return true
		}
	}
	for _, ac := range p.ActiveCards {
		if ac.CardID == cardID {
			return true
		}
	}
	return false
}

// FindCardAnywhere locates a card across every hand, active list, deck,
// and discard pile.
func (m *Manager) FindCardAnywhere(cardID string) (CardLocation, string) {
	gs := m.store.Get()
	for _, p := range gs.Players {
		for _, id := range p.Hand {
			if id == cardID {
				return LocationHand, p.ID
			}
		}
		for _, ac := range p.ActiveCards {
			if ac.CardID == cardID {
				return LocationActive, p.ID
			}
		}
	}
	for t, deck := range gs.Decks {
		for _, id := range deck {
			if id == cardID {
				return LocationDeck, string(t)
			}
		}
	}
	for t, pile := range gs.DiscardPiles {
		for _, id := range pile {
			if id == cardID {
				return LocationDiscard, string(t)
			}
		}
	}
	return LocationUnknown, ""
}

// recomputeScope rederives the player's project scope from the work
// cards in their hand. Derived bookkeeping, never set directly.
func (m *Manager) recomputeScope(p *state.Player) {
	scope := 0
	for _, id := range p.Hand {
		if card, ok := m.provider.GetCardByID(id); ok && card.Type == content.CardTypeWork {
			scope += card.Cost
		}
	}
	p.ProjectScope = scope
}

func (m *Manager) publish(event rules.Event) {
	if m.bus != nil {
		m.bus.Publish(event)
	}
}

func removeFromHand(p *state.Player, cardID string) bool {
	for i, id := range p.Hand {
		if id == cardID {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}
