// Package effects defines the standardized effect descriptors derived
// from card and space data, and the processor that applies them.
package effects

import (
	"fmt"

	"github.com/buildboard/engine-server-go/internal/game/content"
)

// Kind is the fixed vocabulary of effect kinds.
type Kind string

const (
	KindResourceChange Kind = "RESOURCE_CHANGE"
	KindTimeChange     Kind = "TIME_CHANGE"
	KindCardDraw       Kind = "CARD_DRAW"
	KindCardDiscard    Kind = "CARD_DISCARD"
	KindMovementHook   Kind = "MOVEMENT_HOOK"
	KindLoanChange     Kind = "LOAN_CHANGE"
)

// Effect is one standardized effect descriptor. Key makes retried
// application idempotent: a processor applies each key at most once.
type Effect struct {
	Key        string
	Kind       Kind
	PlayerID   string
	TargetRule content.TargetRule
	CardType   content.CardType
	Amount     int
	// Destination is the space granted by a movement hook.
	Destination string
	Source      string
}

// FromCard translates a card's declarative fields into standardized
// effect descriptors for the processor. The legacy per-category
// mutations (loan principal, work cost) are the deck manager's job.
func FromCard(card content.Card, playerID string) []Effect {
	rule := card.TargetRule
	if rule == "" {
		rule = content.TargetSelf
	}

	var out []Effect
	add := func(kind Kind, e Effect) {
		e.Key = fmt.Sprintf("%s:%s:%s", card.ID, playerID, kind)
		e.Kind = kind
		e.PlayerID = playerID
		e.TargetRule = rule
		e.Source = "card:" + card.ID
		out = append(out, e)
	}

	if card.MoneyEffect != 0 {
		add(KindResourceChange, Effect{Amount: card.MoneyEffect})
	}
	if card.TimeEffect != 0 {
		add(KindTimeChange, Effect{Amount: card.TimeEffect})
	}
	if card.DrawCount > 0 {
		t := card.DrawCardType
		if t == "" {
			t = card.Type
		}
		add(KindCardDraw, Effect{Amount: card.DrawCount, CardType: t})
	}
	if card.DiscardCount > 0 {
		t := card.DiscardCardType
		if t == "" {
			t = card.Type
		}
		add(KindCardDiscard, Effect{Amount: card.DiscardCount, CardType: t})
	}
	if card.MovementHook != "" {
		add(KindMovementHook, Effect{Destination: card.MovementHook})
	}
	return out
}

// FromSpaceEffect translates one space/dice effect table row into a
// descriptor targeting the entering player.
func FromSpaceEffect(e content.SpaceEffect, playerID string) (Effect, bool) {
	base := Effect{
		Key:        fmt.Sprintf("space:%s:%s:%s:%s", e.Space, e.VisitType, e.EffectType, playerID),
		PlayerID:   playerID,
		TargetRule: content.TargetSelf,
		Source:     "space:" + e.Space,
	}
	switch e.EffectType {
	case "money":
		base.Kind = KindResourceChange
		base.Amount = e.Value
	case "time":
		base.Kind = KindTimeChange
		base.Amount = e.Value
	case "cards":
		base.Kind = KindCardDraw
		base.Amount = e.Value
		base.CardType = e.CardType
	case "discard":
		base.Kind = KindCardDiscard
		base.Amount = e.Value
		base.CardType = e.CardType
	default:
		return Effect{}, false
	}
	return base, true
}
