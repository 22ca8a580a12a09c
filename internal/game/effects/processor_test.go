package effects

import (
	"context"
	"math/rand"
	"testing"

	"github.com/buildboard/engine-server-go/internal/game/content"
	"github.com/buildboard/engine-server-go/internal/game/deck"
	"github.com/buildboard/engine-server-go/internal/game/rules"
	"github.com/buildboard/engine-server-go/internal/game/state"
	"github.com/buildboard/engine-server-go/internal/game/targeting"
)

func newTestProcessor(t *testing.T) (*Processor, *state.Container) {
	t.Helper()
	provider := content.NewMemoryProvider(
		[]content.SpaceConfig{{Name: "START"}, {Name: "REG-DOB-AUDIT"}},
		nil, nil, nil,
		[]content.Card{
			{ID: "E001", Name: "Permit Runner", Type: content.CardTypeExpeditor},
			{ID: "E002", Name: "Inspector Friend", Type: content.CardTypeExpeditor},
			{ID: "L001", Name: "Strike", Type: content.CardTypeLifeEvent},
		},
	)
	players := []state.Player{
		{ID: "p1", Name: "Alice", CurrentSpace: "START", VisitedSpaces: []string{"START"},
			Money: 1000, Hand: []string{}, PathMemory: map[string]string{}},
		{ID: "p2", Name: "Bob", CurrentSpace: "START", VisitedSpaces: []string{"START"},
			Money: 1000, Hand: []string{}, PathMemory: map[string]string{}},
	}
	store := state.NewContainer(state.GameState{}, nil)
	rng := rand.New(rand.NewSource(7))
	decks := deck.NewManager(store, provider, rules.NewEventBus(), rng, nil)
	store.Reset(state.NewGameState("g", players, decks.BuildDecks()))
	targets := targeting.NewResolver(store, nil)
	return NewProcessor(store, decks, targets, provider, nil), store
}

func TestApplyResourceChange(t *testing.T) {
	pr, store := newTestProcessor(t)

	err := pr.Apply(context.Background(), []Effect{{
		Key: "k1", Kind: KindResourceChange, PlayerID: "p1",
		TargetRule: content.TargetSelf, Amount: -300, Source: "test",
	}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	gs := store.Get()
	if got := gs.FindPlayer("p1").Money; got != 700 {
		t.Errorf("Expected money 700, got %d", got)
	}
}

func TestApplyIsIdempotentPerKey(t *testing.T) {
	pr, store := newTestProcessor(t)

	effect := Effect{
		Key: "once", Kind: KindTimeChange, PlayerID: "p1",
		TargetRule: content.TargetSelf, Amount: 5, Source: "test",
	}
	if err := pr.Apply(context.Background(), []Effect{effect}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := pr.Apply(context.Background(), []Effect{effect}); err != nil {
		t.Fatalf("Second apply failed: %v", err)
	}

	gs := store.Get()
	if got := gs.FindPlayer("p1").TimeSpent; got != 5 {
		t.Errorf("Expected a single application (time 5), got %d", got)
	}
}

func TestResetAllowsReapplication(t *testing.T) {
	pr, store := newTestProcessor(t)

	effect := Effect{
		Key: "again", Kind: KindTimeChange, PlayerID: "p1",
		TargetRule: content.TargetSelf, Amount: 2, Source: "test",
	}
	if err := pr.Apply(context.Background(), []Effect{effect}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	pr.Reset()
	if err := pr.Apply(context.Background(), []Effect{effect}); err != nil {
		t.Fatalf("Apply after reset failed: %v", err)
	}

	gs := store.Get()
	if got := gs.FindPlayer("p1").TimeSpent; got != 4 {
		t.Errorf("Expected two applications after reset (time 4), got %d", got)
	}
}

func TestApplyToAllPlayers(t *testing.T) {
	pr, store := newTestProcessor(t)

	err := pr.Apply(context.Background(), []Effect{{
		Key: "all", Kind: KindResourceChange, PlayerID: "p1",
		TargetRule: content.TargetAllPlayers, Amount: 100, Source: "test",
	}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	gs := store.Get()
	for _, id := range []string{"p1", "p2"} {
		if got := gs.FindPlayer(id).Money; got != 1100 {
			t.Errorf("Expected %s money 1100, got %d", id, got)
		}
	}
}

func TestLoanChangeAdjustsPrincipalAndMoney(t *testing.T) {
	pr, store := newTestProcessor(t)

	err := pr.Apply(context.Background(), []Effect{{
		Key: "loan", Kind: KindLoanChange, PlayerID: "p1",
		TargetRule: content.TargetSelf, Amount: 25000, Source: "test",
	}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	gs := store.Get()
	p := gs.FindPlayer("p1")
	if p.LoanAmount != 25000 {
		t.Errorf("Expected loan 25000, got %d", p.LoanAmount)
	}
	if p.Money != 26000 {
		t.Errorf("Expected money 26000, got %d", p.Money)
	}
}

func TestCardDrawEffect(t *testing.T) {
	pr, store := newTestProcessor(t)

	err := pr.Apply(context.Background(), []Effect{{
		Key: "draw", Kind: KindCardDraw, PlayerID: "p1",
		TargetRule: content.TargetSelf, Amount: 1, CardType: content.CardTypeExpeditor, Source: "test",
	}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	gs := store.Get()
	if got := len(gs.FindPlayer("p1").Hand); got != 1 {
		t.Errorf("Expected 1 card in hand, got %d", got)
	}
}

func TestDiscardSkipsPlayersWithoutMatchingCards(t *testing.T) {
	pr, store := newTestProcessor(t)

	store.Update(func(gs *state.GameState) {
		p := gs.FindPlayer("p1")
		p.Hand = []string{"E001"}
		// pull E001 out of the deck so it is not duplicated
		deck := gs.Decks[content.CardTypeExpeditor]
		kept := deck[:0]
		for _, id := range deck {
			if id != "E001" {
				kept = append(kept, id)
			}
		}
		gs.Decks[content.CardTypeExpeditor] = kept
	})

	// p2's hand is empty; the all-players discard must not fail on them.
	err := pr.Apply(context.Background(), []Effect{{
		Key: "disc", Kind: KindCardDiscard, PlayerID: "p1",
		TargetRule: content.TargetAllPlayers, Amount: 1, CardType: content.CardTypeExpeditor, Source: "test",
	}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	gs := store.Get()
	if len(gs.FindPlayer("p1").Hand) != 0 {
		t.Errorf("Expected p1's expeditor discarded, hand=%v", gs.FindPlayer("p1").Hand)
	}
	found := false
	for _, id := range gs.DiscardPiles[content.CardTypeExpeditor] {
		if id == "E001" {
			found = true
		}
	}
	if !found {
		t.Error("Expected E001 in the discard pile")
	}
}

func TestMovementHookRelocates(t *testing.T) {
	pr, store := newTestProcessor(t)

	err := pr.Apply(context.Background(), []Effect{{
		Key: "hook", Kind: KindMovementHook, PlayerID: "p1",
		TargetRule: content.TargetSelf, Destination: "REG-DOB-AUDIT", Source: "card:E001",
	}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	gs := store.Get()
	p := gs.FindPlayer("p1")
	if p.CurrentSpace != "REG-DOB-AUDIT" {
		t.Errorf("Expected player relocated, got %s", p.CurrentSpace)
	}
	if p.VisitType != content.VisitFirst {
		t.Errorf("Expected First visit on a new space, got %s", p.VisitType)
	}
	if !p.HasVisited("REG-DOB-AUDIT") {
		t.Error("Expected relocation recorded in visit history")
	}
}

func TestApplyUnknownKind(t *testing.T) {
	pr, _ := newTestProcessor(t)
	err := pr.Apply(context.Background(), []Effect{{
		Key: "bad", Kind: "EXPLODE", PlayerID: "p1", TargetRule: content.TargetSelf,
	}})
	if err == nil {
		t.Error("Expected error for unknown effect kind")
	}
}
