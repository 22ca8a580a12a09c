package deck

import (
	"math/rand"
	"testing"

	"github.com/buildboard/engine-server-go/internal/game/content"
	"github.com/buildboard/engine-server-go/internal/game/rules"
	"github.com/buildboard/engine-server-go/internal/game/state"
)

func testCards() []content.Card {
	return []content.Card{
		{ID: "W001", Name: "Foundation Work", Type: content.CardTypeWork, Cost: 100000, WorkCost: 500},
		{ID: "W002", Name: "Electrical Work", Type: content.CardTypeWork, Cost: 200000, WorkCost: 800},
		{ID: "B001", Name: "Small Loan", Type: content.CardTypeBankLoan, LoanAmount: 50000},
		{ID: "I001", Name: "Angel Investor", Type: content.CardTypeInvestor, InvestmentAmount: 100000},
		{ID: "E001", Name: "Permit Runner", Type: content.CardTypeExpeditor, TimeEffect: -2},
		{ID: "E002", Name: "Inspector Friend", Type: content.CardTypeExpeditor, Duration: 2},
		{ID: "L001", Name: "Strike", Type: content.CardTypeLifeEvent, TimeEffect: 5},
	}
}

func newTestManager(t *testing.T) (*Manager, *state.Container) {
	t.Helper()
	provider := content.NewMemoryProvider(nil, nil, nil, nil, testCards())
	players := []state.Player{
		{ID: "p1", Name: "Alice", Hand: []string{}, PathMemory: map[string]string{}},
		{ID: "p2", Name: "Bob", Hand: []string{}, PathMemory: map[string]string{}},
	}
	store := state.NewContainer(state.GameState{}, nil)
	rng := rand.New(rand.NewSource(42))
	m := NewManager(store, provider, rules.NewEventBus(), rng, nil)
	store.Reset(state.NewGameState("g", players, m.BuildDecks()))
	return m, store
}

func deckAndDiscardSize(gs state.GameState, t content.CardType) int {
	return len(gs.Decks[t]) + len(gs.DiscardPiles[t])
}

func TestBuildDecksContainsAllCards(t *testing.T) {
	_, store := newTestManager(t)
	gs := store.Get()

	if len(gs.Decks[content.CardTypeWork]) != 2 {
		t.Errorf("Expected 2 work cards, got %d", len(gs.Decks[content.CardTypeWork]))
	}
	if len(gs.Decks[content.CardTypeExpeditor]) != 2 {
		t.Errorf("Expected 2 expeditor cards, got %d", len(gs.Decks[content.CardTypeExpeditor]))
	}
	if len(gs.Decks[content.CardTypeLifeEvent]) != 1 {
		t.Errorf("Expected 1 life event card, got %d", len(gs.Decks[content.CardTypeLifeEvent]))
	}
}

func TestDrawMovesCardsToHand(t *testing.T) {
	m, store := newTestManager(t)

	drawn, err := m.Draw("p1", content.CardTypeWork, 2, "test", "setup")
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if len(drawn) != 2 {
		t.Fatalf("Expected 2 cards drawn, got %d", len(drawn))
	}

	gs := store.Get()
	p := gs.FindPlayer("p1")
	if len(p.Hand) != 2 {
		t.Errorf("Expected hand of 2, got %v", p.Hand)
	}
	if len(gs.Decks[content.CardTypeWork]) != 0 {
		t.Errorf("Expected empty work deck, got %v", gs.Decks[content.CardTypeWork])
	}
	// Scope derives from the work cards now in hand.
	if p.ProjectScope != 300000 {
		t.Errorf("Expected project scope 300000, got %d", p.ProjectScope)
	}
}

func TestDrawReshufflesDiscardIntoDeck(t *testing.T) {
	m, store := newTestManager(t)

	// Empty the expeditor deck into the discard pile.
	store.Update(func(gs *state.GameState) {
		gs.DiscardPiles[content.CardTypeExpeditor] = gs.Decks[content.CardTypeExpeditor]
		gs.Decks[content.CardTypeExpeditor] = []string{}
	})

	drawn, err := m.Draw("p1", content.CardTypeExpeditor, 1, "test", "reshuffle")
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if len(drawn) != 1 {
		t.Fatalf("Expected 1 card after reshuffle, got %d", len(drawn))
	}

	gs := store.Get()
	if len(gs.DiscardPiles[content.CardTypeExpeditor]) != 0 {
		t.Errorf("Expected discard pile emptied by reshuffle, got %v", gs.DiscardPiles[content.CardTypeExpeditor])
	}
	if len(gs.Decks[content.CardTypeExpeditor]) != 1 {
		t.Errorf("Expected 1 card left in deck, got %d", len(gs.Decks[content.CardTypeExpeditor]))
	}
}

func TestDrawPartialWhenExhausted(t *testing.T) {
	m, store := newTestManager(t)

	// Only one life event card exists; asking for three degrades to a
	// partial draw, not an error.
	drawn, err := m.Draw("p1", content.CardTypeLifeEvent, 3, "test", "exhaustion")
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if len(drawn) != 1 {
		t.Errorf("Expected partial draw of 1, got %d", len(drawn))
	}

	gs := store.Get()
	if total := deckAndDiscardSize(gs, content.CardTypeLifeEvent) + len(gs.FindPlayer("p1").Hand); total != 1 {
		t.Errorf("Card conservation violated: %d copies visible", total)
	}
}

func TestDrawValidation(t *testing.T) {
	m, _ := newTestManager(t)

	if _, err := m.Draw("", content.CardTypeWork, 1, "t", "r"); err == nil {
		t.Error("Expected error for empty player ID")
	}
	if _, err := m.Draw("p1", "X", 1, "t", "r"); err == nil {
		t.Error("Expected error for invalid card type")
	}
	if _, err := m.Draw("ghost", content.CardTypeWork, 1, "t", "r"); err == nil {
		t.Error("Expected error for unknown player")
	}
	drawn, err := m.Draw("p1", content.CardTypeWork, 0, "t", "r")
	if err != nil || len(drawn) != 0 {
		t.Errorf("Expected empty draw for count 0, got %v err=%v", drawn, err)
	}
}

func TestPlayBankLoanAddsMoneyAndPrincipal(t *testing.T) {
	m, store := newTestManager(t)

	store.Update(func(gs *state.GameState) {
		p := gs.FindPlayer("p1")
		p.Hand = append(p.Hand, "B001")
		gs.Decks[content.CardTypeBankLoan] = []string{}
	})

	if _, err := m.Play("p1", "B001"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	gs := store.Get()
	p := gs.FindPlayer("p1")
	if p.Money != 50000 {
		t.Errorf("Expected money 50000, got %d", p.Money)
	}
	if p.LoanAmount != 50000 {
		t.Errorf("Expected loan principal 50000, got %d", p.LoanAmount)
	}
	if len(gs.DiscardPiles[content.CardTypeBankLoan]) != 1 {
		t.Errorf("Expected played loan card discarded, got %v", gs.DiscardPiles[content.CardTypeBankLoan])
	}
}

func TestPlayWorkCardChargesCost(t *testing.T) {
	m, store := newTestManager(t)

	store.Update(func(gs *state.GameState) {
		p := gs.FindPlayer("p1")
		p.Money = 1000
		p.Hand = append(p.Hand, "W001")
	})

	if _, err := m.Play("p1", "W001"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	gs := store.Get()
	p := gs.FindPlayer("p1")
	if p.Money != 500 {
		t.Errorf("Expected money 500 after work cost, got %d", p.Money)
	}
	// The card left the hand, so it no longer contributes scope.
	if p.ProjectScope != 0 {
		t.Errorf("Expected scope 0 after playing the work card, got %d", p.ProjectScope)
	}
}

func TestPlayDurationCardActivates(t *testing.T) {
	m, store := newTestManager(t)

	store.Update(func(gs *state.GameState) {
		gs.Turn = 3
		gs.FindPlayer("p1").Hand = append(gs.FindPlayer("p1").Hand, "E002")
	})

	if _, err := m.Play("p1", "E002"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	gs := store.Get()
	p := gs.FindPlayer("p1")
	if len(p.ActiveCards) != 1 {
		t.Fatalf("Expected 1 active card, got %d", len(p.ActiveCards))
	}
	if p.ActiveCards[0].ExpirationTurn != 5 {
		t.Errorf("Expected expiration at turn 5, got %d", p.ActiveCards[0].ExpirationTurn)
	}
	if len(gs.DiscardPiles[content.CardTypeExpeditor]) != 0 {
		t.Error("Expected duration card not discarded on play")
	}
}

func TestPlayNotInHand(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.Play("p1", "E001"); err == nil {
		t.Error("Expected error playing a card not in hand")
	}
	if _, err := m.Play("p1", "UNKNOWN"); err == nil {
		t.Error("Expected error playing an unknown card")
	}
}

func TestEndOfTurnSweepExpiresCards(t *testing.T) {
	m, store := newTestManager(t)

	store.Update(func(gs *state.GameState) {
		gs.Turn = 5
		p := gs.FindPlayer("p1")
		p.ActiveCards = []state.ActiveCard{
			{CardID: "E002", ExpirationTurn: 5}, // due
			{CardID: "E001", ExpirationTurn: 7}, // not yet
		}
	})

	m.EndOfTurnSweep()

	gs := store.Get()
	p := gs.FindPlayer("p1")
	if len(p.ActiveCards) != 1 || p.ActiveCards[0].CardID != "E001" {
		t.Errorf("Expected only E001 to remain active, got %v", p.ActiveCards)
	}
	found := false
	for _, id := range gs.DiscardPiles[content.CardTypeExpeditor] {
		if id == "E002" {
			found = true
		}
	}
	if !found {
		t.Error("Expected E002 in the expeditor discard pile")
	}
}

func TestDiscardAndTransfer(t *testing.T) {
	m, store := newTestManager(t)

	store.Update(func(gs *state.GameState) {
		gs.FindPlayer("p1").Hand = []string{"E001", "L001"}
	})

	if err := m.Discard("p1", "E001", "test"); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if err := m.Transfer("p1", "p2", "L001"); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	gs := store.Get()
	if len(gs.FindPlayer("p1").Hand) != 0 {
		t.Errorf("Expected p1 hand empty, got %v", gs.FindPlayer("p1").Hand)
	}
	if h := gs.FindPlayer("p2").Hand; len(h) != 1 || h[0] != "L001" {
		t.Errorf("Expected p2 to hold L001, got %v", h)
	}
	if pile := gs.DiscardPiles[content.CardTypeExpeditor]; len(pile) != 1 || pile[0] != "E001" {
		t.Errorf("Expected E001 in discard pile, got %v", pile)
	}

	if err := m.Transfer("p1", "p2", "E001"); err == nil {
		t.Error("Expected error transferring a card p1 does not hold")
	}
}

func TestOwnsCardAndFindCardAnywhere(t *testing.T) {
	m, store := newTestManager(t)

	store.Update(func(gs *state.GameState) {
		p := gs.FindPlayer("p1")
		p.Hand = []string{"E001"}
		p.ActiveCards = []state.ActiveCard{{CardID: "E002", ExpirationTurn: 9}}
	})

	if !m.OwnsCard("p1", "E001") || !m.OwnsCard("p1", "E002") {
		t.Error("Expected p1 to own both hand and active cards")
	}
	if m.OwnsCard("p2", "E001") {
		t.Error("Expected p2 not to own E001")
	}

	if loc, owner := m.FindCardAnywhere("E001"); loc != LocationHand || owner != "p1" {
		t.Errorf("Expected E001 in p1's hand, got %s/%s", loc, owner)
	}
	if loc, owner := m.FindCardAnywhere("E002"); loc != LocationActive || owner != "p1" {
		t.Errorf("Expected E002 active for p1, got %s/%s", loc, owner)
	}
	if loc, _ := m.FindCardAnywhere("W001"); loc != LocationDeck {
		t.Errorf("Expected W001 in a deck, got %s", loc)
	}
	if loc, _ := m.FindCardAnywhere("NOPE"); loc != LocationUnknown {
		t.Errorf("Expected unknown location, got %s", loc)
	}
}

func TestCardConservationAcrossOperations(t *testing.T) {
	m, store := newTestManager(t)

	before := len(store.Get().Decks[content.CardTypeExpeditor])

	if _, err := m.Draw("p1", content.CardTypeExpeditor, 1, "t", "r"); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	gs := store.Get()
	drawnID := gs.FindPlayer("p1").Hand[0]
	if err := m.Discard("p1", drawnID, "t"); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}

	gs = store.Get()
	total := deckAndDiscardSize(gs, content.CardTypeExpeditor)
	for _, p := range gs.Players {
		total += len(p.Hand) + len(p.ActiveCards)
	}
	if total != before {
		t.Errorf("Card conservation violated: started with %d, now %d visible", before, total)
	}
}
