package server

import (
	"testing"

	"github.com/buildboard/engine-server-go/internal/game/content"
	"github.com/buildboard/engine-server-go/internal/game/state"
)

func viewFixture() state.GameState {
	players := []state.Player{
		{
			ID: "p1", Name: "Alice", Color: "#ff5733", CurrentSpace: "PERMIT-REVIEW",
			VisitType: content.VisitFirst, VisitedSpaces: []string{"START", "PERMIT-REVIEW"},
			Money: 9000, TimeSpent: 4, ProjectScope: 200000, LoanAmount: 50000,
			Hand: []string{"W001", "E001"},
			ActiveCards: []state.ActiveCard{
				{CardID: "E002", ExpirationTurn: 6},
			},
		},
		{
			ID: "p2", Name: "Bob", Color: "#33a1ff", CurrentSpace: "START",
			VisitType: content.VisitFirst, VisitedSpaces: []string{"START"},
			Money: 10000,
		},
	}
	decks := map[content.CardType][]string{
		content.CardTypeWork:      {"W002", "W003", "W004"},
		content.CardTypeExpeditor: {"E003"},
	}
	gs := state.NewGameState("game-view", players, decks)
	gs.Phase = state.PhasePlay
	gs.Turn = 4
	gs.GameRound = 2
	gs.RequiredActions = 2
	gs.CompletedActionCount = 1
	gs.HasRolledDice = true
	gs.LastDiceRoll = 5
	gs.DiscardPiles[content.CardTypeWork] = []string{"W005"}
	return gs
}

func TestNewGameViewProjection(t *testing.T) {
	gs := viewFixture()
	view := NewGameView(gs)

	if view.GameID != "game-view" || view.Phase != "PLAY" {
		t.Errorf("Expected game-view/PLAY, got %s/%s", view.GameID, view.Phase)
	}
	if view.Turn != 4 || view.GameRound != 2 {
		t.Errorf("Expected turn 4 round 2, got %d/%d", view.Turn, view.GameRound)
	}
	if view.CurrentPlayerID != "p1" {
		t.Errorf("Expected current player p1, got %s", view.CurrentPlayerID)
	}
	if view.RequiredActions != 2 || view.CompletedCount != 1 {
		t.Errorf("Expected actions 1/2, got %d/%d", view.CompletedCount, view.RequiredActions)
	}
	if !view.HasRolledDice || view.LastDiceRoll != 5 {
		t.Errorf("Expected dice roll 5 reflected, got %v/%d", view.HasRolledDice, view.LastDiceRoll)
	}

	if len(view.Players) != 2 {
		t.Fatalf("Expected 2 players, got %d", len(view.Players))
	}
	alice := view.Players[0]
	if alice.Name != "Alice" || alice.CurrentSpace != "PERMIT-REVIEW" {
		t.Errorf("Expected Alice on PERMIT-REVIEW, got %s on %s", alice.Name, alice.CurrentSpace)
	}
	if alice.HandCount != 2 || len(alice.Hand) != 2 {
		t.Errorf("Expected hand count 2, got %d", alice.HandCount)
	}
	if len(alice.ActiveCards) != 1 || alice.ActiveCards[0] != "E002" {
		t.Errorf("Expected active card E002, got %v", alice.ActiveCards)
	}
	if alice.LoanAmount != 50000 {
		t.Errorf("Expected loan 50000, got %d", alice.LoanAmount)
	}
}

func TestNewGameViewCounts(t *testing.T) {
	view := NewGameView(viewFixture())

	// Every card type appears in the counts, present in the state or not.
	if len(view.DeckCounts) != len(content.AllCardTypes) {
		t.Errorf("Expected %d deck counts, got %d", len(content.AllCardTypes), len(view.DeckCounts))
	}
	if view.DeckCounts["W"] != 3 {
		t.Errorf("Expected 3 work cards in deck, got %d", view.DeckCounts["W"])
	}
	if view.DeckCounts["E"] != 1 {
		t.Errorf("Expected 1 expeditor card in deck, got %d", view.DeckCounts["E"])
	}
	if view.DeckCounts["B"] != 0 {
		t.Errorf("Expected empty bank deck, got %d", view.DeckCounts["B"])
	}
	if view.DiscardCounts["W"] != 1 {
		t.Errorf("Expected 1 discarded work card, got %d", view.DiscardCounts["W"])
	}
}

func TestNewGameViewPendingChoice(t *testing.T) {
	gs := viewFixture()

	view := NewGameView(gs)
	if view.AwaitingChoice != nil {
		t.Error("Expected no choice in the view")
	}

	gs.AwaitingChoice = &state.Choice{
		ID:       "choice-1",
		PlayerID: "p1",
		Type:     state.ChoiceMovement,
		Prompt:   "Select your destination",
		Options: []state.ChoiceOption{
			{ID: "LEFT", Label: "LEFT"},
			{ID: "RIGHT", Label: "RIGHT"},
		},
	}
	view = NewGameView(gs)
	if view.AwaitingChoice == nil {
		t.Fatal("Expected the pending choice projected")
	}
	if view.AwaitingChoice.Type != "MOVEMENT" || len(view.AwaitingChoice.Options) != 2 {
		t.Errorf("Expected MOVEMENT choice with 2 options, got %s with %d",
			view.AwaitingChoice.Type, len(view.AwaitingChoice.Options))
	}
}

func TestNewGameViewFiltersNonPublicLog(t *testing.T) {
	gs := viewFixture()
	gs.ActionLog = []state.ActionLogEntry{
		{Type: "dice_roll", PlayerName: "Alice", Description: "rolled a 5", Visibility: state.LogVisibilityPublic, Turn: 4},
		{Type: "snapshot", Description: "snapshot captured", Visibility: state.LogVisibilitySystem, Turn: 4},
		{Type: "debug", Description: "internal trace", Visibility: state.LogVisibilityDebug, Turn: 4},
	}

	view := NewGameView(gs)
	if len(view.ActionLog) != 1 {
		t.Fatalf("Expected only the public entry, got %d entries", len(view.ActionLog))
	}
	if view.ActionLog[0].Description != "rolled a 5" {
		t.Errorf("Expected the dice roll entry, got %s", view.ActionLog[0].Description)
	}
}
