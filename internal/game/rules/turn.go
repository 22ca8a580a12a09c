package rules

import (
	"fmt"
	"strings"
)

// TurnStep represents the stages a single player turn passes through.
type TurnStep int

const (
	StepSpaceEntry TurnStep = iota
	StepRequiredActions
	StepMovementConfirmation
	StepEndTurn
)

var stepNames = map[TurnStep]string{
	StepSpaceEntry:           "SPACE_ENTRY",
	StepRequiredActions:      "REQUIRED_ACTIONS",
	StepMovementConfirmation: "MOVEMENT_CONFIRMATION",
	StepEndTurn:              "END_TURN",
}

func (s TurnStep) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STEP_%d", int(s))
}

var turnSequence = []TurnStep{
	StepSpaceEntry,
	StepRequiredActions,
	StepMovementConfirmation,
	StepEndTurn,
}

// TurnTracker tracks the current player, turn number, and step
// progression through the fixed per-turn sequence.
type TurnTracker struct {
	orderIndex    int
	turnNumber    int
	currentPlayer string
}

// NewTurnTracker creates a tracker initialized at turn 1, space entry.
func NewTurnTracker(currentPlayer string) *TurnTracker {
	return &TurnTracker{
		orderIndex:    0,
		turnNumber:    1,
		currentPlayer: strings.TrimSpace(currentPlayer),
	}
}

// CurrentStep returns the step currently in progress.
func (tt *TurnTracker) CurrentStep() TurnStep {
	return turnSequence[tt.orderIndex]
}

// TurnNumber returns the current turn number (1-based).
func (tt *TurnTracker) TurnNumber() int {
	return tt.turnNumber
}

// CurrentPlayer returns the player whose turn it is.
func (tt *TurnTracker) CurrentPlayer() string {
	return tt.currentPlayer
}

// AdvanceStep advances to the next step of the turn. When the end of
// the sequence is reached, the turn number is incremented and the
// current player is rotated to nextPlayer if provided.
func (tt *TurnTracker) AdvanceStep(nextPlayer string) TurnStep {
	tt.orderIndex++
	if tt.orderIndex >= len(turnSequence) {
		tt.orderIndex = 0
		tt.turnNumber++
		if next := strings.TrimSpace(nextPlayer); next != "" {
			tt.currentPlayer = next
		}
	}
	return tt.CurrentStep()
}

// BeginTurn resets the tracker to the start of the turn for player
// without incrementing the turn number. Used when a turn is retaken
// after a Try Again revert.
func (tt *TurnTracker) BeginTurn(player string) {
	tt.orderIndex = 0
	if p := strings.TrimSpace(player); p != "" {
		tt.currentPlayer = p
	}
}
