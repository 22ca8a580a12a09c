package server

import (
	"github.com/buildboard/engine-server-go/internal/game/content"
	"github.com/buildboard/engine-server-go/internal/game/state"
)

// GameView is the client-facing snapshot of game state.
type GameView struct {
	GameID          string          `json:"game_id"`
	Phase           string          `json:"phase"`
	Turn            int             `json:"turn"`
	GameRound       int             `json:"game_round"`
	CurrentPlayerID string          `json:"current_player_id"`
	Players         []PlayerView    `json:"players"`
	DeckCounts      map[string]int  `json:"deck_counts"`
	DiscardCounts   map[string]int  `json:"discard_counts"`
	AwaitingChoice  *ChoiceView     `json:"awaiting_choice,omitempty"`
	RequiredActions int             `json:"required_actions"`
	CompletedCount  int             `json:"completed_action_count"`
	HasRolledDice   bool            `json:"has_rolled_dice"`
	LastDiceRoll    int             `json:"last_dice_roll,omitempty"`
	HasMoved        bool            `json:"has_moved"`
	ActionLog       []ActionLogView `json:"action_log"`
}

// PlayerView is the client-facing view of one player.
type PlayerView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Color        string   `json:"color"`
	CurrentSpace string   `json:"current_space"`
	VisitType    string   `json:"visit_type"`
	Money        int      `json:"money"`
	TimeSpent    int      `json:"time_spent"`
	ProjectScope int      `json:"project_scope"`
	LoanAmount   int      `json:"loan_amount"`
	HandCount    int      `json:"hand_count"`
	Hand         []string `json:"hand"`
	ActiveCards  []string `json:"active_cards"`
	Visited      []string `json:"visited_spaces"`
}

// ChoiceView is the client-facing view of a pending choice.
type ChoiceView struct {
	ID       string             `json:"id"`
	PlayerID string             `json:"player_id"`
	Type     string             `json:"type"`
	Prompt   string             `json:"prompt"`
	Options  []ChoiceOptionView `json:"options"`
}

// ChoiceOptionView is one selectable option.
type ChoiceOptionView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ActionLogView is one public log entry.
type ActionLogView struct {
	Type        string `json:"type"`
	PlayerName  string `json:"player_name,omitempty"`
	Description string `json:"description"`
	Turn        int    `json:"turn"`
}

// NewGameView projects a state snapshot into the client view. Debug and
// system log tiers are filtered out.
func NewGameView(gs state.GameState) GameView {
	view := GameView{
		GameID:          gs.GameID,
		Phase:           string(gs.Phase),
		Turn:            gs.Turn,
		GameRound:       gs.GameRound,
		CurrentPlayerID: gs.CurrentPlayerID,
		DeckCounts:      make(map[string]int, len(content.AllCardTypes)),
		DiscardCounts:   make(map[string]int, len(content.AllCardTypes)),
		RequiredActions: gs.RequiredActions,
		CompletedCount:  gs.CompletedActionCount,
		HasRolledDice:   gs.HasRolledDice,
		LastDiceRoll:    gs.LastDiceRoll,
		HasMoved:        gs.HasMoved,
	}

	for _, t := range content.AllCardTypes {
		view.DeckCounts[string(t)] = len(gs.Decks[t])
		view.DiscardCounts[string(t)] = len(gs.DiscardPiles[t])
	}

	for _, p := range gs.Players {
		active := make([]string, len(p.ActiveCards))
		for i, ac := range p.ActiveCards {
			active[i] = ac.CardID
		}
		view.Players = append(view.Players, PlayerView{
			ID:           p.ID,
			Name:         p.Name,
			Color:        p.Color,
			CurrentSpace: p.CurrentSpace,
			VisitType:    string(p.VisitType),
			Money:        p.Money,
			TimeSpent:    p.TimeSpent,
			ProjectScope: p.ProjectScope,
			LoanAmount:   p.LoanAmount,
			HandCount:    len(p.Hand),
			Hand:         p.Hand,
			ActiveCards:  active,
			Visited:      p.VisitedSpaces,
		})
	}

	if gs.AwaitingChoice != nil {
		cv := &ChoiceView{
			ID:       gs.AwaitingChoice.ID,
			PlayerID: gs.AwaitingChoice.PlayerID,
			Type:     string(gs.AwaitingChoice.Type),
			Prompt:   gs.AwaitingChoice.Prompt,
		}
		for _, opt := range gs.AwaitingChoice.Options {
			cv.Options = append(cv.Options, ChoiceOptionView{ID: opt.ID, Label: opt.Label})
		}
		view.AwaitingChoice = cv
	}

	for _, entry := range gs.ActionLog {
		if entry.Visibility != state.LogVisibilityPublic {
			continue
		}
		view.ActionLog = append(view.ActionLog, ActionLogView{
			Type:        entry.Type,
			PlayerName:  entry.PlayerName,
			Description: entry.Description,
			Turn:        entry.Turn,
		})
	}

	return view
}
