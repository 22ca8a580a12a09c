package state

import (
	"time"

	"github.com/buildboard/engine-server-go/internal/game/content"
)

// GamePhase is the coarse lifecycle phase of the game.
type GamePhase string

const (
	PhaseSetup GamePhase = "SETUP"
	PhasePlay  GamePhase = "PLAY"
	PhaseEnd   GamePhase = "END"
)

// ChoiceType categorizes a pending interactive decision.
type ChoiceType string

const (
	ChoiceMovement        ChoiceType = "MOVEMENT"
	ChoiceTargetSelection ChoiceType = "TARGET_SELECTION"
	ChoiceCardAction      ChoiceType = "CARD_ACTION"
	ChoiceGeneral         ChoiceType = "GENERAL"
)

// ChoiceOption is one selectable option of a pending choice. IDs are
// unique within the choice.
type ChoiceOption struct {
	ID    string
	Label string
}

// Choice is the durable record of a pending interactive decision. The
// continuation waiting on it lives in the choice broker, keyed by ID.
type Choice struct {
	ID        string
	PlayerID  string
	Type      ChoiceType
	Prompt    string
	Options   []ChoiceOption
	Metadata  map[string]string
	CreatedAt time.Time
}

// ActiveCard is a played card with a duration, tracked until the
// absolute turn number at which it expires.
type ActiveCard struct {
	CardID         string
	ExpirationTurn int
}

// Player holds all per-player state.
type Player struct {
	ID    string
	Name  string
	Color string

	CurrentSpace string
	VisitType    content.VisitType
	// VisitedSpaces is monotonic: entries are never removed, including
	// across snapshot reverts.
	VisitedSpaces []string

	Money        int
	TimeSpent    int
	ProjectScope int
	LoanAmount   int

	Hand        []string
	ActiveCards []ActiveCard

	// PathMemory records irrevocable branch decisions keyed by the
	// locked-path space name.
	PathMemory map[string]string
}

// HasVisited reports whether the player has recorded space in their
// visit history.
func (p *Player) HasVisited(space string) bool {
	for _, s := range p.VisitedSpaces {
		if s == space {
			return true
		}
	}
	return false
}

// LogVisibility is the audience tier of an action log entry.
type LogVisibility string

const (
	LogVisibilityPublic LogVisibility = "public"
	LogVisibilitySystem LogVisibility = "system"
	LogVisibilityDebug  LogVisibility = "debug"
)

// ActionLogEntry is one append-only entry of the global action log.
type ActionLogEntry struct {
	ID          string
	Type        string
	PlayerID    string
	PlayerName  string
	Description string
	GameRound   int
	Turn        int
	Visibility  LogVisibility
	Timestamp   time.Time
}

// PlayerSnapshot captures the rollback-eligible slice of state for one
// player, tagged with the space it was taken on. Decks and discard
// piles are included because cards drawn after the snapshot must return
// on revert. VisitedSpaces is captured for completeness but the current
// set always wins on revert.
type PlayerSnapshot struct {
	SpaceName string
	TakenAt   time.Time

	CurrentSpace string
	VisitType    content.VisitType
	Money        int
	TimeSpent    int
	ProjectScope int
	LoanAmount   int
	Hand         []string
	ActiveCards  []ActiveCard

	Decks        map[content.CardType][]string
	DiscardPiles map[content.CardType][]string
}

// GameState is the single mutable root. It is replaced wholesale on
// every change and never aliased across updates: all reads go through
// Container.Get, which returns a deep copy.
type GameState struct {
	GameID string

	Players         []Player
	CurrentPlayerID string
	Phase           GamePhase

	// Turn counts individual player turns; GameRound increments when
	// the rotation wraps back to the first player.
	Turn      int
	GameRound int

	Decks        map[content.CardType][]string
	DiscardPiles map[content.CardType][]string

	AwaitingChoice *Choice

	// Per-turn action bookkeeping, recomputed after every mutation that
	// affects action eligibility. Never settable independently.
	RequiredActions      int
	CompletedActionCount int
	HasRolledDice        bool
	LastDiceRoll         int
	HasMoved             bool
	SelectedDestination  string

	PlayerSnapshots map[string]*PlayerSnapshot

	ActionLog []ActionLogEntry
}

// FindPlayer returns a pointer to the player with the given ID within
// this state value, or nil. The pointer is only valid inside a single
// Update callback.
func (gs *GameState) FindPlayer(id string) *Player {
	for i := range gs.Players {
		if gs.Players[i].ID == id {
			return &gs.Players[i]
		}
	}
	return nil
}

// CurrentPlayer returns the player whose turn it is, or nil.
func (gs *GameState) CurrentPlayer() *Player {
	return gs.FindPlayer(gs.CurrentPlayerID)
}

// AppendLog appends an entry to the global action log.
func (gs *GameState) AppendLog(entry ActionLogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.GameRound = gs.GameRound
	entry.Turn = gs.Turn
	gs.ActionLog = append(gs.ActionLog, entry)
}

// Clone produces a deep copy of the state.
func (gs *GameState) Clone() GameState {
	out := *gs

	out.Players = make([]Player, len(gs.Players))
	for i, p := range gs.Players {
		out.Players[i] = clonePlayer(p)
	}

	out.Decks = cloneCardMap(gs.Decks)
	out.DiscardPiles = cloneCardMap(gs.DiscardPiles)

	if gs.AwaitingChoice != nil {
		c := *gs.AwaitingChoice
		c.Options = append([]ChoiceOption(nil), gs.AwaitingChoice.Options...)
		c.Metadata = cloneStringMap(gs.AwaitingChoice.Metadata)
		out.AwaitingChoice = &c
	}

	out.PlayerSnapshots = make(map[string]*PlayerSnapshot, len(gs.PlayerSnapshots))
	for id, snap := range gs.PlayerSnapshots {
		if snap == nil {
			continue
		}
		s := *snap
		s.Hand = append([]string(nil), snap.Hand...)
		s.ActiveCards = append([]ActiveCard(nil), snap.ActiveCards...)
		s.Decks = cloneCardMap(snap.Decks)
		s.DiscardPiles = cloneCardMap(snap.DiscardPiles)
		out.PlayerSnapshots[id] = &s
	}

	out.ActionLog = append([]ActionLogEntry(nil), gs.ActionLog...)

	return out
}

func clonePlayer(p Player) Player {
	p.VisitedSpaces = append([]string(nil), p.VisitedSpaces...)
	p.Hand = append([]string(nil), p.Hand...)
	p.ActiveCards = append([]ActiveCard(nil), p.ActiveCards...)
	p.PathMemory = cloneStringMap(p.PathMemory)
	return p
}

func cloneCardMap(m map[content.CardType][]string) map[content.CardType][]string {
	out := make(map[content.CardType][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
