package content

// CardType identifies one of the five card decks.
type CardType string

const (
	CardTypeWork      CardType = "W"
	CardTypeBankLoan  CardType = "B"
	CardTypeInvestor  CardType = "I"
	CardTypeLifeEvent CardType = "L"
	CardTypeExpeditor CardType = "E"
)

// AllCardTypes is the canonical deck ordering used for iteration and setup.
var AllCardTypes = []CardType{
	CardTypeWork,
	CardTypeBankLoan,
	CardTypeInvestor,
	CardTypeLifeEvent,
	CardTypeExpeditor,
}

// IsValidCardType reports whether t is one of the five known card types.
func IsValidCardType(t CardType) bool {
	switch t {
	case CardTypeWork, CardTypeBankLoan, CardTypeInvestor, CardTypeLifeEvent, CardTypeExpeditor:
		return true
	}
	return false
}

// VisitType distinguishes a player's first arrival at a space from
// later ones. Movement rules and space effects are keyed by it.
type VisitType string

const (
	VisitFirst      VisitType = "First"
	VisitSubsequent VisitType = "Subsequent"
)

// MovementKind is the topology tag of a space's movement rule.
type MovementKind string

const (
	MovementFixed  MovementKind = "fixed"
	MovementChoice MovementKind = "choice"
	MovementDice   MovementKind = "dice"
	MovementLogic  MovementKind = "logic"
	MovementNone   MovementKind = "none"
)

// ConditionKind is one of the fixed logic-movement condition tags.
// The vocabulary is closed; new operators are not expected.
type ConditionKind string

const (
	ConditionAlways      ConditionKind = "always"
	ConditionScopeLE     ConditionKind = "scope_le"
	ConditionScopeGT     ConditionKind = "scope_gt"
	ConditionMoneyLE     ConditionKind = "money_le"
	ConditionMoneyGT     ConditionKind = "money_gt"
	ConditionTimeLE      ConditionKind = "time_le"
	ConditionTimeGT      ConditionKind = "time_gt"
	ConditionCardCountGE ConditionKind = "cards_ge"
)

// LogicCondition pairs a condition tag with its threshold value.
type LogicCondition struct {
	Kind      ConditionKind
	Threshold int
}

// MovementRule describes how a player may leave a space for one visit type.
// Destinations holds up to five slots; for dice movement DiceDestinations
// holds the six die-face slots instead.
type MovementRule struct {
	Space            string
	VisitType        VisitType
	Kind             MovementKind
	Destinations     [5]string
	Conditions       [5]LogicCondition
	DiceDestinations [6]string
}

// SpaceConfig is the static configuration of a single board space.
type SpaceConfig struct {
	Name             string
	Phase            string
	IsStartingSpace  bool
	IsEndingSpace    bool
	MinPlayers       int
	RequiresDiceRoll bool
	CanNegotiate     bool
	IsLockedPath     bool
	ActionText       string
}

// SpaceEffect is one row of the space/dice effect table.
type SpaceEffect struct {
	Space       string
	VisitType   VisitType
	EffectType  string // "money", "time", "cards", "money_percent"
	CardType    CardType
	Value       int
	Condition   string
	TriggerType string // "auto" or "manual"
}

// DiceOutcomeRow maps die faces 1..6 to outcomes for a space and visit
// type. Outcome text may be a destination, a card draw instruction, or a
// time value depending on the space's effect table.
type DiceOutcomeRow struct {
	Space     string
	VisitType VisitType
	Rolls     [6]string
}

// TargetRule selects which players a card effect applies to.
type TargetRule string

const (
	TargetSelf                 TargetRule = "Self"
	TargetAllPlayers           TargetRule = "All Players"
	TargetAllPlayersExceptSelf TargetRule = "All Players-Self"
	TargetChooseOpponent       TargetRule = "Choose Opponent"
	TargetChooseOnePlayer      TargetRule = "Choose Player"
)

// Card is a single immutable card definition.
type Card struct {
	ID          string
	Name        string
	Type        CardType
	Description string
	Cost        int
	Phase       string // phase restriction, "Any" when unrestricted
	Duration    int    // turns the card stays active; 0 discards on play

	// Declarative effect fields translated into effect descriptors.
	MoneyEffect      int
	TimeEffect       int
	LoanAmount       int
	InvestmentAmount int
	WorkCost         int
	DrawCount        int
	DrawCardType     CardType
	DiscardCount     int
	DiscardCardType  CardType
	TargetRule       TargetRule
	MovementHook     string // destination space granted by the card, if any
}

// Provider exposes the static game content as immutable lookups. The
// engine never mutates content; implementations load once at startup.
type Provider interface {
	GetSpaceConfig(space string) (SpaceConfig, bool)
	GetMovement(space string, visit VisitType) (MovementRule, bool)
	GetDiceOutcome(space string, visit VisitType) (DiceOutcomeRow, bool)
	GetSpaceEffects(space string, visit VisitType) []SpaceEffect
	GetCardByID(id string) (Card, bool)
	GetCardsByType(t CardType) []Card
	StartingSpace() string
	AllSpaces() []string
}
