package content

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadDir builds a MemoryProvider from the CSV tables in dir:
// spaces.csv, movement.csv, dice.csv, space_effects.csv, cards.csv.
// Missing files are treated as empty tables so partial content sets
// (tests, tools) still load.
func LoadDir(dir string) (*MemoryProvider, error) {
	spaces, err := loadSpaces(filepath.Join(dir, "spaces.csv"))
	if err != nil {
		return nil, err
	}
	movement, err := loadMovement(filepath.Join(dir, "movement.csv"))
	if err != nil {
		return nil, err
	}
	dice, err := loadDice(filepath.Join(dir, "dice.csv"))
	if err != nil {
		return nil, err
	}
	effects, err := loadEffects(filepath.Join(dir, "space_effects.csv"))
	if err != nil {
		return nil, err
	}
	cards, err := loadCards(filepath.Join(dir, "cards.csv"))
	if err != nil {
		return nil, err
	}
	return NewMemoryProvider(spaces, movement, dice, effects, cards), nil
}

// readRows reads all data rows of a CSV file, skipping the header. A
// missing file yields zero rows.
func readRows(path string, minColumns int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	var rows [][]string
	for i, record := range records[1:] {
		if len(record) < minColumns {
			return nil, fmt.Errorf("%s row %d: expected at least %d columns, got %d", path, i+2, minColumns, len(record))
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true
	}
	return false
}

func loadSpaces(path string) ([]SpaceConfig, error) {
	rows, err := readRows(path, 9)
	if err != nil {
		return nil, err
	}
	out := make([]SpaceConfig, 0, len(rows))
	for _, row := range rows {
		out = append(out, SpaceConfig{
			Name:             strings.TrimSpace(row[0]),
			Phase:            strings.TrimSpace(row[1]),
			IsStartingSpace:  parseBool(row[2]),
			IsEndingSpace:    parseBool(row[3]),
			MinPlayers:       atoiOr(row[4], 0),
			RequiresDiceRoll: parseBool(row[5]),
			CanNegotiate:     parseBool(row[6]),
			IsLockedPath:     parseBool(row[7]),
			ActionText:       strings.TrimSpace(row[8]),
		})
	}
	return out, nil
}

func loadMovement(path string) ([]MovementRule, error) {
	// space, visit_type, kind, dest_1..dest_5, cond_1..cond_5, dice_1..dice_6
	rows, err := readRows(path, 13)
	if err != nil {
		return nil, err
	}
	out := make([]MovementRule, 0, len(rows))
	for _, row := range rows {
		rule := MovementRule{
			Space:     strings.TrimSpace(row[0]),
			VisitType: VisitType(strings.TrimSpace(row[1])),
			Kind:      MovementKind(strings.TrimSpace(row[2])),
		}
		for i := 0; i < 5; i++ {
			rule.Destinations[i] = strings.TrimSpace(row[3+i])
			rule.Conditions[i] = parseCondition(row[8+i])
		}
		if len(row) >= 19 {
			for i := 0; i < 6; i++ {
				rule.DiceDestinations[i] = strings.TrimSpace(row[13+i])
			}
		}
		out = append(out, rule)
	}
	return out, nil
}

// parseCondition parses "kind:threshold" condition cells, e.g.
// "money_gt:200000" or "always".
func parseCondition(cell string) LogicCondition {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return LogicCondition{Kind: ConditionAlways}
	}
	kind, value, found := strings.Cut(cell, ":")
	cond := LogicCondition{Kind: ConditionKind(kind)}
	if found {
		cond.Threshold = atoiOr(value, 0)
	}
	return cond
}

func loadDice(path string) ([]DiceOutcomeRow, error) {
	// space, visit_type, roll_1..roll_6
	rows, err := readRows(path, 8)
	if err != nil {
		return nil, err
	}
	out := make([]DiceOutcomeRow, 0, len(rows))
	for _, row := range rows {
		d := DiceOutcomeRow{
			Space:     strings.TrimSpace(row[0]),
			VisitType: VisitType(strings.TrimSpace(row[1])),
		}
		for i := 0; i < 6; i++ {
			d.Rolls[i] = strings.TrimSpace(row[2+i])
		}
		out = append(out, d)
	}
	return out, nil
}

func loadEffects(path string) ([]SpaceEffect, error) {
	// space, visit_type, effect_type, card_type, value, condition, trigger_type
	rows, err := readRows(path, 7)
	if err != nil {
		return nil, err
	}
	out := make([]SpaceEffect, 0, len(rows))
	for _, row := range rows {
		out = append(out, SpaceEffect{
			Space:       strings.TrimSpace(row[0]),
			VisitType:   VisitType(strings.TrimSpace(row[1])),
			EffectType:  strings.TrimSpace(row[2]),
			CardType:    CardType(strings.TrimSpace(row[3])),
			Value:       atoiOr(row[4], 0),
			Condition:   strings.TrimSpace(row[5]),
			TriggerType: strings.TrimSpace(row[6]),
		})
	}
	return out, nil
}

func loadCards(path string) ([]Card, error) {
	// card_id, card_name, card_type, description, cost, phase, duration,
	// money_effect, time_effect, loan_amount, investment_amount,
	// work_cost, draw_count, draw_card_type, discard_count,
	// discard_card_type, target_rule, movement_hook
	rows, err := readRows(path, 18)
	if err != nil {
		return nil, err
	}
	out := make([]Card, 0, len(rows))
	for _, row := range rows {
		t := CardType(strings.TrimSpace(row[2]))
		if !IsValidCardType(t) {
			return nil, fmt.Errorf("%s: invalid card type %q for card %s", path, row[2], row[0])
		}
		out = append(out, Card{
			ID:               strings.TrimSpace(row[0]),
			Name:             strings.TrimSpace(row[1]),
			Type:             t,
			Description:      strings.TrimSpace(row[3]),
			Cost:             atoiOr(row[4], 0),
			Phase:            strings.TrimSpace(row[5]),
			Duration:         atoiOr(row[6], 0),
			MoneyEffect:      atoiOr(row[7], 0),
			TimeEffect:       atoiOr(row[8], 0),
			LoanAmount:       atoiOr(row[9], 0),
			InvestmentAmount: atoiOr(row[10], 0),
			WorkCost:         atoiOr(row[11], 0),
			DrawCount:        atoiOr(row[12], 0),
			DrawCardType:     CardType(strings.TrimSpace(row[13])),
			DiscardCount:     atoiOr(row[14], 0),
			DiscardCardType:  CardType(strings.TrimSpace(row[15])),
			TargetRule:       TargetRule(strings.TrimSpace(row[16])),
			MovementHook:     strings.TrimSpace(row[17]),
		})
	}
	return out, nil
}
