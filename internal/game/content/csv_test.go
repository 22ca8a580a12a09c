package content

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, data string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "spaces.csv",
		"name,phase,is_starting_space,is_ending_space,min_players,requires_dice_roll,can_negotiate,is_locked_path,action_text\n"+
			"START,SETUP,true,false,0,false,false,false,Begin here\n"+
			"REG-FDNY-FEE-REVIEW,REGULATORY,false,false,0,true,true,false,Pay the review fee\n")

	writeFile(t, dir, "movement.csv",
		"space,visit_type,kind,dest_1,dest_2,dest_3,dest_4,dest_5,cond_1,cond_2,cond_3,cond_4,cond_5,dice_1,dice_2,dice_3,dice_4,dice_5,dice_6\n"+
			"START,First,logic,REG-FDNY-FEE-REVIEW,START,,,,money_gt:1000,always,,,,,,,,,\n")

	writeFile(t, dir, "dice.csv",
		"space,visit_type,roll_1,roll_2,roll_3,roll_4,roll_5,roll_6\n"+
			"REG-FDNY-FEE-REVIEW,First,1 day,2 days,3 days,Draw 1 E,Draw 2 E,START\n")

	writeFile(t, dir, "space_effects.csv",
		"space,visit_type,effect_type,card_type,value,condition,trigger_type\n"+
			"REG-FDNY-FEE-REVIEW,First,money,,-500,,auto\n")

	writeFile(t, dir, "cards.csv",
		"card_id,card_name,card_type,description,cost,phase,duration,money_effect,time_effect,loan_amount,investment_amount,work_cost,draw_count,draw_card_type,discard_count,discard_card_type,target_rule,movement_hook\n"+
			"L001,Permit Delay,L,Everyone loses time,0,Any,0,0,3,0,0,0,0,,0,,All Players,\n")

	p, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}

	if p.StartingSpace() != "START" {
		t.Errorf("Expected starting space START, got %s", p.StartingSpace())
	}

	rule, ok := p.GetMovement("START", VisitFirst)
	if !ok {
		t.Fatal("Expected movement rule for START")
	}
	if rule.Kind != MovementLogic {
		t.Errorf("Expected logic movement, got %s", rule.Kind)
	}
	if rule.Conditions[0].Kind != ConditionMoneyGT || rule.Conditions[0].Threshold != 1000 {
		t.Errorf("Expected money_gt:1000 condition, got %+v", rule.Conditions[0])
	}
	if rule.Conditions[1].Kind != ConditionAlways {
		t.Errorf("Expected always condition, got %+v", rule.Conditions[1])
	}

	row, ok := p.GetDiceOutcome("REG-FDNY-FEE-REVIEW", VisitFirst)
	if !ok {
		t.Fatal("Expected dice outcomes for REG-FDNY-FEE-REVIEW")
	}
	if row.Rolls[5] != "START" {
		t.Errorf("Expected roll 6 outcome START, got %s", row.Rolls[5])
	}

	effects := p.GetSpaceEffects("REG-FDNY-FEE-REVIEW", VisitFirst)
	if len(effects) != 1 || effects[0].Value != -500 {
		t.Errorf("Expected one money effect of -500, got %v", effects)
	}

	card, ok := p.GetCardByID("L001")
	if !ok {
		t.Fatal("Expected card L001")
	}
	if card.Type != CardTypeLifeEvent || card.TimeEffect != 3 || card.TargetRule != TargetAllPlayers {
		t.Errorf("Unexpected card fields: %+v", card)
	}
}

func TestLoadDirMissingFiles(t *testing.T) {
	// An empty directory yields an empty provider, not an error.
	p, err := LoadDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadDir failed on empty dir: %v", err)
	}
	if p.StartingSpace() != "" {
		t.Errorf("Expected no starting space, got %s", p.StartingSpace())
	}
}

func TestLoadDirRejectsInvalidCardType(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cards.csv",
		"card_id,card_name,card_type,description,cost,phase,duration,money_effect,time_effect,loan_amount,investment_amount,work_cost,draw_count,draw_card_type,discard_count,discard_card_type,target_rule,movement_hook\n"+
			"X001,Bogus,X,,0,Any,0,0,0,0,0,0,0,,0,,,\n")

	if _, err := LoadDir(dir); err == nil {
		t.Fatal("Expected error for invalid card type")
	}
}

func TestParseCondition(t *testing.T) {
	cases := []struct {
		in        string
		kind      ConditionKind
		threshold int
	}{
		{"", ConditionAlways, 0},
		{"always", ConditionAlways, 0},
		{"scope_le:4000000", ConditionScopeLE, 4000000},
		{"cards_ge:3", ConditionCardCountGE, 3},
	}
	for _, tc := range cases {
		got := parseCondition(tc.in)
		if got.Kind != tc.kind || got.Threshold != tc.threshold {
			t.Errorf("parseCondition(%q) = %+v, want kind=%s threshold=%d", tc.in, got, tc.kind, tc.threshold)
		}
	}
}
