package targeting

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/buildboard/engine-server-go/internal/game/choice"
	"github.com/buildboard/engine-server-go/internal/game/content"
	"github.com/buildboard/engine-server-go/internal/game/state"
)

func newTestResolver(t *testing.T, playerIDs ...string) (*Resolver, *choice.Broker) {
	t.Helper()
	players := make([]state.Player, len(playerIDs))
	for i, id := range playerIDs {
		players[i] = state.Player{ID: id, Name: "Player " + id}
	}
	store := state.NewContainer(state.NewGameState("g", players, nil), nil)
	broker := choice.NewBroker(store, time.Second, nil)
	r := NewResolver(store, nil)
	r.SetBroker(broker)
	return r, broker
}

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func TestIsInteractive(t *testing.T) {
	if IsInteractive(content.TargetSelf) || IsInteractive(content.TargetAllPlayers) || IsInteractive(content.TargetAllPlayersExceptSelf) {
		t.Error("Expected broadcast rules to be non-interactive")
	}
	if !IsInteractive(content.TargetChooseOpponent) || !IsInteractive(content.TargetChooseOnePlayer) {
		t.Error("Expected choose rules to be interactive")
	}
}

func TestResolveSelf(t *testing.T) {
	r, _ := newTestResolver(t, "p1", "p2", "p3")

	targets, err := r.ResolveTargets(context.Background(), "p1", content.TargetSelf)
	if err != nil {
		t.Fatalf("ResolveTargets failed: %v", err)
	}
	if len(targets) != 1 || targets[0] != "p1" {
		t.Errorf("Expected [p1], got %v", targets)
	}
}

func TestResolveAllPlayers(t *testing.T) {
	r, _ := newTestResolver(t, "p1", "p2", "p3")

	targets, err := r.ResolveTargets(context.Background(), "p1", content.TargetAllPlayers)
	if err != nil {
		t.Fatalf("ResolveTargets failed: %v", err)
	}
	got := sorted(targets)
	if len(got) != 3 || got[0] != "p1" || got[1] != "p2" || got[2] != "p3" {
		t.Errorf("Expected all three players, got %v", targets)
	}
}

func TestResolveAllPlayersExceptSelf(t *testing.T) {
	r, _ := newTestResolver(t, "p1", "p2", "p3")

	targets, err := r.ResolveTargets(context.Background(), "p2", content.TargetAllPlayersExceptSelf)
	if err != nil {
		t.Fatalf("ResolveTargets failed: %v", err)
	}
	got := sorted(targets)
	if len(got) != 2 || got[0] != "p1" || got[1] != "p3" {
		t.Errorf("Expected p1 and p3, got %v", targets)
	}
}

func TestChooseOpponentAutoSelectsSingleCandidate(t *testing.T) {
	r, broker := newTestResolver(t, "p1", "p2")

	targets, err := r.ResolveTargets(context.Background(), "p1", content.TargetChooseOpponent)
	if err != nil {
		t.Fatalf("ResolveTargets failed: %v", err)
	}
	if len(targets) != 1 || targets[0] != "p2" {
		t.Errorf("Expected auto-selected [p2], got %v", targets)
	}
	if broker.HasActive() {
		t.Error("Expected no choice for a single candidate")
	}
}

func TestChooseOpponentSoloGameYieldsNoTargets(t *testing.T) {
	r, _ := newTestResolver(t, "p1")

	targets, err := r.ResolveTargets(context.Background(), "p1", content.TargetChooseOpponent)
	if err != nil {
		t.Fatalf("ResolveTargets failed: %v", err)
	}
	if len(targets) != 0 {
		t.Errorf("Expected no targets in a solo game, got %v", targets)
	}
}

func TestChooseOpponentPrompts(t *testing.T) {
	r, broker := newTestResolver(t, "p1", "p2", "p3")

	done := make(chan struct {
		targets []string
		err     error
	}, 1)
	go func() {
		targets, err := r.ResolveTargets(context.Background(), "p1", content.TargetChooseOpponent)
		done <- struct {
			targets []string
			err     error
		}{targets, err}
	}()

	var pending *state.Choice
	for i := 0; i < 100; i++ {
		if pending = broker.Active(); pending != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if pending == nil {
		t.Fatal("Expected a target selection choice")
	}
	if pending.Type != state.ChoiceTargetSelection {
		t.Errorf("Expected TARGET_SELECTION choice, got %s", pending.Type)
	}
	// The source player is not a candidate.
	for _, opt := range pending.Options {
		if opt.ID == "p1" {
			t.Error("Expected source player excluded from opponent options")
		}
	}

	if !broker.Resolve(pending.ID, "p3") {
		t.Fatal("Expected resolution to succeed")
	}
	result := <-done
	if result.err != nil {
		t.Fatalf("ResolveTargets failed: %v", result.err)
	}
	if len(result.targets) != 1 || result.targets[0] != "p3" {
		t.Errorf("Expected [p3], got %v", result.targets)
	}
}

func TestChooseOnePlayerIncludesSelf(t *testing.T) {
	r, broker := newTestResolver(t, "p1", "p2")

	done := make(chan []string, 1)
	go func() {
		targets, _ := r.ResolveTargets(context.Background(), "p1", content.TargetChooseOnePlayer)
		done <- targets
	}()

	var pending *state.Choice
	for i := 0; i < 100; i++ {
		if pending = broker.Active(); pending != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if pending == nil {
		t.Fatal("Expected a choice; Choose Player includes the source so two players still prompt")
	}
	if len(pending.Options) != 2 {
		t.Errorf("Expected both players as options, got %v", pending.Options)
	}

	broker.Resolve(pending.ID, "p1")
	if targets := <-done; len(targets) != 1 || targets[0] != "p1" {
		t.Errorf("Expected self-selection [p1], got %v", targets)
	}
}

func TestResolveUnknownRule(t *testing.T) {
	r, _ := newTestResolver(t, "p1")
	if _, err := r.ResolveTargets(context.Background(), "p1", "Bogus Rule"); err == nil {
		t.Error("Expected error for unknown target rule")
	}
}

func TestResolveUnknownSourcePlayer(t *testing.T) {
	r, _ := newTestResolver(t, "p1")
	if _, err := r.ResolveTargets(context.Background(), "ghost", content.TargetSelf); err == nil {
		t.Error("Expected error for unknown source player")
	}
}
