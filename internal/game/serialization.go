package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/buildboard/engine-server-go/internal/game/content"
	"github.com/buildboard/engine-server-go/internal/game/rules"
	"github.com/buildboard/engine-server-go/internal/game/state"
)

// StateChecksum is a deterministic fingerprint of a game state, used to
// guard against divergent states across persistence and sync.
type StateChecksum struct {
	Hash      string
	Timestamp string
	Version   int
}

// ComputeChecksum generates a deterministic checksum of the state. The
// representation sorts all maps by key and excludes timestamps and the
// append-only log, so two states with the same game content hash equal.
func ComputeChecksum(gs state.GameState) (*StateChecksum, error) {
	data := buildDeterministicRepresentation(gs)

	hash := sha256.New()
	if _, err := hash.Write([]byte(data)); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}

	return &StateChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Version:   1,
	}, nil
}

// buildDeterministicRepresentation creates a canonical string form of
// the state independent of map iteration order.
func buildDeterministicRepresentation(gs state.GameState) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%s|%s|%d|%d\n",
		gs.GameID, gs.Phase, gs.CurrentPlayerID, gs.Turn, gs.GameRound)
	fmt.Fprintf(&buf, "ACTIONS:%d|%d|%t|%t|%s\n",
		gs.RequiredActions, gs.CompletedActionCount, gs.HasRolledDice, gs.HasMoved, gs.SelectedDestination)

	for _, p := range gs.Players {
		visited := append([]string(nil), p.VisitedSpaces...)
		sort.Strings(visited)
		fmt.Fprintf(&buf, "PLAYER:%s|%s|%s|%s|%d|%d|%d|%d\n",
			p.ID, p.Name, p.CurrentSpace, p.VisitType, p.Money, p.TimeSpent, p.ProjectScope, p.LoanAmount)
		for _, s := range visited {
			fmt.Fprintf(&buf, "  VISITED:%s\n", s)
		}
		for _, id := range p.Hand {
			fmt.Fprintf(&buf, "  HAND:%s\n", id)
		}
		for _, ac := range p.ActiveCards {
			fmt.Fprintf(&buf, "  ACTIVE:%s|%d\n", ac.CardID, ac.ExpirationTurn)
		}
		pathSpaces := make([]string, 0, len(p.PathMemory))
		for space := range p.PathMemory {
			pathSpaces = append(pathSpaces, space)
		}
		sort.Strings(pathSpaces)
		for _, space := range pathSpaces {
			fmt.Fprintf(&buf, "  PATH:%s->%s\n", space, p.PathMemory[space])
		}
	}

	for _, t := range content.AllCardTypes {
		fmt.Fprintf(&buf, "DECK:%s", t)
		for _, id := range gs.Decks[t] {
			fmt.Fprintf(&buf, "|%s", id)
		}
		buf.WriteByte('\n')
		fmt.Fprintf(&buf, "DISCARD:%s", t)
		for _, id := range gs.DiscardPiles[t] {
			fmt.Fprintf(&buf, "|%s", id)
		}
		buf.WriteByte('\n')
	}

	if gs.AwaitingChoice != nil {
		fmt.Fprintf(&buf, "CHOICE:%s|%s|%s\n",
			gs.AwaitingChoice.ID, gs.AwaitingChoice.PlayerID, gs.AwaitingChoice.Type)
	}

	return buf.String()
}

// Serialize encodes the full state for persistence or sync.
func Serialize(gs state.GameState) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gs); err != nil {
		return nil, fmt.Errorf("serialize state: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a state blob produced by Serialize.
func Deserialize(blob []byte) (state.GameState, error) {
	var gs state.GameState
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&gs); err != nil {
		return state.GameState{}, fmt.Errorf("deserialize state: %w", err)
	}
	return gs, nil
}

// GetStateForSync exposes the full state for serialization by an
// external persistence/sync collaborator.
func (e *Engine) GetStateForSync() ([]byte, error) {
	return Serialize(e.store.Get())
}

// ApplyExternalState replaces the engine state with one received from
// an external source. The replacement bypasses the outbound sync path
// so applying received state never re-triggers a sync loop.
func (e *Engine) ApplyExternalState(blob []byte) error {
	gs, err := Deserialize(blob)
	if err != nil {
		return fmt.Errorf("apply external state: %w", err)
	}
	e.store.UpdateExternal(func(target *state.GameState) {
		*target = gs
	})
	e.gameID = gs.GameID
	e.initialized = true
	if e.tracker == nil {
		e.tracker = rules.NewTurnTracker(gs.CurrentPlayerID)
	}
	if e.replay == nil {
		e.replay = NewReplay(gs.GameID)
	}
	return nil
}
