package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/buildboard/engine-server-go/internal/game/state"
)

// Replay records sequential state snapshots for playback: one per
// completed turn plus the initial state.
type Replay struct {
	GameID       string
	States       []state.GameState
	CurrentIndex int
	mu           sync.RWMutex
}

// NewReplay creates a new replay journal.
func NewReplay(gameID string) *Replay {
	return &Replay{
		GameID: gameID,
		States: make([]state.GameState, 0),
	}
}

// RecordState appends a state snapshot to the journal.
func (r *Replay) RecordState(gs state.GameState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States = append(r.States, gs.Clone())
}

// Len returns the number of recorded states.
func (r *Replay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.States)
}

// Start resets the playback cursor to the beginning.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CurrentIndex = 0
}

// Next advances the cursor and returns the state, or nil at the end.
func (r *Replay) Next() *state.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CurrentIndex < len(r.States) {
		gs := r.States[r.CurrentIndex].Clone()
		r.CurrentIndex++
		return &gs
	}
	return nil
}

// Previous steps the cursor back and returns the state, or nil at the
// start.
func (r *Replay) Previous() *state.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		gs := r.States[r.CurrentIndex].Clone()
		return &gs
	}
	return nil
}

// Skip moves the cursor forward count states and returns the state
// there, or the last one when count overruns the journal.
func (r *Replay) Skip(count int) *state.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.States) == 0 {
		return nil
	}
	r.CurrentIndex += count
	if r.CurrentIndex >= len(r.States) {
		r.CurrentIndex = len(r.States) - 1
	}
	gs := r.States[r.CurrentIndex].Clone()
	return &gs
}

// Save writes the replay to dir as a gzip-compressed gob file named
// after the game ID.
func (r *Replay) Save(dir string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save replay: %w", err)
	}
	path := filepath.Join(dir, r.GameID+".replay.gz")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save replay: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	defer zw.Close()

	payload := struct {
		GameID string
		States []state.GameState
	}{GameID: r.GameID, States: r.States}

	if err := gob.NewEncoder(zw).Encode(payload); err != nil {
		return fmt.Errorf("save replay: %w", err)
	}
	return nil
}

// LoadReplay reads a replay previously written by Save.
func LoadReplay(dir, gameID string) (*Replay, error) {
	path := filepath.Join(dir, gameID+".replay.gz")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load replay: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("load replay: %w", err)
	}
	defer zr.Close()

	var payload struct {
		GameID string
		States []state.GameState
	}
	if err := gob.NewDecoder(zr).Decode(&payload); err != nil {
		return nil, fmt.Errorf("load replay: %w", err)
	}
	return &Replay{GameID: payload.GameID, States: payload.States}, nil
}
