package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildboard/engine-server-go/internal/game/state"
)

func recordedReplay(turns int) *Replay {
	r := NewReplay("game-rpl")
	gs := sampleState()
	for i := 0; i < turns; i++ {
		gs.Turn = i + 1
		r.RecordState(gs)
	}
	return r
}

func TestReplayRecordAndPlayback(t *testing.T) {
	r := recordedReplay(3)
	require.Equal(t, 3, r.Len())

	r.Start()
	for want := 1; want <= 3; want++ {
		gs := r.Next()
		require.NotNil(t, gs)
		assert.Equal(t, want, gs.Turn)
	}
	assert.Nil(t, r.Next(), "playback past the end returns nil")

	gs := r.Previous()
	require.NotNil(t, gs)
	assert.Equal(t, 3, gs.Turn)
	gs = r.Previous()
	require.NotNil(t, gs)
	assert.Equal(t, 2, gs.Turn)
}

func TestReplayPreviousAtStart(t *testing.T) {
	r := recordedReplay(2)
	r.Start()
	assert.Nil(t, r.Previous())
}

func TestReplaySkip(t *testing.T) {
	r := recordedReplay(5)
	r.Start()

	gs := r.Skip(2)
	require.NotNil(t, gs)
	assert.Equal(t, 3, gs.Turn)

	// Overrunning the journal clamps to the last state.
	gs = r.Skip(100)
	require.NotNil(t, gs)
	assert.Equal(t, 5, gs.Turn)

	empty := NewReplay("empty")
	assert.Nil(t, empty.Skip(1))
}

func TestReplayRecordsClones(t *testing.T) {
	r := NewReplay("game-rpl")
	gs := sampleState()
	r.RecordState(gs)

	// Mutating the source after recording must not change the journal.
	gs.Players[0].Money = 0
	gs.Players[0].Hand[0] = "MUTATED"

	r.Start()
	got := r.Next()
	require.NotNil(t, got)
	assert.Equal(t, 10000, got.Players[0].Money)
	assert.Equal(t, "W001", got.Players[0].Hand[0])
}

func TestReplaySaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	r := recordedReplay(4)
	require.NoError(t, r.Save(dir))

	loaded, err := LoadReplay(dir, "game-rpl")
	require.NoError(t, err)
	assert.Equal(t, "game-rpl", loaded.GameID)
	require.Equal(t, 4, loaded.Len())

	loaded.Start()
	first := loaded.Next()
	require.NotNil(t, first)
	assert.Equal(t, 1, first.Turn)
	assert.Equal(t, "Alice", first.Players[0].Name)
	assert.Equal(t, state.PhasePlay, first.Phase)
}

func TestLoadReplayMissingFile(t *testing.T) {
	_, err := LoadReplay(t.TempDir(), "no-such-game")
	assert.Error(t, err)
}
