package music

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(mode Mode) *State {
	st := NewState(0.2, 1.0)
	st.mode = mode
	return st
}

func titles(tracks []Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Title
	}
	return out
}

func TestSelectManualOverrideTakesSearchQueueHead(t *testing.T) {
	st := newTestState(ModeShuffle)
	st.activePlaylist = []Track{{ID: "p1", Title: "Playlist One"}}
	st.searchQueue = []Track{{ID: "s1", Title: "Search One"}, {ID: "s2", Title: "Search Two"}}
	st.manualOverride = true

	st.mu.Lock()
	got, rescan := st.selectNextLocked()
	st.mu.Unlock()

	require.NotNil(t, got)
	assert.False(t, rescan)
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, []string{"Search Two"}, titles(st.searchQueue))
	assert.False(t, st.manualOverride, "override must be consumed")
}

func TestSelectManualOverrideFallsBackToPlaylist(t *testing.T) {
	st := newTestState(ModeShuffle)
	st.activePlaylist = []Track{{ID: "p1", Title: "Playlist One"}}
	st.manualOverride = true

	st.mu.Lock()
	got, _ := st.selectNextLocked()
	st.mu.Unlock()

	require.NotNil(t, got)
	assert.Equal(t, "p1", got.ID)
	assert.Empty(t, st.activePlaylist)
}

// With both user queues empty the override is consumed but has no effect;
// selection falls through to the library without error.
func TestSelectManualOverrideConsumedWithEmptyQueues(t *testing.T) {
	st := newTestState(ModeFIFO)
	st.manualOverride = true
	st.libraryQueue = []Track{{ID: "lib1", Title: "Library One"}}

	st.mu.Lock()
	got, rescan := st.selectNextLocked()
	st.mu.Unlock()

	require.NotNil(t, got)
	assert.False(t, rescan)
	assert.Equal(t, "lib1", got.ID)
	assert.False(t, st.manualOverride)
}

func TestSelectLoopReturnsCurrentWithoutRemoval(t *testing.T) {
	st := newTestState(ModeLoop)
	st.current = &Track{ID: "cur", Title: "Current"}
	st.searchQueue = []Track{{ID: "s1", Title: "Search One"}}

	for i := 0; i < 3; i++ {
		st.mu.Lock()
		got, _ := st.selectNextLocked()
		st.mu.Unlock()

		require.NotNil(t, got)
		assert.Equal(t, "cur", got.ID)
	}
	assert.Len(t, st.searchQueue, 1, "loop must not consume queued tracks")
}

func TestSelectLoopWithoutCurrentFallsThrough(t *testing.T) {
	st := newTestState(ModeLoop)
	st.searchQueue = []Track{{ID: "s1", Title: "Search One"}}

	st.mu.Lock()
	got, _ := st.selectNextLocked()
	st.mu.Unlock()

	require.NotNil(t, got)
	assert.Equal(t, "s1", got.ID)
}

func TestSelectFIFOPrefersSearchQueue(t *testing.T) {
	st := newTestState(ModeFIFO)
	st.activePlaylist = []Track{{ID: "p1", Title: "Playlist One"}}
	st.searchQueue = []Track{{ID: "s1", Title: "Search One"}}

	st.mu.Lock()
	first, _ := st.selectNextLocked()
	second, _ := st.selectNextLocked()
	st.mu.Unlock()

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, "s1", first.ID)
	assert.Equal(t, "p1", second.ID)
}

func TestSelectAlphabeticalIsCaseInsensitive(t *testing.T) {
	st := newTestState(ModeAlphabetical)
	st.activePlaylist = []Track{{ID: "1", Title: "banana"}, {ID: "2", Title: "Apple"}}
	st.searchQueue = []Track{{ID: "3", Title: "cherry"}}

	var order []string
	for i := 0; i < 3; i++ {
		st.mu.Lock()
		got, _ := st.selectNextLocked()
		st.mu.Unlock()
		require.NotNil(t, got)
		order = append(order, got.Title)
	}

	assert.Equal(t, []string{"Apple", "banana", "cherry"}, order)
	assert.Empty(t, st.activePlaylist)
	assert.Empty(t, st.searchQueue)
}

// Shuffle must drain the combined queue without losing or duplicating a
// track, whatever the random order.
func TestSelectShuffleConservesTracks(t *testing.T) {
	st := newTestState(ModeShuffle)
	st.activePlaylist = []Track{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}}
	st.searchQueue = []Track{{ID: "c", Title: "C"}, {ID: "d", Title: "D"}}

	seen := make(map[string]int)
	for i := 0; i < 4; i++ {
		st.mu.Lock()
		got, _ := st.selectNextLocked()
		st.mu.Unlock()
		require.NotNil(t, got)
		seen[got.ID]++
	}

	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1, "d": 1}, seen)
	assert.Empty(t, st.activePlaylist)
	assert.Empty(t, st.searchQueue)
}

func TestSelectLibraryFallbackAndRescanSignal(t *testing.T) {
	st := newTestState(ModeShuffle)
	st.libraryQueue = []Track{{ID: "lib1", Title: "Library One"}}

	st.mu.Lock()
	first, rescan := st.selectNextLocked()
	st.mu.Unlock()
	require.NotNil(t, first)
	assert.False(t, rescan)
	assert.Equal(t, "lib1", first.ID)

	st.mu.Lock()
	second, rescan := st.selectNextLocked()
	st.mu.Unlock()
	assert.Nil(t, second)
	assert.True(t, rescan, "empty library must request a rescan")
}

func TestUnknownModeBehavesAsFIFO(t *testing.T) {
	st := newTestState(Mode("bogus"))
	st.searchQueue = []Track{{ID: "s1", Title: "One"}, {ID: "s2", Title: "Two"}}

	st.mu.Lock()
	got, _ := st.selectNextLocked()
	st.mu.Unlock()

	require.NotNil(t, got)
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, Mode("bogus"), st.mode, "stored mode string stays verbatim")
}
