package music

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportRestoreRoundTrip(t *testing.T) {
	st := NewState(0.4, 1.0)
	st.mode = ModeAlphabetical
	st.searchQueue = []Track{{ID: "s1", Title: "Search", Origin: "chan1"}}
	st.activePlaylist = []Track{{ID: "p1", Title: "Playlist"}}
	st.current = &Track{ID: "cur", Title: "Current", Origin: "chan2"}
	st.playlists["favs"] = []Track{{ID: "f1", Title: "Fav"}}

	out := st.export()

	restored := NewState(0.2, 1.0)
	restored.restore(out)

	assert.Equal(t, ModeAlphabetical, restored.mode)
	assert.Equal(t, 0.4, restored.volume)
	require.NotNil(t, out.Volume)
	assert.Equal(t, []Track{{ID: "p1", Title: "Playlist"}}, restored.activePlaylist)
	assert.Len(t, restored.playlists["favs"], 1)

	// The interrupted track resumes at the head of the search queue.
	require.Len(t, restored.searchQueue, 2)
	assert.Equal(t, "cur", restored.searchQueue[0].ID)
	assert.Equal(t, "s1", restored.searchQueue[1].ID)
	assert.Nil(t, restored.current)
}

// A muted bot must come back muted, not at the configured default.
func TestExportRestoreKeepsZeroVolume(t *testing.T) {
	st := NewState(0.4, 1.0)
	st.volume = 0

	restored := NewState(0.4, 1.0)
	restored.restore(st.export())

	assert.Equal(t, 0.0, restored.volume)
}

func TestRestoreMissingFieldsKeepDefaults(t *testing.T) {
	st := NewState(0.2, 1.0)
	st.restore(PersistedState{})

	assert.Equal(t, ModeShuffle, st.mode)
	assert.Equal(t, 0.2, st.volume)
	assert.Empty(t, st.searchQueue)
	assert.NotNil(t, st.playlists)
}

func TestRestoreClampsVolumeToCeiling(t *testing.T) {
	st := NewState(0.2, 0.8)
	loud := 5.0
	st.restore(PersistedState{Volume: &loud})
	assert.Equal(t, 0.8, st.volume)
}

func TestSnapshotCopiesCurrentTitle(t *testing.T) {
	st := NewState(0.2, 1.0)
	st.playing = true
	st.current = &Track{ID: "x", Title: "Some Song"}
	st.searchQueue = []Track{{ID: "a"}, {ID: "b"}}
	st.libraryQueue = []Track{{ID: "l"}}

	snap := st.snapshot()

	assert.Equal(t, "Some Song", snap.CurrentTitle)
	assert.True(t, snap.Playing)
	assert.Equal(t, 2, snap.QueueLength)
	assert.Equal(t, 1, snap.LibraryQueue)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeShuffle, ParseMode("shuffle"))
	assert.Equal(t, ModeLoop, ParseMode("loop"))
	assert.Equal(t, ModeFIFO, ParseMode("whatever"))
}
