package music

import (
	"math/rand"
	"strings"

	"github.com/rs/zerolog/log"
)

// selectNextLocked picks the next track by priority and removes it from
// its source queue in the same step. Must be called with s.mu held.
//
// Priority: manual override, loop mode, the combined user queue by mode,
// then the shuffled library fallback. When the fallback queue is also
// empty it returns needsRescan=true instead of a track; the caller decides
// whether a library rescan is still allowed.
func (s *State) selectNextLocked() (track *Track, needsRescan bool) {
	if s.manualOverride {
		// Consumed regardless of whether a track was found; with both
		// preferred queues empty the override simply has no effect and
		// selection falls through to mode logic.
		s.manualOverride = false
		if len(s.searchQueue) > 0 {
			return s.popSearchLocked(), false
		}
		if len(s.activePlaylist) > 0 {
			return s.popActiveLocked(), false
		}
	}

	if s.mode.effective() == ModeLoop && s.current != nil {
		// The current track is not in any queue; nothing to remove.
		return s.current, false
	}

	userQueueLen := len(s.activePlaylist) + len(s.searchQueue)
	if userQueueLen > 0 {
		switch s.mode.effective() {
		case ModeShuffle:
			idx := rand.Intn(userQueueLen)
			if idx < len(s.activePlaylist) {
				return s.removeActiveLocked(idx), false
			}
			return s.removeSearchLocked(idx - len(s.activePlaylist)), false

		case ModeAlphabetical:
			return s.selectAlphabeticalLocked(), false

		default: // fifo and any unrecognized mode
			if len(s.searchQueue) > 0 {
				return s.popSearchLocked(), false
			}
			return s.popActiveLocked(), false
		}
	}

	if len(s.libraryQueue) == 0 {
		return nil, true
	}
	t := s.libraryQueue[0]
	s.libraryQueue = s.libraryQueue[1:]
	return &t, false
}

// selectAlphabeticalLocked takes the case-insensitive minimum title over
// the combined user queue and removes it from whichever list holds it.
func (s *State) selectAlphabeticalLocked() *Track {
	best := -1      // index into the virtual combined sequence
	bestTitle := ""
	combined := make([]Track, 0, len(s.activePlaylist)+len(s.searchQueue))
	combined = append(combined, s.activePlaylist...)
	combined = append(combined, s.searchQueue...)

	for i, t := range combined {
		title := strings.ToLower(t.Title)
		if best == -1 || title < bestTitle {
			best = i
			bestTitle = title
		}
	}

	chosen := combined[best]
	if i := indexOfTrack(s.activePlaylist, chosen); i >= 0 {
		return s.removeActiveLocked(i)
	}
	if i := indexOfTrack(s.searchQueue, chosen); i >= 0 {
		return s.removeSearchLocked(i)
	}

	// Consistency failure: the chosen track vanished from both lists.
	// Yield nothing for this call rather than selecting a phantom.
	log.Error().Str("title", chosen.Title).Msg("music: alphabetical pick missing from both queues")
	return nil
}

func indexOfTrack(list []Track, t Track) int {
	for i := range list {
		if list[i].ID == t.ID && list[i].Title == t.Title {
			return i
		}
	}
	return -1
}

func (s *State) popSearchLocked() *Track {
	return s.removeSearchLocked(0)
}

func (s *State) popActiveLocked() *Track {
	return s.removeActiveLocked(0)
}

func (s *State) removeSearchLocked(i int) *Track {
	t := s.searchQueue[i]
	s.searchQueue = append(s.searchQueue[:i], s.searchQueue[i+1:]...)
	return &t
}

func (s *State) removeActiveLocked(i int) *Track {
	t := s.activePlaylist[i]
	s.activePlaylist = append(s.activePlaylist[:i], s.activePlaylist[i+1:]...)
	return &t
}
