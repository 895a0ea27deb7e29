package music

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoTrackPlaying  = errors.New("no track is currently playing")
	ErrUnknownPlaylist = errors.New("no saved playlist with that name")
)

// Enqueue appends a track to the search queue. With playNext set it also
// arms the one-shot manual override so the very next selection takes the
// queue head regardless of mode.
func (e *Engine) Enqueue(t Track, playNext bool) {
	e.st.mu.Lock()
	e.st.searchQueue = append(e.st.searchQueue, t)
	if playNext {
		e.st.manualOverride = true
	}
	queued := len(e.st.searchQueue)
	e.st.mu.Unlock()

	log.Info().Str("track", t.Title).Bool("play_next", playNext).Int("search_queue", queued).Msg("music: track enqueued")
}

// InQueue reports whether an identifier is already queued or playing.
// De-duplication against this is command-layer policy, not an invariant.
func (e *Engine) InQueue(id string) bool {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()

	if e.st.current != nil && e.st.current.ID == id {
		return true
	}
	for _, t := range e.st.searchQueue {
		if t.ID == id {
			return true
		}
	}
	for _, t := range e.st.activePlaylist {
		if t.ID == id {
			return true
		}
	}
	return false
}

// SetVolume clamps level into [0, maxVolume], stores it and applies it to
// the live stream. Out-of-range input is clamped, never an error.
func (e *Engine) SetVolume(level float64) float64 {
	e.st.mu.Lock()
	e.st.volume = clampVolume(level, e.st.maxVolume)
	v := e.st.volume
	e.st.mu.Unlock()

	if sess := e.currentSession(); sess != nil {
		sess.ctl.SetVolume(v)
	}
	log.Info().Float64("volume", v).Msg("music: volume set")
	return v
}

// Skip stops the current track; its completion signal advances playback.
// Loop mode is switched to shuffle first so a skip cannot replay the same
// track forever.
func (e *Engine) Skip() error {
	e.st.mu.Lock()
	if !e.st.playing && !e.st.paused {
		e.st.mu.Unlock()
		return ErrNoTrackPlaying
	}
	if e.st.mode.effective() == ModeLoop {
		e.st.mode = ModeShuffle
		log.Info().Msg("music: loop mode disabled by skip, switched to shuffle")
	}
	e.st.paused = false
	e.st.mu.Unlock()

	if sess := e.currentSession(); sess != nil {
		sess.ctl.SetPaused(false)
		sess.requestStop()
	}
	return nil
}

// TogglePause flips between paused and playing. The stream keeps its
// position; frames simply stop flowing while paused.
func (e *Engine) TogglePause() (paused bool, err error) {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()

	switch {
	case e.st.playing:
		e.st.playing = false
		e.st.paused = true
	case e.st.paused:
		e.st.paused = false
		e.st.playing = true
	default:
		return false, ErrNoTrackPlaying
	}

	if sess := e.currentSession(); sess != nil {
		sess.ctl.SetPaused(e.st.paused)
	}
	return e.st.paused, nil
}

// Clear empties both user queues. With stopCurrent set it also stops the
// running track; the completion callback then settles to idle instead of
// auto-advancing.
func (e *Engine) Clear(stopCurrent bool) {
	e.st.mu.Lock()
	e.st.activePlaylist = nil
	e.st.searchQueue = nil
	e.st.manualOverride = false
	stopping := stopCurrent && (e.st.playing || e.st.paused)
	if stopping {
		e.st.stopIntentional = true
	}
	e.st.mu.Unlock()

	log.Info().Bool("stop_current", stopCurrent).Msg("music: queues cleared")

	if stopping {
		if sess := e.currentSession(); sess != nil {
			sess.ctl.SetPaused(false)
			sess.requestStop()
		}
	}
}

// LeaveVoice stops playback, disconnects and resets to idle. Used when the
// last listener leaves.
func (e *Engine) LeaveVoice() {
	e.st.mu.Lock()
	stopping := e.st.playing || e.st.paused
	if stopping {
		e.st.stopIntentional = true
	} else {
		e.st.current = nil
	}
	e.st.mu.Unlock()

	if stopping {
		if sess := e.currentSession(); sess != nil {
			sess.ctl.SetPaused(false)
			sess.requestStop()
		}
	}

	e.conn.Disconnect()
	e.notifier.SetListeningStatus("")
	log.Info().Msg("music: left voice channel")
}

// SetMode switches the selection mode.
func (e *Engine) SetMode(m Mode) {
	e.st.mu.Lock()
	e.st.mode = m
	e.st.mu.Unlock()
	log.Info().Str("mode", string(m)).Msg("music: mode changed")
}

// CurrentMode returns the stored mode value.
func (e *Engine) CurrentMode() Mode {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()
	return e.st.mode
}

// Connected reports whether the voice connection is live.
func (e *Engine) Connected() bool {
	return e.conn.Connected()
}

// Status returns the playing/paused/processing triple for the watchdog.
func (e *Engine) Status() (playing, paused, processing bool) {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()
	return e.st.playing, e.st.paused, e.st.processing
}

// Snapshot returns a read-only copy of playback state for UI rendering.
func (e *Engine) Snapshot() Snapshot {
	return e.st.snapshot()
}

// Export returns the pure-data state for persistence.
func (e *Engine) Export() PersistedState {
	return e.st.export()
}

// Restore loads a previously persisted state.
func (e *Engine) Restore(p PersistedState) {
	e.st.restore(p)
}

// SavePlaylist stores the current combined user queue (plus the current
// track at its head) under name.
func (e *Engine) SavePlaylist(name string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("playlist name is required")
	}

	e.st.mu.Lock()
	defer e.st.mu.Unlock()

	var tracks []Track
	if e.st.current != nil {
		tracks = append(tracks, *e.st.current)
	}
	tracks = append(tracks, e.st.activePlaylist...)
	tracks = append(tracks, e.st.searchQueue...)
	for i := range tracks {
		tracks[i].Origin = ""
	}
	e.st.playlists[name] = tracks
	return len(tracks), nil
}

// LoadPlaylist replaces the active playlist with a saved one, loaded
// verbatim (no dedup beyond what was saved).
func (e *Engine) LoadPlaylist(name string) (int, error) {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()

	tracks, ok := e.st.playlists[name]
	if !ok {
		return 0, ErrUnknownPlaylist
	}
	e.st.activePlaylist = append([]Track(nil), tracks...)
	return len(tracks), nil
}

// Playlists lists saved playlist names.
func (e *Engine) Playlists() []string {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()

	names := make([]string, 0, len(e.st.playlists))
	for name := range e.st.playlists {
		names = append(names, name)
	}
	return names
}

// QueueTitles returns up to limit upcoming titles for display.
func (e *Engine) QueueTitles(limit int) []string {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()

	titles := make([]string, 0, limit)
	for _, t := range e.st.activePlaylist {
		if len(titles) == limit {
			return titles
		}
		titles = append(titles, t.Title)
	}
	for _, t := range e.st.searchQueue {
		if len(titles) == limit {
			return titles
		}
		titles = append(titles, t.Title)
	}
	return titles
}
