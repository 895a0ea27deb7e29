package music

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/EolnMsuk/skipcord/internal/music/stream"
)

// Library supplies the deduplicated, pre-shuffled fallback track list.
// Scan blocks on file I/O and must not be called while holding the state
// mutex.
type Library interface {
	Scan(ctx context.Context) ([]Track, error)
}

// Extractor resolves a stream page URL to a playable audio URL and a
// refined display title. Blocking; network-bound.
type Extractor interface {
	Resolve(ctx context.Context, pageURL string) (streamURL, title string, err error)
}

// Notifier delivers best-effort chat notices and the bot's listening
// status. Implementations swallow delivery failures.
type Notifier interface {
	Announce(channelID, text string)
	SetListeningStatus(title string)
}

// Options tune engine behavior.
type Options struct {
	Enabled         bool
	Normalize       bool
	AnnounceTracks  bool
	AnnounceChannel string
	ResolveTimeout  time.Duration
	ScanTimeout     time.Duration
}

// Engine owns all playback decisions. External triggers (commands,
// hotkeys, presence events, watchdog ticks) enter through Start or the
// public mutators; track completion re-enters through Advance.
type Engine struct {
	opts      Options
	st        *State
	conn      *ConnectionManager
	library   Library
	extractor Extractor
	notifier  Notifier

	// startupMu serializes "begin playback" attempts. First writer wins;
	// a losing caller returns without doing any work. Distinct from the
	// state mutex on purpose.
	startupMu sync.Mutex

	sessionMu sync.Mutex
	session   *playSession

	// Test seams for audio source construction.
	openLocal  func(path string, normalize bool) (*stream.Source, error)
	openRemote func(url string) (*stream.Source, error)
}

// playSession is one track handed to the backend. Its completion signal
// fires exactly once no matter how the track ended.
type playSession struct {
	stop     chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once
	done     atomic.Bool
	ctl      *stream.Controls
}

func (ps *playSession) requestStop() {
	ps.stopOnce.Do(func() { close(ps.stop) })
}

func NewEngine(st *State, conn *ConnectionManager, lib Library, ext Extractor, notifier Notifier, opts Options) *Engine {
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = 30 * time.Second
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 2 * time.Minute
	}
	return &Engine{
		opts:       opts,
		st:         st,
		conn:       conn,
		library:    lib,
		extractor:  ext,
		notifier:   notifier,
		openLocal:  stream.OpenLocal,
		openRemote: stream.OpenRemote,
	}
}

// Start serializes concurrent "begin playback" requests into a single
// attempt. If another start is already in flight the call is a silent
// no-op.
func (e *Engine) Start() {
	if !e.startupMu.TryLock() {
		return
	}
	defer e.startupMu.Unlock()

	if !e.opts.Enabled {
		return
	}

	// Another caller may have finished starting before we got the gate.
	e.st.mu.Lock()
	busy := e.st.playing || e.st.paused
	e.st.mu.Unlock()
	if busy {
		return
	}

	log.Info().Msg("music: starting playback")

	if !e.conn.Ensure() {
		log.Error().Msg("music: cannot start, voice connection unavailable")
		return
	}

	e.st.mu.Lock()
	empty := len(e.st.activePlaylist)+len(e.st.searchQueue)+len(e.st.libraryQueue) == 0
	e.st.mu.Unlock()
	if empty {
		e.rescanLibrary()
	}

	e.Advance(nil)
}

// Advance is both the "start playing something" entry point and the
// completion callback for the previous track. Natural completion, skip,
// stop and backend errors all funnel through here.
func (e *Engine) Advance(playErr error) {
	if !e.opts.Enabled {
		return
	}
	if playErr != nil {
		log.Error().Err(playErr).Msg("music: playback ended with error")
	}

	e.st.mu.Lock()
	// Selection is now in flight; the watchdog must not treat the idle
	// gap as a stall.
	e.st.processing = true

	if e.st.playing && e.liveSession() {
		// Spurious trigger while a track is still running.
		e.st.processing = false
		e.st.mu.Unlock()
		return
	}

	if e.st.stopIntentional {
		e.st.stopIntentional = false
		e.st.playing = false
		e.st.paused = false
		e.st.current = nil
		e.st.processing = false
		e.st.mu.Unlock()
		log.Info().Msg("music: playback intentionally stopped")
		e.notifier.SetListeningStatus("")
		return
	}
	e.st.mu.Unlock()

	if !e.conn.Ensure() {
		log.Error().Msg("music: no voice connection, halting playback")
		e.setIdle()
		return
	}

	var chosen *Track
	rescanned := false
	for {
		e.st.mu.Lock()
		t, needsRescan := e.st.selectNextLocked()
		if t != nil {
			e.st.playing = true
			e.st.paused = false
			e.st.current = t
		}
		e.st.mu.Unlock()

		if t != nil {
			chosen = t
			break
		}
		if needsRescan && !rescanned {
			// At most one rescan per advance; a genuinely empty library
			// must settle to idle instead of looping.
			rescanned = true
			log.Info().Msg("music: fallback queue empty, rescanning library")
			e.rescanLibrary()
			continue
		}
		break
	}

	if chosen == nil {
		log.Warn().Msg("music: all queues and the local library are empty")
		e.setIdle()
		return
	}

	e.playTrack(chosen)
}

// playTrack builds the audio source outside the lock and hands it to the
// backend with a completion signal that re-enters Advance exactly once.
func (e *Engine) playTrack(t *Track) {
	var (
		src *stream.Source
		err error
	)
	displayTitle := t.Title

	if t.IsStream {
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.ResolveTimeout)
		streamURL, title, rerr := e.extractor.Resolve(ctx, t.ID)
		cancel()
		if rerr != nil {
			// Recoverable per-track: report, go idle, never retry the
			// same track in a loop.
			log.Error().Err(rerr).Str("url", t.ID).Msg("music: stream extraction failed")
			if t.Origin != "" {
				e.notifier.Announce(t.Origin, fmt.Sprintf("❌ Could not play **%s**, skipping.", displayTitle))
			}
			e.setIdle()
			return
		}
		if title != "" {
			displayTitle = title
			e.st.mu.Lock()
			if e.st.current != nil && e.st.current.ID == t.ID {
				e.st.current.Title = title
			}
			e.st.mu.Unlock()
		}
		src, err = e.openRemote(streamURL)
	} else {
		src, err = e.openLocal(t.ID, e.opts.Normalize)
	}

	if err != nil {
		log.Error().Err(err).Str("track", displayTitle).Msg("music: failed to open audio source")
		if t.Origin != "" {
			e.notifier.Announce(t.Origin, fmt.Sprintf("❌ Playback error on **%s**.", displayTitle))
		}
		e.setIdle()
		return
	}

	conn, ok := e.conn.Current()
	if !ok {
		src.Close()
		log.Error().Msg("music: connection lost before playback start")
		e.setIdle()
		return
	}

	sess := &playSession{
		stop: make(chan struct{}),
		ctl:  stream.NewControls(e.volume()),
	}
	e.sessionMu.Lock()
	e.session = sess
	e.sessionMu.Unlock()

	// The track is handed to the backend; the processing window closes.
	e.st.mu.Lock()
	e.st.processing = false
	e.st.mu.Unlock()

	go func() {
		perr := stream.Play(src, conn, sess.ctl, sess.stop)
		sess.doneOnce.Do(func() {
			sess.done.Store(true)
			// Completion observed: open the processing window before the
			// watchdog can see the idle gap.
			e.st.mu.Lock()
			e.st.processing = true
			e.st.mu.Unlock()
			e.Advance(perr)
		})
	}()

	log.Info().Str("track", displayTitle).Bool("stream", t.IsStream).Msg("music: now playing")
	e.notifier.SetListeningStatus(displayTitle)

	if t.Origin != "" {
		e.notifier.Announce(t.Origin, fmt.Sprintf("🎵 Now Playing: **%s**", displayTitle))
	} else if e.opts.AnnounceTracks && e.opts.AnnounceChannel != "" {
		e.notifier.Announce(e.opts.AnnounceChannel, fmt.Sprintf("🎵 Now Playing: **%s**", displayTitle))
	}
}

func (e *Engine) rescanLibrary() {
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.ScanTimeout)
	defer cancel()

	tracks, err := e.library.Scan(ctx)
	if err != nil {
		log.Error().Err(err).Msg("music: library scan failed")
		return
	}

	e.st.mu.Lock()
	e.st.libraryQueue = tracks
	e.st.mu.Unlock()
	log.Info().Int("tracks", len(tracks)).Msg("music: library rescanned and shuffled")
}

func (e *Engine) setIdle() {
	e.st.mu.Lock()
	e.st.playing = false
	e.st.paused = false
	e.st.processing = false
	e.st.current = nil
	e.st.mu.Unlock()
	e.notifier.SetListeningStatus("")
}

// liveSession reports whether a handed-off track is still running.
// Callers may hold the state mutex; this only touches sessionMu.
func (e *Engine) liveSession() bool {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()
	return e.session != nil && !e.session.done.Load()
}

func (e *Engine) currentSession() *playSession {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()
	return e.session
}

func (e *Engine) volume() float64 {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()
	return e.st.volume
}
