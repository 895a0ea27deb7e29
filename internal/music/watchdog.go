package music

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// PresenceSource is an externally-observed snapshot of eligible listeners
// (humans in the streaming channel with a camera on).
type PresenceSource interface {
	ListenersWithCameraOn() []string
}

// PresenceManager reconciles voice membership with listener presence:
// join and play when listeners appear, leave when the channel empties.
type PresenceManager struct {
	engine   *Engine
	presence PresenceSource
}

func NewPresenceManager(engine *Engine, presence PresenceSource) *PresenceManager {
	return &PresenceManager{engine: engine, presence: presence}
}

// Reconcile compares desired state against actual and issues corrective
// actions. Safe to call from any goroutine.
func (p *PresenceManager) Reconcile() {
	if !p.engine.opts.Enabled {
		return
	}

	listeners := p.presence.ListenersWithCameraOn()
	connected := p.engine.Connected()

	switch {
	case connected && len(listeners) == 0:
		log.Info().Msg("presence: no listeners with camera, leaving voice")
		p.engine.LeaveVoice()
	case !connected && len(listeners) > 0:
		log.Info().Int("listeners", len(listeners)).Msg("presence: listeners detected, starting playback")
		p.engine.Start()
	}
}

// Watchdog periodically repairs playback. It is the only component allowed
// to infer desired state from presence rather than reacting to an explicit
// event; it exists to cover missed or racy event deliveries.
type Watchdog struct {
	engine   *Engine
	presence PresenceSource
	manager  *PresenceManager
	interval time.Duration
}

func NewWatchdog(engine *Engine, presence PresenceSource, manager *PresenceManager, interval time.Duration) *Watchdog {
	return &Watchdog{
		engine:   engine,
		presence: presence,
		manager:  manager,
		interval: interval,
	}
}

// Run ticks until ctx is cancelled. Connection attempts inside a tick use
// the same bounded-timeout connect as normal startup, so a tick cannot
// block indefinitely.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Tick performs one reconciliation pass.
func (w *Watchdog) Tick() {
	if !w.engine.opts.Enabled {
		return
	}

	listeners := w.presence.ListenersWithCameraOn()
	connected := w.engine.Connected()

	if (len(listeners) > 0) != connected {
		log.Info().Msg("watchdog: presence/connection mismatch, reconciling")
		w.manager.Reconcile()
		return
	}

	if len(listeners) > 0 && connected {
		playing, paused, processing := w.engine.Status()
		if !playing && !paused && !processing {
			// Connected with listeners but silent and no selection in
			// flight: a completion callback was lost. Force a restart.
			log.Warn().Msg("watchdog: idle with listeners present, force-starting playback")
			w.engine.Start()
		}
	}
}
