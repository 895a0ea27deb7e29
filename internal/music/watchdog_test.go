package music

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresence struct {
	mu        sync.Mutex
	listeners []string
}

func (p *fakePresence) set(ids ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = ids
}

func (p *fakePresence) ListenersWithCameraOn() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.listeners...)
}

func TestReconcileLeavesWhenChannelEmpties(t *testing.T) {
	e, dialer, _ := newTestEngine(t, &fakeLibrary{})
	presence := &fakePresence{}
	mgr := NewPresenceManager(e, presence)

	// Connect first via a start with listeners present.
	presence.set("user1")
	mgr.Reconcile()
	require.True(t, e.Connected())

	presence.set()
	mgr.Reconcile()

	assert.False(t, e.Connected())
	assert.Equal(t, 1, dialer.joinCount())
}

func TestReconcileStartsWhenListenersAppear(t *testing.T) {
	e, dialer, _ := newTestEngine(t, &fakeLibrary{})
	presence := &fakePresence{}
	mgr := NewPresenceManager(e, presence)

	mgr.Reconcile()
	assert.Equal(t, 0, dialer.joinCount(), "no listeners, no connection")

	presence.set("user1", "user2")
	mgr.Reconcile()
	assert.Equal(t, 1, dialer.joinCount())
}

func TestWatchdogTickRepairsMismatch(t *testing.T) {
	e, dialer, _ := newTestEngine(t, &fakeLibrary{})
	presence := &fakePresence{}
	mgr := NewPresenceManager(e, presence)
	wd := NewWatchdog(e, presence, mgr, 0)

	presence.set("user1")
	wd.Tick()

	assert.Equal(t, 1, dialer.joinCount(), "mismatch must trigger reconciliation")
}

// Connected with listeners but nothing playing and no selection in flight:
// the watchdog force-starts playback.
func TestWatchdogTickForceStartsWhenSilent(t *testing.T) {
	lib := &fakeLibrary{}
	e, _, _ := newTestEngine(t, lib)
	presence := &fakePresence{}
	mgr := NewPresenceManager(e, presence)
	wd := NewWatchdog(e, presence, mgr, 0)

	presence.set("user1")
	require.True(t, e.conn.Ensure())

	wd.Tick()

	assert.Greater(t, lib.scanCount(), 0, "force start must run a selection attempt")
}

func TestWatchdogTickLeavesRunningPlaybackAlone(t *testing.T) {
	lib := &fakeLibrary{}
	e, _, _ := newTestEngine(t, lib)
	presence := &fakePresence{}
	mgr := NewPresenceManager(e, presence)
	wd := NewWatchdog(e, presence, mgr, 0)

	presence.set("user1")
	require.True(t, e.conn.Ensure())
	e.st.mu.Lock()
	e.st.playing = true
	e.st.mu.Unlock()

	wd.Tick()

	assert.Equal(t, 0, lib.scanCount(), "healthy playback must not be restarted")
}
