package stream

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpusConn struct {
	mu       sync.Mutex
	ch       chan []byte
	frames   int
	speaking []bool
}

func newFakeOpusConn() *fakeOpusConn {
	c := &fakeOpusConn{ch: make(chan []byte)}
	go func() {
		for range c.ch {
			c.mu.Lock()
			c.frames++
			c.mu.Unlock()
		}
	}()
	return c
}

func (c *fakeOpusConn) Speaking(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speaking = append(c.speaking, on)
	return nil
}

func (c *fakeOpusConn) OpusSend() chan<- []byte { return c.ch }

func (c *fakeOpusConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// endlessZeros reads silence forever, for stop-signal tests.
type endlessZeros struct{}

func (endlessZeros) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func (endlessZeros) Close() error { return nil }

func TestPlayNaturalEndReturnsNil(t *testing.T) {
	pcm := make([]byte, frameSize*channels*2*3) // three full frames of silence
	src := FromReader(io.NopCloser(bytes.NewReader(pcm)))
	conn := newFakeOpusConn()
	ctl := NewControls(0.5)

	err := Play(src, conn, ctl, make(chan struct{}))

	require.NoError(t, err)
	require.Eventually(t, func() bool { return conn.frameCount() == 3 },
		time.Second, 10*time.Millisecond)
	assert.Equal(t, []bool{true, false}, conn.speaking, "speaking must bracket the stream")
}

func TestPlayTruncatedFinalFrameIsNotAnError(t *testing.T) {
	pcm := make([]byte, frameSize*channels*2+10) // one frame plus a partial tail
	src := FromReader(io.NopCloser(bytes.NewReader(pcm)))
	conn := newFakeOpusConn()

	err := Play(src, conn, NewControls(0.5), make(chan struct{}))

	require.NoError(t, err)
	require.Eventually(t, func() bool { return conn.frameCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestPlayStopSignalInterrupts(t *testing.T) {
	src := FromReader(endlessZeros{})
	conn := newFakeOpusConn()
	stop := make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- Play(src, conn, NewControls(0.5), stop) }()

	time.Sleep(50 * time.Millisecond)
	close(stop)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("play did not stop after the stop signal")
	}
}

func TestPlayPausedSendsNoFrames(t *testing.T) {
	src := FromReader(endlessZeros{})
	conn := newFakeOpusConn()
	ctl := NewControls(0.5)
	ctl.SetPaused(true)
	stop := make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- Play(src, conn, ctl, stop) }()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, conn.frameCount(), "paused stream must not emit frames")

	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("play did not stop while paused")
	}
}
