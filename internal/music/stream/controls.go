package stream

import (
	"math"
	"sync/atomic"
)

// Controls carries live adjustments into a running send loop. Volume and
// pause changes take effect on the next frame.
type Controls struct {
	volumeBits atomic.Uint64
	paused     atomic.Bool
}

func NewControls(volume float64) *Controls {
	c := &Controls{}
	c.SetVolume(volume)
	return c
}

func (c *Controls) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	c.volumeBits.Store(math.Float64bits(v))
}

func (c *Controls) Volume() float64 {
	return math.Float64frombits(c.volumeBits.Load())
}

func (c *Controls) SetPaused(p bool) {
	c.paused.Store(p)
}

func (c *Controls) Paused() bool {
	return c.paused.Load()
}
