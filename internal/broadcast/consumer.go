// SPDX-License-Identifier: MIT
package broadcast

import (
	"github.com/google/uuid"

	applog "seedscope/internal/log"
)

const component = applog.Component("Broadcast")

// Consumer receives fixed-width snapshots of the live stream.
// All fields are guarded by the owning broadcaster's mutex while registered.
type Consumer struct {
	destL      []float32
	destR      []float32
	ready      bool
	pending    int // samples pushed since the last fill
	sampleRate float64
	filled     chan struct{}
	owner      *Broadcaster // set on first registration, never cleared
	registered bool
}

// NewConsumer allocates a consumer with destination buffers of width w.
func NewConsumer(w int) *Consumer {
	if w < 0 {
		w = 0
	}
	return &Consumer{
		destL:  make([]float32, w),
		destR:  make([]float32, w),
		filled: make(chan struct{}, 1),
	}
}

// Window returns the consumer's snapshot width W.
func (c *Consumer) Window() int {
	return len(c.destL)
}

func (c *Consumer) lock() func() {
	if b := c.owner; b != nil {
		b.mu.Lock()
		return b.mu.Unlock
	}
	return func() {}
}

// Ready reports whether a snapshot is waiting to be taken.
func (c *Consumer) Ready() bool {
	defer c.lock()()
	return c.ready
}

// Reset discards the current snapshot so the next fill can happen.
func (c *Consumer) Reset() {
	defer c.lock()()
	c.ready = false
}

// SampleRate returns the stream sample rate at the time of the last fill.
func (c *Consumer) SampleRate() float64 {
	defer c.lock()()
	return c.sampleRate
}

// Take copies a ready snapshot into dstL/dstR and resets the ready flag.
// It returns false, leaving dst untouched, when no snapshot is ready.
// dst slices shorter than W receive a prefix of the window.
func (c *Consumer) Take(dstL, dstR []float32) bool {
	defer c.lock()()
	if !c.ready {
		return false
	}
	copy(dstL, c.destL)
	copy(dstR, c.destR)
	c.ready = false
	return true
}

// Filled delivers a signal after each fill. The channel holds at most one
// pending signal; missed signals coalesce.
func (c *Consumer) Filled() <-chan struct{} {
	return c.filled
}

// Registration is a scoped consumer registration. Closing it removes the
// consumer from the broadcaster; Close is idempotent.
type Registration struct {
	*Consumer
	ID          string
	broadcaster *Broadcaster
}

// Register creates a consumer of width w and registers it.
func (b *Broadcaster) Register(w int) (*Registration, error) {
	c := NewConsumer(w)
	if err := b.AddConsumer(c); err != nil {
		return nil, err
	}
	reg := &Registration{
		Consumer:    c,
		ID:          uuid.NewString(),
		broadcaster: b,
	}
	component.Debugf("registered consumer %s (window %d)", reg.ID, w)
	return reg, nil
}

// Close deregisters the consumer.
func (r *Registration) Close() error {
	if r == nil || r.broadcaster == nil {
		return nil
	}
	r.broadcaster.RemoveConsumer(r.Consumer)
	component.Debugf("released consumer %s", r.ID)
	r.broadcaster = nil
	return nil
}
