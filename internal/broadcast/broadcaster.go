// SPDX-License-Identifier: MIT
/*
Package broadcast distributes the live stereo stream to visualization
consumers.

The audio callback pushes every block into a fixed-size ring. Each registered
Consumer owns a pair of destination buffers of width W; once W new samples
have passed through the ring since its last fill, the most recent W samples
are copied into those buffers (oldest first) and the consumer is marked
ready. The consumer's owner takes the data and resets the flag before the
next fill can happen.

Thread Safety:
  - One mutex per Broadcaster guards the ring, the consumer list and every
    consumer's ready flag and buffers.
  - Push only copies under the lock. It never allocates and never calls
    back into consumer code.
  - Readers copy out through Consumer.Take, so the ready transition always
    happens-before the read.
*/
package broadcast

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the ring length used by the live engine.
const DefaultCapacity = 2048

var (
	// ErrInvalidWindow is returned for consumers with a non-positive window.
	ErrInvalidWindow = errors.New("consumer window must be positive")
	// ErrWindowTooLarge is returned when a consumer window exceeds the ring.
	ErrWindowTooLarge = errors.New("consumer window exceeds broadcaster capacity")
	// ErrAlreadyRegistered is returned when a consumer is added twice.
	ErrAlreadyRegistered = errors.New("consumer already registered")
)

// Broadcaster is the producer side of the snapshot pipeline.
type Broadcaster struct {
	mu         sync.Mutex
	ringL      []float32
	ringR      []float32
	index      int // next write position
	sampleRate float64
	consumers  []*Consumer
}

// New creates a broadcaster with a ring of the given capacity.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Broadcaster {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Broadcaster{
		ringL: make([]float32, capacity),
		ringR: make([]float32, capacity),
		// Pre-size so AddConsumer rarely grows the slice.
		consumers: make([]*Consumer, 0, 8),
	}
}

// Capacity returns the ring length R.
func (b *Broadcaster) Capacity() int {
	return len(b.ringL)
}

// AddConsumer registers c. The consumer's window must satisfy 0 < W <= R.
func (b *Broadcaster) AddConsumer(c *Consumer) error {
	if c == nil || c.Window() <= 0 {
		return ErrInvalidWindow
	}
	if c.Window() > b.Capacity() {
		return fmt.Errorf("%w: window %d, capacity %d", ErrWindowTooLarge, c.Window(), b.Capacity())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if c.registered {
		return ErrAlreadyRegistered
	}
	if c.owner != nil && c.owner != b {
		return fmt.Errorf("%w: consumer belongs to another broadcaster", ErrAlreadyRegistered)
	}
	c.owner = b
	c.registered = true
	c.pending = 0
	c.ready = false
	b.consumers = append(b.consumers, c)
	return nil
}

// RemoveConsumer deregisters c. Removing an unknown consumer is a no-op.
func (b *Broadcaster) RemoveConsumer(c *Consumer) {
	if c == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, existing := range b.consumers {
		if existing == c {
			// Preserve registration order; the list is short.
			copy(b.consumers[i:], b.consumers[i+1:])
			b.consumers[len(b.consumers)-1] = nil
			b.consumers = b.consumers[:len(b.consumers)-1]
			c.registered = false
			return
		}
	}
}

// NumConsumers returns the number of registered consumers.
func (b *Broadcaster) NumConsumers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.consumers)
}

// Push appends one stereo block to the ring and fills every consumer whose
// window has elapsed. Only min(len(left), len(right)) samples are used.
// Performance Critical (Hot Path): copy-only, no allocations.
func (b *Broadcaster) Push(left, right []float32, sampleRate float64) {
	n := min(len(left), len(right))
	if n == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.sampleRate = sampleRate
	capacity := len(b.ringL)

	for i := range n {
		b.ringL[b.index] = left[i]
		b.ringR[b.index] = right[i]
		b.index++
		if b.index == capacity {
			b.index = 0
		}

		for _, c := range b.consumers {
			if c.ready {
				continue
			}
			c.pending++
			if c.pending >= len(c.destL) {
				b.fill(c)
			}
		}
	}
}

// fill copies the most recent W samples into c. Caller holds b.mu.
func (b *Broadcaster) fill(c *Consumer) {
	w := len(c.destL)
	start := b.index - w
	if start >= 0 {
		copy(c.destL, b.ringL[start:b.index])
		copy(c.destR, b.ringR[start:b.index])
	} else {
		// Window wraps the end of the ring.
		start += len(b.ringL)
		head := copy(c.destL, b.ringL[start:])
		copy(c.destR, b.ringR[start:])
		copy(c.destL[head:], b.ringL[:b.index])
		copy(c.destR[head:], b.ringR[:b.index])
	}

	c.pending = 0
	c.ready = true
	c.sampleRate = b.sampleRate

	select {
	case c.filled <- struct{}{}:
	default:
	}
}
