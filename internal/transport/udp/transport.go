// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"seedscope/internal/analysis"
)

// DefaultInterval sends at roughly 60 Hz.
const DefaultInterval = 16 * time.Millisecond

// Transport publishes analysis frames as binary datagrams. Send only stores
// the newest frame of each kind; a goroutine ticking at the configured
// interval encodes and sends whatever changed since the previous tick.
type Transport struct {
	sender   *Sender
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // protects ticker and doneChan during Start/Stop

	pendingMu sync.Mutex
	pending   map[string]*analysis.Frame
	dirty     map[string]bool
	kinds     []string

	packetBuffer []byte
	sent         uint64
}

// NewTransport creates a transport over sender. Call Start to begin
// publishing. A non-positive interval falls back to DefaultInterval.
func NewTransport(interval time.Duration, sender *Sender) (*Transport, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDP transport: sender cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultInterval
		component.Warnf("invalid interval provided, defaulting to %s", interval)
	}
	component.Infof("publishing to %s every %s", sender.Target(), interval)

	return &Transport{
		sender:       sender,
		interval:     interval,
		pending:      make(map[string]*analysis.Frame),
		dirty:        make(map[string]bool),
		packetBuffer: make([]byte, 0, PacketSize(analysis.DefaultScopeSize)),
	}, nil
}

// Send stores a frame for the next tick. Non-frame data is ignored.
func (t *Transport) Send(data any) error {
	var f *analysis.Frame
	switch v := data.(type) {
	case analysis.Frame:
		f = &v
	case *analysis.Frame:
		f = v
	}
	if f == nil {
		return nil
	}

	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()

	slot, ok := t.pending[f.Kind]
	if !ok {
		slot = &analysis.Frame{}
		t.pending[f.Kind] = slot
		t.kinds = append(t.kinds, f.Kind)
		sort.Strings(t.kinds)
	}
	levels := append(slot.Levels[:0], f.Levels...)
	*slot = *f
	slot.Levels = levels
	t.dirty[f.Kind] = true
	return nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (t *Transport) Start() {
	t.mu.Lock()
	if t.ticker != nil {
		t.mu.Unlock()
		component.Warnf("Start called but already running")
		return
	}

	t.ticker = time.NewTicker(t.interval)
	t.doneChan = make(chan struct{})
	t.stopOnce = sync.Once{}

	ticker := t.ticker
	doneChan := t.doneChan
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ticker.C:
				t.flush()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publishing goroutine to terminate and waits for it.
// It is safe to call Stop multiple times.
func (t *Transport) Stop() error {
	t.mu.Lock()
	if t.ticker == nil {
		t.mu.Unlock()
		return nil
	}

	t.stopOnce.Do(func() {
		close(t.doneChan)
		t.ticker.Stop()
		t.ticker = nil
	})
	t.mu.Unlock()

	t.wg.Wait()
	component.Debugf("publisher stopped after %d packets", t.Sent())
	return nil
}

// flush sends one packet per kind that changed since the previous flush.
// It returns the number of packets sent.
func (t *Transport) flush() int {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()

	n := 0
	for _, kind := range t.kinds {
		if !t.dirty[kind] {
			continue
		}
		t.dirty[kind] = false

		packet, err := AppendPacket(t.packetBuffer[:0], t.pending[kind])
		if err != nil {
			component.Errorf("packing %s frame: %v", kind, err)
			continue
		}
		t.packetBuffer = packet

		if err := t.sender.Send(packet); err != nil {
			component.Debugf("send %s frame: %v", kind, err)
			continue
		}
		t.sent++
		n++
	}
	return n
}

// Sent returns the number of packets written.
func (t *Transport) Sent() uint64 {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	return t.sent
}

// Close stops publishing and closes the sender.
func (t *Transport) Close() error {
	if err := t.Stop(); err != nil {
		return err
	}
	return t.sender.Close()
}
