// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"sync"
	"time"

	applog "seedscope/internal/log"
)

// DefaultMonitorInterval polls at roughly 30 Hz.
const DefaultMonitorInterval = 33 * time.Millisecond

// Monitor is the periodic task that drains one FrameSource. It polls on a
// ticker and also wakes as soon as the source reports a fill. Each frame is
// kept as the latest result and forwarded to the sender, if any.
type Monitor struct {
	name     string
	interval time.Duration
	source   FrameSource
	out      Sender

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // protects ticker and doneChan during Start/Stop

	latestMu sync.RWMutex
	latest   Frame
	seq      uint32
	scratch  Frame

	log applog.Component
}

// NewMonitor creates a monitor. out may be nil when frames are only read
// through Latest. A non-positive interval falls back to
// DefaultMonitorInterval.
func NewMonitor(name string, interval time.Duration, source FrameSource, out Sender) (*Monitor, error) {
	if source == nil {
		return nil, fmt.Errorf("monitor %s: frame source cannot be nil", name)
	}
	logger := applog.Component("Monitor[" + name + "]")
	if interval <= 0 {
		interval = DefaultMonitorInterval
		logger.Warnf("invalid interval, defaulting to %s", interval)
	}
	return &Monitor{
		name:     name,
		interval: interval,
		source:   source,
		out:      out,
		log:      logger,
	}, nil
}

// Name returns the monitor's name.
func (m *Monitor) Name() string { return m.name }

// Start launches the polling goroutine. Calling Start on a running monitor
// is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.ticker != nil {
		m.mu.Unlock()
		m.log.Debugf("Start called but already running")
		return
	}

	m.ticker = time.NewTicker(m.interval)
	m.doneChan = make(chan struct{})
	m.stopOnce = sync.Once{}

	ticker := m.ticker
	doneChan := m.doneChan
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.log.Debugf("started (interval %s)", m.interval)
		for {
			select {
			case <-ticker.C:
				m.Poll()
			case <-m.source.Filled():
				m.Poll()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the polling goroutine and waits for it to exit. Calling Stop
// on a stopped monitor is a no-op.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if m.ticker == nil {
		m.mu.Unlock()
		return nil
	}
	m.stopOnce.Do(func() {
		close(m.doneChan)
		m.ticker.Stop()
		m.ticker = nil
	})
	m.mu.Unlock()

	m.wg.Wait()
	m.log.Debugf("stopped")
	return nil
}

// Close stops the monitor and releases its source.
func (m *Monitor) Close() error {
	if err := m.Stop(); err != nil {
		return err
	}
	return m.source.Close()
}

// Poll takes one frame from the source if available and publishes it. It
// reports whether a frame was produced. Poll is called by the monitor
// goroutine; calling it directly is only safe while the monitor is stopped.
func (m *Monitor) Poll() bool {
	if !m.source.Next(&m.scratch) {
		return false
	}

	m.seq++
	m.scratch.Seq = m.seq
	m.scratch.Time = time.Now()
	m.scratch.Kind = m.source.Kind()

	m.latestMu.Lock()
	levels := append(m.latest.Levels[:0], m.scratch.Levels...)
	m.latest = m.scratch
	m.latest.Levels = levels
	m.latestMu.Unlock()

	if m.out != nil {
		if err := m.out.Send(m.scratch.Clone()); err != nil {
			m.log.Debugf("send frame %d: %v", m.seq, err)
		}
	}
	return true
}

// Latest returns a copy of the most recent frame. ok is false until the
// first frame arrives.
func (m *Monitor) Latest() (f Frame, ok bool) {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	return m.latest.Clone(), m.latest.Seq != 0
}

// LatestInto copies the most recent levels into dst without allocating and
// returns the frame with Levels set to the filled prefix of dst. Seq is zero
// until the first frame arrives.
func (m *Monitor) LatestInto(dst []float64) Frame {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	n := copy(dst, m.latest.Levels)
	f := m.latest
	f.Levels = dst[:n]
	return f
}
