// SPDX-License-Identifier: MIT
/*
Package transport fans analysis frames out of the process.

Monitors hand every frame to a Transport. Implementations must be safe for
concurrent use and must not block the caller for long; slow receivers drop
frames rather than stall a monitor.
*/
package transport

import (
	"errors"
	"sync"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Multi sends each frame to every transport it holds.
type Multi struct {
	mu         sync.RWMutex
	transports []Transport
}

// NewMulti creates a fan-out over the given transports. Nil entries are
// skipped.
func NewMulti(transports ...Transport) *Multi {
	m := &Multi{}
	for _, t := range transports {
		m.Add(t)
	}
	return m
}

// Add appends t to the fan-out.
func (m *Multi) Add(t Transport) {
	if t == nil {
		return
	}
	m.mu.Lock()
	m.transports = append(m.transports, t)
	m.mu.Unlock()
}

// Len returns the number of transports.
func (m *Multi) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transports)
}

// Send delivers data to every transport and joins their errors.
func (m *Multi) Send(data any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for _, t := range m.transports {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport and empties the fan-out.
func (m *Multi) Close() error {
	m.mu.Lock()
	transports := m.transports
	m.transports = nil
	m.mu.Unlock()

	var errs []error
	for _, t := range transports {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = (*Multi)(nil)
