// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	"seedscope/internal/analysis"
	applog "seedscope/internal/log"
)

// LoggingTransport implements the Transport interface by logging frame
// summaries at debug level.
type LoggingTransport struct {
	log  applog.Component
	sent atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	lt := &LoggingTransport{log: applog.Component("Transport[log]")}
	lt.log.Infof("using logging transport")
	return lt
}

// Send logs a one-line summary of data. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	lt.sent.Add(1)

	switch f := data.(type) {
	case analysis.Frame:
		lt.logFrame(&f)
	case *analysis.Frame:
		lt.logFrame(f)
	default:
		lt.log.Debugf("received %T", data)
	}
	return nil
}

func (lt *LoggingTransport) logFrame(f *analysis.Frame) {
	if f == nil {
		return
	}
	peak := 0.0
	for _, v := range f.Levels {
		peak = max(peak, v)
	}
	lt.log.Debugf("%s #%d: %d levels, max %.3f, peak L %s R %s",
		f.Kind, f.Seq, len(f.Levels), peak,
		analysis.FormatDB(f.PeakL), analysis.FormatDB(f.PeakR))
}

// Sent returns the number of Send calls.
func (lt *LoggingTransport) Sent() uint64 {
	return lt.sent.Load()
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	lt.log.Debugf("closed after %d frames", lt.sent.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
