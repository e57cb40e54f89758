// SPDX-License-Identifier: MIT
/*
Package recorder implements the four-slot capture and playback machine that
sits on the audio path.

A Recorder is always in one of three modes. Waiting is idle. Recording
appends incoming blocks to the active entry, skipping leading silence, and
returns to Waiting when the entry is full. Playing adds the active entry (raw
or band-pass filtered) into the outgoing block and returns to Waiting at the
end of the entry.

Thread Safety:
  - Control calls (Record, Play, Stop, SetCurrentEntryIndex, Restore,
    LoadEntry) are serialized by a control mutex.
  - Session fields are guarded by a state mutex shared with Push. It is only
    held for constant-time updates and sample copies.
  - Play designs and applies the filter while holding the control mutex but
    not the state mutex, so the audio thread never waits on convolution.
*/
package recorder

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"seedscope/internal/dsp"
	applog "seedscope/internal/log"
)

const (
	// NumEntries is the number of recording slots.
	NumEntries = 4
	// DefaultSampleRate is used to size entries before a stream is known.
	DefaultSampleRate = 48000
	// MaxSeconds is the length of one entry at DefaultSampleRate.
	MaxSeconds = 4
	// DefaultCapacity is the per-entry capacity C in samples.
	DefaultCapacity = DefaultSampleRate * MaxSeconds

	DefaultFilterTaps   = 100
	DefaultFilterLowHz  = 20.0
	DefaultFilterHighHz = 20000.0
	DefaultBaseFreq     = 440.0
	DefaultFocusHz      = 1000.0
	DefaultFocusSec     = MaxSeconds / 2.0
)

var (
	// ErrBusy is returned by operations that require the Waiting mode.
	ErrBusy = errors.New("recorder is busy")
	// ErrBadState is returned for malformed persisted state or entry data.
	ErrBadState = errors.New("invalid recorder state")
)

const component = applog.Component("Recorder")

// Mode is the recorder's session mode.
type Mode int32

const (
	Waiting Mode = iota
	Recording
	Playing
)

func (m Mode) String() string {
	switch m {
	case Waiting:
		return "Waiting"
	case Recording:
		return "Recording"
	case Playing:
		return "Playing"
	default:
		return "Unknown"
	}
}

// Entry is one recording slot. Its buffers are allocated once and mutated
// in place; read them only while the recorder is Waiting.
type Entry struct {
	SampleRate float64
	DataL      []float32
	DataR      []float32
	// Length is the number of samples written by the last capture or load.
	Length int
}

// EntryParams are the per-slot settings kept alongside the audio.
// BaseFreq is the fundamental of the harmonic guides. FocusHz and FocusSec
// select the frequency row and time column of the slot's focus views.
type EntryParams struct {
	BaseFreq     float64
	FilterLowHz  float64
	FilterHighHz float64
	FocusHz      float64
	FocusSec     float64
}

// DefaultEntryParams returns the settings a fresh slot starts with.
func DefaultEntryParams() EntryParams {
	return EntryParams{
		BaseFreq:     DefaultBaseFreq,
		FilterLowHz:  DefaultFilterLowHz,
		FilterHighHz: DefaultFilterHighHz,
		FocusHz:      DefaultFocusHz,
		FocusSec:     DefaultFocusSec,
	}
}

// withDefaults fills settings missing from older state files.
func (p EntryParams) withDefaults() EntryParams {
	d := DefaultEntryParams()
	if p.BaseFreq <= 0 {
		p.BaseFreq = d.BaseFreq
	}
	if p.FilterLowHz <= 0 {
		p.FilterLowHz = d.FilterLowHz
	}
	if p.FilterHighHz <= p.FilterLowHz {
		p.FilterHighHz = d.FilterHighHz
	}
	if p.FocusHz <= 0 {
		p.FocusHz = d.FocusHz
	}
	p.FocusSec = max(p.FocusSec, 0)
	return p
}

// Recorder is the capture and playback state machine.
type Recorder struct {
	control sync.Mutex
	mu      sync.Mutex

	entries  []*Entry
	params   []EntryParams
	capacity int

	current int
	cursor  int
	mode    Mode

	filterEnabled bool
	filterTaps    int
	filterLow     float64
	filterHigh    float64
	filterValid   bool
	filteredL     []float32
	filteredR     []float32

	changes chan struct{}
}

// CapacityFor returns round(sampleRate * seconds).
func CapacityFor(sampleRate, seconds float64) int {
	return int(math.Round(sampleRate * seconds))
}

// New creates a recorder with numEntries slots of capacity samples each.
// Non-positive arguments fall back to NumEntries and DefaultCapacity.
func New(numEntries, capacity int) *Recorder {
	if numEntries <= 0 {
		numEntries = NumEntries
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	r := &Recorder{
		entries:    make([]*Entry, numEntries),
		params:     make([]EntryParams, numEntries),
		capacity:   capacity,
		filterTaps: DefaultFilterTaps,
		filteredL:  make([]float32, capacity),
		filteredR:  make([]float32, capacity),
		changes:    make(chan struct{}, 1),
	}
	for i := range r.entries {
		r.entries[i] = &Entry{
			SampleRate: DefaultSampleRate,
			DataL:      make([]float32, capacity),
			DataR:      make([]float32, capacity),
		}
		r.params[i] = DefaultEntryParams()
	}
	return r
}

// Changes delivers a signal whenever the mode changes. At most one signal
// is buffered.
func (r *Recorder) Changes() <-chan struct{} {
	return r.changes
}

func (r *Recorder) notify() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}

// Record starts capturing into the current entry. Only valid while Waiting.
// The entry is cleared and any cached filtered audio is discarded.
func (r *Recorder) Record() {
	r.control.Lock()
	defer r.control.Unlock()

	if r.Mode() != Waiting {
		return
	}

	// Push leaves entries alone while Waiting, and only control calls leave
	// Waiting, so the clear can run without the state mutex.
	e := r.entries[r.current]
	clear(e.DataL)
	clear(e.DataR)

	r.mu.Lock()
	e.Length = 0
	r.cursor = 0
	r.filterValid = false
	r.mode = Recording
	r.mu.Unlock()

	component.Debugf("recording entry %d", r.current)
	r.notify()
}

// Play starts playback of the current entry. Only valid while Waiting.
// With filterEnabled the entry is band-passed between lowHz and highHz using
// a taps-order FIR; the filtered copy is cached and recomputed only when
// filtering is newly enabled, a parameter changed, or the entry changed.
func (r *Recorder) Play(filterEnabled bool, taps int, lowHz, highHz float64) {
	r.control.Lock()
	defer r.control.Unlock()

	r.mu.Lock()
	if r.mode != Waiting {
		r.mu.Unlock()
		return
	}
	recompute := filterEnabled && (!r.filterEnabled || !r.filterValid ||
		taps != r.filterTaps || lowHz != r.filterLow || highHz != r.filterHigh)
	entry := r.entries[r.current]
	r.mu.Unlock()

	if recompute {
		h := dsp.DesignBandPass(lowHz, highHz, entry.SampleRate, taps)
		if err := dsp.ApplyInto(context.Background(), r.filteredL, r.filteredR, h, entry.DataL, entry.DataR); err != nil {
			component.Errorf("filter entry %d: %v", r.current, err)
			return
		}
		component.Debugf("filtered entry %d: %.0f-%.0f Hz, %d taps", r.current, lowHz, highHz, taps)
	}

	r.mu.Lock()
	if recompute {
		r.filterTaps = taps
		r.filterLow = lowHz
		r.filterHigh = highHz
		r.filterValid = true
	}
	r.filterEnabled = filterEnabled
	r.cursor = 0
	r.mode = Playing
	r.mu.Unlock()

	r.notify()
}

// Stop returns to Waiting from any mode. Calling it repeatedly is harmless.
func (r *Recorder) Stop() {
	r.control.Lock()
	defer r.control.Unlock()

	r.mu.Lock()
	changed := r.mode != Waiting
	r.mode = Waiting
	r.cursor = 0
	r.mu.Unlock()

	if changed {
		r.notify()
	}
}

// SetCurrentEntryIndex selects the active slot. It is ignored unless the
// recorder is Waiting and i is in range.
func (r *Recorder) SetCurrentEntryIndex(i int) {
	r.control.Lock()
	defer r.control.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode != Waiting || i < 0 || i >= len(r.entries) {
		return
	}
	if i != r.current {
		r.current = i
		r.filterValid = false
	}
}

// Push feeds one audio block through the recorder. While Recording the
// block is captured; while Playing the entry is added into left and right
// in place. Only min(len(left), len(right)) samples are used.
// Performance Critical (Hot Path): no allocations, no logging.
func (r *Recorder) Push(left, right []float32, sampleRate float64) {
	n := min(len(left), len(right))

	r.mu.Lock()
	changed := false

	switch r.mode {
	case Recording:
		e := r.entries[r.current]
		e.SampleRate = sampleRate
		for i := range n {
			if r.cursor == 0 && left[i] == 0 && right[i] == 0 {
				continue
			}
			e.DataL[r.cursor] = left[i]
			e.DataR[r.cursor] = right[i]
			r.cursor++
			e.Length = r.cursor
			if r.cursor >= r.capacity {
				r.mode = Waiting
				r.cursor = 0
				changed = true
				break
			}
		}

	case Playing:
		srcL, srcR := r.entries[r.current].DataL, r.entries[r.current].DataR
		if r.filterEnabled {
			srcL, srcR = r.filteredL, r.filteredR
		}
		for i := range n {
			left[i] += srcL[r.cursor]
			right[i] += srcR[r.cursor]
			r.cursor++
			if r.cursor >= r.capacity {
				r.mode = Waiting
				r.cursor = 0
				changed = true
				break
			}
		}
	}

	r.mu.Unlock()

	if changed {
		r.notify()
	}
}

// CanOperate reports whether control actions are currently accepted.
func (r *Recorder) CanOperate() bool {
	return r.Mode() == Waiting
}

// Mode returns the current mode.
func (r *Recorder) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// CurrentEntryIndex returns the active slot.
func (r *Recorder) CurrentEntryIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Cursor returns the read or write position within the active entry.
func (r *Recorder) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// Progress returns Cursor()/Capacity() in [0, 1).
func (r *Recorder) Progress() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(r.cursor) / float64(r.capacity)
}

// FilterEnabled reports whether the last Play used the filter.
func (r *Recorder) FilterEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterEnabled
}

// FilterTaps returns the filter order of the last filtered Play.
func (r *Recorder) FilterTaps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterTaps
}

// Capacity returns the per-entry capacity C.
func (r *Recorder) Capacity() int {
	return r.capacity
}

// NumEntries returns the number of slots.
func (r *Recorder) NumEntries() int {
	return len(r.entries)
}

// Entry returns slot i, or nil when i is out of range.
func (r *Recorder) Entry(i int) *Entry {
	if i < 0 || i >= len(r.entries) {
		return nil
	}
	return r.entries[i]
}

// EntryDuration returns the captured length of slot i as time. It is safe
// to call while recording.
func (r *Recorder) EntryDuration(i int) time.Duration {
	if i < 0 || i >= len(r.entries) {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[i]
	if e.SampleRate <= 0 {
		return 0
	}
	return time.Duration(math.Round(float64(e.Length) / e.SampleRate * float64(time.Second)))
}

// CapacityDuration returns how much time slot i can hold at its sample rate.
func (r *Recorder) CapacityDuration(i int) time.Duration {
	if i < 0 || i >= len(r.entries) {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rate := r.entries[i].SampleRate
	if rate <= 0 {
		return 0
	}
	return time.Duration(math.Round(float64(r.capacity) / rate * float64(time.Second)))
}

// Params returns the settings of slot i.
func (r *Recorder) Params(i int) EntryParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.params) {
		return DefaultEntryParams()
	}
	return r.params[i]
}

// SetParams replaces the settings of slot i.
func (r *Recorder) SetParams(i int, p EntryParams) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i >= 0 && i < len(r.params) {
		r.params[i] = p
	}
}
