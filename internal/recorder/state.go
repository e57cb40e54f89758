// SPDX-License-Identifier: MIT
package recorder

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// State is the persisted form of a recorder: scalar parameters plus each
// entry's samples as base64 of little-endian float32.
type State struct {
	FilterTaps   int          `yaml:"filter_taps"`
	CurrentEntry int          `yaml:"current_entry"`
	Entries      []EntryState `yaml:"entries"`
}

type EntryState struct {
	SampleRate   float64 `yaml:"sample_rate"`
	Length       int     `yaml:"length"`
	BaseFreq     float64 `yaml:"base_freq"`
	FilterLowHz  float64 `yaml:"filter_low_hz"`
	FilterHighHz float64 `yaml:"filter_high_hz"`
	FocusHz      float64 `yaml:"focus_hz"`
	FocusSec     float64 `yaml:"focus_sec"`
	DataL        string  `yaml:"data_l"`
	DataR        string  `yaml:"data_r"`
}

// EncodeSamples returns samples as base64 of little-endian float32.
func EncodeSamples(samples []float32) string {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(s))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeSamples reverses EncodeSamples.
func DecodeSamples(s string) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadState, err)
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("%w: sample data is %d bytes, not a multiple of 4", ErrBadState, len(buf))
	}
	samples := make([]float32, len(buf)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return samples, nil
}

// Snapshot captures the recorder's persisted state. Only the first Length
// samples of each entry are stored.
func (r *Recorder) Snapshot() *State {
	r.control.Lock()
	defer r.control.Unlock()

	type copied struct {
		l, r []float32
		es   EntryState
	}
	entries := make([]copied, len(r.entries))

	r.mu.Lock()
	st := &State{
		FilterTaps:   r.filterTaps,
		CurrentEntry: r.current,
	}
	for i, e := range r.entries {
		p := r.params[i]
		entries[i] = copied{
			l: append([]float32(nil), e.DataL[:e.Length]...),
			r: append([]float32(nil), e.DataR[:e.Length]...),
			es: EntryState{
				SampleRate:   e.SampleRate,
				Length:       e.Length,
				BaseFreq:     p.BaseFreq,
				FilterLowHz:  p.FilterLowHz,
				FilterHighHz: p.FilterHighHz,
				FocusHz:      p.FocusHz,
				FocusSec:     p.FocusSec,
			},
		}
	}
	r.mu.Unlock()

	st.Entries = make([]EntryState, len(entries))
	for i, c := range entries {
		c.es.DataL = EncodeSamples(c.l)
		c.es.DataR = EncodeSamples(c.r)
		st.Entries[i] = c.es
	}
	return st
}

// Restore loads s into the recorder. It fails with ErrBusy unless the
// recorder is Waiting, and with ErrBadState if any sample blob is malformed,
// in which case nothing is changed. Entries longer than the capacity are
// truncated; extra entries are ignored.
func (r *Recorder) Restore(s *State) error {
	if s == nil {
		return fmt.Errorf("%w: nil state", ErrBadState)
	}

	type decoded struct{ l, r []float32 }
	data := make([]decoded, min(len(s.Entries), len(r.entries)))
	for i := range data {
		l, err := DecodeSamples(s.Entries[i].DataL)
		if err != nil {
			return fmt.Errorf("entry %d left: %w", i, err)
		}
		rr, err := DecodeSamples(s.Entries[i].DataR)
		if err != nil {
			return fmt.Errorf("entry %d right: %w", i, err)
		}
		data[i] = decoded{l, rr}
	}

	r.control.Lock()
	defer r.control.Unlock()

	if r.Mode() != Waiting {
		return ErrBusy
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, d := range data {
		es := s.Entries[i]
		e := r.entries[i]
		e.Length = fillEntry(e, d.l, d.r, r.capacity)
		if es.SampleRate > 0 {
			e.SampleRate = es.SampleRate
		}
		r.params[i] = EntryParams{
			BaseFreq:     es.BaseFreq,
			FilterLowHz:  es.FilterLowHz,
			FilterHighHz: es.FilterHighHz,
			FocusHz:      es.FocusHz,
			FocusSec:     es.FocusSec,
		}.withDefaults()
	}
	if s.FilterTaps > 0 {
		r.filterTaps = s.FilterTaps
	}
	if s.CurrentEntry >= 0 && s.CurrentEntry < len(r.entries) {
		r.current = s.CurrentEntry
	}
	r.filterValid = false

	component.Infof("restored %d entries", len(data))
	return nil
}

// fillEntry copies l and r into e up to capacity, zeroing the remainder,
// and returns the number of samples stored.
func fillEntry(e *Entry, l, r []float32, capacity int) int {
	n := min(len(l), len(r), capacity)
	copy(e.DataL, l[:n])
	copy(e.DataR, r[:n])
	clear(e.DataL[n:])
	clear(e.DataR[n:])
	return n
}

// SaveState writes s to path as YAML.
func SaveState(path string, s *State) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal recorder state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write recorder state: %w", err)
	}
	return nil
}

// LoadState reads a YAML state file written by SaveState.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recorder state: %w", err)
	}
	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadState, err)
	}
	return &s, nil
}
