// SPDX-License-Identifier: MIT
package recorder

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes the first Length samples of e as a stereo PCM WAV file.
// bitDepth must be 16, 24 or 32.
func (e *Entry) WriteWAV(w io.WriteSeeker, bitDepth int) error {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	sampleRate := int(e.SampleRate)
	enc := wav.NewEncoder(w, sampleRate, bitDepth, 2, 1)

	scale := float64(int64(1)<<(bitDepth-1) - 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 2,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, 2*e.Length),
		SourceBitDepth: bitDepth,
	}
	for i := range e.Length {
		buf.Data[2*i] = toPCM(e.DataL[i], scale)
		buf.Data[2*i+1] = toPCM(e.DataR[i], scale)
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

func toPCM(s float32, scale float64) int {
	v := float64(s)
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int(v * scale)
}

// ReadWAV decodes a PCM WAV file into float32 channels in [-1, 1]. Mono
// files are returned with identical left and right channels; channels past
// the second are ignored.
func ReadWAV(rs io.ReadSeeker) (sampleRate float64, left, right []float32, err error) {
	d := wav.NewDecoder(rs)
	if !d.IsValidFile() {
		return 0, nil, nil, fmt.Errorf("not a valid wav file")
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return 0, nil, nil, fmt.Errorf("decode wav: %w", err)
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		return 0, nil, nil, fmt.Errorf("wav has no channels")
	}
	bitDepth := int(d.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := 1 / float64(int64(1)<<(bitDepth-1))
	if bitDepth == 8 {
		// 8-bit PCM is unsigned; go-audio leaves the offset in place.
		scale = 1.0 / 128
	}

	frames := len(buf.Data) / channels
	left = make([]float32, frames)
	right = make([]float32, frames)
	for i := range frames {
		l := buf.Data[i*channels]
		r := l
		if channels > 1 {
			r = buf.Data[i*channels+1]
		}
		if bitDepth == 8 {
			l -= 128
			r -= 128
		}
		left[i] = float32(float64(l) * scale)
		right[i] = float32(float64(r) * scale)
	}

	return float64(buf.Format.SampleRate), left, right, nil
}

// LoadEntry replaces slot i with the given audio, truncated to capacity.
// Only valid while Waiting.
func (r *Recorder) LoadEntry(i int, sampleRate float64, left, right []float32) error {
	r.control.Lock()
	defer r.control.Unlock()

	if i < 0 || i >= len(r.entries) {
		return fmt.Errorf("%w: entry %d out of range", ErrBadState, i)
	}
	if r.Mode() != Waiting {
		return ErrBusy
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entries[i]
	e.Length = fillEntry(e, left, right, r.capacity)
	if sampleRate > 0 {
		e.SampleRate = sampleRate
	}
	if i == r.current {
		r.filterValid = false
	}
	return nil
}

// ExportEntry writes slot i as WAV. Only valid while Waiting.
func (r *Recorder) ExportEntry(i int, w io.WriteSeeker, bitDepth int) error {
	r.control.Lock()
	defer r.control.Unlock()

	e := r.Entry(i)
	if e == nil {
		return fmt.Errorf("%w: entry %d out of range", ErrBadState, i)
	}
	if r.Mode() != Waiting {
		return ErrBusy
	}
	return e.WriteWAV(w, bitDepth)
}
