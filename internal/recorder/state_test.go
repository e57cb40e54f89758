// SPDX-License-Identifier: MIT
package recorder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedscope/pkg/utils"
)

func TestEncodeSamples(t *testing.T) {
	// 1.0f little-endian is 00 00 80 3f.
	assert.Equal(t, "AACAPw==", EncodeSamples([]float32{1}))
	assert.Equal(t, "", EncodeSamples(nil))

	got, err := DecodeSamples("AACAPw==")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, got)
}

func TestDecodeSamplesRejectsMalformed(t *testing.T) {
	for _, in := range []string{"not base64!", "AAAA AA", "AAE="} {
		_, err := DecodeSamples(in)
		assert.ErrorIs(t, err, ErrBadState, "input %q", in)
	}
}

func TestSnapshotRestore(t *testing.T) {
	src := New(NumEntries, testCapacity)
	tone := utils.GenerateSineWave(40, 44100, 440, 0.5)
	require.NoError(t, src.LoadEntry(2, 44100, tone, utils.Ramp(40, 0)))
	src.SetParams(2, EntryParams{BaseFreq: 110, FilterLowHz: 80, FilterHighHz: 900, FocusHz: 220, FocusSec: 0.25})
	src.SetCurrentEntryIndex(2)

	st := src.Snapshot()
	require.Len(t, st.Entries, NumEntries)
	assert.Equal(t, 2, st.CurrentEntry)
	assert.Equal(t, DefaultFilterTaps, st.FilterTaps)
	assert.Equal(t, 40, st.Entries[2].Length)
	assert.Equal(t, 220.0, st.Entries[2].FocusHz)
	assert.Equal(t, 0.25, st.Entries[2].FocusSec)

	dst := New(NumEntries, testCapacity)
	require.NoError(t, dst.Restore(st))

	assert.Equal(t, 2, dst.CurrentEntryIndex())
	e := dst.Entry(2)
	assert.Equal(t, 40, e.Length)
	assert.Equal(t, float64(44100), e.SampleRate)
	assert.Equal(t, tone, e.DataL[:40])
	assert.Equal(t, utils.Ramp(40, 0), e.DataR[:40])
	assert.Equal(t, src.Params(2), dst.Params(2))
	assert.Equal(t, 0, dst.Entry(0).Length)
}

func TestRestoreTruncatesToCapacity(t *testing.T) {
	long := utils.Ramp(100, 1)
	st := &State{
		FilterTaps: 32,
		Entries: []EntryState{{
			SampleRate: 48000,
			Length:     100,
			DataL:      EncodeSamples(long),
			DataR:      EncodeSamples(long),
		}},
	}

	r := New(NumEntries, testCapacity)
	require.NoError(t, r.Restore(st))
	assert.Equal(t, testCapacity, r.Entry(0).Length)
	assert.Equal(t, long[:testCapacity], r.Entry(0).DataL)
	assert.Equal(t, 32, r.FilterTaps())
}

func TestRestoreFillsMissingParams(t *testing.T) {
	// State written before focus settings existed.
	st := &State{Entries: []EntryState{
		{FilterLowHz: 100, FilterHighHz: 2000},
		{BaseFreq: 55, FocusSec: -1},
	}}

	r := New(NumEntries, testCapacity)
	require.NoError(t, r.Restore(st))

	p := r.Params(0)
	assert.Equal(t, DefaultBaseFreq, p.BaseFreq)
	assert.Equal(t, 100.0, p.FilterLowHz)
	assert.Equal(t, 2000.0, p.FilterHighHz)
	assert.Equal(t, DefaultFocusHz, p.FocusHz)
	assert.Zero(t, p.FocusSec)

	p = r.Params(1)
	assert.Equal(t, 55.0, p.BaseFreq)
	assert.Equal(t, DefaultFilterLowHz, p.FilterLowHz)
	assert.Equal(t, DefaultFilterHighHz, p.FilterHighHz)
	assert.Zero(t, p.FocusSec)
}

func TestRestoreErrors(t *testing.T) {
	r := New(NumEntries, testCapacity)

	assert.ErrorIs(t, r.Restore(nil), ErrBadState)

	bad := &State{Entries: []EntryState{{DataL: "%%%"}}}
	assert.ErrorIs(t, r.Restore(bad), ErrBadState)

	r.Record()
	assert.ErrorIs(t, r.Restore(&State{}), ErrBusy)
	assert.True(t, errors.Is(r.LoadEntry(0, 0, nil, nil), ErrBusy))
	r.Stop()
	assert.ErrorIs(t, r.LoadEntry(7, 0, nil, nil), ErrBadState)
}

func TestSaveLoadState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")

	r := New(NumEntries, testCapacity)
	require.NoError(t, r.LoadEntry(1, 96000, utils.Ramp(8, 1), utils.Ramp(8, -8)))
	require.NoError(t, SaveState(path, r.Snapshot()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "filter_taps: 100")
	assert.Contains(t, string(raw), "sample_rate: 96000")

	st, err := LoadState(path)
	require.NoError(t, err)

	other := New(NumEntries, testCapacity)
	require.NoError(t, other.Restore(st))
	assert.Equal(t, utils.Ramp(8, -8), other.Entry(1).DataR[:8])

	_, err = LoadState(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("entries: [oops"), 0o644))
	_, err = LoadState(path)
	assert.ErrorIs(t, err, ErrBadState)
}
