// SPDX-License-Identifier: MIT
package recorder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedscope/pkg/utils"
)

func TestWAVRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		bitDepth  int
		tolerance float64
	}{
		{"16 bit", 16, 1.0 / 16384},
		{"24 bit", 24, 1.0 / 4194304},
		{"32 bit", 32, 1e-6},
	}

	left := utils.GenerateSineWave(1000, 44100, 440, 0.8)
	right := utils.GenerateSineWave(1000, 44100, 660, -0.5)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(NumEntries, 2048)
			require.NoError(t, r.LoadEntry(0, 44100, left, right))

			path := filepath.Join(t.TempDir(), "entry.wav")
			f, err := os.Create(path)
			require.NoError(t, err)
			require.NoError(t, r.ExportEntry(0, f, tt.bitDepth))
			require.NoError(t, f.Close())

			in, err := os.Open(path)
			require.NoError(t, err)
			defer in.Close()

			rate, l, rr, err := ReadWAV(in)
			require.NoError(t, err)
			assert.Equal(t, float64(44100), rate)
			require.Len(t, l, 1000)
			require.Len(t, rr, 1000)

			for i := range l {
				require.InDelta(t, left[i], l[i], tt.tolerance, "left %d", i)
				require.InDelta(t, right[i], rr[i], tt.tolerance, "right %d", i)
			}
		})
	}
}

func TestWriteWAVRejectsBitDepth(t *testing.T) {
	e := &Entry{SampleRate: 48000}
	f, err := os.Create(filepath.Join(t.TempDir(), "x.wav"))
	require.NoError(t, err)
	defer f.Close()
	assert.Error(t, e.WriteWAV(f, 12))
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not RIFF data"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, _, _, err = ReadWAV(f)
	assert.Error(t, err)
}

func TestExportEntryErrors(t *testing.T) {
	r := New(NumEntries, 64)
	f, err := os.Create(filepath.Join(t.TempDir(), "x.wav"))
	require.NoError(t, err)
	defer f.Close()

	assert.ErrorIs(t, r.ExportEntry(-1, f, 16), ErrBadState)
	r.Record()
	assert.ErrorIs(t, r.ExportEntry(0, f, 16), ErrBusy)
}
