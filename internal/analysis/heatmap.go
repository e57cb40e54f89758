// SPDX-License-Identifier: MIT
package analysis

import (
	"encoding/csv"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"seedscope/internal/recorder"
)

const (
	// DefaultHeatMapColumns is the number of time columns.
	DefaultHeatMapColumns = 1024
	// DefaultHeatMapWindow is the capture window per column.
	DefaultHeatMapWindow = 4096
	// NumHarmonics is the number of guide lines drawn from a base frequency.
	NumHarmonics = 16

	envelopePanelHeight = 128
	spectrumPanelWidth  = 128
)

var (
	focusColor    = color.RGBA{R: 0x25, G: 0xA0, B: 0x65, A: 0xFF}
	guideColor    = color.RGBA{R: 0x60, G: 0x40, B: 0x20, A: 0xFF}
	guideBright   = color.RGBA{R: 0xC0, G: 0x80, B: 0x40, A: 0xFF}
	envelopeColor = color.RGBA{R: 0xF2, G: 0x5D, B: 0x94, A: 0xFF}
	spectrumColor = color.RGBA{R: 0x5D, G: 0xC8, B: 0xF2, A: 0xFF}
)

// Focus selects the slices plotted next to a heat map.
type Focus struct {
	Hz     float64 // row plotted across time
	Sec    float64 // column plotted across frequency
	BaseHz float64 // fundamental of the harmonic guides, 0 for none
}

// HeatMap is a time/frequency map of a recording. Levels[t][f] is the
// normalized level of scope index f for time column t.
type HeatMap struct {
	Levels     [][]float64
	SampleRate float64
	Duration   float64 // seconds covered by the columns
	freqs      []float64
	minHz      float64
	maxHz      float64
}

// NewHeatMap analyses the mono mix (L+R)/2 of the given channels. Column t
// uses the windowSize samples ending just before t/columns of the input;
// samples before the start count as silence.
func NewHeatMap(left, right []float32, sampleRate float64, columns, windowSize int, opts Options) (*HeatMap, error) {
	if columns <= 0 {
		columns = DefaultHeatMapColumns
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	// Validates windowSize before any workers start.
	first, err := NewEstimator(windowSize, opts)
	if err != nil {
		return nil, err
	}
	opts = first.Options()

	n := min(len(left), len(right))
	mono := make([]float32, n)
	for i := range mono {
		mono[i] = (left[i] + right[i]) / 2
	}

	hm := &HeatMap{
		Levels:     make([][]float64, columns),
		SampleRate: sampleRate,
		Duration:   float64(n) / sampleRate,
		freqs:      make([]float64, opts.ScopeSize),
		minHz:      opts.MinHz,
		maxHz:      opts.MaxHz,
	}
	for f := range hm.freqs {
		hm.freqs[f] = first.Frequency(f)
	}

	workers := min(runtime.GOMAXPROCS(0), columns)
	var g errgroup.Group
	for w := range workers {
		est := first
		if w > 0 {
			// Cannot fail: the same arguments succeeded above.
			est, _ = NewEstimator(windowSize, opts)
		}
		g.Go(func() error {
			buf := make([]float32, windowSize)
			for t := w; t < columns; t += workers {
				end := int(float64(t) / float64(columns) * float64(n))
				start := end - windowSize
				clear(buf)
				if start < 0 {
					copy(buf[-start:], mono[:end])
				} else {
					copy(buf, mono[start:end])
				}
				hm.Levels[t] = make([]float64, opts.ScopeSize)
				est.EstimateInto(hm.Levels[t], buf, sampleRate)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	component.Debugf("heat map %dx%d over %.2fs", columns, opts.ScopeSize, hm.Duration)
	return hm, nil
}

// HeatMapForEntry analyses the full capacity of a recorder entry.
func HeatMapForEntry(e *recorder.Entry, columns, windowSize int, opts Options) (*HeatMap, error) {
	if e == nil {
		return nil, fmt.Errorf("nil entry")
	}
	return NewHeatMap(e.DataL, e.DataR, e.SampleRate, columns, windowSize, opts)
}

// Columns returns the number of time columns.
func (h *HeatMap) Columns() int { return len(h.Levels) }

// Rows returns the number of frequency rows.
func (h *HeatMap) Rows() int { return len(h.freqs) }

// Frequency returns the frequency of row f.
func (h *HeatMap) Frequency(f int) float64 { return h.freqs[f] }

// ColumnTime returns the end time in seconds of column t's window.
func (h *HeatMap) ColumnTime(t int) float64 {
	return float64(t) / float64(len(h.Levels)) * h.Duration
}

// RowIndex returns the row nearest to hz on the log-frequency axis.
func (h *HeatMap) RowIndex(hz float64) int {
	if hz <= h.minHz {
		return 0
	}
	f := int(math.Round(float64(h.Rows()) * math.Log(hz/h.minHz) / math.Log(h.maxHz/h.minHz)))
	return min(f, h.Rows()-1)
}

// ColumnIndex returns the column whose window ends at sec, clamped to the
// map.
func (h *HeatMap) ColumnIndex(sec float64) int {
	if h.Duration <= 0 || sec <= 0 {
		return 0
	}
	t := int(float64(h.Columns()) * sec / h.Duration)
	return min(t, h.Columns()-1)
}

// Row returns the envelope of frequency row f: its level in every column.
func (h *HeatMap) Row(f int) []float64 {
	env := make([]float64, len(h.Levels))
	for t, col := range h.Levels {
		env[t] = col[f]
	}
	return env
}

// Column returns a copy of the spectrum of time column t.
func (h *HeatMap) Column(t int) []float64 {
	return append([]float64(nil), h.Levels[t]...)
}

// Harmonics returns up to n multiples of baseHz, starting with baseHz itself
// and stopping at the first one above maxHz.
func Harmonics(baseHz, maxHz float64, n int) []float64 {
	if baseHz <= 0 {
		return nil
	}
	var out []float64
	for k := 1; k <= n; k++ {
		hz := baseHz * float64(k)
		if hz > maxHz {
			break
		}
		out = append(out, hz)
	}
	return out
}

// Image renders the map in grayscale with time on the x axis and frequency
// increasing upward. With a focus, the focused row and column are marked,
// the row's envelope is plotted below the map and the column's spectrum to
// its right, over the harmonic guides of focus.BaseHz.
func (h *HeatMap) Image(focus *Focus) image.Image {
	cols, rows := h.Columns(), h.Rows()
	if focus == nil {
		img := image.NewGray(image.Rect(0, 0, cols, rows))
		for t, col := range h.Levels {
			for f, v := range col {
				img.SetGray(t, rows-1-f, grayLevel(v))
			}
		}
		return img
	}

	img := image.NewRGBA(image.Rect(0, 0, cols+spectrumPanelWidth, rows+envelopePanelHeight))
	draw.Draw(img, img.Bounds(), image.Black, image.Point{}, draw.Src)
	for t, col := range h.Levels {
		for f, v := range col {
			img.Set(t, rows-1-f, grayLevel(v))
		}
	}

	row, column := h.RowIndex(focus.Hz), h.ColumnIndex(focus.Sec)
	for x := range cols {
		img.Set(x, rows-1-row, focusColor)
	}
	for y := range rows {
		img.Set(column, y, focusColor)
	}

	// Envelope panel below the map.
	env := h.Row(row)
	envY := func(v float64) int {
		return rows + int(math.Round((1-clamp01(v))*(envelopePanelHeight-1)))
	}
	for x := 1; x < cols; x++ {
		vLine(img, x, envY(env[x-1]), envY(env[x]), envelopeColor)
	}

	// Spectrum panel to the right, frequency increasing upward.
	for i, hz := range Harmonics(focus.BaseHz, h.maxHz, NumHarmonics) {
		if hz < h.minHz {
			continue
		}
		c := guideColor
		if i%4 == 0 {
			c = guideBright
		}
		y := rows - 1 - h.RowIndex(hz)
		for x := cols; x < cols+spectrumPanelWidth; x++ {
			img.Set(x, y, c)
		}
	}
	spec := h.Levels[column]
	specX := func(v float64) int {
		return cols + int(math.Round(clamp01(v)*(spectrumPanelWidth-1)))
	}
	for f := 1; f < rows; f++ {
		hLine(img, rows-1-f, specX(spec[f-1]), specX(spec[f]), spectrumColor)
	}
	return img
}

func grayLevel(v float64) color.Gray {
	return color.Gray{Y: uint8(math.Round(255 * clamp01(v)))}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

// vLine joins (x, y0) and (x, y1).
func vLine(img *image.RGBA, x, y0, y1 int, c color.Color) {
	for y := min(y0, y1); y <= max(y0, y1); y++ {
		img.Set(x, y, c)
	}
}

// hLine joins (x0, y) and (x1, y).
func hLine(img *image.RGBA, y, x0, x1 int, c color.Color) {
	for x := min(x0, x1); x <= max(x0, x1); x++ {
		img.Set(x, y, c)
	}
}

// WritePNG encodes Image(focus).
func (h *HeatMap) WritePNG(w io.Writer, focus *Focus) error {
	if err := png.Encode(w, h.Image(focus)); err != nil {
		return fmt.Errorf("encode heat map: %w", err)
	}
	return nil
}

// WriteCSV writes one row per time column: the column time followed by the
// level of each frequency row. The header lists the row frequencies.
func (h *HeatMap) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	record := make([]string, h.Rows()+1)
	record[0] = "time_s"
	for f, hz := range h.freqs {
		record[f+1] = strconv.FormatFloat(hz, 'f', 1, 64)
	}
	if err := cw.Write(record); err != nil {
		return fmt.Errorf("write heat map header: %w", err)
	}

	for t, col := range h.Levels {
		record[0] = strconv.FormatFloat(h.ColumnTime(t), 'f', 4, 64)
		for f, v := range col {
			record[f+1] = strconv.FormatFloat(v, 'f', 4, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write heat map column %d: %w", t, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFocusCSV writes the focus slices as series,x,level records: the
// envelope of the focused row against time, the spectrum of the focused
// column against frequency, then the harmonic guides with an empty level.
func (h *HeatMap) WriteFocusCSV(w io.Writer, focus Focus) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"series", "x", "level"}); err != nil {
		return fmt.Errorf("write focus header: %w", err)
	}

	format := func(v float64, prec int) string { return strconv.FormatFloat(v, 'f', prec, 64) }
	for t, v := range h.Row(h.RowIndex(focus.Hz)) {
		if err := cw.Write([]string{"envelope", format(h.ColumnTime(t), 4), format(v, 4)}); err != nil {
			return fmt.Errorf("write envelope: %w", err)
		}
	}
	for f, v := range h.Levels[h.ColumnIndex(focus.Sec)] {
		if err := cw.Write([]string{"spectrum", format(h.freqs[f], 1), format(v, 4)}); err != nil {
			return fmt.Errorf("write spectrum: %w", err)
		}
	}
	for _, hz := range Harmonics(focus.BaseHz, h.maxHz, NumHarmonics) {
		if err := cw.Write([]string{"harmonic", format(hz, 1), ""}); err != nil {
			return fmt.Errorf("write harmonics: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
