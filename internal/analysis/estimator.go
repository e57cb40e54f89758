// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	applog "seedscope/internal/log"
	"seedscope/pkg/bitint"
)

// WindowFunc selects the analysis window applied before the transform.
type WindowFunc int

const (
	Hann WindowFunc = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hamming
	Lanczos
	Nuttall
)

const (
	// DefaultScopeSize is the number of log-frequency buckets F.
	DefaultScopeSize = 512
	// DefaultWindowSize is the live analyser's capture window W.
	DefaultWindowSize = 2048
	DefaultMinDB      = -100.0
	DefaultMaxDB      = 0.0
)

// ErrWindowSize is returned for capture windows that are not a power of two.
var ErrWindowSize = errors.New("window size must be a power of two")

const component = applog.Component("Analysis")

// Options configures the mapping from FFT bins to the log-frequency scope.
type Options struct {
	MinHz     float64
	MaxHz     float64
	ScopeSize int
	MinDB     float64
	MaxDB     float64
	Window    WindowFunc
}

// LiveOptions are the defaults for the real-time analyser.
func LiveOptions() Options {
	return Options{MinHz: 40, MaxHz: 20000, ScopeSize: DefaultScopeSize, MinDB: DefaultMinDB, MaxDB: DefaultMaxDB, Window: Hann}
}

// ViewOptions are the defaults for offline heat maps.
func ViewOptions() Options {
	return Options{MinHz: 40, MaxHz: 20000, ScopeSize: DefaultScopeSize, MinDB: DefaultMinDB, MaxDB: DefaultMaxDB, Window: Hann}
}

func (o Options) withDefaults() Options {
	if o.ScopeSize <= 0 {
		o.ScopeSize = DefaultScopeSize
	}
	if o.MinHz <= 0 {
		o.MinHz = 20
	}
	if o.MaxHz <= o.MinHz {
		o.MaxHz = 20000
	}
	if o.MaxDB <= o.MinDB {
		o.MinDB, o.MaxDB = DefaultMinDB, DefaultMaxDB
	}
	return o
}

// Estimator turns a capture window into F normalized levels on a
// log-frequency axis. All buffers are allocated up front; an Estimator is
// not safe for concurrent use.
type Estimator struct {
	size   int // capture window W
	opts   Options
	fft    *fourier.FFT
	window []float64
	input  []float64    // 2W, zero-padded
	coeffs []complex128 // W+1
	mag    []float64    // W+1
	scope  []float64    // F
	gainDB float64      // 20*log10(W)
}

// NewEstimator creates an estimator for capture windows of windowSize
// samples, transformed with a zero-padded 2*windowSize FFT.
func NewEstimator(windowSize int, opts Options) (*Estimator, error) {
	if !bitint.IsPowerOfTwo(windowSize) {
		return nil, fmt.Errorf("%w, got %d", ErrWindowSize, windowSize)
	}
	opts = opts.withDefaults()

	coeffs := make([]float64, windowSize)
	applyWindow(coeffs, opts.Window)

	component.Debugf("estimator window %d, scope %d, %.0f-%.0f Hz", windowSize, opts.ScopeSize, opts.MinHz, opts.MaxHz)

	return &Estimator{
		size:   windowSize,
		opts:   opts,
		fft:    fourier.NewFFT(2 * windowSize),
		window: coeffs,
		input:  make([]float64, 2*windowSize),
		coeffs: make([]complex128, windowSize+1),
		mag:    make([]float64, windowSize+1),
		scope:  make([]float64, opts.ScopeSize),
		gainDB: 20 * math.Log10(float64(windowSize)),
	}, nil
}

// WindowSize returns W.
func (e *Estimator) WindowSize() int { return e.size }

// Options returns the effective options.
func (e *Estimator) Options() Options { return e.opts }

// Estimate analyses up to W samples and returns the estimator's scope
// buffer, which is overwritten by the next call.
func (e *Estimator) Estimate(samples []float32, sampleRate float64) []float64 {
	n := min(len(samples), e.size)
	for i := range n {
		e.input[i] = float64(samples[i]) * e.window[i]
	}
	clear(e.input[n:])

	e.fft.Coefficients(e.coeffs, e.input)
	for i, c := range e.coeffs {
		e.mag[i] = cmplx.Abs(c)
	}

	if sampleRate <= 0 {
		clear(e.scope)
		return e.scope
	}

	f := float64(len(e.scope))
	ratio := e.opts.MaxHz / e.opts.MinHz
	binsPerHz := float64(e.size) / (sampleRate / 2)
	last := len(e.mag) - 1

	for i := range e.scope {
		hz := e.opts.MinHz * math.Pow(ratio, float64(i)/f)
		pos := hz * binsPerHz
		idx := int(pos)

		var level float64
		switch {
		case idx >= last:
			level = e.mag[last]
		default:
			frac := pos - float64(idx)
			level = e.mag[idx] + (e.mag[idx+1]-e.mag[idx])*frac
		}

		e.scope[i] = e.normalize(level)
	}

	return e.scope
}

// EstimateInto runs Estimate and copies the levels into dst.
func (e *Estimator) EstimateInto(dst []float64, samples []float32, sampleRate float64) {
	copy(dst, e.Estimate(samples, sampleRate))
}

func (e *Estimator) normalize(level float64) float64 {
	db := e.opts.MinDB
	if level > 0 {
		db = max(20*math.Log10(level), e.opts.MinDB)
	}
	db -= e.gainDB
	v := (db - e.opts.MinDB) / (e.opts.MaxDB - e.opts.MinDB)
	return min(max(v, 0), 1)
}

// Frequency returns the centre frequency of scope index i.
func (e *Estimator) Frequency(i int) float64 {
	return e.opts.MinHz * math.Pow(e.opts.MaxHz/e.opts.MinHz, float64(i)/float64(len(e.scope)))
}

// ScopeIndex returns the scope index nearest to hz.
func (e *Estimator) ScopeIndex(hz float64) int {
	if hz <= e.opts.MinHz {
		return 0
	}
	i := int(math.Round(float64(len(e.scope)) * math.Log(hz/e.opts.MinHz) / math.Log(e.opts.MaxHz/e.opts.MinHz)))
	return min(i, len(e.scope)-1)
}

// AverageInto sets dst to the mean of dst and other, clears other and
// reports whether any resulting sample is non-zero.
func AverageInto(dst, other []float32) bool {
	n := min(len(dst), len(other))
	nonZero := false
	for i := range n {
		dst[i] = (dst[i] + other[i]) / 2
		other[i] = 0
		if dst[i] != 0 {
			nonZero = true
		}
	}
	for _, v := range dst[n:] {
		if v != 0 {
			nonZero = true
			break
		}
	}
	return nonZero
}

// ParseWindowFunc converts a name (case-insensitive) to a WindowFunc. It
// returns Hann and an error for unknown names.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown window function %q", name)
	}
}

// applyWindow fills coeffs with the selected window.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// gonum windows scale their input in place.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hann(coeffs)
	}
}
