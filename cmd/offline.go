// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"seedscope/internal/analysis"
	"seedscope/internal/config"
	"seedscope/internal/dsp"
	applog "seedscope/internal/log"
	"seedscope/internal/playback"
	"seedscope/internal/recorder"
	"seedscope/pkg/bitint"
)

type filterOptions struct {
	lowHz    float64
	highHz   float64
	taps     int
	bitDepth int
	preview  bool
}

func newFilterCommand(opts *options) *cobra.Command {
	fo := &filterOptions{}

	filterCmd := &cobra.Command{
		Use:   "filter IN.wav OUT.wav",
		Short: "Band-pass filter a WAV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyVerbosity(opts.verbose)
			return runFilter(cmd.Context(), args[0], args[1], fo)
		},
	}

	filterCmd.Flags().Float64Var(&fo.lowHz, "low", recorder.DefaultFilterLowHz, "Low cutoff in Hz")
	filterCmd.Flags().Float64Var(&fo.highHz, "high", recorder.DefaultFilterHighHz, "High cutoff in Hz")
	filterCmd.Flags().IntVar(&fo.taps, "taps", config.DefaultFilterTaps, "Filter order")
	filterCmd.Flags().IntVar(&fo.bitDepth, "bit-depth", config.DefaultBitDepth, "Output bit depth (16, 24 or 32)")
	filterCmd.Flags().BoolVar(&fo.preview, "preview", false, "Play the filtered audio before writing")
	return filterCmd
}

func (fo *filterOptions) validate() error {
	if fo.lowHz <= 0 || fo.highHz <= fo.lowHz {
		return fmt.Errorf("invalid band %.1f-%.1f Hz", fo.lowHz, fo.highHz)
	}
	if fo.taps < 0 || fo.taps > config.MaxFilterTaps {
		return fmt.Errorf("taps must be between 0 and %d", config.MaxFilterTaps)
	}
	return nil
}

// filterWAV reads in, band-passes it and returns the filtered entry.
func filterWAV(ctx context.Context, in string, fo *filterOptions) (*recorder.Entry, error) {
	if err := fo.validate(); err != nil {
		return nil, err
	}

	f, err := os.Open(in)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rate, left, right, err := recorder.ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in, err)
	}

	h := dsp.DesignBandPass(fo.lowHz, fo.highHz, rate, fo.taps)
	l, r, err := dsp.Apply(ctx, h, left, right)
	if err != nil {
		return nil, err
	}
	applog.Infof("filtered %s: %d frames, %.0f-%.0f Hz, %d taps", in, len(l), fo.lowHz, fo.highHz, fo.taps)

	return &recorder.Entry{SampleRate: rate, DataL: l, DataR: r, Length: len(l)}, nil
}

func runFilter(ctx context.Context, in, out string, fo *filterOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	e, err := filterWAV(ctx, in, fo)
	if err != nil {
		return err
	}

	if fo.preview {
		if err := playback.Play(ctx, e.SampleRate, e.DataL, e.DataR); err != nil && ctx.Err() == nil {
			return err
		}
	}

	w, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := e.WriteWAV(w, fo.bitDepth); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

type spectrumOptions struct {
	png      string
	csv      string
	focusCSV string
	columns  int
	window   int
	minHz    float64
	maxHz    float64
	rows     int
	state    string
	slot     int
	focusHz  float64
	focusSec float64
	baseHz   float64
}

func newSpectrumCommand(opts *options) *cobra.Command {
	so := &spectrumOptions{}
	view := analysis.ViewOptions()
	defaults := recorder.DefaultEntryParams()

	spectrumCmd := &cobra.Command{
		Use:   "spectrum [IN.wav]",
		Short: "Render a spectrogram of a WAV file or a recorder slot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyVerbosity(opts.verbose)
			if so.png == "" && so.csv == "" && so.focusCSV == "" {
				return fmt.Errorf("nothing to write: set --png, --csv or --focus-csv")
			}
			if (len(args) == 1) == (so.state != "") {
				return fmt.Errorf("analyse either IN.wav or --state FILE --slot N")
			}
			h, params, err := so.heatMap(args)
			if err != nil {
				return err
			}
			return runSpectrum(h, so.focus(cmd.Flags().Changed, params), so)
		},
	}

	spectrumCmd.Flags().StringVar(&so.png, "png", "", "Write the heat map as a PNG")
	spectrumCmd.Flags().StringVar(&so.csv, "csv", "", "Write the heat map as CSV")
	spectrumCmd.Flags().StringVar(&so.focusCSV, "focus-csv", "", "Write the focused envelope, spectrum and harmonic guides as CSV")
	spectrumCmd.Flags().IntVar(&so.columns, "columns", analysis.DefaultHeatMapColumns, "Time columns")
	spectrumCmd.Flags().IntVar(&so.window, "window", analysis.DefaultHeatMapWindow, "Analysis window, rounded up to a power of two")
	spectrumCmd.Flags().Float64Var(&so.minHz, "min-hz", view.MinHz, "Lowest displayed frequency")
	spectrumCmd.Flags().Float64Var(&so.maxHz, "max-hz", view.MaxHz, "Highest displayed frequency")
	spectrumCmd.Flags().IntVar(&so.rows, "rows", view.ScopeSize, "Frequency rows")
	spectrumCmd.Flags().StringVar(&so.state, "state", "", "Analyse a slot of this recorder state file instead of a WAV file")
	spectrumCmd.Flags().IntVar(&so.slot, "slot", 1, "Slot to analyse with --state")
	spectrumCmd.Flags().Float64Var(&so.focusHz, "focus-hz", defaults.FocusHz, "Frequency whose envelope is plotted")
	spectrumCmd.Flags().Float64Var(&so.focusSec, "focus-sec", defaults.FocusSec, "Time whose spectrum is plotted")
	spectrumCmd.Flags().Float64Var(&so.baseHz, "base-freq", defaults.BaseFreq, "Fundamental of the harmonic guides")
	return spectrumCmd
}

// heatMap analyses the WAV file in args or the selected slot. Slots also
// return their stored focus settings.
func (so *spectrumOptions) heatMap(args []string) (*analysis.HeatMap, *recorder.EntryParams, error) {
	window := bitint.NextPowerOfTwo(so.window)
	if window != so.window {
		applog.Infof("rounded window %d up to %d", so.window, window)
	}
	opts := analysis.ViewOptions()
	opts.MinHz, opts.MaxHz, opts.ScopeSize = so.minHz, so.maxHz, so.rows

	if len(args) == 1 {
		h, err := heatMapForWAV(args[0], so.columns, window, opts)
		return h, nil, err
	}

	rec, err := openState(so.state, 1, false)
	if err != nil {
		return nil, nil, err
	}
	e, err := slotEntry(rec, so.slot)
	if err != nil {
		return nil, nil, err
	}
	h, err := analysis.HeatMapForEntry(e, so.columns, window, opts)
	if err != nil {
		return nil, nil, err
	}
	params := rec.Params(so.slot - 1)
	return h, &params, nil
}

// focus returns the focus views to draw. Slots always carry one; for WAV
// files it is only drawn when asked for.
func (so *spectrumOptions) focus(changed func(flag string) bool, params *recorder.EntryParams) *analysis.Focus {
	asked := changed("focus-hz") || changed("focus-sec") || changed("base-freq")
	if params == nil && !asked && so.focusCSV == "" {
		return nil
	}

	f := &analysis.Focus{Hz: so.focusHz, Sec: so.focusSec, BaseHz: so.baseHz}
	if params != nil {
		if !changed("focus-hz") {
			f.Hz = params.FocusHz
		}
		if !changed("focus-sec") {
			f.Sec = params.FocusSec
		}
		if !changed("base-freq") {
			f.BaseHz = params.BaseFreq
		}
	}
	return f
}

func heatMapForWAV(in string, columns, window int, opts analysis.Options) (*analysis.HeatMap, error) {
	f, err := os.Open(in)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rate, left, right, err := recorder.ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in, err)
	}
	return analysis.NewHeatMap(left, right, rate, columns, window, opts)
}

func runSpectrum(h *analysis.HeatMap, focus *analysis.Focus, so *spectrumOptions) error {
	outputs := []struct {
		path  string
		write func(*os.File) error
	}{
		{so.png, func(f *os.File) error { return h.WritePNG(f, focus) }},
		{so.csv, func(f *os.File) error { return h.WriteCSV(f) }},
		{so.focusCSV, func(f *os.File) error { return h.WriteFocusCSV(f, *focus) }},
	}
	for _, o := range outputs {
		if o.path == "" {
			continue
		}
		f, err := os.Create(o.path)
		if err != nil {
			return err
		}
		if err := o.write(f); err != nil {
			f.Close()
			return fmt.Errorf("%s: %w", o.path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		applog.Infof("wrote %s (%d x %d)", o.path, h.Columns(), h.Rows())
	}
	return nil
}
