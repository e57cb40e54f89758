// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"seedscope/internal/config"
	applog "seedscope/internal/log"
	"seedscope/internal/recorder"
)

// openState builds a recorder from a state file, sized to hold its longest
// entry and at least capacity samples. A missing file gives an empty
// recorder when allowMissing is set.
func openState(path string, capacity int, allowMissing bool) (*recorder.Recorder, error) {
	st, err := recorder.LoadState(path)
	if errors.Is(err, fs.ErrNotExist) && allowMissing {
		applog.Infof("no recorder state at %s, starting empty", path)
		return recorder.New(recorder.NumEntries, capacity), nil
	}
	if err != nil {
		return nil, err
	}

	for _, es := range st.Entries {
		capacity = max(capacity, es.Length)
	}
	rec := recorder.New(max(recorder.NumEntries, len(st.Entries)), capacity)
	if err := rec.Restore(st); err != nil {
		return nil, fmt.Errorf("restore %s: %w", path, err)
	}
	return rec, nil
}

// slotEntry returns the non-empty entry of 1-based slot.
func slotEntry(rec *recorder.Recorder, slot int) (*recorder.Entry, error) {
	e := rec.Entry(slot - 1)
	if e == nil {
		return nil, fmt.Errorf("no slot %d, the recorder has %d", slot, rec.NumEntries())
	}
	if e.Length == 0 {
		return nil, fmt.Errorf("slot %d is empty", slot)
	}
	return e, nil
}

type slotOptions struct {
	state    string
	slot     int
	bitDepth int
	seconds  float64
}

func (so *slotOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&so.state, "state", "", "Recorder state file")
	cmd.Flags().IntVar(&so.slot, "slot", 1, "Slot number, starting at 1")
}

func (so *slotOptions) validate() error {
	if so.state == "" {
		return errors.New("--state is required")
	}
	if so.slot < 1 {
		return fmt.Errorf("slot must be at least 1, got %d", so.slot)
	}
	return nil
}

func newImportCommand(opts *options) *cobra.Command {
	so := &slotOptions{}

	importCmd := &cobra.Command{
		Use:   "import IN.wav",
		Short: "Load a WAV file into a slot of a recorder state file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyVerbosity(opts.verbose)
			return runImport(args[0], so)
		},
	}
	so.addFlags(importCmd)
	importCmd.Flags().Float64Var(&so.seconds, "max-seconds", config.DefaultMaxSeconds,
		"Slot length for a new state file; longer input is truncated")
	return importCmd
}

func runImport(in string, so *slotOptions) error {
	if err := so.validate(); err != nil {
		return err
	}
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	rate, left, right, err := recorder.ReadWAV(f)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	rec, err := openState(so.state, recorder.CapacityFor(rate, so.seconds), true)
	if err != nil {
		return err
	}
	if rec.Entry(so.slot-1) == nil {
		return fmt.Errorf("no slot %d, the recorder has %d", so.slot, rec.NumEntries())
	}
	if err := rec.LoadEntry(so.slot-1, rate, left, right); err != nil {
		return err
	}
	if n := min(len(left), len(right)); n > rec.Capacity() {
		applog.Warnf("%s: kept %d of %d frames", in, rec.Capacity(), n)
	}

	if err := recorder.SaveState(so.state, rec.Snapshot()); err != nil {
		return err
	}
	applog.Infof("imported %s into slot %d of %s", in, so.slot, so.state)
	return nil
}

func newExportCommand(opts *options) *cobra.Command {
	so := &slotOptions{}

	exportCmd := &cobra.Command{
		Use:   "export OUT.wav",
		Short: "Write a slot of a recorder state file as WAV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyVerbosity(opts.verbose)
			return runExport(args[0], so)
		},
	}
	so.addFlags(exportCmd)
	exportCmd.Flags().IntVar(&so.bitDepth, "bit-depth", config.DefaultBitDepth, "Output bit depth (16, 24 or 32)")
	return exportCmd
}

func runExport(out string, so *slotOptions) error {
	if err := so.validate(); err != nil {
		return err
	}
	rec, err := openState(so.state, 1, false)
	if err != nil {
		return err
	}
	if _, err := slotEntry(rec, so.slot); err != nil {
		return err
	}

	w, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := rec.ExportEntry(so.slot-1, w, so.bitDepth); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	applog.Infof("exported slot %d of %s to %s", so.slot, so.state, out)
	return nil
}
