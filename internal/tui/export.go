// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"os"
	"path/filepath"

	"seedscope/internal/analysis"
	"seedscope/internal/recorder"
)

// SlotExport configures how the console writes a slot to disk.
type SlotExport struct {
	Dir      string
	Columns  int
	Window   int
	Options  analysis.Options
	BitDepth int
}

func (ex SlotExport) withDefaults() SlotExport {
	if ex.Dir == "" {
		ex.Dir = "."
	}
	if ex.Columns <= 0 {
		ex.Columns = analysis.DefaultHeatMapColumns
	}
	if ex.Window <= 0 {
		ex.Window = analysis.DefaultHeatMapWindow
	}
	if ex.Options.ScopeSize <= 0 {
		ex.Options = analysis.ViewOptions()
	}
	if ex.BitDepth <= 0 {
		ex.BitDepth = 16
	}
	return ex
}

// SlotFiles are the paths written for one slot.
type SlotFiles struct {
	PNG string
	WAV string
}

// ExportSlot renders slot i as a heat map with its focus views and writes
// the slot's audio as WAV. The recorder must be Waiting.
func ExportSlot(rec *recorder.Recorder, i int, ex SlotExport) (SlotFiles, error) {
	ex = ex.withDefaults()
	if !rec.CanOperate() {
		return SlotFiles{}, recorder.ErrBusy
	}
	e := rec.Entry(i)
	if e == nil {
		return SlotFiles{}, fmt.Errorf("no slot %d", i+1)
	}

	files := SlotFiles{
		PNG: filepath.Join(ex.Dir, fmt.Sprintf("slot%d.png", i+1)),
		WAV: filepath.Join(ex.Dir, fmt.Sprintf("slot%d.wav", i+1)),
	}

	hm, err := analysis.HeatMapForEntry(e, ex.Columns, ex.Window, ex.Options)
	if err != nil {
		return SlotFiles{}, err
	}
	p := rec.Params(i)
	focus := &analysis.Focus{Hz: p.FocusHz, Sec: p.FocusSec, BaseHz: p.BaseFreq}

	if err := writeFile(files.PNG, func(f *os.File) error { return hm.WritePNG(f, focus) }); err != nil {
		return SlotFiles{}, err
	}
	if err := writeFile(files.WAV, func(f *os.File) error { return rec.ExportEntry(i, f, ex.BitDepth) }); err != nil {
		return SlotFiles{}, err
	}
	return files, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
