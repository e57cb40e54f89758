// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"seedscope/internal/analysis"
	"seedscope/internal/recorder"
)

const (
	// CutoffStep moves a cutoff by a third of an octave.
	CutoffStep = 1.2599210498948732
	TapsStep   = 10
	MinTaps    = 10
	MinCutoff  = 20.0
	MaxCutoff  = 20000.0

	// SemitoneStep moves the base frequency by one semitone.
	SemitoneStep = 1.0594630943592953
	FocusSecStep = 0.05

	defaultRefresh = 50 * time.Millisecond
	spectrumRows   = 8
	defaultWidth   = 80
)

var (
	slotStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("#A0A0A0"))

	activeSlotStyle = slotStyle.
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Bold(true)

	busyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F25D94")).
			Bold(true)

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	overloadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4040")).
			Bold(true)
)

// FrameReader exposes the latest analysis frame; *analysis.Monitor
// satisfies it.
type FrameReader interface {
	Latest() (analysis.Frame, bool)
	LatestInto(dst []float64) analysis.Frame
}

// ConsoleOptions configures a Console.
type ConsoleOptions struct {
	FilterTaps int
	MaxTaps    int
	Refresh    time.Duration
	Spectrum   FrameReader
	ScopeSize  int
	Levels     FrameReader
	// Load reports the audio callback's DSP load, may be nil.
	Load       func() float64
	Export     SlotExport
}

type (
	tickMsg     time.Time
	changeMsg   struct{}
	playDoneMsg struct{}
)

type exportDoneMsg struct {
	files SlotFiles
	err   error
}

// Console is the bubbletea control surface for a Recorder.
type Console struct {
	rec  *recorder.Recorder
	opts ConsoleOptions

	keys     consoleKeys
	help     help.Model
	progress progress.Model
	width    int

	spectrum []float64

	filterEnabled bool
	taps          int
	busy          bool
	status        string
}

// NewConsole creates a console over rec.
func NewConsole(rec *recorder.Recorder, opts ConsoleOptions) *Console {
	if opts.FilterTaps <= 0 {
		opts.FilterTaps = recorder.DefaultFilterTaps
	}
	if opts.MaxTaps < opts.FilterTaps {
		opts.MaxTaps = max(opts.FilterTaps, 4096)
	}
	if opts.Refresh <= 0 {
		opts.Refresh = defaultRefresh
	}
	if opts.ScopeSize <= 0 {
		opts.ScopeSize = analysis.DefaultScopeSize
	}

	return &Console{
		rec:      rec,
		opts:     opts,
		keys:     newConsoleKeys(),
		help:     help.New(),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		width:    defaultWidth,
		spectrum: make([]float64, opts.ScopeSize),
		taps:     opts.FilterTaps,
	}
}

// Init implements tea.Model.
func (c *Console) Init() tea.Cmd {
	return tea.Batch(c.tick(), c.waitForChange())
}

func (c *Console) tick() tea.Cmd {
	return tea.Tick(c.opts.Refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (c *Console) waitForChange() tea.Cmd {
	changes := c.rec.Changes()
	return func() tea.Msg {
		<-changes
		return changeMsg{}
	}
}

// play runs the blocking part of Play, the filter design and convolution,
// off the update loop.
func (c *Console) play() tea.Cmd {
	params := c.rec.Params(c.rec.CurrentEntryIndex())
	filter, taps := c.filterEnabled, c.taps
	rec := c.rec
	return func() tea.Msg {
		rec.Play(filter, taps, params.FilterLowHz, params.FilterHighHz)
		return playDoneMsg{}
	}
}

// export writes the current slot off the update loop.
func (c *Console) export() tea.Cmd {
	rec, i, ex := c.rec, c.rec.CurrentEntryIndex(), c.opts.Export
	return func() tea.Msg {
		files, err := ExportSlot(rec, i, ex)
		return exportDoneMsg{files: files, err: err}
	}
}

// Update implements tea.Model.
func (c *Console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.help.Width = msg.Width
		c.progress.Width = max(10, msg.Width-20)

	case tickMsg:
		return c, c.tick()

	case changeMsg:
		c.status = c.rec.Mode().String()
		return c, c.waitForChange()

	case playDoneMsg:
		c.busy = false
		c.status = c.rec.Mode().String()

	case exportDoneMsg:
		c.busy = false
		if msg.err != nil {
			c.status = "export failed: " + msg.err.Error()
		} else {
			c.status = fmt.Sprintf("wrote %s and %s", msg.files.PNG, msg.files.WAV)
		}

	case tea.KeyMsg:
		return c, c.handleKey(msg)
	}
	return c, nil
}

func (c *Console) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, c.keys.Quit) {
		c.rec.Stop()
		return tea.Quit
	}
	if key.Matches(msg, c.keys.Help) {
		c.help.ShowAll = !c.help.ShowAll
		return nil
	}
	if c.busy {
		return nil
	}

	switch {
	case key.Matches(msg, c.keys.Slot):
		i := int(msg.Runes[0] - '1')
		if i < c.rec.NumEntries() {
			c.rec.SetCurrentEntryIndex(i)
		}

	case key.Matches(msg, c.keys.Record):
		c.rec.Record()

	case key.Matches(msg, c.keys.Play):
		if !c.rec.CanOperate() {
			return nil
		}
		c.busy = true
		c.status = "preparing"
		return c.play()

	case key.Matches(msg, c.keys.Stop):
		c.rec.Stop()

	case key.Matches(msg, c.keys.Filter):
		c.filterEnabled = !c.filterEnabled

	case key.Matches(msg, c.keys.LowDown):
		c.adjustCutoff(func(p *recorder.EntryParams) { p.FilterLowHz /= CutoffStep })
	case key.Matches(msg, c.keys.LowUp):
		c.adjustCutoff(func(p *recorder.EntryParams) { p.FilterLowHz *= CutoffStep })
	case key.Matches(msg, c.keys.HighDown):
		c.adjustCutoff(func(p *recorder.EntryParams) { p.FilterHighHz /= CutoffStep })
	case key.Matches(msg, c.keys.HighUp):
		c.adjustCutoff(func(p *recorder.EntryParams) { p.FilterHighHz *= CutoffStep })

	case key.Matches(msg, c.keys.TapsDown):
		c.taps = max(MinTaps, c.taps-TapsStep)
	case key.Matches(msg, c.keys.TapsUp):
		c.taps = min(c.opts.MaxTaps, c.taps+TapsStep)

	case key.Matches(msg, c.keys.BaseDown):
		c.editParams(func(p *recorder.EntryParams) { p.BaseFreq = clampHz(p.BaseFreq / SemitoneStep) })
	case key.Matches(msg, c.keys.BaseUp):
		c.editParams(func(p *recorder.EntryParams) { p.BaseFreq = clampHz(p.BaseFreq * SemitoneStep) })
	case key.Matches(msg, c.keys.FocusLow):
		c.editParams(func(p *recorder.EntryParams) { p.FocusHz = clampHz(p.FocusHz / CutoffStep) })
	case key.Matches(msg, c.keys.FocusHigh):
		c.editParams(func(p *recorder.EntryParams) { p.FocusHz = clampHz(p.FocusHz * CutoffStep) })
	case key.Matches(msg, c.keys.Earlier):
		c.moveFocus(-FocusSecStep)
	case key.Matches(msg, c.keys.Later):
		c.moveFocus(FocusSecStep)

	case key.Matches(msg, c.keys.Export):
		if !c.rec.CanOperate() {
			return nil
		}
		c.busy = true
		c.status = "exporting"
		return c.export()
	}
	return nil
}

func clampHz(hz float64) float64 {
	return math.Min(MaxCutoff, math.Max(MinCutoff, hz))
}

func (c *Console) editParams(edit func(p *recorder.EntryParams)) {
	i := c.rec.CurrentEntryIndex()
	p := c.rec.Params(i)
	edit(&p)
	c.rec.SetParams(i, p)
}

// moveFocus shifts the focused time within the slot's capacity.
func (c *Console) moveFocus(delta float64) {
	limit := c.rec.CapacityDuration(c.rec.CurrentEntryIndex()).Seconds()
	c.editParams(func(p *recorder.EntryParams) {
		p.FocusSec = math.Min(limit, math.Max(0, p.FocusSec+delta))
	})
}

// adjustCutoff edits the current slot's band and keeps low below high.
func (c *Console) adjustCutoff(edit func(p *recorder.EntryParams)) {
	i := c.rec.CurrentEntryIndex()
	p := c.rec.Params(i)
	prevLow, prevHigh := p.FilterLowHz, p.FilterHighHz
	edit(&p)

	p.FilterLowHz = math.Max(MinCutoff, p.FilterLowHz)
	p.FilterHighHz = math.Min(MaxCutoff, p.FilterHighHz)
	if p.FilterLowHz*CutoffStep > p.FilterHighHz*1.0001 {
		p.FilterLowHz, p.FilterHighHz = prevLow, prevHigh
	}
	c.rec.SetParams(i, p)
}

// View implements tea.Model.
func (c *Console) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("seedscope"))
	sb.WriteString("\n\n")
	sb.WriteString(c.renderSlots())
	sb.WriteString("\n\n")
	sb.WriteString(c.renderTransport())
	sb.WriteString("\n")
	sb.WriteString(c.renderFilter())
	sb.WriteString("\n")
	sb.WriteString(c.renderFocus())
	sb.WriteString("\n")
	if c.status != "" {
		sb.WriteString(infoStyle.Render(c.status))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if c.opts.Spectrum != nil {
		// View runs on every tick; reuse the buffer.
		if f := c.opts.Spectrum.LatestInto(c.spectrum); f.Seq != 0 {
			sb.WriteString(renderSpectrum(f.Levels, c.width, spectrumRows))
			sb.WriteString("\n")
		}
	}
	if c.opts.Levels != nil {
		if f, ok := c.opts.Levels.Latest(); ok {
			sb.WriteString(c.renderLevels(f))
			sb.WriteString("\n")
		}
	}
	if c.opts.Load != nil {
		sb.WriteString(infoStyle.Render(fmt.Sprintf("DSP load %3.0f%%", 100*c.opts.Load())))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(c.help.View(c.keys))
	return sb.String()
}

func (c *Console) renderSlots() string {
	current := c.rec.CurrentEntryIndex()
	slots := make([]string, c.rec.NumEntries())
	for i := range slots {
		label := fmt.Sprintf("%d", i+1)
		if d := c.rec.EntryDuration(i); d > 0 {
			label += fmt.Sprintf(" %.1fs", d.Seconds())
		}
		if i == current {
			slots[i] = activeSlotStyle.Render(label)
		} else {
			slots[i] = slotStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, slots...)
}

func (c *Console) renderTransport() string {
	mode := c.rec.Mode()
	label := fmt.Sprintf("%-9s", mode)
	if c.busy {
		label = busyStyle.Render(fmt.Sprintf("%-9s", "busy"))
	}
	return label + " " + c.progress.ViewAs(c.rec.Progress())
}

func (c *Console) renderFilter() string {
	p := c.rec.Params(c.rec.CurrentEntryIndex())
	state := "off"
	if c.filterEnabled {
		state = highlightStyle.Render("on")
	}
	return infoStyle.Render(fmt.Sprintf("filter %s  band %.0f-%.0f Hz  taps %d",
		state, p.FilterLowHz, p.FilterHighHz, c.taps))
}

func (c *Console) renderFocus() string {
	p := c.rec.Params(c.rec.CurrentEntryIndex())
	return infoStyle.Render(fmt.Sprintf("base %.1f Hz  focus %.0f Hz at %.2fs",
		p.BaseFreq, p.FocusHz, p.FocusSec))
}

func (c *Console) renderLevels(f analysis.Frame) string {
	width := max(10, c.width-24)
	var sb strings.Builder
	for ch, name := range []string{"L", "R"} {
		level, peak := 0.0, f.PeakL
		if ch < len(f.Levels) {
			level = f.Levels[ch]
		}
		if ch == 1 {
			peak = f.PeakR
		}
		filled := int(math.Round(level * float64(width)))
		bar := barStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("·", width-filled)
		db := analysis.FormatDB(peak)
		if peak > 0 {
			db = overloadStyle.Render(db)
		}
		fmt.Fprintf(&sb, "%s %s %s\n", name, bar, db)
	}
	return sb.String()
}

var bars = []rune(" ▁▂▃▄▅▆▇█")

// renderSpectrum draws levels in [0, 1] as a bar graph of the given size.
// Columns take the maximum of the levels they cover.
func renderSpectrum(levels []float64, width, rows int) string {
	if len(levels) == 0 || width <= 0 || rows <= 0 {
		return ""
	}
	width = min(width, len(levels))

	cols := make([]float64, width)
	for i, v := range levels {
		col := i * width / len(levels)
		cols[col] = max(cols[col], v)
	}

	steps := len(bars) - 1
	var sb strings.Builder
	for row := rows - 1; row >= 0; row-- {
		for _, v := range cols {
			cells := math.Max(0, math.Min(1, v)) * float64(rows*steps)
			fill := int(math.Round(cells)) - row*steps
			fill = max(0, min(steps, fill))
			sb.WriteRune(bars[fill])
		}
		if row > 0 {
			sb.WriteByte('\n')
		}
	}
	return barStyle.Render(sb.String())
}

// RunConsole runs the console until the user quits.
func RunConsole(c *Console) error {
	p := tea.NewProgram(c, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
