// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"seedscope/internal/analysis"
	"seedscope/internal/audio"
	"seedscope/internal/broadcast"
	"seedscope/internal/config"
	applog "seedscope/internal/log"
	"seedscope/internal/recorder"
	"seedscope/internal/transport"
	"seedscope/internal/transport/udp"
	"seedscope/internal/tui"
)

// session is everything the live command starts, in start order.
type session struct {
	cfg         *config.Config
	recorder    *recorder.Recorder
	broadcaster *broadcast.Broadcaster
	engine      *audio.Engine
	out         *transport.Multi
	spectrum    *analysis.Monitor
	levels      *analysis.Monitor
	closers     []io.Closer
	// filterTaps seeds the console; a restored state overrides the config.
	filterTaps int
}

// newSession wires the recorder, broadcaster, analysers and transports.
// The engine is created but not started.
func newSession(cfg *config.Config) (*session, error) {
	s := &session{
		cfg:         cfg,
		recorder:    recorder.New(cfg.Recorder.Entries, cfg.Capacity()),
		broadcaster: broadcast.New(cfg.Analysis.BroadcastCapacity),
		out:         transport.NewMulti(),
		filterTaps:  cfg.Recorder.FilterTaps,
	}

	if path := cfg.Recorder.StateFile; path != "" {
		state, err := recorder.LoadState(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			applog.Infof("no recorder state at %s, starting empty", path)
		case err != nil:
			return nil, err
		default:
			if err := s.recorder.Restore(state); err != nil {
				return nil, fmt.Errorf("restore %s: %w", path, err)
			}
			if state.FilterTaps > 0 {
				s.filterTaps = s.recorder.FilterTaps()
			}
			applog.Infof("restored recorder state from %s", path)
		}
	}

	if err := s.openTransports(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.openMonitors(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) openTransports() error {
	tc := s.cfg.Transport
	s.closers = append(s.closers, s.out)

	if tc.WSEnabled {
		ws, err := transport.NewWebSocketTransport(tc.WSAddr)
		if err != nil {
			return fmt.Errorf("websocket transport: %w", err)
		}
		s.out.Add(ws)
	}
	if tc.UDPEnabled {
		sender, err := udp.NewSender(tc.UDPTargetAddress)
		if err != nil {
			return err
		}
		pub, err := udp.NewTransport(tc.UDPSendInterval, sender)
		if err != nil {
			sender.Close()
			return err
		}
		pub.Start()
		s.out.Add(pub)
	}
	if tc.LogFrames {
		s.out.Add(transport.NewLoggingTransport())
	}
	return nil
}

func (s *session) openMonitors() error {
	ac := s.cfg.Analysis
	window, err := analysis.ParseWindowFunc(ac.FFTWindow)
	if err != nil {
		return err
	}
	opts := analysis.LiveOptions()
	opts.MinHz, opts.MaxHz = ac.MinHz, ac.MaxHz
	opts.ScopeSize = ac.ScopeSize
	opts.Window = window

	var out analysis.Sender
	if s.out.Len() > 0 {
		out = s.out
	}

	live, err := analysis.NewLiveAnalyser(s.broadcaster, ac.WindowSize, opts)
	if err != nil {
		return err
	}
	s.spectrum, err = analysis.NewMonitor(analysis.KindSpectrum, ac.Interval, live, out)
	if err != nil {
		live.Close()
		return err
	}
	s.closers = append(s.closers, s.spectrum)

	meter, err := analysis.NewLevelMeter(s.broadcaster, ac.LevelWindow)
	if err != nil {
		return err
	}
	s.levels, err = analysis.NewMonitor(analysis.KindLevel, ac.Interval, meter, out)
	if err != nil {
		meter.Close()
		return err
	}
	s.closers = append(s.closers, s.levels)

	s.spectrum.Start()
	s.levels.Start()
	return nil
}

// Close stops monitors and transports in reverse order and saves the
// recorder state.
func (s *session) Close() error {
	var errs []error
	if s.engine != nil {
		errs = append(errs, s.engine.Close())
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	s.closers = nil

	if path := s.cfg.Recorder.StateFile; path != "" {
		s.recorder.Stop()
		if err := recorder.SaveState(path, s.recorder.Snapshot()); err != nil {
			errs = append(errs, err)
		} else {
			applog.Infof("saved recorder state to %s", path)
		}
	}
	return errors.Join(errs...)
}

func runLive(ctx context.Context, cfg *config.Config, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if !opts.headless && opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		applog.SetOutput(f)
		defer applog.SetOutput(os.Stderr)
	}

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			applog.Errorf("shutdown: %v", err)
		}
	}()

	s.engine, err = audio.NewEngine(cfg, s.recorder, s.broadcaster)
	if err != nil {
		return err
	}

	// CRITICAL: Start of real-time audio processing
	if err := s.engine.Start(); err != nil {
		return err
	}

	if opts.headless {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		applog.Infof("running headless, press Ctrl+C to stop")
		<-ctx.Done()
		return nil
	}

	return tui.RunConsole(tui.NewConsole(s.recorder, s.consoleOptions(opts.exportDir)))
}

func (s *session) consoleOptions(exportDir string) tui.ConsoleOptions {
	co := tui.ConsoleOptions{
		FilterTaps: s.filterTaps,
		MaxTaps:    config.MaxFilterTaps,
		Spectrum:   s.spectrum,
		ScopeSize:  s.cfg.Analysis.ScopeSize,
		Levels:     s.levels,
		Export: tui.SlotExport{
			Dir:      exportDir,
			Columns:  analysis.DefaultHeatMapColumns,
			Window:   analysis.DefaultHeatMapWindow,
			Options:  analysis.ViewOptions(),
			BitDepth: s.cfg.Recorder.BitDepth,
		},
	}
	if s.engine != nil {
		co.Load = s.engine.Load
	}
	return co
}
