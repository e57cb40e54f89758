// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"seedscope/internal/audio"
	"seedscope/internal/config"
	applog "seedscope/internal/log"
	"seedscope/internal/tui"
	"seedscope/pkg/build"
)

// options holds flag values; flags left unset do not override the config
// file.
type options struct {
	configPath      string
	deviceID        int
	outputDeviceID  int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	statePath       string
	verbose         bool
	headless        bool
	logFile         string
	exportDir       string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	buildInfo := build.GetBuildFlags()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runLive(cmd.Context(), cfg, opts)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Audio Device Configuration
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to a YAML config file (default: ./config.yaml or ./seedscope.yaml)")
	rootCmd.PersistentFlags().IntVarP(&opts.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	rootCmd.Flags().IntVar(&opts.outputDeviceID, "output-device", config.DefaultDeviceID,
		"Specify output device ID")
	rootCmd.PersistentFlags().Float64VarP(&opts.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	rootCmd.Flags().IntVarP(&opts.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	rootCmd.Flags().BoolVarP(&opts.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Session Configuration
	rootCmd.Flags().StringVar(&opts.statePath, "state", "",
		"Recorder state file, loaded on start and saved on exit")
	rootCmd.Flags().BoolVar(&opts.headless, "headless", false,
		"Run without the console until interrupted")
	rootCmd.Flags().StringVar(&opts.logFile, "log-file", "seedscope.log",
		"Log destination while the console owns the terminal")
	rootCmd.Flags().StringVar(&opts.exportDir, "export-dir", ".",
		"Directory for slot heat maps and WAV files exported from the console")

	// Debug Configuration
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.AddCommand(newListCommand(opts))
	rootCmd.AddCommand(newFilterCommand(opts))
	rootCmd.AddCommand(newSpectrumCommand(opts))
	rootCmd.AddCommand(newImportCommand(opts))
	rootCmd.AddCommand(newExportCommand(opts))

	return rootCmd
}

// Execute runs the command line.
func Execute() error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(os.Args[1:])
	return rootCmd.Execute()
}

func newListCommand(opts *options) *cobra.Command {
	var interactive bool

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyVerbosity(opts.verbose)

			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()

			if !interactive {
				return audio.ListDevices(cmd.OutOrStdout())
			}

			sel, ok, err := tui.PickDevice()
			if err != nil || !ok {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: --device %d --sample-rate %.0f\n",
				sel.DeviceName, sel.DeviceID, sel.SampleRate)
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&interactive, "interactive", "i", false,
		"Pick a device and sample rate interactively")
	return listCmd
}

// loadConfig reads the config file and applies flags the user set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Audio.InputDevice = opts.deviceID
	}
	if flags.Changed("output-device") {
		cfg.Audio.OutputDevice = opts.outputDeviceID
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = opts.sampleRate
	}
	if flags.Changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = opts.framesPerBuffer
	}
	if flags.Changed("low-latency") {
		cfg.Audio.LowLatency = opts.lowLatency
	}
	if flags.Changed("state") {
		cfg.Recorder.StateFile = opts.statePath
	}
	if opts.verbose {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	} else if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	return cfg, nil
}

func applyVerbosity(verbose bool) {
	if verbose {
		applog.SetLevel(applog.LevelDebug)
	}
}
