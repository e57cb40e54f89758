// SPDX-License-Identifier: MIT
package main

import (
	"os"

	"seedscope/cmd"
	applog "seedscope/internal/log"
	"seedscope/pkg/build"
)

// main is the entry point for seedscope.
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//
// 2. Concurrent Phase (Hot Path):
//   - Start the duplex stream feeding the recorder and broadcaster
//   - Run analysis monitors, transports and the console
//
// 3. Shutdown Phase (Cold Path):
//   - Stop the stream, monitors and transports
//   - Save the recorder state
func main() {
	if err := build.Initialize(); err != nil {
		applog.Debugf("%v", err)
	}

	if err := cmd.Execute(); err != nil {
		applog.Errorf("%v", err)
		os.Exit(1)
	}
}
