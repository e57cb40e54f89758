// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata stamped into the seedscope binary at
// link time:
//
//	go build -ldflags "-X seedscope/pkg/build.buildName=seedscope \
//	  -X seedscope/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds carry no ldflags. Initialize reports what is missing
// but still leaves usable defaults in place, so callers can log the error
// and keep going.
package build

import (
	"errors"
	"fmt"
	"strings"
)

// Description is the one-line summary shown by the CLI.
const Description = "Four-slot stereo recorder with band-pass playback and live spectrum analysis"

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the info the way `--version` prints it.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// ErrMissingFlags is wrapped by Initialize when ldflags were not provided.
var ErrMissingFlags = errors.New("build flags missing")

// Package-level variables populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = &Info{
		Name:        "seedscope",
		Description: Description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies the ldflags variables into the shared Info. Any flag
// that was not set keeps its default and is listed in the returned error.
func Initialize() error {
	var missing []string
	set := func(dst *string, val, name string) {
		if val == "" {
			missing = append(missing, name)
			return
		}
		*dst = val
	}

	set(&buildInfo.Name, buildName, "BuildName")
	set(&buildInfo.Time, buildTime, "BuildTime")
	set(&buildInfo.Commit, buildCommit, "BuildCommit")
	set(&buildInfo.Version, buildVersion, "BuildVersion")

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFlags, strings.Join(missing, ", "))
	}
	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildInfo
}
