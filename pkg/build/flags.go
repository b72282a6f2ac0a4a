// SPDX-License-Identifier: MIT
//
// Package build exposes the application name, build timestamp, Git commit and
// semantic version embedded at link time, e.g.
//
//	go build -ldflags "-X pitchscope/pkg/build.buildVersion=v0.3.0 ..."
//
// Development builds run without them and report "unknown".
package build

import (
	"errors"
	"fmt"
)

// Description is the one-line summary shown by the CLI.
const Description = "Live piano note detection from an audio input"

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String renders the flags as a version line.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Package-level variables for build information, set with -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    "pitchscope",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
	}
)

// Initialize copies every ldflags value that was set into the build info.
// It returns an error listing the missing ones; the defaults remain in place
// for those, so callers may treat the error as a warning.
func Initialize() error {
	var errs []error
	set := func(dst *string, val, flag string) {
		if val == "" {
			errs = append(errs, fmt.Errorf("%s is required", flag))
			return
		}
		*dst = val
	}

	set(&buildFlags.Name, buildName, "BuildName")
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")

	return errors.Join(errs...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
