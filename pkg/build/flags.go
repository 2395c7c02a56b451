// SPDX-License-Identifier: MIT
//
// Package build holds the metadata stamped into the xsynth binary at link
// time: name, build time, commit and version. Development builds without
// -ldflags fall back to what the Go toolchain recorded in the binary.
//
//	go build -ldflags "-X xsynth/pkg/build.buildName=xsynth \
//	  -X xsynth/pkg/build.buildTime=$(date -u +%FT%TZ) \
//	  -X xsynth/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X xsynth/pkg/build.buildVersion=v0.1.0"
package build

import (
	"fmt"
	"runtime/debug"
)

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String formats the flags for `xsynth version`.
func (f ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    "xsynth",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
	}
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Initialize copies the ldflags values into the build flags. It returns an
// error naming the first missing value; the flags then hold whatever the
// embedded module build info provides instead.
func Initialize() error {
	var missing string
	switch {
	case buildName == "":
		missing = "BuildName"
	case buildTime == "":
		missing = "BuildTime"
	case buildCommit == "":
		missing = "BuildCommit"
	case buildVersion == "":
		missing = "BuildVersion"
	}
	if missing != "" {
		fromBuildInfo()
		return fmt.Errorf("%s is required", missing)
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

func fromBuildInfo() {
	info, ok := readBuildInfo()
	if !ok {
		return
	}
	if v := info.Main.Version; v != "" {
		buildFlags.Version = v
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			buildFlags.Commit = s.Value
		case "vcs.time":
			buildFlags.Time = s.Value
		}
	}
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
