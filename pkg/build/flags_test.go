// SPDX-License-Identifier: MIT
package build

import (
	"runtime/debug"
	"testing"
)

var embeddedInfo = &debug.BuildInfo{
	Main: debug.Module{Path: "xsynth", Version: "v0.2.0"},
	Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123abc"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		{Key: "GOOS", Value: "linux"},
	},
}

// stamp sets the link-time values and the embedded build info for one test
// and restores the package state afterwards.
func stamp(t *testing.T, flags ldFlags, info *debug.BuildInfo) {
	t.Helper()
	saved := *buildFlags
	savedName, savedTime, savedCommit, savedVersion := buildName, buildTime, buildCommit, buildVersion
	t.Cleanup(func() {
		*buildFlags = saved
		buildName, buildTime, buildCommit, buildVersion = savedName, savedTime, savedCommit, savedVersion
		readBuildInfo = debug.ReadBuildInfo
	})

	*buildFlags = ldFlags{Name: "xsynth", Time: "unknown", Commit: "unknown", Version: "unknown"}
	buildName, buildTime, buildCommit, buildVersion = flags.Name, flags.Time, flags.Commit, flags.Version
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
}

func TestInitializeUsesLdflags(t *testing.T) {
	release := ldFlags{Name: "xsynth", Time: "2026-03-01T12:00:00Z", Commit: "f00dfee", Version: "v1.2.0"}
	stamp(t, release, embeddedInfo)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := *GetBuildFlags(); got != release {
		t.Errorf("flags = %+v, want %+v", got, release)
	}
}

// A development build misses at least one ldflag. The error names the first
// gap and every field comes from the embedded build info, never a mix.
func TestInitializeMissingLdflag(t *testing.T) {
	full := ldFlags{Name: "xsynth", Time: "2026-03-01T12:00:00Z", Commit: "f00dfee", Version: "v1.2.0"}
	fromInfo := ldFlags{Name: "xsynth", Time: "2026-01-02T03:04:05Z", Commit: "0123abc", Version: "v0.2.0"}

	tests := []struct {
		name    string
		clear   func(*ldFlags)
		wantErr string
	}{
		{"Name", func(f *ldFlags) { f.Name = "" }, "BuildName is required"},
		{"Time", func(f *ldFlags) { f.Time = "" }, "BuildTime is required"},
		{"Commit", func(f *ldFlags) { f.Commit = "" }, "BuildCommit is required"},
		{"Version", func(f *ldFlags) { f.Version = "" }, "BuildVersion is required"},
		{"All", func(f *ldFlags) { *f = ldFlags{} }, "BuildName is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := full
			tt.clear(&flags)
			stamp(t, flags, embeddedInfo)

			err := Initialize()
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("Initialize() error = %v, want %q", err, tt.wantErr)
			}
			if got := *GetBuildFlags(); got != fromInfo {
				t.Errorf("flags = %+v, want %+v", got, fromInfo)
			}
		})
	}
}

func TestInitializeWithoutBuildInfo(t *testing.T) {
	stamp(t, ldFlags{}, nil)

	if err := Initialize(); err == nil {
		t.Fatal("Initialize() expected error for missing ldflags")
	}
	if got := GetBuildFlags().String(); got != "xsynth unknown (commit unknown, built unknown)" {
		t.Errorf("version line = %q", got)
	}
}

func TestLdFlagsString(t *testing.T) {
	f := ldFlags{Name: "xsynth", Time: "2026-01-02", Commit: "abc", Version: "v1.0.0"}
	want := "xsynth v1.0.0 (commit abc, built 2026-01-02)"
	if f.String() != want {
		t.Errorf("String() = %q, want %q", f.String(), want)
	}
}
