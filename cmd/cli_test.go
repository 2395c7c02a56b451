// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"testing"

	"xsynth/internal/config"
)

func TestParseArgsCommands(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		command string
		plain   bool
		path    string
	}{
		{"Run", nil, CommandRun, false, ""},
		{"Run With Config", []string{"-c", "live.yaml"}, CommandRun, false, "live.yaml"},
		{"Devices", []string{"devices"}, CommandDevices, false, ""},
		{"Devices Plain", []string{"devices", "--plain"}, CommandDevices, true, ""},
		{"Devices With Config", []string{"devices", "--config", "x.yaml"}, CommandDevices, false, "x.yaml"},
		{"Version", []string{"version"}, CommandVersion, false, ""},
		{"Help", []string{"--help"}, CommandNone, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("ParseArgs(%v) error: %v", tt.args, err)
			}
			if opts.Command != tt.command {
				t.Errorf("Command = %q, want %q", opts.Command, tt.command)
			}
			if opts.Plain != tt.plain {
				t.Errorf("Plain = %v, want %v", opts.Plain, tt.plain)
			}
			if opts.ConfigPath != tt.path {
				t.Errorf("ConfigPath = %q, want %q", opts.ConfigPath, tt.path)
			}
		})
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"Unknown Flag", []string{"--nope"}},
		{"Unknown Command", []string{"play"}},
		{"Bad Device", []string{"--device", "speaker"}},
		{"Sine And File", []string{"--sine", "--magnitude", "a.wav"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseArgs(tt.args); err == nil {
				t.Errorf("ParseArgs(%v) expected error", tt.args)
			}
		})
	}
}

func TestApplyOnlyChangedFlags(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.OutputDevice = 4
	cfg.Audio.Backend = config.BackendOto

	opts, err := ParseArgs([]string{"--record", "-o", "takes", "--sensor", "sweep"})
	if err != nil {
		t.Fatal(err)
	}
	if err := opts.Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if cfg.Audio.OutputDevice != 4 || cfg.Audio.Backend != config.BackendOto {
		t.Errorf("unset flags overwrote the file: device=%d backend=%s",
			cfg.Audio.OutputDevice, cfg.Audio.Backend)
	}
	if !cfg.Recording.Enabled || cfg.Recording.OutputDir != "takes" {
		t.Errorf("recording = %+v", cfg.Recording)
	}
	if cfg.Sensor.Kind != config.SensorSweep {
		t.Errorf("sensor kind = %s, want sweep", cfg.Sensor.Kind)
	}
}

func TestApplySources(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		kind      string
		magnitude string
		phase     string
	}{
		{"Sine", []string{"--sine"}, config.SourceSine, config.DefaultMagnitudeFile, config.DefaultPhaseFile},
		{"Files", []string{"--magnitude", "m.wav", "--phase", "p.wav"}, config.SourceFile, "m.wav", "p.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			opts, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatal(err)
			}
			if err := opts.Apply(cfg); err != nil {
				t.Fatal(err)
			}
			s := cfg.Sources
			if s.Kind != tt.kind || s.Magnitude != tt.magnitude || s.Phase != tt.phase {
				t.Errorf("sources = %+v", s)
			}
		})
	}
}

func TestApplyValidates(t *testing.T) {
	opts, err := ParseArgs([]string{"--backend", "jack"})
	if err != nil {
		t.Fatal(err)
	}
	if err := opts.Apply(config.Default()); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("Apply error = %v, want ErrInvalid", err)
	}
}

func TestApplyScriptImpliesKind(t *testing.T) {
	cfg := config.Default()
	opts, err := ParseArgs([]string{"--script", "touch.lua"})
	if err != nil {
		t.Fatal(err)
	}
	opts.Apply(cfg)
	if cfg.Sensor.Kind != config.SensorScript || cfg.Sensor.Script != "touch.lua" {
		t.Errorf("sensor = %+v", cfg.Sensor)
	}
}
