// SPDX-License-Identifier: MIT
package xsynth

import (
	"fmt"
	"strings"

	"xsynth/internal/config"
	"xsynth/internal/sched"
	"xsynth/internal/spectral"
	"xsynth/pkg/bitint"
)

// Normalization selects how overlap-added output is scaled back to unity.
type Normalization int

const (
	// NormalizeWindow scales by hop / sum(analysis*synthesis), which keeps
	// the output level independent of the hop size.
	NormalizeWindow Normalization = iota
	// NormalizeFFT scales by hop / fftSize.
	NormalizeFFT
)

func (n Normalization) String() string {
	switch n {
	case NormalizeWindow:
		return "window"
	case NormalizeFFT:
		return "fft"
	default:
		return "unknown"
	}
}

// ParseNormalization converts a config name (case-insensitive).
func ParseNormalization(name string) (Normalization, error) {
	switch strings.ToLower(name) {
	case "", "window":
		return NormalizeWindow, nil
	case "fft":
		return NormalizeFFT, nil
	default:
		return NormalizeWindow, fmt.Errorf("unknown normalization mode: '%s'", name)
	}
}

// Options fixes the shape of a Session. Everything here is validated once by
// NewSession and never re-checked on the audio path.
type Options struct {
	FFTSize        int
	BufferSize     int
	HopMin         int
	HopMax         int
	InitialHop     int
	SynthesisDelay int // samples between the read pointer and the first overlap-add cell
	Channels       int // interleaved output channels

	GainScale     float64 // input gain = intensity * GainScale
	Normalization Normalization
	Engine        spectral.Engine
	Policy        sched.Policy

	// Inline runs frames synchronously inside Render. Tests and offline
	// rendering only.
	Inline bool
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		FFTSize:        2048,
		BufferSize:     16384,
		HopMin:         50,
		HopMax:         200,
		InitialHop:     128,
		SynthesisDelay: 256,
		Channels:       2,
		GainScale:      20,
		Normalization:  NormalizeWindow,
		Engine:         spectral.EngineGonum,
		Policy:         sched.PolicyQueue,
	}
}

// Validate checks every sizing invariant the audio path relies on.
func (o Options) Validate() error {
	if o.FFTSize < 4 || !bitint.IsPowerOfTwo(o.FFTSize) {
		return fmt.Errorf("fft size must be a power of 2 and at least 4, got %d", o.FFTSize)
	}
	if o.HopMin < 1 {
		return fmt.Errorf("minimum hop must be at least 1, got %d", o.HopMin)
	}
	if o.HopMax < o.HopMin {
		return fmt.Errorf("maximum hop %d is below minimum hop %d", o.HopMax, o.HopMin)
	}
	if o.SynthesisDelay < 0 {
		return fmt.Errorf("synthesis delay must not be negative, got %d", o.SynthesisDelay)
	}
	if need := o.FFTSize + o.HopMax + o.SynthesisDelay; o.BufferSize < need {
		return fmt.Errorf("buffer size %d too small, need at least fft size + max hop + synthesis delay = %d", o.BufferSize, need)
	}
	if o.Channels < 1 {
		return fmt.Errorf("output channels must be at least 1, got %d", o.Channels)
	}
	if o.GainScale < 0 {
		return fmt.Errorf("gain scale must not be negative, got %v", o.GainScale)
	}
	return nil
}

// OptionsFromConfig builds session options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	norm, err := ParseNormalization(cfg.STFT.Normalization)
	if err != nil {
		return Options{}, err
	}
	engine, err := spectral.ParseEngine(cfg.STFT.Engine)
	if err != nil {
		return Options{}, err
	}
	policy, err := sched.ParsePolicy(cfg.STFT.Scheduler)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		FFTSize:        cfg.STFT.FFTSize,
		BufferSize:     cfg.STFT.BufferSize,
		HopMin:         cfg.STFT.HopMin,
		HopMax:         cfg.STFT.HopMax,
		InitialHop:     cfg.STFT.InitialHop,
		SynthesisDelay: cfg.STFT.SynthesisDelay,
		Channels:       cfg.Audio.OutputChannels,
		GainScale:      cfg.Sensor.GainScale,
		Normalization:  norm,
		Engine:         engine,
		Policy:         policy,
	}
	return opts, opts.Validate()
}
