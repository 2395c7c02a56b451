// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"time"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Built-in defaults. A config file only needs to name what it changes.
const (
	DefaultLogLevel = "info"

	DefaultBackend         = BackendPortAudio
	DefaultOutputDevice    = MinDeviceID // system default device
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 256
	DefaultOutputChannels  = 2
	DefaultLowLatency      = true

	DefaultFFTSize        = 2048
	DefaultBufferSize     = 16384
	DefaultHopMin         = 50
	DefaultHopMax         = 200
	DefaultInitialHop     = 128
	DefaultSynthesisDelay = DefaultFramesPerBuffer
	DefaultNormalization  = "window"
	DefaultEngine         = "gonum"
	DefaultScheduler      = "queue"

	DefaultSourceKind    = SourceFile
	DefaultMagnitudeFile = "theme.wav"
	DefaultPhaseFile     = "voice.wav"
	DefaultMagnitudeFreq = 220.0
	DefaultPhaseFreq     = 330.0

	DefaultSensorKind   = SensorFixed
	DefaultPollInterval = 12 * time.Millisecond
	DefaultGainScale    = 20.0
	DefaultPosition     = 0.5
	DefaultIntensity    = 0.05
	DefaultSweepPeriod  = 8 * time.Second

	DefaultRecordingDir = "./recordings"
	DefaultBitDepth     = 16

	DefaultWebSocketAddress = ":8080"
	DefaultUDPTarget        = "127.0.0.1:9090"
	DefaultMonitorInterval  = 100 * time.Millisecond
)

// Hardware and processing limits.
const (
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer
	MinFFTSize      = 4
	MaxFFTSize      = 1 << 16
)

// Output backends.
const (
	BackendPortAudio = "portaudio"
	BackendOto       = "oto"
)

// Source kinds.
const (
	SourceFile = "file"
	SourceSine = "sine"
)

// Sensor kinds.
const (
	SensorFixed  = "fixed"
	SensorSweep  = "sweep"
	SensorScript = "script"
	SensorRemote = "remote"
)

// Default returns a configuration holding only built-in defaults.
func Default() *Config {
	return &Config{
		Debug:    false,
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			Backend:         DefaultBackend,
			OutputDevice:    DefaultOutputDevice,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			OutputChannels:  DefaultOutputChannels,
			LowLatency:      DefaultLowLatency,
		},
		STFT: STFTConfig{
			FFTSize:        DefaultFFTSize,
			BufferSize:     DefaultBufferSize,
			HopMin:         DefaultHopMin,
			HopMax:         DefaultHopMax,
			InitialHop:     DefaultInitialHop,
			SynthesisDelay: DefaultSynthesisDelay,
			Normalization:  DefaultNormalization,
			Engine:         DefaultEngine,
			Scheduler:      DefaultScheduler,
		},
		Sources: SourcesConfig{
			Kind:          DefaultSourceKind,
			Magnitude:     DefaultMagnitudeFile,
			Phase:         DefaultPhaseFile,
			Loop:          true,
			MagnitudeFreq: DefaultMagnitudeFreq,
			PhaseFreq:     DefaultPhaseFreq,
		},
		Sensor: SensorConfig{
			Kind:         DefaultSensorKind,
			PollInterval: DefaultPollInterval,
			GainScale:    DefaultGainScale,
			Position:     DefaultPosition,
			Intensity:    DefaultIntensity,
			SweepPeriod:  DefaultSweepPeriod,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			LoggingEnabled:   false,
			WebSocketEnabled: false,
			WebSocketAddress: DefaultWebSocketAddress,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTarget,
			MonitorInterval:  DefaultMonitorInterval,
		},
	}
}
