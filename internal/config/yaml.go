// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (forces debug logging).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Audio output settings.
	STFT      STFTConfig      `yaml:"stft"`      // Analysis-synthesis engine settings.
	Sources   SourcesConfig   `yaml:"sources"`   // Magnitude and phase input sources.
	Sensor    SensorConfig    `yaml:"sensor"`    // Control sensor settings.
	Recording RecordingConfig `yaml:"recording"` // Output recording settings.
	Transport TransportConfig `yaml:"transport"` // Telemetry and remote control transports.
}

// AudioConfig holds settings related to audio output.
type AudioConfig struct {
	Backend         string  `yaml:"backend"`           // Output runtime: "portaudio" or "oto".
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index for output (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per audio callback block.
	OutputChannels  int     `yaml:"output_channels"`   // Interleaved output channels; every channel carries the effect.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from the device.
}

// STFTConfig holds the analysis-synthesis engine settings.
type STFTConfig struct {
	FFTSize        int    `yaml:"fft_size"`        // Frame length, power of 2.
	BufferSize     int    `yaml:"buffer_size"`     // Circular buffer capacity in samples.
	HopMin         int    `yaml:"hop_min"`         // Hop size at sensor position 0.
	HopMax         int    `yaml:"hop_max"`         // Hop size at sensor position 1.
	InitialHop     int    `yaml:"initial_hop"`     // Hop used until the first sensor reading, clamped to [hop_min, hop_max].
	SynthesisDelay int    `yaml:"synthesis_delay"` // Samples between the read pointer and the first overlap-add cell.
	Normalization  string `yaml:"normalization"`   // "window" (hop / window energy) or "fft" (hop / fft_size).
	Engine         string `yaml:"engine"`          // Transform engine: "gonum" or "godsp".
	Scheduler      string `yaml:"scheduler"`       // Frame scheduling policy: "queue" or "drop".
}

// SourcesConfig names the two input streams.
type SourcesConfig struct {
	Kind          string  `yaml:"kind"`           // "file" (WAV players) or "sine" (oscillators).
	Magnitude     string  `yaml:"magnitude"`      // WAV file supplying the magnitude spectrum.
	Phase         string  `yaml:"phase"`          // WAV file supplying the phase spectrum.
	Loop          bool    `yaml:"loop"`           // Restart files when they end.
	MagnitudeFreq float64 `yaml:"magnitude_freq"` // Oscillator frequency for kind "sine" (Hz).
	PhaseFreq     float64 `yaml:"phase_freq"`     // Oscillator frequency for kind "sine" (Hz).
}

// SensorConfig holds settings for the control sensor.
type SensorConfig struct {
	Kind         string        `yaml:"kind"`          // "fixed", "sweep", "script" or "remote".
	PollInterval time.Duration `yaml:"poll_interval"` // Interval between sensor reads.
	GainScale    float64       `yaml:"gain_scale"`    // Input gain = intensity * gain_scale.
	Position     float64       `yaml:"position"`      // Position for kind "fixed", initial position otherwise.
	Intensity    float64       `yaml:"intensity"`     // Intensity for kind "fixed", initial intensity otherwise.
	SweepPeriod  time.Duration `yaml:"sweep_period"`  // Full back-and-forth period for kind "sweep".
	Script       string        `yaml:"script"`        // Lua file defining read(t) for kind "script".
}

// RecordingConfig holds settings related to recording the effect output.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record the effect output to a WAV file.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
	BitDepth  int    `yaml:"bit_depth"`  // Bit depth for recorded audio (16 or 24).
}

// TransportConfig holds settings for telemetry and remote control.
type TransportConfig struct {
	LoggingEnabled   bool          `yaml:"logging_enabled"`    // Log telemetry snapshots at debug level.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve /monitor and /control over WebSocket.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address for the WebSocket server.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send telemetry packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	MonitorInterval  time.Duration `yaml:"monitor_interval"`   // Interval between telemetry snapshots.
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{"config.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the configuration once at startup. Every sizing invariant
// the audio path relies on is established here.
func (c *Config) Validate() error {
	// Audio
	a := c.Audio
	if !slices.Contains([]string{BackendPortAudio, BackendOto}, a.Backend) {
		return invalid("audio.backend '%s' must be one of portaudio, oto", a.Backend)
	}
	if a.OutputDevice < MinDeviceID {
		return invalid("audio.output_device %d must be >= %d", a.OutputDevice, MinDeviceID)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return invalid("audio.sample_rate %.0f out of range [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer < 1 || a.FramesPerBuffer > MaxBufferFrames {
		return invalid("audio.frames_per_buffer %d out of range [1, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.OutputChannels < 1 {
		return invalid("audio.output_channels must be at least 1")
	}
	if a.Backend == BackendOto && a.OutputChannels > 2 {
		return invalid("audio.output_channels %d not supported by the oto backend (max 2)", a.OutputChannels)
	}

	// STFT
	s := c.STFT
	if s.FFTSize < MinFFTSize || s.FFTSize > MaxFFTSize || s.FFTSize&(s.FFTSize-1) != 0 {
		return invalid("stft.fft_size %d must be a power of 2 in [%d, %d]", s.FFTSize, MinFFTSize, MaxFFTSize)
	}
	if s.HopMin < 1 || s.HopMax < s.HopMin {
		return invalid("stft.hop_min %d and stft.hop_max %d must satisfy 1 <= hop_min <= hop_max", s.HopMin, s.HopMax)
	}
	if s.SynthesisDelay < 0 {
		return invalid("stft.synthesis_delay must not be negative")
	}
	if need := s.FFTSize + s.HopMax + s.SynthesisDelay; s.BufferSize < need {
		return invalid("stft.buffer_size %d must be at least fft_size + hop_max + synthesis_delay = %d", s.BufferSize, need)
	}
	if !slices.Contains([]string{"window", "fft"}, strings.ToLower(s.Normalization)) {
		return invalid("stft.normalization '%s' must be one of window, fft", s.Normalization)
	}
	if !slices.Contains([]string{"gonum", "godsp", "go-dsp"}, strings.ToLower(s.Engine)) {
		return invalid("stft.engine '%s' must be one of gonum, godsp", s.Engine)
	}
	if !slices.Contains([]string{"queue", "drop"}, strings.ToLower(s.Scheduler)) {
		return invalid("stft.scheduler '%s' must be one of queue, drop", s.Scheduler)
	}

	// Sources
	switch c.Sources.Kind {
	case SourceFile:
		if c.Sources.Magnitude == "" || c.Sources.Phase == "" {
			return invalid("sources.magnitude and sources.phase must be set for kind file")
		}
	case SourceSine:
		nyquist := a.SampleRate / 2
		for _, f := range []float64{c.Sources.MagnitudeFreq, c.Sources.PhaseFreq} {
			if f <= 0 || f >= nyquist {
				return invalid("source frequency %v must be in (0, %v)", f, nyquist)
			}
		}
	default:
		return invalid("sources.kind '%s' must be one of file, sine", c.Sources.Kind)
	}

	// Sensor
	sn := c.Sensor
	if !slices.Contains([]string{SensorFixed, SensorSweep, SensorScript, SensorRemote}, sn.Kind) {
		return invalid("sensor.kind '%s' must be one of fixed, sweep, script, remote", sn.Kind)
	}
	if sn.PollInterval <= 0 {
		return invalid("sensor.poll_interval must be positive")
	}
	if sn.GainScale < 0 {
		return invalid("sensor.gain_scale must not be negative")
	}
	if sn.Position < 0 || sn.Position > 1 {
		return invalid("sensor.position %v must be in [0, 1]", sn.Position)
	}
	if sn.Intensity < 0 {
		return invalid("sensor.intensity must not be negative")
	}
	if sn.Kind == SensorSweep && sn.SweepPeriod <= 0 {
		return invalid("sensor.sweep_period must be positive for kind sweep")
	}
	if sn.Kind == SensorScript && sn.Script == "" {
		return invalid("sensor.script must be set for kind script")
	}
	if sn.Kind == SensorRemote && !c.Transport.WebSocketEnabled {
		return invalid("sensor kind remote requires transport.websocket_enabled")
	}

	// Recording
	if c.Recording.Enabled {
		if c.Recording.OutputDir == "" {
			return invalid("recording.output_dir must be set when recording is enabled")
		}
		if c.Recording.BitDepth != 16 && c.Recording.BitDepth != 24 {
			return invalid("recording.bit_depth %d must be 16 or 24", c.Recording.BitDepth)
		}
	}

	// Transport
	t := c.Transport
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return invalid("transport.udp_target_address '%s' appears invalid: %v", t.UDPTargetAddress, err)
		}
	}
	if t.WebSocketEnabled && t.WebSocketAddress == "" {
		return invalid("transport.websocket_address must be set when websocket is enabled")
	}
	if (t.LoggingEnabled || t.UDPEnabled || t.WebSocketEnabled) && t.MonitorInterval <= 0 {
		return invalid("transport.monitor_interval must be positive")
	}

	return nil
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
func (cfg *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.

	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			fmt.Printf("configuration: Overriding debug from env: %v\n", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		fmt.Printf("configuration: Overriding log_level from env: %s\n", val)
	}
	// ENV_SENSOR_KIND
	if val, ok := os.LookupEnv("ENV_SENSOR_KIND"); ok {
		cfg.Sensor.Kind = val
		fmt.Printf("configuration: Overriding sensor.kind from env: %s\n", val)
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			fmt.Printf("configuration: Overriding transport.udp_enabled from env: %v\n", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		fmt.Printf("configuration: Overriding transport.udp_target_address from env: %s\n", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.MonitorInterval = dur
			fmt.Printf("configuration: Overriding transport.monitor_interval from env: %s\n", dur)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WebSocketAddress = val
		fmt.Printf("configuration: Overriding transport.websocket_address from env: %s\n", val)
	}
}
