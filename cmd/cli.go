// SPDX-License-Identifier: MIT
package cmd

import (
	"xsynth/internal/config"
	"xsynth/pkg/build"

	"github.com/spf13/cobra"
)

// CommandNone means cobra already handled the invocation (help, --version).
const (
	CommandNone    = ""
	CommandRun     = "run"
	CommandDevices = "devices"
	CommandVersion = "version"
)

// Options is the parsed command line. Flags only override the loaded
// configuration when they were given explicitly.
type Options struct {
	Command    string
	ConfigPath string
	Plain      bool // devices: plain listing even on a terminal

	overrides []func(*config.Config)
}

// Apply writes the explicitly set flags over cfg and validates the result.
func (o *Options) Apply(cfg *config.Config) error {
	for _, f := range o.overrides {
		f(cfg)
	}
	return cfg.Validate()
}

// ParseArgs parses args (without the program name).
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}

	var (
		device    int
		backend   string
		sensor    string
		script    string
		record    bool
		outputDir string
		verbose   bool
		sine      bool
		magnitude string
		phase     string
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Real-time spectral cross-synthesis",
		Long:          "Combines the magnitude spectrum of one source with the phase spectrum of another, with a hop size driven by a control sensor.",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandRun
			flags := cmd.Flags()
			if flags.Changed("device") {
				options.add(func(c *config.Config) { c.Audio.OutputDevice = device })
			}
			if flags.Changed("backend") {
				options.add(func(c *config.Config) { c.Audio.Backend = backend })
			}
			if flags.Changed("sensor") {
				options.add(func(c *config.Config) {
					c.Sensor.Kind = sensor
					if sensor == config.SensorRemote {
						c.Transport.WebSocketEnabled = true
					}
				})
			}
			if flags.Changed("script") {
				options.add(func(c *config.Config) {
					c.Sensor.Kind = config.SensorScript
					c.Sensor.Script = script
				})
			}
			if flags.Changed("record") {
				options.add(func(c *config.Config) { c.Recording.Enabled = record })
			}
			if flags.Changed("output-dir") {
				options.add(func(c *config.Config) { c.Recording.OutputDir = outputDir })
			}
			if flags.Changed("verbose") {
				options.add(func(c *config.Config) { c.Debug = verbose })
			}
			if flags.Changed("sine") && sine {
				options.add(func(c *config.Config) { c.Sources.Kind = config.SourceSine })
			}
			if flags.Changed("magnitude") {
				options.add(func(c *config.Config) {
					c.Sources.Kind = config.SourceFile
					c.Sources.Magnitude = magnitude
				})
			}
			if flags.Changed("phase") {
				options.add(func(c *config.Config) {
					c.Sources.Kind = config.SourceFile
					c.Sources.Phase = phase
				})
			}
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&options.ConfigPath, "config", "c", "",
		"Configuration file. Defaults to ./config.yaml when present")

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List output devices (interactive picker on a terminal)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandDevices
			return nil
		},
	}
	devicesCmd.Flags().BoolVar(&options.Plain, "plain", false,
		"Print the device list instead of opening the picker")
	rootCmd.AddCommand(devicesCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandVersion
			return nil
		},
	})

	// Output Configuration
	flags := rootCmd.Flags()
	flags.IntVarP(&device, "device", "d", config.DefaultOutputDevice,
		"Output device ID, -1 for the system default. See the 'devices' command")
	flags.StringVar(&backend, "backend", config.DefaultBackend,
		"Output backend: portaudio or oto")

	// Sources
	flags.StringVar(&magnitude, "magnitude", config.DefaultMagnitudeFile,
		"WAV file supplying the magnitude spectrum")
	flags.StringVar(&phase, "phase", config.DefaultPhaseFile,
		"WAV file supplying the phase spectrum")
	flags.BoolVar(&sine, "sine", false,
		"Use sine oscillators instead of files")
	rootCmd.MarkFlagsMutuallyExclusive("sine", "magnitude")
	rootCmd.MarkFlagsMutuallyExclusive("sine", "phase")

	// Control
	flags.StringVar(&sensor, "sensor", config.DefaultSensorKind,
		"Control sensor: fixed, sweep, script or remote")
	flags.StringVar(&script, "script", "",
		"Lua script defining read(t); implies --sensor script")

	// Recording Configuration
	flags.BoolVarP(&record, "record", "r", false,
		"Record the effect output to a WAV file")
	flags.StringVarP(&outputDir, "output-dir", "o", config.DefaultRecordingDir,
		"Directory for recordings")

	// Debug Configuration
	flags.BoolVarP(&verbose, "verbose", "v", false,
		"Show verbose output")

	// cobra falls back to os.Args when given nil.
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}

func (o *Options) add(f func(*config.Config)) {
	o.overrides = append(o.overrides, f)
}
