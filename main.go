// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"xsynth/cmd"
	"xsynth/internal/audio"
	"xsynth/internal/config"
	applog "xsynth/internal/log"
	"xsynth/internal/monitor"
	"xsynth/internal/sensor"
	"xsynth/internal/transport"
	"xsynth/internal/transport/udp"
	"xsynth/internal/tui"
	"xsynth/internal/xsynth"
	"xsynth/pkg/build"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// stdout receives user-facing messages that are not log lines.
var stdout io.Writer = os.Stdout

// main is the entry point for the cross-synthesis effect.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//   - Load sources, open the control sensor, build the session
//
// 2. Concurrent Phase (Hot Path):
//   - Start the frame worker and sensor poller
//   - Start the output stream
//   - Start recording and telemetry if enabled
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop output first, then everything feeding it
//   - Finalize the recording
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v, using embedded build info", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatal(err)
	}

	switch opts.Command {
	case cmd.CommandNone:
		return
	case cmd.CommandVersion:
		fmt.Println(build.GetBuildFlags())
		return
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		applog.Fatal(err)
	}
	if err := opts.Apply(cfg); err != nil {
		applog.Fatal(err)
	}
	applog.Configure(cfg.LogLevel, cfg.Debug)

	// Handle one-off commands that don't require the effect to be running
	if opts.Command == cmd.CommandDevices {
		if err := executeDevices(opts.Plain, cfg); err != nil {
			applog.Fatal(err)
		}
		return
	}

	if err := run(cfg); err != nil {
		applog.Fatal(err)
	}
}

func run(cfg *config.Config) error {
	if cfg.Audio.Backend == config.BackendPortAudio {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
	}

	magnitude, phase, err := openSources(cfg)
	if err != nil {
		return err
	}

	dev, err := sensor.Open(cfg.Sensor)
	if err != nil {
		return err
	}
	initial := sensor.Reading{Position: cfg.Sensor.Position, Intensity: cfg.Sensor.Intensity}
	poller, err := sensor.NewPoller(dev, cfg.Sensor.PollInterval, initial)
	if err != nil {
		dev.Close()
		return err
	}
	defer poller.Close()

	sessionOpts, err := xsynth.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	session, err := xsynth.NewSession(sessionOpts, magnitude, phase, poller)
	if err != nil {
		return err
	}
	applog.Infof("Effect: FFT %d, hop %d-%d, %s normalization, %s engine, %s scheduling",
		sessionOpts.FFTSize, sessionOpts.HopMin, sessionOpts.HopMax,
		sessionOpts.Normalization, sessionOpts.Engine, sessionOpts.Policy)

	remote, _ := dev.(*sensor.Remote)
	tr, err := openTransports(cfg, remote)
	if err != nil {
		return err
	}

	engine, err := audio.NewEngine(cfg, session)
	if err != nil {
		tr.Close()
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Starts the frame worker and performs the sensor's first read.
	if err := session.Start(ctx); err != nil {
		tr.Close()
		return err
	}

	var recording string
	if cfg.Recording.Enabled {
		recording, err = engine.StartRecordingInDir(cfg.Recording.OutputDir)
		if err != nil {
			session.Close()
			tr.Close()
			return err
		}
	}

	var publisher *monitor.Publisher
	if len(tr) > 0 {
		publisher, err = monitor.NewPublisher(cfg.Transport.MonitorInterval, session, tr)
		if err != nil {
			engine.Close()
			session.Close()
			tr.Close()
			return err
		}
		publisher.Start()
	}

	// CRITICAL: the backend starts calling session.Render from here on.
	if err := engine.StartOutputStream(); err != nil {
		shutdown(engine, session, publisher, tr, "")
		return err
	}
	applog.Infof("Running with %s backend on %d channels at %.0f Hz. Ctrl+C to stop.",
		cfg.Audio.Backend, cfg.Audio.OutputChannels, cfg.Audio.SampleRate)

	// Block until termination signal is received
	<-ctx.Done()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	applog.Info("Shutting down...")
	return shutdown(engine, session, publisher, tr, recording)
}

// shutdown stops the output before anything it reads from, then stops the
// session and telemetry side by side. The recording path, if any, is
// reported only once the engine has closed the file cleanly.
func shutdown(engine, session io.Closer, publisher *monitor.Publisher, tr transport.Multi, recording string) error {
	engineErr := engine.Close()
	if engineErr == nil && recording != "" {
		fmt.Fprintf(stdout, "\nRecording saved to: %s\n", recording)
	}

	var g errgroup.Group
	g.Go(session.Close)
	g.Go(func() error {
		if publisher != nil {
			return publisher.Close()
		}
		return tr.Close()
	})
	return errors.Join(engineErr, g.Wait())
}

// openSources loads both inputs. Files are decoded concurrently.
func openSources(cfg *config.Config) (magnitude, phase xsynth.Source, err error) {
	sc := cfg.Sources
	rate := cfg.Audio.SampleRate

	if sc.Kind == config.SourceSine {
		applog.Infof("Sources: magnitude sine %.1f Hz, phase sine %.1f Hz", sc.MagnitudeFreq, sc.PhaseFreq)
		return audio.NewOscillator(sc.MagnitudeFreq, rate), audio.NewOscillator(sc.PhaseFreq, rate), nil
	}

	var players [2]*audio.Player
	var g errgroup.Group
	for i, path := range []string{sc.Magnitude, sc.Phase} {
		g.Go(func() error {
			p, err := audio.LoadWAV(path, sc.Loop)
			players[i] = p
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for i, role := range []string{"magnitude", "phase"} {
		p := players[i]
		applog.Infof("Sources: %s '%s', %d frames (%.2fs)", role, p.Name(), p.Frames(), p.Duration().Seconds())
		if float64(p.SampleRate()) != rate {
			applog.Warnf("Sources: '%s' is %d Hz but output runs at %.0f Hz; it will play off-pitch",
				p.Name(), p.SampleRate(), rate)
		}
	}
	return players[0], players[1], nil
}

// openTransports builds every enabled telemetry transport. The websocket
// transport also serves the control endpoint when the sensor is remote.
func openTransports(cfg *config.Config, remote *sensor.Remote) (transport.Multi, error) {
	tc := cfg.Transport
	var tr transport.Multi

	if tc.LoggingEnabled {
		tr = append(tr, transport.NewLoggingTransport())
	}

	if tc.WebSocketEnabled {
		var sink transport.ControlSink
		if remote != nil {
			sink = remote
		}
		ws := transport.NewWebSocketTransport(tc.WebSocketAddress, sink)
		if err := ws.Start(); err != nil {
			ws.Close()
			tr.Close()
			return nil, err
		}
		tr = append(tr, ws)
	}

	if tc.UDPEnabled {
		u, err := udp.NewTransport(tc.UDPTargetAddress)
		if err != nil {
			tr.Close()
			return nil, err
		}
		tr = append(tr, u)
	}

	return tr, nil
}

// executeDevices opens the interactive picker on a terminal and prints the
// chosen output as a config snippet; otherwise it lists the devices.
func executeDevices(plain bool, cfg *config.Config) error {
	if plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices()
	}

	sel, ok, err := tui.StartDeviceListUI()
	if err != nil || !ok {
		return err
	}

	a := cfg.Audio
	a.Backend = config.BackendPortAudio
	a.OutputDevice = sel.DeviceID
	a.SampleRate = sel.SampleRate
	a.OutputChannels = sel.Channels
	out, err := yaml.Marshal(map[string]config.AudioConfig{"audio": a})
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n%s", sel.DeviceName, out)
	return nil
}
