// SPDX-License-Identifier: MIT
package audio

import (
	"runtime"
	"time"

	"xsynth/internal/config"

	"github.com/gordonklaus/portaudio"
)

type portAudioBackend struct {
	cfg     config.AudioConfig
	render  func(out []float32)
	device  *portaudio.DeviceInfo
	latency time.Duration
	stream  *portaudio.Stream
}

func newPortAudioBackend(cfg config.AudioConfig, render func(out []float32)) (*portAudioBackend, error) {
	device, err := OutputDevice(cfg.OutputDevice)
	if err != nil {
		return nil, err
	}
	b := &portAudioBackend{cfg: cfg, render: render, device: device}
	if cfg.LowLatency {
		b.latency = device.DefaultLowOutputLatency
	} else {
		b.latency = device.DefaultHighOutputLatency
	}
	return b, nil
}

func (b *portAudioBackend) start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 0, // No input device
			Device:   nil,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: b.cfg.OutputChannels,
			Device:   b.device,
			Latency:  b.latency,
		},
		FramesPerBuffer: b.cfg.FramesPerBuffer,
		SampleRate:      b.cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, b.processOutputStream)
	if err != nil {
		return err
	}
	b.stream = stream

	if err := b.stream.Start(); err != nil {
		b.stream.Close()
		b.stream = nil
		return err
	}
	return nil
}

func (b *portAudioBackend) stop() error {
	if b.stream != nil {
		if err := b.stream.Stop(); err != nil {
			return err
		}
		if err := b.stream.Close(); err != nil {
			return err
		}
		b.stream = nil
	}
	return nil
}

// processOutputStream is the PortAudio callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - No dynamic allocations in the hot path
func (b *portAudioBackend) processOutputStream(out []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	b.render(out)
}
