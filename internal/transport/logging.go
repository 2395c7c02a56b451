// SPDX-License-Identifier: MIT
package transport

import (
	applog "xsynth/internal/log"
)

// LoggingTransport writes every message to the application log.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	switch v := data.(type) {
	case Telemetry:
		applog.Infof("Monitor: #%d hop=%d window=%d pos=%.3f int=%.3f peak=%.3f frames=%d/%d dropped=%d late=%d",
			v.Sequence, v.Hop, v.WindowLength, v.Position, v.Intensity, v.Peak,
			v.Completed, v.Scheduled, v.Dropped, v.Late)
	default:
		applog.Infof("Monitor: (%T) %+v", data, data)
	}
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LoggingTransport: Close called")
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
