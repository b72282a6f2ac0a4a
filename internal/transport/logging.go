// SPDX-License-Identifier: MIT
package transport

import (
	applog "pitchscope/internal/log"
)

// LoggingSink echoes each detection to the log at INFO, and silence at
// DEBUG.
type LoggingSink struct {
	log applog.Logger
}

// NewLoggingSink creates a new LoggingSink.
func NewLoggingSink() *LoggingSink {
	return &LoggingSink{log: applog.For("Detector")}
}

// Emit logs the frame's result.
func (ls *LoggingSink) Emit(frame Frame) error {
	if frame.Result.Detected {
		ls.log.Infof("%s", frame.Result.Detail())
	} else {
		ls.log.Debugf("#%d %s", frame.Seq, frame.Result)
	}
	return nil // Logging never fails to "send"
}

// Close is a no-op for LoggingSink.
func (ls *LoggingSink) Close() error { return nil }

// Ensure LoggingSink satisfies the interface at compile time.
var _ Sink = (*LoggingSink)(nil)
