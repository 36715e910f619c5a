// Package monitoring provides the shared diagnostic logger used by the
// analysis layers. Per-frame telemetry is expensive at camera rates, so
// the frame-rate stream is gated separately from ordinary diagnostics.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf
// but may be replaced by SetLogger. Tests or production code can redirect
// or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Framef is the per-frame telemetry logger. Disabled by default: at
// 30 fps it would swamp the main log. Enable with SetFrameLogger.
var Framef func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetFrameLogger replaces the per-frame telemetry logger. Passing nil
// disables frame telemetry.
func SetFrameLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Framef = func(string, ...interface{}) {}
		return
	}
	Framef = f
}
