package log

import "github.com/bft-labs/threadmirror/internal/ports"

// Nop drops every message. Used by tests and when logging is not wired.
var Nop ports.Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Debug(string, ...ports.Field) {}
func (nopLogger) Info(string, ...ports.Field)  {}
func (nopLogger) Warn(string, ...ports.Field)  {}
func (nopLogger) Error(string, ...ports.Field) {}

// NewNoopLogger returns Nop.
func NewNoopLogger() ports.Logger {
	return Nop
}
