// Package logging provides structured logging for access decisions.
// It defines a Logger interface and implementations for JSON output
// and no-op logging.
package logging

import (
	"encoding/json"
	"io"
)

// Logger defines the interface for logging access decisions, approval
// workflow events, and MFA security events.
type Logger interface {
	// LogDecision logs a decision entry.
	LogDecision(entry DecisionLogEntry)

	// LogApproval logs an approval workflow event.
	LogApproval(entry ApprovalLogEntry)

	// LogMFA logs an MFA security event.
	LogMFA(entry MFALogEntry)
}

// JSONLogger implements Logger with JSON Lines output.
// Each entry is written as a single line of JSON suitable for log aggregation.
type JSONLogger struct {
	writer io.Writer
}

// NewJSONLogger creates a new JSONLogger that writes to the given writer.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{writer: w}
}

// LogDecision writes the entry as a single line of JSON.
func (l *JSONLogger) LogDecision(entry DecisionLogEntry) {
	l.writeLine(entry)
}

// LogApproval writes the approval entry as a single line of JSON.
func (l *JSONLogger) LogApproval(entry ApprovalLogEntry) {
	l.writeLine(entry)
}

// LogMFA writes the MFA entry as a single line of JSON.
func (l *JSONLogger) LogMFA(entry MFALogEntry) {
	l.writeLine(entry)
}

func (l *JSONLogger) writeLine(entry any) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	l.writer.Write(data)
	l.writer.Write([]byte("\n"))
}

// NopLogger implements Logger but discards all entries.
// Useful for testing or when logging is disabled.
type NopLogger struct{}

// NewNopLogger creates a new NopLogger that discards all entries.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

// LogDecision discards the entry.
func (l *NopLogger) LogDecision(entry DecisionLogEntry) {}

// LogApproval discards the approval entry.
func (l *NopLogger) LogApproval(entry ApprovalLogEntry) {}

// LogMFA discards the MFA entry.
func (l *NopLogger) LogMFA(entry MFALogEntry) {}
