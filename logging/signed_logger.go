package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// SignedLogger writes each audit entry as a signed JSON line. Signing
// problems fall back to an unsigned line: a misconfigured key must not cost
// the audit record itself.
type SignedLogger struct {
	writer io.Writer
	config *SignatureConfig
}

// NewSignedLogger creates a signing logger over w. The config's secret key
// must satisfy MinKeyLength.
func NewSignedLogger(w io.Writer, config *SignatureConfig) *SignedLogger {
	return &SignedLogger{writer: w, config: config}
}

// LogDecision signs and writes a decision entry.
func (l *SignedLogger) LogDecision(entry DecisionLogEntry) {
	l.write(entry)
}

// LogApproval signs and writes an approval workflow entry.
func (l *SignedLogger) LogApproval(entry ApprovalLogEntry) {
	l.write(entry)
}

// LogMFA signs and writes an MFA entry.
func (l *SignedLogger) LogMFA(entry MFALogEntry) {
	l.write(entry)
}

func (l *SignedLogger) write(entry any) {
	signed, err := NewSignedEntry(entry, l.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signing error: %v\n", err)
		l.writeLine(entry)
		return
	}
	l.writeLine(signed)
}

func (l *SignedLogger) writeLine(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal error: %v\n", err)
		return
	}
	l.writer.Write(data)
	l.writer.Write([]byte("\n"))
}
