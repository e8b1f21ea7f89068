// Package envelope - Envelope logging and audit
package envelope

import (
	"time"

	"go.uber.org/zap"
)

// AuditEntry is a log entry for an envelope
type AuditEntry struct {
	Envelope

	RequestID  string `json:"request_id,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// AuditLogger logs envelopes for audit and replay
type AuditLogger interface {
	Log(entry AuditEntry)
}

// ZapAuditLogger writes audit entries as structured log lines
type ZapAuditLogger struct {
	log *zap.Logger
}

// NewZapAuditLogger creates an audit logger
func NewZapAuditLogger(log *zap.Logger) *ZapAuditLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapAuditLogger{log: log}
}

// Log logs an audit entry
func (l *ZapAuditLogger) Log(entry AuditEntry) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("input_hash", entry.ShortHash()),
		zap.String("request_id", entry.RequestID),
		zap.String("http_request_id", entry.HTTPRequestID),
		zap.String("client_ip", entry.ClientIP),
		zap.String("user_agent", entry.UserAgent),
		zap.Int64("duration_ms", entry.DurationMs),
		zap.Bool("success", entry.Success),
	}
	if !entry.Success {
		l.log.Warn("api call failed", append(fields, zap.String("error", entry.Error))...)
		return
	}
	l.log.Info("api call", fields...)
}

// Entry starts an audit entry from the envelope
func (e *Envelope) Entry() AuditEntry {
	return AuditEntry{Envelope: *e, Success: true}
}

// MarkFailed marks the audit entry as failed
func (e *AuditEntry) MarkFailed(err error) {
	e.Success = false
	e.Error = err.Error()
}

// SetDuration sets the duration
func (e *AuditEntry) SetDuration(d time.Duration) {
	e.DurationMs = d.Milliseconds()
}
