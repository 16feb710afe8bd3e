package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context: which writer
// subdirectory or receipt channel an operation belongs to, plus whatever
// trace IDs an embedding application threads through.
type LogContext struct {
	TraceID   string // distributed trace ID
	SpanID    string // distributed trace span ID
	Dir       string // binlog writer subdirectory
	ChannelID uint32 // receipt channel ID, once established
	StartTime time.Time
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext scoped to the given writer
// subdirectory.
func NewLogContext(dir string) *LogContext {
	return &LogContext{
		Dir:       dir,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Dir:       lc.Dir,
		ChannelID: lc.ChannelID,
		StartTime: lc.StartTime,
	}
}

// WithChannelID returns a copy with the receipt channel ID set.
func (lc *LogContext) WithChannelID(id uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ChannelID = id
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
