package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the binlog and receipt
// packages. Use these keys consistently so log aggregation and querying
// stays uniform regardless of which subsystem emitted the line.
const (
	// Distributed tracing, carried through LogContext when a caller threads
	// a context.Context into one of the *Ctx logging functions.
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Binlog subsystem.
	KeyDir           = "dir"            // writer subdirectory
	KeyWriteIndex    = "write_index"    // current_write segment number
	KeyCompressIndex = "compress_index" // current_compress watermark
	KeySegmentPath   = "segment_path"   // absolute path of a segment file
	KeyVersion       = "version"        // record version (version-ordered writers)
	KeyBytesWritten  = "bytes_written"  // bytes in a flush/write
	KeyRingSize      = "ring_size"      // configured VersionRing size

	// Receipt subsystem.
	KeyChannelID = "channel_id"
	KeyReqID     = "req_id"
	KeyCmd       = "cmd"    // wire.Cmd of a frame
	KeyStatus    = "status" // response status byte
	KeyBatchSize = "count"  // number of req_ids in a batch
	KeyIdleFor   = "idle_for"

	// Shared.
	KeyError      = "error"
	KeyDurationMs = "duration_ms"
	KeyAttempt    = "attempt"
)

// Dir returns a slog.Attr for a writer's subdirectory.
func Dir(dir string) slog.Attr { return slog.String(KeyDir, dir) }

// WriteIndex returns a slog.Attr for a segment's write index.
func WriteIndex(idx uint64) slog.Attr { return slog.Uint64(KeyWriteIndex, idx) }

// CompressIndex returns a slog.Attr for the persisted compress watermark.
func CompressIndex(idx uint64) slog.Attr { return slog.Uint64(KeyCompressIndex, idx) }

// SegmentPath returns a slog.Attr for a segment file's absolute path.
func SegmentPath(p string) slog.Attr { return slog.String(KeySegmentPath, p) }

// Version returns a slog.Attr for a record's version number.
func Version(v uint64) slog.Attr { return slog.Uint64(KeyVersion, v) }

// BytesWritten returns a slog.Attr for the number of bytes written.
func BytesWritten(n int) slog.Attr { return slog.Int(KeyBytesWritten, n) }

// RingSize returns a slog.Attr for a VersionRing's configured size.
func RingSize(n int) slog.Attr { return slog.Int(KeyRingSize, n) }

// ChannelID returns a slog.Attr for a receipt channel's server-assigned ID.
func ChannelID(id uint32) slog.Attr { return slog.Any(KeyChannelID, id) }

// ReqID returns a slog.Attr for an idempotency request ID.
func ReqID(id uint64) slog.Attr { return slog.Uint64(KeyReqID, id) }

// Cmd returns a slog.Attr for a wire frame's command.
func Cmd(cmd fmt.Stringer) slog.Attr { return slog.String(KeyCmd, cmd.String()) }

// Status returns a slog.Attr for a response's status byte.
func Status(code uint8) slog.Attr { return slog.Any(KeyStatus, code) }

// BatchSize returns a slog.Attr for the number of req_ids in a batch.
func BatchSize(n int) slog.Attr { return slog.Int(KeyBatchSize, n) }

// TraceID returns a slog.Attr for a distributed trace ID.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for a distributed trace span ID.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Err returns a slog.Attr for an error, or the zero Attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }
