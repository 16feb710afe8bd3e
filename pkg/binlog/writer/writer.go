// Package writer implements one logical append-only binlog stream: its
// in-memory write buffer, its rotation logic, and its ordering
// discipline. A writer never runs its own goroutine — it is a passive
// struct driven by the worker loop in pkg/binlog/group.
package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/return2faye/binlogkit/internal/logger"
	"github.com/return2faye/binlogkit/pkg/binlog"
	"github.com/return2faye/binlogkit/pkg/binlog/index"
	"github.com/return2faye/binlogkit/pkg/binlog/ring"
	"github.com/return2faye/binlogkit/pkg/binlog/segment"
	"github.com/return2faye/binlogkit/pkg/metrics"
)

// DefaultMaxSegmentSize caps one segment file's size before rotation. It
// is a var, not a const, so tests can shrink it to exercise rotation
// without writing gigabytes of fixture data.
var DefaultMaxSegmentSize int64 = 1 << 30

// DefaultRingSize is used by version-ordered writers when Config.RingSize
// is left at zero.
const DefaultRingSize = 64

// Discipline selects how a writer orders records with respect to arrival.
type Discipline int

const (
	// Arrival writes records in dequeue order, no reordering possible.
	Arrival Discipline = iota
	// Version reorders records by an explicit version number via a
	// gap-filling ring buffer.
	Version
)

// Config configures a new Info.
type Config struct {
	// Dir is the on-disk subdirectory this writer owns.
	Dir string
	// BufferCapacity is the size of the in-memory write buffer, in bytes.
	BufferCapacity int
	// MaxSegmentSize overrides DefaultMaxSegmentSize when non-zero.
	MaxSegmentSize int64
	// Discipline selects Arrival or Version ordering.
	Discipline Discipline
	// NextVersion seeds the ring's expected version for Version writers.
	NextVersion uint64
	// RingSize overrides DefaultRingSize for Version writers when non-zero.
	RingSize int
	// Metrics, when non-nil, receives rotation/flush/write-error
	// observations. A nil value (the default) disables instrumentation at
	// zero cost.
	Metrics *metrics.Binlog
}

type pending struct{ data []byte }

// Info is one logical binlog stream: its segment, its in-memory buffer,
// and (for version-ordered streams) its reordering ring.
type Info struct {
	mu sync.Mutex

	dir            string
	bufCap         int
	maxSegmentSize int64

	buf    []byte
	bufEnd int

	seg           *segment.Segment
	writeIndex    uint64
	compressIndex uint64

	discipline Discipline
	next       uint64
	r          *ring.Ring[pending]

	lock *binlog.DirLock

	metrics *metrics.Binlog
	onFatal func(error)
	closed  bool
}

// New creates a writer for cfg.Dir, allocating the reordering ring first
// when cfg selects Version ordering.
func New(cfg Config) (*Info, error) {
	if cfg.BufferCapacity <= 0 {
		return nil, fmt.Errorf("writer: buffer capacity must be positive")
	}
	maxSeg := cfg.MaxSegmentSize
	if maxSeg == 0 {
		maxSeg = DefaultMaxSegmentSize
	}

	w := &Info{
		dir:            cfg.Dir,
		bufCap:         cfg.BufferCapacity,
		maxSegmentSize: maxSeg,
		buf:            make([]byte, cfg.BufferCapacity),
		discipline:     cfg.Discipline,
		metrics:        cfg.Metrics,
	}

	if cfg.Discipline == Version {
		size := cfg.RingSize
		if size == 0 {
			size = DefaultRingSize
		}
		w.r = ring.New[pending](size, cfg.NextVersion)
		w.next = cfg.NextVersion
	}

	if err := w.initNormal(); err != nil {
		return nil, err
	}
	return w, nil
}

// OnFatal registers the callback invoked when this writer hits an
// unrecoverable disk I/O error; the owning Group wires this to its
// context.CancelFunc.
func (w *Info) OnFatal(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onFatal = fn
}

func (w *Info) initNormal() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("writer: mkdir: %w", err)
	}

	lock, err := binlog.LockDir(w.dir)
	if err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	w.lock = lock

	p, err := index.Load(w.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", binlog.ErrIndexCorrupted, err)
	}
	// A fresh subdirectory gets its (0, 0) baseline persisted immediately.
	if err := index.Store(w.dir, p); err != nil {
		return fmt.Errorf("writer: persist initial index: %w", err)
	}

	seg, err := segment.Open(w.dir, p.CurrentWrite)
	if err != nil {
		return fmt.Errorf("writer: open segment: %w", err)
	}

	w.writeIndex = p.CurrentWrite
	w.compressIndex = p.CurrentCompress
	w.seg = seg
	return nil
}

func (w *Info) used() int { return w.bufEnd }
func (w *Info) free() int { return w.bufCap - w.bufEnd }

func (w *Info) fatal(err error) error {
	logger.Error("binlog: writer entered fatal state", "dir", w.dir, "error", err)
	w.closed = true
	if w.onFatal != nil {
		w.onFatal(err)
	}
	w.metrics.ObserveWriteError(w.dir)
	return err
}

// rotateIfNeeded increments the write index, persists it, and opens the
// next segment, in that order, so the index file is durable before any
// byte of the new segment exists.
func (w *Info) rotateIfNeeded(recordLen int) error {
	if w.seg.Size()+int64(recordLen) <= w.maxSegmentSize {
		return nil
	}
	return w.rotate()
}

func (w *Info) rotate() error {
	newIndex := w.writeIndex + 1
	if err := index.Store(w.dir, index.Pointer{CurrentWrite: newIndex, CurrentCompress: w.compressIndex}); err != nil {
		return w.fatal(fmt.Errorf("writer: rotate: persist index: %w", err))
	}
	seg, err := segment.Open(w.dir, newIndex)
	if err != nil {
		return w.fatal(fmt.Errorf("writer: rotate: open segment: %w", err))
	}
	if err := w.seg.Close(); err != nil {
		logger.Warn("binlog: error closing previous segment", "dir", w.dir, "error", err)
	}
	w.writeIndex = newIndex
	w.seg = seg
	w.metrics.ObserveRotation(w.dir)
	return nil
}

// writeDirect writes buf straight to the segment, rotating first if it
// would overflow MAX_SEGMENT_SIZE.
func (w *Info) writeDirect(buf []byte) error {
	if err := w.rotateIfNeeded(len(buf)); err != nil {
		return err
	}
	if err := w.seg.Write(buf); err != nil {
		return w.fatal(fmt.Errorf("writer: write: %w", err))
	}
	return nil
}

// flushLocked drains the in-memory buffer to disk with one write+fsync.
// Caller holds w.mu.
func (w *Info) flushLocked() error {
	if w.bufEnd == 0 {
		return nil
	}
	if err := w.rotateIfNeeded(w.bufEnd); err != nil {
		return err
	}
	start := time.Now()
	n := w.bufEnd
	if err := w.seg.Write(w.buf[:w.bufEnd]); err != nil {
		return w.fatal(fmt.Errorf("writer: flush: %w", err))
	}
	w.bufEnd = 0
	w.metrics.ObserveFlush(w.dir, n, time.Since(start))
	w.metrics.SetSegmentSize(w.dir, w.seg.Size())
	return nil
}

// Flush drains the in-memory buffer to disk. It is exported for the
// owning Group's batch-end flush pass.
func (w *Info) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// appendBuffered applies the buffering rules for one record of length L
// against buffer B. Caller holds w.mu.
func (w *Info) appendBuffered(data []byte) error {
	l := len(data)

	switch {
	case l >= w.bufCap/4:
		// Large record: flush B if non-empty, then write directly.
		if err := w.flushLocked(); err != nil {
			return err
		}
		return w.writeDirect(data)
	case w.seg.Size()+int64(w.used())+int64(l) > w.maxSegmentSize:
		// Would overflow the segment once B is eventually flushed.
		if err := w.flushLocked(); err != nil {
			return err
		}
	case w.free() < l:
		if err := w.flushLocked(); err != nil {
			return err
		}
	}

	copy(w.buf[w.bufEnd:], data)
	w.bufEnd += l
	return nil
}

// WriteArrival appends data under the arrival-ordered discipline: no
// reordering, buffered/written immediately in dequeue order.
func (w *Info) WriteArrival(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return binlog.ErrWriterClosed
	}
	return w.appendBuffered(data)
}

// WriteVersioned appends data under the version-ordered discipline. The
// SET_NEXT_VERSION control message is handled by SetNextVersion, not here.
func (w *Info) WriteVersioned(version uint64, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return binlog.ErrWriterClosed
	}
	if w.r == nil {
		return fmt.Errorf("writer: WriteVersioned called on an arrival-ordered writer")
	}

	switch w.r.Push(version, &pending{data: data}) {
	case ring.Repush:
		return errRepush
	case ring.Written:
		if err := w.appendBuffered(data); err != nil {
			return err
		}
		w.r.Advance()
		var drainErr error
		w.r.Drain(func(_ uint64, val *pending) {
			if drainErr != nil {
				return
			}
			drainErr = w.appendBuffered(val.data)
		})
		w.next = w.r.Next()
		return drainErr
	default: // Buffered
		return nil
	}
}

// errRepush is the unexported sentinel WriteVersioned returns for an
// out-of-window record; callers such as pkg/binlog/group test for it with
// IsRepush to requeue the record rather than drop it.
var errRepush = fmt.Errorf("writer: repush")

// IsRepush reports whether err indicates the record should be repushed to
// the producer queue in version-sorted order rather than treated as a
// write failure.
func IsRepush(err error) bool { return err == errRepush }

// SetNextVersion implements the SET_NEXT_VERSION control message: if the
// ring is not empty, logs a warning (possible bug), then resets next and
// the ring.
func (w *Info) SetNextVersion(next uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.r == nil {
		return
	}
	if !w.r.Empty() {
		logger.Warn("binlog: SET_NEXT_VERSION with non-empty ring", "dir", w.dir, "next", next)
	}
	w.r.Reset(next)
	w.next = next
}

// CurrentWriteIndex returns the on-disk segment number.
func (w *Info) CurrentWriteIndex() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeIndex
}

// Position is {index, offset} as returned by CurrentWritePosition.
type Position struct {
	Index  uint64
	Offset int64
}

// CurrentWritePosition returns {index, offset = file.size}.
func (w *Info) CurrentWritePosition() Position {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Position{Index: w.writeIndex, Offset: w.seg.Size()}
}

// SetIndex moves the writer to segment k: if k differs from the current
// index, it persists the new index and opens a fresh segment. k < current
// is refused — reopening an older segment would append onto data that is
// already part of the durable stream.
func (w *Info) SetIndex(k uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if k < w.writeIndex {
		return binlog.ErrIndexDecrease
	}
	if k == w.writeIndex {
		return nil
	}

	if err := index.Store(w.dir, index.Pointer{CurrentWrite: k, CurrentCompress: w.compressIndex}); err != nil {
		return w.fatal(fmt.Errorf("writer: set index: persist: %w", err))
	}
	seg, err := segment.Open(w.dir, k)
	if err != nil {
		return w.fatal(fmt.Errorf("writer: set index: open: %w", err))
	}
	if err := w.seg.Close(); err != nil {
		logger.Warn("binlog: error closing previous segment", "dir", w.dir, "error", err)
	}
	w.writeIndex = k
	w.seg = seg
	return nil
}

// SetCompressIndex persists an externally-reported compaction watermark
// without touching the write segment.
func (w *Info) SetCompressIndex(k uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if k == w.compressIndex {
		return nil
	}
	if err := index.Store(w.dir, index.Pointer{CurrentWrite: w.writeIndex, CurrentCompress: k}); err != nil {
		return w.fatal(fmt.Errorf("writer: set compress index: %w", err))
	}
	w.compressIndex = k
	return nil
}

// Path reports the current segment's file path, mainly for tests.
func (w *Info) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seg.Path()
}

// Dir reports the subdirectory this writer owns.
func (w *Info) Dir() string { return filepath.Clean(w.dir) }

// Discipline reports whether this writer is Arrival- or Version-ordered.
func (w *Info) Discipline() Discipline { return w.discipline }

// Finish drains any buffered bytes, closes the segment, and releases the
// directory lock. The grace-period-then-force-drain of the producer queue
// lives in pkg/binlog/group.Close; Finish is the synchronous tail of that
// shutdown.
func (w *Info) Finish(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	err := w.flushLocked()
	w.closed = true
	if cerr := w.seg.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("writer: close segment: %w", cerr)
	}
	if lerr := w.lock.Unlock(); lerr != nil && err == nil {
		err = lerr
	}
	return err
}
