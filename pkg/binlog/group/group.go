// Package group implements the dedicated background goroutine that drains
// submitted records and flushes the writers it touched each batch. A
// buffered channel is the producer queue, and a sync.Pool recycles
// *Record values between submissions.
package group

import (
	"context"
	"sync"
	"time"

	"github.com/return2faye/binlogkit/internal/logger"
	"github.com/return2faye/binlogkit/pkg/binlog/writer"
	"github.com/return2faye/binlogkit/pkg/metrics"
)

// DefaultQueueSize is used when Config.QueueSize is left at zero.
const DefaultQueueSize = 1024

// RecordType distinguishes a normal payload record from a control record
// that resets a version-ordered writer's expected version.
type RecordType int

const (
	// Normal is an ordinary payload record.
	Normal RecordType = iota
	// SetNextVersion reseeds a version-ordered writer's cursor; it carries
	// no payload bytes and is never written to disk.
	SetNextVersion
)

// Record is one unit of work submitted to a Group: a byte payload plus
// the metadata a writer's ordering discipline needs. Records are recycled
// via the Group's sync.Pool once folded into the on-disk byte stream.
type Record struct {
	Writer  *writer.Info
	Type    RecordType
	Version uint64
	Data    []byte
}

// DefaultDrainTimeout is the grace period Close waits for the worker to
// drain when its context carries no explicit deadline.
const DefaultDrainTimeout = 3 * time.Second

// Config configures a new Group.
type Config struct {
	// QueueSize is the channel capacity backing the producer queue.
	QueueSize int
	// Metrics, when non-nil, receives ring-repush observations.
	Metrics *metrics.Binlog
}

// Group is one flusher thread: a single worker goroutine serving 1..N
// writer.Info instances submitted to it via Submit.
type Group struct {
	queue chan *Record
	pool  sync.Pool

	ctx    context.Context
	cancel context.CancelCauseFunc

	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu      sync.Mutex
	started bool

	repushMu   sync.Mutex
	repushList []*Record

	metrics *metrics.Binlog
}

// New creates a Group bound to parent: a fatal disk error reported by any
// writer it serves cancels the returned context (available via Context)
// with that error as its cause.
func New(parent context.Context, cfg Config) *Group {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancelCause(parent)
	return &Group{
		queue:     make(chan *Record, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
		metrics:   cfg.Metrics,
	}
}

// Context returns the group's derived context; it is canceled, with
// context.Cause identifying the failing writer, the first time a served
// writer hits a fatal disk error.
func (g *Group) Context() context.Context { return g.ctx }

// Attach wires w's fatal-error callback to this group's cancellation.
func (g *Group) Attach(w *writer.Info) {
	w.OnFatal(func(err error) {
		g.cancel(err)
	})
}

// Start launches the single worker goroutine.
func (g *Group) Start() {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	logger.Info("binlog: starting writer group")

	g.wg.Add(1)
	go g.worker()

	go func() {
		g.wg.Wait()
		close(g.stoppedCh)
	}()
}

func (g *Group) getRecord() *Record {
	if r, ok := g.pool.Get().(*Record); ok {
		return r
	}
	return &Record{}
}

func (g *Group) putRecord(r *Record) {
	*r = Record{}
	g.pool.Put(r)
}

// Submit pushes rec onto the producer queue, waking the worker. It is
// non-blocking: a full queue logs a warning and drops the record.
func (g *Group) Submit(w *writer.Info, rec *Record) bool {
	rec.Writer = w
	select {
	case g.queue <- rec:
		return true
	default:
		logger.Warn("binlog: writer group queue full, dropping record", "dir", w.Dir())
		return false
	}
}

// NewRecord borrows a pooled record for the caller to fill in before
// calling Submit; it avoids an allocation per record on the hot path.
func (g *Group) NewRecord(typ RecordType, version uint64, data []byte) *Record {
	r := g.getRecord()
	r.Type = typ
	r.Version = version
	r.Data = data
	return r
}

func (g *Group) worker() {
	defer g.wg.Done()

	for {
		select {
		case <-g.stopCh:
			g.drainAll()
			return
		case <-g.ctx.Done():
			return
		case rec, ok := <-g.queue:
			if !ok {
				return
			}
			g.processBatch(rec)
		}
	}
}

// processBatch pops the entire queue in FIFO order (nothing else reads
// g.queue), dispatches each record through its writer's ordering
// discipline while tracking which writers were touched, then flushes
// every touched writer once.
func (g *Group) processBatch(first *Record) {
	flushWriters := make(map[*writer.Info]struct{}, 8)

	g.handle(first, flushWriters)
drain:
	for {
		select {
		case rec, ok := <-g.queue:
			if !ok {
				break drain
			}
			g.handle(rec, flushWriters)
		default:
			break drain
		}
	}

	g.retryRepushes(flushWriters)
	g.flushTouched(flushWriters)
}

func (g *Group) flushTouched(flushWriters map[*writer.Info]struct{}) {
	for w := range flushWriters {
		if err := w.Flush(); err != nil {
			logger.Error("binlog: flush failed", "dir", w.Dir(), "error", err)
		}
	}
}

func (g *Group) handle(rec *Record, flushWriters map[*writer.Info]struct{}) {
	defer g.putRecord(rec)

	if rec.Type == SetNextVersion {
		rec.Writer.SetNextVersion(rec.Version)
		return
	}

	if rec.Writer.Discipline() == writer.Version {
		err := rec.Writer.WriteVersioned(rec.Version, rec.Data)
		if writer.IsRepush(err) {
			g.insertRepush(&Record{Writer: rec.Writer, Type: rec.Type, Version: rec.Version, Data: rec.Data})
			return
		}
		if err != nil {
			logger.Error("binlog: version write failed", "dir", rec.Writer.Dir(), "error", err)
			return
		}
	} else {
		if err := rec.Writer.WriteArrival(rec.Data); err != nil {
			logger.Error("binlog: arrival write failed", "dir", rec.Writer.Dir(), "error", err)
			return
		}
	}
	flushWriters[rec.Writer] = struct{}{}
}

// insertRepush inserts rec into the version-sorted repush list under
// repushMu: fast paths for head/tail insertion, otherwise a linear scan
// from the head. The list stays sorted by version ascending.
func (g *Group) insertRepush(rec *Record) {
	g.repushMu.Lock()
	defer g.repushMu.Unlock()

	logger.Warn("binlog: ring capacity exceeded, repushing", "dir", rec.Writer.Dir(), "version", rec.Version)
	g.metrics.ObserveRepush(rec.Writer.Dir())

	n := len(g.repushList)
	switch {
	case n == 0 || rec.Version <= g.repushList[0].Version:
		g.repushList = append([]*Record{rec}, g.repushList...)
	case rec.Version >= g.repushList[n-1].Version:
		g.repushList = append(g.repushList, rec)
	default:
		i := 0
		for ; i < n; i++ {
			if g.repushList[i].Version > rec.Version {
				break
			}
		}
		g.repushList = append(g.repushList, nil)
		copy(g.repushList[i+1:], g.repushList[i:])
		g.repushList[i] = rec
	}
}

// retryRepushes re-attempts every repushed record whose writer advanced in
// this batch; survivors remain in the sorted list for the next pass.
func (g *Group) retryRepushes(flushWriters map[*writer.Info]struct{}) {
	g.repushMu.Lock()
	if len(g.repushList) == 0 {
		g.repushMu.Unlock()
		return
	}
	pending := g.repushList
	g.repushList = nil
	g.repushMu.Unlock()

	var survivors []*Record
	for _, rec := range pending {
		if _, touched := flushWriters[rec.Writer]; !touched {
			survivors = append(survivors, rec)
			continue
		}
		err := rec.Writer.WriteVersioned(rec.Version, rec.Data)
		if writer.IsRepush(err) {
			survivors = append(survivors, rec)
			continue
		}
		if err != nil {
			logger.Error("binlog: version write failed on retry", "dir", rec.Writer.Dir(), "error", err)
			continue
		}
		flushWriters[rec.Writer] = struct{}{}
	}

	if len(survivors) > 0 {
		g.repushMu.Lock()
		g.repushList = append(survivors, g.repushList...)
		g.repushMu.Unlock()
	}
}

func (g *Group) drainAll() {
	flushWriters := make(map[*writer.Info]struct{}, 8)
	for {
		select {
		case rec, ok := <-g.queue:
			if !ok {
				g.retryRepushes(flushWriters)
				g.flushTouched(flushWriters)
				return
			}
			g.handle(rec, flushWriters)
		default:
			g.retryRepushes(flushWriters)
			g.flushTouched(flushWriters)
			return
		}
	}
}

// Close terminates the producer queue, waits up to ctx's deadline (or
// DefaultDrainTimeout) for the worker to exit, then force-drains
// synchronously.
func (g *Group) Close(ctx context.Context) {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	logger.Info("binlog: stopping writer group")
	close(g.stopCh)

	timeout := DefaultDrainTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}

	select {
	case <-g.stoppedCh:
		logger.Info("binlog: writer group stopped gracefully")
	case <-time.After(timeout):
		logger.Warn("binlog: writer group stop timed out, force-draining")
		g.drainAll()
	}
}
