// Package bufpool recycles the short-lived scratch buffers the hot paths
// allocate per call: wire-frame encoding in pkg/receipt/channel. Buffers
// come from size-classed sync.Pools so a
// steady stream of frames stops hitting the allocator.
package bufpool

import "sync"

// Size classes. Frame covers headers and small bodies (SETUP_CHANNEL_*,
// PING_REQ); Batch covers a full REPORT_REQ_RECEIPT_REQ at a generous
// body cap.
const (
	FrameSize = 4 << 10
	BatchSize = 64 << 10
)

// Pool hands out byte slices from two size-classed sync.Pools. Requests
// larger than the batch class are allocated directly and never pooled, so
// a rare oversized buffer does not pin memory for the life of the process.
type Pool struct {
	frame     sync.Pool
	batch     sync.Pool
	frameSize int
	batchSize int
}

// NewPool creates a pool with the given class sizes. A non-positive
// frameSize falls back to FrameSize; a batchSize not above frameSize falls
// back to BatchSize.
func NewPool(frameSize, batchSize int) *Pool {
	if frameSize <= 0 {
		frameSize = FrameSize
	}
	if batchSize <= frameSize {
		batchSize = BatchSize
	}
	p := &Pool{frameSize: frameSize, batchSize: batchSize}
	p.frame.New = func() any {
		b := make([]byte, p.frameSize)
		return &b
	}
	p.batch.New = func() any {
		b := make([]byte, p.batchSize)
		return &b
	}
	return p
}

// Get returns a slice of length size. Its capacity may exceed size when it
// comes from a pool class; callers that reslice must hand the
// full-capacity slice back to Put.
func (p *Pool) Get(size int) []byte {
	switch {
	case size <= p.frameSize:
		return (*p.frame.Get().(*[]byte))[:size]
	case size <= p.batchSize:
		return (*p.batch.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// Put returns buf to the pool it came from, matched by capacity. Oversized
// and foreign buffers are dropped for the GC to take.
func (p *Pool) Put(buf []byte) {
	full := buf[:cap(buf)]
	switch cap(buf) {
	case p.frameSize:
		p.frame.Put(&full)
	case p.batchSize:
		p.batch.Put(&full)
	}
}

var global = NewPool(0, 0)

// Get draws from the package-level pool.
func Get(size int) []byte { return global.Get(size) }

// Put returns a buffer to the package-level pool. Pair every Get with a
// Put, usually via defer.
func Put(buf []byte) { global.Put(buf) }
