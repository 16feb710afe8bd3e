// Package channel implements the client-side state machine for one
// long-lived connection to a server's idempotency-receipt endpoint. It is
// driven by an external, non-blocking network loop through the
// NetworkHooks methods: the loop calls well-defined stages on a passive
// channel struct and never reaches into its state directly.
package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/return2faye/binlogkit/internal/logger"
	"github.com/return2faye/binlogkit/pkg/bufpool"
	"github.com/return2faye/binlogkit/pkg/metrics"
	"github.com/return2faye/binlogkit/pkg/receipt"
	"github.com/return2faye/binlogkit/pkg/receipt/lru"
	"github.com/return2faye/binlogkit/pkg/receipt/wire"
)

// State is one stage of a channel's handshake lifecycle.
type State int

const (
	Unestablished State = iota
	Handshaking
	Established
	Closed
)

func (s State) String() string {
	switch s {
	case Unestablished:
		return "UNESTABLISHED"
	case Handshaking:
		return "HANDSHAKING"
	case Established:
		return "ESTABLISHED"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Receipt is one acknowledged request ID awaiting report to the server.
type Receipt struct {
	ReqID uint64
}

// Sender is an alias for receipt.Sender for callers that only import this
// package.
type Sender = receipt.Sender

// NetworkHooks is the interface the generic I/O loop drives a Channel
// through, one method per connection stage.
type NetworkHooks interface {
	OnHandshake(send Sender) error
	OnContinue(send Sender) error
	OnResponse(send Sender, hdr wire.Header, body []byte) error
	OnRecvTimeout() error
	OnCleanup()
}

// DefaultMaxFrameBody bounds how many req_ids one REPORT_REQ_RECEIPT_REQ
// batch carries before it must be split, standing in for the I/O loop's
// fixed-size send buffer.
const DefaultMaxFrameBody = 4096

// Config configures a new Channel.
type Config struct {
	// QueueCapacity is a soft hint only: the producer queue is an
	// unbounded mutex-guarded deque (so repush/splice-back never blocks),
	// but Submit logs a warning past this many pending receipts.
	QueueCapacity int
	// MaxFrameBody bounds the REPORT_REQ_RECEIPT_REQ body size in bytes.
	MaxFrameBody int
	// Metrics, when non-nil, receives batch-size, round-trip, reconnect,
	// and heartbeat observations.
	Metrics *metrics.Receipt
}

// Channel holds one connection's handshake state, the producer queue of
// unsent receipts, and the in-flight waiting_resp retry set.
type Channel struct {
	mu   sync.Mutex
	cond *sync.Cond

	state State
	id    uint32
	key   uint32

	established atomic.Bool
	inIOEvent   atomic.Bool

	queueCap    int
	maxBody     int
	queue       []*Receipt // head = oldest; Submit appends, splice-back prepends
	waitingResp []*Receipt

	lastPkgTime time.Time
	node        *lru.Node[*Channel]
	thread      *lru.List[*Channel]

	metrics       *metrics.Receipt
	batchSentTime time.Time
}

// New creates an unestablished Channel. AttachThread (typically called
// once the owning lru.ThreadCtx exists) wires it into that thread's LRU
// once the handshake completes.
func New(cfg Config) *Channel {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 256
	}
	if cfg.MaxFrameBody <= 0 {
		cfg.MaxFrameBody = DefaultMaxFrameBody
	}
	ch := &Channel{
		queueCap: cfg.QueueCapacity,
		maxBody:  cfg.MaxFrameBody,
		metrics:  cfg.Metrics,
	}
	ch.cond = sync.NewCond(&ch.mu)
	ch.node = lru.NewNode[*Channel](ch)
	return ch
}

// AttachThread records which I/O thread's LRU this channel belongs to, so
// a successful handshake can attach it to that list's tail.
func (c *Channel) AttachThread(t *lru.List[*Channel]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thread = t
}

// State returns the channel's current handshake state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit enqueues reqID for batched reporting to the server.
func (c *Channel) Submit(reqID uint64) {
	c.mu.Lock()
	c.queue = append(c.queue, &Receipt{ReqID: reqID})
	if len(c.queue) > c.queueCap {
		logger.Warn("receipt: producer queue past soft capacity", "len", len(c.queue), "cap", c.queueCap)
	}
	c.mu.Unlock()
}

// WaitEstablished blocks until the channel is established or ctx is done.
func (c *Channel) WaitEstablished(ctx context.Context) error {
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		close(done)
		c.cond.Broadcast()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.state != Established {
		select {
		case <-done:
			return ctx.Err()
		default:
		}
		c.cond.Wait()
	}
	return nil
}

// OnHandshake builds and sends SETUP_CHANNEL_REQ using the channel's
// current (id, key) — (0,0) on first attempt, the previously assigned pair
// on reconnect — and moves the channel to Handshaking.
func (c *Channel) OnHandshake(send Sender) error {
	c.mu.Lock()
	id, key := c.id, c.key
	c.state = Handshaking
	c.mu.Unlock()

	bodyLen := wire.SetupChannelBodyLen
	frame := bufpool.Get(wire.HeaderSize + bodyLen)[:0]
	defer bufpool.Put(frame[:cap(frame)])

	hdr := wire.Header{Cmd: wire.SetupChannelReq, BodyLen: uint32(bodyLen)}
	frame = hdr.Encode(frame)
	frame = wire.SetupChannelBody{ChannelID: id, Key: key}.Encode(frame)
	return send.Send(frame)
}

// OnContinue attempts a batched receipt send if the channel is established.
func (c *Channel) OnContinue(send Sender) error {
	if !c.established.Load() {
		return nil
	}
	_, err := c.trySendBatch(send)
	return err
}

// OnResponse validates and dispatches an arrived response frame.
func (c *Channel) OnResponse(send Sender, hdr wire.Header, body []byte) error {
	if hdr.Status != 0 {
		err := &receipt.ErrServerStatus{Code: hdr.Status}
		logger.Warn("receipt: server returned non-zero status", "cmd", hdr.Cmd, "status", hdr.Status)
		return err
	}

	switch hdr.Cmd {
	case wire.SetupChannelResp:
		if err := c.handleSetupResp(body); err != nil {
			return err
		}
	case wire.ReportReqReceiptResp:
		if err := c.handleReceiptResp(body); err != nil {
			return err
		}
	default:
		return receipt.ErrUnexpectedCmd
	}

	c.touch(time.Now())
	_, err := c.trySendBatch(send)
	return err
}

func (c *Channel) handleSetupResp(body []byte) error {
	if len(body) != wire.SetupChannelBodyLen {
		return receipt.ErrInvalidBodyLength
	}
	b, err := wire.DecodeSetupChannelBody(body)
	if err != nil {
		return receipt.ErrInvalidBodyLength
	}

	c.mu.Lock()
	if c.established.Load() {
		c.mu.Unlock()
		logger.Warn("receipt: SETUP_CHANNEL_RESP for already-established channel, dropping")
		return nil
	}
	// A previously assigned (id, key) means this setup re-establishes the
	// channel rather than creating it.
	reconnect := c.id != 0 || c.key != 0
	c.id, c.key = b.ChannelID, b.Key
	c.state = Established
	resend := c.waitingResp
	c.waitingResp = nil
	if len(resend) > 0 {
		// Splice the previous session's unacknowledged receipts back to
		// the head of the producer queue so they're resent.
		c.queue = append(resend, c.queue...)
	}
	if reconnect {
		c.metrics.ObserveReconnect()
	}
	thread := c.thread
	c.mu.Unlock()

	c.established.Store(true)
	if thread != nil {
		thread.Attach(c.node, time.Now())
	}
	c.cond.Broadcast()
	return nil
}

func (c *Channel) handleReceiptResp(body []byte) error {
	if len(body) != 0 {
		return receipt.ErrInvalidBodyLength
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.waitingResp) == 0 {
		logger.Warn("receipt: REPORT_REQ_RECEIPT_RESP with empty waiting_resp")
		return receipt.ErrUnexpectedAck
	}
	if !c.batchSentTime.IsZero() {
		c.metrics.ObserveRoundTrip(time.Since(c.batchSentTime))
	}
	c.waitingResp = nil
	return nil
}

// OnRecvTimeout classifies a receive timeout: fatal while
// still handshaking or with in-flight work, benign (a heartbeat
// opportunity) otherwise.
func (c *Channel) OnRecvTimeout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Handshaking {
		return receipt.ErrTimeout
	}
	if len(c.waitingResp) > 0 {
		return receipt.ErrTimeout
	}
	return nil
}

// OnCleanup detaches the channel from its thread's LRU and resets
// connection-scoped state. waiting_resp survives so a subsequent reconnect
// can splice it back to the producer queue.
func (c *Channel) OnCleanup() {
	c.mu.Lock()
	thread := c.thread
	c.state = Closed
	c.mu.Unlock()

	if thread != nil {
		thread.Detach(c.node)
	}
	c.established.Store(false)
	c.inIOEvent.Store(false)
}

// touch updates last-activity bookkeeping and moves the channel's LRU node
// to the tail.
func (c *Channel) touch(now time.Time) {
	c.mu.Lock()
	c.lastPkgTime = now
	thread := c.thread
	c.mu.Unlock()
	if thread != nil {
		thread.Touch(c.node, now)
	}
}

// Heartbeat sends a zero-body PING_REQ frame. It is called by
// pkg/receipt/lru's sweep against channels idle past the heartbeat
// interval.
func (c *Channel) Heartbeat(send Sender) error {
	frame := bufpool.Get(wire.HeaderSize)[:0]
	defer bufpool.Put(frame[:cap(frame)])

	hdr := wire.Header{Cmd: wire.PingReq}
	frame = hdr.Encode(frame)
	if err := send.Send(frame); err != nil {
		return err
	}
	c.touch(time.Now())
	c.metrics.ObserveHeartbeat()
	return nil
}

// trySendBatch builds and sends one receipt batch: if one is already in flight
// (waiting_resp non-empty) or nothing is queued, it is a no-op. Otherwise
// it moves the queue into waiting_resp, splitting and pushing the tail
// back to the queue head if it would overflow one frame, and sends the
// resulting REPORT_REQ_RECEIPT_REQ.
func (c *Channel) trySendBatch(send Sender) (int, error) {
	c.mu.Lock()
	if len(c.waitingResp) > 0 || len(c.queue) == 0 {
		c.mu.Unlock()
		return 0, nil
	}

	maxCount := wire.MaxReceiptCount(c.maxBody)
	batch := c.queue
	var rest []*Receipt
	if len(batch) > maxCount {
		rest = batch[maxCount:]
		batch = batch[:maxCount:maxCount]
	}
	c.queue = rest
	c.waitingResp = batch
	c.batchSentTime = time.Now()
	c.mu.Unlock()

	c.metrics.ObserveBatch(len(batch))

	ids := make([]uint64, len(batch))
	for i, r := range batch {
		ids[i] = r.ReqID
	}
	bodyLen := wire.EncodedLen(len(ids))
	frame := bufpool.Get(wire.HeaderSize + bodyLen)[:0]
	defer bufpool.Put(frame[:cap(frame)])

	hdr := wire.Header{Cmd: wire.ReportReqReceiptReq, BodyLen: uint32(bodyLen)}
	frame = hdr.Encode(frame)
	frame = wire.ReportReqReceiptBody{ReqIDs: ids}.Encode(frame)

	if err := send.Send(frame); err != nil {
		return 0, err
	}
	return len(batch), nil
}

var _ NetworkHooks = (*Channel)(nil)
