package lru

import (
	"time"

	"github.com/return2faye/binlogkit/pkg/receipt"
)

// Pinger is anything a ThreadCtx can heartbeat: pkg/receipt/channel.Channel
// satisfies this.
type Pinger interface {
	Heartbeat(send receipt.Sender) error
}

// ThreadCtx is one per I/O worker: the LRU of channels the worker owns
// plus the heartbeat interval past which an idle channel gets pinged
// rather than closed.
type ThreadCtx[T Pinger] struct {
	List              List[T]
	HeartbeatInterval time.Duration
}

// NewThreadCtx creates a ThreadCtx with the given heartbeat interval.
func NewThreadCtx[T Pinger](interval time.Duration) *ThreadCtx[T] {
	return &ThreadCtx[T]{HeartbeatInterval: interval}
}

// Sweep is the thread-loop callback: it walks the LRU from the
// least-recently-active end and sends a PING_REQ to every channel idle
// past HeartbeatInterval, via senderFor (supplied by the network loop,
// which owns the actual socket for each channel).
func (t *ThreadCtx[T]) Sweep(now time.Time, senderFor func(T) receipt.Sender) {
	t.List.Sweep(now, t.HeartbeatInterval, func(v T) {
		send := senderFor(v)
		if send == nil {
			return
		}
		_ = v.Heartbeat(send)
	})
}
