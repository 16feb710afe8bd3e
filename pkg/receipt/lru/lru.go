// Package lru implements the per-I/O-thread intrusive doubly-linked list
// of attached receipt channels, ordered by last activity, used to drive
// heartbeat scanning. It is generic (rather than hard-coding
// pkg/receipt/channel.Channel) so the list node can be embedded directly
// in the channel struct without an import cycle.
package lru

import (
	"time"

	"github.com/return2faye/binlogkit/internal/logger"
)

// Node is the intrusive link embedded in an attached value. T is the
// pointer-to-owner type (e.g. *channel.Channel) so Sweep's callback
// receives the owner directly.
type Node[T any] struct {
	prev, next   *Node[T]
	attached     bool
	lastActivity time.Time
	value        T
}

// List is a doubly-linked LRU of attached nodes, ordered
// tail-is-most-recent. It is not safe for concurrent use; each I/O worker
// owns its list and serializes access on its own goroutine.
type List[T any] struct {
	head, tail *Node[T]
	count      int
}

// NewNode wraps value in a Node ready to be attached to a List.
func NewNode[T any](value T) *Node[T] {
	return &Node[T]{value: value}
}

// Value returns the node's owning value.
func (n *Node[T]) Value() T { return n.value }

// LastActivity returns the time this node was last Touch-ed.
func (n *Node[T]) LastActivity() time.Time { return n.lastActivity }

// Len returns the number of attached nodes.
func (l *List[T]) Len() int { return l.count }

// Attach appends n to the tail (most-recently-active end) and stamps its
// activity time to now.
func (l *List[T]) Attach(n *Node[T], now time.Time) {
	if n.attached {
		return
	}
	n.attached = true
	n.lastActivity = now
	n.prev = l.tail
	n.next = nil
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.count++
}

// Detach removes n from the list. Safe to call on an already-detached node.
func (l *List[T]) Detach(n *Node[T]) {
	if !n.attached {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
	n.attached = false
	l.count--
}

// Touch updates n's activity time and moves it to the tail, in O(1).
func (l *List[T]) Touch(n *Node[T], now time.Time) {
	if !n.attached {
		l.Attach(n, now)
		return
	}
	n.lastActivity = now
	if n == l.tail {
		return
	}
	// Unlink then re-append at tail.
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	n.prev = l.tail
	n.next = nil
	l.tail.next = n
	l.tail = n
}

// Sweep walks from the head (least-recently-active) and invokes onIdle for
// every node whose last activity is older than interval, stopping at the
// first node that is still within the interval (the list stays sorted by
// activity, so nothing past that point can be idle either). onIdle is
// expected to issue a heartbeat and then Touch the node, not detach it.
func (l *List[T]) Sweep(now time.Time, interval time.Duration, onIdle func(T)) {
	n := l.head
	for n != nil {
		if now.Sub(n.lastActivity) < interval {
			return
		}
		next := n.next
		logger.Debug("receipt: heartbeat sweep touching idle channel", "idle_for", now.Sub(n.lastActivity))
		onIdle(n.value)
		n = next
	}
}
