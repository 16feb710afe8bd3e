package receipt

// Sender is the subset of the network loop's API a Channel (or a
// lru.ThreadCtx sweeping for heartbeats) needs in order to emit a frame;
// it lives in this root package, rather than in pkg/receipt/channel, so
// pkg/receipt/lru can reference it too without importing channel.
//
// frame is drawn from pkg/bufpool and returned to the pool once Send
// returns, so an implementation must not retain it past the call: copy
// the bytes if the write needs to outlive Send.
type Sender interface {
	Send(frame []byte) error
}
