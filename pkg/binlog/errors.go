package binlog

import "errors"

// Sentinel errors returned by pkg/binlog/writer and pkg/binlog/group. They
// live in this top-level package (rather than in writer or group
// themselves) so callers can errors.Is against a single import regardless
// of which subpackage produced the error.
var (
	// ErrWriterClosed is returned by writer.Info's write calls made after
	// Finish has completed or after the writer has entered its fatal state.
	ErrWriterClosed = errors.New("binlog: writer closed")
	// ErrIndexCorrupted wraps index.ErrCorrupted at the writer boundary.
	ErrIndexCorrupted = errors.New("binlog: index file corrupted")
	// ErrIndexDecrease is returned by SetIndex when asked to move the
	// current write index backwards.
	ErrIndexDecrease = errors.New("binlog: refusing to decrease write index")
	// ErrFatal names the state a writer enters after a disk I/O failure.
	// The writer itself does not return it: the failing call returns the
	// underlying I/O error, and later writes return ErrWriterClosed.
	ErrFatal = errors.New("binlog: writer entered fatal state")
)
