package writer

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/return2faye/binlogkit/pkg/binlog"
)

func newTestWriter(t *testing.T, cfg Config) *Info {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	if cfg.BufferCapacity == 0 {
		cfg.BufferCapacity = 64
	}
	w, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Finish(context.Background()) })
	return w
}

func TestNew_PersistsFreshIndexAndOpensSegmentZero(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := newTestWriter(t, Config{Dir: dir, BufferCapacity: 64})

	assert.Equal(t, uint64(0), w.CurrentWriteIndex())
	_, err := os.Stat(w.Path())
	assert.NoError(t, err)
}

func TestWriteArrival_BuffersThenFlushes(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, Config{BufferCapacity: 64})

	require.NoError(t, w.WriteArrival([]byte("abc")))
	// Still buffered: nothing on disk until Flush.
	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Empty(t, data)

	require.NoError(t, w.Flush())
	data, err = os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestWriteArrival_LargeRecordBypassesBuffer(t *testing.T) {
	t.Parallel()

	// capacity 64: a record >= 16 bytes (cap/4) is "large" and is written
	// directly rather than copied into the buffer.
	w := newTestWriter(t, Config{BufferCapacity: 64})

	require.NoError(t, w.WriteArrival([]byte("small")))
	large := make([]byte, 20)
	for i := range large {
		large[i] = 'x'
	}
	require.NoError(t, w.WriteArrival(large))

	// The large write flushed "small" first, then wrote itself directly —
	// both land on disk without an explicit Flush call.
	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Equal(t, "small"+string(large), string(data))
}

func TestRotation_BoundaryExact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := newTestWriter(t, Config{Dir: dir, BufferCapacity: 8, MaxSegmentSize: 100})

	// Large writes (>= cap/4 = 2 bytes) bypass the buffer, exercising
	// rotateIfNeeded's file.size+L comparison directly.
	require.NoError(t, w.WriteArrival(make([]byte, 100)))
	assert.Equal(t, uint64(0), w.CurrentWriteIndex(), "exactly at the boundary must not rotate")

	require.NoError(t, w.WriteArrival([]byte("x")))
	require.NoError(t, w.Flush())
	assert.Equal(t, uint64(1), w.CurrentWriteIndex(), "one byte past the boundary must rotate")
}

func TestSetIndex_RefusesDecrease(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, Config{BufferCapacity: 64})
	require.NoError(t, w.SetIndex(5))
	assert.Equal(t, uint64(5), w.CurrentWriteIndex())

	err := w.SetIndex(2)
	assert.ErrorIs(t, err, binlog.ErrIndexDecrease)
	assert.Equal(t, uint64(5), w.CurrentWriteIndex(), "index must be unchanged after a refused decrease")
}

func TestSetIndex_NoopWhenUnchanged(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, Config{BufferCapacity: 64})
	before := w.Path()
	require.NoError(t, w.SetIndex(0))
	assert.Equal(t, before, w.Path())
}

func TestWriteVersioned_ColdStartAndGapFill(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, Config{
		BufferCapacity: 64,
		Discipline:     Version,
		NextVersion:    10,
		RingSize:       4,
	})

	require.NoError(t, w.WriteVersioned(12, []byte("C")))
	require.NoError(t, w.WriteVersioned(11, []byte("B")))
	require.NoError(t, w.WriteVersioned(10, []byte("A")))
	require.NoError(t, w.Flush())

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Equal(t, "ABC", string(data))
}

func TestWriteVersioned_OutOfWindowRepushes(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, Config{
		BufferCapacity: 64,
		Discipline:     Version,
		NextVersion:    10,
		RingSize:       4,
	})

	err := w.WriteVersioned(13, []byte("late"))
	assert.True(t, IsRepush(err))
}

func TestWriteVersioned_SetNextVersionResets(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, Config{
		BufferCapacity: 64,
		Discipline:     Version,
		NextVersion:    10,
		RingSize:       4,
	})

	w.SetNextVersion(100)
	require.NoError(t, w.WriteVersioned(100, []byte("X")))
	require.NoError(t, w.Flush())

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Equal(t, "X", string(data))
}

func TestFinish_FlushesAndClosesSegment(t *testing.T) {
	t.Parallel()

	w := newTestWriter(t, Config{BufferCapacity: 64})
	require.NoError(t, w.WriteArrival([]byte("pending")))

	require.NoError(t, w.Finish(context.Background()))

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Equal(t, "pending", string(data))

	assert.ErrorIs(t, w.WriteArrival([]byte("x")), binlog.ErrWriterClosed)
}
