package group

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/return2faye/binlogkit/pkg/binlog/writer"
)

func newArrivalWriter(t *testing.T) *writer.Info {
	t.Helper()
	w, err := writer.New(writer.Config{Dir: t.TempDir(), BufferCapacity: 256})
	require.NoError(t, err)
	return w
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestGroup_SubmitThenCloseFlushesArrivalOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := New(ctx, Config{QueueSize: 16})
	w := newArrivalWriter(t)
	g.Attach(w)
	g.Start()

	for _, s := range []string{"one", "two", "three"} {
		require.True(t, g.Submit(w, g.NewRecord(Normal, 0, []byte(s))))
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	g.Close(stopCtx)

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Equal(t, "onetwothree", string(data))
}

func TestGroup_VersionedOutOfOrderDrainsInVersionOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := New(ctx, Config{QueueSize: 16})
	w, err := writer.New(writer.Config{
		Dir:            t.TempDir(),
		BufferCapacity: 256,
		Discipline:     writer.Version,
		NextVersion:    10,
		RingSize:       4,
	})
	require.NoError(t, err)
	g.Attach(w)
	g.Start()

	require.True(t, g.Submit(w, g.NewRecord(Normal, 12, []byte("C"))))
	require.True(t, g.Submit(w, g.NewRecord(Normal, 11, []byte("B"))))
	require.True(t, g.Submit(w, g.NewRecord(Normal, 10, []byte("A"))))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	g.Close(stopCtx)

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Equal(t, "ABC", string(data))
}

func TestGroup_RepushIsRetriedOnceNextAdvances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := New(ctx, Config{QueueSize: 16})
	w, err := writer.New(writer.Config{
		Dir:            t.TempDir(),
		BufferCapacity: 256,
		Discipline:     writer.Version,
		NextVersion:    10,
		RingSize:       4,
	})
	require.NoError(t, err)
	g.Attach(w)
	g.Start()

	// 13 arrives first and is out of window (d=3 >= size-1=3): it must be
	// repushed, then redelivered once 10, 11, 12 have landed.
	require.True(t, g.Submit(w, g.NewRecord(Normal, 13, []byte("D"))))
	require.True(t, g.Submit(w, g.NewRecord(Normal, 12, []byte("C"))))
	require.True(t, g.Submit(w, g.NewRecord(Normal, 11, []byte("B"))))
	require.True(t, g.Submit(w, g.NewRecord(Normal, 10, []byte("A"))))

	waitFor(t, time.Second, func() bool {
		data, _ := os.ReadFile(w.Path())
		return string(data) == "ABCD"
	})

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	g.Close(stopCtx)
}

func TestGroup_NonFatalWriteErrorLeavesContextLive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := New(ctx, Config{QueueSize: 16})
	w := newArrivalWriter(t)
	g.Attach(w)

	require.NoError(t, w.Finish(context.Background())) // close the writer out from under the group
	g.Start()
	g.Submit(w, g.NewRecord(Normal, 0, []byte("x")))

	// A write against a closed writer returns ErrWriterClosed, which is
	// logged but is not itself fatal (only disk I/O failures trip
	// OnFatal) — so the group's context must remain live.
	select {
	case <-g.Context().Done():
		t.Fatal("context should not be canceled by a non-fatal write error")
	case <-time.After(50 * time.Millisecond):
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	g.Close(stopCtx)
}
