package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := New(1)
	result := make(chan Item, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	require.NoError(t, q.Enqueue(context.Background(), Item{JobID: "job-1"}))

	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		require.Equal(t, "job-1", got.JobID)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueueFull(t *testing.T) {
	t.Parallel()

	q := New(1)
	require.NoError(t, q.Enqueue(context.Background(), Item{JobID: "job-1"}))

	err := q.Enqueue(context.Background(), Item{JobID: "job-2"})
	require.ErrorIs(t, err, ErrFull)
	require.Equal(t, 1, q.Len())

	// Draining frees capacity again.
	_, err = q.Dequeue(context.Background())
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), Item{JobID: "job-2"}))
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	q := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	err = q.Enqueue(ctx, Item{JobID: "job-1"})
	require.EqualError(t, err, "enqueue canceled: context canceled")
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := New(2)
	require.NoError(t, q.Enqueue(context.Background(), Item{JobID: "job-1"}))
	q.Close()

	// Buffered items survive the close.
	item, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "job-1", item.JobID)

	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrClosed)

	err = q.Enqueue(context.Background(), Item{JobID: "job-2"})
	require.ErrorIs(t, err, ErrClosed)

	// Closing twice should be safe.
	q.Close()
}
