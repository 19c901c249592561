package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campusdata/admissions-crawler/internal/publisher"
)

func sampleEvent(jobID string, evtType publisher.EventType) publisher.Event {
	return publisher.Event{
		JobID: jobID,
		Type:  evtType,
		At:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestPublishFanOut(t *testing.T) {
	bus := New()
	first := bus.Subscribe(4)
	second := bus.Subscribe(4)

	evt := sampleEvent("job-1", publisher.EventJobSubmitted)
	require.NoError(t, bus.Publish(context.Background(), evt))

	select {
	case got := <-first:
		require.Equal(t, evt, got)
	case <-time.After(time.Second):
		t.Fatal("first subscriber did not receive event")
	}
	select {
	case got := <-second:
		require.Equal(t, evt, got)
	case <-time.After(time.Second):
		t.Fatal("second subscriber did not receive event")
	}
}

func TestPublishRecordsEvents(t *testing.T) {
	bus := New()

	require.NoError(t, bus.Publish(context.Background(), sampleEvent("job-1", publisher.EventJobSubmitted)))
	require.NoError(t, bus.Publish(context.Background(), sampleEvent("job-1", publisher.EventJobStarted)))

	events := bus.Events()
	require.Len(t, events, 2)
	require.Equal(t, publisher.EventJobSubmitted, events[0].Type)
	require.Equal(t, publisher.EventJobStarted, events[1].Type)

	// The returned slice is a copy.
	events[0].JobID = "mutated"
	require.Equal(t, "job-1", bus.Events()[0].JobID)
}

func TestPublishValidatesEvent(t *testing.T) {
	bus := New()

	err := bus.Publish(context.Background(), publisher.Event{Type: publisher.EventJobDone})
	require.Error(t, err)
	require.Contains(t, err.Error(), "job id")

	err = bus.Publish(context.Background(), publisher.Event{JobID: "job-1", Type: "exploded"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown event type")

	require.Empty(t, bus.Events())
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	bus := New()
	slow := bus.Subscribe(1)

	require.NoError(t, bus.Publish(context.Background(), sampleEvent("job-1", publisher.EventJobSubmitted)))
	require.NoError(t, bus.Publish(context.Background(), sampleEvent("job-1", publisher.EventJobStarted)))

	// The buffer held only the first event; the second was dropped for this
	// subscriber but still recorded.
	got := <-slow
	require.Equal(t, publisher.EventJobSubmitted, got.Type)
	select {
	case extra := <-slow:
		t.Fatalf("unexpected event %v", extra)
	default:
	}
	require.Len(t, bus.Events(), 2)
}

func TestCloseStopsDelivery(t *testing.T) {
	bus := New()
	sub := bus.Subscribe(1)

	bus.Close()

	err := bus.Publish(context.Background(), sampleEvent("job-1", publisher.EventJobDone))
	require.ErrorIs(t, err, publisher.ErrClosed)

	_, open := <-sub
	require.False(t, open)

	_, open = <-bus.Subscribe(1)
	require.False(t, open)

	// Closing twice is safe.
	bus.Close()
}
