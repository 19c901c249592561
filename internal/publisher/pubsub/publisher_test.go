// Package pubsub_test contains unit tests for the pubsub publisher.
package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"

	"github.com/campusdata/admissions-crawler/internal/publisher"
	pubsubpublisher "github.com/campusdata/admissions-crawler/internal/publisher/pubsub"
)

func TestPublisher_PublishAndClose(t *testing.T) {
	ctx := context.Background()

	// Create a fake Pub/Sub server.
	srv := pstest.NewServer()
	defer srv.Close()

	// Connect to the fake server.
	conn, err := grpc.Dial(srv.Addr, grpc.WithInsecure())
	require.NoError(t, err)
	defer conn.Close()

	// Create a client.
	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)

	// Create a topic.
	topic, err := client.CreateTopic(ctx, "topic-id")
	require.NoError(t, err)

	// Create a subscription.
	sub, err := client.CreateSubscription(ctx, "sub-id", pubsub.SubscriptionConfig{
		Topic:                 topic,
		EnableMessageOrdering: true,
	})
	require.NoError(t, err)

	pub := pubsubpublisher.NewWithTopic(client, topic)
	require.True(t, topic.EnableMessageOrdering)

	// Publish an event.
	evt := publisher.Event{
		JobID: "job-1",
		Type:  publisher.EventJobStarted,
		At:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	err = pub.Publish(ctx, evt)
	require.NoError(t, err)

	// Receive the message.
	recvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c := make(chan *pubsub.Message, 1)
	go func() {
		_ = sub.Receive(recvCtx, func(ctx context.Context, msg *pubsub.Message) {
			c <- msg
			msg.Ack()
			cancel()
		})
	}()
	msg := <-c

	assert.Equal(t, "job-1", msg.OrderingKey)
	assert.Equal(t, string(publisher.EventJobStarted), msg.Attributes["event_type"])

	var got publisher.Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, evt.JobID, got.JobID)
	assert.Equal(t, evt.Type, got.Type)
	assert.True(t, evt.At.Equal(got.At))

	// Invalid events are rejected before reaching the topic.
	err = pub.Publish(ctx, publisher.Event{Type: publisher.EventJobDone})
	require.Error(t, err)

	// Close the publisher.
	err = pub.Close()
	assert.NoError(t, err)
}

func TestNewValidatesConfig(t *testing.T) {
	ctx := context.Background()

	_, err := pubsubpublisher.New(ctx, pubsubpublisher.Config{TopicID: "topic-id"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "project id")

	_, err = pubsubpublisher.New(ctx, pubsubpublisher.Config{ProjectID: "project-id"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "topic id")
}
