// Package pubsub implements a Google Cloud Pub/Sub lifecycle publisher.
// Events for the same job share an ordering key so consumers observe
// submitted, started and finished in order.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub"

	"github.com/campusdata/admissions-crawler/internal/publisher"
)

// Config captures the parameters required to reach the topic.
type Config struct {
	ProjectID string
	TopicID   string
}

// Publisher wraps a Pub/Sub topic handle.
type Publisher struct {
	client *gcppubsub.Client
	topic  *gcppubsub.Topic
}

var _ publisher.Publisher = (*Publisher)(nil)

// New creates a Pub/Sub client using Application Default Credentials and
// verifies the topic exists, failing fast on misconfiguration.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("pubsub project id is required")
	}
	if cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub topic id is required")
	}

	client, err := gcppubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(cfg.TopicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			return nil, fmt.Errorf("check pubsub topic %q: %w (close client: %v)", cfg.TopicID, err, closeErr)
		}
		return nil, fmt.Errorf("check pubsub topic %q: %w", cfg.TopicID, err)
	}
	if !ok {
		if closeErr := client.Close(); closeErr != nil {
			return nil, fmt.Errorf("pubsub topic %q does not exist in project %q (close client: %v)", cfg.TopicID, cfg.ProjectID, closeErr)
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", cfg.TopicID, cfg.ProjectID)
	}

	return NewWithTopic(client, topic), nil
}

// NewWithTopic wraps an existing client and topic handle (primarily for
// testing against a fake server). Message ordering is enabled on the topic.
func NewWithTopic(client *gcppubsub.Client, topic *gcppubsub.Topic) *Publisher {
	topic.EnableMessageOrdering = true
	return &Publisher{client: client, topic: topic}
}

// Publish marshals the event to JSON and publishes it keyed by job id. It
// waits for the server acknowledgement so the caller can log failures.
func (p *Publisher) Publish(ctx context.Context, evt publisher.Event) error {
	if err := evt.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &gcppubsub.Message{
		Data:        data,
		OrderingKey: evt.JobID,
		Attributes:  map[string]string{"event_type": string(evt.Type)},
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		// A failed publish poisons the ordering key until resumed.
		p.topic.ResumePublish(evt.JobID)
		return fmt.Errorf("publish event for job %s: %w", evt.JobID, err)
	}
	return nil
}

// Close stops the topic publisher and closes the underlying client.
func (p *Publisher) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
