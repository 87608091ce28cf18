// Package pubsub adapts Google Cloud Pub/Sub to the pipeline's publisher and
// consumer interfaces. It authenticates with Application Default Credentials.
package pubsub

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"

	"github.com/newsforge/newsforge/internal/news"
	"github.com/newsforge/newsforge/internal/telemetry"
)

// Publisher publishes to topics in one project. Topic handles are created
// lazily and cached for the life of the publisher.
type Publisher struct {
	client *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPublisher connects to Pub/Sub in the given project.
func NewPublisher(ctx context.Context, projectID string) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Publisher{client: client, topics: make(map[string]*pubsub.Topic)}, nil
}

func (p *Publisher) topic(name string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.topics[name]
	if !ok {
		t = p.client.Topic(name)
		p.topics[name] = t
	}
	return t
}

// Publish sends the payload and blocks until the server confirms it. The
// returned ID is the server-assigned message ID.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	result := p.topic(topic).Publish(ctx, &pubsub.Message{Data: payload})
	id, err := result.Get(ctx)
	if err != nil {
		telemetry.ObservePublish(topic, "error")
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	telemetry.ObservePublish(topic, "ok")
	return id, nil
}

// Close flushes pending messages on every cached topic, then closes the
// client connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.mu.Unlock()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

// Consumer receives from one subscription.
type Consumer struct {
	client       *pubsub.Client
	subscription string
}

// NewConsumer connects to Pub/Sub and verifies the subscription exists.
func NewConsumer(ctx context.Context, projectID, subscription string) (*Consumer, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	ok, err := client.Subscription(subscription).Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check subscription %s: %w", subscription, err)
	}
	if !ok {
		_ = client.Close()
		return nil, fmt.Errorf("subscription %s does not exist in project %s", subscription, projectID)
	}
	return &Consumer{client: client, subscription: subscription}, nil
}

// Receive pumps deliveries into the handler until the context finishes. The
// Pub/Sub client invokes the handler from multiple goroutines. Each Receive
// call gets its own subscription handle, so callers may run several
// competing receivers.
func (c *Consumer) Receive(ctx context.Context, handler func(context.Context, news.Delivery)) error {
	sub := c.client.Subscription(c.subscription)
	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		handler(ctx, &delivery{msg: m})
	})
}

// Close closes the client connection.
func (c *Consumer) Close() error {
	return c.client.Close()
}

type delivery struct {
	msg *pubsub.Message
}

func (d *delivery) Data() []byte {
	return d.msg.Data
}

func (d *delivery) Ack() {
	d.msg.Ack()
}

func (d *delivery) Nack() {
	d.msg.Nack()
}
