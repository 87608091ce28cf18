// Package memory implements an in-process message broker with at-least-once
// delivery. Nacked messages return to the topic and are handed out again.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/newsforge/newsforge/internal/news"
	"github.com/newsforge/newsforge/internal/telemetry"
)

const defaultBuffer = 1024

// Broker holds the topic channels shared by its publishers and consumers.
type Broker struct {
	mu     sync.Mutex
	topics map[string]chan *delivery
	closed bool
}

// NewBroker creates an empty broker. Topics are created on first use.
func NewBroker() *Broker {
	return &Broker{topics: make(map[string]chan *delivery)}
}

func (b *Broker) topic(name string) (chan *delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("memory broker is closed")
	}
	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan *delivery, defaultBuffer)
		b.topics[name] = ch
	}
	return ch, nil
}

// Close marks the broker closed. In-flight deliveries may still be Acked or
// Nacked; new publishes fail.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Publisher returns a news.Publisher backed by this broker.
func (b *Broker) Publisher() news.Publisher {
	return &publisher{broker: b}
}

// Consumer returns a news.Consumer reading the named topic.
func (b *Broker) Consumer(topic string) news.Consumer {
	return &consumer{broker: b, topic: topic}
}

type publisher struct {
	broker *Broker
}

// Publish enqueues a copy of the payload. It blocks while the topic buffer
// is full so confirmed messages are never dropped.
func (p *publisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	ch, err := p.broker.topic(topic)
	if err != nil {
		telemetry.ObservePublish(topic, "error")
		return "", err
	}
	data := make([]byte, len(payload))
	copy(data, payload)
	d := &delivery{id: uuid.NewString(), data: data, topic: ch}
	select {
	case ch <- d:
		telemetry.ObservePublish(topic, "ok")
		return d.id, nil
	case <-ctx.Done():
		telemetry.ObservePublish(topic, "error")
		return "", ctx.Err()
	}
}

func (p *publisher) Close() error {
	return nil
}

type consumer struct {
	broker *Broker
	topic  string
}

// Receive hands deliveries to the handler one at a time until the context
// finishes. Like the Pub/Sub client, it returns nil on context cancellation.
func (c *consumer) Receive(ctx context.Context, handler func(context.Context, news.Delivery)) error {
	ch, err := c.broker.topic(c.topic)
	if err != nil {
		return err
	}
	for {
		select {
		case d := <-ch:
			d.reset()
			handler(ctx, d)
		case <-ctx.Done():
			return nil
		}
	}
}

// delivery is one queued message. The same value is reused on redelivery,
// with its settle state reset each time it is handed out.
type delivery struct {
	id    string
	data  []byte
	topic chan *delivery

	mu      sync.Mutex
	settled bool
}

func (d *delivery) Data() []byte {
	return d.data
}

func (d *delivery) reset() {
	d.mu.Lock()
	d.settled = false
	d.mu.Unlock()
}

func (d *delivery) Ack() {
	d.settle(false)
}

func (d *delivery) Nack() {
	d.settle(true)
}

func (d *delivery) settle(requeue bool) {
	d.mu.Lock()
	if d.settled {
		d.mu.Unlock()
		return
	}
	d.settled = true
	d.mu.Unlock()
	if requeue {
		// The buffer may be momentarily full; do not stall the handler.
		go func() { d.topic <- d }()
	}
}
