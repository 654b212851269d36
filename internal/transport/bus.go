// Package transport moves telemetry in and out of the bridge: an in-process
// topic bus for output messages, line sources feeding input envelopes and a
// stream sink writing output envelopes.
package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roman-kulish/telemetry-bridge/internal/telemetry"
)

// QueueDepth is the number of deliveries kept per subscriber (KEEP_LAST).
const QueueDepth = 10

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("bus closed")

// Delivery is one message published on a topic.
type Delivery struct {
	Topic string
	Msg   telemetry.Message
}

type subscriber struct {
	topics map[string]struct{} // empty means every topic
	ch     chan Delivery
}

func (s *subscriber) wants(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

// WithBusLogger sets the logger of the bus
func WithBusLogger(logger *slog.Logger) func(*Bus) {
	return func(b *Bus) {
		b.logger = logger.With(slog.String("component", "bus"))
	}
}

// WithQueueDepth overrides the per-subscriber queue depth.
func WithQueueDepth(depth int) func(*Bus) {
	return func(b *Bus) {
		if depth > 0 {
			b.depth = depth
		}
	}
}

// Bus fans published messages out to subscribers. Each subscriber has a
// bounded queue; when it is full the oldest delivery is discarded, so a slow
// subscriber never blocks a publisher.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	topics      map[string]*Topic
	closed      bool

	depth   int
	dropped atomic.Uint64
	logger  *slog.Logger
}

// NewBus creates an empty Bus
func NewBus(options ...func(*Bus)) *Bus {
	b := Bus{
		subscribers: make(map[string]*subscriber),
		topics:      make(map[string]*Topic),
		depth:       QueueDepth,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&b)
	}

	return &b
}

// Topic returns the publish handle of the named topic, creating it on first
// use.
func (b *Bus) Topic(name string) *Topic {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[name]
	if !ok {
		t = &Topic{bus: b, name: name}
		b.topics[name] = t
	}
	return t
}

// Subscribe registers a subscriber to the given topics, or to every topic
// when none are given. The channel is closed by Unsubscribe or Close.
func (b *Bus) Subscribe(topics ...string) (string, <-chan Delivery) {
	s := subscriber{
		topics: make(map[string]struct{}, len(topics)),
		ch:     make(chan Delivery, b.depth),
	}
	for _, t := range topics {
		s.topics[t] = struct{}{}
	}

	id := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(s.ch)
		return id, s.ch
	}

	b.subscribers[id] = &s
	return id, s.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.subscribers[id]; ok {
		close(s.ch)
		delete(b.subscribers, id)
	}
}

// Close closes every subscriber channel. Publishing afterwards fails with
// ErrClosed. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, s := range b.subscribers {
		close(s.ch)
		delete(b.subscribers, id)
	}
}

// Dropped returns the number of deliveries discarded from full queues.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus) publish(ctx context.Context, topic string, msg telemetry.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	d := Delivery{Topic: topic, Msg: msg}
	for id, s := range b.subscribers {
		if !s.wants(topic) {
			continue
		}

		select {
		case s.ch <- d:
			continue
		default:
		}

		// Queue full. Publishers are serialised by mu, so after discarding
		// the oldest delivery the send cannot block.
		select {
		case <-s.ch:
			b.dropped.Add(1)
			b.logger.Debug("subscriber queue full, discarding oldest delivery",
				slog.String("subscriber", id),
				slog.String("topic", topic))
		default:
		}
		s.ch <- d
	}

	return nil
}

// Topic is the publish handle of one bus topic. It satisfies the router's
// Publisher.
type Topic struct {
	bus       *Bus
	name      string
	published atomic.Uint64
}

// Name returns the topic name
func (t *Topic) Name() string {
	return t.name
}

// Publish delivers msg to every subscriber of the topic.
func (t *Topic) Publish(ctx context.Context, msg telemetry.Message) error {
	if err := t.bus.publish(ctx, t.name, msg); err != nil {
		return err
	}
	t.published.Add(1)
	return nil
}

// Published returns the number of messages published on the topic.
func (t *Topic) Published() uint64 {
	return t.published.Load()
}
