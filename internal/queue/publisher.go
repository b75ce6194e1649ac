package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DialTimeout bounds one attempt to connect to the broker.
	DialTimeout = 3 * time.Second
	// DefaultBuffer is how many events may wait for delivery.
	DefaultBuffer = 1024

	publishTimeout = 5 * time.Second
	redialDelay    = 5 * time.Second
)

var (
	// ErrBufferFull means delivery is falling behind and the event was dropped.
	ErrBufferFull = errors.New("activity buffer full, event dropped")
	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("activity publisher closed")

	errBrokerDown = errors.New("rabbitmq unavailable, waiting to redial")
)

type sendFunc func(ctx context.Context, ev Event) error

// Publisher sends activity events to RabbitMQ from a single background
// worker.  Publish only enqueues, so a slow or unreachable broker never
// holds up the request that produced the event.
type Publisher struct {
	events    chan Event
	send      sendFunc
	closeSink func() error
	log       *zap.Logger
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewPublisher starts a publisher for the activity queue.  Call Close on
// shutdown to flush what is still buffered.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	s := &amqpSink{url: url, queue: ActivityQueue}
	return newPublisher(s.send, s.close, DefaultBuffer, log)
}

func newPublisher(send sendFunc, closeSink func() error, size int, log *zap.Logger) *Publisher {
	p := &Publisher{
		events:    make(chan Event, size),
		send:      send,
		closeSink: closeSink,
		log:       log,
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish queues ev for delivery.  It never blocks; when the buffer is full
// the event is dropped and ErrBufferFull returned.
func (p *Publisher) Publish(_ context.Context, ev Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.events <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for ev := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.send(ctx, ev); err != nil {
			p.log.Warn("rabbitmq: publish failed",
				zap.String("event", ev.Type),
				zap.String("event_id", ev.ID),
				zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting events and waits until the buffered ones are sent
// or ctx ends.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if p.closeSink == nil {
		return nil
	}
	return p.closeSink()
}

// amqpSink keeps one connection and channel open across publishes and
// reopens them after a failure.  Only the publisher's worker touches it.
type amqpSink struct {
	url     string
	queue   string
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
}

func (s *amqpSink) channel() (*amqp.Channel, error) {
	if s.ch != nil && !s.ch.IsClosed() {
		return s.ch, nil
	}
	_ = s.close()
	if time.Now().Before(s.retryAt) {
		return nil, errBrokerDown
	}

	conn, err := amqp.DialConfig(s.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(DialTimeout),
	})
	if err != nil {
		s.retryAt = time.Now().Add(redialDelay)
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		s.retryAt = time.Now().Add(redialDelay)
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		s.retryAt = time.Now().Add(redialDelay)
		return nil, fmt.Errorf("queue declare %s: %w", s.queue, err)
	}
	s.conn, s.ch = conn, ch
	return ch, nil
}

func (s *amqpSink) send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ch, err := s.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", s.queue, false, false, pub); err != nil {
		_ = s.close()
		return err
	}
	return nil
}

func (s *amqpSink) close() error {
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

// Nop discards events.  It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
