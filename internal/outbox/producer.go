package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrProducerClosed is returned by writes after Close.
var ErrProducerClosed = errors.New("outbox: producer closed")

// Producer publishes dispatcher batches to Kafka, one writer per topic.
//
// Messages are keyed by user ID and routed with a Hash balancer, so every
// event of a user lands on the same partition in outbox order. Writes are
// synchronous and wait for all in-sync replicas; the dispatcher marks rows
// published only after WriteMessages returns.
type Producer struct {
	brokers      []string
	batchTimeout time.Duration
	writeTimeout time.Duration

	mu      sync.Mutex
	closed  bool
	writers map[string]*kafka.Writer
}

// ProducerOption tunes the writers a Producer creates.
type ProducerOption func(*Producer)

// WithBatchTimeout bounds how long a writer waits to fill a batch.
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(p *Producer) {
		if d > 0 {
			p.batchTimeout = d
		}
	}
}

// WithWriteTimeout bounds a single broker write.
func WithWriteTimeout(d time.Duration) ProducerOption {
	return func(p *Producer) {
		if d > 0 {
			p.writeTimeout = d
		}
	}
}

// NewProducer returns a Producer for brokers. Writers are created on first
// use of a topic.
func NewProducer(brokers []string, opts ...ProducerOption) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("outbox: no kafka brokers configured")
	}
	p := &Producer{
		brokers:      append([]string(nil), brokers...),
		batchTimeout: 50 * time.Millisecond,
		writeTimeout: 10 * time.Second,
		writers:      map[string]*kafka.Writer{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// WriteMessages publishes msgs to topic.
func (p *Producer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	w, err := p.writer(topic)
	if err != nil {
		return err
	}
	if err := w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d events to %s: %w", len(msgs), topic, err)
	}
	return nil
}

func (p *Producer) writer(topic string) (*kafka.Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrProducerClosed
	}
	if w, ok := p.writers[topic]; ok {
		return w, nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: p.batchTimeout,
		WriteTimeout: p.writeTimeout,
	}
	p.writers[topic] = w
	return w, nil
}

// Close flushes and closes every writer. Later writes fail with
// ErrProducerClosed.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true

	var errs []error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer for %s: %w", topic, err))
		}
	}
	p.writers = map[string]*kafka.Writer{}
	return errors.Join(errs...)
}
