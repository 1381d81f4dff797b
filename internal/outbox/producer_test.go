package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(nil)
	require.Error(t, err)
}

func TestProducerReusesWriterPerTopic(t *testing.T) {
	p, err := NewProducer([]string{"kafka:9092"}, WithBatchTimeout(5*time.Millisecond), WithWriteTimeout(0))
	require.NoError(t, err)

	first, err := p.writer("sync_events")
	require.NoError(t, err)
	again, err := p.writer("sync_events")
	require.NoError(t, err)
	require.Same(t, first, again)

	other, err := p.writer("metric_events")
	require.NoError(t, err)
	require.NotSame(t, first, other)

	require.Equal(t, "sync_events", first.Topic)
	require.IsType(t, &kafka.Hash{}, first.Balancer)
	require.Equal(t, kafka.RequireAll, first.RequiredAcks)
	require.Equal(t, 5*time.Millisecond, first.BatchTimeout)
	require.Equal(t, 10*time.Second, first.WriteTimeout)
}

func TestProducerRejectsWritesAfterClose(t *testing.T) {
	p, err := NewProducer([]string{"kafka:9092"})
	require.NoError(t, err)
	_, err = p.writer("sync_events")
	require.NoError(t, err)

	require.NoError(t, p.Close())
	err = p.WriteMessages(context.Background(), "sync_events", kafka.Message{Key: []byte("user-1")})
	require.ErrorIs(t, err, ErrProducerClosed)
}
