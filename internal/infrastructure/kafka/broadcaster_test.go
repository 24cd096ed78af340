package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTopic una partición en memoria compartida por writer y reader.
type fakeTopic struct {
	mu       sync.Mutex
	messages []kafka.Message
	written  chan struct{}
	closed   bool
}

func newFakeTopic() *fakeTopic {
	return &fakeTopic{written: make(chan struct{}, 16)}
}

func (f *fakeTopic) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("writer cerrado")
	}
	f.messages = append(f.messages, msgs...)
	f.written <- struct{}{}
	return nil
}

func (f *fakeTopic) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeReader struct {
	topic *fakeTopic
	next  int
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	for {
		r.topic.mu.Lock()
		if r.next < len(r.topic.messages) {
			msg := r.topic.messages[r.next]
			r.next++
			r.topic.mu.Unlock()
			return msg, nil
		}
		r.topic.mu.Unlock()
		select {
		case <-ctx.Done():
			return kafka.Message{}, ctx.Err()
		case <-r.topic.written:
		}
	}
}

func (r *fakeReader) Close() error { return nil }

func TestNewBroadcaster_Validaciones(t *testing.T) {
	_, err := NewBroadcaster(Config{Topic: "invorya.events"})
	assert.Error(t, err)

	_, err = NewBroadcaster(Config{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}

func TestNewBroadcaster_Configuracion(t *testing.T) {
	b, err := NewBroadcaster(Config{Brokers: []string{"k1:9092", "k2:9092"}, Topic: "invorya.events"})
	require.NoError(t, err)
	defer b.Close()

	w, ok := b.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "invorya.events", w.Topic)
	assert.Equal(t, 10*time.Millisecond, w.BatchTimeout)

	rc := b.readerConfig()
	assert.Empty(t, rc.GroupID)
	assert.Equal(t, kafka.LastOffset, rc.StartOffset)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, rc.Brokers)
	assert.Equal(t, 500*time.Millisecond, rc.MaxWait)
}

func TestWriterYReader_MismaParticion(t *testing.T) {
	b, err := NewBroadcaster(Config{Brokers: []string{"k1:9092"}, Topic: "invorya.events"})
	require.NoError(t, err)
	defer b.Close()

	w := b.writer.(*kafka.Writer)
	rc := b.readerConfig()
	for _, partitions := range [][]int{{0}, {0, 1, 2}, {0, 1, 2, 3, 4, 5, 6, 7}} {
		assert.Equal(t, rc.Partition, w.Balancer.Balance(kafka.Message{Value: []byte("x")}, partitions...))
	}
}

func TestBroadcastYListen_EntreReplicas(t *testing.T) {
	topic := newFakeTopic()
	var seenConfig kafka.ReaderConfig
	b := &Broadcaster{
		cfg:    Config{Brokers: []string{"k1:9092"}, Topic: "invorya.events"}.withDefaults(),
		writer: topic,
		newReader: func(rc kafka.ReaderConfig) messageReader {
			seenConfig = rc
			return &fakeReader{topic: topic}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan []byte, 2)
	done := make(chan error, 1)
	go func() {
		done <- b.Listen(ctx, func(data []byte) { received <- data })
	}()

	require.NoError(t, b.Broadcast(context.Background(), []byte(`{"type":"inventory.updated"}`)))
	require.NoError(t, b.Broadcast(context.Background(), []byte(`{"type":"inventory.low_stock"}`)))

	for _, want := range []string{`{"type":"inventory.updated"}`, `{"type":"inventory.low_stock"}`} {
		select {
		case got := <-received:
			assert.JSONEq(t, want, string(got))
		case <-time.After(2 * time.Second):
			t.Fatalf("no llegó %s", want)
		}
	}

	topic.mu.Lock()
	require.Len(t, topic.messages, 2)
	assert.Equal(t, "content-type", topic.messages[0].Headers[0].Key)
	topic.mu.Unlock()
	assert.Equal(t, eventPartition, seenConfig.Partition)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestBroadcast_ErrorDelWriter(t *testing.T) {
	topic := newFakeTopic()
	require.NoError(t, topic.Close())
	b := &Broadcaster{cfg: Config{Topic: "invorya.events"}, writer: topic}

	err := b.Broadcast(context.Background(), []byte("{}"))
	assert.ErrorContains(t, err, "invorya.events")
}
