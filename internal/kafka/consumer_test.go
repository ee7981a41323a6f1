package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"sigevent-service/internal/config"
	"sigevent-service/internal/logging"
	"sigevent-service/internal/models"
)

const validPayload = `{"collection_name":"MODIS_A","category":"ingest","subject":"s","description":"d","event_level":"WARN","source_name":"src","executor":"exe"}`

// fakeBroker stores one partition and the group's committed offset. Every
// reader it opens starts right after the committed offset.
type fakeBroker struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed int64
	opens     int
	fetchErr  error
}

func newFakeBroker(values ...string) *fakeBroker {
	b := &fakeBroker{committed: -1}
	for i, v := range values {
		b.messages = append(b.messages, kafka.Message{
			Topic:  "sigevent",
			Offset: int64(i),
			Value:  []byte(v),
			Time:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		})
	}
	return b
}

func (b *fakeBroker) open() MessageReader {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens++
	return &fakeReader{broker: b, next: b.committed + 1}
}

func (b *fakeBroker) committedOffset() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed
}

func (b *fakeBroker) openCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

type fakeReader struct {
	broker *fakeBroker
	next   int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.broker.mu.Lock()
	if r.broker.fetchErr != nil {
		err := r.broker.fetchErr
		r.broker.fetchErr = nil
		r.broker.mu.Unlock()
		return kafka.Message{}, err
	}
	if r.next < int64(len(r.broker.messages)) {
		msg := r.broker.messages[r.next]
		r.next++
		r.broker.mu.Unlock()
		return msg, nil
	}
	r.broker.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.broker.mu.Lock()
	defer r.broker.mu.Unlock()
	for _, m := range msgs {
		if m.Offset > r.broker.committed {
			r.broker.committed = m.Offset
		}
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeProcessor struct {
	mu       sync.Mutex
	failures int
	calls    []models.EventMessage
	ctxIDs   []string
}

func (p *fakeProcessor) ProcessEventMessage(ctx context.Context, msg models.EventMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, msg)
	p.ctxIDs = append(p.ctxIDs, logging.RequestID(ctx))
	if p.failures > 0 {
		p.failures--
		return errors.New("log store unavailable")
	}
	return nil
}

func (p *fakeProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func runConsumer(t *testing.T, broker *fakeBroker, proc Processor) {
	t.Helper()
	c := newConsumer(broker.open, proc, logging.Discard())
	c.SetRetryBackoff(time.Millisecond)
	var wg sync.WaitGroup
	c.Start(&wg)
	t.Cleanup(func() {
		c.Close()
		wg.Wait()
	})
}

func TestConsumer_ProcessesAndCommits(t *testing.T) {
	broker := newFakeBroker(validPayload, validPayload)
	proc := &fakeProcessor{}
	runConsumer(t, broker, proc)

	waitFor(t, func() bool { return broker.committedOffset() == 1 })
	if proc.callCount() != 2 {
		t.Errorf("processed %d messages, want 2", proc.callCount())
	}
}

func TestConsumer_InvalidMessageDropped(t *testing.T) {
	broker := newFakeBroker(`{"collection_name":"x"}`, `not json`, validPayload)
	proc := &fakeProcessor{}
	runConsumer(t, broker, proc)

	waitFor(t, func() bool { return broker.committedOffset() == 2 })
	if proc.callCount() != 1 {
		t.Errorf("processed %d messages, want only the valid one", proc.callCount())
	}
	if opens := broker.openCount(); opens != 1 {
		t.Errorf("reader reopened %d times for invalid input", opens-1)
	}
}

func TestConsumer_FailureRedelivers(t *testing.T) {
	broker := newFakeBroker(validPayload)
	proc := &fakeProcessor{failures: 2}
	runConsumer(t, broker, proc)

	waitFor(t, func() bool { return broker.committedOffset() == 0 })
	if proc.callCount() != 3 {
		t.Errorf("processed %d times, want 3 (two failures then success)", proc.callCount())
	}
	if opens := broker.openCount(); opens != 3 {
		t.Errorf("reader opened %d times, want 3", opens)
	}
}

func TestConsumer_FetchErrorRetried(t *testing.T) {
	broker := newFakeBroker(validPayload)
	broker.fetchErr = errors.New("broker not available")
	proc := &fakeProcessor{}
	runConsumer(t, broker, proc)

	waitFor(t, func() bool { return broker.committedOffset() == 0 })
}

func TestHandleMessage_TimestampFallback(t *testing.T) {
	proc := &fakeProcessor{}
	c := newConsumer(newFakeBroker().open, proc, logging.Discard())
	enqueued := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := c.handleMessage(context.Background(), kafka.Message{Value: []byte(validPayload), Time: enqueued}); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
	got := proc.calls[0]
	if got.Timestamp == nil || !got.Timestamp.Equal(enqueued) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, enqueued)
	}
	if proc.ctxIDs[0] == "" {
		t.Error("request id not attached to context")
	}
}

func TestHandleMessage_KeepsOwnTimestamp(t *testing.T) {
	proc := &fakeProcessor{}
	c := newConsumer(newFakeBroker().open, proc, logging.Discard())
	payload := `{"collection_name":"c","category":"k","subject":"s","description":"d","event_level":"INFO","source_name":"src","executor":"e","timestamp":"2023-06-01T10:00:00Z"}`

	if err := c.handleMessage(context.Background(), kafka.Message{Value: []byte(payload), Time: time.Now()}); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
	want := time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)
	if !proc.calls[0].Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", proc.calls[0].Timestamp, want)
	}
}

func TestNewConsumer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		brokers string
		topic   string
		group   string
	}{
		{"no brokers", " , ", "sigevent", "g"},
		{"no topic", "localhost:9092", "", "g"},
		{"no group", "localhost:9092", "sigevent", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg config.Config
			cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID = tt.brokers, tt.topic, tt.group
			if _, err := NewConsumer(cfg, &fakeProcessor{}, logging.Discard()); err == nil {
				t.Error("NewConsumer() should fail")
			}
		})
	}
}

func TestParseBrokers(t *testing.T) {
	got := parseBrokers(" a:9092, b:9092 ,,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("parseBrokers() = %v", got)
	}
}
