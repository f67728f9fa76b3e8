package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func run(t *testing.T, msgs []kafka.Message, dlt *fakeWriter, retries int, h Handler) (*fakeReader, error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{msgs: msgs, cancel: cancel}
	err := NewSubscriber(quietLog(), reader, dlt, "invoice.events", retries, h, nil).Run(ctx)
	return reader, err
}

func TestRetriesThenSucceeds(t *testing.T) {
	calls := 0
	dlt := &fakeWriter{}
	reader, err := run(t, []kafka.Message{{Topic: "invoice.events", Offset: 7}}, dlt, 3, func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("db busy")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if len(dlt.msgs) != 0 {
		t.Error("message should not be dead-lettered")
	}
	if len(reader.committed) != 1 {
		t.Errorf("expected commit after success, got %d", len(reader.committed))
	}
}

func TestExhaustedRetriesGoToDeadLetter(t *testing.T) {
	calls := 0
	dlt := &fakeWriter{}
	reader, err := run(t, []kafka.Message{{Topic: "invoice.events", Partition: 2, Offset: 11, Value: []byte(`{}`)}}, dlt, 3, func(context.Context, kafka.Message) error {
		calls++
		return fmt.Errorf("attempt %d failed", calls)
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 4 {
		t.Errorf("expected one try plus 3 retries, got %d", calls)
	}
	if len(dlt.msgs) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(dlt.msgs))
	}
	dead := dlt.msgs[0]
	if dead.Topic != "invoice.events.dlt" {
		t.Errorf("unexpected dlt topic %q", dead.Topic)
	}
	if header(dead, HeaderOriginalOffset) != "11" || header(dead, HeaderOriginalPartition) != "2" {
		t.Errorf("missing origin headers: %+v", dead.Headers)
	}
	if header(dead, HeaderExceptionMessage) != "attempt 4 failed" {
		t.Errorf("unexpected exception header %q", header(dead, HeaderExceptionMessage))
	}
	if len(reader.committed) != 1 {
		t.Error("dead-lettered message must be committed")
	}
}

func TestPanickingHandlerIsRetriedThenDeadLettered(t *testing.T) {
	calls := 0
	dlt := &fakeWriter{}
	reader, err := run(t, []kafka.Message{{Topic: "invoice.events", Offset: 3}}, dlt, 2, func(context.Context, kafka.Message) error {
		calls++
		panic("nil map write")
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("expected one try plus 2 retries, got %d", calls)
	}
	if len(dlt.msgs) != 1 || header(dlt.msgs[0], HeaderExceptionMessage) != "handler panic: nil map write" {
		t.Fatalf("expected panic to be dead-lettered, got %+v", dlt.msgs)
	}
	if len(reader.committed) != 1 {
		t.Error("dead-lettered message must be committed")
	}
}

func TestMalformedSkipsRetries(t *testing.T) {
	calls := 0
	dlt := &fakeWriter{}
	_, err := run(t, []kafka.Message{{Topic: "invoice.events"}}, dlt, 3, func(context.Context, kafka.Message) error {
		calls++
		return fmt.Errorf("decode: %w", ErrMalformed)
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 || len(dlt.msgs) != 1 {
		t.Errorf("expected single attempt and dead letter, got %d calls, %d dead", calls, len(dlt.msgs))
	}
}

func TestDeadLetterFailureIsNotCommitted(t *testing.T) {
	dlt := &fakeWriter{err: errors.New("broker down")}
	reader, err := run(t, []kafka.Message{{Topic: "invoice.events"}}, dlt, 0, func(context.Context, kafka.Message) error {
		return errors.New("nope")
	})
	if err == nil {
		t.Fatal("expected the subscriber to stop")
	}
	if len(reader.committed) != 0 {
		t.Error("message must stay uncommitted for redelivery")
	}
}

func TestEventType(t *testing.T) {
	m := kafka.Message{Headers: []kafka.Header{{Key: "event_type", Value: []byte("InvoiceCancelled")}}}
	if EventType(m) != "InvoiceCancelled" {
		t.Error("event type header not read")
	}
}
