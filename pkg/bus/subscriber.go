package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/tracing"
)

const (
	HeaderOriginalTopic     = "original_topic"
	HeaderOriginalPartition = "original_partition"
	HeaderOriginalOffset    = "original_offset"
	HeaderExceptionMessage  = "exception_message"
	HeaderAttempts          = "attempts"
)

// ErrMalformed marks a message that can never be handled; it goes to the
// dead-letter topic without retries.
var ErrMalformed = errors.New("malformed message")

type Handler func(ctx context.Context, msg kafka.Message) error

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Subscriber consumes one topic with at-least-once semantics: a message is
// committed only after it was handled or parked on the dead-letter topic.
type Subscriber struct {
	log      *slog.Logger
	reader   Reader
	dlt      Writer
	dltTopic string
	retries  int
	handler  Handler
	tracer   trace.Tracer
	outcomes *prometheus.CounterVec
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

func DeadLetterTopic(topic string) string { return topic + ".dlt" }

// NewSubscriber retries a failing message immediately up to retries times
// before moving it to topic's dead-letter companion.
func NewSubscriber(log *slog.Logger, reader Reader, dlt Writer, topic string, retries int, handler Handler, outcomes *prometheus.CounterVec) *Subscriber {
	return &Subscriber{
		log:      log.With("topic", topic),
		reader:   reader,
		dlt:      dlt,
		dltTopic: DeadLetterTopic(topic),
		retries:  retries,
		handler:  handler,
		tracer:   otel.Tracer("bus-subscriber"),
		outcomes: outcomes,
	}
}

func (s *Subscriber) Run(ctx context.Context) error {
	defer s.reader.Close()
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := s.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// process returns an error only when the message could be neither handled
// nor dead-lettered, in which case it must not be committed.
func (s *Subscriber) process(ctx context.Context, msg kafka.Message) error {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := s.tracer.Start(msgCtx, "consume "+msg.Topic, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var err error
	attempts := 0
	for attempts <= s.retries {
		attempts++
		if err = s.handle(msgCtx, msg); err == nil {
			s.observe(msg.Topic, "handled")
			return nil
		}
		if errors.Is(err, ErrMalformed) || ctx.Err() != nil {
			break
		}
		s.log.Warn("message handling failed", "partition", msg.Partition, "offset", msg.Offset, "attempt", attempts, "err", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	span.RecordError(err)

	dead := kafka.Message{
		Topic: s.dltTopic,
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header(nil), msg.Headers...),
			kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
			kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: HeaderExceptionMessage, Value: []byte(err.Error())},
			kafka.Header{Key: HeaderAttempts, Value: []byte(strconv.Itoa(attempts))},
		),
	}
	if werr := s.dlt.WriteMessages(ctx, dead); werr != nil {
		s.log.Error("dead-letter write failed", "offset", msg.Offset, "err", werr)
		return werr
	}
	s.observe(msg.Topic, "dead_lettered")
	s.log.Error("message dead-lettered", "partition", msg.Partition, "offset", msg.Offset, "attempts", attempts, "err", err)
	return nil
}

// handle runs the handler and reports a panic as an ordinary failure.
func (s *Subscriber) handle(ctx context.Context, msg kafka.Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("message handler panicked", "partition", msg.Partition, "offset", msg.Offset, "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return s.handler(ctx, msg)
}

func (s *Subscriber) observe(topic, outcome string) {
	if s.outcomes != nil {
		s.outcomes.WithLabelValues(topic, outcome).Inc()
	}
}

// EventType returns the event_type header of msg.
func EventType(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
