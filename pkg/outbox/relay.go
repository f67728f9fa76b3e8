package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error
}

type Relay struct {
	log       *slog.Logger
	store     Store
	dispatch  *Dispatcher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
	tracer    trace.Tracer
	outcomes  *prometheus.CounterVec
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option { return func(r *Relay) { r.interval = d } }

func WithLease(d time.Duration) Option { return func(r *Relay) { r.lease = d } }

func WithBatchSize(n int) Option { return func(r *Relay) { r.batchSize = n } }

// WithMetrics counts dispatch outcomes under the labels (type, outcome).
func WithMetrics(c *prometheus.CounterVec) Option { return func(r *Relay) { r.outcomes = c } }

func NewRelay(log *slog.Logger, store Store, dispatch *Dispatcher, relayID string, opts ...Option) *Relay {
	r := &Relay{
		log:       log,
		store:     store,
		dispatch:  dispatch,
		relayID:   relayID,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		lease:     5 * time.Second,
		tracer:    otel.Tracer("outbox-relay"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			if _, err := r.Flush(ctx); err != nil {
				r.log.Error("relay flush error", "relay_id", r.relayID, "err", err)
			}
		}
	}
}

// Flush dispatches one leased batch and reports how many events were sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	leasedAt := time.Now()
	ids := make([]int64, 0, len(events))
	for i, e := range events {
		if time.Since(leasedAt) > r.lease/2 {
			if err := r.store.ExtendLease(ctx, r.relayID, remaining(events[i:]), r.lease); err != nil {
				r.log.Warn("relay extend lease failed", "relay_id", r.relayID, "err", err)
			}
			leasedAt = time.Now()
		}
		if err := r.publish(ctx, e); err != nil {
			r.observe(e.Type, "failed")
			if mErr := r.store.MarkFailed(ctx, e.ID, err.Error()); mErr != nil {
				r.log.Error("relay mark failed error", "event_id", e.ID, "err", mErr)
			}
			continue
		}
		r.observe(e.Type, "sent")
		ids = append(ids, e.ID)
	}
	if len(ids) > 0 {
		if err := r.store.MarkSent(ctx, ids); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (r *Relay) publish(ctx context.Context, e Event) error {
	if e.Traceparent != "" {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{"traceparent": e.Traceparent})
	}
	ctx, span := r.tracer.Start(ctx, "outbox.dispatch "+e.Type, trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	if err := r.dispatch.Dispatch(ctx, e); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (r *Relay) observe(eventType, outcome string) {
	if r.outcomes != nil {
		r.outcomes.WithLabelValues(eventType, outcome).Inc()
	}
}

func remaining(events []Event) []int64 {
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}
