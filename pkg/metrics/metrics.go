package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors a service process exports.
type Metrics struct {
	Registry         *prometheus.Registry
	RPCRequests      *prometheus.CounterVec
	Operations       *prometheus.CounterVec
	ConsumerOutcomes *prometheus.CounterVec
	OutboxDispatch   *prometheus.CounterVec
	Sagas            *prometheus.CounterVec
	SagaDuration     prometheus.Histogram
}

func New(service string) *Metrics {
	labels := prometheus.Labels{"service": service}
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpc_requests_total", Help: "Answered request/response calls.", ConstLabels: labels,
		}, []string{"method", "code"}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domain_operations_total", Help: "Domain operations by outcome.", ConstLabels: labels,
		}, []string{"operation", "outcome"}),
		ConsumerOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bus_messages_total", Help: "Consumed messages by outcome.", ConstLabels: labels,
		}, []string{"topic", "outcome"}),
		OutboxDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_dispatch_total", Help: "Outbox rows dispatched by outcome.", ConstLabels: labels,
		}, []string{"type", "outcome"}),
		Sagas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_runs_total", Help: "Invoice sagas by final state.", ConstLabels: labels,
		}, []string{"state"}),
		SagaDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "saga_duration_seconds", Help: "Invoice saga latency.", ConstLabels: labels,
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RPCRequests, m.Operations, m.ConsumerOutcomes, m.OutboxDispatch, m.Sagas, m.SagaDuration,
	)
	return m
}

// Observe records one domain operation outcome; err == nil counts as "ok".
func (m *Metrics) Observe(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveSaga records a finished saga in its final state.
func (m *Metrics) ObserveSaga(state string, d time.Duration) {
	m.Sagas.WithLabelValues(state).Inc()
	m.SagaDuration.Observe(d.Seconds())
}

func (m *Metrics) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry}))
	return r
}

// Serve exposes the router on addr until ctx is done.
func Serve(ctx context.Context, log *slog.Logger, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
