package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/config"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/application"
	invoicegrpc "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/infrastructure/grpc"
	invoiceKafka "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/infrastructure/kafka"
	invoiceDB "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/infrastructure/postgres"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/bus"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/idempotency"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/logging"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/metrics"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/outbox"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/rpc"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/shutdown"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/tracing"
)

func main() {
	cfg, err := config.Load(config.InvoiceService)
	log := logging.New(cfg.Service, cfg.LogLevel)
	if err != nil {
		log.Error("config invalid", "err", err)
		os.Exit(1)
	}

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Service, cfg.JaegerURL, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		sctx, scancel := shutdown.Cleanup(5 * time.Second)
		defer scancel()
		_ = tp.Shutdown(sctx)
	}()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := invoiceDB.Migrate(ctx, pool); err != nil {
		log.Error("pg migrate failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, idempotency cache disabled until it recovers", "err", err)
	}
	idem := idempotency.NewStore(rdb, "invoice", cfg.Invoice.IdempotencyTTL)

	cc, err := rpc.Dial(cfg.Upstream.InventoryAddr)
	if err != nil {
		log.Error("inventory dial failed", "err", err)
		os.Exit(1)
	}
	defer cc.Close()
	inventory := invoicegrpc.NewInventoryClient(log, cc, cfg.Timeouts.Confirm)

	m := metrics.New(cfg.Service)
	repo := invoiceDB.NewRepository(log, pool)
	svc := application.NewService(log, repo, inventory, idem, m, application.Options{
		IdempotencyTTL: cfg.Invoice.IdempotencyTTL,
		RaceBackoff:    cfg.Invoice.RaceBackoff,
		ConfirmTimeout: cfg.Timeouts.Confirm,
	})

	// Outbox relay publishes invoice cancellations.
	writer := bus.NewWriter(cfg.Kafka.Brokers)
	defer writer.Close()
	dispatch := outbox.NewDispatcher(log, writer, cfg.Kafka.InvoiceEvents)
	relay := outbox.NewRelay(log, outbox.NewPgStore(pool, cfg.Outbox.MaxRetries), dispatch, relayID(cfg.Service),
		outbox.WithInterval(cfg.Outbox.Interval),
		outbox.WithLease(cfg.Outbox.Lease),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithMetrics(m.OutboxDispatch),
	)

	gs := rpc.NewServer(log, rpc.Observe(m.RPCRequests))
	invoicegrpc.NewServer(log, svc).Service().Register(gs)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rpc.Serve(ctx, log, gs, cfg.GRPCAddr) })
	g.Go(func() error { return metrics.Serve(ctx, log, cfg.MetricsAddr, m.Router()) })
	g.Go(func() error { return relay.Run(ctx) })

	consumer := invoiceKafka.NewConsumer(log, svc)
	for i := 0; i < cfg.Kafka.Consumers; i++ {
		reader := bus.NewReader(cfg.Kafka.Brokers, cfg.Kafka.InvoiceSnapshots, cfg.Kafka.Group)
		sub := bus.NewSubscriber(log, reader, writer, cfg.Kafka.InvoiceSnapshots, cfg.Kafka.ImmediateRetries, consumer.Handle, m.ConsumerOutcomes)
		g.Go(func() error { return sub.Run(ctx) })
	}

	if err := g.Wait(); err != nil {
		log.Error("invoice-service stopped", "err", err)
		os.Exit(1)
	}
	log.Info("invoice-service shutdown")
}

func relayID(service string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "local"
	}
	return service + "-" + host
}
