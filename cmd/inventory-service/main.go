package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/config"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/application"
	invgrpc "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/infrastructure/grpc"
	inventoryKafka "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/infrastructure/kafka"
	inventoryDB "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/infrastructure/postgres"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/bus"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/logging"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/metrics"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/outbox"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/rpc"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/shutdown"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/tracing"
)

func main() {
	cfg, err := config.Load(config.InventoryService)
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
	if err := inventoryDB.Migrate(ctx, pool); err != nil {
		log.Error("pg migrate failed", "err", err)
		os.Exit(1)
	}

	m := metrics.New(cfg.Service)
	repo := inventoryDB.NewRepository(log, pool)
	svc := application.NewService(log, repo, m)

	// Outbox relay publishes reservation snapshots.
	writer := bus.NewWriter(cfg.Kafka.Brokers)
	defer writer.Close()
	dispatch := outbox.NewDispatcher(log, writer, cfg.Kafka.InvoiceSnapshots)
	relay := outbox.NewRelay(log, outbox.NewPgStore(pool, cfg.Outbox.MaxRetries), dispatch, relayID(cfg.Service),
		outbox.WithInterval(cfg.Outbox.Interval),
		outbox.WithLease(cfg.Outbox.Lease),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithMetrics(m.OutboxDispatch),
	)

	gs := rpc.NewServer(log, rpc.Observe(m.RPCRequests))
	invgrpc.NewServer(log, svc).Service().Register(gs)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rpc.Serve(ctx, log, gs, cfg.GRPCAddr) })
	g.Go(func() error { return metrics.Serve(ctx, log, cfg.MetricsAddr, m.Router()) })
	g.Go(func() error { return relay.Run(ctx) })

	// Cancellation relay: several consumers share the group's partitions.
	consumer := inventoryKafka.NewConsumer(log, svc)
	for i := 0; i < cfg.Kafka.Consumers; i++ {
		reader := bus.NewReader(cfg.Kafka.Brokers, cfg.Kafka.InvoiceEvents, cfg.Kafka.Group)
		sub := bus.NewSubscriber(log, reader, writer, cfg.Kafka.InvoiceEvents, cfg.Kafka.ImmediateRetries, consumer.Handle, m.ConsumerOutcomes)
		g.Go(func() error { return sub.Run(ctx) })
	}

	if err := g.Wait(); err != nil {
		log.Error("inventory-service stopped", "err", err)
		os.Exit(1)
	}
	log.Info("inventory-service shutdown")
}

func relayID(service string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "local"
	}
	return service + "-" + host
}
