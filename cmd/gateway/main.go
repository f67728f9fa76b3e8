package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/config"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/orchestrator/application"
	gatewaygrpc "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/orchestrator/infrastructure/grpc"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/logging"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/metrics"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/rpc"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/shutdown"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/tracing"
)

func main() {
	cfg, err := config.Load(config.Gateway)
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

	invoiceConn, err := rpc.Dial(cfg.Upstream.InvoiceAddr)
	if err != nil {
		log.Error("invoice dial failed", "err", err)
		os.Exit(1)
	}
	defer invoiceConn.Close()
	inventoryConn, err := rpc.Dial(cfg.Upstream.InventoryAddr)
	if err != nil {
		log.Error("inventory dial failed", "err", err)
		os.Exit(1)
	}
	defer inventoryConn.Close()

	invoices := gatewaygrpc.NewInvoiceClient(invoiceConn, cfg.Timeouts.Request, cfg.Timeouts.Print)
	inventory := gatewaygrpc.NewInventoryClient(inventoryConn, cfg.Timeouts.Request)

	m := metrics.New(cfg.Service)
	saga := application.NewCoordinator(log, invoices, inventory, m)

	gs := rpc.NewServer(log, rpc.Observe(m.RPCRequests))
	gatewaygrpc.NewServer(log, saga, invoices, inventory).Service().Register(gs)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rpc.Serve(ctx, log, gs, cfg.GRPCAddr) })
	g.Go(func() error { return metrics.Serve(ctx, log, cfg.MetricsAddr, m.Router()) })

	if err := g.Wait(); err != nil {
		log.Error("gateway stopped", "err", err)
		os.Exit(1)
	}
	log.Info("gateway shutdown")
}
