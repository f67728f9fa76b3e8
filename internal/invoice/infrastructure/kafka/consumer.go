package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/bus"
)

type SnapshotHandler interface {
	UpdateSnapshot(ctx context.Context, req domain.UpdateInvoiceSnapshotRequest) error
}

// Consumer applies reservation snapshots published by the inventory service.
type Consumer struct {
	log *slog.Logger
	svc SnapshotHandler
}

func NewConsumer(log *slog.Logger, svc SnapshotHandler) *Consumer {
	return &Consumer{log: log, svc: svc}
}

func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	if t := bus.EventType(msg); t != "" && t != domain.EventSnapshotUpdate {
		c.log.DebugContext(ctx, "ignoring event", "event_type", t)
		return nil
	}

	var req domain.UpdateInvoiceSnapshotRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("%w: %v", bus.ErrMalformed, err)
	}
	if req.InvoiceID == uuid.Nil || req.ReservationID == uuid.Nil {
		return fmt.Errorf("%w: invoice or reservation id missing", bus.ErrMalformed)
	}
	return c.svc.UpdateSnapshot(ctx, req)
}
