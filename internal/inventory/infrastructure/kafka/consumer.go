package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	invoicedomain "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/bus"
)

type CancellationHandler interface {
	HandleInvoiceCancelled(ctx context.Context, ev invoicedomain.InvoiceCancelledEvent) error
}

// Consumer releases reservations of cancelled invoices.
type Consumer struct {
	log *slog.Logger
	svc CancellationHandler
}

func NewConsumer(log *slog.Logger, svc CancellationHandler) *Consumer {
	return &Consumer{log: log, svc: svc}
}

func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	if t := bus.EventType(msg); t != "" && t != invoicedomain.EventInvoiceCancelled {
		c.log.DebugContext(ctx, "ignoring event", "event_type", t)
		return nil
	}

	var ev invoicedomain.InvoiceCancelledEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("%w: %v", bus.ErrMalformed, err)
	}
	if ev.InvoiceID == uuid.Nil {
		return fmt.Errorf("%w: invoice id missing", bus.ErrMalformed)
	}
	return c.svc.HandleInvoiceCancelled(ctx, ev)
}
