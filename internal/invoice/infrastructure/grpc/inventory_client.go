package grpc

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/infrastructure/grpc/contract"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/rpc"
)

// InventoryClient is the invoice service's view of the inventory service.
type InventoryClient struct {
	log     *slog.Logger
	cc      grpc.ClientConnInterface
	timeout time.Duration
}

func NewInventoryClient(log *slog.Logger, cc grpc.ClientConnInterface, timeout time.Duration) *InventoryClient {
	return &InventoryClient{
		log:     log,
		cc:      cc,
		timeout: timeout,
	}
}

func (c *InventoryClient) ConfirmReservation(ctx context.Context, reservationID uuid.UUID) error {
	r, err := rpc.Call[contract.ReservationIDRequest, contract.Reservation](ctx, c.cc,
		contract.MethodConfirmReservation, c.timeout, &contract.ReservationIDRequest{ReservationID: reservationID})
	if err != nil {
		return err
	}
	c.log.DebugContext(ctx, "reservation confirmed", "reservation_id", r.ID, "invoice_id", r.InvoiceID)
	return nil
}
