package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	inventory "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/infrastructure/grpc/contract"
	invoicedomain "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/domain"
	invoice "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/infrastructure/grpc/contract"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/orchestrator/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/rpc"
)

type InvoiceClient interface {
	CreateInvoice(ctx context.Context, req invoice.CreateInvoiceRequest) (invoice.Invoice, error)
	DeleteInvoice(ctx context.Context, req invoice.DeleteInvoiceRequest) error
}

type ReservationClient interface {
	CreateReservation(ctx context.Context, req inventory.CreateReservationRequest) (inventory.Reservation, error)
}

type SagaObserver interface {
	ObserveSaga(state string, d time.Duration)
}

type nopSagaObserver struct{}

func (nopSagaObserver) ObserveSaga(string, time.Duration) {}

// Coordinator runs the invoice-with-reservation saga. It keeps no state of
// its own between calls.
type Coordinator struct {
	log       *slog.Logger
	invoices  InvoiceClient
	inventory ReservationClient
	obs       SagaObserver
	tracer    trace.Tracer
	now       func() time.Time
}

func NewCoordinator(log *slog.Logger, invoices InvoiceClient, inventory ReservationClient, obs SagaObserver) *Coordinator {
	if obs == nil {
		obs = nopSagaObserver{}
	}
	return &Coordinator{
		log:       log,
		invoices:  invoices,
		inventory: inventory,
		obs:       obs,
		tracer:    otel.Tracer("orchestrator"),
		now:       time.Now,
	}
}

// Unavailable turns a transport failure into the generic unavailability
// error. Business failures pass through untouched.
func Unavailable(service string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := result.AsError(err); ok && !errors.Is(err, rpc.ErrUnavailable) {
		return err
	}
	return result.Wrap(result.InternalError, service+" service is unavailable", err)
}

// CreateInvoiceWithReservation creates an invoice and reserves its stock. If
// the reservation fails the invoice is deleted again and the reservation's
// failure is returned. The snapshot update that links the two is published
// by the inventory service together with the reservation.
func (c *Coordinator) CreateInvoiceWithReservation(ctx context.Context, req invoice.CreateInvoiceRequest) (invoice.Invoice, error) {
	saga := domain.NewSaga(c.now())
	ctx, span := c.tracer.Start(ctx, "saga.create_invoice_with_reservation",
		trace.WithAttributes(attribute.String("saga.id", saga.ID.String())))
	defer span.End()
	log := c.log.With("saga_id", saga.ID)

	inv, err := c.run(ctx, log, saga, req)
	c.obs.ObserveSaga(string(saga.State), c.now().Sub(saga.StartedAt))
	span.SetAttributes(attribute.String("saga.state", string(saga.State)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(result.CodeOf(err)))
	}
	return inv, err
}

func (c *Coordinator) run(ctx context.Context, log *slog.Logger, saga *domain.Saga, req invoice.CreateInvoiceRequest) (invoice.Invoice, error) {
	lines := make([]domain.Line, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, domain.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	if err := domain.ValidateLines(lines); err != nil {
		_ = saga.Advance(domain.StateFailed)
		return invoice.Invoice{}, err
	}

	inv, err := c.invoices.CreateInvoice(ctx, req)
	if err != nil {
		_ = saga.Advance(domain.StateFailed)
		log.WarnContext(ctx, "invoice creation failed", "err", err)
		return invoice.Invoice{}, Unavailable("invoice", err)
	}
	log = log.With("invoice_id", inv.ID)

	// A replayed idempotency key may resolve to an invoice whose saga has
	// already ended: reserving again would hold stock nobody releases.
	if inv.Cancelled {
		_ = saga.Advance(domain.StateFailed)
		log.WarnContext(ctx, "idempotency key resolves to a cancelled invoice")
		return invoice.Invoice{}, result.New(result.InvalidRequest, "invoice %d for this idempotency key was cancelled", inv.Number)
	}
	saga.InvoiceID = inv.ID
	_ = saga.Advance(domain.StateInvoiceCreated)
	if inv.Status == string(invoicedomain.StatusClosed) {
		if rid := reservationOf(inv); rid != uuid.Nil {
			saga.ReservationID = rid
		}
		_ = saga.Advance(domain.StateReserved)
		_ = saga.Advance(domain.StateCompleted)
		log.InfoContext(ctx, "idempotency key resolves to a printed invoice, nothing to reserve")
		return inv, nil
	}

	// Reserve what the invoice holds: a replayed idempotency key returns the
	// original invoice, whose items may differ from this request.
	items := make([]inventory.Item, 0, len(inv.Items))
	for _, it := range inv.Items {
		items = append(items, inventory.Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	res, err := c.inventory.CreateReservation(ctx, inventory.CreateReservationRequest{InvoiceID: inv.ID, Items: items})
	if err != nil {
		_ = saga.Advance(domain.StateCompensating)
		log.WarnContext(ctx, "reservation failed, compensating", "err", err)
		c.compensate(ctx, log, saga, inv.ID)
		return invoice.Invoice{}, Unavailable("inventory", err)
	}
	saga.ReservationID = res.ID
	_ = saga.Advance(domain.StateReserved)

	log.InfoContext(ctx, "invoice reserved, snapshot update queued", "reservation_id", res.ID, "invoice_number", inv.Number)
	_ = saga.Advance(domain.StateCompleted)
	return inv, nil
}

func reservationOf(inv invoice.Invoice) uuid.UUID {
	for _, it := range inv.Items {
		if it.ReservationID != nil {
			return *it.ReservationID
		}
	}
	return uuid.Nil
}

// compensate deletes the invoice. Its outcome never changes what the caller
// is told.
func (c *Coordinator) compensate(ctx context.Context, log *slog.Logger, saga *domain.Saga, invoiceID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	if err := c.invoices.DeleteInvoice(ctx, invoice.DeleteInvoiceRequest{ID: invoiceID, Compensation: true}); err != nil {
		_ = saga.Advance(domain.StateFailed)
		log.ErrorContext(ctx, "compensation failed, invoice left behind", "err", err)
		return
	}
	_ = saga.Advance(domain.StateCompensated)
	log.InfoContext(ctx, "invoice compensated")
}
