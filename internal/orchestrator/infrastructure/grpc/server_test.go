package grpc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	inventory "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/infrastructure/grpc/contract"
	invoice "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/infrastructure/grpc/contract"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/orchestrator/infrastructure/grpc/contract"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/rpc"
)

type fakeSaga struct{ err error }

func (f fakeSaga) CreateInvoiceWithReservation(_ context.Context, req invoice.CreateInvoiceRequest) (invoice.Invoice, error) {
	return invoice.Invoice{ID: uuid.New(), Number: 1, Status: "Open"}, f.err
}

type fakeInvoices struct {
	Invoices
	deleted invoice.DeleteInvoiceRequest
}

func (f *fakeInvoices) DeleteInvoice(_ context.Context, req invoice.DeleteInvoiceRequest) error {
	f.deleted = req
	return nil
}

type fakeInventory struct {
	Inventory
	err error
}

func (f fakeInventory) GetAvailableStock(_ context.Context, req inventory.ProductIDRequest) (inventory.AvailableStock, error) {
	return inventory.AvailableStock{ProductID: req.ID, AvailableStock: 90}, f.err
}

func (f fakeInventory) CancelReservation(_ context.Context, req inventory.CancelReservationRequest) (inventory.Reservation, error) {
	if f.err != nil {
		return inventory.Reservation{}, f.err
	}
	return inventory.Reservation{ID: req.ReservationID, Status: "Cancelada"}, nil
}

func (f fakeInventory) ConfirmReservation(_ context.Context, req inventory.ReservationIDRequest) (inventory.Reservation, error) {
	if f.err != nil {
		return inventory.Reservation{}, f.err
	}
	return inventory.Reservation{ID: req.ReservationID, Status: "Confirmada"}, nil
}

func dial(t *testing.T, s *Server) *grpc.ClientConn {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	lis := bufconn.Listen(1 << 20)
	gs := rpc.NewServer(log)
	s.Service().Register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	cc, err := rpc.Dial("passthrough:///gateway", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cc.Close() })
	return cc
}

func newServer(saga Saga, inv Invoices, stock Inventory) *Server {
	return NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)), saga, inv, stock)
}

func TestGatewaySagaFailureKeepsCode(t *testing.T) {
	saga := fakeSaga{err: result.New(result.InsufficientStock, "insufficient stock for: P1 (available: 10, requested: 15)")}
	cc := dial(t, newServer(saga, &fakeInvoices{}, fakeInventory{}))

	out, err := rpc.Invoke[contract.CreateInvoiceWithReservationRequest, invoice.Invoice](context.Background(), cc,
		contract.MethodCreateInvoiceWithReservation, &contract.CreateInvoiceWithReservationRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if out.IsSuccess || out.ErrorCode != result.InsufficientStock || out.ErrorMessage != "insufficient stock for: P1 (available: 10, requested: 15)" {
		t.Errorf("unexpected envelope %+v", out)
	}
}

func TestGatewayUserDeleteIsNeverCompensation(t *testing.T) {
	inv := &fakeInvoices{}
	cc := dial(t, newServer(fakeSaga{}, inv, fakeInventory{}))
	id := uuid.New()

	_, err := rpc.Call[contract.UserDeleteInvoiceRequest, result.Empty](context.Background(), cc,
		contract.MethodDeleteInvoice, time.Second, &contract.UserDeleteInvoiceRequest{ID: id})
	if err != nil {
		t.Fatal(err)
	}
	if inv.deleted.ID != id || inv.deleted.Compensation {
		t.Errorf("unexpected delete %+v", inv.deleted)
	}
}

func TestGatewayPassThrough(t *testing.T) {
	id := uuid.New()
	cc := dial(t, newServer(fakeSaga{}, &fakeInvoices{}, fakeInventory{}))

	got, err := rpc.Call[inventory.ProductIDRequest, inventory.AvailableStock](context.Background(), cc,
		contract.MethodGetAvailableStock, time.Second, &inventory.ProductIDRequest{ID: id})
	if err != nil || got.ProductID != id || got.AvailableStock != 90 {
		t.Fatalf("unexpected answer %+v %v", got, err)
	}

	down := fakeInventory{err: fmt.Errorf("%w: connection refused", rpc.ErrUnavailable)}
	cc = dial(t, newServer(fakeSaga{}, &fakeInvoices{}, down))
	out, err := rpc.Invoke[inventory.ProductIDRequest, inventory.AvailableStock](context.Background(), cc,
		contract.MethodGetAvailableStock, &inventory.ProductIDRequest{ID: id})
	if err != nil {
		t.Fatal(err)
	}
	if out.ErrorCode != result.InternalError || out.ErrorMessage != "inventory service is unavailable" {
		t.Errorf("unexpected envelope %+v", out)
	}
}

func TestGatewayReservationTransitions(t *testing.T) {
	id := uuid.New()
	cc := dial(t, newServer(fakeSaga{}, &fakeInvoices{}, fakeInventory{}))

	confirmed, err := rpc.Call[inventory.ReservationIDRequest, inventory.Reservation](context.Background(), cc,
		contract.MethodConfirmReservation, time.Second, &inventory.ReservationIDRequest{ReservationID: id})
	if err != nil || confirmed.ID != id || confirmed.Status != "Confirmada" {
		t.Fatalf("unexpected confirm answer %+v %v", confirmed, err)
	}

	cancelled, err := rpc.Call[inventory.CancelReservationRequest, inventory.Reservation](context.Background(), cc,
		contract.MethodCancelReservation, time.Second, &inventory.CancelReservationRequest{ReservationID: id})
	if err != nil || cancelled.Status != "Cancelada" {
		t.Fatalf("unexpected cancel answer %+v %v", cancelled, err)
	}

	refused := fakeInventory{err: result.New(result.AlreadyConfirmed, "cannot cancel a confirmed reservation")}
	cc = dial(t, newServer(fakeSaga{}, &fakeInvoices{}, refused))
	out, err := rpc.Invoke[inventory.CancelReservationRequest, inventory.Reservation](context.Background(), cc,
		contract.MethodCancelReservation, &inventory.CancelReservationRequest{ReservationID: id})
	if err != nil {
		t.Fatal(err)
	}
	if out.ErrorCode != result.AlreadyConfirmed || out.ErrorMessage != "cannot cancel a confirmed reservation" {
		t.Errorf("unexpected envelope %+v", out)
	}
}
