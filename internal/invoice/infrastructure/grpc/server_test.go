package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	inventorydomain "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/domain"
	inventorygrpc "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/infrastructure/grpc"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/infrastructure/grpc/contract"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/rpc"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeInvoices struct {
	Invoices
	key     string
	lines   []domain.LineRequest
	compens bool
	err     error
}

func (f *fakeInvoices) CreateInvoice(_ context.Context, lines []domain.LineRequest, key string) (domain.Invoice, error) {
	f.lines, f.key = lines, key
	inv := domain.NewInvoice(uuid.New(), lines, time.Now())
	inv.Number = 7
	return inv, f.err
}

func (f *fakeInvoices) DeleteInvoice(_ context.Context, _ uuid.UUID, compensation bool) error {
	f.compens = compensation
	return f.err
}

func (f *fakeInvoices) ListInvoices(context.Context, domain.Filter) ([]domain.Invoice, error) {
	return nil, f.err
}

func serve(t *testing.T, register func(grpc.ServiceRegistrar)) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := rpc.NewServer(discard)
	register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	cc, err := rpc.Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cc.Close() })
	return cc
}

func TestCreateInvoiceOverGRPC(t *testing.T) {
	f := &fakeInvoices{}
	cc := serve(t, NewServer(discard, f).Service().Register)
	productID := uuid.New()

	got, err := rpc.Call[contract.CreateInvoiceRequest, contract.Invoice](context.Background(), cc,
		contract.MethodCreateInvoice, time.Second, &contract.CreateInvoiceRequest{
			Items:          []contract.Line{{ProductID: productID, Quantity: 3}},
			IdempotencyKey: "abc",
		})
	if err != nil {
		t.Fatal(err)
	}
	if got.Number != 7 || got.Status != "Open" || len(got.Items) != 1 || got.Items[0].ProductID != productID {
		t.Errorf("unexpected invoice %+v", got)
	}
	if f.key != "abc" || f.lines[0].Quantity != 3 {
		t.Errorf("request not forwarded: %q %+v", f.key, f.lines)
	}
}

func TestDeleteInvoiceCarriesCompensationFlag(t *testing.T) {
	f := &fakeInvoices{}
	cc := serve(t, NewServer(discard, f).Service().Register)

	_, err := rpc.Call[contract.DeleteInvoiceRequest, result.Empty](context.Background(), cc,
		contract.MethodDeleteInvoice, time.Second, &contract.DeleteInvoiceRequest{ID: uuid.New(), Compensation: true})
	if err != nil {
		t.Fatal(err)
	}
	if !f.compens {
		t.Error("compensation flag lost")
	}

	f.err = result.New(result.InvalidRequest, "cannot cancel a printed invoice")
	_, err = rpc.Call[contract.DeleteInvoiceRequest, result.Empty](context.Background(), cc,
		contract.MethodDeleteInvoice, time.Second, &contract.DeleteInvoiceRequest{ID: uuid.New()})
	if !result.IsCode(err, result.InvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestListInvoicesRejectsUnknownStatus(t *testing.T) {
	cc := serve(t, NewServer(discard, &fakeInvoices{}).Service().Register)

	_, err := rpc.Call[contract.ListInvoicesRequest, []contract.Invoice](context.Background(), cc,
		contract.MethodListInvoices, time.Second, &contract.ListInvoicesRequest{Status: "Draft"})
	if !result.IsCode(err, result.ValidationError) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

// fakeInventory answers ConfirmReservation on the real inventory server.
type fakeInventory struct {
	inventorygrpc.Inventory
	err error
}

func (f *fakeInventory) ConfirmReservation(_ context.Context, id uuid.UUID) (inventorydomain.Reservation, error) {
	return inventorydomain.Reservation{ID: id, Confirmed: true}, f.err
}

func TestInventoryClientConfirm(t *testing.T) {
	inv := &fakeInventory{}
	cc := serve(t, inventorygrpc.NewServer(discard, inv).Service().Register)
	client := NewInventoryClient(discard, cc, time.Second)

	if err := client.ConfirmReservation(context.Background(), uuid.New()); err != nil {
		t.Fatal(err)
	}

	inv.err = result.New(result.InsufficientStock, "insufficient stock for: P1 (available: 0, requested: 1)")
	err := client.ConfirmReservation(context.Background(), uuid.New())
	if e, ok := result.AsError(err); !ok || e.Code != result.InsufficientStock || e.Message != inv.err.(*result.Error).Message {
		t.Fatalf("business failure must come back verbatim, got %v", err)
	}
}

func TestInventoryClientUnavailable(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	_ = lis.Close()
	cc, err := rpc.Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer cc.Close()

	err = NewInventoryClient(discard, cc, 100*time.Millisecond).ConfirmReservation(context.Background(), uuid.New())
	if !errors.Is(err, rpc.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, ok := result.AsError(err); ok {
		t.Fatal("transport failure must not look like a business failure")
	}
}
