package grpc

import (
	"context"
	"log/slog"

	inventory "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/infrastructure/grpc/contract"
	invoice "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/infrastructure/grpc/contract"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/orchestrator/application"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/orchestrator/infrastructure/grpc/contract"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/rpc"
)

type Saga interface {
	CreateInvoiceWithReservation(ctx context.Context, req invoice.CreateInvoiceRequest) (invoice.Invoice, error)
}

type Invoices interface {
	DeleteInvoice(ctx context.Context, req invoice.DeleteInvoiceRequest) error
	PrintInvoice(ctx context.Context, req invoice.InvoiceIDRequest) (invoice.Invoice, error)
	GetInvoice(ctx context.Context, req invoice.InvoiceIDRequest) (invoice.Invoice, error)
	ListInvoices(ctx context.Context, req invoice.ListInvoicesRequest) ([]invoice.Invoice, error)
}

type Inventory interface {
	CreateProduct(ctx context.Context, req inventory.CreateProductRequest) (inventory.Product, error)
	UpdateProduct(ctx context.Context, req inventory.UpdateProductRequest) (inventory.Product, error)
	DeleteProduct(ctx context.Context, req inventory.ProductIDRequest) error
	GetProducts(ctx context.Context, req inventory.ListProductsRequest) ([]inventory.Product, error)
	GetProduct(ctx context.Context, req inventory.ProductIDRequest) (inventory.Product, error)
	GetAvailableStock(ctx context.Context, req inventory.ProductIDRequest) (inventory.AvailableStock, error)
	GetReservation(ctx context.Context, req inventory.ReservationIDRequest) (inventory.Reservation, error)
	ConfirmReservation(ctx context.Context, req inventory.ReservationIDRequest) (inventory.Reservation, error)
	CancelReservation(ctx context.Context, req inventory.CancelReservationRequest) (inventory.Reservation, error)
}

// Server is the single entry point for clients: the saga plus pass-through
// calls to the owning services.
type Server struct {
	log       *slog.Logger
	saga      Saga
	invoices  Invoices
	inventory Inventory
}

func NewServer(log *slog.Logger, saga Saga, invoices Invoices, inventory Inventory) *Server {
	return &Server{log: log, saga: saga, invoices: invoices, inventory: inventory}
}

func (s *Server) Service() *rpc.Service {
	svc := rpc.NewService(contract.Service)
	rpc.Handle(svc, "CreateInvoiceWithReservation", s.createInvoiceWithReservation)
	rpc.Handle(svc, "PrintInvoice", pass(s.log, "invoice", "print invoice", s.invoices.PrintInvoice))
	rpc.Handle(svc, "DeleteInvoice", pass(s.log, "invoice", "delete invoice", s.deleteInvoice))
	rpc.Handle(svc, "GetInvoice", pass(s.log, "invoice", "get invoice", s.invoices.GetInvoice))
	rpc.Handle(svc, "ListInvoices", pass(s.log, "invoice", "list invoices", s.invoices.ListInvoices))
	rpc.Handle(svc, "CreateProduct", pass(s.log, "inventory", "create product", s.inventory.CreateProduct))
	rpc.Handle(svc, "UpdateProduct", pass(s.log, "inventory", "update product", s.inventory.UpdateProduct))
	rpc.Handle(svc, "DeleteProduct", pass(s.log, "inventory", "delete product", s.deleteProduct))
	rpc.Handle(svc, "GetProducts", pass(s.log, "inventory", "list products", s.inventory.GetProducts))
	rpc.Handle(svc, "GetProduct", pass(s.log, "inventory", "get product", s.inventory.GetProduct))
	rpc.Handle(svc, "GetAvailableStock", pass(s.log, "inventory", "get available stock", s.inventory.GetAvailableStock))
	rpc.Handle(svc, "GetReservation", pass(s.log, "inventory", "get reservation", s.inventory.GetReservation))
	rpc.Handle(svc, "ConfirmReservation", pass(s.log, "inventory", "confirm reservation", s.inventory.ConfirmReservation))
	rpc.Handle(svc, "CancelReservation", pass(s.log, "inventory", "cancel reservation", s.inventory.CancelReservation))
	return svc
}

func reply[T any](ctx context.Context, log *slog.Logger, op string, data T, err error) result.Result[T] {
	if err != nil {
		if result.CodeOf(err) == result.InternalError {
			log.ErrorContext(ctx, op+" failed", "err", err)
		}
		return result.FromError[T](err, "could not "+op)
	}
	return result.Ok(data)
}

// pass forwards a call to the service that owns it. Downstream failures keep
// their code and message; a call that got no answer becomes the generic
// unavailability error.
func pass[Req, Resp any](log *slog.Logger, service, op string, call func(context.Context, Req) (Resp, error)) func(context.Context, *Req) result.Result[Resp] {
	return func(ctx context.Context, req *Req) result.Result[Resp] {
		out, err := call(ctx, *req)
		return reply(ctx, log, op, out, application.Unavailable(service, err))
	}
}

func (s *Server) createInvoiceWithReservation(ctx context.Context, req *contract.CreateInvoiceWithReservationRequest) result.Result[invoice.Invoice] {
	inv, err := s.saga.CreateInvoiceWithReservation(ctx, *req)
	return reply(ctx, s.log, "create invoice", inv, err)
}

func (s *Server) deleteInvoice(ctx context.Context, req contract.UserDeleteInvoiceRequest) (result.Empty, error) {
	return result.Empty{}, s.invoices.DeleteInvoice(ctx, invoice.DeleteInvoiceRequest{ID: req.ID})
}

func (s *Server) deleteProduct(ctx context.Context, req inventory.ProductIDRequest) (result.Empty, error) {
	return result.Empty{}, s.inventory.DeleteProduct(ctx, req)
}
