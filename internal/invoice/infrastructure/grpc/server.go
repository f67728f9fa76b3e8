package grpc

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/infrastructure/grpc/contract"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/rpc"
)

type Invoices interface {
	CreateInvoice(ctx context.Context, lines []domain.LineRequest, key string) (domain.Invoice, error)
	DeleteInvoice(ctx context.Context, id uuid.UUID, compensation bool) error
	PrintInvoice(ctx context.Context, id uuid.UUID) (domain.Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (domain.Invoice, error)
	ListInvoices(ctx context.Context, f domain.Filter) ([]domain.Invoice, error)
}

type Server struct {
	log *slog.Logger
	svc Invoices
}

func NewServer(log *slog.Logger, svc Invoices) *Server {
	return &Server{log: log, svc: svc}
}

func (s *Server) Service() *rpc.Service {
	svc := rpc.NewService(contract.Service)
	rpc.Handle(svc, "CreateInvoice", s.createInvoice)
	rpc.Handle(svc, "DeleteInvoice", s.deleteInvoice)
	rpc.Handle(svc, "PrintInvoice", s.printInvoice)
	rpc.Handle(svc, "GetInvoice", s.getInvoice)
	rpc.Handle(svc, "ListInvoices", s.listInvoices)
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

func (s *Server) createInvoice(ctx context.Context, req *contract.CreateInvoiceRequest) result.Result[contract.Invoice] {
	inv, err := s.svc.CreateInvoice(ctx, contract.ToLines(req.Items), req.IdempotencyKey)
	return reply(ctx, s.log, "create invoice", contract.FromInvoice(inv), err)
}

func (s *Server) deleteInvoice(ctx context.Context, req *contract.DeleteInvoiceRequest) result.Result[result.Empty] {
	err := s.svc.DeleteInvoice(ctx, req.ID, req.Compensation)
	return reply(ctx, s.log, "delete invoice", result.Empty{}, err)
}

func (s *Server) printInvoice(ctx context.Context, req *contract.InvoiceIDRequest) result.Result[contract.Invoice] {
	inv, err := s.svc.PrintInvoice(ctx, req.ID)
	return reply(ctx, s.log, "print invoice", contract.FromInvoice(inv), err)
}

func (s *Server) getInvoice(ctx context.Context, req *contract.InvoiceIDRequest) result.Result[contract.Invoice] {
	inv, err := s.svc.GetInvoice(ctx, req.ID)
	return reply(ctx, s.log, "get invoice", contract.FromInvoice(inv), err)
}

func (s *Server) listInvoices(ctx context.Context, req *contract.ListInvoicesRequest) result.Result[[]contract.Invoice] {
	switch domain.Status(req.Status) {
	case "", domain.StatusOpen, domain.StatusClosed:
	default:
		return result.Fail[[]contract.Invoice](result.ValidationError, "unknown invoice status "+req.Status)
	}
	invoices, err := s.svc.ListInvoices(ctx, req.Filter())
	out := make([]contract.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, contract.FromInvoice(inv))
	}
	return reply(ctx, s.log, "list invoices", out, err)
}
