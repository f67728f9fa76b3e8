package grpc

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/application"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/infrastructure/grpc/contract"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/rpc"
)

type Inventory interface {
	CreateProduct(ctx context.Context, code, description string, stock int) (domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, patch domain.ProductPatch) (domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GetProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (domain.Product, error)
	AvailableStock(ctx context.Context, id uuid.UUID) (int, error)
	CreateReservation(ctx context.Context, invoiceID uuid.UUID, items []domain.ItemRequest) (domain.Reservation, error)
	ConfirmReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	CancelReservation(ctx context.Context, target application.CancelTarget) (domain.Reservation, error)
	GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
}

type Server struct {
	log *slog.Logger
	svc Inventory
}

func NewServer(log *slog.Logger, svc Inventory) *Server {
	return &Server{log: log, svc: svc}
}

// Service describes every inventory method for registration on a grpc.Server.
func (s *Server) Service() *rpc.Service {
	svc := rpc.NewService(contract.Service)
	rpc.Handle(svc, "CreateProduct", s.createProduct)
	rpc.Handle(svc, "UpdateProduct", s.updateProduct)
	rpc.Handle(svc, "DeleteProduct", s.deleteProduct)
	rpc.Handle(svc, "GetProducts", s.getProducts)
	rpc.Handle(svc, "GetProduct", s.getProduct)
	rpc.Handle(svc, "GetAvailableStock", s.getAvailableStock)
	rpc.Handle(svc, "CreateReservation", s.createReservation)
	rpc.Handle(svc, "ConfirmReservation", s.confirmReservation)
	rpc.Handle(svc, "CancelReservation", s.cancelReservation)
	rpc.Handle(svc, "GetReservation", s.getReservation)
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

func (s *Server) createProduct(ctx context.Context, req *contract.CreateProductRequest) result.Result[contract.Product] {
	p, err := s.svc.CreateProduct(ctx, req.Code, req.Description, req.InitialStock)
	return reply(ctx, s.log, "create product", contract.FromProduct(p), err)
}

func (s *Server) updateProduct(ctx context.Context, req *contract.UpdateProductRequest) result.Result[contract.Product] {
	p, err := s.svc.UpdateProduct(ctx, req.ID, domain.ProductPatch{Code: req.Code, Description: req.Description, Stock: req.Stock})
	return reply(ctx, s.log, "update product", contract.FromProduct(p), err)
}

func (s *Server) deleteProduct(ctx context.Context, req *contract.ProductIDRequest) result.Result[result.Empty] {
	err := s.svc.DeleteProduct(ctx, req.ID)
	return reply(ctx, s.log, "delete product", result.Empty{}, err)
}

func (s *Server) getProducts(ctx context.Context, _ *contract.ListProductsRequest) result.Result[[]contract.Product] {
	products, err := s.svc.GetProducts(ctx)
	out := make([]contract.Product, 0, len(products))
	for _, p := range products {
		out = append(out, contract.FromProduct(p))
	}
	return reply(ctx, s.log, "list products", out, err)
}

func (s *Server) getProduct(ctx context.Context, req *contract.ProductIDRequest) result.Result[contract.Product] {
	p, err := s.svc.GetProduct(ctx, req.ID)
	return reply(ctx, s.log, "get product", contract.FromProduct(p), err)
}

func (s *Server) getAvailableStock(ctx context.Context, req *contract.ProductIDRequest) result.Result[contract.AvailableStock] {
	n, err := s.svc.AvailableStock(ctx, req.ID)
	return reply(ctx, s.log, "get available stock", contract.AvailableStock{ProductID: req.ID, AvailableStock: n}, err)
}

func (s *Server) createReservation(ctx context.Context, req *contract.CreateReservationRequest) result.Result[contract.Reservation] {
	r, err := s.svc.CreateReservation(ctx, req.InvoiceID, contract.ToItemRequests(req.Items))
	return reply(ctx, s.log, "create reservation", contract.FromReservation(r), err)
}

func (s *Server) confirmReservation(ctx context.Context, req *contract.ReservationIDRequest) result.Result[contract.Reservation] {
	r, err := s.svc.ConfirmReservation(ctx, req.ReservationID)
	return reply(ctx, s.log, "confirm reservation", contract.FromReservation(r), err)
}

func (s *Server) cancelReservation(ctx context.Context, req *contract.CancelReservationRequest) result.Result[contract.Reservation] {
	r, err := s.svc.CancelReservation(ctx, application.CancelTarget{ReservationID: req.ReservationID, InvoiceID: req.InvoiceID})
	return reply(ctx, s.log, "cancel reservation", contract.FromReservation(r), err)
}

func (s *Server) getReservation(ctx context.Context, req *contract.ReservationIDRequest) result.Result[contract.Reservation] {
	r, err := s.svc.GetReservation(ctx, req.ReservationID)
	return reply(ctx, s.log, "get reservation", contract.FromReservation(r), err)
}
