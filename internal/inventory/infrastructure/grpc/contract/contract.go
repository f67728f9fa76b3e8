// Package contract holds the request and response bodies of the inventory
// gRPC service. Bodies travel as JSON.
package contract

import (
	"time"

	"github.com/google/uuid"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/rpc"
)

const Service = "invoicing.inventory.v1.Inventory"

var (
	MethodCreateProduct      = rpc.Method(Service, "CreateProduct")
	MethodUpdateProduct      = rpc.Method(Service, "UpdateProduct")
	MethodDeleteProduct      = rpc.Method(Service, "DeleteProduct")
	MethodGetProducts        = rpc.Method(Service, "GetProducts")
	MethodGetProduct         = rpc.Method(Service, "GetProduct")
	MethodGetAvailableStock  = rpc.Method(Service, "GetAvailableStock")
	MethodCreateReservation  = rpc.Method(Service, "CreateReservation")
	MethodConfirmReservation = rpc.Method(Service, "ConfirmReservation")
	MethodCancelReservation  = rpc.Method(Service, "CancelReservation")
	MethodGetReservation     = rpc.Method(Service, "GetReservation")
)

type CreateProductRequest struct {
	Code         string `json:"code"`
	Description  string `json:"description"`
	InitialStock int    `json:"initialStock"`
}

type UpdateProductRequest struct {
	ID          uuid.UUID `json:"id"`
	Code        *string   `json:"code,omitempty"`
	Description *string   `json:"description,omitempty"`
	Stock       *int      `json:"stock,omitempty"`
}

type ProductIDRequest struct {
	ID uuid.UUID `json:"id"`
}

type ListProductsRequest struct{}

type Product struct {
	ID             uuid.UUID `json:"id"`
	Code           string    `json:"code"`
	Description    string    `json:"description"`
	Stock          int       `json:"stock"`
	ReservedStock  int       `json:"reservedStock"`
	AvailableStock int       `json:"availableStock"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type AvailableStock struct {
	ProductID      uuid.UUID `json:"productId"`
	AvailableStock int       `json:"availableStock"`
}

type Item struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

type CreateReservationRequest struct {
	InvoiceID uuid.UUID `json:"invoiceId"`
	Items     []Item    `json:"items"`
}

type ReservationIDRequest struct {
	ReservationID uuid.UUID `json:"reservationId"`
}

// CancelReservationRequest names the reservation directly or through its
// invoice.
type CancelReservationRequest struct {
	ReservationID uuid.UUID `json:"reservationId"`
	InvoiceID     uuid.UUID `json:"invoiceId"`
}

type Reservation struct {
	ID          uuid.UUID         `json:"id"`
	InvoiceID   uuid.UUID         `json:"invoiceId"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	ConfirmedAt *time.Time        `json:"confirmedAt,omitempty"`
	CancelledAt *time.Time        `json:"cancelledAt,omitempty"`
	Items       []ReservationItem `json:"items"`
}

type ReservationItem struct {
	ProductID          uuid.UUID `json:"productId"`
	ProductCode        string    `json:"productCode"`
	ProductDescription string    `json:"productDescription"`
	Quantity           int       `json:"quantity"`
}

func FromProduct(p domain.Product) Product {
	return Product{
		ID:             p.ID,
		Code:           p.Code,
		Description:    p.Description,
		Stock:          p.Stock,
		ReservedStock:  p.Reserved,
		AvailableStock: p.Available(),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func FromReservation(r domain.Reservation) Reservation {
	out := Reservation{
		ID:          r.ID,
		InvoiceID:   r.InvoiceID,
		Status:      string(r.Status()),
		CreatedAt:   r.CreatedAt,
		ConfirmedAt: r.ConfirmedAt,
		CancelledAt: r.CancelledAt,
		Items:       make([]ReservationItem, 0, len(r.Items)),
	}
	for _, it := range r.Items {
		out.Items = append(out.Items, ReservationItem{
			ProductID:          it.ProductID,
			ProductCode:        it.ProductCode,
			ProductDescription: it.ProductDescription,
			Quantity:           it.Quantity,
		})
	}
	return out
}

func ToItemRequests(items []Item) []domain.ItemRequest {
	out := make([]domain.ItemRequest, 0, len(items))
	for _, it := range items {
		out = append(out, domain.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}
