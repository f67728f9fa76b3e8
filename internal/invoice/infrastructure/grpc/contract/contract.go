// Package contract holds the request and response bodies of the invoice
// gRPC service.
package contract

import (
	"time"

	"github.com/google/uuid"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/rpc"
)

const Service = "invoicing.invoice.v1.Invoices"

var (
	MethodCreateInvoice = rpc.Method(Service, "CreateInvoice")
	MethodDeleteInvoice = rpc.Method(Service, "DeleteInvoice")
	MethodPrintInvoice  = rpc.Method(Service, "PrintInvoice")
	MethodGetInvoice    = rpc.Method(Service, "GetInvoice")
	MethodListInvoices  = rpc.Method(Service, "ListInvoices")
)

type Line struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

type CreateInvoiceRequest struct {
	Items          []Line `json:"items"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// DeleteInvoiceRequest with Compensation set undoes an invoice whose
// reservation could not be made.
type DeleteInvoiceRequest struct {
	ID           uuid.UUID `json:"id"`
	Compensation bool      `json:"compensation,omitempty"`
}

type InvoiceIDRequest struct {
	ID uuid.UUID `json:"id"`
}

type ListInvoicesRequest struct {
	Status           string     `json:"status,omitempty"`
	IncludeCancelled bool       `json:"includeCancelled,omitempty"`
	CreatedFrom      *time.Time `json:"createdFrom,omitempty"`
	CreatedTo        *time.Time `json:"createdTo,omitempty"`
}

type Invoice struct {
	ID          uuid.UUID  `json:"id"`
	Number      int64      `json:"invoiceNumber"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	PrintedAt   *time.Time `json:"printedAt,omitempty"`
	Cancelled   bool       `json:"cancelled"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	Items       []Item     `json:"items"`
}

type Item struct {
	ID                 uuid.UUID  `json:"id"`
	ProductID          uuid.UUID  `json:"productId"`
	ProductCode        string     `json:"productCode"`
	ProductDescription string     `json:"productDescription"`
	Quantity           int        `json:"quantity"`
	ReservationID      *uuid.UUID `json:"reservationId,omitempty"`
}

func FromInvoice(inv domain.Invoice) Invoice {
	out := Invoice{
		ID:          inv.ID,
		Number:      inv.Number,
		Status:      string(inv.Status),
		CreatedAt:   inv.CreatedAt,
		PrintedAt:   inv.PrintedAt,
		Cancelled:   inv.Cancelled,
		CancelledAt: inv.CancelledAt,
		Items:       make([]Item, 0, len(inv.Items)),
	}
	for _, it := range inv.Items {
		out.Items = append(out.Items, Item(it))
	}
	return out
}

func ToLines(lines []Line) []domain.LineRequest {
	out := make([]domain.LineRequest, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.LineRequest(l))
	}
	return out
}

func (r ListInvoicesRequest) Filter() domain.Filter {
	f := domain.Filter{
		IncludeCancelled: r.IncludeCancelled,
		CreatedFrom:      r.CreatedFrom,
		CreatedTo:        r.CreatedTo,
	}
	if r.Status != "" {
		s := domain.Status(r.Status)
		f.Status = &s
	}
	return f
}
