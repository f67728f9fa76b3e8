// Package contract names the gateway's gRPC methods. Bodies are those of the
// inventory and invoice services, so clients share one set of types.
package contract

import (
	invoice "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/infrastructure/grpc/contract"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/rpc"
)

const Service = "invoicing.gateway.v1.Gateway"

var (
	MethodCreateInvoiceWithReservation = rpc.Method(Service, "CreateInvoiceWithReservation")
	MethodPrintInvoice                 = rpc.Method(Service, "PrintInvoice")
	MethodDeleteInvoice                = rpc.Method(Service, "DeleteInvoice")
	MethodGetInvoice                   = rpc.Method(Service, "GetInvoice")
	MethodListInvoices                 = rpc.Method(Service, "ListInvoices")
	MethodCreateProduct                = rpc.Method(Service, "CreateProduct")
	MethodUpdateProduct                = rpc.Method(Service, "UpdateProduct")
	MethodDeleteProduct                = rpc.Method(Service, "DeleteProduct")
	MethodGetProducts                  = rpc.Method(Service, "GetProducts")
	MethodGetProduct                   = rpc.Method(Service, "GetProduct")
	MethodGetAvailableStock            = rpc.Method(Service, "GetAvailableStock")
	MethodGetReservation               = rpc.Method(Service, "GetReservation")
	MethodConfirmReservation           = rpc.Method(Service, "ConfirmReservation")
	MethodCancelReservation            = rpc.Method(Service, "CancelReservation")
)

type CreateInvoiceWithReservationRequest = invoice.CreateInvoiceRequest

// UserDeleteInvoiceRequest is the public delete; compensation is reserved
// for the saga.
type UserDeleteInvoiceRequest = invoice.InvoiceIDRequest
