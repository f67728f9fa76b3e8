package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"

	inventory "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/infrastructure/grpc/contract"
	invoice "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/infrastructure/grpc/contract"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/rpc"
)

type InvoiceClient struct {
	cc           grpc.ClientConnInterface
	timeout      time.Duration
	printTimeout time.Duration
}

func NewInvoiceClient(cc grpc.ClientConnInterface, timeout, printTimeout time.Duration) *InvoiceClient {
	return &InvoiceClient{cc: cc, timeout: timeout, printTimeout: printTimeout}
}

func (c *InvoiceClient) CreateInvoice(ctx context.Context, req invoice.CreateInvoiceRequest) (invoice.Invoice, error) {
	return rpc.Call[invoice.CreateInvoiceRequest, invoice.Invoice](ctx, c.cc, invoice.MethodCreateInvoice, c.timeout, &req)
}

func (c *InvoiceClient) DeleteInvoice(ctx context.Context, req invoice.DeleteInvoiceRequest) error {
	_, err := rpc.Call[invoice.DeleteInvoiceRequest, result.Empty](ctx, c.cc, invoice.MethodDeleteInvoice, c.timeout, &req)
	return err
}

// PrintInvoice waits longer than other calls: the invoice service debits
// stock synchronously before answering.
func (c *InvoiceClient) PrintInvoice(ctx context.Context, req invoice.InvoiceIDRequest) (invoice.Invoice, error) {
	return rpc.Call[invoice.InvoiceIDRequest, invoice.Invoice](ctx, c.cc, invoice.MethodPrintInvoice, c.printTimeout, &req)
}

func (c *InvoiceClient) GetInvoice(ctx context.Context, req invoice.InvoiceIDRequest) (invoice.Invoice, error) {
	return rpc.Call[invoice.InvoiceIDRequest, invoice.Invoice](ctx, c.cc, invoice.MethodGetInvoice, c.timeout, &req)
}

func (c *InvoiceClient) ListInvoices(ctx context.Context, req invoice.ListInvoicesRequest) ([]invoice.Invoice, error) {
	return rpc.Call[invoice.ListInvoicesRequest, []invoice.Invoice](ctx, c.cc, invoice.MethodListInvoices, c.timeout, &req)
}

type InventoryClient struct {
	cc      grpc.ClientConnInterface
	timeout time.Duration
}

func NewInventoryClient(cc grpc.ClientConnInterface, timeout time.Duration) *InventoryClient {
	return &InventoryClient{cc: cc, timeout: timeout}
}

func (c *InventoryClient) CreateReservation(ctx context.Context, req inventory.CreateReservationRequest) (inventory.Reservation, error) {
	return rpc.Call[inventory.CreateReservationRequest, inventory.Reservation](ctx, c.cc, inventory.MethodCreateReservation, c.timeout, &req)
}

func (c *InventoryClient) GetReservation(ctx context.Context, req inventory.ReservationIDRequest) (inventory.Reservation, error) {
	return rpc.Call[inventory.ReservationIDRequest, inventory.Reservation](ctx, c.cc, inventory.MethodGetReservation, c.timeout, &req)
}

func (c *InventoryClient) ConfirmReservation(ctx context.Context, req inventory.ReservationIDRequest) (inventory.Reservation, error) {
	return rpc.Call[inventory.ReservationIDRequest, inventory.Reservation](ctx, c.cc, inventory.MethodConfirmReservation, c.timeout, &req)
}

func (c *InventoryClient) CancelReservation(ctx context.Context, req inventory.CancelReservationRequest) (inventory.Reservation, error) {
	return rpc.Call[inventory.CancelReservationRequest, inventory.Reservation](ctx, c.cc, inventory.MethodCancelReservation, c.timeout, &req)
}

func (c *InventoryClient) CreateProduct(ctx context.Context, req inventory.CreateProductRequest) (inventory.Product, error) {
	return rpc.Call[inventory.CreateProductRequest, inventory.Product](ctx, c.cc, inventory.MethodCreateProduct, c.timeout, &req)
}

func (c *InventoryClient) UpdateProduct(ctx context.Context, req inventory.UpdateProductRequest) (inventory.Product, error) {
	return rpc.Call[inventory.UpdateProductRequest, inventory.Product](ctx, c.cc, inventory.MethodUpdateProduct, c.timeout, &req)
}

func (c *InventoryClient) DeleteProduct(ctx context.Context, req inventory.ProductIDRequest) error {
	_, err := rpc.Call[inventory.ProductIDRequest, result.Empty](ctx, c.cc, inventory.MethodDeleteProduct, c.timeout, &req)
	return err
}

func (c *InventoryClient) GetProducts(ctx context.Context, req inventory.ListProductsRequest) ([]inventory.Product, error) {
	return rpc.Call[inventory.ListProductsRequest, []inventory.Product](ctx, c.cc, inventory.MethodGetProducts, c.timeout, &req)
}

func (c *InventoryClient) GetProduct(ctx context.Context, req inventory.ProductIDRequest) (inventory.Product, error) {
	return rpc.Call[inventory.ProductIDRequest, inventory.Product](ctx, c.cc, inventory.MethodGetProduct, c.timeout, &req)
}

func (c *InventoryClient) GetAvailableStock(ctx context.Context, req inventory.ProductIDRequest) (inventory.AvailableStock, error) {
	return rpc.Call[inventory.ProductIDRequest, inventory.AvailableStock](ctx, c.cc, inventory.MethodGetAvailableStock, c.timeout, &req)
}
