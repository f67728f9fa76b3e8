package application

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/outbox"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means a concurrent transaction won: a unique violation or
	// a serialization failure.
	ErrConflict = errors.New("conflict")
)

type Isolation int

const (
	ReadCommitted Isolation = iota
	Serializable
)

type Store interface {
	InTx(ctx context.Context, iso Isolation, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	FindKey(ctx context.Context, key string) (domain.IdempotencyKey, error)
	InsertKey(ctx context.Context, k domain.IdempotencyKey) error
	DeleteKey(ctx context.Context, key string) error
	// DeleteKeysForInvoice removes every key bound to the invoice and returns them.
	DeleteKeysForInvoice(ctx context.Context, invoiceID uuid.UUID) ([]string, error)

	// InsertInvoice stores inv with its items and assigns inv.Number.
	InsertInvoice(ctx context.Context, inv *domain.Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID, forUpdate bool) (domain.Invoice, error)
	ListInvoices(ctx context.Context, f domain.Filter) ([]domain.Invoice, error)
	UpdateInvoiceState(ctx context.Context, inv domain.Invoice) error
	UpdateItems(ctx context.Context, inv domain.Invoice) error
	DeleteInvoice(ctx context.Context, id uuid.UUID) error

	Enqueue(ctx context.Context, e outbox.Event) error
}

// InventoryClient confirms reservations on the inventory service. Business
// failures come back as *result.Error.
type InventoryClient interface {
	ConfirmReservation(ctx context.Context, reservationID uuid.UUID) error
}

// KeyCache is a best-effort cache of idempotency-key resolutions.
type KeyCache interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Remember(ctx context.Context, key, value string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type Observer interface {
	Observe(operation string, err error)
}

type nopObserver struct{}

func (nopObserver) Observe(string, error) {}
