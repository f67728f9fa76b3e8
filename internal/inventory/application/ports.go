package application

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/outbox"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is a unique-constraint violation.
	ErrConflict = errors.New("conflict")
)

// Store runs fn in one transaction; any error from fn rolls it back.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	CreateProduct(ctx context.Context, p domain.Product) error
	// GetProduct returns the product with its pending reserved quantity.
	// forUpdate locks the row before the quantity is summed.
	GetProduct(ctx context.Context, id uuid.UUID, forUpdate bool) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	HasReservationItems(ctx context.Context, productID uuid.UUID) (bool, error)
	// LockProducts locks the existing rows among ids in ascending id order and
	// returns them keyed by id, reserved quantities included.
	LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Product, error)
	// DebitStock subtracts qty unless that would make stock negative, in which
	// case it reports false and changes nothing.
	DebitStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error)

	InsertReservation(ctx context.Context, r domain.Reservation) error
	// GetReservation loads a reservation with items and product codes.
	GetReservation(ctx context.Context, id uuid.UUID, forUpdate bool) (domain.Reservation, error)
	// ReservationByInvoice prefers a pending reservation and otherwise
	// returns the most recent one.
	ReservationByInvoice(ctx context.Context, invoiceID uuid.UUID, forUpdate bool) (domain.Reservation, error)
	SaveReservationState(ctx context.Context, r domain.Reservation) error

	Enqueue(ctx context.Context, e outbox.Event) error
}

// Observer records operation outcomes.
type Observer interface {
	Observe(operation string, err error)
}

type nopObserver struct{}

func (nopObserver) Observe(string, error) {}
