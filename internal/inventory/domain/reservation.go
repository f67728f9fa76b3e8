package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "Pending"
	StatusConfirmed ReservationStatus = "Confirmada"
	StatusCancelled ReservationStatus = "Cancelada"
)

type Reservation struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	CreatedAt   time.Time
	Confirmed   bool
	ConfirmedAt *time.Time
	Cancelled   bool
	CancelledAt *time.Time
	Items       []ReservationItem
}

type ReservationItem struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	// Resolved from the product when the reservation is read back.
	ProductCode        string
	ProductDescription string
}

type ItemRequest struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

func (r Reservation) Status() ReservationStatus {
	switch {
	case r.Confirmed:
		return StatusConfirmed
	case r.Cancelled:
		return StatusCancelled
	default:
		return StatusPending
	}
}

// Confirm moves a pending reservation to Confirmed. It reports false when the
// reservation was already confirmed.
func (r *Reservation) Confirm(now time.Time) (bool, error) {
	if r.Confirmed {
		return false, nil
	}
	if r.Cancelled {
		return false, result.New(result.AlreadyCancelled, "cannot confirm a cancelled reservation")
	}
	r.Confirmed = true
	r.ConfirmedAt = &now
	return true, nil
}

// Cancel moves a pending reservation to Cancelled. It reports false when the
// reservation was already cancelled.
func (r *Reservation) Cancel(now time.Time) (bool, error) {
	if r.Cancelled {
		return false, nil
	}
	if r.Confirmed {
		return false, result.New(result.AlreadyConfirmed, "cannot cancel a confirmed reservation")
	}
	r.Cancelled = true
	r.CancelledAt = &now
	return true, nil
}

func NewReservation(invoiceID uuid.UUID, items []ItemRequest, now time.Time) Reservation {
	r := Reservation{
		ID:        uuid.New(),
		InvoiceID: invoiceID,
		CreatedAt: now,
		Items:     make([]ReservationItem, 0, len(items)),
	}
	for _, it := range items {
		r.Items = append(r.Items, ReservationItem{ID: uuid.New(), ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return r
}

func ValidateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return result.New(result.ValidationError, "at least one item is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, it := range items {
		if it.ProductID == uuid.Nil {
			return result.New(result.ValidationError, "product id is required")
		}
		if it.Quantity <= 0 {
			return result.New(result.ValidationError, "quantity for product %s must be positive", it.ProductID)
		}
		if _, dup := seen[it.ProductID]; dup {
			return result.New(result.ValidationError, "product %s appears more than once", it.ProductID)
		}
		seen[it.ProductID] = struct{}{}
	}
	return nil
}

// Shortfall is one item a reservation could not cover.
type Shortfall struct {
	Code      string
	Available int
	Requested int
}

func (s Shortfall) String() string {
	return fmt.Sprintf("%s (available: %d, requested: %d)", s.Code, s.Available, s.Requested)
}

func InsufficientStock(shortfalls []Shortfall) error {
	parts := make([]string, 0, len(shortfalls))
	for _, s := range shortfalls {
		parts = append(parts, s.String())
	}
	return result.New(result.InsufficientStock, "insufficient stock for: %s", strings.Join(parts, ", "))
}
