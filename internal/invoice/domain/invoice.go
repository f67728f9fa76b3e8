package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
)

type Status string

const (
	StatusOpen   Status = "Open"
	StatusClosed Status = "Closed"
)

type Invoice struct {
	ID          uuid.UUID  `json:"id"`
	Number      int64      `json:"invoiceNumber"`
	Status      Status     `json:"status"`
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

type LineRequest struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// NewInvoice builds an Open invoice. The number is assigned by the store.
func NewInvoice(id uuid.UUID, lines []LineRequest, now time.Time) Invoice {
	inv := Invoice{
		ID:        id,
		Status:    StatusOpen,
		CreatedAt: now,
		Items:     make([]Item, 0, len(lines)),
	}
	for _, l := range lines {
		inv.Items = append(inv.Items, Item{ID: uuid.New(), ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return inv
}

func ValidateLines(lines []LineRequest) error {
	if len(lines) == 0 {
		return result.New(result.ValidationError, "an invoice needs at least one item")
	}
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, l := range lines {
		if l.ProductID == uuid.Nil {
			return result.New(result.ValidationError, "product id is required")
		}
		if l.Quantity <= 0 {
			return result.New(result.ValidationError, "quantity for product %s must be positive", l.ProductID)
		}
		if _, dup := seen[l.ProductID]; dup {
			return result.New(result.ValidationError, "product %s appears more than once", l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
	}
	return nil
}

// ReservationID returns the reservation attached to the invoice, if any.
func (i Invoice) ReservationID() (uuid.UUID, bool) {
	for _, it := range i.Items {
		if it.ReservationID != nil {
			return *it.ReservationID, true
		}
	}
	return uuid.Nil, false
}

// Printable returns the reservation to confirm before the invoice can close.
func (i Invoice) Printable() (uuid.UUID, error) {
	if i.Status == StatusClosed {
		return uuid.Nil, result.New(result.InvalidRequest, "invoice %d is already printed", i.Number)
	}
	if i.Cancelled {
		return uuid.Nil, result.New(result.InvalidRequest, "invoice %d is cancelled", i.Number)
	}
	id, ok := i.ReservationID()
	if !ok {
		return uuid.Nil, result.New(result.InvalidRequest, "invoice %d has no stock reservation", i.Number)
	}
	return id, nil
}

func (i *Invoice) Close(now time.Time) error {
	if _, err := i.Printable(); err != nil {
		return err
	}
	i.Status = StatusClosed
	i.PrintedAt = &now
	return nil
}

func (i *Invoice) Cancel(now time.Time) error {
	if i.Status == StatusClosed {
		return result.New(result.InvalidRequest, "cannot cancel a printed invoice")
	}
	if i.Cancelled {
		return result.New(result.InvalidRequest, "invoice %d is already cancelled", i.Number)
	}
	i.Cancelled = true
	i.CancelledAt = &now
	return nil
}

// ApplySnapshot copies product data and the reservation id onto matching
// items. Fields already written are left alone; the number of items that
// changed is returned.
func (i *Invoice) ApplySnapshot(req UpdateInvoiceSnapshotRequest) int {
	byProduct := make(map[uuid.UUID]SnapshotItem, len(req.Items))
	for _, s := range req.Items {
		byProduct[s.ProductID] = s
	}
	changed := 0
	for idx := range i.Items {
		it := &i.Items[idx]
		s, ok := byProduct[it.ProductID]
		if !ok {
			continue
		}
		touched := false
		if it.ProductCode == "" && it.ProductDescription == "" {
			it.ProductCode = s.ProductCode
			it.ProductDescription = s.ProductDescription
			touched = true
		}
		if it.ReservationID == nil && req.ReservationID != uuid.Nil {
			rid := req.ReservationID
			it.ReservationID = &rid
			touched = true
		}
		if touched {
			changed++
		}
	}
	return changed
}

func (i Invoice) CancelledEvent() InvoiceCancelledEvent {
	ev := InvoiceCancelledEvent{
		InvoiceID:     i.ID,
		InvoiceNumber: i.Number,
		Items:         make([]CancelledItem, 0, len(i.Items)),
	}
	if i.CancelledAt != nil {
		ev.CancelledAt = *i.CancelledAt
	}
	for _, it := range i.Items {
		ev.Items = append(ev.Items, CancelledItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return ev
}

type IdempotencyKey struct {
	ID        uuid.UUID
	Key       string
	InvoiceID uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

func NewIdempotencyKey(key string, invoiceID uuid.UUID, now time.Time, ttl time.Duration) IdempotencyKey {
	return IdempotencyKey{ID: uuid.New(), Key: key, InvoiceID: invoiceID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

func (k IdempotencyKey) Expired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}

// Filter narrows invoice listings. Cancelled invoices are hidden unless
// IncludeCancelled is set.
type Filter struct {
	Status           *Status    `json:"status,omitempty"`
	IncludeCancelled bool       `json:"includeCancelled"`
	CreatedFrom      *time.Time `json:"createdFrom,omitempty"`
	CreatedTo        *time.Time `json:"createdTo,omitempty"`
}

func (f Filter) Match(i Invoice) bool {
	if i.Cancelled && !f.IncludeCancelled {
		return false
	}
	if f.Status != nil && i.Status != *f.Status {
		return false
	}
	if f.CreatedFrom != nil && i.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && i.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}
