package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventInvoiceCancelled = "InvoiceCancelled"
	EventSnapshotUpdate   = "UpdateInvoiceSnapshot"
)

type InvoiceCancelledEvent struct {
	InvoiceID     uuid.UUID       `json:"invoiceId"`
	InvoiceNumber int64           `json:"invoiceNumber"`
	CancelledAt   time.Time       `json:"cancelledAt"`
	Items         []CancelledItem `json:"items"`
}

type CancelledItem struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// UpdateInvoiceSnapshotRequest is published once a reservation exists for an
// invoice, so that its items record what was reserved.
type UpdateInvoiceSnapshotRequest struct {
	InvoiceID     uuid.UUID      `json:"invoiceId"`
	ReservationID uuid.UUID      `json:"reservationId"`
	Items         []SnapshotItem `json:"items"`
}

type SnapshotItem struct {
	ProductID          uuid.UUID `json:"productId"`
	ProductCode        string    `json:"productCode"`
	ProductDescription string    `json:"productDescription"`
}
