package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/domain"
	invoicedomain "github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/outbox"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
)

type Service struct {
	log   *slog.Logger
	store Store
	obs   Observer
	now   func() time.Time
}

func NewService(log *slog.Logger, store Store, obs Observer) *Service {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Service{log: log, store: store, obs: obs, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) CreateProduct(ctx context.Context, code, description string, stock int) (domain.Product, error) {
	p, err := domain.NewProduct(code, description, stock, s.now())
	if err != nil {
		return domain.Product{}, err
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.CreateProduct(ctx, p); err != nil {
			if errors.Is(err, ErrConflict) {
				return result.New(result.DuplicateCode, "a product with code %s already exists", p.Code)
			}
			return fmt.Errorf("create product: %w", err)
		}
		return nil
	})
	s.obs.Observe("product.create", err)
	if err != nil {
		return domain.Product{}, err
	}
	s.log.InfoContext(ctx, "product created", "product_id", p.ID, "code", p.Code)
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, patch domain.ProductPatch) (domain.Product, error) {
	var p domain.Product
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if p, err = s.product(ctx, tx, id, true); err != nil {
			return err
		}
		if err := p.Apply(patch, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateProduct(ctx, p); err != nil {
			if errors.Is(err, ErrConflict) {
				return result.New(result.DuplicateCode, "a product with code %s already exists", p.Code)
			}
			return fmt.Errorf("update product: %w", err)
		}
		return nil
	})
	s.obs.Observe("product.update", err)
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := s.product(ctx, tx, id, true); err != nil {
			return err
		}
		used, err := tx.HasReservationItems(ctx, id)
		if err != nil {
			return fmt.Errorf("check reservations: %w", err)
		}
		if used {
			return result.New(result.HasReservations, "product %s is referenced by reservations", id)
		}
		return tx.DeleteProduct(ctx, id)
	})
	s.obs.Observe("product.delete", err)
	return err
}

func (s *Service) GetProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.ListProducts(ctx)
		return err
	})
	return out, err
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (domain.Product, error) {
	var p domain.Product
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		p, err = s.product(ctx, tx, id, false)
		return err
	})
	return p, err
}

func (s *Service) AvailableStock(ctx context.Context, id uuid.UUID) (int, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.Available(), nil
}

func (s *Service) product(ctx context.Context, tx Tx, id uuid.UUID, forUpdate bool) (domain.Product, error) {
	p, err := tx.GetProduct(ctx, id, forUpdate)
	if errors.Is(err, ErrNotFound) {
		return p, result.New(result.ProductNotFound, "product %s not found", id)
	}
	return p, err
}

// CreateReservation reserves every item or nothing. The snapshot update for
// the invoice is queued in the same transaction as the reservation.
func (s *Service) CreateReservation(ctx context.Context, invoiceID uuid.UUID, items []domain.ItemRequest) (domain.Reservation, error) {
	if invoiceID == uuid.Nil {
		return domain.Reservation{}, result.New(result.ValidationError, "invoice id is required")
	}
	if err := domain.ValidateItems(items); err != nil {
		return domain.Reservation{}, err
	}

	r := domain.NewReservation(invoiceID, items, s.now())
	replayed := false
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		ids := make([]uuid.UUID, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ProductID)
		}
		slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })

		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}

		// A retried saga asks again for the same invoice; hand back the live
		// reservation instead of reserving twice. A cancelled one means the
		// invoice was cancelled and its release event already consumed.
		existing, err := tx.ReservationByInvoice(ctx, invoiceID, true)
		switch {
		case err == nil && existing.Cancelled:
			return result.New(result.AlreadyCancelled, "reservation for invoice %s was cancelled", invoiceID)
		case err == nil:
			r, replayed = existing, true
			return nil
		case !errors.Is(err, ErrNotFound):
			return err
		}

		var shortfalls []domain.Shortfall
		for i, it := range items {
			p, ok := products[it.ProductID]
			if !ok {
				return result.New(result.ProductNotFound, "product %s not found", it.ProductID)
			}
			if p.Available() < it.Quantity {
				shortfalls = append(shortfalls, domain.Shortfall{Code: p.Code, Available: p.Available(), Requested: it.Quantity})
			}
			r.Items[i].ProductCode = p.Code
			r.Items[i].ProductDescription = p.Description
		}
		if len(shortfalls) > 0 {
			return domain.InsufficientStock(shortfalls)
		}

		if err := tx.InsertReservation(ctx, r); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		ev, err := outbox.NewEvent(ctx, "invoice", invoiceID.String(), invoicedomain.EventSnapshotUpdate, snapshotOf(r))
		if err != nil {
			return err
		}
		return tx.Enqueue(ctx, ev)
	})
	s.obs.Observe("reservation.create", err)
	if err != nil {
		return domain.Reservation{}, err
	}
	if replayed {
		s.log.InfoContext(ctx, "reservation already exists for invoice", "reservation_id", r.ID, "invoice_id", invoiceID)
		return r, nil
	}
	s.log.InfoContext(ctx, "reservation created", "reservation_id", r.ID, "invoice_id", invoiceID, "items", len(r.Items))
	return r, nil
}

func snapshotOf(r domain.Reservation) invoicedomain.UpdateInvoiceSnapshotRequest {
	req := invoicedomain.UpdateInvoiceSnapshotRequest{
		InvoiceID:     r.InvoiceID,
		ReservationID: r.ID,
		Items:         make([]invoicedomain.SnapshotItem, 0, len(r.Items)),
	}
	for _, it := range r.Items {
		req.Items = append(req.Items, invoicedomain.SnapshotItem{
			ProductID:          it.ProductID,
			ProductCode:        it.ProductCode,
			ProductDescription: it.ProductDescription,
		})
	}
	return req
}

// ConfirmReservation debits stock for every item. Confirming twice returns
// the confirmed reservation without debiting again.
func (s *Service) ConfirmReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	var r domain.Reservation
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if r, err = s.reservation(ctx, tx, id); err != nil {
			return err
		}
		changed, err := r.Confirm(s.now())
		if err != nil || !changed {
			return err
		}
		for _, it := range r.Items {
			ok, err := tx.DebitStock(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return fmt.Errorf("debit stock: %w", err)
			}
			if !ok {
				return result.New(result.InsufficientStock, "insufficient stock for product %s", it.ProductCode)
			}
		}
		return tx.SaveReservationState(ctx, r)
	})
	s.obs.Observe("reservation.confirm", err)
	if err != nil {
		return domain.Reservation{}, err
	}
	s.log.InfoContext(ctx, "reservation confirmed", "reservation_id", r.ID, "invoice_id", r.InvoiceID)
	return r, nil
}

// CancelTarget selects a reservation by id or, when ReservationID is nil,
// by invoice.
type CancelTarget struct {
	ReservationID uuid.UUID `json:"reservationId"`
	InvoiceID     uuid.UUID `json:"invoiceId"`
}

func (s *Service) CancelReservation(ctx context.Context, target CancelTarget) (domain.Reservation, error) {
	if target.ReservationID == uuid.Nil && target.InvoiceID == uuid.Nil {
		return domain.Reservation{}, result.New(result.ValidationError, "reservation id or invoice id is required")
	}
	var r domain.Reservation
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if target.ReservationID != uuid.Nil {
			r, err = s.reservation(ctx, tx, target.ReservationID)
		} else {
			r, err = s.reservationByInvoice(ctx, tx, target.InvoiceID)
		}
		if err != nil {
			return err
		}
		changed, err := r.Cancel(s.now())
		if err != nil || !changed {
			return err
		}
		return tx.SaveReservationState(ctx, r)
	})
	s.obs.Observe("reservation.cancel", err)
	if err != nil {
		return domain.Reservation{}, err
	}
	s.log.InfoContext(ctx, "reservation cancelled", "reservation_id", r.ID, "invoice_id", r.InvoiceID)
	return r, nil
}

func (s *Service) GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	var r domain.Reservation
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		r, err = tx.GetReservation(ctx, id, false)
		if errors.Is(err, ErrNotFound) {
			return result.New(result.ReservationNotFound, "reservation %s not found", id)
		}
		return err
	})
	return r, err
}

func (s *Service) reservation(ctx context.Context, tx Tx, id uuid.UUID) (domain.Reservation, error) {
	r, err := tx.GetReservation(ctx, id, true)
	if errors.Is(err, ErrNotFound) {
		return r, result.New(result.ReservationNotFound, "reservation %s not found", id)
	}
	return r, err
}

func (s *Service) reservationByInvoice(ctx context.Context, tx Tx, invoiceID uuid.UUID) (domain.Reservation, error) {
	r, err := tx.ReservationByInvoice(ctx, invoiceID, true)
	if errors.Is(err, ErrNotFound) {
		return r, result.New(result.ReservationNotFound, "no reservation for invoice %s", invoiceID)
	}
	return r, err
}

// HandleInvoiceCancelled releases the reservation of a cancelled invoice.
// Redelivery and out-of-order delivery are no-ops; only infrastructure
// failures are returned so that the transport can redeliver.
func (s *Service) HandleInvoiceCancelled(ctx context.Context, ev invoicedomain.InvoiceCancelledEvent) error {
	log := s.log.With("invoice_id", ev.InvoiceID, "invoice_number", ev.InvoiceNumber)
	var outcome string
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := s.reservationByInvoice(ctx, tx, ev.InvoiceID)
		if result.IsCode(err, result.ReservationNotFound) {
			outcome = "absent"
			return nil
		}
		if err != nil {
			return err
		}
		log = log.With("reservation_id", r.ID)
		switch {
		case r.Cancelled:
			outcome = "already_cancelled"
			return nil
		case r.Confirmed:
			outcome = "confirmed"
			return nil
		}
		if _, err := r.Cancel(s.now()); err != nil {
			return err
		}
		outcome = "released"
		return tx.SaveReservationState(ctx, r)
	})
	s.obs.Observe("relay.invoice_cancelled", err)
	if err != nil {
		return err
	}

	switch outcome {
	case "absent":
		log.WarnContext(ctx, "no reservation to release for cancelled invoice")
	case "already_cancelled":
		log.InfoContext(ctx, "reservation already released")
	case "confirmed":
		log.WarnContext(ctx, "cancelled invoice has a confirmed reservation; stock was already debited")
	default:
		log.InfoContext(ctx, "reservation released for cancelled invoice")
	}
	return nil
}
