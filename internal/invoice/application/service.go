package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/outbox"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
)

type Options struct {
	IdempotencyTTL time.Duration
	// RaceBackoff is how long a caller that lost an idempotency-key race
	// waits before reading the winner's invoice.
	RaceBackoff    time.Duration
	ConfirmTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		IdempotencyTTL: 24 * time.Hour,
		RaceBackoff:    100 * time.Millisecond,
		ConfirmTimeout: 45 * time.Second,
	}
}

type Service struct {
	log       *slog.Logger
	store     Store
	inventory InventoryClient
	cache     KeyCache
	obs       Observer
	opts      Options
	now       func() time.Time
}

// NewService wires the invoice lifecycle. cache and obs may be nil.
func NewService(log *slog.Logger, store Store, inventory InventoryClient, cache KeyCache, obs Observer, opts Options) *Service {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Service{
		log:       log,
		store:     store,
		inventory: inventory,
		cache:     cache,
		obs:       obs,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateInvoice opens a new invoice. With an idempotency key, concurrent and
// repeated calls with the same key resolve to a single invoice.
func (s *Service) CreateInvoice(ctx context.Context, lines []domain.LineRequest, key string) (domain.Invoice, error) {
	inv, err := s.createInvoice(ctx, lines, strings.TrimSpace(key))
	s.obs.Observe("invoice.create", err)
	return inv, err
}

func (s *Service) createInvoice(ctx context.Context, lines []domain.LineRequest, key string) (domain.Invoice, error) {
	if err := domain.ValidateLines(lines); err != nil {
		return domain.Invoice{}, err
	}
	if key == "" {
		return s.insertInvoice(ctx, lines)
	}
	if inv, ok := s.cached(ctx, key); ok {
		return inv, nil
	}

	// A lost race is retried once: serializable transactions may also abort
	// for reasons unrelated to this key, in which case no winner exists.
	for attempt := 1; ; attempt++ {
		inv, created, err := s.createWithKey(ctx, lines, key)
		if err == nil {
			s.remember(ctx, key, inv.ID)
			if created {
				s.log.InfoContext(ctx, "invoice created", "invoice_id", inv.ID, "invoice_number", inv.Number)
			} else {
				s.log.InfoContext(ctx, "duplicate request resolved to existing invoice", "invoice_id", inv.ID)
			}
			return inv, nil
		}
		if !errors.Is(err, ErrConflict) {
			return domain.Invoice{}, err
		}

		s.log.InfoContext(ctx, "idempotency key race lost, waiting for winner", "attempt", attempt)
		select {
		case <-time.After(s.opts.RaceBackoff):
		case <-ctx.Done():
			return domain.Invoice{}, ctx.Err()
		}
		winner, err := s.resolveKey(ctx, key)
		if err == nil {
			s.remember(ctx, key, winner.ID)
			return winner, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return domain.Invoice{}, err
		}
		if attempt == 2 {
			return domain.Invoice{}, result.New(result.DuplicateRequest, "a request with this idempotency key is still being processed")
		}
	}
}

func (s *Service) insertInvoice(ctx context.Context, lines []domain.LineRequest) (domain.Invoice, error) {
	inv := domain.NewInvoice(uuid.New(), lines, s.now())
	err := s.store.InTx(ctx, ReadCommitted, func(ctx context.Context, tx Tx) error {
		return tx.InsertInvoice(ctx, &inv)
	})
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}
	s.log.InfoContext(ctx, "invoice created", "invoice_id", inv.ID, "invoice_number", inv.Number)
	return inv, nil
}

// createWithKey registers key and creates its invoice in one serializable
// transaction. The key row is written before the invoice, so a concurrent
// caller with the same key fails on the key and never creates an invoice.
func (s *Service) createWithKey(ctx context.Context, lines []domain.LineRequest, key string) (domain.Invoice, bool, error) {
	var out domain.Invoice
	created := false
	err := s.store.InTx(ctx, Serializable, func(ctx context.Context, tx Tx) error {
		now := s.now()
		existing, err := tx.FindKey(ctx, key)
		switch {
		case err == nil:
			if !existing.Expired(now) {
				inv, err := tx.GetInvoice(ctx, existing.InvoiceID, false)
				if err == nil {
					out = inv
					return nil
				}
				if !errors.Is(err, ErrNotFound) {
					return err
				}
			}
			if err := tx.DeleteKey(ctx, key); err != nil {
				return err
			}
		case !errors.Is(err, ErrNotFound):
			return err
		}

		id := uuid.New()
		if err := tx.InsertKey(ctx, domain.NewIdempotencyKey(key, id, now, s.opts.IdempotencyTTL)); err != nil {
			return err
		}
		inv := domain.NewInvoice(id, lines, now)
		if err := tx.InsertInvoice(ctx, &inv); err != nil {
			return err
		}
		out, created = inv, true
		return nil
	})
	return out, created, err
}

func (s *Service) resolveKey(ctx context.Context, key string) (domain.Invoice, error) {
	var out domain.Invoice
	err := s.store.InTx(ctx, ReadCommitted, func(ctx context.Context, tx Tx) error {
		k, err := tx.FindKey(ctx, key)
		if err != nil {
			return err
		}
		out, err = tx.GetInvoice(ctx, k.InvoiceID, false)
		return err
	})
	return out, err
}

func (s *Service) cached(ctx context.Context, key string) (domain.Invoice, bool) {
	if s.cache == nil {
		return domain.Invoice{}, false
	}
	raw, ok, err := s.cache.Lookup(ctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "idempotency cache lookup failed", "err", err)
		return domain.Invoice{}, false
	}
	if !ok {
		return domain.Invoice{}, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		_ = s.cache.Forget(ctx, key)
		return domain.Invoice{}, false
	}
	inv, err := s.load(ctx, id)
	if err != nil {
		_ = s.cache.Forget(ctx, key)
		return domain.Invoice{}, false
	}
	return inv, true
}

func (s *Service) remember(ctx context.Context, key string, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Remember(ctx, key, id.String()); err != nil {
		s.log.WarnContext(ctx, "idempotency cache write failed", "err", err)
	}
}

func (s *Service) forget(ctx context.Context, keys []string) {
	if s.cache == nil {
		return
	}
	for _, k := range keys {
		if err := s.cache.Forget(ctx, k); err != nil {
			s.log.WarnContext(ctx, "idempotency cache delete failed", "err", err)
		}
	}
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (domain.Invoice, error) {
	var inv domain.Invoice
	err := s.store.InTx(ctx, ReadCommitted, func(ctx context.Context, tx Tx) error {
		var err error
		inv, err = tx.GetInvoice(ctx, id, false)
		return err
	})
	return inv, err
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (domain.Invoice, error) {
	inv, err := s.load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return inv, result.New(result.NotFound, "invoice %s not found", id)
	}
	return inv, err
}

func (s *Service) ListInvoices(ctx context.Context, f domain.Filter) ([]domain.Invoice, error) {
	var out []domain.Invoice
	err := s.store.InTx(ctx, ReadCommitted, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.ListInvoices(ctx, f)
		return err
	})
	return out, err
}

// PrintInvoice confirms the invoice's reservation, which debits stock, and
// then closes the invoice.
func (s *Service) PrintInvoice(ctx context.Context, id uuid.UUID) (domain.Invoice, error) {
	inv, err := s.printInvoice(ctx, id)
	s.obs.Observe("invoice.print", err)
	return inv, err
}

func (s *Service) printInvoice(ctx context.Context, id uuid.UUID) (domain.Invoice, error) {
	inv, err := s.GetInvoice(ctx, id)
	if err != nil {
		return inv, err
	}
	reservationID, err := inv.Printable()
	if err != nil {
		return inv, err
	}

	confirmCtx, cancel := context.WithTimeout(ctx, s.opts.ConfirmTimeout)
	defer cancel()
	if err := s.inventory.ConfirmReservation(confirmCtx, reservationID); err != nil {
		if _, ok := result.AsError(err); ok {
			return domain.Invoice{}, err
		}
		return domain.Invoice{}, result.Wrap(result.InternalError, "inventory service is unavailable", err)
	}

	err = s.store.InTx(ctx, ReadCommitted, func(ctx context.Context, tx Tx) error {
		var err error
		if inv, err = tx.GetInvoice(ctx, id, true); err != nil {
			return err
		}
		if err := inv.Close(s.now()); err != nil {
			return err
		}
		return tx.UpdateInvoiceState(ctx, inv)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = result.New(result.NotFound, "invoice %s not found", id)
		}
		s.log.ErrorContext(ctx, "reservation confirmed but invoice not closed", "invoice_id", id, "reservation_id", reservationID, "err", err)
		return domain.Invoice{}, err
	}
	s.log.InfoContext(ctx, "invoice printed", "invoice_id", inv.ID, "invoice_number", inv.Number, "reservation_id", reservationID)
	return inv, nil
}

// DeleteInvoice cancels an Open invoice and queues the cancellation event in
// the same transaction. A compensating delete of an invoice that never got a
// reservation removes it together with its idempotency key, so the client
// can retry with the same key.
func (s *Service) DeleteInvoice(ctx context.Context, id uuid.UUID, compensation bool) error {
	var removedKeys []string
	removed := false
	err := s.store.InTx(ctx, ReadCommitted, func(ctx context.Context, tx Tx) error {
		inv, err := tx.GetInvoice(ctx, id, true)
		if errors.Is(err, ErrNotFound) {
			return result.New(result.NotFound, "invoice %s not found", id)
		}
		if err != nil {
			return err
		}
		if err := inv.Cancel(s.now()); err != nil {
			return err
		}

		if _, reserved := inv.ReservationID(); compensation && !reserved {
			if removedKeys, err = tx.DeleteKeysForInvoice(ctx, id); err != nil {
				return err
			}
			if err := tx.DeleteInvoice(ctx, id); err != nil {
				return err
			}
			removed = true
		} else if err := tx.UpdateInvoiceState(ctx, inv); err != nil {
			return err
		}

		ev, err := outbox.NewEvent(ctx, "invoice", id.String(), domain.EventInvoiceCancelled, inv.CancelledEvent())
		if err != nil {
			return err
		}
		return tx.Enqueue(ctx, ev)
	})
	s.obs.Observe("invoice.delete", err)
	if err != nil {
		return err
	}
	s.forget(ctx, removedKeys)
	s.log.InfoContext(ctx, "invoice cancelled", "invoice_id", id, "compensation", compensation, "removed", removed)
	return nil
}

// UpdateSnapshot records reserved product data on the invoice items. It has
// no caller to answer, so a missing invoice is only logged.
func (s *Service) UpdateSnapshot(ctx context.Context, req domain.UpdateInvoiceSnapshotRequest) error {
	log := s.log.With("invoice_id", req.InvoiceID, "reservation_id", req.ReservationID)
	changed := 0
	err := s.store.InTx(ctx, ReadCommitted, func(ctx context.Context, tx Tx) error {
		inv, err := tx.GetInvoice(ctx, req.InvoiceID, true)
		if err != nil {
			return err
		}
		if changed = inv.ApplySnapshot(req); changed == 0 {
			return nil
		}
		return tx.UpdateItems(ctx, inv)
	})
	s.obs.Observe("invoice.snapshot", err)
	switch {
	case errors.Is(err, ErrNotFound):
		log.WarnContext(ctx, "snapshot for missing invoice dropped")
		return nil
	case err != nil:
		return err
	case changed == 0:
		log.InfoContext(ctx, "snapshot already applied")
	default:
		log.InfoContext(ctx, "invoice snapshot updated", "items", changed)
	}
	return nil
}
