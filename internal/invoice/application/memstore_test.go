package application

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/outbox"
)

// memStore serialises transactions behind one mutex and rolls back on error.
// conflicts makes the next InsertKey calls fail as a lost race would;
// onConflict then runs after the rollback to play the winning transaction.
type memStore struct {
	mu         sync.Mutex
	invoices   map[uuid.UUID]domain.Invoice
	keys       map[string]domain.IdempotencyKey
	events     []outbox.Event
	number     int64
	conflicts  int
	onConflict func(m *memStore)
	txs        int
}

func newMemStore() *memStore {
	return &memStore{
		invoices: map[uuid.UUID]domain.Invoice{},
		keys:     map[string]domain.IdempotencyKey{},
	}
}

func (m *memStore) InTx(ctx context.Context, _ Isolation, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs++
	invoices := make(map[uuid.UUID]domain.Invoice, len(m.invoices))
	for k, v := range m.invoices {
		invoices[k] = cloneInvoice(v)
	}
	keys := make(map[string]domain.IdempotencyKey, len(m.keys))
	for k, v := range m.keys {
		keys[k] = v
	}
	events := append([]outbox.Event(nil), m.events...)
	number := m.number

	conflict := false
	err := fn(ctx, memTx{m: m, conflict: &conflict})
	if err != nil {
		m.invoices, m.keys, m.events, m.number = invoices, keys, events, number
		if conflict && m.onConflict != nil {
			m.onConflict(m)
		}
	}
	return err
}

func cloneInvoice(inv domain.Invoice) domain.Invoice {
	items := make([]domain.Item, len(inv.Items))
	for i, it := range inv.Items {
		if it.ReservationID != nil {
			rid := *it.ReservationID
			it.ReservationID = &rid
		}
		items[i] = it
	}
	inv.Items = items
	return inv
}

func (m *memStore) invoiceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invoices)
}

func (m *memStore) keyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

func (m *memStore) outbox() []outbox.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]outbox.Event(nil), m.events...)
}

func (m *memStore) invoice(id uuid.UUID) (domain.Invoice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	return cloneInvoice(inv), ok
}

// put stores inv as committed, assigning a number.
func (m *memStore) put(inv domain.Invoice) domain.Invoice {
	m.number++
	inv.Number = m.number
	m.invoices[inv.ID] = cloneInvoice(inv)
	return inv
}

type memTx struct {
	m        *memStore
	conflict *bool
}

func (t memTx) FindKey(_ context.Context, key string) (domain.IdempotencyKey, error) {
	k, ok := t.m.keys[key]
	if !ok {
		return domain.IdempotencyKey{}, ErrNotFound
	}
	return k, nil
}

func (t memTx) InsertKey(_ context.Context, k domain.IdempotencyKey) error {
	if t.m.conflicts > 0 {
		t.m.conflicts--
		*t.conflict = true
		return ErrConflict
	}
	if _, ok := t.m.keys[k.Key]; ok {
		return ErrConflict
	}
	t.m.keys[k.Key] = k
	return nil
}

func (t memTx) DeleteKey(_ context.Context, key string) error {
	delete(t.m.keys, key)
	return nil
}

func (t memTx) DeleteKeysForInvoice(_ context.Context, invoiceID uuid.UUID) ([]string, error) {
	var out []string
	for key, k := range t.m.keys {
		if k.InvoiceID == invoiceID {
			out = append(out, key)
			delete(t.m.keys, key)
		}
	}
	return out, nil
}

func (t memTx) InsertInvoice(_ context.Context, inv *domain.Invoice) error {
	*inv = t.m.put(*inv)
	return nil
}

func (t memTx) GetInvoice(_ context.Context, id uuid.UUID, _ bool) (domain.Invoice, error) {
	inv, ok := t.m.invoices[id]
	if !ok {
		return domain.Invoice{}, ErrNotFound
	}
	return cloneInvoice(inv), nil
}

func (t memTx) ListInvoices(_ context.Context, f domain.Filter) ([]domain.Invoice, error) {
	var out []domain.Invoice
	for _, inv := range t.m.invoices {
		if f.Match(inv) {
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}

func (t memTx) UpdateInvoiceState(_ context.Context, inv domain.Invoice) error {
	stored, ok := t.m.invoices[inv.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Status, stored.PrintedAt = inv.Status, inv.PrintedAt
	stored.Cancelled, stored.CancelledAt = inv.Cancelled, inv.CancelledAt
	t.m.invoices[inv.ID] = stored
	return nil
}

func (t memTx) UpdateItems(_ context.Context, inv domain.Invoice) error {
	stored, ok := t.m.invoices[inv.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Items = cloneInvoice(inv).Items
	t.m.invoices[inv.ID] = stored
	return nil
}

func (t memTx) DeleteInvoice(_ context.Context, id uuid.UUID) error {
	delete(t.m.invoices, id)
	return nil
}

func (t memTx) Enqueue(_ context.Context, e outbox.Event) error {
	t.m.events = append(t.m.events, e)
	return nil
}
