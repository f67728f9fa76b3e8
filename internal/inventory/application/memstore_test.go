package application

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/outbox"
)

// memStore serialises transactions behind one mutex and restores a snapshot
// when fn fails.
type memStore struct {
	mu           sync.Mutex
	products     map[uuid.UUID]domain.Product
	reservations map[uuid.UUID]domain.Reservation
	seq          map[uuid.UUID]int
	next         int
	events       []outbox.Event
}

func newMemStore() *memStore {
	return &memStore{
		products:     map[uuid.UUID]domain.Product{},
		reservations: map[uuid.UUID]domain.Reservation{},
		seq:          map[uuid.UUID]int{},
	}
}

type memSnapshot struct {
	products     map[uuid.UUID]domain.Product
	reservations map[uuid.UUID]domain.Reservation
	seq          map[uuid.UUID]int
	next         int
	events       []outbox.Event
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		products:     make(map[uuid.UUID]domain.Product, len(m.products)),
		reservations: make(map[uuid.UUID]domain.Reservation, len(m.reservations)),
		seq:          make(map[uuid.UUID]int, len(m.seq)),
		next:         m.next,
		events:       append([]outbox.Event(nil), m.events...),
	}
	for k, v := range m.products {
		s.products[k] = v
	}
	for k, v := range m.reservations {
		v.Items = append([]domain.ReservationItem(nil), v.Items...)
		s.reservations[k] = v
	}
	for k, v := range m.seq {
		s.seq[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.products, m.reservations, m.seq, m.next, m.events = s.products, s.reservations, s.seq, s.next, s.events
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	if err := fn(ctx, memTx{m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) stock(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *memStore) setStock(id uuid.UUID, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[id]
	p.Stock = stock
	m.products[id] = p
}

func (m *memStore) reservationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reservations)
}

func (m *memStore) outbox() []outbox.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]outbox.Event(nil), m.events...)
}

type memTx struct{ m *memStore }

func (t memTx) reserved(id uuid.UUID) int {
	n := 0
	for _, r := range t.m.reservations {
		if r.Confirmed || r.Cancelled {
			continue
		}
		for _, it := range r.Items {
			if it.ProductID == id {
				n += it.Quantity
			}
		}
	}
	return n
}

func (t memTx) CreateProduct(_ context.Context, p domain.Product) error {
	for _, other := range t.m.products {
		if other.Code == p.Code {
			return ErrConflict
		}
	}
	p.Reserved = 0
	t.m.products[p.ID] = p
	return nil
}

func (t memTx) GetProduct(_ context.Context, id uuid.UUID, _ bool) (domain.Product, error) {
	p, ok := t.m.products[id]
	if !ok {
		return domain.Product{}, ErrNotFound
	}
	p.Reserved = t.reserved(id)
	return p, nil
}

func (t memTx) ListProducts(context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(t.m.products))
	for id, p := range t.m.products {
		p.Reserved = t.reserved(id)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t memTx) UpdateProduct(_ context.Context, p domain.Product) error {
	for id, other := range t.m.products {
		if id != p.ID && other.Code == p.Code {
			return ErrConflict
		}
	}
	p.Reserved = 0
	t.m.products[p.ID] = p
	return nil
}

func (t memTx) DeleteProduct(_ context.Context, id uuid.UUID) error {
	delete(t.m.products, id)
	return nil
}

func (t memTx) HasReservationItems(_ context.Context, productID uuid.UUID) (bool, error) {
	for _, r := range t.m.reservations {
		for _, it := range r.Items {
			if it.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (t memTx) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Product, error) {
	out := make(map[uuid.UUID]domain.Product, len(ids))
	for _, id := range ids {
		if p, err := t.GetProduct(ctx, id, true); err == nil {
			out[id] = p
		}
	}
	return out, nil
}

func (t memTx) DebitStock(_ context.Context, productID uuid.UUID, qty int) (bool, error) {
	p, ok := t.m.products[productID]
	if !ok {
		return false, ErrNotFound
	}
	if p.Stock-qty < 0 {
		return false, nil
	}
	p.Stock -= qty
	t.m.products[productID] = p
	return true, nil
}

func (t memTx) InsertReservation(_ context.Context, r domain.Reservation) error {
	items := make([]domain.ReservationItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = domain.ReservationItem{ID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity}
	}
	r.Items = items
	t.m.reservations[r.ID] = r
	t.m.next++
	t.m.seq[r.ID] = t.m.next
	return nil
}

func (t memTx) resolve(r domain.Reservation) domain.Reservation {
	items := make([]domain.ReservationItem, len(r.Items))
	for i, it := range r.Items {
		p := t.m.products[it.ProductID]
		it.ProductCode, it.ProductDescription = p.Code, p.Description
		items[i] = it
	}
	r.Items = items
	return r
}

func (t memTx) GetReservation(_ context.Context, id uuid.UUID, _ bool) (domain.Reservation, error) {
	r, ok := t.m.reservations[id]
	if !ok {
		return domain.Reservation{}, ErrNotFound
	}
	return t.resolve(r), nil
}

func (t memTx) ReservationByInvoice(_ context.Context, invoiceID uuid.UUID, _ bool) (domain.Reservation, error) {
	var best domain.Reservation
	found := false
	for _, r := range t.m.reservations {
		if r.InvoiceID != invoiceID {
			continue
		}
		if !found {
			best, found = r, true
			continue
		}
		bestPending := !best.Confirmed && !best.Cancelled
		pending := !r.Confirmed && !r.Cancelled
		if (pending && !bestPending) || (pending == bestPending && t.m.seq[r.ID] > t.m.seq[best.ID]) {
			best = r
		}
	}
	if !found {
		return domain.Reservation{}, ErrNotFound
	}
	return t.resolve(best), nil
}

func (t memTx) SaveReservationState(_ context.Context, r domain.Reservation) error {
	stored, ok := t.m.reservations[r.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Confirmed, stored.ConfirmedAt = r.Confirmed, r.ConfirmedAt
	stored.Cancelled, stored.CancelledAt = r.Cancelled, r.CancelledAt
	t.m.reservations[r.ID] = stored
	return nil
}

func (t memTx) Enqueue(_ context.Context, e outbox.Event) error {
	t.m.events = append(t.m.events, e)
	return nil
}
