package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/application"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/inventory/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/outbox"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/pgerr"
)

// Repository runs inventory transactions at READ COMMITTED. Races are
// settled by row locks: products are locked in id order before stock is
// judged, and a reservation row is locked before its flags change.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{
		log:  log,
		pool: pool,
	}
}

func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txRepo struct {
	tx pgx.Tx
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return application.ErrNotFound
	case pgerr.IsUniqueViolation(err):
		return errors.Join(application.ErrConflict, err)
	default:
		return err
	}
}

const reservedSubquery = `
	SELECT i.product_id, SUM(i.quantity) AS qty
	FROM stock_reservation_items i
	JOIN stock_reservations r ON r.id = i.reservation_id
	WHERE NOT r.confirmed AND NOT r.cancelled`

func (t *txRepo) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO products (id, code, description, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)`, p.ID, p.Code, p.Description, p.Stock, p.CreatedAt, p.UpdatedAt)
	return translate(err)
}

func (t *txRepo) GetProduct(ctx context.Context, id uuid.UUID, forUpdate bool) (domain.Product, error) {
	q := `SELECT id, code, description, stock, created_at, updated_at FROM products WHERE id=$1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	var p domain.Product
	err := t.tx.QueryRow(ctx, q, id).Scan(&p.ID, &p.Code, &p.Description, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, translate(err)
	}
	err = t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(i.quantity), 0)
		FROM stock_reservation_items i
		JOIN stock_reservations r ON r.id = i.reservation_id
		WHERE i.product_id=$1 AND NOT r.confirmed AND NOT r.cancelled`, id).Scan(&p.Reserved)
	return p, translate(err)
}

func (t *txRepo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT p.id, p.code, p.description, p.stock, p.created_at, p.updated_at, COALESCE(res.qty, 0)
		FROM products p
		LEFT JOIN (`+reservedSubquery+` GROUP BY i.product_id) res ON res.product_id = p.id
		ORDER BY p.code`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanProductWithReserved)
}

func scanProductWithReserved(row pgx.CollectableRow) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Code, &p.Description, &p.Stock, &p.CreatedAt, &p.UpdatedAt, &p.Reserved)
	return p, err
}

func (t *txRepo) UpdateProduct(ctx context.Context, p domain.Product) error {
	tag, err := t.tx.Exec(ctx, `UPDATE products SET code=$2, description=$3, stock=$4, updated_at=$5 WHERE id=$1`,
		p.ID, p.Code, p.Description, p.Stock, p.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return application.ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return application.ErrNotFound
	}
	return nil
}

func (t *txRepo) HasReservationItems(ctx context.Context, productID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_reservation_items WHERE product_id=$1)`, productID).Scan(&exists)
	return exists, err
}

func (t *txRepo) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Product, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, code, description, stock, created_at, updated_at
		FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	locked, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		var p domain.Product
		err := row.Scan(&p.ID, &p.Code, &p.Description, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
		return p, err
	})
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]domain.Product, len(locked))
	for _, p := range locked {
		out[p.ID] = p
	}
	if len(out) == 0 {
		return out, nil
	}

	// Summed only after the locks are held so that concurrent reservations
	// on the same products see each other.
	rows, err = t.tx.Query(ctx, reservedSubquery+` AND i.product_id = ANY($1) GROUP BY i.product_id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		if p, ok := out[id]; ok {
			p.Reserved = qty
			out[id] = p
		}
	}
	return out, rows.Err()
}

func (t *txRepo) DebitStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2`, productID, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txRepo) InsertReservation(ctx context.Context, r domain.Reservation) error {
	if _, err := t.tx.Exec(ctx, `INSERT INTO stock_reservations (id, invoice_id, created_at, confirmed, cancelled)
		VALUES ($1,$2,$3,false,false)`, r.ID, r.InvoiceID, r.CreatedAt); err != nil {
		return translate(err)
	}

	b := &pgx.Batch{}
	for i, it := range r.Items {
		b.Queue(`INSERT INTO stock_reservation_items (id, reservation_id, product_id, position, quantity)
			VALUES ($1,$2,$3,$4,$5)`, it.ID, r.ID, it.ProductID, i, it.Quantity)
	}
	return translate(t.tx.SendBatch(ctx, b).Close())
}

func (t *txRepo) GetReservation(ctx context.Context, id uuid.UUID, forUpdate bool) (domain.Reservation, error) {
	q := `SELECT id, invoice_id, created_at, confirmed, confirmed_at, cancelled, cancelled_at
		FROM stock_reservations WHERE id=$1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	var r domain.Reservation
	if err := t.tx.QueryRow(ctx, q, id).Scan(&r.ID, &r.InvoiceID, &r.CreatedAt, &r.Confirmed, &r.ConfirmedAt, &r.Cancelled, &r.CancelledAt); err != nil {
		return r, translate(err)
	}

	rows, err := t.tx.Query(ctx, `SELECT i.id, i.product_id, i.quantity, p.code, p.description
		FROM stock_reservation_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.reservation_id=$1
		ORDER BY i.position`, id)
	if err != nil {
		return r, err
	}
	r.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ReservationItem, error) {
		var it domain.ReservationItem
		err := row.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.ProductCode, &it.ProductDescription)
		return it, err
	})
	return r, err
}

func (t *txRepo) ReservationByInvoice(ctx context.Context, invoiceID uuid.UUID, forUpdate bool) (domain.Reservation, error) {
	q := `SELECT id FROM stock_reservations WHERE invoice_id=$1
		ORDER BY (confirmed OR cancelled), created_at DESC LIMIT 1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	var id uuid.UUID
	if err := t.tx.QueryRow(ctx, q, invoiceID).Scan(&id); err != nil {
		return domain.Reservation{}, translate(err)
	}
	return t.GetReservation(ctx, id, false)
}

func (t *txRepo) SaveReservationState(ctx context.Context, r domain.Reservation) error {
	tag, err := t.tx.Exec(ctx, `UPDATE stock_reservations
		SET confirmed=$2, confirmed_at=$3, cancelled=$4, cancelled_at=$5 WHERE id=$1`,
		r.ID, r.Confirmed, r.ConfirmedAt, r.Cancelled, r.CancelledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return application.ErrNotFound
	}
	return nil
}

func (t *txRepo) Enqueue(ctx context.Context, e outbox.Event) error {
	return outbox.Enqueue(ctx, t.tx, e)
}
