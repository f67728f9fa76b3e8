package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/application"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/outbox"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/pgerr"
)

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

// InTx runs fn at the requested isolation. Under SERIALIZABLE a failure may
// surface on any statement or on commit; either way it comes back as
// application.ErrConflict.
func (r *Repository) InTx(ctx context.Context, iso application.Isolation, fn func(ctx context.Context, tx application.Tx) error) error {
	level := pgx.ReadCommitted
	if iso == application.Serializable {
		level = pgx.Serializable
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: level})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return translate(err)
	}
	if err := tx.Commit(ctx); err != nil {
		r.log.DebugContext(ctx, "invoice transaction commit failed", "err", err)
		return translate(err)
	}
	return nil
}

type txRepo struct {
	tx pgx.Tx
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, application.ErrNotFound), errors.Is(err, application.ErrConflict):
		return err
	case errors.Is(err, pgx.ErrNoRows):
		return application.ErrNotFound
	case pgerr.IsUniqueViolation(err), pgerr.IsSerializationFailure(err):
		return errors.Join(application.ErrConflict, err)
	default:
		return err
	}
}

func (t *txRepo) FindKey(ctx context.Context, key string) (domain.IdempotencyKey, error) {
	var k domain.IdempotencyKey
	err := t.tx.QueryRow(ctx, `SELECT id, key, invoice_id, created_at, expires_at
		FROM idempotency_keys WHERE key=$1`, key).Scan(&k.ID, &k.Key, &k.InvoiceID, &k.CreatedAt, &k.ExpiresAt)
	return k, translate(err)
}

func (t *txRepo) InsertKey(ctx context.Context, k domain.IdempotencyKey) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO idempotency_keys (id, key, invoice_id, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5)`, k.ID, k.Key, k.InvoiceID, k.CreatedAt, k.ExpiresAt)
	return translate(err)
}

func (t *txRepo) DeleteKey(ctx context.Context, key string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1`, key)
	return translate(err)
}

func (t *txRepo) DeleteKeysForInvoice(ctx context.Context, invoiceID uuid.UUID) ([]string, error) {
	rows, err := t.tx.Query(ctx, `DELETE FROM idempotency_keys WHERE invoice_id=$1 RETURNING key`, invoiceID)
	if err != nil {
		return nil, translate(err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv *domain.Invoice) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO invoices (id, status, created_at, cancelled)
		VALUES ($1,$2,$3,false) RETURNING invoice_number`, inv.ID, inv.Status, inv.CreatedAt).Scan(&inv.Number)
	if err != nil {
		return translate(err)
	}

	b := &pgx.Batch{}
	for i, it := range inv.Items {
		b.Queue(`INSERT INTO invoice_items (id, invoice_id, position, product_id, product_code,
			product_description, quantity, reservation_id) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			it.ID, inv.ID, i, it.ProductID, it.ProductCode, it.ProductDescription, it.Quantity, it.ReservationID)
	}
	return translate(t.tx.SendBatch(ctx, b).Close())
}

const invoiceColumns = `id, invoice_number, status, created_at, printed_at, cancelled, cancelled_at`

func scanInvoice(row pgx.CollectableRow) (domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.Status, &inv.CreatedAt, &inv.PrintedAt, &inv.Cancelled, &inv.CancelledAt)
	return inv, err
}

func (t *txRepo) GetInvoice(ctx context.Context, id uuid.UUID, forUpdate bool) (domain.Invoice, error) {
	q := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id=$1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	rows, err := t.tx.Query(ctx, q, id)
	if err != nil {
		return domain.Invoice{}, translate(err)
	}
	inv, err := pgx.CollectExactlyOneRow(rows, scanInvoice)
	if err != nil {
		return inv, translate(err)
	}
	items, err := t.items(ctx, []uuid.UUID{id})
	if err != nil {
		return inv, err
	}
	inv.Items = items[id]
	return inv, nil
}

func (t *txRepo) ListInvoices(ctx context.Context, f domain.Filter) ([]domain.Invoice, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !f.IncludeCancelled {
		where = append(where, "NOT cancelled")
	}
	if f.Status != nil {
		where = append(where, "status = "+arg(*f.Status))
	}
	if f.CreatedFrom != nil {
		where = append(where, "created_at >= "+arg(*f.CreatedFrom))
	}
	if f.CreatedTo != nil {
		where = append(where, "created_at <= "+arg(*f.CreatedTo))
	}

	q := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY invoice_number DESC`

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, translate(err)
	}
	invoices, err := pgx.CollectRows(rows, scanInvoice)
	if err != nil || len(invoices) == 0 {
		return invoices, translate(err)
	}

	ids := make([]uuid.UUID, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	items, err := t.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i].Items = items[invoices[i].ID]
	}
	return invoices, nil
}

func (t *txRepo) items(ctx context.Context, invoiceIDs []uuid.UUID) (map[uuid.UUID][]domain.Item, error) {
	rows, err := t.tx.Query(ctx, `SELECT invoice_id, id, product_id, product_code, product_description,
		quantity, reservation_id FROM invoice_items WHERE invoice_id = ANY($1) ORDER BY invoice_id, position`, invoiceIDs)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]domain.Item, len(invoiceIDs))
	for rows.Next() {
		var (
			invoiceID uuid.UUID
			it        domain.Item
		)
		if err := rows.Scan(&invoiceID, &it.ID, &it.ProductID, &it.ProductCode, &it.ProductDescription,
			&it.Quantity, &it.ReservationID); err != nil {
			return nil, err
		}
		out[invoiceID] = append(out[invoiceID], it)
	}
	return out, translate(rows.Err())
}

func (t *txRepo) UpdateInvoiceState(ctx context.Context, inv domain.Invoice) error {
	tag, err := t.tx.Exec(ctx, `UPDATE invoices SET status=$2, printed_at=$3, cancelled=$4, cancelled_at=$5
		WHERE id=$1`, inv.ID, inv.Status, inv.PrintedAt, inv.Cancelled, inv.CancelledAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return application.ErrNotFound
	}
	return nil
}

func (t *txRepo) UpdateItems(ctx context.Context, inv domain.Invoice) error {
	b := &pgx.Batch{}
	for _, it := range inv.Items {
		b.Queue(`UPDATE invoice_items SET product_code=$2, product_description=$3, reservation_id=$4
			WHERE id=$1`, it.ID, it.ProductCode, it.ProductDescription, it.ReservationID)
	}
	return translate(t.tx.SendBatch(ctx, b).Close())
}

func (t *txRepo) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM invoices WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return application.ErrNotFound
	}
	return nil
}

func (t *txRepo) Enqueue(ctx context.Context, e outbox.Event) error {
	return translate(outbox.Enqueue(ctx, t.tx, e))
}
