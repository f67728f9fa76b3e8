package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/outbox"
)

const schema = `
CREATE SEQUENCE IF NOT EXISTS invoice_number_seq;
CREATE TABLE IF NOT EXISTS invoices (
	id UUID PRIMARY KEY,
	invoice_number BIGINT NOT NULL UNIQUE DEFAULT nextval('invoice_number_seq'),
	status TEXT NOT NULL DEFAULT 'Open',
	created_at TIMESTAMPTZ NOT NULL,
	printed_at TIMESTAMPTZ,
	cancelled BOOLEAN NOT NULL DEFAULT false,
	cancelled_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS invoices_created_idx ON invoices (created_at);
CREATE TABLE IF NOT EXISTS invoice_items (
	id UUID PRIMARY KEY,
	invoice_id UUID NOT NULL REFERENCES invoices (id) ON DELETE CASCADE,
	position INT NOT NULL,
	product_id UUID NOT NULL,
	product_code VARCHAR(50) NOT NULL DEFAULT '',
	product_description VARCHAR(200) NOT NULL DEFAULT '',
	quantity INT NOT NULL CHECK (quantity > 0),
	reservation_id UUID
);
CREATE INDEX IF NOT EXISTS invoice_items_invoice_idx ON invoice_items (invoice_id);
CREATE TABLE IF NOT EXISTS idempotency_keys (
	id UUID PRIMARY KEY,
	key TEXT NOT NULL UNIQUE,
	invoice_id UUID NOT NULL,
	response_payload JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idempotency_keys_invoice_idx ON idempotency_keys (invoice_id);
`

// Migrate creates the invoice tables and the outbox if they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return err
	}
	_, err := pool.Exec(ctx, outbox.Schema)
	return err
}
