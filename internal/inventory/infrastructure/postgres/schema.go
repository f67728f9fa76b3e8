package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/outbox"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id UUID PRIMARY KEY,
	code VARCHAR(50) NOT NULL UNIQUE,
	description VARCHAR(150) NOT NULL DEFAULT '',
	stock INT NOT NULL CHECK (stock >= 0),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS stock_reservations (
	id UUID PRIMARY KEY,
	invoice_id UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	confirmed BOOLEAN NOT NULL DEFAULT false,
	confirmed_at TIMESTAMPTZ,
	cancelled BOOLEAN NOT NULL DEFAULT false,
	cancelled_at TIMESTAMPTZ,
	CHECK (NOT (confirmed AND cancelled))
);
CREATE INDEX IF NOT EXISTS stock_reservations_invoice_idx ON stock_reservations (invoice_id);
CREATE TABLE IF NOT EXISTS stock_reservation_items (
	id UUID PRIMARY KEY,
	reservation_id UUID NOT NULL REFERENCES stock_reservations (id) ON DELETE CASCADE,
	product_id UUID NOT NULL REFERENCES products (id) ON DELETE RESTRICT,
	position INT NOT NULL,
	quantity INT NOT NULL CHECK (quantity > 0)
);
CREATE INDEX IF NOT EXISTS stock_reservation_items_product_idx ON stock_reservation_items (product_id);
`

// Migrate creates the inventory tables and the outbox if they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return err
	}
	_, err := pool.Exec(ctx, outbox.Schema)
	return err
}
