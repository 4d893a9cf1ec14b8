package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE SEQUENCE IF NOT EXISTS hotel_id_seq;

CREATE TABLE IF NOT EXISTS rooms (
	id           BIGINT PRIMARY KEY,
	code         TEXT NOT NULL UNIQUE,
	category     TEXT NOT NULL,
	nightly_rate NUMERIC(12, 2) NOT NULL CHECK (nightly_rate > 0),
	capacity     INTEGER NOT NULL CHECK (capacity > 0),
	features     TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL,
	active       BOOLEAN NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS customers (
	id             BIGINT PRIMARY KEY,
	first_name     TEXT NOT NULL,
	last_name      TEXT NOT NULL,
	identification TEXT NOT NULL UNIQUE,
	email          TEXT NOT NULL UNIQUE,
	phone          TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS reservations (
	id            BIGINT PRIMARY KEY,
	room_id       BIGINT NOT NULL REFERENCES rooms (id),
	customer_id   BIGINT NOT NULL REFERENCES customers (id),
	check_in      DATE NOT NULL,
	check_out     DATE NOT NULL,
	total_price   NUMERIC(12, 2) NOT NULL,
	state         TEXT NOT NULL,
	notes         TEXT NOT NULL DEFAULT '',
	cancel_reason TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	CHECK (check_out > check_in)
);

CREATE INDEX IF NOT EXISTS reservations_room_state_idx ON reservations (room_id, state);
CREATE INDEX IF NOT EXISTS reservations_customer_idx ON reservations (customer_id);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	key            TEXT PRIMARY KEY,
	reservation_id BIGINT NOT NULL REFERENCES reservations (id)
);

CREATE TABLE IF NOT EXISTS invoices (
	id             BIGINT PRIMARY KEY,
	number         TEXT NOT NULL UNIQUE,
	reservation_id BIGINT NOT NULL UNIQUE REFERENCES reservations (id),
	subtotal       NUMERIC(12, 2) NOT NULL,
	tax            NUMERIC(12, 2) NOT NULL,
	discount       NUMERIC(12, 2) NOT NULL,
	total          NUMERIC(12, 2) NOT NULL,
	issued_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS payments (
	id         BIGINT PRIMARY KEY,
	invoice_id BIGINT NOT NULL REFERENCES invoices (id),
	amount     NUMERIC(12, 2) NOT NULL CHECK (amount > 0),
	method     TEXT NOT NULL,
	reference  TEXT NOT NULL DEFAULT '',
	paid_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS payments_invoice_idx ON payments (invoice_id);

CREATE TABLE IF NOT EXISTS accounts (
	id          BIGINT PRIMARY KEY,
	code        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL,
	parent_id   BIGINT REFERENCES accounts (id),
	active      BOOLEAN NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS journal_entries (
	id          BIGINT PRIMARY KEY,
	account_id  BIGINT NOT NULL REFERENCES accounts (id),
	type        TEXT NOT NULL,
	concept     TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	amount      NUMERIC(14, 2) NOT NULL CHECK (amount <> 0),
	date        DATE NOT NULL,
	reference   TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS journal_entries_account_date_idx ON journal_entries (account_id, date);

CREATE TABLE IF NOT EXISTS promos (
	code          TEXT PRIMARY KEY,
	percentage    NUMERIC(5, 2) NOT NULL,
	valid_through TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the schema when it does not exist yet. It is safe to run on every start.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	db.l.LogInfo("Database schema is up to date")

	return nil
}
