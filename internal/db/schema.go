package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables used by the Postgres store. Every statement is
// idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS rule_sets (
	id              TEXT PRIMARY KEY,
	domain          TEXT NOT NULL,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	public_title    TEXT NOT NULL DEFAULT '',
	public_subtitle TEXT NOT NULL DEFAULT '',
	conditions      JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_rule_sets_domain ON rule_sets(domain);

CREATE TABLE IF NOT EXISTS customers (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	email            TEXT NOT NULL DEFAULT '',
	total_spend      DOUBLE PRECISION NOT NULL DEFAULT 0,
	order_frequency  INTEGER NOT NULL DEFAULT 0,
	last_visit       TIMESTAMPTZ,
	membership_level TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS products (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	price         DOUBLE PRECISION NOT NULL DEFAULT 0,
	profit_margin DOUBLE PRECISION NOT NULL DEFAULT 0,
	stock_level   INTEGER NOT NULL DEFAULT 0,
	category      TEXT NOT NULL DEFAULT '',
	tags          TEXT[]
);

CREATE TABLE IF NOT EXISTS audit_log (
	id           UUID PRIMARY KEY,
	occurred_at  TIMESTAMPTZ NOT NULL,
	request_id   TEXT NOT NULL DEFAULT '',
	actor        TEXT NOT NULL DEFAULT '',
	ip_address   TEXT NOT NULL DEFAULT '',
	user_agent   TEXT NOT NULL DEFAULT '',
	action       TEXT NOT NULL,
	domain       TEXT NOT NULL,
	rule_set_id  TEXT NOT NULL,
	before_state JSONB,
	after_state  JSONB,
	changes      JSONB,
	status       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_occurred_at ON audit_log(occurred_at DESC);
`

// EnsureSchema applies Schema to the database.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
