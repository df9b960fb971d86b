package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the marketplace store (PostgreSQL).
var Migrations = migrate.NewGroup("marketplace")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_mp_sequences",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mp_sequences (
    name  TEXT PRIMARY KEY,
    value BIGINT NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mp_sequences`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mp_entities",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mp_entities (
    share_id      TEXT PRIMARY KEY,
    seq           BIGINT NOT NULL,
    name          TEXT NOT NULL,
    kind          TEXT NOT NULL,
    registrar     TEXT NOT NULL,
    metadata_hash TEXT NOT NULL DEFAULT '',
    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_mp_entities_registrar ON mp_entities (registrar, seq);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mp_entities`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mp_connection_requests",
			Version: "20260301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mp_connection_requests (
    id                BIGINT PRIMARY KEY,
    vendor_share_id   TEXT NOT NULL,
    company_share_id  TEXT NOT NULL,
    message_hash      TEXT NOT NULL,
    status            TEXT NOT NULL,
    review_notes_hash TEXT NOT NULL DEFAULT '',
    reviewed_by       TEXT NOT NULL DEFAULT '',
    reviewed_at       TIMESTAMPTZ,
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS mp_connection_requests_pending
    ON mp_connection_requests (vendor_share_id, company_share_id) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_mp_connection_requests_company ON mp_connection_requests (company_share_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mp_connection_requests`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mp_connections",
			Version: "20260301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mp_connections (
    id                     BIGINT PRIMARY KEY,
    vendor_share_id        TEXT NOT NULL,
    company_share_id       TEXT NOT NULL,
    approved_by            TEXT NOT NULL,
    is_active              BOOLEAN NOT NULL,
    original_request_id    BIGINT NOT NULL,
    revoked_by             TEXT NOT NULL DEFAULT '',
    revocation_reason_hash TEXT NOT NULL DEFAULT '',
    revoked_at             TIMESTAMPTZ,
    created_at             TIMESTAMPTZ NOT NULL,
    updated_at             TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS mp_connections_active
    ON mp_connections (vendor_share_id, company_share_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_mp_connections_company ON mp_connections (company_share_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mp_connections`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mp_listings",
			Version: "20260301000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mp_listings (
    id               BIGINT PRIMARY KEY,
    listing_number   TEXT NOT NULL,
    company_share_id TEXT NOT NULL,
    content_hash     TEXT NOT NULL,
    base_price       BIGINT NOT NULL,
    visibility       TEXT NOT NULL,
    status           TEXT NOT NULL,
    opens_at         TIMESTAMPTZ,
    closes_at        TIMESTAMPTZ,
    created_by       TEXT NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL,
    CONSTRAINT mp_listings_listing_number UNIQUE (listing_number)
);

CREATE INDEX IF NOT EXISTS idx_mp_listings_company ON mp_listings (company_share_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mp_listings`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mp_listing_vendors",
			Version: "20260301000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mp_listing_vendors (
    listing_id      BIGINT NOT NULL,
    vendor_share_id TEXT NOT NULL,
    granted_at      TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (listing_id, vendor_share_id)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mp_listing_vendors`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mp_quotes",
			Version: "20260301000007",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mp_quotes (
    id                BIGINT PRIMARY KEY,
    quote_number      TEXT NOT NULL,
    listing_id        BIGINT NOT NULL,
    vendor_share_id   TEXT NOT NULL,
    quoted_price      BIGINT NOT NULL,
    proposal_hash     TEXT NOT NULL,
    delivery_days     INTEGER NOT NULL,
    valid_until       TIMESTAMPTZ,
    status            TEXT NOT NULL,
    submitted_by      TEXT NOT NULL,
    review_notes_hash TEXT NOT NULL DEFAULT '',
    reviewed_by       TEXT NOT NULL DEFAULT '',
    reviewed_at       TIMESTAMPTZ,
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL,
    CONSTRAINT mp_quotes_quote_number UNIQUE (quote_number)
);

CREATE UNIQUE INDEX IF NOT EXISTS mp_quotes_open_slot
    ON mp_quotes (listing_id, vendor_share_id) WHERE status <> 'withdrawn';
CREATE INDEX IF NOT EXISTS idx_mp_quotes_vendor ON mp_quotes (vendor_share_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mp_quotes`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mp_point_accounts",
			Version: "20260301000008",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mp_point_accounts (
    owner      TEXT PRIMARY KEY,
    balance    BIGINT NOT NULL CHECK (balance >= 0),
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mp_point_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mp_point_allowances",
			Version: "20260301000009",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mp_point_allowances (
    owner      TEXT NOT NULL,
    spender    TEXT NOT NULL,
    amount     BIGINT NOT NULL CHECK (amount >= 0),
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (owner, spender)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mp_point_allowances`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mp_point_costs",
			Version: "20260301000010",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mp_point_costs (
    id           INTEGER PRIMARY KEY CHECK (id = 1),
    listing_cost BIGINT NOT NULL,
    quote_cost   BIGINT NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mp_point_costs`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mp_point_deductors",
			Version: "20260301000011",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mp_point_deductors (
    identity      TEXT PRIMARY KEY,
    authorized_at TIMESTAMPTZ NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mp_point_deductors`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mp_point_entries",
			Version: "20260301000012",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mp_point_entries (
    seq           BIGSERIAL PRIMARY KEY,
    id            TEXT NOT NULL UNIQUE,
    owner         TEXT NOT NULL,
    counterparty  TEXT NOT NULL DEFAULT '',
    direction     TEXT NOT NULL,
    amount        BIGINT NOT NULL,
    reason        TEXT NOT NULL,
    note_hash     TEXT NOT NULL DEFAULT '',
    balance_after BIGINT NOT NULL,
    actor         TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_mp_point_entries_owner ON mp_point_entries (owner, seq);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mp_point_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mp_events",
			Version: "20260301000013",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mp_events (
    seq             BIGINT PRIMARY KEY,
    id              TEXT NOT NULL UNIQUE,
    type            TEXT NOT NULL,
    category        TEXT NOT NULL,
    aggregate_id    TEXT NOT NULL,
    actor           TEXT NOT NULL,
    payload         JSONB NOT NULL,
    occurred_at     TIMESTAMPTZ NOT NULL,
    next_attempt_at TIMESTAMPTZ NOT NULL,
    dispatched_at   TIMESTAMPTZ,
    dead_at         TIMESTAMPTZ,
    attempts        INTEGER NOT NULL DEFAULT 0,
    last_error      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_mp_events_pending
    ON mp_events (next_attempt_at) WHERE dispatched_at IS NULL AND dead_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_mp_events_aggregate ON mp_events (aggregate_id, seq);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mp_events`)
				return err
			},
		},
	)
}
