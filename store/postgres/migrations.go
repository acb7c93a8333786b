package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the topup store.
var Migrations = migrate.NewGroup("topup")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_topup_plans",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS topup_plans (
    id          TEXT PRIMARY KEY,
    category    TEXT NOT NULL,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    price       BIGINT NOT NULL CHECK (price > 0),
    currency    TEXT NOT NULL,
    active      BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_topup_plans_category ON topup_plans (category, active, price);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS topup_plans`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_topup_customers",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS topup_customers (
    id                TEXT PRIMARY KEY,
    display_name      TEXT NOT NULL DEFAULT '',
    credit            BIGINT NOT NULL DEFAULT 0 CHECK (credit >= 0),
    currency          TEXT NOT NULL,
    referral_code     TEXT NOT NULL,
    referred_by       TEXT NOT NULL DEFAULT '',
    referrals_granted BIGINT NOT NULL DEFAULT 0,
    total_spent       BIGINT NOT NULL DEFAULT 0,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_topup_customers_code ON topup_customers (referral_code);
CREATE INDEX IF NOT EXISTS idx_topup_customers_referred_by ON topup_customers (referred_by);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS topup_customers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_topup_referrals",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS topup_referrals (
    id             TEXT PRIMARY KEY,
    referrer_id    TEXT NOT NULL REFERENCES topup_customers (id),
    referred_id    TEXT NOT NULL REFERENCES topup_customers (id),
    bonus_amount   BIGINT NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL,
    bonus_applied  BOOLEAN NOT NULL DEFAULT FALSE,
    bonus_order_id TEXT NOT NULL DEFAULT '',
    granted_at     TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (referrer_id <> referred_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_topup_referrals_referred ON topup_referrals (referred_id);
CREATE INDEX IF NOT EXISTS idx_topup_referrals_referrer ON topup_referrals (referrer_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS topup_referrals`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_topup_orders",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS topup_orders (
    id              TEXT PRIMARY KEY,
    customer_id     TEXT NOT NULL REFERENCES topup_customers (id),
    customer_name   TEXT NOT NULL DEFAULT '',
    plan_id         TEXT NOT NULL,
    plan_name       TEXT NOT NULL DEFAULT '',
    price           BIGINT NOT NULL,
    credit_used     BIGINT NOT NULL DEFAULT 0,
    currency        TEXT NOT NULL,
    destination     TEXT NOT NULL,
    status          TEXT NOT NULL,
    previous_status TEXT NOT NULL DEFAULT '',
    payment_proof   TEXT NOT NULL DEFAULT '',
    cancel_reason   TEXT NOT NULL DEFAULT '',
    last_actor      TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (credit_used >= 0 AND credit_used <= price)
);

CREATE INDEX IF NOT EXISTS idx_topup_orders_status ON topup_orders (status, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_topup_orders_customer ON topup_orders (customer_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS topup_orders`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_topup_settings",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS topup_settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS topup_settings`)
				return err
			},
		},
	)
}
