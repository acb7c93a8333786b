package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the topup store (SQLite).
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
    price       INTEGER NOT NULL CHECK (price > 0),
    currency    TEXT NOT NULL,
    active      INTEGER NOT NULL DEFAULT 1,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
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
    credit            INTEGER NOT NULL DEFAULT 0 CHECK (credit >= 0),
    currency          TEXT NOT NULL,
    referral_code     TEXT NOT NULL,
    referred_by       TEXT NOT NULL DEFAULT '',
    referrals_granted INTEGER NOT NULL DEFAULT 0,
    total_spent       INTEGER NOT NULL DEFAULT 0,
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
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
    referrer_id    TEXT NOT NULL,
    referred_id    TEXT NOT NULL,
    bonus_amount   INTEGER NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL,
    bonus_applied  INTEGER NOT NULL DEFAULT 0,
    bonus_order_id TEXT NOT NULL DEFAULT '',
    granted_at     DATETIME,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (referrer_id <> referred_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_topup_referrals_referred ON topup_referrals (referred_id);
CREATE INDEX IF NOT EXISTS idx_topup_referrals_referrer ON topup_referrals (referrer_id);

-- Flipping bonus_applied credits the referrer exactly once.
CREATE TRIGGER IF NOT EXISTS topup_referrals_credit_referrer
AFTER UPDATE OF bonus_applied ON topup_referrals
WHEN NEW.bonus_applied = 1 AND OLD.bonus_applied = 0
BEGIN
    UPDATE topup_customers
    SET credit = credit + NEW.bonus_amount,
        referrals_granted = referrals_granted + 1,
        updated_at = NEW.granted_at
    WHERE id = NEW.referrer_id;
END;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TRIGGER IF EXISTS topup_referrals_credit_referrer;
DROP TABLE IF EXISTS topup_referrals;
`)
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
    customer_id     TEXT NOT NULL,
    customer_name   TEXT NOT NULL DEFAULT '',
    plan_id         TEXT NOT NULL,
    plan_name       TEXT NOT NULL DEFAULT '',
    price           INTEGER NOT NULL,
    credit_used     INTEGER NOT NULL DEFAULT 0,
    currency        TEXT NOT NULL,
    destination     TEXT NOT NULL,
    status          TEXT NOT NULL,
    previous_status TEXT NOT NULL DEFAULT '',
    payment_proof   TEXT NOT NULL DEFAULT '',
    cancel_reason   TEXT NOT NULL DEFAULT '',
    last_actor      TEXT NOT NULL DEFAULT '',
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (credit_used >= 0 AND credit_used <= price)
);

CREATE INDEX IF NOT EXISTS idx_topup_orders_status ON topup_orders (status, created_at);
CREATE INDEX IF NOT EXISTS idx_topup_orders_customer ON topup_orders (customer_id, created_at);

-- Placing an order reserves its credit in the same statement.
CREATE TRIGGER IF NOT EXISTS topup_orders_check_credit
BEFORE INSERT ON topup_orders
BEGIN
    SELECT CASE
        WHEN NOT EXISTS (SELECT 1 FROM topup_customers WHERE id = NEW.customer_id)
            THEN RAISE(ABORT, 'topup: customer not found')
        WHEN NEW.credit_used > (SELECT credit FROM topup_customers WHERE id = NEW.customer_id)
            THEN RAISE(ABORT, 'topup: insufficient credit')
    END;
END;

CREATE TRIGGER IF NOT EXISTS topup_orders_reserve_credit
AFTER INSERT ON topup_orders
WHEN NEW.credit_used > 0
BEGIN
    UPDATE topup_customers
    SET credit = credit - NEW.credit_used, updated_at = NEW.created_at
    WHERE id = NEW.customer_id;
END;

CREATE TRIGGER IF NOT EXISTS topup_orders_refund_on_cancel
AFTER UPDATE OF status ON topup_orders
WHEN NEW.status = 'cancelled' AND OLD.status <> 'cancelled' AND NEW.credit_used > 0
BEGIN
    UPDATE topup_customers
    SET credit = credit + NEW.credit_used, updated_at = NEW.updated_at
    WHERE id = NEW.customer_id;
END;

CREATE TRIGGER IF NOT EXISTS topup_orders_settle_on_complete
AFTER UPDATE OF status ON topup_orders
WHEN NEW.status = 'completed' AND OLD.status <> 'completed'
BEGIN
    UPDATE topup_customers
    SET total_spent = total_spent + NEW.price, updated_at = NEW.updated_at
    WHERE id = NEW.customer_id;

    UPDATE topup_referrals
    SET bonus_applied = 1, bonus_order_id = NEW.id, granted_at = NEW.updated_at
    WHERE referred_id = NEW.customer_id AND bonus_applied = 0;
END;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TRIGGER IF EXISTS topup_orders_settle_on_complete;
DROP TRIGGER IF EXISTS topup_orders_refund_on_cancel;
DROP TRIGGER IF EXISTS topup_orders_reserve_credit;
DROP TRIGGER IF EXISTS topup_orders_check_credit;
DROP TABLE IF EXISTS topup_orders;
`)
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
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
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
