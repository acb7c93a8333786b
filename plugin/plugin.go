// Package plugin provides an extensible plugin system for topup.
// Plugins hook into order, ledger and catalog lifecycle events after the
// corresponding store operation has committed.
package plugin

import (
	"context"

	"github.com/xraph/topup/catalog"
	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Order lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrderCreated is called after an order and its credit reservation commit.
type OnOrderCreated interface {
	Plugin
	OnOrderCreated(ctx context.Context, o *order.Order) error
}

// OnOrderConfirmed is called when an operator confirms a requested order.
type OnOrderConfirmed interface {
	Plugin
	OnOrderConfirmed(ctx context.Context, o *order.Order) error
}

// OnPaymentSubmitted is called when a customer attaches a payment proof.
type OnPaymentSubmitted interface {
	Plugin
	OnPaymentSubmitted(ctx context.Context, o *order.Order) error
}

// OnOrderCompleted is called when an order is completed.
type OnOrderCompleted interface {
	Plugin
	OnOrderCompleted(ctx context.Context, o *order.Order) error
}

// OnOrderCancelled is called when an order is cancelled. refunded is the
// credit returned to the customer.
type OnOrderCancelled interface {
	Plugin
	OnOrderCancelled(ctx context.Context, o *order.Order, refunded types.Money) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCustomerRegistered is called when a customer is created on first contact.
type OnCustomerRegistered interface {
	Plugin
	OnCustomerRegistered(ctx context.Context, c *ledger.Customer, ref *ledger.Referral) error
}

// OnReferralBonusGranted is called once per referral when its bonus is credited.
type OnReferralBonusGranted interface {
	Plugin
	OnReferralBonusGranted(ctx context.Context, grant *ledger.BonusGrant) error
}

// ──────────────────────────────────────────────────
// Catalog and operator hooks
// ──────────────────────────────────────────────────

// OnPlanPriceChanged is called when an operator edits a plan price.
type OnPlanPriceChanged interface {
	Plugin
	OnPlanPriceChanged(ctx context.Context, p *catalog.Plan, oldPrice types.Money, actor string) error
}

// OnServiceGateChanged is called when order intake is opened or closed.
type OnServiceGateChanged interface {
	Plugin
	OnServiceGateChanged(ctx context.Context, accepting bool, actor string) error
}
