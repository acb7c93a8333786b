// Package store defines the unified persistence interface for topup.
//
// Every mutating method is one atomic unit covering both the order and the
// ledger rows it touches: implementations never leave an order transition
// committed without its credit effect, or the reverse.
package store

import (
	"context"

	"github.com/xraph/topup/catalog"
	"github.com/xraph/topup/id"
	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/types"
)

// Store is the unified storage interface for all topup entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Catalog methods
	CreatePlan(ctx context.Context, p *catalog.Plan) error
	GetPlan(ctx context.Context, planID id.PlanID) (*catalog.Plan, error)
	ListPlans(ctx context.Context, opts catalog.ListOpts) ([]*catalog.Plan, error)
	UpdatePlanPrice(ctx context.Context, planID id.PlanID, price types.Money) error
	CountPlans(ctx context.Context) (int64, error)

	// Ledger methods
	CreateCustomer(ctx context.Context, c *ledger.Customer, ref *ledger.Referral) error
	GetCustomer(ctx context.Context, customerID string) (*ledger.Customer, error)
	GetCustomerByReferralCode(ctx context.Context, code string) (*ledger.Customer, error)
	GetReferral(ctx context.Context, referredID string) (*ledger.Referral, error)
	Reserve(ctx context.Context, customerID string, amount types.Money) error
	Refund(ctx context.Context, customerID string, amount types.Money) error
	GrantReferralBonus(ctx context.Context, referredID string, orderID id.OrderID) (*ledger.BonusGrant, error)

	// Order methods
	PlaceOrder(ctx context.Context, o *order.Order) error
	GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error)
	ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error)
	TransitionOrder(ctx context.Context, t *order.Transition) (*order.Outcome, error)
	OrderStats(ctx context.Context) (*order.Stats, error)

	// Service gate methods
	AcceptingOrders(ctx context.Context) (bool, error)
	SetAcceptingOrders(ctx context.Context, accepting bool) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
