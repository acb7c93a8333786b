// Package observability provides a metrics extension for topup that records
// order lifecycle and ledger counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/topup/catalog"
	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/plugin"
	"github.com/xraph/topup/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnOrderCreated         = (*MetricsExtension)(nil)
	_ plugin.OnOrderConfirmed       = (*MetricsExtension)(nil)
	_ plugin.OnPaymentSubmitted     = (*MetricsExtension)(nil)
	_ plugin.OnOrderCompleted       = (*MetricsExtension)(nil)
	_ plugin.OnOrderCancelled       = (*MetricsExtension)(nil)
	_ plugin.OnCustomerRegistered   = (*MetricsExtension)(nil)
	_ plugin.OnReferralBonusGranted = (*MetricsExtension)(nil)
	_ plugin.OnPlanPriceChanged     = (*MetricsExtension)(nil)
	_ plugin.OnServiceGateChanged   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// Gauge interface for metric gauges.
type Gauge interface {
	Set(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a topup plugin to track orders and credit movements.
// Money amounts are recorded in minor units.
type MetricsExtension struct {
	// Order metrics
	OrderCreated          Counter
	OrderConfirmed        Counter
	OrderPaymentSubmitted Counter
	OrderCompleted        Counter
	OrderCancelled        Counter
	OrderPrice            Histogram
	OrderFulfilSeconds    Histogram

	// Ledger metrics
	CreditReserved       Counter
	CreditRefunded       Counter
	Revenue              Counter
	CustomersRegistered  Counter
	ReferredCustomers    Counter
	ReferralBonuses      Counter
	ReferralBonusCredits Counter

	// Operator metrics
	PlanPriceChanges Counter
	AcceptingOrders  Gauge
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		// Order metrics
		OrderCreated:          factory.Counter("topup.order.created"),
		OrderConfirmed:        factory.Counter("topup.order.confirmed"),
		OrderPaymentSubmitted: factory.Counter("topup.order.payment_submitted"),
		OrderCompleted:        factory.Counter("topup.order.completed"),
		OrderCancelled:        factory.Counter("topup.order.cancelled"),
		OrderPrice:            factory.Histogram("topup.order.price"),
		OrderFulfilSeconds:    factory.Histogram("topup.order.fulfil_seconds"),

		// Ledger metrics
		CreditReserved:       factory.Counter("topup.credit.reserved"),
		CreditRefunded:       factory.Counter("topup.credit.refunded"),
		Revenue:              factory.Counter("topup.revenue"),
		CustomersRegistered:  factory.Counter("topup.customer.registered"),
		ReferredCustomers:    factory.Counter("topup.customer.referred"),
		ReferralBonuses:      factory.Counter("topup.referral.bonus.granted"),
		ReferralBonusCredits: factory.Counter("topup.referral.bonus.credited"),

		// Operator metrics
		PlanPriceChanges: factory.Counter("topup.plan.price_changed"),
		AcceptingOrders:  factory.Gauge("topup.service.accepting"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Order lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrderCreated implements plugin.OnOrderCreated.
func (m *MetricsExtension) OnOrderCreated(_ context.Context, o *order.Order) error {
	m.OrderCreated.Inc()
	m.OrderPrice.Observe(float64(o.Price.Amount))
	if o.CreditUsed.IsPositive() {
		m.CreditReserved.Add(float64(o.CreditUsed.Amount))
	}
	return nil
}

// OnOrderConfirmed implements plugin.OnOrderConfirmed.
func (m *MetricsExtension) OnOrderConfirmed(_ context.Context, _ *order.Order) error {
	m.OrderConfirmed.Inc()
	return nil
}

// OnPaymentSubmitted implements plugin.OnPaymentSubmitted.
func (m *MetricsExtension) OnPaymentSubmitted(_ context.Context, _ *order.Order) error {
	m.OrderPaymentSubmitted.Inc()
	return nil
}

// OnOrderCompleted implements plugin.OnOrderCompleted.
func (m *MetricsExtension) OnOrderCompleted(_ context.Context, o *order.Order) error {
	m.OrderCompleted.Inc()
	m.Revenue.Add(float64(o.Price.Amount))
	if d := o.UpdatedAt.Sub(o.CreatedAt); d > 0 {
		m.OrderFulfilSeconds.Observe(d.Seconds())
	}
	return nil
}

// OnOrderCancelled implements plugin.OnOrderCancelled.
func (m *MetricsExtension) OnOrderCancelled(_ context.Context, _ *order.Order, refunded types.Money) error {
	m.OrderCancelled.Inc()
	if refunded.IsPositive() {
		m.CreditRefunded.Add(float64(refunded.Amount))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCustomerRegistered implements plugin.OnCustomerRegistered.
func (m *MetricsExtension) OnCustomerRegistered(_ context.Context, _ *ledger.Customer, ref *ledger.Referral) error {
	m.CustomersRegistered.Inc()
	if ref != nil {
		m.ReferredCustomers.Inc()
	}
	return nil
}

// OnReferralBonusGranted implements plugin.OnReferralBonusGranted.
func (m *MetricsExtension) OnReferralBonusGranted(_ context.Context, g *ledger.BonusGrant) error {
	m.ReferralBonuses.Inc()
	m.ReferralBonusCredits.Add(float64(g.Amount.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Operator hooks
// ──────────────────────────────────────────────────

// OnPlanPriceChanged implements plugin.OnPlanPriceChanged.
func (m *MetricsExtension) OnPlanPriceChanged(_ context.Context, _ *catalog.Plan, _ types.Money, _ string) error {
	m.PlanPriceChanges.Inc()
	return nil
}

// OnServiceGateChanged implements plugin.OnServiceGateChanged.
func (m *MetricsExtension) OnServiceGateChanged(_ context.Context, accepting bool, _ string) error {
	if accepting {
		m.AcceptingOrders.Set(1)
	} else {
		m.AcceptingOrders.Set(0)
	}
	return nil
}
