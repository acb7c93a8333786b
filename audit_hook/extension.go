// Package audithook bridges topup lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// particular audit store. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/topup/catalog"
	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/plugin"
	"github.com/xraph/topup/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnOrderCreated         = (*Extension)(nil)
	_ plugin.OnOrderConfirmed       = (*Extension)(nil)
	_ plugin.OnPaymentSubmitted     = (*Extension)(nil)
	_ plugin.OnOrderCompleted       = (*Extension)(nil)
	_ plugin.OnOrderCancelled       = (*Extension)(nil)
	_ plugin.OnCustomerRegistered   = (*Extension)(nil)
	_ plugin.OnReferralBonusGranted = (*Extension)(nil)
	_ plugin.OnPlanPriceChanged     = (*Extension)(nil)
	_ plugin.OnServiceGateChanged   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges topup lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Order lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrderCreated implements plugin.OnOrderCreated.
func (e *Extension) OnOrderCreated(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderCreated, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryOrder, o.CustomerID, nil,
		"plan_id", o.PlanID.String(),
		"price", o.Price.Amount,
		"credit_used", o.CreditUsed.Amount,
		"currency", o.Price.Currency,
		"destination", o.Destination,
		"status", string(o.Status),
	)
}

// OnOrderConfirmed implements plugin.OnOrderConfirmed.
func (e *Extension) OnOrderConfirmed(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderConfirmed, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryOrder, o.LastActor, nil,
		"customer_id", o.CustomerID,
		"outstanding", o.Outstanding().Amount,
	)
}

// OnPaymentSubmitted implements plugin.OnPaymentSubmitted.
func (e *Extension) OnPaymentSubmitted(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderPaymentSubmitted, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryOrder, o.CustomerID, nil,
		"payment_proof", o.PaymentProof,
	)
}

// OnOrderCompleted implements plugin.OnOrderCompleted.
func (e *Extension) OnOrderCompleted(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderCompleted, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryOrder, o.LastActor, nil,
		"customer_id", o.CustomerID,
		"price", o.Price.Amount,
		"currency", o.Price.Currency,
	)
}

// OnOrderCancelled implements plugin.OnOrderCancelled.
func (e *Extension) OnOrderCancelled(ctx context.Context, o *order.Order, refunded types.Money) error {
	return e.record(ctx, ActionOrderCancelled, SeverityWarning, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryOrder, o.LastActor, nil,
		"customer_id", o.CustomerID,
		"refunded", refunded.Amount,
		"cancel_reason", o.CancelReason,
	)
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCustomerRegistered implements plugin.OnCustomerRegistered.
func (e *Extension) OnCustomerRegistered(ctx context.Context, c *ledger.Customer, ref *ledger.Referral) error {
	kv := []any{"referral_code", c.ReferralCode}
	if ref != nil {
		kv = append(kv, "referred_by", ref.ReferrerID, "referral_id", ref.ID.String())
	}
	return e.record(ctx, ActionCustomerRegistered, SeverityInfo, OutcomeSuccess,
		ResourceCustomer, c.ID, CategoryLedger, c.ID, nil,
		kv...,
	)
}

// OnReferralBonusGranted implements plugin.OnReferralBonusGranted.
func (e *Extension) OnReferralBonusGranted(ctx context.Context, g *ledger.BonusGrant) error {
	return e.record(ctx, ActionReferralBonusGranted, SeverityInfo, OutcomeSuccess,
		ResourceReferral, g.ReferralID.String(), CategoryLedger, "", nil,
		"referrer_id", g.ReferrerID,
		"referred_id", g.ReferredID,
		"order_id", g.OrderID.String(),
		"amount", g.Amount.Amount,
	)
}

// ──────────────────────────────────────────────────
// Operator hooks
// ──────────────────────────────────────────────────

// OnPlanPriceChanged implements plugin.OnPlanPriceChanged.
func (e *Extension) OnPlanPriceChanged(ctx context.Context, p *catalog.Plan, oldPrice types.Money, actor string) error {
	return e.record(ctx, ActionPlanPriceChanged, SeverityInfo, OutcomeSuccess,
		ResourcePlan, p.ID.String(), CategoryCatalog, actor, nil,
		"old_price", oldPrice.Amount,
		"new_price", p.Price.Amount,
		"currency", p.Price.Currency,
	)
}

// OnServiceGateChanged implements plugin.OnServiceGateChanged.
func (e *Extension) OnServiceGateChanged(ctx context.Context, accepting bool, actor string) error {
	action, severity := ActionServiceOpened, SeverityInfo
	if !accepting {
		action, severity = ActionServiceClosed, SeverityWarning
	}
	return e.record(ctx, action, severity, OutcomeSuccess,
		ResourceService, "", CategoryOperations, actor, nil,
		"accepting", accepting,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category, actor string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Actor:      actor,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
