package topup

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xraph/topup/catalog"
	"github.com/xraph/topup/id"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/types"
)

// ──────────────────────────────────────────────────
// Order lifecycle
// ──────────────────────────────────────────────────

// CreateOrder places an order for planID, reserving the credit requested by
// method in the same atomic unit. A fully credit-paid order starts in
// awaiting_payment; anything with an outstanding amount starts in requested.
func (e *Engine) CreateOrder(ctx context.Context, customerID string, planID id.PlanID, destination string, method order.PaymentMethod) (*order.Order, error) {
	accepting, err := e.store.AcceptingOrders(ctx)
	if err != nil {
		return nil, err
	}
	if !accepting {
		return nil, ErrServiceUnavailable
	}

	dest, err := ValidateDestination(destination)
	if err != nil {
		return nil, err
	}

	c, err := e.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	p, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrPlanNotFound
	}

	credit, err := resolveCredit(method, p.Price)
	if err != nil {
		return nil, err
	}

	status := order.StatusRequested
	if credit.Amount == p.Price.Amount {
		status = order.StatusAwaitingPayment
	}

	o := &order.Order{
		Entity:       types.NewEntity(),
		ID:           id.NewOrderID(),
		CustomerID:   c.ID,
		CustomerName: c.DisplayName,
		PlanID:       p.ID,
		PlanName:     p.Name,
		Price:        p.Price,
		CreditUsed:   credit,
		Destination:  dest,
		Status:       status,
		LastActor:    c.ID,
	}

	if err := e.store.PlaceOrder(ctx, o); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "order created",
		"order_id", o.ID.String(),
		"customer_id", o.CustomerID,
		"plan_id", o.PlanID.String(),
		"price", o.Price.Amount,
		"credit_used", o.CreditUsed.Amount,
		"status", o.Status,
	)

	e.plugins.EmitOrderCreated(ctx, o)
	e.notifyOrderCreated(ctx, o)

	return o, nil
}

// ConfirmOrder moves a requested order to awaiting_payment and sends the
// customer payment instructions for the outstanding amount.
func (e *Engine) ConfirmOrder(ctx context.Context, orderID id.OrderID, operatorID string) (*order.Order, error) {
	out, err := e.transition(ctx, &order.Transition{
		OrderID: orderID,
		From:    []order.Precondition{{Status: order.StatusRequested}},
		To:      order.StatusAwaitingPayment,
		Actor:   operatorID,
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitOrderConfirmed(ctx, out.Order)
	e.notifyOrderConfirmed(out.Order)

	return out.Order, nil
}

// SubmitPaymentProof attaches proofRef to the customer's awaiting_payment
// order and moves it to payment_submitted. An order owned by someone else
// reads as ErrOrderNotFound.
func (e *Engine) SubmitPaymentProof(ctx context.Context, orderID id.OrderID, customerID, proofRef string) (*order.Order, error) {
	proofRef = strings.TrimSpace(proofRef)
	if proofRef == "" {
		return nil, ValidationError{Field: "proof", Message: "payment proof is required"}
	}
	if customerID == "" {
		return nil, ValidationError{Field: "customer_id", Message: "customer is required"}
	}

	out, err := e.transition(ctx, &order.Transition{
		OrderID:      orderID,
		From:         []order.Precondition{{Status: order.StatusAwaitingPayment}},
		To:           order.StatusPaymentSubmitted,
		Actor:        customerID,
		CustomerID:   customerID,
		PaymentProof: proofRef,
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitPaymentSubmitted(ctx, out.Order)
	e.notifyPaymentSubmitted(ctx, out.Order)

	return out.Order, nil
}

// CompleteOrder completes an order from payment_submitted, or from
// awaiting_payment when credit covers the whole price. The customer's spend
// and any pending referral bonus commit with the status change.
func (e *Engine) CompleteOrder(ctx context.Context, orderID id.OrderID, operatorID string) (*order.Order, error) {
	out, err := e.transition(ctx, &order.Transition{
		OrderID: orderID,
		From: []order.Precondition{
			{Status: order.StatusPaymentSubmitted},
			{Status: order.StatusAwaitingPayment, Settled: true},
		},
		To:    order.StatusCompleted,
		Actor: operatorID,
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitOrderCompleted(ctx, out.Order)
	e.notifyOrderCompleted(out.Order)

	if out.Bonus != nil {
		e.logger.InfoContext(ctx, "referral bonus granted",
			"referrer_id", out.Bonus.ReferrerID,
			"referred_id", out.Bonus.ReferredID,
			"amount", out.Bonus.Amount.Amount,
			"order_id", out.Order.ID.String(),
		)
		e.plugins.EmitReferralBonusGranted(ctx, out.Bonus)
		e.notifyBonusGranted(out.Bonus)
	}

	return out.Order, nil
}

// CancelOrder cancels an open order and refunds exactly the credit it
// reserved, in the same atomic unit.
func (e *Engine) CancelOrder(ctx context.Context, orderID id.OrderID, actorID, reason string) (*order.Order, error) {
	from := make([]order.Precondition, 0, len(order.Open))
	for _, st := range order.Open {
		from = append(from, order.Precondition{Status: st})
	}

	out, err := e.transition(ctx, &order.Transition{
		OrderID:      orderID,
		From:         from,
		To:           order.StatusCancelled,
		Actor:        actorID,
		CancelReason: strings.TrimSpace(reason),
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitOrderCancelled(ctx, out.Order, out.Refunded)
	e.notifyOrderCancelled(out.Order, out.Refunded)

	return out.Order, nil
}

func (e *Engine) transition(ctx context.Context, t *order.Transition) (*order.Outcome, error) {
	if t.OrderID.IsNil() {
		return nil, ValidationError{Field: "order_id", Message: "order id is required"}
	}
	t.At = time.Now().UTC()

	out, err := e.store.TransitionOrder(ctx, t)
	if err != nil {
		if IsStateConflict(err) {
			e.logger.DebugContext(ctx, "order transition skipped",
				"order_id", t.OrderID.String(),
				"to", t.To,
				"actor", t.Actor,
			)
		}
		return nil, err
	}

	e.logger.InfoContext(ctx, "order transitioned",
		"order_id", out.Order.ID.String(),
		"from", out.From,
		"to", out.Order.Status,
		"actor", t.Actor,
	)
	return out, nil
}

// ──────────────────────────────────────────────────
// Order queries
// ──────────────────────────────────────────────────

// GetOrder retrieves an order by ID.
func (e *Engine) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	return e.store.GetOrder(ctx, orderID)
}

// ListOrders lists orders newest first.
func (e *Engine) ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error) {
	for _, st := range opts.Statuses {
		if !st.IsValid() {
			return nil, ValidationError{Field: "status", Message: "unknown status " + string(st)}
		}
	}
	return e.store.ListOrders(ctx, opts)
}

// ListMyOrders lists a customer's orders newest first.
func (e *Engine) ListMyOrders(ctx context.Context, customerID string) ([]*order.Order, error) {
	return e.store.ListOrders(ctx, order.ListOpts{CustomerID: customerID})
}

// Stats returns order counts per status, completed revenue and the number
// of active plans.
func (e *Engine) Stats(ctx context.Context) (*order.Stats, error) {
	stats, err := e.store.OrderStats(ctx)
	if err != nil {
		return nil, err
	}
	plans, err := e.store.ListPlans(ctx, catalog.ListOpts{})
	if err != nil {
		return nil, err
	}
	stats.ActivePlans = int64(len(plans))
	return stats, nil
}

// SweepStale cancels open orders created more than olderThan ago. It goes
// through CancelOrder, so credit is refunded and customers are notified.
// Orders that move concurrently are skipped.
func (e *Engine) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, ValidationError{Field: "older_than", Message: "must be positive"}
	}

	stale, err := e.store.ListOrders(ctx, order.ListOpts{
		Statuses:      order.Open,
		CreatedBefore: time.Now().UTC().Add(-olderThan),
	})
	if err != nil {
		return 0, err
	}

	cancelled := 0
	var errs []error
	for _, o := range stale {
		_, err := e.CancelOrder(ctx, o.ID, SystemSweeper, "expired")
		switch {
		case err == nil:
			cancelled++
		case IsStateConflict(err):
		default:
			e.logger.WarnContext(ctx, "stale order cancel failed",
				"order_id", o.ID.String(),
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return cancelled, errors.Join(errs...)
}

func resolveCredit(method order.PaymentMethod, price types.Money) (types.Money, error) {
	switch method.Kind {
	case order.MethodTransfer, order.MethodCredit, order.MethodMixed:
	default:
		return types.Money{}, ValidationError{Field: "payment_method", Message: "unknown payment method " + string(method.Kind)}
	}

	credit := method.CreditFor(price)
	if credit.Amount == 0 {
		return types.Zero(price.Currency), nil
	}
	if credit.Currency != price.Currency {
		return types.Money{}, ValidationError{Field: "credit", Message: "currency " + credit.Currency + " does not match price currency " + price.Currency}
	}
	if credit.IsNegative() {
		return types.Money{}, ValidationError{Field: "credit", Message: "must not be negative"}
	}
	if credit.GreaterThan(price) {
		return types.Money{}, ValidationError{Field: "credit", Message: "exceeds order price"}
	}
	return credit, nil
}
