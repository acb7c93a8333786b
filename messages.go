package topup

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/notify"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/types"
)

// ──────────────────────────────────────────────────
// Notifications
// ──────────────────────────────────────────────────

func (e *Engine) notifyOperators(ctx context.Context, build func(to notify.Recipient) *notify.Notification) {
	if len(e.operators) == 0 {
		e.logger.DebugContext(ctx, "no operators configured, skipping notification")
		return
	}
	for _, op := range e.operators {
		e.dispatcher.Dispatch(build(notify.Operator(op)))
	}
}

func (e *Engine) notifyOrderCreated(ctx context.Context, o *order.Order) {
	e.notifyOperators(ctx, func(to notify.Recipient) *notify.Notification {
		n := orderNotification(notify.EventOrderCreated, to, o, newOrderText(o))
		if o.Status == order.StatusAwaitingPayment {
			n.Buttons = []notify.Button{
				notify.OrderButton("Complete", notify.ActionComplete, o.ID),
				notify.OrderButton("Cancel", notify.ActionCancel, o.ID),
			}
		} else {
			n.Buttons = []notify.Button{
				notify.OrderButton("Confirm", notify.ActionConfirm, o.ID),
				notify.OrderButton("Cancel", notify.ActionCancel, o.ID),
			}
		}
		return n
	})
}

func (e *Engine) notifyOrderConfirmed(o *order.Order) {
	text := fmt.Sprintf("Your order %s for %s was confirmed. Please transfer %s",
		o.ID, o.PlanName, o.Outstanding())
	if e.paymentAccount != "" {
		text += " to " + e.paymentAccount
	}
	text += " and send the payment proof."

	n := orderNotification(notify.EventOrderConfirmed, notify.Customer(o.CustomerID), o, text)
	n.Data["outstanding"] = o.Outstanding()
	if e.paymentAccount != "" {
		n.Data["payment_account"] = e.paymentAccount
	}
	e.dispatcher.Dispatch(n)
}

func (e *Engine) notifyPaymentSubmitted(ctx context.Context, o *order.Order) {
	text := fmt.Sprintf("Payment proof received for order %s (%s, %s outstanding) from %s.",
		o.ID, o.PlanName, o.Outstanding(), customerLabel(o))
	e.notifyOperators(ctx, func(to notify.Recipient) *notify.Notification {
		n := orderNotification(notify.EventPaymentSubmitted, to, o, text)
		n.Attachment = o.PaymentProof
		n.Buttons = []notify.Button{
			notify.OrderButton("Complete", notify.ActionComplete, o.ID),
			notify.OrderButton("Cancel", notify.ActionCancel, o.ID),
		}
		return n
	})
}

func (e *Engine) notifyOrderCompleted(o *order.Order) {
	text := fmt.Sprintf("Your order %s is complete: %s has been activated on %s.",
		o.ID, o.PlanName, o.Destination)
	e.dispatcher.Dispatch(orderNotification(notify.EventOrderCompleted, notify.Customer(o.CustomerID), o, text))
}

func (e *Engine) notifyOrderCancelled(o *order.Order, refunded types.Money) {
	var b strings.Builder
	fmt.Fprintf(&b, "Your order %s for %s was cancelled.", o.ID, o.PlanName)
	if o.CancelReason != "" {
		fmt.Fprintf(&b, " Reason: %s.", o.CancelReason)
	}
	if refunded.IsPositive() {
		fmt.Fprintf(&b, " %s was returned to your balance.", refunded)
	}

	n := orderNotification(notify.EventOrderCancelled, notify.Customer(o.CustomerID), o, b.String())
	n.Data["refunded"] = refunded
	e.dispatcher.Dispatch(n)
}

func (e *Engine) notifyBonusGranted(g *ledger.BonusGrant) {
	n := notify.New(notify.EventReferralBonusGranted, notify.Customer(g.ReferrerID),
		fmt.Sprintf("A customer you referred completed an order. %s was added to your balance.", g.Amount))
	n.OrderID = g.OrderID
	n.Data = map[string]any{
		"referral_id": g.ReferralID.String(),
		"referred_id": g.ReferredID,
		"amount":      g.Amount,
	}
	e.dispatcher.Dispatch(n)
}

func orderNotification(event notify.Event, to notify.Recipient, o *order.Order, text string) *notify.Notification {
	n := notify.New(event, to, text)
	n.OrderID = o.ID
	n.Data = map[string]any{
		"customer_id": o.CustomerID,
		"plan":        o.PlanName,
		"price":       o.Price,
		"credit_used": o.CreditUsed,
		"destination": o.Destination,
		"status":      string(o.Status),
	}
	return n
}

func newOrderText(o *order.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New order %s from %s: %s for %s, destination %s.",
		o.ID, customerLabel(o), o.PlanName, o.Price, o.Destination)
	switch {
	case o.Settled():
		b.WriteString(" Paid in full with credit.")
	case o.CreditUsed.IsPositive():
		fmt.Fprintf(&b, " %s paid with credit, %s by transfer.", o.CreditUsed, o.Outstanding())
	}
	return b.String()
}

func customerLabel(o *order.Order) string {
	if o.CustomerName != "" {
		return o.CustomerName + " (" + o.CustomerID + ")"
	}
	return o.CustomerID
}
