package order

import (
	"context"
	"time"

	"github.com/xraph/topup/id"
	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/types"
)

type Store interface {
	// Place inserts o and reserves o.CreditUsed from the customer in one
	// atomic unit.
	Place(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID id.OrderID) (*Order, error)
	List(ctx context.Context, opts ListOpts) ([]*Order, error)
	// Transition applies t if the order still matches one of t.From.
	Transition(ctx context.Context, t *Transition) (*Outcome, error)
	Stats(ctx context.Context) (*Stats, error)
}

// ListOpts filters order listings. Results are newest first.
type ListOpts struct {
	Statuses      []Status
	CustomerID    string
	CreatedBefore time.Time
	Limit         int
	Offset        int
}

// Precondition is one acceptable prior state of an order. Settled further
// requires CreditUsed == Price.
type Precondition struct {
	Status  Status
	Settled bool
}

// Transition is a compare-and-swap on an order's status. The ledger effect
// follows from To and commits with the status change:
// entering cancelled refunds CreditUsed to the customer; entering completed
// adds the price to the customer's TotalSpent and grants the pending
// referral bonus, if any.
type Transition struct {
	OrderID id.OrderID
	From    []Precondition
	To      Status
	Actor   string
	At      time.Time

	// CustomerID, when set, also requires the order to belong to it.
	CustomerID   string
	PaymentProof string
	CancelReason string
}

// Outcome is the result of an applied transition.
type Outcome struct {
	Order    *Order
	From     Status
	Refunded types.Money
	Bonus    *ledger.BonusGrant
}

// Matches reports whether o satisfies the transition's preconditions.
func (t *Transition) Matches(o *Order) bool {
	if t.CustomerID != "" && o.CustomerID != t.CustomerID {
		return false
	}
	for _, p := range t.From {
		if o.Status != p.Status {
			continue
		}
		if p.Settled && !o.Settled() {
			continue
		}
		return true
	}
	return false
}
