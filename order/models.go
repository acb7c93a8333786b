package order

import (
	"github.com/xraph/topup/id"
	"github.com/xraph/topup/types"
)

type Status string

const (
	StatusRequested        Status = "requested"
	StatusAwaitingPayment  Status = "awaiting_payment"
	StatusPaymentSubmitted Status = "payment_submitted"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusRequested,
	StatusAwaitingPayment,
	StatusPaymentSubmitted,
	StatusCompleted,
	StatusCancelled,
}

// Open lists the non-terminal statuses.
var Open = []Status{
	StatusRequested,
	StatusAwaitingPayment,
	StatusPaymentSubmitted,
}

var transitions = map[Status][]Status{
	StatusRequested:        {StatusAwaitingPayment, StatusCancelled},
	StatusAwaitingPayment:  {StatusPaymentSubmitted, StatusCompleted, StatusCancelled},
	StatusPaymentSubmitted: {StatusCompleted, StatusCancelled},
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether the lifecycle graph has an edge from -> to.
// It does not check the settlement guard on awaiting_payment -> completed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Order struct {
	types.Entity
	ID           id.OrderID  `json:"id"`
	CustomerID   string      `json:"customer_id"`
	CustomerName string      `json:"customer_name,omitempty"`
	PlanID       id.PlanID   `json:"plan_id"`
	PlanName     string      `json:"plan_name"`
	Price        types.Money `json:"price"`
	CreditUsed   types.Money `json:"credit_used"`
	Destination  string      `json:"destination"`
	Status       Status      `json:"status"`
	PaymentProof string      `json:"payment_proof,omitempty"`
	CancelReason string      `json:"cancel_reason,omitempty"`
	LastActor    string      `json:"last_actor"`
}

// Outstanding is the amount still to be transferred by the customer.
func (o *Order) Outstanding() types.Money {
	return o.Price.Subtract(o.CreditUsed)
}

// Settled reports whether credit covers the full price.
func (o *Order) Settled() bool {
	return o.CreditUsed.Amount == o.Price.Amount
}

// Stats aggregates orders for the operator dashboard. Revenue is the sum of
// completed order prices in minor units.
type Stats struct {
	ByStatus    map[Status]int64 `json:"by_status"`
	Total       int64            `json:"total"`
	Revenue     int64            `json:"revenue"`
	ActivePlans int64            `json:"active_plans"`
}
