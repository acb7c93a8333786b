package order_test

import (
	"testing"

	"github.com/xraph/topup/order"
	"github.com/xraph/topup/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to order.Status
		want     bool
	}{
		{order.StatusRequested, order.StatusAwaitingPayment, true},
		{order.StatusRequested, order.StatusCancelled, true},
		{order.StatusRequested, order.StatusPaymentSubmitted, false},
		{order.StatusRequested, order.StatusCompleted, false},
		{order.StatusAwaitingPayment, order.StatusPaymentSubmitted, true},
		{order.StatusAwaitingPayment, order.StatusCompleted, true},
		{order.StatusAwaitingPayment, order.StatusCancelled, true},
		{order.StatusAwaitingPayment, order.StatusRequested, false},
		{order.StatusPaymentSubmitted, order.StatusCompleted, true},
		{order.StatusPaymentSubmitted, order.StatusCancelled, true},
		{order.StatusPaymentSubmitted, order.StatusAwaitingPayment, false},
		{order.StatusCompleted, order.StatusCancelled, false},
		{order.StatusCancelled, order.StatusCompleted, false},
		{order.StatusCancelled, order.StatusRequested, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := order.CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range order.Statuses {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if order.Status("shipped").IsValid() {
		t.Error("unknown status should be invalid")
	}
	for _, s := range order.Open {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !order.StatusCompleted.IsTerminal() || !order.StatusCancelled.IsTerminal() {
		t.Error("completed and cancelled should be terminal")
	}
}

func TestOutstanding(t *testing.T) {
	o := &order.Order{Price: types.CUP(2500), CreditUsed: types.CUP(500)}
	if got := o.Outstanding(); !got.Equal(types.CUP(2000)) {
		t.Errorf("Outstanding = %v, want %v", got, types.CUP(2000))
	}
	if o.Settled() {
		t.Error("partially paid order should not be settled")
	}

	o.CreditUsed = types.CUP(2500)
	if !o.Settled() {
		t.Error("fully credit-paid order should be settled")
	}
}

func TestCreditFor(t *testing.T) {
	price := types.CUP(1000)
	tests := []struct {
		name   string
		method order.PaymentMethod
		want   types.Money
	}{
		{"transfer", order.PayByTransfer(), types.CUP(0)},
		{"credit", order.PayByCredit(), types.CUP(1000)},
		{"mixed", order.PayWithCredit(types.CUP(300)), types.CUP(300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.method.CreditFor(price); !got.Equal(tt.want) {
				t.Errorf("CreditFor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransitionMatches(t *testing.T) {
	settled := &order.Order{CustomerID: "c1", Status: order.StatusAwaitingPayment, Price: types.CUP(1000), CreditUsed: types.CUP(1000)}
	partial := &order.Order{CustomerID: "c1", Status: order.StatusAwaitingPayment, Price: types.CUP(1000), CreditUsed: types.CUP(200)}

	complete := &order.Transition{
		To: order.StatusCompleted,
		From: []order.Precondition{
			{Status: order.StatusPaymentSubmitted},
			{Status: order.StatusAwaitingPayment, Settled: true},
		},
	}
	if !complete.Matches(settled) {
		t.Error("settled awaiting_payment order should be completable")
	}
	if complete.Matches(partial) {
		t.Error("partially paid awaiting_payment order should not be completable")
	}

	submit := &order.Transition{
		To:         order.StatusPaymentSubmitted,
		From:       []order.Precondition{{Status: order.StatusAwaitingPayment}},
		CustomerID: "c2",
	}
	if submit.Matches(partial) {
		t.Error("ownership mismatch should not match")
	}
	submit.CustomerID = "c1"
	if !submit.Matches(partial) {
		t.Error("owner should match")
	}
}
