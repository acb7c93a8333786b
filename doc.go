// Package topup provides the order lifecycle and credit ledger engine behind
// a prepaid top-up shop: customers order plans (data, voice minutes, SMS
// bundles) for a destination number, optionally paying part or all of the
// price with credit earned through referrals, and operators confirm, complete
// or cancel those orders.
//
// The customer and operator front-ends usually run as separate processes
// sharing one store. The Engine keeps them consistent by expressing every
// mutation as a single atomic conditional store operation that covers both
// the order and the ledger:
//
//   - CreateOrder inserts the order and reserves its credit together; an
//     insufficient balance writes nothing.
//   - CancelOrder refunds exactly the credit the order reserved.
//   - CompleteOrder records the customer's spend and grants the pending
//     referral bonus at most once per referral.
//
// A transition attempted from a state the order is no longer in returns
// ErrStateConflict with no effect. Callers treat it as a no-op: it usually
// means another operator already acted.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/topup"
//	    "github.com/xraph/topup/store/sqlite"
//	)
//
//	// db is a *grove.DB opened with the sqlite driver.
//	engine := topup.New(sqlite.New(db),
//	    topup.WithOperators("operator-chat-id"),
//	    topup.WithReferralBonus(500),
//	    topup.WithPaymentAccount("9204 0699 9999 9999"),
//	)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
//	c, _ := engine.RegisterCustomer(ctx, "chat-42", "Ana", referralCode)
//	o, err := engine.CreateOrder(ctx, c.ID, planID, "53512345", topup.PayByCredit())
//
// # Notifications
//
// State changes are reported after commit through a notify.Dispatcher. The
// dispatcher never blocks the caller and never retries or rolls back the
// transition; a failed delivery is logged.
//
// # Money
//
// All amounts are integer minor units (centavos for CUP). Prices are
// snapshotted into each order, so later price edits do not affect it.
package topup
