package topup_test

import (
	"context"
	"log"
	"log/slog"
	"testing"

	"github.com/xraph/topup"
	"github.com/xraph/topup/catalog"
	"github.com/xraph/topup/notify"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/store/memory"
	"github.com/xraph/topup/types"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use SQLite or PostgreSQL in production)
		store := memory.New()

		// Initialize the engine
		e := topup.New(store,
			topup.WithLogger(slog.Default()),
			topup.WithSender(notify.LogSender{Logger: slog.Default()}),
			topup.WithOperators("operator_1"),
			topup.WithReferralBonus(500), // CUP 5.00 per referral
			topup.WithPaymentAccount("9200 0699 9100 0000"),
		)

		// Start the engine
		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		// Seed the default catalog
		if _, err := e.SeedCatalog(ctx); err != nil {
			t.Fatal(err)
		}

		// First contact with an invite code
		inviter, err := e.RegisterCustomer(ctx, "tg:1001", "Ana", "")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := e.RegisterCustomer(ctx, "tg:1002", "Luis", inviter.ReferralCode); err != nil {
			t.Fatal(err)
		}

		// Pick the cheapest voice plan
		plans, err := e.ListPlans(ctx, catalog.CategoryVoice)
		if err != nil {
			t.Fatal(err)
		}

		// Place an order paid by bank transfer
		o, err := e.CreateOrder(ctx, "tg:1002", plans[0].ID, "53512345", order.PayByTransfer())
		if err != nil {
			t.Fatal(err)
		}

		// Operator confirms, customer sends proof, operator completes
		if _, err := e.ConfirmOrder(ctx, o.ID, "operator_1"); err != nil {
			t.Fatal(err)
		}
		if _, err := e.SubmitPaymentProof(ctx, o.ID, "tg:1002", "photo:receipt-1"); err != nil {
			t.Fatal(err)
		}
		if _, err := e.CompleteOrder(ctx, o.ID, "operator_1"); err != nil {
			t.Fatal(err)
		}

		// The inviter received the referral bonus
		balance, err := e.GetCreditBalance(ctx, "tg:1001")
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("Inviter balance: %s\n", balance)
	})

	// Test Money type examples
	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.CUP(1800)   // CUP 18.00
		_ = types.USD(4900)   // $49.00
		_ = types.Zero("cup") // CUP 0.00

		// Arithmetic
		m1 := types.CUP(1000)
		m2 := types.CUP(400)
		_ = m1.Add(m2)      // CUP 14.00
		_ = m1.Subtract(m2) // CUP 6.00

		// Comparison
		if m2.LessThan(m1) {
			// m2 is less than m1
		}

		// Formatting
		_ = m1.String()      // "CUP 10.00"
		_ = m1.FormatMajor() // "10.00"
	})
}
