package sqlite_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/topup"
	"github.com/xraph/topup/catalog"
	"github.com/xraph/topup/id"
	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/notify"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/store/sqlite"
	"github.com/xraph/topup/types"
)

const operatorID = "op-1"

// openStore opens a file-backed database so every pooled connection sees
// the same tables.
func openStore(t *testing.T) *sqlite.Store {
	t.Helper()

	drv := sqlitedriver.New()
	if err := drv.Open(context.Background(), filepath.Join(t.TempDir(), "topup.db")); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		t.Fatalf("grove.Open: %v", err)
	}
	return sqlite.New(db)
}

func newEngine(t *testing.T) (*topup.Engine, *sqlite.Store) {
	t.Helper()

	s := openStore(t)
	e := topup.New(s,
		topup.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		topup.WithSender(notify.NewMemorySender()),
		topup.WithOperators(operatorID),
		topup.WithReferralBonus(300),
	)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = e.Stop() })
	return e, s
}

func balance(t *testing.T, e *topup.Engine, customerID string) int64 {
	t.Helper()
	b, err := e.GetCreditBalance(context.Background(), customerID)
	if err != nil {
		t.Fatalf("GetCreditBalance(%s): %v", customerID, err)
	}
	return b.Amount
}

func mustOrder(t *testing.T) func(*order.Order, error) *order.Order {
	return func(o *order.Order, err error) *order.Order {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return o
	}
}

func TestEngineLifecycle(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	a, err := e.RegisterCustomer(ctx, "a", "Alice", "")
	if err != nil {
		t.Fatalf("RegisterCustomer(a): %v", err)
	}
	if a.CreatedAt.IsZero() {
		t.Error("created_at should round-trip as a time")
	}
	b, err := e.RegisterCustomer(ctx, "b", "Bob", a.ReferralCode)
	if err != nil {
		t.Fatalf("RegisterCustomer(b): %v", err)
	}
	if b.ReferredBy != "a" {
		t.Fatalf("referred_by = %q, want a", b.ReferredBy)
	}
	ref, err := e.GetReferral(ctx, "b")
	if err != nil {
		t.Fatalf("GetReferral: %v", err)
	}
	if ref.BonusApplied || ref.GrantedAt != nil {
		t.Errorf("fresh referral should be pending, got %+v", ref)
	}

	if err := e.Refund(ctx, "b", types.CUP(500)); err != nil {
		t.Fatalf("seed credit: %v", err)
	}
	p := &catalog.Plan{Category: "data", Name: "data plan", Price: types.CUP(1000), Active: true}
	if err := e.CreatePlan(ctx, p); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	// Cancelling refunds exactly the reserved credit.
	o1 := mustOrder(t)(e.CreateOrder(ctx, "b", p.ID, "53512345", order.PayWithCredit(types.CUP(200))))
	if got := balance(t, e, "b"); got != 300 {
		t.Errorf("balance after reserve = %d, want 300", got)
	}
	mustOrder(t)(e.CancelOrder(ctx, o1.ID, "b", "changed my mind"))
	if got := balance(t, e, "b"); got != 500 {
		t.Errorf("balance after cancel = %d, want 500", got)
	}
	if _, err := e.CompleteOrder(ctx, o1.ID, operatorID); !errors.Is(err, topup.ErrStateConflict) {
		t.Errorf("complete after cancel: err = %v, want ErrStateConflict", err)
	}

	complete := func() *order.Order {
		t.Helper()
		o := mustOrder(t)(e.CreateOrder(ctx, "b", p.ID, "53512345", order.PayByTransfer()))
		mustOrder(t)(e.ConfirmOrder(ctx, o.ID, operatorID))
		mustOrder(t)(e.SubmitPaymentProof(ctx, o.ID, "b", "receipt-"+o.ID.String()))
		return mustOrder(t)(e.CompleteOrder(ctx, o.ID, operatorID))
	}

	// The first completion pays the referrer, the second does not.
	first := complete()
	if got := balance(t, e, "a"); got != 300 {
		t.Errorf("referrer balance = %d, want 300", got)
	}
	complete()
	if got := balance(t, e, "a"); got != 300 {
		t.Errorf("bonus granted twice: referrer balance = %d", got)
	}
	ref, err = e.GetReferral(ctx, "b")
	if err != nil {
		t.Fatalf("GetReferral: %v", err)
	}
	if !ref.BonusApplied || ref.GrantedAt == nil || ref.BonusOrderID.String() != first.ID.String() {
		t.Errorf("referral = %+v, want applied by %s", ref, first.ID)
	}

	// One order left open is swept.
	mustOrder(t)(e.CreateOrder(ctx, "b", p.ID, "53512345", order.PayByTransfer()))
	time.Sleep(20 * time.Millisecond)
	n, err := e.SweepStale(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("SweepStale: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d orders, want 1", n)
	}

	stats, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 4 || stats.ByStatus[order.StatusCompleted] != 2 || stats.ByStatus[order.StatusCancelled] != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Revenue != 2000 || stats.ActivePlans != 1 {
		t.Errorf("revenue = %d active plans = %d, want 2000 and 1", stats.Revenue, stats.ActivePlans)
	}

	c, err := e.GetCustomer(ctx, "b")
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if c.TotalSpent.Amount != 2000 || c.Credit.Amount != 500 {
		t.Errorf("customer = %+v", c)
	}
}

func TestConcurrentCompletionCommitsOnce(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	a, err := e.RegisterCustomer(ctx, "a", "Alice", "")
	if err != nil {
		t.Fatalf("RegisterCustomer(a): %v", err)
	}
	if _, err := e.RegisterCustomer(ctx, "b", "Bob", a.ReferralCode); err != nil {
		t.Fatalf("RegisterCustomer(b): %v", err)
	}
	if err := e.Refund(ctx, "b", types.CUP(1000)); err != nil {
		t.Fatalf("seed credit: %v", err)
	}
	p := &catalog.Plan{Category: "data", Name: "data plan", Price: types.CUP(1000), Active: true}
	if err := e.CreatePlan(ctx, p); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	o := mustOrder(t)(e.CreateOrder(ctx, "b", p.ID, "53512345", order.PayByCredit()))

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.CompleteOrder(ctx, o.ID, operatorID)
		}()
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, topup.ErrStateConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("%d completions committed, want 1", won)
	}

	c, err := e.GetCustomer(ctx, "b")
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if c.TotalSpent.Amount != 1000 {
		t.Errorf("total_spent = %d, want 1000", c.TotalSpent.Amount)
	}
	if got := balance(t, e, "a"); got != 300 {
		t.Errorf("referrer balance = %d, want 300", got)
	}
}

func TestCreateCustomerIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	newCustomer := func(customerID, code string) *ledger.Customer {
		return &ledger.Customer{
			Entity:       types.NewEntity(),
			ID:           customerID,
			Credit:       types.CUP(0),
			ReferralCode: code,
			TotalSpent:   types.CUP(0),
		}
	}
	newReferral := func(referrerID, referredID string) *ledger.Referral {
		return &ledger.Referral{
			ID:          id.NewReferralID(),
			ReferrerID:  referrerID,
			ReferredID:  referredID,
			BonusAmount: types.CUP(300),
			CreatedAt:   time.Now().UTC(),
		}
	}

	for _, c := range []*ledger.Customer{newCustomer("a", "AAAAAA"), newCustomer("x", "XXXXXX")} {
		if err := s.CreateCustomer(ctx, c, nil); err != nil {
			t.Fatalf("CreateCustomer(%s): %v", c.ID, err)
		}
	}
	if err := s.CreateCustomer(ctx, newCustomer("b", "BBBBBB"), newReferral("a", "b")); err != nil {
		t.Fatalf("CreateCustomer(b): %v", err)
	}

	// The customer insert succeeds but the referral collides with b's
	// unique referred_id, so nothing may be left behind.
	c := newCustomer("c", "CCCCCC")
	err := s.CreateCustomer(ctx, c, newReferral("x", "b"))
	if !errors.Is(err, topup.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	if _, err := s.GetCustomer(ctx, "c"); !errors.Is(err, topup.ErrCustomerNotFound) {
		t.Errorf("customer survived a failed referral insert: %v", err)
	}

	// A retry with a valid referral starts clean.
	if err := s.CreateCustomer(ctx, c, newReferral("x", "c")); err != nil {
		t.Fatalf("retry CreateCustomer(c): %v", err)
	}
	if _, err := s.GetReferral(ctx, "c"); err != nil {
		t.Errorf("GetReferral(c): %v", err)
	}
}
