package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/xraph/topup"
	audithook "github.com/xraph/topup/audit_hook"
	"github.com/xraph/topup/catalog"
	"github.com/xraph/topup/notify"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/store/memory"
	"github.com/xraph/topup/types"
)

type trail struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (tr *trail) Record(_ context.Context, evt *audithook.AuditEvent) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, evt)
	return nil
}

func (tr *trail) actions() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]string, len(tr.events))
	for i, evt := range tr.events {
		out[i] = evt.Action
	}
	return out
}

func newEngine(t *testing.T, ext *audithook.Extension) *topup.Engine {
	t.Helper()
	e := topup.New(memory.New(),
		topup.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		topup.WithSender(notify.NewMemorySender()),
		topup.WithPlugin(ext),
	)
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Stop() })
	return e
}

func TestAuditTrailFollowsOrder(t *testing.T) {
	ctx := context.Background()
	tr := &trail{}
	e := newEngine(t, audithook.New(tr))

	if _, err := e.RegisterCustomer(ctx, "c1", "Ana", ""); err != nil {
		t.Fatal(err)
	}
	p := &catalog.Plan{Category: catalog.CategoryData, Name: "1 GB", Price: types.CUP(1000), Active: true}
	if err := e.CreatePlan(ctx, p); err != nil {
		t.Fatal(err)
	}
	o, err := e.CreateOrder(ctx, "c1", p.ID, "53512345", order.PayByTransfer())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.CancelOrder(ctx, o.ID, "op-1", "wrong number"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetAccepting(ctx, "op-1", false); err != nil {
		t.Fatal(err)
	}

	want := []string{
		audithook.ActionCustomerRegistered,
		audithook.ActionOrderCreated,
		audithook.ActionOrderCancelled,
		audithook.ActionServiceClosed,
	}
	got := tr.actions()
	if len(got) != len(want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	cancelled := tr.events[2]
	if cancelled.Actor != "op-1" || cancelled.ResourceID != o.ID.String() {
		t.Errorf("cancel event = %+v", cancelled)
	}
	if cancelled.Metadata["cancel_reason"] != "wrong number" {
		t.Errorf("cancel_reason = %v", cancelled.Metadata["cancel_reason"])
	}
	if tr.events[3].Severity != audithook.SeverityWarning {
		t.Errorf("closing the service should be a warning, got %q", tr.events[3].Severity)
	}
}

func TestActionFilters(t *testing.T) {
	ctx := context.Background()

	only := &trail{}
	e := newEngine(t, audithook.New(only, audithook.WithEnabledActions(audithook.ActionServiceOpened)))
	_, _ = e.RegisterCustomer(ctx, "c1", "Ana", "")
	_ = e.SetAccepting(ctx, "op-1", true)
	if got := only.actions(); len(got) != 1 || got[0] != audithook.ActionServiceOpened {
		t.Errorf("enabled filter: got %v", got)
	}

	skip := &trail{}
	e = newEngine(t, audithook.New(skip, audithook.WithDisabledActions(audithook.ActionCustomerRegistered)))
	_, _ = e.RegisterCustomer(ctx, "c1", "Ana", "")
	_ = e.SetAccepting(ctx, "op-1", false)
	if got := skip.actions(); len(got) != 1 || got[0] != audithook.ActionServiceClosed {
		t.Errorf("disabled filter: got %v", got)
	}
}

func TestRecorderErrorsAreSwallowed(t *testing.T) {
	failing := audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("audit store down")
	})
	ext := audithook.New(failing, audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := ext.OnServiceGateChanged(context.Background(), true, "op-1"); err != nil {
		t.Errorf("hook returned %v, want nil", err)
	}
}
