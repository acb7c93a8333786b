package plugin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/topup/order"
	"github.com/xraph/topup/types"
)

type recorder struct {
	name      string
	created   atomic.Int32
	cancelled atomic.Int32
	refunded  atomic.Int64
	err       error
	delay     time.Duration
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnOrderCreated(ctx context.Context, _ *order.Order) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.created.Add(1)
	return r.err
}

func (r *recorder) OnOrderCancelled(_ context.Context, _ *order.Order, refunded types.Money) error {
	r.cancelled.Add(1)
	r.refunded.Add(refunded.Amount)
	return nil
}

type nameOnly struct{ name string }

func (n nameOnly) Name() string { return n.name }

func quietRegistry() *Registry {
	return NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := quietRegistry()
	if err := r.Register(&recorder{name: "audit"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(nameOnly{name: "audit"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
	if r.Get("audit") == nil || r.Get("missing") != nil {
		t.Error("Get returned the wrong plugin")
	}
}

func TestEmitOnlyReachesImplementers(t *testing.T) {
	r := quietRegistry()
	rec := &recorder{name: "rec"}
	_ = r.Register(rec)
	_ = r.Register(nameOnly{name: "bare"})

	ctx := context.Background()
	o := &order.Order{}
	r.EmitOrderCreated(ctx, o)
	r.EmitOrderCancelled(ctx, o, types.CUP(800))
	r.EmitOrderCompleted(ctx, o)

	if rec.created.Load() != 1 || rec.cancelled.Load() != 1 || rec.refunded.Load() != 800 {
		t.Errorf("created=%d cancelled=%d refunded=%d", rec.created.Load(), rec.cancelled.Load(), rec.refunded.Load())
	}
	if len(r.List()) != 2 {
		t.Errorf("List = %d plugins, want 2", len(r.List()))
	}
}

func TestHookFailuresAreContained(t *testing.T) {
	r := quietRegistry().WithTimeout(20 * time.Millisecond)
	failing := &recorder{name: "failing", err: errors.New("boom")}
	slow := &recorder{name: "slow", delay: time.Second}
	after := &recorder{name: "after"}
	_ = r.Register(failing)
	_ = r.Register(slow)
	_ = r.Register(after)

	start := time.Now()
	r.EmitOrderCreated(context.Background(), &order.Order{})

	if time.Since(start) > 500*time.Millisecond {
		t.Error("slow hook was not bounded by the timeout")
	}
	if failing.created.Load() != 1 || after.created.Load() != 1 {
		t.Error("hooks after a failure should still run")
	}
	if slow.created.Load() != 0 {
		t.Error("timed out hook should not have completed")
	}
}

type panicking struct{}

func (panicking) Name() string { return "panicking" }

func (panicking) OnOrderCreated(context.Context, *order.Order) error {
	panic("nil map write")
}

func TestHookPanicsAreContained(t *testing.T) {
	r := quietRegistry()
	after := &recorder{name: "after"}
	_ = r.Register(panicking{})
	_ = r.Register(after)

	r.EmitOrderCreated(context.Background(), &order.Order{})

	if after.created.Load() != 1 {
		t.Error("hooks after a panic should still run")
	}
}
