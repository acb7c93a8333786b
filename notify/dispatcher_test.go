package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/topup/id"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherDelivers(t *testing.T) {
	mem := NewMemorySender()
	d := NewDispatcher(mem, WithLogger(quietLogger()))
	d.Start(context.Background())

	for range 5 {
		if !d.Dispatch(New(EventOrderCreated, Operator("op1"), "new order")) {
			t.Fatal("expected dispatch to be accepted")
		}
	}
	d.Stop()

	if got := len(mem.Sent()); got != 5 {
		t.Errorf("expected 5 deliveries, got %d", got)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	var delivered atomic.Int64
	sender := SenderFunc(func(ctx context.Context, _ *Notification) error {
		<-block
		delivered.Add(1)
		return nil
	})

	// Not started: nothing consumes the queue until Stop drains it.
	d := NewDispatcher(sender, WithQueueSize(2), WithLogger(quietLogger()))
	accepted := 0
	for range 5 {
		if d.Dispatch(New(EventOrderCreated, Operator("op1"), "x")) {
			accepted++
		}
	}
	if accepted != 2 {
		t.Errorf("expected 2 accepted, got %d", accepted)
	}
	if d.Dropped() != 3 {
		t.Errorf("expected 3 dropped, got %d", d.Dropped())
	}

	close(block)
	d.Stop()
	if delivered.Load() != 2 {
		t.Errorf("expected 2 delivered on drain, got %d", delivered.Load())
	}
}

func TestDispatchDoesNotBlockOnSlowSender(t *testing.T) {
	release := make(chan struct{})
	sender := SenderFunc(func(ctx context.Context, _ *Notification) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	d := NewDispatcher(sender, WithQueueSize(1), WithLogger(quietLogger()))
	d.Start(context.Background())

	start := time.Now()
	for range 10 {
		d.Dispatch(New(EventOrderCompleted, Customer("c1"), "done"))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Dispatch blocked for %v", elapsed)
	}

	close(release)
	d.Stop()
}

func TestDispatcherSwallowsSendErrors(t *testing.T) {
	var calls atomic.Int64
	sender := SenderFunc(func(context.Context, *Notification) error {
		calls.Add(1)
		return errors.New("recipient blocked the bot")
	})

	d := NewDispatcher(sender, WithLogger(quietLogger()))
	d.Start(context.Background())
	d.Dispatch(New(EventOrderCancelled, Customer("c1"), "cancelled"))
	d.Dispatch(New(EventOrderCancelled, Customer("c2"), "cancelled"))
	d.Stop()

	if calls.Load() != 2 {
		t.Errorf("expected 2 send attempts, got %d", calls.Load())
	}
	if d.Failed() != 2 {
		t.Errorf("expected 2 failures, got %d", d.Failed())
	}
}

func TestDispatcherSurvivesPanickingSender(t *testing.T) {
	mem := NewMemorySender()
	sender := SenderFunc(func(ctx context.Context, n *Notification) error {
		if n.Recipient.ID == "c1" {
			panic("template missing")
		}
		return mem.Send(ctx, n)
	})

	d := NewDispatcher(sender, WithLogger(quietLogger()))
	d.Start(context.Background())
	d.Dispatch(New(EventOrderCompleted, Customer("c1"), "done"))
	d.Dispatch(New(EventOrderCompleted, Customer("c2"), "done"))
	d.Stop()

	if d.Failed() != 1 {
		t.Errorf("expected 1 failure, got %d", d.Failed())
	}
	if sent := mem.Sent(); len(sent) != 1 || sent[0].Recipient.ID != "c2" {
		t.Errorf("expected delivery to c2 after the panic, got %+v", sent)
	}
}

func TestDispatchRacingStopIsAccounted(t *testing.T) {
	for range 50 {
		mem := NewMemorySender()
		d := NewDispatcher(mem, WithLogger(quietLogger()))
		d.Start(context.Background())

		const senders, each = 4, 25
		var accepted atomic.Int64
		var wg sync.WaitGroup
		for range senders {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range each {
					if d.Dispatch(New(EventOrderCreated, Operator("op1"), "new order")) {
						accepted.Add(1)
					}
				}
			}()
		}
		d.Stop()
		wg.Wait()

		if got := int64(len(mem.Sent())); got != accepted.Load() {
			t.Fatalf("accepted %d notifications but delivered %d", accepted.Load(), got)
		}
		if total := accepted.Load() + d.Dropped(); total != senders*each {
			t.Fatalf("accepted+dropped = %d, want %d", total, senders*each)
		}
	}
}

func TestDispatchAfterStop(t *testing.T) {
	mem := NewMemorySender()
	d := NewDispatcher(mem, WithLogger(quietLogger()))
	d.Start(context.Background())
	d.Stop()
	d.Stop()

	if d.Dispatch(New(EventOrderCreated, Operator("op1"), "late")) {
		t.Error("expected dispatch after stop to be rejected")
	}
	if len(mem.Sent()) != 0 {
		t.Errorf("expected no deliveries, got %d", len(mem.Sent()))
	}
}

func TestMulti(t *testing.T) {
	a, b := NewMemorySender(), NewMemorySender()
	failing := SenderFunc(func(context.Context, *Notification) error { return errors.New("boom") })

	err := Multi(a, failing, b).Send(context.Background(), New(EventOrderConfirmed, Customer("c1"), "confirmed"))
	if err == nil {
		t.Error("expected joined error from failing sender")
	}
	if len(a.Sent()) != 1 || len(b.Sent()) != 1 {
		t.Errorf("expected both memory senders to receive, got %d and %d", len(a.Sent()), len(b.Sent()))
	}
}

func TestMemorySenderByEvent(t *testing.T) {
	mem := NewMemorySender()
	ctx := context.Background()
	_ = mem.Send(ctx, New(EventOrderCreated, Operator("op1"), "a"))
	_ = mem.Send(ctx, New(EventOrderConfirmed, Customer("c1"), "b"))
	_ = mem.Send(ctx, New(EventOrderCreated, Operator("op2"), "c"))

	if got := len(mem.ByEvent(EventOrderCreated)); got != 2 {
		t.Errorf("expected 2 created notifications, got %d", got)
	}
	mem.Reset()
	if len(mem.Sent()) != 0 {
		t.Error("expected reset to clear notifications")
	}
}

func TestOrderButtonRoundTrip(t *testing.T) {
	orderID := id.NewOrderID()
	b := OrderButton("Confirm", ActionConfirm, orderID)

	action, parsed, err := ParseAction(b.Action)
	if err != nil {
		t.Fatalf("ParseAction: %v", err)
	}
	if action != ActionConfirm || parsed.String() != orderID.String() {
		t.Errorf("got %q %s, want %q %s", action, parsed, ActionConfirm, orderID)
	}

	for _, bad := range []string{"", "confirm", "confirm:plan_01h2xcejqtf2nbrexx3vqjhp41", ":ord_x"} {
		if _, _, err := ParseAction(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
