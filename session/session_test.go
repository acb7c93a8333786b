package session_test

import (
	"sync"
	"testing"
	"time"

	"github.com/xraph/topup/id"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/session"
)

func TestPutGetTake(t *testing.T) {
	s := session.New(10, time.Minute)
	planID := id.NewPlanID()
	s.Put("c1", session.Selection{PlanID: planID, Method: order.PayByCredit()})

	sel, ok := s.Get("c1")
	if !ok {
		t.Fatal("expected selection")
	}
	if sel.PlanID.String() != planID.String() || sel.Method.Kind != order.MethodCredit {
		t.Errorf("unexpected selection %+v", sel)
	}
	if sel.SelectedAt.IsZero() {
		t.Error("expected SelectedAt to be stamped")
	}

	if _, ok := s.Take("c1"); !ok {
		t.Fatal("expected Take to return the selection")
	}
	if _, ok := s.Take("c1"); ok {
		t.Error("expected selection to be consumed")
	}
}

func TestExpiry(t *testing.T) {
	s := session.New(10, 50*time.Millisecond)
	s.Put("c1", session.Selection{PlanID: id.NewPlanID()})
	time.Sleep(150 * time.Millisecond)

	if _, ok := s.Get("c1"); ok {
		t.Error("expected selection to expire")
	}
}

func TestEviction(t *testing.T) {
	s := session.New(2, time.Minute)
	s.Put("c1", session.Selection{PlanID: id.NewPlanID()})
	s.Put("c2", session.Selection{PlanID: id.NewPlanID()})
	s.Put("c3", session.Selection{PlanID: id.NewPlanID()})

	if s.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", s.Len())
	}
	if _, ok := s.Get("c1"); ok {
		t.Error("expected oldest selection to be evicted")
	}
}

func TestTakeIsOneShotUnderConcurrency(t *testing.T) {
	s := session.New(10, time.Minute)
	s.Put("c1", session.Selection{PlanID: id.NewPlanID()})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		hits int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.Take("c1"); ok {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if hits != 1 {
		t.Errorf("expected exactly one Take to win, got %d", hits)
	}
}

func TestClear(t *testing.T) {
	s := session.New(0, 0)
	s.Put("c1", session.Selection{PlanID: id.NewPlanID()})
	s.Clear("c1")
	if _, ok := s.Get("c1"); ok {
		t.Error("expected selection to be cleared")
	}
}
