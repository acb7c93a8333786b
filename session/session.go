// Package session keeps short-lived per-customer checkout selections.
// Entries expire after a TTL and the least recently used ones are evicted
// once the store is full, so abandoned conversations never accumulate.
package session

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/xraph/topup/id"
	"github.com/xraph/topup/order"
)

const (
	DefaultTTL  = 15 * time.Minute
	DefaultSize = 10000
)

// Selection is the plan and payment method a customer picked before
// supplying a destination.
type Selection struct {
	PlanID     id.PlanID           `json:"plan_id"`
	Method     order.PaymentMethod `json:"method"`
	SelectedAt time.Time           `json:"selected_at"`
}

type Store struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, Selection]
}

// New creates a selection store. Non-positive arguments use the defaults.
func New(size int, ttl time.Duration) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{lru: expirable.NewLRU[string, Selection](size, nil, ttl)}
}

// Put replaces the customer's selection and restarts its TTL.
func (s *Store) Put(customerID string, sel Selection) {
	if sel.SelectedAt.IsZero() {
		sel.SelectedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Add(customerID, sel)
}

// Get returns the customer's selection without consuming it.
func (s *Store) Get(customerID string) (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Get(customerID)
}

// Take returns and removes the customer's selection.
func (s *Store) Take(customerID string) (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, ok := s.lru.Get(customerID)
	if ok {
		s.lru.Remove(customerID)
	}
	return sel, ok
}

// Clear drops the customer's selection.
func (s *Store) Clear(customerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Remove(customerID)
}

// Len returns the number of live selections.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}
