// Package memory provides an in-memory store.Store for tests and
// single-process deployments. One mutex covers every entity, so each method
// is a single atomic unit across orders and the ledger.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/topup"
	"github.com/xraph/topup/catalog"
	"github.com/xraph/topup/id"
	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/store"
	"github.com/xraph/topup/types"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	plans     map[string]*catalog.Plan
	customers map[string]*ledger.Customer
	codes     map[string]string // referral code -> customer id
	referrals map[string]*ledger.Referral
	orders    map[string]*order.Order
	accepting bool
}

func New() *Store {
	return &Store{
		plans:     make(map[string]*catalog.Plan),
		customers: make(map[string]*ledger.Customer),
		codes:     make(map[string]string),
		referrals: make(map[string]*ledger.Referral),
		orders:    make(map[string]*order.Order),
		accepting: true,
	}
}

// ──────────────────────────────────────────────────
// Catalog
// ──────────────────────────────────────────────────

func (s *Store) CreatePlan(_ context.Context, p *catalog.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[p.ID.String()]; exists {
		return topup.ErrAlreadyExists
	}
	cp := *p
	s.plans[p.ID.String()] = &cp
	return nil
}

func (s *Store) GetPlan(_ context.Context, planID id.PlanID) (*catalog.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.plans[planID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, topup.ErrPlanNotFound
}

func (s *Store) ListPlans(_ context.Context, opts catalog.ListOpts) ([]*catalog.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*catalog.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		if !p.Active && !opts.IncludeInactive {
			continue
		}
		if opts.Category != "" && p.Category != opts.Category {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Price.Amount != result[j].Price.Amount {
			return result[i].Price.Amount < result[j].Price.Amount
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *Store) UpdatePlanPrice(_ context.Context, planID id.PlanID, price types.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.plans[planID.String()]
	if !ok {
		return topup.ErrPlanNotFound
	}
	p.Price = price
	p.Touch()
	return nil
}

func (s *Store) CountPlans(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.plans)), nil
}

// ──────────────────────────────────────────────────
// Ledger
// ──────────────────────────────────────────────────

func (s *Store) CreateCustomer(_ context.Context, c *ledger.Customer, ref *ledger.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[c.ID]; exists {
		return topup.ErrAlreadyExists
	}
	if _, taken := s.codes[c.ReferralCode]; taken {
		return topup.ErrAlreadyExists
	}
	if ref != nil {
		if _, ok := s.customers[ref.ReferrerID]; !ok {
			return topup.ErrCustomerNotFound
		}
	}

	cp := *c
	s.customers[c.ID] = &cp
	s.codes[c.ReferralCode] = c.ID
	if ref != nil {
		rp := *ref
		s.referrals[ref.ReferredID] = &rp
	}
	return nil
}

func (s *Store) GetCustomer(_ context.Context, customerID string) (*ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.customers[customerID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, topup.ErrCustomerNotFound
}

func (s *Store) GetCustomerByReferralCode(_ context.Context, code string) (*ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if customerID, ok := s.codes[code]; ok {
		cp := *s.customers[customerID]
		return &cp, nil
	}
	return nil, topup.ErrCustomerNotFound
}

func (s *Store) GetReferral(_ context.Context, referredID string) (*ledger.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.referrals[referredID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, topup.ErrReferralNotFound
}

func (s *Store) Reserve(_ context.Context, customerID string, amount types.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserveLocked(customerID, amount.Amount)
}

func (s *Store) Refund(_ context.Context, customerID string, amount types.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[customerID]
	if !ok {
		return topup.ErrCustomerNotFound
	}
	c.Credit.Amount += amount.Amount
	c.Touch()
	return nil
}

func (s *Store) GrantReferralBonus(_ context.Context, referredID string, orderID id.OrderID) (*ledger.BonusGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grantBonusLocked(referredID, orderID, time.Now().UTC()), nil
}

func (s *Store) reserveLocked(customerID string, amount int64) error {
	c, ok := s.customers[customerID]
	if !ok {
		return topup.ErrCustomerNotFound
	}
	if c.Credit.Amount < amount {
		return topup.ErrInsufficientCredit
	}
	c.Credit.Amount -= amount
	c.Touch()
	return nil
}

func (s *Store) grantBonusLocked(referredID string, orderID id.OrderID, at time.Time) *ledger.BonusGrant {
	ref, ok := s.referrals[referredID]
	if !ok || ref.BonusApplied {
		return nil
	}
	referrer, ok := s.customers[ref.ReferrerID]
	if !ok {
		return nil
	}

	ref.BonusApplied = true
	ref.BonusOrderID = orderID
	ref.GrantedAt = &at
	referrer.Credit.Amount += ref.BonusAmount.Amount
	referrer.ReferralsGranted++
	referrer.Touch()

	return &ledger.BonusGrant{
		ReferralID: ref.ID,
		ReferrerID: ref.ReferrerID,
		ReferredID: ref.ReferredID,
		Amount:     ref.BonusAmount,
		OrderID:    orderID,
	}
}

// ──────────────────────────────────────────────────
// Orders
// ──────────────────────────────────────────────────

func (s *Store) PlaceOrder(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID.String()]; exists {
		return topup.ErrAlreadyExists
	}
	if _, ok := s.customers[o.CustomerID]; !ok {
		return topup.ErrCustomerNotFound
	}
	if o.CreditUsed.IsPositive() {
		if err := s.reserveLocked(o.CustomerID, o.CreditUsed.Amount); err != nil {
			return err
		}
	}

	cp := *o
	s.orders[o.ID.String()] = &cp
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID id.OrderID) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.orders[orderID.String()]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, topup.ErrOrderNotFound
}

func (s *Store) ListOrders(_ context.Context, opts order.ListOpts) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*order.Order, 0)
	for _, o := range s.orders {
		if len(opts.Statuses) > 0 && !hasStatus(opts.Statuses, o.Status) {
			continue
		}
		if opts.CustomerID != "" && o.CustomerID != opts.CustomerID {
			continue
		}
		if !opts.CreatedBefore.IsZero() && !o.CreatedAt.Before(opts.CreatedBefore) {
			continue
		}
		cp := *o
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID.String() > result[j].ID.String()
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return []*order.Order{}, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (s *Store) TransitionOrder(_ context.Context, t *order.Transition) (*order.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[t.OrderID.String()]
	if !ok || (t.CustomerID != "" && o.CustomerID != t.CustomerID) {
		return nil, topup.ErrOrderNotFound
	}
	if !t.Matches(o) {
		return nil, topup.ErrStateConflict
	}
	c, ok := s.customers[o.CustomerID]
	if !ok {
		return nil, topup.ErrCustomerNotFound
	}

	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	out := &order.Outcome{From: o.Status, Refunded: types.Zero(o.Price.Currency)}
	switch t.To {
	case order.StatusPaymentSubmitted:
		o.PaymentProof = t.PaymentProof
	case order.StatusCancelled:
		o.CancelReason = t.CancelReason
		if o.CreditUsed.IsPositive() {
			c.Credit.Amount += o.CreditUsed.Amount
			c.Touch()
			out.Refunded = o.CreditUsed
		}
	case order.StatusCompleted:
		c.TotalSpent.Amount += o.Price.Amount
		c.Touch()
		out.Bonus = s.grantBonusLocked(o.CustomerID, o.ID, at)
	}

	o.Status = t.To
	o.LastActor = t.Actor
	o.UpdatedAt = at

	cp := *o
	out.Order = &cp
	return out, nil
}

func (s *Store) OrderStats(_ context.Context) (*order.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &order.Stats{ByStatus: make(map[order.Status]int64, len(order.Statuses))}
	for _, st := range order.Statuses {
		stats.ByStatus[st] = 0
	}
	for _, o := range s.orders {
		stats.ByStatus[o.Status]++
		stats.Total++
		if o.Status == order.StatusCompleted {
			stats.Revenue += o.Price.Amount
		}
	}
	return stats, nil
}

// ──────────────────────────────────────────────────
// Service gate
// ──────────────────────────────────────────────────

func (s *Store) AcceptingOrders(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accepting, nil
}

func (s *Store) SetAcceptingOrders(_ context.Context, accepting bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepting = accepting
	return nil
}

// ──────────────────────────────────────────────────
// Core
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func hasStatus(statuses []order.Status, st order.Status) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}
