package topup

import (
	"context"
	"strings"

	"github.com/xraph/topup/catalog"
	"github.com/xraph/topup/id"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/session"
	"github.com/xraph/topup/types"
)

// ──────────────────────────────────────────────────
// Catalog
// ──────────────────────────────────────────────────

// ListPlans lists active plans of category (all categories when empty),
// cheapest first.
func (e *Engine) ListPlans(ctx context.Context, category string) ([]*catalog.Plan, error) {
	return e.store.ListPlans(ctx, catalog.ListOpts{Category: strings.TrimSpace(category)})
}

// GetPlan retrieves a plan by ID.
func (e *Engine) GetPlan(ctx context.Context, planID id.PlanID) (*catalog.Plan, error) {
	return e.store.GetPlan(ctx, planID)
}

// CreatePlan adds a plan to the catalog.
func (e *Engine) CreatePlan(ctx context.Context, p *catalog.Plan) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	if p.Name == "" {
		return ValidationError{Field: "name", Message: "is required"}
	}
	if p.Category == "" {
		return ValidationError{Field: "category", Message: "is required"}
	}
	if p.Price.Currency == "" {
		p.Price.Currency = e.currency
	}
	if !p.Price.IsPositive() {
		return ValidationError{Field: "price", Message: "must be positive"}
	}

	if p.ID.IsNil() {
		p.ID = id.NewPlanID()
	}
	p.Entity = types.NewEntity()

	return e.store.CreatePlan(ctx, p)
}

// ParsePrice parses an operator-entered price in major units of the engine
// currency, e.g. "250" or "250.50".
func (e *Engine) ParsePrice(text string) (types.Money, error) {
	price, err := types.ParseMajor(text, e.currency)
	if err != nil {
		return types.Money{}, ValidationError{Field: "price", Message: "must be a number like 250 or 250.50"}
	}
	if !price.IsPositive() {
		return types.Money{}, ValidationError{Field: "price", Message: "must be positive"}
	}
	return price, nil
}

// SetPlanPrice changes a plan's price. Orders already placed keep the price
// they were created with.
func (e *Engine) SetPlanPrice(ctx context.Context, operatorID string, planID id.PlanID, price types.Money) (*catalog.Plan, error) {
	p, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if price.Currency == "" {
		price.Currency = p.Price.Currency
	}
	if !price.IsPositive() {
		return nil, ValidationError{Field: "price", Message: "must be positive"}
	}
	if price.Currency != p.Price.Currency {
		return nil, ValidationError{Field: "price", Message: "currency " + price.Currency + " does not match plan currency " + p.Price.Currency}
	}

	if err := e.store.UpdatePlanPrice(ctx, planID, price); err != nil {
		return nil, err
	}

	old := p.Price
	p.Price = price
	p.Touch()

	e.logger.InfoContext(ctx, "plan price changed",
		"plan_id", planID.String(),
		"old_price", old.Amount,
		"new_price", price.Amount,
		"actor", operatorID,
	)
	e.plugins.EmitPlanPriceChanged(ctx, p, old, operatorID)

	return p, nil
}

// SeedCatalog inserts the default plans when the catalog is empty and
// returns how many were created.
func (e *Engine) SeedCatalog(ctx context.Context) (int, error) {
	n, err := e.store.CountPlans(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	created := 0
	for _, p := range catalog.DefaultPlans(e.currency) {
		if err := e.store.CreatePlan(ctx, p); err != nil {
			return created, err
		}
		created++
	}

	e.logger.InfoContext(ctx, "catalog seeded", "plans", created)
	return created, nil
}

// ──────────────────────────────────────────────────
// Service gate
// ──────────────────────────────────────────────────

// IsAcceptingOrders reports whether new orders are accepted.
func (e *Engine) IsAcceptingOrders(ctx context.Context) (bool, error) {
	return e.store.AcceptingOrders(ctx)
}

// SetAccepting opens or closes order intake. Orders already placed are not
// affected.
func (e *Engine) SetAccepting(ctx context.Context, operatorID string, accepting bool) error {
	if err := e.store.SetAcceptingOrders(ctx, accepting); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "service gate changed",
		"accepting", accepting,
		"actor", operatorID,
	)
	e.plugins.EmitServiceGateChanged(ctx, accepting, operatorID)

	return nil
}

// ──────────────────────────────────────────────────
// Checkout sessions
// ──────────────────────────────────────────────────

// SelectPlan remembers the customer's plan and payment method until
// Checkout or the session TTL.
func (e *Engine) SelectPlan(ctx context.Context, customerID string, planID id.PlanID, method order.PaymentMethod) (*catalog.Plan, error) {
	p, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrPlanNotFound
	}
	if _, err := resolveCredit(method, p.Price); err != nil {
		return nil, err
	}

	e.sessions.Put(customerID, session.Selection{PlanID: p.ID, Method: method})
	return p, nil
}

// Checkout consumes the customer's selection and creates the order. A
// malformed destination keeps the selection so the customer can retry.
func (e *Engine) Checkout(ctx context.Context, customerID, destination string) (*order.Order, error) {
	sel, ok := e.sessions.Take(customerID)
	if !ok {
		return nil, ErrNoSelection
	}

	o, err := e.CreateOrder(ctx, customerID, sel.PlanID, destination, sel.Method)
	if err != nil {
		if IsValidation(err) {
			e.sessions.Put(customerID, sel)
		}
		return nil, err
	}
	return o, nil
}

// ClearSelection discards the customer's pending selection.
func (e *Engine) ClearSelection(customerID string) {
	e.sessions.Clear(customerID)
}
