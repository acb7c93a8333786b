package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/topup/catalog"
	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/types"
)

// DefaultHookTimeout bounds how long a single plugin hook may run.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emission never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                 []OnInit
	onShutdown             []OnShutdown
	onOrderCreated         []OnOrderCreated
	onOrderConfirmed       []OnOrderConfirmed
	onPaymentSubmitted     []OnPaymentSubmitted
	onOrderCompleted       []OnOrderCompleted
	onOrderCancelled       []OnOrderCancelled
	onCustomerRegistered   []OnCustomerRegistered
	onReferralBonusGranted []OnReferralBonusGranted
	onPlanPriceChanged     []OnPlanPriceChanged
	onServiceGateChanged   []OnServiceGateChanged
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnOrderCreated); ok {
		r.onOrderCreated = append(r.onOrderCreated, v)
		hooks = append(hooks, "OnOrderCreated")
	}
	if v, ok := p.(OnOrderConfirmed); ok {
		r.onOrderConfirmed = append(r.onOrderConfirmed, v)
		hooks = append(hooks, "OnOrderConfirmed")
	}
	if v, ok := p.(OnPaymentSubmitted); ok {
		r.onPaymentSubmitted = append(r.onPaymentSubmitted, v)
		hooks = append(hooks, "OnPaymentSubmitted")
	}
	if v, ok := p.(OnOrderCompleted); ok {
		r.onOrderCompleted = append(r.onOrderCompleted, v)
		hooks = append(hooks, "OnOrderCompleted")
	}
	if v, ok := p.(OnOrderCancelled); ok {
		r.onOrderCancelled = append(r.onOrderCancelled, v)
		hooks = append(hooks, "OnOrderCancelled")
	}
	if v, ok := p.(OnCustomerRegistered); ok {
		r.onCustomerRegistered = append(r.onCustomerRegistered, v)
		hooks = append(hooks, "OnCustomerRegistered")
	}
	if v, ok := p.(OnReferralBonusGranted); ok {
		r.onReferralBonusGranted = append(r.onReferralBonusGranted, v)
		hooks = append(hooks, "OnReferralBonusGranted")
	}
	if v, ok := p.(OnPlanPriceChanged); ok {
		r.onPlanPriceChanged = append(r.onPlanPriceChanged, v)
		hooks = append(hooks, "OnPlanPriceChanged")
	}
	if v, ok := p.(OnServiceGateChanged); ok {
		r.onServiceGateChanged = append(r.onServiceGateChanged, v)
		hooks = append(hooks, "OnServiceGateChanged")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnInit", func(ctx context.Context) error {
			return p.OnInit(ctx, engine)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnShutdown", p.OnShutdown)
	}
}

// EmitOrderCreated emits an order created event.
func (r *Registry) EmitOrderCreated(ctx context.Context, o *order.Order) {
	r.mu.RLock()
	plugins := r.onOrderCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnOrderCreated", func(ctx context.Context) error {
			return p.OnOrderCreated(ctx, o)
		})
	}
}

// EmitOrderConfirmed emits an order confirmed event.
func (r *Registry) EmitOrderConfirmed(ctx context.Context, o *order.Order) {
	r.mu.RLock()
	plugins := r.onOrderConfirmed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnOrderConfirmed", func(ctx context.Context) error {
			return p.OnOrderConfirmed(ctx, o)
		})
	}
}

// EmitPaymentSubmitted emits a payment proof submitted event.
func (r *Registry) EmitPaymentSubmitted(ctx context.Context, o *order.Order) {
	r.mu.RLock()
	plugins := r.onPaymentSubmitted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnPaymentSubmitted", func(ctx context.Context) error {
			return p.OnPaymentSubmitted(ctx, o)
		})
	}
}

// EmitOrderCompleted emits an order completed event.
func (r *Registry) EmitOrderCompleted(ctx context.Context, o *order.Order) {
	r.mu.RLock()
	plugins := r.onOrderCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnOrderCompleted", func(ctx context.Context) error {
			return p.OnOrderCompleted(ctx, o)
		})
	}
}

// EmitOrderCancelled emits an order cancelled event.
func (r *Registry) EmitOrderCancelled(ctx context.Context, o *order.Order, refunded types.Money) {
	r.mu.RLock()
	plugins := r.onOrderCancelled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnOrderCancelled", func(ctx context.Context) error {
			return p.OnOrderCancelled(ctx, o, refunded)
		})
	}
}

// EmitCustomerRegistered emits a customer registered event.
func (r *Registry) EmitCustomerRegistered(ctx context.Context, c *ledger.Customer, ref *ledger.Referral) {
	r.mu.RLock()
	plugins := r.onCustomerRegistered
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnCustomerRegistered", func(ctx context.Context) error {
			return p.OnCustomerRegistered(ctx, c, ref)
		})
	}
}

// EmitReferralBonusGranted emits a referral bonus granted event.
func (r *Registry) EmitReferralBonusGranted(ctx context.Context, grant *ledger.BonusGrant) {
	r.mu.RLock()
	plugins := r.onReferralBonusGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnReferralBonusGranted", func(ctx context.Context) error {
			return p.OnReferralBonusGranted(ctx, grant)
		})
	}
}

// EmitPlanPriceChanged emits a plan price changed event.
func (r *Registry) EmitPlanPriceChanged(ctx context.Context, pl *catalog.Plan, oldPrice types.Money, actor string) {
	r.mu.RLock()
	plugins := r.onPlanPriceChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnPlanPriceChanged", func(ctx context.Context) error {
			return p.OnPlanPriceChanged(ctx, pl, oldPrice, actor)
		})
	}
}

// EmitServiceGateChanged emits a service gate changed event.
func (r *Registry) EmitServiceGateChanged(ctx context.Context, accepting bool, actor string) {
	r.mu.RLock()
	plugins := r.onServiceGateChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnServiceGateChanged", func(ctx context.Context) error {
			return p.OnServiceGateChanged(ctx, accepting, actor)
		})
	}
}

// call runs a hook with the registry timeout and logs any failure.
// Plugins never fail the operation that triggered them.
func (r *Registry) call(ctx context.Context, pluginName, hook string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin panic: %s: %v", pluginName, rec)
			}
		}()
		done <- fn(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("plugin timeout: %s: %w", pluginName, ctx.Err())
	}

	if err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}
