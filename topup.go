package topup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/topup/notify"
	"github.com/xraph/topup/plugin"
	"github.com/xraph/topup/session"
	"github.com/xraph/topup/store"
	"github.com/xraph/topup/types"
)

// SystemSweeper is the actor recorded on orders cancelled by the stale sweep.
const SystemSweeper = "system:sweeper"

// Engine is the order lifecycle and credit ledger state machine.
type Engine struct {
	store      store.Store
	plugins    *plugin.Registry
	logger     *slog.Logger
	dispatcher *notify.Dispatcher
	sessions   *session.Store

	// Background workers
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Configuration
	sender          notify.Sender
	operators       []string
	currency        string
	referralBonus   int64
	paymentAccount  string
	notifyQueueSize int
	sessionTTL      time.Duration
	staleAfter      time.Duration
	sweepInterval   time.Duration
	skipMigrate     bool
}

// New creates a new Engine backed by s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:           s,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		stopChan:        make(chan struct{}),
		currency:        types.DefaultCurrency,
		notifyQueueSize: notify.DefaultQueueSize,
		sessionTTL:      session.DefaultTTL,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.sender == nil {
		e.sender = notify.LogSender{Logger: e.logger}
	}
	e.dispatcher = notify.NewDispatcher(e.sender,
		notify.WithLogger(e.logger),
		notify.WithQueueSize(e.notifyQueueSize),
	)
	e.sessions = session.New(session.DefaultSize, e.sessionTTL)

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithSender sets the notification transport. The default logs notifications.
func WithSender(s notify.Sender) Option {
	return func(e *Engine) {
		e.sender = s
	}
}

// WithOperators sets the operator channel identities that receive
// new-order and payment-proof notifications.
func WithOperators(operatorIDs ...string) Option {
	return func(e *Engine) {
		e.operators = append(e.operators, operatorIDs...)
	}
}

// WithCurrency sets the currency of prices and credit.
func WithCurrency(currency string) Option {
	return func(e *Engine) {
		if currency != "" {
			e.currency = types.Zero(currency).Currency
		}
	}
}

// WithReferralBonus sets the bonus, in minor units, credited to a referrer
// when the referred customer's first order completes. The amount is
// snapshotted on each referral at registration.
func WithReferralBonus(amount int64) Option {
	return func(e *Engine) {
		e.referralBonus = amount
	}
}

// WithPaymentAccount sets the transfer destination sent with payment
// instructions.
func WithPaymentAccount(account string) Option {
	return func(e *Engine) {
		e.paymentAccount = account
	}
}

// WithNotifyQueueSize sets the notification queue capacity.
func WithNotifyQueueSize(n int) Option {
	return func(e *Engine) {
		e.notifyQueueSize = n
	}
}

// WithSessionTTL sets how long a plan selection stays valid.
func WithSessionTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.sessionTTL = ttl
	}
}

// WithStaleOrderSweep enables a background worker that cancels open orders
// older than olderThan every interval.
func WithStaleOrderSweep(olderThan, interval time.Duration) Option {
	return func(e *Engine) {
		e.staleAfter = olderThan
		e.sweepInterval = interval
	}
}

// WithoutMigrations skips store migration on Start.
func WithoutMigrations() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// Start migrates the store and begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	e.dispatcher.Start(ctx)
	e.plugins.EmitInit(ctx, e)

	if e.staleAfter > 0 && e.sweepInterval > 0 {
		e.wg.Add(1)
		go e.sweepWorker(context.WithoutCancel(ctx))
	}

	e.logger.Info("topup engine started",
		"currency", e.currency,
		"operators", len(e.operators),
		"referral_bonus", e.referralBonus,
		"stale_after", e.staleAfter,
		"sweep_interval", e.sweepInterval,
	)

	return nil
}

// Stop shuts down background workers, delivers pending notifications and
// closes the store.
func (e *Engine) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		close(e.stopChan)
		e.wg.Wait()
		e.dispatcher.Stop()

		e.plugins.EmitShutdown(context.Background())

		err = e.store.Close()
	})
	return err
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Dispatcher returns the notification dispatcher.
func (e *Engine) Dispatcher() *notify.Dispatcher { return e.dispatcher }

// Currency returns the configured currency code.
func (e *Engine) Currency() string { return e.currency }

// Operators returns the configured operator identities.
func (e *Engine) Operators() []string {
	out := make([]string, len(e.operators))
	copy(out, e.operators)
	return out
}

// IsOperator reports whether actorID is a configured operator.
func (e *Engine) IsOperator(actorID string) bool {
	for _, op := range e.operators {
		if op == actorID {
			return true
		}
	}
	return false
}

func (e *Engine) sweepWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			n, err := e.SweepStale(ctx, e.staleAfter)
			if err != nil {
				e.logger.Error("stale order sweep failed", "error", err)
				continue
			}
			if n > 0 {
				e.logger.Info("stale orders cancelled", "count", n)
			}
		}
	}
}
