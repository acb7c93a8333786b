package extension

import (
	"time"

	"github.com/xraph/topup"
	"github.com/xraph/topup/notify"
	"github.com/xraph/topup/plugin"
	"github.com/xraph/topup/store"
)

// Option configures the topup Forge extension.
type Option func(*Extension)

// WithStore sets the store for the topup engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a topup.Option through to the underlying engine.
func WithEngineOption(opt topup.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a topup plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, topup.WithPlugin(p))
	}
}

// WithSender sets the notification transport.
func WithSender(s notify.Sender) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, topup.WithSender(s))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithSeedCatalog seeds the default plan catalog on start.
func WithSeedCatalog() Option {
	return func(e *Extension) { e.config.SeedCatalog = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithCurrency sets the currency of prices and credit.
func WithCurrency(currency string) Option {
	return func(e *Extension) { e.config.Currency = currency }
}

// WithReferralBonus sets the referrer bonus in minor units.
func WithReferralBonus(amount int64) Option {
	return func(e *Extension) { e.config.ReferralBonus = amount }
}

// WithOperators sets the operator channel identities.
func WithOperators(ids ...string) Option {
	return func(e *Extension) {
		e.config.OperatorIDs = append(e.config.OperatorIDs, ids...)
	}
}

// WithPaymentAccount sets the transfer destination for payment instructions.
func WithPaymentAccount(account string) Option {
	return func(e *Extension) { e.config.PaymentAccount = account }
}

// WithNotifyQueueSize sets the notification queue capacity.
func WithNotifyQueueSize(n int) Option {
	return func(e *Extension) { e.config.NotifyQueueSize = n }
}

// WithSessionTTL sets how long a plan selection stays valid.
func WithSessionTTL(d time.Duration) Option {
	return func(e *Extension) { e.config.SessionTTL = d }
}

// WithStaleOrderSweep cancels open orders older than olderThan every interval.
func WithStaleOrderSweep(olderThan, interval time.Duration) Option {
	return func(e *Extension) {
		e.config.StaleOrderTTL = olderThan
		e.config.SweepInterval = interval
	}
}
