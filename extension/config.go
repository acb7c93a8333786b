package extension

import (
	"time"

	"github.com/xraph/topup/notify"
	"github.com/xraph/topup/session"
	"github.com/xraph/topup/types"
)

// Config holds the topup extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.topup" or "topup" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// SeedCatalog inserts the default plan catalog on start when the
	// catalog is empty.
	SeedCatalog bool `json:"seed_catalog" mapstructure:"seed_catalog" yaml:"seed_catalog"`

	// Currency is the currency of prices and credit (default: "cup").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// ReferralBonus is the credit, in minor units, granted to a referrer
	// when the referred customer's first order completes.
	ReferralBonus int64 `json:"referral_bonus" mapstructure:"referral_bonus" yaml:"referral_bonus"`

	// OperatorIDs are the channel identities that receive operator
	// notifications.
	OperatorIDs []string `json:"operator_ids" mapstructure:"operator_ids" yaml:"operator_ids"`

	// PaymentAccount is the transfer destination sent with payment
	// instructions.
	PaymentAccount string `json:"payment_account" mapstructure:"payment_account" yaml:"payment_account"`

	// NotifyQueueSize is the notification queue capacity (default: 256).
	NotifyQueueSize int `json:"notify_queue_size" mapstructure:"notify_queue_size" yaml:"notify_queue_size"`

	// SessionTTL controls how long a plan selection stays valid (default: 15m).
	SessionTTL time.Duration `json:"session_ttl" mapstructure:"session_ttl" yaml:"session_ttl"`

	// StaleOrderTTL is the age after which open orders are cancelled by the
	// sweep. Zero disables the sweep.
	StaleOrderTTL time.Duration `json:"stale_order_ttl" mapstructure:"stale_order_ttl" yaml:"stale_order_ttl"`

	// SweepInterval is how often the stale order sweep runs (default: 10m).
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Currency:        types.DefaultCurrency,
		NotifyQueueSize: notify.DefaultQueueSize,
		SessionTTL:      session.DefaultTTL,
		SweepInterval:   10 * time.Minute,
	}
}
