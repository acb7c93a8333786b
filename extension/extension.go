// Package extension provides the Forge extension adapter for topup.
//
// It implements the forge.Extension interface to integrate the topup engine
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.topup" or "topup" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/topup"
	"github.com/xraph/topup/store"
	"github.com/xraph/topup/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "topup"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Conversational top-up ordering with customer credit and referrals"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the topup engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *topup.Engine
	store      store.Store
	engineOpts []topup.Option
}

// New creates a new topup Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying topup engine.
// This is nil until Register is called.
func (e *Extension) Engine() *topup.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = topup.New(e.store, e.buildEngineOpts()...)

	return vessel.Provide(fapp.Container(), func() (*topup.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("topup: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	if e.config.SeedCatalog {
		n, err := e.engine.SeedCatalog(ctx)
		if err != nil {
			return err
		}
		e.Logger().Info("topup: catalog seeded", forge.F("plans", n))
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("topup: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs topup.Option values from the resolved config.
// Pass-through engine options are applied last.
func (e *Extension) buildEngineOpts() []topup.Option {
	cfg := e.config
	opts := make([]topup.Option, 0, len(e.engineOpts)+8)

	opts = append(opts,
		topup.WithCurrency(cfg.Currency),
		topup.WithReferralBonus(cfg.ReferralBonus),
		topup.WithPaymentAccount(cfg.PaymentAccount),
		topup.WithNotifyQueueSize(cfg.NotifyQueueSize),
		topup.WithSessionTTL(cfg.SessionTTL),
	)
	if len(cfg.OperatorIDs) > 0 {
		opts = append(opts, topup.WithOperators(cfg.OperatorIDs...))
	}
	if cfg.StaleOrderTTL > 0 {
		opts = append(opts, topup.WithStaleOrderSweep(cfg.StaleOrderTTL, cfg.SweepInterval))
	}
	if cfg.DisableMigrate {
		opts = append(opts, topup.WithoutMigrations())
	}

	return append(opts, e.engineOpts...)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("topup: configuration is required but not found in config files; " +
				"ensure 'extensions.topup' or 'topup' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("topup: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("seed_catalog", e.config.SeedCatalog),
		forge.F("currency", e.config.Currency),
		forge.F("referral_bonus", e.config.ReferralBonus),
		forge.F("operators", len(e.config.OperatorIDs)),
		forge.F("stale_order_ttl", e.config.StaleOrderTTL),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.topup", "topup"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("topup: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("topup: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.NotifyQueueSize == 0 {
		cfg.NotifyQueueSize = defaults.NotifyQueueSize
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = defaults.SessionTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.SeedCatalog {
		yamlConfig.SeedCatalog = true
	}

	if yamlConfig.Currency == "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.PaymentAccount == "" {
		yamlConfig.PaymentAccount = programmaticConfig.PaymentAccount
	}
	if len(yamlConfig.OperatorIDs) == 0 {
		yamlConfig.OperatorIDs = programmaticConfig.OperatorIDs
	}

	if yamlConfig.ReferralBonus == 0 {
		yamlConfig.ReferralBonus = programmaticConfig.ReferralBonus
	}
	if yamlConfig.NotifyQueueSize == 0 {
		yamlConfig.NotifyQueueSize = programmaticConfig.NotifyQueueSize
	}
	if yamlConfig.SessionTTL == 0 {
		yamlConfig.SessionTTL = programmaticConfig.SessionTTL
	}
	if yamlConfig.StaleOrderTTL == 0 {
		yamlConfig.StaleOrderTTL = programmaticConfig.StaleOrderTTL
	}
	if yamlConfig.SweepInterval == 0 {
		yamlConfig.SweepInterval = programmaticConfig.SweepInterval
	}

	return mergeWithDefaults(yamlConfig)
}
