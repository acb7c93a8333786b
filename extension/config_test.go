package extension

import (
	"testing"
	"time"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{ReferralBonus: 500})

	if cfg.Currency != "cup" {
		t.Errorf("Currency = %q, want cup", cfg.Currency)
	}
	if cfg.NotifyQueueSize != DefaultConfig().NotifyQueueSize {
		t.Errorf("NotifyQueueSize = %d", cfg.NotifyQueueSize)
	}
	if cfg.SessionTTL != 15*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.ReferralBonus != 500 {
		t.Errorf("ReferralBonus = %d, want 500", cfg.ReferralBonus)
	}
}

func TestMergeConfigurations(t *testing.T) {
	yamlCfg := Config{Currency: "usd", ReferralBonus: 100}
	progCfg := Config{
		Currency:       "cup",
		ReferralBonus:  500,
		PaymentAccount: "9200-0000",
		OperatorIDs:    []string{"op-1"},
		DisableMigrate: true,
	}

	cfg := mergeConfigurations(yamlCfg, progCfg)

	if cfg.Currency != "usd" {
		t.Errorf("Currency = %q, yaml should win", cfg.Currency)
	}
	if cfg.ReferralBonus != 100 {
		t.Errorf("ReferralBonus = %d, yaml should win", cfg.ReferralBonus)
	}
	if cfg.PaymentAccount != "9200-0000" {
		t.Errorf("PaymentAccount = %q, programmatic should fill gap", cfg.PaymentAccount)
	}
	if len(cfg.OperatorIDs) != 1 || cfg.OperatorIDs[0] != "op-1" {
		t.Errorf("OperatorIDs = %v", cfg.OperatorIDs)
	}
	if !cfg.DisableMigrate {
		t.Error("DisableMigrate should carry over from programmatic config")
	}
	if cfg.SweepInterval != DefaultConfig().SweepInterval {
		t.Errorf("SweepInterval = %v, want default", cfg.SweepInterval)
	}
}

func TestBuildEngineOptsAppendsPassThrough(t *testing.T) {
	e := New(WithStaleOrderSweep(time.Hour, time.Minute), WithDisableMigrate())
	e.config = mergeWithDefaults(e.config)

	// currency, bonus, account, queue, session, sweep, migrate
	if got := len(e.buildEngineOpts()); got != 7 {
		t.Errorf("len(opts) = %d, want 7", got)
	}
}
