package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingTier is one plan level: usage included in the fixed price, walked in
// ascending threshold order during tier selection.
type BillingTier struct {
	Name                  string  `mapstructure:"name"`
	IncludedConversations int64   `mapstructure:"includedConversations"`
	Price                 float64 `mapstructure:"price"`
}

// BillingConfig is the static billing and validation configuration.
// Only the top tier charges overage; lower tiers upgrade instead.
type BillingConfig struct {
	TrialPeriodDays      int           `mapstructure:"trialPeriodDays"`
	OverageUnitPrice     float64       `mapstructure:"overageUnitPrice"`
	ConsistencyTolerance float64       `mapstructure:"consistencyTolerance"`
	Tiers                []BillingTier `mapstructure:"tiers"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		TrialPeriodDays:      15,
		OverageUnitPrice:     0.25,
		ConsistencyTolerance: 0.01,
		Tiers: []BillingTier{
			{Name: "basic", IncludedConversations: 200, Price: 58},
			{Name: "professional", IncludedConversations: 400, Price: 116},
			{Name: "enterprise", IncludedConversations: 1250, Price: 290},
		},
	}
}

// TopTier returns the highest tier, the only one that charges overage.
func (c BillingConfig) TopTier() BillingTier {
	return c.Tiers[len(c.Tiers)-1]
}

var (
	ErrNoTiersConfigured  = errors.New("no_billing_tiers_configured")
	ErrTierOrder          = errors.New("billing_tiers_not_ascending")
	ErrInvalidTierPrice   = errors.New("invalid_tier_price")
	ErrInvalidTolerance   = errors.New("invalid_consistency_tolerance")
	ErrInvalidTrialPeriod = errors.New("invalid_trial_period")
)

func validateBillingConfig(cfg BillingConfig) error {
	if len(cfg.Tiers) == 0 {
		return ErrNoTiersConfigured
	}
	var prev int64 = -1
	for _, tier := range cfg.Tiers {
		if strings.TrimSpace(tier.Name) == "" {
			return ErrNoTiersConfigured
		}
		if tier.IncludedConversations <= prev {
			return ErrTierOrder
		}
		if tier.Price < 0 {
			return ErrInvalidTierPrice
		}
		prev = tier.IncludedConversations
	}
	if cfg.OverageUnitPrice < 0 {
		return ErrInvalidTierPrice
	}
	if cfg.ConsistencyTolerance <= 0 || cfg.ConsistencyTolerance > 1 {
		return ErrInvalidTolerance
	}
	if cfg.TrialPeriodDays < 0 {
		return ErrInvalidTrialPeriod
	}
	return nil
}

// BillingConfigHolder serves the current billing configuration and hot-reloads
// it when the underlying file changes. Invalid reloads are ignored.
type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/agendobot/config")
	v.AddConfigPath("/etc/agendobot")
	v.AddConfigPath(".")

	v.SetEnvPrefix("AGENDOBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultBillingConfig()
		v.SetDefault("billing.trialPeriodDays", defaults.TrialPeriodDays)
		v.SetDefault("billing.overageUnitPrice", defaults.OverageUnitPrice)
		v.SetDefault("billing.consistencyTolerance", defaults.ConsistencyTolerance)
		v.SetDefault("billing.tiers", defaults.Tiers)
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			zap.L().Warn("billing config reload failed", zap.Error(err))
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			zap.L().Warn("invalid billing config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("billing config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed config for tests. It skips
// validation so invalid configurations can be exercised too.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Current() BillingConfig {
	return h.current.Load().(BillingConfig)
}
