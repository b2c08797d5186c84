package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// LifecycleConfig carries the billing windows used by order placement,
// provisioning and the renewal sweep. Values are in days.
type LifecycleConfig struct {
	InvoiceDueDays   int            `mapstructure:"invoiceDueDays"`
	RenewalLeadDays  int            `mapstructure:"renewalLeadDays"`
	SuspendGraceDays int            `mapstructure:"suspendGraceDays"`
	CancelGraceDays  int            `mapstructure:"cancelGraceDays"`
	CycleDays        map[string]int `mapstructure:"cycleDays"`
}

func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		InvoiceDueDays:   7,
		RenewalLeadDays:  7,
		SuspendGraceDays: 7,
		CancelGraceDays:  14,
		CycleDays: map[string]int{
			"monthly":   30,
			"quarterly": 90,
			"yearly":    365,
		},
	}
}

type LifecycleConfigHolder struct {
	current atomic.Value // holds LifecycleConfig
}

// NewStaticLifecycleConfigHolder returns a holder that never reloads.
func NewStaticLifecycleConfigHolder(cfg LifecycleConfig) *LifecycleConfigHolder {
	holder := &LifecycleConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewLifecycleConfigHolder() (*LifecycleConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("lifecycle")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/cloudnest/config")
	v.AddConfigPath("/etc/cloudnest")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CLOUDNEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultLifecycleConfig()
	v.SetDefault("lifecycle.invoiceDueDays", defaults.InvoiceDueDays)
	v.SetDefault("lifecycle.renewalLeadDays", defaults.RenewalLeadDays)
	v.SetDefault("lifecycle.suspendGraceDays", defaults.SuspendGraceDays)
	v.SetDefault("lifecycle.cancelGraceDays", defaults.CancelGraceDays)
	v.SetDefault("lifecycle.cycleDays", defaults.CycleDays)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg LifecycleConfig
	if err := v.UnmarshalKey("lifecycle", &cfg); err != nil {
		return nil, err
	}
	if err := validateLifecycleConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticLifecycleConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated LifecycleConfig
		if err := v.UnmarshalKey("lifecycle", &updated); err != nil {
			log.Printf("[lifecycle-config] reload failed: %v", err)
			return
		}
		if err := validateLifecycleConfig(updated); err != nil {
			log.Printf("[lifecycle-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[lifecycle-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *LifecycleConfigHolder) Get() LifecycleConfig {
	return h.current.Load().(LifecycleConfig)
}

func validateLifecycleConfig(cfg LifecycleConfig) error {
	if cfg.InvoiceDueDays <= 0 {
		return errors.New("lifecycle.invoiceDueDays must be positive")
	}
	if cfg.RenewalLeadDays < 0 {
		return errors.New("lifecycle.renewalLeadDays cannot be negative")
	}
	if cfg.SuspendGraceDays < 0 {
		return errors.New("lifecycle.suspendGraceDays cannot be negative")
	}
	if cfg.CancelGraceDays <= cfg.SuspendGraceDays {
		return errors.New("lifecycle.cancelGraceDays must exceed suspendGraceDays")
	}
	for _, cycle := range []string{"monthly", "quarterly", "yearly"} {
		if cfg.CycleDays[cycle] <= 0 {
			return errors.New("lifecycle.cycleDays." + cycle + " must be positive")
		}
	}
	return nil
}
