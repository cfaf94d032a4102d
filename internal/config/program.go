package config

import (
	"errors"
	"log"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CommissionBase selects the monetary amount the commission percent applies to.
const (
	CommissionBaseLineSubtotal      = "line_subtotal"
	CommissionBaseTotalExclShipping = "order_total_excl_shipping"
	DashboardModeSimple             = "simple"
	DashboardModeAdvanced           = "advanced"
)

// ProgramConfig is the affiliate program policy: commission defaults,
// referral cookie lifetime, link building. Reloadable at runtime.
type ProgramConfig struct {
	DefaultCommissionPercent float64 `mapstructure:"defaultCommissionPercent"`
	CommissionBase           string  `mapstructure:"commissionBase"`
	CookieDays               int     `mapstructure:"cookieDays"`
	LinkPrefix               string  `mapstructure:"linkPrefix"`
	StoreURL                 string  `mapstructure:"storeUrl"`

	DefaultDashboardMode string `mapstructure:"defaultDashboardMode"`
	AllowEditPayout      bool   `mapstructure:"allowEditPayout"`

	EnableUTM            bool   `mapstructure:"enableUtm"`
	UTMSource            string `mapstructure:"utmSource"`
	UTMMedium            string `mapstructure:"utmMedium"`
	UTMCampaign          string `mapstructure:"utmCampaign"`
	UTMIncludeUIDContent bool   `mapstructure:"utmIncludeUidContent"`
}

func DefaultProgramConfig() ProgramConfig {
	return ProgramConfig{
		DefaultCommissionPercent: 15,
		CommissionBase:           CommissionBaseLineSubtotal,
		CookieDays:               30,
		LinkPrefix:               "",
		StoreURL:                 "https://example.com",
		DefaultDashboardMode:     DashboardModeSimple,
		AllowEditPayout:          true,
		EnableUTM:                true,
		UTMSource:                "affiliate",
		UTMMedium:                "qr",
		UTMCampaign:              "affiliate",
	}
}

type ProgramConfigHolder struct {
	current atomic.Value // holds ProgramConfig
}

func NewProgramConfigHolder() (*ProgramConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("program")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/affiliates/config") // Volume-mounted config
	v.AddConfigPath("/etc/affiliates")            // System config
	v.AddConfigPath(".")                          // Current directory (dev mode)

	v.SetEnvPrefix("AFFILIATES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultProgramConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("program.defaultCommissionPercent", defaults.DefaultCommissionPercent)
		v.SetDefault("program.commissionBase", defaults.CommissionBase)
		v.SetDefault("program.cookieDays", defaults.CookieDays)
		v.SetDefault("program.storeUrl", defaults.StoreURL)
		v.SetDefault("program.defaultDashboardMode", defaults.DefaultDashboardMode)
		v.SetDefault("program.allowEditPayout", defaults.AllowEditPayout)
		v.SetDefault("program.enableUtm", defaults.EnableUTM)
		v.SetDefault("program.utmSource", defaults.UTMSource)
		v.SetDefault("program.utmMedium", defaults.UTMMedium)
		v.SetDefault("program.utmCampaign", defaults.UTMCampaign)
	}

	var cfg ProgramConfig
	if err := v.UnmarshalKey("program", &cfg); err != nil {
		return nil, err
	}
	cfg = normalizeProgramConfig(cfg)
	if err := validateProgramConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ProgramConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ProgramConfig
		if err := v.UnmarshalKey("program", &updated); err != nil {
			log.Printf("[program-config] reload failed: %v", err)
			return
		}
		updated = normalizeProgramConfig(updated)
		if err := validateProgramConfig(updated); err != nil {
			log.Printf("[program-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[program-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *ProgramConfigHolder) Get() ProgramConfig {
	return h.current.Load().(ProgramConfig)
}

// NewStaticProgramConfigHolder wraps a fixed config. Test helper.
func NewStaticProgramConfigHolder(cfg ProgramConfig) *ProgramConfigHolder {
	holder := &ProgramConfigHolder{}
	holder.current.Store(normalizeProgramConfig(cfg))
	return holder
}

var linkPrefixPattern = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func normalizeProgramConfig(cfg ProgramConfig) ProgramConfig {
	if cfg.CookieDays < 1 {
		cfg.CookieDays = 30
	}
	cfg.LinkPrefix = linkPrefixPattern.ReplaceAllString(strings.TrimSpace(cfg.LinkPrefix), "")
	cfg.StoreURL = strings.TrimRight(strings.TrimSpace(cfg.StoreURL), "/")
	if cfg.CommissionBase == "" {
		cfg.CommissionBase = CommissionBaseLineSubtotal
	}
	if cfg.DefaultDashboardMode != DashboardModeAdvanced {
		cfg.DefaultDashboardMode = DashboardModeSimple
	}
	for _, field := range []*string{&cfg.UTMSource, &cfg.UTMMedium, &cfg.UTMCampaign} {
		*field = strings.TrimSpace(*field)
	}
	return cfg
}

func validateProgramConfig(cfg ProgramConfig) error {
	if cfg.DefaultCommissionPercent < 0 {
		return errors.New("program.defaultCommissionPercent cannot be negative")
	}
	switch cfg.CommissionBase {
	case CommissionBaseLineSubtotal, CommissionBaseTotalExclShipping:
	default:
		return errors.New("program.commissionBase must be line_subtotal or order_total_excl_shipping")
	}
	if cfg.StoreURL == "" {
		return errors.New("program.storeUrl cannot be empty")
	}
	return nil
}
