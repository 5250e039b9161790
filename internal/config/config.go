package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// UpstreamConfig points at the monitoring API the dashboard talks to.
type UpstreamConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HealthPath string
}

type NotificationConfig struct {
	Lifetime    time.Duration
	ResumeAfter time.Duration
}

// ContextConfig controls per-browser page-session contexts.
type ContextConfig struct {
	CookieName   string
	SecureCookie bool
	IdleTTL      time.Duration
	SweepSpec    string
	// Max caps live contexts. Zero means unlimited.
	Max          int

	// LoginInterval is the refill period of the per-context login bucket.
	// Zero disables throttling.
	LoginInterval time.Duration
	LoginBurst    int
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	TLS              TLSConfig
	Upstream         UpstreamConfig
	Notifications    NotificationConfig
	Contexts         ContextConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("PUMPDASH")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.baseurl is required")
	}
	if c.Notifications.Lifetime <= 0 || c.Notifications.ResumeAfter <= 0 {
		return fmt.Errorf("notification timings must be positive")
	}
	if c.Contexts.Max < 0 {
		return fmt.Errorf("contexts.max must not be negative")
	}
	if c.Contexts.CookieName == "" {
		return fmt.Errorf("contexts.cookiename is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("upstream.baseurl", "http://127.0.0.1:3000")
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("upstream.healthpath", "/api/health")

	v.SetDefault("notifications.lifetime", "5s")
	v.SetDefault("notifications.resumeafter", "2500ms")

	v.SetDefault("contexts.cookiename", "pumpdash_ctx")
	v.SetDefault("contexts.securecookie", false)
	v.SetDefault("contexts.idlettl", "30m")
	v.SetDefault("contexts.sweepspec", "0 */1 * * * *") // every minute
	v.SetDefault("contexts.max", 10000)
	v.SetDefault("contexts.logininterval", "12s")
	v.SetDefault("contexts.loginburst", 5)
}
