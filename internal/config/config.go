package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/bbb-scraper/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Scrape  ScrapeConfig  `yaml:"scrape" mapstructure:"scrape"`
	Source  SourceConfig  `yaml:"source" mapstructure:"source"`
	Session SessionConfig `yaml:"session" mapstructure:"session"`
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ScrapeConfig configures pagination, concurrency and retries.
type ScrapeConfig struct {
	Pages              int     `yaml:"pages" mapstructure:"pages"`
	MaxPages           int     `yaml:"max_pages" mapstructure:"max_pages"`
	PageConcurrency    int     `yaml:"page_concurrency" mapstructure:"page_concurrency"`
	DetailConcurrency  int     `yaml:"detail_concurrency" mapstructure:"detail_concurrency"`
	RetryAttempts      int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBaseDelayMs   int     `yaml:"retry_base_delay_ms" mapstructure:"retry_base_delay_ms"`
	RequestTimeoutSecs int     `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	RatePerSec         float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst          int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	DOMFallback        bool    `yaml:"dom_fallback" mapstructure:"dom_fallback"`
	Transport          string  `yaml:"transport" mapstructure:"transport"`
}

// SourceConfig describes the directory being scraped.
type SourceConfig struct {
	Origin      string `yaml:"origin" mapstructure:"origin"`
	SearchPath  string `yaml:"search_path" mapstructure:"search_path"`
	Country     string `yaml:"country" mapstructure:"country"`
	CallingCode string `yaml:"calling_code" mapstructure:"calling_code"`
}

// SessionConfig points at the identity profile and default proxy.
type SessionConfig struct {
	Profile string      `yaml:"profile" mapstructure:"profile"`
	Proxy   ProxyConfig `yaml:"proxy" mapstructure:"proxy"`
}

// ProxyConfig holds per-scheme proxy URLs.
type ProxyConfig struct {
	HTTP  string `yaml:"http" mapstructure:"http"`
	HTTPS string `yaml:"https" mapstructure:"https"`
}

// BrowserConfig configures the headless Chrome transport.
type BrowserConfig struct {
	Headless        bool   `yaml:"headless" mapstructure:"headless"`
	PageTimeoutSecs int    `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	ExecPath        string `yaml:"exec_path" mapstructure:"exec_path"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BBB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("scrape.pages", 1)
	v.SetDefault("scrape.max_pages", 50)
	v.SetDefault("scrape.page_concurrency", 5)
	v.SetDefault("scrape.detail_concurrency", 10)
	v.SetDefault("scrape.retry_attempts", 3)
	v.SetDefault("scrape.retry_base_delay_ms", 1000)
	v.SetDefault("scrape.request_timeout_secs", 30)
	v.SetDefault("scrape.rate_per_sec", 5)
	v.SetDefault("scrape.rate_burst", 5)
	v.SetDefault("scrape.dom_fallback", true)
	v.SetDefault("scrape.transport", "http")
	v.SetDefault("source.origin", "https://www.bbb.org")
	v.SetDefault("source.search_path", "/search")
	v.SetDefault("source.country", "USA")
	v.SetDefault("source.calling_code", "+1")
	v.SetDefault("session.profile", "")
	v.SetDefault("session.proxy.http", "")
	v.SetDefault("session.proxy.https", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.page_timeout_secs", 45)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "bbb-scraper.db")
	v.SetDefault("server.port", 8000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var errs []string

	switch c.Scrape.Transport {
	case "http", "browser":
	default:
		errs = append(errs, "scrape.transport must be http or browser, got "+c.Scrape.Transport)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for driver "+c.Store.Driver)
		}
	case "none":
	default:
		errs = append(errs, "store.driver must be sqlite, postgres or none, got "+c.Store.Driver)
	}
	if c.Scrape.MaxPages < 1 || c.Scrape.MaxPages > model.MaxPages {
		errs = append(errs, fmt.Sprintf("scrape.max_pages must be between 1 and %d", model.MaxPages))
	}
	if c.Scrape.PageConcurrency < 1 || c.Scrape.DetailConcurrency < 1 {
		errs = append(errs, "scrape concurrency must be >= 1")
	}
	if c.Scrape.RetryAttempts < 1 {
		errs = append(errs, "scrape.retry_attempts must be >= 1")
	}
	if c.Source.Origin == "" {
		errs = append(errs, "source.origin is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
