package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MaxPartsLimit is the upper bound for parts.max_count.
const MaxPartsLimit = 10

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Parts      PartsConfig      `yaml:"parts" mapstructure:"parts"`
	Partstack  PartstackConfig  `yaml:"partstack" mapstructure:"partstack"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects the cache database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PartsConfig configures part resolution.
type PartsConfig struct {
	// Operational controls whether the query endpoint is advertised.
	Operational     bool     `yaml:"operational" mapstructure:"operational"`
	MaxCount        int      `yaml:"max_count" mapstructure:"max_count"`
	CacheMaxAgeDays int      `yaml:"cache_max_age_days" mapstructure:"cache_max_age_days"`
	Providers       []string `yaml:"providers" mapstructure:"providers"`
	StatusFile      string   `yaml:"status_file" mapstructure:"status_file"`
	Concurrency     int      `yaml:"concurrency" mapstructure:"concurrency"`
}

// PartstackConfig configures the Partstack GraphQL API.
type PartstackConfig struct {
	QueryURL    string  `yaml:"query_url" mapstructure:"query_url"`
	Token       string  `yaml:"token" mapstructure:"token"`
	TimeoutSecs float64 `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	InfoURL     string   `yaml:"info_url" mapstructure:"info_url"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures the background health checks of the server.
// Checks are disabled when CheckIntervalSecs is 0.
type MonitoringConfig struct {
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	ResultRateThreshold float64 `yaml:"result_rate_threshold" mapstructure:"result_rate_threshold"`
	MinParts            int     `yaml:"min_parts" mapstructure:"min_parts"`
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	return load("")
}

// LoadFile reads configuration from the given file, falling back to the
// default search paths when path is empty.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/config")
	}

	// Environment
	v.SetEnvPrefix("PARTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "parts.db")
	v.SetDefault("store.max_conns", 0)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("parts.operational", false)
	v.SetDefault("parts.max_count", MaxPartsLimit)
	v.SetDefault("parts.cache_max_age_days", 30)
	v.SetDefault("parts.providers", []string{"cache", "partstack"})
	v.SetDefault("parts.status_file", "/config/status.json")
	v.SetDefault("parts.concurrency", 2)
	v.SetDefault("partstack.query_url", "")
	v.SetDefault("partstack.token", "")
	v.SetDefault("partstack.timeout_secs", 8.0)
	v.SetDefault("partstack.rate_limit", 2.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.info_url", "https://api.librepcb.org/api")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.check_interval_secs", 0)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.result_rate_threshold", 0.2)
	v.SetDefault("monitoring.min_parts", 50)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "serve", "query" and "store" (migrate and stats). All problems are
// reported together.
func (c *Config) Validate(mode string) error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(slices.Contains([]string{"sqlite", "postgres"}, c.Store.Driver), "store.driver %q is not supported", c.Store.Driver)
	check(c.Store.DatabaseURL != "", "store.database_url is required")

	switch mode {
	case "store":
	case "serve", "query":
		check(c.Parts.MaxCount >= 1 && c.Parts.MaxCount <= MaxPartsLimit,
			"parts.max_count must be between 1 and %d", MaxPartsLimit)
		check(c.Parts.CacheMaxAgeDays > 0, "parts.cache_max_age_days must be > 0")
		check(len(c.Parts.Providers) > 0, "parts.providers must not be empty")
		check(c.Parts.Concurrency > 0, "parts.concurrency must be > 0")
		if slices.Contains(c.Parts.Providers, "partstack") {
			check(c.Partstack.QueryURL != "", "partstack.query_url is required")
			check(c.Partstack.TimeoutSecs > 0, "partstack.timeout_secs must be > 0")
		}
		if mode == "serve" {
			check(c.Server.Port > 0, "server.port must be > 0")
			check(c.Monitoring.CheckIntervalSecs >= 0, "monitoring.check_interval_secs must be >= 0")
			check(c.Monitoring.ResultRateThreshold >= 0 && c.Monitoring.ResultRateThreshold <= 1,
				"monitoring.result_rate_threshold must be between 0 and 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
