// Package config loads application configuration from file and environment
// and wires the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds the AI matching service settings. An empty key
// disables AI matching; reconciliation then runs heuristic-only.
type AnthropicConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	Model             string `yaml:"model" mapstructure:"model"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// ReconcileConfig configures the reconciliation engine. The variance
// thresholds default to the stock policy (20% quantity, 15% price); a policy
// file adds per-trade overrides on top.
type ReconcileConfig struct {
	QuantityThresholdPct float64 `yaml:"quantity_threshold_pct" mapstructure:"quantity_threshold_pct"`
	PriceThresholdPct    float64 `yaml:"price_threshold_pct" mapstructure:"price_threshold_pct"`
	PolicyFile           string  `yaml:"policy_file" mapstructure:"policy_file"`
	AITimeoutSecs        int     `yaml:"ai_timeout_secs" mapstructure:"ai_timeout_secs"`
}

// AITimeout returns the matching service call timeout.
func (c ReconcileConfig) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml and the environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BIDLEVEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "bidlevel.db")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.requests_per_minute", 60)
	v.SetDefault("reconcile.quantity_threshold_pct", 20.0)
	v.SetDefault("reconcile.price_threshold_pct", 15.0)
	v.SetDefault("reconcile.ai_timeout_secs", 45)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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
