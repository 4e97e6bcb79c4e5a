package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/newthinker/enercast/internal/backtest"
	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/model"
	"github.com/newthinker/enercast/internal/simulator"
	"github.com/newthinker/enercast/internal/strategy"
	"github.com/newthinker/enercast/internal/walkforward"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. ENERCAST_BACKTEST_COMMISSION
const EnvPrefix = "ENERCAST"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Compare  CompareConfig  `mapstructure:"compare"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`

	Notifiers []NotifierConfig `mapstructure:"notifiers"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	APIKey      string `mapstructure:"api_key"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

// BacktestConfig is the configuration surface of a single run
type BacktestConfig struct {
	Commodity      string         `mapstructure:"commodity"`
	Model          string         `mapstructure:"model"`
	ModelParams    map[string]any `mapstructure:"model_params"`
	InitialCapital float64        `mapstructure:"initial_capital"`
	Commission     float64        `mapstructure:"commission"`
	Slippage       float64        `mapstructure:"slippage"`
	Strategy       string         `mapstructure:"strategy"`
	StrategyParams map[string]any `mapstructure:"strategy_params"`
	WindowMode     string         `mapstructure:"window_mode"`
	TrainLength    int            `mapstructure:"train_length"`
	TestLength     int            `mapstructure:"test_length"`
	LongOnly       bool           `mapstructure:"long_only"`
	PeriodsPerYear float64        `mapstructure:"periods_per_year"`
}

// CompareConfig lists the candidate strategies of a comparison batch
type CompareConfig struct {
	Workers    int                       `mapstructure:"workers"`
	RankBy     string                    `mapstructure:"rank_by"`
	Strategies map[string]StrategyConfig `mapstructure:"strategies"`
}

type StrategyConfig struct {
	Kind   string         `mapstructure:"kind"`
	Params map[string]any `mapstructure:"params"`
}

type StorageConfig struct {
	Prices  PricesConfig  `mapstructure:"prices"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

// PricesConfig selects the historical series source
type PricesConfig struct {
	Type    string            `mapstructure:"type"`    // "csv", "postgres" or "yahoo"
	Dir     string            `mapstructure:"dir"`     // For csv: one <commodity>.csv per commodity
	DSN     string            `mapstructure:"dsn"`     // For postgres
	Symbols map[string]string `mapstructure:"symbols"` // For yahoo: commodity -> ticker overrides
}

type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// NotifierConfig announces finished API jobs. Types: "webhook" (url),
// "telegram" (bot_token, chat_id) and "email" (host, from, to).
type NotifierConfig struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from file on top of Defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Backtest: BacktestConfig{
			Commodity:      string(core.CommodityBrent),
			Model:          "drift",
			InitialCapital: 100000,
			Commission:     0.001,
			Slippage:       0.0005,
			Strategy:       string(strategy.KindThreshold),
			WindowMode:     string(walkforward.ModeRolling),
			TrainLength:    60,
			TestLength:     20,
			PeriodsPerYear: backtest.DefaultPeriodsPerYear,
		},
		Compare: CompareConfig{
			Workers: backtest.DefaultWorkers,
			RankBy:  backtest.RankSharpe,
		},
		Storage: StorageConfig{
			Prices: PricesConfig{
				Type: "csv",
				Dir:  "data",
			},
			Archive: ArchiveConfig{
				Type: "localfs",
				Path: "archive",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.ConfigError("port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if _, err := c.Backtest.Build(); err != nil {
		return err
	}
	if _, err := model.New(c.Backtest.Model, c.Backtest.ModelParams); err != nil {
		return err
	}

	if c.Compare.Workers < 0 {
		return core.ConfigError("compare workers cannot be negative, got %d", c.Compare.Workers)
	}
	for name, s := range c.Compare.Strategies {
		if _, err := strategy.FromConfig(s.Kind, s.Params); err != nil {
			return core.ConfigError("compare strategy %q: %v", name, err)
		}
	}

	switch c.Storage.Prices.Type {
	case "", "csv", "yahoo":
	case "postgres":
		if c.Storage.Prices.DSN == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.prices.dsn required when type is postgres"))
		}
	default:
		return core.ConfigError("unknown prices storage type %q", c.Storage.Prices.Type)
	}

	if c.Storage.Archive.Enabled {
		switch c.Storage.Archive.Type {
		case "localfs":
			if c.Storage.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("storage.archive.path required when type is localfs"))
			}
		case "s3":
			if c.Storage.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("storage.archive.s3.bucket required when type is s3"))
			}
		default:
			return core.ConfigError("unknown archive type %q", c.Storage.Archive.Type)
		}
	}

	for i, n := range c.Notifiers {
		switch n.Type {
		case "webhook":
			if err := requireParams(i, n, "url"); err != nil {
				return err
			}
		case "telegram":
			if err := requireParams(i, n, "bot_token", "chat_id"); err != nil {
				return err
			}
		case "email":
			if err := requireParams(i, n, "host", "from", "to"); err != nil {
				return err
			}
		default:
			return core.ConfigError("notifiers[%d]: unknown type %q", i, n.Type)
		}
	}

	return nil
}

// Build converts the configuration surface into a validated run config
func (b BacktestConfig) Build() (backtest.Config, error) {
	spec, err := strategy.FromConfig(b.Strategy, b.StrategyParams)
	if err != nil {
		return backtest.Config{}, err
	}
	mode, err := walkforward.ParseMode(b.WindowMode)
	if err != nil {
		return backtest.Config{}, err
	}

	cfg := backtest.Config{
		Config: simulator.Config{
			InitialCapital: b.InitialCapital,
			Commission:     b.Commission,
			Slippage:       b.Slippage,
			LongOnly:       b.LongOnly,
		},
		Strategy:       spec,
		Mode:           mode,
		TrainLength:    b.TrainLength,
		TestLength:     b.TestLength,
		PeriodsPerYear: b.PeriodsPerYear,
	}
	if err := cfg.Validate(); err != nil {
		return backtest.Config{}, err
	}
	return cfg, nil
}

// WithStrategy returns a copy running a different strategy
func (b BacktestConfig) WithStrategy(s StrategyConfig) BacktestConfig {
	b.Strategy = s.Kind
	b.StrategyParams = s.Params
	return b
}

func requireParams(i int, n NotifierConfig, keys ...string) error {
	for _, k := range keys {
		v := n.Params[k]
		if s, isString := v.(string); v == nil || (isString && s == "") {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("notifiers[%d]: %s %s required", i, n.Type, k))
		}
	}
	return nil
}
