// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all engine configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Buyer     BuyerConfig     `mapstructure:"buyer"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator"`
	Reprice   RepriceConfig   `mapstructure:"reprice"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	HTTPPort    int    `mapstructure:"http_port"`
}

// StorageConfig selects and addresses the persistence backends.
type StorageConfig struct {
	// UseMemory runs everything on in-memory stores; for development
	// and tests only.
	UseMemory     bool   `mapstructure:"use_memory"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
}

// EngineConfig holds the per-stage scheduling intervals.
type EngineConfig struct {
	HuntInterval       time.Duration `mapstructure:"hunt_interval"`
	EvaluateInterval   time.Duration `mapstructure:"evaluate_interval"`
	BuyInterval        time.Duration `mapstructure:"buy_interval"`
	ListInterval       time.Duration `mapstructure:"list_interval"`
	DeliverInterval    time.Duration `mapstructure:"deliver_interval"`
	RepriceInterval    time.Duration `mapstructure:"reprice_interval"`
	AllocateInterval   time.Duration `mapstructure:"allocate_interval"`
	ExperimentInterval time.Duration `mapstructure:"experiment_interval"`
	GovernInterval     time.Duration `mapstructure:"govern_interval"`
	CollectInterval    time.Duration `mapstructure:"collect_interval"`
	// AutoStart moves the engine to RUNNING at boot instead of waiting
	// for the control plane.
	AutoStart bool `mapstructure:"auto_start"`
}

// BuyerConfig bounds purchasing.
type BuyerConfig struct {
	MaxSpendPerBatch float64 `mapstructure:"max_spend_per_batch"`
	BatchSize        int     `mapstructure:"batch_size"`
}

// EvaluatorConfig holds the approval criteria.
type EvaluatorConfig struct {
	MinNetMargin       float64 `mapstructure:"min_net_margin"`
	MinConfidence      float64 `mapstructure:"min_confidence"`
	MinSellerScore     float64 `mapstructure:"min_seller_score"`
	MaxSellThroughDays float64 `mapstructure:"max_sell_through_days"`
	RiskCeiling        float64 `mapstructure:"risk_ceiling"`
}

// RepriceConfig bounds price movement per cycle.
type RepriceConfig struct {
	Strategy         string  `mapstructure:"strategy"`
	MaxIncreasePct   float64 `mapstructure:"max_increase_pct"`
	MaxDecreasePct   float64 `mapstructure:"max_decrease_pct"`
	MaxChangeDollars float64 `mapstructure:"max_change_dollars"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	MetricsEnabled   bool   `mapstructure:"metrics_enabled"`
	MetricsNamespace string `mapstructure:"metrics_namespace"`
}

// Load loads configuration from .env, config file and environment
// variables, in increasing precedence.
func Load(configPath string) (*Config, error) {
	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ENGINE")
	v.AutomaticEnv()
	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file: env vars and defaults carry it.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "ENGINE_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ENGINE_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.http_port", "ENGINE_HTTP_PORT", "HTTP_PORT")

	v.BindEnv("storage.use_memory", "ENGINE_USE_MEMORY")
	v.BindEnv("storage.postgres_dsn", "ENGINE_POSTGRES_DSN", "DATABASE_URL")
	v.BindEnv("storage.clickhouse_dsn", "ENGINE_CLICKHOUSE_DSN", "CLICKHOUSE_URL")

	v.BindEnv("engine.auto_start", "ENGINE_AUTO_START")

	v.BindEnv("buyer.max_spend_per_batch", "ENGINE_MAX_SPEND_PER_BATCH")
	v.BindEnv("evaluator.min_net_margin", "ENGINE_MIN_NET_MARGIN")
	v.BindEnv("reprice.strategy", "ENGINE_REPRICE_STRATEGY")

	v.BindEnv("telemetry.metrics_enabled", "ENGINE_METRICS_ENABLED")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "trade-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.http_port", 8080)

	v.SetDefault("storage.use_memory", false)

	v.SetDefault("engine.hunt_interval", "15m")
	v.SetDefault("engine.evaluate_interval", "5m")
	v.SetDefault("engine.buy_interval", "10m")
	v.SetDefault("engine.list_interval", "10m")
	v.SetDefault("engine.deliver_interval", "1m")
	v.SetDefault("engine.reprice_interval", "1h")
	v.SetDefault("engine.allocate_interval", "24h")
	v.SetDefault("engine.experiment_interval", "6h")
	v.SetDefault("engine.govern_interval", "5m")
	v.SetDefault("engine.collect_interval", "1h")
	v.SetDefault("engine.auto_start", false)

	v.SetDefault("buyer.max_spend_per_batch", 500)
	v.SetDefault("buyer.batch_size", 20)

	v.SetDefault("evaluator.min_net_margin", 0.20)
	v.SetDefault("evaluator.min_confidence", 0.60)
	v.SetDefault("evaluator.min_seller_score", 3.5)
	v.SetDefault("evaluator.max_sell_through_days", 14)
	v.SetDefault("evaluator.risk_ceiling", 50)

	v.SetDefault("reprice.strategy", "competitive")
	v.SetDefault("reprice.max_increase_pct", 0.10)
	v.SetDefault("reprice.max_decrease_pct", 0.15)
	v.SetDefault("reprice.max_change_dollars", 50)

	v.SetDefault("telemetry.metrics_enabled", true)
	v.SetDefault("telemetry.metrics_namespace", "trade_engine")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Storage.UseMemory && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required unless storage.use_memory is set")
	}
	if c.Buyer.MaxSpendPerBatch <= 0 {
		return fmt.Errorf("buyer.max_spend_per_batch must be positive")
	}
	if c.Evaluator.MinNetMargin < 0 || c.Evaluator.MinNetMargin > 1 {
		return fmt.Errorf("evaluator.min_net_margin must be within [0,1]")
	}
	if c.Reprice.MaxIncreasePct <= 0 || c.Reprice.MaxDecreasePct <= 0 {
		return fmt.Errorf("reprice movement caps must be positive")
	}
	return nil
}
