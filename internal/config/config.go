package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Normalizer NormalizerConfig `yaml:"normalizer" mapstructure:"normalizer"`
	Valuation  ValuationConfig  `yaml:"valuation" mapstructure:"valuation"`
	Gates      GatesConfig      `yaml:"gates" mapstructure:"gates"`
	Verifier   VerifierConfig   `yaml:"verifier" mapstructure:"verifier"`
	Monitor    MonitorConfig    `yaml:"monitor" mapstructure:"monitor"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the read-only report API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// BatchConfig configures multi-ticker analysis runs.
type BatchConfig struct {
	MaxConcurrentTickers int `yaml:"max_concurrent_tickers" mapstructure:"max_concurrent_tickers"`
}

// NormalizerConfig configures statement normalization.
type NormalizerConfig struct {
	AlignmentToleranceDays int `yaml:"alignment_tolerance_days" mapstructure:"alignment_tolerance_days"`
}

// SolverConfig bounds the IRR root-finder.
type SolverConfig struct {
	MaxIterations int     `yaml:"max_iterations" mapstructure:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance" mapstructure:"tolerance"`
	Guess         float64 `yaml:"guess" mapstructure:"guess"`
}

// ValuationConfig configures the valuation engine.
type ValuationConfig struct {
	BaseHurdle float64      `yaml:"base_hurdle" mapstructure:"base_hurdle"`
	TaxRate    float64      `yaml:"tax_rate" mapstructure:"tax_rate"`
	BandBps    float64      `yaml:"band_bps" mapstructure:"band_bps"`
	Solver     SolverConfig `yaml:"solver" mapstructure:"solver"`
}

// GatesConfig configures gate evaluation.
type GatesConfig struct {
	FlipHorizonDays int `yaml:"flip_horizon_days" mapstructure:"flip_horizon_days"`
}

// VerifierConfig configures the independent verification pass.
type VerifierConfig struct {
	SampleSize        int      `yaml:"sample_size" mapstructure:"sample_size"`
	RelativeTolerance float64  `yaml:"relative_tolerance" mapstructure:"relative_tolerance"`
	AllowedDomains    []string `yaml:"allowed_domains" mapstructure:"allowed_domains"`
}

// MonitorConfig configures scheduled trigger evaluation. WebhookURL, when
// set, receives a JSON POST for every breached or expired trigger.
type MonitorConfig struct {
	Schedule   string `yaml:"schedule" mapstructure:"schedule"`
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DOSSIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/dossier.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 10.0)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("batch.max_concurrent_tickers", 4)
	v.SetDefault("normalizer.alignment_tolerance_days", 7)
	v.SetDefault("valuation.base_hurdle", 0.15)
	v.SetDefault("valuation.tax_rate", 0.21)
	v.SetDefault("valuation.band_bps", 100.0)
	v.SetDefault("valuation.solver.max_iterations", 100)
	v.SetDefault("valuation.solver.tolerance", 1e-6)
	v.SetDefault("valuation.solver.guess", 0.10)
	v.SetDefault("gates.flip_horizon_days", 90)
	v.SetDefault("verifier.sample_size", 5)
	v.SetDefault("verifier.relative_tolerance", 0.01)
	v.SetDefault("verifier.allowed_domains", []string{
		"sec.gov",
		"federalreserve.gov",
		"treasury.gov",
		"bls.gov",
		"localhost",
	})
	v.SetDefault("monitor.schedule", "0 0 7 * * *")
	v.SetDefault("monitor.webhook_url", "")

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
