package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Source      SourceConfig   `mapstructure:"source"`
	Analysis    AnalysisConfig `mapstructure:"analysis"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SourceConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Timeout  string `mapstructure:"timeout"`
	CacheTTL string `mapstructure:"cache_ttl"`
}

type AnalysisConfig struct {
	TestFraction    float64 `mapstructure:"test_fraction"`
	Alpha           float64 `mapstructure:"alpha"`
	DetrendWindow   int     `mapstructure:"detrend_window"`
	DiffOrder       int     `mapstructure:"diff_order"`
	ArimaP          int     `mapstructure:"arima_p"`
	ArimaD          int     `mapstructure:"arima_d"`
	ArimaQ          int     `mapstructure:"arima_q"`
	GarchP          int     `mapstructure:"garch_p"`
	GarchQ          int     `mapstructure:"garch_q"`
	Workers         int     `mapstructure:"workers"`
	StepTimeout     string  `mapstructure:"step_timeout"`
	MinObservations int     `mapstructure:"min_observations"`
	ACFLags         int     `mapstructure:"acf_lags"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.Environment = strings.ToLower(config.Environment)

	for _, d := range []struct {
		name  string
		value string
	}{
		{"source.timeout", config.Source.Timeout},
		{"source.cache_ttl", config.Source.CacheTTL},
		{"database.conn_max_lifetime", config.Database.ConnMaxLifetime},
		{"analysis.step_timeout", config.Analysis.StepTimeout},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return nil, fmt.Errorf("invalid %s duration: %w", d.name, err)
		}
	}

	return &config, nil
}

// Duration parses a config duration string, falling back when empty or
// malformed.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)

	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "driftlab")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_conns", 10)
	viper.SetDefault("database.min_conns", 2)
	viper.SetDefault("database.conn_max_lifetime", "30m")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("source.base_url", "http://localhost:3001")
	viper.SetDefault("source.timeout", "30s")
	viper.SetDefault("source.cache_ttl", "1h")

	viper.SetDefault("analysis.test_fraction", 0.2)
	viper.SetDefault("analysis.alpha", 0.05)
	viper.SetDefault("analysis.detrend_window", 30)
	viper.SetDefault("analysis.diff_order", 1)
	// Orders are per-run caller input; these are just starting points and
	// should be tuned per series.
	viper.SetDefault("analysis.arima_p", 5)
	viper.SetDefault("analysis.arima_d", 1)
	viper.SetDefault("analysis.arima_q", 1)
	viper.SetDefault("analysis.garch_p", 1)
	viper.SetDefault("analysis.garch_q", 1)
	viper.SetDefault("analysis.workers", 4)
	viper.SetDefault("analysis.step_timeout", "60s")
	viper.SetDefault("analysis.min_observations", 8)
	viper.SetDefault("analysis.acf_lags", 20)
}
