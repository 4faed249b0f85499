package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment  string             `mapstructure:"environment"`
	LogLevel     string             `mapstructure:"log_level"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Distribution DistributionConfig `mapstructure:"distribution"`
	Currency     CurrencyConfig     `mapstructure:"currency"`
	Referral     ReferralConfig     `mapstructure:"referral"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Host           string   `mapstructure:"host"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	QueryTimeout    int    `mapstructure:"query_timeout"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// DistributionConfig controls the profit distribution cycle.
type DistributionConfig struct {
	CronSpec           string  `mapstructure:"cron_spec"`
	ServiceFeePct      float64 `mapstructure:"service_fee_pct"`
	RequireKYCApproval bool    `mapstructure:"require_kyc_approval"`
	LockTTLSeconds     int     `mapstructure:"lock_ttl_seconds"`
}

// CurrencyConfig carries the versioned conversion rate table. Rates map
// currency codes to units per USD-equivalent (USD itself is always 1).
type CurrencyConfig struct {
	RateVersion string             `mapstructure:"rate_version"`
	Rates       map[string]float64 `mapstructure:"rates"`
}

// ReferralConfig maps plan tiers to referral bonus rates (fractions,
// e.g. 0.05 for 5%).
type ReferralConfig struct {
	TierRates map[string]float64 `mapstructure:"tier_rates"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	// Read from config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "vestra_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.max_idle_conns", 25)
	viper.SetDefault("database.conn_max_lifetime", 3600)
	viper.SetDefault("database.query_timeout", 30)
	viper.SetDefault("database.max_retries", 3)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)

	// Distribution defaults: Mondays 02:00 UTC, 5% service fee
	viper.SetDefault("distribution.cron_spec", "0 2 * * 1")
	viper.SetDefault("distribution.service_fee_pct", 5.0)
	viper.SetDefault("distribution.require_kyc_approval", false)
	viper.SetDefault("distribution.lock_ttl_seconds", 1800)

	viper.SetDefault("currency.rate_version", "static-v1")
	viper.SetDefault("currency.rates", map[string]float64{
		"USD": 1.0,
		"EUR": 1.08,
		"GBP": 1.27,
		"NGN": 0.00065,
	})

	viper.SetDefault("referral.tier_rates", map[string]float64{
		"starter": 0.03,
		"growth":  0.05,
		"pro":     0.07,
	})

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 0.1)
	viper.SetDefault("tracing.insecure", true)
}

func overrideFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	if redisURL := os.Getenv("REDIS_HOST"); redisURL != "" {
		viper.Set("redis.host", redisURL)
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		viper.Set("redis.password", redisPassword)
	}

	if cronSpec := os.Getenv("DISTRIBUTION_CRON_SPEC"); cronSpec != "" {
		viper.Set("distribution.cron_spec", cronSpec)
	}
	if feePct := os.Getenv("DISTRIBUTION_SERVICE_FEE_PCT"); feePct != "" {
		if f, err := strconv.ParseFloat(feePct, 64); err == nil {
			viper.Set("distribution.service_fee_pct", f)
		}
	}
	if requireKYC := os.Getenv("DISTRIBUTION_REQUIRE_KYC"); requireKYC != "" {
		if b, err := strconv.ParseBool(requireKYC); err == nil {
			viper.Set("distribution.require_kyc_approval", b)
		}
	}

	if rateVersion := os.Getenv("CURRENCY_RATE_VERSION"); rateVersion != "" {
		viper.Set("currency.rate_version", rateVersion)
	}

	if collectorURL := os.Getenv("OTEL_COLLECTOR_URL"); collectorURL != "" {
		viper.Set("tracing.collector_url", collectorURL)
		viper.Set("tracing.enabled", true)
	}
}

func validate(config *Config) error {
	if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
		return fmt.Errorf("database configuration is incomplete")
	}

	if config.Distribution.ServiceFeePct < 0 || config.Distribution.ServiceFeePct >= 100 {
		return fmt.Errorf("distribution service fee must be in [0, 100)")
	}

	if len(config.Currency.Rates) == 0 {
		return fmt.Errorf("currency rate table is required")
	}
	for code, rate := range config.Currency.Rates {
		if rate <= 0 {
			return fmt.Errorf("currency rate for %s must be positive", code)
		}
	}

	for tier, rate := range config.Referral.TierRates {
		if rate < 0 || rate >= 1 {
			return fmt.Errorf("referral rate for tier %s must be in [0, 1)", tier)
		}
	}

	return nil
}
