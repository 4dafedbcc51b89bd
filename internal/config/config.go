package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aman-zulfiqar/routediff/internal/constants"
	"github.com/aman-zulfiqar/routediff/internal/retry"
)

const envPrefix = "ROUTEDIFF_"

type Config struct {
	// Router endpoints
	OldURL        string `yaml:"oldUrl"`
	NewURL        string `yaml:"newUrl"`
	UseBaseTokens string `yaml:"useBaseTokens"`

	// Input and output files
	LogFilePath          string `yaml:"logFilePath"`
	OldResPath           string `yaml:"oldResPath"`
	NewResPath           string `yaml:"newResPath"`
	CompareResDetailPath string `yaml:"compareResDetailPath"`
	CompareResPath       string `yaml:"compareResPath"`
	MetricsPath          string `yaml:"metricsPath"`

	// MaxCount stops the replay after this many compared records, 0 means
	// no limit.
	MaxCount uint64 `yaml:"maxCount"`

	// HTTP client settings
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	RateLimitQPS   float64       `yaml:"rateLimitQps"`

	// Retry settings for one logical router call
	RetryInitialInterval time.Duration `yaml:"retryInitialInterval"`
	RetryMultiplier      float64       `yaml:"retryMultiplier"`
	RetryMaxInterval     time.Duration `yaml:"retryMaxInterval"`
	RetryMaxElapsed      time.Duration `yaml:"retryMaxElapsed"`

	// Comparison
	DivergenceThreshold float64 `yaml:"divergenceThreshold"`
	DedupPairs          bool    `yaml:"dedupPairs"`
	DedupBackend        string  `yaml:"dedupBackend"` // memory or redis

	// Redis settings
	RedisAddr    string `yaml:"redisAddr"`
	RedisChannel string `yaml:"redisChannel"` // divergence pub/sub, empty disables

	// ClickHouse settings, empty address disables the store
	ClickHouseAddr     string `yaml:"clickhouseAddr"`
	ClickHouseDatabase string `yaml:"clickhouseDatabase"`
	ClickHouseUsername string `yaml:"clickhouseUsername"`
	ClickHousePassword string `yaml:"clickhousePassword"`

	// Kafka settings, no brokers disables the publisher
	KafkaBrokers []string `yaml:"kafkaBrokers"`
	KafkaTopic   string   `yaml:"kafkaTopic"`
}

// ConfigError reports an unusable configuration. It is fatal: no line is
// processed once it is returned.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Default returns a config with every optional setting filled in.
func Default() *Config {
	return &Config{
		RequestTimeout:       constants.DefaultRequestTimeout,
		RetryInitialInterval: constants.RetryInitialInterval,
		RetryMultiplier:      constants.RetryMultiplier,
		RetryMaxInterval:     constants.RetryMaxInterval,
		RetryMaxElapsed:      constants.RetryMaxElapsed,
		DivergenceThreshold:  constants.DivergenceThreshold,
		DedupPairs:           true,
		DedupBackend:         "memory",
		RedisAddr:            "localhost:6379",
		ClickHouseDatabase:   "default",
		ClickHouseUsername:   "default",
	}
}

// Load reads the YAML (or JSON) file at path on top of the defaults and then
// applies ROUTEDIFF_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigError{Field: "file", Reason: "cannot read " + path, Err: err}
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigError{Field: "file", Reason: "cannot parse " + path, Err: err}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.OldURL = getEnv("OLD_URL", c.OldURL)
	c.NewURL = getEnv("NEW_URL", c.NewURL)
	c.UseBaseTokens = getEnv("USE_BASE_TOKENS", c.UseBaseTokens)

	c.LogFilePath = getEnv("LOG_FILE_PATH", c.LogFilePath)
	c.OldResPath = getEnv("OLD_RES_PATH", c.OldResPath)
	c.NewResPath = getEnv("NEW_RES_PATH", c.NewResPath)
	c.CompareResDetailPath = getEnv("COMPARE_RES_DETAIL_PATH", c.CompareResDetailPath)
	c.CompareResPath = getEnv("COMPARE_RES_PATH", c.CompareResPath)
	c.MetricsPath = getEnv("METRICS_PATH", c.MetricsPath)
	c.MaxCount = getUintEnv("MAX_COUNT", c.MaxCount)

	c.RequestTimeout = getDurationEnv("REQUEST_TIMEOUT", c.RequestTimeout)
	c.RateLimitQPS = getFloatEnv("RATE_LIMIT_QPS", c.RateLimitQPS)

	c.RetryInitialInterval = getDurationEnv("RETRY_INITIAL_INTERVAL", c.RetryInitialInterval)
	c.RetryMultiplier = getFloatEnv("RETRY_MULTIPLIER", c.RetryMultiplier)
	c.RetryMaxInterval = getDurationEnv("RETRY_MAX_INTERVAL", c.RetryMaxInterval)
	c.RetryMaxElapsed = getDurationEnv("RETRY_MAX_ELAPSED", c.RetryMaxElapsed)

	c.DivergenceThreshold = getFloatEnv("DIVERGENCE_THRESHOLD", c.DivergenceThreshold)
	c.DedupPairs = getBoolEnv("DEDUP_PAIRS", c.DedupPairs)
	c.DedupBackend = getEnv("DEDUP_BACKEND", c.DedupBackend)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisChannel = getEnv("REDIS_CHANNEL", c.RedisChannel)

	c.ClickHouseAddr = getEnv("CLICKHOUSE_ADDR", c.ClickHouseAddr)
	c.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", c.ClickHouseDatabase)
	c.ClickHouseUsername = getEnv("CLICKHOUSE_USERNAME", c.ClickHouseUsername)
	c.ClickHousePassword = getEnv("CLICKHOUSE_PASSWORD", c.ClickHousePassword)

	c.KafkaBrokers = getListEnv("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaTopic = getEnv("KAFKA_TOPIC", c.KafkaTopic)
}

// ValidateLogFile checks the settings needed to read the input log.
func (c *Config) ValidateLogFile() error {
	if strings.TrimSpace(c.LogFilePath) == "" {
		return &ConfigError{Field: "logFilePath", Reason: "is required"}
	}
	return nil
}

// Validate checks everything a replay run needs.
func (c *Config) Validate() error {
	if err := c.ValidateLogFile(); err != nil {
		return err
	}
	if err := validateURL("oldUrl", c.OldURL); err != nil {
		return err
	}
	if err := validateURL("newUrl", c.NewURL); err != nil {
		return err
	}
	if c.CompareResDetailPath == "" {
		return &ConfigError{Field: "compareResDetailPath", Reason: "is required"}
	}
	if c.CompareResPath == "" {
		return &ConfigError{Field: "compareResPath", Reason: "is required"}
	}

	if c.RequestTimeout <= 0 {
		return &ConfigError{Field: "requestTimeout", Reason: "must be positive"}
	}
	if c.RateLimitQPS < 0 {
		return &ConfigError{Field: "rateLimitQps", Reason: "must not be negative"}
	}
	if c.RetryInitialInterval <= 0 {
		return &ConfigError{Field: "retryInitialInterval", Reason: "must be positive"}
	}
	if c.RetryMultiplier < 1 {
		return &ConfigError{Field: "retryMultiplier", Reason: "must be at least 1"}
	}
	if c.RetryMaxInterval < c.RetryInitialInterval {
		return &ConfigError{Field: "retryMaxInterval", Reason: "must not be below retryInitialInterval"}
	}
	if c.RetryMaxElapsed <= 0 {
		return &ConfigError{Field: "retryMaxElapsed", Reason: "must be positive"}
	}
	if c.DivergenceThreshold <= 0 {
		return &ConfigError{Field: "divergenceThreshold", Reason: "must be positive"}
	}

	switch c.DedupBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return &ConfigError{Field: "redisAddr", Reason: "is required for the redis dedup backend"}
		}
	default:
		return &ConfigError{Field: "dedupBackend", Reason: fmt.Sprintf("unknown backend %q, want memory or redis", c.DedupBackend)}
	}

	if c.RedisChannel != "" && c.RedisAddr == "" {
		return &ConfigError{Field: "redisAddr", Reason: "is required when redisChannel is set"}
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return &ConfigError{Field: "kafkaTopic", Reason: "is required when kafkaBrokers is set"}
	}
	return nil
}

// RetryPolicy builds the per-call retry policy from the retry settings.
func (c *Config) RetryPolicy() *retry.Policy {
	p := retry.DefaultPolicy()
	p.InitialInterval = c.RetryInitialInterval
	p.Multiplier = c.RetryMultiplier
	p.MaxInterval = c.RetryMaxInterval
	p.MaxElapsedTime = c.RetryMaxElapsed
	return p
}

func validateURL(field, raw string) error {
	if raw == "" {
		return &ConfigError{Field: field, Reason: "is required"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigError{Field: field, Reason: "is not a valid url", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigError{Field: field, Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &ConfigError{Field: field, Reason: "has no host"}
	}
	return nil
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(envPrefix + key); val != "" {
		return val
	}
	return defaultVal
}

func getUintEnv(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(envPrefix + key); val != "" {
		if i, err := strconv.ParseUint(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(envPrefix + key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(envPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(envPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getListEnv(key string, defaultVal []string) []string {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
