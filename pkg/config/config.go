package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned by RequireCredential when no FRED API key is configured.
var ErrMissingCredential = errors.New("fred api key is required (set FRED_API_KEY or fred.api_key)")

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Log         LogConfig        `yaml:"log"`
	FRED        FREDConfig       `yaml:"fred"`
	Pipeline    PipelineConfig   `yaml:"pipeline"`
	Mirror      MirrorConfig     `yaml:"mirror"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Server      ServerConfig     `yaml:"server"`
	Dashboard   DashboardConfig  `yaml:"dashboard"`
	Metrics     MetricsConfig    `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout" validate:"required"`
}

type FREDConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url" default:"https://api.stlouisfed.org/fred" validate:"url"`
	Timeout           time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
	MaxAttempts       int           `yaml:"max_attempts" default:"4" validate:"min=1,max=10"`
	BackoffMin        time.Duration `yaml:"backoff_min" default:"500ms" validate:"gte=0"`
	BackoffMax        time.Duration `yaml:"backoff_max" default:"10s" validate:"gtefield=BackoffMin"`
	RequestsPerMinute int           `yaml:"requests_per_minute" default:"120" validate:"min=1"`
	Concurrency       int           `yaml:"concurrency" default:"1" validate:"min=1,max=16"`
	UserAgent         string        `yaml:"user_agent" default:"fred-pipeline/1.0"`
}

type TableConfig struct {
	Enabled    bool   `yaml:"enabled" default:"true"`
	Output     string `yaml:"output"`
	StartAfter string `yaml:"start_after" default:"2000-01-01" validate:"omitempty,datetime=2006-01-02"`
}

type PipelineConfig struct {
	Weekly  TableConfig `yaml:"weekly"`
	Monthly TableConfig `yaml:"monthly"`
}

// SetDefaults fills per-table output paths; called by creasty/defaults.
func (p *PipelineConfig) SetDefaults() {
	if p.Weekly.Output == "" {
		p.Weekly.Output = "fred_weekly.csv"
	}
	if p.Monthly.Output == "" {
		p.Monthly.Output = "fred_monthly.csv"
	}
}

type MirrorConfig struct {
	Type      string `yaml:"type" default:"none" validate:"oneof=none clickhouse kafka"`
	BatchSize int    `yaml:"batch_size" default:"2000" validate:"min=1"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic" default:"fred.indicators"`
	RequiredAcks int      `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"500"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"fred"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert" default:"true"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
}

type DashboardConfig struct {
	DefaultStart  string        `yaml:"default_start" default:"2010-01-01" validate:"datetime=2006-01-02"`
	// Per-client token bucket; zero rate disables limiting.
	RatePerSecond float64       `yaml:"rate_per_second" default:"20" validate:"gte=0"`
	Burst         float64       `yaml:"burst" default:"40" validate:"gte=0"`
	CacheTTL      time.Duration `yaml:"cache_ttl" default:"0s"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
	PushURL string `yaml:"push_url"`
	JobName string `yaml:"job_name" default:"fred_pipeline"`
}

var validate = validator.New()

// Default returns a configuration populated only from `default` tags.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FRED_API_KEY"); v != "" {
		c.FRED.APIKey = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv("MIRROR_TYPE"); v != "" {
		c.Mirror.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("WEEKLY_OUTPUT"); v != "" {
		c.Pipeline.Weekly.Output = v
	}
	if v := getenv("MONTHLY_OUTPUT"); v != "" {
		c.Pipeline.Monthly.Output = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	switch c.Mirror.Type {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when mirror.type is kafka")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when mirror.type is kafka")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" || c.ClickHouse.Database == "" {
			return fmt.Errorf("clickhouse.host and clickhouse.database are required when mirror.type is clickhouse")
		}
	}
	if c.Pipeline.Weekly.Enabled && c.Pipeline.Monthly.Enabled &&
		c.Pipeline.Weekly.Output == c.Pipeline.Monthly.Output {
		return fmt.Errorf("pipeline.weekly.output and pipeline.monthly.output must differ")
	}
	return nil
}

// RequireCredential fails when the FRED API key is absent. The pipeline
// calls it before any network access.
func (c *Config) RequireCredential() error {
	if strings.TrimSpace(c.FRED.APIKey) == "" {
		return ErrMissingCredential
	}
	return nil
}
