package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Service     string `yaml:"service" default:"alphabot" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
		CORS            bool          `yaml:"cors"`
		// AllowOrigins applies to CORS and websocket upgrades when cors is on.
		AllowOrigins []string `yaml:"allow_origins" default:"[\"*\"]"`
	} `yaml:"server"`
	Logging struct {
		Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format    string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output    string `yaml:"output" default:"stdout" validate:"required"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100" validate:"gte=1"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	// Storage selects where bot state lives.
	Storage struct {
		Backend       string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
		MemoryMaxSize int           `yaml:"memory_max_size" validate:"gte=0"`
		MemoryTTL     time.Duration `yaml:"memory_ttl" default:"5s"`
	} `yaml:"storage"`
	SignalLog struct {
		Backend string `yaml:"backend" default:"memory" validate:"oneof=memory clickhouse"`
		Table   string `yaml:"table" default:"signal_log" validate:"required"`
	} `yaml:"signal_log"`
	Lock struct {
		Mode  string        `yaml:"mode" default:"local" validate:"oneof=local redis"`
		TTL   time.Duration `yaml:"ttl" default:"10s"`
		Retry time.Duration `yaml:"retry" default:"25ms"`
	} `yaml:"lock"`
	Policy struct {
		Reference   string `yaml:"reference" default:"signal_predicted" validate:"oneof=signal_predicted previous_predicted previous_actual"`
		OnMismatch  string `yaml:"on_mismatch" default:"ignore" validate:"oneof=ignore reject"`
		HoldBandBps int64  `yaml:"hold_band_bps" default:"200" validate:"gte=0,lte=10000"`
	} `yaml:"policy"`
	RateLimit struct {
		Capacity      float64       `yaml:"capacity" validate:"gte=0"`
		RefillPerSec  float64       `yaml:"refill_per_sec" validate:"gte=0"`
		SweepInterval time.Duration `yaml:"sweep_interval" default:"1m"`
		IdleAfter     time.Duration `yaml:"idle_after" default:"10m"`
	} `yaml:"rate_limit"`
	Bots struct {
		AutoCreate bool     `yaml:"auto_create"`
		Preload    []string `yaml:"preload" validate:"dive,required,max=64"`
	} `yaml:"bots"`
	Events struct {
		StreamBuffer int `yaml:"stream_buffer" default:"64" validate:"gte=1"`
	} `yaml:"events"`
	Redis struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		Prefix       string        `yaml:"prefix" default:"alphabot"`
		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		Timeout      time.Duration `yaml:"timeout" default:"3s"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled          bool     `yaml:"enabled"`
		Brokers          []string `yaml:"brokers"`
		RequiredAcks     int      `yaml:"required_acks" default:"-1"`
		Compression      string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		AutoCreateTopics bool     `yaml:"auto_create_topics"`
		Topics           struct {
			Commands string `yaml:"commands" default:"alphabot.commands"`
			Events   string `yaml:"events" default:"alphabot.events"`
			DLQ      string `yaml:"dlq" default:"alphabot.commands.dlq"`
			Logs     string `yaml:"logs" default:"alphabot.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID         string        `yaml:"group_id" default:"alphabot"`
			Workers         int           `yaml:"workers" default:"4" validate:"gte=1"`
			BufferSize      int           `yaml:"buffer_size" default:"256"`
			RetryMax        int           `yaml:"retry_max" default:"3"`
			BackoffMin      time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax      time.Duration `yaml:"backoff_max" default:"5s"`
			MinBytes        int           `yaml:"min_bytes" default:"1"`
			MaxBytes        int           `yaml:"max_bytes" default:"10485760"`
			AutoOffsetReset string        `yaml:"auto_offset_reset" default:"earliest" validate:"oneof=earliest latest"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"alphabot"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		ConnectRetries   int           `yaml:"connect_retries" default:"5"`
		ConnectBackoff   time.Duration `yaml:"connect_backoff" default:"2s"`
	} `yaml:"clickhouse"`
}

// Load reads a YAML file, fills defaults and validates. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv is Load with environment overrides applied before validation.
func LoadWithEnv(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ALPHABOT_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("ALPHABOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("ALPHABOT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ALPHABOT_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("ALPHABOT_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("ALPHABOT_SIGNAL_LOG"); v != "" {
		c.SignalLog.Backend = v
	}
	if v := os.Getenv("ALPHABOT_LOCK_MODE"); v != "" {
		c.Lock.Mode = v
	}
	if v := os.Getenv("ALPHABOT_REFERENCE_POLICY"); v != "" {
		c.Policy.Reference = v
	}
	if v := os.Getenv("ALPHABOT_AUTO_CREATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ALPHABOT_AUTO_CREATE: %w", err)
		}
		c.Bots.AutoCreate = b
	}
	if v := os.Getenv("ALPHABOT_PRELOAD"); v != "" {
		c.Bots.Preload = splitList(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("REDIS_ADDR: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("REDIS_ADDR port: %w", err)
		}
		c.Redis.Host, c.Redis.Port = host, p
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field rules and combinations of settings that cannot work together.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	usesRedis := c.Storage.Backend != "memory" || c.Lock.Mode == "redis"
	if usesRedis && c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required for storage.backend=%s lock.mode=%s", c.Storage.Backend, c.Lock.Mode)
	}
	if c.Lock.Mode == "redis" {
		// the in-process layer of layered storage would serve stale state to other instances
		if c.Storage.Backend != "redis" {
			return fmt.Errorf("lock.mode=redis requires storage.backend=redis, got %s", c.Storage.Backend)
		}
		if c.Lock.TTL <= 0 || c.Lock.Retry <= 0 {
			return fmt.Errorf("lock.ttl and lock.retry must be positive")
		}
	}
	if c.SignalLog.Backend == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for signal_log.backend=clickhouse")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Logging.Collector.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("logging.collector requires kafka")
	}
	if c.RateLimit.Capacity > 0 && c.RateLimit.RefillPerSec <= 0 {
		return fmt.Errorf("rate_limit.refill_per_sec must be positive when rate limiting is enabled")
	}
	return nil
}

// RedisAddr is host:port for logging.
func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.Redis.Host, strconv.Itoa(c.Redis.Port))
}
