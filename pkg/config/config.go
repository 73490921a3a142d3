package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration, loaded from YAML with env-var
// overrides for deployment secrets.
type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers     []string `yaml:"brokers"`
		EventsTopic string   `yaml:"events_topic"`
		AlertsTopic string   `yaml:"alerts_topic"`
		Producer    struct {
			RequiredAcks int           `yaml:"required_acks"`
			Compression  string        `yaml:"compression"`
			MaxAttempts  int           `yaml:"max_attempts"`
			BatchSize    int           `yaml:"batch_size"`
			BatchBytes   int           `yaml:"batch_bytes"`
			Linger       time.Duration `yaml:"linger"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Dedup struct {
		Path          string        `yaml:"path"`
		Retention     time.Duration `yaml:"retention"`      // default 60 days
		SweepSchedule string        `yaml:"sweep_schedule"` // cron spec
	} `yaml:"dedup"`
	Cache struct {
		MemoryMaxSize int                      `yaml:"memory_max_size"`
		SweepInterval time.Duration            `yaml:"sweep_interval"`
		TTL           map[string]time.Duration `yaml:"ttl"` // per data class
	} `yaml:"cache"`
	Resolver struct {
		PoolSize        int                 `yaml:"pool_size"`
		ProviderTimeout time.Duration       `yaml:"provider_timeout"`
		Chains          map[string][]string `yaml:"chains"` // data class -> ordered provider names
		Breaker         struct {
			Window         time.Duration `yaml:"window"`
			Cooldown       time.Duration `yaml:"cooldown"`
			MinCalls       int           `yaml:"min_calls"`
			MaxFailureRate float64       `yaml:"max_failure_rate"`
		} `yaml:"breaker"`
		RateLimit struct {
			Capacity     float64 `yaml:"capacity"`
			RefillPerSec float64 `yaml:"refill_per_sec"`
		} `yaml:"ratelimit"`
	} `yaml:"resolver"`
	Providers struct {
		Tiingo struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"tiingo"`
		AlphaVantage struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"alphavantage"`
		Yahoo struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"yahoo"`
		Sentiment struct {
			BaseURL string        `yaml:"base_url"`
			Timeout time.Duration `yaml:"timeout"`
		} `yaml:"sentiment"`
		Stream struct {
			Enabled        bool          `yaml:"enabled"`
			WebSocketURL   string        `yaml:"websocket_url"`
			APIKey         string        `yaml:"api_key"`
			Symbols        []string      `yaml:"symbols"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay"`
			PingInterval   time.Duration `yaml:"ping_interval"`
			Staleness      time.Duration `yaml:"staleness"`
		} `yaml:"stream"`
	} `yaml:"providers"`
	Aggregator struct {
		DefaultWeight    float64 `yaml:"default_weight"`
		BullishThreshold float64 `yaml:"bullish_threshold"`
		BearishThreshold float64 `yaml:"bearish_threshold"`
		AlertThreshold   float64 `yaml:"alert_threshold"`
	} `yaml:"aggregator"`
	Outcomes struct {
		Intervals     []string      `yaml:"intervals"`
		PollInterval  time.Duration `yaml:"poll_interval"`
		SampleGrace   time.Duration `yaml:"sample_grace"`
		PriceWeight   float64       `yaml:"price_weight"`
		VolumeWeight  float64       `yaml:"volume_weight"`
		WinThreshold  float64       `yaml:"win_threshold"`
		LossThreshold float64       `yaml:"loss_threshold"`
		Retention     time.Duration `yaml:"retention"`
	} `yaml:"outcomes"`
	Weights struct {
		Path            string        `yaml:"path"`
		Mode            string        `yaml:"mode"` // manual | auto
		Schedule        string        `yaml:"schedule"`
		Lookback        time.Duration `yaml:"lookback"`
		MinSamples      int           `yaml:"min_samples"`
		MinWeight       float64       `yaml:"min_weight"`
		MaxWeight       float64       `yaml:"max_weight"`
		MaxDelta        float64       `yaml:"max_delta"`
		Sensitivity     float64       `yaml:"sensitivity"`
		BaselineWinRate float64       `yaml:"baseline_win_rate"`
	} `yaml:"weights"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets and endpoints
// from environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("TIINGO_API_KEY"); v != "" {
		c.Providers.Tiingo.APIKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		c.Providers.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("STREAM_API_KEY"); v != "" {
		c.Providers.Stream.APIKey = v
	}
	if v := os.Getenv("WEIGHTS_MODE"); v != "" {
		c.Weights.Mode = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Dedup.Retention == 0 {
		c.Dedup.Retention = 60 * 24 * time.Hour
	}
	if c.Dedup.SweepSchedule == "" {
		c.Dedup.SweepSchedule = "0 3 * * *"
	}
	if c.Resolver.PoolSize == 0 {
		c.Resolver.PoolSize = 8
	}
	if c.Resolver.ProviderTimeout == 0 {
		c.Resolver.ProviderTimeout = 5 * time.Second
	}
	if c.Resolver.Breaker.Window == 0 {
		c.Resolver.Breaker.Window = 2 * time.Minute
	}
	if c.Resolver.Breaker.Cooldown == 0 {
		c.Resolver.Breaker.Cooldown = time.Minute
	}
	if c.Resolver.Breaker.MinCalls == 0 {
		c.Resolver.Breaker.MinCalls = 3
	}
	if c.Resolver.Breaker.MaxFailureRate == 0 {
		c.Resolver.Breaker.MaxFailureRate = 0.5
	}
	if c.Resolver.RateLimit.Capacity == 0 {
		c.Resolver.RateLimit.Capacity = 5
	}
	if c.Resolver.RateLimit.RefillPerSec == 0 {
		c.Resolver.RateLimit.RefillPerSec = 1
	}
	if c.Aggregator.DefaultWeight == 0 {
		c.Aggregator.DefaultWeight = 1.0
	}
	if c.Aggregator.BullishThreshold == 0 {
		c.Aggregator.BullishThreshold = 0.15
	}
	if c.Aggregator.BearishThreshold == 0 {
		c.Aggregator.BearishThreshold = -0.15
	}
	if c.Aggregator.AlertThreshold == 0 {
		c.Aggregator.AlertThreshold = 0.15
	}
	if len(c.Outcomes.Intervals) == 0 {
		c.Outcomes.Intervals = []string{"15m", "1h", "4h", "1d"}
	}
	if c.Outcomes.PollInterval == 0 {
		c.Outcomes.PollInterval = time.Minute
	}
	if c.Outcomes.SampleGrace == 0 {
		c.Outcomes.SampleGrace = 5 * time.Minute
	}
	if c.Outcomes.PriceWeight == 0 {
		c.Outcomes.PriceWeight = 1.0
	}
	if c.Outcomes.VolumeWeight == 0 {
		c.Outcomes.VolumeWeight = 0.25
	}
	if c.Outcomes.WinThreshold == 0 {
		c.Outcomes.WinThreshold = 0.75
	}
	if c.Outcomes.LossThreshold == 0 {
		c.Outcomes.LossThreshold = -0.75
	}
	if c.Outcomes.Retention == 0 {
		c.Outcomes.Retention = 30 * 24 * time.Hour
	}
	if c.Weights.Mode == "" {
		c.Weights.Mode = "manual"
	}
	if c.Weights.Schedule == "" {
		c.Weights.Schedule = "30 0 * * *"
	}
	if c.Weights.Lookback == 0 {
		c.Weights.Lookback = 14 * 24 * time.Hour
	}
	if c.Weights.MinSamples == 0 {
		c.Weights.MinSamples = 20
	}
	if c.Weights.MinWeight == 0 {
		c.Weights.MinWeight = 0.5
	}
	if c.Weights.MaxWeight == 0 {
		c.Weights.MaxWeight = 2.0
	}
	if c.Weights.MaxDelta == 0 {
		c.Weights.MaxDelta = 0.2
	}
	if c.Weights.Sensitivity == 0 {
		c.Weights.Sensitivity = 1.0
	}
	if c.Weights.BaselineWinRate == 0 {
		c.Weights.BaselineWinRate = 0.5
	}
	if c.Cache.MemoryMaxSize == 0 {
		c.Cache.MemoryMaxSize = 5000
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = 5 * time.Minute
	}
}

// Validate checks required fields and cross-field consistency.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Kafka.EventsTopic == "" {
		return fmt.Errorf("kafka.events_topic is required")
	}
	if c.Kafka.AlertsTopic == "" {
		return fmt.Errorf("kafka.alerts_topic is required")
	}
	if c.Dedup.Path == "" {
		return fmt.Errorf("dedup.path is required")
	}
	if c.Weights.Path == "" {
		return fmt.Errorf("weights.path is required")
	}
	if c.Weights.Mode != "manual" && c.Weights.Mode != "auto" {
		return fmt.Errorf("weights.mode must be 'manual' or 'auto', got '%s'", c.Weights.Mode)
	}
	if c.Weights.MinWeight >= c.Weights.MaxWeight {
		return fmt.Errorf("weights.min_weight must be below weights.max_weight")
	}
	if c.Aggregator.BearishThreshold >= c.Aggregator.BullishThreshold {
		return fmt.Errorf("aggregator.bearish_threshold must be below bullish_threshold")
	}
	if len(c.Resolver.Chains) == 0 {
		return fmt.Errorf("resolver.chains cannot be empty")
	}
	return nil
}
