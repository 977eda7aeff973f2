package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Exchange struct {
		RESTURL      string        `yaml:"rest_url"`
		WebSocketURL string        `yaml:"websocket_url"`
		Symbol       string        `yaml:"symbol"`
		Interval     string        `yaml:"interval"`
		PingInterval time.Duration `yaml:"ping_interval"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
	} `yaml:"exchange"`
	Feed struct {
		HistoryLimit         int           `yaml:"history_limit"`
		BufferCap            int           `yaml:"buffer_cap"`
		ReconnectBase        time.Duration `yaml:"reconnect_base"`
		ReconnectMax         time.Duration `yaml:"reconnect_max"`
		MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	} `yaml:"feed"`
	Account struct {
		Balance float64 `yaml:"balance"`
	} `yaml:"account"`
	Indicators struct {
		EMAFastPeriod   int     `yaml:"ema_fast_period"`
		EMASlowPeriod   int     `yaml:"ema_slow_period"`
		RSIPeriod       int     `yaml:"rsi_period"`
		BollingerPeriod int     `yaml:"bollinger_period"`
		BollingerK      float64 `yaml:"bollinger_k"`
		ATRPeriod       int     `yaml:"atr_period"`
	} `yaml:"indicators"`
	Regime struct {
		ADXPeriod      int `yaml:"adx_period"`
		RSIPeriod      int `yaml:"rsi_period"`
		EMAPeriod      int `yaml:"ema_period"`
		VolumeLookback int `yaml:"volume_lookback"`
	} `yaml:"regime"`
	Signal struct {
		MinScore         int     `yaml:"min_score"`
		VolumeSpikeRatio float64 `yaml:"volume_spike_ratio"`
		BandTouchPercent float64 `yaml:"band_touch_percent"`
	} `yaml:"signal"`
	Risk struct {
		BaseRiskPercent     float64 `yaml:"base_risk_percent"`
		ATRStopMultiple     float64 `yaml:"atr_stop_multiple"`
		MinRewardRisk       float64 `yaml:"min_reward_risk"`
		FallbackStopPercent float64 `yaml:"fallback_stop_percent"`
		MaxPositionFraction float64 `yaml:"max_position_fraction"`
	} `yaml:"risk"`
	View struct {
		CandleHistory int `yaml:"candle_history"`
		SignalHistory int `yaml:"signal_history"`
	} `yaml:"view"`
	Archive struct {
		Enabled    bool   `yaml:"enabled"`
		Table      string `yaml:"table"`
		BufferSize int    `yaml:"buffer_size"`
		ClickHouse struct {
			Host             string        `yaml:"host"`
			Port             int           `yaml:"port"`
			Database         string        `yaml:"database"`
			User             string        `yaml:"user"`
			Password         string        `yaml:"password"`
			UseHTTP          bool          `yaml:"use_http"`
			AsyncInsert      bool          `yaml:"async_insert"`
			WaitForAsync     bool          `yaml:"wait_for_async_insert"`
			DialTimeout      time.Duration `yaml:"dial_timeout"`
			ReadTimeout      time.Duration `yaml:"read_timeout"`
			WriteTimeout     time.Duration `yaml:"write_timeout"`
			MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		} `yaml:"clickhouse"`
	} `yaml:"archive"`
	Publish struct {
		Enabled bool `yaml:"enabled"`
		Kafka   struct {
			Brokers      []string `yaml:"brokers"`
			Topic        string   `yaml:"topic"`
			RequiredAcks int      `yaml:"required_acks"`
			Compression  string   `yaml:"compression"`
			Producer     struct {
				MaxAttempts  int           `yaml:"max_attempts"`
				Linger       time.Duration `yaml:"linger"`
				BatchBytes   int           `yaml:"batch_bytes"`
				BatchSize    int           `yaml:"batch_size"`
				WriteTimeout time.Duration `yaml:"write_timeout"`
				ReadTimeout  time.Duration `yaml:"read_timeout"`
				Async        bool          `yaml:"async"`
			} `yaml:"producer"`
		} `yaml:"kafka"`
	} `yaml:"publish"`
	Cache struct {
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
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

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOL"); v != "" {
		c.Exchange.Symbol = v
	}
	if v := os.Getenv("INTERVAL"); v != "" {
		c.Exchange.Interval = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Publish.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Publish.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.Archive.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Exchange.RESTURL == "" {
		return fmt.Errorf("exchange.rest_url is required")
	}
	if c.Exchange.WebSocketURL == "" {
		return fmt.Errorf("exchange.websocket_url is required")
	}
	if c.Exchange.Symbol == "" {
		return fmt.Errorf("exchange.symbol is required")
	}
	if c.Exchange.Interval == "" {
		return fmt.Errorf("exchange.interval is required")
	}
	if c.Archive.Enabled && c.Archive.ClickHouse.Host == "" {
		return fmt.Errorf("archive.clickhouse.host is required when archive is enabled")
	}
	if c.Publish.Enabled && len(c.Publish.Kafka.Brokers) == 0 {
		return fmt.Errorf("publish.kafka.brokers is required when publish is enabled")
	}
	return nil
}
