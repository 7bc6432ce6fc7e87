package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PraWek/BusinessTelemetry/internal/events"
)

type Config struct {
	Input      string           `yaml:"input"`
	Output     OutputConfig     `yaml:"output"`
	Fields     events.Fields    `yaml:"fields"`
	Columns    ColumnsConfig    `yaml:"columns"`
	Funnel     FunnelConfig     `yaml:"funnel"`
	Cohorts    CohortsConfig    `yaml:"cohorts"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
	// CSV disables the CSV sink when explicitly false
	CSV *bool `yaml:"csv"`
}

type ColumnsConfig struct {
	Value        string `yaml:"value"`
	Category     string `yaml:"category"`
	CategoryFill string `yaml:"category_fill"`
}

type FunnelConfig struct {
	Steps               []string `yaml:"steps"`
	RequireStepIncrease *bool    `yaml:"require_step_increase"`
	OrdersAction        string   `yaml:"orders_action"`
}

type CohortsConfig struct {
	ChurnDays         int `yaml:"churn_days"`
	ActiveMinSessions int `yaml:"active_min_sessions"`
	ActiveRecencyDays int `yaml:"active_recency_days"`
}

type ClickHouseConfig struct {
	Addr         string `yaml:"addr"`
	Database     string `yaml:"database"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type KafkaConfig struct {
	Brokers []string          `yaml:"brokers"`
	Topics  map[string]string `yaml:"topics"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// DefaultSteps is the e-commerce funnel used when none is configured
var DefaultSteps = []string{"search", "product", "category", "mainpage", "cart", "checkout", "confirmation"}

// CSVEnabled reports whether report tables are written as CSV files
func (c *Config) CSVEnabled() bool {
	return c.Output.CSV == nil || *c.Output.CSV
}

// StepIncreaseRequired reports whether backward transitions are dropped
func (c *Config) StepIncreaseRequired() bool {
	return c.Funnel.RequireStepIncrease == nil || *c.Funnel.RequireStepIncrease
}

// Default returns a config with every default applied
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Input == "" {
		c.Input = "dataset_telemetry.csv"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	c.Fields = c.Fields.WithDefaults()

	if c.Columns.Value == "" {
		c.Columns.Value = "value"
	}
	if c.Columns.Category == "" {
		c.Columns.Category = "category"
	}
	if c.Columns.CategoryFill == "" {
		c.Columns.CategoryFill = "unknown"
	}

	if len(c.Funnel.Steps) == 0 {
		c.Funnel.Steps = append([]string(nil), DefaultSteps...)
	}
	if c.Funnel.OrdersAction == "" {
		c.Funnel.OrdersAction = "checkout"
	}

	if c.Cohorts.ChurnDays == 0 {
		c.Cohorts.ChurnDays = 90
	}
	if c.Cohorts.ActiveMinSessions == 0 {
		c.Cohorts.ActiveMinSessions = 5
	}
	if c.Cohorts.ActiveRecencyDays == 0 {
		c.Cohorts.ActiveRecencyDays = 30
	}

	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "telemetry"
	}
	if c.ClickHouse.MaxOpenConns == 0 {
		c.ClickHouse.MaxOpenConns = 10
	}
	if c.ClickHouse.MaxIdleConns == 0 {
		c.ClickHouse.MaxIdleConns = 5
	}

	if c.Redis.TTL == 0 {
		c.Redis.TTL = 24 * time.Hour
	}
}
