// Package config loads and validates the application configuration from a
// YAML file and environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/veracity-sec/correlator/api/schemas"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Rules    []RuleConfig   `mapstructure:"rules" yaml:"rules"`
}

// LoggerConfig controls the zap logger setup.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`

	// File rotation; logging goes to stdout only when LogFile is empty.
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig configures the PostgreSQL store. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	MaxConns       int32         `mapstructure:"max_conns" yaml:"max_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// EngineConfig tunes ingestion batching, rule lookups and notification
// throttling.
type EngineConfig struct {
	IngestBatchSize       int           `mapstructure:"ingest_batch_size" yaml:"ingest_batch_size"`
	IngestFlushInterval   time.Duration `mapstructure:"ingest_flush_interval" yaml:"ingest_flush_interval"`
	RuleLookupConcurrency int           `mapstructure:"rule_lookup_concurrency" yaml:"rule_lookup_concurrency"`
	NotifyRatePerSecond   float64       `mapstructure:"notify_rate_per_second" yaml:"notify_rate_per_second"`
	NotifyBurst           int           `mapstructure:"notify_burst" yaml:"notify_burst"`
	// DefaultTrigger is the trigger label used by the ingest pipeline when
	// evaluating alert rules. Empty disables evaluation during ingest.
	DefaultTrigger string `mapstructure:"default_trigger" yaml:"default_trigger"`
}

// RuleConfig is the config-file form of an alerting rule.
type RuleConfig struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Scope     string `mapstructure:"scope" yaml:"scope"`
	Trigger   string `mapstructure:"trigger" yaml:"trigger"`
	ScopeAttr string `mapstructure:"scope_attr" yaml:"scope_attr"`
	Condition struct {
		Key   string `mapstructure:"key" yaml:"key"`
		Value string `mapstructure:"value" yaml:"value"`
	} `mapstructure:"condition" yaml:"condition"`
}

// ToRule converts the config form into the schema entity.
func (rc RuleConfig) ToRule() schemas.Rule {
	return schemas.Rule{
		Name:      rc.Name,
		Enabled:   rc.Enabled,
		Scope:     rc.Scope,
		Trigger:   rc.Trigger,
		ScopeAttr: rc.ScopeAttr,
		Condition: schemas.Condition{Key: rc.Condition.Key, Value: rc.Condition.Value},
	}
}

// SchemaRules converts every configured rule.
func (c *Config) SchemaRules() []schemas.Rule {
	out := make([]schemas.Rule, 0, len(c.Rules))
	for _, rc := range c.Rules {
		out = append(out, rc.ToRule())
	}
	return out
}

// SetDefaults registers the default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "correlator")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)

	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.connect_timeout", 5*time.Second)

	v.SetDefault("engine.ingest_batch_size", 100)
	v.SetDefault("engine.ingest_flush_interval", 2*time.Second)
	v.SetDefault("engine.rule_lookup_concurrency", 4)
	v.SetDefault("engine.notify_rate_per_second", 10.0)
	v.SetDefault("engine.notify_burst", 20)
	v.SetDefault("engine.default_trigger", schemas.TriggerAll)
}

// Load unmarshals and validates the configuration from a prepared viper
// instance.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.IngestBatchSize <= 0 {
		return fmt.Errorf("engine.ingest_batch_size must be positive, got %d", c.Engine.IngestBatchSize)
	}
	if c.Engine.IngestFlushInterval <= 0 {
		return fmt.Errorf("engine.ingest_flush_interval must be positive, got %s", c.Engine.IngestFlushInterval)
	}
	if c.Engine.RuleLookupConcurrency <= 0 {
		return fmt.Errorf("engine.rule_lookup_concurrency must be positive, got %d", c.Engine.RuleLookupConcurrency)
	}
	for _, rc := range c.Rules {
		if rc.Name == "" {
			return fmt.Errorf("every rule needs a name")
		}
	}
	return nil
}
