package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/autocura/governance-core/internal/domain/autonomy"
	"github.com/autocura/governance-core/internal/domain/ethics"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Gate          GateConfig         `koanf:"gate"`
	Flow          FlowConfig         `koanf:"flow"`
	Pillars       map[string][]Rule  `koanf:"pillars"`
	Levels        []LevelConfig      `koanf:"levels"`
	Redis         RedisConfig        `koanf:"redis"`
	Database      DatabaseConfig     `koanf:"database"`
	Telemetry     TelemetryConfig    `koanf:"telemetry"`
	Notifications NotificationConfig `koanf:"notifications"`
}

type GateConfig struct {
	MaxDirectHumanImpact float64       `koanf:"max_direct_human_impact" validate:"gt=0,lte=1"`
	MinRedesignLevel     int           `koanf:"min_redesign_level" validate:"min=1,max=5"`
	MaxGiniDelta         float64       `koanf:"max_gini_delta" validate:"gt=0,lt=1"`
	MaxCarbonTonnes      float64       `koanf:"max_carbon_tonnes" validate:"gt=0"`
	HistoryLimit         int           `koanf:"history_limit" validate:"min=1"`
	CacheTTL             time.Duration `koanf:"cache_ttl"`
}

type FlowConfig struct {
	InitialLevel         int     `koanf:"initial_level" validate:"min=1,max=5"`
	DegradationTolerance float64 `koanf:"degradation_tolerance" validate:"gt=0,lt=1"`
}

// Rule is the configuration shape of one pillar sub-rule.
type Rule struct {
	ID          string `koanf:"id" validate:"required"`
	Description string `koanf:"description"`
}

// LevelConfig is the configuration shape of one autonomy level policy.
type LevelConfig struct {
	Level       int                           `koanf:"level" validate:"min=1,max=5"`
	Permissions map[string]bool               `koanf:"permissions" validate:"required"`
	Criteria    *autonomy.AdvancementCriteria `koanf:"criteria"`
	TestWindow  time.Duration                 `koanf:"test_window"`
}

type RedisConfig struct {
	Enabled      bool          `koanf:"enabled"`
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type DatabaseConfig struct {
	Enabled         bool          `koanf:"enabled"`
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type TelemetryConfig struct {
	Enabled     bool `koanf:"enabled"`
	MetricsPort int  `koanf:"metrics_port"`
}

type NotificationConfig struct {
	EventsPerSecond int `koanf:"events_per_second" validate:"min=1"`
	BurstSize       int `koanf:"burst_size" validate:"min=1"`
}

// Load layers defaults, an optional YAML file and AGC_-prefixed
// environment variables, then validates the result. Pillar rules and
// level policies are cross-checked against the domain tables so a bad
// governance file fails at startup, not at first decision.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Gate: GateConfig{
			MaxDirectHumanImpact: 0.7,
			MinRedesignLevel:     4,
			MaxGiniDelta:         0.05,
			MaxCarbonTonnes:      1000,
			HistoryLimit:         10000,
			CacheTTL:             6 * time.Hour,
		},
		Flow: FlowConfig{
			InitialLevel:         1,
			DegradationTolerance: 0.05,
		},
		Redis: RedisConfig{
			URL:          "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Enabled:     true,
			MetricsPort: 9090,
		},
		Notifications: NotificationConfig{
			EventsPerSecond: 50,
			BurstSize:       100,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("AGC_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "AGC_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct-tag validation plus the domain cross checks.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if _, err := c.RuleTable(); err != nil {
		return fmt.Errorf("pillar rules: %w", err)
	}
	if _, err := c.PolicySet(); err != nil {
		return fmt.Errorf("level policies: %w", err)
	}
	return nil
}

// RuleTable builds the validated pillar rule table, falling back to the
// shipped defaults when no pillars are configured.
func (c *Config) RuleTable() (*ethics.RuleTable, error) {
	if len(c.Pillars) == 0 {
		return ethics.DefaultRuleTable(), nil
	}
	cfg := make(map[string][]ethics.PillarRule, len(c.Pillars))
	for pillar, rules := range c.Pillars {
		converted := make([]ethics.PillarRule, 0, len(rules))
		for _, r := range rules {
			converted = append(converted, ethics.PillarRule{ID: r.ID, Description: r.Description})
		}
		cfg[pillar] = converted
	}
	return ethics.NewRuleTable(cfg)
}

// PolicySet builds the validated level policy table, falling back to
// the shipped defaults when no levels are configured.
func (c *Config) PolicySet() (*autonomy.PolicySet, error) {
	if len(c.Levels) == 0 {
		return autonomy.DefaultPolicySet(), nil
	}
	policies := make([]autonomy.LevelPolicy, 0, len(c.Levels))
	for _, lc := range c.Levels {
		level, err := autonomy.LevelFromInt(lc.Level)
		if err != nil {
			return nil, err
		}
		permissions := make(autonomy.Permissions, len(lc.Permissions))
		for category, allowed := range lc.Permissions {
			permissions[autonomy.ActionCategory(category)] = allowed
		}
		policies = append(policies, autonomy.LevelPolicy{
			Level:       level,
			Permissions: permissions,
			Criteria:    lc.Criteria,
			TestWindow:  lc.TestWindow,
		})
	}
	return autonomy.NewPolicySet(policies)
}
