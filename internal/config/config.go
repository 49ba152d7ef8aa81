// Package config provides YAML-based configuration loading for Workyard.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Workyard configuration, loaded from workyard.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Capacity CapacityConfig `yaml:"capacity"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Notify   NotifyConfig   `yaml:"notify"`
	Insights InsightsConfig `yaml:"insights"`
	Weights  []WeightSeed   `yaml:"weights"`
}

// DatabaseConfig selects and addresses the record store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// CapacityConfig holds the aggregation baseline.
type CapacityConfig struct {
	AvailableHours float64  `yaml:"available_hours"`
	ActiveStatuses []string `yaml:"active_statuses"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// NotifyConfig configures chat sinks and the capacity digest.
type NotifyConfig struct {
	Slack          ChatConfig `yaml:"slack"`
	Discord        ChatConfig `yaml:"discord"`
	DigestSchedule string     `yaml:"digest_schedule"`
}

// ChatConfig is a bot token and target channel for one chat platform.
type ChatConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Enabled reports whether both a token and a channel are set.
func (c ChatConfig) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

// InsightsConfig configures the text-generation pass-through.
type InsightsConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// WeightSeed is one initial weight row written by "wy db init".
type WeightSeed struct {
	ConfigType string  `yaml:"config_type"`
	Key        string  `yaml:"key"`
	Value      float64 `yaml:"value"`
	Label      string  `yaml:"label"`
	Order      int     `yaml:"order"`
}

// DefaultActiveStatuses are the work item statuses that count toward capacity.
var DefaultActiveStatuses = []string{"Not Started", "Planning", "In Progress", "Active", "Scaling"}

// DefaultWeights is the seed used when the config file lists none.
var DefaultWeights = []WeightSeed{
	{ConfigType: "effort_size", Key: "XS", Value: 0.5, Label: "Extra Small", Order: 1},
	{ConfigType: "effort_size", Key: "S", Value: 1.5, Label: "Small", Order: 2},
	{ConfigType: "effort_size", Key: "M", Value: 3.5, Label: "Medium", Order: 3},
	{ConfigType: "effort_size", Key: "L", Value: 7.5, Label: "Large", Order: 4},
	{ConfigType: "effort_size", Key: "XL", Value: 15, Label: "Extra Large", Order: 5},
	{ConfigType: "role_weight", Key: "Owner", Value: 1.0, Label: "Owner", Order: 1},
	{ConfigType: "role_weight", Key: "Primary", Value: 1.0, Label: "Primary", Order: 2},
	{ConfigType: "role_weight", Key: "Co-Owner", Value: 0.75, Label: "Co-Owner", Order: 3},
	{ConfigType: "role_weight", Key: "Secondary", Value: 0.5, Label: "Secondary", Order: 4},
	{ConfigType: "role_weight", Key: "Support", Value: 0.25, Label: "Support", Order: 5},
	{ConfigType: "work_type_weight", Key: "System Initiative", Value: 1.0, Label: "System Initiative", Order: 1},
	{ConfigType: "work_type_weight", Key: "Project", Value: 1.0, Label: "Project", Order: 2},
	{ConfigType: "work_type_weight", Key: "Ticket", Value: 0.5, Label: "Ticket", Order: 3},
	{ConfigType: "work_type_weight", Key: "General Support", Value: 0.75, Label: "General Support", Order: 4},
	{ConfigType: "phase_weight", Key: "Discovery", Value: 0.75, Label: "Discovery", Order: 1},
	{ConfigType: "phase_weight", Key: "Planning", Value: 1.0, Label: "Planning", Order: 2},
	{ConfigType: "phase_weight", Key: "Implementation", Value: 1.25, Label: "Implementation", Order: 3},
	{ConfigType: "phase_weight", Key: "Maintenance", Value: 0.5, Label: "Maintenance", Order: 4},
	{ConfigType: "phase_weight", Key: "N/A", Value: 1.0, Label: "Not Applicable", Order: 5},
	{ConfigType: "capacity_threshold", Key: "near", Value: 0.60, Label: "Near Capacity", Order: 1},
	{ConfigType: "capacity_threshold", Key: "at", Value: 0.75, Label: "At Capacity", Order: 2},
	{ConfigType: "capacity_threshold", Key: "over", Value: 0.85, Label: "Over Capacity", Order: 3},
}

var validConfigTypes = map[string]bool{
	"effort_size":        true,
	"role_weight":        true,
	"work_type_weight":   true,
	"phase_weight":       true,
	"capacity_threshold": true,
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets secrets live outside the config file.
func (c *Config) applyEnv() {
	for _, e := range []struct {
		name   string
		target *string
	}{
		{"WORKYARD_DB_PASSWORD", &c.Database.Password},
		{"WORKYARD_SLACK_TOKEN", &c.Notify.Slack.BotToken},
		{"WORKYARD_DISCORD_TOKEN", &c.Notify.Discord.BotToken},
		{"WORKYARD_OPENAI_KEY", &c.Insights.APIKey},
	} {
		if v := os.Getenv(e.name); v != "" {
			*e.target = v
		}
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "workyard.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "workyard"
		}
	}
	if c.Capacity.AvailableHours == 0 {
		c.Capacity.AvailableHours = 40
	}
	if len(c.Capacity.ActiveStatuses) == 0 {
		c.Capacity.ActiveStatuses = append([]string(nil), DefaultActiveStatuses...)
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Insights.Model == "" {
		c.Insights.Model = "gpt-4o-mini"
	}
	if len(c.Weights) == 0 {
		c.Weights = append([]WeightSeed(nil), DefaultWeights...)
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Capacity.AvailableHours < 0 {
		errs = append(errs, "capacity.available_hours must be positive")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Notify.DigestSchedule != "" {
		if _, err := cron.ParseStandard(c.Notify.DigestSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("notify.digest_schedule: %v", err))
		}
	}
	seen := make(map[string]bool)
	for i, w := range c.Weights {
		if !validConfigTypes[w.ConfigType] {
			errs = append(errs, fmt.Sprintf("weights[%d].config_type %q is not valid", i, w.ConfigType))
		}
		if w.Key == "" {
			errs = append(errs, fmt.Sprintf("weights[%d].key is required", i))
		}
		if w.Value < 0 {
			errs = append(errs, fmt.Sprintf("weights[%d].value must not be negative", i))
		}
		if w.ConfigType == "capacity_threshold" && w.Value > 1 {
			errs = append(errs, fmt.Sprintf("weights[%d].value must be a fraction in [0,1]", i))
		}
		k := w.ConfigType + "/" + w.Key
		if seen[k] {
			errs = append(errs, fmt.Sprintf("weights[%d] duplicates %s", i, k))
		}
		seen[k] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
