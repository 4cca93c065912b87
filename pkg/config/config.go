package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

var _ advisor.RuleConfig = (*Config)(nil)

// RuleSetting overrides how one rule runs.
type RuleSetting struct {
	Enabled *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Level   string `yaml:"level,omitempty" json:"level,omitempty"`
}

// Config represents the rule configuration for a review.
//
// Precedence for a rule is its own entry, then All, then Recommended.
type Config struct {
	// Recommended enables the recommended rules. It defaults to true.
	Recommended *bool                  `yaml:"recommended,omitempty" json:"recommended,omitempty"`
	All         *RuleSetting           `yaml:"all,omitempty" json:"all,omitempty"`
	Rules       map[string]RuleSetting `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// LoadFromFile loads configuration from a file
func LoadFromFile(filename string) (*Config, error) {
	slog.Debug("Loading config from file", "filename", filename)
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", filename)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", filename)
	}

	slog.Debug("Loaded config", "rules_count", len(config.Rules))
	return config, nil
}

// Parse decodes a YAML or JSON document.
func Parse(data []byte) (*Config, error) {
	var config Config

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, &config); err != nil {
		slog.Debug("YAML unmarshal failed", "error", err)
		config = Config{}
		if jsonErr := json.Unmarshal(data, &config); jsonErr != nil {
			slog.Debug("JSON unmarshal failed", "error", jsonErr)
			return nil, errors.Wrap(err, "config is neither YAML nor JSON")
		}
	}

	if err := config.validateLevels(); err != nil {
		return nil, err
	}
	return &config, nil
}

// DefaultConfig returns a configuration that runs the recommended rules.
func DefaultConfig() *Config {
	return &Config{}
}

// IsEnabled implements advisor.RuleConfig.
func (c *Config) IsEnabled(meta advisor.RuleMetadata) bool {
	if c == nil {
		return meta.Recommended
	}
	if setting, ok := c.Rules[meta.ID]; ok && setting.Enabled != nil {
		return *setting.Enabled
	}
	if c.All != nil && c.All.Enabled != nil {
		return *c.All.Enabled
	}
	if c.Recommended != nil && !*c.Recommended {
		return false
	}
	return meta.Recommended
}

// Severity implements advisor.RuleConfig.
func (c *Config) Severity(meta advisor.RuleMetadata) types.Severity {
	if c == nil {
		return meta.DefaultSeverity
	}
	if setting, ok := c.Rules[meta.ID]; ok && setting.Level != "" {
		return types.ParseSeverity(setting.Level)
	}
	if c.All != nil && c.All.Level != "" {
		return types.ParseSeverity(c.All.Level)
	}
	return meta.DefaultSeverity
}

// Validate checks every configured rule id against the registry.
func (c *Config) Validate(reg *advisor.Registry) error {
	if c == nil {
		return nil
	}
	var unknown []string
	for id := range c.Rules {
		if _, ok := reg.Lookup(id); !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.Errorf("unknown rules in config: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func (c *Config) validateLevels() error {
	if c.All != nil {
		if err := validateLevel("all", c.All.Level); err != nil {
			return err
		}
	}
	for id, setting := range c.Rules {
		if err := validateLevel(id, setting.Level); err != nil {
			return err
		}
	}
	return nil
}

func validateLevel(owner, level string) error {
	if level == "" {
		return nil
	}
	if types.ParseSeverity(level) == types.Severity_SEVERITY_UNSPECIFIED {
		return errors.Errorf("invalid level %q for %s: want one of ERROR, WARNING, INFO, HINT", level, owner)
	}
	return nil
}
