package config

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
)

// Template returns a configuration listing every rule with its default
// switch and level. It is the starting point written by `rules --template`.
func Template(rules []advisor.Rule) *Config {
	recommended := true
	config := &Config{
		Recommended: &recommended,
		Rules:       make(map[string]RuleSetting, len(rules)),
	}
	for _, rule := range rules {
		meta := rule.Metadata()
		enabled := meta.Recommended
		config.Rules[meta.ID] = RuleSetting{
			Enabled: &enabled,
			Level:   meta.DefaultSeverity.String(),
		}
	}
	return config
}

// Write encodes the configuration as "yaml" or "json".
func Write(w io.Writer, config *Config, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return errors.Wrap(encoder.Encode(config), "failed to encode config")
	case "yaml", "":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(config); err != nil {
			return errors.Wrap(err, "failed to encode config")
		}
		return errors.Wrap(encoder.Close(), "failed to encode config")
	default:
		return errors.Errorf("unsupported config format %q", format)
	}
}
