package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/rules/safety"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

var (
	recommendedRule = advisor.RuleMetadata{ID: "banDropColumn", DefaultSeverity: types.Severity_ERROR, Recommended: true}
	optionalRule    = advisor.RuleMetadata{ID: "renamingTable", DefaultSeverity: types.Severity_WARNING}
)

func TestConfigPrecedence(t *testing.T) {
	tests := []struct {
		name            string
		document        string
		wantRecommended bool
		wantOptional    bool
		wantSeverity    types.Severity
	}{
		{
			name:            "empty document",
			document:        "{}",
			wantRecommended: true,
			wantSeverity:    types.Severity_ERROR,
		},
		{
			name:         "recommended off",
			document:     "recommended: false\nrules:\n  renamingTable:\n    enabled: true\n",
			wantOptional: true,
			wantSeverity: types.Severity_ERROR,
		},
		{
			name:            "all enabled with level",
			document:        "all:\n  enabled: true\n  level: warning\n",
			wantRecommended: true,
			wantOptional:    true,
			wantSeverity:    types.Severity_WARNING,
		},
		{
			name:            "rule entry beats all",
			document:        "all:\n  enabled: false\n  level: HINT\nrules:\n  banDropColumn:\n    enabled: true\n    level: INFO\n",
			wantRecommended: true,
			wantSeverity:    types.Severity_INFO,
		},
		{
			name:            "json document",
			document:        `{"rules": {"banDropColumn": {"level": "WARNING"}, "renamingTable": {"enabled": true}}}`,
			wantRecommended: true,
			wantOptional:    true,
			wantSeverity:    types.Severity_WARNING,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config, err := Parse([]byte(tc.document))
			require.NoError(t, err)
			assert.Equal(t, tc.wantRecommended, config.IsEnabled(recommendedRule))
			assert.Equal(t, tc.wantOptional, config.IsEnabled(optionalRule))
			assert.Equal(t, tc.wantSeverity, config.Severity(recommendedRule))
		})
	}
}

func TestNilConfigUsesDefaults(t *testing.T) {
	var config *Config
	assert.True(t, config.IsEnabled(recommendedRule))
	assert.False(t, config.IsEnabled(optionalRule))
	assert.Equal(t, types.Severity_WARNING, config.Severity(optionalRule))
	assert.NoError(t, config.Validate(advisor.NewRegistry()))

	assert.True(t, DefaultConfig().IsEnabled(recommendedRule))
}

func TestParseRejectsInvalidLevel(t *testing.T) {
	_, err := Parse([]byte("rules:\n  banDropColumn:\n    level: CRITICAL\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRITICAL")

	_, err = Parse([]byte("all:\n  level: loud\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all")
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("rules: [unclosed"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	reg := safety.NewRegistry()

	config, err := Parse([]byte("rules:\n  banDropColumn:\n    enabled: false\n"))
	require.NoError(t, err)
	assert.NoError(t, config.Validate(reg))

	config, err = Parse([]byte("rules:\n  zeta: {}\n  alpha: {}\n"))
	require.NoError(t, err)
	err = config.Validate(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha, zeta")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  renamingColumn:\n    enabled: true\n    level: ERROR\n"), 0o600))

	config, err := LoadFromFile(path)
	require.NoError(t, err)
	meta := advisor.RuleMetadata{ID: "renamingColumn", DefaultSeverity: types.Severity_WARNING}
	assert.True(t, config.IsEnabled(meta))
	assert.Equal(t, types.Severity_ERROR, config.Severity(meta))

	_, err = LoadFromFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")
}

func TestTemplateRoundTrip(t *testing.T) {
	rules := safety.Rules()
	template := Template(rules)
	require.Len(t, template.Rules, len(rules))

	for _, format := range []string{"yaml", "json"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, template, format))

			config, err := Parse(buf.Bytes())
			require.NoError(t, err)
			for _, rule := range rules {
				meta := rule.Metadata()
				assert.Equal(t, meta.Recommended, config.IsEnabled(meta), meta.ID)
				assert.Equal(t, meta.DefaultSeverity, config.Severity(meta), meta.ID)
			}
		})
	}

	require.Error(t, Write(&bytes.Buffer{}, template, "toml"))
}
