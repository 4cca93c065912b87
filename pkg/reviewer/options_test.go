package reviewer

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/catalog"
	"github.com/nsxbet/migration-reviewer/pkg/config"
	"github.com/nsxbet/migration-reviewer/pkg/logger"
)

func TestDefaultOptions(t *testing.T) {
	opts := defaultOptions()

	if _, ok := opts.ruleConfig.(advisor.DefaultRuleConfig); !ok {
		t.Errorf("default rule config = %T, want advisor.DefaultRuleConfig", opts.ruleConfig)
	}
	if opts.concurrency != defaultConcurrency {
		t.Errorf("concurrency = %d, want %d", opts.concurrency, defaultConcurrency)
	}
	if opts.maxDiagnostics != 0 {
		t.Errorf("maxDiagnostics = %d, want 0", opts.maxDiagnostics)
	}
	if opts.logger == nil {
		t.Error("default logger is nil")
	}
}

func TestWithSnapshot(t *testing.T) {
	snapshot := catalog.NewEmptySnapshot()

	opts := defaultOptions()
	WithSnapshot(snapshot)(&opts)

	if opts.snapshot != snapshot {
		t.Error("WithSnapshot() did not set snapshot")
	}
}

func TestWithSnapshotError(t *testing.T) {
	err := errors.New("connection refused")

	opts := defaultOptions()
	WithSnapshotError(err)(&opts)

	if opts.snapshotErr != err {
		t.Error("WithSnapshotError() did not set the error")
	}
}

func TestWithRuleConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	opts := defaultOptions()
	WithRuleConfig(cfg)(&opts)
	if opts.ruleConfig != cfg {
		t.Error("WithRuleConfig() did not set config")
	}

	WithRuleConfig(nil)(&opts)
	if opts.ruleConfig != cfg {
		t.Error("WithRuleConfig(nil) replaced the config")
	}
}

func TestWithDegradedMode(t *testing.T) {
	opts := defaultOptions()
	WithDegradedMode(true)(&opts)
	if !opts.degraded {
		t.Error("WithDegradedMode(true) did not enable degraded mode")
	}
}

func TestWithLogger(t *testing.T) {
	l := logger.Discard()

	opts := defaultOptions()
	WithLogger(l)(&opts)
	if opts.logger != l {
		t.Error("WithLogger() did not set logger")
	}

	WithLogger(nil)(&opts)
	if opts.logger != l {
		t.Error("WithLogger(nil) replaced the logger")
	}
}

func TestWithConcurrency(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
	}{
		{name: "positive", n: 8, want: 8},
		{name: "zero keeps default", n: 0, want: defaultConcurrency},
		{name: "negative keeps default", n: -1, want: defaultConcurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			WithConcurrency(tt.n)(&opts)
			if opts.concurrency != tt.want {
				t.Errorf("concurrency = %d, want %d", opts.concurrency, tt.want)
			}
		})
	}
}

func TestWithMaxDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
	}{
		{name: "cap", n: 20, want: 20},
		{name: "unlimited", n: 0, want: 0},
		{name: "negative is unlimited", n: -5, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			WithMaxDiagnostics(tt.n)(&opts)
			if opts.maxDiagnostics != tt.want {
				t.Errorf("maxDiagnostics = %d, want %d", opts.maxDiagnostics, tt.want)
			}
		})
	}
}
