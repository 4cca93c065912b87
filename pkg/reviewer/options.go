package reviewer

import (
	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/catalog"
	"github.com/nsxbet/migration-reviewer/pkg/logger"
)

const (
	defaultConcurrency = 4
	// defaultMaxDiagnostics of zero keeps every diagnostic.
	defaultMaxDiagnostics = 0
)

// ReviewOption is a functional option for customizing review behavior.
type ReviewOption func(*reviewOptions)

// reviewOptions holds optional configuration for a reviewer.
type reviewOptions struct {
	snapshot       *catalog.Snapshot
	snapshotErr    error
	ruleConfig     advisor.RuleConfig
	degraded       bool
	logger         logger.Interface
	concurrency    int
	maxDiagnostics int
}

func defaultOptions() reviewOptions {
	return reviewOptions{
		ruleConfig:     advisor.DefaultRuleConfig{},
		logger:         logger.New(),
		concurrency:    defaultConcurrency,
		maxDiagnostics: defaultMaxDiagnostics,
	}
}

// WithSnapshot provides the catalog snapshot every script starts from.
//
// Example:
//
//	snapshot, err := catalog.LoadDump("schema.json")
//	r := reviewer.New(safety.NewRegistry(), reviewer.WithSnapshot(snapshot))
func WithSnapshot(snapshot *catalog.Snapshot) ReviewOption {
	return func(opts *reviewOptions) {
		opts.snapshot = snapshot
	}
}

// WithSnapshotError records why no snapshot could be built. Reviews fail
// with this error when a schema rule is enabled outside degraded mode.
func WithSnapshotError(err error) ReviewOption {
	return func(opts *reviewOptions) {
		opts.snapshotErr = err
	}
}

// WithRuleConfig selects the rules to run and their severities.
func WithRuleConfig(config advisor.RuleConfig) ReviewOption {
	return func(opts *reviewOptions) {
		if config != nil {
			opts.ruleConfig = config
		}
	}
}

// WithDegradedMode allows reviewing without a snapshot. Rules that need
// the schema are skipped and scripts start from an empty catalog.
func WithDegradedMode(degraded bool) ReviewOption {
	return func(opts *reviewOptions) {
		opts.degraded = degraded
	}
}

// WithLogger sets the logger used for progress and rule failures.
func WithLogger(l logger.Interface) ReviewOption {
	return func(opts *reviewOptions) {
		if l != nil {
			opts.logger = l
		}
	}
}

// WithConcurrency bounds the number of files reviewed at once.
func WithConcurrency(n int) ReviewOption {
	return func(opts *reviewOptions) {
		if n > 0 {
			opts.concurrency = n
		}
	}
}

// WithMaxDiagnostics caps the diagnostics kept in a result. The rest are
// counted in Summary.Skipped. Zero or less keeps everything.
func WithMaxDiagnostics(n int) ReviewOption {
	return func(opts *reviewOptions) {
		if n < 0 {
			n = 0
		}
		opts.maxDiagnostics = n
	}
}
