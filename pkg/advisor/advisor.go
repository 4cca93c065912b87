// Package advisor defines the rule contract and evaluates registered rules
// against the statements of a migration.
package advisor

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/pkg/errors"

	"github.com/nsxbet/migration-reviewer/pkg/catalog"
	"github.com/nsxbet/migration-reviewer/pkg/logger"
	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

// RuleMetadata describes a rule.
type RuleMetadata struct {
	ID              string         `json:"id"              yaml:"id"`
	Category        types.Category `json:"category"        yaml:"category"`
	DefaultSeverity types.Severity `json:"defaultSeverity" yaml:"defaultSeverity"`
	Recommended     bool           `json:"recommended"     yaml:"recommended"`
	RequiresSchema  bool           `json:"requiresSchema"  yaml:"requiresSchema"`
	Description     string         `json:"description"     yaml:"description"`
}

// Context is what a rule sees for one statement.
type Context struct {
	Statement *pgparser.Statement
	// Before is the schema the statement runs against and After is the
	// schema it leaves behind.
	Before *catalog.View
	After  *catalog.View
	// SchemaAvailable is false when the run has no catalog snapshot and the
	// views only contain what the script itself created.
	SchemaAvailable bool
}

// Finding is a problem a rule reports. The engine turns it into a
// diagnostic.
type Finding struct {
	Code    Code
	Schema  string
	Table   string
	Message string
	Hint    string
}

// Rule is a stateless check evaluated once per statement.
type Rule interface {
	Metadata() RuleMetadata
	Check(ctx Context) ([]Finding, error)
}

// Registry holds rules in registration order.
type Registry struct {
	mu    sync.RWMutex
	rules []Rule
	byID  map[string]Rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]Rule),
	}
}

// Register adds rule. It fails when rule is nil or its id is empty or
// already registered.
func (r *Registry) Register(rule Rule) error {
	if rule == nil {
		return errors.New("advisor: Register rule is nil")
	}
	id := rule.Metadata().ID
	if id == "" {
		return errors.New("advisor: Register rule has empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[id]; dup {
		return errors.Errorf("advisor: Register called twice for rule %q", id)
	}
	r.rules = append(r.rules, rule)
	r.byID[id] = rule
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(rules ...Rule) {
	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			panic(err)
		}
	}
}

// Rules returns the registered rules in registration order.
func (r *Registry) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Lookup finds a rule by id.
func (r *Registry) Lookup(id string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.byID[id]
	return rule, ok
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// RuleConfig decides which rules run and at which severity.
type RuleConfig interface {
	IsEnabled(meta RuleMetadata) bool
	Severity(meta RuleMetadata) types.Severity
}

// DefaultRuleConfig enables the recommended rules at their default
// severity.
type DefaultRuleConfig struct{}

// IsEnabled implements RuleConfig.
func (DefaultRuleConfig) IsEnabled(meta RuleMetadata) bool {
	return meta.Recommended
}

// Severity implements RuleConfig.
func (DefaultRuleConfig) Severity(meta RuleMetadata) types.Severity {
	return meta.DefaultSeverity
}

// Engine evaluates the enabled rules of a registry.
type Engine struct {
	rules           []Rule
	severities      map[string]types.Severity
	schemaAvailable bool
	logger          logger.Interface
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for rule failures.
func WithLogger(l logger.Interface) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSchemaAvailable tells the engine whether a catalog snapshot backs the
// views. Without one, rules that require a schema do not run.
func WithSchemaAvailable(available bool) EngineOption {
	return func(e *Engine) {
		e.schemaAvailable = available
	}
}

// NewEngine selects the rules of registry enabled by config. A nil config
// means DefaultRuleConfig.
func NewEngine(registry *Registry, config RuleConfig, opts ...EngineOption) *Engine {
	if config == nil {
		config = DefaultRuleConfig{}
	}
	e := &Engine{
		severities:      make(map[string]types.Severity),
		schemaAvailable: true,
		logger:          logger.New(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, rule := range registry.Rules() {
		meta := rule.Metadata()
		if !config.IsEnabled(meta) {
			continue
		}
		if meta.RequiresSchema && !e.schemaAvailable {
			e.logger.Warn("skipping rule that requires a schema snapshot", "rule", meta.ID)
			continue
		}
		severity := config.Severity(meta)
		if severity == types.Severity_SEVERITY_UNSPECIFIED {
			severity = meta.DefaultSeverity
		}
		e.rules = append(e.rules, rule)
		e.severities[meta.ID] = severity
	}
	return e
}

// Rules returns the rules the engine runs, in registry order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Check runs every enabled rule against one statement. A failing rule
// produces a tooling diagnostic and does not stop the others. Lint
// diagnostics carry the rule's configured severity; file and target
// fields are left for the caller to complete.
func (e *Engine) Check(stmt *pgparser.Statement, before, after *catalog.View) []*types.Diagnostic {
	ctx := Context{
		Statement:       stmt,
		Before:          before,
		After:           after,
		SchemaAvailable: e.schemaAvailable,
	}

	var diagnostics []*types.Diagnostic
	for _, rule := range e.rules {
		meta := rule.Metadata()
		findings, err := e.run(rule, ctx)
		if err != nil {
			diagnostics = append(diagnostics, &types.Diagnostic{
				Rule:      meta.ID,
				Severity:  types.Severity_ERROR,
				Class:     types.DiagnosticClassTooling,
				Code:      int32(RuleEvaluationFailure),
				Span:      stmt.Span,
				Statement: stmt.Ordinal,
				Action:    stmt.Action,
				Message:   fmt.Sprintf("rule %s failed: %v", meta.ID, err),
			})
			continue
		}
		for _, f := range findings {
			diagnostics = append(diagnostics, &types.Diagnostic{
				Rule:      meta.ID,
				Severity:  e.severities[meta.ID],
				Class:     types.DiagnosticClassLint,
				Code:      int32(f.Code),
				Schema:    f.Schema,
				Relation:  f.Table,
				Span:      stmt.Span,
				Statement: stmt.Ordinal,
				Action:    stmt.Action,
				Message:   f.Message,
				Hint:      f.Hint,
			})
		}
	}
	return diagnostics
}

func (e *Engine) run(rule Rule, ctx Context) (findings []Finding, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			recovered, ok := panicErr.(error)
			if !ok {
				recovered = errors.Errorf("%v", panicErr)
			}
			err = errors.Errorf("PANIC RECOVER: %v", recovered)
			e.logger.Error("rule check PANIC RECOVER",
				"rule", rule.Metadata().ID,
				"statement", NormalizeStatement(ctx.Statement.Text),
				logger.Error(recovered),
				logger.Stack(string(debug.Stack())),
			)
		}
	}()
	return rule.Check(ctx)
}
