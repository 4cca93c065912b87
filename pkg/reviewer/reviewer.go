// Package reviewer provides a high-level API for reviewing PostgreSQL
// migrations against a catalog snapshot.
//
// Each script is parsed, threaded statement by statement through an
// evolving copy of the snapshot, and checked by the enabled rules of a
// registry. The diagnostics of all scripts are merged into one ordered
// result.
//
// # Quick Start
//
//	snapshot, err := catalog.LoadDump("schema.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r := reviewer.New(safety.NewRegistry(), reviewer.WithSnapshot(snapshot))
//	result, err := r.Review(ctx, reviewer.Source{
//	    Name:    "0001_drop_email.sql",
//	    Content: "ALTER TABLE accounts DROP COLUMN email;",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, d := range result.Diagnostics {
//	    fmt.Printf("[%s] %s: %s\n", d.Severity, d.Rule, d.Message)
//	}
//
// # Without a Snapshot
//
// Rules that need the catalog cannot run without a snapshot. Unless
// degraded mode is on, a review then fails with a
// catalog.SnapshotUnavailableError:
//
//	r := reviewer.New(safety.NewRegistry(), reviewer.WithDegradedMode(true))
//
// # Reviewing Files
//
//	result, err := r.ReviewFiles(ctx, []string{"migrations/0001.sql", "migrations/0002.sql"})
package reviewer

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/catalog"
	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

// ParseErrorRule is the rule id of diagnostics for statements that could
// not be parsed.
const ParseErrorRule = "parseError"

// Source is one migration script.
type Source struct {
	// Name identifies the script in diagnostics, usually its path.
	Name    string
	Content string
}

// Reviewer runs a rule registry over migration scripts.
//
// Reviewer is safe for concurrent use by multiple goroutines. The snapshot
// is shared read-only and every script gets its own simulator.
type Reviewer struct {
	opts     reviewOptions
	engine   *advisor.Engine
	snapshot *catalog.Snapshot
	// err is returned by every review when the snapshot is required but
	// unavailable.
	err error
}

// New creates a Reviewer for the rules of registry.
//
// Example:
//
//	r := reviewer.New(safety.NewRegistry(),
//	    reviewer.WithSnapshot(snapshot),
//	    reviewer.WithRuleConfig(cfg),
//	)
func New(registry *advisor.Registry, opts ...ReviewOption) *Reviewer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Reviewer{opts: o, snapshot: o.snapshot}

	available := o.snapshot != nil && o.snapshotErr == nil
	if !available {
		cause := o.snapshotErr
		if cause == nil {
			cause = &catalog.SnapshotUnavailableError{Reason: "no snapshot configured"}
		}
		r.snapshot = nil

		if required := schemaRules(registry, o.ruleConfig); len(required) > 0 {
			if !o.degraded {
				r.err = errors.Wrapf(cause, "rules %v need a schema snapshot", required)
			} else {
				o.logger.Warn("running in degraded mode without a schema snapshot",
					"skipped_rules", required,
					"reason", cause.Error(),
				)
			}
		}
	}

	r.engine = advisor.NewEngine(registry, o.ruleConfig,
		advisor.WithSchemaAvailable(available),
		advisor.WithLogger(o.logger),
	)
	return r
}

// schemaRules lists the enabled rules that need a snapshot.
func schemaRules(registry *advisor.Registry, config advisor.RuleConfig) []string {
	var ids []string
	for _, rule := range registry.Rules() {
		meta := rule.Metadata()
		if meta.RequiresSchema && config.IsEnabled(meta) {
			ids = append(ids, meta.ID)
		}
	}
	return ids
}

// Rules returns the rules this reviewer runs, in registry order.
func (r *Reviewer) Rules() []advisor.Rule {
	return r.engine.Rules()
}

// Review checks one script.
//
// Returns an error only when the review itself cannot run: a cancelled
// context or a missing snapshot outside degraded mode. Parse errors and
// rule failures are reported as diagnostics.
func (r *Reviewer) Review(ctx context.Context, src Source) (*ReviewResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	diagnostics, statements := r.reviewScript(src)
	return newResult(diagnostics, 1, statements, r.opts.maxDiagnostics), nil
}

// ReviewFiles reads and checks every path in parallel, bounded by
// WithConcurrency, and merges the diagnostics into one result.
//
// The first read failure or context cancellation stops the remaining
// files and is returned.
func (r *Reviewer) ReviewFiles(ctx context.Context, paths []string) (*ReviewResult, error) {
	if r.err != nil {
		return nil, r.err
	}

	perFile := make([][]*types.Diagnostic, len(paths))
	counts := make([]int, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "failed to read %s", path)
			}
			r.opts.logger.Debug("reviewing file", "file", path, "bytes", len(content))
			perFile[i], counts[i] = r.reviewScript(Source{Name: path, Content: string(content)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var diagnostics []*types.Diagnostic
	statements := 0
	for i := range paths {
		diagnostics = append(diagnostics, perFile[i]...)
		statements += counts[i]
	}
	return newResult(diagnostics, len(paths), statements, r.opts.maxDiagnostics), nil
}

// reviewScript returns the diagnostics of one script and its statement
// count.
func (r *Reviewer) reviewScript(src Source) ([]*types.Diagnostic, int) {
	script := pgparser.Parse(src.Content)

	var diagnostics []*types.Diagnostic
	for _, syntaxErr := range script.Errors {
		diagnostics = append(diagnostics, parseDiagnostic(src.Name, syntaxErr))
	}

	sim := catalog.NewSimulator(r.snapshot)
	for _, stmt := range script.Statements {
		before, after, err := sim.Step(stmt)
		if err != nil {
			r.opts.logger.Debug("statement not applied to schema model",
				"file", src.Name,
				"statement", stmt.Ordinal,
				"error", err.Error(),
			)
		}
		for _, d := range r.engine.Check(stmt, before, after) {
			d.File = src.Name
			if d.Relation == "" {
				fillTarget(d, stmt.Node.Target(), before)
			}
			diagnostics = append(diagnostics, d)
		}
	}

	r.opts.logger.Debug("reviewed script",
		"file", src.Name,
		"statements", script.Count,
		"parse_errors", len(script.Errors),
		"diagnostics", len(diagnostics),
	)
	return diagnostics, script.Count
}

func parseDiagnostic(file string, syntaxErr *pgparser.SyntaxError) *types.Diagnostic {
	span := syntaxErr.Span
	if syntaxErr.Position != nil {
		span.StartPosition = *syntaxErr.Position
	}
	return &types.Diagnostic{
		Rule:      ParseErrorRule,
		Severity:  types.Severity_ERROR,
		Class:     types.DiagnosticClassParse,
		Code:      advisor.StatementSyntaxError.Int32(),
		File:      file,
		Span:      span,
		Statement: syntaxErr.Statement,
		Message:   syntaxErr.Error(),
	}
}

// fillTarget names the statement's relation on diagnostics whose rule did
// not. Statements without a single target are left alone.
func fillTarget(d *types.Diagnostic, name pgparser.QualifiedName, view *catalog.View) {
	if name.IsZero() {
		return
	}
	if rel := view.Relation(name); rel != nil {
		d.Schema, d.Relation = rel.Schema, rel.Name
		return
	}
	if d.Schema == "" {
		d.Schema = pgparser.NormalizeSchemaName(name.Schema)
	}
	d.Relation = name.Name
}
