// Package pkg provides schema-aware review of PostgreSQL migrations for Go
// applications.
//
// A migration is checked statement by statement against a snapshot of the
// database catalog that evolves as the script runs. Dropping a column that
// exists in the database is reported; dropping one the same script just
// added is not.
//
// # Package Structure
//
// The pkg directory contains several specialized packages:
//
//   - reviewer: High-level API for reviewing scripts and files (recommended starting point)
//   - advisor: Rule contract, registry and execution engine
//   - rules/safety: The built-in migration safety rules
//   - catalog: Catalog snapshots, introspection, dumps and the evolving schema simulator
//   - pgparser: ANTLR-based PostgreSQL statement splitter and parser
//   - config: Rule configuration loading
//   - types: Core type definitions (severity, span, diagnostic)
//   - logger: Logging abstraction layer
//
// # Getting Started
//
// For most use cases, start with the reviewer package:
//
//	import (
//	    "github.com/nsxbet/migration-reviewer/pkg/catalog"
//	    "github.com/nsxbet/migration-reviewer/pkg/reviewer"
//	    "github.com/nsxbet/migration-reviewer/pkg/rules/safety"
//	)
//
//	func main() {
//	    pool, err := catalog.Connect(ctx, os.Getenv("DATABASE_URL"))
//	    // handle err
//	    snapshot, err := catalog.Introspect(ctx, pool)
//	    // handle err
//
//	    r := reviewer.New(safety.NewRegistry(), reviewer.WithSnapshot(snapshot))
//	    result, err := r.ReviewFiles(ctx, []string{"migrations/0001.sql"})
//	    // Process results...
//	}
//
// # Rules
//
// The safety rules cover changes that break running clients or lock tables:
//   - Dropping tables, columns and NOT NULL constraints
//   - Adding required columns and NOT NULL constraints to existing tables
//   - Changing column types
//   - Renaming tables and columns
//   - Creating and dropping indexes without CONCURRENTLY
//
// Objects created earlier in the same script are exempt.
//
// # Configuration
//
// Rules can be switched and re-levelled from a YAML or JSON file:
//
//	cfg, err := config.LoadFromFile("rules.yaml")
//	r := reviewer.New(safety.NewRegistry(), reviewer.WithRuleConfig(cfg))
//
// # Custom Rules
//
// Implement custom rules by satisfying the advisor.Rule interface and
// registering them with a registry:
//
//	type MyRule struct{}
//
//	func (r *MyRule) Metadata() advisor.RuleMetadata { ... }
//
//	func (r *MyRule) Check(ctx advisor.Context) ([]advisor.Finding, error) {
//	    // Inspect ctx.Statement, ctx.Before and ctx.After
//	    return findings, nil
//	}
//
//	registry := safety.NewRegistry()
//	registry.MustRegister(&MyRule{})
//
// # Error Handling
//
// Review operations distinguish between:
//   - Findings, parse errors and rule failures (diagnostics in ReviewResult)
//   - System errors such as an unavailable snapshot or unreadable files
//     (returned as error from Review/ReviewFiles)
//
// # Thread Safety
//
// Reviewer instances are safe for concurrent use and can be reused across
// reviews. Snapshots are immutable.
package pkg
