package safety

import (
	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

var _ advisor.Rule = (*RequireConcurrentIndexCreationAdvisor)(nil)

// RequireConcurrentIndexCreationAdvisor flags CREATE INDEX without
// CONCURRENTLY on an existing table.
type RequireConcurrentIndexCreationAdvisor struct{}

func (*RequireConcurrentIndexCreationAdvisor) Metadata() advisor.RuleMetadata {
	return metadata("requireConcurrentIndexCreation", types.Severity_WARNING, false, false,
		"Creating indexes non-concurrently can lock the table for writes.")
}

func (*RequireConcurrentIndexCreationAdvisor) Check(ctx advisor.Context) ([]advisor.Finding, error) {
	n, ok := ctx.Statement.Node.(*pgparser.CreateIndex)
	if !ok || n.Concurrently {
		return nil, nil
	}
	// A table created earlier in the script is empty, so locking it is free.
	if relationIntroduced(ctx.Before, n.Table) {
		return nil, nil
	}

	return []advisor.Finding{newFinding(
		advisor.CreateIndexUnconcurrently, ctx.Before, n.Table,
		"Creating indexes will block writes on the table, unless use CONCURRENTLY.",
		"Use CREATE INDEX CONCURRENTLY outside of a transaction block.",
	)}, nil
}
