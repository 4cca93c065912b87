package safety

import (
	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

var _ advisor.Rule = (*RequireConcurrentIndexDeletionAdvisor)(nil)

// RequireConcurrentIndexDeletionAdvisor flags DROP INDEX without
// CONCURRENTLY.
type RequireConcurrentIndexDeletionAdvisor struct{}

func (*RequireConcurrentIndexDeletionAdvisor) Metadata() advisor.RuleMetadata {
	return metadata("requireConcurrentIndexDeletion", types.Severity_WARNING, false, false,
		"Dropping indexes non-concurrently can lock the table for reads.")
}

func (*RequireConcurrentIndexDeletionAdvisor) Check(ctx advisor.Context) ([]advisor.Finding, error) {
	n, ok := ctx.Statement.Node.(*pgparser.DropIndex)
	if !ok || n.Concurrently {
		return nil, nil
	}

	var findings []advisor.Finding
	for _, name := range n.Names {
		findings = append(findings, advisor.Finding{
			Code:    advisor.DropIndexUnconcurrently,
			Schema:  pgparser.NormalizeSchemaName(name.Schema),
			Message: "Dropping index " + name.String() + " will block reads and writes on its table, unless use CONCURRENTLY.",
			Hint:    "Use DROP INDEX CONCURRENTLY outside of a transaction block.",
		})
	}
	return findings, nil
}
