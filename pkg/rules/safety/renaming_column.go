package safety

import (
	"fmt"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

var _ advisor.Rule = (*RenamingColumnAdvisor)(nil)

// RenamingColumnAdvisor flags renaming a column of an existing relation.
type RenamingColumnAdvisor struct{}

func (*RenamingColumnAdvisor) Metadata() advisor.RuleMetadata {
	return metadata("renamingColumn", types.Severity_WARNING, false, false,
		"Renaming columns may break existing queries.")
}

func (*RenamingColumnAdvisor) Check(ctx advisor.Context) ([]advisor.Finding, error) {
	n, ok := ctx.Statement.Node.(*pgparser.RenameColumn)
	if !ok || relationIntroduced(ctx.Before, n.Table) {
		return nil, nil
	}

	return []advisor.Finding{newFinding(
		advisor.CompatibilityRenameColumn, ctx.Before, n.Table,
		fmt.Sprintf("Renaming column %q to %q may break existing queries.", n.Column, n.NewName),
		"Add the new column, copy the data, and drop the old column once no client uses it.",
	)}, nil
}
