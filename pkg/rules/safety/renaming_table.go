package safety

import (
	"fmt"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

var _ advisor.Rule = (*RenamingTableAdvisor)(nil)

// RenamingTableAdvisor flags renaming an existing relation.
type RenamingTableAdvisor struct{}

func (*RenamingTableAdvisor) Metadata() advisor.RuleMetadata {
	return metadata("renamingTable", types.Severity_WARNING, false, false,
		"Renaming tables may break existing queries.")
}

func (*RenamingTableAdvisor) Check(ctx advisor.Context) ([]advisor.Finding, error) {
	n, ok := ctx.Statement.Node.(*pgparser.RenameRelation)
	if !ok || relationIntroduced(ctx.Before, n.Table) {
		return nil, nil
	}

	_, table := target(ctx.Before, n.Table)
	return []advisor.Finding{newFinding(
		advisor.CompatibilityRenameTable, ctx.Before, n.Table,
		fmt.Sprintf("Renaming table %q to %q may break existing queries.", table, n.NewName),
		"Create a view with the old name, or move clients to the new name before renaming.",
	)}, nil
}
