package safety

import (
	"fmt"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

var _ advisor.Rule = (*ChangingColumnTypeAdvisor)(nil)

// ChangingColumnTypeAdvisor flags changing the type of an existing column.
type ChangingColumnTypeAdvisor struct{}

func (*ChangingColumnTypeAdvisor) Metadata() advisor.RuleMetadata {
	return metadata("changingColumnType", types.Severity_WARNING, false, false,
		"Changing a column type may break existing clients.")
}

func (*ChangingColumnTypeAdvisor) Check(ctx advisor.Context) ([]advisor.Finding, error) {
	n, ok := ctx.Statement.Node.(*pgparser.AlterTableAlterColumnType)
	if !ok {
		return nil, nil
	}
	if columnIntroduced(ctx.Before, n.Table, n.Column) {
		return nil, nil
	}

	return []advisor.Finding{newFinding(
		advisor.CompatibilityAlterColumn, ctx.Before, n.Table,
		fmt.Sprintf("Changing the type of column %q to %s may rewrite the table and break existing clients.", n.Column, n.Type),
		"Add a new column with the new type, backfill it, and switch clients over before dropping the old column.",
	)}, nil
}
