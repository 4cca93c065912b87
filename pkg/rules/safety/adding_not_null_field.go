package safety

import (
	"fmt"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

var _ advisor.Rule = (*AddingNotNullFieldAdvisor)(nil)

// AddingNotNullFieldAdvisor flags SET NOT NULL on an existing column.
type AddingNotNullFieldAdvisor struct{}

func (*AddingNotNullFieldAdvisor) Metadata() advisor.RuleMetadata {
	return metadata("addingNotNullField", types.Severity_ERROR, true, false,
		"Setting a column NOT NULL blocks reads while the table is scanned.")
}

func (*AddingNotNullFieldAdvisor) Check(ctx advisor.Context) ([]advisor.Finding, error) {
	n, ok := ctx.Statement.Node.(*pgparser.AlterTableAlterColumnSetNotNull)
	if !ok {
		return nil, nil
	}
	if columnIntroduced(ctx.Before, n.Table, n.Column) {
		return nil, nil
	}

	return []advisor.Finding{newFinding(
		advisor.AddingNotNullField, ctx.Before, n.Table,
		fmt.Sprintf("Setting column %q NOT NULL requires a full table scan under an ACCESS EXCLUSIVE lock.", n.Column),
		"Add a CHECK (column IS NOT NULL) NOT VALID constraint, validate it in a separate transaction, then set NOT NULL.",
	)}, nil
}
