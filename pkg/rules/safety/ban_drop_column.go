package safety

import (
	"fmt"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

var _ advisor.Rule = (*BanDropColumnAdvisor)(nil)

// BanDropColumnAdvisor flags dropping a column that exists in the database.
type BanDropColumnAdvisor struct{}

func (*BanDropColumnAdvisor) Metadata() advisor.RuleMetadata {
	return metadata("banDropColumn", types.Severity_ERROR, true, true,
		"Dropping a column may break existing clients.")
}

func (*BanDropColumnAdvisor) Check(ctx advisor.Context) ([]advisor.Finding, error) {
	n, ok := ctx.Statement.Node.(*pgparser.AlterTableDropColumn)
	if !ok {
		return nil, nil
	}

	// Only columns known to the catalog can be dropped from under a client.
	column := ctx.Before.Column(n.Table, n.Column)
	if column == nil || column.Introduced {
		return nil, nil
	}

	return []advisor.Finding{newFinding(
		advisor.CompatibilityDropColumn, ctx.Before, n.Table,
		fmt.Sprintf("Dropping column %q may break existing clients.", n.Column),
		"You can leave the column as nullable or delete the column once queries no longer select or modify the column.",
	)}, nil
}
