package safety

import (
	"fmt"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

var _ advisor.Rule = (*BanDropNotNullAdvisor)(nil)

// BanDropNotNullAdvisor flags removing NOT NULL from an existing column.
type BanDropNotNullAdvisor struct{}

func (*BanDropNotNullAdvisor) Metadata() advisor.RuleMetadata {
	return metadata("banDropNotNull", types.Severity_ERROR, true, true,
		"Dropping a NOT NULL constraint may break existing clients.")
}

func (*BanDropNotNullAdvisor) Check(ctx advisor.Context) ([]advisor.Finding, error) {
	n, ok := ctx.Statement.Node.(*pgparser.AlterTableAlterColumnDropNotNull)
	if !ok {
		return nil, nil
	}

	column := ctx.Before.Column(n.Table, n.Column)
	if column == nil || column.Introduced || column.Nullable {
		return nil, nil
	}

	return []advisor.Finding{newFinding(
		advisor.CompatibilityDropNotNull, ctx.Before, n.Table,
		fmt.Sprintf("Dropping the NOT NULL constraint of column %q may break existing clients.", n.Column),
		"Consider using a marker value that keeps NULL out of the column.",
	)}, nil
}
