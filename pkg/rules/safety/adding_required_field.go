package safety

import (
	"fmt"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

var _ advisor.Rule = (*AddingRequiredFieldAdvisor)(nil)

// AddingRequiredFieldAdvisor flags adding a NOT NULL column without a
// default to an existing table.
type AddingRequiredFieldAdvisor struct{}

func (*AddingRequiredFieldAdvisor) Metadata() advisor.RuleMetadata {
	return metadata("addingRequiredField", types.Severity_ERROR, true, false,
		"Adding a new column that is NOT NULL and has no default value to an existing table effectively makes it required.")
}

func (*AddingRequiredFieldAdvisor) Check(ctx advisor.Context) ([]advisor.Finding, error) {
	n, ok := ctx.Statement.Node.(*pgparser.AlterTableAddColumn)
	if !ok {
		return nil, nil
	}

	def := n.Column
	if !def.NotNull && !def.PrimaryKey {
		return nil, nil
	}
	if def.Default != nil || def.HasImplicitDefault() {
		return nil, nil
	}
	if relationIntroduced(ctx.Before, n.Table) {
		return nil, nil
	}

	return []advisor.Finding{newFinding(
		advisor.AddingRequiredField, ctx.Before, n.Table,
		fmt.Sprintf("Adding the NOT NULL column %q without a default makes it required and fails on tables with rows.", def.Name),
		"Make the field nullable or add a default.",
	)}, nil
}
