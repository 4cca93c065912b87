package safety

import (
	"fmt"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

var _ advisor.Rule = (*BanDropTableAdvisor)(nil)

// BanDropTableAdvisor flags dropping a table the script did not create.
type BanDropTableAdvisor struct{}

func (*BanDropTableAdvisor) Metadata() advisor.RuleMetadata {
	return metadata("banDropTable", types.Severity_ERROR, true, false,
		"Dropping a table may break existing clients.")
}

func (*BanDropTableAdvisor) Check(ctx advisor.Context) ([]advisor.Finding, error) {
	n, ok := ctx.Statement.Node.(*pgparser.DropRelation)
	if !ok || n.Kind != pgparser.ObjectTable {
		return nil, nil
	}

	var findings []advisor.Finding
	for _, name := range n.Names {
		if relationIntroduced(ctx.Before, name) {
			continue
		}
		_, table := target(ctx.Before, name)
		findings = append(findings, newFinding(
			advisor.CompatibilityDropTable, ctx.Before, name,
			fmt.Sprintf("Dropping table %q may break existing clients.", table),
			"Update your application code to no longer read or write the table, and only then delete the table. Be sure to create a backup.",
		))
	}
	return findings, nil
}
