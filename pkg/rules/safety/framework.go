// Package safety holds rules that flag migration statements which can break
// running clients or block the database.
package safety

import (
	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/catalog"
	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

// Rules returns a fresh instance of every safety rule in registration
// order.
func Rules() []advisor.Rule {
	return []advisor.Rule{
		&BanDropColumnAdvisor{},
		&BanDropNotNullAdvisor{},
		&BanDropTableAdvisor{},
		&AddingRequiredFieldAdvisor{},
		&AddingNotNullFieldAdvisor{},
		&ChangingColumnTypeAdvisor{},
		&RenamingColumnAdvisor{},
		&RenamingTableAdvisor{},
		&RequireConcurrentIndexCreationAdvisor{},
		&RequireConcurrentIndexDeletionAdvisor{},
	}
}

// NewRegistry returns a registry holding the safety rules.
func NewRegistry() *advisor.Registry {
	reg := advisor.NewRegistry()
	reg.MustRegister(Rules()...)
	return reg
}

func metadata(id string, severity types.Severity, recommended, requiresSchema bool, description string) advisor.RuleMetadata {
	return advisor.RuleMetadata{
		ID:              id,
		Category:        types.CategorySafety,
		DefaultSeverity: severity,
		Recommended:     recommended,
		RequiresSchema:  requiresSchema,
		Description:     description,
	}
}

// target names the relation a finding is about, preferring the resolved
// relation over the name as written.
func target(view *catalog.View, name pgparser.QualifiedName) (schema, table string) {
	if rel := view.Relation(name); rel != nil {
		return rel.Schema, rel.Name
	}
	return pgparser.NormalizeSchemaName(name.Schema), name.Name
}

// relationIntroduced reports whether the script created the relation. A
// relation missing from the view is assumed to exist in the database.
func relationIntroduced(view *catalog.View, name pgparser.QualifiedName) bool {
	rel := view.Relation(name)
	return rel != nil && rel.Introduced
}

// columnIntroduced reports whether the script created the column or its
// relation.
func columnIntroduced(view *catalog.View, table pgparser.QualifiedName, column string) bool {
	rel := view.Relation(table)
	if rel == nil {
		return false
	}
	if rel.Introduced {
		return true
	}
	c := rel.Column(column)
	return c != nil && c.Introduced
}

func newFinding(code advisor.Code, view *catalog.View, name pgparser.QualifiedName, message, hint string) advisor.Finding {
	schema, table := target(view, name)
	return advisor.Finding{
		Code:    code,
		Schema:  schema,
		Table:   table,
		Message: message,
		Hint:    hint,
	}
}
