package pgparser

import (
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

// Statement is one typed command from a script.
//
// An ALTER TABLE with several sub-commands produces one Statement per
// sub-command. They share Text, Span and Ordinal and differ by Action.
type Statement struct {
	Node    Node
	Text    string
	Span    types.Span
	Ordinal int
	Action  int
}

// Node is the typed content of a statement.
type Node interface {
	// Target is the relation the statement acts on. The zero value means
	// the statement has no single target relation.
	Target() QualifiedName
	node()
}

// QualifiedName is a possibly schema-qualified object name.
type QualifiedName struct {
	Schema string
	Name   string
}

func (q QualifiedName) String() string {
	if q.Schema == "" {
		return q.Name
	}
	return q.Schema + "." + q.Name
}

// IsZero reports whether the name is empty.
func (q QualifiedName) IsZero() bool {
	return q.Name == ""
}

// ObjectKind is the kind of relation named by a DROP statement.
type ObjectKind int

const (
	ObjectTable ObjectKind = iota
	ObjectView
	ObjectMaterializedView
	ObjectForeignTable
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectView:
		return "view"
	case ObjectMaterializedView:
		return "materialized view"
	case ObjectForeignTable:
		return "foreign table"
	default:
		return "table"
	}
}

// ConstraintKind is the kind of a table or column constraint.
type ConstraintKind int

const (
	ConstraintOther ConstraintKind = iota
	ConstraintPrimaryKey
	ConstraintUnique
	ConstraintForeignKey
	ConstraintCheck
)

// ColumnDef is a column definition from CREATE TABLE or ADD COLUMN.
type ColumnDef struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey bool
	Unique     bool
	// Default is the raw default expression, nil when none was declared.
	Default *string
	// Identity is set for GENERATED ... AS IDENTITY.
	Identity bool
	// Generated is set for GENERATED ALWAYS AS (expr) STORED.
	Generated bool
}

// HasImplicitDefault reports whether the column fills values itself, from a
// serial type, an identity or a generation expression.
func (c ColumnDef) HasImplicitDefault() bool {
	if c.Identity || c.Generated {
		return true
	}
	switch c.Type {
	case "serial", "serial4", "bigserial", "serial8", "smallserial", "serial2":
		return true
	}
	return false
}

// Constraint is a table-level constraint.
type Constraint struct {
	Name    string
	Kind    ConstraintKind
	Columns []string
	// UsingIndex is set for PRIMARY KEY / UNIQUE USING INDEX forms.
	UsingIndex string
}

// CreateTable is a statement that creates a relation: CREATE TABLE,
// CREATE TABLE ... AS, CREATE TABLE ... PARTITION OF, CREATE VIEW and
// CREATE MATERIALIZED VIEW.
//
// Columns holds what the statement declares. It is empty when the columns
// come from a query, a parent table or a composite type and none are named.
type CreateTable struct {
	Kind        ObjectKind
	Table       QualifiedName
	Columns     []ColumnDef
	Constraints []Constraint
	// Partitioned is set for CREATE TABLE ... PARTITION BY.
	Partitioned bool
	// PartitionOf names the parent of CREATE TABLE ... PARTITION OF.
	PartitionOf QualifiedName
	// OrReplace is set for CREATE OR REPLACE VIEW.
	OrReplace bool
}

// DropRelation is DROP TABLE, DROP VIEW, DROP MATERIALIZED VIEW or
// DROP FOREIGN TABLE.
type DropRelation struct {
	Kind    ObjectKind
	Names   []QualifiedName
	Cascade bool
}

// RenameRelation is ALTER TABLE ... RENAME TO.
type RenameRelation struct {
	Table   QualifiedName
	NewName string
}

// RenameColumn is ALTER TABLE ... RENAME [COLUMN] ... TO.
type RenameColumn struct {
	Table   QualifiedName
	Column  string
	NewName string
}

// AlterTableAddColumn is ALTER TABLE ... ADD [COLUMN].
type AlterTableAddColumn struct {
	Table  QualifiedName
	Column ColumnDef
}

// AlterTableDropColumn is ALTER TABLE ... DROP [COLUMN].
type AlterTableDropColumn struct {
	Table  QualifiedName
	Column string
}

// AlterTableAlterColumnSetNotNull is ALTER TABLE ... ALTER [COLUMN] ... SET NOT NULL.
type AlterTableAlterColumnSetNotNull struct {
	Table  QualifiedName
	Column string
}

// AlterTableAlterColumnDropNotNull is ALTER TABLE ... ALTER [COLUMN] ... DROP NOT NULL.
type AlterTableAlterColumnDropNotNull struct {
	Table  QualifiedName
	Column string
}

// AlterTableAlterColumnType is ALTER TABLE ... ALTER [COLUMN] ... [SET DATA] TYPE.
type AlterTableAlterColumnType struct {
	Table  QualifiedName
	Column string
	Type   string
}

// AlterTableAddConstraint is ALTER TABLE ... ADD [CONSTRAINT name] ....
type AlterTableAddConstraint struct {
	Table      QualifiedName
	Constraint Constraint
}

// CreateIndex is CREATE [UNIQUE] INDEX.
type CreateIndex struct {
	Name  string
	Table QualifiedName
	// Columns lists the index key columns in order. Expression keys are
	// recorded as an empty string.
	Columns      []string
	Unique       bool
	Concurrently bool
}

// DropIndex is DROP INDEX.
type DropIndex struct {
	Names        []QualifiedName
	Concurrently bool
}

// Unrecognized is a statement, or ALTER TABLE sub-command, that parsed
// but has no typed form.
type Unrecognized struct {
	Text string
}

func (n *CreateTable) Target() QualifiedName { return n.Table }
func (n *RenameRelation) Target() QualifiedName { return n.Table }
func (n *RenameColumn) Target() QualifiedName { return n.Table }
func (n *AlterTableAddColumn) Target() QualifiedName { return n.Table }
func (n *AlterTableDropColumn) Target() QualifiedName { return n.Table }
func (n *AlterTableAlterColumnSetNotNull) Target() QualifiedName { return n.Table }
func (n *AlterTableAlterColumnDropNotNull) Target() QualifiedName { return n.Table }
func (n *AlterTableAlterColumnType) Target() QualifiedName { return n.Table }
func (n *AlterTableAddConstraint) Target() QualifiedName { return n.Table }
func (n *CreateIndex) Target() QualifiedName { return n.Table }
func (*DropIndex) Target() QualifiedName { return QualifiedName{} }
func (*Unrecognized) Target() QualifiedName { return QualifiedName{} }

func (n *DropRelation) Target() QualifiedName {
	if len(n.Names) == 0 {
		return QualifiedName{}
	}
	return n.Names[0]
}

func (*CreateTable) node() {}
func (*DropRelation) node() {}
func (*RenameRelation) node() {}
func (*RenameColumn) node() {}
func (*AlterTableAddColumn) node() {}
func (*AlterTableDropColumn) node() {}
func (*AlterTableAlterColumnSetNotNull) node() {}
func (*AlterTableAlterColumnDropNotNull) node() {}
func (*AlterTableAlterColumnType) node() {}
func (*AlterTableAddConstraint) node() {}
func (*CreateIndex) node() {}
func (*DropIndex) node() {}
func (*Unrecognized) node() {}
