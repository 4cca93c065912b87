package catalog

import (
	"fmt"

	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
)

// WalkThroughErrorType is the type of WalkThroughError.
type WalkThroughErrorType int

const (
	// ErrorTypeUnsupported is the error for unsupported cases.
	ErrorTypeUnsupported WalkThroughErrorType = 1

	// 301 ~ 399 table error type.

	// ErrorTypeTableNotExists is the error that table not exists.
	ErrorTypeTableNotExists WalkThroughErrorType = 302
	// ErrorTypeRelationKindMismatch is the error that a DROP names a relation of another kind.
	ErrorTypeRelationKindMismatch WalkThroughErrorType = 307

	// 401 ~ 499 column error type.

	// ErrorTypeColumnExists is the error that column exists.
	ErrorTypeColumnExists WalkThroughErrorType = 401
	// ErrorTypeColumnNotExists is the error that column not exists.
	ErrorTypeColumnNotExists WalkThroughErrorType = 402

	// 801 ~ 899 relation error type.

	// ErrorTypeRelationExists is the error that relation already exists.
	ErrorTypeRelationExists WalkThroughErrorType = 801
)

// WalkThroughError is the error for walking-through.
type WalkThroughError struct {
	Type    WalkThroughErrorType
	Content string
	// Statement is the ordinal of the statement being simulated.
	Statement int

	Payload any
}

// Error implements the error interface.
func (e *WalkThroughError) Error() string {
	return e.Content
}

// NewRelationExistsError returns a new ErrorTypeRelationExists.
func NewRelationExistsError(relationName string, schemaName string) *WalkThroughError {
	return &WalkThroughError{
		Type:    ErrorTypeRelationExists,
		Content: fmt.Sprintf("Relation %q already exists in schema %q", relationName, schemaName),
	}
}

// NewTableNotExistsError returns a new ErrorTypeTableNotExists.
func NewTableNotExistsError(tableName string) *WalkThroughError {
	return &WalkThroughError{
		Type:    ErrorTypeTableNotExists,
		Content: fmt.Sprintf("Table %q does not exist", tableName),
	}
}

// NewColumnNotExistsError returns a new ErrorTypeColumnNotExists.
func NewColumnNotExistsError(tableName string, columnName string) *WalkThroughError {
	return &WalkThroughError{
		Type:    ErrorTypeColumnNotExists,
		Content: fmt.Sprintf("Column %q does not exist in table %q", columnName, tableName),
	}
}

// NewColumnExistsError returns a new ErrorTypeColumnExists.
func NewColumnExistsError(tableName string, columnName string) *WalkThroughError {
	return &WalkThroughError{
		Type:    ErrorTypeColumnExists,
		Content: fmt.Sprintf("Column %q already exists in table %q", columnName, tableName),
	}
}

// NewRelationKindMismatchError returns a new ErrorTypeRelationKindMismatch.
func NewRelationKindMismatchError(relationName string, want pgparser.ObjectKind, got RelationKind) *WalkThroughError {
	return &WalkThroughError{
		Type:    ErrorTypeRelationKindMismatch,
		Content: fmt.Sprintf("%q is a %s, not a %s", relationName, got, want),
	}
}

func newUnsupportedError(node pgparser.Node) *WalkThroughError {
	return &WalkThroughError{
		Type:    ErrorTypeUnsupported,
		Content: fmt.Sprintf("statement %T has no structural effect", node),
		Payload: node,
	}
}

// Simulator threads an EvolvingSchema through the statements of one script.
type Simulator struct {
	schema  *EvolvingSchema
	current *View
}

// NewSimulator starts a simulation from snapshot. A nil snapshot starts
// from an empty schema.
func NewSimulator(snapshot *Snapshot) *Simulator {
	schema := NewEvolvingSchema(snapshot)
	return &Simulator{
		schema:  schema,
		current: schema.View(),
	}
}

// Current returns the state after the last step.
func (s *Simulator) Current() *View {
	return s.current
}

// Step applies stmt. before is the state the statement runs against and
// after is the state it leaves behind, which is the before of the next step.
// A non-nil error explains why the statement had no effect, or only a
// partial one; the returned views are always valid.
func (s *Simulator) Step(stmt *pgparser.Statement) (before, after *View, err error) {
	before = s.current
	changed, err := s.schema.WalkThrough(stmt.Node)
	if changed {
		s.current = s.schema.View()
	}
	if walkErr, ok := err.(*WalkThroughError); ok {
		walkErr.Statement = stmt.Ordinal
	}
	return before, s.current, err
}

// WalkThrough applies the structural effect of node and reports whether the
// schema changed.
//
// Statements with one target leave the schema untouched on error. Effects
// on several relations or columns are applied to each independently, and
// the first one that could not be applied is reported.
func (s *EvolvingSchema) WalkThrough(node pgparser.Node) (bool, error) {
	switch n := node.(type) {
	case *pgparser.CreateTable:
		return s.createTable(n)
	case *pgparser.DropRelation:
		return s.dropRelation(n)
	case *pgparser.RenameRelation:
		return s.onTable(n.Table, func(key RelationKey) error {
			return s.RenameRelation(key, n.NewName)
		})
	case *pgparser.RenameColumn:
		return s.onTable(n.Table, func(key RelationKey) error {
			return s.RenameColumn(key, n.Column, n.NewName)
		})
	case *pgparser.AlterTableAddColumn:
		return s.onTable(n.Table, func(key RelationKey) error {
			return s.AddColumn(key, introducedColumn(n.Column))
		})
	case *pgparser.AlterTableDropColumn:
		return s.onTable(n.Table, func(key RelationKey) error {
			return s.DropColumn(key, n.Column)
		})
	case *pgparser.AlterTableAlterColumnSetNotNull:
		return s.onTable(n.Table, func(key RelationKey) error {
			return s.SetNullable(key, n.Column, false)
		})
	case *pgparser.AlterTableAlterColumnDropNotNull:
		return s.onTable(n.Table, func(key RelationKey) error {
			return s.SetNullable(key, n.Column, true)
		})
	case *pgparser.AlterTableAlterColumnType:
		return s.onTable(n.Table, func(key RelationKey) error {
			return s.SetType(key, n.Column, n.Type)
		})
	case *pgparser.AlterTableAddConstraint:
		return s.addConstraint(n)
	case *pgparser.CreateIndex:
		return s.createIndex(n)
	case *pgparser.DropIndex:
		// Index membership is only kept as column flags, so the flags a
		// dropped index contributed cannot be told apart from the others.
		return false, nil
	case *pgparser.Unrecognized:
		return false, nil
	default:
		return false, newUnsupportedError(node)
	}
}

func (s *EvolvingSchema) onTable(name pgparser.QualifiedName, apply func(RelationKey) error) (bool, error) {
	key, ok := s.Resolve(name)
	if !ok {
		return false, NewTableNotExistsError(name.String())
	}
	if err := apply(key); err != nil {
		return false, err
	}
	return true, nil
}

func (s *EvolvingSchema) createTable(n *pgparser.CreateTable) (bool, error) {
	rel := &Relation{
		Schema:     pgparser.NormalizeSchemaName(n.Table.Schema),
		Name:       n.Table.Name,
		Kind:       createdKind(n),
		Introduced: true,
	}
	if n.OrReplace {
		if existing := s.relations[rel.Key()]; existing != nil && existing.Kind == rel.Kind {
			// The replaced view keeps its provenance.
			return false, nil
		}
	}

	if !n.PartitionOf.IsZero() {
		key, ok := s.Resolve(n.PartitionOf)
		if !ok {
			return false, NewTableNotExistsError(n.PartitionOf.String())
		}
		for _, parent := range s.relations[key].Columns {
			column := *parent
			column.Introduced = true
			rel.Columns = append(rel.Columns, &column)
		}
	}
	for _, def := range n.Columns {
		if rel.Column(def.Name) != nil {
			return false, NewColumnExistsError(rel.Key().String(), def.Name)
		}
		column := introducedColumn(def)
		column.Ordinal = rel.nextOrdinal()
		rel.Columns = append(rel.Columns, &column)
	}
	for _, constraint := range n.Constraints {
		applyConstraint(rel, constraint)
	}
	if err := s.AddRelation(rel); err != nil {
		return false, err
	}
	return true, nil
}

func createdKind(n *pgparser.CreateTable) RelationKind {
	switch n.Kind {
	case pgparser.ObjectView:
		return RelationKindView
	case pgparser.ObjectMaterializedView:
		return RelationKindMaterializedView
	case pgparser.ObjectForeignTable:
		return RelationKindForeignTable
	}
	if n.Partitioned {
		return RelationKindPartitionedTable
	}
	return RelationKindTable
}

func (s *EvolvingSchema) dropRelation(n *pgparser.DropRelation) (bool, error) {
	var firstErr error
	changed := false
	for _, name := range n.Names {
		key, ok := s.Resolve(name)
		if !ok {
			if firstErr == nil {
				firstErr = NewTableNotExistsError(name.String())
			}
			continue
		}
		if kind := s.relations[key].Kind; !kindMatches(n.Kind, kind) {
			if firstErr == nil {
				firstErr = NewRelationKindMismatchError(key.String(), n.Kind, kind)
			}
			continue
		}
		if err := s.DropRelation(key); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		changed = true
	}
	return changed, firstErr
}

func (s *EvolvingSchema) addConstraint(n *pgparser.AlterTableAddConstraint) (bool, error) {
	key, ok := s.Resolve(n.Table)
	if !ok {
		return false, NewTableNotExistsError(n.Table.String())
	}
	c := n.Constraint
	if c.Kind != pgparser.ConstraintPrimaryKey && c.Kind != pgparser.ConstraintUnique {
		return false, nil
	}
	if len(c.Columns) == 0 {
		// USING INDEX: the index columns are not known here.
		return false, nil
	}

	var firstErr error
	changed := false
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for i, name := range c.Columns {
		column, err := s.lookupColumn(key, name)
		if err != nil {
			record(err)
			continue
		}
		primaryKey, unique := column.PrimaryKey, column.Unique
		if i == 0 {
			primaryKey = primaryKey || c.Kind == pgparser.ConstraintPrimaryKey
			unique = true
		}
		if c.Kind == pgparser.ConstraintPrimaryKey {
			record(s.SetNullable(key, name, false))
		}
		record(s.SetKeyFlags(key, name, primaryKey, unique))
		changed = true
	}
	return changed, firstErr
}

func (s *EvolvingSchema) createIndex(n *pgparser.CreateIndex) (bool, error) {
	key, ok := s.Resolve(n.Table)
	if !ok {
		return false, NewTableNotExistsError(n.Table.String())
	}
	if !n.Unique || len(n.Columns) == 0 || n.Columns[0] == "" {
		return false, nil
	}
	column, err := s.lookupColumn(key, n.Columns[0])
	if err != nil {
		return false, err
	}
	if column.Unique {
		return false, nil
	}
	if err := s.SetKeyFlags(key, column.Name, column.PrimaryKey, true); err != nil {
		return false, err
	}
	return true, nil
}

// applyConstraint sets key flags on a relation under construction.
func applyConstraint(rel *Relation, c pgparser.Constraint) {
	if c.Kind != pgparser.ConstraintPrimaryKey && c.Kind != pgparser.ConstraintUnique {
		return
	}
	for i, name := range c.Columns {
		column := rel.Column(name)
		if column == nil {
			continue
		}
		if c.Kind == pgparser.ConstraintPrimaryKey {
			column.Nullable = false
		}
		if i == 0 {
			column.Unique = true
			column.PrimaryKey = column.PrimaryKey || c.Kind == pgparser.ConstraintPrimaryKey
		}
	}
}

func introducedColumn(def pgparser.ColumnDef) Column {
	return Column{
		Name:       def.Name,
		TypeName:   def.Type,
		Nullable:   !def.NotNull && !def.PrimaryKey && !def.Identity,
		MaxLength:  typeLength(def.Type),
		Default:    def.Default,
		PrimaryKey: def.PrimaryKey,
		Unique:     def.Unique || def.PrimaryKey,
		Introduced: true,
	}
}

func kindMatches(want pgparser.ObjectKind, got RelationKind) bool {
	switch want {
	case pgparser.ObjectTable:
		return got.IsTable()
	case pgparser.ObjectView:
		return got == RelationKindView
	case pgparser.ObjectMaterializedView:
		return got == RelationKindMaterializedView
	case pgparser.ObjectForeignTable:
		return got == RelationKindForeignTable
	}
	return false
}
