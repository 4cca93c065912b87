package catalog

import (
	"regexp"
	"strconv"

	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
)

// View is an immutable state of the schema between two statements.
type View struct {
	relations map[RelationKey]*Relation
}

// Relation resolves name against the view. It returns nil when the
// relation is unknown or the unqualified name is ambiguous.
func (v *View) Relation(name pgparser.QualifiedName) *Relation {
	if v == nil {
		return nil
	}
	key, ok := resolveKey(v.relations, name)
	if !ok {
		return nil
	}
	return v.relations[key]
}

// Column returns the named column of table, or nil.
func (v *View) Column(table pgparser.QualifiedName, column string) *Column {
	rel := v.Relation(table)
	if rel == nil {
		return nil
	}
	return rel.Column(column)
}

// Relations returns the relations of the view in snapshot order.
func (v *View) Relations() []*Relation {
	if v == nil {
		return nil
	}
	out := make([]*Relation, 0, len(v.relations))
	for _, rel := range v.relations {
		out = append(out, rel)
	}
	sortRelations(out)
	return out
}

// Len returns the number of relations in the view.
func (v *View) Len() int {
	if v == nil {
		return 0
	}
	return len(v.relations)
}

// EvolvingSchema is a working copy of a snapshot that statements mutate.
// Relations are shared with the snapshot and with earlier views until they
// are first modified.
type EvolvingSchema struct {
	relations map[RelationKey]*Relation
	// owned holds the relations that were copied since the last View call
	// and may be modified in place.
	owned map[RelationKey]bool
}

// NewEvolvingSchema seeds a working copy from snapshot. A nil snapshot is
// treated as empty.
func NewEvolvingSchema(snapshot *Snapshot) *EvolvingSchema {
	s := &EvolvingSchema{
		relations: make(map[RelationKey]*Relation),
		owned:     make(map[RelationKey]bool),
	}
	if snapshot == nil {
		return s
	}
	for _, rel := range snapshot.relations {
		s.relations[rel.Key()] = rel
	}
	return s
}

// View freezes the current state.
func (s *EvolvingSchema) View() *View {
	relations := make(map[RelationKey]*Relation, len(s.relations))
	for key, rel := range s.relations {
		relations[key] = rel
	}
	s.owned = make(map[RelationKey]bool)
	return &View{relations: relations}
}

// Resolve returns the key of the relation name refers to.
func (s *EvolvingSchema) Resolve(name pgparser.QualifiedName) (RelationKey, bool) {
	return resolveKey(s.relations, name)
}

func (s *EvolvingSchema) mutable(key RelationKey) *Relation {
	rel, ok := s.relations[key]
	if !ok {
		return nil
	}
	if !s.owned[key] {
		rel = rel.clone()
		s.relations[key] = rel
		s.owned[key] = true
	}
	return rel
}

// AddRelation inserts rel. It fails when a relation with the same key
// already exists.
func (s *EvolvingSchema) AddRelation(rel *Relation) error {
	key := rel.Key()
	if _, ok := s.relations[key]; ok {
		return NewRelationExistsError(rel.Name, rel.Schema)
	}
	s.relations[key] = rel
	s.owned[key] = true
	return nil
}

// DropRelation removes the relation with key.
func (s *EvolvingSchema) DropRelation(key RelationKey) error {
	if _, ok := s.relations[key]; !ok {
		return NewTableNotExistsError(key.String())
	}
	delete(s.relations, key)
	delete(s.owned, key)
	return nil
}

// RenameRelation moves the relation with key to newName in the same schema.
func (s *EvolvingSchema) RenameRelation(key RelationKey, newName string) error {
	if _, ok := s.relations[key]; !ok {
		return NewTableNotExistsError(key.String())
	}
	target := RelationKey{Schema: key.Schema, Name: newName}
	if target == key {
		return nil
	}
	if _, ok := s.relations[target]; ok {
		return NewRelationExistsError(newName, key.Schema)
	}
	rel := s.mutable(key)
	delete(s.relations, key)
	delete(s.owned, key)
	rel.Name = newName
	s.relations[target] = rel
	s.owned[target] = true
	return nil
}

// AddColumn appends column to the relation with the next free ordinal.
func (s *EvolvingSchema) AddColumn(key RelationKey, column Column) error {
	rel, ok := s.relations[key]
	if !ok {
		return NewTableNotExistsError(key.String())
	}
	if rel.Column(column.Name) != nil {
		return NewColumnExistsError(key.String(), column.Name)
	}
	rel = s.mutable(key)
	column.Ordinal = rel.nextOrdinal()
	rel.Columns = append(rel.Columns, &column)
	return nil
}

// DropColumn removes a column.
func (s *EvolvingSchema) DropColumn(key RelationKey, name string) error {
	if _, err := s.lookupColumn(key, name); err != nil {
		return err
	}
	rel := s.mutable(key)
	for i, column := range rel.Columns {
		if column.Name == name {
			rel.Columns = append(rel.Columns[:i:i], rel.Columns[i+1:]...)
			break
		}
	}
	return nil
}

// RenameColumn renames a column, keeping its ordinal and provenance.
func (s *EvolvingSchema) RenameColumn(key RelationKey, name, newName string) error {
	if _, err := s.lookupColumn(key, name); err != nil {
		return err
	}
	if name == newName {
		return nil
	}
	if s.relations[key].Column(newName) != nil {
		return NewColumnExistsError(key.String(), newName)
	}
	s.mutable(key).Column(name).Name = newName
	return nil
}

// SetNullable changes the nullability of a column.
func (s *EvolvingSchema) SetNullable(key RelationKey, name string, nullable bool) error {
	if _, err := s.lookupColumn(key, name); err != nil {
		return err
	}
	s.mutable(key).Column(name).Nullable = nullable
	return nil
}

// SetType changes the declared type of a column. The catalog type id is no
// longer known afterwards.
func (s *EvolvingSchema) SetType(key RelationKey, name, typeName string) error {
	if _, err := s.lookupColumn(key, name); err != nil {
		return err
	}
	column := s.mutable(key).Column(name)
	column.TypeName = typeName
	column.TypeID = 0
	column.MaxLength = typeLength(typeName)
	return nil
}

// SetKeyFlags sets the index-derived flags of a column. A primary key
// implies unique and NOT NULL.
func (s *EvolvingSchema) SetKeyFlags(key RelationKey, name string, primaryKey, unique bool) error {
	if _, err := s.lookupColumn(key, name); err != nil {
		return err
	}
	column := s.mutable(key).Column(name)
	column.PrimaryKey = primaryKey
	column.Unique = unique || primaryKey
	if primaryKey {
		column.Nullable = false
	}
	return nil
}

func (s *EvolvingSchema) lookupColumn(key RelationKey, name string) (*Column, error) {
	rel, ok := s.relations[key]
	if !ok {
		return nil, NewTableNotExistsError(key.String())
	}
	column := rel.Column(name)
	if column == nil {
		return nil, NewColumnNotExistsError(key.String(), name)
	}
	return column, nil
}

var lengthPattern = regexp.MustCompile(`^(?:varchar|character\s*varying|char|character|bpchar)\s*\(\s*(\d+)\s*\)$`)

func typeLength(typeName string) *int32 {
	match := lengthPattern.FindStringSubmatch(typeName)
	if match == nil {
		return nil
	}
	n, err := strconv.ParseInt(match[1], 10, 32)
	if err != nil {
		return nil
	}
	length := int32(n)
	return &length
}
