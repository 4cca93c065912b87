// Package catalog models the structure of a PostgreSQL database.
//
// A Snapshot is built once per run from catalog introspection rows, either
// queried live or read from a dump. An EvolvingSchema copies a snapshot and
// replays the structural effect of migration statements on it, and Views
// expose the state before and after each statement to the rules.
package catalog

import (
	"sort"

	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
)

// RelationKind is the pg_class.relkind of a relation.
type RelationKind string

const (
	RelationKindTable            RelationKind = "r"
	RelationKindView             RelationKind = "v"
	RelationKindMaterializedView RelationKind = "m"
	RelationKindForeignTable     RelationKind = "f"
	RelationKindPartitionedTable RelationKind = "p"
)

// Valid reports whether the kind is one the snapshot keeps.
func (k RelationKind) Valid() bool {
	switch k {
	case RelationKindTable, RelationKindView, RelationKindMaterializedView,
		RelationKindForeignTable, RelationKindPartitionedTable:
		return true
	}
	return false
}

func (k RelationKind) String() string {
	switch k {
	case RelationKindTable:
		return "table"
	case RelationKindView:
		return "view"
	case RelationKindMaterializedView:
		return "materialized view"
	case RelationKindForeignTable:
		return "foreign table"
	case RelationKindPartitionedTable:
		return "partitioned table"
	default:
		return "unknown"
	}
}

// IsTable reports whether the relation stores rows of its own.
func (k RelationKind) IsTable() bool {
	return k == RelationKindTable || k == RelationKindPartitionedTable
}

// Column is a non-system column of a relation.
type Column struct {
	Name    string `json:"name"              yaml:"name"`
	Ordinal int    `json:"ordinal"           yaml:"ordinal"`
	TypeID  int64  `json:"typeId"            yaml:"typeId"`
	// TypeName is only known for columns added or altered by a script.
	TypeName   string  `json:"typeName,omitempty"  yaml:"typeName,omitempty"`
	Nullable   bool    `json:"nullable"            yaml:"nullable"`
	MaxLength  *int32  `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Default    *string `json:"default,omitempty"   yaml:"default,omitempty"`
	PrimaryKey bool    `json:"primaryKey"          yaml:"primaryKey"`
	Unique     bool    `json:"unique"              yaml:"unique"`
	Comment    *string `json:"comment,omitempty"   yaml:"comment,omitempty"`
	// Introduced is true when the column was created by the script being
	// simulated rather than read from the catalog.
	Introduced bool `json:"introduced" yaml:"introduced"`
}

// Relation is a table, view, materialized view, foreign table or
// partitioned table.
type Relation struct {
	ID         int64        `json:"id"         yaml:"id"`
	Schema     string       `json:"schema"     yaml:"schema"`
	Name       string       `json:"name"       yaml:"name"`
	Kind       RelationKind `json:"kind"       yaml:"kind"`
	Columns    []*Column    `json:"columns"    yaml:"columns"`
	Introduced bool         `json:"introduced" yaml:"introduced"`
}

// Key returns the identity of the relation.
func (r *Relation) Key() RelationKey {
	return RelationKey{Schema: r.Schema, Name: r.Name}
}

// Column finds a column by name.
func (r *Relation) Column(name string) *Column {
	for _, column := range r.Columns {
		if column.Name == name {
			return column
		}
	}
	return nil
}

func (r *Relation) nextOrdinal() int {
	highest := 0
	for _, column := range r.Columns {
		if column.Ordinal > highest {
			highest = column.Ordinal
		}
	}
	return highest + 1
}

func (r *Relation) clone() *Relation {
	cp := *r
	cp.Columns = make([]*Column, len(r.Columns))
	for i, column := range r.Columns {
		c := *column
		cp.Columns[i] = &c
	}
	return &cp
}

// RelationKey identifies a relation by schema and name.
type RelationKey struct {
	Schema string
	Name   string
}

func (k RelationKey) String() string {
	return k.Schema + "." + k.Name
}

// Snapshot is the immutable structure of a database at one point in time.
// Values returned by its accessors must not be modified.
type Snapshot struct {
	relations []*Relation
	byKey     map[RelationKey]*Relation
	byID      map[int64]*Relation
}

// NewEmptySnapshot returns a snapshot with no relations.
func NewEmptySnapshot() *Snapshot {
	return newSnapshot(nil)
}

func newSnapshot(relations []*Relation) *Snapshot {
	s := &Snapshot{
		relations: relations,
		byKey:     make(map[RelationKey]*Relation, len(relations)),
		byID:      make(map[int64]*Relation, len(relations)),
	}
	sortRelations(s.relations)
	for _, rel := range relations {
		s.byKey[rel.Key()] = rel
		if rel.ID != 0 {
			s.byID[rel.ID] = rel
		}
	}
	return s
}

// Relations returns all relations ordered by schema name descending, then
// relation name.
func (s *Snapshot) Relations() []*Relation {
	out := make([]*Relation, len(s.relations))
	copy(out, s.relations)
	return out
}

// Relation finds a relation by schema and name.
func (s *Snapshot) Relation(schema, name string) *Relation {
	return s.byKey[RelationKey{Schema: schema, Name: name}]
}

// RelationByID finds a relation by its object id.
func (s *Snapshot) RelationByID(id int64) *Relation {
	return s.byID[id]
}

// Len returns the number of relations.
func (s *Snapshot) Len() int {
	return len(s.relations)
}

func sortRelations(relations []*Relation) {
	sort.SliceStable(relations, func(i, j int) bool {
		if relations[i].Schema != relations[j].Schema {
			return relations[i].Schema > relations[j].Schema
		}
		return relations[i].Name < relations[j].Name
	})
}

// resolveKey finds the relation a possibly unqualified name refers to.
// An unqualified name is looked up in public first, then in any schema as
// long as the name is unique.
func resolveKey(relations map[RelationKey]*Relation, name pgparser.QualifiedName) (RelationKey, bool) {
	if name.Schema != "" {
		key := RelationKey{Schema: name.Schema, Name: name.Name}
		_, ok := relations[key]
		return key, ok
	}

	key := RelationKey{Schema: pgparser.NormalizeSchemaName(""), Name: name.Name}
	if _, ok := relations[key]; ok {
		return key, true
	}

	var found RelationKey
	matches := 0
	for k := range relations {
		if k.Name == name.Name {
			found = k
			matches++
		}
	}
	if matches == 1 {
		return found, true
	}
	return RelationKey{}, false
}
