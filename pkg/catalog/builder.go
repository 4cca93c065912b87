package catalog

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// ColumnRow is one row of the catalog introspection query.
type ColumnRow struct {
	Name          string  `json:"name"                    yaml:"name"`
	Ordinal       int     `json:"ordinal"                 yaml:"ordinal"`
	TableName     string  `json:"tableName"               yaml:"tableName"`
	TableOID      int64   `json:"tableOid"                yaml:"tableOid"`
	ClassKind     string  `json:"classKind"               yaml:"classKind"`
	SchemaName    string  `json:"schemaName"              yaml:"schemaName"`
	TypeID        int64   `json:"typeId"                  yaml:"typeId"`
	IsNullable    bool    `json:"isNullable"              yaml:"isNullable"`
	VarcharLength *int32  `json:"varcharLength,omitempty" yaml:"varcharLength,omitempty"`
	DefaultExpr   *string `json:"defaultExpr,omitempty"   yaml:"defaultExpr,omitempty"`
	IsPrimaryKey  bool    `json:"isPrimaryKey"            yaml:"isPrimaryKey"`
	IsUnique      bool    `json:"isUnique"                yaml:"isUnique"`
	Comment       *string `json:"comment,omitempty"       yaml:"comment,omitempty"`
}

// SnapshotUnavailableError is returned when the catalog could not be read.
type SnapshotUnavailableError struct {
	Reason string
	Err    error
}

func (e *SnapshotUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema snapshot unavailable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("schema snapshot unavailable: %s", e.Reason)
}

// Cause returns the underlying error.
func (e *SnapshotUnavailableError) Cause() error {
	return e.Err
}

// Unwrap returns the underlying error.
func (e *SnapshotUnavailableError) Unwrap() error {
	return e.Err
}

// IsSnapshotUnavailable reports whether err, or any error it wraps, is a
// SnapshotUnavailableError.
func IsSnapshotUnavailable(err error) bool {
	var target *SnapshotUnavailableError
	return errors.As(err, &target)
}

func snapshotUnavailable(err error, reason string) error {
	return &SnapshotUnavailableError{Reason: reason, Err: err}
}

type columnKey struct {
	oid     int64
	ordinal int
}

// BuildSnapshot materializes a snapshot from introspection rows.
//
// Rows of relation kinds other than r, v, m, f and p and rows with a
// negative ordinal are skipped. A varchar length of -1 means unbounded. A
// column that appears in several rows, once per leading index membership,
// is merged and its key flags are combined.
func BuildSnapshot(rows []ColumnRow) (*Snapshot, error) {
	relationsByOID := make(map[int64]*Relation)
	var order []*Relation
	columns := make(map[columnKey]*Column)

	for _, row := range rows {
		kind := RelationKind(row.ClassKind)
		if !kind.Valid() || row.Ordinal < 0 {
			continue
		}

		rel, ok := relationsByOID[row.TableOID]
		if !ok {
			rel = &Relation{
				ID:     row.TableOID,
				Schema: row.SchemaName,
				Name:   row.TableName,
				Kind:   kind,
			}
			relationsByOID[row.TableOID] = rel
			order = append(order, rel)
		} else if rel.Schema != row.SchemaName || rel.Name != row.TableName {
			return nil, snapshotUnavailable(nil, fmt.Sprintf(
				"relation oid %d reported as both %s.%s and %s.%s",
				row.TableOID, rel.Schema, rel.Name, row.SchemaName, row.TableName))
		}

		key := columnKey{oid: row.TableOID, ordinal: row.Ordinal}
		if existing, ok := columns[key]; ok {
			if existing.Name != row.Name {
				return nil, snapshotUnavailable(nil, fmt.Sprintf(
					"columns %q and %q of %s.%s share ordinal %d",
					existing.Name, row.Name, rel.Schema, rel.Name, row.Ordinal))
			}
			existing.PrimaryKey = existing.PrimaryKey || row.IsPrimaryKey
			existing.Unique = existing.Unique || row.IsUnique
			continue
		}

		column := &Column{
			Name:       row.Name,
			Ordinal:    row.Ordinal,
			TypeID:     row.TypeID,
			Nullable:   row.IsNullable,
			MaxLength:  normalizeLength(row.VarcharLength),
			Default:    row.DefaultExpr,
			PrimaryKey: row.IsPrimaryKey,
			Unique:     row.IsUnique,
			Comment:    row.Comment,
		}
		columns[key] = column
		rel.Columns = append(rel.Columns, column)
	}

	for _, rel := range order {
		sortColumns(rel.Columns)
	}

	seen := make(map[RelationKey]int64, len(order))
	for _, rel := range order {
		if oid, ok := seen[rel.Key()]; ok {
			return nil, snapshotUnavailable(nil, fmt.Sprintf(
				"relation %s reported with oids %d and %d", rel.Key(), oid, rel.ID))
		}
		seen[rel.Key()] = rel.ID
	}

	return newSnapshot(order), nil
}

func normalizeLength(length *int32) *int32 {
	if length == nil || *length < 0 {
		return nil
	}
	v := *length
	return &v
}

func sortColumns(columns []*Column) {
	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].Ordinal < columns[j].Ordinal
	})
}
