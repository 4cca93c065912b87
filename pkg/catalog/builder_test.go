package catalog

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSnapshot(t *testing.T) {
	rows := []ColumnRow{
		{Name: "email", Ordinal: 2, TableName: "users", TableOID: 10, ClassKind: "r", SchemaName: "public", TypeID: 1043, VarcharLength: int32Ptr(120)},
		{Name: "id", Ordinal: 1, TableName: "users", TableOID: 10, ClassKind: "r", SchemaName: "public", TypeID: 20, IsPrimaryKey: true, IsUnique: true},
		{Name: "ctid", Ordinal: -1, TableName: "users", TableOID: 10, ClassKind: "r", SchemaName: "public", TypeID: 27},
		{Name: "bio", Ordinal: 3, TableName: "users", TableOID: 10, ClassKind: "r", SchemaName: "public", TypeID: 25, IsNullable: true, VarcharLength: int32Ptr(-1)},
		{Name: "id", Ordinal: 1, TableName: "users_id_seq", TableOID: 11, ClassKind: "S", SchemaName: "public", TypeID: 20},
		{Name: "id", Ordinal: 1, TableName: "events", TableOID: 20, ClassKind: "p", SchemaName: "audit", TypeID: 20},
		{Name: "id", Ordinal: 1, TableName: "accounts", TableOID: 30, ClassKind: "r", SchemaName: "public", TypeID: 20},
	}

	snapshot, err := BuildSnapshot(rows)
	require.NoError(t, err)
	require.Equal(t, 3, snapshot.Len())

	var keys []string
	for _, rel := range snapshot.Relations() {
		keys = append(keys, rel.Key().String())
	}
	assert.Equal(t, []string{"public.accounts", "public.users", "audit.events"}, keys)

	users := snapshot.Relation("public", "users")
	require.NotNil(t, users)
	assert.Same(t, users, snapshot.RelationByID(10))
	require.Len(t, users.Columns, 3)
	for i, column := range users.Columns {
		assert.Equal(t, i+1, column.Ordinal)
	}

	assert.True(t, users.Columns[0].PrimaryKey)
	assert.True(t, users.Columns[0].Unique)
	assert.False(t, users.Columns[1].PrimaryKey)
	assert.False(t, users.Columns[1].Unique)
	assert.Equal(t, int32Ptr(120), users.Columns[1].MaxLength)
	assert.Nil(t, users.Columns[2].MaxLength)
	assert.True(t, users.Columns[2].Nullable)

	assert.Nil(t, snapshot.Relation("public", "users_id_seq"))
	assert.Nil(t, users.Column("ctid"))
}

func TestBuildSnapshotMergesIndexRows(t *testing.T) {
	rows := []ColumnRow{
		{Name: "id", Ordinal: 1, TableName: "users", TableOID: 10, ClassKind: "r", SchemaName: "public", IsPrimaryKey: true, IsUnique: true},
		{Name: "id", Ordinal: 1, TableName: "users", TableOID: 10, ClassKind: "r", SchemaName: "public", IsUnique: true},
		{Name: "email", Ordinal: 2, TableName: "users", TableOID: 10, ClassKind: "r", SchemaName: "public"},
		{Name: "email", Ordinal: 2, TableName: "users", TableOID: 10, ClassKind: "r", SchemaName: "public", IsUnique: true},
	}

	snapshot, err := BuildSnapshot(rows)
	require.NoError(t, err)
	users := snapshot.Relation("public", "users")
	require.NotNil(t, users)
	require.Len(t, users.Columns, 2)
	assert.True(t, users.Columns[0].PrimaryKey)
	assert.True(t, users.Columns[0].Unique)
	assert.False(t, users.Columns[1].PrimaryKey)
	assert.True(t, users.Columns[1].Unique)
}

func TestBuildSnapshotKeyFlagsAreIndependent(t *testing.T) {
	rows := []ColumnRow{
		{Name: "c", Ordinal: 3, TableName: "pairs", TableOID: 20, ClassKind: "r", SchemaName: "public"},
		{Name: "a", Ordinal: 1, TableName: "pairs", TableOID: 20, ClassKind: "r", SchemaName: "public", IsPrimaryKey: true},
		{Name: "b", Ordinal: 2, TableName: "pairs", TableOID: 20, ClassKind: "r", SchemaName: "public", IsUnique: true},
	}

	snapshot, err := BuildSnapshot(rows)
	require.NoError(t, err)
	pairs := snapshot.Relation("public", "pairs")
	require.NotNil(t, pairs)
	require.Len(t, pairs.Columns, 3)

	tests := []struct {
		name       string
		ordinal    int
		primaryKey bool
		unique     bool
	}{
		{name: "a", ordinal: 1, primaryKey: true, unique: false},
		{name: "b", ordinal: 2, primaryKey: false, unique: true},
		{name: "c", ordinal: 3, primaryKey: false, unique: false},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			column := pairs.Columns[i]
			assert.Equal(t, tt.name, column.Name)
			assert.Equal(t, tt.ordinal, column.Ordinal)
			assert.Equal(t, tt.primaryKey, column.PrimaryKey)
			assert.Equal(t, tt.unique, column.Unique)
		})
	}
}

func TestBuildSnapshotInconsistentRows(t *testing.T) {
	tests := []struct {
		name string
		rows []ColumnRow
	}{
		{
			name: "two columns share an ordinal",
			rows: []ColumnRow{
				{Name: "a", Ordinal: 1, TableName: "t", TableOID: 1, ClassKind: "r", SchemaName: "public"},
				{Name: "b", Ordinal: 1, TableName: "t", TableOID: 1, ClassKind: "r", SchemaName: "public"},
			},
		},
		{
			name: "one oid with two names",
			rows: []ColumnRow{
				{Name: "a", Ordinal: 1, TableName: "t", TableOID: 1, ClassKind: "r", SchemaName: "public"},
				{Name: "a", Ordinal: 1, TableName: "u", TableOID: 1, ClassKind: "r", SchemaName: "public"},
			},
		},
		{
			name: "one name with two oids",
			rows: []ColumnRow{
				{Name: "a", Ordinal: 1, TableName: "t", TableOID: 1, ClassKind: "r", SchemaName: "public"},
				{Name: "a", Ordinal: 1, TableName: "t", TableOID: 2, ClassKind: "r", SchemaName: "public"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildSnapshot(tt.rows)
			require.Error(t, err)
			assert.True(t, IsSnapshotUnavailable(err))
		})
	}
}

func TestIsSnapshotUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := errors.Wrap(snapshotUnavailable(cause, "connect"), "review")

	assert.True(t, IsSnapshotUnavailable(err))
	assert.False(t, IsSnapshotUnavailable(cause))
	assert.False(t, IsSnapshotUnavailable(nil))
	assert.Equal(t, "review: schema snapshot unavailable: connect: connection refused", err.Error())
}

func TestEmptySnapshot(t *testing.T) {
	snapshot := NewEmptySnapshot()
	assert.Equal(t, 0, snapshot.Len())
	assert.Empty(t, snapshot.Relations())
	assert.Nil(t, snapshot.Relation("public", "users"))
}
