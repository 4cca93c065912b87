package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// ColumnsQuery returns one row per user column of every table, view,
// materialized view, foreign table and partitioned table outside the
// system schemas.
const ColumnsQuery = `
with
  available_tables as (
    select
      c.relname as table_name,
      c.oid as table_oid,
      c.relkind as class_kind,
      n.nspname as schema_name
    from
      pg_catalog.pg_class c
      join pg_catalog.pg_namespace n on n.oid = c.relnamespace
    where
      c.relkind in ('r', 'v', 'm', 'f', 'p')
      and n.nspname not in ('pg_catalog', 'information_schema', 'pg_toast')
      and n.nspname not like 'pg_temp_%'
      and n.nspname not like 'pg_toast_temp_%'
  ),
  available_indexes as (
    select
      ix.indkey[0] as attnum,
      ix.indisprimary as is_primary,
      ix.indisunique as is_unique,
      ix.indrelid as table_oid
    from
      pg_catalog.pg_class c
      join pg_catalog.pg_index ix on c.oid = ix.indexrelid
    where
      c.relkind = 'i'
  )
select
  atts.attname as name,
  atts.attnum::int4 as ordinal,
  ts.table_name,
  ts.table_oid::int8 as table_oid,
  ts.class_kind::text as class_kind,
  ts.schema_name,
  atts.atttypid::int8 as type_id,
  not atts.attnotnull as is_nullable,
  nullif(
    information_schema._pg_char_max_length(atts.atttypid, atts.atttypmod),
    -1
  )::int4 as varchar_length,
  pg_get_expr(def.adbin, def.adrelid) as default_expr,
  coalesce(ix.is_primary, false) as is_primary_key,
  coalesce(ix.is_unique, false) as is_unique,
  pg_catalog.col_description(ts.table_oid, atts.attnum) as comment
from
  pg_catalog.pg_attribute atts
  join available_tables ts on atts.attrelid = ts.table_oid
  left join available_indexes ix on ix.table_oid = atts.attrelid
    and ix.attnum = atts.attnum
  left join pg_catalog.pg_attrdef def on atts.attrelid = def.adrelid
    and atts.attnum = def.adnum
where
  atts.attnum >= 0
  and not atts.attisdropped
order by
  ts.schema_name desc,
  ts.table_name,
  atts.attnum;
`

// Querier is the part of pgx shared by *pgx.Conn, *pgxpool.Pool and
// pgx.Tx that introspection needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Connect opens a pool for connString and checks that the server answers.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, snapshotUnavailable(err, "invalid connection string")
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, snapshotUnavailable(err, "unable to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, snapshotUnavailable(err, "unable to ping database")
	}
	return pool, nil
}

// IntrospectRows runs ColumnsQuery and returns its rows.
func IntrospectRows(ctx context.Context, q Querier) ([]ColumnRow, error) {
	rows, err := q.Query(ctx, ColumnsQuery)
	if err != nil {
		return nil, snapshotUnavailable(err, "querying catalog columns")
	}
	defer rows.Close()

	var result []ColumnRow
	for rows.Next() {
		var row ColumnRow
		if err := rows.Scan(
			&row.Name,
			&row.Ordinal,
			&row.TableName,
			&row.TableOID,
			&row.ClassKind,
			&row.SchemaName,
			&row.TypeID,
			&row.IsNullable,
			&row.VarcharLength,
			&row.DefaultExpr,
			&row.IsPrimaryKey,
			&row.IsUnique,
			&row.Comment,
		); err != nil {
			return nil, snapshotUnavailable(err, "scanning catalog column")
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, snapshotUnavailable(err, "iterating catalog columns")
	}
	return result, nil
}

// Introspect reads the catalog through q and builds a snapshot.
func Introspect(ctx context.Context, q Querier) (*Snapshot, error) {
	rows, err := IntrospectRows(ctx, q)
	if err != nil {
		return nil, err
	}
	snapshot, err := BuildSnapshot(rows)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build schema snapshot")
	}
	return snapshot, nil
}
