//go:build integration

package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestIntrospectLiveDatabase(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("reviewer"),
		postgres.WithUsername("reviewer"),
		postgres.WithPassword("reviewer"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := Connect(ctx, connString)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		CREATE SCHEMA billing;
		CREATE TABLE public.accounts (
			id bigserial PRIMARY KEY,
			email varchar(255) NOT NULL UNIQUE,
			nickname text
		);
		COMMENT ON COLUMN public.accounts.email IS 'login';
		ALTER TABLE public.accounts DROP COLUMN nickname;
		ALTER TABLE public.accounts ADD COLUMN status text DEFAULT 'active';
		CREATE TABLE billing.invoices (id int, account_id bigint REFERENCES public.accounts (id));
		CREATE VIEW public.active_accounts AS SELECT id FROM public.accounts;
	`)
	require.NoError(t, err)

	snapshot, err := Introspect(ctx, pool)
	require.NoError(t, err)

	var keys []string
	for _, rel := range snapshot.Relations() {
		keys = append(keys, rel.Key().String())
	}
	assert.Equal(t, []string{"public.accounts", "public.active_accounts", "billing.invoices"}, keys)

	accounts := snapshot.Relation("public", "accounts")
	require.NotNil(t, accounts)
	assert.Equal(t, RelationKindTable, accounts.Kind)
	require.Len(t, accounts.Columns, 3)

	id, email, status := accounts.Columns[0], accounts.Columns[1], accounts.Columns[2]
	assert.Equal(t, "id", id.Name)
	assert.True(t, id.PrimaryKey)
	assert.True(t, id.Unique)
	assert.False(t, id.Nullable)
	require.NotNil(t, id.Default)
	assert.Contains(t, *id.Default, "nextval")

	assert.Equal(t, "email", email.Name)
	assert.False(t, email.PrimaryKey)
	assert.True(t, email.Unique)
	require.NotNil(t, email.MaxLength)
	assert.Equal(t, int32(255), *email.MaxLength)
	require.NotNil(t, email.Comment)
	assert.Equal(t, "login", *email.Comment)

	// Dropped columns leave a gap in the ordinals.
	assert.Equal(t, "status", status.Name)
	assert.Equal(t, 4, status.Ordinal)
	assert.True(t, status.Nullable)
	assert.Nil(t, status.MaxLength)

	view := snapshot.Relation("public", "active_accounts")
	require.NotNil(t, view)
	assert.Equal(t, RelationKindView, view.Kind)
}
