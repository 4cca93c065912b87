package reviewer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/catalog"
	"github.com/nsxbet/migration-reviewer/pkg/config"
	"github.com/nsxbet/migration-reviewer/pkg/logger"
	"github.com/nsxbet/migration-reviewer/pkg/rules/safety"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

func testSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	snapshot, err := catalog.BuildSnapshot([]catalog.ColumnRow{
		{Name: "id", Ordinal: 1, TableName: "accounts", TableOID: 100, ClassKind: "r", SchemaName: "public", TypeID: 20, IsPrimaryKey: true, IsUnique: true},
		{Name: "email", Ordinal: 2, TableName: "accounts", TableOID: 100, ClassKind: "r", SchemaName: "public", TypeID: 25},
		{Name: "nickname", Ordinal: 3, TableName: "accounts", TableOID: 100, ClassKind: "r", SchemaName: "public", TypeID: 25, IsNullable: true},
		{Name: "id", Ordinal: 1, TableName: "ledger", TableOID: 200, ClassKind: "r", SchemaName: "billing", TypeID: 20},
		{Name: "amount", Ordinal: 2, TableName: "ledger", TableOID: 200, ClassKind: "r", SchemaName: "billing", TypeID: 1700},
	})
	require.NoError(t, err)
	return snapshot
}

func newTestReviewer(t *testing.T, opts ...ReviewOption) *Reviewer {
	t.Helper()
	opts = append([]ReviewOption{
		WithSnapshot(testSnapshot(t)),
		WithLogger(logger.Discard()),
	}, opts...)
	return New(safety.NewRegistry(), opts...)
}

func review(t *testing.T, r *Reviewer, sql string) *ReviewResult {
	t.Helper()
	result, err := r.Review(context.Background(), Source{Name: "migration.sql", Content: sql})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func rulesOf(diagnostics []*types.Diagnostic) []string {
	ids := make([]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		ids = append(ids, d.Rule)
	}
	return ids
}

func TestNew(t *testing.T) {
	r := newTestReviewer(t)
	require.NotNil(t, r)

	var ids []string
	for _, rule := range r.Rules() {
		ids = append(ids, rule.Metadata().ID)
	}
	assert.Equal(t, []string{
		"banDropColumn",
		"banDropNotNull",
		"banDropTable",
		"addingRequiredField",
		"addingNotNullField",
	}, ids)
}

func TestReview_DropExistingColumn(t *testing.T) {
	result := review(t, newTestReviewer(t), "ALTER TABLE accounts DROP COLUMN email;")

	require.Len(t, result.Diagnostics, 1)
	d := result.Diagnostics[0]
	assert.Equal(t, "banDropColumn", d.Rule)
	assert.Equal(t, types.Severity_ERROR, d.Severity)
	assert.Equal(t, types.DiagnosticClassLint, d.Class)
	assert.Equal(t, advisor.CompatibilityDropColumn.Int32(), d.Code)
	assert.Equal(t, "migration.sql", d.File)
	assert.Equal(t, "public", d.Schema)
	assert.Equal(t, "accounts", d.Relation)
	assert.Equal(t, int32(1), d.Span.StartPosition.Line)
	assert.True(t, result.HasBlocking())
	assert.Equal(t, 1, result.Summary.Statements)
	assert.Equal(t, 1, result.Summary.Files)
}

func TestReview_SyntaxErrorKeepsChecking(t *testing.T) {
	sql := "ALTER TABLE accounts DRP COLUMN email;\nALTER TABLE accounts DROP COLUMN nickname;"
	result := review(t, newTestReviewer(t), sql)

	parseErrors := result.FilterByRule(ParseErrorRule)
	require.Len(t, parseErrors, 1)
	p := parseErrors[0]
	assert.Equal(t, types.DiagnosticClassParse, p.Class)
	assert.Equal(t, types.Severity_ERROR, p.Severity)
	assert.Equal(t, advisor.StatementSyntaxError.Int32(), p.Code)
	assert.Equal(t, 0, p.Statement)
	assert.Equal(t, int32(1), p.Span.StartPosition.Line)

	drops := result.FilterByRule("banDropColumn")
	require.Len(t, drops, 1)
	assert.Equal(t, 1, drops[0].Statement)
	assert.Equal(t, int32(2), drops[0].Span.StartPosition.Line)

	assert.Equal(t, 1, result.Summary.Parse)
	assert.Equal(t, 1, result.Summary.Lint)
	assert.Equal(t, 2, result.Summary.Statements)
}

func TestReview_Provenance(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "add then drop column",
			sql:  "ALTER TABLE accounts ADD COLUMN tmp text;\nALTER TABLE accounts DROP COLUMN tmp;",
			want: []string{},
		},
		{
			name: "drop not null on existing column",
			sql:  "ALTER TABLE accounts ALTER COLUMN email DROP NOT NULL;",
			want: []string{"banDropNotNull"},
		},
		{
			name: "drop not null on column added nullable",
			sql:  "ALTER TABLE accounts ADD COLUMN status text;\nALTER TABLE accounts ALTER COLUMN status DROP NOT NULL;",
			want: []string{},
		},
		{
			name: "renamed table keeps provenance",
			sql:  "ALTER TABLE accounts RENAME TO members;\nALTER TABLE members DROP COLUMN email;",
			want: []string{"banDropColumn"},
		},
		{
			name: "created table is free to change",
			sql:  "CREATE TABLE scratch (id int NOT NULL, note text);\nALTER TABLE scratch DROP COLUMN note;\nDROP TABLE scratch;",
			want: []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := review(t, newTestReviewer(t), tc.sql)
			assert.Equal(t, tc.want, rulesOf(result.Diagnostics))
		})
	}
}

func TestReview_Deterministic(t *testing.T) {
	sql := `
DROP TABLE billing.ledger;
ALTER TABLE accounts DROP COLUMN email, DROP COLUMN nickname;
ALTER TABLE accounts ADD COLUMN status text NOT NULL;
CREATE INDEX accounts_status_idx ON accounts (status);
`
	r := newTestReviewer(t, WithRuleConfig(&config.Config{All: &config.RuleSetting{Enabled: boolPtr(true)}}))

	first := review(t, r, sql)
	second := review(t, r, sql)
	assert.Equal(t, first, second)

	// public sorts before billing.
	require.NotEmpty(t, first.Diagnostics)
	assert.Equal(t, "public", first.Diagnostics[0].Schema)
	assert.Equal(t, "billing", first.Diagnostics[len(first.Diagnostics)-1].Schema)
}

func TestReview_SnapshotUnavailable(t *testing.T) {
	introspectErr := &catalog.SnapshotUnavailableError{Reason: "connection refused"}

	t.Run("schema rules enabled", func(t *testing.T) {
		r := New(safety.NewRegistry(), WithSnapshotError(introspectErr), WithLogger(logger.Discard()))
		_, err := r.Review(context.Background(), Source{Name: "m.sql", Content: "DROP TABLE accounts;"})
		require.Error(t, err)
		assert.True(t, catalog.IsSnapshotUnavailable(err))
		assert.Contains(t, err.Error(), "banDropColumn")

		_, err = r.ReviewFiles(context.Background(), nil)
		assert.True(t, catalog.IsSnapshotUnavailable(err))
	})

	t.Run("no snapshot configured", func(t *testing.T) {
		r := New(safety.NewRegistry(), WithLogger(logger.Discard()))
		_, err := r.Review(context.Background(), Source{Content: "SELECT 1;"})
		assert.True(t, catalog.IsSnapshotUnavailable(err))
	})

	t.Run("only structural rules", func(t *testing.T) {
		cfg, err := config.Parse([]byte("recommended: false\nrules:\n  banDropTable:\n    enabled: true\n"))
		require.NoError(t, err)

		r := New(safety.NewRegistry(),
			WithSnapshotError(introspectErr),
			WithRuleConfig(cfg),
			WithLogger(logger.Discard()),
		)
		result := review(t, r, "DROP TABLE accounts;")
		require.Len(t, result.Diagnostics, 1)
		assert.Equal(t, "banDropTable", result.Diagnostics[0].Rule)
		assert.Equal(t, "public", result.Diagnostics[0].Schema)
	})

	t.Run("degraded mode", func(t *testing.T) {
		r := New(safety.NewRegistry(),
			WithSnapshotError(introspectErr),
			WithDegradedMode(true),
			WithLogger(logger.Discard()),
		)
		assert.Len(t, r.Rules(), 3)

		result := review(t, r, "ALTER TABLE accounts DROP COLUMN email;\nDROP TABLE accounts;")
		assert.Equal(t, []string{"banDropTable"}, rulesOf(result.Diagnostics))
	})

	t.Run("snapshot error wins over snapshot", func(t *testing.T) {
		r := New(safety.NewRegistry(),
			WithSnapshot(testSnapshot(t)),
			WithSnapshotError(introspectErr),
			WithDegradedMode(true),
			WithLogger(logger.Discard()),
		)
		assert.Len(t, r.Rules(), 3)
	})
}

type panickingRule struct{}

func (panickingRule) Metadata() advisor.RuleMetadata {
	return advisor.RuleMetadata{
		ID:              "explodes",
		Category:        types.CategorySafety,
		DefaultSeverity: types.Severity_WARNING,
		Recommended:     true,
	}
}

func (panickingRule) Check(advisor.Context) ([]advisor.Finding, error) {
	panic("boom")
}

type failingRule struct{}

func (failingRule) Metadata() advisor.RuleMetadata {
	return advisor.RuleMetadata{ID: "fails", DefaultSeverity: types.Severity_WARNING, Recommended: true}
}

func (failingRule) Check(advisor.Context) ([]advisor.Finding, error) {
	return nil, errors.New("cannot read view")
}

func TestReview_RuleFailuresBecomeToolingDiagnostics(t *testing.T) {
	reg := safety.NewRegistry()
	reg.MustRegister(panickingRule{}, failingRule{})

	r := New(reg, WithSnapshot(testSnapshot(t)), WithLogger(logger.Discard()))
	result := review(t, r, "ALTER TABLE billing.ledger DROP COLUMN amount;")

	assert.Equal(t, []string{"banDropColumn", "explodes", "fails"}, rulesOf(result.Diagnostics))
	for _, d := range result.Diagnostics[1:] {
		assert.Equal(t, types.DiagnosticClassTooling, d.Class)
		assert.Equal(t, types.Severity_ERROR, d.Severity)
		assert.Equal(t, "billing", d.Schema)
		assert.Equal(t, "ledger", d.Relation)
	}
	assert.Equal(t, 2, result.Summary.Tooling)
}

func TestReview_EmptySQL(t *testing.T) {
	result := review(t, newTestReviewer(t), "  -- nothing here\n")
	assert.True(t, result.IsClean())
	assert.NotNil(t, result.Diagnostics)
	assert.Equal(t, 0, result.Summary.Statements)
}

func TestReview_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestReviewer(t).Review(ctx, Source{Content: "DROP TABLE accounts;"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReview_MaxDiagnostics(t *testing.T) {
	r := newTestReviewer(t, WithMaxDiagnostics(1))
	result := review(t, r, "DROP TABLE accounts;\nDROP TABLE billing.ledger;")

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, 1, result.Summary.Skipped)
	assert.Equal(t, 2, result.Summary.Total)
	assert.Equal(t, 2, result.Summary.Errors)
}

func writeFiles(t *testing.T, files map[string]string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		paths = append(paths, path)
	}
	return dir, paths
}

func TestReviewFiles(t *testing.T) {
	dir, paths := writeFiles(t, map[string]string{
		"0001.sql": "ALTER TABLE accounts DROP COLUMN email;",
		"0002.sql": "ALTER TABLE billing.ledger DROP COLUMN amount;",
		"0003.sql": "CREATE TABLE scratch (id int);\nDROP TABLE scratch;",
	})

	serial, err := newTestReviewer(t, WithConcurrency(1)).ReviewFiles(context.Background(), paths)
	require.NoError(t, err)
	parallel, err := newTestReviewer(t, WithConcurrency(8)).ReviewFiles(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, serial, parallel)

	require.Len(t, serial.Diagnostics, 2)
	assert.Equal(t, filepath.Join(dir, "0001.sql"), serial.Diagnostics[0].File)
	assert.Equal(t, "public", serial.Diagnostics[0].Schema)
	assert.Equal(t, filepath.Join(dir, "0002.sql"), serial.Diagnostics[1].File)
	assert.Equal(t, "billing", serial.Diagnostics[1].Schema)
	assert.Equal(t, 3, serial.Summary.Files)
	assert.Equal(t, 4, serial.Summary.Statements)
}

func TestReviewFiles_EachFileStartsFromSnapshot(t *testing.T) {
	_, paths := writeFiles(t, map[string]string{
		"a.sql": "ALTER TABLE accounts ADD COLUMN tmp text;",
		"b.sql": "ALTER TABLE accounts DROP COLUMN email;",
	})

	result, err := newTestReviewer(t).ReviewFiles(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, []string{"banDropColumn"}, rulesOf(result.Diagnostics))
}

func TestReviewFiles_Errors(t *testing.T) {
	_, paths := writeFiles(t, map[string]string{"a.sql": "SELECT 1;"})

	_, err := newTestReviewer(t).ReviewFiles(context.Background(), append(paths, "/does/not/exist.sql"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exist.sql")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newTestReviewer(t).ReviewFiles(ctx, paths)
	assert.ErrorIs(t, err, context.Canceled)
}

func boolPtr(b bool) *bool {
	return &b
}

func BenchmarkReview(b *testing.B) {
	snapshot, err := catalog.BuildSnapshot([]catalog.ColumnRow{
		{Name: "id", Ordinal: 1, TableName: "accounts", TableOID: 100, ClassKind: "r", SchemaName: "public", TypeID: 20},
		{Name: "email", Ordinal: 2, TableName: "accounts", TableOID: 100, ClassKind: "r", SchemaName: "public", TypeID: 25},
	})
	require.NoError(b, err)

	r := New(safety.NewRegistry(), WithSnapshot(snapshot), WithLogger(logger.Discard()))
	src := Source{Name: "bench.sql", Content: "ALTER TABLE accounts ADD COLUMN tmp text;\nALTER TABLE accounts DROP COLUMN email;"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Review(context.Background(), src); err != nil {
			b.Fatal(err)
		}
	}
}
