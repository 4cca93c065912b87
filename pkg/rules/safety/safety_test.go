package safety

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/catalog"
	"github.com/nsxbet/migration-reviewer/pkg/logger"
	"github.com/nsxbet/migration-reviewer/pkg/pgparser"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

// TestCase represents a single test case from the YAML file.
type TestCase struct {
	Statement string `yaml:"statement"`
	// NoSchema runs the case without a catalog snapshot.
	NoSchema bool         `yaml:"noSchema"`
	Want     []WantAdvice `yaml:"want"`
}

// WantAdvice is the part of a diagnostic a test case pins down.
type WantAdvice struct {
	Code      int32  `yaml:"code"`
	Schema    string `yaml:"schema"`
	Table     string `yaml:"table"`
	Statement int    `yaml:"statement"`
}

func mockSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	snapshot, err := catalog.BuildSnapshot([]catalog.ColumnRow{
		{Name: "id", Ordinal: 1, TableName: "accounts", TableOID: 100, ClassKind: "r", SchemaName: "public", TypeID: 20, IsPrimaryKey: true, IsUnique: true},
		{Name: "email", Ordinal: 2, TableName: "accounts", TableOID: 100, ClassKind: "r", SchemaName: "public", TypeID: 25},
		{Name: "nickname", Ordinal: 3, TableName: "accounts", TableOID: 100, ClassKind: "r", SchemaName: "public", TypeID: 25, IsNullable: true},
		{Name: "id", Ordinal: 1, TableName: "orders", TableOID: 101, ClassKind: "r", SchemaName: "public", TypeID: 20, IsPrimaryKey: true, IsUnique: true},
		{Name: "account_id", Ordinal: 2, TableName: "orders", TableOID: 101, ClassKind: "r", SchemaName: "public", TypeID: 20},
		{Name: "id", Ordinal: 1, TableName: "ledger", TableOID: 200, ClassKind: "r", SchemaName: "billing", TypeID: 20},
		{Name: "amount", Ordinal: 2, TableName: "ledger", TableOID: 200, ClassKind: "r", SchemaName: "billing", TypeID: 1700},
	})
	require.NoError(t, err)
	return snapshot
}

type onlyRule string

func (r onlyRule) IsEnabled(meta advisor.RuleMetadata) bool { return meta.ID == string(r) }

func (onlyRule) Severity(meta advisor.RuleMetadata) types.Severity { return meta.DefaultSeverity }

func loadTestCases(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var testCases []TestCase
	if err := yaml.Unmarshal(data, &testCases); err != nil {
		return nil, err
	}
	return testCases, nil
}

// TestSafetyRules runs every rule against its testdata file.
func TestSafetyRules(t *testing.T) {
	for _, rule := range Rules() {
		meta := rule.Metadata()
		t.Run(meta.ID, func(t *testing.T) {
			testCases, err := loadTestCases(filepath.Join("testdata", meta.ID+".yaml"))
			require.NoError(t, err)
			require.NotEmpty(t, testCases)

			for i, tc := range testCases {
				t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
					runRuleTest(t, meta, tc)
				})
			}
		})
	}
}

func runRuleTest(t *testing.T, meta advisor.RuleMetadata, tc TestCase) {
	t.Helper()

	script := pgparser.Parse(tc.Statement)
	require.Empty(t, script.Errors, "failed to parse SQL: %s", tc.Statement)

	var snapshot *catalog.Snapshot
	if !tc.NoSchema {
		snapshot = mockSnapshot(t)
	}

	reg := advisor.NewRegistry()
	reg.MustRegister(Rules()...)
	engine := advisor.NewEngine(reg, onlyRule(meta.ID),
		advisor.WithSchemaAvailable(!tc.NoSchema),
		advisor.WithLogger(logger.Discard()),
	)

	sim := catalog.NewSimulator(snapshot)
	var got []WantAdvice
	for _, stmt := range script.Statements {
		before, after, _ := sim.Step(stmt)
		for _, d := range engine.Check(stmt, before, after) {
			require.Equal(t, meta.ID, d.Rule)
			require.Equal(t, types.DiagnosticClassLint, d.Class, d.Message)
			require.Equal(t, meta.DefaultSeverity, d.Severity)
			require.NotEmpty(t, d.Message)
			got = append(got, WantAdvice{
				Code:      d.Code,
				Schema:    d.Schema,
				Table:     d.Relation,
				Statement: d.Statement,
			})
		}
	}
	if len(tc.Want) == 0 {
		assert.Empty(t, got, tc.Statement)
		return
	}
	assert.Equal(t, tc.Want, got, tc.Statement)
}

func TestRegistryContents(t *testing.T) {
	reg := NewRegistry()
	require.Equal(t, 10, reg.Len())

	recommended := map[string]bool{}
	requiresSchema := map[string]bool{}
	for _, rule := range reg.Rules() {
		meta := rule.Metadata()
		assert.Equal(t, types.CategorySafety, meta.Category)
		assert.NotEmpty(t, meta.Description)
		recommended[meta.ID] = meta.Recommended
		requiresSchema[meta.ID] = meta.RequiresSchema
	}

	assert.Equal(t, map[string]bool{
		"banDropColumn":                  true,
		"banDropNotNull":                 true,
		"banDropTable":                   true,
		"addingRequiredField":            true,
		"addingNotNullField":             true,
		"changingColumnType":             false,
		"renamingColumn":                 false,
		"renamingTable":                  false,
		"requireConcurrentIndexCreation": false,
		"requireConcurrentIndexDeletion": false,
	}, recommended)
	assert.True(t, requiresSchema["banDropColumn"])
	assert.True(t, requiresSchema["banDropNotNull"])
	assert.False(t, requiresSchema["banDropTable"])

	require.Error(t, reg.Register(&BanDropColumnAdvisor{}))
}
