package cmd

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/catalog"
	"github.com/nsxbet/migration-reviewer/pkg/config"
	"github.com/nsxbet/migration-reviewer/pkg/logger"
	"github.com/nsxbet/migration-reviewer/pkg/reviewer"
	"github.com/nsxbet/migration-reviewer/pkg/rules/safety"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

// ErrBlocking is returned when --fail-on-error or --fail-on-warning is set
// and the review found matching diagnostics.
var ErrBlocking = errors.New("review found blocking diagnostics")

var checkCmd = &cobra.Command{
	Use:   "check [flags] <sql-file|dir>...",
	Short: "Check migration scripts against the safety rules",
	Long: `Check PostgreSQL migration scripts against the enabled rules.

Arguments are files or directories. Directories are searched recursively
for *.sql files, which are reviewed in lexical order of their paths.

The schema comes from a live database (--connection or DATABASE_URL) or
from a dump written by the snapshot command (--schema). Without either,
rules that need the schema fail the run unless --degraded is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	// Flags for check command
	checkCmd.Flags().StringP("output", "o", "text", "output format (text, json, yaml)")
	checkCmd.Flags().StringP("rules", "r", "", "path to rules configuration file")
	checkCmd.Flags().String("schema", "", "path to a schema dump file (JSON or YAML)")
	checkCmd.Flags().StringP("connection", "c", "", "PostgreSQL connection string")
	checkCmd.Flags().Duration("timeout", 30*time.Second, "timeout for reading the database catalog")
	checkCmd.Flags().Int("max-diagnostics", 20, "maximum diagnostics to report (0 for all)")
	checkCmd.Flags().String("diagnostic-level", "hint", "lowest severity to print (error, warning, info, hint)")
	checkCmd.Flags().Bool("degraded", false, "run without a schema snapshot, skipping rules that need it")
	checkCmd.Flags().Int("concurrency", 4, "number of files reviewed in parallel")
	checkCmd.Flags().Bool("fail-on-error", false, "exit with non-zero code if errors are found")
	checkCmd.Flags().Bool("fail-on-warning", false, "exit with non-zero code if warnings are found")
}

func runCheck(cmd *cobra.Command, args []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	log.Debug("Starting check command", "args", args)

	outputFormat := viper.GetString("output")
	if err := validateOutputFormat(outputFormat); err != nil {
		return err
	}
	level := types.ParseSeverity(viper.GetString("diagnostic-level"))
	if level == types.Severity_SEVERITY_UNSPECIFIED {
		return errors.Errorf("invalid diagnostic level %q", viper.GetString("diagnostic-level"))
	}

	paths, err := collectSQLFiles(args)
	if err != nil {
		return err
	}
	log.Debug("Collected migration files", "count", len(paths))

	registry := safety.NewRegistry()
	ruleConfig, err := loadRuleConfig(registry)
	if err != nil {
		return err
	}

	opts := []reviewer.ReviewOption{
		reviewer.WithRuleConfig(ruleConfig),
		reviewer.WithDegradedMode(viper.GetBool("degraded")),
		reviewer.WithLogger(log),
		reviewer.WithConcurrency(viper.GetInt("concurrency")),
		reviewer.WithMaxDiagnostics(viper.GetInt("max-diagnostics")),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	snapshot, err := loadSnapshot(ctx, log)
	switch {
	case err == nil:
		log.Debug("Loaded schema snapshot", "relations", snapshot.Len())
		opts = append(opts, reviewer.WithSnapshot(snapshot))
	case catalog.IsSnapshotUnavailable(err):
		opts = append(opts, reviewer.WithSnapshotError(err))
	default:
		return err
	}

	result, err := reviewer.New(registry, opts...).ReviewFiles(ctx, paths)
	if err != nil {
		return err
	}

	if err := render(cmd.OutOrStdout(), result, level, outputFormat); err != nil {
		return err
	}

	if viper.GetBool("fail-on-error") && result.HasBlocking() {
		return ErrBlocking
	}
	if viper.GetBool("fail-on-warning") && (result.HasBlocking() || result.HasWarnings()) {
		return ErrBlocking
	}
	return nil
}

// collectSQLFiles expands directories into the *.sql files below them.
// Explicit file arguments are kept whatever their extension.
func collectSQLFiles(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read SQL path: %s", arg)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".sql") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to walk %s", arg)
		}
		sort.Strings(found)
		for _, path := range found {
			add(path)
		}
	}

	if len(paths) == 0 {
		return nil, errors.New("no SQL files found")
	}
	return paths, nil
}

func loadRuleConfig(registry *advisor.Registry) (*config.Config, error) {
	rulesPath := viper.GetString("rules")
	if rulesPath == "" {
		return config.DefaultConfig(), nil
	}

	cfg, err := config.LoadFromFile(rulesPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(registry); err != nil {
		return nil, errors.Wrapf(err, "invalid rules file %s", rulesPath)
	}
	return cfg, nil
}

// loadSnapshot reads the schema from --schema, or from --connection when
// no dump is given.
func loadSnapshot(ctx context.Context, log logger.Interface) (*catalog.Snapshot, error) {
	if path := viper.GetString("schema"); path != "" {
		log.Debug("Loading schema dump", "file", path)
		return catalog.LoadDump(path)
	}

	connString := viper.GetString("connection")
	if connString == "" {
		return nil, &catalog.SnapshotUnavailableError{Reason: "no --schema or --connection given"}
	}

	ctx, cancel := context.WithTimeout(ctx, viper.GetDuration("timeout"))
	defer cancel()

	pool, err := catalog.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	start := time.Now()
	snapshot, err := catalog.Introspect(ctx, pool)
	if err != nil {
		return nil, err
	}
	log.Debug("Introspected database catalog", "relations", snapshot.Len(), "elapsed", time.Since(start))
	return snapshot, nil
}
