package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nsxbet/migration-reviewer/pkg/catalog"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [flags]",
	Short: "Dump the database catalog for offline checks",
	Long: `Read the catalog of a live PostgreSQL database and write it as a dump
that check can load later with --schema.

The format follows the file extension of --file, or --format when set.`,
	Args: cobra.NoArgs,
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringP("connection", "c", "", "PostgreSQL connection string")
	snapshotCmd.Flags().StringP("file", "f", "", "file to write (default stdout)")
	snapshotCmd.Flags().String("format", "", "dump format (json, yaml)")
	snapshotCmd.Flags().Duration("timeout", 30*time.Second, "timeout for reading the database catalog")
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}

	connString := viper.GetString("connection")
	if connString == "" {
		return errors.New("a connection string is required (--connection or DATABASE_URL)")
	}

	path := viper.GetString("file")
	format, err := dumpFormat(viper.GetString("format"), path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, viper.GetDuration("timeout"))
	defer cancel()

	pool, err := catalog.Connect(ctx, connString)
	if err != nil {
		return err
	}
	defer pool.Close()

	rows, err := catalog.IntrospectRows(ctx, pool)
	if err != nil {
		return err
	}
	// Reject catalogs the builder cannot load before writing them out.
	snapshot, err := catalog.BuildSnapshot(rows)
	if err != nil {
		return err
	}
	log.Info("Read database catalog", "relations", snapshot.Len(), "columns", len(rows))

	var w io.Writer = cmd.OutOrStdout()
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", path)
		}
		defer f.Close()
		w = f
	}

	if err := catalog.WriteDump(w, rows, format); err != nil {
		return err
	}
	if path != "" {
		log.Info("Wrote schema dump", "file", path, "format", format)
	}
	return nil
}

// dumpFormat picks the explicit format, then the file extension, then JSON.
func dumpFormat(explicit, path string) (catalog.DumpFormat, error) {
	if explicit != "" {
		return catalog.ParseDumpFormat(explicit)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return catalog.DumpFormatYAML, nil
	default:
		return catalog.DumpFormatJSON, nil
	}
}
