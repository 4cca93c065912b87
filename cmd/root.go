package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nsxbet/migration-reviewer/pkg/logger"
)

const envPrefix = "MIGRATION_REVIEWER"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "migration-reviewer",
	Short: "A schema-aware lint tool for PostgreSQL migrations",
	Long: `Migration Reviewer checks PostgreSQL migration scripts against a snapshot
of the target database catalog.

Each statement is checked against the schema produced by the statements
before it, so a column created and dropped in the same script is not
reported, while dropping a column that clients already use is.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return viper.BindPFlags(cmd.Flags())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.migration-reviewer.yaml or $HOME/.migration-reviewer.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug output")
}

// initConfig reads in .env, the config file and ENV variables if set.
func initConfig() {
	// A missing .env is not an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", logger.Error(err))
	}

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".migration-reviewer")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("connection", envPrefix+"_CONNECTION", "DATABASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			slog.Warn("failed to read config file", "file", viper.ConfigFileUsed(), logger.Error(err))
		}
	} else {
		slog.Debug("using config file", "file", viper.ConfigFileUsed())
	}
}

// newLogger builds the command logger from the log flags and installs it
// as the slog default. It also applies --no-color to the text output.
func newLogger(cmd *cobra.Command) (*logger.Logger, error) {
	if viper.GetBool("no-color") {
		color.NoColor = true
	}

	levelName := viper.GetString("log-level")
	if viper.GetBool("debug") {
		levelName = "debug"
	}
	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	format, err := logger.ParseFormat(viper.GetString("log-format"))
	if err != nil {
		return nil, err
	}

	l := logger.NewWithOptions(logger.Options{
		Level:   level,
		Format:  format,
		Writer:  cmd.ErrOrStderr(),
		NoColor: viper.GetBool("no-color"),
	})
	slog.SetDefault(l.GetSlogLogger())
	return l, nil
}
