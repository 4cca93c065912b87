package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nsxbet/migration-reviewer/pkg/advisor"
	"github.com/nsxbet/migration-reviewer/pkg/config"
	"github.com/nsxbet/migration-reviewer/pkg/rules/safety"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [flags]",
	Short: "List the available rules",
	Long: `List every registered rule with its default severity, whether it is
enabled by default and whether it needs a schema snapshot.

With --template, print a rules configuration that spells out the default
settings of every rule instead. Edit it and pass it to check --rules.`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)

	rulesCmd.Flags().Bool("template", false, "print a rules configuration template")
	rulesCmd.Flags().String("format", "yaml", "template format (yaml, json)")
	rulesCmd.Flags().StringP("rules", "r", "", "show the effective settings of this rules configuration file")
}

func runRules(cmd *cobra.Command, _ []string) error {
	if _, err := newLogger(cmd); err != nil {
		return err
	}

	registry := safety.NewRegistry()
	if viper.GetBool("template") {
		return config.Write(cmd.OutOrStdout(), config.Template(registry.Rules()), viper.GetString("format"))
	}

	ruleConfig, err := loadRuleConfig(registry)
	if err != nil {
		return err
	}
	return listRules(cmd.OutOrStdout(), registry.Rules(), ruleConfig)
}

func listRules(w io.Writer, rules []advisor.Rule, ruleConfig advisor.RuleConfig) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tENABLED\tLEVEL\tSCHEMA\tDESCRIPTION")
	for _, rule := range rules {
		meta := rule.Metadata()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			meta.ID,
			yesNo(ruleConfig.IsEnabled(meta)),
			ruleConfig.Severity(meta),
			yesNo(meta.RequiresSchema),
			meta.Description,
		)
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
