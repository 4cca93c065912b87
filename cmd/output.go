package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nsxbet/migration-reviewer/pkg/reviewer"
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

// report is the JSON and YAML document printed by check.
type report struct {
	Diagnostics []*types.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
	Summary     reviewer.Summary    `json:"summary" yaml:"summary"`
}

func validateOutputFormat(format string) error {
	switch format {
	case "text", "json", "yaml":
		return nil
	default:
		return errors.Errorf("unsupported output format: %s", format)
	}
}

// render prints the diagnostics at or above level. The summary always
// covers the whole result.
func render(w io.Writer, result *reviewer.ReviewResult, level types.Severity, format string) error {
	diagnostics := result.FilterBySeverity(level)
	switch format {
	case "json":
		return outputJSON(w, diagnostics, result.Summary)
	case "yaml":
		return outputYAML(w, diagnostics, result.Summary)
	case "text":
		return outputText(w, diagnostics, result.Summary)
	default:
		return errors.Errorf("unsupported output format: %s", format)
	}
}

func outputJSON(w io.Writer, diagnostics []*types.Diagnostic, summary reviewer.Summary) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report{Diagnostics: diagnostics, Summary: summary})
}

func outputYAML(w io.Writer, diagnostics []*types.Diagnostic, summary reviewer.Summary) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(report{Diagnostics: diagnostics, Summary: summary}); err != nil {
		return err
	}
	return encoder.Close()
}

func severityColor(severity types.Severity) *color.Color {
	switch severity {
	case types.Severity_ERROR:
		return color.New(color.FgRed, color.Bold)
	case types.Severity_WARNING:
		return color.New(color.FgYellow, color.Bold)
	case types.Severity_INFO:
		return color.New(color.FgBlue, color.Bold)
	default:
		return color.New(color.FgCyan)
	}
}

func outputText(w io.Writer, diagnostics []*types.Diagnostic, summary reviewer.Summary) error {
	faint := color.New(color.Faint)
	bold := color.New(color.Bold)

	if len(diagnostics) == 0 {
		color.New(color.FgGreen, color.Bold).Fprintln(w, "No issues found.")
	}

	for _, d := range diagnostics {
		location := d.File
		if location == "" {
			location = "<input>"
		}
		location = fmt.Sprintf("%s:%d:%d", location, d.Span.StartPosition.Line, d.Span.StartPosition.Column)

		faint.Fprint(w, location+" ")
		severityColor(d.Severity).Fprintf(w, "[%s]", d.Severity)
		bold.Fprintf(w, " %s", d.Rule)
		if d.Relation != "" {
			fmt.Fprintf(w, " (%s.%s)", d.Schema, d.Relation)
		}
		fmt.Fprintln(w)

		fmt.Fprintf(w, "  %s\n", d.Message)
		if d.Hint != "" {
			faint.Fprintf(w, "  hint: %s\n", d.Hint)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Summary: %d error(s), %d warning(s), %d info, %d hint(s) in %d file(s), %d statement(s)\n",
		summary.Errors, summary.Warnings, summary.Infos, summary.Hints, summary.Files, summary.Statements)
	if summary.Parse > 0 || summary.Tooling > 0 {
		fmt.Fprintf(w, "  %d parse error(s), %d rule failure(s)\n", summary.Parse, summary.Tooling)
	}
	if summary.Skipped > 0 {
		faint.Fprintf(w, "  %d more diagnostic(s) not shown, raise --max-diagnostics to see them\n", summary.Skipped)
	}
	return nil
}
