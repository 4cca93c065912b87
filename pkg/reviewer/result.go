package reviewer

import (
	"fmt"
	"sort"

	"github.com/nsxbet/migration-reviewer/pkg/types"
)

// ReviewResult contains the results of a migration review.
//
// Diagnostics are ordered by schema (descending), relation, file, source
// offset, sub-command and rule id.
type ReviewResult struct {
	// Diagnostics contains the findings kept after deduplication and the
	// diagnostic cap. Empty if no issues were found.
	Diagnostics []*types.Diagnostic `json:"diagnostics" yaml:"diagnostics"`

	// Summary provides aggregate statistics about the findings.
	Summary Summary `json:"summary" yaml:"summary"`
}

// Summary provides aggregate statistics about review findings.
//
// Severity and class counts cover every diagnostic, including the ones
// dropped by the cap.
type Summary struct {
	// Total number of diagnostics before the cap.
	Total int `json:"total" yaml:"total"`

	Errors   int `json:"errors" yaml:"errors"`
	Warnings int `json:"warnings" yaml:"warnings"`
	Infos    int `json:"infos" yaml:"infos"`
	Hints    int `json:"hints" yaml:"hints"`

	Lint    int `json:"lint" yaml:"lint"`
	Parse   int `json:"parse" yaml:"parse"`
	Tooling int `json:"tooling" yaml:"tooling"`

	// Files and Statements count what was reviewed.
	Files      int `json:"files" yaml:"files"`
	Statements int `json:"statements" yaml:"statements"`

	// Skipped is the number of diagnostics dropped by the cap.
	Skipped int `json:"skipped" yaml:"skipped"`
}

// newResult orders and dedupes diagnostics, then applies the cap.
func newResult(diagnostics []*types.Diagnostic, files, statements, maxDiagnostics int) *ReviewResult {
	sortDiagnostics(diagnostics)
	diagnostics = dedupe(diagnostics)

	summary := calculateSummary(diagnostics)
	summary.Files = files
	summary.Statements = statements

	if maxDiagnostics > 0 && len(diagnostics) > maxDiagnostics {
		summary.Skipped = len(diagnostics) - maxDiagnostics
		diagnostics = diagnostics[:maxDiagnostics]
	}
	if diagnostics == nil {
		diagnostics = []*types.Diagnostic{}
	}
	return &ReviewResult{Diagnostics: diagnostics, Summary: summary}
}

func sortDiagnostics(diagnostics []*types.Diagnostic) {
	sort.SliceStable(diagnostics, func(i, j int) bool {
		a, b := diagnostics[i], diagnostics[j]
		if a.Schema != b.Schema {
			return a.Schema > b.Schema
		}
		if a.Relation != b.Relation {
			return a.Relation < b.Relation
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if a.Action != b.Action {
			return a.Action < b.Action
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})
}

type diagnosticKey struct {
	rule, file, schema, relation, message string
	start, action                         int
}

// dedupe drops repeated diagnostics. Input must be sorted.
func dedupe(diagnostics []*types.Diagnostic) []*types.Diagnostic {
	seen := make(map[diagnosticKey]bool, len(diagnostics))
	out := diagnostics[:0]
	for _, d := range diagnostics {
		key := diagnosticKey{
			rule:     d.Rule,
			file:     d.File,
			schema:   d.Schema,
			relation: d.Relation,
			message:  d.Message,
			start:    d.Span.Start,
			action:   d.Action,
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

// calculateSummary computes aggregate statistics from diagnostics
func calculateSummary(diagnostics []*types.Diagnostic) Summary {
	summary := Summary{}
	for _, d := range diagnostics {
		summary.Total++
		switch d.Severity {
		case types.Severity_ERROR:
			summary.Errors++
		case types.Severity_WARNING:
			summary.Warnings++
		case types.Severity_INFO:
			summary.Infos++
		case types.Severity_HINT:
			summary.Hints++
		}
		switch d.Class {
		case types.DiagnosticClassLint:
			summary.Lint++
		case types.DiagnosticClassParse:
			summary.Parse++
		case types.DiagnosticClassTooling:
			summary.Tooling++
		}
	}
	return summary
}

// HasBlocking returns true if any diagnostic, kept or skipped, is at error
// severity.
//
// This is useful for CI/CD pipelines that should fail on errors:
//
//	if result.HasBlocking() {
//	    os.Exit(1)
//	}
func (r *ReviewResult) HasBlocking() bool {
	return r.Summary.Errors > 0
}

// HasWarnings returns true if the review found any WARNING-level findings.
func (r *ReviewResult) HasWarnings() bool {
	return r.Summary.Warnings > 0
}

// IsClean returns true if the review found nothing at all.
func (r *ReviewResult) IsClean() bool {
	return r.Summary.Total == 0
}

// String returns a human-readable summary of the review results.
//
// Example output:
//
//	Review Results: 5 total (2 errors, 3 warnings, 0 infos, 0 hints) in 1 files, 7 statements
func (r *ReviewResult) String() string {
	s := fmt.Sprintf(
		"Review Results: %d total (%d errors, %d warnings, %d infos, %d hints) in %d files, %d statements",
		r.Summary.Total,
		r.Summary.Errors,
		r.Summary.Warnings,
		r.Summary.Infos,
		r.Summary.Hints,
		r.Summary.Files,
		r.Summary.Statements,
	)
	if r.Summary.Skipped > 0 {
		s += fmt.Sprintf(", %d not shown", r.Summary.Skipped)
	}
	return s
}

// FilterBySeverity returns the kept diagnostics at or above level.
//
//	blocking := result.FilterBySeverity(types.Severity_ERROR)
func (r *ReviewResult) FilterBySeverity(level types.Severity) []*types.Diagnostic {
	filtered := make([]*types.Diagnostic, 0)
	for _, d := range r.Diagnostics {
		if d.Severity >= level {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// FilterByCode returns the kept diagnostics with the specified code.
//
// This is useful for checking specific rule violations:
//
//	syntaxErrors := result.FilterByCode(advisor.StatementSyntaxError.Int32())
func (r *ReviewResult) FilterByCode(code int32) []*types.Diagnostic {
	filtered := make([]*types.Diagnostic, 0)
	for _, d := range r.Diagnostics {
		if d.Code == code {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// FilterByRule returns the kept diagnostics produced by rule.
func (r *ReviewResult) FilterByRule(rule string) []*types.Diagnostic {
	filtered := make([]*types.Diagnostic, 0)
	for _, d := range r.Diagnostics {
		if d.Rule == rule {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
