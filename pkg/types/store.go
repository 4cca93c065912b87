package types

import (
	"encoding/json"
	"strings"
)

// Severity represents the severity level of a diagnostic.
// Values are ordered so that a larger value is more severe.
type Severity int32

const (
	Severity_SEVERITY_UNSPECIFIED Severity = 0
	Severity_HINT                 Severity = 1
	Severity_INFO                 Severity = 2
	Severity_WARNING              Severity = 3
	Severity_ERROR                Severity = 4
)

func (s Severity) String() string {
	switch s {
	case Severity_HINT:
		return "HINT"
	case Severity_INFO:
		return "INFO"
	case Severity_WARNING:
		return "WARNING"
	case Severity_ERROR:
		return "ERROR"
	default:
		return "SEVERITY_UNSPECIFIED"
	}
}

// ParseSeverity converts a case-insensitive severity name to a Severity.
// Unknown names map to Severity_SEVERITY_UNSPECIFIED.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HINT":
		return Severity_HINT
	case "INFO", "INFORMATION":
		return Severity_INFO
	case "WARNING", "WARN":
		return Severity_WARNING
	case "ERROR":
		return Severity_ERROR
	default:
		return Severity_SEVERITY_UNSPECIFIED
	}
}

// UnmarshalYAML implements yaml.Unmarshaler for Severity
func (s *Severity) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var str string
	if err := unmarshal(&str); err != nil {
		return err
	}
	*s = ParseSeverity(str)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Severity
func (s Severity) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Severity
func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseSeverity(str)
	return nil
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Category groups rules by the kind of risk they detect.
type Category string

const (
	CategorySafety Category = "safety"
)

// DiagnosticClass separates schema-safety findings from tool trouble.
type DiagnosticClass string

const (
	// DiagnosticClassLint is a finding produced by a rule.
	DiagnosticClassLint DiagnosticClass = "lint"
	// DiagnosticClassParse is a statement that could not be parsed.
	DiagnosticClassParse DiagnosticClass = "parse"
	// DiagnosticClassTooling is a failure inside a rule or the pipeline itself.
	DiagnosticClassTooling DiagnosticClass = "tooling"
)

// Position is a 1-based line and column in a script.
type Position struct {
	Line   int32 `json:"line"   yaml:"line"`
	Column int32 `json:"column" yaml:"column"`
}

// Span is a byte range [Start, End) in a script plus the matching positions.
type Span struct {
	Start         int      `json:"start"         yaml:"start"`
	End           int      `json:"end"           yaml:"end"`
	StartPosition Position `json:"startPosition" yaml:"startPosition"`
	EndPosition   Position `json:"endPosition"   yaml:"endPosition"`
}

// Diagnostic is a single finding reported against a statement.
type Diagnostic struct {
	Rule      string          `json:"rule"               yaml:"rule"`
	Severity  Severity        `json:"severity"           yaml:"severity"`
	Class     DiagnosticClass `json:"class"              yaml:"class"`
	Code      int32           `json:"code"               yaml:"code"`
	File      string          `json:"file,omitempty"     yaml:"file,omitempty"`
	Schema    string          `json:"schema,omitempty"   yaml:"schema,omitempty"`
	Relation  string          `json:"relation,omitempty" yaml:"relation,omitempty"`
	Span      Span            `json:"span"               yaml:"span"`
	Statement int             `json:"statement"          yaml:"statement"`
	Action    int             `json:"action"             yaml:"action"`
	Message   string          `json:"message"            yaml:"message"`
	Hint      string          `json:"hint,omitempty"     yaml:"hint,omitempty"`
}

// IsBlocking reports whether the diagnostic should fail a run.
func (d *Diagnostic) IsBlocking() bool {
	return d.Severity >= Severity_ERROR
}
