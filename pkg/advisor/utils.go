package advisor

import (
	"regexp"
	"strings"
)

const maxLogChars = 1000

var (
	blankRun   = regexp.MustCompile(`[\t ]+`)
	newlineRun = regexp.MustCompile(`\n\s*`)
)

// NormalizeStatement formats and limits the max length of SQL statements for logging.
// It collapses whitespace, drops blank lines, and truncates if too long.
func NormalizeStatement(statement string) string {
	statement = strings.TrimSpace(statement)
	statement = blankRun.ReplaceAllString(statement, " ")
	statement = newlineRun.ReplaceAllString(statement, "\n")

	if len(statement) <= maxLogChars {
		return statement
	}

	// Cut on a rune boundary.
	cut := maxLogChars
	for cut > 0 && !isRuneStart(statement[cut]) {
		cut--
	}
	truncated := statement[:cut]
	if lastNewline := strings.LastIndex(truncated, "\n"); lastNewline > cut-200 {
		truncated = truncated[:lastNewline]
	}
	return truncated + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
