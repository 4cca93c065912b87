package pgparser

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nsxbet/migration-reviewer/pkg/types"
)

// SingleSQL is one statement split from a script.
type SingleSQL struct {
	// Text is the statement text including its terminator, with leading
	// whitespace and comments removed.
	Text string
	// Span locates Text inside the original script.
	Span types.Span
	// Empty is true when the statement holds nothing but a terminator.
	Empty bool
}

// SplitSQL splits a PostgreSQL script on top-level semicolons.
//
// Semicolons inside string literals, quoted identifiers, dollar-quoted
// bodies, comments and parentheses do not end a statement. A trailing
// statement without a terminator is returned as well. Comments and
// whitespace between statements are dropped.
func SplitSQL(script string) []SingleSQL {
	var result []SingleSQL
	lines := newLineIndex(script)

	start := -1
	depth := 0
	emit := func(end int) {
		text := script[start:end]
		result = append(result, SingleSQL{
			Text: text,
			Span: types.Span{
				Start:         start,
				End:           end,
				StartPosition: lines.position(script, start),
				EndPosition:   lines.position(script, end),
			},
			Empty: strings.TrimSpace(strings.TrimSuffix(text, ";")) == "",
		})
		start = -1
		depth = 0
	}

	n := len(script)
	i := 0
	for i < n {
		c := script[i]

		switch {
		case c == '-' && i+1 < n && script[i+1] == '-':
			i = skipLineComment(script, i)
			continue
		case c == '/' && i+1 < n && script[i+1] == '*':
			i = skipBlockComment(script, i)
			continue
		case isSpace(c):
			i++
			continue
		}

		if start < 0 {
			start = i
		}

		switch c {
		case '\'':
			i = skipQuoted(script, i, '\'', isEscapeString(script, i))
		case '"':
			i = skipQuoted(script, i, '"', false)
		case '$':
			if tag, ok := dollarTag(script, i); ok {
				i = skipDollarQuoted(script, i, tag)
			} else {
				i++
			}
		case '(':
			depth++
			i++
		case ')':
			if depth > 0 {
				depth--
			}
			i++
		case ';':
			i++
			if depth == 0 {
				emit(i)
			}
		default:
			i++
		}
	}

	if start >= 0 {
		emit(n)
	}
	return result
}

// statementStarts are the keywords that open a statement. When the value
// is non-nil, the next word must be one of its keys, which keeps ALTER
// COLUMN and DROP CONSTRAINT lines inside their ALTER TABLE.
var statementStarts = map[string]map[string]bool{
	"alter":    objectKinds,
	"create":   createKinds,
	"drop":     objectKinds,
	"comment":  {"on": true},
	"analyze":  nil,
	"begin":    nil,
	"call":     nil,
	"cluster":  nil,
	"commit":   nil,
	"delete":   {"from": true},
	"do":       nil,
	"grant":    nil,
	"insert":   {"into": true},
	"lock":     nil,
	"refresh":  {"materialized": true},
	"reindex":  nil,
	"revoke":   nil,
	"rollback": nil,
	"select":   nil,
	"truncate": nil,
	"update":   nil,
	"vacuum":   nil,
}

var objectKinds = map[string]bool{
	"aggregate": true, "collation": true, "database": true,
	"domain": true, "event": true, "extension": true, "foreign": true,
	"function": true, "index": true, "materialized": true, "policy": true,
	"procedure": true, "publication": true, "role": true, "rule": true,
	"schema": true, "sequence": true, "server": true, "subscription": true,
	"table": true, "trigger": true, "type": true, "user": true, "view": true,
}

var createKinds = func() map[string]bool {
	kinds := map[string]bool{
		"or": true, "unique": true, "temp": true, "temporary": true,
		"unlogged": true, "global": true, "local": true, "recursive": true,
		"constraint": true,
	}
	for kind := range objectKinds {
		kinds[kind] = true
	}
	return kinds
}()

// continuesStatement lists, per statement keyword, the words before it
// that make it part of the current statement, as in CREATE VIEW v AS
// SELECT or CREATE TRIGGER ... BEFORE UPDATE.
var continuesStatement = map[string]map[string]bool{
	"select": {"as": true, "for": true, "on": true, "also": true, "instead": true, "union": true, "all": true, "except": true, "intersect": true, "grant": true, "(": true},
	"insert": {"before": true, "after": true, "for": true, "or": true, "on": true, "also": true, "instead": true, "grant": true},
	"update": {"before": true, "after": true, "for": true, "or": true, "on": true, "also": true, "instead": true, "grant": true},
	"delete": {"before": true, "after": true, "for": true, "or": true, "on": true, "also": true, "instead": true, "grant": true},
}

// startsStatement reports whether word, read at text[end:] onwards, opens a
// new statement after prevWord.
func startsStatement(text string, end int, word, prevWord string) bool {
	next, known := statementStarts[word]
	if !known || continuesStatement[word][prevWord] {
		return false
	}
	if next == nil {
		return true
	}
	return next[nextWord(text, end)]
}

// nextWord returns the lowercased identifier after text[i:], skipping
// whitespace and comments.
func nextWord(text string, i int) string {
	for i < len(text) {
		switch {
		case isSpace(text[i]):
			i++
		case strings.HasPrefix(text[i:], "--"):
			i = skipLineComment(text, i)
		case strings.HasPrefix(text[i:], "/*"):
			i = skipBlockComment(text, i)
		default:
			j := i
			for j < len(text) && isIdentByte(text[j]) {
				j++
			}
			return strings.ToLower(text[i:j])
		}
	}
	return ""
}

// splitAtStatementStarts cuts a statement that lacks its terminator where
// a line opens with a statement keyword, outside literals, comments and
// parentheses. It returns single unchanged when there is no such line.
// script is the text single was split from.
func splitAtStatementStarts(script string, single SingleSQL) []SingleSQL {
	text := single.Text
	base := single.Span.Start
	lines := newLineIndex(script)

	var cuts []int
	depth := 0
	lineStart := false
	prevWord := ""
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\n':
			lineStart = true
			i++
			continue
		case isSpace(c):
			i++
			continue
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			i = skipLineComment(text, i)
			lineStart = true
			continue
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			i = skipBlockComment(text, i)
			continue
		}

		atLineStart := lineStart
		lineStart = false
		switch {
		case c == '\'':
			i = skipQuoted(text, i, '\'', isEscapeString(text, i))
		case c == '"':
			i = skipQuoted(text, i, '"', false)
		case c == '$':
			if tag, ok := dollarTag(text, i); ok {
				i = skipDollarQuoted(text, i, tag)
			} else {
				i++
			}
		case c == '(':
			depth++
			prevWord = "("
			i++
		case c == ')':
			if depth > 0 {
				depth--
			}
			prevWord = ")"
			i++
		case isIdentByte(c) && !isDigit(c):
			j := i
			for j < len(text) && isIdentByte(text[j]) {
				j++
			}
			word := strings.ToLower(text[i:j])
			if atLineStart && depth == 0 && startsStatement(text, j, word, prevWord) {
				cuts = append(cuts, i)
			}
			prevWord = word
			i = j
		default:
			prevWord = ""
			i++
		}
	}
	if len(cuts) == 0 {
		return []SingleSQL{single}
	}

	bounds := append([]int{0}, cuts...)
	bounds = append(bounds, len(text))
	pieces := make([]SingleSQL, 0, len(bounds)-1)
	for k := 0; k+1 < len(bounds); k++ {
		piece := strings.TrimRightFunc(text[bounds[k]:bounds[k+1]], unicode.IsSpace)
		start := base + bounds[k]
		end := start + len(piece)
		pieces = append(pieces, SingleSQL{
			Text: piece,
			Span: types.Span{
				Start:         start,
				End:           end,
				StartPosition: lines.position(script, start),
				EndPosition:   lines.position(script, end),
			},
			Empty: strings.TrimSpace(strings.TrimSuffix(piece, ";")) == "",
		})
	}
	return pieces
}

func skipLineComment(s string, i int) int {
	if idx := strings.IndexByte(s[i:], '\n'); idx >= 0 {
		return i + idx + 1
	}
	return len(s)
}

// skipBlockComment skips a block comment. PostgreSQL block comments nest.
func skipBlockComment(s string, i int) int {
	depth := 0
	for i < len(s) {
		switch {
		case strings.HasPrefix(s[i:], "/*"):
			depth++
			i += 2
		case strings.HasPrefix(s[i:], "*/"):
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return len(s)
}

// skipQuoted skips a literal opened by quote at s[i]. A doubled quote is an
// escaped quote. In E'' strings a backslash escapes the next byte.
func skipQuoted(s string, i int, quote byte, backslash bool) int {
	i++
	for i < len(s) {
		switch s[i] {
		case '\\':
			if backslash {
				i += 2
				continue
			}
		case quote:
			if i+1 < len(s) && s[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(s)
}

// isEscapeString reports whether the quote at s[i] opens an E'' string.
func isEscapeString(s string, i int) bool {
	if i == 0 || (s[i-1] != 'e' && s[i-1] != 'E') {
		return false
	}
	return i == 1 || !isIdentByte(s[i-2])
}

// dollarTag returns the opening tag ($$ or $name$) starting at s[i].
// Positional parameters such as $1 are not tags.
func dollarTag(s string, i int) (string, bool) {
	if i > 0 && isIdentByte(s[i-1]) {
		return "", false
	}
	j := i + 1
	if j < len(s) && !isDigit(s[j]) {
		for j < len(s) && isIdentByte(s[j]) {
			j++
		}
	}
	if j < len(s) && s[j] == '$' {
		return s[i : j+1], true
	}
	return "", false
}

func skipDollarQuoted(s string, i int, tag string) int {
	bodyStart := i + len(tag)
	if idx := strings.Index(s[bodyStart:], tag); idx >= 0 {
		return bodyStart + idx + len(tag)
	}
	return len(s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentByte(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

// lineIndex holds the byte offset of the first byte of every line.
type lineIndex []int

func newLineIndex(s string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

// position converts a byte offset into a 1-based line and rune column.
func (l lineIndex) position(s string, offset int) types.Position {
	if offset > len(s) {
		offset = len(s)
	}
	line := sort.Search(len(l), func(i int) bool { return l[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	return types.Position{
		Line:   int32(line + 1),
		Column: int32(utf8.RuneCountInString(s[l[line]:offset]) + 1),
	}
}
