// Package pgparser turns PostgreSQL migration scripts into typed statements.
//
// Scripts are split on statement boundaries, each statement is parsed with the
// Bytebase PostgreSQL ANTLR grammar, and the parse tree is converted into the
// small set of statement shapes the safety rules and the schema simulator
// understand. Anything else is kept as Unrecognized.
package pgparser

import (
	"fmt"
	"strings"

	"github.com/antlr4-go/antlr/v4"
	parser "github.com/bytebase/parser/postgresql"

	"github.com/nsxbet/migration-reviewer/pkg/types"
)

// ParseResult contains the parsed SQL statement tree and tokens.
type ParseResult struct {
	Tree   antlr.Tree
	Tokens *antlr.CommonTokenStream
}

// SyntaxError represents a SQL syntax error with position information.
// Position is absolute within the script once the error has been attached
// to a statement by Parse.
type SyntaxError struct {
	Message   string
	Position  *types.Position
	Span      types.Span
	Statement int
	Text      string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if e.Position != nil {
		return fmt.Sprintf("syntax error at line %d, column %d: %s",
			e.Position.Line, e.Position.Column, e.Message)
	}
	return fmt.Sprintf("syntax error: %s", e.Message)
}

// syntaxErrorListener collects the first syntax error reported while parsing.
type syntaxErrorListener struct {
	*antlr.DefaultErrorListener
	err *SyntaxError
}

// SyntaxError is called when a syntax error is encountered.
func (l *syntaxErrorListener) SyntaxError(
	_ antlr.Recognizer,
	_ interface{},
	line, column int,
	msg string,
	_ antlr.RecognitionException,
) {
	if l.err == nil {
		// ANTLR lines are one based and columns zero based.
		l.err = &SyntaxError{
			Message: msg,
			Position: &types.Position{
				Line:   int32(line),
				Column: int32(column + 1),
			},
		}
	}
}

// ParsePostgreSQL parses PostgreSQL text and returns the parse tree.
// Positions in a returned SyntaxError are relative to sql.
//
// Example:
//
//	result, err := pgparser.ParsePostgreSQL("CREATE TABLE users (id INT);")
//	if err != nil {
//	    // Handle syntax error
//	}
//	// Walk result.Tree with a listener
func ParsePostgreSQL(sql string) (*ParseResult, error) {
	inputStream := antlr.NewInputStream(sql)
	lexer := parser.NewPostgreSQLLexer(inputStream)

	lexerErrorListener := &syntaxErrorListener{}
	lexer.RemoveErrorListeners()
	lexer.AddErrorListener(lexerErrorListener)

	stream := antlr.NewCommonTokenStream(lexer, antlr.TokenDefaultChannel)

	p := parser.NewPostgreSQLParser(stream)
	p.BuildParseTrees = true

	parserErrorListener := &syntaxErrorListener{}
	p.RemoveErrorListeners()
	p.AddErrorListener(parserErrorListener)

	tree := p.Root()

	if lexerErrorListener.err != nil {
		return nil, lexerErrorListener.err
	}
	if parserErrorListener.err != nil {
		return nil, parserErrorListener.err
	}
	if tree == nil {
		return nil, &SyntaxError{
			Message: "failed to parse SQL statement",
		}
	}

	return &ParseResult{
		Tree:   tree,
		Tokens: stream,
	}, nil
}

// Normalization functions for PostgreSQL identifiers

// NormalizePostgreSQLQualifiedName normalizes a qualified name (schema.table).
// Returns a slice of name parts (e.g., ["schema", "table"]).
func NormalizePostgreSQLQualifiedName(ctx parser.IQualified_nameContext) []string {
	if ctx == nil {
		return []string{}
	}

	res := []string{NormalizePostgreSQLColid(ctx.Colid())}

	if ctx.Indirection() != nil {
		res = append(res, normalizePostgreSQLIndirection(ctx.Indirection())...)
	}
	return res
}

func normalizePostgreSQLIndirection(ctx parser.IIndirectionContext) []string {
	if ctx == nil {
		return []string{}
	}

	var res []string
	for _, child := range ctx.AllIndirection_el() {
		res = append(res, normalizePostgreSQLIndirectionEl(child))
	}
	return res
}

func normalizePostgreSQLIndirectionEl(ctx parser.IIndirection_elContext) string {
	if ctx == nil {
		return ""
	}

	if ctx.DOT() != nil {
		if ctx.STAR() != nil {
			return "*"
		}
		return normalizePostgreSQLAttrName(ctx.Attr_name())
	}
	return ctx.GetText()
}

func normalizePostgreSQLAttrName(ctx parser.IAttr_nameContext) string {
	if ctx == nil {
		return ""
	}
	return normalizePostgreSQLCollabel(ctx.Collabel())
}

func normalizePostgreSQLCollabel(ctx parser.ICollabelContext) string {
	if ctx == nil {
		return ""
	}
	if ctx.Identifier() != nil {
		return normalizePostgreSQLIdentifier(ctx.Identifier())
	}
	return strings.ToLower(ctx.GetText())
}

// NormalizePostgreSQLColid normalizes a column identifier.
func NormalizePostgreSQLColid(ctx parser.IColidContext) string {
	if ctx == nil {
		return ""
	}

	if ctx.Identifier() != nil {
		return normalizePostgreSQLIdentifier(ctx.Identifier())
	}

	// Keywords used as identifiers are folded like any unquoted name.
	return strings.ToLower(ctx.GetText())
}

// normalizePostgreSQLIdentifier folds unquoted identifiers to lower case and
// strips quotes from quoted ones.
func normalizePostgreSQLIdentifier(ctx parser.IIdentifierContext) string {
	if ctx == nil {
		return ""
	}

	if ctx.QuotedIdentifier() != nil {
		return normalizePostgreSQLQuotedIdentifier(ctx.QuotedIdentifier().GetText())
	}

	if ctx.UnicodeQuotedIdentifier() != nil {
		return normalizePostgreSQLUnicodeQuotedIdentifier(ctx.UnicodeQuotedIdentifier().GetText())
	}

	return strings.ToLower(ctx.GetText())
}

func normalizePostgreSQLQuotedIdentifier(s string) string {
	if len(s) < 2 {
		return s
	}
	return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
}

// normalizePostgreSQLUnicodeQuotedIdentifier handles U&"..." identifiers.
// Escapes inside the identifier are kept as written.
func normalizePostgreSQLUnicodeQuotedIdentifier(s string) string {
	if len(s) > 3 && (s[0] == 'U' || s[0] == 'u') && s[1] == '&' && s[2] == '"' {
		return normalizePostgreSQLQuotedIdentifier(s[2:])
	}
	return s
}

// NormalizePostgreSQLName normalizes a name context.
func NormalizePostgreSQLName(ctx parser.INameContext) string {
	if ctx == nil {
		return ""
	}

	if ctx.Colid() != nil {
		return NormalizePostgreSQLColid(ctx.Colid())
	}

	return ""
}

// NormalizePostgreSQLAnyName normalizes an any_name context.
// Returns a slice of name parts.
func NormalizePostgreSQLAnyName(ctx parser.IAny_nameContext) []string {
	if ctx == nil {
		return nil
	}

	var result []string
	result = append(result, NormalizePostgreSQLColid(ctx.Colid()))
	if ctx.Attrs() != nil {
		for _, item := range ctx.Attrs().AllAttr_name() {
			result = append(result, normalizePostgreSQLAttrName(item))
		}
	}

	return result
}

// NormalizeSchemaName normalizes a schema name, returning "public" for empty schemas.
func NormalizeSchemaName(schemaName string) string {
	if schemaName == "" {
		return "public"
	}
	return schemaName
}
