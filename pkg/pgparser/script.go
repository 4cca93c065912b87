package pgparser

import (
	"github.com/nsxbet/migration-reviewer/pkg/types"
)

// Script is the parsed form of one migration script.
type Script struct {
	// Statements are the typed statements in source order.
	Statements []*Statement
	// Errors are the statements that failed to parse, in source order.
	Errors []*SyntaxError
	// Count is the number of non-empty statements, parsed or not.
	Count int
}

// Parse splits a script and parses each statement independently. A
// statement that fails to parse is recorded in Errors and parsing resumes
// with the next statement.
//
// A failed statement that runs into the next one because a terminator is
// missing is cut where a line opens with a statement keyword, and the
// pieces that parse on their own are kept as statements.
func Parse(script string) *Script {
	result := &Script{}

	for _, single := range SplitSQL(script) {
		if single.Empty {
			continue
		}

		parsed, err := ParsePostgreSQL(single.Text)
		if err == nil {
			result.add(single, parsed)
			continue
		}
		pieces := splitAtStatementStarts(script, single)
		if len(pieces) == 1 {
			result.addError(err, single)
			continue
		}
		result.recover(script, pieces)
	}
	return result
}

// recover parses the pieces of a statement that failed as a whole. A piece
// that fails is joined to the failed pieces before it and reported once.
func (s *Script) recover(script string, pieces []SingleSQL) {
	var pending *SingleSQL
	flush := func() {
		if pending == nil {
			return
		}
		if parsed, err := ParsePostgreSQL(pending.Text); err != nil {
			s.addError(err, *pending)
		} else {
			s.add(*pending, parsed)
		}
		pending = nil
	}

	for i, piece := range pieces {
		if i > 0 {
			if parsed, err := ParsePostgreSQL(piece.Text); err == nil {
				flush()
				s.add(piece, parsed)
				continue
			}
		}
		if pending == nil {
			p := piece
			pending = &p
			continue
		}
		joined := joinSQL(script, *pending, piece)
		pending = &joined
	}
	flush()
}

func (s *Script) add(single SingleSQL, parsed *ParseResult) {
	ordinal := s.Count
	s.Count++
	for action, node := range Convert(parsed) {
		s.Statements = append(s.Statements, &Statement{
			Node:    node,
			Text:    single.Text,
			Span:    single.Span,
			Ordinal: ordinal,
			Action:  action,
		})
	}
}

func (s *Script) addError(err error, single SingleSQL) {
	ordinal := s.Count
	s.Count++
	s.Errors = append(s.Errors, anchorSyntaxError(err, single, ordinal))
}

// joinSQL covers a and b, which are consecutive parts of script.
func joinSQL(script string, a, b SingleSQL) SingleSQL {
	return SingleSQL{
		Text: script[a.Span.Start:b.Span.End],
		Span: types.Span{
			Start:         a.Span.Start,
			End:           b.Span.End,
			StartPosition: a.Span.StartPosition,
			EndPosition:   b.Span.EndPosition,
		},
	}
}

// anchorSyntaxError moves an error reported against a single statement to
// script coordinates.
func anchorSyntaxError(err error, single SingleSQL, ordinal int) *SyntaxError {
	syntaxErr, ok := err.(*SyntaxError)
	if !ok {
		syntaxErr = &SyntaxError{Message: err.Error()}
	}

	anchored := &SyntaxError{
		Message:   syntaxErr.Message,
		Span:      single.Span,
		Statement: ordinal,
		Text:      single.Text,
	}
	if syntaxErr.Position != nil {
		base := single.Span.StartPosition
		pos := &types.Position{
			Line:   base.Line + syntaxErr.Position.Line - 1,
			Column: syntaxErr.Position.Column,
		}
		if syntaxErr.Position.Line == 1 {
			pos.Column += base.Column - 1
		}
		anchored.Position = pos
	} else {
		start := single.Span.StartPosition
		anchored.Position = &start
	}
	return anchored
}
