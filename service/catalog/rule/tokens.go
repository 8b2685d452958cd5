package rule

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	whitespaceCode = iota
	identifierCode
	openParenCode
	closeParenCode
	numberCode
	rangeCode
	pipeCode
	tagCode
)

// Token definitions
var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	identifierToken = parsly.NewToken(identifierCode, "Identifier", newIdentifierMatcher())
	openParenToken  = parsly.NewToken(openParenCode, "(", matcher.NewByte('('))
	closeParenToken = parsly.NewToken(closeParenCode, ")", matcher.NewByte(')'))
	numberToken     = parsly.NewToken(numberCode, "Number", newNumberMatcher())
	rangeToken      = parsly.NewToken(rangeCode, "..", newRangeMatcher())
	pipeToken       = parsly.NewToken(pipeCode, "|", matcher.NewByte('|'))
	tagToken        = parsly.NewToken(tagCode, "Tag", newTagMatcher())
)

// Custom matchers
func newIdentifierMatcher() parsly.Matcher {
	return &identifierMatcher{}
}

func newNumberMatcher() parsly.Matcher {
	return &numberMatcher{}
}

func newRangeMatcher() parsly.Matcher {
	return &rangeMatcher{}
}

func newTagMatcher() parsly.Matcher {
	return &tagMatcher{}
}

// identifierMatcher matches clause names such as amount or tags
type identifierMatcher struct{}

func (m *identifierMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}

	// First character must be a letter or underscore
	if !isLetter(input[pos]) && input[pos] != '_' {
		return 0
	}

	matched := 1
	for i := pos + 1; i < size; i++ {
		if isLetter(input[i]) || isDigit(input[i]) || input[i] == '_' {
			matched++
			continue
		}
		break
	}

	return matched
}

// numberMatcher matches a decimal literal; the dot is only consumed when a
// digit follows so that range separators stay intact
type numberMatcher struct{}

func (m *numberMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}

	matched := 0
	if input[pos] == '-' {
		if pos+1 >= size || !isDigit(input[pos+1]) {
			return 0
		}
		matched++
	}

	digits := 0
	for i := pos + matched; i < size; i++ {
		if isDigit(input[i]) {
			matched++
			digits++
			continue
		}
		if input[i] == '.' && digits > 0 && i+1 < size && isDigit(input[i+1]) {
			matched++
			digits = 0
			continue
		}
		break
	}

	if digits == 0 {
		return 0
	}
	return matched
}

// rangeMatcher matches the two-dot range separator
type rangeMatcher struct{}

func (m *rangeMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos

	if pos+1 >= cursor.InputSize {
		return 0
	}
	if input[pos] == '.' && input[pos+1] == '.' {
		return 2
	}
	return 0
}

// tagMatcher matches a tag literal inside a tags(...) clause
type tagMatcher struct{}

func (m *tagMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}

	matched := 0
	for i := pos; i < size; i++ {
		c := input[i]
		if isLetter(c) || isDigit(c) || c == '_' || c == '-' || c == '.' {
			matched++
			continue
		}
		break
	}

	return matched
}

// Helper functions
func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
