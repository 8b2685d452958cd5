// Package rule parses the compact match-rule syntax used by policy
// definitions, e.g. "amount(100..5000) tags(urgent|capex)".  A rule is a
// whitespace-separated list of clauses; amount bounds are inclusive and
// either side of the range may be omitted.
package rule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/parsly"

	"github.com/gearmill/stagegate/model"
)

// Parse parses a match rule into policy criteria.
func Parse(input []byte) (*model.Criteria, error) {
	cursor := parsly.NewCursor("", input, 0)
	criteria := &model.Criteria{}
	clauses := 0

	for {
		// Skip separating whitespace and stop at end of input
		cursor.MatchOne(whitespaceToken)
		if cursor.Pos >= cursor.InputSize {
			break
		}

		// Match the clause name
		matched := cursor.MatchOne(identifierToken)
		if matched.Code != identifierToken.Code {
			return nil, cursor.NewError(identifierToken)
		}
		clause := strings.ToLower(matched.Text(cursor))

		// Match the opening parenthesis
		matched = cursor.MatchAfterOptional(whitespaceToken, openParenToken)
		if matched.Code != openParenToken.Code {
			return nil, cursor.NewError(openParenToken)
		}

		switch clause {
		case "amount":
			if err := parseAmount(cursor, criteria); err != nil {
				return nil, err
			}
		case "tags":
			if err := parseTags(cursor, criteria); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown rule clause %q", clause)
		}
		clauses++
	}

	if clauses == 0 {
		return nil, fmt.Errorf("empty match rule")
	}
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	return criteria, nil
}

// parseAmount parses the bounds of an amount(min..max) clause
func parseAmount(cursor *parsly.Cursor, criteria *model.Criteria) error {
	// Lower bound is optional
	matched := cursor.MatchOne(numberToken)
	if matched.Code == numberToken.Code {
		value, err := strconv.ParseFloat(matched.Text(cursor), 64)
		if err != nil {
			return fmt.Errorf("invalid amount lower bound: %w", err)
		}
		criteria.MinAmount = &value
	}

	// Match the range separator
	matched = cursor.MatchOne(rangeToken)
	if matched.Code != rangeToken.Code {
		return cursor.NewError(rangeToken)
	}

	// Upper bound is optional
	matched = cursor.MatchOne(numberToken)
	if matched.Code == numberToken.Code {
		value, err := strconv.ParseFloat(matched.Text(cursor), 64)
		if err != nil {
			return fmt.Errorf("invalid amount upper bound: %w", err)
		}
		criteria.MaxAmount = &value
	}

	if criteria.MinAmount == nil && criteria.MaxAmount == nil {
		return fmt.Errorf("amount clause requires at least one bound")
	}

	// Match the closing parenthesis
	matched = cursor.MatchOne(closeParenToken)
	if matched.Code != closeParenToken.Code {
		return cursor.NewError(closeParenToken)
	}
	return nil
}

// parseTags parses the alternatives of a tags(a|b|c) clause
func parseTags(cursor *parsly.Cursor, criteria *model.Criteria) error {
	for {
		matched := cursor.MatchOne(tagToken)
		if matched.Code != tagToken.Code {
			return cursor.NewError(tagToken)
		}
		criteria.Tags = append(criteria.Tags, matched.Text(cursor))

		matched = cursor.MatchAny(pipeToken, closeParenToken)
		switch matched.Code {
		case pipeToken.Code:
			continue
		case closeParenToken.Code:
			return nil
		default:
			return cursor.NewError(closeParenToken)
		}
	}
}
