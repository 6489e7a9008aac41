// Package fulltext parses the search expression embedded in CONTAINS(...).
//
// An expression is a sequence of space-separated terms combined with an
// implicit AND; the upper-case word OR separates top-level disjuncts. A
// leading '-' negates a term and a single- or double-quoted phrase is kept
// as one term with its quotes removed.
//
//	foo bar        Conjunction[foo, bar]
//	foo OR bar     Disjunction[foo, bar]
//	-foo           Negation(foo)
//	'foo bar'      SimpleTerm("foo bar")
package fulltext

import "strings"

// Term is a node of a parsed full-text expression.
//
// Term is a sealed interface; only types in this package implement it.
type Term interface {
	isTerm()
	// String renders the term back into expression syntax.
	String() string
}

// SimpleTerm is a single word or quoted phrase.
type SimpleTerm struct {
	Value string `json:"value"`
}

// Conjunction matches when every term matches.
type Conjunction struct {
	Terms []Term `json:"terms"`
}

// Disjunction matches when any term matches.
type Disjunction struct {
	Terms []Term `json:"terms"`
}

// NegationTerm matches when Term does not.
type NegationTerm struct {
	Term Term `json:"term"`
}

func (SimpleTerm) isTerm()   {}
func (Conjunction) isTerm()  {}
func (Disjunction) isTerm()  {}
func (NegationTerm) isTerm() {}

// IsQuotedPhrase reports whether the term holds more than one word.
func (t SimpleTerm) IsQuotedPhrase() bool {
	return strings.ContainsAny(t.Value, " \t\r\n")
}

func (t SimpleTerm) String() string {
	if t.IsQuotedPhrase() || t.Value == "OR" || strings.HasPrefix(t.Value, "-") {
		return `"` + strings.ReplaceAll(t.Value, `"`, `\"`) + `"`
	}
	return t.Value
}

func (t Conjunction) String() string {
	return join(t.Terms, " ")
}

func (t Disjunction) String() string {
	return join(t.Terms, " OR ")
}

func (t NegationTerm) String() string {
	return "-" + t.Term.String()
}

func join(terms []Term, sep string) string {
	parts := make([]string, len(terms))
	for i, term := range terms {
		if d, ok := term.(Disjunction); ok && sep == " " {
			parts[i] = "(" + d.String() + ")"
			continue
		}
		parts[i] = term.String()
	}
	return strings.Join(parts, sep)
}
