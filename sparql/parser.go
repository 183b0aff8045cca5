/*
 * FedHDT
 *
 * Copyright 2025 The FedHDT Authors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package sparql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/knakk/rdf"

	"github.com/fedhdt/fedhdt/store"
)

/*
Error models a parser related error.
*/
type Error struct {
	Source string // Name of the source which was given to the parser
	Type   error  // Error type (to be used for equal checks)
	Detail string // Details of this error
	Line   int    // Line of the error
	Pos    int    // Position of the error
}

/*
Error returns a human-readable string representation of this error.
*/
func (pe *Error) Error() string {
	var ret string

	if pe.Detail != "" {
		ret = fmt.Sprintf("Parse error in %s: %v (%v)", pe.Source, pe.Type, pe.Detail)
	} else {
		ret = fmt.Sprintf("Parse error in %s: %v", pe.Source, pe.Type)
	}

	if pe.Line != 0 {
		return fmt.Sprintf("%s (Line:%d Pos:%d)", ret, pe.Line, pe.Pos)
	}

	return ret
}

/*
Parser related error types
*/
var (
	ErrUnexpectedEnd   = errors.New("Unexpected end")
	ErrLexicalError    = errors.New("Lexical error")
	ErrUnexpectedToken = errors.New("Unexpected term")
	ErrUnknownPrefix   = errors.New("Unknown prefix")
	ErrUnsupported     = errors.New("Unsupported language feature")
)

/*
QueryVerb is the form of a query.
*/
type QueryVerb int

/*
Available query forms
*/
const (
	SelectQuery QueryVerb = iota
	AskQuery
	ConstructQuery
)

/*
TermKind classifies a pattern component.
*/
type TermKind int

/*
Available pattern component kinds
*/
const (
	TermNone     TermKind = iota // Unscoped (graph component only)
	TermValue                    // Ground term in internal representation
	TermVariable                 // Query variable
)

/*
Term is a single component of a triple pattern.
*/
type Term struct {
	Kind  TermKind
	Name  string // Variable name
	Value string // Internal representation of a ground term
}

/*
TriplePattern is a triple pattern with an optional graph scope. A graph
component of kind TermNone matches all graphs of the dataset.
*/
type TriplePattern struct {
	Subject   Term
	Predicate Term
	Object    Term
	Graph     Term
}

/*
Query is the parsed form of a query request.
*/
type Query struct {
	Verb      QueryVerb
	Variables []string        // Projected variables for SELECT (nil means all)
	Distinct  bool            // Remove duplicate solutions
	Template  []TriplePattern // Template of a CONSTRUCT query
	Where     []TriplePattern // Basic graph pattern of the query
	Limit     int             // Maximum number of solutions (-1 means no limit)
}

/*
parser data structure
*/
type parser struct {
	name     string            // Name of the source
	tokens   chan LexToken     // Lexer token channel
	token    LexToken          // Current lookahead token
	prefixes map[string]string // Declared prefixes
}

/*
ParseQuery parses a query request.
*/
func ParseQuery(name string, input string) (*Query, error) {
	p := &parser{name, Lex(name, input), LexToken{}, make(map[string]string)}
	defer p.drain()

	if err := p.advance(); err != nil {
		return nil, err
	}

	if err := p.parsePrologue(); err != nil {
		return nil, err
	}

	q := &Query{Limit: -1}

	switch {

	case p.isKeyword("select"):
		if err := p.parseSelect(q); err != nil {
			return nil, err
		}

	case p.isKeyword("ask"):
		if err := p.parseAsk(q); err != nil {
			return nil, err
		}

	case p.isKeyword("construct"):
		if err := p.parseConstruct(q); err != nil {
			return nil, err
		}

	default:
		return nil, p.newError(ErrUnexpectedToken, p.token.String())
	}

	if err := p.parseModifiers(q); err != nil {
		return nil, err
	}

	if p.token.ID != TokenEOF {
		return nil, p.newError(ErrUnexpectedToken, p.token.String())
	}

	return q, nil
}

/*
advance reads the next token from the lexer.
*/
func (p *parser) advance() error {
	token, more := <-p.tokens

	if !more {
		token = LexToken{ID: TokenEOF}
	}

	if token.ID == TokenError {
		p.token = token
		return p.newError(ErrLexicalError, token.Val)
	}

	p.token = token

	return nil
}

/*
drain consumes all remaining tokens so the lexer goroutine can finish.
Must be called once parsing is over - the lexer blocks on its unbuffered
token channel and would leak if the parser bails out on an error.
*/
func (p *parser) drain() {
	for range p.tokens {
	}
}

/*
newError creates a parser error at the current token.
*/
func (p *parser) newError(t error, d string) error {
	return &Error{p.name, t, d, p.token.Lline, p.token.Lpos}
}

/*
isKeyword checks if the current token is a given keyword. Keywords are
case insensitive.
*/
func (p *parser) isKeyword(word string) bool {
	return p.token.ID == TokenIdent && strings.EqualFold(p.token.Val, word)
}

/*
acceptKeyword consumes the current token if it is a given keyword.
*/
func (p *parser) acceptKeyword(word string) (bool, error) {
	if !p.isKeyword(word) {
		return false, nil
	}

	return true, p.advance()
}

/*
expectKeyword consumes the current token if it is a given keyword and
fails otherwise.
*/
func (p *parser) expectKeyword(word string) error {
	if !p.isKeyword(word) {
		return p.newError(ErrUnexpectedToken,
			fmt.Sprintf("%v expected but got %v", strings.ToUpper(word), p.token))
	}

	return p.advance()
}

/*
expect consumes the current token if it has a given ID and fails
otherwise.
*/
func (p *parser) expect(id LexTokenID, what string) error {
	if p.token.ID != id {
		if p.token.ID == TokenEOF {
			return p.newError(ErrUnexpectedEnd, what+" expected")
		}

		return p.newError(ErrUnexpectedToken,
			fmt.Sprintf("%v expected but got %v", what, p.token))
	}

	return p.advance()
}

/*
parsePrologue parses the prologue of a request. Only prefix declarations
are supported.
*/
func (p *parser) parsePrologue() error {
	for {
		if p.isKeyword("base") {
			return p.newError(ErrUnsupported, "BASE declarations")
		}

		ok, err := p.acceptKeyword("prefix")
		if err != nil {
			return err
		} else if !ok {
			return nil
		}

		if p.token.ID != TokenIdent || !strings.HasSuffix(p.token.Val, ":") {
			return p.newError(ErrUnexpectedToken, "Prefix name expected")
		}

		name := strings.TrimSuffix(p.token.Val, ":")

		if err := p.advance(); err != nil {
			return err
		}

		if p.token.ID != TokenIRIRef {
			return p.newError(ErrUnexpectedToken, "Prefix IRI expected")
		}

		p.prefixes[name] = p.token.Val

		if err := p.advance(); err != nil {
			return err
		}
	}
}

/*
parseSelect parses a SELECT query after the verb keyword.
*/
func (p *parser) parseSelect(q *Query) error {
	q.Verb = SelectQuery

	if err := p.advance(); err != nil {
		return err
	}

	ok, err := p.acceptKeyword("distinct")
	if err != nil {
		return err
	}
	q.Distinct = ok

	if p.token.ID == TokenTimes {
		if err := p.advance(); err != nil {
			return err
		}

	} else if p.token.ID == TokenVariable {

		for p.token.ID == TokenVariable {
			q.Variables = append(q.Variables, p.token.Val)

			if err := p.advance(); err != nil {
				return err
			}
		}

	} else {
		return p.newError(ErrUnexpectedToken, "Projection expected")
	}

	return p.parseWhere(q)
}

/*
parseAsk parses an ASK query after the verb keyword.
*/
func (p *parser) parseAsk(q *Query) error {
	q.Verb = AskQuery

	if err := p.advance(); err != nil {
		return err
	}

	return p.parseWhere(q)
}

/*
parseConstruct parses a CONSTRUCT query after the verb keyword.
*/
func (p *parser) parseConstruct(q *Query) error {
	q.Verb = ConstructQuery

	if err := p.advance(); err != nil {
		return err
	}

	template, err := p.parseGroupGraphPattern(Term{}, false)
	if err != nil {
		return err
	}

	q.Template = template

	return p.parseWhere(q)
}

/*
parseWhere parses the WHERE clause of a query. The WHERE keyword itself
is optional.
*/
func (p *parser) parseWhere(q *Query) error {
	if _, err := p.acceptKeyword("where"); err != nil {
		return err
	}

	where, err := p.parseGroupGraphPattern(Term{}, true)
	if err != nil {
		return err
	}

	q.Where = where

	return nil
}

/*
parseModifiers parses trailing solution modifiers.
*/
func (p *parser) parseModifiers(q *Query) error {
	ok, err := p.acceptKeyword("limit")
	if err != nil {
		return err
	} else if !ok {
		return nil
	}

	if p.token.ID != TokenNumber {
		return p.newError(ErrUnexpectedToken, "Limit value expected")
	}

	limit, err := strconv.Atoi(p.token.Val)
	if err != nil || limit < 0 {
		return p.newError(ErrUnexpectedToken, "Limit value expected")
	}

	q.Limit = limit

	return p.advance()
}

/*
parseGroupGraphPattern parses a brace delimited block of triple patterns.
GRAPH sub blocks are flattened into the result with their scope set on
each contained pattern. They are only allowed on the top level of a WHERE
clause.
*/
func (p *parser) parseGroupGraphPattern(graph Term, allowGraph bool) ([]TriplePattern, error) {
	var patterns []TriplePattern

	if err := p.expect(TokenLBrace, "Group start"); err != nil {
		return nil, err
	}

	for p.token.ID != TokenRBrace {

		if p.token.ID == TokenEOF {
			return nil, p.newError(ErrUnexpectedEnd, "Group end expected")
		}

		if p.isKeyword("graph") {

			if !allowGraph || graph.Kind != TermNone {
				return nil, p.newError(ErrUnsupported, "Nested GRAPH blocks")
			}

			if err := p.advance(); err != nil {
				return nil, err
			}

			scope, err := p.parseGraphScope()
			if err != nil {
				return nil, err
			}

			sub, err := p.parseGroupGraphPattern(scope, false)
			if err != nil {
				return nil, err
			}

			patterns = append(patterns, sub...)

		} else {

			sub, err := p.parseTriplesSameSubject(graph)
			if err != nil {
				return nil, err
			}

			patterns = append(patterns, sub...)
		}

		if p.token.ID == TokenDot {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}

	return patterns, p.advance()
}

/*
parseGraphScope parses the scope term of a GRAPH block.
*/
func (p *parser) parseGraphScope() (Term, error) {
	if p.token.ID == TokenVariable {
		scope := Term{Kind: TermVariable, Name: p.token.Val}
		return scope, p.advance()
	}

	if p.token.ID == TokenIRIRef || p.token.ID == TokenIdent {
		return p.parseTerm()
	}

	return Term{}, p.newError(ErrUnexpectedToken, "Graph name expected")
}

/*
parseTriplesSameSubject parses a subject with its predicate and object
lists.
*/
func (p *parser) parseTriplesSameSubject(graph Term) ([]TriplePattern, error) {
	var patterns []TriplePattern

	subject, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for {
		predicate, err := p.parseTerm()
		if err != nil {
			return nil, err
		}

		for {
			object, err := p.parseTerm()
			if err != nil {
				return nil, err
			}

			patterns = append(patterns, TriplePattern{subject, predicate, object, graph})

			if p.token.ID != TokenComma {
				break
			}

			if err := p.advance(); err != nil {
				return nil, err
			}
		}

		if p.token.ID != TokenSemicolon {
			return patterns, nil
		}

		if err := p.advance(); err != nil {
			return nil, err
		}

		// A trailing semicolon before the end of the block is allowed

		if p.token.ID == TokenDot || p.token.ID == TokenRBrace {
			return patterns, nil
		}
	}
}

/*
parseTerm parses a single pattern component.
*/
func (p *parser) parseTerm() (Term, error) {

	switch p.token.ID {

	case TokenVariable:
		t := Term{Kind: TermVariable, Name: p.token.Val}
		return t, p.advance()

	case TokenIRIRef:
		t := Term{Kind: TermValue, Value: p.token.Val}
		return t, p.advance()

	case TokenBlankNode:
		t := Term{Kind: TermValue, Value: "_:" + p.token.Val}
		return t, p.advance()

	case TokenLiteral:
		return p.parseLiteralTerm()

	case TokenNumber:
		val := p.token.Val

		datatype := xsdInteger
		if strings.Contains(val, ".") {
			datatype = xsdDecimal
		}

		t, err := typedLiteralTerm(val, datatype)
		if err != nil {
			return Term{}, p.newError(ErrUnexpectedToken, err.Error())
		}

		return t, p.advance()

	case TokenIdent:
		return p.parseIdentTerm()

	case TokenEOF:
		return Term{}, p.newError(ErrUnexpectedEnd, "Pattern component expected")
	}

	return Term{}, p.newError(ErrUnexpectedToken, p.token.String())
}

/*
parseLiteralTerm parses a literal with its optional language tag or
datatype.
*/
func (p *parser) parseLiteralTerm() (Term, error) {
	lex := p.token.Val

	if err := p.advance(); err != nil {
		return Term{}, err
	}

	if p.token.ID == TokenLangTag {
		lang := p.token.Val

		lit, err := rdf.NewLangLiteral(lex, lang)
		if err != nil {
			return Term{}, p.newError(ErrUnexpectedToken, err.Error())
		}

		return internalTerm(lit, p)
	}

	if p.token.ID == TokenCaretCaret {
		if err := p.advance(); err != nil {
			return Term{}, err
		}

		datatype, err := p.iriValue()
		if err != nil {
			return Term{}, err
		}

		t, terr := typedLiteralTerm(lex, datatype)
		if terr != nil {
			return Term{}, p.newError(ErrUnexpectedToken, terr.Error())
		}

		return t, p.advance()
	}

	lit, err := rdf.NewLiteral(lex)
	if err != nil {
		return Term{}, p.newError(ErrUnexpectedToken, err.Error())
	}

	val, err := store.InternalizeTerm(lit)
	if err != nil {
		return Term{}, p.newError(ErrUnexpectedToken, err.Error())
	}

	return Term{Kind: TermValue, Value: val}, nil
}

/*
parseIdentTerm parses a bare word term. This covers the keyword a,
booleans and prefixed names.
*/
func (p *parser) parseIdentTerm() (Term, error) {
	val := p.token.Val

	if val == "a" {
		t := Term{Kind: TermValue, Value: rdfTypeIRI}
		return t, p.advance()
	}

	if strings.EqualFold(val, "true") || strings.EqualFold(val, "false") {
		t, err := typedLiteralTerm(strings.ToLower(val), xsdBoolean)
		if err != nil {
			return Term{}, p.newError(ErrUnexpectedToken, err.Error())
		}

		return t, p.advance()
	}

	iri, err := p.expandPrefixedName(val)
	if err != nil {
		return Term{}, err
	}

	t := Term{Kind: TermValue, Value: iri}

	return t, p.advance()
}

/*
iriValue returns the IRI denoted by the current token which may be an IRI
reference or a prefixed name.
*/
func (p *parser) iriValue() (string, error) {
	if p.token.ID == TokenIRIRef {
		return p.token.Val, nil
	}

	if p.token.ID == TokenIdent {
		return p.expandPrefixedName(p.token.Val)
	}

	return "", p.newError(ErrUnexpectedToken, "IRI expected")
}

/*
expandPrefixedName resolves a prefixed name against the declared
prefixes.
*/
func (p *parser) expandPrefixedName(val string) (string, error) {
	idx := strings.Index(val, ":")

	if idx < 0 {
		return "", p.newError(ErrUnexpectedToken, p.token.String())
	}

	ns, ok := p.prefixes[val[:idx]]
	if !ok {
		return "", p.newError(ErrUnknownPrefix, val[:idx])
	}

	return ns + val[idx+1:], nil
}

/*
internalTerm converts an RDF term into a bound pattern component and
advances the parser.
*/
func internalTerm(t rdf.Term, p *parser) (Term, error) {
	val, err := store.InternalizeTerm(t)
	if err != nil {
		return Term{}, p.newError(ErrUnexpectedToken, err.Error())
	}

	return Term{Kind: TermValue, Value: val}, p.advance()
}

/*
typedLiteralTerm builds a bound pattern component for a typed literal.
*/
func typedLiteralTerm(lex string, datatype string) (Term, error) {
	dt, err := rdf.NewIRI(datatype)
	if err != nil {
		return Term{}, err
	}

	val, err := store.InternalizeTerm(rdf.NewTypedLiteral(lex, dt))
	if err != nil {
		return Term{}, err
	}

	return Term{Kind: TermValue, Value: val}, nil
}
