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
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

/*
LexToken represents a token which is returned by the lexer.
*/
type LexToken struct {
	ID    LexTokenID // Token kind
	Pos   int        // Starting position (in bytes)
	Val   string     // Token value
	Lline int        // Line in the input this token appears
	Lpos  int        // Position in the input line this token appears
}

/*
PosString returns the position of this token in the original input as a
string.
*/
func (t LexToken) PosString() string {
	return fmt.Sprintf("Line %v, Pos %v", t.Lline, t.Lpos)
}

/*
String returns a string representation of a token.
*/
func (t LexToken) String() string {

	switch t.ID {

	case TokenEOF:
		return "EOF"

	case TokenError:
		return fmt.Sprintf("Error: %s (%s)", t.Val, t.PosString())

	case TokenIRIRef:
		return fmt.Sprintf("<%s>", t.Val)

	case TokenVariable:
		return fmt.Sprintf("?%s", t.Val)

	case TokenBlankNode:
		return fmt.Sprintf("_:%s", t.Val)

	case TokenLangTag:
		return fmt.Sprintf("@%s", t.Val)
	}

	if len(t.Val) > 20 {

		// Special case for very long values

		return fmt.Sprintf("%.20q...", t.Val)
	}

	return fmt.Sprintf("%q", t.Val)
}

/*
Special symbols which do not require spaces around them
*/
var symbolMap = map[string]LexTokenID{
	"{": TokenLBrace,
	"}": TokenRBrace,
	".": TokenDot,
	";": TokenSemicolon,
	",": TokenComma,
	"*": TokenTimes,
}

// Lexer
// =====

/*
RuneEOF is a special rune which represents the end of the input
*/
const RuneEOF = -1

/*
Function which represents the current state of the lexer and returns the
next state
*/
type lexFunc func(*lexer) lexFunc

/*
Lexer data structure
*/
type lexer struct {
	name   string        // Name to identify the input
	input  string        // Input string of the lexer
	pos    int           // Current rune pointer
	line   int           // Current line pointer
	lastnl int           // Last newline position
	width  int           // Width of last rune
	start  int           // Start position of the current token
	tokens chan LexToken // Channel for lexer output
}

/*
Lex lexes a given input. Returns a channel which contains tokens.
*/
func Lex(name string, input string) chan LexToken {
	l := &lexer{name, input, 0, 0, 0, 0, 0, make(chan LexToken)}
	go l.run()
	return l.tokens
}

/*
LexToList lexes a given input. Returns a list of tokens.
*/
func LexToList(name string, input string) []LexToken {
	var tokens []LexToken

	for t := range Lex(name, input) {
		tokens = append(tokens, t)
	}

	return tokens
}

/*
Main loop of the lexer.
*/
func (l *lexer) run() {

	if skipWhiteSpace(l) {
		for state := lexToken; state != nil; {
			state = state(l)

			if !skipWhiteSpace(l) {
				break
			}
		}
	}

	l.startNew()
	l.emitToken(TokenEOF)

	close(l.tokens)
}

/*
next returns the next rune in the input and advances the current rune
pointer if the peek flag is not set.
*/
func (l *lexer) next(peek bool) rune {

	if int(l.pos) >= len(l.input) {
		return RuneEOF
	}

	r, w := utf8.DecodeRuneInString(l.input[l.pos:])

	if !peek {
		l.width = w
		l.pos += l.width
	}

	return r
}

/*
backup sets the pointer one rune back. Can only be called once per next
call.
*/
func (l *lexer) backup() {
	if l.width == -1 {
		panic("Can only backup once per next call")
	}

	l.pos -= l.width
	l.width = -1
}

/*
startNew starts a new token.
*/
func (l *lexer) startNew() {
	l.start = l.pos
}

/*
emitToken passes a token back to the client.
*/
func (l *lexer) emitToken(t LexTokenID) {
	if t == TokenEOF {
		l.emitTokenAndValue(t, "")
		return
	}

	l.emitTokenAndValue(t, l.input[l.start:l.pos])
}

/*
emitTokenAndValue passes a token with a given value back to the client.
*/
func (l *lexer) emitTokenAndValue(t LexTokenID, val string) {
	if l.tokens != nil {
		l.tokens <- LexToken{t, l.start, val, l.line + 1, l.start - l.lastnl + 1}
	}
}

/*
emitError passes an error token back to the client.
*/
func (l *lexer) emitError(msg string) {
	if l.tokens != nil {
		l.tokens <- LexToken{TokenError, l.start, msg, l.line + 1, l.start - l.lastnl + 1}
	}
}

/*
skipWhiteSpace skips whitespace and comments. Returns false if the end of
the input was reached.
*/
func skipWhiteSpace(l *lexer) bool {
	r := l.next(false)

	for unicode.IsSpace(r) || r == '#' {

		if r == '#' {
			for r != '\n' && r != RuneEOF {
				r = l.next(false)
			}
		}

		if r == '\n' {
			l.line++
			l.lastnl = l.pos
		}

		if r == RuneEOF {
			return false
		}

		r = l.next(false)
	}

	if r == RuneEOF {
		return false
	}

	l.backup()

	return true
}

// State functions
// ===============

/*
lexToken is the main entry function for the lexer.
*/
func lexToken(l *lexer) lexFunc {
	l.startNew()

	n1 := l.next(false)
	n2 := l.next(true)

	switch {

	case n1 == '<':
		return lexIRIRef

	case n1 == '?' || n1 == '$':
		l.startNew()
		return lexWordToken(TokenVariable, "Variable name expected")

	case n1 == '_' && n2 == ':':
		l.next(false)
		l.startNew()
		return lexWordToken(TokenBlankNode, "Blank node label expected")

	case n1 == '@':
		l.startNew()
		return lexWordToken(TokenLangTag, "Language tag expected")

	case n1 == '"' || n1 == '\'':
		return lexLiteral(n1)

	case n1 == '^' && n2 == '^':
		l.next(false)
		l.emitToken(TokenCaretCaret)
		return lexToken

	case isDigit(n1) || ((n1 == '+' || n1 == '-') && isDigit(n2)):
		l.backup()
		return lexNumber
	}

	if id, ok := symbolMap[string(n1)]; ok {
		l.emitToken(id)
		return lexToken
	}

	if isWordRune(n1) {
		l.backup()
		return lexWord
	}

	l.emitError(fmt.Sprintf("Unexpected character %q", n1))

	return nil
}

/*
lexIRIRef lexes an IRI reference. The opening bracket has been consumed.
*/
func lexIRIRef(l *lexer) lexFunc {
	l.startNew()

	for {
		r := l.next(false)

		if r == RuneEOF || r == '\n' {
			l.emitError("Unterminated IRI reference")
			return nil
		}

		if r == '>' {
			l.emitTokenAndValue(TokenIRIRef, l.input[l.start:l.pos-1])
			return lexToken
		}
	}
}

/*
lexWordToken lexes a bare word and emits it with the given token ID.
*/
func lexWordToken(id LexTokenID, errMsg string) lexFunc {
	return func(l *lexer) lexFunc {
		if !scanWord(l) {
			l.emitError(errMsg)
			return nil
		}

		l.emitToken(id)

		return lexToken
	}
}

/*
lexWord lexes a keyword, prefixed name or boolean.
*/
func lexWord(l *lexer) lexFunc {
	scanWord(l)
	l.emitToken(TokenIdent)

	return lexToken
}

/*
scanWord advances the lexer over a word. Returns false if no word rune
was found.
*/
func scanWord(l *lexer) bool {
	found := false

	for {
		r := l.next(false)

		if !isWordRune(r) {
			if r != RuneEOF {
				l.backup()
			}
			return found
		}

		found = true
	}
}

/*
lexNumber lexes a numeric literal.
*/
func lexNumber(l *lexer) lexFunc {
	r := l.next(false)

	if r == '+' || r == '-' {
		r = l.next(false)
	}

	for isDigit(r) {
		r = l.next(false)
	}

	if r == '.' && isDigit(l.next(true)) {
		r = l.next(false)
		for isDigit(r) {
			r = l.next(false)
		}
	}

	if r != RuneEOF {
		l.backup()
	}

	l.emitToken(TokenNumber)

	return lexToken
}

/*
lexLiteral lexes a quoted literal and resolves escape sequences. The
opening quote has been consumed.
*/
func lexLiteral(quote rune) lexFunc {
	return func(l *lexer) lexFunc {
		var buf strings.Builder

		for {
			r := l.next(false)

			if r == RuneEOF || r == '\n' {
				l.emitError("Unterminated literal")
				return nil
			}

			if r == quote {
				l.emitTokenAndValue(TokenLiteral, buf.String())
				return lexToken
			}

			if r == '\\' {
				e := l.next(false)

				switch e {
				case 't':
					buf.WriteRune('\t')
				case 'n':
					buf.WriteRune('\n')
				case 'r':
					buf.WriteRune('\r')
				case '\\', '"', '\'':
					buf.WriteRune(e)
				default:
					l.emitError(fmt.Sprintf("Invalid escape sequence %q",
						"\\"+string(e)))
					return nil
				}

				continue
			}

			buf.WriteRune(r)
		}
	}
}

/*
isDigit checks if a rune is a digit.
*/
func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

/*
isWordRune checks if a rune can be part of a bare word. Words cover
keywords, prefixed names and booleans.
*/
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' ||
		r == '-' || r == ':'
}
