/*
 * FedHDT
 *
 * Copyright 2025 The FedHDT Authors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package sparql implements the restricted SPARQL dialect of this server. The
query side supports SELECT, ASK and CONSTRUCT over basic graph patterns
with optional GRAPH scoping, DISTINCT and LIMIT. The update side parses the
standard update operations so each request can be checked as a whole
before any of it is applied.
*/
package sparql

/*
LexTokenID represents a unique lexer token ID
*/
type LexTokenID int

/*
Available lexer token types
*/
const (
	TokenError LexTokenID = iota // Lexing error token with a message as value
	TokenEOF                     // End-of-file token

	TokenIRIRef    // IRI reference without the angle brackets
	TokenVariable  // Query variable without the leading marker
	TokenBlankNode // Blank node label without the leading marker
	TokenLiteral   // Quoted literal with resolved escape sequences
	TokenLangTag   // Language tag without the leading @
	TokenNumber    // Numeric literal
	TokenIdent     // Bare word (keyword, prefixed name or boolean)

	TokenCaretCaret // Datatype marker ^^
	TokenLBrace     // {
	TokenRBrace     // }
	TokenDot        // .
	TokenSemicolon  // ;
	TokenComma      // ,
	TokenTimes      // *
)

/*
RDF type property which the keyword a abbreviates in triple patterns.
*/
const rdfTypeIRI = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

/*
XML schema datatypes used for plain numeric and boolean literals.
*/
const (
	xsdInteger = "http://www.w3.org/2001/XMLSchema#integer"
	xsdDecimal = "http://www.w3.org/2001/XMLSchema#decimal"
	xsdBoolean = "http://www.w3.org/2001/XMLSchema#boolean"
)
