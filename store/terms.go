/*
 * FedHDT
 *
 * Copyright 2025 The FedHDT Authors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package store

import (
	"fmt"
	"strings"

	"github.com/knakk/rdf"
)

/*
xsdString is the datatype of plain literals. It is implied and never part
of the internal encoding.
*/
const xsdString = "http://www.w3.org/2001/XMLSchema#string"

/*
InternalizeTerm converts an RDF term into the internal term string encoding:
IRIs are stored bare, literals in their N-Triples form and blank nodes with
a _: prefix. The conversion is lossless - ExternalizeTerm inverts it.
*/
func InternalizeTerm(t rdf.Term) (string, error) {

	switch term := t.(type) {

	case rdf.IRI:
		return term.String(), nil

	case rdf.Literal:
		s := "\"" + escapeLiteral(term.String()) + "\""

		if lang := term.Lang(); lang != "" {
			return s + "@" + lang, nil
		}

		if dt := term.DataType.String(); dt != "" && dt != xsdString {
			return s + "^^<" + dt + ">", nil
		}

		return s, nil

	case rdf.Blank:
		return term.Serialize(rdf.NTriples), nil
	}

	return "", &StoreError{Type: ErrParse,
		Detail: fmt.Sprintf("Unknown term type: %v", t)}
}

/*
ExternalizeTerm converts an internal term string back into an RDF term. The
first character decides the term type: a quote starts a literal, an
underscore a blank node label, anything else is read as an IRI.
*/
func ExternalizeTerm(s string) (rdf.Term, error) {

	if s == "" {
		return nil, &StoreError{Type: ErrParse, Detail: "Empty term string"}
	}

	switch s[0] {

	case '"':
		return externalizeLiteral(s)

	case '_':
		if !strings.HasPrefix(s, "_:") || len(s) == 2 {
			return nil, &StoreError{Type: ErrParse,
				Detail: fmt.Sprintf("Invalid blank node label: %v", s)}
		}

		b, err := rdf.NewBlank(s[2:])
		if err != nil {
			return nil, &StoreError{Type: ErrParse, Detail: err.Error()}
		}

		return b, nil
	}

	iri, err := rdf.NewIRI(strings.Trim(s, "<>"))
	if err != nil {
		return nil, &StoreError{Type: ErrParse, Detail: err.Error()}
	}

	return iri, nil
}

/*
externalizeLiteral parses an internal literal string of the form "lex",
"lex"@lang or "lex"^^<datatype>.
*/
func externalizeLiteral(s string) (rdf.Term, error) {
	end := closingQuote(s)

	if end < 0 {
		return nil, &StoreError{Type: ErrParse,
			Detail: fmt.Sprintf("Unterminated literal: %v", s)}
	}

	lex, err := unescapeLiteral(s[1:end])
	if err != nil {
		return nil, err
	}

	rest := s[end+1:]

	if rest == "" {
		l, err := rdf.NewLiteral(lex)
		if err != nil {
			return nil, &StoreError{Type: ErrParse, Detail: err.Error()}
		}
		return l, nil
	}

	if strings.HasPrefix(rest, "@") && len(rest) > 1 {
		l, err := rdf.NewLangLiteral(lex, rest[1:])
		if err != nil {
			return nil, &StoreError{Type: ErrParse, Detail: err.Error()}
		}
		return l, nil
	}

	if strings.HasPrefix(rest, "^^<") && strings.HasSuffix(rest, ">") {
		dt, err := rdf.NewIRI(rest[3 : len(rest)-1])
		if err != nil {
			return nil, &StoreError{Type: ErrParse, Detail: err.Error()}
		}
		return rdf.NewTypedLiteral(lex, dt), nil
	}

	return nil, &StoreError{Type: ErrParse,
		Detail: fmt.Sprintf("Invalid literal suffix: %v", rest)}
}

/*
closingQuote returns the index of the closing quote of a literal string or
-1 if there is none. Backslash escaped quotes are skipped.
*/
func closingQuote(s string) int {
	escaped := false

	for i := 1; i < len(s); i++ {
		if escaped {
			escaped = false
			continue
		}
		switch s[i] {
		case '\\':
			escaped = true
		case '"':
			return i
		}
	}

	return -1
}

/*
escapeLiteral applies N-Triples string escapes to a literal lexical form.
*/
func escapeLiteral(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
		"\r", "\\r",
		"\t", "\\t",
	)
	return r.Replace(s)
}

/*
unescapeLiteral resolves N-Triples string escapes in a literal lexical form.
*/
func unescapeLiteral(s string) (string, error) {
	if !strings.Contains(s, "\\") {
		return s, nil
	}

	var b strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}

		i++
		if i >= len(s) {
			return "", &StoreError{Type: ErrParse,
				Detail: fmt.Sprintf("Trailing escape in literal: %v", s)}
		}

		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		default:
			return "", &StoreError{Type: ErrParse,
				Detail: fmt.Sprintf("Unknown escape \\%c in literal: %v", s[i], s)}
		}
	}

	return b.String(), nil
}
