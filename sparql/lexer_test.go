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
	"testing"
)

func TestBasicTokenLexing(t *testing.T) {

	// Test empty string parsing

	if res := fmt.Sprint(LexToList("test", "    \t  ")); res != "[EOF]" {
		t.Error("Unexpected lexer result:", res)
		return
	}

	// Test query tokens - variables can use either sigil

	input := `SELECT ?s $o { ?s <http://example.org/p> "val"@en . }`
	expected := `["SELECT" ?s ?o "{" ?s <http://example.org/p> "val" @en "." "}" EOF]`

	if res := fmt.Sprint(LexToList("test", input)); res != expected {
		t.Error("Unexpected lexer result:", res)
		return
	}

	// Test blank nodes, datatypes, numbers and comments

	input = `# a comment
_:b1 a "2"^^<http://www.w3.org/2001/XMLSchema#int> ;
    ex:p -3.14 , 42 .`
	expected = `[_:b1 "a" "2" "^^" <http://www.w3.org/2001/XMLSchema#int> ` +
		`";" "ex:p" "-3.14" "," "42" "." EOF]`

	if res := fmt.Sprint(LexToList("test", input)); res != expected {
		t.Error("Unexpected lexer result:", res)
		return
	}
}

func TestLiteralEscapes(t *testing.T) {

	res := LexToList("test", `'it\'s \"quoted\"' "tab\there"`)

	if len(res) != 3 || res[0].ID != TokenLiteral || res[1].ID != TokenLiteral {
		t.Error("Unexpected lexer result:", res)
		return
	}

	if res[0].Val != `it's "quoted"` {
		t.Error("Unexpected token value:", res[0].Val)
		return
	}

	if res[1].Val != "tab\there" {
		t.Error("Unexpected token value:", res[1].Val)
		return
	}
}

func TestTokenPositions(t *testing.T) {

	res := LexToList("test", "a\n ?b")

	if len(res) != 3 {
		t.Error("Unexpected lexer result:", res)
		return
	}

	if tok := res[1]; tok.Lline != 2 || tok.Lpos != 3 ||
		tok.PosString() != "Line 2, Pos 3" {
		t.Error("Unexpected token position:", tok)
		return
	}
}

func TestErrorTokenLexing(t *testing.T) {

	input := "<http://unterminated"
	expected := "[Error: Unterminated IRI reference (Line 1, Pos 2) EOF]"

	if res := fmt.Sprint(LexToList("test", input)); res != expected {
		t.Error("Unexpected lexer result:", res)
		return
	}

	input = `"no end`
	expected = "[Error: Unterminated literal (Line 1, Pos 1) EOF]"

	if res := fmt.Sprint(LexToList("test", input)); res != expected {
		t.Error("Unexpected lexer result:", res)
		return
	}

	input = `"a\xb"`
	expected = `[Error: Invalid escape sequence "\x" (Line 1, Pos 1) EOF]`

	if res := fmt.Sprint(LexToList("test", input)); res != expected {
		t.Error("Unexpected lexer result:", res)
		return
	}

	input = "select %"
	expected = `["select" Error: Unexpected character '%' (Line 1, Pos 8) EOF]`

	if res := fmt.Sprint(LexToList("test", input)); res != expected {
		t.Error("Unexpected lexer result:", res)
		return
	}
}
