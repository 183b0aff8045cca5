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

	"github.com/fedhdt/fedhdt/eval"
)

/*
UpdateOp is a single operation of an update request.
*/
type UpdateOp interface {
	updateOp()
}

/*
CreateOp creates a new empty graph.
*/
type CreateOp struct {
	Graph  string // Graph name
	Silent bool   // Ignore an already existing graph
}

/*
InsertDataOp inserts ground quads.
*/
type InsertDataOp struct {
	Quads []eval.Quad // Quads to insert, an empty graph means the default graph
}

/*
LoadOp loads a document into a graph.
*/
type LoadOp struct {
	Source string // Document IRI
	Graph  string // Destination graph name (empty means the default graph)
	Silent bool   // Ignore load failures
}

/*
DeleteDataOp removes ground quads.
*/
type DeleteDataOp struct {
	Quads []eval.Quad // Quads to remove
}

/*
ModifyOp is a pattern based DELETE/INSERT operation.
*/
type ModifyOp struct{}

/*
ClearOp removes all triples of one or more graphs.
*/
type ClearOp struct {
	Target string // Graph name or one of DEFAULT, NAMED, ALL
	Silent bool
}

/*
DropOp removes one or more graphs.
*/
type DropOp struct {
	Target string // Graph name or one of DEFAULT, NAMED, ALL
	Silent bool
}

func (op *CreateOp) updateOp()     {}
func (op *InsertDataOp) updateOp() {}
func (op *LoadOp) updateOp()       {}
func (op *DeleteDataOp) updateOp() {}
func (op *ModifyOp) updateOp()     {}
func (op *ClearOp) updateOp()      {}
func (op *DropOp) updateOp()       {}

/*
ParseUpdate parses an update request into its list of operations. Parsing
covers the full standard update vocabulary so a request can be validated
as a whole before any operation is applied.
*/
func ParseUpdate(name string, input string) ([]UpdateOp, error) {
	p := &parser{name, Lex(name, input), LexToken{}, make(map[string]string)}
	defer p.drain()

	if err := p.advance(); err != nil {
		return nil, err
	}

	var ops []UpdateOp

	for p.token.ID != TokenEOF {

		if err := p.parsePrologue(); err != nil {
			return nil, err
		}

		if p.token.ID == TokenEOF {
			break
		}

		op, err := p.parseUpdateOp()
		if err != nil {
			return nil, err
		}

		ops = append(ops, op)

		if p.token.ID == TokenSemicolon {
			if err := p.advance(); err != nil {
				return nil, err
			}

		} else if p.token.ID != TokenEOF {
			return nil, p.newError(ErrUnexpectedToken, p.token.String())
		}
	}

	return ops, nil
}

/*
parseUpdateOp parses a single update operation.
*/
func (p *parser) parseUpdateOp() (UpdateOp, error) {

	switch {

	case p.isKeyword("create"):
		return p.parseCreate()

	case p.isKeyword("insert"):
		return p.parseInsert()

	case p.isKeyword("load"):
		return p.parseLoad()

	case p.isKeyword("delete"):
		return p.parseDelete()

	case p.isKeyword("with"):
		return p.parseModifyRemainder()

	case p.isKeyword("clear"):
		silent, target, err := p.parseGraphManagement()
		if err != nil {
			return nil, err
		}

		return &ClearOp{target, silent}, nil

	case p.isKeyword("drop"):
		silent, target, err := p.parseGraphManagement()
		if err != nil {
			return nil, err
		}

		return &DropOp{target, silent}, nil
	}

	return nil, p.newError(ErrUnexpectedToken, p.token.String())
}

/*
parseCreate parses a CREATE operation.
*/
func (p *parser) parseCreate() (UpdateOp, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}

	silent, err := p.acceptKeyword("silent")
	if err != nil {
		return nil, err
	}

	if err := p.expectKeyword("graph"); err != nil {
		return nil, err
	}

	graph, err := p.iriValue()
	if err != nil {
		return nil, err
	}

	return &CreateOp{graph, silent}, p.advance()
}

/*
parseInsert parses an INSERT operation. INSERT DATA carries ground quads,
a template block instead starts a pattern based modification.
*/
func (p *parser) parseInsert() (UpdateOp, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.isKeyword("data") {
		if err := p.advance(); err != nil {
			return nil, err
		}

		quads, err := p.parseQuadData()
		if err != nil {
			return nil, err
		}

		return &InsertDataOp{quads}, nil
	}

	return p.parseModifyRemainder()
}

/*
parseLoad parses a LOAD operation.
*/
func (p *parser) parseLoad() (UpdateOp, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}

	silent, err := p.acceptKeyword("silent")
	if err != nil {
		return nil, err
	}

	source, err := p.iriValue()
	if err != nil {
		return nil, err
	}

	if err := p.advance(); err != nil {
		return nil, err
	}

	op := &LoadOp{Source: source, Silent: silent}

	ok, err := p.acceptKeyword("into")
	if err != nil {
		return nil, err
	} else if !ok {
		return op, nil
	}

	if err := p.expectKeyword("graph"); err != nil {
		return nil, err
	}

	graph, err := p.iriValue()
	if err != nil {
		return nil, err
	}

	op.Graph = graph

	return op, p.advance()
}

/*
parseDelete parses the DELETE family. DELETE DATA carries ground quads,
everything else is a pattern based modification.
*/
func (p *parser) parseDelete() (UpdateOp, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.isKeyword("data") {
		if err := p.advance(); err != nil {
			return nil, err
		}

		quads, err := p.parseQuadData()
		if err != nil {
			return nil, err
		}

		return &DeleteDataOp{quads}, nil
	}

	return p.parseModifyRemainder()
}

/*
parseModifyRemainder consumes the remainder of a pattern based
modification up to the next operation separator. The operation is only
recognized, never applied, so its structure is not validated beyond
balanced braces.
*/
func (p *parser) parseModifyRemainder() (UpdateOp, error) {
	depth := 0

	for {
		switch p.token.ID {

		case TokenEOF:
			if depth != 0 {
				return nil, p.newError(ErrUnexpectedEnd, "Group end expected")
			}

			return &ModifyOp{}, nil

		case TokenLBrace:
			depth++

		case TokenRBrace:
			depth--

			if depth < 0 {
				return nil, p.newError(ErrUnexpectedToken, p.token.String())
			}

		case TokenSemicolon:
			if depth == 0 {
				return &ModifyOp{}, nil
			}
		}

		if err := p.advance(); err != nil {
			return nil, err
		}
	}
}

/*
parseGraphManagement parses the target of a CLEAR or DROP operation.
*/
func (p *parser) parseGraphManagement() (bool, string, error) {
	if err := p.advance(); err != nil {
		return false, "", err
	}

	silent, err := p.acceptKeyword("silent")
	if err != nil {
		return false, "", err
	}

	for _, target := range []string{"default", "named", "all"} {
		ok, err := p.acceptKeyword(target)
		if err != nil {
			return false, "", err
		}

		if ok {
			return silent, strings.ToUpper(target), nil
		}
	}

	if err := p.expectKeyword("graph"); err != nil {
		return false, "", err
	}

	graph, err := p.iriValue()
	if err != nil {
		return false, "", err
	}

	return silent, graph, p.advance()
}

/*
parseQuadData parses a brace delimited block of ground quads. GRAPH sub
blocks assign their contained triples to a named graph.
*/
func (p *parser) parseQuadData() ([]eval.Quad, error) {
	patterns, err := p.parseGroupGraphPattern(Term{}, true)
	if err != nil {
		return nil, err
	}

	quads := make([]eval.Quad, 0, len(patterns))

	for _, pattern := range patterns {
		quad, err := p.groundQuad(pattern)
		if err != nil {
			return nil, err
		}

		quads = append(quads, quad)
	}

	return quads, nil
}

/*
groundQuad converts a parsed pattern into a ground quad. Variables are
not allowed in quad data.
*/
func (p *parser) groundQuad(pattern TriplePattern) (eval.Quad, error) {
	components := []Term{pattern.Subject, pattern.Predicate, pattern.Object}

	for _, c := range components {
		if c.Kind != TermValue {
			return eval.Quad{}, p.newError(ErrUnexpectedToken,
				fmt.Sprintf("Variable ?%v is not allowed in quad data", c.Name))
		}
	}

	if pattern.Graph.Kind == TermVariable {
		return eval.Quad{}, p.newError(ErrUnexpectedToken,
			fmt.Sprintf("Variable ?%v is not allowed in quad data", pattern.Graph.Name))
	}

	return eval.Quad{
		Subject:   pattern.Subject.Value,
		Predicate: pattern.Predicate.Value,
		Object:    pattern.Object.Value,
		Graph:     pattern.Graph.Value,
	}, nil
}
