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
	"context"
	"strings"

	"github.com/knakk/rdf"
	"github.com/krotik/common/datautil"

	"github.com/fedhdt/fedhdt/eval"
)

/*
Engine evaluates query requests against a dataset. Parsed queries are
cached so repeated requests skip the parser.
*/
type Engine struct {
	cache *datautil.MapCache
}

/*
Engine is an evaluator for datasets.
*/
var _ eval.Evaluator = (*Engine)(nil)

/*
NewEngine creates a new evaluator. The parameters control the parsed
query cache.
*/
func NewEngine(cacheMaxSize uint64, cacheMaxAgeSeconds int64) *Engine {
	return &Engine{datautil.NewMapCache(cacheMaxSize, cacheMaxAgeSeconds)}
}

/*
Query parses and evaluates a query against a dataset.
*/
func (e *Engine) Query(ctx context.Context, query string, ds eval.Dataset) (eval.Result, error) {
	q, err := e.parse(query)
	if err != nil {
		return nil, err
	}

	return Evaluate(ctx, q, ds)
}

/*
parse returns the parsed form of a query using the cache.
*/
func (e *Engine) parse(query string) (*Query, error) {
	if q, ok := e.cache.Get(query); ok {
		return q.(*Query), nil
	}

	q, err := ParseQuery("request", query)
	if err != nil {
		return nil, err
	}

	e.cache.Put(query, q)

	return q, nil
}

/*
Evaluate runs a parsed query against a dataset.
*/
func Evaluate(ctx context.Context, q *Query, ds eval.Dataset) (eval.Result, error) {
	bindings, err := solve(ctx, q.Where, ds)
	if err != nil {
		return nil, err
	}

	switch q.Verb {

	case AskQuery:
		return &eval.Boolean{Value: len(bindings) > 0}, nil

	case ConstructQuery:
		return constructResult(q, bindings, ds)
	}

	return selectResult(q, bindings, ds)
}

/*
solve matches a basic graph pattern against the dataset by propagating
variable bindings from pattern to pattern.
*/
func solve(ctx context.Context, patterns []TriplePattern, ds eval.Dataset) ([]map[string]string, error) {
	bindings := []map[string]string{{}}

	for _, pattern := range patterns {
		var next []map[string]string

		for _, binding := range bindings {

			if err := ctx.Err(); err != nil {
				return nil, err
			}

			quads, err := ds.QuadsForPattern(
				resolve(pattern.Subject, binding),
				resolve(pattern.Predicate, binding),
				resolve(pattern.Object, binding),
				resolve(pattern.Graph, binding))

			if err != nil {
				return nil, err
			}

			for _, quad := range quads {
				if extended, ok := extend(pattern, binding, quad); ok {
					next = append(next, extended)
				}
			}
		}

		bindings = next

		if len(bindings) == 0 {
			break
		}
	}

	return bindings, nil
}

/*
resolve returns the dataset pattern component for a term under a binding.
Unbound components are represented by an empty string.
*/
func resolve(t Term, binding map[string]string) string {
	if t.Kind == TermValue {
		return t.Value
	}

	if t.Kind == TermVariable {
		return binding[t.Name]
	}

	return ""
}

/*
extend extends a binding with the variable assignments a quad implies for
a pattern. Conflicting assignments to the same variable reject the quad.
*/
func extend(pattern TriplePattern, binding map[string]string, quad eval.Quad) (map[string]string, bool) {
	extended := make(map[string]string, len(binding)+4)

	for name, val := range binding {
		extended[name] = val
	}

	assign := func(t Term, val string) bool {
		if t.Kind != TermVariable {
			return true
		}

		if existing, ok := extended[t.Name]; ok {
			return existing == val
		}

		extended[t.Name] = val

		return true
	}

	if !assign(pattern.Subject, quad.Subject) ||
		!assign(pattern.Predicate, quad.Predicate) ||
		!assign(pattern.Object, quad.Object) ||
		!assign(pattern.Graph, quad.Graph) {

		return nil, false
	}

	return extended, true
}

/*
collectVariables returns all variables of a pattern list in order of
first appearance.
*/
func collectVariables(patterns []TriplePattern) []string {
	var vars []string

	seen := make(map[string]bool)

	add := func(t Term) {
		if t.Kind == TermVariable && !seen[t.Name] {
			seen[t.Name] = true
			vars = append(vars, t.Name)
		}
	}

	for _, pattern := range patterns {
		add(pattern.Subject)
		add(pattern.Predicate)
		add(pattern.Object)
		add(pattern.Graph)
	}

	return vars
}

/*
selectResult builds the solution sequence of a SELECT query.
*/
func selectResult(q *Query, bindings []map[string]string, ds eval.Dataset) (eval.Result, error) {
	vars := q.Variables

	if vars == nil {
		vars = collectVariables(q.Where)
	}

	rows := make([][]string, 0, len(bindings))
	seen := make(map[string]bool)

	for _, binding := range bindings {
		row := make([]string, len(vars))

		for i, v := range vars {
			row[i] = binding[v]
		}

		if q.Distinct {
			key := strings.Join(row, "\x00")

			if seen[key] {
				continue
			}

			seen[key] = true
		}

		rows = append(rows, row)

		if q.Limit >= 0 && len(rows) == q.Limit {
			break
		}
	}

	idx := 0

	next := func() ([]rdf.Term, error) {
		if idx >= len(rows) {
			return nil, nil
		}

		row := rows[idx]
		idx++

		terms := make([]rdf.Term, len(row))

		for i, val := range row {

			// Unbound variables stay nil in the solution row

			if val == "" {
				continue
			}

			t, err := ds.Externalize(val)
			if err != nil {
				return nil, err
			}

			terms[i] = t
		}

		return terms, nil
	}

	return &eval.Solutions{Variables: vars, Next: next}, nil
}

/*
constructResult instantiates the template of a CONSTRUCT query for every
solution. Duplicate and incomplete triples are dropped.
*/
func constructResult(q *Query, bindings []map[string]string, ds eval.Dataset) (eval.Result, error) {
	if q.Limit >= 0 && len(bindings) > q.Limit {
		bindings = bindings[:q.Limit]
	}

	var triples []rdf.Triple

	seen := make(map[string]bool)

	for _, binding := range bindings {
		for _, pattern := range q.Template {
			s := resolve(pattern.Subject, binding)
			p := resolve(pattern.Predicate, binding)
			o := resolve(pattern.Object, binding)

			if s == "" || p == "" || o == "" {
				continue
			}

			key := s + "\x00" + p + "\x00" + o

			if seen[key] {
				continue
			}

			seen[key] = true

			triple, ok, err := externalizeTriple(s, p, o, ds)
			if err != nil {
				return nil, err
			} else if !ok {
				continue
			}

			triples = append(triples, triple)
		}
	}

	idx := 0

	next := func() (*rdf.Triple, error) {
		if idx >= len(triples) {
			return nil, nil
		}

		triple := &triples[idx]
		idx++

		return triple, nil
	}

	return &eval.Graph{Next: next}, nil
}

/*
externalizeTriple converts internal term representations into an RDF
triple. Combinations which do not form a valid triple are skipped.
*/
func externalizeTriple(s, p, o string, ds eval.Dataset) (rdf.Triple, bool, error) {
	st, err := ds.Externalize(s)
	if err != nil {
		return rdf.Triple{}, false, err
	}

	pt, err := ds.Externalize(p)
	if err != nil {
		return rdf.Triple{}, false, err
	}

	ot, err := ds.Externalize(o)
	if err != nil {
		return rdf.Triple{}, false, err
	}

	subj, ok := st.(rdf.Subject)
	if !ok {
		return rdf.Triple{}, false, nil
	}

	pred, ok := pt.(rdf.Predicate)
	if !ok {
		return rdf.Triple{}, false, nil
	}

	obj, ok := ot.(rdf.Object)
	if !ok {
		return rdf.Triple{}, false, nil
	}

	return rdf.Triple{Subj: subj, Pred: pred, Obj: obj}, true, nil
}
