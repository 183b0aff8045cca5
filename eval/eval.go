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
Package eval defines the capability contract between a query evaluator and
a queryable dataset.

Dataset is the fixed interface an evaluator needs: pattern lookup over
internal term strings, lossless term conversion and graph enumeration.
The federated snapshot in the dataset package implements it; an in-memory
fake is sufficient for evaluator unit tests.

Result is a closed union of the three shapes a query can produce: Solutions
(tabular), Boolean (ASK) and Graph (CONSTRUCT). Code which serializes a
Result must type switch over all three shapes.
*/
package eval

import (
	"context"

	"github.com/knakk/rdf"
)

/*
Quad is a single matched triple tagged with the name of the graph which
contains it. All components are internal term strings.
*/
type Quad struct {
	Subject   string
	Predicate string
	Object    string
	Graph     string
}

/*
Dataset models the queryable view an evaluator runs against. Internal terms
are the dataset's native string encoding and must be treated as opaque -
only Internalize and Externalize may construct or interpret them.
*/
type Dataset interface {

	/*
		QuadsForPattern returns all quads matching the given triple pattern.
		Empty subject, predicate or object components are unbound. An empty
		graph restricts nothing (the lookup covers all graphs of the
		dataset), a non-empty graph restricts the lookup to that graph.
	*/
	QuadsForPattern(subject, predicate, object, graph string) ([]Quad, error)

	/*
		Internalize converts an RDF term into the dataset's internal string
		encoding.
	*/
	Internalize(t rdf.Term) (string, error)

	/*
		Externalize converts an internal term string back into an RDF term.
	*/
	Externalize(s string) (rdf.Term, error)

	/*
		Graphs returns the names of all graphs present in this dataset.
	*/
	Graphs() []string

	/*
		ContainsGraph tests if the given graph is present in this dataset.
	*/
	ContainsGraph(name string) bool
}

/*
Evaluator runs a query against a dataset. Implementations must only access
the dataset through the Dataset contract.
*/
type Evaluator interface {

	/*
		Query evaluates the given query text and returns its result. The
		evaluation is aborted with the context error once ctx expires.
	*/
	Query(ctx context.Context, query string, ds Dataset) (Result, error)
}

/*
Result is the outcome of a query evaluation. It is a closed union - the
concrete types are *Solutions, *Boolean and *Graph.
*/
type Result interface {
	resultShape()
}

/*
Solutions is a tabular query result. Next returns the next row with one
term per variable (unbound variables are nil entries) or nil once the
result set is exhausted.
*/
type Solutions struct {
	Variables []string
	Next      func() ([]rdf.Term, error)
}

/*
Boolean is the result of an ASK query.
*/
type Boolean struct {
	Value bool
}

/*
Graph is a triple-producing query result. Next returns the next triple or
nil once the result is exhausted.
*/
type Graph struct {
	Next func() (*rdf.Triple, error)
}

func (*Solutions) resultShape() {}
func (*Boolean) resultShape()   {}
func (*Graph) resultShape()     {}
