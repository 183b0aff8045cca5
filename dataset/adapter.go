/*
 * FedHDT
 *
 * Copyright 2025 The FedHDT Authors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package dataset

import (
	"sync"

	"github.com/knakk/rdf"
	"github.com/krotik/common/errorutil"

	"github.com/fedhdt/fedhdt/eval"
	"github.com/fedhdt/fedhdt/store"
)

/*
Snapshot can be queried as a single federated dataset.
*/
var _ eval.Dataset = (*Snapshot)(nil)

/*
QuadsForPattern returns all quads of the snapshot matching a pattern.
Empty pattern components are treated as unbound. An empty graph component
matches all graphs, a graph name which is not part of the snapshot yields
no results. Graphs are queried in parallel, the result order follows the
sorted graph names.
*/
func (ss *Snapshot) QuadsForPattern(subject, predicate, object, graph string) ([]eval.Quad, error) {
	if graph != "" {
		s, ok := ss.stores[graph]

		if !ok {
			return nil, nil
		}

		return storeQuads(s, graph, subject, predicate, object)
	}

	names := ss.Graphs()

	results := make([][]eval.Quad, len(names))
	cerr := errorutil.NewCompositeError()

	var mutex sync.Mutex
	var wg sync.WaitGroup

	for i, name := range names {
		wg.Add(1)

		go func(i int, name string) {
			defer wg.Done()

			quads, err := storeQuads(ss.stores[name], name, subject, predicate, object)

			if err != nil {
				mutex.Lock()
				cerr.Add(err)
				mutex.Unlock()

				return
			}

			results[i] = quads
		}(i, name)
	}

	wg.Wait()

	if cerr.HasErrors() {
		return nil, &Error{Type: ErrInternal, Detail: cerr.Error()}
	}

	var res []eval.Quad

	for _, quads := range results {
		res = append(res, quads...)
	}

	return res, nil
}

/*
Internalize converts an RDF term into the internal representation used by
pattern components.
*/
func (ss *Snapshot) Internalize(t rdf.Term) (string, error) {
	s, err := store.InternalizeTerm(t)

	if err != nil {
		return "", &Error{Type: ErrParse, Detail: err.Error()}
	}

	return s, nil
}

/*
Externalize converts an internal term representation back into an RDF
term.
*/
func (ss *Snapshot) Externalize(s string) (rdf.Term, error) {
	t, err := store.ExternalizeTerm(s)

	if err != nil {
		return nil, &Error{Type: ErrParse, Detail: err.Error()}
	}

	return t, nil
}

/*
storeQuads runs a triple pattern against a single store and tags the
results with its graph name.
*/
func storeQuads(s store.Store, graph, subject, predicate, object string) ([]eval.Quad, error) {
	triples, err := s.Triples(subject, predicate, object)
	if err != nil {
		return nil, err
	}

	quads := make([]eval.Quad, len(triples))

	for i, t := range triples {
		quads[i] = eval.Quad{
			Subject:   t.Subject,
			Predicate: t.Predicate,
			Object:    t.Object,
			Graph:     graph,
		}
	}

	return quads, nil
}
