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

/*
MemoryStore is an in-memory Store implementation. It is used as backing
for parsed uploads and as a drop-in store for unit tests. A MemoryStore
must not be mutated after it has been handed to a snapshot.
*/
type MemoryStore struct {
	triples []Triple
}

/*
NewMemoryStore creates a new MemoryStore with the given triples.
*/
func NewMemoryStore(triples ...Triple) *MemoryStore {
	return &MemoryStore{triples}
}

/*
Add appends a triple to the store.
*/
func (ms *MemoryStore) Add(t Triple) {
	ms.triples = append(ms.triples, t)
}

/*
Triples returns all triples matching the given pattern. Empty pattern
components are unbound.
*/
func (ms *MemoryStore) Triples(subject, predicate, object string) ([]Triple, error) {
	var res []Triple

	for _, t := range ms.triples {
		if subject != "" && t.Subject != subject {
			continue
		}
		if predicate != "" && t.Predicate != predicate {
			continue
		}
		if object != "" && t.Object != object {
			continue
		}
		res = append(res, t)
	}

	return res, nil
}

/*
Size returns the total number of triples in the store.
*/
func (ms *MemoryStore) Size() int {
	return len(ms.triples)
}

/*
Close releases all resources held by the store.
*/
func (ms *MemoryStore) Close() error {
	ms.triples = nil
	return nil
}
