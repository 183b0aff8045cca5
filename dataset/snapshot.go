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
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/krotik/common/errorutil"

	"github.com/fedhdt/fedhdt/store"
)

/*
Snapshot is a loaded, consistent view of registered stores. Registry
changes after the snapshot was taken do not affect it.
*/
type Snapshot struct {
	stores map[string]store.Store
}

/*
Snapshot loads all registered stores, optionally reduced by a filter on
the graph name. Stores are loaded in parallel bounded by the number of
available CPUs. Loading stops once ctx expires. If any store fails to
load no snapshot is returned.
*/
func (r *Registry) Snapshot(ctx context.Context, filter func(name string) bool) (*Snapshot, error) {
	paths := r.copyPaths(filter)

	var mutex sync.Mutex
	var wg sync.WaitGroup

	stores := make(map[string]store.Store, len(paths))
	cerr := errorutil.NewCompositeError()

	limit := make(chan struct{}, runtime.NumCPU())

	for name, path := range paths {
		wg.Add(1)

		go func(name string, path string) {
			defer wg.Done()

			limit <- struct{}{}
			defer func() { <-limit }()

			if ctx.Err() != nil {
				return
			}

			s, err := store.Open(path)

			mutex.Lock()
			defer mutex.Unlock()

			if err != nil {
				cerr.Add(err)
				return
			}

			stores[name] = s
		}(name, path)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		for _, s := range stores {
			s.Close()
		}

		return nil, err
	}

	if cerr.HasErrors() {
		for _, s := range stores {
			s.Close()
		}

		return nil, &Error{Type: ErrStoreLoad, Detail: cerr.Error()}
	}

	return &Snapshot{stores}, nil
}

/*
Graphs returns the names of all graphs in the snapshot in sorted order.
*/
func (ss *Snapshot) Graphs() []string {
	names := make([]string, 0, len(ss.stores))

	for name := range ss.stores {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

/*
ContainsGraph checks if a graph is part of the snapshot.
*/
func (ss *Snapshot) ContainsGraph(name string) bool {
	_, ok := ss.stores[name]

	return ok
}

/*
Size returns the total number of triples over all graphs of the snapshot.
*/
func (ss *Snapshot) Size() int {
	total := 0

	for _, s := range ss.stores {
		total += s.Size()
	}

	return total
}

/*
Close releases all stores of the snapshot.
*/
func (ss *Snapshot) Close() error {
	cerr := errorutil.NewCompositeError()

	for _, s := range ss.stores {
		if err := s.Close(); err != nil {
			cerr.Add(err)
		}
	}

	if cerr.HasErrors() {
		return &Error{Type: ErrInternal, Detail: cerr.Error()}
	}

	return nil
}
