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
Package dataset maintains the collection of immutable store files which
together form the federated dataset. The Registry maps graph names to
backing files, a Snapshot is a loaded, consistent view of the registered
stores which can be queried as a single dataset.
*/
package dataset

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fedhdt/fedhdt/store"
)

/*
GraphName returns the graph name under which a backing file is published.
*/
func GraphName(path string) string {
	return "file:///" + filepath.Base(path)
}

/*
Registry maps graph names to their backing store files. All operations are
safe for concurrent use.
*/
type Registry struct {
	lock  sync.RWMutex
	dir   string            // Location for converted store files
	paths map[string]string // Graph name to backing file path
}

/*
NewRegistry creates a new empty registry. Converted store files are
written to the given directory.
*/
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, paths: make(map[string]string)}
}

/*
Register adds existing store files under their derived graph names. All
paths are checked before any of them is registered.
*/
func (r *Registry) Register(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return &Error{Type: ErrInputNotFound, Detail: err.Error()}
		}
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	for _, path := range paths {
		r.paths[GraphName(path)] = path
	}

	return nil
}

/*
Insert publishes an input file under the given graph name. Native store
files are registered directly while supported RDF formats are first
converted into the registry location. An existing mapping for the name is
replaced.
*/
func (r *Registry) Insert(name string, path string) error {
	if _, err := os.Stat(path); err != nil {
		return &Error{Type: ErrInputNotFound, Detail: err.Error()}
	}

	if store.HasOpener(path) {
		r.setPath(name, path)
		return nil
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	if ext != "nt" && ext != "ttl" {
		return &Error{Type: ErrUnsupportedFormat, Detail: path}
	}

	base := filepath.Base(path)
	dest := filepath.Join(r.dir,
		strings.TrimSuffix(base, filepath.Ext(base))+"."+store.FileStoreExt)

	if _, err := store.CreateFileStore([]string{path}, dest); err != nil {
		return err
	}

	r.setPath(name, dest)

	return nil
}

/*
CreateEmpty creates a new empty graph backed by a fresh store file in the
registry location.
*/
func (r *Registry) CreateEmpty(name string) error {
	dest := filepath.Join(r.dir, uuid.New().String()+"."+store.FileStoreExt)

	if err := store.WriteFileStore(dest, nil); err != nil {
		return err
	}

	r.setPath(name, dest)

	return nil
}

/*
Remove unregisters a graph and deletes its backing file together with any
derived index and cache files. It returns false if the graph was not
registered.
*/
func (r *Registry) Remove(name string) (bool, error) {
	r.lock.Lock()

	path, ok := r.paths[name]

	if ok {
		delete(r.paths, name)
	}

	r.lock.Unlock()

	if !ok {
		return false, nil
	}

	if err := os.Remove(path); err != nil {
		return true, &Error{Type: ErrInternal, Detail: err.Error()}
	}

	removeDerivedFiles(path)

	return true, nil
}

/*
Clear unregisters all graphs. Backing files are left untouched.
*/
func (r *Registry) Clear() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.paths = make(map[string]string)
}

/*
Contains checks if a graph is registered.
*/
func (r *Registry) Contains(name string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	_, ok := r.paths[name]

	return ok
}

/*
Names returns all registered graph names in sorted order.
*/
func (r *Registry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	names := make([]string, 0, len(r.paths))

	for name := range r.paths {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

/*
Path returns the backing file of a registered graph.
*/
func (r *Registry) Path(name string) (string, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	path, ok := r.paths[name]

	return path, ok
}

/*
Count returns the number of registered graphs.
*/
func (r *Registry) Count() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return len(r.paths)
}

/*
setPath registers a single mapping.
*/
func (r *Registry) setPath(name string, path string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.paths[name] = path
}

/*
copyPaths returns a copy of the current mappings, optionally reduced by a
filter on the graph name.
*/
func (r *Registry) copyPaths(filter func(name string) bool) map[string]string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	paths := make(map[string]string, len(r.paths))

	for name, path := range r.paths {
		if filter == nil || filter(name) {
			paths[name] = path
		}
	}

	return paths
}

/*
removeDerivedFiles deletes index and cache files which store readers may
have placed next to a backing file. Failures are ignored.
*/
func removeDerivedFiles(path string) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return
	}

	for _, e := range entries {
		name := e.Name()

		if name == base || !strings.HasPrefix(name, base) {
			continue
		}

		if strings.Contains(name, ".index.") || strings.HasSuffix(name, ".cache") {
			os.Remove(filepath.Join(dir, name))
		}
	}
}
