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
Package store contains the boundary to individual triple-store files.

There are two shipped implementations of the Store interface: MemoryStore
which holds triples in memory and FileStore which reads the native store
file container. Readers for other on-disk formats (e.g. compressed HDT
files) can be plugged in through RegisterOpener without changes to this
package - the federated dataset layer only sees the Store interface.

All triple components are internal term strings: bare IRIs, N-Triples
encoded literals and _: prefixed blank node labels (see terms.go).
*/
package store

import (
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

/*
StoreError is a store file related error.
*/
type StoreError struct {
	Type   error  // Error type (to be used for equal checks)
	Detail string // Details of this error
}

/*
Error returns a human-readable string representation of this error.
*/
func (se *StoreError) Error() string {
	if se.Detail != "" {
		return fmt.Sprintf("StoreError: %v (%v)", se.Type, se.Detail)
	}

	return fmt.Sprintf("StoreError: %v", se.Type)
}

/*
Store file related error types
*/
var (
	ErrInputNotFound     = errors.New("Input file not found")
	ErrUnsupportedFormat = errors.New("Unsupported file format")
	ErrCorrupted         = errors.New("Store file is corrupted")
	ErrParse             = errors.New("Could not parse term")
	ErrWriting           = errors.New("Could not write store file")
)

/*
Triple is a single stored fact. All components are internal term strings.
*/
type Triple struct {
	Subject   string
	Predicate string
	Object    string
}

/*
Store models a single loaded triple store. Implementations are immutable
once loaded and safe for concurrent lookups.
*/
type Store interface {

	/*
		Triples returns all triples matching the given pattern. Empty
		pattern components are unbound.
	*/
	Triples(subject, predicate, object string) ([]Triple, error)

	/*
		Size returns the total number of triples in the store.
	*/
	Size() int

	/*
		Close releases all resources held by the store.
	*/
	Close() error
}

/*
Opener is a factory function which loads a store file into a Store handle.
*/
type Opener func(path string) (Store, error)

var openersLock = sync.RWMutex{}
var openers = map[string]Opener{}

func init() {
	RegisterOpener(FileStoreExt, func(path string) (Store, error) {
		return OpenFileStore(path)
	})
}

/*
RegisterOpener registers a store file reader for a file extension (without
the leading dot). A previously registered opener for the same extension is
replaced.
*/
func RegisterOpener(ext string, o Opener) {
	openersLock.Lock()
	defer openersLock.Unlock()

	openers[strings.ToLower(ext)] = o
}

/*
HasOpener tests if a store file reader is registered for the extension of
the given path.
*/
func HasOpener(path string) bool {
	openersLock.RLock()
	defer openersLock.RUnlock()

	_, ok := openers[pathExt(path)]
	return ok
}

/*
Open loads a store file using the reader registered for its file extension.
*/
func Open(path string) (Store, error) {
	openersLock.RLock()
	opener, ok := openers[pathExt(path)]
	openersLock.RUnlock()

	if !ok {
		return nil, &StoreError{Type: ErrUnsupportedFormat,
			Detail: fmt.Sprintf("No store reader for: %v", path)}
	}

	return opener(path)
}

/*
ScanDir returns all store files in a directory for which a reader is
registered. The result is sorted for deterministic registration order.
*/
func ScanDir(dir string) ([]string, error) {
	var res []string

	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, &StoreError{Type: ErrInputNotFound, Detail: err.Error()}
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if HasOpener(p) {
			res = append(res, p)
		}
	}

	sort.Strings(res)

	return res, nil
}

/*
pathExt returns the lower case file extension of a path without the
leading dot.
*/
func pathExt(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
