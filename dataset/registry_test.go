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
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/fedhdt/fedhdt/store"
)

const testdbdir = "test"

func TestMain(m *testing.M) {
	flag.Parse()

	// Create a directory for the test files

	os.RemoveAll(testdbdir)
	os.MkdirAll(testdbdir, 0770)

	res := m.Run()

	// Teardown

	if err := os.RemoveAll(testdbdir); err != nil {
		fmt.Print("Could not remove test directory:", err.Error())
	}

	os.Exit(res)
}

/*
writeStoreFile creates a native store file with the given triples.
*/
func writeStoreFile(t *testing.T, name string, triples ...store.Triple) string {
	path := filepath.Join(testdbdir, name)

	if err := store.WriteFileStore(path, triples); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestRegistryLifecycle(t *testing.T) {
	p1 := writeStoreFile(t, "first."+store.FileStoreExt,
		store.Triple{Subject: "a", Predicate: "b", Object: "c"})
	p2 := writeStoreFile(t, "second."+store.FileStoreExt)

	r := NewRegistry(testdbdir)

	if err := r.Register([]string{p1, p2}); err != nil {
		t.Error(err)
		return
	}

	if res := r.Count(); res != 2 {
		t.Error("Unexpected registry size:", res)
		return
	}

	if !r.Contains("file:///first." + store.FileStoreExt) {
		t.Error("Graph should be registered")
		return
	}

	if res := fmt.Sprint(r.Names()); res != fmt.Sprint([]string{
		"file:///first." + store.FileStoreExt,
		"file:///second." + store.FileStoreExt,
	}) {
		t.Error("Unexpected result:", res)
		return
	}

	// Registration is all-or-nothing

	if err := r.Register([]string{p1, "missing.fst"}); err == nil ||
		err.(*Error).Type != ErrInputNotFound {
		t.Error("Unexpected result:", err)
		return
	}

	// Removing a graph deletes the backing file

	removed, err := r.Remove("file:///first." + store.FileStoreExt)
	if !removed || err != nil {
		t.Error("Unexpected result:", removed, err)
		return
	}

	if r.Contains("file:///first." + store.FileStoreExt) {
		t.Error("Graph should no longer be registered")
		return
	}

	if _, err := os.Stat(p1); !os.IsNotExist(err) {
		t.Error("Backing file should have been deleted:", err)
		return
	}

	if removed, _ := r.Remove("file:///first." + store.FileStoreExt); removed {
		t.Error("Removing twice should report a missing graph")
		return
	}

	// Clear drops the mapping but keeps backing files

	r.Clear()

	if res := r.Count(); res != 0 {
		t.Error("Unexpected registry size:", res)
		return
	}

	if _, err := os.Stat(p2); err != nil {
		t.Error("Backing file should still exist:", err)
		return
	}
}

func TestRegistryInsert(t *testing.T) {
	r := NewRegistry(testdbdir)

	// Native store files are registered directly

	p := writeStoreFile(t, "direct."+store.FileStoreExt)

	if err := r.Insert("http://example.org/direct", p); err != nil {
		t.Error(err)
		return
	}

	if path, _ := r.Path("http://example.org/direct"); path != p {
		t.Error("Unexpected result:", path)
		return
	}

	// RDF input is converted into the registry location

	nt := filepath.Join(testdbdir, "upload.nt")
	ioutil.WriteFile(nt, []byte(`<http://example.org/a> <http://example.org/p> "one" .
`), 0660)

	if err := r.Insert("http://example.org/upload", nt); err != nil {
		t.Error(err)
		return
	}

	path, ok := r.Path("http://example.org/upload")

	if !ok || filepath.Ext(path) != "."+store.FileStoreExt {
		t.Error("Unexpected result:", path)
		return
	}

	info, err := store.ReadInfo(path)
	if err != nil || info.Triples != 1 {
		t.Error("Unexpected result:", info, err)
		return
	}

	// Unsupported input formats are rejected

	png := filepath.Join(testdbdir, "image.png")
	ioutil.WriteFile(png, []byte("x"), 0660)

	if err := r.Insert("http://example.org/image", png); err == nil ||
		err.(*Error).Type != ErrUnsupportedFormat {
		t.Error("Unexpected result:", err)
		return
	}

	if err := r.Insert("http://example.org/missing", "missing.nt"); err == nil ||
		err.(*Error).Type != ErrInputNotFound {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestRegistryCreateEmpty(t *testing.T) {
	r := NewRegistry(testdbdir)

	if err := r.CreateEmpty("http://example.org/empty"); err != nil {
		t.Error(err)
		return
	}

	path, ok := r.Path("http://example.org/empty")
	if !ok {
		t.Error("Graph should be registered")
		return
	}

	info, err := store.ReadInfo(path)
	if err != nil || info.Triples != 0 {
		t.Error("Unexpected result:", info, err)
		return
	}
}

func TestRemoveDerivedFiles(t *testing.T) {
	p := writeStoreFile(t, "cached."+store.FileStoreExt)

	index := p + ".index.v1-1"
	cache := p + ".cache"
	other := filepath.Join(testdbdir, "unrelated.cache")

	ioutil.WriteFile(index, []byte("x"), 0660)
	ioutil.WriteFile(cache, []byte("x"), 0660)
	ioutil.WriteFile(other, []byte("x"), 0660)

	r := NewRegistry(testdbdir)
	r.Register([]string{p})

	if removed, err := r.Remove(GraphName(p)); !removed || err != nil {
		t.Error("Unexpected result:", removed, err)
		return
	}

	for _, path := range []string{p, index, cache} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("File should have been deleted:", path)
			return
		}
	}

	if _, err := os.Stat(other); err != nil {
		t.Error("Unrelated file should still exist:", err)
		return
	}
}
