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

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
)

/*
FileStoreExt is the file extension of the native store file container.
*/
const FileStoreExt = "fst"

/*
FileStoreMagic marks the beginning of a native store file.
*/
var FileStoreMagic = []byte("FHDT")

/*
FileStoreVersion is the container version this package reads and writes.
*/
const FileStoreVersion = 1

/*
Info is the metadata header of a native store file. It can be read without
loading the triple body (see ReadInfo).
*/
type Info struct {
	Triples    int // Total number of triples
	Subjects   int // Number of distinct subjects
	Predicates int // Number of distinct predicates
	Objects    int // Number of distinct objects
}

/*
FileStore is a Store implementation which loads a native store file fully
into memory on open. The on-disk layout is a fixed control info block
(magic and version), a gob encoded Info header and a gob encoded triple
body.
*/
type FileStore struct {
	path string
	info Info
	mem  *MemoryStore
}

/*
OpenFileStore loads a native store file.
*/
func OpenFileStore(path string) (*FileStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &StoreError{Type: ErrInputNotFound, Detail: err.Error()}
	}
	defer f.Close()

	r := bufio.NewReader(f)

	info, dec, err := readControlAndHeader(r, path)
	if err != nil {
		return nil, err
	}

	var triples []Triple

	if err := dec.Decode(&triples); err != nil {
		return nil, &StoreError{Type: ErrCorrupted,
			Detail: fmt.Sprintf("%v: %v", path, err)}
	}

	if len(triples) != info.Triples {
		return nil, &StoreError{Type: ErrCorrupted,
			Detail: fmt.Sprintf("%v: header declares %v triples but body has %v",
				path, info.Triples, len(triples))}
	}

	return &FileStore{path, *info, NewMemoryStore(triples...)}, nil
}

/*
Triples returns all triples matching the given pattern. Empty pattern
components are unbound.
*/
func (fs *FileStore) Triples(subject, predicate, object string) ([]Triple, error) {
	return fs.mem.Triples(subject, predicate, object)
}

/*
Size returns the total number of triples in the store.
*/
func (fs *FileStore) Size() int {
	return fs.info.Triples
}

/*
Info returns the metadata header of the store file.
*/
func (fs *FileStore) Info() Info {
	return fs.info
}

/*
Close releases all resources held by the store.
*/
func (fs *FileStore) Close() error {
	return fs.mem.Close()
}

/*
WriteFileStore writes triples as a native store file to the given path. An
existing file is replaced.
*/
func WriteFileStore(path string, triples []Triple) error {
	subjects := make(map[string]bool)
	predicates := make(map[string]bool)
	objects := make(map[string]bool)

	for _, t := range triples {
		subjects[t.Subject] = true
		predicates[t.Predicate] = true
		objects[t.Object] = true
	}

	info := Info{
		Triples:    len(triples),
		Subjects:   len(subjects),
		Predicates: len(predicates),
		Objects:    len(objects),
	}

	f, err := os.Create(path)
	if err != nil {
		return &StoreError{Type: ErrWriting, Detail: err.Error()}
	}

	w := bufio.NewWriter(f)

	enc, err := writeControlAndHeader(w, &info)

	if err == nil {
		err = enc.Encode(triples)
	}
	if err == nil {
		err = w.Flush()
	}

	if err != nil {
		f.Close()
		os.Remove(path)
		return &StoreError{Type: ErrWriting,
			Detail: fmt.Sprintf("%v: %v", path, err)}
	}

	return f.Close()
}

/*
ReadInfo reads only the control info and metadata header of a native store
file. The triple body is not loaded.
*/
func ReadInfo(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &StoreError{Type: ErrInputNotFound, Detail: err.Error()}
	}
	defer f.Close()

	info, _, err := readControlAndHeader(bufio.NewReader(f), path)

	return info, err
}

/*
writeControlAndHeader writes the control info block and the metadata
header. The returned encoder must be used for the triple body so the
file forms a single gob stream.
*/
func writeControlAndHeader(w *bufio.Writer, info *Info) (*gob.Encoder, error) {
	if _, err := w.Write(FileStoreMagic); err != nil {
		return nil, err
	}

	if err := binary.Write(w, binary.LittleEndian, uint16(FileStoreVersion)); err != nil {
		return nil, err
	}

	enc := gob.NewEncoder(w)

	return enc, enc.Encode(info)
}

/*
readControlAndHeader reads and validates the control info block and
returns the metadata header together with the decoder for the triple
body.
*/
func readControlAndHeader(r *bufio.Reader, path string) (*Info, *gob.Decoder, error) {
	magic := make([]byte, len(FileStoreMagic))

	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != string(FileStoreMagic) {
		return nil, nil, &StoreError{Type: ErrCorrupted,
			Detail: fmt.Sprintf("%v: not a native store file", path)}
	}

	var version uint16

	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, nil, &StoreError{Type: ErrCorrupted,
			Detail: fmt.Sprintf("%v: missing container version", path)}
	}

	if version != FileStoreVersion {
		return nil, nil, &StoreError{Type: ErrCorrupted,
			Detail: fmt.Sprintf("%v: unsupported container version %v", path, version)}
	}

	var info Info

	dec := gob.NewDecoder(r)

	if err := dec.Decode(&info); err != nil {
		return nil, nil, &StoreError{Type: ErrCorrupted,
			Detail: fmt.Sprintf("%v: invalid header: %v", path, err)}
	}

	return &info, dec, nil
}
