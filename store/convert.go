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
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/knakk/rdf"
)

/*
rdfFormats maps input file extensions to their serialization format.
*/
var rdfFormats = map[string]rdf.Format{
	"nt":  rdf.NTriples,
	"ttl": rdf.Turtle,
}

/*
ConvertResult describes the outcome of processing a list of RDF input
files.
*/
type ConvertResult struct {
	Converted int      // Number of input files which were processed
	Unhandled []string // Input files which could not be processed
}

/*
CombineFiles merges the given RDF input files into a single N-Triples
stream on w. Inputs which are already N-Triples are copied verbatim while
other supported formats are converted statement by statement. Inputs with
an unsupported extension or which cannot be opened are collected as
unhandled and skipped.
*/
func CombineFiles(paths []string, w io.Writer) (*ConvertResult, error) {
	res := &ConvertResult{}

	for _, path := range paths {
		format, ok := rdfFormats[pathExt(path)]

		if !ok {
			res.Unhandled = append(res.Unhandled, path)
			continue
		}

		f, err := os.Open(path)
		if err != nil {
			res.Unhandled = append(res.Unhandled, path)
			continue
		}

		if format == rdf.NTriples {
			err = copyStatements(f, w)
		} else {
			err = convertStatements(path, bufio.NewReader(f), format, w)
		}

		f.Close()

		if err != nil {
			return res, err
		}

		res.Converted++
	}

	return res, nil
}

/*
CombineTriples produces a single N-Triples file from the given RDF input
files and returns its path together with the inputs which could not be
processed. A single input which already is an N-Triples file is returned
unmodified, otherwise a combined file is written to dir.
*/
func CombineTriples(inputs []string, dir string) (string, []string, error) {

	// A single triple file needs no processing

	if len(inputs) == 1 && pathExt(inputs[0]) == "nt" {

		if _, err := os.Stat(inputs[0]); err != nil {
			return "", nil, &StoreError{Type: ErrInputNotFound, Detail: err.Error()}
		}

		return inputs[0], nil, nil
	}

	out := filepath.Join(dir, uuid.New().String()+".nt")

	f, err := os.Create(out)
	if err != nil {
		return "", nil, &StoreError{Type: ErrWriting, Detail: err.Error()}
	}

	res, err := CombineFiles(inputs, f)

	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(out)
		return "", res.Unhandled, err
	}

	return out, res.Unhandled, nil
}

/*
CreateFileStore builds a native store file at out from the given RDF input
files. The inputs are first combined into a single N-Triples file next to
the output which is then encoded into the store format. Inputs with an
unsupported extension or which cannot be opened are collected as unhandled
and skipped.
*/
func CreateFileStore(inputs []string, out string) (*ConvertResult, error) {
	combined, unhandled, err := CombineTriples(inputs, filepath.Dir(out))
	if err != nil {
		return &ConvertResult{Unhandled: unhandled}, err
	}

	res := &ConvertResult{
		Converted: len(inputs) - len(unhandled),
		Unhandled: unhandled,
	}

	// A reused input file must survive, intermediate files are cleaned up

	if len(inputs) != 1 || combined != inputs[0] {
		defer os.Remove(combined)
	}

	f, err := os.Open(combined)
	if err != nil {
		return res, &StoreError{Type: ErrInputNotFound, Detail: err.Error()}
	}

	triples, err := DecodeTriples(combined, bufio.NewReader(f), rdf.NTriples)

	f.Close()

	if err != nil {
		return res, err
	}

	if err := WriteFileStore(out, triples); err != nil {
		return res, err
	}

	return res, nil
}

/*
DecodeTriples reads all RDF statements from r in the given format and
returns them in internal representation. The path is only used for error
messages.
*/
func DecodeTriples(path string, r io.Reader, format rdf.Format) ([]Triple, error) {
	var triples []Triple

	dec := rdf.NewTripleDecoder(r, format)

	for {
		t, err := dec.Decode()

		if err == io.EOF {
			break
		} else if err != nil {
			return nil, &StoreError{Type: ErrParse,
				Detail: fmt.Sprintf("%v: %v", path, err)}
		}

		subject, err := InternalizeTerm(t.Subj)
		if err != nil {
			return nil, err
		}

		predicate, err := InternalizeTerm(t.Pred)
		if err != nil {
			return nil, err
		}

		object, err := InternalizeTerm(t.Obj)
		if err != nil {
			return nil, err
		}

		triples = append(triples, Triple{subject, predicate, object})
	}

	return triples, nil
}

/*
copyStatements copies an N-Triples document verbatim and terminates it
with a newline so concatenated documents stay line separated.
*/
func copyStatements(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return &StoreError{Type: ErrWriting, Detail: err.Error()}
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return &StoreError{Type: ErrWriting, Detail: err.Error()}
	}

	return nil
}

/*
convertStatements decodes RDF statements from r and writes them to w as
N-Triples.
*/
func convertStatements(path string, r io.Reader, format rdf.Format, w io.Writer) error {
	dec := rdf.NewTripleDecoder(r, format)

	for {
		t, err := dec.Decode()

		if err == io.EOF {
			break
		} else if err != nil {
			return &StoreError{Type: ErrParse,
				Detail: fmt.Sprintf("%v: %v", path, err)}
		}

		if _, err := io.WriteString(w, t.Serialize(rdf.NTriples)); err != nil {
			return &StoreError{Type: ErrWriting, Detail: err.Error()}
		}
	}

	return nil
}
