/*
 * FedHDT
 *
 * Copyright 2025 The FedHDT Authors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package api

import (
	"fmt"
	"io/ioutil"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/knakk/rdf"

	"github.com/fedhdt/fedhdt/dataset"
	"github.com/fedhdt/fedhdt/eval"
	"github.com/fedhdt/fedhdt/sparql"
	"github.com/fedhdt/fedhdt/store"
)

/*
EndpointUpdate is the update endpoint URL (rooted). Handles everything
under update/...
*/
const EndpointUpdate = APIRoot + "/update"

/*
UpdateEndpointInst creates a new endpoint handler.
*/
func UpdateEndpointInst() RestEndpointHandler {
	return &updateEndpoint{}
}

/*
Handler object for update operations.
*/
type updateEndpoint struct {
	*DefaultEndpointHandler
}

/*
HandlePOST applies an update request. The full request is validated
before any operation is applied. Only operations which add new graphs are
allowed, everything which would touch existing data is rejected.
*/
func (ue *updateEndpoint) HandlePOST(w http.ResponseWriter, r *http.Request, resources []string) {
	text, ok := updateText(w, r)
	if !ok {
		return
	}

	ops, err := sparql.ParseUpdate("request", text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := validateOps(ops); err != nil {
		writeTaxonomyError(w, err)
		return
	}

	// Loading remote documents is recognized but not supported. A non
	// silent LOAD stops the request before anything is applied.

	for _, op := range ops {
		if load, ok := op.(*sparql.LoadOp); ok && !load.Silent {
			http.Error(w, "LOAD is not implemented", http.StatusBadRequest)
			return
		}
	}

	for _, op := range ops {
		if err := applyOp(op); err != nil {
			writeTaxonomyError(w, err)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

/*
updateText extracts the update text of a POST request. The text can come
from the raw body or a form field, exactly one source must supply it.
*/
func updateText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var sources []string

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		http.Error(w, "Could not read request content type: "+err.Error(),
			http.StatusBadRequest)
		return "", false
	}

	switch mediaType {

	case "application/sparql-update":
		body, rerr := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
		if rerr != nil {
			http.Error(w, "Could not read request body: "+rerr.Error(),
				http.StatusBadRequest)
			return "", false
		}

		if len(body) > 0 {
			sources = append(sources, string(body))
		}

	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)

		if perr := r.ParseForm(); perr != nil {
			http.Error(w, "Could not decode request body: "+perr.Error(),
				http.StatusBadRequest)
			return "", false
		}

		sources = append(sources, r.PostForm["update"]...)

	default:
		http.Error(w, "Unsupported content type: "+mediaType,
			http.StatusUnsupportedMediaType)
		return "", false
	}

	if len(sources) != 1 {
		http.Error(w, "Expected exactly one update source", http.StatusBadRequest)
		return "", false
	}

	return sources[0], true
}

/*
validateOps runs the validation state machine over all operations of an
update request. The first rejection aborts the request, nothing is
applied in that case.
*/
func validateOps(ops []sparql.UpdateOp) error {

	for _, op := range ops {

		switch op := op.(type) {

		case *sparql.CreateOp:
			if !op.Silent && Registry.Contains(op.Graph) {
				return &dataset.Error{Type: dataset.ErrAlreadyExists,
					Detail: op.Graph}
			}

		case *sparql.InsertDataOp:
			for _, quad := range op.Quads {
				if quad.Graph == "" {
					return &dataset.Error{Type: dataset.ErrParse,
						Detail: "Inserting into the default graph is not allowed"}
				}
			}

			for _, name := range insertGraphs(op) {
				if Registry.Contains(name) {
					return &dataset.Error{Type: dataset.ErrAlreadyExists,
						Detail: name}
				}
			}

		case *sparql.LoadOp:
			if op.Silent {
				continue
			}

			if op.Graph == "" {
				return &dataset.Error{Type: dataset.ErrParse,
					Detail: "Loading into the default graph is not allowed"}
			}

			if Registry.Contains(op.Graph) {
				return &dataset.Error{Type: dataset.ErrAlreadyExists,
					Detail: op.Graph}
			}

		default:
			return &dataset.Error{Type: dataset.ErrForbidden,
				Detail: "The dataset is read-only for existing data"}
		}
	}

	return nil
}

/*
insertGraphs returns the distinct target graphs of an insert operation in
order of first appearance.
*/
func insertGraphs(op *sparql.InsertDataOp) []string {
	var names []string

	seen := make(map[string]bool)

	for _, quad := range op.Quads {
		if !seen[quad.Graph] {
			seen[quad.Graph] = true
			names = append(names, quad.Graph)
		}
	}

	return names
}

/*
applyOp applies a single validated operation.
*/
func applyOp(op sparql.UpdateOp) error {

	switch op := op.(type) {

	case *sparql.CreateOp:
		if Registry.Contains(op.Graph) {

			// Validation only lets this through for a silent create

			return nil
		}

		return Registry.CreateEmpty(op.Graph)

	case *sparql.InsertDataOp:
		byGraph := make(map[string][]eval.Quad)

		for _, quad := range op.Quads {
			byGraph[quad.Graph] = append(byGraph[quad.Graph], quad)
		}

		for _, name := range insertGraphs(op) {
			if err := insertQuads(name, byGraph[name]); err != nil {
				return err
			}
		}
	}

	// A silent LOAD of an unsupported source is ignored

	return nil
}

/*
insertQuads materializes quads as a temporary triple file and hands it to
the registry.
*/
func insertQuads(name string, quads []eval.Quad) error {
	tmp := filepath.Join(os.TempDir(), uuid.New().String()+".nt")

	if err := writeTripleFile(tmp, quads); err != nil {
		return err
	}
	defer os.Remove(tmp)

	return Registry.Insert(name, tmp)
}

/*
writeTripleFile writes the triple components of quads as an N-Triples
file.
*/
func writeTripleFile(path string, quads []eval.Quad) error {
	f, err := os.Create(path)
	if err != nil {
		return &store.StoreError{Type: store.ErrWriting, Detail: err.Error()}
	}

	enc := rdf.NewTripleEncoder(f, rdf.NTriples)

	for _, quad := range quads {
		triple, err := quadTriple(quad)

		if err == nil {
			err = enc.Encode(triple)
		}

		if err != nil {
			f.Close()
			os.Remove(path)

			return err
		}
	}

	err = enc.Close()

	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(path)

		return &store.StoreError{Type: store.ErrWriting, Detail: err.Error()}
	}

	return nil
}

/*
quadTriple converts the triple components of an internal quad into an RDF
triple.
*/
func quadTriple(quad eval.Quad) (rdf.Triple, error) {
	st, err := store.ExternalizeTerm(quad.Subject)
	if err != nil {
		return rdf.Triple{}, err
	}

	pt, err := store.ExternalizeTerm(quad.Predicate)
	if err != nil {
		return rdf.Triple{}, err
	}

	ot, err := store.ExternalizeTerm(quad.Object)
	if err != nil {
		return rdf.Triple{}, err
	}

	subj, ok := st.(rdf.Subject)
	if !ok {
		return rdf.Triple{}, &store.StoreError{Type: store.ErrParse,
			Detail: fmt.Sprintf("Invalid subject: %v", quad.Subject)}
	}

	pred, ok := pt.(rdf.Predicate)
	if !ok {
		return rdf.Triple{}, &store.StoreError{Type: store.ErrParse,
			Detail: fmt.Sprintf("Invalid predicate: %v", quad.Predicate)}
	}

	obj, ok := ot.(rdf.Object)
	if !ok {
		return rdf.Triple{}, &store.StoreError{Type: store.ErrParse,
			Detail: fmt.Sprintf("Invalid object: %v", quad.Object)}
	}

	return rdf.Triple{Subj: subj, Pred: pred, Obj: obj}, nil
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (ue *updateEndpoint) SwaggerDefs(s map[string]interface{}) {

	s["paths"].(map[string]interface{})["/update"] = map[string]interface{}{
		"post": map[string]interface{}{
			"summary":     "Append data to the dataset.",
			"description": "The update endpoint accepts update requests which only add new graphs. Operations which would modify or remove existing data are rejected and the whole request is validated before anything is applied.",
			"consumes": []string{
				"application/sparql-update",
				"application/x-www-form-urlencoded",
			},
			"produces": []string{
				"text/plain",
			},
			"responses": map[string]interface{}{
				"204": map[string]interface{}{
					"description": "The update was applied.",
				},
				"default": map[string]interface{}{
					"description": "Error response",
					"schema": map[string]interface{}{
						"$ref": "#/definitions/Error",
					},
				},
			},
		},
	}
}
