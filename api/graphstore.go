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
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/knakk/rdf"

	"github.com/fedhdt/fedhdt/dataset"
	"github.com/fedhdt/fedhdt/eval"
)

/*
EndpointStore is the store endpoint URL (rooted). Handles everything
under store/...
*/
const EndpointStore = APIRoot + "/store"

/*
Extensions of request body content types which can be loaded into a
graph.
*/
var bodyExtensions = map[string]string{
	"application/n-triples": "nt",
	"text/turtle":           "ttl",
}

/*
StoreEndpointInst creates a new endpoint handler.
*/
func StoreEndpointInst() RestEndpointHandler {
	return &storeEndpoint{}
}

/*
Handler object for direct graph management.
*/
type storeEndpoint struct {
	*DefaultEndpointHandler
}

/*
storeTarget describes which part of the dataset a request addresses.
*/
type storeTarget struct {
	graph   string // Graph name (empty for the whole dataset)
	byName  bool   // A graph parameter was given
	byValue bool   // The default parameter was given
}

/*
target reads the addressed part of the dataset from the request
parameters.
*/
func target(r *http.Request) storeTarget {
	values := r.URL.Query()

	if _, ok := values["default"]; ok {
		return storeTarget{byValue: true}
	}

	if graph := values.Get("graph"); graph != "" {
		return storeTarget{graph: graph, byName: true}
	}

	return storeTarget{}
}

/*
HandleGET serializes a graph or the whole dataset in a negotiated RDF
format. Existence checks use this handler through HEAD requests.
*/
func (se *storeEndpoint) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {
	t := target(r)

	if t.byValue {
		writeTaxonomyError(w, &dataset.Error{Type: dataset.ErrNotFound,
			Detail: "The dataset has no default graph"})
		return
	}

	if t.byName && !Registry.Contains(t.graph) {
		writeTaxonomyError(w, &dataset.Error{Type: dataset.ErrNotFound,
			Detail: t.graph})
		return
	}

	format, ok := GraphNegotiator.Negotiate(r.Header.Get("Accept"))
	if !ok {
		http.Error(w, "No acceptable result format", http.StatusNotAcceptable)
		return
	}

	var filter func(string) bool

	if t.byName {
		filter = func(name string) bool { return name == t.graph }
	}

	ctx, cancel := context.WithTimeout(r.Context(), RequestTimeout)
	defer cancel()

	snapshot, err := Registry.Snapshot(ctx, filter)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	defer snapshot.Close()

	quads, err := snapshot.QuadsForPattern("", "", "", "")
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	if err := ctx.Err(); err != nil {
		writeTaxonomyError(w, err)
		return
	}

	w.Header().Set("content-type", ContentTypes[format])

	io.Copy(w, NewPullReader(deadlineChunks(ctx, quadChunks(quads, format))))
}

/*
HandlePUT loads the request body into a graph. An existing graph mapping
is replaced by the new content.
*/
func (se *storeEndpoint) HandlePUT(w http.ResponseWriter, r *http.Request, resources []string) {
	t := target(r)

	if !t.byName {
		http.Error(w, "A target graph is required", http.StatusBadRequest)
		return
	}

	se.load(w, r, t.graph)
}

/*
HandlePOST loads the request body into a graph. Since stores are
immutable this behaves like PUT for an existing graph. Without a target a
new graph name is generated and returned in the Location header.
*/
func (se *storeEndpoint) HandlePOST(w http.ResponseWriter, r *http.Request, resources []string) {
	t := target(r)

	if t.byValue {
		http.Error(w, "The dataset has no default graph", http.StatusBadRequest)
		return
	}

	graph := t.graph

	if !t.byName {
		graph = "urn:uuid:" + uuid.New().String()
	}

	se.load(w, r, graph)
}

/*
HandleDELETE removes a graph together with its backing file or, without a
target, every registered graph.
*/
func (se *storeEndpoint) HandleDELETE(w http.ResponseWriter, r *http.Request, resources []string) {
	t := target(r)

	if t.byValue {
		http.Error(w, "The dataset has no default graph", http.StatusBadRequest)
		return
	}

	if t.byName {
		removed, err := Registry.Remove(t.graph)

		if err != nil {
			writeTaxonomyError(w, err)
			return
		}

		if !removed {
			writeTaxonomyError(w, &dataset.Error{Type: dataset.ErrNotFound,
				Detail: t.graph})
			return
		}

		w.WriteHeader(http.StatusNoContent)
		return
	}

	for _, name := range Registry.Names() {
		if _, err := Registry.Remove(name); err != nil {
			writeTaxonomyError(w, err)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

/*
load reads the request body into a temporary file and registers it under
the given graph name.
*/
func (se *storeEndpoint) load(w http.ResponseWriter, r *http.Request, graph string) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		http.Error(w, "Could not read request content type: "+err.Error(),
			http.StatusBadRequest)
		return
	}

	ext, ok := bodyExtensions[mediaType]
	if !ok {
		http.Error(w, "Unsupported content type: "+mediaType,
			http.StatusUnsupportedMediaType)
		return
	}

	tmp := filepath.Join(os.TempDir(), uuid.New().String()+"."+ext)

	f, err := os.Create(tmp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer os.Remove(tmp)

	_, err = io.Copy(f, http.MaxBytesReader(w, r.Body, MaxBodySize))

	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		http.Error(w, "Could not read request body: "+err.Error(),
			http.StatusBadRequest)
		return
	}

	existed := Registry.Contains(graph)

	if err := Registry.Insert(graph, tmp); err != nil {
		writeTaxonomyError(w, err)
		return
	}

	if existed {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Location", EndpointStore+"?graph="+url.QueryEscape(graph))
	w.WriteHeader(http.StatusCreated)
}

/*
quadChunks streams quads in a graph format. N-Quads lines carry the graph
name of each quad, the triple formats drop it.
*/
func quadChunks(quads []eval.Quad, format string) ChunkFunc {
	rdfFormat := rdf.NTriples

	if format == FormatTurtle {
		rdfFormat = rdf.Turtle
	}

	idx := 0

	return func() ([]byte, error) {
		if idx >= len(quads) {
			return nil, nil
		}

		buf := BufferPool.Get().(*bytes.Buffer)

		for i := 0; i < rowsPerChunk && idx < len(quads); i++ {
			quad := quads[idx]
			idx++

			triple, err := quadTriple(quad)
			if err != nil {
				buf.Reset()
				BufferPool.Put(buf)

				return nil, err
			}

			line := triple.Serialize(rdfFormat)

			if format == FormatNQuads {
				line = strings.TrimSuffix(line, "\n")
				line = strings.TrimSuffix(line, " .")
				line = fmt.Sprintf("%s <%s> .\n", line, quad.Graph)
			}

			buf.WriteString(line)
		}

		return copyChunk(buf), nil
	}
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (se *storeEndpoint) SwaggerDefs(s map[string]interface{}) {

	graphParam := map[string]interface{}{
		"name":        "graph",
		"in":          "query",
		"description": "Name of the addressed graph.",
		"required":    false,
		"type":        "string",
	}

	s["paths"].(map[string]interface{})["/store"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Serialize a graph or the whole dataset.",
			"description": "Without a graph parameter the whole dataset is serialized, graph names are carried in N-Quads output.",
			"produces": []string{
				"text/plain",
				"application/n-triples",
				"application/n-quads",
				"text/turtle",
			},
			"parameters": []map[string]interface{}{graphParam},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "The operation was successful.",
				},
				"default": map[string]interface{}{
					"description": "Error response",
					"schema": map[string]interface{}{
						"$ref": "#/definitions/Error",
					},
				},
			},
		},
		"put": map[string]interface{}{
			"summary":     "Load the request body into a graph.",
			"description": "The body must be an RDF document, an existing graph mapping is replaced.",
			"consumes": []string{
				"application/n-triples",
				"text/turtle",
			},
			"parameters": []map[string]interface{}{graphParam},
			"responses": map[string]interface{}{
				"201": map[string]interface{}{
					"description": "The graph was created.",
				},
				"204": map[string]interface{}{
					"description": "The graph was replaced.",
				},
				"default": map[string]interface{}{
					"description": "Error response",
					"schema": map[string]interface{}{
						"$ref": "#/definitions/Error",
					},
				},
			},
		},
		"post": map[string]interface{}{
			"summary":     "Load the request body into a graph.",
			"description": "Without a graph parameter a new graph name is generated and returned in the Location header.",
			"consumes": []string{
				"application/n-triples",
				"text/turtle",
			},
			"parameters": []map[string]interface{}{graphParam},
			"responses": map[string]interface{}{
				"201": map[string]interface{}{
					"description": "The graph was created.",
				},
				"204": map[string]interface{}{
					"description": "The graph was replaced.",
				},
				"default": map[string]interface{}{
					"description": "Error response",
					"schema": map[string]interface{}{
						"$ref": "#/definitions/Error",
					},
				},
			},
		},
		"delete": map[string]interface{}{
			"summary":     "Remove a graph or the whole dataset.",
			"description": "Removing a graph also deletes its backing file together with derived index and cache files.",
			"parameters":  []map[string]interface{}{graphParam},
			"responses": map[string]interface{}{
				"204": map[string]interface{}{
					"description": "The graph was removed.",
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
