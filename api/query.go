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
	"context"
	"io"
	"io/ioutil"
	"mime"
	"net/http"

	"github.com/knakk/rdf"

	"github.com/fedhdt/fedhdt/eval"
)

/*
EndpointQuery is the query endpoint URL (rooted). Handles everything
under query/...
*/
const EndpointQuery = APIRoot + "/query"

/*
QueryEndpointInst creates a new endpoint handler.
*/
func QueryEndpointInst() RestEndpointHandler {
	return &queryEndpoint{}
}

/*
Handler object for query operations.
*/
type queryEndpoint struct {
	*DefaultEndpointHandler
}

/*
HandleGET runs a query from a URL parameter. A request without query text
answers with a service description document.
*/
func (qe *queryEndpoint) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {
	values := r.URL.Query()["query"]

	if len(values) == 0 {
		qe.serviceDescription(w, r)
		return
	}

	if len(values) > 1 {
		http.Error(w, "Expected exactly one query parameter", http.StatusBadRequest)
		return
	}

	qe.run(w, r, values[0])
}

/*
HandlePOST runs a query from a raw body or a form field. Exactly one
source must supply the query text.
*/
func (qe *queryEndpoint) HandlePOST(w http.ResponseWriter, r *http.Request, resources []string) {
	query, ok := queryText(w, r)

	if ok {
		qe.run(w, r, query)
	}
}

/*
queryText extracts the query text of a POST request. The text can come
from a URL parameter, the raw body or a form field.
*/
func queryText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var sources []string

	sources = append(sources, r.URL.Query()["query"]...)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		http.Error(w, "Could not read request content type: "+err.Error(),
			http.StatusBadRequest)
		return "", false
	}

	switch mediaType {

	case "application/sparql-query":
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

		sources = append(sources, r.PostForm["query"]...)

	default:
		http.Error(w, "Unsupported content type: "+mediaType,
			http.StatusUnsupportedMediaType)
		return "", false
	}

	if len(sources) != 1 {
		http.Error(w, "Expected exactly one query source", http.StatusBadRequest)
		return "", false
	}

	return sources[0], true
}

/*
run executes query text against a fresh snapshot of the dataset and
streams the result in the negotiated format.
*/
func (qe *queryEndpoint) run(w http.ResponseWriter, r *http.Request, query string) {
	ctx, cancel := context.WithTimeout(r.Context(), RequestTimeout)
	defer cancel()

	snapshot, err := Registry.Snapshot(ctx, nil)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	defer snapshot.Close()

	res, err := Engine.Query(ctx, query, snapshot)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	writeResult(ctx, w, r, res)
}

/*
writeResult negotiates the format for a result and streams it.
*/
func writeResult(ctx context.Context, w http.ResponseWriter, r *http.Request,
	res eval.Result) {

	// An already expired deadline must answer with an error status
	// instead of an empty 200 response

	if err := ctx.Err(); err != nil {
		writeTaxonomyError(w, err)
		return
	}

	negotiator := ResultNegotiator

	if _, ok := res.(*eval.Graph); ok {
		negotiator = GraphNegotiator
	}

	format, ok := negotiator.Negotiate(r.Header.Get("Accept"))
	if !ok {
		http.Error(w, "No acceptable result format", http.StatusNotAcceptable)
		return
	}

	contentType, chunks := SerializeResult(res, format)

	w.Header().Set("content-type", contentType)

	io.Copy(w, NewPullReader(deadlineChunks(ctx, chunks)))
}

/*
deadlineChunks stops a chunk source once the request deadline has been
reached.
*/
func deadlineChunks(ctx context.Context, next ChunkFunc) ChunkFunc {
	return func() ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		return next()
	}
}

/*
serviceDescription answers with a machine readable description of the
query service in a negotiated RDF format.
*/
func (qe *queryEndpoint) serviceDescription(w http.ResponseWriter, r *http.Request) {
	const sd = "http://www.w3.org/ns/sparql-service-description#"

	ctx, cancel := context.WithTimeout(r.Context(), RequestTimeout)
	defer cancel()

	service, _ := rdf.NewIRI("http://" + r.Host + EndpointQuery)

	var triples []rdf.Triple

	addTriple := func(p string, o rdf.Object) {
		pred, _ := rdf.NewIRI(p)
		triples = append(triples, rdf.Triple{Subj: service, Pred: pred, Obj: o})
	}

	addIRITriple := func(p string, o string) {
		obj, _ := rdf.NewIRI(o)
		addTriple(p, obj)
	}

	addIRITriple("http://www.w3.org/1999/02/22-rdf-syntax-ns#type", sd+"Service")
	addTriple(sd+"endpoint", service)
	addIRITriple(sd+"supportedLanguage", sd+"SPARQL11Query")

	for _, name := range Registry.Names() {
		if graph, err := rdf.NewIRI(name); err == nil {
			addTriple(sd+"namedGraph", graph)
		}
	}

	idx := 0

	next := func() (*rdf.Triple, error) {
		if idx >= len(triples) {
			return nil, nil
		}

		triple := &triples[idx]
		idx++

		return triple, nil
	}

	writeResult(ctx, w, r, &eval.Graph{Next: next})
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (qe *queryEndpoint) SwaggerDefs(s map[string]interface{}) {

	s["paths"].(map[string]interface{})["/query"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Run a query against the dataset.",
			"description": "The query endpoint evaluates a query over all registered graphs and streams the result in the negotiated format. Without a query parameter a service description document is returned.",
			"produces": []string{
				"text/plain",
				"text/csv",
				"text/tab-separated-values",
				"application/sparql-results+json",
				"application/sparql-results+xml",
				"application/n-triples",
				"application/n-quads",
				"text/turtle",
			},
			"parameters": []map[string]interface{}{
				{
					"name":        "query",
					"in":          "query",
					"description": "Query which should be evaluated.",
					"required":    false,
					"type":        "string",
				},
			},
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
		"post": map[string]interface{}{
			"summary":     "Run a query against the dataset.",
			"description": "The query endpoint evaluates a query over all registered graphs and streams the result in the negotiated format. The query text is taken from the raw body or a form field.",
			"consumes": []string{
				"application/sparql-query",
				"application/x-www-form-urlencoded",
			},
			"produces": []string{
				"text/plain",
				"text/csv",
				"text/tab-separated-values",
				"application/sparql-results+json",
				"application/sparql-results+xml",
				"application/n-triples",
				"application/n-quads",
				"text/turtle",
			},
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
	}
}
