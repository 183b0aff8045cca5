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
Package api implements the HTTP endpoints of the FedHDT server. The
query and update endpoints follow the SPARQL protocol with an append-only
restriction on updates, the store endpoint manages the graphs of the
dataset directly. The API responds in the negotiated result format if a
request was successful and in plain text in all other cases.

API endpoints:

/about        - Version information
/query        - Run a query against the dataset
/update       - Append data to the dataset
/store        - Direct graph management
/sock         - Run queries over a websocket connection
/swagger.json - Dynamically generated swagger definition
*/
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/fedhdt/fedhdt/dataset"
	"github.com/fedhdt/fedhdt/eval"
	"github.com/fedhdt/fedhdt/sparql"
	"github.com/fedhdt/fedhdt/store"
)

/*
APIRoot is the root directory for the REST API
*/
const APIRoot = ""

/*
APISchemes is a list of supported protocol schemes
*/
var APISchemes = []string{"https", "http"}

/*
APIHost is the host definition for the REST API
*/
var APIHost = "localhost:9090"

/*
Registry is the store registry which should be used by the REST API.
*/
var Registry *dataset.Registry

/*
Engine is the query evaluator which should be used by the REST API.
*/
var Engine eval.Evaluator

/*
RequestTimeout is the wall-clock limit for a single request.
*/
var RequestTimeout = 60 * time.Second

/*
EnableCORS answers cross-origin requests from browsers when set. Disabled
by default.
*/
var EnableCORS = false

/*
MaxBodySize is the maximum size of a request body in bytes.
*/
var MaxBodySize int64 = 128 * 1024 * 1024

/*
RestEndpointInst models a factory function for REST endpoint handlers.
*/
type RestEndpointInst func() RestEndpointHandler

/*
GeneralEndpointMap contains all endpoints of the server. Each endpoint is
registered under its exact path and its subtree path so requests with and
without a trailing slash are routed alike.
*/
var GeneralEndpointMap = map[string]RestEndpointInst{
	EndpointAbout:        AboutEndpointInst,
	EndpointQuery:        QueryEndpointInst,
	EndpointQuery + "/":  QueryEndpointInst,
	EndpointUpdate:       UpdateEndpointInst,
	EndpointUpdate + "/": UpdateEndpointInst,
	EndpointStore:        StoreEndpointInst,
	EndpointStore + "/":  StoreEndpointInst,
	EndpointSock:         SockEndpointInst,
	EndpointSock + "/":   SockEndpointInst,
	EndpointSwagger:      SwaggerEndpointInst,
}

/*
RestEndpointHandler models a REST endpoint handler.
*/
type RestEndpointHandler interface {

	/*
		HandleGET handles a GET request.
	*/
	HandleGET(w http.ResponseWriter, r *http.Request, resources []string)

	/*
		HandlePOST handles a POST request.
	*/
	HandlePOST(w http.ResponseWriter, r *http.Request, resources []string)

	/*
		HandlePUT handles a PUT request.
	*/
	HandlePUT(w http.ResponseWriter, r *http.Request, resources []string)

	/*
		HandleDELETE handles a DELETE request.
	*/
	HandleDELETE(w http.ResponseWriter, r *http.Request, resources []string)

	/*
		SwaggerDefs is used to describe the endpoint in swagger.
	*/
	SwaggerDefs(s map[string]interface{})
}

/*
Map of all registered endpoint handlers.
*/
var registered = map[string]RestEndpointInst{}

/*
HandleFunc to use for registering handlers
*/
var HandleFunc = http.HandleFunc

/*
RegisterRestEndpoints registers all given REST endpoint handlers.
*/
func RegisterRestEndpoints(endpointInsts map[string]RestEndpointInst) {

	for url, endpointInst := range endpointInsts {
		registered[url] = endpointInst

		HandleFunc(url, func() func(w http.ResponseWriter, r *http.Request) {

			var handlerURL = url
			var handlerInst = endpointInst

			return func(w http.ResponseWriter, r *http.Request) {

				if EnableCORS {

					if r.Method == "OPTIONS" {
						corsPreflight(w, r)
						return
					}

					if r.Header.Get("Origin") != "" {
						w.Header().Set("Access-Control-Allow-Origin", "*")
					}
				}

				// Create a new handler instance

				handler := handlerInst()

				// Handle request in appropriate method

				res := strings.TrimSpace(r.URL.Path[len(handlerURL):])

				if len(res) > 0 && res[len(res)-1] == '/' {
					res = res[:len(res)-1]
				}

				var resources []string

				if res != "" {
					resources = strings.Split(res, "/")
				}

				switch r.Method {
				case "GET":
					handler.HandleGET(w, r, resources)

				case "HEAD":
					handler.HandleGET(headResponseWriter{w}, r, resources)

				case "POST":
					handler.HandlePOST(w, r, resources)

				case "PUT":
					handler.HandlePUT(w, r, resources)

				case "DELETE":
					handler.HandleDELETE(w, r, resources)

				default:
					http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
				}
			}
		}())
	}
}

/*
corsPreflight answers an OPTIONS preflight request. The requested method
and headers are echoed back since the endpoints themselves decide what
they accept.
*/
func corsPreflight(w http.ResponseWriter, r *http.Request) {

	if r.Header.Get("Origin") != "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}

	if method := r.Header.Get("Access-Control-Request-Method"); method != "" {
		w.Header().Set("Access-Control-Allow-Methods", method)
	}

	if headers := r.Header.Get("Access-Control-Request-Headers"); headers != "" {
		w.Header().Set("Access-Control-Allow-Headers", headers)
	}

	w.WriteHeader(http.StatusNoContent)
}

/*
headResponseWriter discards the body of a GET response so endpoints can
answer HEAD requests with their GET logic.
*/
type headResponseWriter struct {
	http.ResponseWriter
}

func (hw headResponseWriter) Write(b []byte) (int, error) {
	return len(b), nil
}

/*
DefaultEndpointHandler is the default endpoint handler.
*/
type DefaultEndpointHandler struct {
}

/*
HandleGET is a method stub returning an error.
*/
func (de *DefaultEndpointHandler) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}

/*
HandlePOST is a method stub returning an error.
*/
func (de *DefaultEndpointHandler) HandlePOST(w http.ResponseWriter, r *http.Request, resources []string) {
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}

/*
HandlePUT is a method stub returning an error.
*/
func (de *DefaultEndpointHandler) HandlePUT(w http.ResponseWriter, r *http.Request, resources []string) {
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}

/*
HandleDELETE is a method stub returning an error.
*/
func (de *DefaultEndpointHandler) HandleDELETE(w http.ResponseWriter, r *http.Request, resources []string) {
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}

/*
writeTaxonomyError writes a typed error with its protocol status code.
*/
func writeTaxonomyError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusForError(err))
}

/*
statusForError maps a typed error to its protocol status code.
*/
func statusForError(err error) int {

	if de, ok := err.(*dataset.Error); ok {

		switch de.Type {
		case dataset.ErrInputNotFound, dataset.ErrUnsupportedFormat, dataset.ErrParse, dataset.ErrAlreadyExists:
			return http.StatusBadRequest

		case dataset.ErrNotFound:
			return http.StatusNotFound

		case dataset.ErrForbidden:
			return http.StatusForbidden
		}

		return http.StatusInternalServerError
	}

	if se, ok := err.(*store.StoreError); ok {

		switch se.Type {
		case store.ErrInputNotFound, store.ErrUnsupportedFormat, store.ErrParse:
			return http.StatusBadRequest
		}

		return http.StatusInternalServerError
	}

	if _, ok := err.(*sparql.Error); ok {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}
