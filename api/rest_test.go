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
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/krotik/common/httputil"

	"github.com/fedhdt/fedhdt/config"
	"github.com/fedhdt/fedhdt/dataset"
	"github.com/fedhdt/fedhdt/sparql"
)

const TESTPORT = ":9098"

const testdbdir = "test"

var lastRes []string

type testEndpoint struct {
	*DefaultEndpointHandler
}

/*
HandleGET records the extracted resources of a request.
*/
func (te *testEndpoint) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {
	lastRes = resources
	te.DefaultEndpointHandler.HandleGET(w, r, resources)
}

func (te *testEndpoint) SwaggerDefs(s map[string]interface{}) {
}

var testEndpointMap = map[string]RestEndpointInst{
	"/": func() RestEndpointHandler {
		return &testEndpoint{}
	},
}

func TestMain(m *testing.M) {
	flag.Parse()

	// Setup

	os.RemoveAll(testdbdir)

	if err := os.MkdirAll(testdbdir, 0770); err != nil {
		fmt.Print("Could not create test directory:", err.Error())
		os.Exit(1)
	}

	Registry = dataset.NewRegistry(testdbdir)
	Engine = sparql.NewEngine(100, 0)
	APIHost = "localhost" + TESTPORT

	hs, wg := startServer()
	if hs == nil {
		return
	}

	RegisterRestEndpoints(testEndpointMap)
	RegisterRestEndpoints(GeneralEndpointMap)

	// Run the tests

	res := m.Run()

	// Teardown

	stopServer(hs, wg)

	os.RemoveAll(testdbdir)

	os.Exit(res)
}

/*
clearDataset removes all registered graphs so a test starts from an empty
dataset.
*/
func clearDataset() {
	for _, name := range Registry.Names() {
		Registry.Remove(name)
	}
}

func TestEndpointHandling(t *testing.T) {
	queryURL := "http://localhost" + TESTPORT

	lastRes = nil

	if _, _, res := sendTestRequest(queryURL, "GET", nil, nil); res != "Method Not Allowed" {
		t.Error("Unexpected response:", res)
		return
	}

	if lastRes != nil {
		t.Error("Unexpected lastRes:", lastRes)
	}

	lastRes = nil

	if _, _, res := sendTestRequest(queryURL+"/foo/bar", "GET", nil, nil); res != "Method Not Allowed" {
		t.Error("Unexpected response:", res)
		return
	}

	if fmt.Sprint(lastRes) != "[foo bar]" {
		t.Error("Unexpected lastRes:", lastRes)
	}

	lastRes = nil

	if _, _, res := sendTestRequest(queryURL+"/foo/bar/", "GET", nil, nil); res != "Method Not Allowed" {
		t.Error("Unexpected response:", res)
		return
	}

	if fmt.Sprint(lastRes) != "[foo bar]" {
		t.Error("Unexpected lastRes:", lastRes)
	}

	if _, _, res := sendTestRequest(queryURL, "UPDATE", nil, nil); res != "Method Not Allowed" {
		t.Error("Unexpected response:", res)
		return
	}

	// Test about endpoint

	if _, _, res := sendTestRequest(queryURL+"/about", "GET", nil, nil); res != fmt.Sprintf(`
{
  "product": "FedHDT",
  "version": "%v"
}`[1:], config.ProductVersion) {
		t.Error("Unexpected response:", res)
		return
	}
}

func TestCORSHandling(t *testing.T) {
	aboutURL := "http://localhost" + TESTPORT + "/about"

	originHeader := map[string]string{"Origin": "http://example.org"}

	// Cross-origin requests are ignored while CORS is disabled

	_, header, _ := sendTestRequest(aboutURL, "GET", originHeader, nil)

	if header.Get("Access-Control-Allow-Origin") != "" {
		t.Error("Unexpected header:", header)
		return
	}

	if st, _, _ := sendTestRequest(aboutURL, "OPTIONS", originHeader, nil); st != "405 Method Not Allowed" {
		t.Error("Unexpected response:", st)
		return
	}

	EnableCORS = true
	defer func() { EnableCORS = false }()

	_, header, _ = sendTestRequest(aboutURL, "GET", originHeader, nil)

	if header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Unexpected header:", header)
		return
	}

	// Preflight requests echo the requested method and headers

	st, header, res := sendTestRequest(aboutURL, "OPTIONS", map[string]string{
		"Origin":                         "http://example.org",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "Content-Type",
	}, nil)

	if st != "204 No Content" || res != "" ||
		header.Get("Access-Control-Allow-Origin") != "*" ||
		header.Get("Access-Control-Allow-Methods") != "POST" ||
		header.Get("Access-Control-Allow-Headers") != "Content-Type" {
		t.Error("Unexpected response:", st, header)
		return
	}

	// Same-origin requests get no allow header

	_, header, _ = sendTestRequest(aboutURL, "GET", nil, nil)

	if header.Get("Access-Control-Allow-Origin") != "" {
		t.Error("Unexpected header:", header)
		return
	}
}

func TestSwaggerEndpoint(t *testing.T) {
	queryURL := "http://localhost" + TESTPORT + "/swagger.json"

	st, _, res := sendTestRequest(queryURL, "GET", nil, nil)

	if st != "200 OK" {
		t.Error("Unexpected response:", st, res)
		return
	}

	var data map[string]interface{}

	if err := json.Unmarshal([]byte(res), &data); err != nil {
		t.Error("Unexpected response:", res, err)
		return
	}

	if data["swagger"] != "2.0" || data["host"] != "localhost"+TESTPORT {
		t.Error("Unexpected response:", res)
		return
	}

	info := data["info"].(map[string]interface{})

	if info["title"] != "FedHDT API" || info["version"] != config.ProductVersion {
		t.Error("Unexpected response:", res)
		return
	}

	paths := data["paths"].(map[string]interface{})

	for _, path := range []string{"/about", "/query", "/update", "/store"} {
		if _, ok := paths[path]; !ok {
			t.Error("Missing path:", path)
			return
		}
	}

	if _, ok := data["definitions"].(map[string]interface{})["Error"]; !ok {
		t.Error("Unexpected response:", res)
		return
	}
}

func TestQueryEndpoint(t *testing.T) {
	queryURL := "http://localhost" + TESTPORT + EndpointQuery
	updateURL := "http://localhost" + TESTPORT + EndpointUpdate

	clearDataset()

	// Seed two graphs through the update endpoint

	st, _, res := sendTestRequest(updateURL, "POST",
		map[string]string{"Content-Type": "application/sparql-update"}, []byte(`
INSERT DATA {
    GRAPH <http://example.org/qg1> { <http://example.org/qs1> <http://example.org/p> "one" } .
    GRAPH <http://example.org/qg2> { <http://example.org/qs2> <http://example.org/p> "two"@en }
}`))

	if st != "204 No Content" || res != "" {
		t.Error("Unexpected response:", st, res)
		return
	}

	query := `SELECT ?s ?o WHERE { ?s <http://example.org/p> ?o }`

	// Without an Accept header the result is CSV

	st, header, res := sendTestRequest(queryURL+"?query="+url.QueryEscape(query),
		"GET", nil, nil)

	expected := "s,o\nhttp://example.org/qs1,one\nhttp://example.org/qs2,two"

	if st != "200 OK" || res != expected ||
		header.Get("content-type") != "text/csv; charset=utf-8" {
		t.Error("Unexpected response:", st, header.Get("content-type"), res)
		return
	}

	// The raw body and the form field are equivalent query sources

	st, _, res = sendTestRequest(queryURL, "POST",
		map[string]string{"Content-Type": "application/sparql-query"}, []byte(query))

	if st != "200 OK" || res != expected {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, _, res = sendTestRequest(queryURL, "POST",
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		[]byte("query="+url.QueryEscape(query)))

	if st != "200 OK" || res != expected {
		t.Error("Unexpected response:", st, res)
		return
	}

	// JSON results

	st, header, res = sendTestRequest(queryURL+"?query="+url.QueryEscape(query),
		"GET", map[string]string{"Accept": "application/sparql-results+json"}, nil)

	if st != "200 OK" ||
		header.Get("content-type") != "application/sparql-results+json" ||
		!strings.Contains(res, `"type": "uri"`) ||
		!strings.Contains(res, `"value": "http://example.org/qs1"`) ||
		!strings.Contains(res, `"xml:lang": "en"`) {
		t.Error("Unexpected response:", st, res)
		return
	}

	// ASK results

	st, _, res = sendTestRequest(queryURL+"?query="+
		url.QueryEscape("ASK { ?s ?p ?o }"), "GET",
		map[string]string{"Accept": "text/csv"}, nil)

	if st != "200 OK" || res != "true" {
		t.Error("Unexpected response:", st, res)
		return
	}

	// Without query text the endpoint answers with a service description

	st, header, res = sendTestRequest(queryURL, "GET", nil, nil)

	if st != "200 OK" ||
		header.Get("content-type") != "application/n-quads" ||
		!strings.Contains(res, "sparql-service-description#Service") ||
		!strings.Contains(res, "http://example.org/qg1") {
		t.Error("Unexpected response:", st, res)
		return
	}

	// Error cases

	st, _, res = sendTestRequest(queryURL+"?query=a&query=b", "GET", nil, nil)

	if st != "400 Bad Request" || res != "Expected exactly one query parameter" {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, _, res = sendTestRequest(queryURL+"?query="+url.QueryEscape(query),
		"GET", map[string]string{"Accept": "image/png"}, nil)

	if st != "406 Not Acceptable" || res != "No acceptable result format" {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, _, res = sendTestRequest(queryURL, "POST",
		map[string]string{"Content-Type": "text/plain"}, []byte(query))

	if st != "415 Unsupported Media Type" ||
		res != "Unsupported content type: text/plain" {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, _, res = sendTestRequest(queryURL+"?query=NONSENSE", "GET", nil, nil)

	if st != "400 Bad Request" || !strings.HasPrefix(res, "Parse error in request:") {
		t.Error("Unexpected response:", st, res)
		return
	}
}

func TestUpdateEndpoint(t *testing.T) {
	updateURL := "http://localhost" + TESTPORT + EndpointUpdate

	clearDataset()

	sendUpdate := func(text string) (string, string) {
		st, _, res := sendTestRequest(updateURL, "POST",
			map[string]string{"Content-Type": "application/sparql-update"},
			[]byte(text))
		return st, res
	}

	insert := `INSERT DATA { GRAPH <http://example.org/new1> {
<http://example.org/s> <http://example.org/p> "one" } }`

	if st, res := sendUpdate(insert); st != "204 No Content" || res != "" {
		t.Error("Unexpected response:", st, res)
		return
	}

	if !Registry.Contains("http://example.org/new1") {
		t.Error("Graph was not created")
		return
	}

	// Inserting into an existing graph is rejected

	if st, res := sendUpdate(insert); st != "400 Bad Request" ||
		res != "DatasetError: Graph exists already (http://example.org/new1)" {
		t.Error("Unexpected response:", st, res)
		return
	}

	if st, res := sendUpdate(
		`INSERT DATA { <http://s> <http://p> "v" }`); st != "400 Bad Request" ||
		res != "DatasetError: Could not parse request data (Inserting into the default graph is not allowed)" {
		t.Error("Unexpected response:", st, res)
		return
	}

	// Everything which would touch existing data is forbidden

	for _, text := range []string{
		`DELETE DATA { GRAPH <http://example.org/new1> {
<http://example.org/s> <http://example.org/p> "one" } }`,
		"CLEAR ALL",
		"DROP GRAPH <http://example.org/new1>",
		"DELETE { ?s ?p ?o } WHERE { ?s ?p ?o }",
	} {
		if st, res := sendUpdate(text); st != "403 Forbidden" ||
			res != "DatasetError: Operation is not allowed (The dataset is read-only for existing data)" {
			t.Error("Unexpected response:", text, st, res)
			return
		}
	}

	if !Registry.Contains("http://example.org/new1") {
		t.Error("Rejected request had side effects")
		return
	}

	// A request is validated as a whole before anything is applied

	if st, _ := sendUpdate(
		"CREATE GRAPH <http://example.org/never1> ; CLEAR ALL"); st != "403 Forbidden" {
		t.Error("Unexpected response:", st)
		return
	}

	if Registry.Contains("http://example.org/never1") {
		t.Error("Rejected request had side effects")
		return
	}

	// Graph creation

	if st, _ := sendUpdate("CREATE GRAPH <http://example.org/empty1>"); st != "204 No Content" {
		t.Error("Unexpected response:", st)
		return
	}

	if !Registry.Contains("http://example.org/empty1") {
		t.Error("Graph was not created")
		return
	}

	if st, res := sendUpdate("CREATE GRAPH <http://example.org/empty1>"); st != "400 Bad Request" ||
		res != "DatasetError: Graph exists already (http://example.org/empty1)" {
		t.Error("Unexpected response:", st, res)
		return
	}

	if st, _ := sendUpdate("CREATE SILENT GRAPH <http://example.org/empty1>"); st != "204 No Content" {
		t.Error("Unexpected response:", st)
		return
	}

	// LOAD is recognized but not supported

	if st, res := sendUpdate(
		"LOAD <http://example.org/doc> INTO GRAPH <http://example.org/new2>"); st != "400 Bad Request" ||
		res != "LOAD is not implemented" {
		t.Error("Unexpected response:", st, res)
		return
	}

	if st, _ := sendUpdate(
		"LOAD SILENT <http://example.org/doc> INTO GRAPH <http://example.org/new3>"); st != "204 No Content" {
		t.Error("Unexpected response:", st)
		return
	}

	if Registry.Contains("http://example.org/new2") ||
		Registry.Contains("http://example.org/new3") {
		t.Error("Unexpected graph from a load operation")
		return
	}

	// Form field source

	st, _, res := sendTestRequest(updateURL, "POST",
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		[]byte("update="+url.QueryEscape("CREATE GRAPH <http://example.org/form1>")))

	if st != "204 No Content" || !Registry.Contains("http://example.org/form1") {
		t.Error("Unexpected response:", st, res)
		return
	}

	// Error cases

	st, _, res = sendTestRequest(updateURL, "POST",
		map[string]string{"Content-Type": "application/json"}, []byte("{}"))

	if st != "415 Unsupported Media Type" ||
		res != "Unsupported content type: application/json" {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, _, res = sendTestRequest(updateURL, "POST",
		map[string]string{"Content-Type": "application/sparql-update"}, nil)

	if st != "400 Bad Request" || res != "Expected exactly one update source" {
		t.Error("Unexpected response:", st, res)
		return
	}

	if st, res := sendUpdate("NONSENSE"); st != "400 Bad Request" ||
		!strings.HasPrefix(res, "Parse error in request:") {
		t.Error("Unexpected response:", st, res)
		return
	}
}

func TestStoreEndpoint(t *testing.T) {
	storeURL := "http://localhost" + TESTPORT + EndpointStore

	clearDataset()

	graphParam := "?graph=" + url.QueryEscape("http://example.org/g1")
	ntContent := map[string]string{"Content-Type": "application/n-triples"}

	// A target graph is required for PUT

	st, _, res := sendTestRequest(storeURL, "PUT", ntContent,
		[]byte(`<http://example.org/s1> <http://example.org/p> "one" .`))

	if st != "400 Bad Request" || res != "A target graph is required" {
		t.Error("Unexpected response:", st, res)
		return
	}

	// Create a graph

	st, header, res := sendTestRequest(storeURL+graphParam, "PUT", ntContent,
		[]byte(`<http://example.org/s1> <http://example.org/p> "one" .`))

	if st != "201 Created" ||
		header.Get("Location") != EndpointStore+"?graph=http%3A%2F%2Fexample.org%2Fg1" {
		t.Error("Unexpected response:", st, header.Get("Location"), res)
		return
	}

	// Existence check via HEAD

	if st, _, _ = sendTestRequest(storeURL+graphParam, "HEAD", nil, nil); st != "200 OK" {
		t.Error("Unexpected response:", st)
		return
	}

	// Serialize a single graph

	st, header, res = sendTestRequest(storeURL+graphParam, "GET",
		map[string]string{"Accept": "application/n-triples"}, nil)

	if st != "200 OK" || header.Get("content-type") != "application/n-triples" ||
		res != `<http://example.org/s1> <http://example.org/p> "one" .` {
		t.Error("Unexpected response:", st, res)
		return
	}

	// The whole dataset serializes as N-Quads by default

	st, header, res = sendTestRequest(storeURL, "GET", nil, nil)

	if st != "200 OK" || header.Get("content-type") != "application/n-quads" ||
		res != `<http://example.org/s1> <http://example.org/p> "one" <http://example.org/g1> .` {
		t.Error("Unexpected response:", st, res)
		return
	}

	// Replacing an existing graph answers 204

	st, _, res = sendTestRequest(storeURL+graphParam, "PUT",
		map[string]string{"Content-Type": "text/turtle"},
		[]byte(`<http://example.org/s1> <http://example.org/p> "uno" .`))

	if st != "204 No Content" {
		t.Error("Unexpected response:", st, res)
		return
	}

	_, _, res = sendTestRequest(storeURL+graphParam, "GET",
		map[string]string{"Accept": "application/n-triples"}, nil)

	if res != `<http://example.org/s1> <http://example.org/p> "uno" .` {
		t.Error("Unexpected response:", res)
		return
	}

	// The dataset has no default graph

	st, _, res = sendTestRequest(storeURL+"?default", "GET", nil, nil)

	if st != "404 Not Found" ||
		res != "DatasetError: Graph not found (The dataset has no default graph)" {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, _, _ = sendTestRequest(storeURL+"?default", "POST", ntContent, []byte(""))

	if st != "400 Bad Request" {
		t.Error("Unexpected response:", st)
		return
	}

	st, _, _ = sendTestRequest(storeURL+"?default", "DELETE", nil, nil)

	if st != "400 Bad Request" {
		t.Error("Unexpected response:", st)
		return
	}

	// Unknown graphs and unsupported bodies

	st, _, res = sendTestRequest(storeURL+"?graph=http%3A%2F%2Fexample.org%2Fmissing",
		"GET", nil, nil)

	if st != "404 Not Found" ||
		res != "DatasetError: Graph not found (http://example.org/missing)" {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, _, res = sendTestRequest(storeURL+graphParam, "PUT",
		map[string]string{"Content-Type": "application/json"}, []byte("{}"))

	if st != "415 Unsupported Media Type" ||
		res != "Unsupported content type: application/json" {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, _, _ = sendTestRequest(storeURL+graphParam, "GET",
		map[string]string{"Accept": "image/png"}, nil)

	if st != "406 Not Acceptable" {
		t.Error("Unexpected response:", st)
		return
	}

	st, _, _ = sendTestRequest(storeURL+graphParam, "PUT",
		map[string]string{"Content-Type": "text/turtle"},
		[]byte("@prefix broken"))

	if st != "400 Bad Request" {
		t.Error("Unexpected response:", st)
		return
	}

	// POST without a target generates a graph name

	st, header, _ = sendTestRequest(storeURL, "POST", ntContent,
		[]byte(`<http://example.org/s2> <http://example.org/p> "two" .`))

	if st != "201 Created" ||
		!strings.HasPrefix(header.Get("Location"), EndpointStore+"?graph=urn%3Auuid%3A") {
		t.Error("Unexpected response:", st, header.Get("Location"))
		return
	}

	if Registry.Count() != 2 {
		t.Error("Unexpected registry state:", Registry.Names())
		return
	}

	// Graph removal

	st, _, _ = sendTestRequest(storeURL+graphParam, "DELETE", nil, nil)

	if st != "204 No Content" || Registry.Contains("http://example.org/g1") {
		t.Error("Unexpected response:", st)
		return
	}

	st, _, res = sendTestRequest(storeURL+graphParam, "DELETE", nil, nil)

	if st != "404 Not Found" ||
		res != "DatasetError: Graph not found (http://example.org/g1)" {
		t.Error("Unexpected response:", st, res)
		return
	}

	// Without a target everything is removed

	st, _, _ = sendTestRequest(storeURL, "DELETE", nil, nil)

	if st != "204 No Content" || Registry.Count() != 0 {
		t.Error("Unexpected registry state:", Registry.Names())
		return
	}
}

func TestRequestDeadline(t *testing.T) {
	queryURL := "http://localhost" + TESTPORT + EndpointQuery
	storeURL := "http://localhost" + TESTPORT + EndpointStore

	clearDataset()

	// An exceeded deadline must answer with an error status and never
	// with a partial success response

	timeout := RequestTimeout
	RequestTimeout = -time.Second
	defer func() { RequestTimeout = timeout }()

	st, _, res := sendTestRequest(queryURL+"?query="+
		url.QueryEscape("ASK { ?s ?p ?o }"), "GET", nil, nil)

	if st != "500 Internal Server Error" ||
		!strings.Contains(res, "context deadline exceeded") {
		t.Error("Unexpected response:", st, res)
		return
	}

	st, _, res = sendTestRequest(storeURL, "GET", nil, nil)

	if st != "500 Internal Server Error" ||
		!strings.Contains(res, "context deadline exceeded") {
		t.Error("Unexpected response:", st, res)
		return
	}
}

/*
Send a request to a HTTP test server
*/
func sendTestRequest(url string, method string, headers map[string]string,
	content []byte) (string, http.Header, string) {

	var req *http.Request
	var err error

	if content != nil {
		req, err = http.NewRequest(method, url, bytes.NewBuffer(content))
	} else {
		req, err = http.NewRequest(method, url, nil)
	}

	if err != nil {
		panic(err)
	}

	for name, value := range headers {
		req.Header.Set(name, value)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	body, _ := ioutil.ReadAll(resp.Body)
	bodyStr := strings.Trim(string(body), " \n")

	// Try json decoding first

	out := bytes.Buffer{}
	err = json.Indent(&out, []byte(bodyStr), "", "  ")
	if err == nil {
		return resp.Status, resp.Header, out.String()
	}

	// Just return the body

	return resp.Status, resp.Header, bodyStr
}

/*
Start a HTTP test server.
*/
func startServer() (*httputil.HTTPServer, *sync.WaitGroup) {
	hs := &httputil.HTTPServer{}

	var wg sync.WaitGroup
	wg.Add(1)

	go hs.RunHTTPServer(TESTPORT, &wg)

	wg.Wait()

	// Server is started

	if hs.LastError != nil {
		panic(hs.LastError)
	}

	return hs, &wg
}

/*
Stop a started HTTP test server.
*/
func stopServer(hs *httputil.HTTPServer, wg *sync.WaitGroup) {

	if hs.Running == true {

		wg.Add(1)

		// Server is shut down

		hs.Shutdown()

		wg.Wait()

	} else {

		panic("Server was not running as expected")
	}
}
