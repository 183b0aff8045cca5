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
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/knakk/rdf"
	"github.com/krotik/common/errorutil"

	"github.com/fedhdt/fedhdt/eval"
)

/*
Number of solution rows or triples which are assembled into one response
chunk.
*/
const rowsPerChunk = 100

/*
xsdStringIRI is the implicit datatype of plain literals. It is omitted in
serialized results.
*/
const xsdStringIRI = "http://www.w3.org/2001/XMLSchema#string"

/*
ContentTypes maps a format name to the content type of the response.
*/
var ContentTypes = map[string]string{
	FormatCSV:      "text/csv; charset=utf-8",
	FormatTSV:      "text/tab-separated-values; charset=utf-8",
	FormatJSON:     "application/sparql-results+json",
	FormatXML:      "application/sparql-results+xml",
	FormatNTriples: "application/n-triples",
	FormatNQuads:   "application/n-quads",
	FormatTurtle:   "text/turtle",
}

/*
SerializeResult returns the content type and the chunk source for a
result in a negotiated format.
*/
func SerializeResult(res eval.Result, format string) (string, ChunkFunc) {
	contentType, ok := ContentTypes[format]
	errorutil.AssertTrue(ok, fmt.Sprint("Unknown result format:", format))

	switch res := res.(type) {

	case *eval.Solutions:
		return contentType, serializeSolutions(res, format)

	case *eval.Boolean:
		return contentType, serializeBoolean(res, format)

	case *eval.Graph:
		return contentType, serializeGraph(res, format)
	}

	errorutil.AssertTrue(false, fmt.Sprintf("Unknown result shape: %T", res))

	return "", nil
}

/*
copyChunk takes the assembled chunk out of a pooled buffer.
*/
func copyChunk(buf *bytes.Buffer) []byte {
	chunk := make([]byte, buf.Len())
	copy(chunk, buf.Bytes())

	buf.Reset()
	BufferPool.Put(buf)

	return chunk
}

/*
serializeSolutions returns the chunk source for a solution sequence.
*/
func serializeSolutions(sol *eval.Solutions, format string) ChunkFunc {

	switch format {

	case FormatCSV:
		return solutionsTable(sol, csvRow)

	case FormatTSV:
		return solutionsTable(sol, tsvRow)

	case FormatJSON:
		return solutionsJSON(sol)
	}

	return solutionsXML(sol)
}

/*
solutionsTable streams a line based table of solutions. The first chunk
starts with the header line.
*/
func solutionsTable(sol *eval.Solutions,
	writeRow func(buf *bytes.Buffer, vars []string, row []rdf.Term)) ChunkFunc {

	first := true
	done := false

	return func() ([]byte, error) {
		if done {
			return nil, nil
		}

		buf := BufferPool.Get().(*bytes.Buffer)

		if first {
			first = false

			// A nil row stands for the header line

			writeRow(buf, sol.Variables, nil)
		}

		for i := 0; i < rowsPerChunk; i++ {
			row, err := sol.Next()

			if err != nil {
				buf.Reset()
				BufferPool.Put(buf)

				return nil, err
			}

			if row == nil {
				done = true
				break
			}

			writeRow(buf, sol.Variables, row)
		}

		return copyChunk(buf), nil
	}
}

/*
csvRow writes a header or solution row as CSV. Terms are written in
their plain lexical form.
*/
func csvRow(buf *bytes.Buffer, vars []string, row []rdf.Term) {
	out := csv.NewWriter(buf)

	record := make([]string, len(vars))

	for i := range vars {
		if row == nil {
			record[i] = vars[i]
		} else if row[i] != nil {
			record[i] = plainTerm(row[i])
		}
	}

	out.Write(record)
	out.Flush()
}

/*
tsvRow writes a header or solution row as tab separated values. Terms are
written in their full serialized form.
*/
func tsvRow(buf *bytes.Buffer, vars []string, row []rdf.Term) {
	fields := make([]string, len(vars))

	for i := range vars {
		if row == nil {
			fields[i] = "?" + vars[i]
		} else if row[i] != nil {
			fields[i] = row[i].Serialize(rdf.NTriples)
		}
	}

	buf.WriteString(strings.Join(fields, "\t"))
	buf.WriteString("\n")
}

/*
plainTerm returns the plain form of a term. IRIs and literals are written
without any markup, blank nodes keep their label marker.
*/
func plainTerm(t rdf.Term) string {
	if _, ok := t.(rdf.Blank); ok {
		return t.Serialize(rdf.NTriples)
	}

	return t.String()
}

/*
solutionsJSON streams a solution sequence in the standard JSON results
format.
*/
func solutionsJSON(sol *eval.Solutions) ChunkFunc {
	started := false
	closed := false
	firstRow := true

	return func() ([]byte, error) {
		if closed {
			return nil, nil
		}

		buf := BufferPool.Get().(*bytes.Buffer)

		if !started {
			started = true

			head, err := json.Marshal(map[string]interface{}{"vars": sol.Variables})
			if err != nil {
				buf.Reset()
				BufferPool.Put(buf)

				return nil, err
			}

			fmt.Fprintf(buf, `{"head":%s,"results":{"bindings":[`, head)
		}

		for i := 0; i < rowsPerChunk; i++ {
			row, err := sol.Next()

			if err != nil {
				buf.Reset()
				BufferPool.Put(buf)

				return nil, err
			}

			if row == nil {
				closed = true
				buf.WriteString("]}}")
				break
			}

			binding := make(map[string]interface{})

			for j, v := range sol.Variables {
				if row[j] != nil {
					binding[v] = jsonTerm(row[j])
				}
			}

			data, err := json.Marshal(binding)
			if err != nil {
				buf.Reset()
				BufferPool.Put(buf)

				return nil, err
			}

			if !firstRow {
				buf.WriteString(",")
			}
			firstRow = false

			buf.Write(data)
		}

		return copyChunk(buf), nil
	}
}

/*
jsonTerm returns the JSON results object of a term.
*/
func jsonTerm(t rdf.Term) map[string]interface{} {

	switch v := t.(type) {

	case rdf.IRI:
		return map[string]interface{}{"type": "uri", "value": v.String()}

	case rdf.Literal:
		res := map[string]interface{}{"type": "literal", "value": v.String()}

		if v.Lang() != "" {
			res["xml:lang"] = v.Lang()
		} else if v.DataType.String() != xsdStringIRI {
			res["datatype"] = v.DataType.String()
		}

		return res
	}

	label := strings.TrimPrefix(t.Serialize(rdf.NTriples), "_:")

	return map[string]interface{}{"type": "bnode", "value": label}
}

/*
solutionsXML streams a solution sequence in the standard XML results
format.
*/
func solutionsXML(sol *eval.Solutions) ChunkFunc {
	started := false
	closed := false

	return func() ([]byte, error) {
		if closed {
			return nil, nil
		}

		buf := BufferPool.Get().(*bytes.Buffer)

		if !started {
			started = true

			buf.WriteString(`<?xml version="1.0"?>`)
			buf.WriteString(`<sparql xmlns="http://www.w3.org/2005/sparql-results#"><head>`)

			for _, v := range sol.Variables {
				fmt.Fprintf(buf, `<variable name="%s"/>`, v)
			}

			buf.WriteString("</head><results>")
		}

		for i := 0; i < rowsPerChunk; i++ {
			row, err := sol.Next()

			if err != nil {
				buf.Reset()
				BufferPool.Put(buf)

				return nil, err
			}

			if row == nil {
				closed = true
				buf.WriteString("</results></sparql>")
				break
			}

			buf.WriteString("<result>")

			for j, v := range sol.Variables {
				if row[j] == nil {
					continue
				}

				fmt.Fprintf(buf, `<binding name="%s">`, v)
				xmlTerm(buf, row[j])
				buf.WriteString("</binding>")
			}

			buf.WriteString("</result>")
		}

		return copyChunk(buf), nil
	}
}

/*
xmlTerm writes the XML results element of a term.
*/
func xmlTerm(buf *bytes.Buffer, t rdf.Term) {

	switch v := t.(type) {

	case rdf.IRI:
		buf.WriteString("<uri>")
		xml.EscapeText(buf, []byte(v.String()))
		buf.WriteString("</uri>")

	case rdf.Literal:
		if v.Lang() != "" {
			fmt.Fprintf(buf, `<literal xml:lang="%s">`, v.Lang())
		} else if v.DataType.String() != xsdStringIRI {
			buf.WriteString(`<literal datatype="`)
			xml.EscapeText(buf, []byte(v.DataType.String()))
			buf.WriteString(`">`)
		} else {
			buf.WriteString("<literal>")
		}

		xml.EscapeText(buf, []byte(v.String()))
		buf.WriteString("</literal>")

	default:
		label := strings.TrimPrefix(t.Serialize(rdf.NTriples), "_:")

		buf.WriteString("<bnode>")
		xml.EscapeText(buf, []byte(label))
		buf.WriteString("</bnode>")
	}
}

/*
serializeBoolean returns the chunk source for a boolean result.
*/
func serializeBoolean(b *eval.Boolean, format string) ChunkFunc {
	var body string

	switch format {

	case FormatJSON:
		body = fmt.Sprintf(`{"head":{},"boolean":%v}`, b.Value)

	case FormatXML:
		body = fmt.Sprintf(`<?xml version="1.0"?>`+
			`<sparql xmlns="http://www.w3.org/2005/sparql-results#">`+
			`<head/><boolean>%v</boolean></sparql>`, b.Value)

	default:
		body = fmt.Sprintf("%v\n", b.Value)
	}

	done := false

	return func() ([]byte, error) {
		if done {
			return nil, nil
		}

		done = true

		return []byte(body), nil
	}
}

/*
serializeGraph returns the chunk source for a graph result. Triples are
written line by line, for N-Quads they carry no graph component.
*/
func serializeGraph(g *eval.Graph, format string) ChunkFunc {
	rdfFormat := rdf.NTriples

	if format == FormatTurtle {
		rdfFormat = rdf.Turtle
	}

	done := false

	return func() ([]byte, error) {
		if done {
			return nil, nil
		}

		buf := BufferPool.Get().(*bytes.Buffer)

		for i := 0; i < rowsPerChunk; i++ {
			triple, err := g.Next()

			if err != nil {
				buf.Reset()
				BufferPool.Put(buf)

				return nil, err
			}

			if triple == nil {
				done = true
				break
			}

			buf.WriteString(triple.Serialize(rdfFormat))
		}

		return copyChunk(buf), nil
	}
}
