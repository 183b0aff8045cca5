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
	"strconv"
	"strings"
)

/*
Result format names
*/
const (
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
	FormatJSON = "json"
	FormatXML  = "xml"

	FormatNTriples = "ntriples"
	FormatNQuads   = "nquads"
	FormatTurtle   = "turtle"
)

/*
Negotiator resolves an Accept header to one of a fixed set of formats.
*/
type Negotiator struct {
	Formats map[string]string // Exact media type to format name
	Bases   map[string]string // Base type to its default format name
	Default string            // Format for an empty header or a full wildcard
}

/*
ResultNegotiator negotiates the format of tabular and boolean results.
*/
var ResultNegotiator = &Negotiator{
	Formats: map[string]string{
		"text/csv":                        FormatCSV,
		"text/tab-separated-values":       FormatTSV,
		"application/sparql-results+json": FormatJSON,
		"application/json":                FormatJSON,
		"application/sparql-results+xml":  FormatXML,
		"application/xml":                 FormatXML,
	},
	Bases: map[string]string{
		"text":        FormatCSV,
		"application": FormatJSON,
	},
	Default: FormatCSV,
}

/*
GraphNegotiator negotiates the serialization of graph results.
*/
var GraphNegotiator = &Negotiator{
	Formats: map[string]string{
		"application/n-triples": FormatNTriples,
		"application/n-quads":   FormatNQuads,
		"text/turtle":           FormatTurtle,
	},
	Bases: map[string]string{
		"text":        FormatTurtle,
		"application": FormatNQuads,
	},
	Default: FormatNQuads,
}

/*
Negotiate resolves an Accept header against the format tables. Media
ranges are weighted by their q parameter, ties are broken by first-seen
order. Returns false if nothing in the header is acceptable.
*/
func (n *Negotiator) Negotiate(accept string) (string, bool) {
	if strings.TrimSpace(accept) == "" {
		return n.Default, true
	}

	best := ""
	bestWeight := 0.0

	for _, entry := range strings.Split(accept, ",") {
		mediaType, weight := parseMediaRange(entry)

		if mediaType == "" || weight <= bestWeight {
			continue
		}

		if format, ok := n.resolve(mediaType); ok {
			best = format
			bestWeight = weight
		}
	}

	return best, best != ""
}

/*
resolve maps a single media type to a format name.
*/
func (n *Negotiator) resolve(mediaType string) (string, bool) {
	if mediaType == "*/*" {
		return n.Default, true
	}

	if format, ok := n.Formats[mediaType]; ok {
		return format, true
	}

	if strings.HasSuffix(mediaType, "/*") {
		format, ok := n.Bases[strings.TrimSuffix(mediaType, "/*")]
		return format, ok
	}

	return "", false
}

/*
parseMediaRange splits a single Accept entry into its media type and q
weight. Parameters other than q are ignored, an unreadable q weight
counts as 1.
*/
func parseMediaRange(entry string) (string, float64) {
	parts := strings.Split(entry, ";")

	mediaType := strings.ToLower(strings.TrimSpace(parts[0]))
	weight := 1.0

	for _, param := range parts[1:] {
		param = strings.TrimSpace(param)

		if strings.HasPrefix(param, "q=") {
			if q, err := strconv.ParseFloat(param[2:], 64); err == nil {
				weight = q
			}
		}
	}

	return mediaType, weight
}
