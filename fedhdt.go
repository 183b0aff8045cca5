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
FedHDT is a federated triple-store server. A dataset is a collection of
immutable store files which are queried together as named graphs. The
server exposes the dataset through a restricted SPARQL protocol endpoint
which can append new graphs but never modifies existing data.

Features:

- Store files are compressed, immutable and loaded read-only.

- Each store file becomes a named graph, queries federate over all of them.

- Restricted SPARQL queries (SELECT/ASK/CONSTRUCT over basic graph patterns).

- Append-only updates: new graphs can be created and filled, existing graphs
are read-only.

- Streamed query results in CSV, TSV, JSON, XML, N-Triples, N-Quads or Turtle.

- Can be used as a standalone server or as an embedded library.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/fedhdt/fedhdt/api"
	"github.com/fedhdt/fedhdt/config"
	"github.com/fedhdt/fedhdt/dataset"
	"github.com/fedhdt/fedhdt/eval"
	"github.com/fedhdt/fedhdt/server"
	"github.com/fedhdt/fedhdt/sparql"
	"github.com/fedhdt/fedhdt/store"
)

func main() {

	// Initialize the default command line parser

	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)

	// Define default usage message

	flag.Usage = func() {

		// Print usage for tool selection

		fmt.Println(fmt.Sprintf("Usage of %s <tool>", os.Args[0]))
		fmt.Println()
		fmt.Println("FedHDT federated triple-store server")
		fmt.Println()
		fmt.Println("Available commands:")
		fmt.Println()
		fmt.Println("    server    Start FedHDT server")
		fmt.Println("    create    Build a store file from RDF input files")
		fmt.Println("    query     Run a query against RDF input files")
		fmt.Println("    view      Print store file statistics")
		fmt.Println("    check     Check the server environment")
		fmt.Println()
		fmt.Println(fmt.Sprintf("Use %s <command> -help for more information about a given command.", os.Args[0]))
		fmt.Println()
	}

	// Parse the command bit

	err := flag.CommandLine.Parse(os.Args[1:])

	if len(flag.Args()) > 0 {

		arg := flag.Args()[0]

		if arg == "server" {
			config.LoadConfigFile(config.DefaultConfigFile)
			server.StartServer()
		} else if arg == "create" {
			RunCreate()
		} else if arg == "query" {
			RunQuery()
		} else if arg == "view" {
			RunView()
		} else if arg == "check" {
			RunCheck()
		} else {
			flag.Usage()
		}

	} else if err == nil {

		flag.Usage()
	}
}

/*
RunCreate builds a store file from RDF input files.
*/
func RunCreate() {

	out := flag.String("out", "store."+store.FileStoreExt, "Output store file")

	showHelp := flag.Bool("help", false, "Show this help message")

	flag.Usage = func() {
		fmt.Println()
		fmt.Println(fmt.Sprintf("Usage of %s create [options] <input file> ...", os.Args[0]))
		fmt.Println()
		flag.PrintDefaults()
		fmt.Println()
	}

	flag.CommandLine.Parse(os.Args[2:])

	if *showHelp || len(flag.Args()) == 0 {
		flag.Usage()
		return
	}

	res, err := store.CreateFileStore(flag.Args(), *out)
	if err != nil {
		fmt.Println(err.Error())
		return
	}

	for _, path := range res.Unhandled {
		fmt.Println("Could not process:", path)
	}

	fmt.Println(fmt.Sprintf("Created %s from %v input file(s)", *out, res.Converted))
}

/*
RunQuery runs a query against RDF input files and prints the result as CSV.
*/
func RunQuery() {

	queryLine := flag.String("exec", "", "Execute a single query")
	queryFile := flag.String("file", "", "Read the query from a file")

	showHelp := flag.Bool("help", false, "Show this help message")

	flag.Usage = func() {
		fmt.Println()
		fmt.Println(fmt.Sprintf("Usage of %s query [options] <input file> ...", os.Args[0]))
		fmt.Println()
		flag.PrintDefaults()
		fmt.Println()
	}

	flag.CommandLine.Parse(os.Args[2:])

	if *showHelp || len(flag.Args()) == 0 ||
		(*queryLine == "" && *queryFile == "") {

		flag.Usage()
		return
	}

	query := *queryLine

	if *queryFile != "" {
		content, err := ioutil.ReadFile(*queryFile)
		if err != nil {
			fmt.Println(err.Error())
			return
		}

		query = string(content)
	}

	// Build a throwaway dataset from the input files

	dir, err := ioutil.TempDir("", "fedhdt")
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	defer os.RemoveAll(dir)

	registry := dataset.NewRegistry(dir)

	for _, path := range flag.Args() {
		if err := registry.Insert(dataset.GraphName(path), path); err != nil {
			fmt.Println(err.Error())
			return
		}
	}

	snapshot, err := registry.Snapshot(context.Background(), nil)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	defer snapshot.Close()

	res, err := sparql.NewEngine(0, 0).Query(context.Background(), query, snapshot)
	if err != nil {
		fmt.Println(err.Error())
		return
	}

	format := api.FormatCSV

	if _, ok := res.(*eval.Graph); ok {
		format = api.FormatNTriples
	}

	_, chunks := api.SerializeResult(res, format)

	if _, err := io.Copy(os.Stdout, api.NewPullReader(chunks)); err != nil {
		fmt.Println(err.Error())
	}
}

/*
RunView prints the statistics of store files.
*/
func RunView() {

	showHelp := flag.Bool("help", false, "Show this help message")

	flag.Usage = func() {
		fmt.Println()
		fmt.Println(fmt.Sprintf("Usage of %s view [options] <store file> ...", os.Args[0]))
		fmt.Println()
		flag.PrintDefaults()
		fmt.Println()
	}

	flag.CommandLine.Parse(os.Args[2:])

	if *showHelp || len(flag.Args()) == 0 {
		flag.Usage()
		return
	}

	for _, path := range flag.Args() {
		info, err := store.ReadInfo(path)
		if err != nil {
			fmt.Println(err.Error())
			continue
		}

		fmt.Println(path)
		fmt.Println("    Triples   :", info.Triples)
		fmt.Println("    Subjects  :", info.Subjects)
		fmt.Println("    Predicates:", info.Predicates)
		fmt.Println("    Objects   :", info.Objects)
	}
}

/*
RunCheck checks the server environment.
*/
func RunCheck() {

	fmt.Println(fmt.Sprintf("FedHDT %v", config.ProductVersion))

	if err := config.LoadConfigFile(config.DefaultConfigFile); err != nil {
		fmt.Println("Could not load configuration:", err.Error())
		return
	}

	fmt.Println("Configuration:", config.DefaultConfigFile)

	loc := config.Str(config.LocationStores)

	files, err := store.ScanDir(loc)
	if err != nil {
		fmt.Println("Could not scan store location:", err.Error())
		return
	}

	fmt.Println(fmt.Sprintf("Store location %s contains %v store file(s)", loc, len(files)))

	// Make sure every store file can at least be opened for its header

	ok := true

	for _, path := range files {
		if _, err := store.ReadInfo(path); err != nil {
			fmt.Println("Unreadable store file:", err.Error())
			ok = false
		}
	}

	if ok {
		fmt.Println("All checks passed")
	}
}
