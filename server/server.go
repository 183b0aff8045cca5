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
Package server contains the code for the FedHDT server.
*/
package server

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/krotik/common/cryptutil"
	"github.com/krotik/common/fileutil"
	"github.com/krotik/common/httputil"
	"github.com/krotik/common/lockutil"

	"github.com/fedhdt/fedhdt/api"
	"github.com/fedhdt/fedhdt/config"
	"github.com/fedhdt/fedhdt/dataset"
	"github.com/fedhdt/fedhdt/sparql"
	"github.com/fedhdt/fedhdt/store"
)

/*
Using custom consolelogger type so we can test log.Fatal calls with unit tests. Overwrite
these if the server should not call os.Exit on a fatal error.
*/
type consolelogger func(v ...interface{})

var fatal = consolelogger(log.Fatal)
var print = consolelogger(log.Print)

/*
Base path for all files (used by unit tests)
*/
var basepath = ""

/*
StartServer runs the FedHDT server. The server uses config.Config for all its
configuration parameters.
*/
func StartServer() {
	StartServerWithSingleOp(nil)
}

/*
StartServerWithSingleOp runs the FedHDT server. If the singleOperation function is
not nil then the server executes the function and exits if the function returns true.
*/
func StartServerWithSingleOp(singleOperation func(*dataset.Registry) bool) {
	var err error

	print(fmt.Sprintf("FedHDT %v", config.ProductVersion))

	// Ensure we have a configuration - use the default configuration if nothing was set

	if config.Config == nil {
		config.LoadDefaultConfig()
	}

	// Create the store registry and load all stores from the store location

	loc := filepath.Join(basepath, config.Str(config.LocationStores))

	print("Opening stores in ", loc)

	ensurePath(loc)

	registry := dataset.NewRegistry(loc)

	paths, err := store.ScanDir(loc)
	if err != nil {
		fatal("Failed to scan store location:", err)
		return
	}

	if err = registry.Register(paths); err != nil {
		fatal("Failed to load stores:", err)
		return
	}

	print(fmt.Sprintf("Dataset has %v graphs", registry.Count()))

	defer func() {
		os.RemoveAll(filepath.Join(basepath, config.Str(config.LockFile)))
	}()

	// Handle single operation - these are operations which work on the registry
	// and then exit.

	if singleOperation != nil && singleOperation(registry) {
		return
	}

	// Setting other API parameters

	api.APIHost = config.Str(config.HTTPHost) + ":" + config.Str(config.HTTPPort)
	api.Registry = registry
	api.Engine = sparql.NewEngine(uint64(config.Int(config.QueryCacheMaxSize)),
		config.Int(config.QueryCacheMaxAgeSeconds))
	api.RequestTimeout = time.Duration(config.Int(config.RequestTimeoutSeconds)) * time.Second
	api.MaxBodySize = config.Int(config.MaxBodySizeBytes)
	api.EnableCORS = config.Bool(config.EnableCORS)

	// Limit the number of concurrently handled requests

	maxConcurrent := runtime.NumCPU() * int(config.Int(config.MaxConcurrentPerCore))

	limit := make(chan struct{}, maxConcurrent)

	api.HandleFunc = func(pattern string, handler func(http.ResponseWriter, *http.Request)) {
		http.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			limit <- struct{}{}
			defer func() { <-limit }()

			handler(w, r)
		})
	}

	// Register REST endpoints

	api.RegisterRestEndpoints(api.GeneralEndpointMap)

	// Start the server

	hs := &httputil.HTTPServer{}

	var wg sync.WaitGroup
	wg.Add(1)

	port := config.Str(config.HTTPPort)

	print("Starting server on: ", api.APIHost)

	if config.Bool(config.EnableHTTPS) {

		// Check if HTTPS key and certificate are in place

		keyPath := filepath.Join(basepath, config.Str(config.LocationHTTPS), config.Str(config.HTTPSKey))
		certPath := filepath.Join(basepath, config.Str(config.LocationHTTPS), config.Str(config.HTTPSCertificate))

		keyExists, _ := fileutil.PathExists(keyPath)
		certExists, _ := fileutil.PathExists(certPath)

		if !keyExists || !certExists {

			// Ensure path for ssl files exists

			ensurePath(filepath.Join(basepath, config.Str(config.LocationHTTPS)))

			print("Creating key (", config.Str(config.HTTPSKey), ") and certificate (",
				config.Str(config.HTTPSCertificate), ") in: ", config.Str(config.LocationHTTPS))

			// Generate a certificate and private key

			err = cryptutil.GenCert(filepath.Join(basepath, config.Str(config.LocationHTTPS)),
				config.Str(config.HTTPSCertificate), config.Str(config.HTTPSKey),
				"localhost", "", 365*24*time.Hour, false, 4096, "")

			if err != nil {
				fatal("Failed to generate ssl key and certificate:", err)
				return
			}
		}

		go hs.RunHTTPSServer(filepath.Join(basepath, config.Str(config.LocationHTTPS)),
			config.Str(config.HTTPSCertificate), config.Str(config.HTTPSKey), ":"+port, &wg)

	} else {

		go hs.RunHTTPServer(":"+port, &wg)
	}

	// Wait until the server has started

	wg.Wait()

	if hs.LastError != nil {
		fatal(hs.LastError)
		return
	}

	// Create a lockfile so the server can be shut down

	lf := lockutil.NewLockFile(filepath.Join(basepath, config.Str(config.LockFile)),
		time.Duration(2)*time.Second)

	lf.Start()

	go func() {

		// Check if the lockfile watcher is running and
		// call shutdown once it has finished

		for lf.WatcherRunning() {
			time.Sleep(time.Duration(1) * time.Second)
		}

		print("Lockfile was modified")

		hs.Shutdown()
	}()

	// Add to the wait group so we can wait for the shutdown

	wg.Add(1)

	print("Waiting for shutdown")
	wg.Wait()

	print("Shutting down")
}

/*
ensurePath ensures that a given relative path exists.
*/
func ensurePath(path string) {
	if res, _ := fileutil.PathExists(path); !res {
		if err := os.MkdirAll(path, 0770); err != nil {
			fatal("Could not create directory:", err.Error())
			return
		}
	}
}
