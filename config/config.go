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
Package config contains the configuration definitions of FedHDT.
*/
package config

import (
	"fmt"
	"strconv"

	"github.com/krotik/common/errorutil"
	"github.com/krotik/common/fileutil"
)

// Global variables
// ================

/*
ProductVersion is the current version of FedHDT
*/
const ProductVersion = "1.0.0"

/*
DefaultConfigFile is the default config file which will be used to configure FedHDT
*/
var DefaultConfigFile = "fedhdt.config.json"

/*
Known configuration options for FedHDT
*/
const (
	LocationStores          = "LocationStores"
	LocationHTTPS           = "LocationHTTPS"
	HTTPSCertificate        = "HTTPSCertificate"
	HTTPSKey                = "HTTPSKey"
	LockFile                = "LockFile"
	HTTPHost                = "HTTPHost"
	HTTPPort                = "HTTPPort"
	EnableHTTPS             = "EnableHTTPS"
	EnableCORS              = "EnableCORS"
	RequestTimeoutSeconds   = "RequestTimeoutSeconds"
	MaxBodySizeBytes        = "MaxBodySizeBytes"
	MaxConcurrentPerCore    = "MaxConcurrentPerCore"
	QueryCacheMaxSize       = "QueryCacheMaxSize"
	QueryCacheMaxAgeSeconds = "QueryCacheMaxAgeSeconds"
)

/*
DefaultConfig is the defaut configuration
*/
var DefaultConfig = map[string]interface{}{
	LocationStores:          "stores",
	LocationHTTPS:           "ssl",
	HTTPSCertificate:        "cert.pem",
	HTTPSKey:                "key.pem",
	LockFile:                "fedhdt.lck",
	HTTPHost:                "localhost",
	HTTPPort:                "9090",
	EnableHTTPS:             false,
	EnableCORS:              false,
	RequestTimeoutSeconds:   "60",
	MaxBodySizeBytes:        "134217728",
	MaxConcurrentPerCore:    "128",
	QueryCacheMaxSize:       "1000",
	QueryCacheMaxAgeSeconds: "600",
}

/*
Config is the actual config which is used
*/
var Config map[string]interface{}

/*
LoadConfigFile loads a given config file. If the config file does not exist it is
created with the default options.
*/
func LoadConfigFile(configfile string) error {
	var err error

	Config, err = fileutil.LoadConfig(configfile, DefaultConfig)

	return err
}

/*
LoadDefaultConfig loads the default configuration.
*/
func LoadDefaultConfig() {
	data := make(map[string]interface{})
	for k, v := range DefaultConfig {
		data[k] = v
	}

	Config = data
}

// Helper functions
// ================

/*
Str reads a config value as a string value.
*/
func Str(key string) string {
	return fmt.Sprint(Config[key])
}

/*
Int reads a config value as an int value.
*/
func Int(key string) int64 {
	ret, err := strconv.ParseInt(fmt.Sprint(Config[key]), 10, 64)

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
Bool reads a config value as a boolean value.
*/
func Bool(key string) bool {
	ret, err := strconv.ParseBool(fmt.Sprint(Config[key]))

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}
