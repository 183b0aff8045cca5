/*
 * FedHDT
 *
 * Copyright 2025 The FedHDT Authors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package dataset

import (
	"errors"
	"fmt"
)

/*
Error models a dataset related error. Low-level errors should be wrapped
in an Error before they are returned to a client.
*/
type Error struct {
	Type   error  // Error type (to be used for equal checks)
	Detail string // Details of this error
}

/*
Error returns a human-readable string representation of this error.
*/
func (de *Error) Error() string {
	if de.Detail != "" {
		return fmt.Sprintf("DatasetError: %v (%v)", de.Type, de.Detail)
	}

	return fmt.Sprintf("DatasetError: %v", de.Type)
}

/*
Dataset related error types
*/
var (
	ErrInputNotFound     = errors.New("Input file could not be read")
	ErrUnsupportedFormat = errors.New("Unsupported input format")
	ErrParse             = errors.New("Could not parse request data")
	ErrStoreLoad         = errors.New("Failed to load store")
	ErrNotFound          = errors.New("Graph not found")
	ErrAlreadyExists     = errors.New("Graph exists already")
	ErrForbidden         = errors.New("Operation is not allowed")
	ErrInternal          = errors.New("Internal error")
)
