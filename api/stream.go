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
	"fmt"
	"io"

	"github.com/krotik/common/pools"
)

/*
BufferPool is a pool of byte buffers used to assemble response chunks.
*/
var BufferPool = pools.NewByteBufferPool()

/*
ChunkFunc produces the next chunk of a response body. It returns nil once
the body is complete.
*/
type ChunkFunc func() ([]byte, error)

/*
PullReader is an io.Reader which pulls its content chunk by chunk from a
ChunkFunc as the transport drains it. Response bodies are never fully
buffered. An error from the chunk source is written into the stream as
plain text since the status line has already been sent at that point.
*/
type PullReader struct {
	next ChunkFunc
	buf  []byte
	done bool
}

/*
NewPullReader creates a new pull based reader over a chunk source.
*/
func NewPullReader(next ChunkFunc) *PullReader {
	return &PullReader{next: next}
}

/*
Read implements io.Reader.
*/
func (pr *PullReader) Read(p []byte) (int, error) {

	for len(pr.buf) == 0 {

		if pr.done {
			return 0, io.EOF
		}

		chunk, err := pr.next()

		if err != nil {
			pr.done = true
			pr.buf = []byte(fmt.Sprintf("\nERROR: %v\n", err))

		} else if chunk == nil {
			pr.done = true

		} else {
			pr.buf = chunk
		}
	}

	n := copy(p, pr.buf)
	pr.buf = pr.buf[n:]

	return n, nil
}
