// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package membus defines the word-addressed, word-granular memory bus
// shared by every client in the system: the hart's instruction and data
// ports, the DMA engines, and the video scan-out engine.
//
// A memory bus is two independent streams, a read port and a write port,
// each carrying a request in one direction and a response in the other.
// Both are word-aligned: addresses whose low log2(WordBytes) bits are
// nonzero are rejected with Response.Error set rather than serviced.
package membus

// WordBytes is the data-bus width in bytes (D=32 bits per spec.md §3).
const WordBytes = 4

// WordBits is the data-bus width in bits.
const WordBits = WordBytes * 8

// Aligned reports whether addr is a valid word address.
func Aligned(addr uint32) bool {
	return addr%WordBytes == 0
}

// ReadRequest is the payload of a read-port request stream.
type ReadRequest struct {
	Address uint32
}

// ReadResponse is the payload of a read-port response stream.
type ReadResponse struct {
	Data  uint32
	Error bool
}

// WriteRequest is the payload of a write-port request stream.
type WriteRequest struct {
	Address uint32
	Data    uint32
}

// WriteResponse is the payload of a write-port response stream.
type WriteResponse struct {
	Error bool
}
