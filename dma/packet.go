// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dma implements the packet-framed DMA pipeline of spec.md §4.3:
// a Serial-to-Packet framer, a Packet-to-Memory writer (inbound DMA), and a
// Memory-to-Packet reader (outbound DMA), wired to a hart's ECALL port per
// spec.md §4.3.4.
//
// Every component here is grounded on the BCM2835 DMA engine's control-
// block pipeline (arm a transfer, wait, signal done) and on a UART
// framing style, generalized to the length-prefixed wire packet of
// spec.md §6.
package dma

// DefaultHeader is the packet header byte, spec.md §6 ('Q' / 0x51).
const DefaultHeader byte = 'Q'

// FramedByte is one byte of a packet's internal payload stream, carrying
// the out-of-band Last flag spec.md §3 describes ("a stream of bytes with
// an out-of-band last flag marking packet end").
type FramedByte struct {
	B    byte
	Last bool
}
