// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dma

import "github.com/jawline/pulse/stream"

type framerPhase int

const (
	framerWaitHeader framerPhase = iota
	framerLenHi
	framerLenLo
	framerBody
)

// Framer is the Serial-to-Packet state machine of spec.md §4.3.1: it waits
// for a header byte, reads a big-endian uint16 length, then forwards that
// many body bytes downstream with the last one flagged.
//
// Framer holds at most one produced body byte at a time in a one-deep skid
// buffer, so it never drops a byte the downstream consumer (Writer) isn't
// yet ready for; per spec.md §4.3.1, "if the serial stream goes silent
// mid-packet, the framer remains blocked" — here that's the case where no
// rx byte is offered, which simply leaves the state unchanged.
type Framer struct {
	header byte
	phase  framerPhase

	length    uint16
	remaining uint16

	held      stream.Offer[FramedByte]
	heldValid bool

	desyncs int
}

// NewFramer builds a Framer watching for the given header byte.
func NewFramer(header byte) *Framer {
	return &Framer{header: header}
}

// Reset returns the framer to its initial wait-for-header state.
func (f *Framer) Reset() {
	f.phase = framerWaitHeader
	f.length = 0
	f.remaining = 0
	f.held = stream.Offer[FramedByte]{}
	f.heldValid = false
}

// Desyncs counts bytes discarded while waiting for a header (spec.md §9's
// open question: observability without changing wire behavior).
func (f *Framer) Desyncs() int { return f.desyncs }

// Step advances the framer by (at most) one serial byte. rxReady tells the
// UART RX side whether a byte may be accepted this cycle; out carries a
// produced body byte, if any, held until consumerReady accepts it.
func (f *Framer) Step(rx stream.Offer[byte], consumerReady bool) (out stream.Offer[FramedByte], rxReady bool) {
	if f.heldValid {
		out = f.held
		if consumerReady {
			f.heldValid = false
		}
		return out, false
	}

	rxReady = true
	if rx.Valid {
		f.consume(rx.Data)
	}
	return stream.Offer[FramedByte]{}, rxReady
}

func (f *Framer) consume(b byte) {
	switch f.phase {
	case framerWaitHeader:
		if b == f.header {
			f.phase = framerLenHi
		} else {
			f.desyncs++
		}
	case framerLenHi:
		f.length = uint16(b) << 8
		f.phase = framerLenLo
	case framerLenLo:
		f.length |= uint16(b)
		f.remaining = f.length
		if f.remaining == 0 {
			// Degenerate zero-length packet: nothing to forward.
			f.phase = framerWaitHeader
			return
		}
		f.phase = framerBody
	case framerBody:
		f.remaining--
		last := f.remaining == 0
		f.held = stream.Offer[FramedByte]{Valid: true, Data: FramedByte{B: b, Last: last}}
		f.heldValid = true
		if last {
			f.phase = framerWaitHeader
		}
	}
}
