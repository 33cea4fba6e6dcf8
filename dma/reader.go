// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dma

import (
	"github.com/jawline/pulse/membus"
	"github.com/jawline/pulse/stream"
)

type readerPhase int

const (
	readerIdle readerPhase = iota
	readerHeader
	readerLenHi
	readerLenLo
	readerAddr
	readerReadReq
	readerReadWait
	readerEmit
)

// Reader is the Memory-to-Packet engine of spec.md §4.3.3: triggered by an
// {address, length} enable pulse, it frames a fresh packet and emits it
// byte by byte as it reads the backing store, skipping leading bytes
// before the request's initial byte offset within the first word.
//
// Every mutation to the engine's counters happens only when a held output
// byte is actually accepted (advancePastHeld) — Step itself only *peeks*
// at current state to compute the byte to offer, so an unready consumer
// never causes a byte to be silently dropped or double-counted.
type Reader struct {
	header        byte
	emitHeader    bool
	capacityBytes uint32

	phase readerPhase

	address   uint32
	remaining uint32
	addrIdx   int

	lenHi, lenLo byte

	word uint32

	held      stream.Offer[FramedByte]
	heldValid bool
}

// NewReader builds a Reader. If emitHeader is false, the header byte is
// omitted from the outgoing wire packet (spec.md §4.3.3: "Emit optional
// header byte if configured").
func NewReader(header byte, emitHeader bool, capacityBytes uint32) *Reader {
	return &Reader{header: header, emitHeader: emitHeader, capacityBytes: capacityBytes}
}

// Reset returns the reader to idle.
func (r *Reader) Reset() {
	*r = Reader{header: r.header, emitHeader: r.emitHeader, capacityBytes: r.capacityBytes}
}

// Busy reports whether a transfer is already in progress.
func (r *Reader) Busy() bool { return r.phase != readerIdle }

// maxPayload bounds length so the packet's 2-byte length field (which
// covers length plus the 4 address bytes) never overflows and silently
// truncates.
const maxPayload = 0xffff - 4

// Trigger begins framing and emitting length bytes of memory starting at
// address. It returns false (and does nothing) if the reader is busy, if
// length is zero, or if length would overflow the wire packet's 2-byte
// length field.
func (r *Reader) Trigger(address, length uint32) bool {
	if r.Busy() || length == 0 || length > maxPayload {
		return false
	}
	r.address = address
	r.remaining = length
	r.addrIdx = 0
	// The packet's length field covers the address plus payload, per the
	// wire format of spec.md §6 ("length L ... bytes in fields from offset
	// 3 onward"): 4 address bytes plus the payload.
	total := length + 4
	r.lenHi = byte(total >> 8)
	r.lenLo = byte(total)
	if r.emitHeader {
		r.phase = readerHeader
	} else {
		r.phase = readerLenHi
	}
	return true
}

// Requests returns this cycle's read-port offer.
func (r *Reader) Requests() stream.Offer[membus.ReadRequest] {
	if r.phase == readerReadReq {
		aligned := r.address &^ (membus.WordBytes - 1)
		if r.capacityBytes > 0 {
			aligned %= r.capacityBytes
		}
		return stream.Offer[membus.ReadRequest]{Valid: true, Data: membus.ReadRequest{Address: aligned}}
	}
	return stream.Offer[membus.ReadRequest]{}
}

// Advance folds the memory controller's ack/response into the reader's
// next state.
func (r *Reader) Advance(ack bool, resp stream.Offer[membus.ReadResponse]) {
	switch r.phase {
	case readerReadReq:
		if ack {
			r.phase = readerReadWait
		}
	case readerReadWait:
		if resp.Valid {
			r.word = resp.Data.Data
			r.phase = readerEmit
		}
	}
}

// Step offers this cycle's outgoing wire byte, if any.
func (r *Reader) Step(consumerReady bool) (out stream.Offer[FramedByte]) {
	if r.heldValid {
		out = r.held
		if consumerReady {
			r.heldValid = false
			r.advancePastHeld()
		}
		return out
	}

	switch r.phase {
	case readerHeader:
		r.offerByte(r.header, false)
	case readerLenHi:
		r.offerByte(r.lenHi, false)
	case readerLenLo:
		r.offerByte(r.lenLo, false)
	case readerAddr:
		shift := uint(3-r.addrIdx) * 8
		r.offerByte(byte(r.address>>shift), false)
	case readerEmit:
		shift := (r.address % membus.WordBytes) * 8
		r.offerByte(byte(r.word>>shift), r.remaining == 1)
	}
	return stream.Offer[FramedByte]{}
}

func (r *Reader) offerByte(b byte, last bool) {
	r.held = stream.Offer[FramedByte]{Valid: true, Data: FramedByte{B: b, Last: last}}
	r.heldValid = true
}

func (r *Reader) advancePastHeld() {
	switch r.phase {
	case readerHeader:
		r.phase = readerLenHi
	case readerLenHi:
		r.phase = readerLenLo
	case readerLenLo:
		r.phase = readerAddr
	case readerAddr:
		r.addrIdx++
		if r.addrIdx == 4 {
			r.phase = readerReadReq
		}
	case readerEmit:
		r.address++
		r.remaining--
		if r.remaining == 0 {
			r.phase = readerIdle
		} else if r.address%membus.WordBytes == 0 {
			r.phase = readerReadReq
		}
	}
}
