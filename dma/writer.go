// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dma

import (
	"github.com/jawline/pulse/membus"
	"github.com/jawline/pulse/stream"
)

type writerPhase int

const (
	writerIdle writerPhase = iota
	writerPending
	writerWaiting
)

// Writer is the Packet-to-Memory engine of spec.md §4.3.2: the first 4
// payload bytes fill an address register, subsequent bytes accumulate
// little-endian into a word, and a full word is written to memory each
// time it fills.
type Writer struct {
	capacityBytes uint32

	addrBytesSeen int
	addr          uint32

	word      uint32
	wordBytes int

	phase   writerPhase
	pendAddr, pendWord uint32

	doneQueued bool
}

// NewWriter builds a Writer over a backing store of capacityBytes,
// wrapping addresses modulo that size per spec.md §7's documented
// length-overflow policy.
func NewWriter(capacityBytes uint32) *Writer {
	return &Writer{capacityBytes: capacityBytes}
}

// Reset returns the writer to its initial address-collection state.
func (w *Writer) Reset() {
	*w = Writer{capacityBytes: w.capacityBytes}
}

// Ready reports whether the writer can accept another payload byte this
// cycle (it cannot while a word write is in flight).
func (w *Writer) Ready() bool { return w.phase == writerIdle }

// Offer delivers one payload byte to the writer; the caller must only call
// this when Ready() was true this cycle.
func (w *Writer) Offer(b FramedByte) {
	if w.addrBytesSeen < 4 {
		w.addr = (w.addr << 8) | uint32(b.B)
		w.addrBytesSeen++
		if b.Last {
			// Packet ended inside the address field: nothing to flush.
		}
		return
	}

	shift := uint(w.wordBytes) * 8
	w.word |= uint32(b.B) << shift
	w.wordBytes++

	if w.wordBytes == membus.WordBytes {
		w.arm()
	}
	if b.Last {
		if w.wordBytes > 0 {
			w.arm() // pad remaining bytes with zero, per spec.md §4.3.2
		}
		w.doneQueued = true
	}
}

func (w *Writer) arm() {
	addr := w.addr
	if w.capacityBytes > 0 {
		addr %= w.capacityBytes
	}
	w.pendAddr = addr
	w.pendWord = w.word
	w.phase = writerPending
	w.word = 0
	w.wordBytes = 0
}

// Requests returns this cycle's write-port offer.
func (w *Writer) Requests() stream.Offer[membus.WriteRequest] {
	if w.phase == writerPending {
		return stream.Offer[membus.WriteRequest]{Valid: true, Data: membus.WriteRequest{Address: w.pendAddr, Data: w.pendWord}}
	}
	return stream.Offer[membus.WriteRequest]{}
}

// Advance folds the memory controller's ack/response into the writer's
// next state. Done reports a completion pulse, true for exactly the cycle
// the packet's trailing word finishes committing (spec.md §4.3.2's
// "Emits a done pulse").
func (w *Writer) Advance(ack bool, resp stream.Offer[membus.WriteResponse]) (done bool) {
	switch w.phase {
	case writerPending:
		if ack {
			w.phase = writerWaiting
		}
	case writerWaiting:
		if resp.Valid {
			w.addr += membus.WordBytes
			w.phase = writerIdle
			if w.doneQueued {
				w.doneQueued = false
				w.addrBytesSeen = 0
				w.addr = 0
				done = true
			}
		}
	}
	return done
}
