// Copyright 2018 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package uartio

import (
	"code.hybscloud.com/iox"

	"github.com/jawline/pulse/stream"
)

type rxPhase int

const (
	rxIdle rxPhase = iota
	rxStart
	rxData
	rxParity
	rxStop
)

// Frame is one received byte plus the wire-level flags spec.md §6 defines:
// "parity_error if received parity disagrees; stop_bit_unstable if line not
// high during stop". Per spec.md §9, framing errors do not suppress the
// byte: "data is still forwarded".
type Frame struct {
	Byte            byte
	ParityError     bool
	StopBitUnstable bool
}

// Receiver decodes one UART RX wire, one clock cycle per Tick call, by
// mid-bit sampling each bit period ("Mid-bit sampling at period/2" per
// spec.md §6).
//
// A completed Frame is held in a one-deep buffer until the caller consumes
// it via Output/Accept, mirroring the skid-buffer pattern dma.Framer uses;
// unlike that buffer, a Receiver has no way to apply backpressure to the
// physical wire, so a Frame completing while the previous one is still
// unconsumed overwrites it and counts as an overrun — a real UART failure
// mode, not a simulation artifact.
type Receiver struct {
	cfg Config

	phase   rxPhase
	cycles  int
	shift   byte
	bitIdx  int
	parity  bool
	stopIdx int
	unstable bool

	held      stream.Offer[Frame]
	heldValid bool
	overruns  int
}

// NewReceiver builds an idle Receiver.
func NewReceiver(cfg Config) *Receiver {
	return &Receiver{cfg: cfg}
}

// Reset returns the receiver to idle, dropping any byte in flight and the
// held frame, but keeps the overrun counter (a host diagnostic, not
// simulation state).
func (r *Receiver) Reset() {
	overruns := r.overruns
	*r = Receiver{cfg: r.cfg, overruns: overruns}
}

// Tick samples line (the wire's current level) for one clock cycle.
func (r *Receiver) Tick(line bool) {
	mid := r.cfg.BitPeriod() / 2
	switch r.phase {
	case rxIdle:
		if !line {
			r.phase = rxStart
			r.cycles = r.cfg.BitPeriod()
			r.shift = 0
			r.bitIdx = 0
			r.unstable = false
		}
		return
	case rxStart:
		r.cycles--
		if r.cycles <= 0 {
			r.phase = rxData
			r.cycles = r.cfg.BitPeriod()
			r.bitIdx = 0
		}
	case rxData:
		if r.cycles == mid && line {
			r.shift |= 1 << uint(r.bitIdx)
		}
		r.cycles--
		if r.cycles <= 0 {
			r.bitIdx++
			if r.bitIdx < 8 {
				r.cycles = r.cfg.BitPeriod()
				return
			}
			if r.cfg.Parity {
				r.phase = rxParity
			} else {
				r.phase = rxStop
				r.stopIdx = 0
			}
			r.cycles = r.cfg.BitPeriod()
		}
	case rxParity:
		if r.cycles == mid {
			r.parity = line
		}
		r.cycles--
		if r.cycles <= 0 {
			r.phase = rxStop
			r.stopIdx = 0
			r.cycles = r.cfg.BitPeriod()
		}
	case rxStop:
		if r.cycles == mid && !line {
			r.unstable = true
		}
		r.cycles--
		if r.cycles <= 0 {
			r.stopIdx++
			if r.stopIdx < r.cfg.stopBits() {
				r.cycles = r.cfg.BitPeriod()
				return
			}
			r.complete()
			r.phase = rxIdle
		}
	}
}

func (r *Receiver) complete() {
	parityErr := false
	if r.cfg.Parity {
		parityErr = parityOf(r.shift) != r.parity
	}
	if r.heldValid {
		r.overruns++
	}
	r.held = stream.Offer[Frame]{Valid: true, Data: Frame{
		Byte:            r.shift,
		ParityError:     parityErr,
		StopBitUnstable: r.unstable,
	}}
	r.heldValid = true
}

// Output peeks at the held frame, if any, without consuming it.
func (r *Receiver) Output() stream.Offer[Frame] { return r.held }

// Accept clears the held frame once a downstream consumer has taken it this
// cycle.
func (r *Receiver) Accept() {
	r.held = stream.Offer[Frame]{}
	r.heldValid = false
}

// Overruns counts frames completed while the previously held one was not
// yet consumed.
func (r *Receiver) Overruns() int { return r.overruns }

// Read implements io.Reader: it pulls the held frame's byte, if any,
// discarding its flags, and returns (0, iox.ErrWouldBlock) when the wire
// has not yet produced a complete byte.
func (r *Receiver) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !r.heldValid {
		return 0, iox.ErrWouldBlock
	}
	p[0] = r.held.Data.Byte
	r.Accept()
	return 1, nil
}
