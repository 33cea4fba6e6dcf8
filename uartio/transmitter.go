// Copyright 2018 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package uartio

import "code.hybscloud.com/iox"

type txPhase int

const (
	txIdle txPhase = iota
	txStart
	txData
	txParity
	txStop
)

// Transmitter drives one UART TX wire, one clock cycle per Tick call, per
// the bit-banged format of spec.md §6: start bit, 8 data bits LSB first,
// optional parity, stop bit(s), idle-high otherwise.
type Transmitter struct {
	cfg Config

	phase   txPhase
	cycles  int
	shift   byte
	bitIdx  int
	parity  bool
	stopIdx int
}

// NewTransmitter builds an idle Transmitter.
func NewTransmitter(cfg Config) *Transmitter {
	return &Transmitter{cfg: cfg}
}

// Reset returns the transmitter to idle, dropping any byte in flight.
func (t *Transmitter) Reset() {
	*t = Transmitter{cfg: t.cfg}
}

// Idle reports whether the transmitter is between bytes and can accept a
// new one.
func (t *Transmitter) Idle() bool { return t.phase == txIdle }

// Write offers one byte to transmit onto the wire. It implements io.Writer:
// only p[0] is ever consumed, and it returns (0, iox.ErrWouldBlock) while a
// previous byte is still being clocked out, matching the non-blocking
// boundary every component in this package presents.
func (t *Transmitter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !t.Idle() {
		return 0, iox.ErrWouldBlock
	}
	t.shift = p[0]
	t.parity = parityOf(p[0])
	t.bitIdx = 0
	t.phase = txStart
	t.cycles = t.cfg.BitPeriod()
	return 1, nil
}

// Tick advances the transmitter by one clock cycle and returns this cycle's
// line level (true = logic 1 / idle-high).
func (t *Transmitter) Tick() bool {
	line := t.line()
	t.cycles--
	if t.cycles <= 0 {
		t.advance()
	}
	return line
}

func (t *Transmitter) line() bool {
	switch t.phase {
	case txStart:
		return false
	case txData:
		return (t.shift>>uint(t.bitIdx))&1 == 1
	case txParity:
		return t.parity
	default: // txIdle, txStop
		return true
	}
}

func (t *Transmitter) advance() {
	switch t.phase {
	case txStart:
		t.phase = txData
		t.bitIdx = 0
	case txData:
		t.bitIdx++
		if t.bitIdx < 8 {
			t.cycles = t.cfg.BitPeriod()
			return
		}
		if t.cfg.Parity {
			t.phase = txParity
		} else {
			t.phase = txStop
			t.stopIdx = 0
		}
	case txParity:
		t.phase = txStop
		t.stopIdx = 0
	case txStop:
		t.stopIdx++
		if t.stopIdx < t.cfg.stopBits() {
			t.cycles = t.cfg.BitPeriod()
			return
		}
		t.phase = txIdle
		return
	}
	t.cycles = t.cfg.BitPeriod()
}
