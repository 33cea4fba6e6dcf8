// Copyright 2018 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package uartio implements the bit-banged UART wire format of spec.md §6:
// single-wire, start/stop/parity framing at a configurable baud rate, driven
// one simulated clock cycle at a time.
//
// The physical layer is intentionally separate from the packet framing in
// package dma: a Transmitter/Receiver pair only ever sees individual bytes
// and the raw line level, the same boundary conn/uart/uart.go draws between
// "communicate with devices over the UART protocol" and whatever sits above
// it.
package uartio

// Config is the wire-level configuration of a UART line, matching spec.md
// §6 exactly.
type Config struct {
	ClockHz  int
	BaudRate int
	Parity   bool
	// StopBits is the number of stop-bit periods; zero is treated as 1.
	StopBits int
}

// BitPeriod is the number of clock cycles spanning one bit ("clock_frequency
// / baud_rate"), clamped to at least 1 cycle.
func (c Config) BitPeriod() int {
	if c.ClockHz <= 0 || c.BaudRate <= 0 {
		return 1
	}
	if p := c.ClockHz / c.BaudRate; p >= 1 {
		return p
	}
	return 1
}

func (c Config) stopBits() int {
	if c.StopBits < 1 {
		return 1
	}
	return c.StopBits
}

// parityOf computes the even-parity bit of b: the XOR of its 8 data bits,
// per spec.md §6 ("Optional parity bit (even parity if enabled): XOR of
// data bits").
func parityOf(b byte) bool {
	p := false
	for i := 0; i < 8; i++ {
		if (b>>uint(i))&1 == 1 {
			p = !p
		}
	}
	return p
}
