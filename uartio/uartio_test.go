// Copyright 2018 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package uartio

import (
	"errors"
	"testing"

	"code.hybscloud.com/iox"
)

func loopback(t *testing.T, cfg Config, b byte) Frame {
	t.Helper()
	tx := NewTransmitter(cfg)
	rx := NewReceiver(cfg)

	if n, err := tx.Write([]byte{b}); n != 1 || err != nil {
		t.Fatalf("Write(%#x) = %d, %v", b, n, err)
	}

	var frame Frame
	var got bool
	for i := 0; i < cfg.BitPeriod()*32 && !got; i++ {
		line := tx.Tick()
		rx.Tick(line)
		if out := rx.Output(); out.Valid {
			frame = out.Data
			rx.Accept()
			got = true
		}
	}
	if !got {
		t.Fatalf("receiver never completed a frame for %#x", b)
	}
	return frame
}

func TestLoopbackIsLossless(t *testing.T) {
	cfg := Config{ClockHz: 16_000_000, BaudRate: 115_200, Parity: true, StopBits: 1}
	for _, b := range []byte{0x00, 0xff, 0x55, 0xaa, 'Q', 'H', 0x01, 0x80} {
		frame := loopback(t, cfg, b)
		if frame.Byte != b {
			t.Fatalf("loopback(%#x) = %#x", b, frame.Byte)
		}
		if frame.ParityError {
			t.Fatalf("loopback(%#x): unexpected parity error", b)
		}
		if frame.StopBitUnstable {
			t.Fatalf("loopback(%#x): unexpected unstable stop bit", b)
		}
	}
}

func TestTransmitterBusyWhileSending(t *testing.T) {
	cfg := Config{ClockHz: 16, BaudRate: 1}
	tx := NewTransmitter(cfg)
	if n, err := tx.Write([]byte{0x42}); n != 1 || err != nil {
		t.Fatalf("first Write: %d, %v", n, err)
	}
	if n, err := tx.Write([]byte{0x43}); n != 0 || !errors.Is(err, iox.ErrWouldBlock) {
		t.Fatalf("second Write = %d, %v, want ErrWouldBlock", n, err)
	}
	for i := 0; i < cfg.BitPeriod()*16; i++ {
		tx.Tick()
	}
	if !tx.Idle() {
		t.Fatalf("transmitter never returned to idle")
	}
	if n, err := tx.Write([]byte{0x43}); n != 1 || err != nil {
		t.Fatalf("Write after idle = %d, %v", n, err)
	}
}

func TestReceiverReadWouldBlockThenDelivers(t *testing.T) {
	cfg := Config{ClockHz: 16, BaudRate: 1}
	tx := NewTransmitter(cfg)
	rx := NewReceiver(cfg)
	tx.Write([]byte{0x37})

	buf := make([]byte, 1)
	if n, err := rx.Read(buf); n != 0 || !errors.Is(err, iox.ErrWouldBlock) {
		t.Fatalf("premature Read = %d, %v, want ErrWouldBlock", n, err)
	}

	for i := 0; i < cfg.BitPeriod()*16; i++ {
		rx.Tick(tx.Tick())
	}
	n, err := rx.Read(buf)
	if n != 1 || err != nil {
		t.Fatalf("Read after frame complete = %d, %v", n, err)
	}
	if buf[0] != 0x37 {
		t.Fatalf("Read() = %#x, want 0x37", buf[0])
	}
	if n, err := rx.Read(buf); n != 0 || !errors.Is(err, iox.ErrWouldBlock) {
		t.Fatalf("Read after drain = %d, %v, want ErrWouldBlock", n, err)
	}
}
