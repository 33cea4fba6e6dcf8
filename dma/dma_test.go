// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dma

import (
	"testing"

	"github.com/jawline/pulse/arbiter"
	"github.com/jawline/pulse/membus"
	"github.com/jawline/pulse/memctl"
	"github.com/jawline/pulse/stream"
)

func newMemctl(t *testing.T, capacity int) *memctl.Controller {
	t.Helper()
	mc, err := memctl.New(memctl.Config{
		CapacityBytes: capacity,
		ReadChannels:  1,
		WriteChannels: 1,
		ReadPriority:  arbiter.RoundRobin,
		WritePriority: arbiter.RoundRobin,
	})
	if err != nil {
		t.Fatalf("memctl.New: %v", err)
	}
	return mc
}

func packetBytes(header byte, addr uint32, payload []byte) []byte {
	total := uint16(4 + len(payload))
	out := []byte{header, byte(total >> 8), byte(total)}
	out = append(out, byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
	out = append(out, payload...)
	return out
}

func TestPacketDeliversToMemory(t *testing.T) {
	mc := newMemctl(t, 256)
	f := NewFramer(DefaultHeader)
	w := NewWriter(256)

	wire := packetBytes(DefaultHeader, 0x78, []byte("HELLO"))
	src := stream.NewSource(wire)

	var done bool
	for i := 0; i < 200 && !done; i++ {
		rx := src.Peek()
		fOut, rxReady := f.Step(rx, w.Ready())
		src.Step(rxReady)
		if fOut.Valid && w.Ready() {
			w.Offer(fOut.Data)
		}
		out := mc.Step(memctl.StepInputs{
			Read:  []stream.Offer[membus.ReadRequest]{{}},
			Write: []stream.Offer[membus.WriteRequest]{w.Requests()},
		})
		if w.Advance(out.WriteAck[0], out.WriteResp[0]) {
			done = true
		}
	}
	if !done {
		t.Fatalf("writer never signaled done")
	}
	mem := mc.Snapshot()
	got := string(mem[0x78 : 0x78+5])
	if got != "HELLO" {
		t.Fatalf("memory at 0x78 = %q, want HELLO", got)
	}
}

func TestReaderEmitsFramedPacket(t *testing.T) {
	mc := newMemctl(t, 256)
	if err := mc.Load(0x78, []byte("HELLO")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	r := NewReader(DefaultHeader, true, 256)
	if !r.Trigger(0x78, 5) {
		t.Fatalf("Trigger rejected")
	}

	var gotBytes []byte
	var lastSeen bool
	for i := 0; i < 200 && !lastSeen; i++ {
		out := mc.Step(memctl.StepInputs{
			Read:  []stream.Offer[membus.ReadRequest]{r.Requests()},
			Write: []stream.Offer[membus.WriteRequest]{{}},
		})
		r.Advance(out.ReadAck[0], out.ReadResp[0])
		o := r.Step(true)
		if o.Valid {
			gotBytes = append(gotBytes, o.Data.B)
			if o.Data.Last {
				lastSeen = true
			}
		}
	}
	if !lastSeen {
		t.Fatalf("reader never emitted a last-flagged byte")
	}
	want := packetBytes(DefaultHeader, 0x78, []byte("HELLO"))
	if len(gotBytes) != len(want) {
		t.Fatalf("got %v (%d bytes), want %v (%d bytes)", gotBytes, len(gotBytes), want, len(want))
	}
	for i := range want {
		if gotBytes[i] != want[i] {
			t.Fatalf("byte %d: got %#x want %#x (full: got=%v want=%v)", i, gotBytes[i], want[i], gotBytes, want)
		}
	}
}

func TestDesyncRecoversAtNextHeader(t *testing.T) {
	f := NewFramer(DefaultHeader)
	garbage := []byte{0x00, 0xff, 0x10}
	valid := packetBytes(DefaultHeader, 0, []byte{0x42})
	wire := append(append([]byte{}, garbage...), valid...)
	src := stream.NewSource(wire)

	var gotLast bool
	for i := 0; i < 50 && !gotLast; i++ {
		rx := src.Peek()
		out, rxReady := f.Step(rx, true)
		src.Step(rxReady)
		if out.Valid && out.Data.Last {
			gotLast = true
			if out.Data.B != 0x42 {
				t.Fatalf("got payload byte %#x, want 0x42", out.Data.B)
			}
		}
	}
	if !gotLast {
		t.Fatalf("framer never recovered sync after garbage bytes")
	}
	if f.Desyncs() != len(garbage) {
		t.Fatalf("Desyncs() = %d, want %d", f.Desyncs(), len(garbage))
	}
}
