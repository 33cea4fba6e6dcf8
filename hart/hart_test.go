// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hart

import (
	"testing"

	"github.com/jawline/pulse/arbiter"
	"github.com/jawline/pulse/membus"
	"github.com/jawline/pulse/memctl"
	"github.com/jawline/pulse/stream"
)

// driver wires a single Hart to a private memory controller with two read
// channels (0=fetch, 1=data) and one write channel (0=data), matching the
// per-hart slot ordering of spec.md §4.5.
type driver struct {
	h  *Hart
	mc *memctl.Controller
}

func newDriver(t *testing.T, ecall ECALLFunc) *driver {
	t.Helper()
	mc, err := memctl.New(memctl.Config{
		CapacityBytes: 4096,
		ReadChannels:  2,
		WriteChannels: 1,
		ReadPriority:  arbiter.RoundRobin,
		WritePriority: arbiter.RoundRobin,
	})
	if err != nil {
		t.Fatalf("memctl.New: %v", err)
	}
	return &driver{h: New(Config{ECALL: ecall}), mc: mc}
}

func (d *driver) loadProgram(t *testing.T, base uint32, words []uint32) {
	t.Helper()
	bytes := make([]byte, len(words)*4)
	for i, w := range words {
		bytes[i*4+0] = byte(w)
		bytes[i*4+1] = byte(w >> 8)
		bytes[i*4+2] = byte(w >> 16)
		bytes[i*4+3] = byte(w >> 24)
	}
	if err := d.mc.Load(base, bytes); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func (d *driver) cycle() {
	instrReq, dreadReq, dwriteReq := d.h.Requests()
	out := d.mc.Step(memctl.StepInputs{
		Read:  []stream.Offer[membus.ReadRequest]{instrReq, dreadReq},
		Write: []stream.Offer[membus.WriteRequest]{dwriteReq},
	})
	d.h.Advance(
		out.ReadAck[0], out.ReadResp[0],
		out.ReadAck[1], out.ReadResp[1],
		out.WriteAck[0], out.WriteResp[0],
	)
}

func (d *driver) run(maxCycles int) {
	for i := 0; i < maxCycles; i++ {
		d.cycle()
	}
}

// rType encodes an R-type instruction (OP / OP-IMM share the encoding).
func rType(opcode, funct3, funct7 uint32, rd, rs1, rs2 uint8) uint32 {
	return (funct7 << 25) | (uint32(rs2) << 20) | (uint32(rs1) << 15) | (funct3 << 12) | (uint32(rd) << 7) | opcode
}

func iType(opcode, funct3 uint32, rd, rs1 uint8, imm int32) uint32 {
	return (uint32(imm)&0xfff)<<20 | (uint32(rs1) << 15) | (funct3 << 12) | (uint32(rd) << 7) | opcode
}

func sType(opcode, funct3 uint32, rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>5)&0x7f)<<25 | (uint32(rs2) << 20) | (uint32(rs1) << 15) | (funct3 << 12) | ((u & 0x1f) << 7) | opcode
}

func bType(opcode, funct3 uint32, rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>12)&1)<<31 | ((u>>5)&0x3f)<<25 | (uint32(rs2) << 20) | (uint32(rs1) << 15) | (funct3 << 12) | ((u>>1)&0xf)<<8 | ((u>>11)&1)<<7 | opcode
}

func jType(opcode uint32, rd uint8, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>20)&1)<<31 | ((u>>12)&0xff)<<12 | ((u>>11)&1)<<20 | ((u>>1)&0x3ff)<<21 | (uint32(rd) << 7) | opcode
}

const addi = opOpImm // funct3 f3Add

func TestLoadStoreRoundTrip(t *testing.T) {
	d := newDriver(t, nil)
	// addi x1, x0, 0x123; sw x1, 0(x0); lw x2, 0(x0)
	prog := []uint32{
		iType(addi, f3Add, 1, 0, 0x123),
		sType(opStore, f3Sw, 0, 1, 0),
		iType(opLoad, f3Lw, 2, 0, 0),
	}
	d.loadProgram(t, 0, prog)
	d.run(60)

	regs := d.h.Registers()
	if regs[1] != 0x123 {
		t.Fatalf("x1 = %#x, want 0x123", regs[1])
	}
	if regs[2] != 0x123 {
		t.Fatalf("x2 = %#x, want 0x123", regs[2])
	}
	mem := d.mc.Snapshot()
	if mem[0] != 0x23 || mem[1] != 0x01 || mem[2] != 0x00 || mem[3] != 0x00 {
		t.Fatalf("memory[0..4] = % x, want 23 01 00 00", mem[0:4])
	}
}

func TestBranchTaken(t *testing.T) {
	d := newDriver(t, nil)
	// addi x1,x0,1; addi x2,x0,1; beq x1,x2,+8; addi x3,x0,42; addi x4,x0,99
	prog := []uint32{
		iType(addi, f3Add, 1, 0, 1),
		iType(addi, f3Add, 2, 0, 1),
		bType(opBranch, f3Beq, 1, 2, 8),
		iType(addi, f3Add, 3, 0, 42),
		iType(addi, f3Add, 4, 0, 99),
	}
	d.loadProgram(t, 0, prog)
	d.run(60)

	regs := d.h.Registers()
	if regs[3] != 0 {
		t.Fatalf("x3 = %d, want 0 (instruction skipped)", regs[3])
	}
	if regs[4] != 99 {
		t.Fatalf("x4 = %d, want 99", regs[4])
	}
	if d.h.PC() != 20 {
		t.Fatalf("pc = %d, want 20 (end of program)", d.h.PC())
	}
}

func TestBootEmptyHaltsOnIllegalInstruction(t *testing.T) {
	d := newDriver(t, nil)
	d.run(40)
	if !d.h.ErrorLatched() {
		t.Fatalf("expected error latch to be set after executing an all-zero word")
	}
	mem := d.mc.Snapshot()
	for i, b := range mem {
		if b != 0 {
			t.Fatalf("memory mutated at byte %d: %v", i, b)
		}
	}
}

func TestUnalignedJumpSetsErrorLatch(t *testing.T) {
	d := newDriver(t, nil)
	// jal x1, +2 (misaligned target)
	word := jType(opJal, 1, 2)
	d.loadProgram(t, 0, []uint32{word})
	d.run(20)
	if !d.h.ErrorLatched() {
		t.Fatalf("expected unaligned JAL target to latch an error")
	}
}

func TestECALLDispatch(t *testing.T) {
	var gotPC uint32
	var gotX5 uint32
	ecall := func(x [32]uint32, pc uint32) Transaction {
		gotPC = pc
		gotX5 = x[5]
		return Transaction{Finished: true, SetRd: true, NewRd: 1, NewPc: pc + 4}
	}
	d := newDriver(t, ecall)
	prog := []uint32{
		iType(addi, f3Add, 5, 0, 7),
		iType(opSystem, 0, 0, 0, 0), // ecall
	}
	d.loadProgram(t, 0, prog)
	d.run(30)
	if gotX5 != 7 {
		t.Fatalf("ecall saw x5=%d, want 7", gotX5)
	}
	if gotPC != 4 {
		t.Fatalf("ecall saw pc=%d, want 4", gotPC)
	}
}
