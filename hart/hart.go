// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hart implements the RV32I fetch/decode/execute/writeback state
// machine of spec.md §4.2: one instruction issued at a time, an
// instruction-fetch read port, a data load/store read+write port, and an
// ECALL port used to trap into host-provided (DMA) transactions.
//
// Following spec.md §9's re-architecture guidance, the state machine is
// split into a pure pair of methods rather than one combined step: Requests
// derives this cycle's bus offers from current state alone, and Advance
// folds the memory system's acks/responses (computed by the caller from
// those same offers) into the next state. A single combined Step would
// create a same-cycle dependency loop between the hart and the memory
// controller it's requesting from; the split keeps each side a pure
// function of the other's *previous* output, matching spec.md §5's
// synchronous, non-blocking model.
package hart

import (
	"github.com/jawline/pulse/membus"
	"github.com/jawline/pulse/stream"
)

// Transaction is the writeback contract produced by any instruction
// (spec.md §3). ECALLFunc handlers return one directly.
type Transaction struct {
	Finished bool
	SetRd    bool
	NewRd    uint32
	NewPc    uint32
	Error    bool
}

// ECALLFunc is called when an ECALL instruction (SYSTEM with funct3 0 and
// immediate 0) commits; EBREAK (immediate 1) takes the unsupported-SYSTEM
// error path instead. The call carries a
// snapshot of the register file and pc (spec.md §4.2's "the hart exposes
// its current register state to the host"). It must return immediately;
// multi-cycle ECALL handling is the host's responsibility to model as
// already-resolved by the time it returns (e.g. the DMA wiring in
// spec.md §4.3.4 resolves busy/accepted synchronously).
type ECALLFunc func(x [32]uint32, pc uint32) Transaction

// Config is the hart's construction-time configuration surface.
type Config struct {
	ECALL ECALLFunc
}

type phase int

const (
	phaseFetchReq phase = iota
	phaseFetchWait
	phaseLoadReq
	phaseLoadWait
	phaseStoreReadReq
	phaseStoreReadWait
	phaseStoreWriteReq
	phaseStoreWriteWait
	phaseHalted
)

// Hart is one RV32I execution context.
type Hart struct {
	regs regfile
	pc   uint32
	ph   phase
	ecall ECALLFunc

	errorLatched bool

	// Sub-state carried across the multi-cycle load/store sequencer.
	pending      decoded
	loadAddr     uint32
	storeAligned uint32
	storeWord    uint32
}

// New builds a Hart, reset to pc=0 and all registers zero.
func New(cfg Config) *Hart {
	h := &Hart{ecall: cfg.ECALL}
	if h.ecall == nil {
		h.ecall = func(x [32]uint32, pc uint32) Transaction {
			return Transaction{Finished: true, NewPc: pc + 4}
		}
	}
	return h
}

// Reset returns the hart to pc=0, all registers zero, and clears the error
// latch, per spec.md §4.5 ("a system-level clear zeros the hart registers
// (including pc=0) and resets all internal state machines").
func (h *Hart) Reset() {
	h.regs.reset()
	h.pc = 0
	h.ph = phaseFetchReq
	h.errorLatched = false
	h.pending = decoded{}
	h.loadAddr = 0
	h.storeAligned = 0
	h.storeWord = 0
}

// Registers returns a snapshot of the register file for host inspection.
func (h *Hart) Registers() [32]uint32 { return h.regs.snapshot() }

// PC returns the current program counter.
func (h *Hart) PC() uint32 { return h.pc }

// ErrorLatched reports whether the hart has hit an unaligned-pc or
// unsupported-opcode error and stopped making forward progress
// (spec.md §7).
func (h *Hart) ErrorLatched() bool { return h.errorLatched }

// Requests returns this cycle's bus offers, derived from the hart's
// current phase only.
func (h *Hart) Requests() (instr stream.Offer[membus.ReadRequest], dread stream.Offer[membus.ReadRequest], dwrite stream.Offer[membus.WriteRequest]) {
	switch h.ph {
	case phaseFetchReq:
		instr = stream.Offer[membus.ReadRequest]{Valid: true, Data: membus.ReadRequest{Address: h.pc}}
	case phaseLoadReq:
		dread = stream.Offer[membus.ReadRequest]{Valid: true, Data: membus.ReadRequest{Address: h.loadAddr &^ 0x3}}
	case phaseStoreReadReq:
		dread = stream.Offer[membus.ReadRequest]{Valid: true, Data: membus.ReadRequest{Address: h.storeAligned}}
	case phaseStoreWriteReq:
		dwrite = stream.Offer[membus.WriteRequest]{Valid: true, Data: membus.WriteRequest{Address: h.storeAligned, Data: h.storeWord}}
	}
	return
}

// Advance folds the memory system's response to this cycle's Requests
// into the hart's next state.
func (h *Hart) Advance(
	instrAck bool, instrResp stream.Offer[membus.ReadResponse],
	dreadAck bool, dreadResp stream.Offer[membus.ReadResponse],
	dwriteAck bool, dwriteResp stream.Offer[membus.WriteResponse],
) {
	switch h.ph {
	case phaseFetchReq:
		if instrAck {
			h.ph = phaseFetchWait
		}
	case phaseFetchWait:
		if instrResp.Valid {
			h.onFetched(instrResp.Data)
		}
	case phaseLoadReq:
		if dreadAck {
			h.ph = phaseLoadWait
		}
	case phaseLoadWait:
		if dreadResp.Valid {
			h.finishLoad(dreadResp.Data)
		}
	case phaseStoreReadReq:
		if dreadAck {
			h.ph = phaseStoreReadWait
		}
	case phaseStoreReadWait:
		if dreadResp.Valid {
			h.spliceStore(dreadResp.Data)
		}
	case phaseStoreWriteReq:
		if dwriteAck {
			h.ph = phaseStoreWriteWait
		}
	case phaseStoreWriteWait:
		if dwriteResp.Valid {
			h.finishStore(dwriteResp.Data)
		}
	case phaseHalted:
		// No forward progress once the error latch is set.
	}
}

func (h *Hart) onFetched(resp membus.ReadResponse) {
	if resp.Error {
		h.commit(Transaction{Finished: true, SetRd: true, NewRd: 1, NewPc: h.pc + 4, Error: true})
		return
	}
	d := decode(resp.Data)
	switch d.opcode {
	case opLoad:
		h.pending = d
		h.loadAddr = h.regs.read(d.rs1) + uint32(d.immI)
		h.ph = phaseLoadReq
	case opStore:
		h.pending = d
		addr := h.regs.read(d.rs1) + uint32(d.immS)
		h.storeAligned = addr &^ 0x3
		h.ph = phaseStoreReadReq
	default:
		h.pending = d
		h.commit(h.executeSingleCycle(d))
	}
}

// executeSingleCycle dispatches every opcode except LOAD/STORE, all of
// which resolve with no further memory traffic (spec.md §4.2's table).
func (h *Hart) executeSingleCycle(d decoded) Transaction {
	a := h.regs.read(d.rs1)
	b := h.regs.read(d.rs2)

	switch d.opcode {
	case opOpImm:
		// spec.md §4.2: "No SUB-immediate" — altFunc only selects SRA, never
		// SUB, for OP-IMM.
		isAlt := d.funct3 == f3Srl && d.altFunc
		return Transaction{Finished: true, SetRd: true, NewRd: aluOp(d.funct3, a, uint32(d.immI), isAlt), NewPc: h.pc + 4}
	case opOp:
		return Transaction{Finished: true, SetRd: true, NewRd: aluOp(d.funct3, a, b, d.altFunc), NewPc: h.pc + 4}
	case opLui:
		return Transaction{Finished: true, SetRd: true, NewRd: d.immU, NewPc: h.pc + 4}
	case opAuiPc:
		return Transaction{Finished: true, SetRd: true, NewRd: h.pc + d.immU, NewPc: h.pc + 4}
	case opJal:
		target := h.pc + uint32(d.immJ)
		return Transaction{Finished: true, SetRd: true, NewRd: h.pc + 4, NewPc: target, Error: target%4 != 0}
	case opJalr:
		target := (a + uint32(d.immI)) &^ 1
		return Transaction{Finished: true, SetRd: true, NewRd: h.pc + 4, NewPc: target, Error: target%4 != 0}
	case opBranch:
		taken, ok := branchTaken(d.funct3, a, b)
		if !ok {
			return Transaction{Finished: true, SetRd: true, NewRd: 1, NewPc: h.pc + 4, Error: true}
		}
		if !taken {
			return Transaction{Finished: true, NewPc: h.pc + 4}
		}
		target := h.pc + uint32(d.immB)
		return Transaction{Finished: true, NewPc: target, Error: target%4 != 0}
	case opSystem:
		if d.funct3 == 0 && d.immI == 0 {
			return h.ecall(h.regs.snapshot(), h.pc)
		}
		// Non-ECALL SYSTEM sub-opcode (e.g. CSR*): unsupported. The
		// error=true, set_rd=true combination is peculiar but preserved
		// for compatibility (see DESIGN.md open-question resolution).
		return Transaction{Finished: true, SetRd: true, NewRd: 1, NewPc: h.pc + 4, Error: true}
	case opMiscMem:
		return Transaction{Finished: true, NewPc: h.pc + 4}
	default:
		return Transaction{Finished: true, SetRd: true, NewRd: 1, NewPc: h.pc + 4, Error: true}
	}
}

func (h *Hart) finishLoad(resp membus.ReadResponse) {
	d := h.pending
	if resp.Error {
		h.commit(Transaction{Finished: true, SetRd: true, NewRd: 1, NewPc: h.pc + 4, Error: true})
		return
	}
	shift := (h.loadAddr & 0x3) * 8
	word := resp.Data
	var val uint32
	switch d.funct3 {
	case f3Lb:
		val = uint32(int32(int8(byte(word >> shift))))
	case f3Lh:
		val = uint32(int32(int16(uint16(word >> shift))))
	case f3Lw:
		val = word
	case f3Lbu:
		val = uint32(byte(word >> shift))
	case f3Lhu:
		val = uint32(uint16(word >> shift))
	default:
		h.commit(Transaction{Finished: true, SetRd: true, NewRd: 1, NewPc: h.pc + 4, Error: true})
		return
	}
	h.commit(Transaction{Finished: true, SetRd: true, NewRd: val, NewPc: h.pc + 4})
}

func (h *Hart) spliceStore(resp membus.ReadResponse) {
	d := h.pending
	if resp.Error {
		h.commit(Transaction{Finished: true, SetRd: true, NewRd: 1, NewPc: h.pc + 4, Error: true})
		return
	}
	addr := h.regs.read(d.rs1) + uint32(d.immS)
	shift := (addr & 0x3) * 8
	val := h.regs.read(d.rs2)
	word := resp.Data
	switch d.funct3 {
	case f3Sb:
		mask := uint32(0xff) << shift
		word = (word &^ mask) | ((val & 0xff) << shift)
	case f3Sh:
		mask := uint32(0xffff) << shift
		word = (word &^ mask) | ((val & 0xffff) << shift)
	case f3Sw:
		word = val
	default:
		h.commit(Transaction{Finished: true, SetRd: true, NewRd: 1, NewPc: h.pc + 4, Error: true})
		return
	}
	h.storeWord = word
	h.ph = phaseStoreWriteReq
}

func (h *Hart) finishStore(resp membus.WriteResponse) {
	h.commit(Transaction{Finished: true, NewPc: h.pc + 4, Error: resp.Error})
}

// commit applies a finished Transaction's writeback per spec.md §4.2. On
// error the pc is left at the faulting instruction and the hart halts.
func (h *Hart) commit(t Transaction) {
	if t.SetRd {
		h.regs.write(h.pending.rd, t.NewRd)
	}
	if t.Error {
		h.errorLatched = true
		h.ph = phaseHalted
		return
	}
	h.pc = t.NewPc
	h.ph = phaseFetchReq
}
