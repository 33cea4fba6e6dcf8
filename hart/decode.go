// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hart

// RV32I opcode field values (bits [6:0] of the instruction word).
const (
	opOpImm   = 0b0010011
	opOp      = 0b0110011
	opLui     = 0b0110111
	opAuiPc   = 0b0010111
	opJal     = 0b1101111
	opJalr    = 0b1100111
	opBranch  = 0b1100011
	opLoad    = 0b0000011
	opStore   = 0b0100011
	opSystem  = 0b1110011
	opMiscMem = 0b0001111
)

// funct3 values shared by OP-IMM and OP, per spec.md §4.2's dispatch table.
const (
	f3Add  = 0b000 // also SUB on OP (funct7 bit30)
	f3Sll  = 0b001
	f3Slt  = 0b010
	f3Sltu = 0b011
	f3Xor  = 0b100
	f3Srl  = 0b101 // also SRA (funct7 bit30)
	f3Or   = 0b110
	f3And  = 0b111
)

// funct3 values for BRANCH.
const (
	f3Beq  = 0b000
	f3Bne  = 0b001
	f3Blt  = 0b100
	f3Bge  = 0b101
	f3Bltu = 0b110
	f3Bgeu = 0b111
)

// funct3 values for LOAD.
const (
	f3Lb  = 0b000
	f3Lh  = 0b001
	f3Lw  = 0b010
	f3Lbu = 0b100
	f3Lhu = 0b101
)

// funct3 values for STORE.
const (
	f3Sb = 0b000
	f3Sh = 0b001
	f3Sw = 0b010
)

// decoded is the result of splitting a fetched 32-bit instruction word,
// spec.md §3's "Decoded Instruction".
type decoded struct {
	raw     uint32
	opcode  uint32
	funct3  uint32
	funct7  uint32
	rs1     uint8
	rs2     uint8
	rd      uint8
	immI    int32
	immS    int32
	immB    int32
	immU    uint32
	immJ    int32
	altFunc bool // funct7 bit 30 set: SUB/SRA
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

func decode(word uint32) decoded {
	d := decoded{raw: word}
	d.opcode = word & 0x7f
	d.rd = uint8((word >> 7) & 0x1f)
	d.funct3 = (word >> 12) & 0x7
	d.rs1 = uint8((word >> 15) & 0x1f)
	d.rs2 = uint8((word >> 20) & 0x1f)
	d.funct7 = (word >> 25) & 0x7f
	d.altFunc = d.funct7&0x20 != 0

	d.immI = signExtend(word>>20, 12)
	d.immS = signExtend(((word>>25)<<5)|((word>>7)&0x1f), 12)

	bImm := ((word >> 31) << 12) | (((word >> 7) & 1) << 11) | (((word >> 25) & 0x3f) << 5) | (((word >> 8) & 0xf) << 1)
	d.immB = signExtend(bImm, 13)

	d.immU = word & 0xfffff000

	jImm := ((word >> 31) << 20) | (((word >> 12) & 0xff) << 12) | (((word >> 20) & 1) << 11) | (((word >> 21) & 0x3ff) << 1)
	d.immJ = signExtend(jImm, 21)

	return d
}
