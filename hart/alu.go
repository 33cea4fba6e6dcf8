// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hart

// aluOp applies the RV32I OP/OP-IMM ALU table (spec.md §4.2) to a and b.
// isAlt selects SUB over ADD (OP only) or SRA over SRL, per funct7 bit 30.
func aluOp(funct3 uint32, a, b uint32, isAlt bool) uint32 {
	switch funct3 {
	case f3Add:
		if isAlt {
			return a - b
		}
		return a + b
	case f3Sll:
		return a << (b & 0x1f)
	case f3Slt:
		if int32(a) < int32(b) {
			return 1
		}
		return 0
	case f3Sltu:
		if a < b {
			return 1
		}
		return 0
	case f3Xor:
		return a ^ b
	case f3Srl:
		if isAlt {
			return uint32(int32(a) >> (b & 0x1f))
		}
		return a >> (b & 0x1f)
	case f3Or:
		return a | b
	case f3And:
		return a & b
	}
	return 0
}

// branchTaken evaluates a BRANCH comparison. ok is false for a reserved
// funct3 (spec.md §4.2: "Error on invalid funct3").
func branchTaken(funct3 uint32, a, b uint32) (taken bool, ok bool) {
	switch funct3 {
	case f3Beq:
		return a == b, true
	case f3Bne:
		return a != b, true
	case f3Blt:
		return int32(a) < int32(b), true
	case f3Bge:
		return int32(a) >= int32(b), true
	case f3Bltu:
		return a < b, true
	case f3Bgeu:
		return a >= b, true
	}
	return false, false
}
