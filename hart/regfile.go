// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hart

// regfile is the 32-entry RV32I general purpose register file. x[0] always
// reads as zero; writes to it are silently dropped (spec.md §3 invariant
// "x[0] ≡ 0 at every observable cycle").
type regfile struct {
	x [32]uint32
}

func (r *regfile) read(idx uint8) uint32 {
	if idx == 0 {
		return 0
	}
	return r.x[idx]
}

func (r *regfile) write(idx uint8, v uint32) {
	if idx == 0 {
		return
	}
	r.x[idx] = v
}

func (r *regfile) reset() {
	r.x = [32]uint32{}
}

func (r *regfile) snapshot() [32]uint32 {
	return r.x
}
