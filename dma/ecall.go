// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dma

import "github.com/jawline/pulse/hart"

// NewOutboundECALL builds the ECALL handler of spec.md §4.3.4: guest code
// selects mode 0 (initiate an outbound DMA send) via x5, source address via
// x6, and length via x7; the handler drives reader accordingly and reports
// acceptance (1) or busy (0) in the instruction's rd, per the guest ECALL
// ABI of spec.md §6.
func NewOutboundECALL(reader *Reader) hart.ECALLFunc {
	return func(x [32]uint32, pc uint32) hart.Transaction {
		const modeInitiateSend = 0
		if x[5] != modeInitiateSend {
			return hart.Transaction{Finished: true, SetRd: true, NewRd: 0, NewPc: pc + 4}
		}
		if reader.Trigger(x[6], x[7]) {
			return hart.Transaction{Finished: true, SetRd: true, NewRd: 1, NewPc: pc + 4}
		}
		return hart.Transaction{Finished: true, SetRd: true, NewRd: 0, NewPc: pc + 4}
	}
}
