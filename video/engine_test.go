// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package video

import (
	"testing"

	"github.com/jawline/pulse/arbiter"
	"github.com/jawline/pulse/membus"
	"github.com/jawline/pulse/memctl"
	"github.com/jawline/pulse/stream"
)

func TestFramebufferRenderTwoXScale(t *testing.T) {
	const fbAddr = 0x8000
	mc, err := memctl.New(memctl.Config{
		CapacityBytes: 0x9000,
		ReadChannels:  1,
		WriteChannels: 1,
		ReadPriority:  arbiter.RoundRobin,
		WritePriority: arbiter.RoundRobin,
	})
	if err != nil {
		t.Fatalf("memctl.New: %v", err)
	}

	// 32x32 1bpp framebuffer, one word (32 bits) per row; set bit (3,3).
	fb := make([]byte, 32*4)
	fb[3*4+0] = 1 << 3
	if err := mc.Load(fbAddr, fb); err != nil {
		t.Fatalf("Load: %v", err)
	}

	e := New(Config{
		InputWidth: 32, InputHeight: 32,
		OutputWidth: 64, OutputHeight: 64,
		FramebufferAddr: fbAddr,
		Timing: Timing{
			HActive: 64, HFrontPorch: 4, HSync: 4, HBackPorch: 4,
			VActive: 64, VFrontPorch: 4, VSync: 4, VBackPorch: 4,
		},
	})

	out := make([][]bool, 64)
	for i := range out {
		out[i] = make([]bool, 64)
	}

	sawFrame := false
	for cycle := 0; cycle < 20000 && !sawFrame; cycle++ {
		reqs := e.Requests()
		mcOut := mc.Step(memctl.StepInputs{
			Read:  []stream.Offer[membus.ReadRequest]{reqs},
			Write: []stream.Offer[membus.WriteRequest]{{}},
		})
		e.Advance(mcOut.ReadAck[0], mcOut.ReadResp[0])
		pixel, s := e.Step()

		if s.DataEnable {
			out[s.Y][s.X] = pixel
			if s.Y == 63 && s.X == 63 {
				sawFrame = true
			}
		}
	}
	if !sawFrame {
		t.Fatalf("never completed a full active frame")
	}

	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			want := x >= 6 && x <= 7 && y >= 6 && y <= 7
			if out[y][x] != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, out[y][x], want)
			}
		}
	}
}

func TestGeneratorEmitsFrameStart(t *testing.T) {
	g := NewGenerator(Timing{HActive: 2, HFrontPorch: 1, HSync: 1, HBackPorch: 1, VActive: 2, VFrontPorch: 1, VSync: 1, VBackPorch: 1})
	sawFrameStart := false
	for i := 0; i < 100 && !sawFrameStart; i++ {
		if s := g.Tick(); s.FrameStart {
			sawFrameStart = true
		}
	}
	if !sawFrameStart {
		t.Fatalf("generator never produced a FrameStart pulse")
	}
}
