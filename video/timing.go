// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package video implements the Video Out scan-out engine of spec.md §4.4: a
// horizontal/vertical timing generator driving a framebuffer expander that
// prefetches one input row per row-block during blanking.
package video

// Timing parameterises both axes of the scan-out raster, per spec.md §4.4:
// for each axis, an active window, then front porch, sync, and back porch
// blanking periods before the axis wraps.
type Timing struct {
	HActive, HFrontPorch, HSync, HBackPorch int
	VActive, VFrontPorch, VSync, VBackPorch int
}

func (t Timing) hTotal() int {
	return t.HActive + t.HFrontPorch + t.HSync + t.HBackPorch
}

func (t Timing) vTotal() int {
	return t.VActive + t.VFrontPorch + t.VSync + t.VBackPorch
}

// Signals is what the timing generator presents for a single pixel clock.
type Signals struct {
	HSync, VSync, DataEnable bool
	X, Y                     int
	FrameStart               bool
}

// Generator is the timing generator of spec.md §4.4. It starts mid-blank
// (at the beginning of the vertical front porch) rather than at (0,0), so
// the very first active line of the very first frame gets the same
// blanking window to prefetch into as every subsequent line does.
type Generator struct {
	cfg            Timing
	hCount, vCount int
}

// NewGenerator builds a Generator for cfg.
func NewGenerator(cfg Timing) *Generator {
	return &Generator{cfg: cfg, vCount: cfg.VActive}
}

func (g *Generator) inHActive() bool { return g.hCount < g.cfg.HActive }
func (g *Generator) inVActive() bool { return g.vCount < g.cfg.VActive }

func (g *Generator) inHSync() bool {
	start := g.cfg.HActive + g.cfg.HFrontPorch
	return g.hCount >= start && g.hCount < start+g.cfg.HSync
}

func (g *Generator) inVSync() bool {
	start := g.cfg.VActive + g.cfg.VFrontPorch
	return g.vCount >= start && g.vCount < start+g.cfg.VSync
}

// Tick advances the generator by one pixel clock and returns this cycle's
// signals.
func (g *Generator) Tick() Signals {
	s := Signals{
		HSync:      g.inHSync(),
		VSync:      g.inVSync(),
		DataEnable: g.inHActive() && g.inVActive(),
		X:          g.hCount,
		Y:          g.vCount,
		FrameStart: g.hCount == 0 && g.vCount == 0,
	}
	g.hCount++
	if g.hCount >= g.cfg.hTotal() {
		g.hCount = 0
		g.vCount++
		if g.vCount >= g.cfg.vTotal() {
			g.vCount = 0
		}
	}
	return s
}

// NextActiveLine returns the index of the next active output line after
// the line currently indicated by y (wrapping to line 0 of the next frame
// once the active region is exhausted), used by the expander to know which
// input row to prefetch during the current blanking interval.
func (t Timing) NextActiveLine(y int) int {
	next := y + 1
	if next >= t.VActive {
		return 0
	}
	return next
}
