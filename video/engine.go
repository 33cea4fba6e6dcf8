// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package video

import (
	"github.com/jawline/pulse/membus"
	"github.com/jawline/pulse/stream"
)

type fetchPhase int

const (
	fetchIdle fetchPhase = iota
	fetchReq
	fetchWait
)

// Config is the construction-time configuration of an Engine, matching
// spec.md §6's `include_video_out` surface.
type Config struct {
	InputWidth, InputHeight   int
	OutputWidth, OutputHeight int
	FramebufferAddr           uint32
	Timing                    Timing
}

// Engine is the Video Out component of spec.md §4.4: a timing generator
// plus a framebuffer expander that maps each output pixel to an input bit,
// caching one input row of words at a time and prefetching the next
// row-block's words during blanking.
type Engine struct {
	cfg Config
	gen *Generator

	wordsPerRow int

	rowCache      []uint32
	rowCacheValid bool
	rowCacheY     int

	phase     fetchPhase
	fetchWord int
	pendingY  int
}

// New builds an Engine for cfg.
func New(cfg Config) *Engine {
	wordsPerRow := (cfg.InputWidth + membus.WordBits - 1) / membus.WordBits
	return &Engine{
		cfg:         cfg,
		gen:         NewGenerator(cfg.Timing),
		wordsPerRow: wordsPerRow,
		rowCache:    make([]uint32, wordsPerRow),
	}
}

// Reset drops the row cache and any in-flight fetch, and restarts the
// timing generator, matching spec.md §4.5's global-clear semantics.
func (e *Engine) Reset() {
	e.gen = NewGenerator(e.cfg.Timing)
	e.rowCacheValid = false
	e.phase = fetchIdle
	for i := range e.rowCache {
		e.rowCache[i] = 0
	}
}

// Requests returns this cycle's read-port offer for the in-flight row
// fetch, if any.
func (e *Engine) Requests() stream.Offer[membus.ReadRequest] {
	if e.phase != fetchReq {
		return stream.Offer[membus.ReadRequest]{}
	}
	addr := e.cfg.FramebufferAddr + uint32((e.pendingY*e.wordsPerRow+e.fetchWord)*membus.WordBytes)
	return stream.Offer[membus.ReadRequest]{Valid: true, Data: membus.ReadRequest{Address: addr}}
}

// Advance folds the memory controller's ack/response into the engine's
// row-fetch state.
func (e *Engine) Advance(ack bool, resp stream.Offer[membus.ReadResponse]) {
	switch e.phase {
	case fetchReq:
		if ack {
			e.phase = fetchWait
		}
	case fetchWait:
		if resp.Valid {
			e.rowCache[e.fetchWord] = resp.Data.Data
			e.fetchWord++
			if e.fetchWord == e.wordsPerRow {
				e.rowCacheValid = true
				e.rowCacheY = e.pendingY
				e.phase = fetchIdle
			} else {
				e.phase = fetchReq
			}
		}
	}
}

// Step advances the engine by one pixel clock (one tick of the system's
// global clock, per spec.md §5): it returns the pixel bit to present this
// cycle (zero during blanking, per spec.md §4.4) along with the raster
// signals, and kicks off a row prefetch when the upcoming row-block's
// input row isn't cached yet.
func (e *Engine) Step() (bool, Signals) {
	s := e.gen.Tick()

	if s.VSync {
		e.rowCacheValid = false
		e.phase = fetchIdle
	}

	if !s.DataEnable {
		next := e.cfg.Timing.NextActiveLine(s.Y)
		inY := next * e.cfg.InputHeight / e.cfg.OutputHeight
		e.beginFetch(inY)
		return false, s
	}

	inX := s.X * e.cfg.InputWidth / e.cfg.OutputWidth
	inY := s.Y * e.cfg.InputHeight / e.cfg.OutputHeight
	e.beginFetch(inY) // no-op if already cached; a fallback if prefetch fell behind
	return e.sampleRow(inX), s
}

func (e *Engine) needRow(y int) bool {
	return !e.rowCacheValid || e.rowCacheY != y
}

func (e *Engine) beginFetch(y int) {
	if !e.needRow(y) {
		return
	}
	if e.phase != fetchIdle && e.pendingY == y {
		return
	}
	e.phase = fetchReq
	e.fetchWord = 0
	e.pendingY = y
}

func (e *Engine) sampleRow(x int) bool {
	if !e.rowCacheValid {
		return false
	}
	word := x / membus.WordBits
	bit := x % membus.WordBits
	if word < 0 || word >= len(e.rowCache) {
		return false
	}
	return (e.rowCache[word]>>uint(bit))&1 == 1
}
