// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package memctl implements the single-port backing-store Memory
// Controller shared by every client in the system (spec.md §4.1): K_r read
// channels and K_w write channels arbitrated independently, each request
// pipelined for a configurable request-delay plus (for reads) read-latency
// before the response is presented.
package memctl

import (
	"errors"
	"fmt"

	"github.com/jawline/pulse/arbiter"
	"github.com/jawline/pulse/membus"
	"github.com/jawline/pulse/stream"
)

// ErrBadCapacity is returned when the requested backing-store size isn't a
// positive multiple of the word size.
var ErrBadCapacity = errors.New("memctl: capacity must be a positive multiple of membus.WordBytes")

// Config is the construction-time configuration surface for a Controller,
// matching spec.md §4.1 and §6 exactly.
type Config struct {
	CapacityBytes int
	ReadChannels  int
	WriteChannels int

	ReadPriority  arbiter.Policy
	WritePriority arbiter.Policy

	// RequestDelay is the number of cycles between a request being
	// accepted and it being presented to the backing store. ReadLatency
	// adds further cycles (reads only) between that presentation and the
	// response asserting valid. Per spec.md §5's synchronous model, a
	// configured total of 0 is clamped to 1: in a register-stepped
	// design, a response cannot be observed on the very same Step call
	// that accepted the request.
	RequestDelay int
	ReadLatency  int

	// OnCommit, if non-nil, is called whenever a write commits to the
	// backing store: the optional tracing callback of spec.md §9.
	OnCommit func(address uint32, data uint32)
}

type pendingRead struct {
	valid   bool
	channel int
	address uint32
}

type pendingWrite struct {
	valid   bool
	channel int
	address uint32
	data    uint32
}

// Controller is the Memory Controller: a word-indexed backing array plus
// arbitrated, pipelined read and write ports.
type Controller struct {
	words []uint32

	readChannels  int
	writeChannels int

	readArb  *arbiter.Arbiter
	writeArb *arbiter.Arbiter

	readDepth  int
	writeDepth int

	readLine  []pendingRead
	writeLine []pendingWrite

	onCommit func(address uint32, data uint32)
}

// New builds a Controller per cfg.
func New(cfg Config) (*Controller, error) {
	if cfg.CapacityBytes <= 0 || cfg.CapacityBytes%membus.WordBytes != 0 {
		return nil, ErrBadCapacity
	}
	c := &Controller{
		words:         make([]uint32, cfg.CapacityBytes/membus.WordBytes),
		readChannels:  cfg.ReadChannels,
		writeChannels: cfg.WriteChannels,
		onCommit:      cfg.OnCommit,
	}
	c.readDepth = cfg.RequestDelay + cfg.ReadLatency
	if c.readDepth < 1 {
		c.readDepth = 1
	}
	c.writeDepth = cfg.RequestDelay
	if c.writeDepth < 1 {
		c.writeDepth = 1
	}
	c.readLine = make([]pendingRead, c.readDepth)
	c.writeLine = make([]pendingWrite, c.writeDepth)

	if cfg.ReadChannels > 0 {
		a, err := arbiter.New(cfg.ReadPriority, cfg.ReadChannels)
		if err != nil {
			return nil, fmt.Errorf("memctl: read arbiter: %w", err)
		}
		c.readArb = a
	}
	if cfg.WriteChannels > 0 {
		a, err := arbiter.New(cfg.WritePriority, cfg.WriteChannels)
		if err != nil {
			return nil, fmt.Errorf("memctl: write arbiter: %w", err)
		}
		c.writeArb = a
	}
	return c, nil
}

// StepInputs carries one cycle's worth of offers from every channel.
type StepInputs struct {
	Read  []stream.Offer[membus.ReadRequest]
	Write []stream.Offer[membus.WriteRequest]
}

// StepOutputs carries one cycle's worth of acks and responses for every
// channel. ReadAck/WriteAck tell the originating requester its request was
// accepted into the pipeline this cycle (so it may retire it); responses
// are delivered unconditionally on their due cycle, matching spec.md §5's
// "every component is non-blocking" model: the consumer is expected to be
// built to observe its own response the cycle it's due.
type StepOutputs struct {
	ReadAck   []bool
	ReadResp  []stream.Offer[membus.ReadResponse]
	WriteAck  []bool
	WriteResp []stream.Offer[membus.WriteResponse]
}

// Step advances the controller by one cycle. Per the open-question
// resolution in DESIGN.md, a read and a write to the same word in the same
// cycle observe read-before-write ordering: the read exiting the pipeline
// this cycle sees the backing store as it was *before* this cycle's write
// commit is applied.
func (c *Controller) Step(in StepInputs) StepOutputs {
	out := StepOutputs{
		ReadAck:   make([]bool, c.readChannels),
		ReadResp:  make([]stream.Offer[membus.ReadResponse], c.readChannels),
		WriteAck:  make([]bool, c.writeChannels),
		WriteResp: make([]stream.Offer[membus.WriteResponse], c.writeChannels),
	}

	// 1. Drain the heads of each pipeline (read-before-write).
	if c.readChannels > 0 {
		head := c.readLine[c.readDepth-1]
		if head.valid {
			data, errFlag := c.load(head.address)
			out.ReadResp[head.channel] = stream.Offer[membus.ReadResponse]{
				Valid: true,
				Data:  membus.ReadResponse{Data: data, Error: errFlag},
			}
		}
	}
	if c.writeChannels > 0 {
		tail := c.writeLine[c.writeDepth-1]
		if tail.valid {
			errFlag := c.store(tail.address, tail.data)
			out.WriteResp[tail.channel] = stream.Offer[membus.WriteResponse]{
				Valid: true,
				Data:  membus.WriteResponse{Error: errFlag},
			}
		}
	}

	// 2. Arbitrate and accept a new request into each pipeline.
	if c.readChannels > 0 {
		validFlags := make([]bool, c.readChannels)
		for i, o := range in.Read {
			validFlags[i] = o.Valid
		}
		var entry pendingRead
		if idx, ok := c.readArb.Pick(validFlags); ok {
			out.ReadAck[idx] = true
			entry = pendingRead{valid: true, channel: idx, address: in.Read[idx].Data.Address}
		}
		copy(c.readLine[1:], c.readLine[:c.readDepth-1])
		c.readLine[0] = entry
	}
	if c.writeChannels > 0 {
		validFlags := make([]bool, c.writeChannels)
		for i, o := range in.Write {
			validFlags[i] = o.Valid
		}
		var entry pendingWrite
		if idx, ok := c.writeArb.Pick(validFlags); ok {
			out.WriteAck[idx] = true
			entry = pendingWrite{valid: true, channel: idx, address: in.Write[idx].Data.Address, data: in.Write[idx].Data.Data}
		}
		copy(c.writeLine[1:], c.writeLine[:c.writeDepth-1])
		c.writeLine[0] = entry
	}

	return out
}

func (c *Controller) load(address uint32) (data uint32, errFlag bool) {
	if !membus.Aligned(address) {
		return 0, true
	}
	idx := address / membus.WordBytes
	if int(idx) >= len(c.words) {
		return 0, true
	}
	return c.words[idx], false
}

func (c *Controller) store(address uint32, data uint32) (errFlag bool) {
	if !membus.Aligned(address) {
		return true
	}
	idx := address / membus.WordBytes
	if int(idx) >= len(c.words) {
		return true
	}
	c.words[idx] = data
	if c.onCommit != nil {
		c.onCommit(address, data)
	}
	return false
}

// Reset clears all in-flight pipeline state (spec.md §5's "global clear":
// "in-flight requests are dropped (no responses are emitted for them)").
// The backing store itself is left untouched, matching spec.md §4.5's
// reset semantics ("memory is NOT cleared").
func (c *Controller) Reset() {
	for i := range c.readLine {
		c.readLine[i] = pendingRead{}
	}
	for i := range c.writeLine {
		c.writeLine[i] = pendingWrite{}
	}
	if c.readArb != nil {
		c.readArb.Reset()
	}
	if c.writeArb != nil {
		c.writeArb.Reset()
	}
}

// Snapshot returns a copy of the backing store as a flat little-endian byte
// slice, for host-side inspection.
func (c *Controller) Snapshot() []byte {
	out := make([]byte, len(c.words)*membus.WordBytes)
	for i, w := range c.words {
		out[i*4+0] = byte(w)
		out[i*4+1] = byte(w >> 8)
		out[i*4+2] = byte(w >> 16)
		out[i*4+3] = byte(w >> 24)
	}
	return out
}

// Load seeds the backing store with data starting at a word-aligned base
// address, as the host is expected to do via DMA before a system boot
// (spec.md §6: "program text and data (loaded by DMA)"). Bytes beyond a
// partial trailing word are zero-padded.
func (c *Controller) Load(base uint32, data []byte) error {
	if !membus.Aligned(base) {
		return fmt.Errorf("memctl: Load base %#x is not word-aligned", base)
	}
	startWord := base / membus.WordBytes
	for off := 0; off < len(data); off += membus.WordBytes {
		var w uint32
		for b := 0; b < membus.WordBytes && off+b < len(data); b++ {
			w |= uint32(data[off+b]) << (8 * uint(b))
		}
		idx := int(startWord) + off/membus.WordBytes
		if idx >= len(c.words) {
			return fmt.Errorf("memctl: Load overruns backing store at word %d", idx)
		}
		c.words[idx] = w
	}
	return nil
}
