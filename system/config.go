// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package system wires the Memory Controller, one or more RV32I harts, the
// optional DMA pipeline, and the optional video scan-out engine into one
// System, per spec.md §4.5's System Integration Fabric.
//
// Every component is constructed directly from Config by Build rather than
// discovered through package-init-time registration: spec.md's system has a
// fixed, enumerable set of parts (N harts, DMA?, video?), unlike the open
// host-driver registry Component/Build/BuildReport are adapted from
// (periph.go's Driver/Register/Init/State); there is no Register function.
package system

import (
	"errors"

	"github.com/jawline/pulse/arbiter"
	"github.com/jawline/pulse/dma"
	"github.com/jawline/pulse/uartio"
	"github.com/jawline/pulse/video"
)

// ErrNoHarts is returned by Build when Config.NumHarts is less than 1.
var ErrNoHarts = errors.New("system: NumHarts must be >= 1")

// ErrBadCapacity is returned by Build when Config.NumBytes can't back a
// word-addressed memory (see memctl.ErrBadCapacity).
var ErrBadCapacity = errors.New("system: NumBytes must be a positive multiple of the bus word size")

// IOConfig selects the optional UART/DMA front-end of spec.md §6's
// `include_io_controller`.
type IOConfig struct {
	Enabled bool

	Header   byte // defaults to dma.DefaultHeader ('Q') if zero
	ClockHz  int
	BaudRate int
	Parity   bool
	StopBits int
}

func (c IOConfig) header() byte {
	if c.Header == 0 {
		return dma.DefaultHeader
	}
	return c.Header
}

func (c IOConfig) uart() uartio.Config {
	return uartio.Config{ClockHz: c.ClockHz, BaudRate: c.BaudRate, Parity: c.Parity, StopBits: c.StopBits}
}

// VideoConfig selects the optional scan-out engine of spec.md §6's
// `include_video_out`.
type VideoConfig struct {
	Enabled bool

	InputWidth, InputHeight   int
	OutputWidth, OutputHeight int
	FramebufferAddr           uint32
	Timing                    video.Timing
}

// Config is the build-time configuration surface of spec.md §6, aggregating
// every component's configuration into the one surface Build consumes.
type Config struct {
	NumBytes int
	NumHarts int

	RequestDelay  int
	ReadLatency   int
	ReadPriority  arbiter.Policy
	WritePriority arbiter.Policy

	// VideoChannelPriority overrides the read bus's effective arbitration
	// policy when Video is enabled and ReadPriority asks for fixed
	// Priority: per DESIGN.md's resolution of spec.md §9's video-starvation
	// open question, Build downgrades the whole read bus to RoundRobin in
	// that case (recorded in BuildReport.Notes) unless this is set to Priority,
	// which opts back into the starvation risk.
	VideoChannelPriority arbiter.Policy

	IO    IOConfig
	Video VideoConfig
}

func (c Config) effectiveReadPriority() (policy arbiter.Policy, overridden bool) {
	if c.Video.Enabled && c.ReadPriority == arbiter.Priority && c.VideoChannelPriority != arbiter.Priority {
		return arbiter.RoundRobin, true
	}
	return c.ReadPriority, false
}
