// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package system

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/jawline/pulse/dma"
	"github.com/jawline/pulse/hart"
	"github.com/jawline/pulse/membus"
	"github.com/jawline/pulse/memctl"
	"github.com/jawline/pulse/stream"
	"github.com/jawline/pulse/uartio"
	"github.com/jawline/pulse/video"
)

// Component is one named, independently-resettable part of a built System
// (see the package doc for how this differs from periph.go's Driver).
type Component interface {
	Name() string
	Reset()
}

// BuildReport summarizes what Build constructed, mirroring periph.go's
// State{Loaded,Skipped,Failed} but over a fixed component set rather than a
// probed one: every component named in Config is either Loaded (enabled and
// wired) or Skipped (its Config said "none"), and Notes records any
// deviation Build silently applied (e.g. the video arbitration downgrade).
type BuildReport struct {
	Loaded  []string
	Skipped []string
	Notes   []string
}

// System is the wired-together simulator of spec.md §4.5: one Memory
// Controller, N harts, an optional DMA pipeline, and an optional video
// scan-out engine, each assigned fixed channel slots on the shared bus.
type System struct {
	cfg Config
	mc  *memctl.Controller

	harts []*hart.Hart

	io     bool
	framer *dma.Framer
	writer *dma.Writer
	reader *dma.Reader
	tx     *uartio.Transmitter
	rx     *uartio.Receiver

	hasVideo bool
	videoEng *video.Engine

	// Channel slot assignment, per spec.md §4.5:
	//   Read:  [video?, dma_read?, per hart: fetch, load]
	//   Write: [dma_write?, per hart: store]
	videoReadIdx int // -1 if absent
	dmaReadIdx   int // -1 if absent
	hartFetchIdx []int
	hartLoadIdx  []int
	dmaWriteIdx  int // -1 if absent
	hartStoreIdx []int

	numRead, numWrite int

	components []Component
}

// Build constructs a System from cfg.
func Build(cfg Config) (*System, BuildReport, error) {
	var report BuildReport
	if cfg.NumHarts < 1 {
		return nil, report, ErrNoHarts
	}
	if cfg.NumBytes <= 0 || cfg.NumBytes%membus.WordBytes != 0 {
		return nil, report, ErrBadCapacity
	}

	s := &System{cfg: cfg, videoReadIdx: -1, dmaReadIdx: -1, dmaWriteIdx: -1}

	if cfg.Video.Enabled {
		s.videoReadIdx = s.numRead
		s.numRead++
	} else {
		report.Skipped = append(report.Skipped, "video")
	}
	if cfg.IO.Enabled {
		s.dmaReadIdx = s.numRead
		s.numRead++
	} else {
		report.Skipped = append(report.Skipped, "dma")
	}
	s.hartFetchIdx = make([]int, cfg.NumHarts)
	s.hartLoadIdx = make([]int, cfg.NumHarts)
	for i := 0; i < cfg.NumHarts; i++ {
		s.hartFetchIdx[i] = s.numRead
		s.numRead++
		s.hartLoadIdx[i] = s.numRead
		s.numRead++
	}

	if cfg.IO.Enabled {
		s.dmaWriteIdx = s.numWrite
		s.numWrite++
	}
	s.hartStoreIdx = make([]int, cfg.NumHarts)
	for i := 0; i < cfg.NumHarts; i++ {
		s.hartStoreIdx[i] = s.numWrite
		s.numWrite++
	}

	readPolicy, overridden := cfg.effectiveReadPriority()
	if overridden {
		report.Notes = append(report.Notes, "video enabled with fixed read priority requested: "+
			"downgraded to round-robin to avoid starving the video channel (set "+
			"Config.VideoChannelPriority = arbiter.Priority to override)")
	}

	mc, err := memctl.New(memctl.Config{
		CapacityBytes: cfg.NumBytes,
		ReadChannels:  s.numRead,
		WriteChannels: s.numWrite,
		ReadPriority:  readPolicy,
		WritePriority: cfg.WritePriority,
		RequestDelay:  cfg.RequestDelay,
		ReadLatency:   cfg.ReadLatency,
	})
	if err != nil {
		return nil, report, fmt.Errorf("system: building memory controller: %w", err)
	}
	s.mc = mc

	if cfg.IO.Enabled {
		s.io = true
		s.framer = dma.NewFramer(cfg.IO.header())
		s.writer = dma.NewWriter(uint32(cfg.NumBytes))
		s.reader = dma.NewReader(cfg.IO.header(), true, uint32(cfg.NumBytes))
		s.tx = uartio.NewTransmitter(cfg.IO.uart())
		s.rx = uartio.NewReceiver(cfg.IO.uart())
		s.components = append(s.components,
			namedReset{"dma.framer", s.framer.Reset},
			namedReset{"dma.writer", s.writer.Reset},
			namedReset{"dma.reader", s.reader.Reset},
			namedReset{"uart.tx", s.tx.Reset},
			namedReset{"uart.rx", s.rx.Reset},
		)
		report.Loaded = append(report.Loaded, "dma", "uart")
	}

	if cfg.Video.Enabled {
		s.hasVideo = true
		s.videoEng = video.New(video.Config{
			InputWidth: cfg.Video.InputWidth, InputHeight: cfg.Video.InputHeight,
			OutputWidth: cfg.Video.OutputWidth, OutputHeight: cfg.Video.OutputHeight,
			FramebufferAddr: cfg.Video.FramebufferAddr,
			Timing:          cfg.Video.Timing,
		})
		s.components = append(s.components, namedReset{"video", s.videoEng.Reset})
		report.Loaded = append(report.Loaded, "video")
	}

	s.harts = make([]*hart.Hart, cfg.NumHarts)
	for i := 0; i < cfg.NumHarts; i++ {
		ecall := noopECALL
		if i == 0 && s.io {
			ecall = dma.NewOutboundECALL(s.reader)
		}
		h := hart.New(hart.Config{ECALL: ecall})
		s.harts[i] = h
		s.components = append(s.components, namedReset{fmt.Sprintf("hart%d", i), h.Reset})
		report.Loaded = append(report.Loaded, fmt.Sprintf("hart%d", i))
	}

	slices.SortFunc(s.components, func(a, b Component) int {
		if a.Name() < b.Name() {
			return -1
		}
		if a.Name() > b.Name() {
			return 1
		}
		return 0
	})
	slices.Sort(report.Loaded)
	slices.Sort(report.Skipped)

	return s, report, nil
}

// noopECALL is the default transaction for every hart but 0, per spec.md
// §4.5: "other harts receive a default transaction (no-op, advance pc+4,
// rd=0)".
func noopECALL(_ [32]uint32, pc uint32) hart.Transaction {
	return hart.Transaction{Finished: true, SetRd: true, NewRd: 0, NewPc: pc + 4}
}

// namedReset adapts a bare Reset closure into a Component.
type namedReset struct {
	name  string
	reset func()
}

func (n namedReset) Name() string { return n.name }
func (n namedReset) Reset()       { n.reset() }

// Components returns every component Build wired in, sorted by name.
func (s *System) Components() []Component { return s.components }

// Harts returns the system's harts, hart 0 first.
func (s *System) Harts() []*hart.Hart { return s.harts }

// Memory returns the shared Memory Controller, for host-side seeding and
// inspection.
func (s *System) Memory() *memctl.Controller { return s.mc }

// Video returns the video engine, or nil if the system was built without
// one.
func (s *System) Video() *video.Engine { return s.videoEng }

// Reset applies spec.md §4.5's global clear: hart registers (including
// pc=0) and every internal state machine reset; the backing store is left
// untouched.
func (s *System) Reset() {
	s.mc.Reset()
	for _, c := range s.components {
		c.Reset()
	}
}

// Step advances every component by one cycle. rxLine is this cycle's
// incoming UART wire level (ignored if IO is disabled); txLine is the
// outgoing UART wire level this cycle (always true/idle-high if IO is
// disabled). ECALL dispatch is wired only into hart 0, per spec.md §4.5.
//
// pixel and sig are this cycle's video scan-out output (spec.md §4.4): the
// 1-bit pixel value and the HSYNC/VSYNC/DataEnable timing signals. Both are
// the zero value if Video is disabled. System.Step is the only place the
// video engine is ever ticked, so callers must read pixel/sig here rather
// than calling Video().Step() themselves, which would double-advance the
// timing generator and fetch state machine.
func (s *System) Step(rxLine bool) (txLine bool, pixel bool, sig video.Signals) {
	readReqs := make([]stream.Offer[membus.ReadRequest], s.numRead)
	writeReqs := make([]stream.Offer[membus.WriteRequest], s.numWrite)

	if s.hasVideo {
		readReqs[s.videoReadIdx] = s.videoEng.Requests()
	}
	if s.io {
		readReqs[s.dmaReadIdx] = s.reader.Requests()
		writeReqs[s.dmaWriteIdx] = s.writer.Requests()
	}
	for i, h := range s.harts {
		fetch, dread, dwrite := h.Requests()
		readReqs[s.hartFetchIdx[i]] = fetch
		if dread.Valid {
			readReqs[s.hartLoadIdx[i]] = dread
		}
		if dwrite.Valid {
			writeReqs[s.hartStoreIdx[i]] = dwrite
		}
	}

	out := s.mc.Step(memctl.StepInputs{Read: readReqs, Write: writeReqs})

	if s.hasVideo {
		s.videoEng.Advance(out.ReadAck[s.videoReadIdx], out.ReadResp[s.videoReadIdx])
		pixel, sig = s.videoEng.Step()
	}

	txLine = true
	if s.io {
		s.reader.Advance(out.ReadAck[s.dmaReadIdx], out.ReadResp[s.dmaReadIdx])
		s.writer.Advance(out.WriteAck[s.dmaWriteIdx], out.WriteResp[s.dmaWriteIdx])

		s.rx.Tick(rxLine)
		rxOffer := stream.Offer[byte]{}
		if frame := s.rx.Output(); frame.Valid {
			rxOffer = stream.Offer[byte]{Valid: true, Data: frame.Data.Byte}
		}
		fOut, rxReady := s.framer.Step(rxOffer, s.writer.Ready())
		if rxOffer.Valid && rxReady {
			s.rx.Accept()
		}
		if fOut.Valid && s.writer.Ready() {
			s.writer.Offer(fOut.Data)
		}

		if rOut := s.reader.Step(s.tx.Idle()); rOut.Valid && s.tx.Idle() {
			s.tx.Write([]byte{rOut.Data.B})
		}
		txLine = s.tx.Tick()
	}

	for i, h := range s.harts {
		h.Advance(
			out.ReadAck[s.hartFetchIdx[i]], out.ReadResp[s.hartFetchIdx[i]],
			out.ReadAck[s.hartLoadIdx[i]], out.ReadResp[s.hartLoadIdx[i]],
			out.WriteAck[s.hartStoreIdx[i]], out.WriteResp[s.hartStoreIdx[i]],
		)
	}

	return txLine, pixel, sig
}
