// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// pulse-run loads a raw memory image into a simulated board and steps it,
// printing bytes the guest sends out over its UART as they arrive.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/jawline/pulse/arbiter"
	"github.com/jawline/pulse/system"
	"github.com/jawline/pulse/uartio"
	"github.com/jawline/pulse/video"
)

func mainImpl() error {
	image := flag.String("image", "", "raw binary memory image, loaded at address 0")
	memBytes := flag.Int("bytes", 1<<20, "backing memory size in bytes")
	harts := flag.Int("harts", 1, "number of RV32I harts")
	cycles := flag.Int("cycles", 1_000_000, "maximum clock cycles to run")
	io := flag.Bool("io", true, "enable the UART/DMA front-end")
	clockHz := flag.Int("clock-hz", 115200*16, "simulated clock frequency, in Hz")
	baud := flag.Int("baud", 115200, "UART baud rate")
	priority := flag.Bool("priority-read", false, "use fixed-priority (rather than round-robin) read arbitration")
	videoEnable := flag.Bool("video", false, "enable the video scan-out engine")
	videoInW := flag.Int("video-in-w", 32, "framebuffer input width, in pixels")
	videoInH := flag.Int("video-in-h", 32, "framebuffer input height, in pixels")
	videoOutW := flag.Int("video-out-w", 32, "scan-out output width, in pixels")
	videoOutH := flag.Int("video-out-h", 32, "scan-out output height, in pixels")
	videoAddr := flag.Uint("video-addr", 0, "framebuffer base address")
	videoFrames := flag.Int("video-frames", 0, "number of active frames to print to stderr before exiting (0: never)")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	readPriority := arbiter.RoundRobin
	if *priority {
		readPriority = arbiter.Priority
	}

	cfg := system.Config{
		NumBytes:     *memBytes,
		NumHarts:     *harts,
		ReadPriority: readPriority,
		IO: system.IOConfig{
			Enabled:  *io,
			ClockHz:  *clockHz,
			BaudRate: *baud,
		},
		Video: system.VideoConfig{
			Enabled:         *videoEnable,
			InputWidth:      *videoInW,
			InputHeight:     *videoInH,
			OutputWidth:     *videoOutW,
			OutputHeight:    *videoOutH,
			FramebufferAddr: uint32(*videoAddr),
			Timing: video.Timing{
				HActive: *videoOutW, HFrontPorch: 4, HSync: 4, HBackPorch: 4,
				VActive: *videoOutH, VFrontPorch: 4, VSync: 4, VBackPorch: 4,
			},
		},
	}

	log.Printf("building system: %d byte(s), %d hart(s), io=%v\n", cfg.NumBytes, cfg.NumHarts, cfg.IO.Enabled)
	sys, report, err := system.Build(cfg)
	if err != nil {
		return err
	}
	log.Printf("loaded: %v, skipped: %v\n", report.Loaded, report.Skipped)
	for _, n := range report.Notes {
		log.Printf("note: %s\n", n)
	}

	if *image != "" {
		data, err := ioutil.ReadFile(*image)
		if err != nil {
			return err
		}
		log.Printf("loading %d byte(s) from %s\n", len(data), *image)
		if err := sys.Memory().Load(0, data); err != nil {
			return err
		}
	}

	sys.Reset()

	var rx *uartio.Receiver
	if cfg.IO.Enabled {
		rx = uartio.NewReceiver(uartio.Config{ClockHz: cfg.IO.ClockHz, BaudRate: cfg.IO.BaudRate})
	}

	var frameBuf [][]bool
	if cfg.Video.Enabled && *videoFrames > 0 {
		frameBuf = make([][]bool, cfg.Video.OutputHeight)
		for y := range frameBuf {
			frameBuf[y] = make([]bool, cfg.Video.OutputWidth)
		}
	}
	framesPrinted := 0

	for i := 0; i < *cycles; i++ {
		for h, ht := range sys.Harts() {
			if ht.ErrorLatched() {
				return fmt.Errorf("hart %d latched an error at pc=%#x after %d cycle(s)", h, ht.PC(), i)
			}
		}

		tx, pixel, sig := sys.Step(true)

		if rx != nil {
			rx.Tick(tx)
			if frame := rx.Output(); frame.Valid {
				os.Stdout.Write([]byte{frame.Data.Byte})
				rx.Accept()
			}
		}

		if frameBuf != nil && sig.DataEnable && sig.Y < len(frameBuf) && sig.X < len(frameBuf[0]) {
			frameBuf[sig.Y][sig.X] = pixel
			if sig.Y == len(frameBuf)-1 && sig.X == len(frameBuf[0])-1 {
				printFrame(frameBuf)
				framesPrinted++
				if framesPrinted >= *videoFrames {
					return nil
				}
			}
		}
	}
	return nil
}

// printFrame renders a scanned-out frame as ASCII art to stderr, one
// character per pixel.
func printFrame(frame [][]bool) {
	for _, row := range frame {
		line := make([]byte, len(row))
		for x, lit := range row {
			if lit {
				line[x] = '#'
			} else {
				line[x] = '.'
			}
		}
		fmt.Fprintln(os.Stderr, string(line))
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "pulse-run: %s.\n", err)
		os.Exit(1)
	}
}
