// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux

// Package cdev drives a capacitive matrix through the Linux GPIO character
// device.
//
// Columns are requested as open drain outputs.  Rows are requested as inputs
// with rising edge detection, and the kernel timestamps each edge against
// CLOCK_MONOTONIC, so captures are not subject to user space latency.
// The group is armed by sampling the same clock.
package cdev

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/warthog618/capscan"
	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

// Drive drives column lines on a GPIO chip.
// A selected column is driven low, a deselected column is released.
type Drive struct {
	lines []*gpiocdev.Line
}

// NewDrive requests the column lines, indexed by line, from the chip.
func NewDrive(chip string, offsets ...int) (*Drive, error) {
	d := &Drive{}
	for _, o := range offsets {
		l, err := gpiocdev.RequestLine(chip, o,
			gpiocdev.AsOutput(1),
			gpiocdev.AsOpenDrain,
			gpiocdev.WithConsumer("capscan"))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("column line %d: %w", o, err)
		}
		d.lines = append(d.lines, l)
	}
	return d, nil
}

// Select drives the line low.
func (d *Drive) Select(line int) {
	d.lines[line].SetValue(0)
}

// Deselect releases the line.
func (d *Drive) Deselect(line int) {
	d.lines[line].SetValue(1)
}

// Close releases the lines.
func (d *Drive) Close() {
	for _, l := range d.lines {
		l.Close()
	}
	d.lines = nil
}

// CaptureGroup captures rising edges on up to four row lines.
type CaptureGroup struct {
	freq  uint32
	lines []*gpiocdev.Line
	// channel indexed by line offset
	channels map[int]int
	// CLOCK_MONOTONIC at arming, 0 until first armed.
	armed atomic.Int64
	// capture tick + 1, 0 if none.
	captured [capscan.GroupChannels]atomic.Uint32
}

// NewCaptureGroup requests the row lines from the chip, converting edge
// timestamps to ticks of a clock at freq Hz.
func NewCaptureGroup(chip string, freq uint32, offsets ...int) (*CaptureGroup, error) {
	if len(offsets) > capscan.GroupChannels {
		return nil, fmt.Errorf("%w: %d rows in group", capscan.ErrGeometry, len(offsets))
	}
	g := &CaptureGroup{
		freq:     freq,
		channels: make(map[int]int, len(offsets)),
	}
	for ch, o := range offsets {
		g.channels[o] = ch
	}
	for _, o := range offsets {
		l, err := gpiocdev.RequestLine(chip, o,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithRisingEdge,
			gpiocdev.WithConsumer("capscan"),
			gpiocdev.WithEventHandler(g.edge))
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("row line %d: %w", o, err)
		}
		g.lines = append(g.lines, l)
	}
	return g, nil
}

func (g *CaptureGroup) edge(evt gpiocdev.LineEvent) {
	ch, ok := g.channels[evt.Offset]
	if !ok {
		return
	}
	a := time.Duration(g.armed.Load())
	if a == 0 || evt.Timestamp < a {
		return
	}
	ticks := capscan.Ticks(evt.Timestamp-a, g.freq)
	// only the first edge after arming counts
	g.captured[ch].CompareAndSwap(0, uint32(ticks)+1)
}

func monotonic() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return time.Duration(ts.Nano())
}

// Arm clears the captures and restarts the measurement.
func (g *CaptureGroup) Arm() {
	g.Drain()
	g.armed.Store(int64(monotonic()))
}

// Capture returns the ticks between arming and the first rising edge.
func (g *CaptureGroup) Capture(ch int) (uint16, bool) {
	v := g.captured[ch].Load()
	if v == 0 {
		return 0, false
	}
	return uint16(v - 1), true
}

// Level returns true if the row line is high.
// A line that cannot be read is reported high.
func (g *CaptureGroup) Level(ch int) bool {
	if ch >= len(g.lines) {
		return true
	}
	v, err := g.lines[ch].Value()
	return err != nil || v != 0
}

// Drain discards any captures.
func (g *CaptureGroup) Drain() {
	for i := range g.captured {
		g.captured[i].Store(0)
	}
}

// Close releases the lines.
func (g *CaptureGroup) Close() {
	for _, l := range g.lines {
		l.Close()
	}
	g.lines = nil
}

// OutputPin is a single output line, such as the clock, data or latch of a
// shift register chain.
type OutputPin struct {
	l *gpiocdev.Line
}

// NewOutputPin requests the line from the chip as an output, initially low.
func NewOutputPin(chip string, offset int) (*OutputPin, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("capscan"))
	if err != nil {
		return nil, fmt.Errorf("output line %d: %w", offset, err)
	}
	return &OutputPin{l: l}, nil
}

// High drives the line high.
func (p *OutputPin) High() {
	p.l.SetValue(1)
}

// Low drives the line low.
func (p *OutputPin) Low() {
	p.l.SetValue(0)
}

// Close releases the line.
func (p *OutputPin) Close() {
	p.l.Close()
}
