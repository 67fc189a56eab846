// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package rpi

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/warthog618/capscan"
)

// Drive drives the column pins as open drain outputs.
// A selected column is driven low, a deselected column is released and
// pulled high.
type Drive struct {
	pins []*Pin
}

// NewDrive creates a Drive for the column pins, indexed by line.
func NewDrive(lines ...int) (*Drive, error) {
	d := &Drive{pins: make([]*Pin, len(lines))}
	for i, l := range lines {
		pin, err := NewPin(l)
		if err != nil {
			return nil, fmt.Errorf("column pin %d: %w", l, err)
		}
		// latch low so switching to output drives low
		pin.Low()
		pin.Input()
		pin.PullUp()
		d.pins[i] = pin
	}
	return d, nil
}

// Select drives the line low.
func (d *Drive) Select(line int) {
	d.pins[line].Output()
}

// Deselect releases the line.
func (d *Drive) Deselect(line int) {
	d.pins[line].Input()
}

// Close releases all the lines.
func (d *Drive) Close() {
	for _, p := range d.pins {
		p.Input()
	}
}

// CaptureGroup captures the rising edges on up to four row pins, measured
// from the time the group was armed.
type CaptureGroup struct {
	freq    uint32
	watcher *Watcher
	pins    []*Pin
	// armed time in ns since the Unix epoch, 0 until first armed.
	armed atomic.Int64
	// capture tick + 1, 0 if none.
	captured [capscan.GroupChannels]atomic.Uint32
}

// NewCaptureGroup creates a CaptureGroup for the row pins, converting times
// to ticks of a clock at freq Hz.
func NewCaptureGroup(w *Watcher, freq uint32, rows ...int) (*CaptureGroup, error) {
	if len(rows) > capscan.GroupChannels {
		return nil, fmt.Errorf("%w: %d rows in group", capscan.ErrGeometry, len(rows))
	}
	g := &CaptureGroup{freq: freq, watcher: w}
	for ch, r := range rows {
		pin, err := NewPin(r)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("row pin %d: %w", r, err)
		}
		pin.Input()
		pin.PullUp()
		if err = w.RegisterPin(pin, EdgeRising, g.edgeHandler(ch)); err != nil {
			g.Close()
			return nil, fmt.Errorf("row pin %d: %w", r, err)
		}
		g.pins = append(g.pins, pin)
	}
	return g, nil
}

func (g *CaptureGroup) edgeHandler(ch int) EdgeHandler {
	return func(_ *Pin, t time.Time) {
		a := g.armed.Load()
		ns := t.UnixNano()
		if a == 0 || ns < a {
			return
		}
		ticks := capscan.Ticks(time.Duration(ns-a), g.freq)
		// only the first edge after arming counts
		g.captured[ch].CompareAndSwap(0, uint32(ticks)+1)
	}
}

// Arm clears the captures and restarts the measurement.
func (g *CaptureGroup) Arm() {
	g.Drain()
	g.armed.Store(time.Now().UnixNano())
}

// Capture returns the ticks between arming and the first rising edge.
func (g *CaptureGroup) Capture(ch int) (uint16, bool) {
	v := g.captured[ch].Load()
	if v == 0 {
		return 0, false
	}
	return uint16(v - 1), true
}

// Level returns true if the row pin is high.
func (g *CaptureGroup) Level(ch int) bool {
	if ch >= len(g.pins) {
		return true
	}
	return g.pins[ch].Read() == High
}

// Drain discards any captures.
func (g *CaptureGroup) Drain() {
	for i := range g.captured {
		g.captured[i].Store(0)
	}
}

// Close removes the watches on the row pins.
func (g *CaptureGroup) Close() {
	for _, p := range g.pins {
		g.watcher.UnregisterPin(p)
	}
	g.pins = nil
}
