// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

// Package sim simulates a capacitive key matrix so a Scanner can be
// exercised without hardware.
//
// Each pad is modelled by the tick at which its row rises after the column
// is selected.  Pads that rise after the window produce no capture and read
// high, and pads may also be held at a level so they never produce an edge.
package sim

import (
	"sync"

	"github.com/warthog618/capscan"
)

type pad struct {
	ticks uint16
	held  bool
	level bool
}

// Board is a simulated matrix of pads, addressed by physical drive line and
// row.  It implements capscan.Drive and provides the capture groups for
// its rows.
type Board struct {
	mu       sync.Mutex // Guards the following.
	lines    int
	rows     int
	window   uint16
	pads     []pad
	selected int
	armed    int
	selects  int
	arms     int
	drains   int
}

// NewBoard creates a Board with all pads rising at the unpressed tick.
// Captures after the window are not seen.
func NewBoard(lines, rows int, window, unpressed uint16) *Board {
	b := &Board{
		lines:    lines,
		rows:     rows,
		window:   window,
		pads:     make([]pad, lines*rows),
		selected: -1,
		armed:    -1,
	}
	for i := range b.pads {
		b.pads[i].ticks = unpressed
	}
	return b
}

func (b *Board) pad(line, row int) *pad {
	return &b.pads[line*b.rows+row]
}

// Set sets the tick at which the pad rises.
func (b *Board) Set(line, row int, ticks uint16) {
	b.mu.Lock()
	*b.pad(line, row) = pad{ticks: ticks}
	b.mu.Unlock()
}

// Hold holds the pad at a level so it never produces an edge.
func (b *Board) Hold(line, row int, level bool) {
	b.mu.Lock()
	*b.pad(line, row) = pad{held: true, level: level}
	b.mu.Unlock()
}

// Select selects the line.
func (b *Board) Select(line int) {
	b.mu.Lock()
	b.selected = line
	b.selects++
	b.mu.Unlock()
}

// Deselect deselects the line.
func (b *Board) Deselect(line int) {
	b.mu.Lock()
	if b.selected == line {
		b.selected = -1
	}
	b.mu.Unlock()
}

// Selected returns the selected line, or -1 if none.
func (b *Board) Selected() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selected
}

// Counts returns the number of selects, arms and drains performed.
func (b *Board) Counts() (selects, arms, drains int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selects, b.arms, b.drains
}

// Groups returns the capture groups covering the rows of the board.
func (b *Board) Groups() []capscan.CaptureGroup {
	n := (b.rows + capscan.GroupChannels - 1) / capscan.GroupChannels
	gg := make([]capscan.CaptureGroup, n)
	for i := range gg {
		gg[i] = &Group{b: b, base: i * capscan.GroupChannels}
	}
	return gg
}

// Group captures up to four rows of a Board.
type Group struct {
	b    *Board
	base int
}

// Arm latches the selected line as the line being measured.
func (g *Group) Arm() {
	g.b.mu.Lock()
	g.b.armed = g.b.selected
	g.b.arms++
	g.b.mu.Unlock()
}

// Drain is a no-op apart from being counted, as the simulation has no
// stale captures.
func (g *Group) Drain() {
	g.b.mu.Lock()
	g.b.drains++
	g.b.mu.Unlock()
}

func (g *Group) lookup(ch int) (pad, bool) {
	row := g.base + ch
	if g.b.armed < 0 || row >= g.b.rows {
		return pad{}, false
	}
	return *g.b.pad(g.b.armed, row), true
}

// Capture returns the rise tick of the pad if it rose within the window.
func (g *Group) Capture(ch int) (uint16, bool) {
	g.b.mu.Lock()
	defer g.b.mu.Unlock()
	p, ok := g.lookup(ch)
	if !ok || p.held || p.ticks > g.b.window {
		return 0, false
	}
	return p.ticks, true
}

// Level returns the level of the row.
func (g *Group) Level(ch int) bool {
	g.b.mu.Lock()
	defer g.b.mu.Unlock()
	p, ok := g.lookup(ch)
	if !ok || !p.held {
		return true
	}
	return p.level
}

// Clock is a capscan.CycleTimer stepped by the caller.
type Clock struct {
	mu sync.Mutex
	h  capscan.CycleHandler
}

// Start records the handler and delivers the initial Wrap.
func (c *Clock) Start(t capscan.Timing, h capscan.CycleHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.h != nil {
		return capscan.ErrAlreadyStarted
	}
	c.h = h
	h.Wrap()
	return nil
}

// Stop detaches the handler.
func (c *Clock) Stop() {
	c.mu.Lock()
	c.h = nil
	c.mu.Unlock()
}

// Step delivers the Window and Wrap events of n column periods.
func (c *Clock) Step(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.h == nil {
		return
	}
	for i := 0; i < n; i++ {
		c.h.Window()
		c.h.Wrap()
	}
}
