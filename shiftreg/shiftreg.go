// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

// Package shiftreg drives the columns of a capacitive matrix through a chain
// of serial in, parallel out shift registers, such as the 74HC595.
//
// The register outputs are written over an SPI bus, most significant byte
// first, so the last register in the chain drives lines 0-7.
// Boards that wire the outputs in the opposite order should set Reverse
// in the capscan.ColumnMap rather than remap here.
package shiftreg

import (
	"sync"

	"tinygo.org/x/drivers"
)

// Drive selects one column at a time through the shift register chain.
type Drive struct {
	mu        sync.Mutex
	bus       drivers.SPI
	activeLow bool
	buf       []byte
	// first bus error
	err error
}

// New creates a Drive for a chain of registers providing width lines.
// If activeLow is set, the selected line is driven low and the others high.
func New(bus drivers.SPI, width int, activeLow bool) *Drive {
	d := &Drive{
		bus:       bus,
		activeLow: activeLow,
		buf:       make([]byte, (width+7)/8),
	}
	d.write(-1)
	return d
}

// Select drives the line to its active state and all others inactive.
func (d *Drive) Select(line int) {
	d.write(line)
}

// Deselect drives all lines inactive.
func (d *Drive) Deselect(line int) {
	d.write(-1)
}

// Err returns the first error returned by the bus.
func (d *Drive) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Drive) write(line int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fill := byte(0)
	if d.activeLow {
		fill = 0xff
	}
	for i := range d.buf {
		d.buf[i] = fill
	}
	if line >= 0 && line < len(d.buf)*8 {
		i := len(d.buf) - 1 - line/8
		d.buf[i] ^= 1 << uint(line%8)
	}
	if err := d.bus.Tx(d.buf, nil); err != nil && d.err == nil {
		d.err = err
	}
}
