// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package shiftreg

import (
	"sync"
	"time"
)

// OutputPin is a pin that can be driven high or low.
type OutputPin interface {
	High()
	Low()
}

// BitBang is a write only SPI bus, bit bashed on three output pins, for
// shift registers connected directly to GPIO lines.
// It implements drivers.SPI.
type BitBang struct {
	mu sync.Mutex
	// time between clock edges (i.e. half the cycle time)
	Tclk  time.Duration
	Sclk  OutputPin
	Mosi  OutputPin
	Latch OutputPin
}

// NewBitBang creates a BitBang with the clock and latch held low.
func NewBitBang(tclk time.Duration, sclk, mosi, latch OutputPin) *BitBang {
	sclk.Low()
	latch.Low()
	return &BitBang{Tclk: tclk, Sclk: sclk, Mosi: mosi, Latch: latch}
}

// Tx clocks out w, most significant bit first, then pulses the latch to
// transfer the shifted data to the outputs.
// Nothing is clocked in, so r is zeroed.
func (b *BitBang) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, v := range w {
		b.clockOut(v)
	}
	for i := range r {
		r[i] = 0
	}
	b.Latch.High()
	b.delay()
	b.Latch.Low()
	return nil
}

// Transfer clocks out a single byte without latching it.
func (b *BitBang) Transfer(v byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clockOut(v)
	return 0, nil
}

// clockOut clocks out a byte on Mosi.
// Assumes clock starts low and ends with the falling edge of the last clock.
func (b *BitBang) clockOut(v byte) {
	for i := 7; i >= 0; i-- {
		if v&(1<<uint(i)) != 0 {
			b.Mosi.High()
		} else {
			b.Mosi.Low()
		}
		b.delay()
		b.Sclk.High() // register shifts on the rising edge
		b.delay()
		b.Sclk.Low()
	}
}

func (b *BitBang) delay() {
	if b.Tclk > 0 {
		time.Sleep(b.Tclk)
	}
}
