// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package rpi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMem replaces the mapped registers with plain memory.
func fakeMem(t *testing.T, c Chipset) {
	mem = make([]uint32, memLength/4)
	chipset = c
	t.Cleanup(func() {
		mem = nil
		chipset = BCM2835
	})
}

func TestNewPin(t *testing.T) {
	_, err := NewPin(4)
	assert.ErrorIs(t, err, ErrNotOpen)
	fakeMem(t, BCM2835)
	_, err = NewPin(-1)
	assert.ErrorIs(t, err, ErrInvalidPin)
	_, err = NewPin(MaxGPIOPin)
	assert.ErrorIs(t, err, ErrInvalidPin)
	mem[13] = 1 << 17
	pin, err := NewPin(17)
	require.Nil(t, err)
	assert.Equal(t, 17, pin.Pin())
	assert.Equal(t, High, pin.Shadow())
}

func TestPinMode(t *testing.T) {
	fakeMem(t, BCM2835)
	mem[1] = 0xffffffff
	pin, err := NewPin(12)
	require.Nil(t, err)
	pin.Input()
	assert.Equal(t, Input, pin.Mode())
	assert.Equal(t, uint32(0xffffffff&^(7<<6)), mem[1])
	pin.Output()
	assert.Equal(t, Output, pin.Mode())
	assert.Equal(t, uint32(0xffffffff&^(6<<6)), mem[1])
}

func TestPinReadWrite(t *testing.T) {
	fakeMem(t, BCM2835)
	pin, err := NewPin(5)
	require.Nil(t, err)
	assert.Equal(t, Low, pin.Read())
	mem[13] = 1 << 5
	assert.Equal(t, High, pin.Read())
	assert.Equal(t, High, pin.Shadow())
	pin.Low()
	assert.Equal(t, uint32(1<<5), mem[10])
	assert.Equal(t, Low, pin.Shadow())
	pin.High()
	assert.Equal(t, uint32(1<<5), mem[7])
	assert.Equal(t, High, pin.Shadow())
}

func TestPinPull(t *testing.T) {
	fakeMem(t, BCM2711)
	pin, err := NewPin(18)
	require.Nil(t, err)
	pin.PullUp()
	// 2711 pull up is 1, in the 2 bits for pin 18 (bits 4-5 of reg 58)
	assert.Equal(t, uint32(1<<4), mem[58])
	pin.SetPull(PullDown)
	assert.Equal(t, uint32(2<<4), mem[58])
	pin.SetPull(PullNone)
	assert.Equal(t, uint32(0), mem[58])
}

func TestPinPull2835(t *testing.T) {
	fakeMem(t, BCM2835)
	pin, err := NewPin(3)
	require.Nil(t, err)
	pin.PullUp()
	// the pull and clock registers are cleared once the pull is latched
	assert.Equal(t, uint32(0), mem[pullReg2835])
	assert.Equal(t, uint32(0), mem[38])
}

func TestDrive(t *testing.T) {
	fakeMem(t, BCM2835)
	d, err := NewDrive(22, 23)
	require.Nil(t, err)
	// latched low before being released
	assert.Equal(t, uint32(1<<23), mem[10])
	assert.Equal(t, Input, d.pins[0].Mode())
	d.Select(1)
	assert.Equal(t, Output, d.pins[1].Mode())
	assert.Equal(t, Input, d.pins[0].Mode())
	d.Deselect(1)
	assert.Equal(t, Input, d.pins[1].Mode())
	d.Select(0)
	d.Close()
	assert.Equal(t, Input, d.pins[0].Mode())

	_, err = NewDrive(40)
	assert.ErrorIs(t, err, ErrInvalidPin)
}

func TestCaptureGroup(t *testing.T) {
	fakeMem(t, BCM2835)
	g := &CaptureGroup{freq: 1000000}
	_, ok := g.Capture(0)
	assert.False(t, ok)

	// edges before arming are ignored
	g.edgeHandler(0)(nil, time.Now())
	_, ok = g.Capture(0)
	assert.False(t, ok)

	g.Arm()
	armed := time.Unix(0, g.armed.Load())
	g.edgeHandler(1)(nil, armed.Add(-time.Microsecond))
	g.edgeHandler(2)(nil, armed.Add(150*time.Microsecond))
	// only the first edge counts
	g.edgeHandler(2)(nil, armed.Add(300*time.Microsecond))
	g.edgeHandler(3)(nil, armed)
	_, ok = g.Capture(1)
	assert.False(t, ok)
	v, ok := g.Capture(2)
	assert.True(t, ok)
	assert.Equal(t, uint16(150), v)
	v, ok = g.Capture(3)
	assert.True(t, ok)
	assert.Equal(t, uint16(0), v)

	g.Drain()
	_, ok = g.Capture(2)
	assert.False(t, ok)

	// rows beyond the group read high
	assert.True(t, g.Level(0))
	pin, err := NewPin(6)
	require.Nil(t, err)
	g.pins = []*Pin{pin}
	assert.False(t, g.Level(0))
	mem[13] = 1 << 6
	assert.True(t, g.Level(0))
}
