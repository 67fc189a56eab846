// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package cdev

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warthog618/go-gpiocdev"
)

func TestCaptureGroupEdge(t *testing.T) {
	g := &CaptureGroup{
		freq:     168000000,
		channels: map[int]int{7: 0, 3: 1},
	}
	armed := 10 * time.Second
	// not armed
	g.edge(gpiocdev.LineEvent{Offset: 7, Timestamp: armed})
	_, ok := g.Capture(0)
	assert.False(t, ok)

	g.armed.Store(int64(armed))
	g.edge(gpiocdev.LineEvent{Offset: 7, Timestamp: armed + 10*time.Microsecond})
	g.edge(gpiocdev.LineEvent{Offset: 7, Timestamp: armed + 20*time.Microsecond})
	g.edge(gpiocdev.LineEvent{Offset: 3, Timestamp: armed - time.Microsecond})
	g.edge(gpiocdev.LineEvent{Offset: 4, Timestamp: armed + time.Microsecond})
	v, ok := g.Capture(0)
	assert.True(t, ok)
	assert.Equal(t, uint16(1680), v)
	_, ok = g.Capture(1)
	assert.False(t, ok)

	g.Drain()
	_, ok = g.Capture(0)
	assert.False(t, ok)
	// lines not requested read high
	assert.True(t, g.Level(0))
}

func TestArm(t *testing.T) {
	g := &CaptureGroup{freq: 1000000, channels: map[int]int{1: 0}}
	g.captured[0].Store(5)
	g.Arm()
	_, ok := g.Capture(0)
	assert.False(t, ok)
	assert.NotZero(t, g.armed.Load())
	assert.InDelta(t, int64(monotonic()), g.armed.Load(), float64(time.Second))
}
