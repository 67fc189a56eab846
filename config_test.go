// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package capscan_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/capscan"
)

func benchConfig() capscan.Config {
	return capscan.Config{
		Rows:             4,
		Cols:             4,
		ScanRate:         50,
		CaptureFrequency: 1000000,
		Threshold:        100,
		Polarity:         capscan.ActiveLow,
	}
}

func TestTiming(t *testing.T) {
	cfg := benchConfig()
	tm, err := cfg.Timing()
	require.Nil(t, err)
	assert.Equal(t, uint16(5000), tm.Period)
	assert.Equal(t, uint16(2500), tm.Window)
	assert.Equal(t, uint32(1000000), tm.Frequency)
	assert.Equal(t, 5*time.Millisecond, tm.Duration(uint32(tm.Period)))
}

func TestTimingErrors(t *testing.T) {
	patterns := []struct {
		name string
		mod  func(c *capscan.Config)
		err  error
	}{
		{"zero rate", func(c *capscan.Config) { c.ScanRate = 0 }, capscan.ErrScanRate},
		{"zero cols", func(c *capscan.Config) { c.Cols = 0 }, capscan.ErrScanRate},
		{"too slow", func(c *capscan.Config) { c.ScanRate = 1 }, capscan.ErrPeriod},
		{"too fast", func(c *capscan.Config) { c.ScanRate = 500000 }, capscan.ErrPeriod},
	}
	for _, p := range patterns {
		t.Run(p.name, func(t *testing.T) {
			cfg := benchConfig()
			p.mod(&cfg)
			_, err := cfg.Timing()
			assert.ErrorIs(t, err, p.err)
		})
	}
}

func TestValidate(t *testing.T) {
	patterns := []struct {
		name string
		mod  func(c *capscan.Config)
		err  error
	}{
		{"bench", func(c *capscan.Config) {}, nil},
		{"no rows", func(c *capscan.Config) { c.Rows = 0 }, capscan.ErrGeometry},
		{"too many cols", func(c *capscan.Config) { c.Cols = 33 }, capscan.ErrGeometry},
		{"extra dead row", func(c *capscan.Config) {
			c.DeadKeys = make([]capscan.Row, 5)
		}, capscan.ErrGeometry},
		{"dead beyond cols", func(c *capscan.Config) {
			c.DeadKeys = []capscan.Row{0x10}
		}, capscan.ErrGeometry},
		{"cal beyond cols", func(c *capscan.Config) {
			c.CalKeys = []capscan.Row{0, 0x20}
		}, capscan.ErrGeometry},
		{"no polarity", func(c *capscan.Config) { c.Polarity = capscan.PolarityUnset }, capscan.ErrPolarity},
		{"bad polarity", func(c *capscan.Config) { c.Polarity = 3 }, capscan.ErrPolarity},
		{"threshold at limit", func(c *capscan.Config) { c.Threshold = 1250 }, nil},
		{"threshold too large", func(c *capscan.Config) { c.Threshold = 1251 }, capscan.ErrThreshold},
		{"period", func(c *capscan.Config) { c.ScanRate = 1 }, capscan.ErrPeriod},
		{"short mask", func(c *capscan.Config) {
			c.Columns = capscan.ColumnMap{Mask: 0x7}
		}, capscan.ErrWiring},
		{"mask", func(c *capscan.Config) {
			c.Columns = capscan.ColumnMap{Mask: 0xf0}
		}, nil},
		{"reversed beyond width", func(c *capscan.Config) {
			c.Columns = capscan.ColumnMap{Mask: 0xf0, Width: 6, Reverse: true}
		}, capscan.ErrWiring},
		{"32 cols", func(c *capscan.Config) {
			c.Cols = 32
			c.ScanRate = 10
			c.DeadKeys = []capscan.Row{0x80000000}
		}, nil},
	}
	for _, p := range patterns {
		t.Run(p.name, func(t *testing.T) {
			cfg := benchConfig()
			p.mod(&cfg)
			err := cfg.Validate()
			if p.err == nil {
				assert.Nil(t, err)
			} else {
				assert.ErrorIs(t, err, p.err)
			}
		})
	}
}

func TestColumnMap(t *testing.T) {
	patterns := []struct {
		name  string
		m     capscan.ColumnMap
		lines int
		cols  []int
	}{
		{"identity", capscan.ColumnMap{}, -1, []int{0, 1, 2, 3}},
		{"mask", capscan.ColumnMap{Mask: 0x1a}, 3, []int{1, 3, 4, -1}},
		{"reverse", capscan.ColumnMap{Width: 8, Reverse: true}, -1, []int{7, 6, 5, 4}},
		{"reverse mask", capscan.ColumnMap{Mask: 0x0f00, Width: 16, Reverse: true}, 4, []int{7, 6, 5, 4}},
		{"reverse narrow", capscan.ColumnMap{Width: 2, Reverse: true}, -1, []int{1, 0, -1, -1}},
	}
	for _, p := range patterns {
		t.Run(p.name, func(t *testing.T) {
			assert.Equal(t, p.lines, p.m.Lines())
			for col, xline := range p.cols {
				line, ok := p.m.Line(col)
				if xline < 0 {
					assert.False(t, ok, col)
				} else {
					assert.True(t, ok, col)
					assert.Equal(t, xline, line, col)
				}
			}
			_, ok := p.m.Line(-1)
			assert.False(t, ok)
		})
	}
}

func TestTicks(t *testing.T) {
	assert.Equal(t, uint16(0), capscan.Ticks(-time.Second, 1000000))
	assert.Equal(t, uint16(0), capscan.Ticks(0, 1000000))
	assert.Equal(t, uint16(100), capscan.Ticks(100*time.Microsecond, 1000000))
	assert.Equal(t, uint16(16800), capscan.Ticks(100*time.Microsecond, 168000000))
	// saturates below the no edge sentinel
	assert.Equal(t, capscan.NoEdgeHigh-1, capscan.Ticks(time.Second, 1000000))
	assert.Equal(t, time.Duration(0), capscan.Duration(10, 0))
	assert.Equal(t, time.Millisecond, capscan.Duration(168000, 168000000))
}

func TestPolarityString(t *testing.T) {
	assert.Equal(t, "active-low", capscan.ActiveLow.String())
	assert.Equal(t, "active-high", capscan.ActiveHigh.String())
	assert.Equal(t, "unset", capscan.PolarityUnset.String())
}
