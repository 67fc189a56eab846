// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/capscan"
	"github.com/warthog618/config"
	"github.com/warthog618/config/dict"
)

func newConfig(m map[string]interface{}) *config.Config {
	return config.New(dict.New(dict.WithMap(m)))
}

func TestParseRows(t *testing.T) {
	patterns := []struct {
		in  string
		out []capscan.Row
		err bool
	}{
		{"", nil, false},
		{"{0x20004, 0x20000, 0, 0x10008}", []capscan.Row{0x20004, 0x20000, 0, 0x10008}, false},
		{"3,,5", []capscan.Row{3, 5}, false},
		{"0x1ffffffff", nil, true},
		{"bogus", nil, true},
	}
	for _, p := range patterns {
		t.Run(p.in, func(t *testing.T) {
			rr, err := parseRows(p.in)
			if p.err {
				assert.NotNil(t, err)
			} else {
				assert.Nil(t, err)
				assert.Equal(t, p.out, rr)
			}
		})
	}
}

func TestParseInts(t *testing.T) {
	ii, err := parseInts("4, 17,27")
	assert.Nil(t, err)
	assert.Equal(t, []int{4, 17, 27}, ii)
	_, err = parseInts("4,x")
	assert.NotNil(t, err)
}

func TestParseKeys(t *testing.T) {
	kk, err := parseKeys("0:1, 3:19")
	assert.Nil(t, err)
	assert.Equal(t, []key{{0, 1}, {3, 19}}, kk)
	_, err = parseKeys("0-1")
	assert.NotNil(t, err)
	_, err = parseKeys("-1:1")
	assert.NotNil(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0x20004, 0x0", formatRows([]capscan.Row{0x20004, 0}))
	assert.Equal(t, " 0 00000005 X.X.\n 1 00000000 ....\n",
		formatMatrix([]capscan.Row{5, 0}, 4))
}

func TestMatrixConfig(t *testing.T) {
	c, err := matrixConfig(newConfig(map[string]interface{}{
		"board":             "ibm327x-75key",
		"scan.rate":         "1000",
		"threshold":         "3000",
		"polarity":          "high",
		"dead.keys":         "0x1, 0x2",
		"cal.keys":          "0x1",
		"column.mask":       "0xfffff0",
		"column.width":      "24",
		"column.reverse":    "true",
		"capture.frequency": "84000000",
	}))
	require.Nil(t, err)
	assert.Equal(t, 4, c.Rows)
	assert.Equal(t, 20, c.Cols)
	assert.Equal(t, uint32(1000), c.ScanRate)
	assert.Equal(t, uint32(84000000), c.CaptureFrequency)
	assert.Equal(t, uint16(3000), c.Threshold)
	assert.Equal(t, capscan.ActiveHigh, c.Polarity)
	assert.Equal(t, []capscan.Row{1, 2}, c.DeadKeys)
	assert.Equal(t, []capscan.Row{1}, c.CalKeys)
	assert.Equal(t, capscan.ColumnMap{Mask: 0xfffff0, Width: 24, Reverse: true}, c.Columns)

	c, err = matrixConfig(newConfig(map[string]interface{}{"board": "bench"}))
	require.Nil(t, err)
	assert.Equal(t, uint16(100), c.Threshold)

	patterns := []map[string]interface{}{
		{"board": "model-m"},
		{"board": "bench", "polarity": "sideways"},
		{"board": "bench", "dead.keys": "x"},
		{"board": "bench", "cal.keys": "x"},
		{"board": "bench", "column.mask": "x"},
		{"board": "bench", "threshold": "65636"},
		{"board": "bench", "threshold": "-1"},
		{"board": "bench", "threshold": "x"},
		{"board": "bench", "rows": "2147483648"},
		{"board": "bench", "cols": "-4"},
		{"board": "bench", "scan.rate": "4294967346"},
		{"board": "bench", "capture.frequency": "4294967296"},
		{"board": "bench", "column.width": "65"},
	}
	for _, p := range patterns {
		_, err = matrixConfig(newConfig(p))
		assert.NotNil(t, err, p)
	}
}

func TestMatrixConfigLimits(t *testing.T) {
	c, err := matrixConfig(newConfig(map[string]interface{}{
		"board":             "bench",
		"threshold":         "65535",
		"scan.rate":         "4294967295",
		"capture.frequency": 4294967295.0,
		"column.width":      64,
	}))
	require.Nil(t, err)
	assert.Equal(t, uint16(65535), c.Threshold)
	assert.Equal(t, uint32(4294967295), c.ScanRate)
	assert.Equal(t, uint32(4294967295), c.CaptureFrequency)
	assert.Equal(t, 64, c.Columns.Width)

	// no silent wrapping
	_, err = matrixConfig(newConfig(map[string]interface{}{
		"board":     "bench",
		"threshold": "65636",
	}))
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "threshold 65636 out of range")
}

func TestPins(t *testing.T) {
	bench := capscan.Config{Rows: 4, Cols: 4}
	masked := capscan.Config{Rows: 4, Cols: 4, Columns: capscan.ColumnMap{Mask: 0x3c}}
	patterns := []struct {
		name string
		c    capscan.Config
		cfg  map[string]interface{}
		cols []int
		rows []int
		ok   bool
	}{
		{"ok", bench, map[string]interface{}{
			"column.pins": "5,6,7,8",
			"row.pins":    "1,2,3,4",
		}, []int{5, 6, 7, 8}, []int{1, 2, 3, 4}, true},
		{"no column pins", bench, map[string]interface{}{
			"row.pins": "1,2,3,4",
		}, nil, nil, false},
		{"too few column pins", bench, map[string]interface{}{
			"column.pins": "5,6,7",
			"row.pins":    "1,2,3,4",
		}, nil, nil, false},
		{"masked", masked, map[string]interface{}{
			"column.pins": "5,6,7,8,9,10",
			"row.pins":    "1,2,3,4",
		}, []int{5, 6, 7, 8, 9, 10}, []int{1, 2, 3, 4}, true},
		{"masked short", masked, map[string]interface{}{
			"column.pins": "5,6,7,8",
			"row.pins":    "1,2,3,4",
		}, nil, nil, false},
		{"shift register", bench, map[string]interface{}{
			"shiftreg.pins": "20,21,22",
			"row.pins":      "1,2,3,4",
		}, nil, []int{1, 2, 3, 4}, true},
		{"no row pins", bench, map[string]interface{}{
			"column.pins": "5,6,7,8",
		}, nil, nil, false},
		{"too few row pins", bench, map[string]interface{}{
			"column.pins": "5,6,7,8",
			"row.pins":    "1,2,3",
		}, nil, nil, false},
		{"bad column pins", bench, map[string]interface{}{
			"column.pins": "5,x",
			"row.pins":    "1,2,3,4",
		}, nil, nil, false},
	}
	for _, p := range patterns {
		t.Run(p.name, func(t *testing.T) {
			cols, rows, err := pins(newConfig(p.cfg), p.c)
			if p.ok {
				require.Nil(t, err)
				assert.Equal(t, p.cols, cols)
				assert.Equal(t, p.rows, rows)
			} else {
				assert.NotNil(t, err)
			}
		})
	}
}

func TestHardwareRigPins(t *testing.T) {
	c := capscan.Config{Rows: 4, Cols: 4}
	// wiring errors are caught before any hardware is opened
	for _, hw := range []string{"rpi", "cdev"} {
		_, err := newRig(newConfig(map[string]interface{}{
			"hw":       hw,
			"chip":     "gpiochip0",
			"row.pins": "1,2,3,4",
		}), c)
		require.NotNil(t, err, hw)
		assert.Contains(t, err.Error(), "0 column pins for 4 drive lines", hw)
	}
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2, 3, 4}, {5, 6}}, groups([]int{1, 2, 3, 4, 5, 6}))
	assert.Equal(t, [][]int{{1, 2, 3, 4}}, groups([]int{1, 2, 3, 4}))
	assert.Nil(t, groups(nil))

	c := capscan.Config{Cols: 4, Threshold: 100, Polarity: capscan.ActiveLow}
	assert.Equal(t, 4, driveLines(c))
	c.Columns = capscan.ColumnMap{Mask: 0x3c}
	assert.Equal(t, 6, driveLines(c))
	c.Columns = capscan.ColumnMap{Mask: 0x3c, Width: 8, Reverse: true}
	assert.Equal(t, 8, driveLines(c))

	p, r := simLevels(c)
	assert.Equal(t, uint16(50), p)
	assert.Equal(t, uint16(200), r)
	c.Polarity = capscan.ActiveHigh
	p, r = simLevels(c)
	assert.Equal(t, uint16(200), p)
	assert.Equal(t, uint16(50), r)
}

func TestSimRig(t *testing.T) {
	cfg := newConfig(map[string]interface{}{
		"board": "bench",
		"hw":    "sim",
		"press": "1:2",
	})
	c, err := matrixConfig(cfg)
	require.Nil(t, err)
	c.DeadKeys = []capscan.Row{0x8, 0x1}
	r, err := newRig(cfg, c)
	require.Nil(t, err)
	defer r.close()
	s, err := capscan.New(c, r.hw)
	require.Nil(t, err)
	require.Nil(t, s.Start())
	defer s.Close()
	matrix := make([]capscan.Row, 4)
	assert.True(t, s.Scan(matrix))
	assert.Equal(t, []capscan.Row{0, 0x4, 0, 0}, matrix)
	acc := s.Monitor().Accumulator()
	assert.Equal(t, uint32(1), acc.Pressed)
	assert.Equal(t, uint16(50), acc.PressedMax)
	assert.Equal(t, uint16(200), acc.UnpressedMin)

	_, err = newRig(newConfig(map[string]interface{}{"hw": "abacus"}), c)
	assert.NotNil(t, err)
	_, err = newRig(newConfig(map[string]interface{}{"hw": "sim", "press": "4:0"}), c)
	assert.NotNil(t, err)
}
