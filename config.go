// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

//
// Package capscan scans a capacitive key matrix by timing the discharge of
// each pad after its column is excited.
//
// A hardware cycle timer paces the columns. Half way through each column
// period the column is released and the rising edge captured on each row is
// stored as a raw tick count. After the last column the sweep is handed to
// Scan, which compares each raw value against a fixed threshold and
// publishes the resulting matrix.
//
// Example of use:
//
// 	s, err := capscan.New(cfg, capscan.Hardware{
// 		Drive:  drive,
// 		Groups: groups,
// 		Timer:  capscan.NewSoftTimer(),
// 	}, capscan.WithDiagnostics(os.Stderr))
// 	if err != nil {
// 		return err
// 	}
// 	if err = s.Start(); err != nil {
// 		return err
// 	}
// 	defer s.Close()
//
// 	matrix := make([]capscan.Row, cfg.Rows)
// 	for {
// 		if s.Scan(matrix) {
// 			report(matrix)
// 		}
// 	}
//
package capscan

import (
	"errors"
	"fmt"
	"math/bits"
	"time"
)

// Row is one row of the key matrix, with one bit per column.
// A set bit indicates the key is pressed.
type Row uint32

// Polarity defines which side of the threshold a pressed key reads.
type Polarity int

const (
	// PolarityUnset is the zero Polarity and is rejected by Validate.
	PolarityUnset Polarity = iota
	// ActiveLow keys read below the threshold when pressed.
	ActiveLow
	// ActiveHigh keys read above the threshold when pressed.
	ActiveHigh
)

func (p Polarity) String() string {
	switch p {
	case ActiveLow:
		return "active-low"
	case ActiveHigh:
		return "active-high"
	default:
		return "unset"
	}
}

const (
	// MaxCols is the number of columns that fit in a Row.
	MaxCols = 32

	// NoEdgeLow is the raw value stored when no edge was captured and the
	// line was already low at the end of the window.
	NoEdgeLow uint16 = 0
	// NoEdgeHigh is the raw value stored when no edge was captured and the
	// line was still high at the end of the window.
	NoEdgeHigh uint16 = 65535

	// maxPeriod is the range of the 16 bit capture counter.
	maxPeriod = 65535
)

// Config defines the geometry, timing and key classification of a matrix.
type Config struct {
	Rows int
	Cols int
	// ScanRate is the target frequency, in Hz, at which the whole matrix
	// is scanned.
	ScanRate uint32
	// CaptureFrequency is the frequency, in Hz, of the pace and capture
	// timers.
	CaptureFrequency uint32
	// Threshold, in capture ticks, separating pressed from unpressed.
	Threshold uint16
	Polarity  Polarity
	// DeadKeys are positions, per row, that are not real keys and are never
	// reported pressed.
	DeadKeys []Row
	// CalKeys are dead positions, per row, that always read unpressed.
	// The remaining dead positions always read pressed.
	CalKeys []Row
	// Columns maps logical columns to physical drive lines.
	Columns ColumnMap
}

// Timing is the per column timing derived from a Config, in capture ticks.
type Timing struct {
	// Period is the number of ticks spent on each column.
	Period uint16
	// Window is the tick at which the column is released and the captures
	// are read.
	Window uint16
	// Frequency of the capture clock, in Hz.
	Frequency uint32
}

// Duration converts a count of capture ticks to a time.Duration.
func (t Timing) Duration(ticks uint32) time.Duration {
	return Duration(ticks, t.Frequency)
}

// Duration converts a count of ticks of a clock at freq Hz to a time.Duration.
func Duration(ticks, freq uint32) time.Duration {
	if freq == 0 {
		return 0
	}
	return time.Duration(uint64(ticks) * uint64(time.Second) / uint64(freq))
}

// Ticks converts a time.Duration to ticks of a clock at freq Hz, saturating
// at NoEdgeHigh-1 so a measured value is never mistaken for the sentinel.
func Ticks(d time.Duration, freq uint32) uint16 {
	if d <= 0 {
		return 0
	}
	t := uint64(d) * uint64(freq) / uint64(time.Second)
	if t >= uint64(NoEdgeHigh) {
		return NoEdgeHigh - 1
	}
	return uint16(t)
}

// Timing returns the column period and window for the configuration.
func (c Config) Timing() (Timing, error) {
	if c.ScanRate == 0 || c.Cols <= 0 {
		return Timing{}, fmt.Errorf("%w: scan rate %d, cols %d", ErrScanRate, c.ScanRate, c.Cols)
	}
	p := uint64(c.CaptureFrequency) / uint64(c.ScanRate) / uint64(c.Cols)
	if p >= maxPeriod {
		return Timing{}, fmt.Errorf("%w: period %d ticks, increase the scan rate", ErrPeriod, p)
	}
	if p < 2 {
		return Timing{}, fmt.Errorf("%w: period %d ticks, reduce the scan rate", ErrPeriod, p)
	}
	return Timing{Period: uint16(p), Window: uint16(p / 2), Frequency: c.CaptureFrequency}, nil
}

// Validate checks the configuration is consistent and that the threshold
// can be measured within the window.
func (c Config) Validate() error {
	if c.Rows <= 0 || c.Cols <= 0 || c.Cols > MaxCols {
		return fmt.Errorf("%w: %d rows by %d cols", ErrGeometry, c.Rows, c.Cols)
	}
	if len(c.DeadKeys) > c.Rows || len(c.CalKeys) > c.Rows {
		return fmt.Errorf("%w: %d dead and %d cal rows for %d rows",
			ErrGeometry, len(c.DeadKeys), len(c.CalKeys), c.Rows)
	}
	colMask := ^Row(0)
	if c.Cols < MaxCols {
		colMask = Row(1)<<uint(c.Cols) - 1
	}
	for row, r := range c.DeadKeys {
		if r&^colMask != 0 {
			return fmt.Errorf("%w: dead keys 0x%x beyond column %d in row %d", ErrGeometry, r, c.Cols-1, row)
		}
	}
	for row, r := range c.CalKeys {
		if r&^colMask != 0 {
			return fmt.Errorf("%w: cal keys 0x%x beyond column %d in row %d", ErrGeometry, r, c.Cols-1, row)
		}
	}
	if c.Polarity != ActiveLow && c.Polarity != ActiveHigh {
		return ErrPolarity
	}
	t, err := c.Timing()
	if err != nil {
		return err
	}
	if uint32(c.Threshold)*2 > uint32(t.Window) {
		return fmt.Errorf("%w: threshold %d ticks, window %d ticks, reduce the scan rate",
			ErrThreshold, c.Threshold, t.Window)
	}
	for col := 0; col < c.Cols; col++ {
		if _, ok := c.Columns.Line(col); !ok {
			return fmt.Errorf("%w: no drive line for col %d (%d lines in mask)",
				ErrWiring, col, c.Columns.Lines())
		}
	}
	return nil
}

// normalizedKeys returns the dead and cal keys expanded to one entry per row,
// with every cal key also marked dead.
func (c Config) normalizedKeys() (dead, cal []Row) {
	dead = make([]Row, c.Rows)
	cal = make([]Row, c.Rows)
	copy(dead, c.DeadKeys)
	copy(cal, c.CalKeys)
	for row := range dead {
		dead[row] |= cal[row]
	}
	return
}

// ColumnMap maps logical columns onto physical drive lines.
//
// The zero ColumnMap maps column n to line n.
// Otherwise column n is driven by the nth set bit of Mask.
// Reverse mirrors that line within Width, as for a shift register wired
// most significant bit first.
type ColumnMap struct {
	Mask    uint64
	Width   int
	Reverse bool
}

// Lines returns the number of lines available in the mask, or -1 if the map
// is the identity.
func (m ColumnMap) Lines() int {
	if m.Mask == 0 {
		return -1
	}
	return bits.OnesCount64(m.Mask)
}

// Line returns the physical line for the logical column.
// Returns false if the mask has no line for the column.
func (m ColumnMap) Line(col int) (int, bool) {
	if col < 0 {
		return 0, false
	}
	line := col
	if m.Mask != 0 {
		mask := m.Mask
		for i := 0; i < col && mask != 0; i++ {
			mask &= mask - 1
		}
		if mask == 0 {
			return 0, false
		}
		line = bits.TrailingZeros64(mask)
	}
	if m.Reverse {
		if line >= m.Width {
			return 0, false
		}
		line = m.Width - 1 - line
	}
	return line, true
}

var (
	// ErrGeometry indicates the matrix dimensions are inconsistent.
	ErrGeometry = errors.New("invalid matrix geometry")
	// ErrPolarity indicates neither or both polarities were selected.
	ErrPolarity = errors.New("polarity must be active-low or active-high")
	// ErrThreshold indicates the threshold cannot be measured within the window.
	ErrThreshold = errors.New("threshold too large for window")
	// ErrPeriod indicates the column period does not fit the capture counter.
	ErrPeriod = errors.New("column period out of range")
	// ErrScanRate indicates the scan rate is zero.
	ErrScanRate = errors.New("invalid scan rate")
	// ErrWiring indicates the drive lines do not cover the columns.
	ErrWiring = errors.New("drive lines do not cover columns")
	// ErrAlreadyStarted indicates Start has already been called.
	ErrAlreadyStarted = errors.New("already started")
)
