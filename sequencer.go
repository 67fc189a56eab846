// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package capscan

import "sync/atomic"

// Sequencer steps through the columns, collecting the captured edges into
// Samples.  It is the CycleHandler installed on the CycleTimer.
type Sequencer struct {
	rows    int
	cols    int
	columns ColumnMap
	drive   Drive
	groups  []CaptureGroup
	samples *Samples

	// Owned by the cycle handler.
	col      int
	line     int
	selected bool

	restarts atomic.Uint32
	sweeps   atomic.Uint32
}

func newSequencer(rows, cols int, columns ColumnMap, drive Drive, groups []CaptureGroup, samples *Samples) *Sequencer {
	return &Sequencer{
		rows:    rows,
		cols:    cols,
		columns: columns,
		drive:   drive,
		groups:  groups,
		samples: samples,
		// the initial Wrap rolls this over to 0
		col: cols - 1,
	}
}

// Window releases the current column and stores the captured values.
// After the last column the sweep is published.
func (s *Sequencer) Window() {
	if !s.selected {
		return
	}
	s.drive.Deselect(s.line)
	s.selected = false
	s.read(s.samples.column(s.col))
	if s.col == s.cols-1 {
		s.sweeps.Add(1)
		s.samples.publish()
	}
}

// read stores the value for each row of the current column.
//
// If no edge was captured and the line is still high then the pad never
// discharged within the window, and if it is low then it never charged.
// An edge arriving while this runs races the level read, so an occasional
// value may be misclassified for one sweep.
func (s *Sequencer) read(cells []uint16) {
	for row := range cells {
		g := s.groups[row/GroupChannels]
		ch := row % GroupChannels
		if v, ok := g.Capture(ch); ok {
			cells[row] = v
		} else if g.Level(ch) {
			cells[row] = NoEdgeHigh
		} else {
			cells[row] = NoEdgeLow
		}
	}
}

// Wrap selects the next column and drains and rearms the captures.
func (s *Sequencer) Wrap() {
	if s.selected {
		// Window was missed, so the column is abandoned.
		s.drive.Deselect(s.line)
	}
	s.col++
	if s.col >= s.cols {
		s.col = 0
	}
	line, ok := s.columns.Line(s.col)
	if !ok {
		// ran off the end of the drive lines - restart from the first column
		s.restarts.Add(1)
		s.col = 0
		if line, ok = s.columns.Line(0); !ok {
			s.selected = false
			return
		}
	}
	s.line = line
	s.drive.Select(line)
	s.selected = true
	for _, g := range s.groups {
		g.Drain()
		g.Arm()
	}
}

// stop releases any selected column and rewinds to the start of a sweep.
// It must only be called while the cycle timer is stopped.
func (s *Sequencer) stop() {
	if s.selected {
		s.drive.Deselect(s.line)
		s.selected = false
	}
	s.col = s.cols - 1
}

// Column returns the logical column most recently selected.
func (s *Sequencer) Column() int {
	return s.col
}

// Restarts returns the number of times the sequencer ran out of drive lines
// and restarted from the first column.
func (s *Sequencer) Restarts() uint32 {
	return s.restarts.Load()
}

// Sweeps returns the number of sweeps published.
func (s *Sequencer) Sweeps() uint32 {
	return s.sweeps.Load()
}
