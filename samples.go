// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package capscan

import (
	"sync/atomic"
	"time"
)

// fresh flags that the middle grid holds a sweep the consumer has not seen.
const fresh = 4

// Samples holds the raw values of the most recent sweeps.
//
// Samples is a triple buffer.  The sequencer writes one column at a time into
// the back grid and, after the last column, swaps it with the middle grid.
// The consumer claims a fresh middle grid by swapping it with its front grid.
// Each grid is owned by one side at a time, and ownership only changes hands
// through the atomic swap of middle, so the producer never blocks and never
// writes a grid the consumer holds.
type Samples struct {
	rows  int
	cols  int
	grids [3][]uint16
	// back is only accessed by the producer.
	back int
	// middle holds the index of the spare grid, ORed with fresh once published.
	middle atomic.Int32
	// front is only accessed by the consumer.
	front int
	ready chan struct{}
}

func newSamples(rows, cols int, fill uint16) *Samples {
	s := &Samples{
		rows:  rows,
		cols:  cols,
		front: 2,
		ready: make(chan struct{}, 1),
	}
	for i := range s.grids {
		g := make([]uint16, rows*cols)
		for j := range g {
			g[j] = fill
		}
		s.grids[i] = g
	}
	s.middle.Store(1)
	return s
}

// column returns the cells for the column in the back grid.
func (s *Samples) column(col int) []uint16 {
	return s.grids[s.back][col*s.rows : (col+1)*s.rows]
}

// publish hands the back grid to the consumer and takes the spare grid in
// exchange.
// It never blocks; an unconsumed signal is simply left in place.
func (s *Samples) publish() {
	m := s.middle.Swap(int32(s.back) | fresh)
	s.back = int(m &^ fresh)
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// claim swaps the front grid for a freshly published one, if there is one.
func (s *Samples) claim() bool {
	if s.middle.Load()&fresh == 0 {
		return false
	}
	m := s.middle.Swap(int32(s.front))
	s.front = int(m &^ fresh)
	return true
}

// wait returns the most recently published grid, or false if no sweep was
// published within the timeout.
//
// The grid is owned by the caller until the next call to wait.
func (s *Samples) wait(timeout time.Duration) ([]uint16, bool) {
	var t *time.Timer
	for {
		select {
		case <-s.ready:
		default:
			if t == nil {
				t = time.NewTimer(timeout)
				defer t.Stop()
			}
			select {
			case <-s.ready:
			case <-t.C:
				return nil, false
			}
		}
		// a stale signal, left by a publish already claimed, is skipped
		if s.claim() {
			return s.grids[s.front], true
		}
	}
}

// Grid returns a copy of the sweep most recently returned to Scan, indexed by
// [col*rows+row].
// It must only be called from the goroutine calling Scan.
func (s *Samples) Grid() []uint16 {
	g := s.grids[s.front]
	c := make([]uint16, len(g))
	copy(c, g)
	return c
}
